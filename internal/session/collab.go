package session

import (
	"context"
)

// Collaborator contracts. The engine only ever sees these interfaces; the
// service layer provides the mongo/S3-backed implementations and tests use
// in-memory fakes.

// DraftPersistence is the remote draft store. UpdateDraft treats omitted
// keys as "leave unchanged" and explicit nils as "clear".
type DraftPersistence interface {
	CreateDraft(ctx context.Context, payload Payload) (string, error)
	UpdateDraft(ctx context.Context, draftID string, partial Payload) error
	SubmitDraft(ctx context.Context, draftID string) error
}

// StoredFile is what the file storage service returns for a registered file.
type StoredFile struct {
	ID         string
	Name       string
	PreviewURL string
}

// FileStore is the remote file storage service. UploadFiles registers new
// identifiers under the draft; ReplaceFile swaps bytes under an existing
// identifier.
type FileStore interface {
	UploadFiles(ctx context.Context, draftID string, files []*FileSource, target UploadTarget) ([]StoredFile, error)
	UploadSingleFile(ctx context.Context, draftID string, file *FileSource, cat Category) (StoredFile, error)
	ReplaceFile(ctx context.Context, fileID string, newFile *FileSource) (StoredFile, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// ExistingAttachment is one already-uploaded file as the loader reports it.
type ExistingAttachment struct {
	ID         string
	SubType    SubType
	Name       string
	PreviewURL string
}

// ExistingDraft is the edit-mode hydration result.
type ExistingDraft struct {
	Fields      Fields
	Attachments map[Category][]ExistingAttachment
}

// DraftLoader hydrates an edit-mode session from the server's current state.
type DraftLoader interface {
	LoadExistingDraft(ctx context.Context, draftID string) (*ExistingDraft, error)
}

// ReferenceData carries the dropdown options, fetched once per session mount.
type ReferenceData struct {
	ContractTypes   []RefOption
	WasteTypes      []RefOption
	HazardCodes     []RefOption
	WasteOwners     []RefOption
	PickupLocations []RefOption
}

// RefOption is one dropdown entry.
type RefOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ReferenceLoader serves the dropdown reference data.
type ReferenceLoader interface {
	LoadReferenceData(ctx context.Context) (*ReferenceData, error)
}

// Confirmer is the injected confirmation capability guarding destructive
// actions (redo, cancel, delete). The state machine never talks to a
// display surface directly.
type Confirmer func(ctx context.Context, prompt string) (bool, error)

// AlwaysConfirm is the Confirmer used when the caller has already obtained
// user confirmation out of band.
func AlwaysConfirm(context.Context, string) (bool, error) { return true, nil }
