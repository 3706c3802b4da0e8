package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"ecotrack/waste-app/internal/domain"
	"ecotrack/waste-app/internal/repository"
	"ecotrack/waste-app/internal/session"
	"ecotrack/waste-app/internal/storage"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrDraftNotFound    = errors.New("draft record not found")
	ErrDraftNotEditable = errors.New("record is no longer editable")
	ErrInvalidDraftID   = errors.New("invalid draft id")
)

// DraftService backs the session engine's remote collaborators with the
// record repository, file metadata repository and object storage. One
// instance serves all users; ForUser binds it to the operator a session
// belongs to.
type DraftService struct {
	recordRepo  repository.RecordRepository
	fileRepo    repository.FileRepository
	fileStorage storage.FileStorage
}

func NewDraftService(recordRepo repository.RecordRepository, fileRepo repository.FileRepository, fileStorage storage.FileStorage) *DraftService {
	return &DraftService{
		recordRepo:  recordRepo,
		fileRepo:    fileRepo,
		fileStorage: fileStorage,
	}
}

// BoundDraftService is a DraftService bound to one user. It implements
// session.DraftPersistence, session.FileStore and session.DraftLoader.
type BoundDraftService struct {
	svc    *DraftService
	userID primitive.ObjectID
}

// ForUser binds the service to the operator owning a session.
func (s *DraftService) ForUser(userID primitive.ObjectID) *BoundDraftService {
	return &BoundDraftService{svc: s, userID: userID}
}

// --- session.DraftPersistence ---

// CreateDraft persists a new draft record and returns its identifier.
func (b *BoundDraftService) CreateDraft(ctx context.Context, payload session.Payload) (string, error) {
	record := &domain.CollectionRecord{
		CreatedBy: b.userID,
		Status:    domain.StatusDraft,
		Fields:    map[string]any(payload),
	}
	id, err := b.svc.recordRepo.Create(ctx, record)
	if err != nil {
		return "", err
	}
	return id.Hex(), nil
}

// UpdateDraft applies a partial payload: only the keys present are set,
// explicit nils clear the stored value.
func (b *BoundDraftService) UpdateDraft(ctx context.Context, draftID string, partial session.Payload) error {
	id, err := parseDraftID(draftID)
	if err != nil {
		return err
	}
	err = b.svc.recordRepo.UpdateFields(ctx, id, partial)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrDraftNotEditable
	}
	return err
}

// SubmitDraft moves the record into the review queue. A rejected record may
// be re-submitted after rework.
func (b *BoundDraftService) SubmitDraft(ctx context.Context, draftID string) error {
	id, err := parseDraftID(draftID)
	if err != nil {
		return err
	}
	err = b.svc.recordRepo.SetStatus(ctx, id, domain.StatusDraft, domain.StatusSubmitted, nil, "")
	if errors.Is(err, repository.ErrUpdateFailed) {
		err = b.svc.recordRepo.SetStatus(ctx, id, domain.StatusRejected, domain.StatusSubmitted, nil, "")
	}
	return err
}

// --- session.FileStore ---

// UploadFiles registers a batch of new files under the draft, tagged with
// the batch's (category, sub-type). The batch is atomic from the caller's
// point of view: if any file fails, the ones already stored are rolled back
// and the whole call rejects.
func (b *BoundDraftService) UploadFiles(ctx context.Context, draftID string, files []*session.FileSource, target session.UploadTarget) ([]session.StoredFile, error) {
	recordID, err := parseDraftID(draftID)
	if err != nil {
		return nil, err
	}

	stored := make([]session.StoredFile, 0, len(files))
	var created []*domain.StoredFile

	rollback := func() {
		for _, meta := range created {
			_ = b.svc.fileStorage.DeleteObject(ctx, meta.ObjectKey)
			_ = b.svc.fileRepo.Delete(ctx, meta.ID)
		}
	}

	for _, src := range files {
		meta, url, err := b.storeOne(ctx, recordID, draftID, src, target.Category, target.SubType)
		if err != nil {
			rollback()
			return nil, err
		}
		created = append(created, meta)
		stored = append(stored, session.StoredFile{ID: meta.ID.Hex(), Name: meta.FileName, PreviewURL: url})
	}
	return stored, nil
}

// UploadSingleFile registers one file under the draft.
func (b *BoundDraftService) UploadSingleFile(ctx context.Context, draftID string, file *session.FileSource, cat session.Category) (session.StoredFile, error) {
	recordID, err := parseDraftID(draftID)
	if err != nil {
		return session.StoredFile{}, err
	}
	meta, url, err := b.storeOne(ctx, recordID, draftID, file, cat, session.SubTypeNone)
	if err != nil {
		return session.StoredFile{}, err
	}
	return session.StoredFile{ID: meta.ID.Hex(), Name: meta.FileName, PreviewURL: url}, nil
}

// ReplaceFile swaps the bytes under an existing file identifier. The id and
// object key survive; only the content and descriptive metadata change.
func (b *BoundDraftService) ReplaceFile(ctx context.Context, fileID string, newFile *session.FileSource) (session.StoredFile, error) {
	id, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return session.StoredFile{}, ErrInvalidDraftID
	}
	meta, err := b.svc.fileRepo.GetByID(ctx, id)
	if err != nil {
		return session.StoredFile{}, err
	}

	if err := b.svc.fileStorage.PutObject(ctx, meta.ObjectKey, newFile.ContentType, newFile.Data); err != nil {
		return session.StoredFile{}, err
	}
	if err := b.svc.fileRepo.ReplaceMeta(ctx, id, newFile.Name, newFile.ContentType, newFile.Size); err != nil {
		return session.StoredFile{}, err
	}

	url, err := b.svc.fileStorage.GeneratePresignedDownloadURL(ctx, meta.ObjectKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		url = "" // Preview is best-effort; the replacement itself succeeded.
	}
	return session.StoredFile{ID: fileID, Name: newFile.Name, PreviewURL: url}, nil
}

// DeleteFile removes the bytes and the metadata.
func (b *BoundDraftService) DeleteFile(ctx context.Context, fileID string) error {
	id, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return ErrInvalidDraftID
	}
	meta, err := b.svc.fileRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := b.svc.fileStorage.DeleteObject(ctx, meta.ObjectKey); err != nil {
		return err
	}
	return b.svc.fileRepo.Delete(ctx, id)
}

// --- session.DraftLoader ---

// LoadExistingDraft hydrates an edit session: fields in form shape plus all
// attachments with fresh preview URLs.
func (b *BoundDraftService) LoadExistingDraft(ctx context.Context, draftID string) (*session.ExistingDraft, error) {
	id, err := parseDraftID(draftID)
	if err != nil {
		return nil, err
	}
	record, err := b.svc.recordRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDraftNotFound
		}
		return nil, err
	}
	if record.Status != domain.StatusDraft && record.Status != domain.StatusRejected {
		return nil, ErrDraftNotEditable
	}

	files, err := b.svc.fileRepo.GetByRecordID(ctx, id)
	if err != nil {
		return nil, err
	}

	attachments := map[session.Category][]session.ExistingAttachment{}
	for _, f := range files {
		url, err := b.svc.fileStorage.GeneratePresignedDownloadURL(ctx, f.ObjectKey, storage.DefaultPresignedURLExpiry)
		if err != nil {
			url = ""
		}
		cat := session.Category(f.Category)
		attachments[cat] = append(attachments[cat], session.ExistingAttachment{
			ID:         f.ID.Hex(),
			SubType:    session.SubType(f.SubType),
			Name:       f.FileName,
			PreviewURL: url,
		})
	}

	return &session.ExistingDraft{
		Fields:      session.FieldsFromWire(plainMap(record.Fields)),
		Attachments: attachments,
	}, nil
}

// storeOne uploads one file's bytes and registers its metadata.
func (b *BoundDraftService) storeOne(ctx context.Context, recordID primitive.ObjectID, draftID string, src *session.FileSource, cat session.Category, sub session.SubType) (*domain.StoredFile, string, error) {
	objectKey := path.Join("records", draftID, string(cat), uuid.NewString()+fileExtension(src.Name))

	if err := b.svc.fileStorage.PutObject(ctx, objectKey, src.ContentType, src.Data); err != nil {
		return nil, "", fmt.Errorf("storing %s: %w", src.Name, err)
	}

	meta := &domain.StoredFile{
		RecordID:    recordID,
		Category:    string(cat),
		SubType:     string(sub),
		ObjectKey:   objectKey,
		FileName:    src.Name,
		ContentType: src.ContentType,
		Size:        src.Size,
	}
	if _, err := b.svc.fileRepo.Create(ctx, meta); err != nil {
		_ = b.svc.fileStorage.DeleteObject(ctx, objectKey)
		return nil, "", fmt.Errorf("registering %s: %w", src.Name, err)
	}

	url, err := b.svc.fileStorage.GeneratePresignedDownloadURL(ctx, objectKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		url = ""
	}
	return meta, url, nil
}

func parseDraftID(draftID string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(draftID)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidDraftID
	}
	return id, nil
}

func fileExtension(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

// plainMap normalizes the BSON decoding of the fields document (primitive.M,
// primitive.A) into plain maps and slices the session layer understands.
func plainMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	switch val := v.(type) {
	case primitive.M:
		return plainMap(map[string]any(val))
	case map[string]any:
		return plainMap(val)
	case primitive.A:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = plainValue(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = plainValue(e)
		}
		return out
	default:
		return v
	}
}
