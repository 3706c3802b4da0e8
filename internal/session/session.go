// Package session implements the draft record session and reconciliation
// engine: a four-step wizard that persists a collection record as a remote
// draft, tracks which fields and files actually changed, and keeps repeated
// saves from re-uploading or re-sending anything the server already has.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Mode distinguishes a fresh record from editing an existing draft. It is
// immutable for the session's lifetime.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// Phase is the orthogonal busy sub-state. It gates the UI while a remote
// operation runs but never changes the step pointer by itself.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSaving     Phase = "saving"
	PhaseSubmitting Phase = "submitting"
)

// ErrBusy is returned when a save or submit is requested while another one
// is still settling.
var ErrBusy = errors.New("another operation is in progress")

// Deps are the collaborators one session needs.
type Deps struct {
	Persistence DraftPersistence
	Files       FileStore
	Loader      DraftLoader // required for edit mode
	Confirm     Confirmer
}

// FormSession is the aggregate root for one wizard instance. All state,
// including the reconciliation sets, is private to the session: two
// sessions never share anything mutable. Actions serialize on the internal
// mutex, so from the caller's point of view the session is single-threaded.
type FormSession struct {
	mu sync.Mutex

	id   string
	mode Mode

	step    int
	phase   Phase
	closed  bool
	draftID string

	fields   Fields
	errors   map[string]string
	groups   AttachmentGroups
	original *OriginalSnapshot // nil until a server truth exists
	synced   *SyncedSets

	// loadedID is the draft id an edit session was opened for; redo
	// re-loads from it even after failures.
	loadedID string

	persistence  DraftPersistence
	loader       DraftLoader
	confirm      Confirmer
	orchestrator *Orchestrator
}

// NewCreateSession starts a blank wizard.
func NewCreateSession(deps Deps) (*FormSession, error) {
	s, err := newSession(ModeCreate, deps)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewEditSession starts a wizard over an existing draft: the server state is
// loaded once and captured as the original snapshot that all diffing runs
// against.
func NewEditSession(ctx context.Context, deps Deps, draftID string) (*FormSession, error) {
	if deps.Loader == nil {
		return nil, errors.New("edit mode requires a draft loader")
	}
	if draftID == "" {
		return nil, errors.New("edit mode requires a draft id")
	}
	s, err := newSession(ModeEdit, deps)
	if err != nil {
		return nil, err
	}
	s.loadedID = draftID
	existing, err := deps.Loader.LoadExistingDraft(ctx, draftID)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	s.hydrate(existing)
	return s, nil
}

func newSession(mode Mode, deps Deps) (*FormSession, error) {
	if deps.Persistence == nil || deps.Files == nil {
		return nil, errors.New("session requires persistence and file store collaborators")
	}
	confirm := deps.Confirm
	if confirm == nil {
		confirm = AlwaysConfirm
	}
	return &FormSession{
		id:           uuid.NewString(),
		mode:         mode,
		step:         StepClassification,
		phase:        PhaseIdle,
		fields:       Fields{},
		errors:       map[string]string{},
		groups:       AttachmentGroups{},
		synced:       NewSyncedSets(),
		persistence:  deps.Persistence,
		loader:       deps.Loader,
		confirm:      confirm,
		orchestrator: NewOrchestrator(deps.Files),
	}, nil
}

// hydrate installs server state: fields, uploaded attachments (with their
// preview URLs) and the snapshot + synced sets derived from them.
func (s *FormSession) hydrate(existing *ExistingDraft) {
	s.fields = existing.Fields.Clone()
	s.errors = map[string]string{}
	s.groups = AttachmentGroups{}
	s.synced = NewSyncedSets()
	s.step = StepClassification
	s.draftID = s.loadedID

	identities := map[Category][]string{}
	for cat, atts := range existing.Attachments {
		for _, a := range atts {
			s.groups[cat] = append(s.groups[cat], hydratedFile(cat, a.SubType, a.ID, a.Name, a.PreviewURL))
			identities[cat] = append(identities[cat], a.ID)
			s.synced.Add(cat, a.ID)
		}
	}
	s.original = NewSnapshot(existing.Fields, identities)
}

// --- Accessors ---

func (s *FormSession) ID() string { return s.id }

func (s *FormSession) Mode() Mode { return s.mode }

func (s *FormSession) DraftID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftID
}

func (s *FormSession) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// AttachmentView is the per-file state exposed to the UI.
type AttachmentView struct {
	Identity   string     `json:"identity"`
	Name       string     `json:"name"`
	Status     FileStatus `json:"status"`
	SubType    SubType    `json:"subType,omitempty"`
	PreviewURL string     `json:"previewUrl,omitempty"`
}

// State is a snapshot of everything the surrounding UI renders.
type State struct {
	ID          string                        `json:"id"`
	Mode        Mode                          `json:"mode"`
	Step        int                           `json:"currentStep"`
	Phase       Phase                         `json:"phase"`
	DraftID     string                        `json:"draftId,omitempty"`
	Fields      map[string]any                `json:"fields"`
	Errors      map[string]string             `json:"errors"`
	Attachments map[Category][]AttachmentView `json:"attachments"`
}

// State returns a copy of the session's UI-visible state.
func (s *FormSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := make(map[string]any, len(s.fields))
	for k, v := range s.fields {
		fields[string(k)] = v
	}
	errs := make(map[string]string, len(s.errors))
	for k, v := range s.errors {
		errs[k] = v
	}
	atts := make(map[Category][]AttachmentView, len(s.groups))
	for cat, files := range s.groups {
		views := make([]AttachmentView, 0, len(files))
		for _, f := range files {
			name := ""
			if f.Source != nil {
				name = f.Source.Name
			}
			views = append(views, AttachmentView{
				Identity:   f.Identity,
				Name:       name,
				Status:     f.Status,
				SubType:    f.SubType,
				PreviewURL: f.PreviewURL,
			})
		}
		atts[cat] = views
	}
	return State{
		ID:          s.id,
		Mode:        s.mode,
		Step:        s.step,
		Phase:       s.phase,
		DraftID:     s.draftID,
		Fields:      fields,
		Errors:      errs,
		Attachments: atts,
	}
}

// SelectedNames resolves the currently selected reference ids to their
// display names for the review step.
func (s *FormSession) SelectedNames(rd *ReferenceData) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	lookup := func(options []RefOption, id string) string {
		for _, o := range options {
			if o.ID == id {
				return o.Name
			}
		}
		return ""
	}
	return map[string]string{
		string(FieldWasteOwner):     lookup(rd.WasteOwners, s.fields.Str(FieldWasteOwner)),
		string(FieldContractType):   lookup(rd.ContractTypes, s.fields.Str(FieldContractType)),
		string(FieldWasteType):      lookup(rd.WasteTypes, s.fields.Str(FieldWasteType)),
		string(FieldHazardCode):     lookup(rd.HazardCodes, s.fields.Str(FieldHazardCode)),
		string(FieldPickupLocation): lookup(rd.PickupLocations, s.fields.Str(FieldPickupLocation)),
	}
}

// --- Field and navigation actions ---

// HandleFieldChange records a new field value and clears that field's error.
// Values are coerced first: date strings become time.Time, and non-scalar
// values are rejected before they can reach the diff layer.
func (s *FormSession) HandleFieldChange(field Field, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	coerced, err := CoerceValue(field, value)
	if err != nil {
		s.errors[string(field)] = msgInvalidValue
		return &ValidationError{
			Fields: map[string]string{string(field): msgInvalidValue},
			Step:   s.step,
		}
	}
	s.fields[field] = coerced
	delete(s.errors, string(field))
	return nil
}

// HandleNext validates the current step and advances on success. On failure
// the step pointer stays put and the step's errors are surfaced.
func (s *FormSession) HandleNext() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	ok, errs := ValidateStep(s.step, s.fields, s.groups)
	if !ok {
		s.errors = errs
		return &ValidationError{Fields: errs, Step: s.step}
	}
	s.errors = map[string]string{}
	if s.step < StepReview {
		s.step++
	}
	return nil
}

// HandleBack always succeeds and never re-validates.
func (s *FormSession) HandleBack() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.step > StepClassification {
		s.step--
	}
	return nil
}

// --- Attachment actions ---

// AddFiles appends user-picked files to a multi-file category. Duplicate
// identities within the category are dropped silently — a category never
// holds two files with the same identity.
func (s *FormSession) AddFiles(cat Category, sub SubType, sources []*FileSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if IsSingleSlot(cat) {
		return errors.New("category holds a single file, use SetSingleFile")
	}
	if !ValidTarget(cat, sub) {
		return errors.New("unknown attachment category or sub-type")
	}
	for _, src := range sources {
		identity := IdentityOf(src)
		if s.hasIdentity(cat, identity) {
			continue
		}
		s.groups[cat] = append(s.groups[cat], newPendingFile(cat, sub, src))
	}
	return nil
}

// SetSingleFile puts a file into a single-slot category. If an uploaded file
// already occupies the slot, the new file is marked to replace it server-side
// — picking a new file in the slot is all the user has to do.
func (s *FormSession) SetSingleFile(cat Category, src *FileSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if !IsSingleSlot(cat) {
		return errors.New("category is not single-slot")
	}

	var current *ManagedFile
	if files := s.groups[cat]; len(files) > 0 {
		current = files[0]
	}

	next := newPendingFile(cat, SubTypeNone, src)
	if !IsChangedSingleFile(next, current) {
		return nil
	}
	if current != nil {
		switch {
		case current.ServerID != "":
			next.ReplacesID = current.ServerID
		case current.ReplacesID != "":
			// Slot re-picked before the previous replacement was sent;
			// the original server file is still the one being swapped.
			next.ReplacesID = current.ReplacesID
		}
	}
	s.groups[cat] = []*ManagedFile{next}
	delete(s.errors, singleSlotErrKey(cat))
	return nil
}

// DeleteAttachment removes a file from a category after confirmation.
// Uploaded files are deleted server-side first; pending files just drop.
func (s *FormSession) DeleteAttachment(ctx context.Context, cat Category, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	idx := -1
	for i, f := range s.groups[cat] {
		if f.Identity == identity {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.New("attachment not found")
	}
	ok, err := s.confirm(ctx, "Delete this file?")
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	f := s.groups[cat][idx]
	if f.ServerID != "" {
		f.Status = FileDeleting
		if err := s.orchestrator.store.DeleteFile(ctx, f.ServerID); err != nil {
			f.Status = FileError
			return &DeleteError{Err: err}
		}
		s.synced.Remove(cat, f.ServerID)
	}
	s.synced.Remove(cat, f.Identity)
	s.groups[cat] = append(s.groups[cat][:idx], s.groups[cat][idx+1:]...)
	return nil
}

// --- Persistence actions ---

// HandleSaveDraft persists the current state: full payload on first save,
// partial payload afterwards, then reconciles attachments against the draft.
// Only the current step's required fields gate a draft save.
func (s *FormSession) HandleSaveDraft(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.phase != PhaseIdle {
		return ErrBusy
	}
	ok, errs := ValidateStep(s.step, s.fields, s.groups)
	if !ok {
		s.errors = errs
		return &ValidationError{Fields: errs, Step: s.step}
	}

	s.phase = PhaseSaving
	defer func() { s.phase = PhaseIdle }()

	if err := s.persistDraft(ctx); err != nil {
		return err
	}
	if err := s.orchestrator.Reconcile(ctx, s.draftID, s.groups, s.synced); err != nil {
		return err
	}
	return nil
}

// HandleSubmit runs the full-submission validation, ensures the draft
// exists and is up to date, reconciles attachments, and finally asks
// persistence for the submit transition. Any failure past the draft save
// leaves draftID set, so a retry never creates a duplicate draft.
func (s *FormSession) HandleSubmit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.phase != PhaseIdle {
		return ErrBusy
	}

	errs, offendingStep := ValidateSubmission(s.fields, s.groups)
	if len(errs) > 0 {
		s.errors = errs
		s.step = offendingStep
		return &ValidationError{Fields: errs, Step: offendingStep}
	}

	// Redundant guard at the submission boundary: a missing vehicle plate
	// routes straight to step 2 with a dedicated inline error.
	if s.fields.Str(FieldVehiclePlate) == "" {
		s.step = StepCollection
		s.errors = map[string]string{string(FieldVehiclePlate): msgRequired}
		return &ValidationError{Fields: s.errors, Step: StepCollection}
	}

	s.phase = PhaseSubmitting
	defer func() { s.phase = PhaseIdle }()

	if err := s.persistDraft(ctx); err != nil {
		return err
	}
	if err := s.orchestrator.Reconcile(ctx, s.draftID, s.groups, s.synced); err != nil {
		return err
	}
	if err := s.persistence.SubmitDraft(ctx, s.draftID); err != nil {
		return &PersistenceError{Op: "submit", Err: err}
	}
	s.closed = true
	return nil
}

// persistDraft creates the draft on first save and sends a minimal partial
// update afterwards. An empty partial skips the network call entirely.
func (s *FormSession) persistDraft(ctx context.Context) error {
	if s.draftID == "" {
		payload := BuildCreatePayload(s.fields)
		id, err := s.persistence.CreateDraft(ctx, payload)
		if err != nil {
			return &PersistenceError{Op: "create", Err: err}
		}
		s.draftID = id
		// The payload just sent is now server truth; later saves in this
		// session diff against it.
		s.original = NewSnapshot(s.fields, nil)
		return nil
	}

	partial := BuildUpdatePayload(s.fields, s.original)
	if len(partial) == 0 {
		return nil
	}
	if err := s.persistence.UpdateDraft(ctx, s.draftID, partial); err != nil {
		return &PersistenceError{Op: "update", Err: err}
	}
	return nil
}

// --- Destructive actions ---

// HandleRedo resets the wizard after confirmation: create mode starts over
// blank (dropping the draft id), edit mode re-loads the server record.
// It reports whether the user confirmed.
func (s *FormSession) HandleRedo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrSessionClosed
	}
	ok, err := s.confirm(ctx, "Discard all changes and start over?")
	if err != nil || !ok {
		return false, err
	}

	if s.mode == ModeEdit {
		existing, err := s.loader.LoadExistingDraft(ctx, s.loadedID)
		if err != nil {
			return false, &PersistenceError{Op: "load", Err: err}
		}
		s.hydrate(existing)
		return true, nil
	}

	s.fields = Fields{}
	s.errors = map[string]string{}
	s.groups = AttachmentGroups{}
	s.synced = NewSyncedSets()
	s.original = nil
	s.draftID = ""
	s.step = StepClassification
	return true, nil
}

// HandleCancel abandons the session after confirmation, with no persistence
// side effects. It reports whether the user confirmed.
func (s *FormSession) HandleCancel(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrSessionClosed
	}
	ok, err := s.confirm(ctx, "Leave without saving?")
	if err != nil || !ok {
		return false, err
	}
	s.closed = true
	return true, nil
}

// Closed reports whether the session has been cancelled or submitted.
func (s *FormSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// --- helpers ---

func (s *FormSession) hasIdentity(cat Category, identity string) bool {
	for _, f := range s.groups[cat] {
		if f.Identity == identity {
			return true
		}
	}
	return false
}

func singleSlotErrKey(cat Category) string {
	switch cat {
	case CategoryStockpilePhoto:
		return ErrKeyStockpilePhoto
	case CategoryRecycledPhoto:
		return ErrKeyRecycledPhoto
	}
	return string(cat)
}
