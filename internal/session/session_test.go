package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePersistence struct {
	mu sync.Mutex

	createCalls int
	updateCalls int
	submitCalls int

	lastCreate Payload
	lastUpdate Payload

	createErr error
	updateErr error
	submitErr error
}

func (f *fakePersistence) CreateDraft(_ context.Context, payload Payload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastCreate = payload
	if f.createErr != nil {
		return "", f.createErr
	}
	return "draft-1", nil
}

func (f *fakePersistence) UpdateDraft(_ context.Context, _ string, partial Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	f.lastUpdate = partial
	return f.updateErr
}

func (f *fakePersistence) SubmitDraft(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	return f.submitErr
}

type fakeLoader struct {
	existing  *ExistingDraft
	err       error
	loadCalls int
}

func (f *fakeLoader) LoadExistingDraft(_ context.Context, _ string) (*ExistingDraft, error) {
	f.loadCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.existing, nil
}

func declineConfirm(context.Context, string) (bool, error) { return false, nil }

type testEnv struct {
	persistence *fakePersistence
	store       *fakeFileStore
	loader      *fakeLoader
}

func newTestEnv() *testEnv {
	return &testEnv{
		persistence: &fakePersistence{},
		store:       newFakeFileStore(),
		loader:      &fakeLoader{},
	}
}

func (e *testEnv) deps() Deps {
	return Deps{Persistence: e.persistence, Files: e.store, Loader: e.loader}
}

func (e *testEnv) createSession(t *testing.T) *FormSession {
	t.Helper()
	s, err := NewCreateSession(e.deps())
	require.NoError(t, err)
	return s
}

func setFields(t *testing.T, s *FormSession, fields Fields) {
	t.Helper()
	for f, v := range fields {
		require.NoError(t, s.HandleFieldChange(f, v))
	}
}

// fillComplete brings a session to a fully submittable state.
func fillComplete(t *testing.T, s *FormSession) {
	t.Helper()
	fields, _ := completeForm()
	setFields(t, s, fields)
	require.NoError(t, s.AddFiles(CategoryEvidence, SubTypeWeighingSlip, []*FileSource{sourceNamed("slip.jpg")}))
	require.NoError(t, s.SetSingleFile(CategoryRecycledPhoto, sourceNamed("recycled.jpg")))
	require.NoError(t, s.AddFiles(CategoryQualityMetricsIn, SubTypeNone, []*FileSource{sourceNamed("in.pdf")}))
	require.NoError(t, s.AddFiles(CategoryQualityMetricsOut, SubTypeNone, []*FileSource{sourceNamed("out.pdf")}))
	require.NoError(t, s.AddFiles(CategoryHazardCertificate, SubTypeNone, []*FileSource{sourceNamed("cert.pdf")}))
}

func TestHandleNextBlocksOnStepErrors(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)

	// Step 1 with nothing filled refuses to advance.
	err := s.HandleNext()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StepClassification, verr.Step)
	assert.Equal(t, StepClassification, s.CurrentStep())

	setFields(t, s, Fields{FieldWasteOwner: "own-1", FieldWasteType: "wt-1"})
	require.NoError(t, s.HandleNext())
	assert.Equal(t, StepCollection, s.CurrentStep())

	// Step 2 without a vehicle plate refuses to advance.
	setFields(t, s, Fields{FieldCollectedVolumeKg: 120.5, FieldPickupLocation: "loc-1"})
	err = s.HandleNext()
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, msgRequired, verr.Fields["vehiclePlate"])
	assert.Equal(t, StepCollection, s.CurrentStep())

	setFields(t, s, Fields{FieldVehiclePlate: "AB123CD"})
	require.NoError(t, s.HandleNext())
	assert.Equal(t, StepProcessing, s.CurrentStep())
}

func TestHandleBackNeverValidates(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)
	setFields(t, s, Fields{FieldWasteOwner: "own-1", FieldWasteType: "wt-1"})
	require.NoError(t, s.HandleNext())

	// Clear a step 1 field, then go back: allowed, state kept.
	require.NoError(t, s.HandleFieldChange(FieldWasteOwner, ""))
	require.NoError(t, s.HandleBack())
	assert.Equal(t, StepClassification, s.CurrentStep())

	// Back on step 1 stays on step 1.
	require.NoError(t, s.HandleBack())
	assert.Equal(t, StepClassification, s.CurrentStep())
}

func TestFieldChangeClearsItsError(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)

	_ = s.HandleNext() // populate step 1 errors
	require.Contains(t, s.State().Errors, "wasteOwner")

	require.NoError(t, s.HandleFieldChange(FieldWasteOwner, "own-1"))
	errs := s.State().Errors
	assert.NotContains(t, errs, "wasteOwner")
	assert.Contains(t, errs, "wasteType")
}

func TestFieldChangeParsesDateStrings(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)

	// JSON clients send dates as strings; both wire forms must land as
	// real dates.
	require.NoError(t, s.HandleFieldChange(FieldCollectionDate, "14/03/2026"))
	require.NoError(t, s.HandleFieldChange(FieldStockInDate, "2026-03-20T09:30:00Z"))

	fields, _ := completeForm()
	delete(fields, FieldCollectionDate)
	setFields(t, s, fields)
	setFields(t, s, Fields{FieldStockpiled: true, FieldStockpileVolumeKg: 40.0})
	require.NoError(t, s.SetSingleFile(CategoryStockpilePhoto, sourceNamed("pile.jpg")))
	require.NoError(t, s.SetSingleFile(CategoryRecycledPhoto, sourceNamed("recycled.jpg")))

	// The stockpile rules see the stock-in date set via its string form.
	ok, errs := ValidateStep(StepProcessing, s.fields, s.groups)
	assert.True(t, ok, "unexpected errors: %v", errs)

	require.NoError(t, s.HandleSaveDraft(context.Background()))
	assert.Equal(t, "14/03/2026", env.persistence.lastCreate["collectionDate"])
	assert.Equal(t, "20/03/2026", env.persistence.lastCreate["stockInDate"])
}

func TestFieldChangeRejectsBadValues(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)

	var verr *ValidationError
	err := s.HandleFieldChange(FieldCollectionDate, "not a date")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, msgInvalidValue, verr.Fields["collectionDate"])
	assert.Equal(t, msgInvalidValue, s.State().Errors["collectionDate"])

	// Non-scalar values never enter the form state, so repeated saves
	// diff cleanly instead of tripping over an uncomparable value.
	err = s.HandleFieldChange(FieldNotes, []any{"a", "b"})
	require.ErrorAs(t, err, &verr)
	assert.NotContains(t, s.State().Fields, "notes")

	setFields(t, s, Fields{FieldWasteOwner: "own-1", FieldWasteType: "wt-1"})
	require.NotPanics(t, func() {
		require.NoError(t, s.HandleSaveDraft(context.Background()))
		require.NoError(t, s.HandleSaveDraft(context.Background()))
	})
}

func TestSaveDraftCreatesOnceThenDiffs(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)
	setFields(t, s, Fields{FieldWasteOwner: "own-1", FieldWasteType: "wt-1"})

	require.NoError(t, s.HandleSaveDraft(context.Background()))
	assert.Equal(t, 1, env.persistence.createCalls)
	assert.Equal(t, "draft-1", s.DraftID())
	// The first save carries the full payload.
	assert.Len(t, env.persistence.lastCreate, len(allFields))
	assert.Equal(t, []string{"own-1"}, env.persistence.lastCreate["wasteOwnerIds"])

	// Nothing changed: the second save makes no network call at all.
	require.NoError(t, s.HandleSaveDraft(context.Background()))
	assert.Equal(t, 1, env.persistence.createCalls)
	assert.Zero(t, env.persistence.updateCalls)

	// One field changed: the partial carries exactly that key.
	require.NoError(t, s.HandleFieldChange(FieldWasteType, "wt-2"))
	require.NoError(t, s.HandleSaveDraft(context.Background()))
	assert.Equal(t, 1, env.persistence.updateCalls)
	require.Len(t, env.persistence.lastUpdate, 1)
	assert.Equal(t, "wt-2", env.persistence.lastUpdate["wasteType"])
}

func TestSaveDraftGatedByCurrentStepOnly(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)

	// Blank step 1 blocks the save before any network call.
	err := s.HandleSaveDraft(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, env.persistence.createCalls)

	// Step 1 satisfied: save succeeds even though later steps are empty.
	setFields(t, s, Fields{FieldWasteOwner: "own-1", FieldWasteType: "wt-1"})
	require.NoError(t, s.HandleSaveDraft(context.Background()))
}

func TestSaveDraftUploadsPendingFiles(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)
	setFields(t, s, Fields{FieldWasteOwner: "own-1", FieldWasteType: "wt-1"})
	require.NoError(t, s.AddFiles(CategoryEvidence, SubTypeOther, []*FileSource{sourceNamed("photo.jpg")}))

	require.NoError(t, s.HandleSaveDraft(context.Background()))
	require.Len(t, env.store.uploads, 1)
	assert.Equal(t, "draft-1", env.store.uploads[0].draftID)

	// Saving again re-uploads nothing.
	require.NoError(t, s.HandleSaveDraft(context.Background()))
	assert.Len(t, env.store.uploads, 1)
}

func TestSubmitValidationFailureAbortsBeforePersistence(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)
	setFields(t, s, Fields{FieldWasteOwner: "own-1"}) // far from complete

	err := s.HandleSubmit(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StepClassification, verr.Step)
	assert.Equal(t, StepClassification, s.CurrentStep())

	assert.Zero(t, env.persistence.createCalls)
	assert.Zero(t, env.persistence.submitCalls)
	assert.Zero(t, env.store.callCount())
	assert.False(t, s.Closed())
}

func TestSubmitVehiclePlateGuardRoutesToCollection(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)
	fillComplete(t, s)
	require.NoError(t, s.HandleFieldChange(FieldVehiclePlate, ""))

	err := s.HandleSubmit(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StepCollection, verr.Step)
	assert.Equal(t, StepCollection, s.CurrentStep())
	assert.Equal(t, msgRequired, s.State().Errors["vehiclePlate"])
	assert.Zero(t, env.persistence.submitCalls)
}

func TestSubmitSuccessClosesSession(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)
	fillComplete(t, s)

	require.NoError(t, s.HandleSubmit(context.Background()))

	assert.Equal(t, 1, env.persistence.createCalls)
	assert.Equal(t, 1, env.persistence.submitCalls)
	assert.True(t, s.Closed())
	// Evidence batch, recycled photo, quality in/out, hazard cert.
	assert.Equal(t, 5, env.store.callCount())

	// A closed session rejects further actions.
	assert.ErrorIs(t, s.HandleFieldChange(FieldNotes, "x"), ErrSessionClosed)
	assert.ErrorIs(t, s.HandleSaveDraft(context.Background()), ErrSessionClosed)
}

func TestSubmitFailureLeavesSessionRetryable(t *testing.T) {
	env := newTestEnv()
	env.persistence.submitErr = errors.New("backend down")
	s := env.createSession(t)
	fillComplete(t, s)

	err := s.HandleSubmit(context.Background())
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "submit", perr.Op)

	// Draft and uploads survived the failed submit; session stays open.
	assert.False(t, s.Closed())
	assert.Equal(t, "draft-1", s.DraftID())
	uploadsAfterFirst := env.store.callCount()

	// The retry creates no second draft and repeats no uploads.
	env.persistence.submitErr = nil
	require.NoError(t, s.HandleSubmit(context.Background()))
	assert.Equal(t, 1, env.persistence.createCalls)
	assert.Equal(t, uploadsAfterFirst, env.store.callCount())
	assert.True(t, s.Closed())
}

func TestSubmitUploadFailureSkipsSubmitCall(t *testing.T) {
	env := newTestEnv()
	env.store.failCategories[CategoryEvidence] = true
	s := env.createSession(t)
	fillComplete(t, s)

	err := s.HandleSubmit(context.Background())
	var uerr *UploadError
	require.ErrorAs(t, err, &uerr)

	// The draft was saved but the record was not submitted.
	assert.Equal(t, "draft-1", s.DraftID())
	assert.Zero(t, env.persistence.submitCalls)
	assert.False(t, s.Closed())

	// After the outage the retry completes.
	env.store.failCategories[CategoryEvidence] = false
	require.NoError(t, s.HandleSubmit(context.Background()))
	assert.Equal(t, 1, env.persistence.submitCalls)
}

func TestAddFilesDedupesWithinCategory(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)

	src := sourceNamed("photo.jpg")
	same := &FileSource{Name: src.Name, Size: src.Size, LastModified: src.LastModified}
	require.NoError(t, s.AddFiles(CategoryEvidence, SubTypeOther, []*FileSource{src, same}))
	require.NoError(t, s.AddFiles(CategoryEvidence, SubTypeOther, []*FileSource{same}))

	assert.Len(t, s.State().Attachments[CategoryEvidence], 1)
}

func TestAddFilesRejectsSingleSlotAndUnknownTargets(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)

	assert.Error(t, s.AddFiles(CategoryStockpilePhoto, SubTypeNone, []*FileSource{sourceNamed("pile.jpg")}))
	assert.Error(t, s.AddFiles(CategoryEvidence, SubType("bogus"), []*FileSource{sourceNamed("x.jpg")}))
	assert.Error(t, s.AddFiles(Category("bogus"), SubTypeNone, []*FileSource{sourceNamed("x.jpg")}))
}

func TestSetSingleFileMarksReplacement(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)
	setFields(t, s, Fields{FieldWasteOwner: "own-1", FieldWasteType: "wt-1"})

	require.NoError(t, s.SetSingleFile(CategoryRecycledPhoto, sourceNamed("v1.jpg")))
	require.NoError(t, s.HandleSaveDraft(context.Background()))
	require.Len(t, env.store.singles, 1)

	// Picking a new file in an occupied slot becomes a replace on the next
	// save, not a second upload.
	require.NoError(t, s.SetSingleFile(CategoryRecycledPhoto, sourceNamed("v2.jpg")))
	require.NoError(t, s.HandleSaveDraft(context.Background()))
	assert.Len(t, env.store.singles, 1)
	assert.Len(t, env.store.replaces, 1)

	views := s.State().Attachments[CategoryRecycledPhoto]
	require.Len(t, views, 1)
	assert.Equal(t, FileUploaded, views[0].Status)
}

func TestSetSingleFileCarriesReplaceTargetAcrossRepicks(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)
	setFields(t, s, Fields{FieldWasteOwner: "own-1", FieldWasteType: "wt-1"})

	require.NoError(t, s.SetSingleFile(CategoryRecycledPhoto, sourceNamed("v1.jpg")))
	require.NoError(t, s.HandleSaveDraft(context.Background()))

	// Two re-picks before the next save: still exactly one replace, aimed
	// at the originally uploaded identifier.
	require.NoError(t, s.SetSingleFile(CategoryRecycledPhoto, sourceNamed("v2.jpg")))
	require.NoError(t, s.SetSingleFile(CategoryRecycledPhoto, sourceNamed("v3.jpg")))
	require.NoError(t, s.HandleSaveDraft(context.Background()))

	require.Len(t, env.store.replaces, 1)
	assert.Len(t, env.store.singles, 1)
}

func TestDeleteAttachment(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)
	setFields(t, s, Fields{FieldWasteOwner: "own-1", FieldWasteType: "wt-1"})
	require.NoError(t, s.AddFiles(CategoryEvidence, SubTypeOther, []*FileSource{sourceNamed("photo.jpg")}))
	require.NoError(t, s.HandleSaveDraft(context.Background()))

	views := s.State().Attachments[CategoryEvidence]
	require.Len(t, views, 1)
	serverID := views[0].Identity

	require.NoError(t, s.DeleteAttachment(context.Background(), CategoryEvidence, serverID))
	assert.Equal(t, []string{"srv-1"}, env.store.deletes)
	assert.Empty(t, s.State().Attachments[CategoryEvidence])

	// A later save does not resurrect the file.
	require.NoError(t, s.HandleSaveDraft(context.Background()))
	assert.Len(t, env.store.uploads, 1)
}

func TestDeletePendingAttachmentIsLocal(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)
	src := sourceNamed("photo.jpg")
	require.NoError(t, s.AddFiles(CategoryEvidence, SubTypeOther, []*FileSource{src}))

	require.NoError(t, s.DeleteAttachment(context.Background(), CategoryEvidence, IdentityOf(src)))
	assert.Empty(t, env.store.deletes)
	assert.Empty(t, s.State().Attachments[CategoryEvidence])
}

func TestDeleteAttachmentFailureIsNotAnUploadError(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)
	setFields(t, s, Fields{FieldWasteOwner: "own-1", FieldWasteType: "wt-1"})
	require.NoError(t, s.AddFiles(CategoryEvidence, SubTypeOther, []*FileSource{sourceNamed("photo.jpg")}))
	require.NoError(t, s.HandleSaveDraft(context.Background()))

	env.store.deleteErr = errors.New("storage unavailable")
	serverID := s.State().Attachments[CategoryEvidence][0].Identity

	err := s.DeleteAttachment(context.Background(), CategoryEvidence, serverID)
	var derr *DeleteError
	require.ErrorAs(t, err, &derr)
	var uerr *UploadError
	assert.False(t, errors.As(err, &uerr))
	assert.NotContains(t, derr.Error(), "upload")

	// The file stays, marked errored, so the delete can be retried.
	views := s.State().Attachments[CategoryEvidence]
	require.Len(t, views, 1)
	assert.Equal(t, FileError, views[0].Status)
}

func TestDeleteAttachmentRespectsDeclinedConfirmation(t *testing.T) {
	env := newTestEnv()
	deps := env.deps()
	deps.Confirm = declineConfirm
	s, err := NewCreateSession(deps)
	require.NoError(t, err)

	src := sourceNamed("photo.jpg")
	require.NoError(t, s.AddFiles(CategoryEvidence, SubTypeOther, []*FileSource{src}))
	require.NoError(t, s.DeleteAttachment(context.Background(), CategoryEvidence, IdentityOf(src)))

	// Declined: the file stays.
	assert.Len(t, s.State().Attachments[CategoryEvidence], 1)
}

func TestRedoCreateResetsEverything(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)
	setFields(t, s, Fields{FieldWasteOwner: "own-1", FieldWasteType: "wt-1"})
	require.NoError(t, s.HandleSaveDraft(context.Background()))
	require.NotEmpty(t, s.DraftID())

	confirmed, err := s.HandleRedo(context.Background())
	require.NoError(t, err)
	assert.True(t, confirmed)

	state := s.State()
	assert.Empty(t, state.Fields["wasteOwner"])
	assert.Empty(t, s.DraftID())
	assert.Equal(t, StepClassification, s.CurrentStep())

	// The next save starts a brand new draft.
	setFields(t, s, Fields{FieldWasteOwner: "own-2", FieldWasteType: "wt-2"})
	require.NoError(t, s.HandleSaveDraft(context.Background()))
	assert.Equal(t, 2, env.persistence.createCalls)
}

func TestRedoDeclinedKeepsState(t *testing.T) {
	env := newTestEnv()
	deps := env.deps()
	deps.Confirm = declineConfirm
	s, err := NewCreateSession(deps)
	require.NoError(t, err)
	setFields(t, s, Fields{FieldWasteOwner: "own-1"})

	confirmed, err := s.HandleRedo(context.Background())
	require.NoError(t, err)
	assert.False(t, confirmed)
	assert.Equal(t, "own-1", s.State().Fields["wasteOwner"])
}

func TestCancelClosesWithoutPersistence(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)
	setFields(t, s, Fields{FieldWasteOwner: "own-1"})

	confirmed, err := s.HandleCancel(context.Background())
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.True(t, s.Closed())
	assert.Zero(t, env.persistence.createCalls)
}

func TestEditSessionHydratesAndDiffsAgainstServerState(t *testing.T) {
	env := newTestEnv()
	env.loader.existing = &ExistingDraft{
		Fields: Fields{
			FieldWasteOwner:        "own-1",
			FieldWasteType:         "wt-1",
			FieldCollectedVolumeKg: 120.5,
			FieldVehiclePlate:      "AB123CD",
		},
		Attachments: map[Category][]ExistingAttachment{
			CategoryEvidence: {{ID: "srv-7", SubType: SubTypeWeighingSlip, Name: "slip.jpg", PreviewURL: "https://files.test/slip.jpg"}},
		},
	}

	s, err := NewEditSession(context.Background(), env.deps(), "draft-9")
	require.NoError(t, err)
	assert.Equal(t, ModeEdit, s.Mode())
	assert.Equal(t, "draft-9", s.DraftID())

	views := s.State().Attachments[CategoryEvidence]
	require.Len(t, views, 1)
	assert.Equal(t, "srv-7", views[0].Identity)
	assert.Equal(t, FileUploaded, views[0].Status)

	// Saving with nothing touched is a complete no-op.
	require.NoError(t, s.HandleSaveDraft(context.Background()))
	assert.Zero(t, env.persistence.createCalls)
	assert.Zero(t, env.persistence.updateCalls)
	assert.Zero(t, env.store.callCount())

	// An edit produces a minimal partial against the loaded snapshot.
	require.NoError(t, s.HandleFieldChange(FieldVehiclePlate, "ZZ999ZZ"))
	require.NoError(t, s.HandleSaveDraft(context.Background()))
	assert.Equal(t, 1, env.persistence.updateCalls)
	require.Len(t, env.persistence.lastUpdate, 1)
	assert.Equal(t, "ZZ999ZZ", env.persistence.lastUpdate["vehiclePlate"])
}

func TestEditSessionRedoReloadsServerState(t *testing.T) {
	env := newTestEnv()
	env.loader.existing = &ExistingDraft{
		Fields: Fields{FieldWasteOwner: "own-1", FieldWasteType: "wt-1"},
	}

	s, err := NewEditSession(context.Background(), env.deps(), "draft-9")
	require.NoError(t, err)
	require.NoError(t, s.HandleFieldChange(FieldWasteOwner, "own-2"))

	confirmed, err := s.HandleRedo(context.Background())
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.Equal(t, 2, env.loader.loadCalls)
	assert.Equal(t, "own-1", s.State().Fields["wasteOwner"])
	assert.Equal(t, "draft-9", s.DraftID())
}

func TestEditSessionRequiresLoaderAndDraftID(t *testing.T) {
	env := newTestEnv()
	deps := env.deps()

	_, err := NewEditSession(context.Background(), deps, "")
	assert.Error(t, err)

	deps.Loader = nil
	_, err = NewEditSession(context.Background(), deps, "draft-9")
	assert.Error(t, err)
}

func TestManagerOwnership(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)

	m := NewManager()
	id := m.Put("user-1", s)

	got, err := m.Get("user-1", id)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get("user-2", id)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	m.Drop(id)
	_, err = m.Get("user-1", id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStateSnapshotIsACopy(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)
	setFields(t, s, Fields{FieldWasteOwner: "own-1"})

	state := s.State()
	state.Fields["wasteOwner"] = "tampered"
	state.Errors["injected"] = "x"

	fresh := s.State()
	assert.Equal(t, "own-1", fresh.Fields["wasteOwner"])
	assert.NotContains(t, fresh.Errors, "injected")
}

func TestSelectedNames(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)
	setFields(t, s, Fields{
		FieldWasteOwner:     "own-1",
		FieldPickupLocation: "loc-2",
	})

	rd := &ReferenceData{
		WasteOwners:     []RefOption{{ID: "own-1", Name: "Acme Disposal"}},
		PickupLocations: []RefOption{{ID: "loc-1", Name: "North Yard"}, {ID: "loc-2", Name: "South Yard"}},
	}

	names := s.SelectedNames(rd)
	assert.Equal(t, "Acme Disposal", names["wasteOwner"])
	assert.Equal(t, "South Yard", names["pickupLocation"])
}

func TestSaveDraftUsesDayGranularityForDates(t *testing.T) {
	env := newTestEnv()
	s := env.createSession(t)
	setFields(t, s, Fields{
		FieldWasteOwner: "own-1",
		FieldWasteType:  "wt-1",
	})
	require.NoError(t, s.HandleFieldChange(FieldCollectionDate, time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, s.HandleSaveDraft(context.Background()))
	assert.Equal(t, "14/03/2026", env.persistence.lastCreate["collectionDate"])

	// Re-selecting the same calendar date is not a change worth an update.
	require.NoError(t, s.HandleFieldChange(FieldCollectionDate, time.Date(2026, 3, 14, 17, 30, 0, 0, time.UTC)))
	require.NoError(t, s.HandleSaveDraft(context.Background()))
	assert.Zero(t, env.persistence.updateCalls)
}
