package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploadCall struct {
	draftID string
	names   []string
	target  UploadTarget
}

// fakeFileStore records every call; reconcile runs jobs concurrently so all
// bookkeeping is behind the mutex.
type fakeFileStore struct {
	mu sync.Mutex

	uploads  []uploadCall
	singles  []string // file names
	replaces []string // replaced server ids
	deletes  []string // deleted server ids

	failCategories  map[Category]bool
	shortCategories map[Category]bool
	deleteErr       error
	nextID          int
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{
		failCategories:  map[Category]bool{},
		shortCategories: map[Category]bool{},
	}
}

func (f *fakeFileStore) issueID() string {
	f.nextID++
	return fmt.Sprintf("srv-%d", f.nextID)
}

func (f *fakeFileStore) UploadFiles(_ context.Context, draftID string, files []*FileSource, target UploadTarget) ([]StoredFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCategories[target.Category] {
		return nil, errors.New("storage unavailable")
	}
	names := make([]string, len(files))
	stored := make([]StoredFile, len(files))
	for i, src := range files {
		names[i] = src.Name
		stored[i] = StoredFile{ID: f.issueID(), Name: src.Name, PreviewURL: "https://files.test/" + src.Name}
	}
	f.uploads = append(f.uploads, uploadCall{draftID: draftID, names: names, target: target})
	if f.shortCategories[target.Category] {
		return stored[:len(stored)-1], nil
	}
	return stored, nil
}

func (f *fakeFileStore) UploadSingleFile(_ context.Context, draftID string, file *FileSource, cat Category) (StoredFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCategories[cat] {
		return StoredFile{}, errors.New("storage unavailable")
	}
	f.singles = append(f.singles, file.Name)
	return StoredFile{ID: f.issueID(), Name: file.Name}, nil
}

func (f *fakeFileStore) ReplaceFile(_ context.Context, fileID string, newFile *FileSource) (StoredFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaces = append(f.replaces, fileID)
	// A replace keeps the server identifier.
	return StoredFile{ID: fileID, Name: newFile.Name}, nil
}

func (f *fakeFileStore) DeleteFile(_ context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, fileID)
	return nil
}

func (f *fakeFileStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads) + len(f.singles) + len(f.replaces)
}

func sourceNamed(name string) *FileSource {
	return &FileSource{Name: name, Size: int64(len(name)), LastModified: time.UnixMilli(1700000000000)}
}

func TestReconcileRequiresDraftID(t *testing.T) {
	o := NewOrchestrator(newFakeFileStore())
	err := o.Reconcile(context.Background(), "", AttachmentGroups{}, NewSyncedSets())
	assert.Error(t, err)
}

func TestReconcileBatchesBySubType(t *testing.T) {
	store := newFakeFileStore()
	o := NewOrchestrator(store)
	synced := NewSyncedSets()

	groups := AttachmentGroups{
		CategoryEvidence: {
			newPendingFile(CategoryEvidence, SubTypeWeighingSlip, sourceNamed("slip-1.jpg")),
			newPendingFile(CategoryEvidence, SubTypeWeighingSlip, sourceNamed("slip-2.jpg")),
			newPendingFile(CategoryEvidence, SubTypeDeliveryReceipt, sourceNamed("receipt.jpg")),
		},
	}

	err := o.Reconcile(context.Background(), "draft-1", groups, synced)
	require.NoError(t, err)

	// One batched call per (category, sub-type) pair actually present.
	require.Len(t, store.uploads, 2)
	bySub := map[SubType][]string{}
	for _, call := range store.uploads {
		assert.Equal(t, "draft-1", call.draftID)
		assert.Equal(t, CategoryEvidence, call.target.Category)
		bySub[call.target.SubType] = call.names
	}
	assert.ElementsMatch(t, []string{"slip-1.jpg", "slip-2.jpg"}, bySub[SubTypeWeighingSlip])
	assert.Equal(t, []string{"receipt.jpg"}, bySub[SubTypeDeliveryReceipt])

	for _, f := range groups[CategoryEvidence] {
		assert.Equal(t, FileUploaded, f.Status)
		assert.NotEmpty(t, f.ServerID)
		assert.True(t, synced.Contains(CategoryEvidence, f.Identity))
		assert.True(t, synced.Contains(CategoryEvidence, f.ServerID))
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	store := newFakeFileStore()
	o := NewOrchestrator(store)
	synced := NewSyncedSets()

	groups := AttachmentGroups{
		CategoryEvidence:      {newPendingFile(CategoryEvidence, SubTypeOther, sourceNamed("photo.jpg"))},
		CategoryRecycledPhoto: {newPendingFile(CategoryRecycledPhoto, SubTypeNone, sourceNamed("recycled.jpg"))},
	}

	require.NoError(t, o.Reconcile(context.Background(), "draft-1", groups, synced))
	first := store.callCount()
	assert.Equal(t, 2, first)

	// Nothing changed since the last pass: zero remote operations.
	require.NoError(t, o.Reconcile(context.Background(), "draft-1", groups, synced))
	assert.Equal(t, first, store.callCount())
}

func TestReconcileSingleSlotNewUpload(t *testing.T) {
	store := newFakeFileStore()
	o := NewOrchestrator(store)

	groups := AttachmentGroups{
		CategoryStockpilePhoto: {newPendingFile(CategoryStockpilePhoto, SubTypeNone, sourceNamed("pile.jpg"))},
	}

	require.NoError(t, o.Reconcile(context.Background(), "draft-1", groups, NewSyncedSets()))
	assert.Equal(t, []string{"pile.jpg"}, store.singles)
	assert.Empty(t, store.replaces)
}

func TestReconcileRoutesReplacement(t *testing.T) {
	store := newFakeFileStore()
	o := NewOrchestrator(store)
	synced := NewSyncedSets()
	synced.Add(CategoryStockpilePhoto, "srv-old")

	replacement := newPendingFile(CategoryStockpilePhoto, SubTypeNone, sourceNamed("pile-v2.jpg"))
	replacement.ReplacesID = "srv-old"
	groups := AttachmentGroups{CategoryStockpilePhoto: {replacement}}

	require.NoError(t, o.Reconcile(context.Background(), "draft-1", groups, synced))

	assert.Equal(t, []string{"srv-old"}, store.replaces)
	assert.Empty(t, store.singles)
	assert.Equal(t, FileUploaded, replacement.Status)
	assert.Empty(t, replacement.ReplacesID)
	// The new bytes keep the server identifier, and no stale entry remains.
	assert.Equal(t, "srv-old", replacement.ServerID)
	assert.True(t, synced.Contains(CategoryStockpilePhoto, replacement.Identity))
}

func TestReconcileSkipsHydratedFiles(t *testing.T) {
	store := newFakeFileStore()
	o := NewOrchestrator(store)
	synced := NewSyncedSets()
	synced.Add(CategoryEvidence, "srv-9")

	groups := AttachmentGroups{
		CategoryEvidence: {hydratedFile(CategoryEvidence, SubTypeOther, "srv-9", "old.jpg", "")},
	}

	require.NoError(t, o.Reconcile(context.Background(), "draft-1", groups, synced))
	assert.Zero(t, store.callCount())
}

func TestReconcileRejectsShortStoreResponse(t *testing.T) {
	store := newFakeFileStore()
	store.shortCategories[CategoryEvidence] = true
	o := NewOrchestrator(store)
	synced := NewSyncedSets()

	files := []*ManagedFile{
		newPendingFile(CategoryEvidence, SubTypeOther, sourceNamed("a.jpg")),
		newPendingFile(CategoryEvidence, SubTypeOther, sourceNamed("b.jpg")),
	}
	groups := AttachmentGroups{CategoryEvidence: files}

	var err error
	require.NotPanics(t, func() {
		err = o.Reconcile(context.Background(), "draft-1", groups, synced)
	})
	var uerr *UploadError
	require.ErrorAs(t, err, &uerr)

	// Nothing from the batch is marked synced on a mismatched response.
	for _, f := range files {
		assert.Equal(t, FileError, f.Status)
		assert.False(t, synced.Contains(CategoryEvidence, f.Identity))
	}
}

func TestReconcileAggregatesFailuresWithoutCancelling(t *testing.T) {
	store := newFakeFileStore()
	store.failCategories[CategoryEvidence] = true
	o := NewOrchestrator(store)
	synced := NewSyncedSets()

	failing := newPendingFile(CategoryEvidence, SubTypeOther, sourceNamed("photo.jpg"))
	passing := newPendingFile(CategoryQualityMetricsIn, SubTypeNone, sourceNamed("in.pdf"))
	groups := AttachmentGroups{
		CategoryEvidence:         {failing},
		CategoryQualityMetricsIn: {passing},
	}

	err := o.Reconcile(context.Background(), "draft-1", groups, synced)
	var uerr *UploadError
	require.ErrorAs(t, err, &uerr)

	// The failure did not stop the sibling call.
	assert.Equal(t, FileError, failing.Status)
	assert.Equal(t, FileUploaded, passing.Status)
	assert.True(t, synced.Contains(CategoryQualityMetricsIn, passing.Identity))
	assert.False(t, synced.Contains(CategoryEvidence, failing.Identity))

	// A retry after the outage re-sends only the failed file.
	store.failCategories[CategoryEvidence] = false
	before := len(store.uploads)
	require.NoError(t, o.Reconcile(context.Background(), "draft-1", groups, synced))
	require.Len(t, store.uploads, before+1)
	assert.Equal(t, []string{"photo.jpg"}, store.uploads[before].names)
	assert.Equal(t, FileUploaded, failing.Status)
}
