package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Orchestrator reconciles the session's attachment groups against the
// server: it decides which files must be uploaded or replaced now, fires
// the calls as one concurrent batch, and records successes in the synced
// sets so a retry never repeats work.
type Orchestrator struct {
	store FileStore
}

func NewOrchestrator(store FileStore) *Orchestrator {
	return &Orchestrator{store: store}
}

// Reconcile brings the server's attachment set in line with the session's.
//
// Multi-file categories are partitioned into "new" (identity absent from
// every synced set) and skipped files, and each (category, sub-type) group
// actually present goes out as its own batched upload so the server can tag
// the files. Single-slot categories issue at most one upload or one replace,
// keyed by whether the file swaps a previously uploaded identifier.
//
// All calls run concurrently; a failure in one does not cancel the others.
// Reconcile returns an *UploadError aggregating every failure after all
// calls have settled. Synced sets are mutated here and nowhere else.
func (o *Orchestrator) Reconcile(ctx context.Context, draftID string, groups AttachmentGroups, synced *SyncedSets) error {
	if draftID == "" {
		return errors.New("reconcile requires a draft id")
	}

	var jobs []func(ctx context.Context) error

	for _, cat := range Categories() {
		files := groups[cat]
		if len(files) == 0 {
			continue
		}
		if IsSingleSlot(cat) {
			if job := o.singleSlotJob(draftID, files, synced); job != nil {
				jobs = append(jobs, job)
			}
			continue
		}
		jobs = append(jobs, o.batchJobs(draftID, cat, files, synced)...)
	}

	if len(jobs) == 0 {
		return nil
	}

	errCh := make(chan error, len(jobs))
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(run func(ctx context.Context) error) {
			defer wg.Done()
			if err := run(ctx); err != nil {
				errCh <- err
			}
		}(job)
	}
	wg.Wait()
	close(errCh)

	var failures []error
	for err := range errCh {
		failures = append(failures, err)
	}
	if len(failures) > 0 {
		return &UploadError{Err: errors.Join(failures...)}
	}
	return nil
}

// batchJobs builds one upload job per (category, sub-type) group that has
// new files.
func (o *Orchestrator) batchJobs(draftID string, cat Category, files []*ManagedFile, synced *SyncedSets) []func(ctx context.Context) error {
	bySub := map[SubType][]*ManagedFile{}
	for _, f := range files {
		if f.Status == FileDeleting || f.Source == nil {
			continue
		}
		if !synced.IsNew(f) {
			continue
		}
		bySub[f.SubType] = append(bySub[f.SubType], f)
	}

	var jobs []func(ctx context.Context) error
	for sub, batch := range bySub {
		target := UploadTarget{Category: cat, SubType: sub}
		batch := batch
		jobs = append(jobs, func(ctx context.Context) error {
			sources := make([]*FileSource, len(batch))
			for i, f := range batch {
				f.Status = FileUploading
				sources[i] = f.Source
			}
			stored, err := o.store.UploadFiles(ctx, draftID, sources, target)
			if err != nil {
				for _, f := range batch {
					f.Status = FileError
				}
				return fmt.Errorf("upload %s/%s: %w", target.Category, target.SubType, err)
			}
			if len(stored) != len(batch) {
				for _, f := range batch {
					f.Status = FileError
				}
				return fmt.Errorf("upload %s/%s: sent %d files, got %d records back",
					target.Category, target.SubType, len(batch), len(stored))
			}
			for i, f := range batch {
				markUploaded(f, stored[i], synced)
			}
			return nil
		})
	}
	return jobs
}

// singleSlotJob decides between replace and new upload for a single-slot
// category. Files hydrated from the server (or already pushed by an earlier
// pass) need nothing.
func (o *Orchestrator) singleSlotJob(draftID string, files []*ManagedFile, synced *SyncedSets) func(ctx context.Context) error {
	f := files[0]
	if f.Status == FileDeleting || f.Source == nil || !synced.IsNew(f) {
		return nil
	}

	if f.ReplacesID != "" {
		return func(ctx context.Context) error {
			f.Status = FileUploading
			stored, err := o.store.ReplaceFile(ctx, f.ReplacesID, f.Source)
			if err != nil {
				f.Status = FileError
				return fmt.Errorf("replace %s: %w", f.Category, err)
			}
			// The old identifier no longer represents these bytes.
			synced.Remove(f.Category, f.ReplacesID)
			markUploaded(f, stored, synced)
			return nil
		}
	}

	return func(ctx context.Context) error {
		f.Status = FileUploading
		stored, err := o.store.UploadSingleFile(ctx, draftID, f.Source, f.Category)
		if err != nil {
			f.Status = FileError
			return fmt.Errorf("upload %s: %w", f.Category, err)
		}
		markUploaded(f, stored, synced)
		return nil
	}
}

// markUploaded finalizes a file after a successful call. Both the pre-upload
// identity and the server id go into the synced set, so neither a retried
// reconcile nor a later hydration sees the file as new.
func markUploaded(f *ManagedFile, stored StoredFile, synced *SyncedSets) {
	synced.Add(f.Category, f.Identity)
	synced.Add(f.Category, stored.ID)
	f.ServerID = stored.ID
	f.PreviewURL = stored.PreviewURL
	f.Status = FileUploaded
	f.ReplacesID = ""
}
