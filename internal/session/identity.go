package session

import (
	"fmt"
	"sync"
	"time"
)

// FileStatus tracks one attachment through its upload lifecycle.
type FileStatus string

const (
	FilePending   FileStatus = "pending"
	FileUploading FileStatus = "uploading"
	FileUploaded  FileStatus = "uploaded"
	FileError     FileStatus = "error"
	FileDeleting  FileStatus = "deleting"
)

// FileSource is the binary payload reference for a not-yet-uploaded file.
type FileSource struct {
	Name         string
	Size         int64
	LastModified time.Time
	ContentType  string
	Data         []byte
}

// IdentityOf derives the session-local identity of an unsent file from its
// name, size and modification time. Collision-resistant enough for one
// wizard instance; once uploaded the server-issued id takes over.
func IdentityOf(src *FileSource) string {
	return fmt.Sprintf("%s:%d:%d", src.Name, src.Size, src.LastModified.UnixMilli())
}

// ManagedFile is one attachment plus the state the reconciler needs.
type ManagedFile struct {
	Identity string
	Status   FileStatus
	Category Category
	SubType  SubType

	// Source is present while Status is pending, uploading or error.
	Source *FileSource

	// ServerID is the server-issued file id, set once uploaded (or at
	// hydration time for files loaded from an existing draft).
	ServerID string

	// PreviewURL is a signed download URL supplied at hydration time.
	PreviewURL string

	// ReplacesID holds the server id of the previously uploaded file this
	// one swaps out. Empty for brand-new uploads.
	ReplacesID string
}

// newPendingFile wraps a user-picked file.
func newPendingFile(cat Category, sub SubType, src *FileSource) *ManagedFile {
	return &ManagedFile{
		Identity: IdentityOf(src),
		Status:   FilePending,
		Category: cat,
		SubType:  sub,
		Source:   src,
	}
}

// hydratedFile wraps a file that already exists server-side.
func hydratedFile(cat Category, sub SubType, serverID, name, previewURL string) *ManagedFile {
	return &ManagedFile{
		Identity:   serverID,
		Status:     FileUploaded,
		Category:   cat,
		SubType:    sub,
		ServerID:   serverID,
		PreviewURL: previewURL,
		Source:     &FileSource{Name: name},
	}
}

// IsChangedSingleFile reports whether a single-slot attachment needs a
// server round trip: true iff current is set and is not the very same file
// object that was tracked before. Re-rendering the same *ManagedFile never
// counts as a change.
func IsChangedSingleFile(current, original *ManagedFile) bool {
	if current == nil {
		return false
	}
	return original == nil || current != original
}

// SyncedSets tracks, per category, the identities already represented
// server-side. Each FormSession owns exactly one instance; it is mutated
// only by the reconciler on successful calls, and at hydration time.
type SyncedSets struct {
	mu         sync.Mutex
	byCategory map[Category]map[string]struct{}
}

func NewSyncedSets() *SyncedSets {
	return &SyncedSets{byCategory: make(map[Category]map[string]struct{})}
}

// Add marks an identity as synced under a category.
func (s *SyncedSets) Add(cat Category, identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.byCategory[cat]
	if !ok {
		set = make(map[string]struct{})
		s.byCategory[cat] = set
	}
	set[identity] = struct{}{}
}

// Remove drops an identity, e.g. after an explicit delete.
func (s *SyncedSets) Remove(cat Category, identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byCategory[cat], identity)
}

// Contains reports whether the identity is synced under the category.
func (s *SyncedSets) Contains(cat Category, identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byCategory[cat][identity]
	return ok
}

// IsNew reports whether the file is absent from every category's synced
// set. Files hydrated from the server are never new; retried saves skip
// anything a previous pass already pushed.
func (s *SyncedSets) IsNew(f *ManagedFile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, set := range s.byCategory {
		if _, ok := set[f.Identity]; ok {
			return false
		}
	}
	return true
}
