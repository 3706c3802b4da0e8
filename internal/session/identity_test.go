package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdentityOf(t *testing.T) {
	src := &FileSource{
		Name:         "slip.jpg",
		Size:         2048,
		LastModified: time.UnixMilli(1700000000000),
	}
	assert.Equal(t, "slip.jpg:2048:1700000000000", IdentityOf(src))

	// Same name and size but a different mtime is a different file.
	other := &FileSource{Name: "slip.jpg", Size: 2048, LastModified: time.UnixMilli(1700000000001)}
	assert.NotEqual(t, IdentityOf(src), IdentityOf(other))
}

func TestIsChangedSingleFile(t *testing.T) {
	a := newPendingFile(CategoryStockpilePhoto, SubTypeNone, &FileSource{Name: "a.jpg"})
	b := newPendingFile(CategoryStockpilePhoto, SubTypeNone, &FileSource{Name: "b.jpg"})

	// No current file, nothing to send.
	assert.False(t, IsChangedSingleFile(nil, nil))
	assert.False(t, IsChangedSingleFile(nil, a))

	// A file where none was, or a different file object, is a change.
	assert.True(t, IsChangedSingleFile(a, nil))
	assert.True(t, IsChangedSingleFile(b, a))

	// The very same tracked object is not.
	assert.False(t, IsChangedSingleFile(a, a))
}

func TestSyncedSets(t *testing.T) {
	s := NewSyncedSets()

	s.Add(CategoryEvidence, "slip.jpg:2048:1")
	assert.True(t, s.Contains(CategoryEvidence, "slip.jpg:2048:1"))
	assert.False(t, s.Contains(CategoryQualityMetricsIn, "slip.jpg:2048:1"))

	s.Remove(CategoryEvidence, "slip.jpg:2048:1")
	assert.False(t, s.Contains(CategoryEvidence, "slip.jpg:2048:1"))

	// Removing from an untouched category must not panic.
	s.Remove(CategoryHazardCertificate, "anything")
}

func TestSyncedSetsIsNewChecksEveryCategory(t *testing.T) {
	s := NewSyncedSets()
	f := newPendingFile(CategoryEvidence, SubTypeOther, &FileSource{
		Name: "photo.jpg", Size: 100, LastModified: time.UnixMilli(1),
	})

	assert.True(t, s.IsNew(f))

	// An identity synced under any category makes the file not-new, even if
	// the file is tracked under a different one.
	s.Add(CategoryQualityMetricsIn, f.Identity)
	assert.False(t, s.IsNew(f))
}
