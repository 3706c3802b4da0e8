package repository

import (
	"context"

	"ecotrack/waste-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// RecordRepository defines the interface for collection record persistence.
// UpdateFields sets only the given keys inside the record's Fields document;
// keys absent from the map are left as stored, explicit nils clear.
type RecordRepository interface {
	Create(ctx context.Context, record *domain.CollectionRecord) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.CollectionRecord, error)
	UpdateFields(ctx context.Context, id primitive.ObjectID, fields map[string]any) error
	SetStatus(ctx context.Context, id primitive.ObjectID, from, to domain.RecordStatus, reviewedBy *primitive.ObjectID, rejectReason string) error
	ListByStatus(ctx context.Context, status domain.RecordStatus, createdBy *primitive.ObjectID) ([]domain.CollectionRecord, error)
}

// FileRepository defines the interface for attachment metadata.
type FileRepository interface {
	Create(ctx context.Context, file *domain.StoredFile) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.StoredFile, error)
	GetByRecordID(ctx context.Context, recordID primitive.ObjectID) ([]domain.StoredFile, error)
	ReplaceMeta(ctx context.Context, id primitive.ObjectID, fileName, contentType string, size int64) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// ReferenceRepository serves the dropdown reference data.
type ReferenceRepository interface {
	GetByKind(ctx context.Context, kind domain.RefKind) ([]domain.RefItem, error)
}
