// internal/domain/file.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StoredFile holds the metadata for one attachment registered under a
// collection record. The bytes themselves live in object storage under
// ObjectKey; replacing a file swaps the bytes under the same key and id.
type StoredFile struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RecordID    primitive.ObjectID `bson:"recordId" json:"recordId"`
	Category    string             `bson:"category" json:"category"`
	SubType     string             `bson:"subType,omitempty" json:"subType,omitempty"`
	ObjectKey   string             `bson:"objectKey" json:"-"`
	FileName    string             `bson:"fileName" json:"fileName"`
	ContentType string             `bson:"contentType,omitempty" json:"contentType,omitempty"`
	Size        int64              `bson:"size" json:"size"`
	UploadedAt  time.Time          `bson:"uploadedAt" json:"uploadedAt"`
	ReplacedAt  *time.Time         `bson:"replacedAt,omitempty" json:"replacedAt,omitempty"`
}
