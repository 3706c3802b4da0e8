// internal/domain/record.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecordStatus tracks a collection record through its lifecycle.
type RecordStatus string

const (
	StatusDraft     RecordStatus = "draft"     // Being built by an operator, mutable
	StatusSubmitted RecordStatus = "submitted" // Sent for review, awaiting approval
	StatusApproved  RecordStatus = "approved"
	StatusRejected  RecordStatus = "rejected" // Returned to the operator with a reason
)

// CollectionRecord is one waste-collection report. While in draft status its
// Fields document is updated piecemeal by the session engine: an update sets
// only the keys that changed, everything else is left as stored.
type CollectionRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedBy primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	Status    RecordStatus       `bson:"status" json:"status"`

	// Business fields in their wire form (dates as dd/mm/yyyy strings,
	// optional numerics as null, owner as an id list). The session engine
	// owns the shape; the repository treats it as opaque.
	Fields map[string]any `bson:"fields" json:"fields"`

	RejectReason string `bson:"rejectReason,omitempty" json:"rejectReason,omitempty"`

	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt" json:"updatedAt"`
	SubmittedAt *time.Time `bson:"submittedAt,omitempty" json:"submittedAt,omitempty"`
	ReviewedAt  *time.Time `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	ReviewedBy  *primitive.ObjectID `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
}

// CanTransitionTo reports whether the status change is a legal lifecycle move.
func (r *CollectionRecord) CanTransitionTo(next RecordStatus) bool {
	switch r.Status {
	case StatusDraft:
		return next == StatusSubmitted
	case StatusSubmitted:
		return next == StatusApproved || next == StatusRejected
	case StatusRejected:
		// A rejected record goes back to draft for rework.
		return next == StatusDraft || next == StatusSubmitted
	default:
		return false
	}
}
