// internal/domain/user.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles
const (
	RoleOperator Role = "operator" // Creates and submits collection records
	RoleApprover Role = "approver" // Reviews submitted records
	RoleAdmin    Role = "admin"
)

// Permission names the gated actions used by the API layer.
type Permission string

const (
	PermRecordCreate  Permission = "record:create"
	PermRecordEdit    Permission = "record:edit"
	PermRecordSubmit  Permission = "record:submit"
	PermRecordApprove Permission = "record:approve"
	PermRecordList    Permission = "record:list"
)

// rolePermissions is the static role -> permission lookup.
var rolePermissions = map[Role][]Permission{
	RoleOperator: {PermRecordCreate, PermRecordEdit, PermRecordSubmit, PermRecordList},
	RoleApprover: {PermRecordApprove, PermRecordList},
	RoleAdmin:    {PermRecordCreate, PermRecordEdit, PermRecordSubmit, PermRecordApprove, PermRecordList},
}

// HasPermission reports whether the role is allowed the given action.
func (r Role) HasPermission(p Permission) bool {
	for _, granted := range rolePermissions[r] {
		if granted == p {
			return true
		}
	}
	return false
}

// User represents a user in the system.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // Should be unique
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Role         Role               `bson:"role" json:"role"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsApprover reports whether the user can work the review queue.
func (u *User) IsApprover() bool {
	return u.Role.HasPermission(PermRecordApprove)
}
