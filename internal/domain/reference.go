// internal/domain/reference.go
package domain

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RefKind names one reference-data collection served to the wizard dropdowns.
type RefKind string

const (
	RefContractType   RefKind = "contract_types"
	RefWasteType      RefKind = "waste_types"
	RefHazardCode     RefKind = "hazard_codes"
	RefWasteOwner     RefKind = "waste_owners"
	RefPickupLocation RefKind = "pickup_locations"
)

// RefItem is one dropdown entry. Code carries the external classification
// code where one exists (e.g. hazard codes), empty otherwise.
type RefItem struct {
	ID   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Kind RefKind            `bson:"kind" json:"-"`
	Name string             `bson:"name" json:"name"`
	Code string             `bson:"code,omitempty" json:"code,omitempty"`
}
