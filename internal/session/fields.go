package session

import (
	"fmt"
	"time"
)

// Field names a business field of the collection record form. The string
// values double as error-map keys and wire keys.
type Field string

const (
	// Step 1 — classification
	FieldWasteOwner   Field = "wasteOwner"
	FieldWasteType    Field = "wasteType"
	FieldContractType Field = "contractType"
	FieldHazardCode   Field = "hazardCode"

	// Step 2 — collection
	FieldCollectionDate    Field = "collectionDate"
	FieldCollectedVolumeKg Field = "collectedVolumeKg"
	FieldPickupLocation    Field = "pickupLocation"
	FieldVehiclePlate      Field = "vehiclePlate"
	FieldPricePerKg        Field = "pricePerKg"

	// Step 3 — processing
	FieldStockpiled        Field = "stockpiled"
	FieldStockpileVolumeKg Field = "stockpileVolumeKg"
	FieldStockInDate       Field = "stockInDate"
	FieldRecycledVolumeKg  Field = "recycledVolumeKg"

	FieldNotes Field = "notes"
)

// Attachment requirements are reported under pseudo-field keys so the UI can
// surface them next to the corresponding widget.
const (
	ErrKeyEvidencePhotos    = "evidencePhotos"
	ErrKeyStockpilePhoto    = "stockpilePhoto"
	ErrKeyRecycledPhoto     = "recycledPhoto"
	ErrKeyQualityMetricsIn  = "qualityMetricsIn"
	ErrKeyQualityMetricsOut = "qualityMetricsOut"
	ErrKeyHazardCerts       = "hazWasteCertificates"
)

// dateFields are compared and serialized at day granularity.
var dateFields = map[Field]bool{
	FieldCollectionDate: true,
	FieldStockInDate:    true,
}

// numericOrNullFields follow the legacy "value || null" wire convention:
// any falsy value (0, unset) serializes to null. This is intentionally lossy
// for a literal 0 — the remote contract still expects it, so it is preserved
// as a quirk of the payload layer, not fixed here.
var numericOrNullFields = map[Field]bool{
	FieldCollectedVolumeKg: true,
	FieldStockpileVolumeKg: true,
	FieldRecycledVolumeKg:  true,
	FieldPricePerKg:        true,
}

// refFields hold the id of a reference-data item.
var refFields = map[Field]bool{
	FieldWasteOwner:     true,
	FieldWasteType:      true,
	FieldContractType:   true,
	FieldHazardCode:     true,
	FieldPickupLocation: true,
}

// allFields is the tracked field set, iterated in a stable order when
// building payloads.
var allFields = []Field{
	FieldWasteOwner, FieldWasteType, FieldContractType, FieldHazardCode,
	FieldCollectionDate, FieldCollectedVolumeKg, FieldPickupLocation,
	FieldVehiclePlate, FieldPricePerKg,
	FieldStockpiled, FieldStockpileVolumeKg, FieldStockInDate,
	FieldRecycledVolumeKg,
	FieldNotes,
}

// Fields maps field name to current value. Values are strings, float64
// numbers, bools, time.Time dates, or nil. An absent key and a nil value
// mean the same thing.
type Fields map[Field]any

// Clone returns a shallow copy (values are immutable scalars).
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Str returns the string value of a field, "" when unset or not a string.
func (f Fields) Str(field Field) string {
	s, _ := f[field].(string)
	return s
}

// Num returns the numeric value of a field, accepting the numeric types the
// JSON and BSON layers produce.
func (f Fields) Num(field Field) float64 {
	switch v := f[field].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Flag returns the boolean value of a field, false when unset.
func (f Fields) Flag(field Field) bool {
	b, _ := f[field].(bool)
	return b
}

// Date returns the date value of a field and whether it is set.
func (f Fields) Date(field Field) (time.Time, bool) {
	t, ok := f[field].(time.Time)
	return t, ok
}

// CoerceValue maps an incoming value onto the types the form state holds.
// Date fields accept time.Time or their dd/mm/yyyy and RFC 3339 string
// forms; every other field accepts scalars only, so stored values stay
// comparable for diffing. JSON clients can only send strings for dates,
// which is why the string forms are accepted here rather than at the
// transport.
func CoerceValue(field Field, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if dateFields[field] {
		switch val := v.(type) {
		case time.Time:
			return val, nil
		case string:
			if val == "" {
				return nil, nil
			}
			if t, err := time.Parse(dateLayout, val); err == nil {
				return t, nil
			}
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				return t, nil
			}
			return nil, fmt.Errorf("invalid date %q for field %s", val, field)
		default:
			return nil, fmt.Errorf("invalid date value of type %T for field %s", v, field)
		}
	}
	switch v.(type) {
	case string, bool, float64, float32, int, int32, int64, time.Time:
		return v, nil
	}
	return nil, fmt.Errorf("unsupported value type %T for field %s", v, field)
}
