package session

import (
	"time"
)

// dateLayout is the canonical day-granularity serialization for date fields.
// Comparing through this form means re-selecting the same calendar date never
// registers as a change, whatever the time-of-day on the value.
const dateLayout = "02/01/2006"

// Normalize maps a field value into its canonical comparison form:
// nil, the empty string and an unset key all collapse to nil; dates collapse
// to their dd/mm/yyyy day form; numbers collapse to float64.
func Normalize(field Field, v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if val == "" {
			return nil
		}
		return val
	case time.Time:
		if val.IsZero() {
			return nil
		}
		return val.Format(dateLayout)
	case bool:
		return val
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	default:
		return val
	}
}

// OriginalSnapshot is the server truth captured once at load time (edit
// mode) or right after the first successful create. It is never mutated
// afterwards and is the sole basis for diffing.
type OriginalSnapshot struct {
	fields     Fields
	identities map[Category]map[string]struct{}
}

// NewSnapshot captures the given state. The fields map is cloned so later
// session edits cannot leak into the snapshot.
func NewSnapshot(fields Fields, identities map[Category][]string) *OriginalSnapshot {
	ids := make(map[Category]map[string]struct{}, len(identities))
	for cat, list := range identities {
		set := make(map[string]struct{}, len(list))
		for _, id := range list {
			set[id] = struct{}{}
		}
		ids[cat] = set
	}
	return &OriginalSnapshot{fields: fields.Clone(), identities: ids}
}

// FieldValue returns the original value of a field.
func (o *OriginalSnapshot) FieldValue(field Field) any {
	return o.fields[field]
}

// HasAttachment reports whether the identity existed server-side at capture.
func (o *OriginalSnapshot) HasAttachment(cat Category, identity string) bool {
	_, ok := o.identities[cat][identity]
	return ok
}

// FieldChanged reports whether the current value differs from the original
// after normalization.
func FieldChanged(field Field, current any, original *OriginalSnapshot) bool {
	return Normalize(field, current) != Normalize(field, original.FieldValue(field))
}

// ChangedFields returns, in tracked-field order, every field whose
// normalized current value differs from the snapshot. A field is in the
// result iff it genuinely changed — unchanged fields are omitted, never
// nulled.
func ChangedFields(current Fields, original *OriginalSnapshot) []Field {
	var changed []Field
	for _, f := range allFields {
		if FieldChanged(f, current[f], original) {
			changed = append(changed, f)
		}
	}
	return changed
}
