package session

import (
	"time"
)

// Payload is the wire-level representation sent to persistence. In create
// mode it carries every tracked field; in edit mode only the changed ones.
// For an update, an omitted key means "leave unchanged" and an explicit nil
// means "clear".
type Payload map[string]any

// LocationRef is the structured form a location reference is sent as.
type LocationRef struct {
	RefID string `json:"refId" bson:"refId"`
}

// wireValue serializes one field into its payload key and value.
//
// Conventions, all inherited from the remote contract:
//   - the selected waste owner id is sent as a single-element id list;
//   - the pickup location is sent as a {refId} object;
//   - dates are sent as dd/mm/yyyy strings;
//   - optional numerics use "value || null": any falsy value becomes null
//     (see numericOrNullFields — the 0-conflation is a kept quirk);
//   - empty strings become null.
func wireValue(field Field, v any) (string, any) {
	switch {
	case field == FieldWasteOwner:
		if s, _ := v.(string); s != "" {
			return "wasteOwnerIds", []string{s}
		}
		return "wasteOwnerIds", nil

	case field == FieldPickupLocation:
		if s, _ := v.(string); s != "" {
			return string(field), LocationRef{RefID: s}
		}
		return string(field), nil

	case dateFields[field]:
		if t, ok := v.(time.Time); ok && !t.IsZero() {
			return string(field), t.Format(dateLayout)
		}
		return string(field), nil

	case numericOrNullFields[field]:
		if n := (Fields{field: v}).Num(field); n != 0 {
			return string(field), n
		}
		return string(field), nil

	case field == FieldStockpiled:
		b, _ := v.(bool)
		return string(field), b

	default:
		switch val := v.(type) {
		case nil:
			return string(field), nil
		case string:
			if val == "" {
				return string(field), nil
			}
			return string(field), val
		default:
			return string(field), val
		}
	}
}

// BuildCreatePayload emits every tracked field with defaults applied.
func BuildCreatePayload(fields Fields) Payload {
	p := make(Payload, len(allFields))
	for _, f := range allFields {
		key, val := wireValue(f, fields[f])
		p[key] = val
	}
	return p
}

// BuildUpdatePayload emits only the fields whose normalized value differs
// from the original snapshot. Everything else is omitted — omission, not
// nullification, is the "unchanged" signal.
func BuildUpdatePayload(fields Fields, original *OriginalSnapshot) Payload {
	p := Payload{}
	for _, f := range ChangedFields(fields, original) {
		key, val := wireValue(f, fields[f])
		p[key] = val
	}
	return p
}

// FieldsFromWire is the inverse of wireValue: it converts a stored payload
// document back into form-state fields, used when hydrating an edit session.
// Unknown keys are ignored; nulls stay absent.
func FieldsFromWire(wire map[string]any) Fields {
	fields := Fields{}

	if owners := anySlice(wire["wasteOwnerIds"]); len(owners) > 0 {
		if id, ok := owners[0].(string); ok && id != "" {
			fields[FieldWasteOwner] = id
		}
	}
	if ref := anyMap(wire["pickupLocation"]); ref != nil {
		if id, ok := ref["refId"].(string); ok && id != "" {
			fields[FieldPickupLocation] = id
		}
	}

	for _, f := range allFields {
		if f == FieldWasteOwner || f == FieldPickupLocation {
			continue
		}
		raw, ok := wire[string(f)]
		if !ok || raw == nil {
			continue
		}
		switch {
		case numericOrNullFields[f]:
			fields[f] = (Fields{f: raw}).Num(f)
		default:
			// Covers date parsing and keeps non-scalar junk out of the
			// form state.
			if val, err := CoerceValue(f, raw); err == nil && val != nil {
				fields[f] = val
			}
		}
	}
	return fields
}

// anySlice tolerates both the JSON and BSON decodings of an array.
func anySlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	}
	return nil
}

// anyMap tolerates both the JSON and BSON decodings of a sub-document.
func anyMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case LocationRef:
		return map[string]any{"refId": m.RefID}
	}
	return nil
}
