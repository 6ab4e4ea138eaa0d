package database

// IDColumn is the conventional primary-key column every collection carries.
const IDColumn = "id"

// Record is a single row of a collection, as returned by an adapter.
// Values are JSON-compatible (string, float64, bool, nil, nested maps/slices).
type Record = map[string]any

// RecordID extracts the primary-key value of a record as a string.
// Returns an empty string when the record has no usable id.
func RecordID(r Record) string {
	v, ok := r[IDColumn]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// CloneRecord returns a deep copy of r, down to nested JSON maps and
// slices. Adapters hand out clones so callers can mutate results without
// corrupting backend state.
func CloneRecord(r Record) Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = cloneValue(v)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = cloneValue(v)
		}
		return out
	default:
		return v
	}
}

// CloneRecords returns a slice of deep copies of rs.
func CloneRecords(rs []Record) []Record {
	if rs == nil {
		return nil
	}
	out := make([]Record, len(rs))
	for i, r := range rs {
		out[i] = CloneRecord(r)
	}
	return out
}

// Principal is the authenticated identity scoping every data access. It is
// threaded explicitly through the facade rather than read from ambient
// context, so cache and coordination keys always embed the owner.
type Principal struct {
	// ID is the stable unique identifier of the user.
	ID string

	// Email is informational only and never used for scoping.
	Email string
}
