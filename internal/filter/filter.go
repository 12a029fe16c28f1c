// Package filter builds immutable filter snapshots that parameterize a
// single data fetch.
package filter

import (
	"net/url"
	"sort"
	"strings"
)

// Snapshot maps filter-field names to selected values. A field present in a
// snapshot always carries a non-empty value. The zero value is the empty
// snapshot.
type Snapshot struct {
	fields map[string]string
}

// Apply strips blank fields and values and returns a new snapshot.
func Apply(fields map[string]string) Snapshot {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return Snapshot{}
	}
	return Snapshot{fields: out}
}

// Clear returns the empty snapshot.
func Clear() Snapshot {
	return Snapshot{}
}

// FromQuery builds a snapshot from URL query values, keeping the first value
// of each key.
func FromQuery(q url.Values) Snapshot {
	fields := make(map[string]string, len(q))
	for k, vs := range q {
		if len(vs) > 0 {
			fields[k] = vs[0]
		}
	}
	return Apply(fields)
}

// Get returns the value of a field.
func (s Snapshot) Get(key string) (string, bool) {
	v, ok := s.fields[key]
	return v, ok
}

// Len returns the number of fields.
func (s Snapshot) Len() int {
	return len(s.fields)
}

// IsEmpty reports whether the snapshot has no fields.
func (s Snapshot) IsEmpty() bool {
	return len(s.fields) == 0
}

// Fields returns a copy of the field map.
func (s Snapshot) Fields() map[string]string {
	out := make(map[string]string, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out
}

// Equal reports set-equality over (field, value) pairs.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.fields) != len(o.fields) {
		return false
	}
	for k, v := range s.fields {
		if ov, ok := o.fields[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Query encodes the snapshot as URL query parameters.
func (s Snapshot) Query() url.Values {
	q := make(url.Values, len(s.fields))
	for k, v := range s.fields {
		q.Set(k, v)
	}
	return q
}

// String returns the canonical query encoding, sorted by key.
func (s Snapshot) String() string {
	return s.Query().Encode()
}

// Keys returns the field names in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.fields))
	for k := range s.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
