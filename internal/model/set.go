package model

import (
	"encoding/json"
	"sort"
)

// StringSet is a set of strings that serializes as a JSON array with a
// deterministic (sorted) order but whose equality and membership semantics
// are set-like: duplicates are impossible and iteration order is never
// observable through anything but the sorted JSON encoding (I-3).
type StringSet map[string]struct{}

// NewStringSet builds a StringSet from the given members.
func NewStringSet(members ...string) StringSet {
	s := make(StringSet, len(members))
	for _, m := range members {
		if m == "" {
			continue
		}
		s[m] = struct{}{}
	}
	return s
}

// Has reports set membership.
func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Union returns a new set containing every member of both s and o.
func (s StringSet) Union(o StringSet) StringSet {
	out := make(StringSet, len(s)+len(o))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range o {
		out[k] = struct{}{}
	}
	return out
}

// Add returns a new set with v inserted.
func (s StringSet) Add(v string) StringSet {
	return s.Union(NewStringSet(v))
}

// Slice returns the sorted members of s.
func (s StringSet) Slice() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted JSON array.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Slice())
}

// UnmarshalJSON decodes a JSON array into the set.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var members []string
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	*s = NewStringSet(members...)
	return nil
}
