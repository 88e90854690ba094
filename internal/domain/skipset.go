package domain

import (
	"encoding/json"
	"sort"
)

// SkipSet is an immutable set of sources already tried for an identifier.
// Callers persist it between acquisition calls to continue a waterfall without
// re-trying failed sources. The zero value is an empty set.
type SkipSet struct {
	m map[SourceName]struct{}
}

// NewSkipSet builds a skip set from source names.
func NewSkipSet(names ...SourceName) SkipSet {
	if len(names) == 0 {
		return SkipSet{}
	}
	m := make(map[SourceName]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return SkipSet{m: m}
}

// ParseSkipSet parses a list of source tokens. Unknown tokens are rejected.
func ParseSkipSet(tokens []string) (SkipSet, error) {
	names := make([]SourceName, 0, len(tokens))
	for _, t := range tokens {
		n, err := ParseSourceName(t)
		if err != nil {
			return SkipSet{}, err
		}
		names = append(names, n)
	}
	return NewSkipSet(names...), nil
}

// Contains reports whether the set holds name.
func (s SkipSet) Contains(name SourceName) bool {
	_, ok := s.m[name]
	return ok
}

// Len returns the number of sources in the set.
func (s SkipSet) Len() int {
	return len(s.m)
}

// With returns a new set containing s plus names. s is not modified.
func (s SkipSet) With(names ...SourceName) SkipSet {
	m := make(map[SourceName]struct{}, len(s.m)+len(names))
	for n := range s.m {
		m[n] = struct{}{}
	}
	for _, n := range names {
		m[n] = struct{}{}
	}
	return SkipSet{m: m}
}

// Union returns a new set containing the sources of both sets.
func (s SkipSet) Union(other SkipSet) SkipSet {
	return s.With(other.Names()...)
}

// Names returns the sources sorted by token.
func (s SkipSet) Names() []SourceName {
	out := make([]SourceName, 0, len(s.m))
	for n := range s.m {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted token list form of the set.
func (s SkipSet) Strings() []string {
	names := s.Names()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}

// MarshalJSON encodes the set as a sorted list of tokens.
func (s SkipSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON decodes a list of tokens.
func (s *SkipSet) UnmarshalJSON(data []byte) error {
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return err
	}
	parsed, err := ParseSkipSet(tokens)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
