package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// StringList is a JSON field that may be sent as a single string or a list.
// A one-element list is written back as a bare string.
type StringList []string

func (s StringList) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]string(s))
}

func (s *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*s = nil
		} else {
			*s = StringList{single}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*s = StringList(list)
	return nil
}

// Copy returns an independent copy.
func (s StringList) Copy() StringList {
	if s == nil {
		return nil
	}
	out := make(StringList, len(s))
	copy(out, s)
	return out
}

func (s StringList) Contains(v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

// Unique returns the distinct values in sorted order.
func Unique(values []string) []string {
	out := Dedupe(values)
	sort.Strings(out)
	return out
}

// Dedupe drops repeated values, keeping the first occurrence of each in
// input order.
func Dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
