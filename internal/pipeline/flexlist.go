package pipeline

import (
	"encoding/json"
	"strings"
)

// FlexList is a string slice that also unmarshals from a single
// comma-separated string. Model output is inconsistent about which shape it
// emits, so both are accepted.
type FlexList []string

// UnmarshalJSON accepts a JSON array of strings or a scalar string.
func (f *FlexList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = trimNonEmpty(list)
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*f = SplitList(single)
	return nil
}

// SplitList splits a comma-separated string into trimmed, non-empty parts.
// Empty input yields an empty (non-nil) slice.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	return trimNonEmpty(strings.Split(s, ","))
}

func trimNonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
