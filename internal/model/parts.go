package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// PassedParts lists the juz a student has passed. The source sends it either
// as a comma separated string or as a list; both decode to trimmed, non-empty
// tokens and it always encodes as a list.
type PassedParts []string

// ParsePassedParts splits a comma separated parts string.
func ParsePassedParts(s string) PassedParts {
	return canonicalParts(strings.Split(s, ","))
}

func canonicalParts(in []string) PassedParts {
	out := make(PassedParts, 0, len(in))
	for _, p := range in {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// UnmarshalJSON accepts a string, a list of strings or null.
func (p *PassedParts) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*p = PassedParts{}
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = ParsePassedParts(s)
	default:
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*p = canonicalParts(list)
	}
	return nil
}

// MarshalJSON always emits a list, never null.
func (p PassedParts) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(p))
}
