package model

import (
	"encoding/json"
	"strings"
)

// Flex is a JSON scalar that extraction backends may return as a string,
// number, bool, or null. Vision models do not reliably stick to one type,
// so every loosely-typed certificate field decodes through Flex and is
// coerced downstream by the parser.
type Flex struct {
	raw string
	set bool
}

// NewFlex returns a set Flex holding the given text.
func NewFlex(s string) Flex {
	return Flex{raw: s, set: true}
}

func (f *Flex) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*f = Flex{}
		return nil
	}
	if s[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = Flex{raw: strings.TrimSpace(v), set: true}
		return nil
	}
	*f = Flex{raw: s, set: true}
	return nil
}

func (f Flex) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.raw)
}

// Value returns the scalar as text and whether it was present and non-empty.
func (f Flex) Value() (string, bool) {
	if !f.set || f.raw == "" {
		return "", false
	}
	return f.raw, true
}

// String returns the scalar as text, empty when absent.
func (f Flex) String() string {
	return f.raw
}

// IsSet reports whether the field was present and non-null.
func (f Flex) IsSet() bool {
	return f.set && f.raw != ""
}
