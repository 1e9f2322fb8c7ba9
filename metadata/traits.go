package metadata

import (
	"strings"

	"weavemint.dev/weavemint/fault"
)

// Trait is one named attribute of a token.
type Trait struct {
	Name  string
	Value string
}

// TraitRecord is an ordered list of traits. Names need not be unique; the i-th
// name pairs with the i-th value by position.
type TraitRecord []Trait

// Names returns the trait names in order.
func (r TraitRecord) Names() []string {
	out := make([]string, len(r))
	for i, t := range r {
		out[i] = t.Name
	}
	return out
}

// Values returns the trait values in order.
func (r TraitRecord) Values() []string {
	out := make([]string, len(r))
	for i, t := range r {
		out[i] = t.Value
	}
	return out
}

// ParseTrait parses "Name=Value". The value may contain '='.
func ParseTrait(s string) (Trait, error) {
	const op = "metadata.parse_trait"
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return Trait{}, fault.Newf(fault.KindInvalid, op, "trait %q: expected Name=Value", s)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Trait{}, fault.Newf(fault.KindInvalid, op, "trait %q: empty name", s)
	}
	return Trait{Name: name, Value: value}, nil
}

// ParseTraits parses each entry with ParseTrait, keeping order.
func ParseTraits(entries []string) (TraitRecord, error) {
	out := make(TraitRecord, 0, len(entries))
	for _, e := range entries {
		t, err := ParseTrait(e)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
