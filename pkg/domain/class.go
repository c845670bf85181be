package domain

import (
	"fmt"
	"sort"
	"strings"
)

// CellClass is a named predicate over cell attributes. Each constrained
// attribute maps to a set of accepted values with OR semantics across the
// set; a cell matches iff every constrained attribute's value is a member
// of its accepted set. An attribute the class does not constrain always
// matches, including on cells that never recorded it.
type CellClass struct {
	criteria map[string][]any
	label    string
	subtitle string
}

// NewCellClass builds a class from a criteria mapping. Each value may be a
// scalar (exact equality) or a slice of scalars (set membership).
func NewCellClass(criteria map[string]any) CellClass {
	cc := CellClass{criteria: make(map[string][]any, len(criteria))}
	for key, value := range criteria {
		cc.criteria[key] = acceptedValues(value)
	}
	cc.label, cc.subtitle = deriveDisplay(cc.criteria)
	return cc
}

// WithDisplay overrides the derived display tuple.
func (c CellClass) WithDisplay(label, subtitle string) CellClass {
	c.label = label
	c.subtitle = subtitle
	return c
}

// Match reports whether the cell satisfies every constrained attribute.
func (c CellClass) Match(cell Cell) bool {
	for key, accepted := range c.criteria {
		value, _ := cell.Attribute(key)
		if !memberOf(accepted, value) {
			return false
		}
	}
	return true
}

// Key returns the canonical identifier for the class, stable across runs
// for identical criteria and display overrides.
func (c CellClass) Key() string {
	keys := make([]string, 0, len(c.criteria))
	for k := range c.criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys)+1)
	if c.label != "" {
		parts = append(parts, c.label)
	}
	for _, k := range keys {
		vals := make([]string, len(c.criteria[k]))
		for i, v := range c.criteria[k] {
			vals[i] = fmt.Sprint(v)
		}
		parts = append(parts, k+"="+strings.Join(vals, "|"))
	}
	return strings.Join(parts, ",")
}

// Display returns the (label, subtitle) tuple used for grid headers.
func (c CellClass) Display() (string, string) {
	return c.label, c.subtitle
}

// Criteria returns a copy of the constrained attributes.
func (c CellClass) Criteria() map[string][]any {
	out := make(map[string][]any, len(c.criteria))
	for k, v := range c.criteria {
		out[k] = append([]any(nil), v...)
	}
	return out
}

func (c CellClass) String() string {
	if c.subtitle == "" {
		return c.label
	}
	return c.label + " " + c.subtitle
}

func acceptedValues(value any) []any {
	switch v := value.(type) {
	case []any:
		return append([]any(nil), v...)
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return []any{value}
	}
}

func memberOf(accepted []any, value any) bool {
	for _, a := range accepted {
		if a == value {
			return true
		}
	}
	return false
}

// deriveDisplay builds the canonical display tuple from constrained
// attributes: the layer becomes the short label, remaining constraints
// join into the subtitle.
func deriveDisplay(criteria map[string][]any) (string, string) {
	var label string
	var rest []string
	if layers, ok := criteria[AttrNeuroLayer]; ok && len(layers) > 0 {
		label = "L" + fmt.Sprint(layers[0])
	}
	for _, key := range []string{AttrCreType, AttrPyramidal, AttrDendrite, AttrSpecies} {
		values, ok := criteria[key]
		if !ok {
			continue
		}
		switch key {
		case AttrPyramidal:
			if len(values) == 1 {
				if b, ok := values[0].(bool); ok {
					if b {
						rest = append(rest, "pyr")
					} else {
						rest = append(rest, "nonpyr")
					}
					continue
				}
			}
			fallthrough
		default:
			parts := make([]string, len(values))
			for i, v := range values {
				parts[i] = fmt.Sprint(v)
			}
			rest = append(rest, strings.Join(parts, "/"))
		}
	}
	if label == "" && len(rest) > 0 {
		label, rest = rest[0], rest[1:]
	}
	return label, strings.Join(rest, "\n")
}
