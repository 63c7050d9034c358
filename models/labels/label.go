// Package labels - Class label tables and id resolution.
package labels

import (
	"encoding/json"
	"strconv"
)

// Label is the resolved identity of a detected class.
//
// A Label is either Named, when a label table was available and carried a
// name for the class id, or Raw, when no table was loaded and the numeric
// class id is passed through unchanged. Callers must handle both shapes.
type Label struct {
	id    int
	name  string
	named bool
}

// Named creates a label that carries a class name.
//
// Arguments:
//   - id: The class id the name was resolved from.
//   - name: The class name.
//
// Returns:
//   - Label: The named label.
func Named(id int, name string) Label {
	return Label{id: id, name: name, named: true}
}

// Raw creates a label that carries only the numeric class id.
//
// Arguments:
//   - id: The class id.
//
// Returns:
//   - Label: The raw label.
func Raw(id int) Label {
	return Label{id: id}
}

// IsNamed reports whether the label was resolved to a name.
func (l Label) IsNamed() bool {
	return l.named
}

// Name returns the class name and true for a named label, or "" and false for a raw one.
func (l Label) Name() (string, bool) {
	return l.name, l.named
}

// ID returns the class id the label was resolved from.
func (l Label) ID() int {
	return l.id
}

// String renders the label as its name, or as the decimal class id in raw mode.
func (l Label) String() string {
	if l.named {
		return l.name
	}
	return strconv.Itoa(l.id)
}

// MarshalJSON encodes a named label as a JSON string and a raw label as a JSON number.
func (l Label) MarshalJSON() ([]byte, error) {
	if l.named {
		return json.Marshal(l.name)
	}
	return json.Marshal(l.id)
}
