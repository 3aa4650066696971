// Package domain defines the measurement schema primitives used by sweepcore:
// parameter specs, the interdependency graph, result payloads, and the
// persistence contracts for run storage.
package domain

import "fmt"

// ParamType identifies the storage class of a parameter.
type ParamType string

// Supported storage classes. They determine how finalized values are laid out
// in row records.
const (
	// TypeNumeric stores scalar numbers, one per row.
	TypeNumeric ParamType = "numeric"
	// TypeText stores strings, one per row.
	TypeText ParamType = "text"
	// TypeArray stores whole fixed-shape numeric arrays per row.
	TypeArray ParamType = "array"
)

// KnownParamTypes lists every accepted storage class.
var KnownParamTypes = []ParamType{TypeNumeric, TypeText, TypeArray}

// Valid reports whether t is a recognised storage class.
func (t ParamType) Valid() bool {
	for _, k := range KnownParamTypes {
		if t == k {
			return true
		}
	}
	return false
}

// ParamSpec describes a single declared variable. It is an immutable value
// type; equality is structural, so registering the exact same spec twice is
// idempotent while re-registering a different spec under the same name fails.
type ParamSpec struct {
	Name  string    `json:"name"`
	Type  ParamType `json:"type"`
	Label string    `json:"label,omitempty"`
	Unit  string    `json:"unit,omitempty"`
}

// NewParamSpec constructs a spec, rejecting empty names and unknown types.
func NewParamSpec(name string, typ ParamType, label, unit string) (ParamSpec, error) {
	if name == "" {
		return ParamSpec{}, SchemaError{Reason: "parameter name cannot be empty"}
	}
	if !typ.Valid() {
		return ParamSpec{}, SchemaError{Reason: fmt.Sprintf("unknown storage class %q for parameter %s", typ, name)}
	}
	return ParamSpec{Name: name, Type: typ, Label: label, Unit: unit}, nil
}

func (p ParamSpec) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.Type)
}
