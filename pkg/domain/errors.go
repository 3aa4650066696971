package domain

import "fmt"

// SchemaError indicates an invalid graph construction, such as an edge that
// references an unknown parameter or a conflicting re-registration.
type SchemaError struct {
	Reason string
}

func (e SchemaError) Error() string { return "schema: " + e.Reason }

// NotFoundError is returned when a parameter name is not present in the graph.
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("parameter %s not found", e.Name)
}

// UnknownParameterError is returned when a submitted result references a
// producer that was never registered with the measurement.
type UnknownParameterError struct {
	Name string
}

func (e UnknownParameterError) Error() string {
	return fmt.Sprintf("no parameter %s registered with this measurement", e.Name)
}

// DependencyError indicates a submitted point is missing a required setpoint.
type DependencyError struct {
	Param   string
	Missing string
}

func (e DependencyError) Error() string {
	return fmt.Sprintf("parameter %s requires setpoint %s which is absent", e.Param, e.Missing)
}

// InferenceError indicates a submitted point is missing a required basis
// parameter.
type InferenceError struct {
	Param   string
	Missing string
}

func (e InferenceError) Error() string {
	return fmt.Sprintf("parameter %s is inferred from %s which is absent", e.Param, e.Missing)
}

// MissingSetpointsError indicates an array producer declared setpoint axes but
// supplied no coordinate values for them.
type MissingSetpointsError struct {
	Name string
}

func (e MissingSetpointsError) Error() string {
	return fmt.Sprintf("array producer %s declares setpoint axes but none were supplied", e.Name)
}

// ShapeMismatchError indicates a dependent and one of its setpoints disagree
// on shape. Setpoints may be scalar or match the dependent exactly.
type ShapeMismatchError struct {
	Param         string
	ParamShape    []int
	Setpoint      string
	SetpointShape []int
}

func (e ShapeMismatchError) Error() string {
	return fmt.Sprintf("incompatible shapes: parameter %s has shape %v but its setpoint %s has shape %v",
		e.Param, e.ParamShape, e.Setpoint, e.SetpointShape)
}

// StorageClassError indicates a payload does not match the declared storage
// class of its parameter.
type StorageClassError struct {
	Name  string
	Class ParamType
	Value any
}

func (e StorageClassError) Error() string {
	return fmt.Sprintf("parameter %s is of type %q but got a result of type %T (%v)",
		e.Name, e.Class, e.Value, e.Value)
}

// DuplicateResultError indicates two partial results in one submission target
// the same parameter. Duplicate targets fail fast instead of silently
// overwriting each other.
type DuplicateResultError struct {
	Name string
}

func (e DuplicateResultError) Error() string {
	return fmt.Sprintf("duplicate result for parameter %s within a single submission", e.Name)
}

// AlreadyClosedError is returned when a saver is closed twice or used after
// close.
type AlreadyClosedError struct{}

func (AlreadyClosedError) Error() string { return "saver already closed" }
