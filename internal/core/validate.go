package core

import (
	"sweepcore/pkg/domain"
	"sweepcore/pkg/nd"
)

// validateShapes checks every dependent parameter in the flat map against its
// setpoints: a setpoint payload must be scalar or share the dependent's exact
// shape.
func (s *Saver) validateShapes(flat map[string]any) error {
	for name, value := range flat {
		deps := s.graph.Dependencies(name)
		if len(deps) == 0 {
			continue
		}
		shape := nd.Shape(value)
		for _, sp := range deps {
			spValue, ok := flat[sp]
			if !ok {
				continue
			}
			spShape := nd.Shape(spValue)
			if len(spShape) == 0 {
				continue
			}
			if !equalShape(shape, spShape) {
				return domain.ShapeMismatchError{
					Param:         name,
					ParamShape:    shape,
					Setpoint:      sp,
					SetpointShape: spShape,
				}
			}
		}
	}
	return nil
}

func equalShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// validateTypes checks every payload against its parameter's storage class.
func (s *Saver) validateTypes(flat map[string]any) error {
	for name, value := range flat {
		spec, err := s.graph.Lookup(name)
		if err != nil {
			return err
		}
		switch spec.Type {
		case domain.TypeNumeric:
			if err := checkNumeric(name, spec.Type, value); err != nil {
				return err
			}
		case domain.TypeText:
			if err := checkText(name, value); err != nil {
				return err
			}
		case domain.TypeArray:
			if nd.IsScalar(value) {
				return domain.StorageClassError{Name: name, Class: spec.Type, Value: value}
			}
			if err := checkNumeric(name, spec.Type, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkNumeric accepts numeric scalars and sequences of numeric elements.
func checkNumeric(name string, class domain.ParamType, value any) error {
	if nd.IsScalar(value) {
		if !nd.IsNumber(value) {
			return domain.StorageClassError{Name: name, Class: class, Value: value}
		}
		return nil
	}
	elems, err := nd.Ravel(value)
	if err != nil {
		return domain.StorageClassError{Name: name, Class: class, Value: value}
	}
	for _, e := range elems {
		if !nd.IsNumber(e) {
			return domain.StorageClassError{Name: name, Class: class, Value: e}
		}
	}
	return nil
}

// checkText accepts strings and sequences of strings.
func checkText(name string, value any) error {
	if nd.IsScalar(value) {
		if _, ok := value.(string); !ok {
			return domain.StorageClassError{Name: name, Class: domain.TypeText, Value: value}
		}
		return nil
	}
	elems, err := nd.Ravel(value)
	if err != nil {
		return domain.StorageClassError{Name: name, Class: domain.TypeText, Value: value}
	}
	for _, e := range elems {
		if _, ok := e.(string); !ok {
			return domain.StorageClassError{Name: name, Class: domain.TypeText, Value: e}
		}
	}
	return nil
}
