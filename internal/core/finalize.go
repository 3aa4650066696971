package core

import (
	"fmt"

	"sweepcore/pkg/domain"
	"sweepcore/pkg/nd"
)

// finalize flattens a validated flat result map into row records, one group
// per dependent parameter followed by the standalone parameters.
func (s *Saver) finalize(flat map[string]any) ([]Record, error) {
	var records []Record
	for _, dep := range s.graph.Dependents() {
		if _, ok := flat[dep]; !ok {
			continue
		}
		group := s.groupMembers(dep, flat)
		spec, err := s.graph.Lookup(dep)
		if err != nil {
			return nil, err
		}
		var recs []Record
		switch spec.Type {
		case domain.TypeArray:
			recs, err = finalizeArrayGroup(group, flat)
		case domain.TypeNumeric:
			recs, err = finalizeNumericGroup(dep, group, flat)
		default:
			rec := Record{}
			for _, name := range group {
				rec[name] = flat[name]
			}
			recs = []Record{rec}
		}
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}

	for _, name := range s.graph.Standalones() {
		value, ok := flat[name]
		if !ok {
			continue
		}
		spec, err := s.graph.Lookup(name)
		if err != nil {
			return nil, err
		}
		if spec.Type == domain.TypeText && !nd.IsScalar(value) {
			elems, err := nd.Ravel(value)
			if err != nil {
				return nil, fmt.Errorf("standalone %s: %w", name, err)
			}
			for _, e := range elems {
				records = append(records, Record{name: e})
			}
			continue
		}
		records = append(records, Record{name: value})
	}
	return records, nil
}

// groupMembers lists the dependent plus its setpoints and basis parameters
// that are present in the flat map, dependent first.
func (s *Saver) groupMembers(dep string, flat map[string]any) []string {
	group := []string{dep}
	for _, sp := range s.graph.Dependencies(dep) {
		if _, ok := flat[sp]; ok {
			group = append(group, sp)
		}
	}
	for _, b := range s.graph.Inferences(dep) {
		if _, ok := flat[b]; ok {
			group = append(group, b)
		}
	}
	return group
}

// finalizeArrayGroup emits exactly one record; scalars become single-element
// arrays and sequences become fixed arrays.
func finalizeArrayGroup(group []string, flat map[string]any) ([]Record, error) {
	rec := Record{}
	for _, name := range group {
		value := flat[name]
		if nd.IsScalar(value) {
			arr, err := nd.New([]any{value}, 1)
			if err != nil {
				return nil, err
			}
			rec[name] = arr
			continue
		}
		arr, err := nd.FromAny(value)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		rec[name] = arr
	}
	return []Record{rec}, nil
}

// finalizeNumericGroup emits one record when the dependent payload is scalar
// (unwrapping single-element arrays), otherwise it flattens the dependent
// row-major, broadcasts scalar group members to the same length and emits one
// record per index.
func finalizeNumericGroup(dep string, group []string, flat map[string]any) ([]Record, error) {
	if nd.IsScalar(flat[dep]) {
		rec := Record{}
		for _, name := range group {
			scalar, err := unwrapScalar(name, flat[name])
			if err != nil {
				return nil, err
			}
			rec[name] = scalar
		}
		return []Record{rec}, nil
	}

	depFlat, err := nd.Ravel(flat[dep])
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %w", dep, err)
	}
	n := len(depFlat)
	columns := make(map[string][]any, len(group))
	columns[dep] = depFlat
	for _, name := range group[1:] {
		value := flat[name]
		if nd.IsScalar(value) {
			col := make([]any, n)
			for i := range col {
				col[i] = value
			}
			columns[name] = col
			continue
		}
		col, err := nd.Ravel(value)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		if len(col) != n {
			return nil, domain.ShapeMismatchError{
				Param:         dep,
				ParamShape:    nd.Shape(flat[dep]),
				Setpoint:      name,
				SetpointShape: nd.Shape(value),
			}
		}
		columns[name] = col
	}
	records := make([]Record, n)
	for i := 0; i < n; i++ {
		rec := make(Record, len(group))
		for _, name := range group {
			rec[name] = columns[name][i]
		}
		records[i] = rec
	}
	return records, nil
}

// unwrapScalar coerces a value to a scalar: single-element arrays unwrap to
// their sole element, plain scalars pass through.
func unwrapScalar(name string, value any) (any, error) {
	if nd.IsScalar(value) {
		return value, nil
	}
	elems, err := nd.Ravel(value)
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %w", name, err)
	}
	if len(elems) != 1 {
		return nil, fmt.Errorf("parameter %s: cannot reduce %d elements to a scalar", name, len(elems))
	}
	return elems[0], nil
}
