package core

import (
	"fmt"

	"sweepcore/pkg/domain"
	"sweepcore/pkg/nd"
)

// unpack expands the partial results of one submission into a flat map from
// parameter name to raw payload. Setpoint grids are synthesized for array
// producers; two results targeting the same parameter fail fast.
func (s *Saver) unpack(results []Result) (map[string]any, error) {
	flat := make(map[string]any, len(results))
	put := func(name string, value any) error {
		if _, exists := flat[name]; exists {
			return domain.DuplicateResultError{Name: name}
		}
		flat[name] = value
		return nil
	}
	for _, res := range results {
		plan, ok := s.plans[res.Name]
		if !ok {
			return nil, domain.UnknownParameterError{Name: res.Name}
		}
		switch plan.kind {
		case domain.KindScalar:
			if err := put(plan.spec.Name, res.Value); err != nil {
				return nil, err
			}
		case domain.KindArray:
			if err := expandAxes(componentPlan{spec: plan.spec, axes: plan.axes}, res.Value, put); err != nil {
				return nil, err
			}
		case domain.KindBundle:
			payloads, ok := res.Value.([]any)
			if !ok {
				return nil, fmt.Errorf("bundle %s expects one payload per component, got %T", res.Name, res.Value)
			}
			if len(payloads) != len(plan.components) {
				return nil, fmt.Errorf("bundle %s expects %d payloads, got %d", res.Name, len(plan.components), len(payloads))
			}
			for i, c := range plan.components {
				if err := expandAxes(c, payloads[i], put); err != nil {
					return nil, err
				}
			}
		}
	}
	return flat, nil
}

// expandAxes maps one array-shaped value to its parameter and synthesizes the
// outer-product coordinate grid for its axes. Higher-dimensional coordinate
// arrays are reduced to their innermost 1-D slice first. A component without
// axes behaves as a plain scalar producer.
func expandAxes(c componentPlan, value any, put func(string, any) error) error {
	if err := put(c.spec.Name, value); err != nil {
		return err
	}
	if len(c.axes) == 0 {
		return nil
	}
	inner := make([]*nd.Array, len(c.axes))
	for i, ax := range c.axes {
		inner[i] = ax.values.Innermost()
	}
	grids, err := nd.Meshgrid(inner...)
	if err != nil {
		return fmt.Errorf("setpoint grid for %s: %w", c.spec.Name, err)
	}
	for i, ax := range c.axes {
		if err := put(ax.spec.Name, grids[i]); err != nil {
			return err
		}
	}
	return nil
}
