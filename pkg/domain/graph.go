package domain

import (
	"fmt"
	"sort"
)

// Graph records every declared parameter together with its setpoint
// ("depends on") and basis ("inferred from") relations. It is an immutable
// value: Extend and Remove return new graphs and never mutate the receiver,
// so a frozen graph can be read concurrently without synchronization.
type Graph struct {
	params      map[string]ParamSpec
	deps        map[string][]string
	inffs       map[string][]string
	standalones map[string]struct{}
}

// Extension describes a batch of parameters and edges to merge into a graph.
type Extension struct {
	// Dependencies maps a dependent parameter to its ordered setpoints.
	Dependencies map[ParamSpec][]ParamSpec
	// Inferences maps a derived parameter to its ordered basis parameters.
	Inferences map[ParamSpec][]ParamSpec
	// Standalones lists parameters with no edges.
	Standalones []ParamSpec
}

// NewGraph returns an empty graph.
func NewGraph() Graph {
	return Graph{
		params:      map[string]ParamSpec{},
		deps:        map[string][]string{},
		inffs:       map[string][]string{},
		standalones: map[string]struct{}{},
	}
}

func (g Graph) clone() Graph {
	out := NewGraph()
	for k, v := range g.params {
		out.params[k] = v
	}
	for k, v := range g.deps {
		out.deps[k] = append([]string(nil), v...)
	}
	for k, v := range g.inffs {
		out.inffs[k] = append([]string(nil), v...)
	}
	for k := range g.standalones {
		out.standalones[k] = struct{}{}
	}
	return out
}

// register merges a spec into the clone, enforcing idempotent duplicates.
func (g Graph) register(p ParamSpec) error {
	if p.Name == "" {
		return SchemaError{Reason: "parameter name cannot be empty"}
	}
	if !p.Type.Valid() {
		return SchemaError{Reason: fmt.Sprintf("unknown storage class %q for parameter %s", p.Type, p.Name)}
	}
	if existing, ok := g.params[p.Name]; ok && existing != p {
		return SchemaError{Reason: fmt.Sprintf("parameter %s already registered with a different spec", p.Name)}
	}
	g.params[p.Name] = p
	return nil
}

func mergeEdge(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, lists := range [][]string{existing, incoming} {
		for _, name := range lists {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// Extend returns a new graph with the extension merged in. Every parameter
// mentioned in an edge is registered; a parameter referenced with a spec that
// conflicts with its existing registration fails with SchemaError, as does a
// parameter declared both dependent and standalone.
func (g Graph) Extend(ext Extension) (Graph, error) {
	out := g.clone()

	for dependent, setpoints := range ext.Dependencies {
		if len(setpoints) == 0 {
			return Graph{}, SchemaError{Reason: fmt.Sprintf("dependent %s declared with no setpoints", dependent.Name)}
		}
		if err := out.register(dependent); err != nil {
			return Graph{}, err
		}
		names := make([]string, 0, len(setpoints))
		for _, sp := range setpoints {
			if err := out.register(sp); err != nil {
				return Graph{}, err
			}
			names = append(names, sp.Name)
		}
		out.deps[dependent.Name] = mergeEdge(out.deps[dependent.Name], names)
	}

	for derived, basis := range ext.Inferences {
		if len(basis) == 0 {
			return Graph{}, SchemaError{Reason: fmt.Sprintf("parameter %s declared inferred from nothing", derived.Name)}
		}
		if err := out.register(derived); err != nil {
			return Graph{}, err
		}
		names := make([]string, 0, len(basis))
		for _, b := range basis {
			if err := out.register(b); err != nil {
				return Graph{}, err
			}
			names = append(names, b.Name)
		}
		out.inffs[derived.Name] = mergeEdge(out.inffs[derived.Name], names)
	}

	for _, p := range ext.Standalones {
		if err := out.register(p); err != nil {
			return Graph{}, err
		}
		if _, ok := out.deps[p.Name]; ok {
			return Graph{}, SchemaError{Reason: fmt.Sprintf("parameter %s cannot be both dependent and standalone", p.Name)}
		}
		if _, ok := out.inffs[p.Name]; ok {
			return Graph{}, SchemaError{Reason: fmt.Sprintf("parameter %s cannot be both inferred and standalone", p.Name)}
		}
		out.standalones[p.Name] = struct{}{}
	}

	// A parameter promoted to dependent or derived sheds its standalone role,
	// as does a parameter now referenced as a setpoint or basis: those are
	// finalized inside their owner's group, never independently.
	for name := range out.standalones {
		if _, ok := out.deps[name]; ok {
			delete(out.standalones, name)
			continue
		}
		if _, ok := out.inffs[name]; ok {
			delete(out.standalones, name)
			continue
		}
		if out.isReferenced(name) {
			delete(out.standalones, name)
		}
	}

	return out, nil
}

// Remove returns a new graph without the named parameter and without any edge
// mentioning it. A dependent left with no remaining edges becomes standalone.
// Removing an unknown name is a no-op.
func (g Graph) Remove(name string) Graph {
	out := g.clone()
	delete(out.params, name)
	delete(out.standalones, name)
	delete(out.deps, name)
	delete(out.inffs, name)

	drop := func(edges map[string][]string) {
		for owner, list := range edges {
			filtered := list[:0:0]
			for _, n := range list {
				if n != name {
					filtered = append(filtered, n)
				}
			}
			if len(filtered) == 0 {
				delete(edges, owner)
			} else {
				edges[owner] = filtered
			}
		}
	}
	drop(out.deps)
	drop(out.inffs)

	for owner := range out.params {
		_, hasDeps := out.deps[owner]
		_, hasInffs := out.inffs[owner]
		if !hasDeps && !hasInffs {
			if !out.isReferenced(owner) {
				out.standalones[owner] = struct{}{}
			}
		}
	}
	return out
}

func (g Graph) isReferenced(name string) bool {
	for _, list := range g.deps {
		for _, n := range list {
			if n == name {
				return true
			}
		}
	}
	for _, list := range g.inffs {
		for _, n := range list {
			if n == name {
				return true
			}
		}
	}
	return false
}

// Lookup returns the spec registered under name.
func (g Graph) Lookup(name string) (ParamSpec, error) {
	p, ok := g.params[name]
	if !ok {
		return ParamSpec{}, NotFoundError{Name: name}
	}
	return p, nil
}

// Has reports whether name is registered.
func (g Graph) Has(name string) bool {
	_, ok := g.params[name]
	return ok
}

// Len returns the number of registered parameters.
func (g Graph) Len() int { return len(g.params) }

// Params returns all registered specs sorted by name.
func (g Graph) Params() []ParamSpec {
	out := make([]ParamSpec, 0, len(g.params))
	for _, p := range g.params {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dependencies returns the ordered setpoint names of a dependent, or nil.
func (g Graph) Dependencies(name string) []string {
	return append([]string(nil), g.deps[name]...)
}

// Inferences returns the ordered basis names of a derived parameter, or nil.
func (g Graph) Inferences(name string) []string {
	return append([]string(nil), g.inffs[name]...)
}

// Dependents returns the names of all parameters with setpoint edges, sorted.
func (g Graph) Dependents() []string {
	out := make([]string, 0, len(g.deps))
	for name := range g.deps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Standalones returns the names of all edge-free parameters, sorted.
func (g Graph) Standalones() []string {
	out := make([]string, 0, len(g.standalones))
	for name := range g.standalones {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IsStandalone reports whether name carries no edges.
func (g Graph) IsStandalone(name string) bool {
	_, ok := g.standalones[name]
	return ok
}

// ValidateSubset checks that every dependent or derived parameter in the set
// has all of its required setpoints and bases present in the set. Presence is
// by name only; the values themselves are not compared.
func (g Graph) ValidateSubset(names []string) error {
	present := make(map[string]struct{}, len(names))
	for _, n := range names {
		present[n] = struct{}{}
	}
	for _, n := range names {
		for _, sp := range g.deps[n] {
			if _, ok := present[sp]; !ok {
				return DependencyError{Param: n, Missing: sp}
			}
		}
		for _, b := range g.inffs[n] {
			if _, ok := present[b]; !ok {
				return InferenceError{Param: n, Missing: b}
			}
		}
	}
	return nil
}
