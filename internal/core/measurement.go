package core

import (
	"context"
	"fmt"
	"time"

	"sweepcore/pkg/domain"
	"sweepcore/pkg/nd"
)

const (
	// MinWritePeriod is the floor for the flush interval; anything lower
	// would turn every submission into a flush.
	MinWritePeriod = time.Millisecond
	// DefaultWritePeriod matches the interval used when none is configured.
	DefaultWritePeriod = 5 * time.Second
)

// axisPlan is one resolved setpoint axis of an array-shaped producer: the
// registered parameter plus the coordinate values swept along it.
type axisPlan struct {
	spec   ParamSpec
	values *nd.Array
}

// componentPlan is one resolved sub-value of a bundle producer.
type componentPlan struct {
	spec ParamSpec
	axes []axisPlan
}

// producerPlan is the per-producer unpacking strategy, resolved once at
// registration time so submission never inspects payload types to classify.
type producerPlan struct {
	kind       domain.ProducerKind
	spec       ParamSpec
	axes       []axisPlan
	components []componentPlan
}

// Measurement accumulates parameter registrations and produces a Saver when
// the run begins. It is not safe for concurrent use; registration happens on
// a single setup goroutine.
type Measurement struct {
	name        string
	graph       domain.Graph
	plans       map[string]producerPlan
	writePeriod time.Duration
	beforeRun   []func(context.Context) error
	afterRun    []func(context.Context) error
}

// NewMeasurement returns an empty measurement with the default write period.
func NewMeasurement(name string) *Measurement {
	return &Measurement{
		name:        name,
		graph:       domain.NewGraph(),
		plans:       map[string]producerPlan{},
		writePeriod: DefaultWritePeriod,
	}
}

// Name returns the measurement name.
func (m *Measurement) Name() string { return m.name }

// Graph returns the current dependency graph value.
func (m *Measurement) Graph() domain.Graph { return m.graph }

// SetWritePeriod configures the flush interval. Periods below MinWritePeriod
// are rejected.
func (m *Measurement) SetWritePeriod(d time.Duration) error {
	if d < MinWritePeriod {
		return fmt.Errorf("write period %v below minimum %v", d, MinWritePeriod)
	}
	m.writePeriod = d
	return nil
}

// AddBeforeRun appends a hook executed by Run before the store is started.
func (m *Measurement) AddBeforeRun(fn func(context.Context) error) {
	m.beforeRun = append(m.beforeRun, fn)
}

// AddAfterRun appends a hook executed when the run's Saver closes.
func (m *Measurement) AddAfterRun(fn func(context.Context) error) {
	m.afterRun = append(m.afterRun, fn)
}

// Register declares a custom scalar parameter. Setpoints and basis name
// previously registered parameters; referencing an unknown name fails.
func (m *Measurement) Register(name, label, unit string, class ParamType, setpoints, basis []string) error {
	spec, err := domain.NewParamSpec(name, class, label, unit)
	if err != nil {
		return err
	}
	ext := domain.Extension{}
	if len(setpoints) > 0 {
		sps, err := m.lookupAll(setpoints)
		if err != nil {
			return err
		}
		ext.Dependencies = map[ParamSpec][]ParamSpec{spec: sps}
	}
	if len(basis) > 0 {
		bs, err := m.lookupAll(basis)
		if err != nil {
			return err
		}
		ext.Inferences = map[ParamSpec][]ParamSpec{spec: bs}
	}
	if len(setpoints) == 0 && len(basis) == 0 {
		ext.Standalones = []ParamSpec{spec}
	}
	graph, err := m.graph.Extend(ext)
	if err != nil {
		return err
	}
	m.graph = graph
	m.plans[name] = producerPlan{kind: domain.KindScalar, spec: spec}
	return nil
}

// RegisterProducer declares an instrument producer, auto-registering any
// setpoint axes it carries under their declared or synthesized names.
// Additional setpoints and basis reference already-registered parameters and
// apply to the producer's value (every component, for bundles).
func (m *Measurement) RegisterProducer(p Producer, class ParamType, setpoints, basis []string) error {
	if class == "" {
		class = domain.TypeNumeric
	}
	extraSPs, err := m.lookupAll(setpoints)
	if err != nil {
		return err
	}
	extraBasis, err := m.lookupAll(basis)
	if err != nil {
		return err
	}

	switch p.Kind {
	case domain.KindScalar:
		return m.Register(p.Name, p.Label, p.Unit, class, setpoints, basis)
	case domain.KindArray:
		plan, ext, err := resolveArray(p.Name, p.Label, p.Unit, class, p.Axes, extraSPs, extraBasis)
		if err != nil {
			return err
		}
		graph, err := m.graph.Extend(ext)
		if err != nil {
			return err
		}
		m.graph = graph
		m.plans[p.Name] = producerPlan{kind: domain.KindArray, spec: plan.spec, axes: plan.axes}
		return nil
	case domain.KindBundle:
		if len(p.Components) == 0 {
			return domain.SchemaError{Reason: fmt.Sprintf("bundle producer %s has no components", p.Name)}
		}
		bundleSpec, err := domain.NewParamSpec(p.Name, class, p.Label, p.Unit)
		if err != nil {
			return err
		}
		components := make([]componentPlan, 0, len(p.Components))
		graph := m.graph
		for _, c := range p.Components {
			plan, ext, err := resolveArray(c.Name, c.Label, c.Unit, class, c.Axes, extraSPs, extraBasis)
			if err != nil {
				return err
			}
			graph, err = graph.Extend(ext)
			if err != nil {
				return err
			}
			components = append(components, plan)
		}
		m.graph = graph
		m.plans[p.Name] = producerPlan{kind: domain.KindBundle, spec: bundleSpec, components: components}
		return nil
	default:
		return domain.SchemaError{Reason: fmt.Sprintf("producer %s has unknown kind %s", p.Name, p.Kind)}
	}
}

// resolveArray registers one array-shaped value: the owning parameter, its
// declared axes (coordinates required) and any extra setpoint or basis edges.
func resolveArray(name, label, unit string, class ParamType, axes []Axis, extraSPs, extraBasis []ParamSpec) (componentPlan, domain.Extension, error) {
	spec, err := domain.NewParamSpec(name, class, label, unit)
	if err != nil {
		return componentPlan{}, domain.Extension{}, err
	}
	plan := componentPlan{spec: spec}
	spSpecs := append([]ParamSpec(nil), extraSPs...)
	for i, ax := range axes {
		if ax.Values == nil {
			return componentPlan{}, domain.Extension{}, domain.MissingSetpointsError{Name: name}
		}
		values, err := nd.FromAny(ax.Values)
		if err != nil {
			return componentPlan{}, domain.Extension{}, fmt.Errorf("axis %d of %s: %w", i, name, err)
		}
		axSpec, err := domain.NewParamSpec(domain.AxisName(name, i, ax), domain.TypeNumeric, ax.Label, ax.Unit)
		if err != nil {
			return componentPlan{}, domain.Extension{}, err
		}
		plan.axes = append(plan.axes, axisPlan{spec: axSpec, values: values})
		spSpecs = append(spSpecs, axSpec)
	}
	ext := domain.Extension{}
	if len(spSpecs) > 0 {
		ext.Dependencies = map[ParamSpec][]ParamSpec{spec: spSpecs}
	}
	if len(extraBasis) > 0 {
		ext.Inferences = map[ParamSpec][]ParamSpec{spec: extraBasis}
	}
	if len(spSpecs) == 0 && len(extraBasis) == 0 {
		ext.Standalones = []ParamSpec{spec}
	}
	return plan, ext, nil
}

// Unregister removes a parameter and its producer plan. Unknown names are
// ignored.
func (m *Measurement) Unregister(name string) {
	m.graph = m.graph.Remove(name)
	delete(m.plans, name)
}

func (m *Measurement) lookupAll(names []string) ([]ParamSpec, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]ParamSpec, 0, len(names))
	for _, n := range names {
		spec, err := m.graph.Lookup(n)
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

// RunConfig configures one acquisition session. All subscriber registration
// is explicit here; there is no ambient default-subscriber state.
type RunConfig struct {
	Subscribers []Subscriber
	Logger      Logger
	Metrics     MetricsRecorder
	Tracer      Tracer
	// Archiver, when set, exports the completed run on Close.
	Archiver *RunArchiver
}

// Run freezes the graph, starts the store and returns the session Saver.
// It fails when no parameters are registered.
func (m *Measurement) Run(ctx context.Context, store ResultStore, cfg RunConfig) (*Saver, error) {
	if m.graph.Len() == 0 {
		return nil, fmt.Errorf("no parameters registered in measurement %s", m.name)
	}
	for _, hook := range m.beforeRun {
		if err := hook(ctx); err != nil {
			return nil, fmt.Errorf("before-run hook: %w", err)
		}
	}
	if err := store.MarkStarted(ctx); err != nil {
		return nil, fmt.Errorf("mark started: %w", err)
	}
	for _, sub := range cfg.Subscribers {
		store.Subscribe(sub)
	}
	plans := make(map[string]producerPlan, len(m.plans))
	for k, v := range m.plans {
		plans[k] = v
	}
	s := &Saver{
		graph:       m.graph,
		plans:       plans,
		store:       store,
		writePeriod: m.writePeriod,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		tracer:      cfg.Tracer,
		archiver:    cfg.Archiver,
		afterRun:    append([]func(context.Context) error(nil), m.afterRun...),
		now:         time.Now,
	}
	if s.logger == nil {
		s.logger = NopLogger{}
	}
	if s.metrics == nil {
		s.metrics = NoopMetricsRecorder{}
	}
	if s.tracer == nil {
		s.tracer = NoopTracer{}
	}
	s.lastFlush = s.now()
	return s, nil
}
