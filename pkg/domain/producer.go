package domain

import "fmt"

// ProducerKind is the closed set of producer shapes. The kind is resolved
// once at registration; submission never re-inspects payload types to decide
// how to unpack.
type ProducerKind int

const (
	// KindScalar produces a single plain value per acquisition.
	KindScalar ProducerKind = iota
	// KindArray produces one array with N declared setpoint axes.
	KindArray
	// KindBundle produces K sub-values, each with its own axes (or none).
	KindBundle
)

func (k ProducerKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindBundle:
		return "bundle"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Axis declares one setpoint dimension of an array producer: an optional
// parameter name (a fallback is synthesized when empty) and the coordinate
// sequence swept along that dimension. Coordinates may be supplied with extra
// leading dimensions; only the innermost 1-D slice is used.
type Axis struct {
	Name   string
	Label  string
	Unit   string
	Values any
}

// Component declares one sub-value of a bundle producer.
type Component struct {
	Name  string
	Label string
	Unit  string
	Axes  []Axis
}

// Producer describes a named value producer from the instrument layer.
// Exactly one of the kind-specific fields is consulted: Axes for KindArray,
// Components for KindBundle.
type Producer struct {
	Name       string
	Label      string
	Unit       string
	Kind       ProducerKind
	Axes       []Axis
	Components []Component
}

// AxisName returns the declared name of axis i of the named owner, or the
// synthesized fallback "{owner}_setpoint_{i}".
func AxisName(owner string, i int, ax Axis) string {
	if ax.Name != "" {
		return ax.Name
	}
	return fmt.Sprintf("%s_setpoint_%d", owner, i)
}
