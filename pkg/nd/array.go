// Package nd provides the small fixed-shape array helpers the result
// reconciliation engine needs: shape inspection, row-major flattening, axis
// reduction and outer-product grid expansion. It is not a general tensor
// library; values stay as []any so numeric and text payloads share one path.
package nd

import (
	"fmt"
	"reflect"
)

// Array is a rectangular, row-major array of scalar values.
type Array struct {
	data []any
	dims []int
}

// New constructs an array from row-major data and explicit dimensions.
func New(data []any, dims ...int) (*Array, error) {
	n := 1
	for _, d := range dims {
		if d < 0 {
			return nil, fmt.Errorf("nd: negative dimension %d", d)
		}
		n *= d
	}
	if n != len(data) {
		return nil, fmt.Errorf("nd: data length %d does not match dims %v", len(data), dims)
	}
	cp := make([]any, len(data))
	copy(cp, data)
	dm := make([]int, len(dims))
	copy(dm, dims)
	return &Array{data: cp, dims: dm}, nil
}

// Dims returns a copy of the array dimensions.
func (a *Array) Dims() []int {
	out := make([]int, len(a.dims))
	copy(out, a.dims)
	return out
}

// Len returns the total number of elements.
func (a *Array) Len() int { return len(a.data) }

// At returns the element at row-major index i.
func (a *Array) At(i int) any { return a.data[i] }

// Data returns the row-major backing slice. Callers must not mutate it.
func (a *Array) Data() []any { return a.data }

// Innermost reduces the array to its innermost 1-D slice by sampling index 0
// along all outer dimensions. A 1-D (or 0-D) array is returned unchanged.
func (a *Array) Innermost() *Array {
	if len(a.dims) <= 1 {
		return a
	}
	inner := a.dims[len(a.dims)-1]
	out := make([]any, inner)
	copy(out, a.data[:inner])
	return &Array{data: out, dims: []int{inner}}
}

// IsScalar reports whether v is a plain (non-sequence) value. Strings count
// as scalars even though they are indexable.
func IsScalar(v any) bool {
	switch v.(type) {
	case *Array:
		return false
	case string, nil:
		return true
	}
	k := reflect.ValueOf(v).Kind()
	return k != reflect.Slice && k != reflect.Array
}

// Shape returns the dimensions of v: nil for scalars, the declared dims for
// *Array values, and the inferred rectangular dims for nested slices.
func Shape(v any) []int {
	if a, ok := v.(*Array); ok {
		return a.Dims()
	}
	if IsScalar(v) {
		return nil
	}
	var dims []int
	rv := reflect.ValueOf(v)
	for {
		k := rv.Kind()
		if k != reflect.Slice && k != reflect.Array {
			break
		}
		dims = append(dims, rv.Len())
		if rv.Len() == 0 {
			break
		}
		rv = rv.Index(0)
		if rv.Kind() == reflect.Interface {
			rv = rv.Elem()
		}
	}
	return dims
}

// FromAny converts v into an Array. Scalars become 0-D single-element arrays.
// Nested slices must be rectangular.
func FromAny(v any) (*Array, error) {
	if a, ok := v.(*Array); ok {
		return a, nil
	}
	if IsScalar(v) {
		return &Array{data: []any{v}, dims: nil}, nil
	}
	dims := Shape(v)
	n := 1
	for _, d := range dims {
		n *= d
	}
	data := make([]any, 0, n)
	if err := appendFlat(&data, reflect.ValueOf(v), dims, 0); err != nil {
		return nil, err
	}
	return &Array{data: data, dims: dims}, nil
}

func appendFlat(dst *[]any, rv reflect.Value, dims []int, depth int) error {
	if rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	if depth == len(dims) {
		k := rv.Kind()
		if k == reflect.Slice || k == reflect.Array {
			return fmt.Errorf("nd: ragged sequence, unexpected nesting at depth %d", depth)
		}
		*dst = append(*dst, rv.Interface())
		return nil
	}
	k := rv.Kind()
	if k != reflect.Slice && k != reflect.Array {
		return fmt.Errorf("nd: ragged sequence, expected length %d at depth %d", dims[depth], depth)
	}
	if rv.Len() != dims[depth] {
		return fmt.Errorf("nd: ragged sequence, got length %d want %d at depth %d", rv.Len(), dims[depth], depth)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := appendFlat(dst, rv.Index(i), dims, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Ravel flattens v to a row-major 1-D slice of scalar elements.
func Ravel(v any) ([]any, error) {
	a, err := FromAny(v)
	if err != nil {
		return nil, err
	}
	return a.Data(), nil
}

// Meshgrid expands N 1-D axes into N coordinate grids of common shape
// (len(axis0), ..., len(axisN-1)) using matrix ("ij") index ordering:
// grid k varies along dimension k only.
func Meshgrid(axes ...*Array) ([]*Array, error) {
	dims := make([]int, len(axes))
	total := 1
	for i, ax := range axes {
		if len(ax.dims) > 1 {
			return nil, fmt.Errorf("nd: meshgrid axis %d is not 1-D", i)
		}
		dims[i] = ax.Len()
		total *= ax.Len()
	}
	grids := make([]*Array, len(axes))
	for k, ax := range axes {
		// stride of dimension k in row-major order
		stride := 1
		for j := k + 1; j < len(dims); j++ {
			stride *= dims[j]
		}
		data := make([]any, total)
		for i := 0; i < total; i++ {
			idx := (i / stride) % dims[k]
			data[i] = ax.data[idx]
		}
		dm := make([]int, len(dims))
		copy(dm, dims)
		grids[k] = &Array{data: data, dims: dm}
	}
	return grids, nil
}

// IsNumber reports whether v is an integer or floating point scalar.
// Strings never count, matching the storage-class rules.
func IsNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}
