// Package dodeca builds the solid Roman dodecahedron shell as a tree of
// signed distance fields: a hollowed dodecahedron with one circular hole per
// face and one spherical knob per vertex, evaluated in a fixed CSG order.
package dodeca

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/chewxy/math32"
	"github.com/soypat/dodeca/sdfeval"
	"github.com/soypat/geometry/ms3"
)

const (
	sqrt3    = 1.7320508075688772935274463415058723669428052538103806280558069794
	largenum = 1e20
	// epstol is used to check for badly conditioned denominators
	// such as lengths used for normalization.
	epstol = 6e-7
)

// Shape is a node of a solid expression tree. All shapes are 1-Lipschitz
// signed distance bounds: |d(p)| never exceeds the distance to the surface.
type Shape interface {
	sdfeval.SDF3
	// ForEachChild calls fn with a pointer to every direct child of the shape.
	ForEachChild(userData any, fn func(userData any, s *Shape) error) error
	// AppendName appends a short identifier of the shape and its arguments to b.
	AppendName(b []byte) []byte
}

// Builder wraps all SDF primitive and operation logic generation.
// Provides error handling strategies with panics or error accumulation during shape generation.
type Builder struct {
	NoDimensionPanic bool
	accumErrs        []error
}

func (bld *Builder) Err() error {
	if len(bld.accumErrs) == 0 {
		return nil
	}
	return errors.Join(bld.accumErrs...)
}

func (bld *Builder) shapeErrorf(msg string, args ...any) {
	if !bld.NoDimensionPanic {
		panic(fmt.Sprintf(msg, args...))
	}
	bld.accumErrs = append(bld.accumErrs, fmt.Errorf(msg, args...))
}

func (*Builder) nilsdf(msg string) {
	panic("nil SDF argument: " + msg)
}

// Name returns the expression name of s.
func Name(s Shape) string {
	return string(s.AppendName(nil))
}

// Walk calls fn on s and every descendant of s in depth first order.
func Walk(s Shape, fn func(s Shape) error) error {
	err := fn(s)
	if err != nil {
		return err
	}
	return s.ForEachChild(nil, func(_ any, child *Shape) error {
		return Walk(*child, fn)
	})
}

func minf(a, b float32) float32 {
	return math32.Min(a, b)
}

func maxf(a, b float32) float32 {
	return math32.Max(a, b)
}

func hypotf(a, b float32) float32 {
	return math32.Hypot(a, b)
}

// appendFloat appends v to b without '-' and '.' characters, which are
// replaced by neg and decimal respectively.
func appendFloat(b []byte, neg, decimal byte, v float32) []byte {
	start := len(b)
	b = strconv.AppendFloat(b, float64(v), 'f', -1, 32)
	for i := start; i < len(b); i++ {
		switch b[i] {
		case '-':
			b[i] = neg
		case '.':
			b[i] = decimal
		}
	}
	return b
}

func appendFloats(b []byte, sep, neg, decimal byte, vs ...float32) []byte {
	for i, v := range vs {
		if i > 0 && sep != 0 {
			b = append(b, sep)
		}
		b = appendFloat(b, neg, decimal, v)
	}
	return b
}

func minElem(a, b ms3.Vec) ms3.Vec {
	return ms3.Vec{X: minf(a.X, b.X), Y: minf(a.Y, b.Y), Z: minf(a.Z, b.Z)}
}
