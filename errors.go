package dodeca

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Use [errors.Is] to classify errors returned by this module.
var (
	ErrInvalidParameter       = errors.New("invalid parameter")
	ErrInvalidWallThickness   = errors.New("invalid wall thickness")
	ErrDegenerateGeometry     = errors.New("degenerate geometry")
	ErrInsufficientResolution = errors.New("insufficient resolution")
	ErrExportIO               = errors.New("export I/O error")
)

// ParamError reports an unusable input parameter. Every ParamError
// matches [ErrInvalidParameter] in addition to its Kind.
type ParamError struct {
	// Param is the configuration key of the parameter, i.e. "hole_diameters[3]".
	Param  string
	Value  any
	Kind   error
	Reason string
}

func (e *ParamError) Error() string {
	kind := e.Kind
	if kind == nil {
		kind = ErrInvalidParameter
	}
	return fmt.Sprintf("%s: %s=%v: %s", kind, e.Param, e.Value, e.Reason)
}

func (e *ParamError) Unwrap() error { return e.Kind }

func (e *ParamError) Is(target error) bool {
	return target == ErrInvalidParameter
}

func paramErr(param string, value any, reason string) *ParamError {
	return &ParamError{Param: param, Value: value, Kind: ErrInvalidParameter, Reason: reason}
}

// GeometryError reports a geometric invariant violated while building,
// validating or tessellating the solid. Face and Vertex locate the problem
// and are -1 when not applicable.
type GeometryError struct {
	Face   int
	Vertex int
	Reason string
	// Cause is the underlying defect, if any, such as a mesh check failure.
	Cause error
}

func (e *GeometryError) Error() string {
	var b strings.Builder
	b.WriteString(ErrDegenerateGeometry.Error())
	if e.Face >= 0 {
		fmt.Fprintf(&b, ": face %d", e.Face)
	}
	if e.Vertex >= 0 {
		fmt.Fprintf(&b, ": vertex %d", e.Vertex)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *GeometryError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrDegenerateGeometry}
	}
	return []error{ErrDegenerateGeometry, e.Cause}
}

func faceErr(face int, format string, args ...any) *GeometryError {
	return &GeometryError{Face: face, Vertex: -1, Reason: fmt.Sprintf(format, args...)}
}

func vertexErr(vertex int, format string, args ...any) *GeometryError {
	return &GeometryError{Face: -1, Vertex: vertex, Reason: fmt.Sprintf(format, args...)}
}
