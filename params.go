package dodeca

import (
	"fmt"
	"math"

	"github.com/soypat/dodeca/geom"
)

const (
	// MinResolution is the minimum number of segments around any curved feature.
	MinResolution = 8
	// DefaultKnobOffset is the outward shift of each knob center along its
	// vertex direction, as a fraction of the knob radius.
	DefaultKnobOffset = 0.3
	// DefaultHoleHalfLength is the half length of the hole cutting cylinders as a
	// fraction of the circumradius. Any value >= 1 cuts fully through the wall.
	DefaultHoleHalfLength = 1.0
)

// Params is the complete parameter set of a shell. Lengths are millimeters.
type Params struct {
	// VertexDiameter is the distance between opposite vertices (twice the circumradius).
	VertexDiameter float64
	// WallThickness is the difference between outer and inner circumradius.
	WallThickness float64
	KnobRadius    float64
	// KnobOffset is the knob center shift as a fraction of KnobRadius.
	// Zero sits the knob centers on the vertices. See [DefaultKnobOffset].
	KnobOffset float64
	// HoleHalfLength is the cutting cylinder half length as a fraction of the
	// circumradius. See [DefaultHoleHalfLength].
	HoleHalfLength float64
	// HoleDiameters holds one diameter per face, indexed like the face table.
	HoleDiameters []float64
	// Resolution is the number of segments around a knob's equator.
	Resolution int
}

// Circumradius returns half the vertex diameter.
func (p Params) Circumradius() float64 { return p.VertexDiameter / 2 }

// Validate checks every parameter of p. The returned error is a
// [*ParamError] naming the first offending parameter.
func (p Params) Validate() error {
	switch {
	case !positive(p.VertexDiameter):
		return paramErr("vertex_diameter", p.VertexDiameter, "must be a positive finite length")
	case !positive(p.WallThickness):
		return paramErr("wall_thickness", p.WallThickness, "must be a positive finite length")
	case p.WallThickness >= p.Circumradius():
		return &ParamError{
			Param: "wall_thickness", Value: p.WallThickness, Kind: ErrInvalidWallThickness,
			Reason: fmt.Sprintf("must be less than the circumradius %g", p.Circumradius()),
		}
	case !positive(p.KnobRadius):
		return paramErr("knob_radius", p.KnobRadius, "must be a positive finite length")
	case !(p.KnobOffset >= 0 && p.KnobOffset < 1):
		return paramErr("knob_offset", p.KnobOffset, "must be in [0,1) so the knob covers its vertex")
	case !(p.HoleHalfLength >= 1) || math.IsInf(p.HoleHalfLength, 0):
		return paramErr("hole_half_length", p.HoleHalfLength, "must be finite and >= 1 to cut through the wall")
	case len(p.HoleDiameters) != geom.NumFaces:
		return paramErr("hole_diameters", len(p.HoleDiameters), fmt.Sprintf("need exactly %d diameters", geom.NumFaces))
	}
	for i, d := range p.HoleDiameters {
		if !positive(d) {
			return paramErr(fmt.Sprintf("hole_diameters[%d]", i), d, "must be a positive finite length")
		}
	}
	if p.Resolution < MinResolution {
		return &ParamError{
			Param: "tessellation_resolution", Value: p.Resolution, Kind: ErrInsufficientResolution,
			Reason: fmt.Sprintf("must be at least %d", MinResolution),
		}
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
