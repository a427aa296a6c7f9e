package dodeca

import (
	"fmt"
	"math"
)

// MaxLatticePoints bounds the tessellation lattice size.
const MaxLatticePoints = 1 << 31

// CellSize returns the tessellation lattice spacing for the shell. The
// circumference of the smallest curved feature, a knob or a hole, is divided
// into Params.Resolution segments, so every sphere and cylinder gets at least
// that many. The wall measured along a face normal spans at least two cells.
func (sh *Shell) CellSize() float64 {
	h := 2 * math.Pi * sh.MinCurvedRadius() / float64(sh.Params.Resolution)
	return math.Min(h, sh.WallNormal()/2)
}

// MinCurvedRadius returns the smallest radius among the knobs and holes.
func (sh *Shell) MinCurvedRadius() float64 {
	r := sh.Params.KnobRadius
	for _, d := range sh.Params.HoleDiameters {
		r = math.Min(r, d/2)
	}
	return r
}

// CheckResolution verifies that a lattice of spacing h resolves every hole with
// at least [MinResolution] segments and stays within [MaxLatticePoints].
func (sh *Shell) CheckResolution(h float64) error {
	if !(h > 0) || math.IsInf(h, 0) {
		return &ParamError{Param: "tessellation_resolution", Value: sh.Params.Resolution, Kind: ErrInsufficientResolution,
			Reason: fmt.Sprintf("invalid cell size %g", h)}
	}
	for i, dh := range sh.Params.HoleDiameters {
		segments := math.Pi * dh / h
		if segments < MinResolution {
			return &ParamError{
				Param: "tessellation_resolution", Value: sh.Params.Resolution, Kind: ErrInsufficientResolution,
				Reason: fmt.Sprintf("face %d hole (%g mm) gets %.1f segments at cell size %.3g mm, need %d", i, dh, segments, h, MinResolution),
			}
		}
	}
	bb := sh.Tree.Bounds()
	sz := bb.Size()
	points := 1.0
	for _, s := range [3]float32{sz.X, sz.Y, sz.Z} {
		points *= float64(s)/h + 5
	}
	if points > MaxLatticePoints {
		return paramErr("tessellation_resolution", sh.Params.Resolution, fmt.Sprintf("lattice of %.3g points exceeds limit %d", points, int64(MaxLatticePoints)))
	}
	return nil
}
