package dodeca

import (
	"fmt"
	"math"

	"github.com/soypat/dodeca/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

// Shell is a built Roman dodecahedron: its expression tree together with
// the derived geometry later stages validate against.
type Shell struct {
	Params Params
	// Outer and Inner are the outer hull and cavity kernels.
	Outer, Inner *geom.Dodecahedron
	// Tree is the solid expression in CSG evaluation order.
	Tree Shape
	// KnobCenters holds one knob center per vertex.
	KnobCenters [geom.NumVertices]r3.Vec
	// Warnings lists non fatal findings, such as holes reaching the face edges.
	Warnings  []string
	oversized [geom.NumFaces]bool
}

// BuildShell validates p and builds the shell expression:
//
//	union(diff(...diff(diff(outer, cavity), hole0)..., hole11), knob0, ..., knob19)
func BuildShell(bld *Builder, p Params) (*Shell, error) {
	err := p.Validate()
	if err != nil {
		return nil, err
	}
	r := p.Circumradius()
	outer, err := geom.New(r)
	if err != nil {
		return nil, paramErr("vertex_diameter", p.VertexDiameter, err.Error())
	}
	inner, err := geom.New(r - p.WallThickness)
	if err != nil {
		return nil, &ParamError{Param: "wall_thickness", Value: p.WallThickness, Kind: ErrInvalidWallThickness, Reason: err.Error()}
	}
	sh := &Shell{Params: p, Outer: outer, Inner: inner}

	kr := p.KnobRadius
	for j := range sh.KnobCenters {
		sh.KnobCenters[j] = r3.Add(outer.Vertex(j), r3.Scale(p.KnobOffset*kr, outer.VertexDir(j)))
	}
	for _, e := range outer.Edges() {
		d := r3.Norm(r3.Sub(sh.KnobCenters[e[0]], sh.KnobCenters[e[1]]))
		if 2*kr >= d {
			return nil, vertexErr(e[0], "knob overlaps knob at adjacent vertex %d: center distance %.4g mm <= %.4g mm", e[1], d, 2*kr)
		}
	}
	inscribed := 2 * outer.FaceInradius()
	for i, dh := range p.HoleDiameters {
		if dh >= inscribed {
			sh.oversized[i] = true
			sh.Warnings = append(sh.Warnings, fmt.Sprintf("face %d: hole diameter %g mm reaches the face edges (inscribed diameter %.2f mm)", i, dh, inscribed))
		}
	}

	s := bld.Difference(
		bld.Label(bld.NewDodecahedron(outer), RoleOuterHull, 0),
		bld.Label(bld.NewDodecahedron(inner), RoleCavity, 0),
	)
	halfLen := float32(p.HoleHalfLength * r)
	for i, dh := range p.HoleDiameters {
		hole := bld.NewCylinder(float32(dh/2), 2*halfLen)
		hole = bld.Rotate(hole, geom.AlignZ(outer.FaceNormal(i)))
		c := vecf(outer.FaceCenter(i))
		hole = bld.Translate(hole, c.X, c.Y, c.Z)
		s = bld.Difference(s, bld.Label(hole, RoleHole, i))
	}
	joined := []Shape{s}
	for j, kc := range sh.KnobCenters {
		c := vecf(kc)
		knob := bld.Translate(bld.NewSphere(float32(kr)), c.X, c.Y, c.Z)
		joined = append(joined, bld.Label(knob, RoleKnob, j))
	}
	sh.Tree = bld.Union(joined...)
	err = bld.Err()
	if err != nil {
		return nil, err
	}
	return sh, nil
}

// HoleOversized reports whether the hole of face i reaches the face edges.
func (sh *Shell) HoleOversized(face int) bool {
	return sh.oversized[face]
}

// AnyOversized reports whether any hole reaches its face edges.
func (sh *Shell) AnyOversized() bool {
	for _, o := range sh.oversized {
		if o {
			return true
		}
	}
	return false
}

// WallNormal returns the wall thickness measured along a face normal.
func (sh *Shell) WallNormal() float64 {
	return sh.Outer.Inradius() - sh.Inner.Inradius()
}

// SupportDistance returns the distance from the center to the plane the
// shell rests on when standing on the knobs around face i.
func (sh *Shell) SupportDistance(face int) float64 {
	n := sh.Outer.FaceNormal(face)
	support := math.Inf(-1)
	for _, c := range sh.KnobCenters {
		support = math.Max(support, r3.Dot(c, n))
	}
	return support + sh.Params.KnobRadius
}

// Standoff returns the gap between face i and the resting plane when the
// shell stands on the knobs around face i.
func (sh *Shell) Standoff(face int) float64 {
	return sh.SupportDistance(face) - sh.Outer.Inradius()
}

// TopHoleHeight returns the height of the top face's hole center above
// the resting plane when resting on face i.
func (sh *Shell) TopHoleHeight(face int) float64 {
	return sh.SupportDistance(face) + sh.Outer.Inradius()
}
