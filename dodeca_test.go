package dodeca

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/soypat/dodeca/geom"
	"github.com/soypat/dodeca/sdfeval"
	"github.com/soypat/geometry/ms3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func referenceParams() Params {
	return Params{
		VertexDiameter: 80,
		WallThickness:  3,
		KnobRadius:     8,
		KnobOffset:     DefaultKnobOffset,
		HoleHalfLength: DefaultHoleHalfLength,
		HoleDiameters:  []float64{35, 32, 29, 26, 23, 20, 17, 14, 12, 10, 8, 6},
		Resolution:     64,
	}
}

func TestParamsValidate(t *testing.T) {
	modify := func(fn func(p *Params)) Params {
		p := referenceParams()
		fn(&p)
		return p
	}
	tests := []struct {
		name  string
		p     Params
		param string
		kind  error
	}{
		{name: "reference", p: referenceParams()},
		{name: "half wall", p: modify(func(p *Params) { p.WallThickness = 20 })},
		{name: "zero diameter", p: modify(func(p *Params) { p.VertexDiameter = 0 }), param: "vertex_diameter", kind: ErrInvalidParameter},
		{name: "nan diameter", p: modify(func(p *Params) { p.VertexDiameter = math.NaN() }), param: "vertex_diameter", kind: ErrInvalidParameter},
		{name: "negative wall", p: modify(func(p *Params) { p.WallThickness = -1 }), param: "wall_thickness", kind: ErrInvalidParameter},
		{name: "wall equals radius", p: modify(func(p *Params) { p.WallThickness = 40 }), param: "wall_thickness", kind: ErrInvalidWallThickness},
		{name: "wall exceeds radius", p: modify(func(p *Params) { p.WallThickness = 41 }), param: "wall_thickness", kind: ErrInvalidWallThickness},
		{name: "zero knob", p: modify(func(p *Params) { p.KnobRadius = 0 }), param: "knob_radius", kind: ErrInvalidParameter},
		{name: "knob offset one", p: modify(func(p *Params) { p.KnobOffset = 1 }), param: "knob_offset", kind: ErrInvalidParameter},
		{name: "short holes", p: modify(func(p *Params) { p.HoleHalfLength = 0.5 }), param: "hole_half_length", kind: ErrInvalidParameter},
		{name: "unset hole length", p: modify(func(p *Params) { p.HoleHalfLength = 0 }), param: "hole_half_length", kind: ErrInvalidParameter},
		{name: "knobs on vertices", p: modify(func(p *Params) { p.KnobOffset = 0 })},
		{name: "eleven holes", p: modify(func(p *Params) { p.HoleDiameters = p.HoleDiameters[:11] }), param: "hole_diameters", kind: ErrInvalidParameter},
		{name: "negative hole", p: modify(func(p *Params) { p.HoleDiameters = append([]float64{}, p.HoleDiameters...); p.HoleDiameters[4] = -2 }), param: "hole_diameters[4]", kind: ErrInvalidParameter},
		{name: "low resolution", p: modify(func(p *Params) { p.Resolution = 7 }), param: "tessellation_resolution", kind: ErrInsufficientResolution},
		{name: "minimum resolution", p: modify(func(p *Params) { p.Resolution = MinResolution })},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.p.Validate()
			if test.kind == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, test.kind)
			assert.ErrorIs(t, err, ErrInvalidParameter, "every parameter error is an invalid parameter")
			var perr *ParamError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, test.param, perr.Param)
			assert.Contains(t, err.Error(), test.param)
		})
	}
}

func TestZeroKnobOffset(t *testing.T) {
	p := referenceParams()
	p.KnobOffset = 0
	var bld Builder
	sh, err := BuildShell(&bld, p)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sh.Params.KnobOffset)
	for j, c := range sh.KnobCenters {
		assert.InDelta(t, 0, r3.Norm(r3.Sub(c, sh.Outer.Vertex(j))), 1e-12, "knob %d", j)
	}
	assert.InDelta(t, 8, sh.Standoff(0), 1e-9, "face vertices touch the resting plane through the knob radius")
}

func buildReference(t *testing.T) (*Shell, *Solid) {
	t.Helper()
	var bld Builder
	sh, err := BuildShell(&bld, referenceParams())
	require.NoError(t, err)
	solid, err := Compile(sh.Tree)
	require.NoError(t, err)
	return sh, solid
}

func TestBuildShellOrder(t *testing.T) {
	sh, solid := buildReference(t)
	assert.Empty(t, sh.Warnings)
	steps := solid.Steps()
	require.Len(t, steps, 2+geom.NumFaces+geom.NumVertices)
	assert.Equal(t, Step{Op: OpBase, Role: RoleOuterHull}.String(), steps[0].String())
	assert.Equal(t, OpSubtract, steps[1].Op)
	assert.Equal(t, RoleCavity, steps[1].Role)
	for i := 0; i < geom.NumFaces; i++ {
		st := steps[2+i]
		assert.Equal(t, OpSubtract, st.Op)
		assert.Equal(t, RoleHole, st.Role)
		assert.Equal(t, i, st.Index)
	}
	for j := 0; j < geom.NumVertices; j++ {
		st := steps[2+geom.NumFaces+j]
		assert.Equal(t, OpJoin, st.Op)
		assert.Equal(t, RoleKnob, st.Role)
		assert.Equal(t, j, st.Index)
	}
	require.NoError(t, solid.Validate(sh))
}

func TestSolidMatchesTree(t *testing.T) {
	sh, solid := buildReference(t)
	rng := rand.New(rand.NewSource(1))
	bb := solid.Bounds()
	sz := bb.Size()
	pos := make([]ms3.Vec, 2048)
	for i := range pos {
		pos[i] = ms3.Add(bb.Min, ms3.Vec{X: rng.Float32() * sz.X, Y: rng.Float32() * sz.Y, Z: rng.Float32() * sz.Z})
	}
	want := make([]float32, len(pos))
	got := make([]float32, len(pos))
	vp := new(sdfeval.VecPool)
	require.NoError(t, sh.Tree.Evaluate(pos, want, vp))
	require.NoError(t, solid.Evaluate(pos, got, vp))
	assert.Equal(t, want, got)
	require.NoError(t, vp.AssertAllReleased())

	err := solid.Evaluate(pos, got, nil)
	assert.Error(t, err, "evaluation requires a VecPool")
}

func TestSolidDistances(t *testing.T) {
	sh, solid := buildReference(t)
	vp := new(sdfeval.VecPool)
	n0 := sh.Outer.FaceNormal(0)
	// Points along the face 0 axis: center empty, hole empty, far outside empty.
	var pos []ms3.Vec
	for _, d := range []float64{0, 20, 30.3, 33, 60} {
		pos = append(pos, vecf(r3.Scale(d, n0)))
	}
	// Knob and wall near vertex 0.
	pos = append(pos, vecf(sh.KnobCenters[0]), vecf(sh.Outer.Vertex(0)))
	dist := make([]float32, len(pos))
	require.NoError(t, solid.Evaluate(pos, dist, vp))
	for i := 0; i < 5; i++ {
		assert.Greater(t, dist[i], float32(0), "axis point %d should be empty", i)
	}
	assert.InDelta(t, -8, dist[5], 1e-4, "knob center is one knob radius deep")
	assert.Less(t, dist[6], float32(0))
}

func TestCompileRejectsOrder(t *testing.T) {
	var bld Builder
	d, err := geom.New(40)
	require.NoError(t, err)
	inner, err := geom.New(37)
	require.NoError(t, err)
	outer := bld.Label(bld.NewDodecahedron(d), RoleOuterHull, 0)
	cavity := bld.Label(bld.NewDodecahedron(inner), RoleCavity, 0)
	hole := bld.Label(bld.NewCylinder(3, 80), RoleHole, 0)
	knob := bld.Label(bld.Translate(bld.NewSphere(8), 0, 0, 40), RoleKnob, 0)
	hole1 := bld.Label(bld.NewCylinder(3, 80), RoleHole, 1)

	valid := bld.Union(bld.Difference(bld.Difference(bld.Difference(outer, cavity), hole), hole1), knob)
	_, err = Compile(valid)
	require.NoError(t, err)

	bad := map[string]Shape{
		"hole after knob":     bld.Difference(bld.Union(bld.Difference(outer, cavity), knob), hole),
		"cavity last":         bld.Difference(bld.Difference(outer, hole), cavity),
		"holes out of order":  bld.Difference(bld.Difference(bld.Difference(outer, cavity), hole1), hole),
		"knob subtracted":     bld.Difference(bld.Difference(outer, cavity), knob),
		"unlabeled":           bld.Difference(outer, bld.NewSphere(1)),
		"nested label":        bld.Difference(outer, bld.Label(bld.Difference(bld.NewSphere(2), cavity), RoleCavity, 0)),
		"outer hull missing":  bld.Difference(cavity, outer),
		"bare primitive tree": bld.NewSphere(1),
	}
	for name, tree := range bad {
		_, err := Compile(tree)
		assert.ErrorIs(t, err, errCSGOrder, name)
	}
}

func TestKnobOverlap(t *testing.T) {
	p := referenceParams()
	p.KnobRadius = 18
	var bld Builder
	_, err := BuildShell(&bld, p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
	var gerr *GeometryError
	require.ErrorAs(t, err, &gerr)
	assert.GreaterOrEqual(t, gerr.Vertex, 0)
	assert.Contains(t, err.Error(), "overlaps")
}

func TestOversizedHoleWarns(t *testing.T) {
	p := referenceParams()
	p.HoleDiameters = append([]float64{}, p.HoleDiameters...)
	p.HoleDiameters[0] = 40
	var bld Builder
	sh, err := BuildShell(&bld, p)
	require.NoError(t, err)
	require.Len(t, sh.Warnings, 1)
	assert.Contains(t, sh.Warnings[0], "face 0")
	assert.True(t, sh.HoleOversized(0))
	assert.False(t, sh.HoleOversized(1))
	assert.True(t, sh.AnyOversized())
}

func TestStandoff(t *testing.T) {
	sh, _ := buildReference(t)
	inr := sh.Outer.Inradius()
	want := inr*DefaultKnobOffset*8/40 + 8
	for face := 0; face < geom.NumFaces; face++ {
		assert.InDelta(t, want, sh.Standoff(face), 1e-9, "face %d", face)
		assert.InDelta(t, 2*inr+want, sh.TopHoleHeight(face), 1e-9)
	}
	assert.InDelta(t, 9.907, sh.Standoff(0), 1e-3)
}

func TestCellSize(t *testing.T) {
	sh, _ := buildReference(t)
	h := sh.CellSize()
	assert.Equal(t, 3.0, sh.MinCurvedRadius())
	assert.InDelta(t, 2*math.Pi*3/64, h, 1e-12, "smallest hole gets the resolution")
	require.NoError(t, sh.CheckResolution(h))
	assert.InDelta(t, 3*sh.Outer.Inradius()/40, sh.WallNormal(), 1e-9)

	build := func(fn func(p *Params)) *Shell {
		p := referenceParams()
		p.HoleDiameters = append([]float64{}, p.HoleDiameters...)
		fn(&p)
		var bld Builder
		sh, err := BuildShell(&bld, p)
		require.NoError(t, err)
		return sh
	}
	// Resolution always applies to the smallest feature, down to the minimum.
	for _, res := range []int{MinResolution, 16, 32} {
		sh := build(func(p *Params) { p.Resolution = res; p.HoleDiameters[11] = 1 })
		h := sh.CellSize()
		assert.InDelta(t, 2*math.Pi*0.5/float64(res), h, 1e-12)
		require.NoError(t, sh.CheckResolution(h), "resolution %d", res)
	}
	// A thick wall no longer coarsens the lattice past the holes.
	sh = build(func(p *Params) { p.WallThickness = 10; p.Resolution = 16 })
	h = sh.CellSize()
	assert.InDelta(t, 2*math.Pi*3/16, h, 1e-12)
	require.NoError(t, sh.CheckResolution(h))
	for i, d := range sh.Params.HoleDiameters {
		assert.GreaterOrEqual(t, math.Pi*d/h, 16.0-1e-9, "face %d", i)
	}
	// Thin walls cap the spacing.
	sh = build(func(p *Params) { p.WallThickness = 1; p.Resolution = MinResolution })
	assert.InDelta(t, sh.WallNormal()/2, sh.CellSize(), 1e-12)

	err := sh.CheckResolution(10)
	assert.ErrorIs(t, err, ErrInsufficientResolution, "explicit spacing too coarse for the holes")
	assert.Contains(t, err.Error(), "face 4", "first hole under 8 segments")
	err = sh.CheckResolution(1e-4)
	assert.ErrorIs(t, err, ErrInvalidParameter, "oversized lattice")
}

func TestValidateDetectsBlockedHole(t *testing.T) {
	sh, _ := buildReference(t)
	var bld Builder
	steps := mustSteps(t, sh.Tree)
	// Rebuild the tree with knob 5 extended to plug the hole of face 0.
	plug := vecf(r3.Scale(sh.Outer.Inradius()-sh.WallNormal()/2, sh.Outer.FaceNormal(0)))
	s := steps[0].Shape
	for _, st := range steps[1 : 2+geom.NumFaces] {
		s = bld.Difference(s, st.Shape)
	}
	joined := []Shape{s}
	for _, st := range steps[2+geom.NumFaces:] {
		if st.Index == 5 {
			extended := bld.Union(st.Shape.(*labeled).s, bld.Translate(bld.NewSphere(2), plug.X, plug.Y, plug.Z))
			joined = append(joined, bld.Label(extended, RoleKnob, 5))
			continue
		}
		joined = append(joined, st.Shape)
	}
	solid, err := Compile(bld.Union(joined...))
	require.NoError(t, err)
	err = solid.Validate(sh)
	require.Error(t, err)
	var gerr *GeometryError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, 0, gerr.Face)
	assert.True(t, errors.Is(err, ErrDegenerateGeometry))
}

func TestValidateDetectsMissingHole(t *testing.T) {
	sh, _ := buildReference(t)
	var bld Builder
	steps := mustSteps(t, sh.Tree)
	s := steps[0].Shape
	for _, st := range steps[1 : 2+geom.NumFaces] {
		if st.Role == RoleHole && st.Index == 3 {
			// A hole far away from its face cuts nothing.
			st.Shape = bld.Label(bld.Translate(bld.NewSphere(1), 500, 0, 0), RoleHole, 3)
		}
		s = bld.Difference(s, st.Shape)
	}
	joined := []Shape{s}
	for _, st := range steps[2+geom.NumFaces:] {
		joined = append(joined, st.Shape)
	}
	solid, err := Compile(bld.Union(joined...))
	require.NoError(t, err)
	err = solid.Validate(sh)
	var gerr *GeometryError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, 3, gerr.Face)
	assert.Contains(t, gerr.Error(), "does not open")
}

func mustSteps(t *testing.T, tree Shape) []Step {
	t.Helper()
	solid, err := Compile(tree)
	require.NoError(t, err)
	return solid.Steps()
}

func TestBuilderAccumulatesErrors(t *testing.T) {
	bld := Builder{NoDimensionPanic: true}
	bld.NewSphere(-1)
	bld.NewCylinder(0, 1)
	require.Error(t, bld.Err())
	assert.Contains(t, bld.Err().Error(), "sphere")

	var panicky Builder
	assert.Panics(t, func() { panicky.NewSphere(0) })
}

func TestRotateBounds(t *testing.T) {
	var bld Builder
	d, err := geom.New(1)
	require.NoError(t, err)
	n := d.FaceNormal(7)
	cyl := bld.Rotate(bld.NewCylinder(0.5, 4), geom.AlignZ(n))
	bb := cyl.Bounds()
	tip := vecf(r3.Scale(2, n))
	for _, p := range []ms3.Vec{tip, ms3.Scale(-1, tip)} {
		assert.True(t, p.X >= bb.Min.X-1e-5 && p.X <= bb.Max.X+1e-5, "tip %v outside %v", p, bb)
		assert.True(t, p.Y >= bb.Min.Y-1e-5 && p.Y <= bb.Max.Y+1e-5)
		assert.True(t, p.Z >= bb.Min.Z-1e-5 && p.Z <= bb.Max.Z+1e-5)
	}
	dist := make([]float32, 3)
	pos := []ms3.Vec{{}, ms3.Scale(1.9, vecf(n)), ms3.Scale(2.1, vecf(n))}
	require.NoError(t, cyl.Evaluate(pos, dist, new(sdfeval.VecPool)))
	assert.InDelta(t, -0.5, dist[0], 1e-5)
	assert.InDelta(t, -0.1, dist[1], 1e-5)
	assert.InDelta(t, 0.1, dist[2], 1e-5)
}
