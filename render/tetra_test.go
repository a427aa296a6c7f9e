package render

import (
	"errors"
	"math"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/dodeca/mesh"
	"github.com/soypat/dodeca/sdfeval"
	"github.com/soypat/geometry/ms3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sphere struct{ r float32 }

func (s sphere) Evaluate(pos []ms3.Vec, dist []float32, _ any) error {
	for i, p := range pos {
		dist[i] = ms3.Norm(p) - s.r
	}
	return nil
}

func (s sphere) Bounds() ms3.Box {
	return ms3.Box{Min: ms3.Vec{X: -s.r, Y: -s.r, Z: -s.r}, Max: ms3.Vec{X: s.r, Y: s.r, Z: s.r}}
}

// torus lies in the XZ plane.
type torus struct{ R, r float32 }

func (t torus) Evaluate(pos []ms3.Vec, dist []float32, _ any) error {
	for i, p := range pos {
		q := math32.Hypot(p.X, p.Z) - t.R
		dist[i] = math32.Hypot(q, p.Y) - t.r
	}
	return nil
}

func (t torus) Bounds() ms3.Box {
	e := t.R + t.r
	return ms3.Box{Min: ms3.Vec{X: -e, Y: -t.r, Z: -e}, Max: ms3.Vec{X: e, Y: t.r, Z: e}}
}

type failing struct{ sphere }

func (failing) Evaluate([]ms3.Vec, []float32, any) error { return errors.New("evaluation failed") }

func TestRenderSphere(t *testing.T) {
	const h = 0.1
	s := &sdfeval.CountingSDF3{SDF: sphere{r: 1}}
	r, err := NewTetraRenderer(s, h, 0)
	require.NoError(t, err)
	assert.Equal(t, [3]int{32, 32, 32}, r.Cells())
	assert.Equal(t, 64, r.Blocks())

	m, err := r.Render(nil)
	require.NoError(t, err)
	topo, err := mesh.Check(m)
	require.NoError(t, err)
	assert.Equal(t, 2, topo.Euler)
	assert.Equal(t, 1, topo.Components)
	require.NoError(t, mesh.CheckIntersections(m))
	assert.Equal(t, 0, topo.Genus())
	assert.InEpsilon(t, 4.0/3*math.Pi, topo.Volume, 0.03)

	for _, v := range m.Vertices {
		assert.InDelta(t, 1, ms3.Norm(v), 0.01)
	}
	for i := range m.Faces {
		tri := m.Triangle(i)
		centroid := ms3.Scale(1.0/3, ms3.Add(ms3.Add(tri[0], tri[1]), tri[2]))
		require.Positive(t, ms3.Dot(tri.Normal(), centroid), "triangle %d faces inward", i)
	}

	assert.Positive(t, r.PrunedBlocks())
	assert.Less(t, r.PrunedBlocks(), uint64(r.Blocks()))
	assert.Equal(t, s.Evaluations(), r.Evaluations())
}

func TestRenderTorusGenus(t *testing.T) {
	r, err := NewTetraRenderer(torus{R: 1, r: 0.4}, 0.08, 4)
	require.NoError(t, err)
	m, err := r.Render(nil)
	require.NoError(t, err)
	topo, err := mesh.Check(m)
	require.NoError(t, err)
	assert.Equal(t, 0, topo.Euler)
	assert.Equal(t, 1, topo.Genus())
	require.NoError(t, mesh.CheckIntersections(m))
	assert.InEpsilon(t, 2*math.Pi*math.Pi*1*0.4*0.4, topo.Volume, 0.05)

	// Triangles face along the distance field gradient.
	centroids := make([]ms3.Vec, len(m.Faces))
	for i := range m.Faces {
		tri := m.Triangle(i)
		centroids[i] = ms3.Scale(1.0/3, ms3.Add(ms3.Add(tri[0], tri[1]), tri[2]))
	}
	grads := make([]ms3.Vec, len(centroids))
	vp := new(sdfeval.VecPool)
	require.NoError(t, sdfeval.NormalsCentralDiff(torus{R: 1, r: 0.4}, centroids, grads, 0.01, vp))
	for i, g := range grads {
		require.Positive(t, ms3.Dot(m.Triangle(i).Normal(), ms3.Unit(g)), "triangle %d", i)
	}
}

func TestRenderDeterministic(t *testing.T) {
	r, err := NewTetraRenderer(torus{R: 0.8, r: 0.3}, 0.1, 0)
	require.NoError(t, err)
	m1, err := r.Render(nil)
	require.NoError(t, err)
	pruned := r.PrunedBlocks()
	m2, err := r.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, m1, m2)
	assert.Equal(t, pruned, r.PrunedBlocks(), "statistics reset between renders")
}

func TestRenderBlockSizeIndependent(t *testing.T) {
	// Pruning only removes empty blocks so block size must not change the surface.
	var meshes []*mesh.Mesh
	for _, block := range []int{1, 3, 8} {
		r, err := NewTetraRenderer(sphere{r: 0.5}, 0.1, block)
		require.NoError(t, err)
		m, err := r.Render(nil)
		require.NoError(t, err)
		meshes = append(meshes, m)
	}
	for _, m := range meshes[1:] {
		assert.Equal(t, len(meshes[0].Faces), len(m.Faces))
		assert.Equal(t, len(meshes[0].Vertices), len(m.Vertices))
	}
}

func TestNewTetraRendererErrors(t *testing.T) {
	_, err := NewTetraRenderer(nil, 0.1, 0)
	assert.Error(t, err)
	for _, h := range []float32{0, -1, math32.Inf(1), math32.NaN()} {
		_, err = NewTetraRenderer(sphere{r: 1}, h, 0)
		assert.Error(t, err, "cell size %g", h)
	}
	_, err = NewTetraRenderer(sphere{r: 1}, 0.1, -2)
	assert.Error(t, err)
	_, err = NewTetraRenderer(sphere{r: 0}, 0.1, 0)
	assert.Error(t, err, "degenerate bounds")
	_, err = NewTetraRenderer(sphere{r: 1000}, 1e-4, 0)
	assert.Error(t, err, "lattice too large")

	r, err := NewTetraRenderer(failing{sphere{r: 1}}, 0.2, 0)
	require.NoError(t, err)
	_, err = r.Render(nil)
	assert.Error(t, err)
}
