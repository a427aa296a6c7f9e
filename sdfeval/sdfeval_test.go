package sdfeval

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unitSphere struct{}

func (unitSphere) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	for i, p := range pos {
		dist[i] = ms3.Norm(p) - 1
	}
	return nil
}

func (unitSphere) Bounds() ms3.Box {
	return ms3.Box{Min: ms3.Vec{X: -1, Y: -1, Z: -1}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}}
}

func TestVecPoolReuse(t *testing.T) {
	var vp VecPool
	a := vp.Float.Acquire(16)
	b := vp.Float.Acquire(8)
	require.Len(t, a, 16)
	require.Len(t, b, 8)
	require.NotSame(t, &a[0], &b[0])
	require.Error(t, vp.AssertAllReleased())

	require.NoError(t, vp.Float.Release(a))
	c := vp.Float.Acquire(10)
	assert.Same(t, &a[0], &c[0], "released buffer should be reused")
	require.NoError(t, vp.Float.Release(b))
	require.NoError(t, vp.Float.Release(c))
	require.Error(t, vp.Float.Release(c), "double release")
	require.Error(t, vp.Float.Release(make([]float32, 3)), "foreign buffer")
	require.NoError(t, vp.AssertAllReleased())

	v := vp.V3.Acquire(4)
	require.Error(t, vp.AssertAllReleased())
	require.NoError(t, vp.V3.Release(v))
	require.NoError(t, vp.AssertAllReleased())
}

type poolHolder struct{ vp *VecPool }

func (h poolHolder) VecPool() *VecPool { return h.vp }

func TestGetVecPool(t *testing.T) {
	vp := new(VecPool)
	got, err := GetVecPool(vp)
	require.NoError(t, err)
	assert.Same(t, vp, got)

	got, err = GetVecPool(poolHolder{vp: vp})
	require.NoError(t, err)
	assert.Same(t, vp, got)

	_, err = GetVecPool(nil)
	assert.Error(t, err)
	_, err = GetVecPool(poolHolder{})
	assert.Error(t, err)
	_, err = GetVecPool((*VecPool)(nil))
	assert.Error(t, err)
}

func TestCountingSDF3(t *testing.T) {
	c := &CountingSDF3{SDF: unitSphere{}}
	pos := []ms3.Vec{{}, {X: 2}, {Y: -1}}
	dist := make([]float32, len(pos))
	require.NoError(t, c.Evaluate(pos, dist, nil))
	assert.Equal(t, []float32{-1, 1, 0}, dist)
	assert.EqualValues(t, 3, c.Evaluations())
	assert.EqualValues(t, 1, c.Calls())

	assert.Error(t, c.Evaluate(pos, dist[:2], nil))
	assert.Error(t, c.Evaluate(nil, nil, nil))
	assert.EqualValues(t, 3, c.Evaluations())
	assert.Equal(t, unitSphere{}.Bounds(), c.Bounds())
}

func TestCachedSDF3(t *testing.T) {
	counter := &CountingSDF3{SDF: unitSphere{}}
	c := &CachedSDF3{SDF: counter}
	pos := []ms3.Vec{{}, {X: 2}, {Y: -1}}
	dist := make([]float32, len(pos))
	require.NoError(t, c.Evaluate(pos, dist, nil))
	assert.Equal(t, []float32{-1, 1, 0}, dist)

	pos2 := []ms3.Vec{{X: 2}, {Z: 3}, {}}
	dist2 := make([]float32, len(pos2))
	require.NoError(t, c.Evaluate(pos2, dist2, nil))
	assert.Equal(t, []float32{1, 2, -1}, dist2)
	assert.EqualValues(t, 6, c.Evaluations())
	assert.EqualValues(t, 2, c.CacheHits())
	assert.EqualValues(t, 4, counter.Evaluations(), "cached positions must not reach the wrapped SDF")
	assert.Equal(t, 4, c.Cached())

	// Negative zero has a different bit pattern and is a distinct key.
	negz := []ms3.Vec{{X: math32.Copysign(0, -1)}}
	require.NoError(t, c.Evaluate(negz, dist[:1], nil))
	assert.Equal(t, 5, c.Cached())
	assert.Error(t, c.Evaluate(pos, dist[:1], nil))
}

func TestNormalsCentralDiff(t *testing.T) {
	vp := new(VecPool)
	pos := []ms3.Vec{{X: 2}, {Y: -3}, {X: 1, Y: 1, Z: 1}}
	normals := make([]ms3.Vec, len(pos))
	require.NoError(t, NormalsCentralDiff(unitSphere{}, pos, normals, 1e-2, vp))
	for i, p := range pos {
		want := ms3.Unit(p)
		got := ms3.Unit(normals[i])
		assert.InDelta(t, 1, ms3.Dot(want, got), 1e-4, "normal %d", i)
	}
	require.NoError(t, vp.AssertAllReleased())

	assert.Error(t, NormalsCentralDiff(unitSphere{}, pos, normals, 0, vp))
	assert.Error(t, NormalsCentralDiff(unitSphere{}, pos, normals[:1], 1e-3, vp))
	assert.Error(t, NormalsCentralDiff(unitSphere{}, pos, normals, 1e-3, nil))
	assert.Error(t, NormalsCentralDiff(nil, pos, normals, 1e-3, vp))

	// Unnormalized result scales with step: d(p+h/2)-d(p-h/2) = h along the gradient.
	require.NoError(t, NormalsCentralDiff(unitSphere{}, pos[:1], normals[:1], 0.5, vp))
	assert.InDelta(t, 0.5, normals[0].X, 1e-6)
	assert.InDelta(t, 0, normals[0].Y, 1e-6)
}
