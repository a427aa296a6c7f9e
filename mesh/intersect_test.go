package mesh

import (
	"testing"

	"github.com/soypat/geometry/ms3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckIntersections(t *testing.T) {
	require.NoError(t, CheckIntersections(tetrahedron(ms3.Vec{})))
	require.NoError(t, CheckIntersections(merge(tetrahedron(ms3.Vec{}), tetrahedron(ms3.Vec{X: 5}))))
	// Separate vertices at the same position touch without crossing.
	require.NoError(t, CheckIntersections(merge(tetrahedron(ms3.Vec{}), tetrahedron(ms3.Vec{X: 1}))))
	// Overlapping coplanar triangles.
	require.NoError(t, CheckIntersections(&Mesh{
		Vertices: []ms3.Vec{{}, {X: 2}, {Y: 2}, {X: 0.2, Y: 0.2}, {X: 1, Y: 0.2}, {X: 0.2, Y: 1}},
		Faces:    [][3]uint32{{0, 1, 2}, {3, 4, 5}},
	}))

	err := CheckIntersections(merge(tetrahedron(ms3.Vec{}), tetrahedron(ms3.Vec{X: 0.25, Y: 0.25, Z: 0.25})))
	require.Error(t, err)
	var derr *DefectError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, DefectSelfIntersection, derr.Kind)
	assert.Less(t, derr.Triangle, 4)
	assert.GreaterOrEqual(t, derr.Other, 4)
	assert.Contains(t, err.Error(), "self-intersection between triangles")

	// A single triangle pierced by another.
	pierced := &Mesh{
		Vertices: []ms3.Vec{{}, {X: 2}, {Y: 2}, {X: 0.5, Y: 0.5, Z: -1}, {X: 0.5, Y: 0.5, Z: 1}, {X: 1, Y: 0.2, Z: 0}},
		Faces:    [][3]uint32{{0, 1, 2}, {3, 4, 5}},
	}
	assert.Equal(t, DefectSelfIntersection, defectKind(t, CheckIntersections(pierced)))
}

func TestComponentLabels(t *testing.T) {
	two := merge(tetrahedron(ms3.Vec{}), tetrahedron(ms3.Vec{X: 5}))
	two.Vertices = append(two.Vertices, ms3.Vec{Z: 9})
	labels, n := ComponentLabels(two)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int32{0, 0, 0, 0, 1, 1, 1, 1, -1}, labels)
}
