package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// CheckTopology verifies that faces describe a closed, consistently wound,
// outward facing polyhedron over verts:
//   - every undirected edge is shared by exactly two faces and every directed edge appears once,
//   - the polyhedron has 30 edges and every vertex belongs to three faces,
//   - every face is planar and wound counter-clockwise seen from outside,
//   - all vertices lie on a common sphere centered at the origin.
func CheckTopology(faces [NumFaces][FaceSides]int, verts [NumVertices]r3.Vec) error {
	directed := make(map[[2]int]int, NumFaces*FaceSides)
	undirected := make(map[[2]int]int, NumEdges)
	var vertexUse [NumVertices]int
	for fi, f := range faces {
		for j, a := range f {
			b := f[(j+1)%FaceSides]
			if a < 0 || a >= NumVertices {
				return fmt.Errorf("face %d: vertex index %d out of range", fi, a)
			}
			if a == b {
				return fmt.Errorf("face %d: repeated vertex %d", fi, a)
			}
			vertexUse[a]++
			if prev, ok := directed[[2]int{a, b}]; ok {
				return fmt.Errorf("faces %d and %d share directed edge %d->%d: inconsistent winding", prev, fi, a, b)
			}
			directed[[2]int{a, b}] = fi
			undirected[[2]int{min(a, b), max(a, b)}]++
		}
	}
	if len(undirected) != NumEdges {
		return fmt.Errorf("want %d edges, got %d", NumEdges, len(undirected))
	}
	for e, n := range undirected {
		if n != 2 {
			return fmt.Errorf("edge %d-%d shared by %d faces", e[0], e[1], n)
		}
	}
	for vi, n := range vertexUse {
		if n != 3 {
			return fmt.Errorf("vertex %d belongs to %d faces", vi, n)
		}
	}

	r := r3.Norm(verts[0])
	if r == 0 {
		return errors.New("zero circumradius")
	}
	tol := 1e-9 * r
	for vi, v := range verts {
		if math.Abs(r3.Norm(v)-r) > tol {
			return fmt.Errorf("vertex %d not on circumsphere", vi)
		}
	}
	for fi, f := range faces {
		var center, area r3.Vec
		for j := range f {
			p, q := verts[f[j]], verts[f[(j+1)%FaceSides]]
			center = r3.Add(center, p)
			area = r3.Add(area, r3.Cross(p, q)) // Newell's method.
		}
		center = r3.Scale(1.0/FaceSides, center)
		n := r3.Unit(area)
		if r3.Dot(n, center) <= 0 {
			return fmt.Errorf("face %d wound inward", fi)
		}
		for _, vi := range f {
			if math.Abs(r3.Dot(r3.Sub(verts[vi], center), n)) > tol {
				return fmt.Errorf("face %d not planar at vertex %d", fi, vi)
			}
		}
	}
	return nil
}

// AlignZ returns the rotation that takes the +Z axis onto the unit vector n.
// The rotation axis is cross(+Z, n) and the angle acos(n·Z). When n is
// parallel to Z the axis degenerates and +X is used instead.
func AlignZ(n r3.Vec) r3.Rotation {
	z := r3.Vec{Z: 1}
	n = r3.Unit(n)
	axis := r3.Cross(z, n)
	if r3.Norm(axis) < 1e-12 {
		axis = r3.Vec{X: 1}
	}
	angle := math.Acos(math.Max(-1, math.Min(1, r3.Dot(n, z))))
	return r3.NewRotation(angle, r3.Unit(axis))
}
