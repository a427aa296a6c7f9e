package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// CheckIntersections reports the first pair of triangles of m that cross each
// other as a [*DefectError] of kind [DefectSelfIntersection]. Triangles
// sharing a vertex are adjacent and are not tested against each other; their
// arrangement is covered by the edge and fan checks of [Check]. Touching and
// coplanar triangles do not count as crossing.
func CheckIntersections(m *Mesh) error {
	if len(m.Faces) < 2 {
		return nil
	}
	tris := make([][3]r3.Vec, len(m.Faces))
	var maxEdge float64
	for i := range m.Faces {
		t := m.Triangle(i)
		for k, v := range t {
			tris[i][k] = r3.Vec{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
		}
		for k := range t {
			maxEdge = math.Max(maxEdge, r3.Norm(r3.Sub(tris[i][k], tris[i][(k+1)%3])))
		}
	}
	if !(maxEdge > 0) || math.IsInf(maxEdge, 0) {
		return nil
	}
	// Buckets at least as wide as any triangle so each triangle spans at most
	// two buckets per axis.
	cell := maxEdge
	bb := m.Bounds()
	origin := r3.Vec{X: float64(bb.Min.X), Y: float64(bb.Min.Y), Z: float64(bb.Min.Z)}
	type box struct {
		lo, hi   r3.Vec
		clo, chi [3]int32
	}
	boxes := make([]box, len(tris))
	buckets := make(map[[3]int32][]int32)
	for i, t := range tris {
		b := box{lo: t[0], hi: t[0]}
		for _, p := range t[1:] {
			b.lo = minVec(b.lo, p)
			b.hi = maxVec(b.hi, p)
		}
		b.clo = cellOf(r3.Sub(b.lo, origin), cell)
		b.chi = cellOf(r3.Sub(b.hi, origin), cell)
		boxes[i] = b
		for x := b.clo[0]; x <= b.chi[0]; x++ {
			for y := b.clo[1]; y <= b.chi[1]; y++ {
				for z := b.clo[2]; z <= b.chi[2]; z++ {
					key := [3]int32{x, y, z}
					buckets[key] = append(buckets[key], int32(i))
				}
			}
		}
	}
	tol := 1e-7 * maxEdge
	for i, bi := range boxes {
		fi := m.Faces[i]
		for x := bi.clo[0]; x <= bi.chi[0]; x++ {
			for y := bi.clo[1]; y <= bi.chi[1]; y++ {
				for z := bi.clo[2]; z <= bi.chi[2]; z++ {
					key := [3]int32{x, y, z}
					for _, j := range buckets[key] {
						if int(j) <= i {
							continue
						}
						bj := boxes[j]
						// Test each pair once, in the lowest bucket both triangles occupy.
						if key != maxCell(bi.clo, bj.clo) {
							continue
						}
						if !boxesOverlap(bi.lo, bi.hi, bj.lo, bj.hi) || sharesVertex(fi, m.Faces[j]) {
							continue
						}
						if trianglesCross(tris[i], tris[j], tol) {
							return &DefectError{Kind: DefectSelfIntersection, Triangle: i, Other: int(j)}
						}
					}
				}
			}
		}
	}
	return nil
}

func maxCell(a, b [3]int32) [3]int32 {
	for ax := range a {
		if b[ax] > a[ax] {
			a[ax] = b[ax]
		}
	}
	return a
}

func cellOf(p r3.Vec, cell float64) [3]int32 {
	return [3]int32{
		int32(math.Floor(p.X / cell)),
		int32(math.Floor(p.Y / cell)),
		int32(math.Floor(p.Z / cell)),
	}
}

func boxesOverlap(alo, ahi, blo, bhi r3.Vec) bool {
	return ahi.X >= blo.X && bhi.X >= alo.X &&
		ahi.Y >= blo.Y && bhi.Y >= alo.Y &&
		ahi.Z >= blo.Z && bhi.Z >= alo.Z
}

func sharesVertex(a, b [3]uint32) bool {
	for _, va := range a {
		for _, vb := range b {
			if va == vb {
				return true
			}
		}
	}
	return false
}

// trianglesCross reports whether a and b properly cross: each straddles the
// plane of the other by more than tol and their segments on the line where
// the planes meet overlap by more than tol.
func trianglesCross(a, b [3]r3.Vec, tol float64) bool {
	na := r3.Cross(r3.Sub(a[1], a[0]), r3.Sub(a[2], a[0]))
	nb := r3.Cross(r3.Sub(b[1], b[0]), r3.Sub(b[2], b[0]))
	if r3.Norm(na) == 0 || r3.Norm(nb) == 0 {
		return false
	}
	na, nb = r3.Unit(na), r3.Unit(nb)
	var da, db [3]float64
	for k := 0; k < 3; k++ {
		db[k] = r3.Dot(na, r3.Sub(b[k], a[0]))
		da[k] = r3.Dot(nb, r3.Sub(a[k], b[0]))
	}
	if !straddles(da, tol) || !straddles(db, tol) {
		return false
	}
	dir := r3.Cross(na, nb)
	if r3.Norm(dir) < 1e-12 {
		return false // Coplanar.
	}
	dir = r3.Unit(dir)
	amin, amax := lineInterval(a, da, dir, tol)
	bmin, bmax := lineInterval(b, db, dir, tol)
	return math.Min(amax, bmax)-math.Max(amin, bmin) > tol
}

// straddles reports whether the signed distances d have vertices on both
// sides of a plane by more than tol.
func straddles(d [3]float64, tol float64) bool {
	var pos, neg bool
	for _, v := range d {
		pos = pos || v > tol
		neg = neg || v < -tol
	}
	return pos && neg
}

// lineInterval returns the extent along dir of the part of triangle t lying on
// the plane its vertices have signed distances d from.
func lineInterval(t [3]r3.Vec, d [3]float64, dir r3.Vec, tol float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	add := func(p r3.Vec) {
		s := r3.Dot(dir, p)
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	side := func(v float64) int {
		switch {
		case v > tol:
			return 1
		case v < -tol:
			return -1
		}
		return 0
	}
	for k := 0; k < 3; k++ {
		sk, sn := side(d[k]), side(d[(k+1)%3])
		if sk == 0 {
			add(t[k])
		}
		if sk*sn < 0 {
			u := d[k] / (d[k] - d[(k+1)%3])
			add(r3.Add(t[k], r3.Scale(u, r3.Sub(t[(k+1)%3], t[k]))))
		}
	}
	return lo, hi
}

func minVec(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

func maxVec(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}
