package mesh

import (
	"errors"
	"fmt"
)

// DefectKind classifies a mesh defect found by [Check].
type DefectKind uint8

const (
	_ DefectKind = iota
	DefectBadIndex
	DefectZeroArea
	DefectDuplicateTriangle
	// DefectNonManifoldEdge is a directed edge used by more than one triangle,
	// meaning an edge shared by more than two triangles or inconsistent winding.
	DefectNonManifoldEdge
	// DefectBoundaryEdge is an edge used by a single triangle: the mesh has a hole.
	DefectBoundaryEdge
	// DefectNonManifoldVertex is a vertex whose triangles do not form a single fan.
	DefectNonManifoldVertex
	// DefectInverted means the enclosed volume is not positive: triangles face inward.
	DefectInverted
	// DefectSelfIntersection is a pair of triangles crossing each other.
	DefectSelfIntersection
)

func (k DefectKind) String() string {
	switch k {
	case DefectBadIndex:
		return "bad vertex index"
	case DefectZeroArea:
		return "zero area triangle"
	case DefectDuplicateTriangle:
		return "duplicate triangle"
	case DefectNonManifoldEdge:
		return "non-manifold edge"
	case DefectBoundaryEdge:
		return "open boundary edge"
	case DefectNonManifoldVertex:
		return "non-manifold vertex"
	case DefectInverted:
		return "inverted orientation"
	case DefectSelfIntersection:
		return "self-intersection"
	}
	return "unknown defect"
}

// minArea is the area below which a triangle is considered degenerate.
const minArea = 1e-12

// DefectError describes the first defect found in a mesh.
// Triangle and Edge are -1 and zero when not applicable.
type DefectError struct {
	Kind     DefectKind
	Triangle int
	Edge     [2]uint32
	// Other is the second triangle of a self-intersection.
	Other int
}

func (e *DefectError) Error() string {
	switch {
	case e.Kind == DefectSelfIntersection:
		return fmt.Sprintf("mesh: %s between triangles %d and %d", e.Kind, e.Triangle, e.Other)
	case e.Kind == DefectBoundaryEdge || e.Kind == DefectNonManifoldEdge:
		return fmt.Sprintf("mesh: %s %d-%d (triangle %d)", e.Kind, e.Edge[0], e.Edge[1], e.Triangle)
	case e.Kind == DefectNonManifoldVertex:
		return fmt.Sprintf("mesh: %s %d", e.Kind, e.Edge[0])
	case e.Triangle >= 0:
		return fmt.Sprintf("mesh: %s (triangle %d)", e.Kind, e.Triangle)
	}
	return "mesh: " + e.Kind.String()
}

// Topology summarizes a closed manifold mesh.
type Topology struct {
	Vertices   int
	Edges      int
	Faces      int
	Components int
	// Euler is the Euler characteristic V - E + F.
	Euler int
	// Volume is the signed enclosed volume.
	Volume float64
}

// Genus returns the genus of a single component closed orientable surface:
// the number of through-holes.
func (t Topology) Genus() int {
	return (2*t.Components - t.Euler) / 2
}

// Check verifies m is a closed, consistently oriented 2-manifold with outward
// facing triangles and no degenerate or duplicate triangles. On success it
// returns the mesh topology.
func Check(m *Mesh) (Topology, error) {
	var topo Topology
	if len(m.Faces) == 0 {
		return topo, errors.New("mesh: no triangles")
	}
	nv := uint32(len(m.Vertices))
	directed := make(map[uint64]int32, 3*len(m.Faces))
	seen := make(map[[3]uint32]int32, len(m.Faces))
	used := make([]bool, nv)
	for ti, f := range m.Faces {
		if f[0] >= nv || f[1] >= nv || f[2] >= nv || f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			return topo, &DefectError{Kind: DefectBadIndex, Triangle: ti}
		}
		if m.Triangle(ti).Area() < minArea {
			return topo, &DefectError{Kind: DefectZeroArea, Triangle: ti}
		}
		key := sort3(f)
		if _, dup := seen[key]; dup {
			return topo, &DefectError{Kind: DefectDuplicateTriangle, Triangle: ti}
		}
		seen[key] = int32(ti)
		for j := 0; j < 3; j++ {
			a, b := f[j], f[(j+1)%3]
			k := edgeKey(a, b)
			if _, ok := directed[k]; ok {
				return topo, &DefectError{Kind: DefectNonManifoldEdge, Triangle: ti, Edge: [2]uint32{a, b}}
			}
			directed[k] = int32(ti)
			used[a] = true
		}
	}
	for k, ti := range directed {
		a, b := uint32(k>>32), uint32(k)
		if _, ok := directed[edgeKey(b, a)]; !ok {
			return topo, &DefectError{Kind: DefectBoundaryEdge, Triangle: int(ti), Edge: [2]uint32{a, b}}
		}
	}
	if v, ok := checkFans(m, nv); !ok {
		return topo, &DefectError{Kind: DefectNonManifoldVertex, Triangle: -1, Edge: [2]uint32{v, v}}
	}
	vol := m.SignedVolume()
	if !(vol > 0) {
		return topo, &DefectError{Kind: DefectInverted, Triangle: -1}
	}

	for _, u := range used {
		if u {
			topo.Vertices++
		}
	}
	topo.Edges = len(directed) / 2
	topo.Faces = len(m.Faces)
	topo.Euler = topo.Vertices - topo.Edges + topo.Faces
	_, topo.Components = ComponentLabels(m)
	topo.Volume = vol
	return topo, nil
}

// checkFans verifies the triangles around every vertex form one closed fan.
// It returns the first offending vertex.
func checkFans(m *Mesh, nv uint32) (uint32, bool) {
	// Compressed adjacency: for each corner v of face (v,b,c) store the pair (b,c).
	start := make([]uint32, nv+1)
	for _, f := range m.Faces {
		for _, v := range f {
			start[v+1]++
		}
	}
	for i := uint32(1); i <= nv; i++ {
		start[i] += start[i-1]
	}
	fill := append([]uint32{}, start[:nv]...)
	pairs := make([][2]uint32, 3*len(m.Faces))
	for _, f := range m.Faces {
		for j := 0; j < 3; j++ {
			v := f[j]
			pairs[fill[v]] = [2]uint32{f[(j+1)%3], f[(j+2)%3]}
			fill[v]++
		}
	}
	for v := uint32(0); v < nv; v++ {
		fan := pairs[start[v]:start[v+1]]
		if len(fan) == 0 {
			continue
		}
		first := fan[0][0]
		cur := fan[0][1]
		steps := 1
		for cur != first {
			next := -1
			for i, p := range fan {
				if p[0] == cur {
					next = i
					break
				}
			}
			if next < 0 || steps > len(fan) {
				return v, false
			}
			cur = fan[next][1]
			steps++
		}
		if steps != len(fan) {
			return v, false
		}
	}
	return 0, true
}

// ComponentLabels assigns every vertex the index of the connected component
// it belongs to, numbered in order of the lowest vertex index of each
// component. Vertices used by no triangle are labeled -1. It returns the
// labels and the number of components.
func ComponentLabels(m *Mesh) (labels []int32, n int) {
	parent := make([]uint32, len(m.Vertices))
	for i := range parent {
		parent[i] = uint32(i)
	}
	find := func(x uint32) uint32 {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	used := make([]bool, len(m.Vertices))
	for _, f := range m.Faces {
		a := find(f[0])
		used[f[0]] = true
		for _, v := range f[1:] {
			used[v] = true
			b := find(v)
			if a != b {
				parent[b] = a
			}
		}
	}
	labels = make([]int32, len(m.Vertices))
	rootLabel := make(map[uint32]int32)
	for i := range labels {
		if !used[i] {
			labels[i] = -1
			continue
		}
		root := find(uint32(i))
		l, ok := rootLabel[root]
		if !ok {
			l = int32(len(rootLabel))
			rootLabel[root] = l
		}
		labels[i] = l
	}
	return labels, len(rootLabel)
}

func edgeKey(a, b uint32) uint64 {
	return uint64(a)<<32 | uint64(b)
}

func sort3(f [3]uint32) [3]uint32 {
	if f[0] > f[1] {
		f[0], f[1] = f[1], f[0]
	}
	if f[1] > f[2] {
		f[1], f[2] = f[2], f[1]
	}
	if f[0] > f[1] {
		f[0], f[1] = f[1], f[0]
	}
	return f
}
