// Package render tessellates the zero level set of an [sdfeval.SDF3] into a
// closed, consistently oriented triangle mesh using marching tetrahedra over a
// uniform lattice.
package render

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/chewxy/math32"
	"github.com/soypat/dodeca/mesh"
	"github.com/soypat/dodeca/sdfeval"
	"github.com/soypat/geometry/ms3"
)

const (
	sqrt3 = 1.7320508075688772935274463415058723669428052538103806280558069794
	// DefaultBlockCells is the edge length in cells of the lattice blocks considered for pruning.
	DefaultBlockCells = 8
	// marginCells of empty lattice surround the SDF bounds so the surface never touches the lattice boundary.
	marginCells = 2
	// tclamp keeps interpolated vertices off lattice points so no triangle degenerates.
	tclamp = 1e-3
	// maxCenterBatch limits positions evaluated per call when testing block centers.
	maxCenterBatch = 1 << 14
)

// Each unit cube corner is numbered x + 2y + 4z. A cube splits into six
// tetrahedra around its main diagonal 0-7 (Freudenthal/Kuhn subdivision),
// one per axis permutation. Tetrahedra of odd permutations have vertices 1
// and 2 swapped so all six are positively oriented.
var cubeTetras = [6][4]uint8{
	{0, 1, 3, 7},
	{0, 5, 1, 7},
	{0, 3, 2, 7},
	{0, 2, 6, 7},
	{0, 4, 5, 7},
	{0, 6, 4, 7},
}

// loneOthers[i] are the other tetrahedron vertices ordered so that
// (i, loneOthers[i]...) is an even permutation of (0,1,2,3).
var loneOthers = [4][3]uint8{
	{1, 2, 3},
	{0, 3, 2},
	{0, 1, 3},
	{0, 2, 1},
}

// pairOrder maps a two-inside-vertex mask to an even permutation (a,b,c,d)
// with a and b inside.
var pairOrder = [16][4]uint8{
	0b0011: {0, 1, 2, 3},
	0b0101: {0, 2, 3, 1},
	0b1001: {0, 3, 1, 2},
	0b0110: {1, 2, 0, 3},
	0b1010: {1, 3, 2, 0},
	0b1100: {2, 3, 0, 1},
}

// TetraRenderer is a marching-tetrahedra renderer with block pruning. Blocks of
// cells whose center distance exceeds their half diagonal are skipped, which
// is exact for 1-Lipschitz distance fields.
type TetraRenderer struct {
	s      sdfeval.SDF3
	h      float32
	origin ms3.Vec
	// block is the block edge length in cells. cells is a multiple of block.
	block int
	cells [3]int

	pruned    uint64
	evaluated uint64
}

// NewTetraRenderer instantiates a renderer for s with lattice spacing cellSize.
// blockCells of zero selects [DefaultBlockCells].
func NewTetraRenderer(s sdfeval.SDF3, cellSize float32, blockCells int) (*TetraRenderer, error) {
	if s == nil {
		return nil, errors.New("nil SDF3")
	}
	if !(cellSize > 0) || math32.IsInf(cellSize, 0) {
		return nil, fmt.Errorf("invalid renderer cell size %g", cellSize)
	}
	if blockCells == 0 {
		blockCells = DefaultBlockCells
	} else if blockCells < 1 {
		return nil, errors.New("invalid renderer block size")
	}
	bb := s.Bounds()
	sz := bb.Size()
	if !(sz.X > 0 && sz.Y > 0 && sz.Z > 0) {
		return nil, fmt.Errorf("degenerate SDF bounds %v", bb)
	}
	r := &TetraRenderer{s: s, h: cellSize, block: blockCells}
	margin := marginCells * cellSize
	r.origin = ms3.AddScalar(-margin, bb.Min)
	for i, extent := range [3]float32{sz.X, sz.Y, sz.Z} {
		n := int(math32.Ceil((extent+2*margin)/cellSize)) + 1
		r.cells[i] = alignup(n, blockCells)
	}
	points := float64(r.cells[0]+1) * float64(r.cells[1]+1) * float64(r.cells[2]+1)
	if points >= 1<<40 {
		return nil, fmt.Errorf("lattice of %.3g points too large", points)
	}
	return r, nil
}

// CellSize returns the lattice spacing.
func (r *TetraRenderer) CellSize() float32 { return r.h }

// Cells returns the number of lattice cells along each axis.
func (r *TetraRenderer) Cells() [3]int { return r.cells }

// Blocks returns the total amount of lattice blocks.
func (r *TetraRenderer) Blocks() int {
	b := r.block
	return (r.cells[0] / b) * (r.cells[1] / b) * (r.cells[2] / b)
}

// PrunedBlocks returns the amount of blocks skipped during the last Render call.
func (r *TetraRenderer) PrunedBlocks() uint64 { return r.pruned }

// Evaluations returns the SDF positions evaluated during the last Render call.
func (r *TetraRenderer) Evaluations() uint64 { return r.evaluated }

// Render tessellates the SDF surface. Triangles are wound counter-clockwise
// seen from outside (negative distances). The traversal order is fixed so
// equal inputs produce equal meshes.
func (r *TetraRenderer) Render(userData any) (*mesh.Mesh, error) {
	r.pruned, r.evaluated = 0, 0
	B := r.block
	nb := [3]int{r.cells[0] / B, r.cells[1] / B, r.cells[2] / B}
	halfDiag := float32(B) * r.h * sqrt3 / 2

	centers := make([]ms3.Vec, 0, nb[0]*nb[1]*nb[2])
	for bz := 0; bz < nb[2]; bz++ {
		for by := 0; by < nb[1]; by++ {
			for bx := 0; bx < nb[0]; bx++ {
				centers = append(centers, ms3.Vec{
					X: r.origin.X + (float32(bx*B)+float32(B)/2)*r.h,
					Y: r.origin.Y + (float32(by*B)+float32(B)/2)*r.h,
					Z: r.origin.Z + (float32(bz*B)+float32(B)/2)*r.h,
				})
			}
		}
	}
	cdist := make([]float32, len(centers))
	for start := 0; start < len(centers); start += maxCenterBatch {
		end := min(start+maxCenterBatch, len(centers))
		err := r.s.Evaluate(centers[start:end], cdist[start:end], userData)
		if err != nil {
			return nil, fmt.Errorf("evaluating block centers: %w", err)
		}
		r.evaluated += uint64(end - start)
	}

	m := &mesh.Mesh{}
	mc := marcher{
		m:     m,
		verts: make(map[uint64]uint32),
		np:    [3]int{r.cells[0] + 1, r.cells[1] + 1, r.cells[2] + 1},
	}
	n := B + 1
	pos := make([]ms3.Vec, n*n*n)
	dist := make([]float32, len(pos))
	bi := 0
	for bz := 0; bz < nb[2]; bz++ {
		for by := 0; by < nb[1]; by++ {
			for bx := 0; bx < nb[0]; bx++ {
				d := cdist[bi]
				bi++
				if math32.Abs(d) > halfDiag {
					r.pruned++
					continue
				}
				base := [3]int{bx * B, by * B, bz * B}
				for k := 0; k < n; k++ {
					for j := 0; j < n; j++ {
						for i := 0; i < n; i++ {
							pos[i+n*(j+n*k)] = r.latticePos(base[0]+i, base[1]+j, base[2]+k)
						}
					}
				}
				err := r.s.Evaluate(pos, dist, userData)
				if err != nil {
					return nil, err
				}
				r.evaluated += uint64(len(pos))
				mc.marchBlock(base, n, pos, dist)
			}
		}
	}
	return m, nil
}

func (r *TetraRenderer) latticePos(i, j, k int) ms3.Vec {
	return ms3.Vec{
		X: r.origin.X + float32(i)*r.h,
		Y: r.origin.Y + float32(j)*r.h,
		Z: r.origin.Z + float32(k)*r.h,
	}
}

// marcher accumulates triangles of one render, sharing vertices between
// cells through a lattice edge key.
type marcher struct {
	m     *mesh.Mesh
	verts map[uint64]uint32
	// np is the number of lattice points per axis.
	np [3]int

	// Per cell scratch.
	cpos  [8]ms3.Vec
	cdist [8]float32
	cidx  [8]uint64
}

func (mc *marcher) marchBlock(base [3]int, n int, pos []ms3.Vec, dist []float32) {
	B := n - 1
	for ck := 0; ck < B; ck++ {
		for cj := 0; cj < B; cj++ {
			for ci := 0; ci < B; ci++ {
				inside := 0
				for c := 0; c < 8; c++ {
					x, y, z := c&1, (c>>1)&1, (c>>2)&1
					li := (ci + x) + n*((cj+y)+n*(ck+z))
					mc.cpos[c] = pos[li]
					mc.cdist[c] = dist[li]
					gi, gj, gk := base[0]+ci+x, base[1]+cj+y, base[2]+ck+z
					mc.cidx[c] = uint64(gi) + uint64(mc.np[0])*(uint64(gj)+uint64(mc.np[1])*uint64(gk))
					if dist[li] < 0 {
						inside++
					}
				}
				if inside == 0 || inside == 8 {
					continue
				}
				for _, tet := range cubeTetras {
					mc.marchTetra(tet)
				}
			}
		}
	}
}

func (mc *marcher) marchTetra(tet [4]uint8) {
	var mask uint
	for k, c := range tet {
		if mc.cdist[c] < 0 {
			mask |= 1 << k
		}
	}
	switch bits.OnesCount(mask) {
	case 1:
		i := bits.TrailingZeros(mask)
		o := loneOthers[i]
		mc.emit(
			mc.edgeVertex(tet[i], tet[o[0]]),
			mc.edgeVertex(tet[i], tet[o[1]]),
			mc.edgeVertex(tet[i], tet[o[2]]),
		)
	case 3:
		i := bits.TrailingZeros(^mask & 0xf)
		o := loneOthers[i]
		mc.emit(
			mc.edgeVertex(tet[i], tet[o[0]]),
			mc.edgeVertex(tet[i], tet[o[2]]),
			mc.edgeVertex(tet[i], tet[o[1]]),
		)
	case 2:
		p := pairOrder[mask]
		a, b, c, d := tet[p[0]], tet[p[1]], tet[p[2]], tet[p[3]]
		ac := mc.edgeVertex(a, c)
		bd := mc.edgeVertex(b, d)
		mc.emit(ac, bd, mc.edgeVertex(b, c))
		mc.emit(ac, mc.edgeVertex(a, d), bd)
	}
}

func (mc *marcher) emit(a, b, c uint32) {
	mc.m.Faces = append(mc.m.Faces, [3]uint32{a, b, c})
}

// edgeVertex returns the mesh vertex on the lattice edge between cube corners
// u and w, creating it on first use. Corners of a tetrahedron edge are always
// nested so the lower corner and the edge direction identify the edge.
func (mc *marcher) edgeVertex(u, w uint8) uint32 {
	lo, hi := u, w
	if lo&hi != lo {
		lo, hi = hi, lo
	}
	key := mc.cidx[lo]<<3 | uint64(lo^hi)
	if vi, ok := mc.verts[key]; ok {
		return vi
	}
	dlo, dhi := mc.cdist[lo], mc.cdist[hi]
	t := dlo / (dlo - dhi)
	t = min(max(t, tclamp), 1-tclamp)
	plo, phi := mc.cpos[lo], mc.cpos[hi]
	p := ms3.Add(plo, ms3.Scale(t, ms3.Sub(phi, plo)))
	vi := uint32(len(mc.m.Vertices))
	mc.m.Vertices = append(mc.m.Vertices, p)
	mc.verts[key] = vi
	return vi
}

func alignup(n, align int) int {
	return (n + align - 1) / align * align
}
