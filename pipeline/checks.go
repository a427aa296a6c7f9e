package pipeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/soypat/dodeca"
	"github.com/soypat/dodeca/geom"
	"github.com/soypat/dodeca/mesh"
	"github.com/soypat/dodeca/sdfeval"
	"github.com/soypat/geometry/ms3"
	"gonum.org/v1/gonum/spatial/r3"
)

// minFieldAlignment is the lowest accepted cosine between a triangle normal
// and the field gradient at its centroid. Creases of the shell meet at less
// than 105 degrees so correctly wound triangles stay well above it.
const minFieldAlignment = -0.5

const orientationBatch = 1024

// checkOrientation verifies every triangle of m faces along the gradient of
// sdf, from solid toward empty space. step is the central difference spacing.
// It returns the index of the first misoriented triangle or -1.
func checkOrientation(sdf sdfeval.SDF3, m *mesh.Mesh, step float32, vp *sdfeval.VecPool) (int, error) {
	centroids := make([]ms3.Vec, 0, orientationBatch)
	grads := make([]ms3.Vec, orientationBatch)
	for base := 0; base < len(m.Faces); base += orientationBatch {
		end := min(base+orientationBatch, len(m.Faces))
		centroids = centroids[:0]
		for i := base; i < end; i++ {
			t := m.Triangle(i)
			centroids = append(centroids, ms3.Scale(1.0/3, ms3.Add(ms3.Add(t[0], t[1]), t[2])))
		}
		err := sdfeval.NormalsCentralDiff(sdf, centroids, grads[:len(centroids)], step, vp)
		if err != nil {
			return -1, err
		}
		for k, g := range grads[:len(centroids)] {
			if ms3.Norm(g) == 0 {
				continue
			}
			if ms3.Dot(m.Triangle(base+k).Normal(), ms3.Unit(g)) < minFieldAlignment {
				return base + k, nil
			}
		}
	}
	return -1, nil
}

// locate returns the face whose direction best matches p and the vertex of the
// nearest knob, or -1 when no knob is within reach of p.
func locate(sh *dodeca.Shell, p r3.Vec, reach float64) (face, vertex int) {
	face = nearestFace(sh, p, allFaces())
	vertex = nearestKnob(sh, p)
	if r3.Norm(r3.Sub(p, sh.KnobCenters[vertex])) > sh.Params.KnobRadius+reach {
		vertex = -1
	}
	return face, vertex
}

func allFaces() []int {
	faces := make([]int, geom.NumFaces)
	for i := range faces {
		faces[i] = i
	}
	return faces
}

func nearestFace(sh *dodeca.Shell, p r3.Vec, faces []int) int {
	best, bestDot := -1, math.Inf(-1)
	for _, i := range faces {
		d := r3.Dot(p, sh.Outer.FaceNormal(i))
		if d > bestDot {
			best, bestDot = i, d
		}
	}
	return best
}

func nearestKnob(sh *dodeca.Shell, p r3.Vec) int {
	best, bestDist := 0, math.Inf(1)
	for j, c := range sh.KnobCenters {
		d := r3.Norm(r3.Sub(p, c))
		if d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

// defectError locates a mesh defect on the shell.
func defectError(sh *dodeca.Shell, m *mesh.Mesh, h float64, err error) *dodeca.GeometryError {
	gerr := &dodeca.GeometryError{Face: -1, Vertex: -1, Reason: "tessellated mesh", Cause: err}
	var derr *mesh.DefectError
	if !errors.As(err, &derr) {
		return gerr
	}
	var p r3.Vec
	switch {
	case derr.Kind == mesh.DefectNonManifoldVertex && int(derr.Edge[0]) < len(m.Vertices):
		p = vec64(m.Vertices[derr.Edge[0]])
	case derr.Triangle >= 0 && derr.Triangle < len(m.Faces):
		p = centroid(m.Triangle(derr.Triangle))
	default:
		return gerr
	}
	gerr.Face, gerr.Vertex = locate(sh, p, h)
	return gerr
}

// componentsError names the knob vertex nearest every component detached from
// the largest one. The face is the first oversized hole, which is what cuts
// shell parts loose, or else the face around that vertex facing the part.
func componentsError(sh *dodeca.Shell, m *mesh.Mesh, n int) *dodeca.GeometryError {
	labels, _ := mesh.ComponentLabels(m)
	sizes := make([]int, n)
	sums := make([]r3.Vec, n)
	for i, l := range labels {
		if l < 0 {
			continue
		}
		sizes[l]++
		sums[l] = r3.Add(sums[l], vec64(m.Vertices[i]))
	}
	largest := 0
	for l, sz := range sizes {
		if sz > sizes[largest] {
			largest = l
		}
	}
	var near []int
	var first r3.Vec
	for l := range sizes {
		if l == largest || sizes[l] == 0 {
			continue
		}
		c := r3.Scale(1/float64(sizes[l]), sums[l])
		if len(near) == 0 {
			first = c
		}
		near = append(near, nearestKnob(sh, c))
	}
	gerr := &dodeca.GeometryError{Face: -1, Vertex: -1,
		Reason: fmt.Sprintf("mesh has %d connected components, want 1", n)}
	if len(near) == 0 {
		return gerr
	}
	gerr.Vertex = near[0]
	gerr.Reason += fmt.Sprintf(": parts detached near knob vertices %v", near)
	for i := 0; i < geom.NumFaces; i++ {
		if sh.HoleOversized(i) {
			gerr.Face = i
			return gerr
		}
	}
	vf := sh.Outer.VertexFaces(gerr.Vertex)
	gerr.Face = nearestFace(sh, first, vf[:])
	return gerr
}

// genusError names the hole that deviates most from its nominal radius, or the
// first hole whose wall is missing from the mesh.
func genusError(sh *dodeca.Shell, m *mesh.Mesh, topo mesh.Topology, h float64) *dodeca.GeometryError {
	gerr := &dodeca.GeometryError{Face: -1, Vertex: -1,
		Reason: fmt.Sprintf("mesh genus %d (euler characteristic %d), want genus %d", topo.Genus(), topo.Euler, ExpectedGenus)}
	worst := -1.0
	for i, d := range sh.Params.HoleDiameters {
		r, n := MeasureHoleRadius(m, sh, i, h/2)
		if n == 0 {
			gerr.Face = i
			gerr.Reason += ": hole wall not found in mesh"
			return gerr
		}
		if dev := math.Abs(r - d/2); dev > worst {
			worst = dev
			gerr.Face = i
		}
	}
	gerr.Reason += fmt.Sprintf(": hole radius deviates by %.3g mm", worst)
	return gerr
}

func centroid(t mesh.Triangle) r3.Vec {
	return r3.Scale(1.0/3, r3.Add(r3.Add(vec64(t[0]), vec64(t[1])), vec64(t[2])))
}

func vec64(v ms3.Vec) r3.Vec {
	return r3.Vec{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}
