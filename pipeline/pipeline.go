// Package pipeline runs the complete shell generation: parameter
// validation, solid construction, CSG validation, tessellation, mesh
// checking and STL export.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"github.com/soypat/dodeca"
	"github.com/soypat/dodeca/geom"
	"github.com/soypat/dodeca/mesh"
	"github.com/soypat/dodeca/render"
	"github.com/soypat/dodeca/sdfeval"
)

// ExpectedGenus is the genus of a hollow shell with a through-hole in every face.
const ExpectedGenus = geom.NumFaces - 1

type Config struct {
	Params dodeca.Params
	// Output is the STL file path written by [Generate].
	Output string
	// Header is the STL header text. At most 80 bytes, must not start with "solid".
	Header string
	// HoleLabels optionally names each face in the parameter summary.
	HoleLabels []string
	// Log receives progress lines. Nil means standard output.
	Log    io.Writer
	Silent bool
	// EnableCaching uses [sdfeval.CachedSDF3] so lattice points shared by
	// neighboring blocks are evaluated once.
	EnableCaching bool
}

// Report summarizes a generation run.
type Report struct {
	Triangles int
	Vertices  int
	CellSize  float64
	Topology  mesh.Topology
	// Standoff is the gap between a face and the resting plane when the shell
	// stands on the knobs around that face.
	Standoff float64
	// TopHoleHeight is the height of the opposite hole's center above the resting plane.
	TopHoleHeight float64
	// HoleRadii is the mean measured radius of every hole in the mesh.
	// It is zero for holes reaching the face edges, which are not measured.
	HoleRadii [geom.NumFaces]float64
	// EdgeDeviation is the largest distance by which the mesh falls short of a
	// sharp outer edge, measured at the edge midpoint. See [EdgeDeviations].
	EdgeDeviation float64
	WorstEdge     int
	Area          float64
	Warnings      []string
	Evaluations   uint64
	Blocks        int
	PrunedBlocks  uint64
	// Bytes is the size of the written STL file.
	Bytes int
}

// Result holds the intermediate products of a run.
type Result struct {
	Shell  *dodeca.Shell
	Solid  *dodeca.Solid
	Mesh   *mesh.Mesh
	Report Report
}

// Generate builds the shell mesh described by cfg and writes it to cfg.Output.
// No file is created when any stage fails.
func Generate(cfg Config) (*Result, error) {
	if cfg.Output == "" {
		return nil, errors.New("pipeline: missing output path")
	}
	res, err := Build(cfg)
	if err != nil {
		return nil, err
	}
	log := logger(cfg)
	watch := stopwatch()
	tris := res.Mesh.Triangles()
	err = mesh.WriteFileAtomic(cfg.Output, tris, cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("%w: writing %s: %w", dodeca.ErrExportIO, cfg.Output, err)
	}
	res.Report.Bytes = 84 + 50*len(tris)
	log("wrote", cfg.Output, "with", len(tris), "triangles,", res.Report.Bytes, "bytes in", watch())
	return res, nil
}

// Build runs every stage of [Generate] except writing the output file.
func Build(cfg Config) (*Result, error) {
	log := logger(cfg)
	err := checkHeader(cfg.Header)
	if err != nil {
		return nil, err
	}
	watch := stopwatch()
	bld := dodeca.Builder{NoDimensionPanic: true}
	sh, err := dodeca.BuildShell(&bld, cfg.Params)
	if err != nil {
		return nil, err
	}
	logParams(log, sh, cfg.HoleLabels)
	for _, w := range sh.Warnings {
		log("warning:", w)
	}
	solid, err := dodeca.Compile(sh.Tree)
	if err != nil {
		return nil, err
	}
	err = solid.Validate(sh)
	if err != nil {
		return nil, err
	}
	log("built and validated solid of", len(solid.Steps()), "CSG steps in", watch())

	h := sh.CellSize()
	err = sh.CheckResolution(h)
	if err != nil {
		return nil, err
	}
	var eval sdfeval.SDF3 = solid
	if cfg.EnableCaching {
		cache := &sdfeval.CachedSDF3{SDF: solid}
		eval = cache
		defer func() {
			log("SDF caching omitted", percentUint64(cache.CacheHits(), cache.Evaluations()), "percent of", cache.Evaluations(),
				"SDF evaluations over", cache.Cached(), "distinct positions")
		}()
	}
	sdf := &sdfeval.CountingSDF3{SDF: eval}
	renderer, err := render.NewTetraRenderer(sdf, float32(h), 0)
	if err != nil {
		return nil, err
	}
	watch = stopwatch()
	vp := new(sdfeval.VecPool)
	m, err := renderer.Render(vp)
	if err != nil {
		return nil, fmt.Errorf("rendering triangles: %w", err)
	}
	err = vp.AssertAllReleased()
	if err != nil {
		return nil, err
	}
	pruned := renderer.PrunedBlocks()
	log("evaluated SDF", sdf.Evaluations(), "times in", sdf.Calls(), "batches and rendered", len(m.Faces), "triangles in", watch(),
		"with", percentUint64(pruned, uint64(renderer.Blocks())), "percent of blocks pruned")

	watch = stopwatch()
	topo, err := mesh.Check(m)
	if err != nil {
		return nil, defectError(sh, m, h, err)
	}
	if topo.Components != 1 {
		return nil, componentsError(sh, m, topo.Components)
	}
	if !sh.AnyOversized() && topo.Genus() != ExpectedGenus {
		return nil, genusError(sh, m, topo, h)
	}
	err = mesh.CheckIntersections(m)
	if err != nil {
		return nil, defectError(sh, m, h, err)
	}
	flipped, err := checkOrientation(solid, m, float32(h/8), vp)
	if err != nil {
		return nil, err
	}
	if flipped >= 0 {
		gerr := defectError(sh, m, h, &mesh.DefectError{Kind: mesh.DefectInverted, Triangle: flipped})
		gerr.Reason = "triangle faces against the distance field gradient"
		return nil, gerr
	}
	err = vp.AssertAllReleased()
	if err != nil {
		return nil, err
	}
	rep := Report{
		Triangles:     len(m.Faces),
		Vertices:      len(m.Vertices),
		CellSize:      h,
		Topology:      topo,
		Standoff:      sh.Standoff(0),
		TopHoleHeight: sh.TopHoleHeight(0),
		Warnings:      sh.Warnings,
		Evaluations:   sdf.Evaluations(),
		Blocks:        renderer.Blocks(),
		PrunedBlocks:  pruned,
		Area:          m.Area(),
	}
	for i := range rep.HoleRadii {
		if sh.HoleOversized(i) {
			continue
		}
		r, n := MeasureHoleRadius(m, sh, i, h/2)
		if n == 0 {
			return nil, &dodeca.GeometryError{Face: i, Vertex: -1, Reason: "hole wall not found in mesh"}
		}
		rep.HoleRadii[i] = r
	}
	rep.EdgeDeviation, rep.WorstEdge = MaxEdgeDeviation(m, sh)
	log("checked mesh in", watch(), fmt.Sprintf("V=%d E=%d F=%d euler=%d genus=%d volume=%.1fmm³ area=%.1fmm²",
		topo.Vertices, topo.Edges, topo.Faces, topo.Euler, topo.Genus(), topo.Volume, rep.Area))
	log(fmt.Sprintf("sharp edges chamfered by at most %.3f mm at edge %d, bound %.3f mm",
		rep.EdgeDeviation, rep.WorstEdge, EdgeTolerance(h)))
	log(fmt.Sprintf("standoff %.3f mm, top hole center %.3f mm above resting plane", rep.Standoff, rep.TopHoleHeight))
	return &Result{Shell: sh, Solid: solid, Mesh: m, Report: rep}, nil
}

func checkHeader(header string) error {
	if len(header) > 80 {
		return &dodeca.ParamError{Param: "header", Value: len(header), Kind: dodeca.ErrInvalidParameter, Reason: "longer than 80 bytes"}
	}
	if strings.HasPrefix(header, "solid") {
		return &dodeca.ParamError{Param: "header", Value: header, Kind: dodeca.ErrInvalidParameter, Reason: `binary STL header must not start with "solid"`}
	}
	return nil
}

func logger(cfg Config) func(args ...any) {
	w := cfg.Log
	if w == nil {
		w = os.Stdout
	}
	return func(args ...any) {
		if !cfg.Silent {
			fmt.Fprintln(w, args...)
		}
	}
}

func logParams(log func(args ...any), sh *dodeca.Shell, labels []string) {
	p := sh.Params
	log(fmt.Sprintf("vertex-to-vertex diameter %g mm, wall %g mm, knob radius %g mm, resolution %d",
		p.VertexDiameter, p.WallThickness, p.KnobRadius, p.Resolution))
	log("hole diameters by face:")
	for i, d := range p.HoleDiameters {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		log(fmt.Sprintf("  face %2d: %5.1f mm  %s", i, d, label))
	}
}

func stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

func percentUint64(num, denom uint64) float32 {
	if denom == 0 {
		return 0
	}
	return math32.Trunc(10000*float32(num)/float32(denom)) / 100
}
