// Command dodecastl generates a Roman dodecahedron shell as a binary STL file.
//
// Parameters come from the reference calibration or a YAML file given with
// -config. Flags that are set explicitly override either source.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/soypat/dodeca"
	"github.com/soypat/dodeca/config"
	"github.com/soypat/dodeca/mesh"
	"github.com/soypat/dodeca/pipeline"
)

// Exit codes.
const (
	exitOK       = 0
	exitOther    = 1
	exitParam    = 2
	exitGeometry = 3
	exitExportIO = 4
)

var (
	errUsage = errors.New("usage")
	errInput = errors.New("reading input")
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	err := runErr(args, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "dodecastl:", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage), errors.Is(err, dodeca.ErrInvalidParameter):
		return exitParam
	case errors.Is(err, dodeca.ErrDegenerateGeometry):
		return exitGeometry
	case errors.Is(err, dodeca.ErrExportIO):
		return exitExportIO
	}
	return exitOther
}

func runErr(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("dodecastl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		flagConfig      = fs.String("config", "", "YAML parameter file; the reference calibration is used when empty")
		flagOutput      = fs.String("o", config.DefaultOutput, "output STL path")
		flagDiameter    = fs.Float64("diameter", 0, "vertex to vertex diameter in mm")
		flagWall        = fs.Float64("wall", 0, "wall thickness in mm")
		flagKnob        = fs.Float64("knob", 0, "knob radius in mm")
		flagKnobOffset  = fs.Float64("knob-offset", 0, "outward knob center shift as a fraction of the knob radius")
		flagHoles       = fs.String("holes", "", "comma separated hole diameters in mm, one per face")
		flagRes         = fs.Int("res", 0, "tessellation resolution: segments around the smallest knob or hole")
		flagHeader      = fs.String("header", config.DefaultHeader, "STL header text")
		flagSilent      = fs.Bool("silent", false, "suppress progress output")
		flagCache       = fs.Bool("cache", false, "cache SDF evaluations of lattice points shared between blocks")
		flagPrintConfig = fs.Bool("print-config", false, "print the resolved parameter file and exit")
		flagInspect     = fs.String("inspect", "", "validate an existing STL file and print its topology")
	)
	err := fs.Parse(args)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if *flagInspect != "" {
		return inspect(stdout, *flagInspect)
	}

	cfg := config.Default()
	if *flagConfig != "" {
		cfg, err = config.Load(*flagConfig)
		if err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "o":
			cfg.Output = *flagOutput
		case "diameter":
			cfg.VertexDiameter = *flagDiameter
		case "wall":
			cfg.WallThickness = *flagWall
		case "knob":
			cfg.KnobRadius = *flagKnob
		case "knob-offset":
			cfg.KnobOffset = config.Float(*flagKnobOffset)
		case "holes":
			cfg.HoleDiameters, err = parseHoles(*flagHoles)
		case "res":
			cfg.Resolution = *flagRes
		case "header":
			cfg.Header = *flagHeader
		}
	})
	if err != nil {
		return err
	}
	if cfg.Output == "" {
		cfg.Output = config.DefaultOutput
	}
	if *flagPrintConfig {
		return config.Write(stdout, cfg)
	}
	_, err = pipeline.Generate(pipeline.Config{
		Params:     cfg.Params(),
		Output:     cfg.Output,
		Header:     cfg.Header,
		HoleLabels: cfg.HoleLabels,
		Log:        stdout,
		Silent:     *flagSilent,

		EnableCaching: *flagCache,
	})
	return err
}

func parseHoles(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	holes := make([]float64, 0, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, &dodeca.ParamError{Param: fmt.Sprintf("hole_diameters[%d]", i), Value: f, Kind: dodeca.ErrInvalidParameter, Reason: "not a number"}
		}
		holes = append(holes, v)
	}
	return holes, nil
}

func inspect(w io.Writer, path string) error {
	fp, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", errInput, err)
	}
	defer fp.Close()
	header, tris, err := mesh.ReadBinarySTL(fp)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", errInput, path, err)
	}
	m := mesh.Weld(tris)
	fmt.Fprintf(w, "%s: header %q, %d triangles, %d vertices\n", path, header, len(tris), len(m.Vertices))
	topo, err := mesh.Check(m)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", dodeca.ErrDegenerateGeometry, path, err)
	}
	err = mesh.CheckIntersections(m)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", dodeca.ErrDegenerateGeometry, path, err)
	}
	bb := m.Bounds()
	sz := bb.Size()
	fmt.Fprintf(w, "closed manifold: %d components, euler %d, genus %d, volume %.1f mm³, bounds %.2f x %.2f x %.2f mm\n",
		topo.Components, topo.Euler, topo.Genus(), topo.Volume, sz.X, sz.Y, sz.Z)
	return nil
}
