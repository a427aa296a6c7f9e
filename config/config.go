// Package config reads and writes the YAML parameter file of the shell
// generator.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/soypat/dodeca"
	"github.com/soypat/dodeca/geom"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultHeader is the STL header text written when none is configured.
	DefaultHeader = "Roman Dodecahedron Navigation Device v1.0"
	DefaultOutput = "roman_dodecahedron.stl"
)

// requiredKeys must be present in every parameter file.
var requiredKeys = []string{
	"vertex_diameter",
	"wall_thickness",
	"knob_radius",
	"hole_diameters",
	"tessellation_resolution",
}

// File is the parameter file contents. Absent optional tunables are nil and
// select their defaults; an explicit zero is kept as zero.
type File struct {
	VertexDiameter float64   `yaml:"vertex_diameter"`
	WallThickness  float64   `yaml:"wall_thickness"`
	KnobRadius     float64   `yaml:"knob_radius"`
	KnobOffset     *float64  `yaml:"knob_offset,omitempty"`
	HoleHalfLength *float64  `yaml:"hole_half_length,omitempty"`
	HoleDiameters  []float64 `yaml:"hole_diameters,flow"`
	// HoleLabels optionally names each face, i.e. the latitude band its hole is calibrated for.
	HoleLabels []string `yaml:"hole_labels,omitempty"`
	Resolution int      `yaml:"tessellation_resolution"`
	Header     string   `yaml:"header,omitempty"`
	Output     string   `yaml:"output,omitempty"`
}

// Default returns the reference calibration: an 80 mm shell with 3 mm walls,
// 8 mm knobs and holes calibrated for twelve latitude bands.
func Default() File {
	return File{
		VertexDiameter: 80,
		WallThickness:  3,
		KnobRadius:     8,
		KnobOffset:     Float(dodeca.DefaultKnobOffset),
		HoleHalfLength: Float(dodeca.DefaultHoleHalfLength),
		HoleDiameters:  []float64{35, 32, 29, 26, 23, 20, 17, 14, 12, 10, 8, 6},
		HoleLabels: []string{
			"Alexandria (25-27°N)", "Jerusalem (27-30°N)", "Cyprus (30-33°N)",
			"Rhodes (33-36°N)", "Athens (36-38°N)", "Rome (38-41°N)",
			"Massilia (41-44°N)", "Lugdunum (44-46°N)", "Augusta Treverorum (46-48°N)",
			"Colonia (48-51°N)", "Londinium (51-53°N)", "Eboracum (53-56°N)",
		},
		Resolution: 64,
		Header:     DefaultHeader,
		Output:     DefaultOutput,
	}
}

// Load reads the parameter file at path. See [Parse].
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading config: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a parameter file. Unknown keys are rejected and every key of
// the parameter contract must be present. Decoding problems are returned as
// a [*dodeca.ParamError] naming the key.
func Parse(r io.Reader) (File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return File{}, fmt.Errorf("reading config: %w", err)
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err = dec.Decode(&f)
	if err != nil && !errors.Is(err, io.EOF) {
		return File{}, &dodeca.ParamError{Param: "config", Value: "yaml", Kind: dodeca.ErrInvalidParameter, Reason: err.Error()}
	}
	var present map[string]yaml.Node
	err = yaml.Unmarshal(data, &present)
	if err != nil {
		return File{}, &dodeca.ParamError{Param: "config", Value: "yaml", Kind: dodeca.ErrInvalidParameter, Reason: err.Error()}
	}
	for _, key := range requiredKeys {
		if _, ok := present[key]; !ok {
			return File{}, &dodeca.ParamError{Param: key, Value: nil, Kind: dodeca.ErrInvalidParameter, Reason: "missing required key"}
		}
	}
	if len(f.HoleLabels) != 0 && len(f.HoleLabels) != geom.NumFaces {
		return File{}, &dodeca.ParamError{
			Param: "hole_labels", Value: len(f.HoleLabels), Kind: dodeca.ErrInvalidParameter,
			Reason: fmt.Sprintf("need none or exactly %d labels", geom.NumFaces),
		}
	}
	return f, nil
}

// Params returns the shell parameters held by f with absent tunables set
// to their defaults.
func (f File) Params() dodeca.Params {
	return dodeca.Params{
		VertexDiameter: f.VertexDiameter,
		WallThickness:  f.WallThickness,
		KnobRadius:     f.KnobRadius,
		KnobOffset:     valueOr(f.KnobOffset, dodeca.DefaultKnobOffset),
		HoleHalfLength: valueOr(f.HoleHalfLength, dodeca.DefaultHoleHalfLength),
		HoleDiameters:  append([]float64(nil), f.HoleDiameters...),
		Resolution:     f.Resolution,
	}
}

// Float returns a pointer to v for setting optional [File] fields.
func Float(v float64) *float64 { return &v }

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// Label returns the label of face i or the empty string.
func (f File) Label(i int) string {
	if i < 0 || i >= len(f.HoleLabels) {
		return ""
	}
	return f.HoleLabels[i]
}

// Write encodes f as a YAML parameter file that [Parse] accepts.
func Write(w io.Writer, f File) error {
	_, err := io.WriteString(w, "# Roman dodecahedron shell parameters. Lengths in millimeters.\n")
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	err = enc.Encode(f)
	if err != nil {
		return err
	}
	return enc.Close()
}
