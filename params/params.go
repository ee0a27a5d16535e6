// Package params reads the solver parameter file and derives the
// physical constants of a run.
package params

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hochshi/TABI-PB/constants"
)

// Mesh selects the molecular surface definition NanoShaper builds.
type Mesh uint8

const (
	SES Mesh = iota
	Skin
)

// MeshFormat selects the on-disk triangulation format.
type MeshFormat uint8

const (
	MSMS MeshFormat = iota
	PLY
)

var meshTable = map[string]Mesh{"ses": SES, "skin": Skin}

var meshFormatTable = map[string]MeshFormat{"msms": MSMS, "ply": PLY}

// ConfigError reports a malformed or out-of-range key/value pair in the
// parameter file.
type ConfigError struct {
	Key    string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: key %q value %q: %s", e.Key, e.Value, e.Reason)
}

// Params holds every runtime parameter of a solve: file locations, mesh
// settings, physical constants, treecode controls and GMRES controls.
type Params struct {
	// File locations
	PQRFile         string
	OutputPrefix    string
	InputMeshPrefix string

	// Mesh settings
	Mesh        Mesh
	MeshFormat  MeshFormat
	MeshDensity float64
	ProbeRadius float64

	// Physical parameters
	Temp         float64
	EpsSolute    float64
	EpsSolvent   float64
	BulkStrength float64

	// Derived; set by finalize
	Eps    float64
	Kappa  float64
	Kappa2 float64

	// Treecode parameters
	TreeDegree           int
	TreeMaxPerLeaf       int
	TreeTheta            float64
	TreeClusterParticles int

	// Preconditioning
	Precondition bool

	// GMRES
	GMRESRestart  int
	GMRESResidual float64
	GMRESNumIter  int

	// Nonpolar energy
	Nonpolar bool

	// Output selection
	OutputVTK        bool
	OutputPLY        bool
	OutputCSV        bool
	OutputCSVHeaders bool
	OutputTimers     bool
}

// Default returns a Params with the same defaults the original solver
// starts from before the parameter file is applied.
func Default() *Params {
	return &Params{
		OutputPrefix:         "output",
		Mesh:                 SES,
		MeshFormat:           MSMS,
		TreeClusterParticles: 40,
		GMRESRestart:         10,
		GMRESResidual:        1e-4,
		GMRESNumIter:         1000,
	}
}

// Read parses a parameter file of whitespace-separated "key value"
// lines. Keys and values are case-insensitive; unknown keys are logged
// and skipped. The derived quantities Eps, Kappa and Kappa2 are
// computed before returning.
func Read(path string) (*Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening parameter file")
	}
	defer f.Close()

	p := Default()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		key := strings.ToLower(fields[0])
		rawValue := fields[1]
		value := strings.ToLower(rawValue)

		if err := p.apply(key, value, rawValue); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading parameter file")
	}

	p.finalize()
	return p, nil
}

func (p *Params) apply(key, value, rawValue string) error {
	switch key {

	case "mol", "pqr":
		if _, err := os.Stat(rawValue); err != nil {
			return &ConfigError{Key: key, Value: rawValue, Reason: "pqr file is not readable"}
		}
		p.PQRFile = rawValue

	case "pdie":
		return p.parseFloat(key, value, &p.EpsSolute, nil)

	case "sdie":
		return p.parseFloat(key, value, &p.EpsSolvent, nil)

	case "bulk":
		return p.parseFloat(key, value, &p.BulkStrength, nil)

	case "temp":
		return p.parseFloat(key, value, &p.Temp, nil)

	case "tree_degree":
		return p.parseInt(key, value, &p.TreeDegree, func(v int) bool { return v > 0 })

	case "tree_theta":
		return p.parseFloat(key, value, &p.TreeTheta, func(v float64) bool { return v >= 0 && v <= 1 })

	case "tree_max_per_leaf":
		return p.parseInt(key, value, &p.TreeMaxPerLeaf, func(v int) bool { return v > 0 })

	case "tree_cluster_particles":
		return p.parseInt(key, value, &p.TreeClusterParticles, func(v int) bool { return v > 0 })

	case "gmres_restart":
		return p.parseInt(key, value, &p.GMRESRestart, func(v int) bool { return v > 0 })

	case "gmres_residual":
		return p.parseFloat(key, value, &p.GMRESResidual, func(v float64) bool { return v >= 0 && v <= 1 })

	case "gmres_num_iter":
		return p.parseInt(key, value, &p.GMRESNumIter, func(v int) bool { return v > 0 })

	case "mesh":
		m, ok := meshTable[value]
		if !ok {
			return &ConfigError{Key: key, Value: value, Reason: "invalid mesh value"}
		}
		p.Mesh = m

	case "mesh_format":
		mf, ok := meshFormatTable[value]
		if !ok {
			return &ConfigError{Key: key, Value: value, Reason: "invalid mesh_format value"}
		}
		p.MeshFormat = mf

	case "sdens":
		return p.parseFloat(key, value, &p.MeshDensity, func(v float64) bool { return v >= 0 })

	case "srad":
		return p.parseFloat(key, value, &p.ProbeRadius, func(v float64) bool { return v >= 0 })

	case "precondition":
		if value == "true" || value == "on" {
			p.Precondition = true
		}

	case "nonpolar":
		if value == "true" {
			p.Nonpolar = true
		}

	case "outdata":
		switch value {
		case "vtk":
			p.OutputVTK = true
		case "ply":
			p.OutputPLY = true
		case "csv":
			p.OutputCSV = true
		case "csv_headers":
			p.OutputCSVHeaders = true
		case "timers":
			p.OutputTimers = true
		}

	case "output_prefix":
		if value != "" {
			p.OutputPrefix = rawValue
		}

	case "input_mesh_prefix":
		if value != "" {
			p.InputMeshPrefix = rawValue
		}

	default:
		logrus.Infof("Skipping undefined token: %s", key)
	}
	return nil
}

func (p *Params) parseFloat(key, value string, dst *float64, valid func(float64) bool) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return &ConfigError{Key: key, Value: value, Reason: "not a number"}
	}
	if valid != nil && !valid(v) {
		return &ConfigError{Key: key, Value: value, Reason: "out of range"}
	}
	*dst = v
	return nil
}

func (p *Params) parseInt(key, value string, dst *int, valid func(int) bool) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return &ConfigError{Key: key, Value: value, Reason: "not an integer"}
	}
	if valid != nil && !valid(v) {
		return &ConfigError{Key: key, Value: value, Reason: "out of range"}
	}
	*dst = v
	return nil
}

// finalize computes the derived physical quantities from the dielectric
// constants, ionic strength and temperature.
func (p *Params) finalize() {
	p.Eps = p.EpsSolvent / p.EpsSolute
	p.Kappa2 = constants.BulkCoeff * p.BulkStrength / p.EpsSolvent / p.Temp
	p.Kappa = math.Sqrt(p.Kappa2)
}

// Finalize recomputes the derived quantities; exported for callers that
// build a Params directly rather than from a file.
func (p *Params) Finalize() { p.finalize() }
