// Package molecule reads the biomolecule description from a PQR file
// and provides the atom table consumed by the boundary-element solver.
package molecule

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Molecule is the read-only atom table: coordinates, partial charges
// and radii, in the order they appear in the PQR file.
type Molecule struct {
	X, Y, Z []float64
	Charge  []float64
	Radius  []float64
}

// Num returns the number of atoms.
func (m *Molecule) Num() int { return len(m.X) }

// ReadPQR parses the ATOM records of a PQR file. The coordinate,
// charge and radius values are taken from whitespace-split fields 6-10
// of each ATOM line.
func ReadPQR(path string) (*Molecule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening pqr file")
	}
	defer f.Close()

	m := &Molecule{}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "ATOM") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 10 {
			return nil, errors.Errorf("malformed ATOM record: %q", line)
		}

		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(fields[5+i], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing ATOM record %q", line)
			}
			vals[i] = v
		}

		m.X = append(m.X, vals[0])
		m.Y = append(m.Y, vals[1])
		m.Z = append(m.Z, vals[2])
		m.Charge = append(m.Charge, vals[3])
		m.Radius = append(m.Radius, vals[4])
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading pqr file")
	}

	if m.Num() == 0 {
		return nil, errors.Errorf("no ATOM records found in %s", path)
	}

	logrus.Infof("Read %d atoms from %s", m.Num(), path)
	return m, nil
}

// WriteXYZR writes the atom coordinates and radii in the xyzr format
// NanoShaper consumes.
func (m *Molecule) WriteXYZR(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating xyzr file")
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i := 0; i < m.Num(); i++ {
		fmt.Fprintf(w, "%f %f %f %f\n", m.X[i], m.Y[i], m.Z[i], m.Radius[i])
	}
	return w.Flush()
}

// CoulombEnergy returns the pairwise Coulomb energy of the atoms in the
// uniform solute dielectric, in internal units (scale by
// constants.UnitsCoeff for kJ/mol).
func (m *Molecule) CoulombEnergy(epsSolute float64) float64 {
	energy := 0.0
	for i := 0; i < m.Num(); i++ {
		for j := i + 1; j < m.Num(); j++ {
			dx := m.X[i] - m.X[j]
			dy := m.Y[i] - m.Y[j]
			dz := m.Z[i] - m.Z[j]
			dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
			energy += 1 / epsSolute / dist * m.Charge[i] * m.Charge[j]
		}
	}
	return energy
}
