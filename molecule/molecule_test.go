package molecule

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePQR = `REMARK generated for testing
ATOM      1  N   VAL     1      -2.000   0.000   0.000  1.0000 1.5000
ATOM      2  CA  VAL     1       2.000   0.000   0.000 -1.0000 2.0000
HETATM    3  O   HOH     2       0.000   5.000   0.000  0.5000 1.4000
TER
END
`

func TestReadPQR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pqr")
	require.NoError(t, os.WriteFile(path, []byte(samplePQR), 0o644))

	mol, err := ReadPQR(path)
	require.NoError(t, err)

	// HETATM and TER records are ignored.
	require.Equal(t, 2, mol.Num())

	assert.Equal(t, []float64{-2, 2}, mol.X)
	assert.Equal(t, []float64{0, 0}, mol.Y)
	assert.Equal(t, []float64{0, 0}, mol.Z)
	assert.Equal(t, []float64{1, -1}, mol.Charge)
	assert.Equal(t, []float64{1.5, 2}, mol.Radius)
}

func TestReadPQRMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pqr")
	require.NoError(t, os.WriteFile(path, []byte("ATOM 1 N VAL 1 0.0\n"), 0o644))

	_, err := ReadPQR(path)
	assert.Error(t, err)
}

func TestReadPQREmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pqr")
	require.NoError(t, os.WriteFile(path, []byte("REMARK nothing here\n"), 0o644))

	_, err := ReadPQR(path)
	assert.Error(t, err)
}

func TestCoulombEnergy(t *testing.T) {
	mol := &Molecule{
		X:      []float64{0, 4},
		Y:      []float64{0, 0},
		Z:      []float64{0, 0},
		Charge: []float64{1, -1},
		Radius: []float64{1, 1},
	}

	// Two opposite unit charges 4 A apart in eps=2.
	assert.InDelta(t, -1.0/(2.0*4.0), mol.CoulombEnergy(2.0), 1e-15)
}

func TestWriteXYZR(t *testing.T) {
	mol := &Molecule{
		X:      []float64{1, 2},
		Y:      []float64{3, 4},
		Z:      []float64{5, 6},
		Charge: []float64{1, -1},
		Radius: []float64{1.5, 2.5},
	}

	path := filepath.Join(t.TempDir(), "molecule.xyzr")
	require.NoError(t, mol.WriteXYZR(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"1.000000", "3.000000", "5.000000", "1.500000"}, strings.Fields(lines[0]))
}
