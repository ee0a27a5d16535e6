package params

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeParamFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "usrdata.in")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadParams(t *testing.T) {
	pqr := filepath.Join(t.TempDir(), "mol.pqr")
	require.NoError(t, os.WriteFile(pqr, []byte("ATOM 1 X R 1 0 0 0 1 2\n"), 0o644))

	path := writeParamFile(t, `
mol `+pqr+`
pdie 1.0
sdie 80.0
bulk 0.15
temp 298.15
tree_degree 3
tree_theta 0.8
tree_max_per_leaf 50
gmres_restart 10
gmres_residual 1e-4
gmres_num_iter 100
mesh ses
mesh_format msms
sdens 1.0
srad 1.4
precondition on
outdata csv
outdata vtk
output_prefix born
`)

	p, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, pqr, p.PQRFile)
	assert.Equal(t, 1.0, p.EpsSolute)
	assert.Equal(t, 80.0, p.EpsSolvent)
	assert.Equal(t, 3, p.TreeDegree)
	assert.Equal(t, 0.8, p.TreeTheta)
	assert.Equal(t, 50, p.TreeMaxPerLeaf)
	assert.Equal(t, 40, p.TreeClusterParticles)
	assert.Equal(t, 10, p.GMRESRestart)
	assert.Equal(t, 1e-4, p.GMRESResidual)
	assert.Equal(t, 100, p.GMRESNumIter)
	assert.Equal(t, SES, p.Mesh)
	assert.Equal(t, MSMS, p.MeshFormat)
	assert.True(t, p.Precondition)
	assert.True(t, p.OutputCSV)
	assert.True(t, p.OutputVTK)
	assert.False(t, p.OutputPLY)
	assert.Equal(t, "born", p.OutputPrefix)

	// Derived quantities.
	assert.Equal(t, 80.0, p.Eps)
	wantKappa2 := 2529.12179861515279 * 0.15 / 80.0 / 298.15
	assert.InDelta(t, wantKappa2, p.Kappa2, 1e-14)
	assert.InDelta(t, math.Sqrt(wantKappa2), p.Kappa, 1e-14)
}

func TestReadParamsUnknownKeySkipped(t *testing.T) {
	path := writeParamFile(t, "no_such_key 17\npdie 2.0\n")

	p, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 2.0, p.EpsSolute)
}

func TestReadParamsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"theta above one", "tree_theta 1.5"},
		{"degree zero", "tree_degree 0"},
		{"leaf zero", "tree_max_per_leaf 0"},
		{"restart zero", "gmres_restart 0"},
		{"residual above one", "gmres_residual 2"},
		{"bad mesh", "mesh cube"},
		{"bad mesh format", "mesh_format obj"},
		{"negative density", "sdens -1"},
		{"not a number", "pdie abc"},
		{"missing pqr", "pqr /no/such/file.pqr"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Read(writeParamFile(t, tc.line+"\n"))
			require.Error(t, err)

			var cfgErr *ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestDefaults(t *testing.T) {
	p := Default()
	assert.Equal(t, "output", p.OutputPrefix)
	assert.Equal(t, SES, p.Mesh)
	assert.Equal(t, MSMS, p.MeshFormat)
	assert.Equal(t, 10, p.GMRESRestart)
	assert.Equal(t, 1e-4, p.GMRESResidual)
	assert.Equal(t, 1000, p.GMRESNumIter)
	assert.Equal(t, 40, p.TreeClusterParticles)
	assert.False(t, p.Precondition)
}
