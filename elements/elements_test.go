package elements

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hochshi/TABI-PB/constants"
	"github.com/hochshi/TABI-PB/molecule"
)

// tetrahedronSurface returns a small closed triangulation with four
// vertices and four faces. The normals are unit radial directions from
// the centroid.
func tetrahedronSurface() *Surface {
	surf := &Surface{
		VertX: []float64{1, -1, -1, 1},
		VertY: []float64{1, -1, 1, -1},
		VertZ: []float64{1, 1, -1, -1},
		FaceA: []int{0, 0, 0, 1},
		FaceB: []int{1, 2, 3, 3},
		FaceC: []int{2, 3, 1, 2},
	}

	for i := range surf.VertX {
		norm := math.Sqrt(surf.VertX[i]*surf.VertX[i] +
			surf.VertY[i]*surf.VertY[i] + surf.VertZ[i]*surf.VertZ[i])
		surf.NormX = append(surf.NormX, surf.VertX[i]/norm)
		surf.NormY = append(surf.NormY, surf.VertY[i]/norm)
		surf.NormZ = append(surf.NormZ, surf.VertZ[i]/norm)
	}
	return surf
}

func TestNewElementsAreas(t *testing.T) {
	surf := tetrahedronSurface()
	e, err := New(surf)
	require.NoError(t, err)

	require.Equal(t, 4, e.Num())

	// A regular tetrahedron with edge 2*sqrt(2) has four faces of area
	// sqrt(3)/4 * edge^2 = 2*sqrt(3).
	faceArea := 2 * math.Sqrt(3)

	total := 0.0
	for _, a := range e.Area {
		assert.Greater(t, a, 0.0)
		total += a
	}
	assert.InDelta(t, 4*faceArea, total, 1e-12)
	assert.InDelta(t, 4*faceArea, e.SurfaceArea, 1e-12)

	// Each vertex touches three of the four faces.
	for _, a := range e.Area {
		assert.InDelta(t, 3*faceArea/3, a, 1e-12)
	}
}

func TestComputeSourceTerm(t *testing.T) {
	surf := tetrahedronSurface()
	e, err := New(surf)
	require.NoError(t, err)

	mol := &molecule.Molecule{
		X:      []float64{0},
		Y:      []float64{0},
		Z:      []float64{0},
		Charge: []float64{2},
		Radius: []float64{1},
	}

	epsSolute := 4.0
	require.NoError(t, e.ComputeSourceTerm(mol, epsSolute))

	n := e.Num()
	for i := 0; i < n; i++ {
		dx := mol.X[0] - e.X[i]
		dy := mol.Y[0] - e.Y[i]
		dz := mol.Z[0] - e.Z[i]
		dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
		cosTheta := (e.Nx[i]*dx + e.Ny[i]*dy + e.Nz[i]*dz) / dist

		g0 := constants.OneOver4Pi / dist
		g1 := cosTheta * g0 / dist

		assert.InDelta(t, mol.Charge[0]*g0/epsSolute, e.SourceTerm[i], 1e-15)
		assert.InDelta(t, mol.Charge[0]*g1/epsSolute, e.SourceTerm[n+i], 1e-15)
	}
}

func TestComputeSourceTermCoincidentAtom(t *testing.T) {
	surf := tetrahedronSurface()
	e, err := New(surf)
	require.NoError(t, err)

	// Atom essentially on top of vertex 0.
	mol := &molecule.Molecule{
		X:      []float64{1 + 1e-12},
		Y:      []float64{1},
		Z:      []float64{1},
		Charge: []float64{1},
		Radius: []float64{1},
	}

	err = e.ComputeSourceTerm(mol, 1.0)
	require.Error(t, err)

	var geomErr *GeometryError
	assert.ErrorAs(t, err, &geomErr)
}

func TestComputeCharges(t *testing.T) {
	surf := tetrahedronSurface()
	e, err := New(surf)
	require.NoError(t, err)

	n := e.Num()
	phi := make([]float64, 2*n)
	for i := range phi {
		phi[i] = float64(i + 1)
	}

	e.ComputeCharges(phi)

	for i := 0; i < n; i++ {
		assert.Equal(t, constants.OneOver4Pi, e.TargetCharge[i])
		assert.Equal(t, constants.OneOver4Pi*e.Nx[i], e.TargetChargeDx[i])

		assert.Equal(t, e.Area[i]*phi[n+i], e.SourceCharge[i])
		assert.Equal(t, e.Nx[i]*e.Area[i]*phi[i], e.SourceChargeDx[i])
		assert.Equal(t, e.Ny[i]*e.Area[i]*phi[i], e.SourceChargeDy[i])
		assert.Equal(t, e.Nz[i]*e.Area[i]*phi[i], e.SourceChargeDz[i])
	}
}
