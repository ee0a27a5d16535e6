// Package elements owns the boundary elements of the triangulated
// molecular surface: per-element geometry (position, outward normal,
// averaged incident-triangle area) and per-element algebraic state
// (source term, target/source charges, permutation).
package elements

import (
	"fmt"
	"math"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hochshi/TABI-PB/constants"
	"github.com/hochshi/TABI-PB/molecule"
)

// minAtomDistance is the smallest allowed distance between an atom and
// a boundary element during source-term assembly.
const minAtomDistance = 1e-10

// GeometryError reports a degenerate geometric configuration, such as
// an atom coincident with a surface element.
type GeometryError struct {
	Detail string
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry: %s", e.Detail)
}

// Elements is the ordered boundary-element set. One element per surface
// vertex; the slices are parallel and indexed by the current (possibly
// tree-reordered) element order. Order maps current index to original
// input index.
type Elements struct {
	X, Y, Z    []float64
	Nx, Ny, Nz []float64
	Area       []float64

	// SourceTerm is the 2N right-hand side: s1 in [0,N), s2 in [N,2N).
	SourceTerm []float64

	TargetCharge   []float64
	TargetChargeDx []float64
	TargetChargeDy []float64
	TargetChargeDz []float64

	SourceCharge   []float64
	SourceChargeDx []float64
	SourceChargeDy []float64
	SourceChargeDz []float64

	Order []int

	SurfaceArea float64

	surf *Surface
}

// New builds the element set from a triangulated surface. Each vertex
// becomes one element; each triangle contributes a third of its Heron
// area to its three vertices.
func New(surf *Surface) (*Elements, error) {
	n := surf.NumVertices()

	e := &Elements{
		X:  append([]float64(nil), surf.VertX...),
		Y:  append([]float64(nil), surf.VertY...),
		Z:  append([]float64(nil), surf.VertZ...),
		Nx: append([]float64(nil), surf.NormX...),
		Ny: append([]float64(nil), surf.NormY...),
		Nz: append([]float64(nil), surf.NormZ...),

		Area:       make([]float64, n),
		SourceTerm: make([]float64, 2*n),

		TargetCharge:   make([]float64, n),
		TargetChargeDx: make([]float64, n),
		TargetChargeDy: make([]float64, n),
		TargetChargeDz: make([]float64, n),

		SourceCharge:   make([]float64, n),
		SourceChargeDx: make([]float64, n),
		SourceChargeDy: make([]float64, n),
		SourceChargeDz: make([]float64, n),

		Order: make([]int, n),

		surf: surf,
	}
	for i := range e.Order {
		e.Order[i] = i
	}

	for i := 0; i < surf.NumFaces(); i++ {
		va, vb, vc := surf.FaceA[i], surf.FaceB[i], surf.FaceC[i]
		area := triangleArea(
			surf.VertX[va], surf.VertY[va], surf.VertZ[va],
			surf.VertX[vb], surf.VertY[vb], surf.VertZ[vb],
			surf.VertX[vc], surf.VertY[vc], surf.VertZ[vc])

		e.Area[va] += area
		e.Area[vb] += area
		e.Area[vc] += area
	}

	for i := range e.Area {
		e.Area[i] /= 3.
		e.SurfaceArea += e.Area[i]
		if e.Area[i] <= 0 {
			logrus.Warnf("element %d has non-positive area %g", i, e.Area[i])
		}
	}

	logrus.Infof("Surface area of triangulated mesh is %g.", e.SurfaceArea)
	return e, nil
}

// Num returns the number of boundary elements.
func (e *Elements) Num() int { return len(e.X) }

// Surface returns the triangulation the elements were built from, in
// the original vertex order.
func (e *Elements) Surface() *Surface { return e.surf }

// ComputeSourceTerm assembles the right-hand side
//
//	s1_i = sum_j q_j * G0 / eps_p
//	s2_i = sum_j q_j * G1 / eps_p
//
// over all atoms j, with r = atom - element. An atom within
// minAtomDistance of an element is a GeometryError.
func (e *Elements) ComputeSourceTerm(mol *molecule.Molecule, epsSolute float64) error {
	n := e.Num()

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())

	chunk := (n + runtime.NumCPU() - 1) / runtime.NumCPU()
	if chunk < 1 {
		chunk = 1
	}

	for begin := 0; begin < n; begin += chunk {
		begin := begin
		end := begin + chunk
		if end > n {
			end = n
		}

		g.Go(func() error {
			for i := begin; i < end; i++ {
				s1 := 0.0
				s2 := 0.0

				for j := 0; j < mol.Num(); j++ {
					dx := mol.X[j] - e.X[i]
					dy := mol.Y[j] - e.Y[i]
					dz := mol.Z[j] - e.Z[i]
					dist := math.Sqrt(dx*dx + dy*dy + dz*dz)

					if dist < minAtomDistance {
						return &GeometryError{Detail: fmt.Sprintf(
							"atom %d coincides with surface element %d (distance %g)", j, i, dist)}
					}

					cosTheta := (e.Nx[i]*dx + e.Ny[i]*dy + e.Nz[i]*dz) / dist

					g0 := constants.OneOver4Pi / dist
					g1 := cosTheta * g0 / dist

					s1 += mol.Charge[j] * g0 / epsSolute
					s2 += mol.Charge[j] * g1 / epsSolute
				}

				e.SourceTerm[i] = s1
				e.SourceTerm[n+i] = s2
			}
			return nil
		})
	}

	return g.Wait()
}

// ComputeCharges refreshes the target- and source-charge vectors from
// the current iterate. Called at the start of every matrix-vector
// product.
func (e *Elements) ComputeCharges(potential []float64) {
	n := e.Num()
	for i := 0; i < n; i++ {
		e.TargetCharge[i] = constants.OneOver4Pi
		e.TargetChargeDx[i] = constants.OneOver4Pi * e.Nx[i]
		e.TargetChargeDy[i] = constants.OneOver4Pi * e.Ny[i]
		e.TargetChargeDz[i] = constants.OneOver4Pi * e.Nz[i]

		e.SourceCharge[i] = e.Area[i] * potential[n+i]
		e.SourceChargeDx[i] = e.Nx[i] * e.Area[i] * potential[i]
		e.SourceChargeDy[i] = e.Ny[i] * e.Area[i] * potential[i]
		e.SourceChargeDz[i] = e.Nz[i] * e.Area[i] * potential[i]
	}
}

func triangleArea(ax, ay, az, bx, by, bz, cx, cy, cz float64) float64 {
	ab := math.Sqrt((ax-bx)*(ax-bx) + (ay-by)*(ay-by) + (az-bz)*(az-bz))
	ac := math.Sqrt((ax-cx)*(ax-cx) + (ay-cy)*(ay-cy) + (az-cz)*(az-cz))
	bc := math.Sqrt((bx-cx)*(bx-cx) + (by-cy)*(by-cy) + (bz-cz)*(bz-cz))

	s := 0.5 * (ab + ac + bc)
	return math.Sqrt(s * (s - ab) * (s - ac) * (s - bc))
}
