package elements

import (
	"math"
	"runtime"
	"sync"

	"github.com/hochshi/TABI-PB/constants"
	"github.com/hochshi/TABI-PB/molecule"
)

// SolvationEnergy integrates the solved surface potential against the
// atomic charges:
//
//	E = sum_i sum_j q_j * a_i * (L1*phi_i + L2*phi_{N+i})
//
// in internal units (scale by constants.UnitsPara for kJ/mol). The
// per-chunk partial sums are combined in a fixed order so repeated runs
// produce identical results.
func (e *Elements) SolvationEnergy(mol *molecule.Molecule, eps, kappa float64, potential []float64) float64 {
	n := e.Num()

	numChunks := runtime.NumCPU()
	chunk := (n + numChunks - 1) / numChunks
	if chunk < 1 {
		chunk = 1
	}

	partials := make([]float64, (n+chunk-1)/chunk)

	var wg sync.WaitGroup
	for c := range partials {
		begin := c * chunk
		end := begin + chunk
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(c, begin, end int) {
			defer wg.Done()

			sum := 0.0
			for i := begin; i < end; i++ {
				for j := 0; j < mol.Num(); j++ {
					dx := e.X[i] - mol.X[j]
					dy := e.Y[i] - mol.Y[j]
					dz := e.Z[i] - mol.Z[j]
					dist := math.Sqrt(dx*dx + dy*dy + dz*dz)

					cosTheta := (e.Nx[i]*dx + e.Ny[i]*dy + e.Nz[i]*dz) / dist

					kappaR := kappa * dist
					expKappaR := math.Exp(-kappaR)

					g0 := constants.OneOver4Pi / dist
					gk := expKappaR * g0
					g1 := cosTheta * g0 / dist
					g2 := g1 * (1.0 + kappaR) * expKappaR

					l1 := g1 - eps*g2
					l2 := g0 - gk

					sum += mol.Charge[j] * e.Area[i] *
						(l1*potential[i] + l2*potential[n+i])
				}
			}
			partials[c] = sum
		}(c, begin, end)
	}
	wg.Wait()

	energy := 0.0
	for _, p := range partials {
		energy += p
	}
	return energy
}
