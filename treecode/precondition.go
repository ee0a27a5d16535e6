package treecode

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/hochshi/TABI-PB/elements"
	"github.com/hochshi/TABI-PB/params"
	"github.com/hochshi/TABI-PB/tree"
)

// maxBlockCondition rejects leaf blocks whose LU factorization is
// effectively singular (pivot magnitude below ~1e-14).
const maxBlockCondition = 1e14

// SingularPreconditionerError reports a degenerate leaf block during
// the block-Jacobi factorization.
type SingularPreconditionerError struct {
	Leaf int
	Cond float64
}

func (e *SingularPreconditionerError) Error() string {
	return fmt.Sprintf("preconditioner: leaf %d block is singular (condition %g)", e.Leaf, e.Cond)
}

// leafBlock is the factorized dense operator block of one tree leaf.
type leafBlock struct {
	begin, end int
	lu         mat.LU
}

// blockPreconditioner is the block-Jacobi preconditioner: one dense LU
// per tree leaf, over the leaf's element indices in both halves of the
// potential vector.
type blockPreconditioner struct {
	n      int
	blocks []leafBlock
}

// newBlockPreconditioner assembles and factorizes the 2m x 2m dense
// kernel matrix of every leaf. The entries are the same L1..L4 kernels
// the matrix-vector product applies, with the diagonal coefficients
// 1/2(1+eps) and 1/2(1+1/eps).
func newBlockPreconditioner(e *elements.Elements, t *tree.Tree, p *params.Params) (*blockPreconditioner, error) {
	bp := &blockPreconditioner{n: e.Num()}

	for leafIdx := range t.Nodes {
		node := &t.Nodes[leafIdx]
		if !node.IsLeaf() {
			continue
		}

		block := leafBlock{begin: node.Begin, end: node.End}
		a := assembleLeafMatrix(e, p, node.Begin, node.End)

		block.lu.Factorize(a)
		if cond := block.lu.Cond(); math.IsInf(cond, 1) || cond > maxBlockCondition {
			return nil, &SingularPreconditionerError{Leaf: leafIdx, Cond: cond}
		}

		bp.blocks = append(bp.blocks, block)
	}

	return bp, nil
}

func assembleLeafMatrix(e *elements.Elements, p *params.Params, begin, end int) *mat.Dense {
	nrow := end - begin
	a := mat.NewDense(2*nrow, 2*nrow, nil)

	eps := p.Eps
	kappa := p.Kappa
	kappa2 := p.Kappa2

	coeff1 := 0.5 * (1. + eps)
	coeff2 := 0.5 * (1. + 1./eps)

	for i := begin; i < end; i++ {
		ii := i - begin

		a.Set(ii, ii, coeff1)
		a.Set(ii+nrow, ii+nrow, coeff2)

		for j := begin; j < end; j++ {
			if j == i {
				continue
			}
			jj := j - begin

			dx := e.X[j] - e.X[i]
			dy := e.Y[j] - e.Y[i]
			dz := e.Z[j] - e.Z[i]
			r := math.Sqrt(dx*dx + dy*dy + dz*dz)
			oneOverR := 1. / r

			g0 := oneOver4Pi * oneOverR
			kappaR := kappa * r
			expKappaR := math.Exp(-kappaR)
			gk := expKappaR * g0

			cosTheta := (e.Nx[j]*dx + e.Ny[j]*dy + e.Nz[j]*dz) * oneOverR
			cosTheta0 := (e.Nx[i]*dx + e.Ny[i]*dy + e.Nz[i]*dz) * oneOverR

			tp1 := g0 * oneOverR
			tp2 := (1. + kappaR) * expKappaR

			g10 := cosTheta0 * tp1
			g20 := tp2 * g10
			g1 := cosTheta * tp1
			g2 := tp2 * g1

			dotNN := e.Nx[j]*e.Nx[i] + e.Ny[j]*e.Ny[i] + e.Nz[j]*e.Nz[i]
			g3 := (dotNN - 3.*cosTheta0*cosTheta) * oneOverR * tp1
			g4 := tp2*g3 - kappa2*cosTheta0*cosTheta*gk

			area := e.Area[j]

			l1 := g1 - eps*g2
			l2 := g0 - gk
			l3 := g4 - g3
			l4 := g10 - g20/eps

			a.Set(ii, jj, -l1*area)
			a.Set(ii, jj+nrow, -l2*area)
			a.Set(ii+nrow, jj, -l3*area)
			a.Set(ii+nrow, jj+nrow, -l4*area)
		}
	}

	return a
}

// apply solves B_l z_l = r_l for every leaf block, gathering the leaf's
// element indices from both halves of r and scattering the solution
// back into z.
func (bp *blockPreconditioner) apply(z, r []float64) error {
	for bi := range bp.blocks {
		block := &bp.blocks[bi]
		nrow := block.end - block.begin

		rhs := mat.NewVecDense(2*nrow, nil)
		for i := 0; i < nrow; i++ {
			rhs.SetVec(i, r[block.begin+i])
			rhs.SetVec(i+nrow, r[block.begin+i+bp.n])
		}

		var sol mat.VecDense
		if err := block.lu.SolveVecTo(&sol, false, rhs); err != nil {
			return err
		}

		for i := 0; i < nrow; i++ {
			z[block.begin+i] = sol.AtVec(i)
			z[block.begin+i+bp.n] = sol.AtVec(i + nrow)
		}
	}
	return nil
}
