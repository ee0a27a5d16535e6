// Package treecode assembles the treecode-accelerated boundary
// integral operator for the linearized Poisson–Boltzmann equation and
// solves the resulting dense system matrix-free with preconditioned
// restarted GMRES.
package treecode

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/hochshi/TABI-PB/cluster"
	"github.com/hochshi/TABI-PB/constants"
	"github.com/hochshi/TABI-PB/elements"
	"github.com/hochshi/TABI-PB/interaction"
	"github.com/hochshi/TABI-PB/params"
	"github.com/hochshi/TABI-PB/tree"
)

const oneOver4Pi = constants.OneOver4Pi

// Treecode is the solve context: the element set, the spatial tree and
// its clusters, the interaction lists and the physical parameters. It
// carries the potential vector across a solve.
type Treecode struct {
	elems    *elements.Elements
	clusters *cluster.Clusters
	tree     *tree.Tree
	inter    *interaction.List
	params   *params.Params

	potential []float64

	block *blockPreconditioner

	// Iterations is the GMRES iteration count of the last solve.
	Iterations int
}

// New wires the solver context. When preconditioning is enabled, the
// dense leaf blocks are assembled and factorized once here; a singular
// leaf degrades the run to the scalar preconditioner with a warning.
func New(e *elements.Elements, c *cluster.Clusters, t *tree.Tree,
	il *interaction.List, p *params.Params) *Treecode {

	tc := &Treecode{
		elems:     e,
		clusters:  c,
		tree:      t,
		inter:     il,
		params:    p,
		potential: make([]float64, 2*e.Num()),
	}

	if p.Precondition {
		block, err := newBlockPreconditioner(e, t, p)
		if err != nil {
			logrus.Warnf("block-Jacobi preconditioner disabled: %v", err)
		} else {
			tc.block = block
		}
	}

	return tc
}

// Potential returns the potential vector of the last solve, in the
// element order current at the time of the call.
func (tc *Treecode) Potential() []float64 { return tc.potential }

// MatVec applies the boundary-integral operator:
//
//	potentialNew := beta*potentialNew + alpha*A*potentialOld
//
// by recomputing the element charges from potentialOld, running the
// upward pass, walking the four interaction lists of every target node
// in DFS order, running the downward pass, and folding in the diagonal
// 1/2(1+eps) and 1/2(1+1/eps) terms.
func (tc *Treecode) MatVec(alpha float64, potentialOld []float64, beta float64, potentialNew []float64) {
	n := tc.elems.Num()

	coeff1 := 0.5 * (1. + tc.params.Eps)
	coeff2 := 0.5 * (1. + 1./tc.params.Eps)

	potentialTemp := append([]float64(nil), potentialNew...)
	for i := range potentialNew {
		potentialNew[i] = 0
	}

	tc.elems.ComputeCharges(potentialOld)
	tc.clusters.UpwardPass()
	tc.clusters.ClearPotentials()

	// The element ranges of nested target nodes overlap in
	// potentialNew, so the walk stays sequential; the fixed DFS order
	// keeps the floating-point sums deterministic.
	for targetIdx := range tc.tree.Nodes {
		target := &tc.tree.Nodes[targetIdx]

		for _, sourceIdx := range tc.inter.ParticleParticle[targetIdx] {
			source := &tc.tree.Nodes[sourceIdx]
			tc.particleParticleInteract(potentialNew, potentialOld,
				target.Begin, target.End, source.Begin, source.End)
		}

		for _, sourceIdx := range tc.inter.ParticleCluster[targetIdx] {
			tc.particleClusterInteract(potentialNew, target.Begin, target.End, sourceIdx)
		}

		for _, sourceIdx := range tc.inter.ClusterParticle[targetIdx] {
			source := &tc.tree.Nodes[sourceIdx]
			tc.clusterParticleInteract(targetIdx, source.Begin, source.End)
		}

		for _, sourceIdx := range tc.inter.ClusterCluster[targetIdx] {
			tc.clusterClusterInteract(targetIdx, sourceIdx)
		}
	}

	tc.clusters.DownwardPass(potentialNew)

	for i := 0; i < n; i++ {
		potentialNew[i] = beta*potentialTemp[i] +
			alpha*(coeff1*potentialOld[i]-potentialNew[i])
	}
	for i := n; i < 2*n; i++ {
		potentialNew[i] = beta*potentialTemp[i] +
			alpha*(coeff2*potentialOld[i]-potentialNew[i])
	}
}

// Precondition solves M z = r with the block-Jacobi preconditioner when
// available, and with the diagonal scaling otherwise.
func (tc *Treecode) Precondition(z, r []float64) error {
	if tc.block != nil {
		return tc.block.apply(z, r)
	}

	n := tc.elems.Num()
	coeff1 := 0.5 * (1. + tc.params.Eps)
	coeff2 := 0.5 * (1. + 1./tc.params.Eps)

	for i := 0; i < n; i++ {
		z[i] = r[i] / coeff1
	}
	for i := n; i < 2*n; i++ {
		z[i] = r[i] / coeff2
	}
	return nil
}

// RunGMRES solves the boundary integral equation for the surface
// potential, starting from the zero vector. The context is polled
// between outer iterations. A ConvergenceWarning is returned alongside
// the best iterate when the iteration limit is reached.
func (tc *Treecode) RunGMRES(ctx context.Context) error {
	n := 2 * tc.elems.Num()

	for i := range tc.potential {
		tc.potential[i] = 0
	}

	iters, err := gmres(ctx, n, tc.elems.SourceTerm, tc.potential,
		tc.params.GMRESRestart, tc.params.GMRESResidual, tc.params.GMRESNumIter,
		tc.MatVec, tc.Precondition)

	tc.Iterations = iters
	return err
}
