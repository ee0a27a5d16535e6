package treecode

import "math"

// particleParticleInteract adds the direct screened-Coulomb
// double-layer contributions of the source node's elements to the
// target node's entries of potential. The self pair (zero distance) is
// skipped; its diagonal contribution is applied by MatVec.
func (tc *Treecode) particleParticleInteract(potential, potentialOld []float64,
	targetBegin, targetEnd, sourceBegin, sourceEnd int) {

	e := tc.elems
	n := e.Num()

	eps := tc.params.Eps
	kappa := tc.params.Kappa
	kappa2 := tc.params.Kappa2

	for j := targetBegin; j < targetEnd; j++ {
		targetX, targetY, targetZ := e.X[j], e.Y[j], e.Z[j]
		targetNx, targetNy, targetNz := e.Nx[j], e.Ny[j], e.Nz[j]

		for k := sourceBegin; k < sourceEnd; k++ {
			dx := e.X[k] - targetX
			dy := e.Y[k] - targetY
			dz := e.Z[k] - targetZ
			r := math.Sqrt(dx*dx + dy*dy + dz*dz)

			if r == 0 {
				continue
			}

			oneOverR := 1. / r
			g0 := oneOver4Pi * oneOverR
			kappaR := kappa * r
			expKappaR := math.Exp(-kappaR)
			gk := expKappaR * g0

			cosTheta := (e.Nx[k]*dx + e.Ny[k]*dy + e.Nz[k]*dz) * oneOverR
			cosTheta0 := (targetNx*dx + targetNy*dy + targetNz*dz) * oneOverR

			tp1 := g0 * oneOverR
			tp2 := (1. + kappaR) * expKappaR

			dotNN := e.Nx[k]*targetNx + e.Ny[k]*targetNy + e.Nz[k]*targetNz
			g3 := (dotNN - 3.*cosTheta0*cosTheta) * oneOverR * tp1
			g4 := tp2*g3 - kappa2*cosTheta0*cosTheta*gk

			l1 := cosTheta * tp1 * (1. - tp2*eps)
			l2 := g0 - gk
			l3 := g4 - g3
			l4 := cosTheta0 * tp1 * (1. - tp2/eps)

			area := e.Area[k]
			potentialOld0 := potentialOld[k]
			potentialOld1 := potentialOld[k+n]

			potential[j] += (l1*potentialOld0 + l2*potentialOld1) * area
			potential[j+n] += (l3*potentialOld0 + l4*potentialOld1) * area
		}
	}
}

// clusterPotential accumulates the restructured scalar+vector kernel of
// one source point (dx, dy, dz away) carrying the four charge
// components q, qdx, qdy, qdz.
type clusterPotential struct {
	pot, potDx, potDy, potDz float64
}

func (cp *clusterPotential) accumulate(dx, dy, dz, q, qdx, qdy, qdz, eps, kappa float64) {
	r2 := dx*dx + dy*dy + dz*dz
	r := math.Sqrt(r2)
	rinv := 1. / r
	r3inv := rinv * rinv * rinv
	r5inv := r3inv * rinv * rinv

	expkr := math.Exp(-kappa * r)
	d1term := r3inv * expkr * (1. + kappa*r)
	d1term1 := -r3inv + d1term*eps
	d1term2 := -r3inv + d1term/eps
	d2term := r5inv * (-3. + expkr*(3.+3.*kappa*r+kappa*kappa*r2))
	d3term := r3inv * (1. - expkr*(1.+kappa*r))

	cp.pot += rinv*(1.-expkr)*q + d1term1*(qdx*dx+qdy*dy+qdz*dz)

	cp.potDx += q*d1term2*dx - (qdx*(dx*dx*d2term+d3term) +
		qdy*(dx*dy*d2term) +
		qdz*(dx*dz*d2term))

	cp.potDy += q*d1term2*dy - (qdx*(dx*dy*d2term) +
		qdy*(dy*dy*d2term+d3term) +
		qdz*(dy*dz*d2term))

	cp.potDz += q*d1term2*dz - (qdx*(dx*dz*d2term) +
		qdy*(dy*dz*d2term) +
		qdz*(dz*dz*d2term+d3term))
}

// particleClusterInteract evaluates the source node's cluster charges
// at each target element and adds the result to potential.
func (tc *Treecode) particleClusterInteract(potential []float64,
	targetBegin, targetEnd, sourceNodeIdx int) {

	e := tc.elems
	c := tc.clusters
	n := e.Num()

	numPts := c.NumInterpPtsPerNode
	ptsBegin := sourceNodeIdx * numPts
	chargesBegin := sourceNodeIdx * c.NumChargesPerNode

	eps := tc.params.Eps
	kappa := tc.params.Kappa

	for j := targetBegin; j < targetEnd; j++ {
		targetX, targetY, targetZ := e.X[j], e.Y[j], e.Z[j]

		var acc clusterPotential

		kk := chargesBegin
		for k1 := 0; k1 < numPts; k1++ {
			dx := targetX - c.InterpX[ptsBegin+k1]
			for k2 := 0; k2 < numPts; k2++ {
				dy := targetY - c.InterpY[ptsBegin+k2]
				for k3 := 0; k3 < numPts; k3++ {
					dz := targetZ - c.InterpZ[ptsBegin+k3]

					acc.accumulate(dx, dy, dz,
						c.InterpCharge[kk], c.InterpChargeDx[kk],
						c.InterpChargeDy[kk], c.InterpChargeDz[kk],
						eps, kappa)
					kk++
				}
			}
		}

		potential[j] += e.TargetCharge[j] * acc.pot
		potential[j+n] += e.TargetChargeDx[j]*acc.potDx +
			e.TargetChargeDy[j]*acc.potDy +
			e.TargetChargeDz[j]*acc.potDz
	}
}

// clusterParticleInteract evaluates the source node's element source
// charges at each interpolation point of the target node's cluster and
// accumulates into the cluster potentials.
func (tc *Treecode) clusterParticleInteract(targetNodeIdx, sourceBegin, sourceEnd int) {
	e := tc.elems
	c := tc.clusters

	numPts := c.NumInterpPtsPerNode
	ptsBegin := targetNodeIdx * numPts
	potentialsBegin := targetNodeIdx * c.NumChargesPerNode

	eps := tc.params.Eps
	kappa := tc.params.Kappa

	jj := potentialsBegin
	for j1 := 0; j1 < numPts; j1++ {
		targetX := c.InterpX[ptsBegin+j1]
		for j2 := 0; j2 < numPts; j2++ {
			targetY := c.InterpY[ptsBegin+j2]
			for j3 := 0; j3 < numPts; j3++ {
				targetZ := c.InterpZ[ptsBegin+j3]

				var acc clusterPotential

				for k := sourceBegin; k < sourceEnd; k++ {
					dx := targetX - e.X[k]
					dy := targetY - e.Y[k]
					dz := targetZ - e.Z[k]

					acc.accumulate(dx, dy, dz,
						e.SourceCharge[k], e.SourceChargeDx[k],
						e.SourceChargeDy[k], e.SourceChargeDz[k],
						eps, kappa)
				}

				c.InterpPotential[jj] += acc.pot
				c.InterpPotentialDx[jj] += acc.potDx
				c.InterpPotentialDy[jj] += acc.potDy
				c.InterpPotentialDz[jj] += acc.potDz
				jj++
			}
		}
	}
}

// clusterClusterInteract evaluates the source node's cluster charges at
// each interpolation point of the target node's cluster.
func (tc *Treecode) clusterClusterInteract(targetNodeIdx, sourceNodeIdx int) {
	c := tc.clusters

	numPts := c.NumInterpPtsPerNode
	targetPtsBegin := targetNodeIdx * numPts
	targetPotentialsBegin := targetNodeIdx * c.NumChargesPerNode
	sourcePtsBegin := sourceNodeIdx * numPts
	sourceChargesBegin := sourceNodeIdx * c.NumChargesPerNode

	eps := tc.params.Eps
	kappa := tc.params.Kappa

	jj := targetPotentialsBegin
	for j1 := 0; j1 < numPts; j1++ {
		targetX := c.InterpX[targetPtsBegin+j1]
		for j2 := 0; j2 < numPts; j2++ {
			targetY := c.InterpY[targetPtsBegin+j2]
			for j3 := 0; j3 < numPts; j3++ {
				targetZ := c.InterpZ[targetPtsBegin+j3]

				var acc clusterPotential

				kk := sourceChargesBegin
				for k1 := 0; k1 < numPts; k1++ {
					dx := targetX - c.InterpX[sourcePtsBegin+k1]
					for k2 := 0; k2 < numPts; k2++ {
						dy := targetY - c.InterpY[sourcePtsBegin+k2]
						for k3 := 0; k3 < numPts; k3++ {
							dz := targetZ - c.InterpZ[sourcePtsBegin+k3]

							acc.accumulate(dx, dy, dz,
								c.InterpCharge[kk], c.InterpChargeDx[kk],
								c.InterpChargeDy[kk], c.InterpChargeDz[kk],
								eps, kappa)
							kk++
						}
					}
				}

				c.InterpPotential[jj] += acc.pot
				c.InterpPotentialDx[jj] += acc.potDx
				c.InterpPotentialDy[jj] += acc.potDy
				c.InterpPotentialDz[jj] += acc.potDz
				jj++
			}
		}
	}
}
