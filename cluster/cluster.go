// Package cluster holds the barycentric-Lagrange interpolation state of
// every tree node: a tensor-product Chebyshev grid scaled to the node's
// bounding box, interpolated charges filled by the upward pass, and
// potential accumulators drained by the downward pass.
package cluster

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hochshi/TABI-PB/elements"
	"github.com/hochshi/TABI-PB/tree"
)

// minNormal is the smallest positive normal float64, the threshold for
// the exact-node fix in the barycentric formula.
const minNormal = 2.2250738585072014e-308

// Clusters stores, for all tree nodes, the interpolation grids and the
// four-component charge and potential arrays in a single flat layout:
// node n's interpolation points occupy [n*(p+1), (n+1)*(p+1)) of the
// per-axis slices, its charges and potentials occupy
// [n*(p+1)^3, (n+1)*(p+1)^3).
type Clusters struct {
	Degree              int
	NumInterpPtsPerNode int
	NumChargesPerNode   int

	InterpX []float64
	InterpY []float64
	InterpZ []float64

	InterpCharge   []float64
	InterpChargeDx []float64
	InterpChargeDy []float64
	InterpChargeDz []float64

	InterpPotential   []float64
	InterpPotentialDx []float64
	InterpPotentialDy []float64
	InterpPotentialDz []float64

	elems *elements.Elements
	tree  *tree.Tree

	// Chebyshev nodes on [-1,1] and barycentric weights, degree+1 each.
	tt []float64
	ww []float64
}

// New allocates cluster storage for every tree node and fixes the
// interpolation grids, which depend only on the node bounding boxes.
func New(e *elements.Elements, t *tree.Tree, degree int) *Clusters {
	numPts := degree + 1
	numCharges := numPts * numPts * numPts
	numNodes := t.NumNodes()

	c := &Clusters{
		Degree:              degree,
		NumInterpPtsPerNode: numPts,
		NumChargesPerNode:   numCharges,

		InterpX: make([]float64, numNodes*numPts),
		InterpY: make([]float64, numNodes*numPts),
		InterpZ: make([]float64, numNodes*numPts),

		InterpCharge:   make([]float64, numNodes*numCharges),
		InterpChargeDx: make([]float64, numNodes*numCharges),
		InterpChargeDy: make([]float64, numNodes*numCharges),
		InterpChargeDz: make([]float64, numNodes*numCharges),

		InterpPotential:   make([]float64, numNodes*numCharges),
		InterpPotentialDx: make([]float64, numNodes*numCharges),
		InterpPotentialDy: make([]float64, numNodes*numCharges),
		InterpPotentialDz: make([]float64, numNodes*numCharges),

		elems: e,
		tree:  t,

		tt: chebyshevNodes(degree),
		ww: barycentricWeights(degree),
	}

	for nodeIdx := range t.Nodes {
		c.setInterpPoints(nodeIdx)
	}

	return c
}

// chebyshevNodes returns the degree+1 Chebyshev points of the second
// kind, cos(k*pi/degree), on [-1, 1].
func chebyshevNodes(degree int) []float64 {
	tt := make([]float64, degree+1)
	for k := range tt {
		tt[k] = math.Cos(float64(k) * math.Pi / float64(degree))
	}
	return tt
}

// barycentricWeights returns w_k = (-1)^k * d_k with d_0 = d_p = 1/2
// and d_k = 1 otherwise.
func barycentricWeights(degree int) []float64 {
	ww := make([]float64, degree+1)
	for k := range ww {
		d := 1.0
		if k == 0 || k == degree {
			d = 0.5
		}
		if k%2 == 1 {
			d = -d
		}
		ww[k] = d
	}
	return ww
}

// setInterpPoints scales the Chebyshev nodes to the node's bounding box
// along each axis.
func (c *Clusters) setInterpPoints(nodeIdx int) {
	node := &c.tree.Nodes[nodeIdx]
	begin := nodeIdx * c.NumInterpPtsPerNode

	for k, t := range c.tt {
		c.InterpX[begin+k] = node.XMin + (t+1.)/2.*(node.XMax-node.XMin)
		c.InterpY[begin+k] = node.YMin + (t+1.)/2.*(node.YMax-node.YMin)
		c.InterpZ[begin+k] = node.ZMin + (t+1.)/2.*(node.ZMax-node.ZMin)
	}
}

// UpwardPass projects every node's element source charges onto its
// interpolation grid. Each node reads only its own element range and
// writes only its own charge block, so the nodes run concurrently.
func (c *Clusters) UpwardPass() {
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())

	for nodeIdx := range c.tree.Nodes {
		nodeIdx := nodeIdx
		g.Go(func() error {
			c.computeCharges(nodeIdx)
			return nil
		})
	}
	g.Wait()
}

// computeCharges forms the barycentric projection of the node's element
// source charges onto its grid, all four components in lockstep.
func (c *Clusters) computeCharges(nodeIdx int) {
	node := &c.tree.Nodes[nodeIdx]
	e := c.elems

	numPts := c.NumInterpPtsPerNode
	ptsBegin := nodeIdx * numPts
	chargesBegin := nodeIdx * c.NumChargesPerNode

	q := c.InterpCharge[chargesBegin : chargesBegin+c.NumChargesPerNode]
	qdx := c.InterpChargeDx[chargesBegin : chargesBegin+c.NumChargesPerNode]
	qdy := c.InterpChargeDy[chargesBegin : chargesBegin+c.NumChargesPerNode]
	qdz := c.InterpChargeDz[chargesBegin : chargesBegin+c.NumChargesPerNode]

	for k := range q {
		q[k] = 0
		qdx[k] = 0
		qdy[k] = 0
		qdz[k] = 0
	}

	ax := make([]float64, numPts)
	ay := make([]float64, numPts)
	az := make([]float64, numPts)

	for i := node.Begin; i < node.End; i++ {
		weightDenom := c.barycentric(ax, ay, az, ptsBegin, e.X[i], e.Y[i], e.Z[i])

		kk := 0
		for k1 := 0; k1 < numPts; k1++ {
			for k2 := 0; k2 < numPts; k2++ {
				axy := ax[k1] * ay[k2] * weightDenom
				for k3 := 0; k3 < numPts; k3++ {
					w := axy * az[k3]

					q[kk] += w * e.SourceCharge[i]
					qdx[kk] += w * e.SourceChargeDx[i]
					qdy[kk] += w * e.SourceChargeDy[i]
					qdz[kk] += w * e.SourceChargeDz[i]
					kk++
				}
			}
		}
	}
}

// barycentric fills the per-axis coefficient vectors for the point
// (x, y, z) against the node grid starting at ptsBegin, applying the
// indicator fix when the point lies exactly on a grid node, and returns
// 1/(Sx*Sy*Sz).
func (c *Clusters) barycentric(ax, ay, az []float64, ptsBegin int, x, y, z float64) float64 {
	sumX, sumY, sumZ := 0.0, 0.0, 0.0
	exactX, exactY, exactZ := -1, -1, -1

	for j := range ax {
		dx := x - c.InterpX[ptsBegin+j]
		dy := y - c.InterpY[ptsBegin+j]
		dz := z - c.InterpZ[ptsBegin+j]

		ax[j] = c.ww[j] / dx
		ay[j] = c.ww[j] / dy
		az[j] = c.ww[j] / dz

		sumX += ax[j]
		sumY += ay[j]
		sumZ += az[j]

		if abs(dx) < minNormal {
			exactX = j
		}
		if abs(dy) < minNormal {
			exactY = j
		}
		if abs(dz) < minNormal {
			exactZ = j
		}
	}

	if exactX > -1 {
		sumX = 1.0
		for j := range ax {
			ax[j] = 0
		}
		ax[exactX] = 1.0
	}
	if exactY > -1 {
		sumY = 1.0
		for j := range ay {
			ay[j] = 0
		}
		ay[exactY] = 1.0
	}
	if exactZ > -1 {
		sumZ = 1.0
		for j := range az {
			az[j] = 0
		}
		az[exactZ] = 1.0
	}

	return 1.0 / (sumX * sumY * sumZ)
}

// ClearPotentials zeroes every node's potential accumulators. Called at
// the start of each matrix-vector product.
func (c *Clusters) ClearPotentials() {
	zero(c.InterpPotential)
	zero(c.InterpPotentialDx)
	zero(c.InterpPotentialDy)
	zero(c.InterpPotentialDz)
}

// DownwardPass interpolates every node's accumulated potentials back to
// its elements and adds them into the 2N potential vector. Element
// ranges of nested nodes overlap, so nodes are processed sequentially
// in DFS order, which also fixes the floating-point summation order.
func (c *Clusters) DownwardPass(potential []float64) {
	n := c.elems.Num()
	numPts := c.NumInterpPtsPerNode

	ax := make([]float64, numPts)
	ay := make([]float64, numPts)
	az := make([]float64, numPts)

	for nodeIdx := range c.tree.Nodes {
		node := &c.tree.Nodes[nodeIdx]
		e := c.elems

		ptsBegin := nodeIdx * numPts
		chargesBegin := nodeIdx * c.NumChargesPerNode

		p := c.InterpPotential[chargesBegin : chargesBegin+c.NumChargesPerNode]
		pdx := c.InterpPotentialDx[chargesBegin : chargesBegin+c.NumChargesPerNode]
		pdy := c.InterpPotentialDy[chargesBegin : chargesBegin+c.NumChargesPerNode]
		pdz := c.InterpPotentialDz[chargesBegin : chargesBegin+c.NumChargesPerNode]

		for i := node.Begin; i < node.End; i++ {
			weightDenom := c.barycentric(ax, ay, az, ptsBegin, e.X[i], e.Y[i], e.Z[i])

			sum, sumDx, sumDy, sumDz := 0.0, 0.0, 0.0, 0.0

			kk := 0
			for k1 := 0; k1 < numPts; k1++ {
				for k2 := 0; k2 < numPts; k2++ {
					axy := ax[k1] * ay[k2] * weightDenom
					for k3 := 0; k3 < numPts; k3++ {
						w := axy * az[k3]

						sum += w * p[kk]
						sumDx += w * pdx[kk]
						sumDy += w * pdy[kk]
						sumDz += w * pdz[kk]
						kk++
					}
				}
			}

			potential[i] += e.TargetCharge[i] * sum
			potential[n+i] += e.TargetChargeDx[i]*sumDx +
				e.TargetChargeDy[i]*sumDy +
				e.TargetChargeDz[i]*sumDz
		}
	}
}

func zero(v []float64) {
	for i := range v {
		v[i] = 0
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
