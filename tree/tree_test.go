package tree

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hochshi/TABI-PB/elements"
)

// randomElements builds an element set of n points uniform in a box,
// with unit normals and distinct per-element data so permutation bugs
// are visible.
func randomElements(n int, rng *rand.Rand) *elements.Elements {
	e := &elements.Elements{
		X:          make([]float64, n),
		Y:          make([]float64, n),
		Z:          make([]float64, n),
		Nx:         make([]float64, n),
		Ny:         make([]float64, n),
		Nz:         make([]float64, n),
		Area:       make([]float64, n),
		SourceTerm: make([]float64, 2*n),
		Order:      make([]int, n),

		TargetCharge:   make([]float64, n),
		TargetChargeDx: make([]float64, n),
		TargetChargeDy: make([]float64, n),
		TargetChargeDz: make([]float64, n),
		SourceCharge:   make([]float64, n),
		SourceChargeDx: make([]float64, n),
		SourceChargeDy: make([]float64, n),
		SourceChargeDz: make([]float64, n),
	}

	for i := 0; i < n; i++ {
		e.X[i] = rng.Float64()*4 - 2
		e.Y[i] = rng.Float64()*4 - 2
		e.Z[i] = rng.Float64()*4 - 2

		nx, ny, nz := rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()
		norm := math.Sqrt(nx*nx + ny*ny + nz*nz)
		e.Nx[i] = nx / norm
		e.Ny[i] = ny / norm
		e.Nz[i] = nz / norm

		e.Area[i] = 0.5 + rng.Float64()
		e.SourceTerm[i] = float64(i)
		e.SourceTerm[n+i] = float64(n + i)
		e.Order[i] = i
	}
	return e
}

func TestBuildInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	e := randomElements(500, rng)

	const maxPerLeaf = 20
	tr := Build(e, maxPerLeaf)

	require.Greater(t, tr.NumNodes(), 1)
	root := &tr.Nodes[0]
	assert.Equal(t, 0, root.Begin)
	assert.Equal(t, 500, root.End)

	// Leaf ranges concatenate to [0, N) in DFS order.
	next := 0
	for i := range tr.Nodes {
		node := &tr.Nodes[i]
		if !node.IsLeaf() {
			continue
		}
		assert.Equal(t, next, node.Begin, "leaf range gap at node %d", i)
		assert.LessOrEqual(t, node.NumParticles(), maxPerLeaf)
		next = node.End
	}
	assert.Equal(t, 500, next)

	for i := range tr.Nodes {
		node := &tr.Nodes[i]

		// Children partition the parent's range.
		if !node.IsLeaf() {
			assert.Greater(t, node.NumParticles(), maxPerLeaf)
			begin := node.Begin
			for _, child := range node.Children {
				assert.Equal(t, begin, tr.Nodes[child].Begin)
				assert.Equal(t, node.Level+1, tr.Nodes[child].Level)
				begin = tr.Nodes[child].End
			}
			assert.Equal(t, node.End, begin)
			assert.LessOrEqual(t, len(node.Children), 8)
		}

		// All elements lie inside the node bounds; radius encloses the box.
		dx := node.XMax - node.XMin
		dy := node.YMax - node.YMin
		dz := node.ZMax - node.ZMin
		assert.InDelta(t, 0.5*math.Sqrt(dx*dx+dy*dy+dz*dz), node.Radius, 1e-15)

		for j := node.Begin; j < node.End; j++ {
			assert.True(t, e.X[j] >= node.XMin && e.X[j] <= node.XMax)
			assert.True(t, e.Y[j] >= node.YMin && e.Y[j] <= node.YMax)
			assert.True(t, e.Z[j] >= node.ZMin && e.Z[j] <= node.ZMax)
		}
	}
}

func TestBuildPermutationTracksPositions(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	e := randomElements(200, rng)

	origX := append([]float64(nil), e.X...)
	origY := append([]float64(nil), e.Y...)
	origZ := append([]float64(nil), e.Z...)

	Build(e, 10)

	// Order maps current index to original index.
	for i := range e.X {
		assert.Equal(t, origX[e.Order[i]], e.X[i])
		assert.Equal(t, origY[e.Order[i]], e.Y[i])
		assert.Equal(t, origZ[e.Order[i]], e.Z[i])
	}

	// Order is a permutation.
	seen := make([]bool, len(e.Order))
	for _, idx := range e.Order {
		assert.False(t, seen[idx])
		seen[idx] = true
	}
}

func TestReorderUnorderRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := 300
	e := randomElements(n, rng)

	origX := append([]float64(nil), e.X...)
	origNx := append([]float64(nil), e.Nx...)
	origArea := append([]float64(nil), e.Area...)
	origSource := append([]float64(nil), e.SourceTerm...)

	Build(e, 15)
	e.Reorder()

	// The reordered arrays stay consistent per element.
	for i := range e.X {
		assert.Equal(t, origNx[e.Order[i]], e.Nx[i])
		assert.Equal(t, origArea[e.Order[i]], e.Area[i])
		assert.Equal(t, origSource[e.Order[i]], e.SourceTerm[i])
		assert.Equal(t, origSource[n+e.Order[i]], e.SourceTerm[n+i])
	}

	potential := make([]float64, 2*n)
	for i := range potential {
		potential[i] = float64(i) * 0.25
	}
	origPotential := append([]float64(nil), potential...)

	// Scramble the potential like a solve in tree order would, then
	// undo everything.
	applyOrder(eOrder(e), potential[:n])
	applyOrder(eOrder(e), potential[n:])

	e.Unorder(potential)

	assert.Equal(t, origX, e.X)
	assert.Equal(t, origNx, e.Nx)
	assert.Equal(t, origArea, e.Area)
	assert.Equal(t, origSource, e.SourceTerm)
	assert.Equal(t, origPotential, potential)
}

// applyOrder and eOrder mirror the gather the element set applies
// internally, for driving the round-trip test from outside the package.
func applyOrder(order []int, v []float64) {
	tmp := append([]float64(nil), v...)
	for i, idx := range order {
		v[i] = tmp[idx]
	}
}

func eOrder(e *elements.Elements) []int { return e.Order }
