package interaction

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hochshi/TABI-PB/elements"
	"github.com/hochshi/TABI-PB/tree"
)

func pointElements(n int, rng *rand.Rand) *elements.Elements {
	e := &elements.Elements{
		X:     make([]float64, n),
		Y:     make([]float64, n),
		Z:     make([]float64, n),
		Order: make([]int, n),
	}
	for i := 0; i < n; i++ {
		e.X[i] = rng.Float64()*10 - 5
		e.Y[i] = rng.Float64()*10 - 5
		e.Z[i] = rng.Float64()*10 - 5
		e.Order[i] = i
	}
	return e
}

// With theta = 0 the MAC never accepts, so every interaction must be a
// direct leaf-leaf evaluation.
func TestBuildThetaZeroAllDirect(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	e := pointElements(400, rng)

	tr := tree.Build(e, 20)
	l := Build(tr, 0, 40)

	for idx := range tr.Nodes {
		assert.Empty(t, l.ParticleCluster[idx])
		assert.Empty(t, l.ClusterParticle[idx])
		assert.Empty(t, l.ClusterCluster[idx])

		if !tr.Nodes[idx].IsLeaf() {
			assert.Empty(t, l.ParticleParticle[idx], "internal node %d has direct work", idx)
		}
	}
}

// Every ordered pair of elements must be covered by exactly one
// interaction, whichever kind it lands in.
func TestBuildExactPairCover(t *testing.T) {
	for _, theta := range []float64{0, 0.5, 0.8, 1.0} {
		rng := rand.New(rand.NewSource(22))
		e := pointElements(300, rng)

		tr := tree.Build(e, 15)
		l := Build(tr, theta, 25)

		n := e.Num()
		cover := make([]int, n*n)

		addRange := func(tBegin, tEnd, sBegin, sEnd int) {
			for i := tBegin; i < tEnd; i++ {
				for j := sBegin; j < sEnd; j++ {
					cover[i*n+j]++
				}
			}
		}

		for targetIdx := range tr.Nodes {
			target := &tr.Nodes[targetIdx]

			for _, sourceIdx := range l.ParticleParticle[targetIdx] {
				source := &tr.Nodes[sourceIdx]
				addRange(target.Begin, target.End, source.Begin, source.End)
			}
			for _, sourceIdx := range l.ParticleCluster[targetIdx] {
				source := &tr.Nodes[sourceIdx]
				addRange(target.Begin, target.End, source.Begin, source.End)
			}
			for _, sourceIdx := range l.ClusterParticle[targetIdx] {
				source := &tr.Nodes[sourceIdx]
				addRange(target.Begin, target.End, source.Begin, source.End)
			}
			for _, sourceIdx := range l.ClusterCluster[targetIdx] {
				source := &tr.Nodes[sourceIdx]
				addRange(target.Begin, target.End, source.Begin, source.End)
			}
		}

		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				require.Equal(t, 1, cover[i*n+j],
					"theta %g: pair (%d,%d) covered %d times", theta, i, j, cover[i*n+j])
			}
		}
	}
}

// A kind is chosen by the particle counts of both sides: clusters are
// only used on sides holding more than the threshold.
func TestBuildKindThresholds(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	e := pointElements(600, rng)

	tr := tree.Build(e, 30)
	const threshold = 40
	l := Build(tr, 0.9, threshold)

	sawCC, sawPC, sawCP := false, false, false

	for targetIdx := range tr.Nodes {
		target := &tr.Nodes[targetIdx]

		for _, sourceIdx := range l.ClusterCluster[targetIdx] {
			source := &tr.Nodes[sourceIdx]
			assert.Greater(t, target.NumParticles(), threshold)
			assert.Greater(t, source.NumParticles(), threshold)
			sawCC = true
		}
		for _, sourceIdx := range l.ParticleCluster[targetIdx] {
			source := &tr.Nodes[sourceIdx]
			assert.LessOrEqual(t, target.NumParticles(), threshold)
			assert.Greater(t, source.NumParticles(), threshold)
			sawPC = true
		}
		for _, sourceIdx := range l.ClusterParticle[targetIdx] {
			source := &tr.Nodes[sourceIdx]
			assert.Greater(t, target.NumParticles(), threshold)
			assert.LessOrEqual(t, source.NumParticles(), threshold)
			sawCP = true
		}

		// MAC holds for every far-field bucket.
		for _, list := range [][]int{
			l.ParticleCluster[targetIdx],
			l.ClusterParticle[targetIdx],
			l.ClusterCluster[targetIdx],
		} {
			for _, sourceIdx := range list {
				source := &tr.Nodes[sourceIdx]
				dx := target.XMid - source.XMid
				dy := target.YMid - source.YMid
				dz := target.ZMid - source.ZMid
				dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
				assert.Less(t, source.Radius+target.Radius, 0.9*dist)
			}
		}
	}

	assert.True(t, sawCC || sawPC || sawCP, "no far-field interactions found")
}
