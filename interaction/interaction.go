// Package interaction classifies every target/source tree-node pair
// into one of the four interaction kinds via the multipole acceptance
// criterion. Lists are built once per solve and are immutable
// afterwards.
package interaction

import (
	"math"

	"github.com/hochshi/TABI-PB/tree"
)

// List holds, for each target node, the source-node indices of the four
// interaction kinds.
type List struct {
	ParticleParticle [][]int
	ParticleCluster  [][]int
	ClusterParticle  [][]int
	ClusterCluster   [][]int

	theta            float64
	clusterParticles int
	tree             *tree.Tree
}

// Build constructs the interaction lists by a dual recursion from the
// root against itself, so every target/source element pair is covered
// exactly once. theta is the MAC opening parameter; clusterParticles is
// the particle count a node must exceed for its cluster expansion to be
// used on that side of the interaction.
func Build(t *tree.Tree, theta float64, clusterParticles int) *List {
	numNodes := t.NumNodes()
	l := &List{
		ParticleParticle: make([][]int, numNodes),
		ParticleCluster:  make([][]int, numNodes),
		ClusterParticle:  make([][]int, numNodes),
		ClusterCluster:   make([][]int, numNodes),

		theta:            theta,
		clusterParticles: clusterParticles,
		tree:             t,
	}

	l.buildLists(0, 0)
	return l
}

func (l *List) buildLists(targetIdx, sourceIdx int) {
	t := &l.tree.Nodes[targetIdx]
	s := &l.tree.Nodes[sourceIdx]

	if l.accepted(t, s) {
		useTargetCluster := t.NumParticles() > l.clusterParticles
		useSourceCluster := s.NumParticles() > l.clusterParticles

		switch {
		case useTargetCluster && useSourceCluster:
			l.ClusterCluster[targetIdx] = append(l.ClusterCluster[targetIdx], sourceIdx)
		case useTargetCluster:
			l.ClusterParticle[targetIdx] = append(l.ClusterParticle[targetIdx], sourceIdx)
		case useSourceCluster:
			l.ParticleCluster[targetIdx] = append(l.ParticleCluster[targetIdx], sourceIdx)
		default:
			l.ParticleParticle[targetIdx] = append(l.ParticleParticle[targetIdx], sourceIdx)
		}
		return
	}

	switch {
	case t.IsLeaf() && s.IsLeaf():
		l.ParticleParticle[targetIdx] = append(l.ParticleParticle[targetIdx], sourceIdx)

	case t.IsLeaf():
		for _, child := range s.Children {
			l.buildLists(targetIdx, child)
		}

	case s.IsLeaf():
		for _, child := range t.Children {
			l.buildLists(child, sourceIdx)
		}

	default:
		for _, targetChild := range t.Children {
			for _, sourceChild := range s.Children {
				l.buildLists(targetChild, sourceChild)
			}
		}
	}
}

// accepted is the multipole acceptance criterion: the pair is far when
// the sum of the enclosing-sphere radii is below theta times the
// distance between the box midpoints.
func (l *List) accepted(t, s *tree.Node) bool {
	dx := t.XMid - s.XMid
	dy := t.YMid - s.YMid
	dz := t.ZMid - s.ZMid
	dist := math.Sqrt(dx*dx + dy*dy + dz*dz)

	return s.Radius+t.Radius < l.theta*dist
}
