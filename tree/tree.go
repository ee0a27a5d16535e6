// Package tree builds the spatial hierarchy over the boundary
// elements. Nodes live in a flat arena indexed in depth-first order;
// child links are arena indices. Construction reorders the element
// positions in place and records the permutation in the element set's
// Order slice.
package tree

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/hochshi/TABI-PB/elements"
)

// Node is one box of the hierarchy. It indexes the contiguous element
// range [Begin, End) and carries the axis-aligned bounds, the box
// midpoint and the enclosing-sphere radius used by the MAC.
type Node struct {
	Begin, End int

	XMin, XMax float64
	YMin, YMax float64
	ZMin, ZMax float64

	XMid, YMid, ZMid float64
	Radius           float64

	Level    int
	Children []int
}

// NumParticles returns the number of elements in the node's range.
func (n *Node) NumParticles() int { return n.End - n.Begin }

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Tree is the flat node arena. Nodes[0] is the root; nodes appear in
// depth-first preorder, so the element ranges of the leaves concatenate
// to [0, N).
type Tree struct {
	Nodes      []Node
	MaxPerLeaf int

	numLeaves int
	maxDepth  int
}

// NumNodes returns the arena size.
func (t *Tree) NumNodes() int { return len(t.Nodes) }

// NumLeaves returns the number of leaf nodes.
func (t *Tree) NumLeaves() int { return t.numLeaves }

// MaxDepth returns the deepest node level.
func (t *Tree) MaxDepth() int { return t.maxDepth }

// Build constructs the tree over the element set, subdividing any node
// whose element count exceeds maxPerLeaf. Element positions and the
// Order permutation are rearranged in place; call e.Reorder afterwards
// to bring the remaining per-element arrays into tree order.
func Build(e *elements.Elements, maxPerLeaf int) *Tree {
	t := &Tree{MaxPerLeaf: maxPerLeaf}
	t.build(e, 0, e.Num(), 0)

	logrus.Infof("Created tree for %d particles with max %d per node.", e.Num(), maxPerLeaf)
	return t
}

func (t *Tree) build(e *elements.Elements, begin, end, level int) int {
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Begin: begin, End: end, Level: level})

	n := &t.Nodes[idx]
	n.XMin, n.XMax = bounds(e.X[begin:end])
	n.YMin, n.YMax = bounds(e.Y[begin:end])
	n.ZMin, n.ZMax = bounds(e.Z[begin:end])

	dx := n.XMax - n.XMin
	dy := n.YMax - n.YMin
	dz := n.ZMax - n.ZMin

	n.XMid = 0.5 * (n.XMin + n.XMax)
	n.YMid = 0.5 * (n.YMin + n.YMax)
	n.ZMid = 0.5 * (n.ZMin + n.ZMax)
	n.Radius = 0.5 * math.Sqrt(dx*dx+dy*dy+dz*dz)

	if level > t.maxDepth {
		t.maxDepth = level
	}

	if end-begin <= t.MaxPerLeaf {
		t.numLeaves++
		return idx
	}

	ranges := partitionRanges(e, begin, end, n.XMid, n.YMid, n.ZMid, dx, dy, dz)
	if len(ranges) == 1 {
		// Zero extent along every axis: coincident elements cannot be
		// subdivided further.
		t.numLeaves++
		return idx
	}

	var children []int
	for _, r := range ranges {
		if r[0] == r[1] {
			continue
		}
		children = append(children, t.build(e, r[0], r[1], level+1))
	}

	// t.Nodes may have been reallocated by the recursion.
	t.Nodes[idx].Children = children
	return idx
}

// partitionRanges splits [begin, end) at the box midpoint of every axis
// whose extent exceeds max(dx,dy,dz)/sqrt(2), in fixed x, y, z order,
// yielding 2, 4 or 8 sub-ranges (some possibly empty).
func partitionRanges(e *elements.Elements, begin, end int, xMid, yMid, zMid, dx, dy, dz float64) [][2]int {
	criticalLen := math.Max(dx, math.Max(dy, dz)) / math.Sqrt2

	ranges := [][2]int{{begin, end}}

	if dx > criticalLen {
		ranges = splitRanges(ranges, func(b, e2 int) int {
			return partition(e.X, e.Y, e.Z, e.Order, b, e2, xMid)
		})
	}
	if dy > criticalLen {
		ranges = splitRanges(ranges, func(b, e2 int) int {
			return partition(e.Y, e.X, e.Z, e.Order, b, e2, yMid)
		})
	}
	if dz > criticalLen {
		ranges = splitRanges(ranges, func(b, e2 int) int {
			return partition(e.Z, e.X, e.Y, e.Order, b, e2, zMid)
		})
	}

	return ranges
}

func splitRanges(ranges [][2]int, split func(begin, end int) int) [][2]int {
	out := make([][2]int, 0, 2*len(ranges))
	for _, r := range ranges {
		pivot := split(r[0], r[1])
		out = append(out, [2]int{r[0], pivot}, [2]int{pivot, r[1]})
	}
	return out
}

// partition rearranges [begin, end) of the parallel arrays so elements
// with a <= mid precede those with a > mid, returning the pivot index.
func partition(a, b, c []float64, order []int, begin, end int, mid float64) int {
	i, j := begin, end-1
	for i <= j {
		if a[i] <= mid {
			i++
			continue
		}
		a[i], a[j] = a[j], a[i]
		b[i], b[j] = b[j], b[i]
		c[i], c[j] = c[j], c[i]
		order[i], order[j] = order[j], order[i]
		j--
	}
	return i
}

func bounds(v []float64) (min, max float64) {
	min, max = v[0], v[0]
	for _, x := range v[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return min, max
}
