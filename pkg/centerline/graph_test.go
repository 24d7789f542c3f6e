package centerline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanningTreeSquare(t *testing.T) {
	// unit square with both diagonals
	d := math.Sqrt2
	candidates := []WeightedPair{
		{A: 0, B: 1, Weight: 1}, {A: 1, B: 2, Weight: 1}, {A: 2, B: 3, Weight: 1}, {A: 3, B: 0, Weight: 1},
		{A: 0, B: 2, Weight: d}, {A: 1, B: 3, Weight: d},
	}
	tree := SpanningTree(4, candidates)
	assert.InDelta(t, 3, tree.TotalWeight(), 1e-12)

	path, length := tree.Diameter(0)
	assert.InDelta(t, 3, length, 1e-12)
	assert.Len(t, path, 4)
}

// TestSpanningTreeTies verifies equal weights always resolve to the lowest pair
func TestSpanningTreeTies(t *testing.T) {
	var candidates []WeightedPair
	for a := 3; a >= 0; a-- {
		for b := 0; b < a; b++ {
			candidates = append(candidates, WeightedPair{A: a, B: b, Weight: 1})
		}
	}
	tree := SpanningTree(4, candidates)
	for n := 1; n < 4; n++ {
		require.Len(t, tree.Neighbors(n), 1)
		assert.Equal(t, 0, tree.Neighbors(n)[0].To)
	}

	path, length := tree.Diameter(0)
	assert.Equal(t, []int{1, 0, 2}, path)
	assert.Equal(t, 2.0, length)
}

func TestSpanningTreeIgnoresSelfLoops(t *testing.T) {
	tree := SpanningTree(2, []WeightedPair{{A: 1, B: 1, Weight: 0}, {A: 1, B: 0, Weight: 4}})
	assert.Equal(t, 4.0, tree.TotalWeight())
}

func TestDiameterPath(t *testing.T) {
	g := NewGraph(4)
	g.AddEdge(0, 1, 1)
	g.AddEdge(1, 2, 2)
	g.AddEdge(2, 3, 3)

	path, length := g.Diameter(1)
	assert.Equal(t, []int{3, 2, 1, 0}, path)
	assert.Equal(t, 6.0, length)
}

func TestShortestPathsUnreachable(t *testing.T) {
	g := NewGraph(3)
	g.AddEdge(0, 1, 2.5)

	dist, prev := g.ShortestPaths(0)
	assert.Equal(t, []float64{0, 2.5, math.Inf(1)}, dist)
	assert.Equal(t, []int{-1, 0, -1}, prev)
}

func TestDiameterEmpty(t *testing.T) {
	path, length := NewGraph(0).Diameter(0)
	assert.Nil(t, path)
	assert.Zero(t, length)
}
