package centerline

import (
	"container/heap"
	"math"
	"sort"
)

// Edge is one direction of an undirected weighted edge.
type Edge struct {
	To     int
	Weight float64
}

// Graph is an undirected weighted graph stored as an arena of nodes with
// adjacency lists. Node ids are 0..Len()-1.
type Graph struct {
	adj [][]Edge
}

// NewGraph creates a graph with n isolated nodes.
func NewGraph(n int) *Graph {
	return &Graph{adj: make([][]Edge, n)}
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.adj) }

// AddEdge connects a and b.
func (g *Graph) AddEdge(a, b int, w float64) {
	g.adj[a] = append(g.adj[a], Edge{To: b, Weight: w})
	g.adj[b] = append(g.adj[b], Edge{To: a, Weight: w})
}

// Neighbors returns the edges leaving n.
func (g *Graph) Neighbors(n int) []Edge { return g.adj[n] }

// TotalWeight sums the weight of every edge once.
func (g *Graph) TotalWeight() float64 {
	var sum float64
	for a, edges := range g.adj {
		for _, e := range edges {
			if e.To > a {
				sum += e.Weight
			}
		}
	}
	return sum
}

// WeightedPair is a candidate edge for SpanningTree.
type WeightedPair struct {
	A, B   int
	Weight float64
}

// SpanningTree returns the minimum spanning forest of the n nodes connected
// by candidates (Kruskal). Equal weights are resolved by the lower (A, B)
// pair so the same input always yields the same tree.
func SpanningTree(n int, candidates []WeightedPair) *Graph {
	edges := make([]WeightedPair, 0, len(candidates))
	for _, c := range candidates {
		if c.A == c.B {
			continue
		}
		if c.A > c.B {
			c.A, c.B = c.B, c.A
		}
		edges = append(edges, c)
	}
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Weight != edges[j].Weight {
			return edges[i].Weight < edges[j].Weight
		}
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	tree := NewGraph(n)
	for _, e := range edges {
		ra, rb := find(e.A), find(e.B)
		if ra == rb {
			continue
		}
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
		tree.AddEdge(e.A, e.B, e.Weight)
	}
	return tree
}

// ShortestPaths runs Dijkstra from src. Unreachable nodes have distance +Inf
// and predecessor -1.
func (g *Graph) ShortestPaths(src int) (dist []float64, prev []int) {
	dist = make([]float64, g.Len())
	prev = make([]int, g.Len())
	for i := range dist {
		dist[i] = math.Inf(1)
		prev[i] = -1
	}
	dist[src] = 0
	q := &nodeQueue{{node: src}}
	for q.Len() > 0 {
		cur := heap.Pop(q).(queued)
		if cur.dist > dist[cur.node] {
			continue
		}
		for _, e := range g.adj[cur.node] {
			d := cur.dist + e.Weight
			if d < dist[e.To] {
				dist[e.To] = d
				prev[e.To] = cur.node
				heap.Push(q, queued{node: e.To, dist: d})
			}
		}
	}
	return dist, prev
}

// Diameter finds the longest shortest path of a tree with two sweeps: the
// node farthest from root is one end, and the node farthest from that end is
// the other. The returned path runs from the first end to the second.
// Ties go to the lowest node id.
func (g *Graph) Diameter(root int) (path []int, length float64) {
	if g.Len() == 0 {
		return nil, 0
	}
	d0, _ := g.ShortestPaths(root)
	first := farthest(d0)
	d1, prev := g.ShortestPaths(first)
	second := farthest(d1)
	for n := second; n >= 0; n = prev[n] {
		path = append(path, n)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, d1[second]
}

func farthest(dist []float64) int {
	best := -1
	for i, d := range dist {
		if math.IsInf(d, 1) {
			continue
		}
		if best < 0 || d > dist[best] {
			best = i
		}
	}
	return best
}

type queued struct {
	node int
	dist float64
}

type nodeQueue []queued

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].node < q[j].node
}
func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any) { *q = append(*q, x.(queued)) }
func (q *nodeQueue) Pop() any {
	old := *q
	x := old[len(old)-1]
	*q = old[:len(old)-1]
	return x
}
