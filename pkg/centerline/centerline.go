// Package centerline extracts a vessel's centerline from its binary mask and
// measures diameter, length, tortuosity and path quality along it.
package centerline

import (
	"errors"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"vesselgeom/internal/models"
	"vesselgeom/pkg/morphology"
)

// ErrNoCenterline reports that no centerline could be extracted: the mask,
// its opening or its skeleton is empty. It describes an absent measurement,
// not a failure.
var ErrNoCenterline = errors.New("no centerline")

// DiameterStats summarizes a diameter profile in millimeters.
type DiameterStats struct {
	Min    float64
	Mean   float64
	Median float64
	Max    float64
}

// PathMetrics describes the longest path through the skeleton graph.
// Tortuosity is nil when the path's ends coincide and Quality is nil when the
// spanning tree has no length.
type PathMetrics struct {
	Length     float64
	Tortuosity *float64
	Quality    *float64
}

// LineSet is a polyline set for display: points and index pairs.
type LineSet struct {
	Points []r3.Vec
	Lines  [][2]int
}

// Analysis is everything measured along one vessel's skeleton.
type Analysis struct {
	// Diameters holds one value per skeleton voxel in raster order;
	// Points holds the matching world positions.
	Diameters []float64
	Points    []r3.Vec
	Stats     DiameterStats

	MaxDiameterLocation r3.Vec
	TangentAtMax        r3.Vec

	// Fragments is the number of connected skeleton pieces.
	Fragments int
	// Path is nil when fewer than two graph nodes survive filtering.
	Path *PathMetrics
	// Graph is the centerline path for display; empty when Path is nil.
	Graph LineSet

	PlotPath  string
	PlotBytes []byte
}

// Params controls centerline extraction.
type Params struct {
	// MinFragmentVoxels discards skeleton fragments with this many voxels or
	// fewer when the skeleton is split.
	MinFragmentVoxels int
	// PlotDir is the root for diagnostic plots; empty disables plotting.
	PlotDir string
	// PatientID namespaces plot files under PlotDir.
	PatientID string
}

// Builder runs skeleton-based centerline analysis.
type Builder struct {
	params Params
}

// NewBuilder creates a Builder.
func NewBuilder(params Params) *Builder {
	return &Builder{params: params}
}

// Analyze measures the centerline of mask. name labels the diagnostic plot.
// It returns ErrNoCenterline when any stage leaves nothing to measure.
func (b *Builder) Analyze(mask *models.Mask, affine models.Affine, name string) (*Analysis, error) {
	if !mask.Any() {
		return nil, ErrNoCenterline
	}
	spacing := affine.Spacing()

	conn := morphology.Face
	if isIsotropic(spacing) {
		conn = morphology.Full
	}
	cleaned := morphology.Open(mask, conn)
	if !cleaned.Any() {
		return nil, ErrNoCenterline
	}
	skeleton := morphology.Skeletonize(cleaned)
	voxels := skeleton.Voxels()
	if len(voxels) == 0 {
		return nil, ErrNoCenterline
	}
	comps := morphology.Label(skeleton, morphology.Full)
	if comps.Count == 0 {
		return nil, ErrNoCenterline
	}

	edt := morphology.DistanceTransform(mask, spacing)
	a := &Analysis{
		Diameters: make([]float64, len(voxels)),
		Points:    make([]r3.Vec, len(voxels)),
		Fragments: comps.Count,
	}
	for n, v := range voxels {
		a.Diameters[n] = 2 * edt[mask.Index(v[0], v[1], v[2])]
		a.Points[n] = voxelToWorld(affine, v)
	}
	a.Stats = diameterStats(a.Diameters)
	maxIdx := floats.MaxIdx(a.Diameters)
	a.MaxDiameterLocation = a.Points[maxIdx]
	a.TangentAtMax = Tangent(a.Points, maxIdx)

	a.Path, a.Graph = b.longestPath(skeleton, comps, affine)

	if b.params.PlotDir != "" {
		dir := filepath.Join(b.params.PlotDir, "diameter_profiles", b.params.PatientID)
		path, err := PlotDiameters(a.Diameters, dir, name)
		if err != nil {
			log.Printf("[centerline] diameter plot for %s: %v", name, err)
		} else {
			a.PlotPath = path
			if data, err := os.ReadFile(path); err == nil {
				a.PlotBytes = data
			}
		}
	}
	return a, nil
}

// longestPath builds the skeleton graph and measures its longest path. A
// split skeleton is reduced to one node per surviving fragment (its
// centroid); a single fragment keeps one node per voxel.
func (b *Builder) longestPath(skeleton *models.Mask, comps morphology.Components, affine models.Affine) (*PathMetrics, LineSet) {
	var survivors []int32
	if comps.Count == 1 {
		survivors = []int32{1}
	} else {
		for l := 1; l <= comps.Count; l++ {
			if comps.Sizes[l] > b.params.MinFragmentVoxels {
				survivors = append(survivors, int32(l))
			}
		}
	}

	var (
		nodes      []r3.Vec
		candidates []WeightedPair
	)
	switch len(survivors) {
	case 0:
		return nil, LineSet{}
	case 1:
		nodes, candidates = voxelGraph(skeleton, comps, survivors[0], affine)
	default:
		nodes = fragmentCentroids(skeleton, comps, survivors, affine)
		for i := range nodes {
			for j := i + 1; j < len(nodes); j++ {
				candidates = append(candidates, WeightedPair{A: i, B: j, Weight: r3.Norm(r3.Sub(nodes[i], nodes[j]))})
			}
		}
	}
	if len(nodes) < 2 {
		return nil, LineSet{}
	}

	tree := SpanningTree(len(nodes), candidates)
	path, length := tree.Diameter(0)
	pm := &PathMetrics{Length: length}
	if straight := r3.Norm(r3.Sub(nodes[path[0]], nodes[path[len(path)-1]])); straight > 0 {
		t := length / straight
		pm.Tortuosity = &t
	}
	if total := tree.TotalWeight(); total > 0 {
		q := length / total
		pm.Quality = &q
	}

	vis := LineSet{Points: nodes}
	for i := 0; i+1 < len(path); i++ {
		vis.Lines = append(vis.Lines, [2]int{path[i], path[i+1]})
	}
	return pm, vis
}

// voxelGraph returns the voxels of one fragment as nodes joined to their
// 26-neighbors by world-space distance.
func voxelGraph(skeleton *models.Mask, comps morphology.Components, label int32, affine models.Affine) ([]r3.Vec, []WeightedPair) {
	ids := make(map[int]int)
	var nodes []r3.Vec
	var order []int
	for idx, l := range comps.Labels {
		if l != label {
			continue
		}
		ids[idx] = len(nodes)
		order = append(order, idx)
		i, j, k := skeleton.Coords(idx)
		nodes = append(nodes, voxelToWorld(affine, [3]int{i, j, k}))
	}
	var pairs []WeightedPair
	offsets := morphology.Full.Offsets()
	for a, idx := range order {
		i, j, k := skeleton.Coords(idx)
		for _, o := range offsets {
			ni, nj, nk := i+o[0], j+o[1], k+o[2]
			if !skeleton.In(ni, nj, nk) {
				continue
			}
			bn, ok := ids[skeleton.Index(ni, nj, nk)]
			if !ok || bn <= a {
				continue
			}
			pairs = append(pairs, WeightedPair{A: a, B: bn, Weight: r3.Norm(r3.Sub(nodes[a], nodes[bn]))})
		}
	}
	return nodes, pairs
}

// fragmentCentroids returns each listed fragment's center of mass in world space.
func fragmentCentroids(skeleton *models.Mask, comps morphology.Components, labels []int32, affine models.Affine) []r3.Vec {
	pos := make(map[int32]int, len(labels))
	for n, l := range labels {
		pos[l] = n
	}
	sums := make([]r3.Vec, len(labels))
	counts := make([]float64, len(labels))
	for idx, l := range comps.Labels {
		n, ok := pos[l]
		if !ok {
			continue
		}
		i, j, k := skeleton.Coords(idx)
		sums[n] = r3.Add(sums[n], r3.Vec{X: float64(i), Y: float64(j), Z: float64(k)})
		counts[n]++
	}
	out := make([]r3.Vec, len(labels))
	for n := range out {
		out[n] = affine.Apply(r3.Scale(1/counts[n], sums[n]))
	}
	return out
}

// Tangent estimates the direction of pts at index i by central difference,
// falling back to one-sided differences at the ends. A single point has no
// direction and yields the zero vector.
//
// Analyze passes skeleton points in raster order, where index neighbours need
// not be neighbours along the vessel. On bent or branched skeletons the result
// can point across the vessel rather than along it.
func Tangent(pts []r3.Vec, i int) r3.Vec {
	switch {
	case len(pts) < 2:
		return r3.Vec{}
	case i == 0:
		return r3.Sub(pts[1], pts[0])
	case i == len(pts)-1:
		return r3.Sub(pts[i], pts[i-1])
	default:
		return r3.Sub(pts[i+1], pts[i-1])
	}
}

func diameterStats(d []float64) DiameterStats {
	sorted := append([]float64(nil), d...)
	sort.Float64s(sorted)
	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return DiameterStats{
		Min:    sorted[0],
		Mean:   stat.Mean(d, nil),
		Median: median,
		Max:    sorted[n-1],
	}
}

func voxelToWorld(affine models.Affine, v [3]int) r3.Vec {
	return affine.Apply(r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])})
}

// isIsotropic compares spacings with a relative tolerance of 1e-5.
func isIsotropic(s r3.Vec) bool {
	near := func(a, b float64) bool { return math.Abs(a-b) <= 1e-8+1e-5*math.Abs(b) }
	return near(s.X, s.Y) && near(s.Y, s.Z)
}
