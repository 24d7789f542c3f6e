package analysis

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"vesselgeom/internal/models"
	"vesselgeom/internal/phantom"
	"vesselgeom/pkg/centerline"
	"vesselgeom/pkg/disc"
	"vesselgeom/pkg/mesh"
)

type transcript struct {
	mu   sync.Mutex
	msgs []string
}

func (tr *transcript) record(msg string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.msgs = append(tr.msgs, msg)
}

func quietParams() Params {
	p := DefaultParams()
	p.Verbose = false
	return p
}

// bentTube is a label volume holding only an L-shaped Left Iliac Artery.
func bentTube() *models.Volume {
	shape := [3]int{30, 14, 26}
	tube := phantom.Tube(shape, []r3.Vec{{X: 6, Y: 7, Z: 4}, {X: 6, Y: 7, Z: 20}, {X: 24, Y: 7, Z: 20}}, 3)
	return phantom.Volume(shape, models.Identity(), map[int32]*models.Mask{2: tube})
}

// aortaVolume is a short straight Aorta segment.
func aortaVolume() *models.Volume {
	shape := [3]int{16, 16, 20}
	return phantom.Volume(shape, models.Identity(), map[int32]*models.Mask{
		1: phantom.Cylinder(shape, 8, 8, 3, 3, 16),
	})
}

// TestRunBentTube covers a scan with one vessel and no point cloud
func TestRunBentTube(t *testing.T) {
	if testing.Short() {
		t.Skip("full pipeline")
	}
	var tr transcript
	res, err := NewAnalyzer(quietParams()).Run(context.Background(), Input{
		Volume: bentTube(),
		Status: tr.record,
	})
	require.NoError(t, err)

	require.Len(t, res.Vessels, 1)
	rec, ok := res.Vessels["Left Iliac Artery"]
	require.True(t, ok)
	assert.NotContains(t, res.Vessels, "Right Iliac Artery")
	assert.Empty(t, res.Failures)
	assert.Nil(t, res.PointCloud)

	assert.Equal(t, int32(2), rec.Label)
	assert.Equal(t, [3]float64{0, 1, 0}, rec.Color)
	require.NotNil(t, rec.Mesh)
	assert.False(t, rec.Mesh.Empty())
	require.NotNil(t, rec.Metrics.Surface)
	assert.True(t, rec.Metrics.Surface.Watertight)

	require.NotNil(t, rec.Centerline)
	require.NotNil(t, rec.Metrics.Centerline)
	require.NotNil(t, rec.Metrics.Centerline.Tortuosity)
	assert.Greater(t, *rec.Metrics.Centerline.Tortuosity, 1.0)
	assert.Nil(t, rec.Metrics.ChamferDistance)
	require.NotNil(t, rec.Disc)
	assert.Len(t, rec.Disc.Triangles, disc.DefaultResolution)

	want := []string{
		"Loading data...",
		"Processing: Aorta (Label 1)...",
		"Processing: Left Iliac Artery (Label 2)...",
		"Reconstructing mesh for Left Iliac Artery...",
		"Analyzing centerline for Left Iliac Artery...",
		"Processing: Right Iliac Artery (Label 3)...",
		"Analysis complete!",
	}
	if diff := cmp.Diff(want, tr.msgs); diff != "" {
		t.Errorf("status transcript mismatch (-want +got):\n%s", diff)
	}
}

// TestRunWithPoints checks point labeling, quality and the colored cloud
func TestRunWithPoints(t *testing.T) {
	vol := aortaVolume()
	mask := vol.Mask(1)
	var points []r3.Vec
	for _, v := range mask.Voxels() {
		points = append(points, vol.Affine.Apply(r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}))
	}
	points = append(points, r3.Vec{X: 0, Y: 0, Z: 0})

	var tr transcript
	res, err := NewAnalyzer(quietParams()).Run(context.Background(), Input{
		Volume: vol,
		Points: points,
		Status: tr.record,
	})
	require.NoError(t, err)

	rec := res.Vessels["Aorta"]
	require.NotNil(t, rec)
	require.NotNil(t, rec.Metrics.ChamferDistance)
	assert.Greater(t, *rec.Metrics.ChamferDistance, 0.0)
	assert.Contains(t, tr.msgs, "Mapping point cloud to segmentation labels...")
	assert.Contains(t, tr.msgs, "...mapping complete.")
	assert.Contains(t, tr.msgs, "Calculating reconstruction quality for Aorta...")

	require.NotNil(t, res.PointCloud)
	pc := res.PointCloud
	require.Len(t, pc.Colors, len(points))
	assert.Equal(t, int32(1), pc.Labels[0])
	assert.Equal(t, [3]float64{1, 0, 0}, pc.Colors[0])
	assert.Equal(t, int32(0), pc.Labels[len(points)-1])
	assert.Equal(t, [3]float64{}, pc.Colors[len(points)-1])
}

// TestRunIsolatesFailures verifies one vessel's failure leaves the others intact
func TestRunIsolatesFailures(t *testing.T) {
	shape := [3]int{16, 30, 20}
	vol := phantom.Volume(shape, models.Identity(), map[int32]*models.Mask{
		1: phantom.Cylinder(shape, 8, 7, 3, 3, 16),
		3: phantom.Cylinder(shape, 8, 22, 3, 3, 16),
	})

	var tr transcript
	status := func(msg string) {
		tr.record(msg)
		if msg == "Analyzing centerline for Aorta..." {
			panic("boom")
		}
	}
	res, err := NewAnalyzer(quietParams()).Run(context.Background(), Input{Volume: vol, Status: status})
	require.NoError(t, err)

	require.Contains(t, res.Failures, "Aorta")
	assert.Contains(t, res.Failures["Aorta"].Error(), "boom")
	partial := res.Vessels["Aorta"]
	require.NotNil(t, partial)
	assert.NotNil(t, partial.Mesh, "mesh computed before the failure is kept")
	assert.Nil(t, partial.Metrics.Centerline)

	right := res.Vessels["Right Iliac Artery"]
	require.NotNil(t, right)
	assert.NotNil(t, right.Metrics.Centerline)
	assert.NotContains(t, res.Failures, "Right Iliac Artery")

	assert.Contains(t, tr.msgs, "ERROR processing Aorta: panic: boom")
	assert.Equal(t, "Analysis complete!", tr.msgs[len(tr.msgs)-1])
}

func TestRunSingularAffine(t *testing.T) {
	vol := aortaVolume()
	vol.Affine[1] = [4]float64{}
	res, err := NewAnalyzer(quietParams()).Run(context.Background(), Input{Volume: vol})
	assert.ErrorIs(t, err, models.ErrSingularAffine)
	assert.Nil(t, res)
}

func TestRunNoVolume(t *testing.T) {
	_, err := NewAnalyzer(quietParams()).Run(context.Background(), Input{})
	assert.ErrorIs(t, err, ErrNoVolume)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var tr transcript
	res, err := NewAnalyzer(quietParams()).Run(ctx, Input{Volume: aortaVolume(), Status: tr.record})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.Vessels)
	assert.Empty(t, res.Failures)
	assert.Equal(t, []string{"Loading data..."}, tr.msgs)
}

// TestRunConcurrent verifies parallel workers produce the sequential result
func TestRunConcurrent(t *testing.T) {
	shape := [3]int{16, 30, 20}
	vol := phantom.Volume(shape, models.Identity(), map[int32]*models.Mask{
		1: phantom.Cylinder(shape, 8, 7, 3, 3, 16),
		2: phantom.Cylinder(shape, 8, 22, 3, 3, 16),
	})

	var seqLog, parLog transcript
	seq, err := NewAnalyzer(quietParams()).Run(context.Background(), Input{Volume: vol, Status: seqLog.record})
	require.NoError(t, err)

	p := quietParams()
	p.Workers = 3
	par, err := NewAnalyzer(p).Run(context.Background(), Input{Volume: vol, Status: parLog.record})
	require.NoError(t, err)

	require.Len(t, par.Vessels, 2)
	for name, rec := range seq.Vessels {
		assert.Equal(t, rec.Metrics.Map(), par.Vessels[name].Metrics.Map(), name)
	}
	sorted := cmpopts.SortSlices(func(a, b string) bool { return a < b })
	if diff := cmp.Diff(seqLog.msgs, parLog.msgs, sorted); diff != "" {
		t.Errorf("status messages differ (-seq +par):\n%s", diff)
	}
	assert.Equal(t, "Loading data...", parLog.msgs[0])
	assert.Equal(t, "Analysis complete!", parLog.msgs[len(parLog.msgs)-1])
}

func TestRecordsInLabelOrder(t *testing.T) {
	res := &Result{Vessels: map[string]*VesselRecord{
		"Right Iliac Artery": {Name: "Right Iliac Artery", Label: 3},
		"Aorta":              {Name: "Aorta", Label: 1},
	}}
	recs := res.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "Aorta", recs[0].Name)
	assert.Equal(t, "Right Iliac Artery", recs[1].Name)
}

func TestMetricsMap(t *testing.T) {
	assert.Empty(t, VesselMetrics{}.Map())

	length, tort := 12.5, 1.25
	chamfer := 0.3
	m := VesselMetrics{
		Surface: &mesh.Metrics{SurfaceArea: 10, Volume: 4, Watertight: true},
		Centerline: &CenterlineMetrics{
			Diameters:           centerline.DiameterStats{Min: 1, Mean: 2, Median: 2, Max: 3},
			Length:              &length,
			Tortuosity:          &tort,
			MaxDiameterLocation: r3.Vec{X: 1, Y: 2, Z: 3},
		},
		ChamferDistance: &chamfer,
	}.Map()

	assert.Equal(t, 10.0, m["surface_area"])
	assert.Equal(t, true, m["is_watertight"])
	assert.Equal(t, 3.0, m["centerline.diameters.max"])
	assert.Equal(t, 12.5, m["centerline.length"])
	assert.Equal(t, 1.25, m["centerline.tortuosity"])
	assert.Equal(t, []float64{1, 2, 3}, m["centerline.max_diameter_location"])
	assert.Equal(t, 0.3, m["quality.chamfer_distance"])
	assert.NotContains(t, m, "centerline.quality")
}
