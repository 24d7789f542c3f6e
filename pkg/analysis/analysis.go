// Package analysis runs the per-vessel geometry pipeline over a labeled scan:
// surface reconstruction, centerline measurement, reconstruction quality and
// the widest cross-section marker.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"vesselgeom/internal/models"
	"vesselgeom/pkg/centerline"
	"vesselgeom/pkg/config"
	"vesselgeom/pkg/disc"
	"vesselgeom/pkg/labeling"
	"vesselgeom/pkg/mesh"
	"vesselgeom/pkg/quality"
)

// ErrNoVolume is returned when Run is given no label volume.
var ErrNoVolume = errors.New("analysis: no label volume")

// Params holds the analysis settings.
type Params struct {
	Mesh              mesh.Params
	MinFragmentVoxels int
	DiscResolution    int
	// Workers is how many vessels are processed at once; values below 2 run
	// them one after another.
	Workers int
	// Verbose mirrors status messages to the log.
	Verbose bool
}

// DefaultParams returns the settings of config.DefaultConfig.
func DefaultParams() Params {
	return ParamsFromConfig(config.DefaultConfig())
}

// ParamsFromConfig maps the YAML configuration onto analysis settings.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		Mesh: mesh.Params{
			Padding:          cfg.Mesh.Padding,
			Sigma:            cfg.Mesh.SmoothingSigma,
			IsoLevel:         cfg.Mesh.IsoLevel,
			SearchIterations: cfg.Mesh.SearchIterations,
		},
		MinFragmentVoxels: cfg.Centerline.MinFragmentVoxels,
		DiscResolution:    cfg.Disc.Resolution,
		Workers:           cfg.Processing.Workers,
		Verbose:           cfg.Output.Verbose,
	}
}

// Input is one scan to analyze. Volume is required; the rest is optional.
type Input struct {
	Volume *models.Volume
	// Points is a surface point cloud in world millimeters. Without it no
	// point labeling or quality metric is produced.
	Points []r3.Vec
	// PlotDir and PatientID place diagnostic plots at
	// <PlotDir>/diameter_profiles/<PatientID>/. An empty PlotDir disables them.
	PlotDir   string
	PatientID string
	// Status receives progress messages in pipeline order.
	Status func(string)
}

// VesselRecord is everything produced for one vessel. Fields of a stage
// that did not run or found nothing are nil.
type VesselRecord struct {
	Name  string
	Label int32
	Color [3]float64

	Mesh       *mesh.Mesh
	Centerline *centerline.LineSet
	Disc       *mesh.Mesh
	Metrics    VesselMetrics

	// Profile is the diameter at each skeleton point in raster order.
	Profile   []float64
	PlotPath  string
	PlotBytes []byte
}

// LabeledPointCloud is the input point cloud colored by vessel label.
// Points outside every vessel are black.
type LabeledPointCloud struct {
	Points []r3.Vec
	Labels []int32
	Colors [][3]float64
}

// Result collects the vessels found in a scan. A vessel whose processing
// failed keeps the stages it completed in Vessels and its error in Failures.
type Result struct {
	Vessels    map[string]*VesselRecord
	Failures   map[string]error
	PointCloud *LabeledPointCloud
}

// Records returns the vessel records in label order.
func (r *Result) Records() []*VesselRecord {
	out := make([]*VesselRecord, 0, len(r.Vessels))
	for _, rec := range r.Vessels {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Analyzer runs the vessel pipeline.
type Analyzer struct {
	params Params
	recon  *mesh.Reconstructor
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(params Params) *Analyzer {
	return &Analyzer{
		params: params,
		recon:  mesh.NewReconstructor(params.Mesh),
	}
}

type vesselOutcome struct {
	vessel models.VesselLabel
	record *VesselRecord
	err    error
}

// Run analyzes every known vessel label in the volume. A vessel with no
// voxels is skipped without a record. A failure inside one vessel is reported
// through Status and Result.Failures and does not stop the others. A
// non-invertible affine aborts the run. When ctx is cancelled Run stops
// starting vessels and returns what it has with ctx.Err().
func (a *Analyzer) Run(ctx context.Context, in Input) (*Result, error) {
	if in.Volume == nil {
		return nil, ErrNoVolume
	}
	status := a.statusFunc(in.Status)

	status("Loading data...")
	labeler, err := labeling.NewLabeler(in.Volume)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	var pointLabels []int32
	if len(in.Points) > 0 {
		status("Mapping point cloud to segmentation labels...")
		pointLabels = labeler.LabelAll(in.Points)
		status("...mapping complete.")
	}

	res := &Result{
		Vessels:  make(map[string]*VesselRecord),
		Failures: make(map[string]error),
	}
	for _, o := range a.runVessels(ctx, in, pointLabels, status) {
		if o.record != nil {
			res.Vessels[o.vessel.Name] = o.record
		}
		if o.err != nil && !errors.Is(o.err, context.Canceled) && !errors.Is(o.err, context.DeadlineExceeded) {
			res.Failures[o.vessel.Name] = o.err
		}
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	if pointLabels != nil {
		res.PointCloud = colorPoints(in.Points, pointLabels)
	}
	status("Analysis complete!")
	return res, nil
}

// runVessels processes the vessels in label order, or fans them out to a
// bounded set of goroutines when more than one worker is configured.
func (a *Analyzer) runVessels(ctx context.Context, in Input, pointLabels []int32, status func(string)) []vesselOutcome {
	vessels := models.DefaultVessels
	outcomes := make([]vesselOutcome, len(vessels))

	if a.params.Workers < 2 {
		for i, v := range vessels {
			if err := ctx.Err(); err != nil {
				outcomes[i] = vesselOutcome{vessel: v, err: err}
				continue
			}
			rec, err := a.processVessel(v, in, pointLabels, status)
			outcomes[i] = vesselOutcome{vessel: v, record: rec, err: err}
		}
		return outcomes
	}

	type indexed struct {
		idx int
		vesselOutcome
	}
	resultChan := make(chan indexed)
	sem := make(chan struct{}, a.params.Workers)
	for i, v := range vessels {
		go func(idx int, v models.VesselLabel) {
			sem <- struct{}{}
			defer func() { <-sem }()
			if err := ctx.Err(); err != nil {
				resultChan <- indexed{idx, vesselOutcome{vessel: v, err: err}}
				return
			}
			rec, err := a.processVessel(v, in, pointLabels, status)
			resultChan <- indexed{idx, vesselOutcome{vessel: v, record: rec, err: err}}
		}(i, v)
	}
	for range vessels {
		r := <-resultChan
		outcomes[r.idx] = r.vesselOutcome
	}
	return outcomes
}

// processVessel runs every stage for one vessel. It returns a nil record for
// an absent vessel, and the partial record alongside any failure.
func (a *Analyzer) processVessel(v models.VesselLabel, in Input, pointLabels []int32, status func(string)) (rec *VesselRecord, err error) {
	status(fmt.Sprintf("Processing: %s (Label %d)...", v.Name, v.Value))
	mask := in.Volume.Mask(v.Value)
	if !mask.Any() {
		return nil, nil
	}

	rec = &VesselRecord{Name: v.Name, Label: v.Value, Color: v.Color}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			status(fmt.Sprintf("ERROR processing %s: %v", v.Name, err))
		}
	}()

	status(fmt.Sprintf("Reconstructing mesh for %s...", v.Name))
	m, surface := a.recon.Reconstruct(mask, in.Volume.Affine)
	rec.Mesh = m
	rec.Metrics.Surface = &surface

	status(fmt.Sprintf("Analyzing centerline for %s...", v.Name))
	builder := centerline.NewBuilder(centerline.Params{
		MinFragmentVoxels: a.params.MinFragmentVoxels,
		PlotDir:           in.PlotDir,
		PatientID:         in.PatientID,
	})
	cl, err := builder.Analyze(mask, in.Volume.Affine, v.Name)
	switch {
	case errors.Is(err, centerline.ErrNoCenterline):
		log.Printf("[analysis] %s: no centerline", v.Name)
	case err != nil:
		return rec, fmt.Errorf("centerline: %w", err)
	default:
		rec.Metrics.Centerline = centerlineMetrics(cl)
		rec.Profile = cl.Diameters
		rec.PlotPath = cl.PlotPath
		rec.PlotBytes = cl.PlotBytes
		if len(cl.Graph.Points) > 0 {
			graph := cl.Graph
			rec.Centerline = &graph
		}
		rec.Disc = disc.Build(cl.MaxDiameterLocation, cl.Stats.Max/2, cl.TangentAtMax, a.params.DiscResolution)
	}

	if pointLabels != nil {
		var pts []r3.Vec
		for i, l := range pointLabels {
			if l == v.Value {
				pts = append(pts, in.Points[i])
			}
		}
		if len(pts) > 0 {
			status(fmt.Sprintf("Calculating reconstruction quality for %s...", v.Name))
			if score, ok := quality.Score(m, pts); ok {
				rec.Metrics.ChamferDistance = &score
			}
		}
	}
	return rec, nil
}

// statusFunc serializes calls to fn and logs each message when verbose.
func (a *Analyzer) statusFunc(fn func(string)) func(string) {
	var mu sync.Mutex
	return func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		if a.params.Verbose {
			log.Printf("[analysis] %s", msg)
		}
		if fn != nil {
			fn(msg)
		}
	}
}

func colorPoints(points []r3.Vec, labels []int32) *LabeledPointCloud {
	colors := make(map[int32][3]float64, len(models.DefaultVessels))
	for _, v := range models.DefaultVessels {
		colors[v.Value] = v.Color
	}
	pc := &LabeledPointCloud{
		Points: points,
		Labels: labels,
		Colors: make([][3]float64, len(points)),
	}
	for i, l := range labels {
		pc.Colors[i] = colors[l]
	}
	return pc
}
