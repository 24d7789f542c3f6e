// Package export writes an analysis result to disk: STL meshes, a YAML
// metrics summary and an HTML page of diameter profiles.
package export

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"vesselgeom/pkg/analysis"
	"vesselgeom/pkg/stl"
)

const (
	summaryFile  = "metrics.yaml"
	profilesFile = "diameter_profiles.html"
)

// Options selects the optional outputs. The metrics summary is always written.
type Options struct {
	STL  bool
	HTML bool
}

// VesselSummary is one vessel's entry in the metrics summary.
type VesselSummary struct {
	Label   int32          `yaml:"label"`
	Metrics map[string]any `yaml:"metrics"`
	Error   string         `yaml:"error,omitempty"`
	Plot    string         `yaml:"plot,omitempty"`
	Files   []string       `yaml:"files,omitempty"`
}

// Summary is the content of metrics.yaml.
type Summary struct {
	RunID     string                    `yaml:"run_id"`
	PatientID string                    `yaml:"patient_id"`
	Created   time.Time                 `yaml:"created"`
	Points    int                       `yaml:"points"`
	Vessels   map[string]*VesselSummary `yaml:"vessels"`
}

// Write stores res under dir/patientID and returns the summary it wrote.
func Write(dir, patientID string, res *analysis.Result, o Options) (*Summary, error) {
	out := filepath.Join(dir, patientID)
	if err := os.MkdirAll(out, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	sum := &Summary{
		RunID:     uuid.New().String(),
		PatientID: patientID,
		Created:   time.Now().UTC(),
		Vessels:   make(map[string]*VesselSummary),
	}
	if res.PointCloud != nil {
		sum.Points = len(res.PointCloud.Points)
	}

	for _, rec := range res.Records() {
		vs := &VesselSummary{
			Label:   rec.Label,
			Metrics: rec.Metrics.Map(),
			Plot:    rec.PlotPath,
		}
		if err, ok := res.Failures[rec.Name]; ok {
			vs.Error = err.Error()
		}
		if o.STL {
			files, err := writeMeshes(out, rec)
			if err != nil {
				return nil, err
			}
			vs.Files = files
		}
		sum.Vessels[rec.Name] = vs
	}

	data, err := yaml.Marshal(sum)
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(out, summaryFile), data, 0644); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}

	if o.HTML {
		if err := writeProfiles(filepath.Join(out, profilesFile), patientID, res); err != nil {
			return nil, err
		}
	}
	log.Printf("[export] run %s written to %s (%d vessels)", sum.RunID, out, len(sum.Vessels))
	return sum, nil
}

func writeMeshes(dir string, rec *analysis.VesselRecord) ([]string, error) {
	base := strings.ReplaceAll(rec.Name, " ", "_")
	var files []string
	if rec.Mesh != nil && !rec.Mesh.Empty() {
		name := base + "_mesh.stl"
		if err := stl.SaveMesh(filepath.Join(dir, name), rec.Mesh); err != nil {
			return nil, fmt.Errorf("save %s mesh: %w", rec.Name, err)
		}
		files = append(files, name)
	}
	if rec.Disc != nil && !rec.Disc.Empty() {
		name := base + "_disc.stl"
		if err := stl.SaveMesh(filepath.Join(dir, name), rec.Disc); err != nil {
			return nil, fmt.Errorf("save %s disc: %w", rec.Name, err)
		}
		files = append(files, name)
	}
	return files, nil
}

// writeProfiles renders one line chart per vessel with a diameter profile.
func writeProfiles(path, patientID string, res *analysis.Result) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Diameter profiles: %s", patientID)
	for _, rec := range res.Records() {
		if len(rec.Profile) == 0 {
			continue
		}
		x := make([]int, len(rec.Profile))
		y := make([]opts.LineData, len(rec.Profile))
		for i, d := range rec.Profile {
			x[i] = i
			y[i] = opts.LineData{Value: d}
		}
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "400px"}),
			charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("%s Diameter Along Centerline", rec.Name)}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "Centerline point index", NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Name: "Diameter (mm)", NameLocation: "middle", NameGap: 40}),
		)
		line.SetXAxis(x).
			AddSeries(rec.Name, y,
				charts.WithItemStyleOpts(opts.ItemStyle{Color: hexColor(rec.Color)}),
			)
		page.AddCharts(line)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render diameter profiles: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write diameter profiles: %w", err)
	}
	return nil
}

func hexColor(c [3]float64) string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c[0]), channel(c[1]), channel(c[2]))
}

func channel(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}
