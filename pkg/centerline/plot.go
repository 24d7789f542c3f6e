package centerline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotDiameters draws the diameter profile against skeleton point index and
// saves it as <dir>/<name>.png, with spaces in name replaced by underscores.
// It returns the written path.
func PlotDiameters(diameters []float64, dir, name string) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s Diameter Along Centerline", name)
	p.X.Label.Text = "Centerline point index"
	p.Y.Label.Text = "Diameter (mm)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(diameters))
	for i, d := range diameters {
		pts[i].X = float64(i)
		pts[i].Y = d
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return "", fmt.Errorf("build diameter series: %w", err)
	}
	line.Width = vg.Points(1)
	points.Radius = vg.Points(2)
	p.Add(line, points)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create plot dir: %w", err)
	}
	path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".png")
	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return "", fmt.Errorf("save diameter plot: %w", err)
	}
	return path, nil
}
