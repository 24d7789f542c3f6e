package analysis

import (
	"gonum.org/v1/gonum/spatial/r3"

	"vesselgeom/pkg/centerline"
	"vesselgeom/pkg/mesh"
)

// CenterlineMetrics is what the skeleton analysis measured. Length,
// Tortuosity and PathQuality are nil when the skeleton graph had no path.
type CenterlineMetrics struct {
	Diameters           centerline.DiameterStats
	Length              *float64
	Tortuosity          *float64
	PathQuality         *float64
	MaxDiameterLocation r3.Vec
	TangentAtMax        r3.Vec
}

// VesselMetrics groups a vessel's measurements by stage. A nil stage was
// not measured, which is different from measuring zero.
type VesselMetrics struct {
	Surface    *mesh.Metrics
	Centerline *CenterlineMetrics
	// ChamferDistance is the surface discrepancy against the vessel's labeled points.
	ChamferDistance *float64
}

// Map flattens the metrics into dotted keys. Unmeasured values are omitted.
func (m VesselMetrics) Map() map[string]any {
	out := make(map[string]any)
	if s := m.Surface; s != nil {
		out["surface_area"] = s.SurfaceArea
		out["volume"] = s.Volume
		out["is_watertight"] = s.Watertight
	}
	if c := m.Centerline; c != nil {
		out["centerline.diameters.min"] = c.Diameters.Min
		out["centerline.diameters.mean"] = c.Diameters.Mean
		out["centerline.diameters.median"] = c.Diameters.Median
		out["centerline.diameters.max"] = c.Diameters.Max
		out["centerline.max_diameter_location"] = triple(c.MaxDiameterLocation)
		out["centerline.tangent_at_max_diameter_location"] = triple(c.TangentAtMax)
		if c.Length != nil {
			out["centerline.length"] = *c.Length
		}
		if c.Tortuosity != nil {
			out["centerline.tortuosity"] = *c.Tortuosity
		}
		if c.PathQuality != nil {
			out["centerline.quality"] = *c.PathQuality
		}
	}
	if m.ChamferDistance != nil {
		out["quality.chamfer_distance"] = *m.ChamferDistance
	}
	return out
}

func centerlineMetrics(a *centerline.Analysis) *CenterlineMetrics {
	c := &CenterlineMetrics{
		Diameters:           a.Stats,
		MaxDiameterLocation: a.MaxDiameterLocation,
		TangentAtMax:        a.TangentAtMax,
	}
	if p := a.Path; p != nil {
		length := p.Length
		c.Length = &length
		c.Tortuosity = p.Tortuosity
		c.PathQuality = p.Quality
	}
	return c
}

func triple(v r3.Vec) []float64 { return []float64{v.X, v.Y, v.Z} }
