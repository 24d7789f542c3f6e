package models

// VesselLabel ties a segmentation label value to its anatomical name and display color.
type VesselLabel struct {
	Value int32
	Name  string
	Color [3]float64 // RGB in [0, 1]
}

// DefaultVessels is the fixed label table for aortic segmentations.
var DefaultVessels = []VesselLabel{
	{Value: 1, Name: "Aorta", Color: [3]float64{1, 0, 0}},
	{Value: 2, Name: "Left Iliac Artery", Color: [3]float64{0, 1, 0}},
	{Value: 3, Name: "Right Iliac Artery", Color: [3]float64{0, 0, 1}},
}
