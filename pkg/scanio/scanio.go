// Package scanio loads scans for the command line: a label volume described
// by a YAML header next to its raw voxel data, and CSV point clouds.
package scanio

import (
	"encoding/binary"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"vesselgeom/internal/models"
)

// ErrBadHeader reports a scan header that cannot describe a volume.
var ErrBadHeader = errors.New("scanio: bad header")

// Header describes a raw label volume on disk. Data is C-ordered, little
// endian, and resolved relative to the header file.
type Header struct {
	Shape  [3]int        `yaml:"shape"`
	DType  string        `yaml:"dtype"`
	Data   string        `yaml:"data"`
	Affine [4][4]float64 `yaml:"affine"`
}

var dtypeSize = map[string]int{"uint8": 1, "int16": 2, "int32": 4}

// LoadHeader reads and checks a scan header.
func LoadHeader(path string) (*Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scan header: %w", err)
	}
	var h Header
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	for _, n := range h.Shape {
		if n <= 0 {
			return nil, fmt.Errorf("%w: shape %v", ErrBadHeader, h.Shape)
		}
	}
	if _, ok := dtypeSize[h.DType]; !ok {
		return nil, fmt.Errorf("%w: dtype %q", ErrBadHeader, h.DType)
	}
	if h.Data == "" {
		return nil, fmt.Errorf("%w: no data file", ErrBadHeader)
	}
	if !filepath.IsAbs(h.Data) {
		h.Data = filepath.Join(filepath.Dir(path), h.Data)
	}
	if h.Affine == ([4][4]float64{}) {
		h.Affine = models.Identity()
	}
	return &h, nil
}

// LoadVolume reads the header at path and the voxel data it names.
func LoadVolume(path string) (*models.Volume, error) {
	h, err := LoadHeader(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(h.Data)
	if err != nil {
		return nil, fmt.Errorf("open scan data: %w", err)
	}
	defer f.Close()
	labels, err := readLabels(f, h.DType, h.Shape[0]*h.Shape[1]*h.Shape[2])
	if err != nil {
		return nil, fmt.Errorf("read scan data %s: %w", h.Data, err)
	}
	return models.NewVolume(h.Shape, labels, models.Affine(h.Affine))
}

// SaveVolume writes vol as int32 raw data plus a header at path. The data
// file sits next to the header with a .raw extension.
func SaveVolume(path string, vol *models.Volume) error {
	raw := strings.TrimSuffix(path, filepath.Ext(path)) + ".raw"
	h := Header{Shape: vol.Shape, DType: "int32", Data: filepath.Base(raw), Affine: vol.Affine}
	out, err := yaml.Marshal(&h)
	if err != nil {
		return fmt.Errorf("marshal scan header: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("write scan header: %w", err)
	}
	f, err := os.Create(raw)
	if err != nil {
		return fmt.Errorf("create scan data: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, vol.Labels); err != nil {
		f.Close()
		return fmt.Errorf("write scan data: %w", err)
	}
	return f.Close()
}

func readLabels(r io.Reader, dtype string, n int) ([]int32, error) {
	labels := make([]int32, n)
	switch dtype {
	case "uint8":
		buf := make([]uint8, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			labels[i] = int32(v)
		}
	case "int16":
		buf := make([]int16, n)
		if err := binary.Read(r, binary.LittleEndian, buf); err != nil {
			return nil, err
		}
		for i, v := range buf {
			labels[i] = int32(v)
		}
	case "int32":
		if err := binary.Read(r, binary.LittleEndian, labels); err != nil {
			return nil, err
		}
	}
	return labels, nil
}

// LoadPoints reads x,y,z rows from a CSV file. A first row that does not
// parse as numbers is taken as a header and skipped.
func LoadPoints(path string) ([]r3.Vec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open point cloud: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3
	r.TrimLeadingSpace = true
	var pts []r3.Vec
	for line := 1; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read point cloud: %w", err)
		}
		p, err := parsePoint(rec)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("point cloud line %d: %w", line, err)
		}
		pts = append(pts, p)
	}
	return pts, nil
}

func parsePoint(rec []string) (r3.Vec, error) {
	var xyz [3]float64
	for i, s := range rec {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return r3.Vec{}, err
		}
		xyz[i] = v
	}
	return r3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}
