package borders

import (
	"fmt"

	"hstin/gridwx/common"

	"github.com/jonas-p/go-shp"
)

type Point struct {
	Lon float64
	Lat float64
}

// Line is a polyline in signed degrees.
type Line []Point

// Load reads the border lines of a shapefile clipped to w. Lines leaving the
// window are split where they leave it.
func Load(path string, w common.Window) ([]Line, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("[BORDERS] opening %s: %w", path, err)
	}
	defer reader.Close()

	var lines []Line
	for reader.Next() {
		_, shape := reader.Shape()

		var parts []int32
		var points []shp.Point

		switch s := shape.(type) {
		case *shp.PolyLine:
			parts, points = s.Parts, s.Points
		case *shp.Polygon:
			parts, points = s.Parts, s.Points
		default:
			continue
		}

		for i := range parts {
			start, end := getStartEnd(parts, points, i)
			lines = append(lines, clip(points[start:end], w)...)
		}
	}

	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("[BORDERS] reading %s: %w", path, err)
	}

	return lines, nil
}

func getStartEnd(parts []int32, points []shp.Point, i int) (start, end int) {
	start = int(parts[i])
	if i == len(parts)-1 {
		end = len(points)
	} else {
		end = int(parts[i+1])
	}
	return
}

func clip(points []shp.Point, w common.Window) []Line {
	var out []Line
	var current Line

	for _, p := range points {
		if p.Y >= w.South && p.Y <= w.North && w.ContainsLon(p.X) {
			current = append(current, Point{Lon: common.ToSigned180(p.X), Lat: p.Y})
			continue
		}
		if len(current) > 1 {
			out = append(out, current)
		}
		current = nil
	}
	if len(current) > 1 {
		out = append(out, current)
	}

	return out
}
