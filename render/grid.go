package render

import (
	"math"
	"sort"

	"hstin/gridwx/grid"

	"gonum.org/v1/gonum/floats"
)

// fieldGrid adapts a field to plotter.GridXYZ with both axes ascending.
type fieldGrid struct {
	f    *grid.Field
	rows []int // row index into f for each ascending latitude
	cols []int // column index into f for each ascending longitude
}

func newFieldGrid(f *grid.Field) *fieldGrid {
	g := &fieldGrid{f: f, rows: ascending(f.Lats), cols: ascending(f.Lons)}
	return g
}

func ascending(axis []float64) []int {
	idx := make([]int, len(axis))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return axis[idx[a]] < axis[idx[b]] })
	return idx
}

func (g *fieldGrid) Dims() (c, r int) {
	return len(g.cols), len(g.rows)
}

func (g *fieldGrid) Z(c, r int) float64 {
	return g.f.At(g.rows[r], g.cols[c])
}

func (g *fieldGrid) X(c int) float64 {
	return g.f.Lons[g.cols[c]]
}

func (g *fieldGrid) Y(r int) float64 {
	return g.f.Lats[g.rows[r]]
}

// valueRange returns the extent of the finite values of f.
func valueRange(values []float64) (min, max float64, ok bool) {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0, 0, false
	}
	return floats.Min(finite), floats.Max(finite), true
}

// contourLevels lists multiples of interval covering [min, max].
func contourLevels(min, max, interval float64) []float64 {
	var levels []float64
	for v := math.Ceil(min/interval) * interval; v <= max; v += interval {
		levels = append(levels, v)
	}
	return levels
}

// shiftLon moves lon by whole turns so it lies closest to center.
func shiftLon(lon, center float64) float64 {
	return lon + 360*math.Round((center-lon)/360)
}
