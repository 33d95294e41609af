package grid

import (
	"fmt"

	"hstin/gridwx/common"
)

// Subset returns a dataset restricted to w. The window is translated into the
// dataset's longitude convention first; a window crossing the seam of that
// convention selects two longitude blocks which are joined so the longitude
// axis stays continuous. Latitude order (ascending or descending) is kept.
// Neither ds nor w is modified and no data is read.
func Subset(ds *Dataset, w common.Window) (*Dataset, error) {
	if w.South >= w.North {
		return nil, fmt.Errorf("[SUBSET] %s: south must be below north: %s", ds.Name, w)
	}

	native := w.In(ds.Convention)

	var latIdx []int
	var lats []float64
	for i, lat := range ds.Lats {
		if lat >= native.South && lat <= native.North {
			latIdx = append(latIdx, ds.latIndex[i])
			lats = append(lats, lat)
		}
	}

	var lonIdx []int
	var lons []float64

	if native.Global() {
		lonIdx = append(lonIdx, ds.lonIndex...)
		lons = append(lons, ds.Lons...)
	} else if !native.Wraps() {
		for j, lon := range ds.Lons {
			l := normalize(lon, ds.Convention)
			if l >= native.West && l <= native.East {
				lonIdx = append(lonIdx, ds.lonIndex[j])
				lons = append(lons, l)
			}
		}
	} else {
		// western block first; one block is shifted by 360 so the axis keeps
		// increasing across the seam
		westShift, eastShift := -360.0, 0.0
		if ds.Convention == common.Signed180 {
			westShift, eastShift = 0, 360
		}
		for j, lon := range ds.Lons {
			if l := normalize(lon, ds.Convention); l >= native.West {
				lonIdx = append(lonIdx, ds.lonIndex[j])
				lons = append(lons, l+westShift)
			}
		}
		for j, lon := range ds.Lons {
			if l := normalize(lon, ds.Convention); l <= native.East {
				lonIdx = append(lonIdx, ds.lonIndex[j])
				lons = append(lons, l+eastShift)
			}
		}
	}

	if len(latIdx) == 0 || len(lonIdx) == 0 {
		return nil, fmt.Errorf("[SUBSET] %s %s: %w", ds.Name, w, ErrOutsideGrid)
	}

	out := *ds
	out.Lats = lats
	out.Lons = lons
	out.latIndex = latIdx
	out.lonIndex = lonIdx
	out.Steps = append([]int(nil), ds.Steps...)
	out.Levels = append([]float64(nil), ds.Levels...)
	out.Variables = append([]string(nil), ds.Variables...)

	return &out, nil
}

func normalize(lon float64, c common.LonConvention) float64 {
	if c == common.Positive360 {
		if lon == 360 {
			return lon
		}
		return common.ToPositive360(lon)
	}
	if lon == 180 {
		return lon
	}
	return common.ToSigned180(lon)
}
