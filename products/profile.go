package products

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"hstin/gridwx/grid"
)

// ProfileData is a vertical sounding at one point. Levels are in hPa,
// ordered from the surface up.
type ProfileData struct {
	Lat, Lon     float64
	ForecastHour int
	Levels       []float64
	Temperature  []float64 // °C
	RH           []float64 // %
}

// ProfileInputs are the isobaric variables a profile reads.
var ProfileInputs = []string{"tmpprs", "rhprs"}

// Profile samples temperature and humidity at the grid point nearest to
// lat/lon on every level of the source. Levels the data does not carry are
// skipped; any other read failure is returned.
func Profile(ctx context.Context, src grid.Collection, forecastHour int, lat, lon float64) (*ProfileData, error) {
	levels := append([]float64(nil), src.Levels()...)
	if len(levels) == 0 {
		return nil, fmt.Errorf("[PROFILE] no pressure levels in data")
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(levels)))

	out := &ProfileData{Lat: lat, Lon: lon, ForecastHour: forecastHour}

	for _, level := range levels {
		t, err := src.Read(ctx, "tmpprs", forecastHour, level)
		if errors.Is(err, grid.ErrNoLevel) || errors.Is(err, grid.ErrNoVariable) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("[PROFILE] %g hPa: %w", level, err)
		}
		rh, err := src.Read(ctx, "rhprs", forecastHour, level)
		if errors.Is(err, grid.ErrNoLevel) || errors.Is(err, grid.ErrNoVariable) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("[PROFILE] %g hPa: %w", level, err)
		}

		tv, rv := t.Nearest(lat, lon), rh.Nearest(lat, lon)
		if math.IsNaN(tv) || math.IsNaN(rv) {
			continue
		}

		out.Levels = append(out.Levels, level)
		out.Temperature = append(out.Temperature, tv-273.15)
		out.RH = append(out.RH, rv)
	}

	if len(out.Levels) == 0 {
		return nil, fmt.Errorf("[PROFILE] no level has temperature and humidity at %.2f,%.2f", lat, lon)
	}

	return out, nil
}
