package export

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"hstin/gridwx/grid"
)

func TestWriteReadNetCDF(t *testing.T) {
	run := time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)
	f := &grid.Field{
		Name: "wind_gust", Units: "mph", Run: run, ForecastHour: 12, Level: -1,
		Lats:   []float64{40, 39},
		Lons:   []float64{240, 241, 242},
		Values: []float64{1, 2, 3, 4, math.NaN(), 6},
	}
	path := filepath.Join(t.TempDir(), "nested", "gust.nc")

	if err := WriteNetCDF(path, f); err != nil {
		t.Fatal(err)
	}
	// overwriting an existing export works
	if err := WriteNetCDF(path, f); err != nil {
		t.Fatal(err)
	}

	got, err := ReadNetCDF(path, "wind_gust")
	if err != nil {
		t.Fatal(err)
	}
	if got.Units != "mph" || got.ForecastHour != 12 || !got.Run.Equal(run) || got.Level != -1 {
		t.Errorf("metadata = %+v", got)
	}
	if len(got.Lats) != 2 || len(got.Lons) != 3 || got.Lons[2] != 242 {
		t.Errorf("axes = %v %v", got.Lats, got.Lons)
	}
	if len(got.Values) != 6 || got.Values[5] != 6 || !math.IsNaN(got.Values[4]) {
		t.Errorf("values = %v", got.Values)
	}
}

func TestWriteNetCDFShapeMismatch(t *testing.T) {
	f := &grid.Field{Name: "x", Lats: []float64{1, 2}, Lons: []float64{1}, Values: []float64{1}}
	if err := WriteNetCDF(filepath.Join(t.TempDir(), "x.nc"), f); err == nil {
		t.Error("expected error")
	}
}

func TestPath(t *testing.T) {
	if got := Path(filepath.Join("a", "20240701_06z_f012.png")); got != filepath.Join("a", "20240701_06z_f012.nc") {
		t.Errorf("got %s", got)
	}
}
