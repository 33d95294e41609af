package render

import (
	"bytes"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hstin/gridwx/borders"
	"hstin/gridwx/common"
	"hstin/gridwx/grid"
	"hstin/gridwx/products"
)

var testRun = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

// testField is a small grid in 0..360 longitudes with descending latitudes.
func testField() *grid.Field {
	lats := []float64{42, 41, 40, 39, 38}
	lons := []float64{238, 239, 240, 241, 242, 243}
	values := make([]float64, len(lats)*len(lons))
	for r := range lats {
		for c := range lons {
			values[r*len(lons)+c] = float64(60 + r*5 + c)
		}
	}
	values[3] = math.NaN()
	return &grid.Field{
		Name: "temperature", Units: "°F", Run: testRun, ForecastHour: 6,
		Lats: lats, Lons: lons, Values: values,
	}
}

func TestFieldGridAscending(t *testing.T) {
	g := newFieldGrid(testField())

	c, r := g.Dims()
	if c != 6 || r != 5 {
		t.Fatalf("dims = %d, %d", c, r)
	}
	if g.Y(0) != 38 || g.Y(r-1) != 42 {
		t.Errorf("latitudes not ascending: %v .. %v", g.Y(0), g.Y(r-1))
	}
	// lat 38 is the last row of the field
	if got := g.Z(0, 0); got != 80 {
		t.Errorf("Z(0,0) = %v, want 80", got)
	}
}

func TestValueRangeSkipsNaN(t *testing.T) {
	min, max, ok := valueRange([]float64{math.NaN(), 3, -1, math.Inf(1), 7})
	if !ok || min != -1 || max != 7 {
		t.Errorf("got %v %v %v", min, max, ok)
	}
	if _, _, ok := valueRange([]float64{math.NaN()}); ok {
		t.Error("expected no range for all-NaN values")
	}
}

func TestContourLevels(t *testing.T) {
	got := contourLevels(551, 590, 6)
	want := []float64{552, 558, 564, 570, 576, 582, 588}
	if len(got) != len(want) {
		t.Fatalf("levels = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("levels[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBorderShift(t *testing.T) {
	line := borders.Line{{Lon: -121, Lat: 39}, {Lon: -119, Lat: 40}}
	xys := borderXYs(line, 240)
	if xys[0].X != 239 || xys[1].X != 241 {
		t.Errorf("shifted = %v", xys)
	}
	xys = borderXYs(line, -120)
	if xys[0].X != -121 {
		t.Errorf("unshifted = %v", xys)
	}
}

func TestMapWritesPNG(t *testing.T) {
	for _, name := range []string{"temperature", "heights_500", "red_flag"} {
		t.Run(name, func(t *testing.T) {
			p, err := products.Lookup(name)
			if err != nil {
				t.Fatal(err)
			}
			var buf bytes.Buffer
			opts := MapOptions{
				Model:   "NAM",
				Region:  "california",
				Window:  common.Window{West: -122, East: -117, South: 38, North: 42},
				Borders: []borders.Line{{{Lon: -121, Lat: 39}, {Lon: -118, Lat: 41}}},
				Width:   400,
				Height:  300,
			}
			if err := Map(&buf, testField(), p, opts); err != nil {
				t.Fatal(err)
			}
			img, err := png.Decode(&buf)
			if err != nil {
				t.Fatalf("decoding png: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 300 {
				t.Errorf("image is %v", b)
			}
		})
	}
}

func TestMapRejectsTinyField(t *testing.T) {
	f := &grid.Field{Name: "x", Lats: []float64{1}, Lons: []float64{1, 2}, Values: []float64{1, 2}}
	p, _ := products.Lookup("temperature")
	if err := Map(&bytes.Buffer{}, f, p, MapOptions{}); err == nil {
		t.Error("expected error")
	}
}

func TestOutputPath(t *testing.T) {
	p, _ := products.Lookup("heights_500")
	got := OutputPath("out", "GFS0p25", "conus", "states", p, testRun, 24)
	want := filepath.Join("out", "GFS0p25", "conus", "states", "heights_500", "500mb", "20240701_12z_f024.png")
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestSaveProfile(t *testing.T) {
	d := &products.ProfileData{
		Lat: 40, Lon: -105, ForecastHour: 0,
		Levels:      []float64{850, 700, 500, 300},
		Temperature: []float64{20, 8, -12, -40},
		RH:          []float64{60, 40, 30, 0},
	}
	path := filepath.Join(t.TempDir(), "a", "profile.png")
	if err := SaveProfile(path, d, "GFS0p25", testRun); err != nil {
		t.Fatal(err)
	}
	if st, err := os.Stat(path); err != nil || st.Size() == 0 {
		t.Errorf("profile not written: %v", err)
	}
}

func TestDewPoint(t *testing.T) {
	if td := dewPoint(20, 100); math.Abs(td-20) > 1e-9 {
		t.Errorf("saturated dew point = %v", td)
	}
	if td := dewPoint(20, 50); td < 9 || td > 10 {
		t.Errorf("dew point = %v, want about 9.3", td)
	}
	if !math.IsNaN(dewPoint(20, 0)) {
		t.Error("expected NaN for zero humidity")
	}
}
