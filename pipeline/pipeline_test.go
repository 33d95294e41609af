package pipeline

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"hstin/gridwx/common"
	"hstin/gridwx/export"
	"hstin/gridwx/fetch"
	"hstin/gridwx/grid"
	"hstin/gridwx/models"
	"hstin/gridwx/models/base"
	"hstin/gridwx/products"
	"hstin/gridwx/render"
)

var (
	testNow    = func() time.Time { return time.Date(2024, 7, 1, 13, 30, 0, 0, time.UTC) }
	california = common.Regions["california"]
)

// testDataset covers the western US on a 1° signed grid.
func testDataset(run time.Time) *grid.Dataset {
	var lats, lons []float64
	for lat := 45.0; lat >= 30; lat-- {
		lats = append(lats, lat)
	}
	for lon := -130.0; lon <= -110; lon++ {
		lons = append(lons, lon)
	}

	reader := grid.NewMemoryReader(len(lats), len(lons))
	n := len(lats) * len(lons)
	tmp, rh, hgt := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := range tmp {
		tmp[i] = 280 + float64(i%len(lons))
		rh[i] = 40
		hgt[i] = 5640 + float64(i/len(lons))*6
	}
	reader.Put("tmp2m", 0, -1, tmp)
	reader.Put("hgtprs", 0, 0, hgt)
	reader.Put("tmpprs", 0, 0, tmp)
	reader.Put("rhprs", 0, 0, rh)
	reader.Put("tmpprs", 0, 1, tmp)
	reader.Put("rhprs", 0, 1, rh)

	ds := grid.New("NAM test", lats, lons, common.Signed180, reader)
	ds.Model = "NAM"
	ds.Run = run
	ds.StepHours = 3
	ds.Steps = []int{0}
	ds.Levels = []float64{500, 850}
	ds.Variables = []string{"tmp2m", "hgtprs", "tmpprs", "rhprs"}
	return ds
}

// failingFirst answers not-available for the first n candidates.
func failingFirst(n int, calls *int) OpenerFactory {
	return func(cfg base.Config, opts models.OpenerOptions) (fetch.Opener, error) {
		return fetch.OpenerFunc(func(ctx context.Context, c fetch.Candidate) ([]*grid.Dataset, error) {
			*calls++
			if *calls <= n {
				return nil, fetch.NotAvailable(c.URL(nil), "no such dataset", nil)
			}
			return []*grid.Dataset{testDataset(c.Run)}, nil
		}), nil
	}
}

func testOptions(t *testing.T, factory OpenerFactory) Options {
	t.Helper()

	temp, err := products.Lookup("temperature")
	if err != nil {
		t.Fatal(err)
	}
	heights, err := products.Lookup("heights_500")
	if err != nil {
		t.Fatal(err)
	}

	return Options{
		Model:      base.Get(base.NAM),
		Region:     "california",
		Window:     california,
		Products:   []products.Product{temp, heights},
		DataRoot:   t.TempDir(),
		OutputRoot: t.TempDir(),
		NetCDF:     true,
		Width:      400,
		Height:     300,
		Now:        testNow,
		NewOpener:  factory,
	}
}

func TestRunFallsBackAndWritesOutputs(t *testing.T) {
	var calls int
	var health []bool
	opts := testOptions(t, failingFirst(1, &calls))
	opts.OnFetch = func(model string, ok bool) { health = append(health, ok) }

	m, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}

	wantRun := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	if m.Run == nil || !m.Run.Equal(wantRun) {
		t.Fatalf("run = %v, want %v", m.Run, wantRun)
	}
	if calls != 2 || len(m.Attempts) != 2 || m.Attempts[0].Error == "" || m.Attempts[1].Error != "" {
		t.Errorf("attempts = %+v", m.Attempts)
	}
	if len(health) != 1 || !health[0] {
		t.Errorf("health = %v", health)
	}

	if len(m.Outputs) != 2 {
		t.Fatalf("outputs = %+v", m.Outputs)
	}
	for i, p := range opts.Products {
		want := render.OutputPath(opts.OutputRoot, "NAM", "california", "none", p, wantRun, 0)
		if m.Outputs[i].PNG != want {
			t.Errorf("output %d = %s, want %s", i, m.Outputs[i].PNG, want)
		}
		if _, err := os.Stat(want); err != nil {
			t.Errorf("missing map: %v", err)
		}
		if _, err := export.ReadNetCDF(m.Outputs[i].NetCDF, p.Name); err != nil {
			t.Errorf("netcdf: %v", err)
		}
	}

	saved, err := ReadManifest(opts.OutputRoot, "NAM", "california")
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Outputs) != 2 || saved.Run == nil || !saved.Run.Equal(wantRun) {
		t.Errorf("saved manifest = %+v", saved)
	}
}

func TestRunExhausted(t *testing.T) {
	var calls int
	var health []bool
	opts := testOptions(t, failingFirst(100, &calls))
	opts.OnFetch = func(model string, ok bool) { health = append(health, ok) }

	m, err := Run(context.Background(), opts)
	if !errors.Is(err, fetch.ErrExhausted) {
		t.Fatalf("err = %v", err)
	}

	candidates := opts.Model.Candidates(testNow())
	if calls != len(candidates) || len(m.Attempts) != len(candidates) {
		t.Errorf("%d opens, %d attempts, %d candidates", calls, len(m.Attempts), len(candidates))
	}
	if m.Run != nil || len(m.Outputs) != 0 {
		t.Errorf("manifest = %+v", m)
	}
	if len(health) != 1 || health[0] {
		t.Errorf("health = %v", health)
	}
	if _, err := ReadManifest(opts.OutputRoot, "NAM", "california"); err != nil {
		t.Errorf("manifest not written: %v", err)
	}
}

func TestRunProfile(t *testing.T) {
	var calls int
	opts := testOptions(t, failingFirst(0, &calls))
	opts.Products = nil
	opts.NetCDF = false
	opts.Profiles = []Point{{Lat: 37, Lon: -120}}

	m, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Profiles) != 1 {
		t.Fatalf("profiles = %+v", m.Profiles)
	}
	if _, err := os.Stat(m.Profiles[0].PNG); err != nil {
		t.Errorf("missing profile: %v", err)
	}
}

func TestRunRejectsBadWindow(t *testing.T) {
	var calls int
	opts := testOptions(t, failingFirst(0, &calls))
	opts.Window = common.Window{West: -110, East: -120, South: 30, North: 40}

	if _, err := Run(context.Background(), opts); err == nil {
		t.Error("expected error")
	}
	if calls != 0 {
		t.Errorf("%d opens for an invalid window", calls)
	}
}

func TestAppendMissing(t *testing.T) {
	got := appendMissing([]string{"a", "tmpprs"}, "tmpprs", "rhprs")
	if len(got) != 3 || got[2] != "rhprs" {
		t.Errorf("got %v", got)
	}
}
