package server

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"hstin/gridwx/common"
	"hstin/gridwx/fetch"
	"hstin/gridwx/grid"
	"hstin/gridwx/models"
	"hstin/gridwx/models/base"
	"hstin/gridwx/pipeline"

	"github.com/xhhuango/json"
)

var testNow = func() time.Time { return time.Date(2024, 7, 1, 13, 30, 0, 0, time.UTC) }

func testDataset(run time.Time) *grid.Dataset {
	var lats, lons []float64
	for lat := 45.0; lat >= 30; lat-- {
		lats = append(lats, lat)
	}
	for lon := -130.0; lon <= -110; lon++ {
		lons = append(lons, lon)
	}

	reader := grid.NewMemoryReader(len(lats), len(lons))
	tmp := make([]float64, len(lats)*len(lons))
	for i := range tmp {
		tmp[i] = 300
	}
	reader.Put("tmp2m", 0, -1, tmp)

	ds := grid.New("test", lats, lons, common.Signed180, reader)
	ds.Run = run
	ds.Steps = []int{0}
	ds.Variables = []string{"tmp2m"}
	return ds
}

func testApp(t *testing.T, available bool) (*Options, *int) {
	t.Helper()
	calls := new(int)
	opener := func(cfg base.Config, opts models.OpenerOptions) (fetch.Opener, error) {
		return fetch.OpenerFunc(func(ctx context.Context, c fetch.Candidate) ([]*grid.Dataset, error) {
			*calls++
			if !available {
				return nil, fetch.NotAvailable(c.URL(nil), "no such dataset", nil)
			}
			return []*grid.Dataset{testDataset(c.Run)}, nil
		}), nil
	}
	return &Options{
		Pipeline: pipeline.Options{
			DataRoot:   t.TempDir(),
			OutputRoot: t.TempDir(),
			Width:      300,
			Height:     200,
			Now:        testNow,
			NewOpener:  opener,
		},
	}, calls
}

func get(t *testing.T, opts *Options, url string) (int, []byte, string) {
	t.Helper()
	resp, err := NewApp(*opts).Test(httptest.NewRequest("GET", url, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, body, resp.Header.Get("Content-Type")
}

func TestModels(t *testing.T) {
	opts, _ := testApp(t, true)
	status, body, _ := get(t, opts, "/models")
	if status != 200 {
		t.Fatalf("status %d: %s", status, body)
	}
	var out []ModelResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != len(base.All()) || out[0].Name != "GFS0p25" {
		t.Errorf("models = %+v", out)
	}
}

func TestRegions(t *testing.T) {
	opts, _ := testApp(t, true)
	status, body, _ := get(t, opts, "/regions")
	var out map[string]common.Window
	if err := json.Unmarshal(body, &out); err != nil || status != 200 {
		t.Fatalf("status %d: %v", status, err)
	}
	if out["conus"] != common.Regions["conus"] {
		t.Errorf("conus = %+v", out["conus"])
	}
}

func TestCandidates(t *testing.T) {
	opts, _ := testApp(t, true)

	status, body, _ := get(t, opts, "/candidates?model=nam&at=2024-07-01T13:30:00Z")
	if status != 200 {
		t.Fatalf("status %d: %s", status, body)
	}
	var out []CandidateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if len(out) == 0 || !out[0].Run.Equal(time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)) || out[0].PriorDay {
		t.Errorf("candidates = %+v", out)
	}

	for _, url := range []string{"/candidates?model=nope", "/candidates?model=NAM&at=yesterday"} {
		if status, _, _ := get(t, opts, url); status != 400 {
			t.Errorf("%s: status %d", url, status)
		}
	}
}

func TestPlot(t *testing.T) {
	opts, calls := testApp(t, true)
	status, body, ctype := get(t, opts, "/plot?model=NAM&region=california&product=temperature&step=0")
	if status != 200 {
		t.Fatalf("status %d: %s", status, body)
	}
	if ctype != "image/png" || len(body) < 8 || string(body[1:4]) != "PNG" {
		t.Errorf("content type %q, %d bytes", ctype, len(body))
	}
	if *calls != 1 {
		t.Errorf("%d opens", *calls)
	}
}

func TestPlotBadRequests(t *testing.T) {
	opts, calls := testApp(t, true)
	for _, url := range []string{
		"/plot?model=NAM&region=atlantis&product=temperature",
		"/plot?model=NAM&region=california&product=snow",
		"/plot?model=RDPA&region=california&product=temperature",
		"/plot?model=NAM&region=california&product=temperature&step=4",
		"/plot?model=NAM&region=california&product=temperature&borders=rivers",
	} {
		if status, body, _ := get(t, opts, url); status != 400 {
			t.Errorf("%s: status %d: %s", url, status, body)
		}
	}
	if *calls != 0 {
		t.Errorf("%d opens for bad requests", *calls)
	}
}

func TestPlotExhausted(t *testing.T) {
	opts, calls := testApp(t, false)
	status, body, _ := get(t, opts, "/plot?model=NAM&region=california&product=temperature")
	if status != 503 {
		t.Fatalf("status %d: %s", status, body)
	}
	var out struct {
		Error    string             `json:"error"`
		Attempts []pipeline.Attempt `json:"attempts"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out.Error == "" || len(out.Attempts) != *calls {
		t.Errorf("body = %s", body)
	}
}

func TestPoint(t *testing.T) {
	opts, _ := testApp(t, true)
	status, body, _ := get(t, opts, "/point?model=NAM&lat=37&lng=-120&products=temperature,temperature")
	if status != 200 {
		t.Fatalf("status %d: %s", status, body)
	}
	var out PointResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	series := out.Values["temperature"]
	if len(out.Values) != 1 || len(series) != 1 || series[0] == nil {
		t.Fatalf("values = %s", body)
	}
	// 300 K
	if *series[0] != 80.33 {
		t.Errorf("temperature = %v", *series[0])
	}
	if out.Timezone != "America/Los_Angeles" {
		t.Errorf("timezone = %s", out.Timezone)
	}
}

func TestPointBadRequests(t *testing.T) {
	opts, calls := testApp(t, true)
	for _, url := range []string{
		"/point?model=NAM&lat=95&lng=0&products=temperature",
		"/point?model=NAM&lat=0&lng=190&products=temperature",
		"/point?model=NAM&lat=37&lng=-120&products=nothing",
		"/point?model=NAM&lat=37&lng=-120&products=temperature&steps=x",
		"/point?model=CMC_ens_mean&lat=37&lng=-120&products=temperature&steps=0,9",
		"/point?model=CMC_ens_mean&lat=37&lng=-120&products=temperature&steps=390",
	} {
		if status, _, _ := get(t, opts, url); status != 400 {
			t.Errorf("%s: status %d", url, status)
		}
	}
	if *calls != 0 {
		t.Errorf("%d opens for bad requests", *calls)
	}
}
