package noaa

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hstin/gridwx/common"
	"hstin/gridwx/fetch"
	"hstin/gridwx/grib"
)

func TestParseIndex(t *testing.T) {
	idx := `1:0:d=2024030912:HGT:500 mb:6 hour fcst:ENS=mean
2:1200:d=2024030912:TMP:2 m above ground:6 hour fcst:ENS=mean
3:2500:d=2024030912:TMP:2 m above ground:6 hour fcst:ENS=spread
broken line
4:3100:d=2024030912:PRMSL:mean sea level:6 hour fcst:ENS=mean
`
	index, err := ParseIndex(strings.NewReader(idx))
	if err != nil {
		t.Fatal(err)
	}

	if got := index["HGT"]["500 mb"]; got != (IndexEntry{0, 1199}) {
		t.Errorf("HGT %v", got)
	}
	if got := index["TMP"]["2 m above ground"]; got != (IndexEntry{1200, 2499}) {
		t.Errorf("TMP %v", got)
	}
	if got := index["PRMSL"]["mean sea level"]; got != (IndexEntry{3100, -1}) {
		t.Errorf("PRMSL %v", got)
	}
}

// fakeMessage is a framed GRIB2 message whose payload carries one float so
// the stub decoder can tell messages apart.
func fakeMessage(value float64) []byte {
	m := make([]byte, 32)
	copy(m, "GRIB")
	m[7] = 2
	binary.BigEndian.PutUint64(m[8:16], 32)
	binary.BigEndian.PutUint64(m[16:24], uint64(value))
	copy(m[28:], "7777")
	return m
}

func stubDecode(lats, lons []float64) grib.Decoder {
	return func(data []byte) (*grib.Message, error) {
		v := float64(binary.BigEndian.Uint64(data[16:24]))
		out := make([]float64, len(lats)*len(lons))
		for i := range out {
			out[i] = v + float64(i)
		}
		return &grib.Message{Values: out, Geometry: grib.RegularGeometry(lats, lons)}, nil
	}
}

type gribFile struct {
	index string
	data  []byte
}

func buildFile(step int) gribFile {
	var data bytes.Buffer
	var idx strings.Builder
	for i, rec := range []struct {
		name, level string
		value       float64
	}{
		{"HGT", "500 mb", 5000 + float64(step)},
		{"TMP", "2 m above ground", 280 + float64(step)},
	} {
		fmt.Fprintf(&idx, "%d:%d:d=2024030912:%s:%s:%d hour fcst:ENS=mean\n", i+1, data.Len(), rec.name, rec.level, step)
		data.Write(fakeMessage(rec.value))
	}
	return gribFile{index: idx.String(), data: data.Bytes()}
}

func TestIndexDownloaderOpen(t *testing.T) {
	files := map[string]gribFile{
		"/cmce.20240309/12/cmc_geavg.t12z.f006": buildFile(6),
		"/cmce.20240309/12/cmc_geavg.t12z.f012": buildFile(12),
	}
	var ranges []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f, ok := files[strings.TrimSuffix(r.URL.Path, ".idx")]; ok {
			if strings.HasSuffix(r.URL.Path, ".idx") {
				w.Write([]byte(f.index))
				return
			}
			ranges = append(ranges, r.Header.Get("Range"))
			http.ServeContent(w, r, "file", time.Time{}, bytes.NewReader(f.data))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	lats := []float64{50, 40}
	lons := []float64{230, 240, 250}

	d := NewIndexDownloader(IndexDownloaderOptions{
		ModelName: "CMC_ens_mean",
		Params: []grib.Param{
			{Key: "hgtprs", Name: "HGT", Level: "500 mb", LevelIndex: 0},
			{Key: "tmp2m", Name: "TMP", Level: "2 m above ground", LevelIndex: -1},
		},
		Steps:      []int{6, 12},
		StepHours:  6,
		Levels:     []float64{500},
		Lats:       lats,
		Lons:       lons,
		Convention: common.Positive360,
		Decode:     stubDecode(lats, lons),
		HTTPClient: srv.Client(),
	})

	format := srv.URL + "/cmce.{date}/{hour}/cmc_geavg.t{hour}z.f{fhour}"
	s := fetch.Schedule{RunHours: []int{0, 12}, Latency: 8 * time.Hour, LookBack: 24 * time.Hour}
	// 06Z on the 10th: 00Z of the 10th is missing, 12Z of the 9th is there
	candidates := fetch.Candidates(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), s, "CMC_ens_mean", format)

	res, err := fetch.NewFetcher(fetch.FetcherOptions{Opener: d}).Fetch(context.Background(), candidates, common.Window{West: -121, East: -119, South: 35, North: 45})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Attempts) != 2 || len(res.Datasets) != 2 {
		t.Fatalf("%d attempts, %d datasets", len(res.Attempts), len(res.Datasets))
	}

	f12, err := res.Datasets[1].Read(context.Background(), "tmp2m", 12, common.NoLevel)
	if err != nil {
		t.Fatal(err)
	}
	// the window keeps lat 40 and lon 240 (index 4 in the native 2x3 grid)
	if fmt.Sprint(f12.Values) != "[296]" {
		t.Errorf("values %v", f12.Values)
	}

	h6, err := res.Datasets[0].Read(context.Background(), "hgtprs", 6, 500)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(h6.Values) != "[5010]" {
		t.Errorf("hgt %v", h6.Values)
	}

	if len(ranges) != 4 || ranges[0] != "bytes=0-31" || ranges[1] != "bytes=32-" {
		t.Errorf("ranges %v", ranges)
	}
}

func TestIndexDownloaderIncompleteMessage(t *testing.T) {
	f := buildFile(6)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".idx") {
			w.Write([]byte(f.index))
			return
		}
		// still being written: only half of the second message exists
		http.ServeContent(w, r, "file", time.Time{}, bytes.NewReader(f.data[:48]))
	}))
	defer srv.Close()

	d := NewIndexDownloader(IndexDownloaderOptions{
		ModelName:  "CMC_ens_mean",
		Params:     []grib.Param{{Key: "tmp2m", Name: "TMP", Level: "2 m above ground", LevelIndex: -1}},
		Steps:      []int{6},
		Lats:       []float64{0},
		Lons:       []float64{0},
		Decode:     stubDecode([]float64{0}, []float64{0}),
		HTTPClient: srv.Client(),
	})

	c := fetch.Candidate{Model: "CMC_ens_mean", URLFormat: srv.URL + "/f{fhour}", Run: time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)}
	_, err := d.Open(context.Background(), c)
	if !fetch.IsNotAvailable(err) || !errors.Is(err, grib.ErrIncomplete) {
		t.Fatalf("expected incomplete message to be unavailable, got %v", err)
	}
}

func TestIndexDownloaderDecodeFailurePropagates(t *testing.T) {
	f := buildFile(6)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".idx") {
			w.Write([]byte(f.index))
			return
		}
		http.ServeContent(w, r, "file", time.Time{}, bytes.NewReader(f.data))
	}))
	defer srv.Close()

	broken := errors.New("unsupported packing")
	d := NewIndexDownloader(IndexDownloaderOptions{
		Params:     []grib.Param{{Key: "hgtprs", Name: "HGT", Level: "500 mb"}},
		Steps:      []int{6},
		Lats:       []float64{0},
		Lons:       []float64{0},
		Decode:     func([]byte) (*grib.Message, error) { return nil, broken },
		HTTPClient: srv.Client(),
	})

	c := fetch.Candidate{URLFormat: srv.URL + "/f{fhour}", Run: time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)}
	_, err := d.Open(context.Background(), c)
	if !errors.Is(err, broken) || fetch.IsNotAvailable(err) {
		t.Fatalf("got %v", err)
	}
}

func TestIndexDownloaderPartialInventory(t *testing.T) {
	f := buildFile(6)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".idx") {
			w.Write([]byte(f.index))
			return
		}
		http.ServeContent(w, r, "file", time.Time{}, bytes.NewReader(f.data))
	}))
	defer srv.Close()

	d := NewIndexDownloader(IndexDownloaderOptions{
		Params:     []grib.Param{{Key: "ugrd10m", Name: "UGRD", Level: "10 m above ground", LevelIndex: -1}},
		Steps:      []int{6},
		Lats:       []float64{0},
		Lons:       []float64{0},
		Decode:     stubDecode([]float64{0}, []float64{0}),
		HTTPClient: srv.Client(),
	})

	c := fetch.Candidate{URLFormat: srv.URL + "/f{fhour}", Run: time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)}
	if _, err := d.Open(context.Background(), c); !fetch.IsNotAvailable(err) {
		t.Fatalf("expected missing inventory entry to be unavailable, got %v", err)
	}
}
