package noaa

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hstin/gridwx/common"
	"hstin/gridwx/fetch"
	"hstin/gridwx/grib"
	"hstin/gridwx/grid"
	. "hstin/gridwx/helper"
)

// IndexEntry is the byte range of one message. End is -1 for the last
// message of a file.
type IndexEntry struct {
	Start int
	End   int
}

// IndexData maps variable name and level to message ranges.
type IndexData map[string]map[string]IndexEntry

// IndexDownloader reads single GRIB2 messages out of large files using the
// .idx inventory that NOMADS publishes next to every file.
type IndexDownloader struct {
	modelName  string
	params     []grib.Param
	steps      []int
	stepHours  int
	levels     []float64
	lats       []float64
	lons       []float64
	convention common.LonConvention
	native     *grib.PolarStereographic
	decode     grib.Decoder
	httpClient *http.Client
}

type IndexDownloaderOptions struct {
	ModelName  string
	Params     []grib.Param
	Steps      []int
	StepHours  int
	Levels     []float64
	Lats       []float64
	Lons       []float64
	Convention common.LonConvention
	// Native describes a projected source grid that is resampled onto
	// Lats and Lons. Nil for lat/lon sources.
	Native *grib.PolarStereographic
	// Decode defaults to grib.Decode.
	Decode     grib.Decoder
	HTTPClient *http.Client
}

func NewIndexDownloader(options IndexDownloaderOptions) *IndexDownloader {
	decode := options.Decode
	if decode == nil {
		decode = grib.Decode
	}

	return &IndexDownloader{
		modelName:  options.ModelName,
		params:     options.Params,
		steps:      options.Steps,
		stepHours:  options.StepHours,
		levels:     options.Levels,
		lats:       options.Lats,
		lons:       options.Lons,
		convention: options.Convention,
		native:     options.Native,
		decode:     decode,
		httpClient: options.HTTPClient,
	}
}

func stepValues(step int) map[string]string {
	return map[string]string{"fhour": fmt.Sprintf("%03d", step)}
}

// Open downloads the requested messages of every step of the candidate run
// and returns one dataset per step file.
func (d *IndexDownloader) Open(ctx context.Context, c fetch.Candidate) ([]*grid.Dataset, error) {
	datasets := make([]*grid.Dataset, 0, len(d.steps))

	for _, step := range d.steps {
		url := c.URL(stepValues(step))

		index, err := d.getIndexFile(ctx, url)
		if err != nil {
			return nil, err
		}

		reader := grid.NewMemoryReader(len(d.lats), len(d.lons))

		for _, p := range d.params {
			entry, ok := index[p.Name][p.Level]
			if !ok {
				// NOMADS appends to the inventory while a run is written
				return nil, fetch.NotAvailable(url+".idx", fmt.Sprintf("%s at %q not in inventory", p.Name, p.Level), nil)
			}

			data, err := d.downloadMessage(ctx, url, entry)
			if err != nil {
				return nil, err
			}

			values, err := d.decodeField(c, p, step, url, data)
			if err != nil {
				return nil, err
			}
			if err := reader.Put(p.Key, 0, p.LevelIndex, values); err != nil {
				return nil, fmt.Errorf("[GRIB] %s: %w", url, err)
			}

			Log.Debug().Str("model", d.modelName).Str("param", p.Name).Str("level", p.Level).Int("step", step).Msg("message downloaded")
		}

		ds := grid.New(fmt.Sprintf("%s %s f%03d", d.modelName, common.RunLabel(c.Run), step), d.lats, d.lons, d.convention, reader)
		ds.Model = d.modelName
		ds.Run = c.Run
		ds.StepHours = d.stepHours
		ds.Steps = []int{step}
		ds.Levels = d.levels
		ds.Variables = grib.Keys(d.params)
		ds.Units = grib.Units(d.params)

		datasets = append(datasets, ds)
	}

	return datasets, nil
}

func (d *IndexDownloader) getIndexFile(ctx context.Context, url string) (IndexData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+".idx", nil)
	if err != nil {
		return nil, fmt.Errorf("[DL] creating request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[DL] fetching index: %w", err)
	}
	defer resp.Body.Close()

	if err := fetch.CheckStatus(url+".idx", resp.StatusCode, http.StatusOK); err != nil {
		return nil, err
	}

	index, err := ParseIndex(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("[DL] %s.idx: %w", url, err)
	}
	if len(index) == 0 {
		return nil, fetch.NotAvailable(url+".idx", "empty inventory", nil)
	}

	return index, nil
}

// ParseIndex reads a wgrib2 style inventory:
//
//	1:0:d=2024030912:PRMSL:mean sea level:6 hour fcst:ENS=mean
func ParseIndex(r io.Reader) (IndexData, error) {
	type line struct {
		start       int
		name, level string
	}

	var lines []line
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), ":")
		if len(parts) < 5 {
			continue
		}

		start, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		lines = append(lines, line{start: start, name: parts[3], level: parts[4]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading index file: %w", err)
	}

	result := make(IndexData)
	for i, l := range lines {
		end := -1
		if i+1 < len(lines) {
			end = lines[i+1].start - 1
		}

		if _, ok := result[l.name]; !ok {
			result[l.name] = make(map[string]IndexEntry)
		}
		// first match wins, later duplicates are other ensemble statistics
		if _, ok := result[l.name][l.level]; !ok {
			result[l.name][l.level] = IndexEntry{Start: l.start, End: end}
		}
	}

	return result, nil
}

func (d *IndexDownloader) downloadMessage(ctx context.Context, url string, entry IndexEntry) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("[DL] creating request: %w", err)
	}

	if entry.End < 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", entry.Start))
	} else {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", entry.Start, entry.End))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[DL] getting url: %w", err)
	}
	defer resp.Body.Close()

	if err := fetch.CheckStatus(url, resp.StatusCode, http.StatusPartialContent); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fetch.NotAvailable(url, "body cut off", err)
	}

	if err := grib.Check(data); err != nil {
		return nil, fetch.NotAvailable(url, "incomplete message", err)
	}

	return data, nil
}

// decodeField decodes one message and lays it out on the configured axes.
// A message of another run means the file was not replaced yet.
func (d *IndexDownloader) decodeField(c fetch.Candidate, p grib.Param, step int, url string, data []byte) ([]float64, error) {
	msg, err := d.decode(data)
	if err != nil {
		return nil, fmt.Errorf("[GRIB] %s %s: %w", url, p.Name, err)
	}

	var window time.Duration
	if p.Accumulated() {
		window = time.Duration(d.stepHours) * time.Hour
	}
	if err := msg.CheckValid(common.ValidTime(c.Run, step), window); err != nil {
		return nil, fetch.NotAvailable(url, "stale file", err)
	}

	values, err := grib.Fit(msg, d.native, d.lats, d.lons)
	if err != nil {
		return nil, fmt.Errorf("[GRIB] %s %s: %w", url, p.Name, err)
	}
	return values, nil
}
