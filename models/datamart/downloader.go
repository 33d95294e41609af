package datamart

import (
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hstin/gridwx/common"
	"hstin/gridwx/fetch"
	"hstin/gridwx/grib"
	"hstin/gridwx/grid"
	. "hstin/gridwx/helper"
)

// FileDownloader fetches products published as one GRIB2 file per
// parameter, level and step (ECCC datamart, UKMET on NOMADS). Files land in
// the model's scratch directory and are decoded from there.
type FileDownloader struct {
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
	scratch    *Scratch
	httpClient *http.Client
}

type FileDownloaderOptions struct {
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
	Decode grib.Decoder
	// Scratch receives the downloads. Without one files are kept in memory.
	Scratch    *Scratch
	HTTPClient *http.Client
}

func NewFileDownloader(options FileDownloaderOptions) *FileDownloader {
	decode := options.Decode
	if decode == nil {
		decode = grib.Decode
	}

	return &FileDownloader{
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
		scratch:    options.Scratch,
		httpClient: options.HTTPClient,
	}
}

func (d *FileDownloader) getGribFileUrl(c fetch.Candidate, p grib.Param, step int) string {
	return c.URL(map[string]string{
		"var":   p.Name,
		"level": p.Level,
		"fhour": fmt.Sprintf("%03d", step),
	})
}

// Open downloads every parameter of every step and returns one dataset per
// step.
func (d *FileDownloader) Open(ctx context.Context, c fetch.Candidate) ([]*grid.Dataset, error) {
	datasets := make([]*grid.Dataset, 0, len(d.steps))

	for _, step := range d.steps {
		reader := grid.NewMemoryReader(len(d.lats), len(d.lons))

		for _, p := range d.params {
			url := d.getGribFileUrl(c, p, step)

			data, err := d.downloadFile(ctx, url)
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

			Log.Info().Msgf("Downloaded %s %s f%03d", d.modelName, p.Name, step)
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

func (d *FileDownloader) downloadFile(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("[DL] creating request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[DL] getting url: %w", err)
	}
	defer resp.Body.Close()

	if err := fetch.CheckStatus(url, resp.StatusCode, http.StatusOK); err != nil {
		return nil, err
	}

	var body io.Reader = resp.Body
	if strings.HasSuffix(url, ".bz2") {
		body = bzip2.NewReader(resp.Body)
	}

	var data []byte
	if d.scratch == nil {
		data, err = io.ReadAll(body)
		if err != nil {
			return nil, fetch.NotAvailable(url, "download cut off", err)
		}
	} else {
		data, err = d.saveFile(url, body)
		if err != nil {
			return nil, err
		}
	}

	if err := grib.Check(data); err != nil {
		return nil, fetch.NotAvailable(url, "incomplete file", err)
	}

	return data, nil
}

func (d *FileDownloader) saveFile(url string, body io.Reader) ([]byte, error) {
	filePath := d.scratch.Path(strings.TrimSuffix(filepath.Base(url), ".bz2"))

	outputFile, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("[DL] creating file: %w", err)
	}

	if _, err = io.Copy(outputFile, body); err != nil {
		outputFile.Close()
		_ = os.Remove(filePath)
		return nil, fetch.NotAvailable(url, "download cut off", err)
	}
	if err := outputFile.Close(); err != nil {
		return nil, fmt.Errorf("[DL] closing file: %w", err)
	}

	gribFile, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("[DL] reading %s: %w", filePath, err)
	}

	return gribFile, nil
}

// decodeField decodes one message and lays it out on the configured axes.
// A message of another run means the file was not replaced yet.
func (d *FileDownloader) decodeField(c fetch.Candidate, p grib.Param, step int, url string, data []byte) ([]float64, error) {
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
