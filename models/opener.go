// Package models builds the provider opener of a configured model.
package models

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"hstin/gridwx/fetch"
	"hstin/gridwx/grib"
	. "hstin/gridwx/helper"
	"hstin/gridwx/models/base"
	"hstin/gridwx/models/datamart"
	"hstin/gridwx/models/noaa"
)

type OpenerOptions struct {
	// Keys and Levels restrict what GRIB sources download. GDS sources read
	// lazily and ignore them.
	Keys   []string
	Levels []float64
	// Steps are the forecast hours GRIB sources download.
	Steps      []int
	Scratch    *Scratch
	HTTPClient *http.Client
	Decode     grib.Decoder
}

// NewOpener returns the opener matching the source kind of cfg.
func NewOpener(cfg base.Config, opts OpenerOptions) (fetch.Opener, error) {
	for _, key := range opts.Keys {
		if !cfg.Supports(key) {
			return nil, fmt.Errorf("[MODELS] %s does not provide %s", cfg.Name, key)
		}
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = NewHTTPClient(DefaultHTTPTimeout)
	}

	switch cfg.Source {
	case base.SourceGDS:
		return noaa.NewGDSModel(noaa.GDSModelOptions{
			ModelName:  cfg.Name,
			Variables:  cfg.Variables,
			StepHours:  cfg.StepHours,
			Convention: cfg.Convention,
			HTTPClient: opts.HTTPClient,
		}), nil

	case base.SourceGRIBIndex, base.SourceGRIBFile:
		levels := usableLevels(cfg, opts.Levels)
		params, err := ResolveParams(cfg, opts.Keys, levels)
		if err != nil {
			return nil, err
		}
		steps := opts.Steps
		if len(steps) == 0 {
			steps = []int{0}
		}
		for _, s := range steps {
			if !cfg.HasStep(s) {
				return nil, fmt.Errorf("[MODELS] %s has no forecast hour %d (every %dh up to %d)", cfg.Name, s, cfg.StepHours, cfg.MaxStep)
			}
		}
		lats, lons := cfg.Grid.Axes()

		if cfg.Source == base.SourceGRIBIndex {
			return noaa.NewIndexDownloader(noaa.IndexDownloaderOptions{
				ModelName:  cfg.Name,
				Params:     params,
				Steps:      steps,
				StepHours:  cfg.StepHours,
				Levels:     levels,
				Lats:       lats,
				Lons:       lons,
				Convention: cfg.Convention,
				Native:     cfg.Native,
				Decode:     opts.Decode,
				HTTPClient: opts.HTTPClient,
			}), nil
		}
		return datamart.NewFileDownloader(datamart.FileDownloaderOptions{
			ModelName:  cfg.Name,
			Params:     params,
			Steps:      steps,
			StepHours:  cfg.StepHours,
			Levels:     levels,
			Lats:       lats,
			Lons:       lons,
			Convention: cfg.Convention,
			Native:     cfg.Native,
			Decode:     opts.Decode,
			Scratch:    opts.Scratch,
			HTTPClient: opts.HTTPClient,
		}), nil
	}

	return nil, fmt.Errorf("[MODELS] %s has unknown source %s", cfg.Name, cfg.Source)
}

// usableLevels keeps the requested levels the model carries, all of them when
// none were requested.
func usableLevels(cfg base.Config, requested []float64) []float64 {
	if len(requested) == 0 {
		return append([]float64(nil), cfg.Levels...)
	}
	var out []float64
	seen := make(map[float64]bool)
	for _, l := range requested {
		if seen[l] {
			continue
		}
		for _, have := range cfg.Levels {
			if l == have {
				seen[l] = true
				out = append(out, l)
				break
			}
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}

// ResolveParams expands the GRIB addressing of keys. Isobaric keys get one
// param per level with the level filled into the provider's level name.
func ResolveParams(cfg base.Config, keys []string, levels []float64) ([]grib.Param, error) {
	if len(keys) == 0 {
		for k := range cfg.GribParams {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	var params []grib.Param
	for _, key := range keys {
		gp, ok := cfg.GribParams[key]
		if !ok {
			return nil, fmt.Errorf("[MODELS] %s has no GRIB parameter for %s", cfg.Name, key)
		}

		if !strings.Contains(gp.Level, "%") {
			params = append(params, grib.Param{Key: key, Name: gp.Name, Level: gp.Level, LevelIndex: -1})
			continue
		}

		if len(levels) == 0 {
			return nil, fmt.Errorf("[MODELS] %s: %s needs a pressure level", cfg.Name, key)
		}
		for i, l := range levels {
			params = append(params, grib.Param{
				Key:        key,
				Name:       gp.Name,
				Level:      fmt.Sprintf(gp.Level, l),
				LevelIndex: i,
			})
		}
	}
	return params, nil
}
