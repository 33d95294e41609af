// Package pipeline runs one plotting job: fetch the newest available run of a
// model over a region and draw the requested products for each step.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"hstin/gridwx/borders"
	"hstin/gridwx/common"
	"hstin/gridwx/export"
	"hstin/gridwx/fetch"
	"hstin/gridwx/grid"
	. "hstin/gridwx/helper"
	"hstin/gridwx/models"
	"hstin/gridwx/models/base"
	"hstin/gridwx/products"
	"hstin/gridwx/render"

	"github.com/xhhuango/json"
)

// OpenerFactory builds the provider opener of a model.
type OpenerFactory func(cfg base.Config, opts models.OpenerOptions) (fetch.Opener, error)

// Point is a location for vertical profiles.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Options struct {
	Model    base.Config
	Region   string
	Window   common.Window
	Products []products.Product
	// Steps are forecast hours. Empty means the analysis only.
	Steps []int
	// Profiles are drawn at each step when the model has pressure levels.
	Profiles []Point

	// Borders names a border set, or borders.None.
	Borders    string
	BordersDir string
	BordersURL string

	DataRoot   string
	OutputRoot string
	NetCDF     bool
	Width      int
	Height     int

	HTTPClient *http.Client
	// Now defaults to time.Now.
	Now func() time.Time
	// NewOpener defaults to models.NewOpener.
	NewOpener OpenerFactory
	// OnFetch is told whether the fetch found a run.
	OnFetch func(model string, ok bool)
}

type Attempt struct {
	Run      time.Time `json:"run"`
	PriorDay bool      `json:"prior_day"`
	URL      string    `json:"url"`
	Error    string    `json:"error,omitempty"`
}

type Output struct {
	Product string `json:"product"`
	Level   string `json:"level"`
	Step    int    `json:"step"`
	Valid   string `json:"valid"`
	PNG     string `json:"png"`
	NetCDF  string `json:"netcdf,omitempty"`
}

// Manifest records what a run produced.
type Manifest struct {
	Model     string        `json:"model"`
	Region    string        `json:"region"`
	Window    common.Window `json:"window"`
	Borders   string        `json:"borders"`
	Run       *time.Time    `json:"run,omitempty"`
	PriorDay  bool          `json:"prior_day"`
	Message   string        `json:"message"`
	Attempts  []Attempt     `json:"attempts"`
	Outputs   []Output      `json:"outputs"`
	Profiles  []Output      `json:"profiles,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Load fetches the newest available run holding what the products and
// profiles of opts need. The manifest lists the attempts; no file is written.
func Load(ctx context.Context, opts Options) (*Manifest, grid.Collection, error) {
	opts = withDefaults(opts)
	if err := opts.Window.Validate(); err != nil {
		return nil, nil, fmt.Errorf("[PIPELINE] region %s: %w", opts.Region, err)
	}

	cfg := opts.Model
	keys, levels := products.Keys(opts.Products)
	if len(opts.Profiles) > 0 && len(cfg.Levels) > 0 {
		keys = appendMissing(keys, products.ProfileInputs...)
		levels = append(levels, cfg.Levels...)
	}

	scratch, err := ScratchFor(opts.DataRoot, cfg.Name)
	if err != nil {
		return nil, nil, err
	}

	opener, err := opts.NewOpener(cfg, models.OpenerOptions{
		Keys:       keys,
		Levels:     levels,
		Steps:      opts.Steps,
		Scratch:    scratch,
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		return nil, nil, err
	}

	manifest := &Manifest{
		Model:     cfg.Name,
		Region:    opts.Region,
		Window:    opts.Window,
		Borders:   opts.Borders,
		CreatedAt: opts.Now().UTC(),
	}

	fetcher := fetch.NewFetcher(fetch.FetcherOptions{Opener: opener, Scratch: scratch})
	result, err := fetcher.Fetch(ctx, cfg.Candidates(opts.Now()), opts.Window)

	manifest.Message = result.Message
	for _, a := range result.Attempts {
		attempt := Attempt{Run: a.Candidate.Run, PriorDay: a.Candidate.PriorDay, URL: a.Candidate.URL(nil)}
		if a.Err != nil {
			attempt.Error = a.Err.Error()
		}
		manifest.Attempts = append(manifest.Attempts, attempt)
	}
	if opts.OnFetch != nil {
		opts.OnFetch(cfg.Name, result.Succeeded)
	}
	if err != nil {
		return manifest, nil, err
	}

	run := result.Candidate.Run
	manifest.Run = &run
	manifest.PriorDay = result.Candidate.PriorDay
	return manifest, grid.Collection(result.Datasets), nil
}

func withDefaults(opts Options) Options {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewOpener == nil {
		opts.NewOpener = models.NewOpener
	}
	if len(opts.Steps) == 0 {
		opts.Steps = []int{0}
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewHTTPClient(DefaultHTTPTimeout)
	}
	if opts.Borders == "" {
		opts.Borders = borders.None
	}
	return opts
}

// Run fetches the data and renders every product. When no run is available
// the manifest is still written and the error wraps fetch.ErrExhausted.
func Run(ctx context.Context, opts Options) (*Manifest, error) {
	opts = withDefaults(opts)
	cfg := opts.Model

	var lines []borders.Line
	if opts.Borders != borders.None {
		if err := opts.Window.Validate(); err != nil {
			return nil, fmt.Errorf("[PIPELINE] region %s: %w", opts.Region, err)
		}
		var err error
		if lines, err = loadBorders(ctx, opts, opts.Borders); err != nil {
			return nil, err
		}
	}

	manifest, src, err := Load(ctx, opts)
	if err != nil {
		if errors.Is(err, fetch.ErrExhausted) {
			if werr := writeManifest(opts.OutputRoot, manifest); werr != nil {
				Log.Error().Err(werr).Msg("could not write manifest")
			}
		}
		return manifest, err
	}

	run := *manifest.Run

	mapOpts := render.MapOptions{
		Model:   cfg.Name,
		Region:  opts.Region,
		Window:  opts.Window,
		Borders: lines,
		Width:   opts.Width,
		Height:  opts.Height,
	}

	for _, step := range opts.Steps {
		valid := common.ValidTime(run, step).Format(time.RFC3339)

		for _, p := range opts.Products {
			if err := ctx.Err(); err != nil {
				return manifest, err
			}

			field, err := products.Compute(ctx, p, src, step)
			if err != nil {
				return manifest, err
			}

			out := Output{
				Product: p.Name,
				Level:   p.Level(),
				Step:    step,
				Valid:   valid,
				PNG:     render.OutputPath(opts.OutputRoot, cfg.Name, opts.Region, opts.Borders, p, run, step),
			}
			if err := render.SaveMap(out.PNG, field, p, mapOpts); err != nil {
				return manifest, err
			}
			if opts.NetCDF {
				out.NetCDF = export.Path(out.PNG)
				if err := export.WriteNetCDF(out.NetCDF, field); err != nil {
					return manifest, err
				}
			}

			Log.Info().Str("model", cfg.Name).Str("product", p.Name).Int("step", step).Str("file", out.PNG).Msg("map written")
			manifest.Outputs = append(manifest.Outputs, out)
		}

		if len(cfg.Levels) == 0 {
			continue
		}
		for _, pt := range opts.Profiles {
			out, err := renderProfile(ctx, opts, src, run, step, pt)
			if err != nil {
				return manifest, err
			}
			out.Valid = valid
			manifest.Profiles = append(manifest.Profiles, out)
		}
	}

	if err := writeManifest(opts.OutputRoot, manifest); err != nil {
		return manifest, err
	}
	return manifest, nil
}

func renderProfile(ctx context.Context, opts Options, src grid.Collection, run time.Time, step int, pt Point) (Output, error) {
	data, err := products.Profile(ctx, src, step, pt.Lat, pt.Lon)
	if err != nil {
		return Output{}, err
	}

	path := filepath.Join(opts.OutputRoot, opts.Model.Name, opts.Region, "profile",
		fmt.Sprintf("%s_f%03d_%.2f_%.2f.png", common.RunLabel(run), step, pt.Lat, pt.Lon))
	if err := render.SaveProfile(path, data, opts.Model.Name, run); err != nil {
		return Output{}, err
	}
	return Output{Product: "profile", Level: "isobaric", Step: step, PNG: path}, nil
}

func loadBorders(ctx context.Context, opts Options, name string) ([]borders.Line, error) {
	fo := borders.FetchOptions{Dir: opts.BordersDir, BaseURL: opts.BordersURL, HTTPClient: opts.HTTPClient}
	if err := borders.EnsureReferences(ctx, fo, name); err != nil {
		return nil, err
	}
	path, err := borders.Path(opts.BordersDir, name)
	if err != nil {
		return nil, err
	}
	return borders.Load(path, opts.Window)
}

// ManifestPath is where the manifest of a model and region is written.
func ManifestPath(root, model, region string) string {
	return filepath.Join(root, model, region, "manifest.json")
}

func writeManifest(root string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("[PIPELINE] encoding manifest: %w", err)
	}
	path := ManifestPath(root, m.Model, m.Region)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("[PIPELINE] creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("[PIPELINE] writing manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by Run.
func ReadManifest(root, model, region string) (*Manifest, error) {
	data, err := os.ReadFile(ManifestPath(root, model, region))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("[PIPELINE] decoding manifest: %w", err)
	}
	return &m, nil
}

func appendMissing(keys []string, more ...string) []string {
	for _, k := range more {
		found := false
		for _, have := range keys {
			if have == k {
				found = true
				break
			}
		}
		if !found {
			keys = append(keys, k)
		}
	}
	return keys
}
