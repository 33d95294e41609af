package server

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"hstin/gridwx/borders"
	"hstin/gridwx/common"
	"hstin/gridwx/fetch"
	"hstin/gridwx/grid"
	. "hstin/gridwx/helper"
	"hstin/gridwx/models/base"
	"hstin/gridwx/pipeline"
	"hstin/gridwx/products"

	"github.com/gofiber/fiber/v2"
	"github.com/xhhuango/json"
	"github.com/zsefvlol/timezonemapper"
)

type ModelResponse struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Source      string   `json:"source"`
	RunHours    []int    `json:"run_hours"`
	Latency     string   `json:"latency"`
	LookBack    string   `json:"look_back"`
	StepHours   int      `json:"step_hours"`
	MaxStep     int      `json:"max_step"`
	Convention  string   `json:"convention"`
	Variables   []string `json:"variables"`
}

type CandidateResponse struct {
	Run      time.Time `json:"run"`
	PriorDay bool      `json:"prior_day"`
	URL      string    `json:"url"`
}

type PointResponse struct {
	CalculationTime int64                 `json:"calculation_time"`
	Model           string                `json:"model"`
	Run             time.Time             `json:"run"`
	PriorDay        bool                  `json:"prior_day"`
	Latitude        float64               `json:"latitude"`
	Longitude       float64               `json:"longitude"`
	UTCOffset       int                   `json:"utc_offset"`
	Timezone        string                `json:"timezone"`
	Steps           []int                 `json:"steps"`
	Valid           []int64               `json:"valid"`
	Values          map[string][]*float64 `json:"values"`
}

type Options struct {
	// Regions defaults to common.Regions.
	Regions map[string]common.Window
	// Pipeline carries the roots, clients and clock used for each request.
	Pipeline pipeline.Options
	Prefork  bool
}

func NewApp(opts Options) *fiber.App {
	if opts.Regions == nil {
		opts.Regions = common.Regions
	}

	app := fiber.New(fiber.Config{
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		Prefork:               opts.Prefork,
		DisableStartupMessage: true,
		ServerHeader:          "gridwx",
	})

	app.Get("/models", func(c *fiber.Ctx) error {
		out := make([]ModelResponse, 0)
		for _, cfg := range base.All() {
			out = append(out, modelResponse(cfg))
		}
		return c.JSON(out)
	})

	app.Get("/regions", func(c *fiber.Ctx) error {
		return c.JSON(opts.Regions)
	})

	app.Get("/candidates", func(c *fiber.Ctx) error {
		cfg, err := base.Lookup(c.Query("model"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		at := now(opts)
		if s := c.Query("at"); s != "" {
			if at, err = time.Parse(time.RFC3339, s); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid time, use RFC 3339"})
			}
		}

		out := make([]CandidateResponse, 0)
		for _, cand := range cfg.Candidates(at) {
			out = append(out, CandidateResponse{Run: cand.Run, PriorDay: cand.PriorDay, URL: cand.URL(nil)})
		}
		return c.JSON(out)
	})

	app.Get("/plot", func(c *fiber.Ctx) error {
		cfg, err := base.Lookup(c.Query("model"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		regionName := c.Query("region", "conus")
		window, err := common.LookupRegion(opts.Regions, regionName)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		p, err := products.Lookup(c.Query("product"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		if err := checkSupported(cfg, p); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		step := c.QueryInt("step")
		if !cfg.HasStep(step) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid step"})
		}

		borderSet := c.Query("borders", borders.None)
		if _, err := borders.Path("", borderSet); err != nil && borderSet != borders.None {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		po := opts.Pipeline
		po.Model = cfg
		po.Region = regionName
		po.Window = window
		po.Products = []products.Product{p}
		po.Steps = []int{step}
		po.Profiles = nil
		po.Borders = borderSet

		manifest, err := pipeline.Run(c.UserContext(), po)
		if err != nil {
			return fetchError(c, manifest, err)
		}

		data, err := os.ReadFile(manifest.Outputs[0].PNG)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error reading map"})
		}
		c.Set(fiber.HeaderContentType, "image/png")
		return c.Send(data)
	})

	app.Get("/point", func(c *fiber.Ctx) error {
		startCalculation := time.Now()

		cfg, err := base.Lookup(c.Query("model"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		latitude := c.QueryFloat("lat")
		if latitude < -90 || latitude > 90 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid latitude"})
		}

		longitude := c.QueryFloat("lng")
		if longitude < -180 || longitude > 180 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid longitude"})
		}

		matched, err := GetProductOptions(c.Query("products"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		for _, p := range matched {
			if err := checkSupported(cfg, p); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
		}

		steps, err := parseSteps(c.Query("steps"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		for _, step := range steps {
			if !cfg.HasStep(step) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("Invalid step %d, %s runs every %dh up to %d", step, cfg.Name, cfg.StepHours, cfg.MaxStep)})
			}
		}

		po := opts.Pipeline
		po.Model = cfg
		po.Region = "point"
		po.Window = pointWindow(latitude, longitude)
		po.Products = matched
		po.Steps = steps
		po.Profiles = nil

		manifest, src, err := pipeline.Load(c.UserContext(), po)
		if err != nil {
			return fetchError(c, manifest, err)
		}

		timezone := timezonemapper.LatLngToTimezoneString(latitude, longitude)
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			loc = time.UTC
		}
		_, offset := time.Now().In(loc).Zone()

		run := *manifest.Run
		valid := make([]int64, len(steps))
		for i, step := range steps {
			valid[i] = common.ValidTime(run, step).Unix() * 1000
		}

		ctx := c.UserContext()
		values, err := sampleProducts(src, matched, steps, latitude, longitude, func(p products.Product, src grid.Collection, step int) (*grid.Field, error) {
			return products.Compute(ctx, p, src, step)
		})
		if err != nil {
			Log.Error().Err(err).Str("model", cfg.Name).Msg("sampling products failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error computing products"})
		}

		return c.JSON(PointResponse{
			CalculationTime: time.Since(startCalculation).Microseconds(),
			Model:           cfg.Name,
			Run:             run,
			PriorDay:        manifest.PriorDay,
			Latitude:        latitude,
			Longitude:       longitude,
			UTCOffset:       offset * 1000,
			Timezone:        timezone,
			Steps:           steps,
			Valid:           valid,
			Values:          values,
		})
	})

	return app
}

func StartServer(port string, opts Options) {
	app := NewApp(opts)

	Log.Info().Msg("HTTP server started on port " + port)

	Log.Fatal().Err(app.Listen(":" + port)).Msg("Failed to start HTTP server")
}

func now(opts Options) time.Time {
	if opts.Pipeline.Now != nil {
		return opts.Pipeline.Now()
	}
	return time.Now()
}

func modelResponse(cfg base.Config) ModelResponse {
	var variables []string
	for key := range common.Variables {
		if cfg.Supports(key) {
			variables = append(variables, key)
		}
	}
	sort.Strings(variables)

	return ModelResponse{
		Name:        cfg.Name,
		Description: cfg.Description,
		Source:      cfg.Source.String(),
		RunHours:    cfg.Schedule.RunHours,
		Latency:     cfg.Schedule.Latency.String(),
		LookBack:    cfg.Schedule.LookBack.String(),
		StepHours:   cfg.StepHours,
		MaxStep:     cfg.MaxStep,
		Convention:  cfg.Convention.String(),
		Variables:   variables,
	}
}

func checkSupported(cfg base.Config, p products.Product) error {
	for _, in := range p.Inputs {
		if !cfg.Supports(in.Key) {
			return errors.New(cfg.Name + " does not provide " + in.Key + " for " + p.Name)
		}
	}
	return nil
}

// pointWindow is a small window around a point, clipped to the globe.
func pointWindow(lat, lon float64) common.Window {
	return common.Window{
		West:  math.Max(-180, lon-1),
		East:  math.Min(180, lon+1),
		South: math.Max(-90, lat-1),
		North: math.Min(90, lat+1),
	}
}

func fetchError(c *fiber.Ctx, manifest *pipeline.Manifest, err error) error {
	if errors.Is(err, fetch.ErrExhausted) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":    manifest.Message,
			"attempts": manifest.Attempts,
		})
	}
	if errors.Is(err, grid.ErrOutsideGrid) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Region is outside the model grid"})
	}
	Log.Error().Err(err).Msg("request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error getting data"})
}
