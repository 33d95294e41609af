package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"hstin/gridwx/borders"
	"hstin/gridwx/common"
	"hstin/gridwx/config"
	. "hstin/gridwx/helper"
	"hstin/gridwx/models/base"
	"hstin/gridwx/pipeline"
	"hstin/gridwx/products"
	"hstin/gridwx/server"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		Log.Fatal().Err(err).Msg("error loading environment")
	}

	app := &cli.App{
		Name:      "gridwx - Weather model maps from the newest available run",
		UsageText: "gridwx [global options] command [command options]",
		Flags:     config.Flags(),
		Before: func(cCtx *cli.Context) error {
			SetLevel(cCtx.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			plotCommand(),
			candidatesCommand(),
			modelsCommand(),
			regionsCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		Log.Error().Err(err).Msg("error")
		os.Exit(1)
	}
}

func modelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "model",
		Aliases:  []string{"m"},
		Usage:    "Model name (" + strings.Join(base.Names(), ", ") + ")",
		Required: true,
		EnvVars:  []string{"MODEL"},
	}
}

func atFlag() cli.Flag {
	return &cli.TimestampFlag{
		Name:     "at",
		Usage:    "Pretend the current time is this UTC time",
		Layout:   "2006-01-02T15:04",
		Timezone: time.UTC,
	}
}

func clock(cCtx *cli.Context) func() time.Time {
	if at := cCtx.Timestamp("at"); at != nil {
		t := at.UTC()
		return func() time.Time { return t }
	}
	return time.Now
}

func pipelineOptions(cCtx *cli.Context, cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		BordersDir: cfg.BordersDir,
		BordersURL: cfg.BordersURL,
		DataRoot:   cfg.DataRoot,
		OutputRoot: cfg.OutputRoot,
		Width:      cfg.Width,
		Height:     cfg.Height,
		HTTPClient: NewHTTPClient(cfg.HTTPTimeout),
		Now:        clock(cCtx),
	}
}

func plotCommand() *cli.Command {
	return &cli.Command{
		Name:  "plot",
		Usage: "Fetch the newest available run and draw maps",
		Flags: []cli.Flag{
			modelFlag(),
			atFlag(),
			&cli.StringFlag{
				Name:    "region",
				Aliases: []string{"r"},
				Value:   "conus",
				Usage:   "Region preset",
				EnvVars: []string{"REGION"},
			},
			&cli.StringSliceFlag{
				Name:    "products",
				Aliases: []string{"p"},
				Usage:   "Products to draw, all the model supports when empty (" + strings.Join(products.Names(), ", ") + ")",
				EnvVars: []string{"PRODUCTS"},
			},
			&cli.IntSliceFlag{
				Name:    "steps",
				Aliases: []string{"s"},
				Value:   cli.NewIntSlice(0),
				Usage:   "Forecast hours",
				EnvVars: []string{"STEPS"},
			},
			&cli.StringFlag{
				Name:    "borders",
				Aliases: []string{"b"},
				Value:   "states",
				Usage:   "Border overlay (" + strings.Join(borders.Names(), ", ") + ")",
				EnvVars: []string{"BORDERS"},
			},
			&cli.StringSliceFlag{
				Name:  "profile",
				Usage: "Draw a vertical profile at lat/lon, e.g. 39.7/-105",
			},
			&cli.BoolFlag{
				Name:    "netcdf",
				Value:   false,
				Usage:   "Also write each map's field as netCDF",
				EnvVars: []string{"NETCDF"},
			},
		},
		Action: func(cCtx *cli.Context) error {
			cfg, err := config.FromCLI(cCtx)
			if err != nil {
				return err
			}

			model, err := base.Lookup(cCtx.String("model"))
			if err != nil {
				return err
			}
			region := strings.ToLower(cCtx.String("region"))
			window, err := common.LookupRegion(cfg.Regions, region)
			if err != nil {
				return err
			}

			var selected []products.Product
			if names := cCtx.StringSlice("products"); len(names) > 0 {
				selected, err = server.GetProductOptions(strings.Join(names, ","))
				if err != nil {
					return err
				}
			} else {
				selected = supportedProducts(model)
			}

			profiles, err := parseProfiles(cCtx.StringSlice("profile"))
			if err != nil {
				return err
			}

			opts := pipelineOptions(cCtx, cfg)
			opts.Model = model
			opts.Region = region
			opts.Window = window
			opts.Products = selected
			opts.Steps = cCtx.IntSlice("steps")
			opts.Profiles = profiles
			opts.Borders = cCtx.String("borders")
			opts.NetCDF = cCtx.Bool("netcdf")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			manifest, err := pipeline.Run(ctx, opts)
			if err != nil {
				return err
			}

			Log.Info().Str("model", model.Name).Time("run", *manifest.Run).Bool("prior_day", manifest.PriorDay).Int("maps", len(manifest.Outputs)).Msg(manifest.Message)
			return nil
		},
	}
}

func candidatesCommand() *cli.Command {
	return &cli.Command{
		Name:  "candidates",
		Usage: "List the runs that would be tried, newest first",
		Flags: []cli.Flag{modelFlag(), atFlag()},
		Action: func(cCtx *cli.Context) error {
			model, err := base.Lookup(cCtx.String("model"))
			if err != nil {
				return err
			}
			for _, c := range model.Candidates(clock(cCtx)()) {
				fmt.Printf("%-22s %s\n", c, c.URL(nil))
			}
			return nil
		},
	}
}

func modelsCommand() *cli.Command {
	return &cli.Command{
		Name:  "models",
		Usage: "List the supported models",
		Action: func(cCtx *cli.Context) error {
			for _, m := range base.All() {
				fmt.Printf("%-14s %-9s %s\n", m.Name, m.Source, m.Description)
			}
			return nil
		},
	}
}

func regionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "regions",
		Usage: "List the region presets, including those of --regions",
		Action: func(cCtx *cli.Context) error {
			cfg, err := config.FromCLI(cCtx)
			if err != nil {
				return err
			}
			for _, name := range common.RegionNames(cfg.Regions) {
				fmt.Printf("%-14s %s\n", name, cfg.Regions[name])
			}
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API and the gRPC health service",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "http",
				Value:   true,
				Usage:   "Start the HTTP server",
				EnvVars: []string{"START_HTTP"},
			},
			&cli.BoolFlag{
				Name:    "grpc",
				Value:   false,
				Usage:   "Start the gRPC health server",
				EnvVars: []string{"START_GRPC"},
			},
			&cli.StringFlag{
				Name:    "http-port",
				Value:   "8081",
				Usage:   "HTTP server port",
				EnvVars: []string{"HTTP_PORT"},
			},
			&cli.StringFlag{
				Name:    "grpc-port",
				Value:   "50051",
				Usage:   "gRPC server port",
				EnvVars: []string{"GRPC_PORT"},
			},
			&cli.BoolFlag{
				Name:    "prefork",
				Value:   false,
				Usage:   "Run the HTTP server with one process per CPU",
				EnvVars: []string{"PREFORK"},
			},
		},
		Action: func(cCtx *cli.Context) error {
			cfg, err := config.FromCLI(cCtx)
			if err != nil {
				return err
			}

			health := server.NewHealth(base.Names())
			opts := server.Options{
				Regions:  cfg.Regions,
				Pipeline: pipelineOptions(cCtx, cfg),
				Prefork:  cCtx.Bool("prefork"),
			}
			opts.Pipeline.OnFetch = health.Report

			var wg sync.WaitGroup

			if cCtx.Bool("http") {
				wg.Add(1)
				go server.StartServer(cCtx.String("http-port"), opts)
			}

			if cCtx.Bool("grpc") {
				wg.Add(1)
				go server.StartGRPCServer(cCtx.String("grpc-port"), health)
			}

			wg.Wait()
			return nil
		},
	}
}

// supportedProducts lists the catalog products whose inputs model carries.
func supportedProducts(model base.Config) []products.Product {
	var out []products.Product
	for _, name := range products.Names() {
		p, _ := products.Lookup(name)
		ok := true
		for _, in := range p.Inputs {
			if !model.Supports(in.Key) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, p)
		}
	}
	return out
}

func parseProfiles(values []string) ([]pipeline.Point, error) {
	var points []pipeline.Point
	for _, v := range values {
		lat, lon, ok := strings.Cut(v, "/")
		if !ok {
			return nil, fmt.Errorf("profile %q is not lat/lon", v)
		}
		la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		if err != nil || la < -90 || la > 90 {
			return nil, fmt.Errorf("profile %q has an invalid latitude", v)
		}
		lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
		if err != nil || lo < -180 || lo > 180 {
			return nil, fmt.Errorf("profile %q has an invalid longitude", v)
		}
		points = append(points, pipeline.Point{Lat: la, Lon: lo})
	}
	return points, nil
}
