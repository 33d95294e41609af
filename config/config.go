// Package config holds the settings shared by every command. Values come from
// flags, which read the environment after an optional .env file is loaded.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"hstin/gridwx/borders"
	"hstin/gridwx/common"
	. "hstin/gridwx/helper"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

type Config struct {
	DataRoot    string        `validate:"required"`
	OutputRoot  string        `validate:"required"`
	BordersDir  string        `validate:"required"`
	BordersURL  string        `validate:"omitempty,url"`
	HTTPTimeout time.Duration `validate:"gt=0"`
	RegionsFile string        `validate:"omitempty,file"`
	LogLevel    string        `validate:"oneof=trace debug info warn warning error"`
	Width       int           `validate:"gte=200,lte=4000"`
	Height      int           `validate:"gte=200,lte=4000"`

	// Regions are the presets overlaid by RegionsFile.
	Regions map[string]common.Window `validate:"-"`
}

var validate = validator.New()

// LoadEnv reads .env style files into the environment. A missing default
// .env is not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil {
			Log.Debug().Err(err).Msg("no .env file loaded")
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("[CONFIG] loading %s: %w", strings.Join(files, ", "), err)
	}
	return nil
}

// Flags are the global flags every command understands.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "data",
			Value:   "data",
			Usage:   "Directory for model downloads",
			EnvVars: []string{"DATA_ROOT"},
		},
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Value:   "maps",
			Usage:   "Directory for rendered maps",
			EnvVars: []string{"OUTPUT_ROOT"},
		},
		&cli.StringFlag{
			Name:    "borders-dir",
			Value:   "borders",
			Usage:   "Directory for border shapefiles",
			EnvVars: []string{"BORDERS_DIR"},
		},
		&cli.StringFlag{
			Name:    "borders-url",
			Value:   borders.DefaultBaseURL,
			Usage:   "Base URL the border shapefiles are fetched from",
			EnvVars: []string{"BORDERS_URL"},
		},
		&cli.DurationFlag{
			Name:    "http-timeout",
			Value:   DefaultHTTPTimeout,
			Usage:   "Timeout of a single download",
			EnvVars: []string{"HTTP_TIMEOUT"},
		},
		&cli.StringFlag{
			Name:    "regions",
			Usage:   "TOML file with additional regions",
			EnvVars: []string{"REGIONS_FILE"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (trace, debug, info, warn, warning, error)",
			EnvVars: []string{"LOG_LEVEL"},
		},
		&cli.IntFlag{
			Name:    "width",
			Value:   1200,
			Usage:   "Map width in pixels",
			EnvVars: []string{"MAP_WIDTH"},
		},
		&cli.IntFlag{
			Name:    "height",
			Value:   900,
			Usage:   "Map height in pixels",
			EnvVars: []string{"MAP_HEIGHT"},
		},
	}
}

// FromCLI builds and validates the configuration from the global flags.
func FromCLI(cCtx *cli.Context) (*Config, error) {
	c := &Config{
		DataRoot:    cCtx.String("data"),
		OutputRoot:  cCtx.String("out"),
		BordersDir:  cCtx.String("borders-dir"),
		BordersURL:  cCtx.String("borders-url"),
		HTTPTimeout: cCtx.Duration("http-timeout"),
		RegionsFile: cCtx.String("regions"),
		LogLevel:    strings.ToLower(strings.TrimSpace(cCtx.String("log-level"))),
		Width:       cCtx.Int("width"),
		Height:      cCtx.Int("height"),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := c.LoadRegions(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("[CONFIG] %w", err)
	}
	return nil
}

type regionsFile struct {
	Regions map[string]common.Window `toml:"regions"`
}

// LoadRegions starts from the built-in presets and adds or replaces the
// regions of RegionsFile. Names are case-insensitive.
func (c *Config) LoadRegions() error {
	c.Regions = make(map[string]common.Window, len(common.Regions))
	for name, w := range common.Regions {
		c.Regions[name] = w
	}
	if c.RegionsFile == "" {
		return nil
	}

	f, err := os.Open(c.RegionsFile)
	if err != nil {
		return fmt.Errorf("[CONFIG] %w", err)
	}
	defer f.Close()

	var rf regionsFile
	if _, err := toml.NewDecoder(f).Decode(&rf); err != nil {
		return fmt.Errorf("[CONFIG] decoding %s: %w", c.RegionsFile, err)
	}

	for name, w := range rf.Regions {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("[CONFIG] region %s: %w", name, err)
		}
		c.Regions[strings.ToLower(name)] = w
	}

	Log.Debug().Str("file", c.RegionsFile).Int("regions", len(rf.Regions)).Msg("regions loaded")
	return nil
}
