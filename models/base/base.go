package base

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"hstin/gridwx/common"
	"hstin/gridwx/fetch"
	"hstin/gridwx/grib"
)

// Model is the closed set of supported model products.
type Model int

const (
	GFS0p25 Model = iota
	GFS0p25Hourly
	GFS0p50
	NAM
	NAMHourly
	RAP
	RAP32
	GEFSMean
	CMCEnsMean
	UKMET
	RDPA
)

// Source is how a model's data is reached.
type Source int

const (
	// SourceGDS is a NOMADS GrADS data server (OPeNDAP) dataset.
	SourceGDS Source = iota
	// SourceGRIBIndex is a GRIB2 file with an .idx inventory, read with HTTP ranges.
	SourceGRIBIndex
	// SourceGRIBFile is one GRIB2 file per variable, level and step.
	SourceGRIBFile
)

func (s Source) String() string {
	switch s {
	case SourceGDS:
		return "opendap"
	case SourceGRIBIndex:
		return "grib-idx"
	default:
		return "grib-file"
	}
}

// GribParam addresses a variable in GRIB sources. Level may hold a %g verb
// that is replaced by the isobaric level in hPa.
type GribParam struct {
	Name  string
	Level string
}

// GribGrid is the regular lat/lon geometry of a GRIB product.
type GribGrid struct {
	LatFirst float64
	LonFirst float64
	DLat     float64
	DLon     float64
	Nlat     int
	Nlon     int
}

func (g GribGrid) Axes() (lats, lons []float64) {
	lats = make([]float64, g.Nlat)
	for i := range lats {
		lats[i] = g.LatFirst + float64(i)*g.DLat
	}
	lons = make([]float64, g.Nlon)
	for j := range lons {
		lons[j] = g.LonFirst + float64(j)*g.DLon
	}
	return lats, lons
}

type Config struct {
	Model       Model
	Name        string
	Description string
	Schedule    fetch.Schedule
	URLFormat   string
	Convention  common.LonConvention
	Source      Source
	// StepHours is the spacing of forecast steps, MaxStep the last forecast hour.
	StepHours int
	MaxStep   int
	// Variables maps variable keys to the provider's names (GDS sources).
	Variables map[string]string
	// GribParams maps variable keys to GRIB addressing (GRIB sources).
	GribParams map[string]GribParam
	Levels     []float64
	// Grid is the lat/lon grid GRIB fields are served on. Sources with a
	// Native projection are resampled onto it.
	Grid   GribGrid
	Native *grib.PolarStereographic
}

// HasStep reports whether the model publishes the forecast hour.
func (c Config) HasStep(forecastHour int) bool {
	return forecastHour >= 0 && forecastHour <= c.MaxStep && forecastHour%c.StepHours == 0
}

// Supports reports whether the model carries a variable key.
func (c Config) Supports(key string) bool {
	if c.Source == SourceGDS {
		_, ok := c.Variables[key]
		return ok
	}
	_, ok := c.GribParams[key]
	return ok
}

// Candidates lists the runs to try at now.
func (c Config) Candidates(now time.Time) []fetch.Candidate {
	return fetch.Candidates(now, c.Schedule, c.Name, c.URLFormat)
}

func (m Model) String() string {
	if c, ok := registry[m]; ok {
		return c.Name
	}
	return fmt.Sprintf("Model(%d)", int(m))
}

// Get returns the configuration of m.
func Get(m Model) Config {
	return registry[m]
}

// Lookup resolves a model by name, case-insensitively.
func Lookup(name string) (Config, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, c := range registry {
		if strings.ToLower(c.Name) == want {
			return c, nil
		}
	}
	return Config{}, fmt.Errorf("model %q not found, available models are: %s", name, strings.Join(Names(), ", "))
}

// All returns every configured model in declaration order.
func All() []Config {
	out := make([]Config, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

func Names() []string {
	var names []string
	for _, c := range All() {
		names = append(names, c.Name)
	}
	return names
}
