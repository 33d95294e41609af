package products

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"hstin/gridwx/common"
	"hstin/gridwx/grid"
)

type Style int

const (
	// FILLED draws a colour filled map.
	FILLED Style = iota
	// CONTOUR draws isolines.
	CONTOUR
	// MASK draws the area where a condition holds.
	MASK
)

// Input is one variable a product reads.
type Input struct {
	Key   string
	Level float64
}

type Product struct {
	Name  string
	Title string
	Units string
	Style Style
	// Palette names a colour map understood by the renderer.
	Palette string
	// Min and Max fix the colour range when Max > Min.
	Min, Max float64
	// Interval is the contour spacing for CONTOUR products.
	Interval float64
	Inputs   []Input
	Compute  func(in []*grid.Field) *grid.Field
}

// Level is the level label used in output paths.
func (p Product) Level() string {
	for _, in := range p.Inputs {
		if in.Level != common.NoLevel {
			return fmt.Sprintf("%gmb", in.Level)
		}
	}
	return "surface"
}

const (
	msToMph = 2.23694
	mmToIn  = 0.0393701

	redFlagRH   = 15.0
	redFlagWind = 25.0
)

func kelvinToF(k float64) float64 {
	return (k-273.15)*9/5 + 32
}

func windSpeed(u, v float64) float64 {
	return math.Hypot(u, v)
}

// saturationVaporPressure in hPa for a temperature in °C (Bolton 1980).
func saturationVaporPressure(c float64) float64 {
	return 6.112 * math.Exp(17.67*c/(c+243.5))
}

func vaporPressureDeficit(tempK, rh float64) float64 {
	es := saturationVaporPressure(tempK - 273.15)
	return es * (1 - math.Min(math.Max(rh, 0), 100)/100)
}

func surface(keys ...string) []Input {
	out := make([]Input, len(keys))
	for i, k := range keys {
		out[i] = Input{Key: k, Level: common.NoLevel}
	}
	return out
}

// Catalog holds every product by name.
var Catalog map[string]Product = map[string]Product{
	"relative_humidity": {
		Name: "relative_humidity", Title: "2 m relative humidity", Units: "%",
		Style: FILLED, Palette: "drywet", Min: 0, Max: 100,
		Inputs: surface("rh2m"),
		Compute: func(in []*grid.Field) *grid.Field {
			return in[0].Map("relative_humidity", "%", func(v float64) float64 { return v })
		},
	},
	"temperature": {
		Name: "temperature", Title: "2 m temperature", Units: "°F",
		Style: FILLED, Palette: "bluered", Min: -20, Max: 110,
		Inputs: surface("tmp2m"),
		Compute: func(in []*grid.Field) *grid.Field {
			return in[0].Map("temperature", "°F", kelvinToF)
		},
	},
	"wind_gust": {
		Name: "wind_gust", Title: "surface wind gust", Units: "mph",
		Style: FILLED, Palette: "blackbody", Min: 0, Max: 80,
		Inputs: surface("gustsfc"),
		Compute: func(in []*grid.Field) *grid.Field {
			return in[0].Map("wind_gust", "mph", func(v float64) float64 { return v * msToMph })
		},
	},
	"wind_speed": {
		Name: "wind_speed", Title: "10 m wind speed", Units: "mph",
		Style: FILLED, Palette: "blackbody", Min: 0, Max: 60,
		Inputs: surface("ugrd10m", "vgrd10m"),
		Compute: func(in []*grid.Field) *grid.Field {
			return grid.Combine("wind_speed", "mph", func(vs ...float64) float64 {
				return windSpeed(vs[0], vs[1]) * msToMph
			}, in...)
		},
	},
	"red_flag": {
		Name: "red_flag", Title: "red flag conditions (RH <= 15 %, wind >= 25 mph)", Units: "",
		Style: MASK, Palette: "redflag", Min: 0, Max: 1,
		Inputs: surface("rh2m", "ugrd10m", "vgrd10m"),
		Compute: func(in []*grid.Field) *grid.Field {
			return grid.Combine("red_flag", "", func(vs ...float64) float64 {
				if math.IsNaN(vs[0]) || math.IsNaN(vs[1]) || math.IsNaN(vs[2]) {
					return math.NaN()
				}
				if vs[0] <= redFlagRH && windSpeed(vs[1], vs[2])*msToMph >= redFlagWind {
					return 1
				}
				return 0
			}, in...)
		},
	},
	"hot_dry_windy": {
		Name: "hot_dry_windy", Title: "Hot-Dry-Windy index", Units: "hPa m/s",
		Style: FILLED, Palette: "blackbody", Min: 0, Max: 300,
		Inputs: surface("tmp2m", "rh2m", "ugrd10m", "vgrd10m"),
		Compute: func(in []*grid.Field) *grid.Field {
			return grid.Combine("hot_dry_windy", "hPa m/s", func(vs ...float64) float64 {
				return vaporPressureDeficit(vs[0], vs[1]) * windSpeed(vs[2], vs[3])
			}, in...)
		},
	},
	"heights_500": {
		Name: "heights_500", Title: "500 hPa geopotential height", Units: "dam",
		Style: CONTOUR, Palette: "bluered", Interval: 6,
		Inputs: []Input{{Key: "hgtprs", Level: 500}},
		Compute: func(in []*grid.Field) *grid.Field {
			return in[0].Map("heights_500", "dam", func(v float64) float64 { return v / 10 })
		},
	},
	"vorticity_500": {
		Name: "vorticity_500", Title: "500 hPa absolute vorticity", Units: "1e-5 1/s",
		Style: FILLED, Palette: "bluered", Min: -20, Max: 40,
		Inputs: []Input{{Key: "absvprs", Level: 500}},
		Compute: func(in []*grid.Field) *grid.Field {
			return in[0].Map("vorticity_500", "1e-5 1/s", func(v float64) float64 { return v * 1e5 })
		},
	},
	"mslp": {
		Name: "mslp", Title: "mean sea level pressure", Units: "hPa",
		Style: CONTOUR, Palette: "bluered", Interval: 4,
		Inputs: surface("prmslmsl"),
		Compute: func(in []*grid.Field) *grid.Field {
			return in[0].Map("mslp", "hPa", func(v float64) float64 { return v / 100 })
		},
	},
	"precipitation": {
		Name: "precipitation", Title: "precipitation", Units: "in",
		Style: FILLED, Palette: "precip", Min: 0, Max: 3,
		Inputs: surface("apcpsfc"),
		Compute: func(in []*grid.Field) *grid.Field {
			return in[0].Map("precipitation", "in", func(v float64) float64 { return v * mmToIn })
		},
	},
}

// Lookup resolves a product by name.
func Lookup(name string) (Product, error) {
	p, ok := Catalog[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Product{}, fmt.Errorf("unknown product %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

func Names() []string {
	names := make([]string, 0, len(Catalog))
	for name := range Catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Keys returns the variable keys and levels the products need.
func Keys(ps []Product) (keys []string, levels []float64) {
	seenKey := make(map[string]bool)
	seenLevel := make(map[float64]bool)
	for _, p := range ps {
		for _, in := range p.Inputs {
			if !seenKey[in.Key] {
				seenKey[in.Key] = true
				keys = append(keys, in.Key)
			}
			if in.Level != common.NoLevel && !seenLevel[in.Level] {
				seenLevel[in.Level] = true
				levels = append(levels, in.Level)
			}
		}
	}
	sort.Strings(keys)
	sort.Float64s(levels)
	return keys, levels
}

// Compute reads the inputs of p at a forecast hour and derives the product.
func Compute(ctx context.Context, p Product, src grid.Collection, forecastHour int) (*grid.Field, error) {
	fields := make([]*grid.Field, len(p.Inputs))
	for i, in := range p.Inputs {
		f, err := src.Read(ctx, in.Key, forecastHour, in.Level)
		if err != nil {
			return nil, fmt.Errorf("[PRODUCT] %s: %w", p.Name, err)
		}
		fields[i] = f
	}

	out := p.Compute(fields)
	out.Name = p.Name
	out.Units = p.Units
	return out, nil
}
