package grid

import (
	"math"
	"time"
)

// Field is one 2D slice of a dataset, row-major with len(Lats) rows.
type Field struct {
	Name         string
	Units        string
	Run          time.Time
	ForecastHour int
	Level        float64
	Lats         []float64
	Lons         []float64
	Values       []float64
}

func (f *Field) At(lat, lon int) float64 {
	return f.Values[lat*len(f.Lons)+lon]
}

// Map returns a copy of the field with fn applied to every value.
func (f *Field) Map(name, units string, fn func(v float64) float64) *Field {
	out := f.like(name, units)
	for i, v := range f.Values {
		out.Values[i] = fn(v)
	}
	return out
}

// Combine applies fn pointwise over fields of identical shape.
func Combine(name, units string, fn func(vs ...float64) float64, fields ...*Field) *Field {
	out := fields[0].like(name, units)
	args := make([]float64, len(fields))
	for i := range out.Values {
		for j, f := range fields {
			args[j] = f.Values[i]
		}
		out.Values[i] = fn(args...)
	}
	return out
}

func (f *Field) like(name, units string) *Field {
	return &Field{
		Name:         name,
		Units:        units,
		Run:          f.Run,
		ForecastHour: f.ForecastHour,
		Level:        f.Level,
		Lats:         f.Lats,
		Lons:         f.Lons,
		Values:       make([]float64, len(f.Values)),
	}
}

// Nearest returns the value of the grid point closest to lat/lon. Longitudes
// are compared modulo 360.
func (f *Field) Nearest(lat, lon float64) float64 {
	bi, bj := 0, 0
	best := math.Inf(1)
	for i, la := range f.Lats {
		if d := math.Abs(la - lat); d < best {
			best, bi = d, i
		}
	}
	best = math.Inf(1)
	for j, lo := range f.Lons {
		d := math.Abs(math.Mod(lo-lon+540, 360) - 180)
		if d < best {
			best, bj = d, j
		}
	}
	return f.At(bi, bj)
}
