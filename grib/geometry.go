package grib

import (
	"errors"
	"fmt"
	"math"
	"time"

	"hstin/gridwx/common"
)

var (
	// ErrUnsupportedGrid marks messages on a grid template gridwx cannot lay
	// out, such as a projection without a configured description.
	ErrUnsupportedGrid = errors.New("unsupported grid template")

	// ErrGridMismatch means the message grid differs from the configured one.
	ErrGridMismatch = errors.New("grid differs from configuration")

	// ErrStale means a file carries data of another run than its name says.
	ErrStale = errors.New("message from another run")
)

const (
	// scan mode flags of GRIB2 code table 3.4
	scanWestward    = 0x80
	scanNorthward   = 0x40
	scanColumnMajor = 0x20

	// GRIB2 stores angles in micro-degrees
	degreeTolerance = 1e-3
)

// Geometry is the grid section of a message as ecCodes reports it. DX and DY
// are zero for projected grids, which carry their increments in metres.
type Geometry struct {
	Nx, Ny   int
	La1, La2 float64
	Lo1, Lo2 float64
	DX, DY   float64
	ScanMode int
}

// Message is one decoded GRIB2 field.
type Message struct {
	Values []float64
	// Valid is the reference time plus the forecast time. For accumulations
	// this is the start of the accumulation interval.
	Valid    time.Time
	Geometry Geometry
}

// RegularGeometry describes a lat/lon grid with the given axes as it would
// be encoded, first point first.
func RegularGeometry(lats, lons []float64) Geometry {
	g := Geometry{Nx: len(lons), Ny: len(lats)}
	if len(lats) > 0 {
		g.La1, g.La2 = lats[0], lats[len(lats)-1]
		g.DY = 1
		if len(lats) > 1 {
			g.DY = math.Abs(lats[1] - lats[0])
		}
		if g.La2 > g.La1 {
			g.ScanMode |= scanNorthward
		}
	}
	if len(lons) > 0 {
		g.Lo1, g.Lo2 = common.ToPositive360(lons[0]), common.ToPositive360(lons[len(lons)-1])
		g.DX = 1
		if len(lons) > 1 {
			g.DX = math.Abs(lons[1] - lons[0])
		}
	}
	return g
}

func near(a, b float64) bool {
	return math.Abs(a-b) < degreeTolerance
}

func nearLon(a, b float64) bool {
	return math.Abs(math.Mod(a-b+540, 360)-180) < degreeTolerance
}

// checkLatLon verifies that g is a row-major lat/lon grid over exactly the
// given axes, so values can be stored without reordering.
func (g Geometry) checkLatLon(lats, lons []float64) error {
	if g.DX <= 0 || g.DY <= 0 {
		return fmt.Errorf("%w: no lat/lon increments, grid is projected", ErrUnsupportedGrid)
	}
	if g.ScanMode&scanColumnMajor != 0 {
		return fmt.Errorf("%w: scan mode %d is column major", ErrUnsupportedGrid, g.ScanMode)
	}
	if g.Nx != len(lons) || g.Ny != len(lats) {
		return fmt.Errorf("%w: message is %dx%d, configured %dx%d", ErrGridMismatch, g.Ny, g.Nx, len(lats), len(lons))
	}
	if !near(g.La1, lats[0]) || !near(g.La2, lats[len(lats)-1]) {
		return fmt.Errorf("%w: latitudes run %g..%g, configured %g..%g", ErrGridMismatch, g.La1, g.La2, lats[0], lats[len(lats)-1])
	}
	if !nearLon(g.Lo1, lons[0]) || !nearLon(g.Lo2, lons[len(lons)-1]) {
		return fmt.Errorf("%w: longitudes run %g..%g, configured %g..%g", ErrGridMismatch, g.Lo1, g.Lo2, lons[0], lons[len(lons)-1])
	}
	return nil
}

// PolarStereographic describes a north polar stereographic grid on a
// sphere, as GRIB2 template 3.20 encodes it.
type PolarStereographic struct {
	Nx, Ny int
	// La1 and Lo1 locate the first grid point.
	La1, Lo1 float64
	// LoV is the meridian parallel to the y axis, LaD the latitude where Dx
	// and Dy are true.
	LoV, LaD float64
	// Dx and Dy are in metres.
	Dx, Dy float64
	Radius float64
}

func (p PolarStereographic) project(lat, lon float64) (x, y float64) {
	const rad = math.Pi / 180
	rho := p.Radius * (1 + math.Sin(p.LaD*rad)) * math.Tan(math.Pi/4-lat*rad/2)
	lambda := (lon - p.LoV) * rad
	return rho * math.Sin(lambda), -rho * math.Cos(lambda)
}

func (p PolarStereographic) check(g Geometry) error {
	if g.Nx != p.Nx || g.Ny != p.Ny {
		return fmt.Errorf("%w: message is %dx%d, configured %dx%d", ErrGridMismatch, g.Ny, g.Nx, p.Ny, p.Nx)
	}
	if !near(g.La1, p.La1) || !nearLon(g.Lo1, p.Lo1) {
		return fmt.Errorf("%w: first point %g,%g, configured %g,%g", ErrGridMismatch, g.La1, g.Lo1, p.La1, p.Lo1)
	}
	if g.ScanMode&(scanWestward|scanColumnMajor) != 0 || g.ScanMode&scanNorthward == 0 {
		return fmt.Errorf("%w: polar stereographic scan mode %d", ErrUnsupportedGrid, g.ScanMode)
	}
	return nil
}

// Resample picks the nearest native point for every point of the lat/lon
// grid. Points off the native grid are NaN.
func (p PolarStereographic) Resample(values, lats, lons []float64) []float64 {
	x0, y0 := p.project(p.La1, p.Lo1)

	out := make([]float64, len(lats)*len(lons))
	for i, lat := range lats {
		for j, lon := range lons {
			x, y := p.project(lat, lon)
			col := int(math.Round((x - x0) / p.Dx))
			row := int(math.Round((y - y0) / p.Dy))
			if col < 0 || col >= p.Nx || row < 0 || row >= p.Ny {
				out[i*len(lons)+j] = math.NaN()
				continue
			}
			out[i*len(lons)+j] = values[row*p.Nx+col]
		}
	}
	return out
}

// Fit returns the values of m laid out on the lat/lon axes. Messages on a
// native projection are resampled; lat/lon messages must match the axes.
func Fit(m *Message, native *PolarStereographic, lats, lons []float64) ([]float64, error) {
	if native != nil {
		if err := native.check(m.Geometry); err != nil {
			return nil, err
		}
		if len(m.Values) != native.Nx*native.Ny {
			return nil, fmt.Errorf("%w: %d values for %dx%d points", ErrGridMismatch, len(m.Values), native.Ny, native.Nx)
		}
		return native.Resample(m.Values, lats, lons), nil
	}

	if err := m.Geometry.checkLatLon(lats, lons); err != nil {
		return nil, err
	}
	if len(m.Values) != len(lats)*len(lons) {
		return nil, fmt.Errorf("%w: %d values for %dx%d points", ErrGridMismatch, len(m.Values), len(lats), len(lons))
	}
	return m.Values, nil
}

// CheckValid compares the valid time of m with want. Accumulations report
// the start of their interval, so they may lie up to window before want.
// Messages without a time pass.
func (m *Message) CheckValid(want time.Time, window time.Duration) error {
	if m.Valid.IsZero() {
		return nil
	}
	if m.Valid.After(want) || m.Valid.Before(want.Add(-window)) {
		return fmt.Errorf("%w: valid %s, want %s", ErrStale, m.Valid.UTC().Format(time.RFC3339), want.UTC().Format(time.RFC3339))
	}
	return nil
}
