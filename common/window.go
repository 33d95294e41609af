package common

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

// LonConvention is the longitude convention of a provider grid.
type LonConvention int

const (
	Signed180 LonConvention = iota
	Positive360
)

func (c LonConvention) String() string {
	if c == Positive360 {
		return "0..360"
	}
	return "-180..180"
}

// Window is a rectangular subset in degrees. User supplied windows are in the
// signed convention; In converts them for a provider without touching the
// receiver.
type Window struct {
	West  float64 `toml:"west" json:"west" validate:"gte=-180,lte=180,ltfield=East"`
	East  float64 `toml:"east" json:"east" validate:"gte=-180,lte=180"`
	South float64 `toml:"south" json:"south" validate:"gte=-90,lte=90,ltfield=North"`
	North float64 `toml:"north" json:"north" validate:"gte=-90,lte=90"`
}

var validate = validator.New()

// Validate checks a signed-convention window.
func (w Window) Validate() error {
	if err := validate.Struct(w); err != nil {
		return fmt.Errorf("invalid window %s: %w", w, err)
	}
	return nil
}

func (w Window) String() string {
	return fmt.Sprintf("[W %.2f E %.2f S %.2f N %.2f]", w.West, w.East, w.South, w.North)
}

// Global reports whether the window spans every longitude.
func (w Window) Global() bool {
	return w.East-w.West >= 360 || (w.West <= -180 && w.East >= 180)
}

// Wraps reports whether the window crosses the seam of its convention, which
// only happens after conversion (for example 350..10 in 0..360).
func (w Window) Wraps() bool {
	return w.West > w.East
}

// In returns the window expressed in the given longitude convention.
func (w Window) In(c LonConvention) Window {
	out := w

	switch c {
	case Positive360:
		if w.Global() {
			out.West, out.East = 0, 360
			return out
		}
		out.West = ToPositive360(w.West)
		out.East = ToPositive360(w.East)
		if out.East == 0 && w.East != 0 {
			out.East = 360
		}
	default:
		if w.Global() {
			out.West, out.East = -180, 180
			return out
		}
		out.West = ToSigned180(w.West)
		out.East = ToSigned180(w.East)
		if out.East == -180 && w.East != -180 {
			out.East = 180
		}
	}

	return out
}

// Center returns the centre point in the signed convention.
func (w Window) Center() (lat, lon float64) {
	lat = (w.South + w.North) / 2

	west, east := ToPositive360(w.West), ToPositive360(w.East)
	if east < west {
		east += 360
	}
	lon = ToSigned180((west + east) / 2)

	return lat, lon
}

// ContainsLon reports whether lon (any convention) falls inside the window.
func (w Window) ContainsLon(lon float64) bool {
	if w.Global() {
		return true
	}
	l := ToPositive360(lon)
	west, east := ToPositive360(w.West), ToPositive360(w.East)
	if east == 0 && w.East != 0 {
		east = 360
	}
	if west <= east {
		return l >= west && l <= east
	}
	return l >= west || l <= east
}

func ToPositive360(lon float64) float64 {
	l := math.Mod(lon, 360)
	if l < 0 {
		l += 360
	}
	return l
}

func ToSigned180(lon float64) float64 {
	l := ToPositive360(lon)
	if l >= 180 {
		l -= 360
	}
	return l
}
