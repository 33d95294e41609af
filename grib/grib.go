package grib

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"hstin/gridwx/common"

	"github.com/hstin-de/ndfile"
)

var (
	// ErrIncomplete marks payloads that are not a whole GRIB2 message. Servers
	// hand these out while a run is still being written.
	ErrIncomplete = errors.New("incomplete GRIB message")
)

// Param is one field to pull from GRIB sources, resolved for a model.
type Param struct {
	// Key is the variable key the field is exposed under.
	Key string
	// Name and Level are the provider's names, e.g. "TMP" and "500 mb".
	Name  string
	Level string
	// LevelIndex is the index into the dataset levels, -1 for single level.
	LevelIndex int
}

// Accumulated reports whether the field is summed over its step.
func (p Param) Accumulated() bool {
	return common.Variables[p.Key].StepType == common.ACCUMULATED
}

// Decoder turns one GRIB2 message into a field.
type Decoder func(data []byte) (*Message, error)

// Check verifies that data holds complete GRIB2 messages: it starts with the
// "GRIB" indicator, every declared message length fits and ends in "7777".
func Check(data []byte) error {
	if len(data) < 16 || !bytes.Equal(data[:4], []byte("GRIB")) {
		return fmt.Errorf("%w: missing GRIB indicator", ErrIncomplete)
	}

	for off := 0; off < len(data); {
		if len(data)-off < 16 || !bytes.Equal(data[off:off+4], []byte("GRIB")) {
			return fmt.Errorf("%w: garbage at byte %d", ErrIncomplete, off)
		}
		edition := data[off+7]
		if edition != 2 {
			return fmt.Errorf("GRIB edition %d not supported", edition)
		}
		length := binary.BigEndian.Uint64(data[off+8 : off+16])
		if length < 20 || uint64(len(data)-off) < length {
			return fmt.Errorf("%w: message of %d bytes, %d received", ErrIncomplete, length, len(data)-off)
		}
		end := off + int(length)
		if !bytes.Equal(data[end-4:end], []byte("7777")) {
			return fmt.Errorf("%w: missing end section", ErrIncomplete)
		}
		off = end
	}

	return nil
}

// Decode is the default Decoder, backed by ndfile.
func Decode(data []byte) (m *Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("[GRIB] decoding: %v", r)
		}
	}()

	file := ndfile.ProcessGRIB(data)
	if len(file.DataValues) == 0 {
		return nil, fmt.Errorf("[GRIB] message without data values")
	}

	values := make([]float64, len(file.DataValues))
	for i, v := range file.DataValues {
		if v > 9.9e20 {
			v = math.NaN()
		}
		values[i] = v
	}

	return &Message{
		Values: values,
		Valid:  file.ReferenceTime,
		Geometry: Geometry{
			Nx:       file.Nx,
			Ny:       file.Ny,
			La1:      file.La1,
			La2:      file.La2,
			Lo1:      file.Lo1,
			Lo2:      file.Lo2,
			DX:       file.DX,
			DY:       file.DY,
			ScanMode: file.ScanMode,
		},
	}, nil
}

// Keys lists the distinct variable keys of params in order.
func Keys(params []Param) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, p := range params {
		if !seen[p.Key] {
			seen[p.Key] = true
			keys = append(keys, p.Key)
		}
	}
	return keys
}

// Units returns the catalog units of params by key.
func Units(params []Param) map[string]string {
	units := make(map[string]string)
	for _, p := range params {
		if v, ok := common.Variables[p.Key]; ok {
			units[p.Key] = v.Unit
		}
	}
	return units
}
