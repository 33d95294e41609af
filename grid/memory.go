package grid

import (
	"context"
	"fmt"
)

// MemoryReader serves fields decoded in full, such as GRIB messages.
type MemoryReader struct {
	nlat, nlon int
	fields     map[string][]float64
}

func NewMemoryReader(nlat, nlon int) *MemoryReader {
	return &MemoryReader{nlat: nlat, nlon: nlon, fields: make(map[string][]float64)}
}

func fieldKey(variable string, step, level int) string {
	return fmt.Sprintf("%s/%d/%d", variable, step, level)
}

// Put stores a full field, row-major in native order.
func (m *MemoryReader) Put(variable string, step, level int, values []float64) error {
	if len(values) != m.nlat*m.nlon {
		return fmt.Errorf("%s has %d values, grid is %dx%d", variable, len(values), m.nlat, m.nlon)
	}
	m.fields[fieldKey(variable, step, level)] = values
	return nil
}

func (m *MemoryReader) ReadSlab(ctx context.Context, req SlabRequest) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	values, ok := m.fields[fieldKey(req.Variable, req.Step, req.Level)]
	if !ok {
		return nil, fmt.Errorf("%s step %d level %d: %w", req.Variable, req.Step, req.Level, ErrNoVariable)
	}
	if req.Lat.Start < 0 || req.Lat.End >= m.nlat || req.Lon.Start < 0 || req.Lon.End >= m.nlon {
		return nil, fmt.Errorf("slab %v/%v outside %dx%d: %w", req.Lat, req.Lon, m.nlat, m.nlon, ErrOutsideGrid)
	}

	out := make([]float64, 0, req.Lat.Len()*req.Lon.Len())
	for i := req.Lat.Start; i <= req.Lat.End; i++ {
		out = append(out, values[i*m.nlon+req.Lon.Start:i*m.nlon+req.Lon.End+1]...)
	}
	return out, nil
}
