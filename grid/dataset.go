package grid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hstin/gridwx/common"
)

var (
	ErrOutsideGrid  = errors.New("window outside grid")
	ErrNoVariable   = errors.New("variable not in dataset")
	ErrNoStep       = errors.New("forecast step not in dataset")
	ErrNoLevel      = errors.New("level not in dataset")
	ErrShortPayload = errors.New("slab shorter than requested")
)

// IsMissing reports whether err means the data does not carry a field, as
// opposed to a failure reading it.
func IsMissing(err error) bool {
	return errors.Is(err, ErrNoVariable) || errors.Is(err, ErrNoStep) || errors.Is(err, ErrNoLevel)
}

// IndexRange is an inclusive range of native grid indices.
type IndexRange struct {
	Start int
	End   int
}

func (r IndexRange) Len() int {
	return r.End - r.Start + 1
}

// SlabRequest addresses a rectangular block of one 2D field in native indices.
type SlabRequest struct {
	Variable string
	Step     int
	// Level is the level index, -1 for variables without a vertical axis.
	Level int
	Lat   IndexRange
	Lon   IndexRange
}

// Reader fetches field data for a dataset. Values are returned row-major
// (latitude rows, longitude columns) in native index order.
type Reader interface {
	ReadSlab(ctx context.Context, req SlabRequest) ([]float64, error)
}

// Dataset is a lazily read gridded dataset. Axis slices hold the values of
// the (possibly subset) grid; the index maps point back into the native grid.
type Dataset struct {
	Name       string
	Model      string
	Run        time.Time
	StepHours  int
	Steps      []int
	Levels     []float64
	Lats       []float64
	Lons       []float64
	Variables  []string
	Units      map[string]string
	Convention common.LonConvention

	latIndex []int
	lonIndex []int
	reader   Reader
}

// New builds a dataset over a full native grid.
func New(name string, lats, lons []float64, conv common.LonConvention, reader Reader) *Dataset {
	ds := &Dataset{
		Name:       name,
		Lats:       lats,
		Lons:       lons,
		Convention: conv,
		Units:      map[string]string{},
		reader:     reader,
		latIndex:   make([]int, len(lats)),
		lonIndex:   make([]int, len(lons)),
	}
	for i := range ds.latIndex {
		ds.latIndex[i] = i
	}
	for i := range ds.lonIndex {
		ds.lonIndex[i] = i
	}
	return ds
}

func (ds *Dataset) HasVariable(name string) bool {
	for _, v := range ds.Variables {
		if v == name {
			return true
		}
	}
	return false
}

func (ds *Dataset) stepIndex(forecastHour int) (int, error) {
	for i, s := range ds.Steps {
		if s == forecastHour {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%s f%03d: %w", ds.Name, forecastHour, ErrNoStep)
}

func (ds *Dataset) levelIndex(level float64) (int, error) {
	if level == common.NoLevel {
		return -1, nil
	}
	for i, l := range ds.Levels {
		if l == level {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%s level %g: %w", ds.Name, level, ErrNoLevel)
}

// Read loads one 2D field of the dataset.
func (ds *Dataset) Read(ctx context.Context, variable string, forecastHour int, level float64) (*Field, error) {
	if !ds.HasVariable(variable) {
		return nil, fmt.Errorf("%s %s: %w", ds.Name, variable, ErrNoVariable)
	}

	step, err := ds.stepIndex(forecastHour)
	if err != nil {
		return nil, err
	}
	lev, err := ds.levelIndex(level)
	if err != nil {
		return nil, err
	}

	nlat, nlon := len(ds.latIndex), len(ds.lonIndex)
	if nlat == 0 || nlon == 0 {
		return nil, fmt.Errorf("%s: %w", ds.Name, ErrOutsideGrid)
	}

	latRuns := runs(ds.latIndex, true)
	lonRuns := runs(ds.lonIndex, false)

	values := make([]float64, nlat*nlon)

	row := 0
	for _, lr := range latRuns {
		rows := lr.count()
		col := 0
		for _, cr := range lonRuns {
			cols := cr.count()
			slab, err := ds.reader.ReadSlab(ctx, SlabRequest{
				Variable: variable,
				Step:     step,
				Level:    lev,
				Lat:      lr.asRange(),
				Lon:      cr.asRange(),
			})
			if err != nil {
				return nil, fmt.Errorf("[READ] %s %s: %w", ds.Name, variable, err)
			}
			if len(slab) < rows*cols {
				return nil, fmt.Errorf("[READ] %s %s got %d values, want %d: %w", ds.Name, variable, len(slab), rows*cols, ErrShortPayload)
			}

			for r := 0; r < rows; r++ {
				// slabs come back in ascending native order
				src := r
				if lr.Start > lr.End {
					src = rows - 1 - r
				}
				dst := (row+r)*nlon + col
				copy(values[dst:dst+cols], slab[src*cols:(src+1)*cols])
			}
			col += cols
		}
		row += rows
	}

	return &Field{
		Name:         variable,
		Units:        ds.Units[variable],
		Run:          ds.Run,
		ForecastHour: forecastHour,
		Level:        level,
		Lats:         append([]float64(nil), ds.Lats...),
		Lons:         append([]float64(nil), ds.Lons...),
		Values:       values,
	}, nil
}

// span is a run of consecutive native indices, possibly descending.
type span struct {
	Start int
	End   int
}

func (s span) count() int {
	if s.End >= s.Start {
		return s.End - s.Start + 1
	}
	return s.Start - s.End + 1
}

// runs groups an index map into maximal runs of consecutive indices.
func runs(index []int, descending bool) []span {
	var out []span
	for _, idx := range index {
		if n := len(out); n > 0 {
			last := &out[n-1]
			up := last.Start <= last.End && idx == last.End+1
			down := descending && last.Start >= last.End && idx == last.End-1
			if up || down {
				last.End = idx
				continue
			}
		}
		out = append(out, span{Start: idx, End: idx})
	}
	return out
}

func (s span) asRange() IndexRange {
	return IndexRange{Start: min(s.Start, s.End), End: max(s.Start, s.End)}
}
