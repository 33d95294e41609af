package noaa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"hstin/gridwx/common"
	"hstin/gridwx/fetch"
	"hstin/gridwx/grid"
	"hstin/gridwx/opendap"
	. "hstin/gridwx/helper"
)

// GDSModel opens NOMADS GrADS data server datasets. Only the structure and
// the axes are read on open; field data is fetched per hyperslab on Read.
type GDSModel struct {
	modelName  string
	variables  map[string]string
	stepHours  int
	convention common.LonConvention
	client     *opendap.Client
}

type GDSModelOptions struct {
	ModelName string
	// Variables maps variable keys to GrADS names.
	Variables  map[string]string
	StepHours  int
	Convention common.LonConvention
	HTTPClient *http.Client
}

func NewGDSModel(opt GDSModelOptions) *GDSModel {
	return &GDSModel{
		modelName:  opt.ModelName,
		variables:  opt.Variables,
		stepHours:  opt.StepHours,
		convention: opt.Convention,
		client:     opendap.NewClient(opt.HTTPClient),
	}
}

func (m *GDSModel) Open(ctx context.Context, c fetch.Candidate) ([]*grid.Dataset, error) {
	url := c.URL(nil)

	remote, err := m.client.Open(ctx, url)
	if err != nil {
		if errors.Is(err, opendap.ErrNotFound) {
			return nil, fetch.NotAvailable(url, "dataset not on server", err)
		}
		return nil, err
	}

	axisNames := []string{"lat", "lon"}
	hasLevels := remote.Size("lev") > 0
	if hasLevels {
		axisNames = append(axisNames, "lev")
	}

	axes, err := m.client.Axes(ctx, remote, axisNames...)
	if err != nil {
		if errors.Is(err, opendap.ErrNotFound) {
			return nil, fetch.NotAvailable(url, "axes not readable", err)
		}
		return nil, err
	}

	reader := &gdsReader{client: m.client, remote: remote, names: make(map[string]string)}

	ds := grid.New(fmt.Sprintf("%s %s", m.modelName, common.RunLabel(c.Run)), axes["lat"], axes["lon"], m.convention, reader)
	ds.Model = m.modelName
	ds.Run = c.Run
	ds.StepHours = m.stepHours
	if hasLevels {
		ds.Levels = axes["lev"]
	}

	for i := 0; i < remote.Size("time"); i++ {
		ds.Steps = append(ds.Steps, i*m.stepHours)
	}

	for key, name := range m.variables {
		if remote.Dims(name) == nil {
			continue
		}
		reader.names[key] = name
		ds.Variables = append(ds.Variables, key)
		if v, ok := common.Variables[key]; ok {
			ds.Units[key] = v.Unit
		}
	}
	sort.Strings(ds.Variables)

	if len(ds.Variables) == 0 {
		return nil, fmt.Errorf("[DAP] %s: none of the configured variables exist", url)
	}

	Log.Debug().Str("model", m.modelName).Str("url", url).Int("steps", len(ds.Steps)).Int("variables", len(ds.Variables)).Msg("dataset opened")

	return []*grid.Dataset{ds}, nil
}

type gdsReader struct {
	client *opendap.Client
	remote *opendap.Dataset
	names  map[string]string
}

func (r *gdsReader) ReadSlab(ctx context.Context, req grid.SlabRequest) ([]float64, error) {
	name, ok := r.names[req.Variable]
	if !ok {
		return nil, fmt.Errorf("%s: %w", req.Variable, grid.ErrNoVariable)
	}

	ranges := [][2]int{{req.Step, req.Step}}
	switch len(r.remote.Dims(name)) {
	case 3:
		if req.Level >= 0 {
			return nil, fmt.Errorf("%s has no levels: %w", name, grid.ErrNoLevel)
		}
	case 4:
		if req.Level < 0 {
			return nil, fmt.Errorf("%s needs a level: %w", name, grid.ErrNoLevel)
		}
		ranges = append(ranges, [2]int{req.Level, req.Level})
	default:
		return nil, fmt.Errorf("[DAP] %s: unsupported shape %v", name, r.remote.Dims(name))
	}
	ranges = append(ranges, [2]int{req.Lat.Start, req.Lat.End}, [2]int{req.Lon.Start, req.Lon.End})

	slab, err := r.client.Slab(ctx, r.remote, name, ranges...)
	if err != nil {
		return nil, err
	}

	return slab.Values, nil
}
