// Package export writes fields to netCDF files next to the rendered maps.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hstin/gridwx/grid"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
)

// Path swaps the extension of a map path for .nc.
func Path(pngPath string) string {
	return strings.TrimSuffix(pngPath, filepath.Ext(pngPath)) + ".nc"
}

// WriteNetCDF stores f as a CDF file with lat/lon coordinate variables.
func WriteNetCDF(path string, f *grid.Field) error {
	if len(f.Values) != len(f.Lats)*len(f.Lons) {
		return fmt.Errorf("[EXPORT] field %s has %d values for a %dx%d grid", f.Name, len(f.Values), len(f.Lats), len(f.Lons))
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("[EXPORT] creating %s: %w", filepath.Dir(path), err)
	}
	// the writer refuses to overwrite
	os.Remove(path)

	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("[EXPORT] opening %s: %w", path, err)
	}

	if err := addVar(cw, "lat", f.Lats, []string{"lat"}, "units", "degrees_north"); err != nil {
		cw.Close()
		return err
	}
	if err := addVar(cw, "lon", f.Lons, []string{"lon"}, "units", "degrees_east"); err != nil {
		cw.Close()
		return err
	}

	rows := make([][]float64, len(f.Lats))
	for r := range rows {
		rows[r] = f.Values[r*len(f.Lons) : (r+1)*len(f.Lons)]
	}
	err = addVar(cw, f.Name, rows, []string{"lat", "lon"},
		"units", f.Units,
		"run", f.Run.UTC().Format(time.RFC3339),
		"forecast_hour", int32(f.ForecastHour),
		"level", f.Level,
	)
	if err != nil {
		cw.Close()
		return err
	}

	if err := cw.Close(); err != nil {
		return fmt.Errorf("[EXPORT] closing %s: %w", path, err)
	}
	return nil
}

// addVar adds one variable; attrs alternate key and value.
func addVar(cw *cdf.CDFWriter, name string, values any, dims []string, attrs ...any) error {
	keys := make([]string, 0, len(attrs)/2)
	vals := make(map[string]any, len(attrs)/2)
	for i := 0; i+1 < len(attrs); i += 2 {
		k := attrs[i].(string)
		keys = append(keys, k)
		vals[k] = attrs[i+1]
	}
	am, err := util.NewOrderedMap(keys, vals)
	if err != nil {
		return fmt.Errorf("[EXPORT] attributes of %s: %w", name, err)
	}
	err = cw.AddVar(name, api.Variable{Values: values, Dimensions: dims, Attributes: am})
	if err != nil {
		return fmt.Errorf("[EXPORT] adding %s: %w", name, err)
	}
	return nil
}

// ReadNetCDF loads a field written by WriteNetCDF.
func ReadNetCDF(path, name string) (*grid.Field, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("[EXPORT] opening %s: %w", path, err)
	}
	defer nc.Close()

	lats, err := floatVar(nc, "lat")
	if err != nil {
		return nil, err
	}
	lons, err := floatVar(nc, "lon")
	if err != nil {
		return nil, err
	}

	vr, err := nc.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("[EXPORT] variable %s: %w", name, err)
	}
	rows, ok := vr.Values.([][]float64)
	if !ok {
		return nil, fmt.Errorf("[EXPORT] variable %s is %T, not [][]float64", name, vr.Values)
	}

	f := &grid.Field{Name: name, Lats: lats, Lons: lons, Values: make([]float64, 0, len(lats)*len(lons))}
	for _, row := range rows {
		f.Values = append(f.Values, row...)
	}

	if v, ok := vr.Attributes.Get("units"); ok {
		f.Units, _ = v.(string)
	}
	if v, ok := vr.Attributes.Get("run"); ok {
		if s, ok := v.(string); ok {
			f.Run, _ = time.Parse(time.RFC3339, s)
		}
	}
	if v, ok := vr.Attributes.Get("forecast_hour"); ok {
		if fh, ok := v.(int32); ok {
			f.ForecastHour = int(fh)
		}
	}
	if v, ok := vr.Attributes.Get("level"); ok {
		f.Level, _ = v.(float64)
	}
	return f, nil
}

func floatVar(nc api.Group, name string) ([]float64, error) {
	vr, err := nc.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("[EXPORT] variable %s: %w", name, err)
	}
	values, ok := vr.Values.([]float64)
	if !ok {
		return nil, fmt.Errorf("[EXPORT] variable %s is %T, not []float64", name, vr.Values)
	}
	return values, nil
}
