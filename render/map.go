package render

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"time"

	"hstin/gridwx/borders"
	"hstin/gridwx/common"
	"hstin/gridwx/grid"
	. "hstin/gridwx/helper"
	"hstin/gridwx/products"

	"github.com/zsefvlol/timezonemapper"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	dpi          = 96
	paletteSteps = 64
)

type MapOptions struct {
	Model  string
	Region string
	// Window is used for the local time shown in the title.
	Window  common.Window
	Borders []borders.Line
	// Width and Height are in pixels.
	Width, Height int
}

func (o MapOptions) size() (w, h vg.Length) {
	width, height := o.Width, o.Height
	if width <= 0 {
		width = 1200
	}
	if height <= 0 {
		height = 900
	}
	return pixels(width), pixels(height)
}

func pixels(n int) vg.Length {
	return vg.Length(n) * vg.Inch / dpi
}

// Map draws field f as product p and writes a PNG to out.
func Map(out io.Writer, f *grid.Field, p products.Product, opts MapOptions) error {
	if len(f.Lats) < 2 || len(f.Lons) < 2 {
		return fmt.Errorf("[RENDER] field %s is %dx%d, need at least 2x2", f.Name, len(f.Lats), len(f.Lons))
	}

	g := newFieldGrid(f)

	min, max := p.Min, p.Max
	if max <= min {
		var ok bool
		if min, max, ok = valueRange(f.Values); !ok {
			return fmt.Errorf("[RENDER] field %s has no finite values", f.Name)
		}
	}
	if max <= min {
		max = min + 1
	}

	cm, err := colorMap(p.Palette)
	if err != nil {
		return fmt.Errorf("[RENDER] %s: %w", p.Name, err)
	}
	cm.SetMin(min)
	cm.SetMax(max)

	plt := plot.New()
	plt.Title.Text = mapTitle(f, p, opts)
	plt.X.Label.Text = "longitude"
	plt.Y.Label.Text = "latitude"

	switch p.Style {
	case products.CONTOUR:
		if levels := contourLevels(min, max, p.Interval); len(levels) > 0 {
			c := plotter.NewContour(g, levels, cm.Palette(len(levels)))
			plt.Add(c)
		}
	default:
		h := plotter.NewHeatMap(g, cm.Palette(paletteSteps))
		h.Min, h.Max = min, max
		h.NaN = color.Transparent
		plt.Add(h)
	}

	cols, rows := g.Dims()
	west, east := g.X(0), g.X(cols-1)
	centre := (west + east) / 2
	for _, line := range opts.Borders {
		l, err := plotter.NewLine(borderXYs(line, centre))
		if err != nil {
			Log.Debug().Err(err).Msg("skipping border line")
			continue
		}
		l.LineStyle.Width = vg.Points(0.6)
		l.LineStyle.Color = color.Black
		plt.Add(l)
	}
	plt.X.Min, plt.X.Max = west, east
	plt.Y.Min, plt.Y.Max = g.Y(0), g.Y(rows-1)

	width, height := opts.size()
	img := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(dpi))
	dc := draw.New(img)

	if p.Style == products.MASK {
		plt.Draw(dc)
	} else {
		barHeight := height / 8
		bar := plot.New()
		bar.HideY()
		bar.X.Label.Text = p.Units
		bar.Add(&plotter.ColorBar{ColorMap: cm})

		plt.Draw(draw.Crop(dc, 0, 0, barHeight, 0))
		bar.Draw(draw.Crop(dc, 0, 0, 0, barHeight-height))
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(out); err != nil {
		return fmt.Errorf("[RENDER] encoding png: %w", err)
	}
	return nil
}

// SaveMap renders to path, creating parent directories.
func SaveMap(path string, f *grid.Field, p products.Product, opts MapOptions) error {
	var buf bytes.Buffer
	if err := Map(&buf, f, p, opts); err != nil {
		return err
	}
	return writeFile(path, buf.Bytes())
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("[RENDER] creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("[RENDER] writing %s: %w", path, err)
	}
	return nil
}

// borderXYs moves a border line into the longitude frame around centre.
// The whole line gets the same shift so it stays connected.
func borderXYs(line borders.Line, centre float64) plotter.XYs {
	xys := make(plotter.XYs, len(line))
	if len(line) == 0 {
		return xys
	}
	delta := shiftLon(line[0].Lon, centre) - line[0].Lon
	for i, pt := range line {
		xys[i].X = pt.Lon + delta
		xys[i].Y = pt.Lat
	}
	return xys
}

func mapTitle(f *grid.Field, p products.Product, opts MapOptions) string {
	valid := common.ValidTime(f.Run, f.ForecastHour)
	head := fmt.Sprintf("%s %s (%s)", opts.Model, p.Title, p.Units)
	if opts.Region != "" {
		head += " " + opts.Region
	}
	return fmt.Sprintf("%s\nrun %s  f%03d  valid %s",
		head, common.RunLabel(f.Run), f.ForecastHour, localTime(valid, opts.Window))
}

// localTime formats t in UTC and in the time zone at the window centre.
func localTime(t time.Time, w common.Window) string {
	utc := t.UTC().Format("Mon 02 Jan 15:04 MST")
	lat, lon := w.Center()
	zone := timezonemapper.LatLngToTimezoneString(lat, lon)
	loc, err := time.LoadLocation(zone)
	if err != nil || zone == "" {
		return utc
	}
	local := t.In(loc)
	if local.Format("MST") == "UTC" {
		return utc
	}
	return utc + " / " + local.Format("Mon 15:04 MST")
}

// OutputPath is where a map for one product and step is written.
func OutputPath(root, model, region, borderSet string, p products.Product, run time.Time, step int) string {
	return filepath.Join(root, model, region, borderSet, p.Name, p.Level(),
		fmt.Sprintf("%s_f%03d.png", common.RunLabel(run), step))
}
