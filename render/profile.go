package render

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"
	"time"

	"hstin/gridwx/common"
	"hstin/gridwx/products"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Magnus coefficients over water.
const (
	magnusA = 17.67
	magnusB = 243.5
)

// dewPoint in °C from temperature in °C and relative humidity in percent.
func dewPoint(t, rh float64) float64 {
	if rh <= 0 {
		return math.NaN()
	}
	gamma := math.Log(rh/100) + magnusA*t/(magnusB+t)
	return magnusB * gamma / (magnusA - gamma)
}

// Profile draws temperature and dew point against pressure and writes a PNG.
func Profile(out io.Writer, d *products.ProfileData, model string, run time.Time, width, height int) error {
	if len(d.Levels) < 2 {
		return fmt.Errorf("[RENDER] profile has %d levels, need at least 2", len(d.Levels))
	}

	temp := make(plotter.XYs, 0, len(d.Levels))
	dew := make(plotter.XYs, 0, len(d.Levels))
	for i, level := range d.Levels {
		temp = append(temp, plotter.XY{X: d.Temperature[i], Y: level})
		if td := dewPoint(d.Temperature[i], d.RH[i]); !math.IsNaN(td) {
			dew = append(dew, plotter.XY{X: td, Y: level})
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s profile %.2f, %.2f\nrun %s  f%03d",
		model, d.Lat, d.Lon, common.RunLabel(run), d.ForecastHour)
	p.X.Label.Text = "°C"
	p.Y.Label.Text = "hPa"
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.Add(plotter.NewGrid())

	tl, err := plotter.NewLine(temp)
	if err != nil {
		return fmt.Errorf("[RENDER] temperature line: %w", err)
	}
	tl.LineStyle.Width = vg.Points(2)
	tl.LineStyle.Color = color.RGBA{R: 200, A: 255}
	p.Add(tl)
	p.Legend.Add("temperature", tl)

	if len(dew) > 1 {
		dl, err := plotter.NewLine(dew)
		if err != nil {
			return fmt.Errorf("[RENDER] dew point line: %w", err)
		}
		dl.LineStyle.Width = vg.Points(2)
		dl.LineStyle.Color = color.RGBA{G: 140, A: 255}
		p.Add(dl)
		p.Legend.Add("dew point", dl)
	}
	p.Legend.Top = true

	if width <= 0 {
		width = 600
	}
	if height <= 0 {
		height = 800
	}
	wt, err := p.WriterTo(pixels(width), pixels(height), "png")
	if err != nil {
		return fmt.Errorf("[RENDER] profile canvas: %w", err)
	}
	if _, err := wt.WriteTo(out); err != nil {
		return fmt.Errorf("[RENDER] encoding png: %w", err)
	}
	return nil
}

// SaveProfile renders a profile to path, creating parent directories.
func SaveProfile(path string, d *products.ProfileData, model string, run time.Time) error {
	var buf bytes.Buffer
	if err := Profile(&buf, d, model, run, 0, 0); err != nil {
		return err
	}
	return writeFile(path, buf.Bytes())
}
