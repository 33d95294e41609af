package render

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// colorMap returns a fresh colour map by name.
func colorMap(name string) (palette.ColorMap, error) {
	switch name {
	case "blackbody":
		return moreland.ExtendedBlackBody(), nil
	case "bluered":
		return moreland.SmoothBlueRed(), nil
	case "drywet":
		return palette.Reverse(moreland.SmoothBlueTan()), nil
	case "precip":
		return moreland.SmoothGreenPurple(), nil
	case "redflag":
		return moreland.NewLuminance([]color.Color{
			color.NRGBA{R: 255, G: 255, B: 255, A: 0},
			color.NRGBA{R: 220, G: 20, B: 60, A: 255},
		})
	default:
		return nil, fmt.Errorf("unknown palette %q", name)
	}
}
