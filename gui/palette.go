package gui

import (
	"image/color"
	"math"

	"straf/penalty"
)

var (
	starActive   = color.NRGBA{R: 255, G: 165, A: 255}
	starInactive = color.NRGBA{R: 77, G: 77, B: 102, A: 153}
	textColor    = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// intensity grows linearly from 0.2 at one star to 1 at the maximum.
func intensity(severity int) float64 {
	severity = min(max(severity, 0), penalty.MaxSeverity)
	return float64(severity) / penalty.MaxSeverity
}

// edgeColor is the outer colour of the vignette gradient.
func edgeColor(severity int) color.NRGBA {
	return color.NRGBA{R: 26, G: 13, B: 51, A: uint8(intensity(severity) * 0.8 * 255)}
}

// vignetteRadius is the fraction of the banner covered by the clear centre.
// It shrinks as severity rises.
func vignetteRadius(severity int) float64 {
	return 1 - intensity(severity)*0.7
}

func starColor(i, severity int) color.NRGBA {
	if i < severity {
		return starActive
	}
	return starInactive
}

// vignettePixel shades one pixel of a w×h banner: clear inside the radius,
// then ramping to edgeColor at the corners.
func vignettePixel(severity, x, y, w, h int) color.NRGBA {
	if w <= 0 || h <= 0 {
		return color.NRGBA{}
	}
	dx := (float64(x) + 0.5 - float64(w)/2) / (float64(w) / 2)
	dy := (float64(y) + 0.5 - float64(h)/2) / (float64(h) / 2)
	d := math.Sqrt(dx*dx+dy*dy) / math.Sqrt2
	inner := vignetteRadius(severity) * 0.7
	if d <= inner {
		return color.NRGBA{}
	}
	edge := edgeColor(severity)
	t := min((d-inner)/(1-inner), 1)
	edge.A = uint8(float64(edge.A) * t)
	return edge
}
