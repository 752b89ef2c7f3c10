package chart

import (
	"image/color"
	"math"
)

// palette returns n evenly spaced hues.
func palette(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	out := make([]color.Color, n)
	for i := range out {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.45)
		out[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}

func hslToRGB(h, s, l float64) (r, g, b uint8) {
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return channel(p, q, h+1.0/3.0), channel(p, q, h), channel(p, q, h-1.0/3.0)
}

func channel(p, q, t float64) uint8 {
	t -= math.Floor(t)
	var v float64
	switch {
	case t < 1.0/6.0:
		v = p + (q-p)*6*t
	case t < 0.5:
		v = q
	case t < 2.0/3.0:
		v = p + (q-p)*(2.0/3.0-t)*6
	default:
		v = p
	}
	return uint8(math.Round(v * 255))
}
