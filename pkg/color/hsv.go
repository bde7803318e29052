package color

import "math"

// achromaticDelta is the max-min spread below which a reading has no hue.
const achromaticDelta = 0.00001

// HSV is a hue/saturation/value triple derived from linear RGB counts.
// H is in degrees [0,360), S in [0,1] and V is on the scale of the input.
// H is NaN when no dominant hue can be computed.
type HSV struct {
	H float64 `json:"hue"`
	S float64 `json:"saturation"`
	V float64 `json:"value"`
}

// RGBToHSV converts three non-negative channel magnitudes on a shared linear
// scale to HSV.
func RGBToHSV(r, g, b float64) HSV {
	minC := math.Min(math.Min(r, g), b)
	maxC := math.Max(math.Max(r, g), b)
	delta := maxC - minC

	out := HSV{V: maxC}
	if delta < achromaticDelta {
		return out
	}
	if maxC <= 0 {
		out.H = math.NaN()
		return out
	}
	out.S = delta / maxC

	switch {
	case r >= maxC:
		out.H = (g - b) / delta
	case g >= maxC:
		out.H = 2 + (b-r)/delta
	default:
		out.H = 4 + (r-g)/delta
	}
	out.H *= 60
	if out.H < 0 {
		out.H += 360
	}
	// a tiny negative hue rounds up to 360 when wrapped
	if out.H >= 360 {
		out.H -= 360
	}
	return out
}
