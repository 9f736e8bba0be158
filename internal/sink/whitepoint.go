package sink

import (
	"math"

	"github.com/mkarjala/duskd/internal/color"
)

// Whitepoint returns the RGB multipliers for a color temperature, normalized
// so that the neutral temperature maps to exactly (1, 1, 1). Lower
// temperatures attenuate blue and green, higher temperatures attenuate red.
func Whitepoint(kelvin int) (r, g, b float64) {
	r, g, b = blackbody(float64(kelvin))
	nr, ng, nb := blackbody(float64(color.NeutralTemperature))
	return r / nr, g / ng, b / nb
}

// blackbody approximates the color of a black-body radiator at the given
// temperature on a 0..1 scale per channel, using Tanner Helland's curve fit.
func blackbody(kelvin float64) (r, g, b float64) {
	t := kelvin / 100

	if t <= 66 {
		r = 1
	} else {
		r = clamp01(1.29293618606 * math.Pow(t-60, -0.1332047592))
	}

	if t <= 66 {
		g = clamp01((99.4708025861*math.Log(t) - 161.1195681661) / 255)
	} else {
		g = clamp01(1.12989086089 * math.Pow(t-60, -0.0755148492))
	}

	switch {
	case t >= 66:
		b = 1
	case t <= 19:
		b = 0
	default:
		b = clamp01((138.5177312231*math.Log(t-10) - 305.0447927307) / 255)
	}
	return r, g, b
}

// GammaRamp fills r, g, b with a 16-bit ramp for the setting: a linear ramp
// scaled by the temperature whitepoint and brightness, shaped by the
// per-channel gamma.
func GammaRamp(r, g, b []uint16, s color.Setting) {
	wr, wg, wb := Whitepoint(s.Temperature)
	fill(r, wr*s.Brightness, s.Gamma[0])
	fill(g, wg*s.Brightness, s.Gamma[1])
	fill(b, wb*s.Brightness, s.Gamma[2])
}

func fill(ramp []uint16, white, gamma float64) {
	n := len(ramp)
	if n == 0 {
		return
	}
	for i := range ramp {
		x := 1.0
		if n > 1 {
			x = float64(i) / float64(n-1)
		}
		v := math.Pow(x, 1/gamma) * white
		ramp[i] = uint16(clamp01(v) * math.MaxUint16)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
