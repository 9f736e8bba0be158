// Package color defines the display color setting and the arithmetic used to
// blend between settings.
package color

import "math"

// Parameter bounds for a color setting.
const (
	MinTemperature = 1000
	MaxTemperature = 25000
	MinBrightness  = 0.1
	MaxBrightness  = 1.0
	MinGamma       = 0.1
	MaxGamma       = 10.0
)

// NeutralTemperature is the color temperature at which no adjustment is
// applied to the display.
const NeutralTemperature = 6500

// Setting is one display color adjustment: a color temperature in Kelvin,
// one gamma value per RGB channel and an overall brightness factor.
type Setting struct {
	Temperature int
	Gamma       [3]float64
	Brightness  float64
}

// Neutral returns the setting that leaves the display unmodified.
func Neutral() Setting {
	return Setting{
		Temperature: NeutralTemperature,
		Gamma:       [3]float64{1.0, 1.0, 1.0},
		Brightness:  MaxBrightness,
	}
}

// Diff reports whether the two settings differ on any channel.
func (s Setting) Diff(other Setting) bool {
	return s.Temperature != other.Temperature ||
		s.Brightness != other.Brightness ||
		s.Gamma != other.Gamma
}

// MajorDiff reports whether the difference between two settings is large
// enough to be smoothed over with a fade rather than applied instantly. The
// temperature delta and the per-channel epsilon are deliberately separate
// knobs; callers supply the thresholds they were configured with.
func MajorDiff(a, b Setting, tempDelta int, epsilon float64) bool {
	d := a.Temperature - b.Temperature
	if d < 0 {
		d = -d
	}
	if d > tempDelta {
		return true
	}
	if math.Abs(a.Brightness-b.Brightness) > epsilon {
		return true
	}
	for i := range a.Gamma {
		if math.Abs(a.Gamma[i]-b.Gamma[i]) > epsilon {
			return true
		}
	}
	return false
}

// Interpolate blends two settings channel by channel. alpha is clamped to
// [0,1]; 0 yields a, 1 yields b. The temperature result is rounded to the
// nearest Kelvin.
func Interpolate(a, b Setting, alpha float64) Setting {
	alpha = Clamp(0, alpha, 1)

	var out Setting
	out.Temperature = int(math.Round((1-alpha)*float64(a.Temperature) + alpha*float64(b.Temperature)))
	out.Brightness = (1-alpha)*a.Brightness + alpha*b.Brightness
	for i := range out.Gamma {
		out.Gamma[i] = (1-alpha)*a.Gamma[i] + alpha*b.Gamma[i]
	}
	return out
}

// Clamp limits v to the range [lo, hi].
func Clamp(lo, v, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampTemperature limits a temperature to the supported Kelvin range.
func ClampTemperature(t int) int {
	if t < MinTemperature {
		return MinTemperature
	}
	if t > MaxTemperature {
		return MaxTemperature
	}
	return t
}

// Validate checks that every channel of the setting is within bounds.
func (s Setting) Validate() error {
	if s.Temperature < MinTemperature || s.Temperature > MaxTemperature {
		return ErrTemperatureRange
	}
	if s.Brightness < MinBrightness || s.Brightness > MaxBrightness {
		return ErrBrightnessRange
	}
	for _, g := range s.Gamma {
		if g < MinGamma || g > MaxGamma {
			return ErrGammaRange
		}
	}
	return nil
}
