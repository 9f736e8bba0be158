// Package fade smooths large jumps between the displayed color setting and a
// new target over a bounded sequence of short ticks.
package fade

import (
	"math"
	"time"

	"github.com/mkarjala/duskd/internal/color"
)

const (
	// DefaultLength is the fade duration in ticks.
	DefaultLength = 40
	// TickInterval is the short tick used while a fade is in progress.
	TickInterval = 100 * time.Millisecond

	// DefaultTemperatureDelta and DefaultEpsilon gate whether a difference
	// is "major" and therefore worth fading over. The two senses of
	// difference are intentionally separate; see MajorDiff.
	DefaultTemperatureDelta = 25
	DefaultEpsilon          = 0.1

	// Brightness moves toward the target at a constant rate per tick
	// rather than following the ease curve.
	brightnessRate = 0.02
)

// Controller is the fade state machine. It is either idle, tracking the
// target exactly, or fading: advancing one eased step per tick from the
// setting displayed when the fade started toward the current target.
type Controller struct {
	// FadeLength and the difference thresholds may be set before first use.
	FadeLength       int
	TemperatureDelta int
	Epsilon          float64

	tick   int
	length int // 0 while idle

	start      color.Setting
	displayed  color.Setting
	prevTarget color.Setting
}

// New returns an idle controller displaying the neutral setting.
func New() *Controller {
	return &Controller{
		FadeLength:       DefaultLength,
		TemperatureDelta: DefaultTemperatureDelta,
		Epsilon:          DefaultEpsilon,
		start:            color.Neutral(),
		displayed:        color.Neutral(),
		prevTarget:       color.Neutral(),
	}
}

// Fading reports whether a fade is in progress.
func (c *Controller) Fading() bool { return c.length != 0 }

// Displayed returns the setting most recently produced by Update.
func (c *Controller) Displayed() color.Setting { return c.displayed }

// Update advances the controller one tick toward target and returns the
// setting to display. A major difference between the displayed setting and
// the target starts a fade; a major change of the target mid-fade restarts
// it from the currently displayed value with the remaining length. Non-major
// differences are applied directly.
func (c *Controller) Update(target color.Setting) color.Setting {
	restart := false
	if c.length == 0 {
		restart = color.MajorDiff(c.displayed, target, c.TemperatureDelta, c.Epsilon)
	} else {
		restart = color.MajorDiff(target, c.prevTarget, c.TemperatureDelta, c.Epsilon)
	}
	if restart {
		length := c.FadeLength - c.tick
		if length < 0 {
			length = 0
		}
		c.length = length
		c.tick = 0
		c.start = c.displayed
	}

	if c.length != 0 {
		c.tick++
		alpha := easeFade(float64(c.tick) / float64(c.length))
		next := color.Interpolate(c.start, target, alpha)
		next.Brightness = stepBrightness(c.start.Brightness, target.Brightness, float64(c.tick)*brightnessRate)
		c.displayed = next

		if c.tick >= c.length && c.displayed.Brightness == target.Brightness {
			c.tick = 0
			c.length = 0
		}
	} else if c.displayed.Diff(target) {
		c.displayed = target
	}

	c.prevTarget = target
	return c.displayed
}

// easeFade shapes the fade progress: 0 below the start, 1 past the end and a
// smooth ramp in between. See https://github.com/mietek/ease-tween
func easeFade(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return 1.0042954579734844 * math.Exp(
		-6.4041738958415664*math.Exp(-7.2908241330981340*t))
}

// stepBrightness moves from start toward target by delta, clamped so it
// never overshoots.
func stepBrightness(start, target, delta float64) float64 {
	switch {
	case target > start:
		if v := start + delta; v < target {
			return v
		}
	case target < start:
		if v := start - delta; v > target {
			return v
		}
	}
	return target
}
