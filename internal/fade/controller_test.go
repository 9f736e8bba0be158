package fade

import (
	"math"
	"testing"

	"github.com/mkarjala/duskd/internal/color"
)

func TestMinorChangeAppliedDirectly(t *testing.T) {
	c := New()

	target := color.Neutral()
	target.Temperature = 6510 // below the 25K threshold

	got := c.Update(target)
	if c.Fading() {
		t.Errorf("expected no fade for minor difference")
	}
	if got.Temperature != 6510 {
		t.Errorf("expected 6510K applied directly, got %dK", got.Temperature)
	}
}

func TestMajorChangeStartsFade(t *testing.T) {
	c := New()

	target := color.Neutral()
	target.Temperature = 4500

	got := c.Update(target)
	if !c.Fading() {
		t.Errorf("expected fade to start for 2000K difference")
	}
	if got.Temperature <= 4500 || got.Temperature >= 6500 {
		t.Errorf("expected first tick between endpoints, got %dK", got.Temperature)
	}
}

func TestFadeConvergesWithinLength(t *testing.T) {
	c := New()

	target := color.Neutral()
	target.Temperature = 3500
	target.Brightness = 0.8

	var got color.Setting
	for i := 0; i < DefaultLength; i++ {
		got = c.Update(target)
	}
	if c.Fading() {
		t.Errorf("expected fade to finish after %d ticks", DefaultLength)
	}
	if got.Temperature != 3500 {
		t.Errorf("expected final temperature 3500K, got %dK", got.Temperature)
	}
	if got.Brightness != 0.8 {
		t.Errorf("expected final brightness 0.8, got %f", got.Brightness)
	}
}

func TestFadeTemperatureMonotonic(t *testing.T) {
	c := New()

	target := color.Neutral()
	target.Temperature = 3500

	prev := c.Displayed().Temperature
	for i := 0; i < DefaultLength; i++ {
		got := c.Update(target)
		if got.Temperature > prev {
			t.Errorf("tick %d: temperature rose from %dK to %dK during a downward fade",
				i, prev, got.Temperature)
		}
		prev = got.Temperature
	}
}

func TestBrightnessConstantRate(t *testing.T) {
	c := New()

	target := color.Neutral()
	target.Temperature = 3500
	target.Brightness = 0.5

	prev := c.Displayed().Brightness
	for i := 0; i < 10; i++ {
		got := c.Update(target)
		step := prev - got.Brightness
		if math.Abs(step-brightnessRate) > 1e-9 {
			t.Errorf("tick %d: brightness step %f, want %f", i, step, brightnessRate)
		}
		prev = got.Brightness
	}
}

func TestBrightnessDoesNotOvershoot(t *testing.T) {
	c := New()

	target := color.Neutral()
	target.Temperature = 3500
	target.Brightness = 0.99 // one partial step away

	got := c.Update(target)
	if got.Brightness != 0.99 {
		t.Errorf("expected brightness clamped at target 0.99, got %f", got.Brightness)
	}
}

func TestFadeOutlastsLengthUntilBrightnessArrives(t *testing.T) {
	c := New()

	target := color.Neutral()
	target.Temperature = 6500 // no temperature motion at all
	target.Brightness = 0.1   // 45 ticks at 0.02/tick

	for i := 0; i < DefaultLength; i++ {
		c.Update(target)
	}
	if !c.Fading() {
		t.Fatalf("expected fade still active while brightness lags")
	}
	for i := 0; i < 10; i++ {
		c.Update(target)
	}
	if c.Fading() {
		t.Errorf("expected fade to finish once brightness reached target")
	}
	if got := c.Displayed().Brightness; got != 0.1 {
		t.Errorf("expected brightness 0.1, got %f", got)
	}
}

func TestRetargetRestartsWithRemainingLength(t *testing.T) {
	c := New()

	first := color.Neutral()
	first.Temperature = 3500
	for i := 0; i < 10; i++ {
		c.Update(first)
	}
	mid := c.Displayed()

	second := color.Neutral()
	second.Temperature = 5500
	c.Update(second)

	if !c.Fading() {
		t.Fatalf("expected fade to restart on retarget")
	}
	// The restarted fade runs from the mid-fade value with the leftover
	// budget, so it must finish within the original overall length.
	remaining := DefaultLength - 10
	var got color.Setting
	for i := 0; i < remaining; i++ {
		got = c.Update(second)
	}
	if c.Fading() {
		t.Errorf("expected restarted fade to finish in %d ticks", remaining)
	}
	if got.Temperature != 5500 {
		t.Errorf("expected final temperature 5500K, got %dK", got.Temperature)
	}
	if mid.Temperature >= 6500 || mid.Temperature <= 3500 {
		t.Errorf("expected mid-fade value between endpoints, got %dK", mid.Temperature)
	}
}

func TestEaseFadeBounds(t *testing.T) {
	if got := easeFade(-0.5); got != 0 {
		t.Errorf("easeFade(-0.5) = %f, want 0", got)
	}
	if got := easeFade(0); got != 0 {
		t.Errorf("easeFade(0) = %f, want 0", got)
	}
	if got := easeFade(1); got != 1 {
		t.Errorf("easeFade(1) = %f, want 1", got)
	}
	if got := easeFade(2); got != 1 {
		t.Errorf("easeFade(2) = %f, want 1", got)
	}
	mid := easeFade(0.5)
	if mid <= 0 || mid >= 1 {
		t.Errorf("easeFade(0.5) = %f, want in (0, 1)", mid)
	}
}
