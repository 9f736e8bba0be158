package override

import (
	"errors"
	"testing"

	"github.com/mkarjala/duskd/internal/color"
	"github.com/mkarjala/duskd/internal/location"
)

func TestAcquireIssuesDistinctCookies(t *testing.T) {
	r := NewResolver()
	a := r.Acquire("first")
	b := r.Acquire("second")
	if a == b {
		t.Errorf("expected distinct cookies, got %d twice", a)
	}
	if program, err := r.Program(b); err != nil || program != "second" {
		t.Errorf("Program(%d) = %q, %v, want \"second\", nil", b, program, err)
	}
}

func TestReleaseUnknownCookie(t *testing.T) {
	r := NewResolver()
	if _, err := r.Release(42); !errors.Is(err, ErrUnknownCookie) {
		t.Errorf("expected ErrUnknownCookie, got %v", err)
	}
}

func TestReleasedCookieCannotActAgain(t *testing.T) {
	r := NewResolver()
	c := r.Acquire("test")
	if _, err := r.Release(c); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, err := r.Inhibit(c); !errors.Is(err, ErrUnknownCookie) {
		t.Errorf("expected ErrUnknownCookie after release, got %v", err)
	}
}

func TestInhibitRefcounting(t *testing.T) {
	r := NewResolver()
	a := r.Acquire("a")
	b := r.Acquire("b")

	changed, err := r.Inhibit(a)
	if err != nil || !changed {
		t.Fatalf("first inhibit: changed=%v err=%v, want true nil", changed, err)
	}
	changed, err = r.Inhibit(b)
	if err != nil || changed {
		t.Fatalf("second inhibit: changed=%v err=%v, want false nil", changed, err)
	}
	if !r.Inhibited() {
		t.Errorf("expected inhibited with two holders")
	}

	changed, err = r.Uninhibit(a)
	if err != nil || changed {
		t.Fatalf("first uninhibit: changed=%v err=%v, want false nil", changed, err)
	}
	changed, err = r.Uninhibit(b)
	if err != nil || !changed {
		t.Fatalf("last uninhibit: changed=%v err=%v, want true nil", changed, err)
	}
	if r.Inhibited() {
		t.Errorf("expected uninhibited with no holders")
	}
}

func TestInhibitIdempotentPerCookie(t *testing.T) {
	r := NewResolver()
	c := r.Acquire("test")
	r.Inhibit(c)
	if changed, err := r.Inhibit(c); err != nil || changed {
		t.Errorf("repeat inhibit: changed=%v err=%v, want false nil", changed, err)
	}

	d := r.Acquire("other")
	if changed, err := r.Uninhibit(d); err != nil || changed {
		t.Errorf("uninhibit without inhibit: changed=%v err=%v, want false nil", changed, err)
	}
}

func TestEnforceTemperatureSlotOwnership(t *testing.T) {
	r := NewResolver()
	a := r.Acquire("a")
	b := r.Acquire("b")

	if err := r.EnforceTemperature(a, 4000, false); err != nil {
		t.Fatalf("first enforce: %v", err)
	}
	if err := r.EnforceTemperature(b, 5000, false); !errors.Is(err, ErrAlreadyEnforced) {
		t.Errorf("same slot, other cookie: expected ErrAlreadyEnforced, got %v", err)
	}

	// The same cookie may overwrite its own slot.
	if err := r.EnforceTemperature(a, 4500, false); err != nil {
		t.Errorf("overwrite own slot: %v", err)
	}
	if kelvin, ok := r.ForcedTemperature(); !ok || kelvin != 4500 {
		t.Errorf("expected 4500K, got %d ok=%v", kelvin, ok)
	}

	// Releasing the holder frees the slot for the other cookie.
	if _, err := r.Release(a); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := r.EnforceTemperature(b, 5000, false); err != nil {
		t.Errorf("enforce after release: %v", err)
	}
	if kelvin, ok := r.ForcedTemperature(); !ok || kelvin != 5000 {
		t.Errorf("expected 5000K, got %d ok=%v", kelvin, ok)
	}
}

func TestPrioritySlotWins(t *testing.T) {
	r := NewResolver()
	normal := r.Acquire("normal")
	prio := r.Acquire("priority")

	if err := r.EnforceTemperature(normal, 4000, false); err != nil {
		t.Fatalf("normal enforce: %v", err)
	}
	if err := r.EnforceTemperature(prio, 7000, true); err != nil {
		t.Fatalf("priority enforce: %v", err)
	}
	if kelvin, ok := r.ForcedTemperature(); !ok || kelvin != 7000 {
		t.Errorf("expected priority slot 7000K to win, got %d ok=%v", kelvin, ok)
	}

	changed, err := r.Release(prio)
	if err != nil || !changed {
		t.Fatalf("release priority: changed=%v err=%v, want true nil", changed, err)
	}
	if kelvin, ok := r.ForcedTemperature(); !ok || kelvin != 4000 {
		t.Errorf("expected fallback to normal slot 4000K, got %d ok=%v", kelvin, ok)
	}
}

func TestEnforceTemperatureRange(t *testing.T) {
	r := NewResolver()
	c := r.Acquire("test")
	if err := r.EnforceTemperature(c, 500, false); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for 500K, got %v", err)
	}
	if err := r.EnforceTemperature(c, 30000, false); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for 30000K, got %v", err)
	}
	if _, ok := r.ForcedTemperature(); ok {
		t.Errorf("expected no slot taken after rejected enforcements")
	}
}

func TestUnenforceTemperatureOtherCookieNoop(t *testing.T) {
	r := NewResolver()
	a := r.Acquire("a")
	b := r.Acquire("b")
	if err := r.EnforceTemperature(a, 4000, false); err != nil {
		t.Fatalf("enforce: %v", err)
	}
	changed, err := r.UnenforceTemperature(b, false)
	if err != nil || changed {
		t.Errorf("unenforce by non-holder: changed=%v err=%v, want false nil", changed, err)
	}
	if kelvin, ok := r.ForcedTemperature(); !ok || kelvin != 4000 {
		t.Errorf("expected slot intact at 4000K, got %d ok=%v", kelvin, ok)
	}
}

func TestEnforceLocation(t *testing.T) {
	r := NewResolver()
	a := r.Acquire("a")
	b := r.Acquire("b")

	bad := location.Location{Latitude: 95, Longitude: 0}
	if err := r.EnforceLocation(a, bad); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for latitude 95, got %v", err)
	}

	loc := location.Location{Latitude: 60.17, Longitude: 24.94}
	if err := r.EnforceLocation(a, loc); err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if err := r.EnforceLocation(b, loc); !errors.Is(err, ErrAlreadyEnforced) {
		t.Errorf("expected ErrAlreadyEnforced for second holder, got %v", err)
	}
	got, ok := r.ForcedLocation()
	if !ok || got != loc {
		t.Errorf("expected forced location %v, got %v ok=%v", loc, got, ok)
	}

	changed, err := r.UnenforceLocation(a)
	if err != nil || !changed {
		t.Fatalf("unenforce: changed=%v err=%v, want true nil", changed, err)
	}
	if _, ok := r.ForcedLocation(); ok {
		t.Errorf("expected location slot freed")
	}
}

func TestReleaseDropsAllOverrides(t *testing.T) {
	r := NewResolver()
	c := r.Acquire("test")
	r.Inhibit(c)
	r.EnforceTemperature(c, 4000, false)
	r.EnforceLocation(c, location.Location{Latitude: 60, Longitude: 25})

	changed, err := r.Release(c)
	if err != nil || !changed {
		t.Fatalf("release: changed=%v err=%v, want true nil", changed, err)
	}
	if r.Inhibited() {
		t.Errorf("expected inhibit dropped on release")
	}
	if _, ok := r.ForcedTemperature(); ok {
		t.Errorf("expected forced temperature dropped on release")
	}
	if _, ok := r.ForcedLocation(); ok {
		t.Errorf("expected forced location dropped on release")
	}
}

func TestApplyPrecedence(t *testing.T) {
	r := NewResolver()
	scheduled := color.Setting{Temperature: 5000, Gamma: [3]float64{1, 1, 1}, Brightness: 1.0}

	manualTemp := 4200
	r.SetManualTemperature(&manualTemp)
	out := r.Apply(scheduled)
	if out.Temperature != 4200 {
		t.Errorf("manual temperature: got %dK, want 4200K", out.Temperature)
	}

	c := r.Acquire("test")
	if err := r.EnforceTemperature(c, 3000, false); err != nil {
		t.Fatalf("enforce: %v", err)
	}
	out = r.Apply(scheduled)
	if out.Temperature != 3000 {
		t.Errorf("forced over manual: got %dK, want 3000K", out.Temperature)
	}

	b := 0.5
	r.SetManualBrightness(&b)
	out = r.Apply(scheduled)
	if out.Brightness != 0.5 {
		t.Errorf("manual brightness: got %f, want 0.5", out.Brightness)
	}

	r.SetManualTemperature(nil)
	r.UnenforceTemperature(c, false)
	out = r.Apply(scheduled)
	if out.Temperature != 5000 {
		t.Errorf("cleared overrides: got %dK, want scheduled 5000K", out.Temperature)
	}
}

func TestManualValuesClamped(t *testing.T) {
	r := NewResolver()
	temp := 100
	r.SetManualTemperature(&temp)
	if m := r.Manual(); m.Temperature == nil || *m.Temperature != color.MinTemperature {
		t.Errorf("expected manual temperature clamped to %d, got %v", color.MinTemperature, m.Temperature)
	}
	b := 0.01
	r.SetManualBrightness(&b)
	if m := r.Manual(); m.Brightness == nil || *m.Brightness != color.MinBrightness {
		t.Errorf("expected manual brightness clamped to %f, got %v", color.MinBrightness, m.Brightness)
	}
}
