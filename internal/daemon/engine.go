// Package daemon ties the scheduler, fade controller, override resolver,
// command multiplexer and color sink together into the main control loop.
package daemon

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mkarjala/duskd/internal/color"
	"github.com/mkarjala/duskd/internal/command"
	"github.com/mkarjala/duskd/internal/fade"
	"github.com/mkarjala/duskd/internal/location"
	"github.com/mkarjala/duskd/internal/override"
	"github.com/mkarjala/duskd/internal/schedule"
	"github.com/mkarjala/duskd/internal/sink"
)

// Tick intervals for the main loop: short while a fade is in progress, long
// otherwise.
const (
	LongTick  = 5 * time.Second
	ShortTick = fade.TickInterval
)

// State is an observable snapshot of the daemon, published to notifiers when
// it changes.
type State struct {
	Period           string   `json:"period"`
	Temperature      int      `json:"temperature"`
	Brightness       float64  `json:"brightness"`
	Inhibited        bool     `json:"inhibited"`
	Disabled         bool     `json:"disabled"`
	CurrentLatitude  float64  `json:"current_latitude"`
	CurrentLongitude float64  `json:"current_longitude"`
	Elevation        float64  `json:"elevation"`
	TemperatureDay   int      `json:"temperature_day"`
	TemperatureNight int      `json:"temperature_night"`
}

// Notifier receives batched change notifications after a recompute. The
// changed map holds only the properties whose values differ from the
// previous recompute.
type Notifier interface {
	NotifyStateChanged(changed map[string]interface{}, full State)
}

// Engine owns all schedule, fade and override state. External surfaces (the
// D-Bus service, location providers) mutate it through its methods and the
// loop picks the change up on its next cycle; the loop itself is the only
// caller of recompute.
type Engine struct {
	logger   *slog.Logger
	resolver *override.Resolver
	fader    *fade.Controller
	sink     sink.Sink
	mux      *command.Mux

	notifiers []Notifier

	// now is replaceable for tests.
	now func() time.Time

	mu         sync.Mutex
	scheme     schedule.Scheme
	loc        location.Location
	locKnown   bool
	period     schedule.Period
	elevation  float64
	disabled   bool
	stopping   bool
	terminated bool
	prev       State
	applied    color.Setting
	hasApplied bool
}

// NewEngine assembles an engine around a validated scheme and a started
// sink. The mux may be nil when no command front-end is configured.
func NewEngine(logger *slog.Logger, scheme schedule.Scheme, snk sink.Sink, mux *command.Mux) *Engine {
	f := fade.New()
	e := &Engine{
		logger:   logger,
		resolver: override.NewResolver(),
		fader:    f,
		sink:     snk,
		mux:      mux,
		now:      time.Now,
		scheme:   scheme,
		period:   schedule.PeriodNone,
	}
	e.prev = e.snapshot(f.Displayed())
	return e
}

// SetFadeLength overrides the fade duration in ticks.
func (e *Engine) SetFadeLength(ticks int) {
	e.fader.FadeLength = ticks
}

// AddNotifier registers a state-change listener. Must be called before Run.
func (e *Engine) AddNotifier(n Notifier) {
	e.notifiers = append(e.notifiers, n)
}

// Resolver exposes the override resolver for the RPC surface.
func (e *Engine) Resolver() *override.Resolver { return e.resolver }

// Wake interrupts the loop's wait so a state mutation takes effect without
// waiting out the tick.
func (e *Engine) Wake() {
	if e.mux != nil {
		e.mux.Wake()
	}
}

// SetLocation records a location fix from a provider.
func (e *Engine) SetLocation(loc location.Location) {
	if !loc.Valid() {
		return
	}
	e.mu.Lock()
	e.loc = loc
	e.locKnown = true
	e.mu.Unlock()
	e.logger.Info("Location updated", "location", loc)
	e.Wake()
}

// GetElevation returns the most recently computed solar elevation.
func (e *Engine) GetElevation() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.elevation
}

// Snapshot returns the last published state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prev
}

// SetTemperatureDay changes the daytime temperature of the scheme.
func (e *Engine) SetTemperatureDay(kelvin int) error {
	if kelvin < color.MinTemperature || kelvin > color.MaxTemperature {
		return color.ErrTemperatureRange
	}
	e.mu.Lock()
	e.scheme.Day.Temperature = kelvin
	e.mu.Unlock()
	e.Wake()
	return nil
}

// SetTemperatureNight changes the night temperature of the scheme.
func (e *Engine) SetTemperatureNight(kelvin int) error {
	if kelvin < color.MinTemperature || kelvin > color.MaxTemperature {
		return color.ErrTemperatureRange
	}
	e.mu.Lock()
	e.scheme.Night.Temperature = kelvin
	e.mu.Unlock()
	e.Wake()
	return nil
}

// SetBrightness pins the manual brightness override.
func (e *Engine) SetBrightness(brightness float64) error {
	if brightness < color.MinBrightness || brightness > color.MaxBrightness {
		return color.ErrBrightnessRange
	}
	e.resolver.SetManualBrightness(&brightness)
	e.Wake()
	return nil
}

// AdjustBrightness steps the manual brightness by delta from the current
// effective value, clamped to the valid range.
func (e *Engine) AdjustBrightness(delta float64) {
	base := e.effectiveBrightness()
	b := color.Clamp(color.MinBrightness, base+delta, color.MaxBrightness)
	e.resolver.SetManualBrightness(&b)
	e.Wake()
}

// AdjustTemperature steps the manual temperature by delta Kelvin from the
// current effective value, clamped to the valid range.
func (e *Engine) AdjustTemperature(delta int) {
	base := e.effectiveTemperature()
	t := color.ClampTemperature(base + delta)
	e.resolver.SetManualTemperature(&t)
	e.Wake()
}

func (e *Engine) effectiveBrightness() float64 {
	if m := e.resolver.Manual(); m.Brightness != nil {
		return *m.Brightness
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fader.Displayed().Brightness
}

func (e *Engine) effectiveTemperature() int {
	if m := e.resolver.Manual(); m.Temperature != nil {
		return *m.Temperature
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fader.Displayed().Temperature
}

// SetDisabled sets the global disabled flag. Disabled forces the display
// toward neutral independent of the inhibitor mechanism.
func (e *Engine) SetDisabled(disabled bool) {
	e.mu.Lock()
	e.disabled = disabled
	e.mu.Unlock()
	e.Wake()
}

// ToggleDisabled flips the disabled flag and returns the new value.
func (e *Engine) ToggleDisabled() bool {
	e.mu.Lock()
	e.disabled = !e.disabled
	v := e.disabled
	e.mu.Unlock()
	e.Wake()
	return v
}

// RequestStop implements two-stage shutdown: the first call starts a
// graceful fade to neutral, the second forces immediate termination.
func (e *Engine) RequestStop() {
	e.mu.Lock()
	if !e.stopping {
		e.stopping = true
		e.mu.Unlock()
		e.logger.Info("Stopping, fading to neutral")
	} else {
		e.terminated = true
		e.mu.Unlock()
		e.logger.Info("Forced exit")
	}
	e.Wake()
}

// dispatch applies one parsed command line. It runs on the loop goroutine
// between the multiplexer scan and the recompute of the same cycle.
func (e *Engine) dispatch(cmd command.Command) bool {
	switch cmd.Kind {
	case command.KindBrightnessSet:
		b := color.Clamp(color.MinBrightness, cmd.Value, color.MaxBrightness)
		e.resolver.SetManualBrightness(&b)
	case command.KindBrightnessStep:
		base := e.effectiveBrightness()
		b := color.Clamp(color.MinBrightness, base+cmd.Value, color.MaxBrightness)
		e.resolver.SetManualBrightness(&b)
	case command.KindBrightnessReset:
		e.resolver.SetManualBrightness(nil)
	case command.KindTemperatureSet:
		t := color.ClampTemperature(cmd.Kelvin)
		e.resolver.SetManualTemperature(&t)
	case command.KindTemperatureStep:
		base := e.effectiveTemperature()
		t := color.ClampTemperature(base + cmd.Kelvin)
		e.resolver.SetManualTemperature(&t)
	case command.KindTemperatureReset:
		e.resolver.SetManualTemperature(nil)
	case command.KindEnable:
		e.mu.Lock()
		e.disabled = false
		e.mu.Unlock()
	case command.KindDisable:
		e.mu.Lock()
		e.disabled = true
		e.mu.Unlock()
	case command.KindToggle:
		e.mu.Lock()
		e.disabled = !e.disabled
		e.mu.Unlock()
	case command.KindShutdown:
		e.RequestStop()
	default:
		return false
	}
	return true
}

// computeTarget derives the color setting the display should move toward at
// time now, before fading. Callers hold e.mu.
func (e *Engine) computeTarget(now time.Time) color.Setting {
	if e.scheme.UseTime {
		offset := schedule.SecondsSinceMidnight(now)
		e.period = e.scheme.PeriodFromTime(offset)
		e.elevation = 0
		progress := e.scheme.ProgressFromTime(offset)
		return e.overlay(e.scheme.Interpolate(progress))
	}

	loc := e.loc
	known := e.locKnown
	if forced, ok := e.resolver.ForcedLocation(); ok {
		loc = forced
		known = true
	}
	if !known {
		// No location was ever obtained: no adjustment until one
		// materializes or is forced.
		e.period = schedule.PeriodNone
		return e.overlay(color.Neutral())
	}

	e.elevation = schedule.Elevation(now, loc.Latitude, loc.Longitude)
	e.period = e.scheme.PeriodFromElevation(e.elevation)
	progress := e.scheme.ProgressFromElevation(e.elevation)
	return e.overlay(e.scheme.Interpolate(progress))
}

// overlay folds disabled, inhibited and override state into the scheduled
// setting.
func (e *Engine) overlay(scheduled color.Setting) color.Setting {
	if e.stopping || e.disabled {
		return color.Neutral()
	}
	if e.resolver.Inhibited() {
		// Inhibit resets color adjustment but a manual brightness
		// still applies.
		out := color.Neutral()
		if m := e.resolver.Manual(); m.Brightness != nil {
			out.Brightness = *m.Brightness
		}
		return out
	}
	return e.resolver.Apply(scheduled)
}

// snapshot builds the observable state for the displayed setting. Callers
// hold e.mu.
func (e *Engine) snapshot(displayed color.Setting) State {
	return State{
		Period:           e.period.ShortName(),
		Temperature:      displayed.Temperature,
		Brightness:       displayed.Brightness,
		Inhibited:        e.resolver.Inhibited(),
		Disabled:         e.disabled,
		CurrentLatitude:  e.loc.Latitude,
		CurrentLongitude: e.loc.Longitude,
		Elevation:        e.elevation,
		TemperatureDay:   e.scheme.Day.Temperature,
		TemperatureNight: e.scheme.Night.Temperature,
	}
}

// diffState lists the properties whose values changed between two snapshots,
// keyed by their RPC property names.
func diffState(prev, next State) map[string]interface{} {
	changed := make(map[string]interface{})
	if prev.Period != next.Period {
		changed["Period"] = next.Period
	}
	if prev.Temperature != next.Temperature {
		changed["Temperature"] = uint32(next.Temperature)
	}
	if prev.Brightness != next.Brightness {
		changed["Brightness"] = next.Brightness
	}
	if prev.Inhibited != next.Inhibited {
		changed["Inhibited"] = next.Inhibited
	}
	if prev.CurrentLatitude != next.CurrentLatitude {
		changed["CurrentLatitude"] = next.CurrentLatitude
	}
	if prev.CurrentLongitude != next.CurrentLongitude {
		changed["CurrentLongitude"] = next.CurrentLongitude
	}
	if prev.TemperatureDay != next.TemperatureDay {
		changed["TemperatureDay"] = uint32(next.TemperatureDay)
	}
	if prev.TemperatureNight != next.TemperatureNight {
		changed["TemperatureNight"] = uint32(next.TemperatureNight)
	}
	return changed
}

// recompute runs one scheduling step: derive the target, advance the fade,
// apply to the sink if the displayed setting changed, and report the state
// diff. It returns the new state, the changed properties, and whether the
// loop should exit.
func (e *Engine) recompute(now time.Time) (changed map[string]interface{}, state State, done bool) {
	e.mu.Lock()

	target := e.computeTarget(now)
	displayed := e.fader.Update(target)

	apply := !e.hasApplied || e.applied.Diff(displayed)
	if apply {
		e.applied = displayed
		e.hasApplied = true
	}

	if e.stopping && !e.fader.Fading() && !displayed.Diff(color.Neutral()) {
		e.terminated = true
	}
	done = e.terminated

	state = e.snapshot(displayed)
	changed = diffState(e.prev, state)
	e.prev = state
	e.mu.Unlock()

	if apply {
		if err := e.sink.Set(displayed); err != nil {
			e.logger.Error("Failed to apply color setting", "error", err)
		}
	}
	return changed, state, done
}

// step runs one recompute and delivers change notifications. It returns
// whether the loop should exit.
func (e *Engine) step(now time.Time) (done bool) {
	changed, state, done := e.recompute(now)
	if len(changed) > 0 {
		for _, n := range e.notifiers {
			n.NotifyStateChanged(changed, state)
		}
	}
	return done
}

// Fading reports whether the fade controller is mid-fade.
func (e *Engine) Fading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fader.Fading()
}
