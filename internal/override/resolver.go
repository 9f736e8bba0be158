// Package override tracks the client-driven adjustments layered on top of
// the scheduled color setting: inhibit requests, forced temperature and
// location enforcements, and manual step adjustments.
package override

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mkarjala/duskd/internal/color"
	"github.com/mkarjala/duskd/internal/location"
)

var (
	// ErrUnknownCookie is returned when an operation names a cookie this
	// resolver never issued or has already retired.
	ErrUnknownCookie = errors.New("unknown cookie")
	// ErrAlreadyEnforced is returned when another cookie holds the
	// requested enforcement slot.
	ErrAlreadyEnforced = errors.New("already enforced by another client")
	// ErrInvalidArgument is returned for out-of-range enforcement values.
	ErrInvalidArgument = errors.New("invalid argument")
)

// TemperatureLayers is the number of forced-temperature slots: one normal,
// one priority. The highest occupied slot wins.
const TemperatureLayers = 2

// Manual carries the step-adjusted values. A nil field means the scheduled
// value passes through untouched.
type Manual struct {
	Temperature *int
	Brightness  *float64
}

type tempSlot struct {
	cookie      uint32 // 0 means empty
	temperature int
}

// Resolver issues cookies and arbitrates the override layers. Methods are
// safe for concurrent use.
type Resolver struct {
	mu sync.Mutex

	nextCookie uint32
	issued     map[uint32]string // cookie -> program name

	inhibitors map[uint32]bool

	forcedTemps [TemperatureLayers]tempSlot

	forcedLocCookie uint32
	forcedLoc       location.Location

	manual Manual
}

// NewResolver returns a resolver with no active overrides.
func NewResolver() *Resolver {
	return &Resolver{
		nextCookie: 1,
		issued:     make(map[uint32]string),
		inhibitors: make(map[uint32]bool),
	}
}

// Acquire issues a fresh cookie on behalf of program. Cookies are never
// reused.
func (r *Resolver) Acquire(program string) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	cookie := r.nextCookie
	r.nextCookie++
	r.issued[cookie] = program
	return cookie
}

// Program returns the name registered with a cookie.
func (r *Resolver) Program(cookie uint32) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	program, ok := r.issued[cookie]
	if !ok {
		return "", ErrUnknownCookie
	}
	return program, nil
}

// Release retires a cookie and drops every override it holds. It reports
// whether dropping them changed the effective state.
func (r *Resolver) Release(cookie uint32) (changed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.issued[cookie]; !ok {
		return false, ErrUnknownCookie
	}
	delete(r.issued, cookie)

	if r.inhibitors[cookie] {
		delete(r.inhibitors, cookie)
		if len(r.inhibitors) == 0 {
			changed = true
		}
	}
	for i := range r.forcedTemps {
		if r.forcedTemps[i].cookie == cookie {
			r.forcedTemps[i] = tempSlot{}
			changed = true
		}
	}
	if r.forcedLocCookie == cookie {
		r.forcedLocCookie = 0
		changed = true
	}
	return changed, nil
}

// Inhibit records an inhibit request for cookie. It reports whether the
// inhibited state flipped from clear to set.
func (r *Resolver) Inhibit(cookie uint32) (changed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.issued[cookie]; !ok {
		return false, ErrUnknownCookie
	}
	if r.inhibitors[cookie] {
		return false, nil
	}
	first := len(r.inhibitors) == 0
	r.inhibitors[cookie] = true
	return first, nil
}

// Uninhibit withdraws a cookie's inhibit request. It reports whether the
// inhibited state flipped from set to clear.
func (r *Resolver) Uninhibit(cookie uint32) (changed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.issued[cookie]; !ok {
		return false, ErrUnknownCookie
	}
	if !r.inhibitors[cookie] {
		return false, nil
	}
	delete(r.inhibitors, cookie)
	return len(r.inhibitors) == 0, nil
}

// Inhibited reports whether any cookie currently inhibits adjustment.
func (r *Resolver) Inhibited() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inhibitors) > 0
}

// EnforceTemperature pins the color temperature to kelvin on behalf of
// cookie. The priority flag selects one of two slots; the priority slot wins
// over the normal one. A cookie may overwrite its own slot, but a slot held
// by another cookie is refused.
func (r *Resolver) EnforceTemperature(cookie uint32, kelvin int, priority bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.issued[cookie]; !ok {
		return ErrUnknownCookie
	}
	slot := &r.forcedTemps[slotIndex(priority)]
	if slot.cookie != 0 && slot.cookie != cookie {
		return ErrAlreadyEnforced
	}
	if kelvin < color.MinTemperature || kelvin > color.MaxTemperature {
		return fmt.Errorf("%w: temperature %dK out of range [%d, %d]",
			ErrInvalidArgument, kelvin, color.MinTemperature, color.MaxTemperature)
	}
	slot.cookie = cookie
	slot.temperature = kelvin
	return nil
}

// UnenforceTemperature clears cookie's hold on the selected slot. It reports
// whether a hold was actually dropped. Clearing a slot held by another
// cookie is a no-op, not an error.
func (r *Resolver) UnenforceTemperature(cookie uint32, priority bool) (changed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.issued[cookie]; !ok {
		return false, ErrUnknownCookie
	}
	slot := &r.forcedTemps[slotIndex(priority)]
	if slot.cookie != cookie {
		return false, nil
	}
	*slot = tempSlot{}
	return true, nil
}

// ForcedTemperature returns the winning forced temperature, or ok=false when
// no slot is held.
func (r *Resolver) ForcedTemperature() (kelvin int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := TemperatureLayers - 1; i >= 0; i-- {
		if r.forcedTemps[i].cookie != 0 {
			return r.forcedTemps[i].temperature, true
		}
	}
	return 0, false
}

// EnforceLocation pins the location on behalf of cookie. There is a single
// location slot; a cookie may overwrite its own hold.
func (r *Resolver) EnforceLocation(cookie uint32, loc location.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.issued[cookie]; !ok {
		return ErrUnknownCookie
	}
	if r.forcedLocCookie != 0 && r.forcedLocCookie != cookie {
		return ErrAlreadyEnforced
	}
	if !loc.Valid() {
		return fmt.Errorf("%w: latitude %f, longitude %f",
			ErrInvalidArgument, loc.Latitude, loc.Longitude)
	}
	r.forcedLocCookie = cookie
	r.forcedLoc = loc
	return nil
}

// UnenforceLocation clears cookie's hold on the location slot. It reports
// whether a hold was actually dropped.
func (r *Resolver) UnenforceLocation(cookie uint32) (changed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.issued[cookie]; !ok {
		return false, ErrUnknownCookie
	}
	if r.forcedLocCookie != cookie {
		return false, nil
	}
	r.forcedLocCookie = 0
	return true, nil
}

// ForcedLocation returns the forced location, or ok=false when the slot is
// free.
func (r *Resolver) ForcedLocation() (loc location.Location, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.forcedLocCookie == 0 {
		return location.Location{}, false
	}
	return r.forcedLoc, true
}

// SetManualTemperature pins the manual temperature override, clamped to the
// valid range. Passing nil clears it.
func (r *Resolver) SetManualTemperature(kelvin *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if kelvin == nil {
		r.manual.Temperature = nil
		return
	}
	t := color.ClampTemperature(*kelvin)
	r.manual.Temperature = &t
}

// SetManualBrightness pins the manual brightness override, clamped to the
// valid range. Passing nil clears it.
func (r *Resolver) SetManualBrightness(brightness *float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if brightness == nil {
		r.manual.Brightness = nil
		return
	}
	b := color.Clamp(color.MinBrightness, *brightness, color.MaxBrightness)
	r.manual.Brightness = &b
}

// Manual returns copies of the current manual overrides.
func (r *Resolver) Manual() Manual {
	r.mu.Lock()
	defer r.mu.Unlock()
	var m Manual
	if r.manual.Temperature != nil {
		t := *r.manual.Temperature
		m.Temperature = &t
	}
	if r.manual.Brightness != nil {
		b := *r.manual.Brightness
		m.Brightness = &b
	}
	return m
}

// Apply folds the override layers into the scheduled setting. Forced values
// take precedence over manual ones. Manual brightness applies even to an
// inhibited (neutral) setting, so the inhibited check belongs to the caller.
func (r *Resolver) Apply(scheduled color.Setting) color.Setting {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := scheduled
	if r.manual.Temperature != nil {
		out.Temperature = *r.manual.Temperature
	}
	for i := TemperatureLayers - 1; i >= 0; i-- {
		if r.forcedTemps[i].cookie != 0 {
			out.Temperature = r.forcedTemps[i].temperature
			break
		}
	}
	if r.manual.Brightness != nil {
		out.Brightness = *r.manual.Brightness
	}
	return out
}

func slotIndex(priority bool) int {
	if priority {
		return 1
	}
	return 0
}
