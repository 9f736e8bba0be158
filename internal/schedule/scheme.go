// Package schedule derives the current period of day and transition progress
// from solar elevation or from configured dawn/dusk windows.
package schedule

import (
	"errors"
	"fmt"

	"github.com/mkarjala/duskd/internal/color"
)

// Period of day, derived from elevation or time. Never stored.
type Period int

const (
	PeriodNone Period = iota
	PeriodDaytime
	PeriodNight
	PeriodTransition
)

func (p Period) String() string {
	switch p {
	case PeriodDaytime:
		return "Daytime"
	case PeriodNight:
		return "Night"
	case PeriodTransition:
		return "Transition"
	default:
		return "None"
	}
}

// ShortName is the period name used on the control surface, where daytime is
// reported as "Day".
func (p Period) ShortName() string {
	if p == PeriodDaytime {
		return "Day"
	}
	return p.String()
}

// Default transition elevations: the transition starts at civil twilight and
// the day setting is fully applied a few degrees above the horizon.
const (
	DefaultElevationLow  = -6.0
	DefaultElevationHigh = 3.0
)

// TimeRange is a window of the day, in seconds from local midnight.
type TimeRange struct {
	Start int
	End   int
}

// Scheme holds the day and night color settings plus the elevation or time
// boundaries between them.
type Scheme struct {
	Low  float64
	High float64

	// UseTime switches from solar elevation to the dawn/dusk windows.
	UseTime bool
	Dawn    TimeRange
	Dusk    TimeRange

	Day   color.Setting
	Night color.Setting
}

// DefaultScheme returns an elevation-based scheme with the stock day and
// night temperatures.
func DefaultScheme() Scheme {
	day := color.Neutral()
	night := color.Neutral()
	night.Temperature = 4500
	return Scheme{
		Low:   DefaultElevationLow,
		High:  DefaultElevationHigh,
		Day:   day,
		Night: night,
	}
}

// PeriodFromElevation maps a solar elevation in degrees onto a period.
func (s Scheme) PeriodFromElevation(elevation float64) Period {
	switch {
	case elevation < s.Low:
		return PeriodNight
	case elevation < s.High:
		return PeriodTransition
	default:
		return PeriodDaytime
	}
}

// ProgressFromElevation returns how far through the night-to-day transition
// the given elevation is, clamped to [0,1].
func (s Scheme) ProgressFromElevation(elevation float64) float64 {
	switch {
	case elevation < s.Low:
		return 0
	case elevation < s.High:
		return (s.Low - elevation) / (s.Low - s.High)
	default:
		return 1
	}
}

// PeriodFromTime maps seconds-since-midnight onto a period using the dawn and
// dusk windows.
func (s Scheme) PeriodFromTime(offset int) Period {
	switch {
	case offset < s.Dawn.Start || offset >= s.Dusk.End:
		return PeriodNight
	case offset >= s.Dawn.End && offset < s.Dusk.Start:
		return PeriodDaytime
	default:
		return PeriodTransition
	}
}

// ProgressFromTime returns the transition progress for a time offset: rising
// 0 to 1 across dawn, 1 through daytime, falling back to 0 across dusk.
// Zero-length windows are rejected by Validate and never reach this point.
func (s Scheme) ProgressFromTime(offset int) float64 {
	switch {
	case offset < s.Dawn.Start || offset >= s.Dusk.End:
		return 0
	case offset < s.Dawn.End:
		return float64(s.Dawn.Start-offset) / float64(s.Dawn.Start-s.Dawn.End)
	case offset > s.Dusk.Start:
		return float64(s.Dusk.End-offset) / float64(s.Dusk.End-s.Dusk.Start)
	default:
		return 1
	}
}

// Interpolate blends the night setting toward the day setting.
func (s Scheme) Interpolate(alpha float64) color.Setting {
	return color.Interpolate(s.Night, s.Day, alpha)
}

// Validate checks elevation ordering, dawn/dusk ordering and window lengths,
// and the color settings themselves.
func (s Scheme) Validate() error {
	if err := s.Day.Validate(); err != nil {
		return fmt.Errorf("day setting: %w", err)
	}
	if err := s.Night.Validate(); err != nil {
		return fmt.Errorf("night setting: %w", err)
	}
	if s.UseTime {
		if s.Dawn.Start > s.Dawn.End || s.Dawn.End > s.Dusk.Start || s.Dusk.Start > s.Dusk.End {
			return errors.New("dawn and dusk windows must be ordered: dawn.start <= dawn.end <= dusk.start <= dusk.end")
		}
		if s.Dawn.Start == s.Dawn.End || s.Dusk.Start == s.Dusk.End {
			return errors.New("dawn and dusk windows must not be empty")
		}
		return nil
	}
	if s.High < s.Low {
		return errors.New("high transition elevation cannot be lower than the low transition elevation")
	}
	return nil
}
