package schedule

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// schemeFile is the YAML representation of a color scheme. Every field is
// optional; absent fields keep their base value.
type schemeFile struct {
	TempDay         *int     `yaml:"temp-day"`
	TempNight       *int     `yaml:"temp-night"`
	BrightnessDay   *float64 `yaml:"brightness-day"`
	BrightnessNight *float64 `yaml:"brightness-night"`
	Gamma           *string  `yaml:"gamma"`
	ElevationHigh   *float64 `yaml:"elevation-high"`
	ElevationLow    *float64 `yaml:"elevation-low"`
	UseTimeRanges   *bool    `yaml:"use-time-ranges"`
	DawnStart       *string  `yaml:"dawn-start"`
	DawnEnd         *string  `yaml:"dawn-end"`
	DuskStart       *string  `yaml:"dusk-start"`
	DuskEnd         *string  `yaml:"dusk-end"`
}

// LoadSchemeFile overlays the scheme settings from a YAML file onto base.
// The result is not validated; callers run Scheme.Validate after assembling
// the final scheme.
func LoadSchemeFile(path string, base Scheme) (Scheme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read scheme file: %w", err)
	}
	var f schemeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return base, fmt.Errorf("failed to parse scheme file: %w", err)
	}

	out := base
	if f.TempDay != nil {
		out.Day.Temperature = *f.TempDay
	}
	if f.TempNight != nil {
		out.Night.Temperature = *f.TempNight
	}
	if f.BrightnessDay != nil {
		out.Day.Brightness = *f.BrightnessDay
	}
	if f.BrightnessNight != nil {
		out.Night.Brightness = *f.BrightnessNight
	}
	if f.Gamma != nil {
		gamma, err := ParseGamma(*f.Gamma)
		if err != nil {
			return base, err
		}
		out.Day.Gamma = gamma
		out.Night.Gamma = gamma
	}
	if f.ElevationHigh != nil {
		out.High = *f.ElevationHigh
	}
	if f.ElevationLow != nil {
		out.Low = *f.ElevationLow
	}
	if f.UseTimeRanges != nil {
		out.UseTime = *f.UseTimeRanges
	}
	if err := overlayTime(f.DawnStart, &out.Dawn.Start); err != nil {
		return base, err
	}
	if err := overlayTime(f.DawnEnd, &out.Dawn.End); err != nil {
		return base, err
	}
	if err := overlayTime(f.DuskStart, &out.Dusk.Start); err != nil {
		return base, err
	}
	if err := overlayTime(f.DuskEnd, &out.Dusk.End); err != nil {
		return base, err
	}
	return out, nil
}

func overlayTime(v *string, dst *int) error {
	if v == nil {
		return nil
	}
	offset, err := ParseTimeOfDay(*v)
	if err != nil {
		return err
	}
	*dst = offset
	return nil
}

// ParseTimeOfDay converts "HH:MM" to seconds since midnight.
func ParseTimeOfDay(v string) (int, error) {
	parts := strings.Split(v, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", v)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", v)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", v)
	}
	return hour*3600 + minute*60, nil
}

// ParseGamma parses a gamma specification: a single value applied to all
// channels, or three colon-separated per-channel values.
func ParseGamma(v string) ([3]float64, error) {
	parts := strings.Split(v, ":")
	switch len(parts) {
	case 1:
		g, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return [3]float64{}, fmt.Errorf("invalid gamma %q", v)
		}
		return [3]float64{g, g, g}, nil
	case 3:
		var gamma [3]float64
		for i, p := range parts {
			g, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return [3]float64{}, fmt.Errorf("invalid gamma %q", v)
			}
			gamma[i] = g
		}
		return gamma, nil
	}
	return [3]float64{}, fmt.Errorf("invalid gamma %q: expected G or R:G:B", v)
}
