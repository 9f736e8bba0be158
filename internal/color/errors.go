package color

import (
	"errors"
	"fmt"
)

// Validation errors for color setting bounds.
var (
	ErrTemperatureRange = fmt.Errorf("temperature must be between %dK and %dK", MinTemperature, MaxTemperature)
	ErrBrightnessRange  = fmt.Errorf("brightness must be between %.1f and %.1f", MinBrightness, MaxBrightness)
	ErrGammaRange       = errors.New("gamma values must be positive")
)
