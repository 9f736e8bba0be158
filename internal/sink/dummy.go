package sink

import (
	"fmt"
	"log/slog"

	"github.com/mkarjala/duskd/internal/color"
)

// DummySink logs the settings it would apply instead of touching hardware.
// Useful for testing the daemon without a display.
type DummySink struct {
	logger *slog.Logger

	started bool
	last    color.Setting
}

func NewDummySink(logger *slog.Logger) *DummySink {
	return &DummySink{logger: logger}
}

func (s *DummySink) Name() string { return "dummy" }

func (s *DummySink) SetOption(key, value string) error {
	return fmt.Errorf("unknown option %q for dummy sink", key)
}

func (s *DummySink) Start() error {
	s.started = true
	s.last = color.Neutral()
	return nil
}

func (s *DummySink) Set(setting color.Setting) error {
	if !s.started {
		return fmt.Errorf("dummy sink not started")
	}
	s.last = setting
	s.logger.Info("Display setting",
		"temperature", setting.Temperature,
		"brightness", fmt.Sprintf("%.2f", setting.Brightness))
	return nil
}

// Last returns the setting most recently applied.
func (s *DummySink) Last() color.Setting { return s.last }

func (s *DummySink) Restore() error {
	s.last = color.Neutral()
	return nil
}

func (s *DummySink) Close() error {
	s.started = false
	return nil
}
