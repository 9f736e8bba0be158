package sink

import (
	"fmt"
	"log/slog"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/mkarjala/duskd/internal/color"
)

type savedRamp struct {
	crtc    randr.Crtc
	size    uint16
	r, g, b []uint16
}

// RandrSink applies gamma ramps to every CRTC of an X11 screen through the
// RandR extension. The ramps present at Start are saved and put back by
// Restore.
type RandrSink struct {
	logger  *slog.Logger
	display string

	conn  *xgb.Conn
	root  xproto.Window
	saved []savedRamp
}

// NewRandrSink returns an unstarted RandR sink for the default display.
func NewRandrSink(logger *slog.Logger) *RandrSink {
	return &RandrSink{logger: logger}
}

func (s *RandrSink) Name() string { return "randr" }

// SetOption understands "display", naming the X display to connect to.
func (s *RandrSink) SetOption(key, value string) error {
	switch key {
	case "display":
		s.display = value
		return nil
	}
	return fmt.Errorf("unknown option %q for randr sink", key)
}

// Start connects to the X server, initializes RandR and saves the current
// gamma ramps of every CRTC.
func (s *RandrSink) Start() error {
	conn, err := xgb.NewConnDisplay(s.display)
	if err != nil {
		return fmt.Errorf("failed to connect to X display: %w", err)
	}
	if err := randr.Init(conn); err != nil {
		conn.Close()
		return fmt.Errorf("failed to initialize randr: %w", err)
	}
	s.conn = conn
	s.root = xproto.Setup(conn).DefaultScreen(conn).Root

	resources, err := randr.GetScreenResourcesCurrent(s.conn, s.root).Reply()
	if err != nil {
		conn.Close()
		s.conn = nil
		return fmt.Errorf("failed to get screen resources: %w", err)
	}
	for _, crtc := range resources.Crtcs {
		gamma, err := randr.GetCrtcGamma(s.conn, crtc).Reply()
		if err != nil {
			s.logger.Warn("Failed to save gamma ramp", "crtc", crtc, "error", err)
			continue
		}
		s.saved = append(s.saved, savedRamp{
			crtc: crtc,
			size: gamma.Size,
			r:    gamma.Red,
			g:    gamma.Green,
			b:    gamma.Blue,
		})
	}
	return nil
}

// Set computes and applies a gamma ramp for every CRTC.
func (s *RandrSink) Set(setting color.Setting) error {
	resources, err := randr.GetScreenResourcesCurrent(s.conn, s.root).Reply()
	if err != nil {
		return fmt.Errorf("failed to get screen resources: %w", err)
	}
	for _, crtc := range resources.Crtcs {
		if err := s.setCrtc(crtc, setting); err != nil {
			s.logger.Warn("Failed to set gamma ramp", "crtc", crtc, "error", err)
		}
	}
	return nil
}

func (s *RandrSink) setCrtc(crtc randr.Crtc, setting color.Setting) error {
	gamma, err := randr.GetCrtcGammaSize(s.conn, crtc).Reply()
	if err != nil {
		return fmt.Errorf("failed to get gamma size: %w", err)
	}
	r := make([]uint16, gamma.Size)
	g := make([]uint16, gamma.Size)
	b := make([]uint16, gamma.Size)
	GammaRamp(r, g, b, setting)
	if err := randr.SetCrtcGammaChecked(s.conn, crtc, gamma.Size, r, g, b).Check(); err != nil {
		return fmt.Errorf("failed to set gamma: %w", err)
	}
	return nil
}

// Restore puts back the gamma ramps saved at Start.
func (s *RandrSink) Restore() error {
	for _, saved := range s.saved {
		if err := randr.SetCrtcGammaChecked(s.conn, saved.crtc, saved.size, saved.r, saved.g, saved.b).Check(); err != nil {
			s.logger.Warn("Failed to restore gamma ramp", "crtc", saved.crtc, "error", err)
		}
	}
	return nil
}

func (s *RandrSink) Close() error {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	return nil
}
