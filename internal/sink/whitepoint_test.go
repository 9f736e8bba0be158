package sink

import (
	"log/slog"
	"math"
	"os"
	"testing"

	"github.com/mkarjala/duskd/internal/color"
)

func TestWhitepointNeutral(t *testing.T) {
	r, g, b := Whitepoint(color.NeutralTemperature)
	if r != 1 || g != 1 || b != 1 {
		t.Errorf("Whitepoint(%d) = %f, %f, %f, want 1, 1, 1",
			color.NeutralTemperature, r, g, b)
	}
}

func TestWhitepointWarmAttenuatesBlue(t *testing.T) {
	r, g, b := Whitepoint(3500)
	if b >= g || g >= r {
		t.Errorf("Whitepoint(3500) = %f, %f, %f, want r > g > b", r, g, b)
	}
	if b <= 0 {
		t.Errorf("expected nonzero blue at 3500K, got %f", b)
	}
}

func TestWhitepointCoolAttenuatesRed(t *testing.T) {
	r, _, b := Whitepoint(10000)
	if r >= b {
		t.Errorf("Whitepoint(10000): expected red %f below blue %f", r, b)
	}
}

func TestWhitepointMonotonicBlue(t *testing.T) {
	prev := -1.0
	for kelvin := color.MinTemperature; kelvin <= color.NeutralTemperature; kelvin += 500 {
		_, _, b := Whitepoint(kelvin)
		if b < prev {
			t.Errorf("blue dropped from %f to %f at %dK", prev, b, kelvin)
		}
		prev = b
	}
}

func TestGammaRampNeutral(t *testing.T) {
	r := make([]uint16, 256)
	g := make([]uint16, 256)
	b := make([]uint16, 256)
	GammaRamp(r, g, b, color.Neutral())

	if r[0] != 0 {
		t.Errorf("ramp start = %d, want 0", r[0])
	}
	if r[255] != math.MaxUint16 {
		t.Errorf("ramp end = %d, want %d", r[255], math.MaxUint16)
	}
	for i := 1; i < 256; i++ {
		if r[i] < r[i-1] {
			t.Errorf("ramp not monotonic at %d: %d < %d", i, r[i], r[i-1])
		}
		if r[i] != g[i] || g[i] != b[i] {
			t.Errorf("neutral ramp channels differ at %d: %d %d %d", i, r[i], g[i], b[i])
		}
	}
}

func TestGammaRampBrightnessScales(t *testing.T) {
	full := make([]uint16, 64)
	dim := make([]uint16, 64)
	var scratch [64]uint16

	s := color.Neutral()
	GammaRamp(full, scratch[:], scratch[:], s)
	s.Brightness = 0.5
	GammaRamp(dim, scratch[:], scratch[:], s)

	if dim[63] >= full[63] {
		t.Errorf("expected dimmed ramp peak %d below full %d", dim[63], full[63])
	}
	halfScale := float64(math.MaxUint16) * 0.5
	want := uint16(halfScale)
	if diff := int(dim[63]) - int(want); diff < -1 || diff > 1 {
		t.Errorf("dimmed peak = %d, want about %d", dim[63], want)
	}
}

func TestGammaRampWarmSetting(t *testing.T) {
	r := make([]uint16, 64)
	g := make([]uint16, 64)
	b := make([]uint16, 64)
	s := color.Neutral()
	s.Temperature = 3500
	GammaRamp(r, g, b, s)

	if b[63] >= g[63] || g[63] >= r[63] {
		t.Errorf("3500K ramp peaks: r=%d g=%d b=%d, want r > g > b", r[63], g[63], b[63])
	}
}

func TestDummySinkRoundTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	s := NewDummySink(logger)

	if err := s.Set(color.Neutral()); err == nil {
		t.Errorf("expected error before start")
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	warm := color.Neutral()
	warm.Temperature = 4000
	if err := s.Set(warm); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got := s.Last(); got.Temperature != 4000 {
		t.Errorf("Last() temperature = %d, want 4000", got.Temperature)
	}

	if err := s.Restore(); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if got := s.Last(); got != color.Neutral() {
		t.Errorf("expected neutral after restore, got %+v", got)
	}
}

func TestTryStartFallsBack(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	dummy := NewDummySink(logger)

	// RandR cannot start without an X server in the test environment.
	randr := NewRandrSink(logger)
	randr.SetOption("display", ":999")

	s, err := TryStart(logger, randr, dummy)
	if err != nil {
		t.Fatalf("expected fallback to dummy sink, got %v", err)
	}
	if s.Name() != "dummy" {
		t.Errorf("expected dummy sink selected, got %s", s.Name())
	}
}
