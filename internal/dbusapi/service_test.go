package dbusapi

import (
	"log/slog"
	"os"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/mkarjala/duskd/internal/daemon"
	"github.com/mkarjala/duskd/internal/schedule"
	"github.com/mkarjala/duskd/internal/sink"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	snk := sink.NewDummySink(logger)
	if err := snk.Start(); err != nil {
		t.Fatalf("failed to start sink: %v", err)
	}
	engine := daemon.NewEngine(logger, schedule.DefaultScheme(), snk, nil)
	return NewService(engine, "", logger)
}

func TestCookieLifecycle(t *testing.T) {
	s := newTestService(t)

	cookie, derr := s.AcquireCookie("test-program")
	if derr != nil {
		t.Fatalf("acquire failed: %v", derr)
	}
	if cookie <= 0 {
		t.Errorf("expected positive cookie, got %d", cookie)
	}
	if derr := s.Inhibit(cookie); derr != nil {
		t.Errorf("inhibit failed: %v", derr)
	}
	if derr := s.ReleaseCookie(cookie); derr != nil {
		t.Errorf("release failed: %v", derr)
	}
	if derr := s.Inhibit(cookie); derr == nil {
		t.Errorf("expected error for released cookie")
	} else if derr.Name != DefaultBusName+".UnknownCookie" {
		t.Errorf("error name = %s, want %s.UnknownCookie", derr.Name, DefaultBusName)
	}
}

func TestEnforceTemperatureErrors(t *testing.T) {
	s := newTestService(t)

	a, _ := s.AcquireCookie("a")
	b, _ := s.AcquireCookie("b")

	if derr := s.EnforceTemperature(a, 4000, false); derr != nil {
		t.Fatalf("enforce failed: %v", derr)
	}
	derr := s.EnforceTemperature(b, 5000, false)
	if derr == nil || derr.Name != DefaultBusName+".AlreadyEnforced" {
		t.Errorf("expected AlreadyEnforced, got %v", derr)
	}
	derr = s.EnforceTemperature(a, 99, true)
	if derr == nil || derr.Name != DefaultBusName+".InvalidArgument" {
		t.Errorf("expected InvalidArgument for 99K, got %v", derr)
	}
	derr = s.EnforceLocation(a, 91, 0)
	if derr == nil || derr.Name != DefaultBusName+".InvalidArgument" {
		t.Errorf("expected InvalidArgument for latitude 91, got %v", derr)
	}
}

func TestPropertiesGetAndSet(t *testing.T) {
	s := newTestService(t)
	p := &properties{service: s}

	all, derr := p.GetAll(DefaultBusName)
	if derr != nil {
		t.Fatalf("GetAll failed: %v", derr)
	}
	for _, name := range []string{"Inhibited", "Period", "Temperature", "TemperatureDay", "Brightness"} {
		if _, ok := all[name]; !ok {
			t.Errorf("GetAll missing %s", name)
		}
	}

	if derr := p.Set(DefaultBusName, "TemperatureDay", dbus.MakeVariant(uint32(6000))); derr != nil {
		t.Fatalf("Set TemperatureDay failed: %v", derr)
	}
	if derr := p.Set(DefaultBusName, "TemperatureDay", dbus.MakeVariant(uint32(99))); derr == nil {
		t.Errorf("expected rejection of 99K")
	}
	if derr := p.Set(DefaultBusName, "Brightness", dbus.MakeVariant(0.5)); derr != nil {
		t.Errorf("Set Brightness failed: %v", derr)
	}
	if derr := p.Set(DefaultBusName, "Brightness", dbus.MakeVariant(7.0)); derr == nil {
		t.Errorf("expected rejection of brightness 7.0")
	}
	if derr := p.Set(DefaultBusName, "Period", dbus.MakeVariant("Day")); derr == nil {
		t.Errorf("expected rejection of read-only property")
	}

	if _, derr := p.Get("wrong.interface", "Period"); derr == nil {
		t.Errorf("expected error for unknown interface")
	}
	if _, derr := p.Get(DefaultBusName, "Bogus"); derr == nil {
		t.Errorf("expected error for unknown property")
	}
}

func TestGetElevation(t *testing.T) {
	s := newTestService(t)
	if _, derr := s.GetElevation(); derr != nil {
		t.Errorf("GetElevation failed: %v", derr)
	}
}
