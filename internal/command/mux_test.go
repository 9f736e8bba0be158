package command

import (
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestMux(t *testing.T) (*Mux, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	m, err := NewMux(logger, 4)
	if err != nil {
		t.Fatalf("failed to create mux: %v", err)
	}
	path := filepath.Join(t.TempDir(), "duskd.sock")
	if err := m.Listen(path); err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, path
}

// poll runs Poll until the deadline or until at least one state change is
// reported. Accepting a connection and reading its first line take separate
// cycles.
func poll(t *testing.T, m *Mux, dispatch Dispatch) int {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := m.Poll(50*time.Millisecond, dispatch)
		if err != nil {
			t.Fatalf("poll failed: %v", err)
		}
		if n > 0 {
			return n
		}
	}
	return 0
}

func TestMuxDispatchesCommands(t *testing.T) {
	m, path := newTestMux(t)

	if err := Send(path, []string{"temp 4000"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	var got []Command
	n := poll(t, m, func(c Command) bool {
		got = append(got, c)
		return true
	})
	if n != 1 {
		t.Fatalf("expected 1 state-changing input, got %d", n)
	}
	if len(got) != 1 || got[0].Kind != KindTemperatureSet || got[0].Kelvin != 4000 {
		t.Errorf("unexpected commands: %+v", got)
	}
}

func TestMuxMultipleLinesOneConnection(t *testing.T) {
	m, path := newTestMux(t)

	if err := Send(path, []string{"temp up", "temp up", "brightness down"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	// One line is consumed per cycle; the rest stay queued in the socket.
	var got []Command
	for i := 0; i < 3; i++ {
		if n := poll(t, m, func(c Command) bool {
			got = append(got, c)
			return true
		}); n == 0 {
			t.Fatalf("line %d never arrived", i)
		}
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 commands, got %d", len(got))
	}
	if got[0].Kind != KindTemperatureStep || got[2].Kind != KindBrightnessStep {
		t.Errorf("unexpected commands: %+v", got)
	}
}

func TestMuxIgnoresUnknownCommands(t *testing.T) {
	m, path := newTestMux(t)

	if err := Send(path, []string{"bogus nonsense"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	dispatched := false
	n := poll(t, m, func(Command) bool {
		dispatched = true
		return true
	})
	if n != 0 {
		t.Errorf("expected no state-changing inputs, got %d", n)
	}
	if dispatched {
		t.Errorf("unknown command was dispatched")
	}
}

func TestMuxSurvivesDisconnect(t *testing.T) {
	m, path := newTestMux(t)

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	// Accept the connection, then drop it.
	m.Poll(50*time.Millisecond, func(Command) bool { return false })
	conn.Close()
	// The EOF read tears the slot down without an error.
	if _, err := m.Poll(50*time.Millisecond, func(Command) bool { return false }); err != nil {
		t.Fatalf("poll after disconnect failed: %v", err)
	}

	// The mux still serves new clients.
	if err := Send(path, []string{"enable"}); err != nil {
		t.Fatalf("send after disconnect failed: %v", err)
	}
	if n := poll(t, m, func(Command) bool { return true }); n != 1 {
		t.Errorf("expected command after reconnect, got %d", n)
	}
}

func TestMuxWake(t *testing.T) {
	m, _ := newTestMux(t)

	m.Wake()
	start := time.Now()
	if _, err := m.Poll(5*time.Second, func(Command) bool { return false }); err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("wake did not interrupt poll, took %v", elapsed)
	}
}

func TestSendFailsWithoutSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.sock")
	if err := Send(path, []string{"enable"}); err == nil {
		t.Errorf("expected error for missing socket")
	}
}
