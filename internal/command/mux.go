package command

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Fixed pollfd slots. Client connections occupy slotConn onward.
const (
	slotWake   = 0
	slotStdin  = 1
	slotListen = 2
	slotConn   = 3
)

// DefaultMaxClients bounds the number of concurrently connected control
// clients.
const DefaultMaxClients = 16

// Dispatch applies one parsed command and reports whether it changed
// observable state.
type Dispatch func(Command) bool

// Mux multiplexes control input from stdin and a unix-domain listening
// socket under a single poll. It is owned by the daemon loop; the only
// method safe to call from other goroutines is Wake.
type Mux struct {
	logger *slog.Logger

	// pollfds layout: wake pipe, stdin, listener, then one slot per
	// client connection. A slot with fd -1 is free.
	pollfds []unix.PollFd
	bufs    []*LineBuffer // bufs[0] is stdin, bufs[1+i] is conn slot i

	wakeWrite  int
	socketPath string
}

// NewMux returns a multiplexer with capacity for maxClients connections and
// neither stdin nor a listener attached. The wake pipe is always armed.
func NewMux(logger *slog.Logger, maxClients int) (*Mux, error) {
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("failed to create wake pipe: %w", err)
	}

	m := &Mux{
		logger:    logger,
		pollfds:   make([]unix.PollFd, slotConn+maxClients),
		bufs:      make([]*LineBuffer, 1+maxClients),
		wakeWrite: p[1],
	}
	for i := range m.pollfds {
		m.pollfds[i].Fd = -1
	}
	for i := range m.bufs {
		m.bufs[i] = &LineBuffer{}
	}
	m.pollfds[slotWake] = unix.PollFd{Fd: int32(p[0]), Events: unix.POLLIN}
	return m, nil
}

// WatchStdin adds standard input to the poll set.
func (m *Mux) WatchStdin() {
	m.pollfds[slotStdin] = unix.PollFd{Fd: int32(os.Stdin.Fd()), Events: unix.POLLIN}
	m.bufs[0].Reset()
}

// Listen binds and listens on a unix-domain socket at path and adds it to
// the poll set.
func (m *Mux) Listen(path string) error {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}
	addr := &unix.SockaddrUnix{Name: path}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return fmt.Errorf("failed to bind %s: %w", path, err)
	}
	if err := unix.Listen(fd, 16); err != nil {
		unix.Close(fd)
		unix.Unlink(path)
		return fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	m.socketPath = path
	m.pollfds[slotListen] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
	return nil
}

// Wake interrupts a Poll in progress (or makes the next one return
// immediately). Safe to call from any goroutine.
func (m *Mux) Wake() {
	unix.Write(m.wakeWrite, []byte{0})
}

// Poll waits up to timeout for input and handles everything that is ready:
// drains wake-ups, reads and dispatches complete command lines, accepts new
// connections and tears down dead ones. It returns the number of inputs
// (stdin included) that yielded at least one state-changing command.
func (m *Mux) Poll(timeout time.Duration, dispatch Dispatch) (int, error) {
	n, err := unix.Poll(m.pollfds, int(timeout.Milliseconds()))
	if err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("poll failed: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	if m.pollfds[slotWake].Revents&unix.POLLIN != 0 {
		m.drainWake()
	}

	changed := 0
	if m.handleStdin(dispatch) {
		changed++
	}
	m.handleListener()
	for i := slotConn; i < len(m.pollfds); i++ {
		if m.handleConn(i, dispatch) {
			changed++
		}
	}
	return changed, nil
}

func (m *Mux) drainWake() {
	var scratch [64]byte
	for {
		n, err := unix.Read(int(m.pollfds[slotWake].Fd), scratch[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (m *Mux) handleStdin(dispatch Dispatch) bool {
	pfd := &m.pollfds[slotStdin]
	if pfd.Fd < 0 || pfd.Revents == 0 {
		return false
	}
	if pfd.Revents&unix.POLLERR != 0 {
		m.logger.Warn("Error reading standard input")
		pfd.Fd = -1
		return false
	}
	if pfd.Revents&unix.POLLIN == 0 {
		// POLLHUP alone: there may still be buffered data next cycle.
		return false
	}

	buf := m.bufs[0]
	n, err := unix.Read(int(pfd.Fd), buf.Tail())
	if err != nil || n == 0 {
		m.logger.Info("Standard input closed")
		pfd.Fd = -1
		return false
	}
	changed := false
	for _, line := range buf.Fill(n) {
		if cmd := Parse(line); cmd.Kind != KindNone && dispatch(cmd) {
			changed = true
		}
	}
	return changed
}

func (m *Mux) handleListener() {
	pfd := &m.pollfds[slotListen]
	if pfd.Fd < 0 || pfd.Revents&unix.POLLIN == 0 {
		return
	}
	fd, _, err := unix.Accept4(int(pfd.Fd), unix.SOCK_CLOEXEC)
	if err != nil {
		m.logger.Warn("Failed to accept connection", "error", err)
		return
	}
	for i := slotConn; i < len(m.pollfds); i++ {
		if m.pollfds[i].Fd == -1 {
			m.pollfds[i] = unix.PollFd{Fd: int32(fd), Events: unix.POLLIN}
			m.bufs[1+i-slotConn].Reset()
			return
		}
	}
	m.logger.Warn("Too many connected clients, connection rejected")
	unix.Close(fd)
}

// handleConn reads at most one command line from connection slot i following
// the peek-then-consume discipline, so bytes beyond one line stay queued in
// the socket for the next cycle.
func (m *Mux) handleConn(i int, dispatch Dispatch) bool {
	pfd := &m.pollfds[i]
	if pfd.Fd < 0 || pfd.Revents == 0 {
		return false
	}
	if pfd.Revents&unix.POLLERR != 0 {
		m.closeConn(i)
		return false
	}
	if pfd.Revents&(unix.POLLIN|unix.POLLHUP) == 0 {
		return false
	}

	buf := m.bufs[1+i-slotConn]
	fd := int(pfd.Fd)

	r, _, err := unix.Recvfrom(fd, buf.Tail(), unix.MSG_PEEK)
	if err != nil || r == 0 {
		m.closeConn(i)
		return false
	}
	peeked := buf.Tail()[:r]
	nl := bytes.IndexByte(peeked, '\n')

	// Consume exactly through the terminator if one was peeked, otherwise
	// exactly the peeked amount.
	take := r
	if nl >= 0 {
		take = nl + 1
	}
	n, err := unix.Read(fd, buf.Tail()[:take])
	if err != nil || n != take {
		m.closeConn(i)
		return false
	}

	line, ok := buf.Consume(take, nl)
	if !ok {
		return false
	}
	cmd := Parse(line)
	return cmd.Kind != KindNone && dispatch(cmd)
}

func (m *Mux) closeConn(i int) {
	unix.Close(int(m.pollfds[i].Fd))
	m.pollfds[i].Fd = -1
	m.bufs[1+i-slotConn].Reset()
}

// Close tears down all connections, the listener and the wake pipe, and
// removes the socket file.
func (m *Mux) Close() error {
	for i := slotConn; i < len(m.pollfds); i++ {
		if m.pollfds[i].Fd >= 0 {
			m.closeConn(i)
		}
	}
	if m.pollfds[slotListen].Fd >= 0 {
		unix.Close(int(m.pollfds[slotListen].Fd))
		m.pollfds[slotListen].Fd = -1
	}
	unix.Close(int(m.pollfds[slotWake].Fd))
	unix.Close(m.wakeWrite)
	if m.socketPath != "" {
		if err := unix.Unlink(m.socketPath); err != nil {
			return fmt.Errorf("failed to remove %s: %w", m.socketPath, err)
		}
	}
	return nil
}
