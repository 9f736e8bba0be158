package command

import (
	"fmt"
	"net"
)

// Send connects to the control socket at path and writes each argument as
// one command line. The protocol is fire-and-forget; only connect and write
// failures are reported.
func Send(path string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no commands to send")
	}
	conn, err := net.Dial("unix", path)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", path, err)
	}
	defer conn.Close()

	for _, arg := range args {
		if _, err := conn.Write([]byte(arg + "\n")); err != nil {
			return fmt.Errorf("failed to send %q: %w", arg, err)
		}
	}
	return nil
}
