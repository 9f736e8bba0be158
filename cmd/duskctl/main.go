package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/mkarjala/duskd/internal/command"
	"github.com/mkarjala/duskd/pkg/config"
)

func main() {
	socketPath := config.DefaultSocketPath()
	if v := os.Getenv("DUSKD_SOCKET_PATH"); v != "" {
		socketPath = v
	}

	pflag.StringVar(&socketPath, "socket", socketPath, "Path to the duskd control socket")
	pflag.Usage = usage
	pflag.Parse()

	args := pflag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	if err := command.Send(socketPath, args); err != nil {
		fmt.Fprintf(os.Stderr, "duskctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: duskctl [--socket PATH] COMMAND...

Commands:
  temp VALUE|up|down|reset          set or step the color temperature
  brightness VALUE|up|down|reset    set or step the brightness
  enable | disable | toggle        control the scheduled adjustment
  shutdown                          ask the daemon to fade out and exit

Flags:
`)
	pflag.PrintDefaults()
}
