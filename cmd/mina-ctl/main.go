package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Control socket path")
	cli.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: mina-ctl [-s socket] [trigger|quit]\n")
		cli.PrintDefaults()
	}
	cli.Parse()

	cmd := ipc.CmdTrigger
	if cli.NArg() > 0 {
		cmd = cli.Arg(0)
	}
	if cmd != ipc.CmdTrigger && cmd != ipc.CmdQuit {
		cli.Usage()
		os.Exit(2)
	}

	if err := ipc.SendCommand(*socket, cmd); err != nil {
		fmt.Println("mina not running:", err)
		os.Exit(1)
	}
}
