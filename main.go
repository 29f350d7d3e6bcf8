// connpulse - a covert pulse channel over a capacity-limited resource pool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zoobzio/capitan"

	"connpulse/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := cmd.Execute(ctx, os.Args[1:])
	capitan.Shutdown()
	if err != nil {
		fmt.Fprintf(os.Stderr, "connpulse: %v\n", err)
		os.Exit(1)
	}
}
