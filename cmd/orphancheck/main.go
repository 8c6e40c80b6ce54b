// Command orphancheck reports todos that still point at deleted habits.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"habit-tracker/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewOrphanCheckCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
