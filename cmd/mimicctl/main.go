// mimicctl talks to the Mimic1 assistant and browses the catalog from a
// terminal, using the same services as the HTTP surfaces.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(defaultAppBuilder).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
