// Command matexport downloads construction material listings from Duspot,
// Insert Marktplaats and Matching Materials and saves them as dated JSON
// files.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Version is set at build time:
// go build -ldflags "-X main.Version=v1.0.0" ./cmd/matexport
var Version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
