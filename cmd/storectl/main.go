// Command storectl administers the storefront database: schema migrations,
// catalog seeding and bulk gift card imports.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("storectl failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
