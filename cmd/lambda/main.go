package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"mimic-assistant/internal/app"
	"mimic-assistant/internal/config"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	if cfg.Store.Backend == config.StoreMemory {
		slog.Warn("memory store configured; conversations will not survive cold starts")
	}

	// ---- Clients, services, handler ----
	a, err := app.New(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("failed to build application", "err", err)
		os.Exit(1)
	}

	lambda.Start(a.Handler.Handle)
}
