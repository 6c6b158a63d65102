package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mimic-assistant/internal/app"
	"mimic-assistant/internal/config"
)

type appBuilder func(ctx context.Context, logger *slog.Logger) (*app.App, error)

func defaultAppBuilder(ctx context.Context, logger *slog.Logger) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger)
}

func newRootCmd(build appBuilder) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          "mimicctl",
		Short:        "Mimic1 assistant and Afton Industries catalog from the terminal",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level to stderr")

	withApp := func(cmd *cobra.Command, run func(a *app.App) error) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

		a, err := build(cmd.Context(), logger)
		if err != nil {
			return fmt.Errorf("build application: %w", err)
		}
		defer func() {
			if closeErr := a.Close(); closeErr != nil {
				logger.Error("failed to close store", "err", closeErr)
			}
		}()
		return run(a)
	}

	root.AddCommand(newChatCmd(withApp), newCatalogCmd(withApp))
	return root
}

type appRunner func(cmd *cobra.Command, run func(a *app.App) error) error

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var stdinIsTerminal = func() bool {
	fi, err := os.Stdin.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
