package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/stepwise-app/stepwise/internal/buildinfo"
	"github.com/stepwise-app/stepwise/internal/client/cli"
	"github.com/stepwise-app/stepwise/internal/client/config"
	"github.com/stepwise-app/stepwise/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)
}
