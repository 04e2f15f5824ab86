package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fastygo/todolog/internal/config"
	"github.com/fastygo/todolog/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "todolog",
		Usage: "Versioned todo service with an event-sourced audit trail",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "store",
				Usage:   "Todo log backend (postgres, bolt)",
				EnvVars: []string{"STORE_BACKEND"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the HTTP API, optionally with the embedded audit ingester",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "no-ingester",
						Usage:   "Do not run the audit ingester in this process",
						EnvVars: []string{"SERVE_WITHOUT_INGESTER"},
					},
				},
				Action: runServe,
			},
			{
				Name:   "ingest",
				Usage:  "Run the audit ingester as a standalone worker",
				Action: runIngest,
			},
			{
				Name:   "migrate",
				Usage:  "Apply the Postgres schema migrations and exit",
				Action: runMigrate,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("todolog: %v", err)
	}
}

// bootstrap loads configuration, applies command-line overrides and builds the logger.
func bootstrap(c *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config error: %w", err)
	}
	if level := c.String("log-level"); level != "" {
		cfg.Logger.Level = level
	}
	if backend := c.String("store"); backend != "" {
		cfg.Store.Backend = backend
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("config error: %w", err)
		}
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger error: %w", err)
	}
	return cfg, zapLogger.With(zap.String("app", cfg.AppName), zap.String("env", cfg.Environment)), nil
}
