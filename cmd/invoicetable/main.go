package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "invoicetable:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "invoicetable",
		Usage: "Extract the line-item table from invoice spreadsheets",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Disable logging",
				Sources: cli.EnvVars("INVOICETABLE_QUIET"),
			},
		},
		Commands: []*cli.Command{
			extractCommand(),
			decodeCommand(),
			serveCommand(),
			listCommand(),
		},
	}
}

// newLogger follows ENV: production gets JSON logs, anything else the
// development console encoder.
func newLogger(cmd *cli.Command) (*zap.Logger, error) {
	if cmd.Bool("quiet") {
		return zap.NewNop(), nil
	}
	var (
		logger *zap.Logger
		err    error
	)
	if os.Getenv("ENV") == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialise logger: %w", err)
	}
	return logger, nil
}
