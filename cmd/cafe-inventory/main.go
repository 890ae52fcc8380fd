// Package main is the cafe-inventory command: it serves the HTTP API and
// offers maintenance commands against the configured store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/fairyhunter13/cafe-inventory/internal/app"
	"github.com/fairyhunter13/cafe-inventory/internal/config"
	"github.com/fairyhunter13/cafe-inventory/internal/obs"
)

func main() {
	if err := newApp(app.NewContainer).RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. open creates the container behind the
// maintenance commands.
func newApp(open containerOpener) *cli.App {
	var cfg config.Config
	return &cli.App{
		Name:  "cafe-inventory",
		Usage: "café product catalog, stock and staff directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Value:   ".env",
				Usage:   "dotenv file read before the environment",
				EnvVars: []string{"ENV_FILE"},
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			cfg, err = config.LoadFile(c.String("env-file"))
			if err != nil {
				return err
			}
			obs.InitLoggerLevel(cfg.LogLevel)
			return nil
		},
		After: func(*cli.Context) error {
			obs.Sync()
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(&cfg),
			migrateCommand(&cfg),
			seedCommand(&cfg, open),
			productsCommand(&cfg, open),
		},
	}
}
