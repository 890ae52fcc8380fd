package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fairyhunter13/cafe-inventory/internal/app"
	"github.com/fairyhunter13/cafe-inventory/internal/config"
	"github.com/fairyhunter13/cafe-inventory/internal/obs"
	"github.com/fairyhunter13/cafe-inventory/internal/store/postgres"
)

func serveCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "migrate",
				Value: true,
				Usage: "apply pending migrations first (postgres backend)",
			},
		},
		Action: func(c *cli.Context) error {
			return serve(c.Context, *cfg, c.Bool("migrate"))
		},
	}
}

func serve(ctx context.Context, cfg config.Config, migrate bool) error {
	obs.Logger.Infow("service_starting", "store_backend", cfg.StoreBackend, "addr", cfg.HTTPAddr)
	if migrate && cfg.StoreBackend == config.BackendPostgres {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			return err
		}
	}

	ctr, err := app.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	ctr.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           ctr.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		obs.Logger.Infow("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)
	var serveErr error
	select {
	case s := <-sigc:
		obs.Logger.Infow("shutdown_signal", "signal", s.String())
	case serveErr = <-errc:
		obs.Logger.Errorw("http_server_error", "error", serveErr)
	}

	ctxDrain, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelDrain()
	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Errorw("http_shutdown_error", "error", err)
	}
	ctr.Shutdown(ctxDrain)
	obs.Logger.Infow("service_stopped")
	return serveErr
}
