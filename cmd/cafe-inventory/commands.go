package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/fairyhunter13/cafe-inventory/internal/app"
	"github.com/fairyhunter13/cafe-inventory/internal/config"
	"github.com/fairyhunter13/cafe-inventory/internal/model"
	"github.com/fairyhunter13/cafe-inventory/internal/store/postgres"
)

// containerOpener builds the container a maintenance command runs against.
type containerOpener func(context.Context, config.Config) (*app.Container, error)

func migrateCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply pending database migrations",
		Action: func(c *cli.Context) error {
			if cfg.StoreBackend != config.BackendPostgres {
				return errors.Errorf("migrate needs STORE_BACKEND=postgres, have %q", cfg.StoreBackend)
			}
			if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "migrations applied")
			return nil
		},
	}
}

func seedCommand(cfg *config.Config, open containerOpener) *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "load the starter menu into an empty catalog",
		Action: func(c *cli.Context) error {
			return withContainer(c.Context, open, *cfg, func(ctx context.Context, ctr *app.Container) error {
				created, err := app.Seed(ctx, ctr.Catalog())
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "seeded %d products\n", len(created))
				return nil
			})
		},
	}
}

func productsCommand(cfg *config.Config, open containerOpener) *cli.Command {
	idFlag := func() cli.Flag { return &cli.StringFlag{Name: "id", Usage: "product id", Required: true} }
	amountFlag := func() cli.Flag { return &cli.Int64Flag{Name: "amount", Usage: "units", Required: true} }
	return &cli.Command{
		Name:  "products",
		Usage: "inspect and adjust the catalog",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "print every product",
				Action: func(c *cli.Context) error {
					return withContainer(c.Context, open, *cfg, func(ctx context.Context, ctr *app.Container) error {
						products, err := ctr.Catalog().ListProducts(ctx)
						if err != nil {
							return err
						}
						return printProducts(c.App.Writer, products)
					})
				},
			},
			{
				Name:  "sell",
				Usage: "sell units of a product",
				Flags: []cli.Flag{idFlag(), amountFlag()},
				Action: func(c *cli.Context) error {
					return withContainer(c.Context, open, *cfg, func(ctx context.Context, ctr *app.Container) error {
						p, err := ctr.Catalog().Sell(ctx, c.String("id"), c.Int64("amount"))
						if err != nil {
							return errors.New(model.Message(err))
						}
						fmt.Fprintf(c.App.Writer, "sold %d of %s, %d left\n", c.Int64("amount"), p.Name, p.Quantity)
						return nil
					})
				},
			},
			{
				Name:  "restock",
				Usage: "add units of a product",
				Flags: []cli.Flag{idFlag(), amountFlag()},
				Action: func(c *cli.Context) error {
					return withContainer(c.Context, open, *cfg, func(ctx context.Context, ctr *app.Container) error {
						p, err := ctr.Catalog().Restock(ctx, c.String("id"), c.Int64("amount"))
						if err != nil {
							return errors.New(model.Message(err))
						}
						fmt.Fprintf(c.App.Writer, "restocked %d of %s, %d in stock\n", c.Int64("amount"), p.Name, p.Quantity)
						return nil
					})
				},
			},
			{
				Name:  "delete",
				Usage: "delete a product",
				Flags: []cli.Flag{
					idFlag(),
					&cli.BoolFlag{Name: "yes", Usage: "confirm the deletion"},
				},
				Action: func(c *cli.Context) error {
					if !c.Bool("yes") {
						return errors.New(model.Message(model.ErrConfirmationRequired) + ": pass --yes")
					}
					return withContainer(c.Context, open, *cfg, func(ctx context.Context, ctr *app.Container) error {
						if err := ctr.Catalog().DeleteProduct(ctx, c.String("id")); err != nil {
							return errors.New(model.Message(err))
						}
						fmt.Fprintln(c.App.Writer, "product deleted")
						return nil
					})
				},
			},
		},
	}
}

// withContainer runs fn against a started container and drains its events
// before returning.
func withContainer(ctx context.Context, open containerOpener, cfg config.Config, fn func(context.Context, *app.Container) error) error {
	ctr, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	ctr.Start(ctx)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		ctr.Shutdown(sctx)
	}()
	opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return fn(opCtx, ctr)
}

func printProducts(w io.Writer, products []model.Product) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tQUANTITY")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Category, strconv.FormatFloat(p.Price, 'f', 2, 64), p.Quantity)
	}
	return tw.Flush()
}
