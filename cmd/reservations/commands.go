package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/example/facility-reservations/internal/config"
	"github.com/example/facility-reservations/internal/ics"
	"github.com/example/facility-reservations/internal/persistence/sqlite"
	"github.com/example/facility-reservations/internal/persistence/sqlite/migration"
)

func adminTokenFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "token",
		Usage:    "administrator token authorizing the change",
		EnvVars:  []string{"RESERVATIONS_ADMIN_TOKEN"},
		Required: true,
	}
}

// withWiring opens the configured store for one command and closes it afterwards.
func withWiring(c *cli.Context, seed bool, fn func(ctx context.Context, w *wiring) error) error {
	ctx := c.Context
	w, err := newWiring(ctx, seed)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(context.Background()); cerr != nil {
			w.logger.Error("failed to close store", "error", cerr)
		}
	}()
	return fn(ctx, w)
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending SQLite schema migrations.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "status", Usage: "Report migration state without applying anything."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cfg.Store != config.StoreSQLite {
				return fmt.Errorf("migrate only applies to the %s store, configured store is %s", config.StoreSQLite, cfg.Store)
			}
			logger := setupLogger(os.Stderr, cfg.LogLevel)

			pool, err := sqlite.NewConnectionPool(migration.DefaultSQLiteConfig(cfg.SQLiteDSN))
			if err != nil {
				return err
			}
			store := sqlite.NewDocumentStore(pool, logger)
			defer store.Close()

			if !c.Bool("status") {
				if err := store.Migrate(c.Context); err != nil {
					return err
				}
			}
			status, err := store.MigrationStatus(c.Context)
			if err != nil {
				return err
			}
			return printMigrationStatus(c.App.Writer, status)
		},
	}
}

func printMigrationStatus(out io.Writer, status *migration.Status) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "current version:\t%s\n", status.CurrentVersion)
	for _, m := range status.AppliedMigrations {
		fmt.Fprintf(tw, "applied\t%s\t%s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	for _, m := range status.PendingMigrations {
		fmt.Fprintf(tw, "pending\t%s\t%s\n", m.Version, m.Description)
	}
	return tw.Flush()
}

func adminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Manage administrator tokens.",
		Subcommands: []*cli.Command{
			{
				Name:      "add-token",
				Usage:     "Register an administrator token.",
				ArgsUsage: "TOKEN",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "who the token belongs to"},
				},
				Action: func(c *cli.Context) error {
					token := c.Args().First()
					return withWiring(c, false, func(ctx context.Context, w *wiring) error {
						id, err := w.admins.AddToken(ctx, token, c.String("name"))
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "registered admin token %s\n", id)
						return nil
					})
				},
			},
		},
	}
}

func facilityCommand() *cli.Command {
	return &cli.Command{
		Name:  "facility",
		Usage: "Manage the facility catalog.",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List registered facilities.",
				Action: func(c *cli.Context) error {
					return withWiring(c, false, func(ctx context.Context, w *wiring) error {
						tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
						for _, f := range w.facilities.List() {
							fmt.Fprintf(tw, "%s\t%s\t%s\n", f.ID, f.DisplayName, f.ColorKey)
						}
						return tw.Flush()
					})
				},
			},
			{
				Name:      "add",
				Usage:     "Register a facility.",
				ArgsUsage: "NAME",
				Flags:     []cli.Flag{adminTokenFlag()},
				Action: func(c *cli.Context) error {
					return withWiring(c, false, func(ctx context.Context, w *wiring) error {
						f, err := w.facilities.Add(ctx, c.Args().First(), c.String("token"))
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "added facility %s (%s)\n", f.ID, f.DisplayName)
						return nil
					})
				},
			},
			{
				Name:      "rename",
				Usage:     "Change the display name of a facility.",
				ArgsUsage: "ID NAME",
				Flags:     []cli.Flag{adminTokenFlag()},
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.Exit("rename expects ID and NAME", 2)
					}
					return withWiring(c, false, func(ctx context.Context, w *wiring) error {
						f, err := w.facilities.Rename(ctx, c.Args().Get(0), c.Args().Get(1), c.String("token"))
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "renamed facility %s to %s\n", f.ID, f.DisplayName)
						return nil
					})
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove a facility. Its reservations are kept.",
				ArgsUsage: "ID",
				Flags:     []cli.Flag{adminTokenFlag()},
				Action: func(c *cli.Context) error {
					return withWiring(c, false, func(ctx context.Context, w *wiring) error {
						id := c.Args().First()
						if err := w.facilities.Remove(ctx, id, c.String("token")); err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "removed facility %s\n", id)
						return nil
					})
				},
			},
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write every reservation as an iCalendar feed.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file, stdout when empty"},
			&cli.StringFlag{Name: "facility", Usage: "only export reservations of this facility id"},
		},
		Action: func(c *cli.Context) error {
			return withWiring(c, false, func(ctx context.Context, w *wiring) error {
				out := c.App.Writer
				if path := c.String("out"); path != "" {
					f, err := os.Create(path)
					if err != nil {
						return fmt.Errorf("failed to create %s: %w", path, err)
					}
					defer f.Close()
					out = f
				}

				reservations := w.reservations.Snapshot()
				if facility := c.String("facility"); facility != "" {
					filtered := reservations[:0]
					for _, r := range reservations {
						if r.FacilityID == facility {
							filtered = append(filtered, r)
						}
					}
					reservations = filtered
				}
				return ics.Encode(out, reservations, w.facilities.List(), w.location(), w.now())
			})
		},
	}
}
