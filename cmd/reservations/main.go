package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		slog.Error("reservations failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "reservations",
		Usage: "Book facilities without double booking.",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			adminCommand(),
			facilityCommand(),
			exportCommand(),
		},
	}
}
