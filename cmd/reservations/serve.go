package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/example/facility-reservations/internal/config"
	httptransport "github.com/example/facility-reservations/internal/http"
	"github.com/example/facility-reservations/internal/refresh"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the reservation HTTP API.",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := newWiring(ctx, true)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := rt.Close(context.Background()); cerr != nil {
					rt.logger.Error("failed to close store", "error", cerr)
				}
			}()

			return serve(ctx, rt)
		},
	}
}

func newHandler(rt *wiring) http.Handler {
	logger := rt.logger
	return httptransport.NewRouter(httptransport.RouterConfig{
		Reservations: httptransport.NewReservationHandler(rt.reservations, rt.calendar, rt.now, logger),
		Calendar:     httptransport.NewCalendarHandler(rt.calendar, rt.reservations, rt.facilities, rt.location(), rt.now, logger),
		Facilities:   httptransport.NewFacilityHandler(rt.facilities, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Recoverer(logger),
		},
	})
}

func serve(ctx context.Context, rt *wiring) error {
	logger := rt.logger

	if rt.cfg.Refresh != config.RefreshOff {
		refresher, err := refresh.New(rt.cfg.Refresh, rt.location(), logger,
			refresh.Target{Name: "facilities", Reloader: rt.facilities},
			refresh.Target{Name: "reservations", Reloader: rt.reservations},
		)
		if err != nil {
			return err
		}
		refresher.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := refresher.Stop(stopCtx); err != nil {
				logger.Error("failed to stop refresher", "error", err)
			}
		}()
		logger.Info("snapshot refresh scheduled", "schedule", rt.cfg.Refresh)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", rt.cfg.HTTPPort),
		Handler:           newHandler(rt),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("reservation API listening", "addr", server.Addr, "store", rt.cfg.Store)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server encountered error: %w", err)
	}
	return nil
}
