package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/library-engine/api"
)

const shutdownTimeout = 30 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the overdue sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.HTTPPort = servePort
		}
		if err := cfg.ValidateServer(); err != nil {
			return fmt.Errorf("configuration: %w", err)
		}

		a, err := openApp(cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		handler := &api.Handler{
			Catalog:    a.catalog,
			Directory:  a.directory,
			Ledger:     a.ledger,
			Projection: a.projection,
			Sweeper:    a.sweeper,
			SweepRuns:  a.store,
			Tokens:     api.NewTokenIssuer(cfg.JWTSecret, nil),
			SessionTTL: cfg.SessionTTL,
			Log:        a.log.WithField("component", "http"),
		}
		router := api.NewRouter(handler, api.RouterConfig{
			CORSOrigins:        cfg.CORSOrigins,
			LoginRatePerMinute: cfg.LoginRatePerMinute,
		})

		server := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		a.sweeper.Start()

		serverErr := make(chan error, 1)
		go func() {
			a.log.Infof("server listening on http://localhost:%d/api", cfg.HTTPPort)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serverErr <- err
			}
			close(serverErr)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			a.log.Infof("received %s, shutting down", sig)
		case err := <-serverErr:
			if err != nil {
				a.sweeper.Stop()
				return fmt.Errorf("server failed: %w", err)
			}
		}

		a.sweeper.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			a.log.WithError(err).Error("server forced to shutdown")
		}

		select {
		case <-a.sweeper.Done():
		case <-ctx.Done():
			a.log.Warn("sweeper did not stop before the shutdown deadline")
		}

		a.log.Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (overrides HTTP_PORT)")
}
