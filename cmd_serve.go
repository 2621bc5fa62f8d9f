package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"topo-scan/pkg/config"
	"topo-scan/pkg/store"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger := cfg.Logger()

		detector, closeDetector, err := newDetector(cfg)
		if err != nil {
			return err
		}
		defer closeDetector()

		svc, err := newService(cfg, detector, logger)
		if err != nil {
			return err
		}

		var repo extractionStore
		if cfg.DatabaseURL != "" {
			r, err := store.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			repo = r
		} else {
			logger.Warn("TOPO_DATABASE_URL not set, results will not be stored")
		}

		srv := &http.Server{
			Addr:    ":" + cfg.Port,
			Handler: newRouter(svc, repo, logger),
		}

		ctx := cmd.Context()
		errCh := make(chan error, 1)
		go func() {
			logger.Info("listening", "addr", srv.Addr, "detector", cfg.Detector)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			logger.Info("shutting down")
			return srv.Shutdown(shutdownCtx)
		}
	},
}
