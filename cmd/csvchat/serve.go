// cmd/csvchat/serve.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"csv-chat/internal/common/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.close()

		srv := &http.Server{
			Addr:         a.cfg.Server.Address,
			Handler:      a.apiServer(),
			ReadTimeout:  config.GetDuration(a.cfg.Server.ReadTimeout),
			WriteTimeout: config.GetDuration(a.cfg.Server.WriteTimeout),
		}

		errCh := make(chan error, 1)
		go func() {
			a.log.Info("HTTP server listening", map[string]interface{}{
				"address": srv.Addr,
				"store":   string(a.store.Dialect()),
				"cache":   a.redis != nil,
			})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		// --- Graceful Shutdown ---
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case err, ok := <-errCh:
			if ok {
				return err
			}
			return nil
		case <-sigCh:
		}

		a.log.Info("Shutdown signal received, stopping server...", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(a.cfg.Server.ShutdownTimeout))
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("Error during shutdown", map[string]interface{}{"error": err})
			return err
		}
		a.log.Info("Server stopped gracefully", nil)
		return nil
	},
}
