package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/canopy-comms/feedvault/internal/adapters/driving/httpapi"
	"github.com/canopy-comms/feedvault/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Starts the JSON HTTP API on the given address. Callers identify
themselves with the X-Feedvault-Owner header. Stop with Ctrl-C.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8422", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil || feedService == nil || searchService == nil {
		return errors.New("services not configured")
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Ingestion: ingestionService,
		Feeds:     feedService,
		Search:    searchService,
	})

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	cmd.Printf("Serving on %s. Press Ctrl-C to stop.\n", serveAddr)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
