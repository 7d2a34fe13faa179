package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// newServeCmd creates the serve command, starting the HTTP API and the
// background batch-coalescing ticker together and shutting both down
// gracefully on SIGINT/SIGTERM.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetInt("port")
			logger := slog.Default()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			a, err := buildApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("build app: %w", err)
			}
			defer a.store.Close()

			a.ticker.Start(ctx)
			defer a.ticker.Stop()

			httpServer := &http.Server{
				Addr:    fmt.Sprintf(":%d", port),
				Handler: a.server,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Println("\nShutting down...")
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				_ = httpServer.Shutdown(shutdownCtx)
				cancel()
			}()

			fmt.Printf("Listening on %s\n", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "port to listen on")
	return cmd
}
