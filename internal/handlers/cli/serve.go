package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gabapcia/escrowledger/internal/pkg/logger"

	"github.com/urfave/cli/v3"
)

// serveCommand returns a CLI command that starts the HTTP API server.
//
// Usage example:
//
//	escrowledger serve
//
// The process runs until it receives an interrupt (SIGINT or SIGTERM), then
// drains in-flight requests before exiting.
func serveCommand(api APIServer) *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Description: "Starts the HTTP API exposing transaction recording, identities and escrow agreements.",
		Usage:       "Runs the API server. Terminates gracefully on Ctrl+C or termination signals.",
		Action: func(ctx context.Context, c *cli.Command) error {
			quit := make(chan os.Signal, 1)
			defer close(quit)

			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				errCh <- api.Start(ctx)
			}()

			select {
			case err := <-errCh:
				return err
			case <-quit:
			case <-ctx.Done():
			}

			logger.Info(ctx, "shutting down")
			return api.Shutdown(context.WithoutCancel(ctx))
		},
	}
}
