// Package cli is the command-line entrypoint. It exposes the HTTP API via
// the serve command and the ledger operations directly for one-off use.
package cli

import (
	"context"
	"os"

	"github.com/gabapcia/escrowledger/internal/txledger"

	"github.com/urfave/cli/v3"
)

// APIServer is the long-running HTTP surface the serve command manages.
type APIServer interface {
	// Start serves until the listener fails or Shutdown is called.
	Start(ctx context.Context) error

	// Shutdown drains in-flight requests and closes the listener.
	Shutdown(ctx context.Context) error
}

// Run initializes and executes the escrowledger CLI application.
//
// It registers all available commands:
//
//   - `serve`: Starts the HTTP API server.
//   - `record`: Verifies and records a single transaction.
//   - `transfers`: Lists the recorded transfers of an address.
func Run(ctx context.Context, api APIServer, ledger txledger.Service) error {
	app := &cli.Command{
		EnableShellCompletion: true,
		Name:                  "escrowledger",
		Description:           "Command-line interface for the escrowledger transaction and agreement service.",
		Usage:                 "escrowledger [command] [flags]",
		Commands: []*cli.Command{
			serveCommand(api),
			recordTransactionCommand(ledger),
			listTransfersCommand(ledger),
		},
	}

	return app.Run(ctx, os.Args)
}
