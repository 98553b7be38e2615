package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/gabapcia/escrowledger/internal/txledger"

	"github.com/urfave/cli/v3"
)

// printJSON renders v indented on stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// recordTransactionCommand returns a CLI command that verifies a transaction
// against the chain and records it, printing the stored record.
//
// Usage example:
//
//	escrowledger record --tx-hash 0x52ad...8cb6
func recordTransactionCommand(ledger txledger.Service) *cli.Command {
	return &cli.Command{
		Name:        "record",
		Description: "Verify a transaction on chain and record the decoded transfer.",
		Usage:       "Records a single transaction by hash. Idempotent: repeats print the existing record.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "tx-hash",
				Usage:    "Transaction hash to verify and record",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			record, created, err := ledger.Record(ctx, c.String("tx-hash"))
			if err != nil {
				return err
			}

			if !created {
				fmt.Fprintln(os.Stderr, "transaction was already recorded")
			}
			return printJSON(record)
		},
	}
}

// listTransfersCommand returns a CLI command that prints every recorded
// transfer an address participated in.
//
// Usage example:
//
//	escrowledger transfers --address 0x90f8...c9c1
func listTransfersCommand(ledger txledger.Service) *cli.Command {
	return &cli.Command{
		Name:        "transfers",
		Description: "List the recorded transfers in which an address appears as sender or recipient.",
		Usage:       "Lists transfers for an address, most recently confirmed first.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "address",
				Usage:    "Address whose transfers to list",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			records, err := ledger.FindByParticipant(ctx, c.String("address"))
			if err != nil {
				return err
			}

			return printJSON(records)
		},
	}
}
