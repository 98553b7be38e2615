package txledger

import (
	"context"
	"errors"

	"github.com/gabapcia/escrowledger/internal/pkg/types"
)

var (
	// ErrTransactionNotFound indicates the chain has no transaction with the
	// requested hash.
	ErrTransactionNotFound = errors.New("transaction not found on chain")

	// ErrTransactionPending indicates the transaction exists but has not been
	// mined yet (no receipt, or a receipt without a block number).
	ErrTransactionPending = errors.New("transaction is still pending")
)

// receiptStatusSuccess is the only receipt status eligible for recording.
const receiptStatusSuccess types.Hex = "0x1"

type (
	// Transaction is the raw chain transaction as reported by the oracle.
	Transaction struct {
		Hash     string
		From     string
		To       string
		Value    types.Hex
		Input    string
		GasPrice types.Hex
	}

	// Receipt is the mined outcome of a transaction.
	Receipt struct {
		Status            types.Hex
		BlockNumber       types.Hex
		GasUsed           types.Hex
		EffectiveGasPrice types.Hex
	}

	// Block carries the block fields the ledger needs, currently just enough
	// to derive the confirmation timestamp.
	Block struct {
		Number    types.Hex
		Timestamp types.Hex
	}
)

// Succeeded reports whether the receipt's status marks an on-chain success.
func (r Receipt) Succeeded() bool {
	return r.Status == receiptStatusSuccess
}

// ChainOracle is the read-only source of chain truth. Implementations talk to
// a node over JSON-RPC and must translate "null" results into the sentinel
// errors above; transport failures pass through untouched and are classified
// by the ledger.
type ChainOracle interface {
	// TransactionByHash fetches a transaction by its hash.
	//
	// Returns ErrTransactionNotFound when the chain has no such transaction.
	TransactionByHash(ctx context.Context, hash string) (Transaction, error)

	// ReceiptByHash fetches the receipt for a transaction hash.
	//
	// Returns ErrTransactionPending when the transaction has not been mined
	// yet, and ErrTransactionNotFound when the hash is unknown entirely.
	ReceiptByHash(ctx context.Context, hash string) (Receipt, error)

	// BlockByNumber fetches a block header by number.
	BlockByNumber(ctx context.Context, number types.Hex) (Block, error)
}
