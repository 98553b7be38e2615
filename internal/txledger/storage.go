package txledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTransferNotFound indicates no recorded transfer exists for the hash.
	ErrTransferNotFound = errors.New("transfer record not found")

	// ErrTransferAlreadyExists indicates an insert hit the storage uniqueness
	// constraint on the transaction hash. The ledger recovers from it by
	// returning the record that won the race; it never reaches callers.
	ErrTransferAlreadyExists = errors.New("transfer record already exists")
)

// TransferRecord is a verified, confirmed transfer persisted by the ledger.
// Records are created exactly once per transaction hash and never mutated.
// All addresses and the hash are stored in canonical form.
type TransferRecord struct {
	TxHash       string    `json:"txHash"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	Amount       string    `json:"amount"` // decimal string in human units
	TokenKind    string    `json:"token"`
	TokenAddress string    `json:"tokenAddress,omitempty"`
	Status       string    `json:"status"` // always "success"
	BlockNumber  uint64    `json:"blockNumber"`
	GasUsed      uint64    `json:"gasUsed"`
	GasFee       string    `json:"gasFee"`
	ConfirmedAt  time.Time `json:"confirmedAt"`
}

// TransferStorage persists transfer records keyed by canonical transaction
// hash. The uniqueness constraint on the hash is the durability backstop for
// the ledger's idempotency; the in-memory existence check before recording is
// only an optimization.
type TransferStorage interface {
	// SaveTransfer inserts a new record. It must be conditional on the hash
	// not existing yet and return ErrTransferAlreadyExists when it does.
	SaveTransfer(ctx context.Context, record TransferRecord) error

	// GetTransfer fetches the record for a canonical hash, or
	// ErrTransferNotFound.
	GetTransfer(ctx context.Context, txHash string) (TransferRecord, error)

	// ListTransfersByParticipant returns every record whose canonical From or
	// To equals the given canonical address, most recently confirmed first.
	ListTransfersByParticipant(ctx context.Context, participant string) ([]TransferRecord, error)
}
