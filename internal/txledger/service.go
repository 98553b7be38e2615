// Package txledger implements the chain-verified transaction recording
// pipeline: given a transaction hash, it verifies the transaction against the
// chain oracle, decodes it into a normalized transfer, and persists it
// idempotently.
package txledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gabapcia/escrowledger/internal/pkg/address"
	"github.com/gabapcia/escrowledger/internal/pkg/logger"
	"github.com/gabapcia/escrowledger/internal/pkg/validator"
	"github.com/gabapcia/escrowledger/internal/transfer"
)

var (
	// ErrTransactionFailed indicates the receipt reports an on-chain revert.
	// Not retryable; such transactions are never persisted.
	ErrTransactionFailed = errors.New("transaction failed on chain")

	// ErrOracleUnavailable indicates a transient failure talking to the chain
	// node. Callers may safely retry.
	ErrOracleUnavailable = errors.New("chain oracle unavailable")
)

// Service records chain-verified transfers and answers participant queries.
type Service interface {
	// Record verifies the transaction with the given hash against the chain
	// and persists it as a TransferRecord.
	//
	// Recording is idempotent per hash: if a record already exists it is
	// returned unchanged with created=false and no chain calls are made.
	// Concurrent attempts for the same hash converge on the record that won
	// the storage race.
	//
	// Failure modes: validator.ErrValidationFailed for malformed hashes,
	// ErrTransactionNotFound, ErrTransactionPending, ErrTransactionFailed,
	// ErrOracleUnavailable, and the transfer package's decoding errors.
	Record(ctx context.Context, txHash string) (record TransferRecord, created bool, err error)

	// FindByParticipant returns every recorded transfer where the address is
	// sender or recipient, most recently confirmed first. Matching is
	// case-insensitive regardless of how the argument is capitalized.
	FindByParticipant(ctx context.Context, participant string) ([]TransferRecord, error)
}

// service is the concrete implementation of the Service interface.
type service struct {
	oracle   ChainOracle
	storage  TransferStorage
	registry *transfer.Registry
}

// Compile-time check to ensure *service implements the Service interface.
var _ Service = (*service)(nil)

// New creates a new transaction ledger service backed by the given chain
// oracle, transfer storage, and token registry.
func New(oracle ChainOracle, storage TransferStorage, registry *transfer.Registry) *service {
	return &service{
		oracle:   oracle,
		storage:  storage,
		registry: registry,
	}
}

// recordInput is the validated input for Record.
type recordInput struct {
	TxHash string `validate:"required,tx_hash"`
}

// findInput is the validated input for FindByParticipant.
type findInput struct {
	Participant string `validate:"required,eth_addr"`
}

// classifyOracleErr maps transport-level oracle failures to
// ErrOracleUnavailable while letting the oracle's own sentinels through.
func classifyOracleErr(err error) error {
	switch {
	case errors.Is(err, ErrTransactionNotFound), errors.Is(err, ErrTransactionPending):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
}

// verify fetches and validates the chain data for a hash, returning it only
// when the transaction is confirmed and successful.
func (s *service) verify(ctx context.Context, txHash string) (Transaction, Receipt, Block, error) {
	tx, err := s.oracle.TransactionByHash(ctx, txHash)
	if err != nil {
		return Transaction{}, Receipt{}, Block{}, classifyOracleErr(err)
	}

	rcpt, err := s.oracle.ReceiptByHash(ctx, txHash)
	if err != nil {
		return Transaction{}, Receipt{}, Block{}, classifyOracleErr(err)
	}

	if !rcpt.Succeeded() {
		return Transaction{}, Receipt{}, Block{}, fmt.Errorf("%w: receipt status %s", ErrTransactionFailed, rcpt.Status)
	}

	block, err := s.oracle.BlockByNumber(ctx, rcpt.BlockNumber)
	if err != nil {
		return Transaction{}, Receipt{}, Block{}, classifyOracleErr(err)
	}

	return tx, rcpt, block, nil
}

// buildRecord decodes the verified chain data into a TransferRecord.
func (s *service) buildRecord(txHash string, tx Transaction, rcpt Receipt, block Block) (TransferRecord, error) {
	decoded, err := transfer.Decode(s.registry, transfer.Transaction{
		From:     tx.From,
		To:       tx.To,
		Value:    tx.Value,
		Input:    tx.Input,
		GasPrice: tx.GasPrice,
	}, transfer.Receipt{
		GasUsed:           rcpt.GasUsed,
		EffectiveGasPrice: rcpt.EffectiveGasPrice,
	})
	if err != nil {
		return TransferRecord{}, err
	}

	return TransferRecord{
		TxHash:       txHash,
		From:         decoded.From,
		To:           decoded.To,
		Amount:       decoded.Amount.String(),
		TokenKind:    decoded.TokenKind,
		TokenAddress: decoded.TokenAddress,
		Status:       "success",
		BlockNumber:  rcpt.BlockNumber.Uint64(),
		GasUsed:      rcpt.GasUsed.Uint64(),
		GasFee:       decoded.GasFee.String(),
		ConfirmedAt:  time.Unix(block.Timestamp.Int(), 0).UTC(),
	}, nil
}

// Record implements the Service interface. Persistence is the last step: a
// request canceled before the save has no durable effect.
func (s *service) Record(ctx context.Context, txHash string) (TransferRecord, bool, error) {
	hash := address.CanonicalizeHash(txHash)
	if err := validator.Validate(recordInput{TxHash: hash}); err != nil {
		return TransferRecord{}, false, err
	}

	if existing, err := s.storage.GetTransfer(ctx, hash); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrTransferNotFound) {
		return TransferRecord{}, false, err
	}

	tx, rcpt, block, err := s.verify(ctx, hash)
	if err != nil {
		return TransferRecord{}, false, err
	}

	record, err := s.buildRecord(hash, tx, rcpt, block)
	if err != nil {
		return TransferRecord{}, false, err
	}

	if err := s.storage.SaveTransfer(ctx, record); err != nil {
		if errors.Is(err, ErrTransferAlreadyExists) {
			// Lost the race against a concurrent recording of the same hash.
			// The stored record is equivalent; return it instead of an error.
			winner, getErr := s.storage.GetTransfer(ctx, hash)
			if getErr != nil {
				return TransferRecord{}, false, getErr
			}
			return winner, false, nil
		}
		return TransferRecord{}, false, err
	}

	logger.Info(ctx, "transfer recorded",
		"txHash", record.TxHash,
		"token", record.TokenKind,
		"amount", record.Amount,
	)
	return record, true, nil
}

// FindByParticipant implements the Service interface.
func (s *service) FindByParticipant(ctx context.Context, participant string) ([]TransferRecord, error) {
	canonical := address.Canonicalize(participant)
	if err := validator.Validate(findInput{Participant: canonical}); err != nil {
		return nil, err
	}

	return s.storage.ListTransfersByParticipant(ctx, canonical)
}
