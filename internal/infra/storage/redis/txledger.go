package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gabapcia/escrowledger/internal/txledger"

	"github.com/redis/go-redis/v9"
)

// txledgerKeyPrefix is the namespace prefix for all transfer ledger keys.
const txledgerKeyPrefix = "txledger"

// txledgerTransferKey builds the key holding a transfer record as JSON.
//
// Format: "txledger:transfer:<txHash>"
func txledgerTransferKey(txHash string) string {
	return fmt.Sprintf("%s:transfer:%s", txledgerKeyPrefix, txHash)
}

// txledgerParticipantKey builds the key of the sorted set indexing the
// transfer hashes an address participated in, scored by confirmation time.
//
// Format: "txledger:participant:<address>"
func txledgerParticipantKey(address string) string {
	return fmt.Sprintf("%s:participant:%s", txledgerKeyPrefix, address)
}

// SaveTransfer implements the txledger.TransferStorage interface.
//
// The record itself is written with SETNX so the transaction hash stays
// unique under concurrent recording; only the writer that wins the SETNX
// updates the participant indexes, so the indexes never reference a hash
// twice.
func (c *client) SaveTransfer(ctx context.Context, record txledger.TransferRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	created, err := c.conn.SetNX(ctx, txledgerTransferKey(record.TxHash), data, 0).Result()
	if err != nil {
		return err
	}
	if !created {
		return txledger.ErrTransferAlreadyExists
	}

	score := float64(record.ConfirmedAt.Unix())
	member := redis.Z{Score: score, Member: record.TxHash}

	_, err = c.conn.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, txledgerParticipantKey(record.From), member)
		if record.To != record.From {
			pipe.ZAdd(ctx, txledgerParticipantKey(record.To), member)
		}
		return nil
	})
	return err
}

// GetTransfer implements the txledger.TransferStorage interface.
func (c *client) GetTransfer(ctx context.Context, txHash string) (txledger.TransferRecord, error) {
	data, err := c.conn.Get(ctx, txledgerTransferKey(txHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = txledger.ErrTransferNotFound
		}
		return txledger.TransferRecord{}, err
	}

	var record txledger.TransferRecord
	return record, json.Unmarshal(data, &record)
}

// ListTransfersByParticipant implements the txledger.TransferStorage interface.
//
// Hashes come out of the index most recently confirmed first; records whose
// index entry outlived the record itself are skipped rather than failing the
// whole listing.
func (c *client) ListTransfersByParticipant(ctx context.Context, participant string) ([]txledger.TransferRecord, error) {
	hashes, err := c.conn.ZRevRange(ctx, txledgerParticipantKey(participant), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	records := make([]txledger.TransferRecord, 0, len(hashes))
	for _, hash := range hashes {
		record, err := c.GetTransfer(ctx, hash)
		if err != nil {
			if errors.Is(err, txledger.ErrTransferNotFound) {
				continue
			}
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Compile-time assertion to ensure *client satisfies the txledger.TransferStorage interface
var _ txledger.TransferStorage = new(client)
