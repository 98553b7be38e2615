// Package ethereum adapts an Ethereum-compatible node, reached over
// JSON-RPC, to the txledger.ChainOracle interface.
package ethereum

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/gabapcia/escrowledger/internal/pkg/transport/jsonrpc"
	"github.com/gabapcia/escrowledger/internal/pkg/types"
	"github.com/gabapcia/escrowledger/internal/txledger"
)

// jsonNull is the node's answer for missing transactions, receipts and blocks.
var jsonNull = []byte("null")

type (
	// transactionResponse holds the eth_getTransactionByHash fields the
	// ledger consumes.
	transactionResponse struct {
		Hash     string    `json:"hash"`
		From     string    `json:"from"`
		To       string    `json:"to"`
		Value    types.Hex `json:"value"`
		Input    string    `json:"input"`
		GasPrice types.Hex `json:"gasPrice"`
	}

	// receiptResponse holds the eth_getTransactionReceipt fields the
	// ledger consumes.
	receiptResponse struct {
		Status            types.Hex `json:"status"`
		BlockNumber       types.Hex `json:"blockNumber"`
		GasUsed           types.Hex `json:"gasUsed"`
		EffectiveGasPrice types.Hex `json:"effectiveGasPrice"`
	}

	// blockResponse holds the eth_getBlockByNumber header fields the
	// ledger consumes.
	blockResponse struct {
		Number    types.Hex `json:"number"`
		Timestamp types.Hex `json:"timestamp"`
	}
)

// client implements the txledger.ChainOracle interface for Ethereum-based
// networks. It communicates with the node via a JSON-RPC client.
type client struct {
	conn jsonrpc.Client
}

// Compile-time check to ensure *client implements txledger.ChainOracle.
var _ txledger.ChainOracle = (*client)(nil)

// NewClient creates a new chain oracle backed by the provided JSON-RPC
// connection.
func NewClient(conn jsonrpc.Client) *client {
	return &client{
		conn: conn,
	}
}

// isNull reports whether the raw result is the JSON null the node uses for
// "no such object".
func isNull(data json.RawMessage) bool {
	return len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), jsonNull)
}

// TransactionByHash implements the txledger.ChainOracle interface.
func (c *client) TransactionByHash(ctx context.Context, hash string) (txledger.Transaction, error) {
	data, err := c.conn.Fetch(ctx, "eth_getTransactionByHash", hash)
	if err != nil {
		return txledger.Transaction{}, err
	}
	if isNull(data) {
		return txledger.Transaction{}, txledger.ErrTransactionNotFound
	}

	var res transactionResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return txledger.Transaction{}, err
	}

	return txledger.Transaction{
		Hash:     res.Hash,
		From:     res.From,
		To:       res.To,
		Value:    res.Value,
		Input:    res.Input,
		GasPrice: res.GasPrice,
	}, nil
}

// ReceiptByHash implements the txledger.ChainOracle interface.
//
// The node answers null both for unknown hashes and for transactions still
// sitting in the mempool; since the ledger always resolves the transaction
// first, a null here means not mined yet.
func (c *client) ReceiptByHash(ctx context.Context, hash string) (txledger.Receipt, error) {
	data, err := c.conn.Fetch(ctx, "eth_getTransactionReceipt", hash)
	if err != nil {
		return txledger.Receipt{}, err
	}
	if isNull(data) {
		return txledger.Receipt{}, txledger.ErrTransactionPending
	}

	var res receiptResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return txledger.Receipt{}, err
	}
	if res.BlockNumber == "" {
		return txledger.Receipt{}, txledger.ErrTransactionPending
	}

	return txledger.Receipt{
		Status:            res.Status,
		BlockNumber:       res.BlockNumber,
		GasUsed:           res.GasUsed,
		EffectiveGasPrice: res.EffectiveGasPrice,
	}, nil
}

// BlockByNumber implements the txledger.ChainOracle interface.
//
// A null block for a number taken from a receipt means the chain reorganized
// under us; reporting pending lets the caller retry once the dust settles.
func (c *client) BlockByNumber(ctx context.Context, number types.Hex) (txledger.Block, error) {
	data, err := c.conn.Fetch(ctx, "eth_getBlockByNumber", number, false)
	if err != nil {
		return txledger.Block{}, err
	}
	if isNull(data) {
		return txledger.Block{}, txledger.ErrTransactionPending
	}

	var res blockResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return txledger.Block{}, err
	}

	return txledger.Block{
		Number:    res.Number,
		Timestamp: res.Timestamp,
	}, nil
}
