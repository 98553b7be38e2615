// Package transfer classifies confirmed chain transactions as native-asset or
// token-contract transfers and normalizes them into canonical
// (sender, recipient, amount, token) form.
//
// Decoding is pure: it never touches the network or storage. The caller is
// expected to hand it data that has already been verified as confirmed and
// successful.
package transfer

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/gabapcia/escrowledger/internal/pkg/address"
	"github.com/gabapcia/escrowledger/internal/pkg/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

var (
	// ErrUnsupportedTokenContract indicates a transfer(address,uint256) call
	// against a contract that is not in the registry. Such transactions are
	// rejected rather than mis-tagged as native transfers.
	ErrUnsupportedTokenContract = errors.New("unsupported token contract")

	// ErrMalformedTransferCall indicates calldata that starts with the
	// transfer selector but does not carry two full ABI words.
	ErrMalformedTransferCall = errors.New("malformed transfer calldata")
)

// transferSelector is the 4-byte selector for transfer(address,uint256).
var transferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}

// abiWordSize is the size of one ABI-encoded argument in bytes.
const abiWordSize = 32

type (
	// Transaction carries the transaction fields the decoder needs, already
	// fetched and verified by the caller.
	Transaction struct {
		From     string
		To       string
		Value    types.Hex
		Input    string
		GasPrice types.Hex
	}

	// Receipt carries the receipt fields used for gas-fee computation.
	Receipt struct {
		GasUsed           types.Hex
		EffectiveGasPrice types.Hex
	}

	// Transfer is the normalized outcome of decoding: canonical addresses,
	// human-unit amounts, and the resolved token.
	Transfer struct {
		From         string
		To           string
		Amount       decimal.Decimal
		TokenKind    string
		TokenAddress string // empty for native transfers
		GasFee       decimal.Decimal
	}
)

// scale converts a raw integer amount to human units using the given decimal
// precision.
func scale(raw *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -decimals)
}

// isTransferCall reports whether the calldata invokes transfer(address,uint256).
func isTransferCall(input []byte) bool {
	return len(input) >= len(transferSelector) && bytes.Equal(input[:len(transferSelector)], transferSelector)
}

// decodeTransferCall extracts the recipient and raw token amount from
// transfer(address,uint256) calldata. The selector must already be verified.
func decodeTransferCall(input []byte) (recipient string, amount *big.Int, err error) {
	args := input[len(transferSelector):]
	if len(args) < 2*abiWordSize {
		return "", nil, fmt.Errorf("%w: %d argument bytes", ErrMalformedTransferCall, len(args))
	}

	to := common.BytesToAddress(args[:abiWordSize])
	raw := new(big.Int).SetBytes(args[abiWordSize : 2*abiWordSize])

	return address.Canonicalize(to.Hex()), raw, nil
}

// gasFee computes gasUsed * effectiveGasPrice in native human units. When the
// receipt carries no effective price (pre-EIP-1559 nodes), the transaction's
// gas price is used instead.
func gasFee(tx Transaction, rcpt Receipt, nativeDecimals int32) decimal.Decimal {
	price := rcpt.EffectiveGasPrice.Big()
	if price.Sign() == 0 {
		price = tx.GasPrice.Big()
	}

	fee := new(big.Int).Mul(rcpt.GasUsed.Big(), price)
	return scale(fee, nativeDecimals)
}

// Decode classifies the transaction and returns its normalized transfer.
//
// The default classification is a native-asset transfer of tx.Value to tx.To.
// When the calldata invokes transfer(address,uint256), the recipient and
// amount are taken from the decoded arguments instead (the on-chain To is the
// token contract, not the beneficiary), and the token is resolved against the
// registry. A selector match on an unregistered contract fails with
// ErrUnsupportedTokenContract.
func Decode(reg *Registry, tx Transaction, rcpt Receipt) (Transfer, error) {
	native := reg.Native()

	out := Transfer{
		From:      address.Canonicalize(tx.From),
		To:        address.Canonicalize(tx.To),
		Amount:    scale(tx.Value.Big(), native.Decimals),
		TokenKind: native.Symbol,
		GasFee:    gasFee(tx, rcpt, native.Decimals),
	}

	if tx.Input == "" || tx.Input == "0x" {
		return out, nil
	}

	input, err := hexutil.Decode(tx.Input)
	if err != nil {
		return Transfer{}, fmt.Errorf("decoding transaction input: %w", err)
	}

	if !isTransferCall(input) {
		return out, nil
	}

	token, ok := reg.Lookup(tx.To)
	if !ok {
		return Transfer{}, fmt.Errorf("%w: %s", ErrUnsupportedTokenContract, address.Canonicalize(tx.To))
	}

	recipient, raw, err := decodeTransferCall(input)
	if err != nil {
		return Transfer{}, err
	}

	out.To = recipient
	out.Amount = scale(raw, token.Decimals)
	out.TokenKind = token.Symbol
	out.TokenAddress = address.Canonicalize(tx.To)
	return out, nil
}
