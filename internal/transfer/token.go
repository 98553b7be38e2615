package transfer

import (
	"github.com/gabapcia/escrowledger/internal/pkg/address"
)

// Token describes an asset the decoder knows how to classify: either the
// chain's native asset or an ERC-20 style contract.
type Token struct {
	Symbol          string // asset identifier stored on records (e.g., "BNB", "USDT")
	ContractAddress string // token contract address; empty for the native asset
	Decimals        int32  // decimal precision used to scale raw amounts to human units
}

// Registry resolves which supported token, if any, a transaction's target
// contract belongs to. Contract addresses are compared in canonical form.
type Registry struct {
	native     Token
	byContract map[string]Token
}

// NewRegistry builds a registry for the given native asset and supported
// token contracts.
func NewRegistry(native Token, tokens ...Token) *Registry {
	byContract := make(map[string]Token, len(tokens))
	for _, t := range tokens {
		byContract[address.Canonicalize(t.ContractAddress)] = t
	}

	return &Registry{
		native:     native,
		byContract: byContract,
	}
}

// DefaultRegistry returns the registry for the BSC testnet deployment this
// service was built against: native BNB plus the known USDT and USDC
// contracts, all with 18 decimal places.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Token{Symbol: "BNB", Decimals: 18},
		Token{Symbol: "USDT", ContractAddress: "0x787A697324dbA4AB965C58CD33c13ff5eeA6295F", Decimals: 18},
		Token{Symbol: "USDC", ContractAddress: "0x342e3aA1248AB77E319e3331C6fD3f1F2d4B36B1", Decimals: 18},
	)
}

// Native returns the registry's native asset.
func (r *Registry) Native() Token {
	return r.native
}

// Lookup resolves a contract address to its registered token. The second
// return value is false when the contract is not supported.
func (r *Registry) Lookup(contractAddress string) (Token, bool) {
	t, ok := r.byContract[address.Canonicalize(contractAddress)]
	return t, ok
}
