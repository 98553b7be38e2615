package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrIdentityTaken indicates the username is already registered.
	ErrIdentityTaken = errors.New("identity: username already taken")

	// ErrIdentityNotFound indicates no identity exists for the username.
	ErrIdentityNotFound = errors.New("identity: not found")
)

// Identity is the stored profile of an API caller. SecretHash holds the
// bcrypt digest of the caller's secret; plaintext secrets and any key
// material are never persisted.
type Identity struct {
	Username      string    `json:"username"`
	SecretHash    string    `json:"secretHash,omitempty"`
	WalletAddress string    `json:"walletAddress"`
	CreatedAt     time.Time `json:"createdAt"`
}

// CredentialStorage persists identities keyed by username.
type CredentialStorage interface {
	// SaveIdentity stores a new identity. It must fail with
	// ErrIdentityTaken when the username already exists.
	SaveIdentity(ctx context.Context, identity Identity) error

	// GetIdentity fetches an identity by its exact (lowercase) username,
	// returning ErrIdentityNotFound when absent.
	GetIdentity(ctx context.Context, username string) (Identity, error)
}
