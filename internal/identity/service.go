// Package identity registers and authenticates API callers. An identity
// binds a username to a wallet address; the wallet address is what ties a
// caller to the escrow agreements it participates in.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gabapcia/escrowledger/internal/pkg/address"
	"github.com/gabapcia/escrowledger/internal/pkg/logger"
	"github.com/gabapcia/escrowledger/internal/pkg/validator"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials covers both unknown usernames and wrong secrets so
// that authentication failures do not reveal which part was wrong.
var ErrInvalidCredentials = errors.New("identity: invalid credentials")

// registerInput carries the fields validated before an identity is created.
type registerInput struct {
	Username      string `validate:"required,alphanum,min=3,max=32"`
	Secret        string `validate:"required,min=8,max=72"`
	WalletAddress string `validate:"required,eth_addr"`
}

// Service manages caller identities.
type Service interface {
	// Register creates a new identity. The username is lowercased, the
	// wallet address canonicalized, and the secret stored only as a
	// bcrypt hash. A taken username yields ErrIdentityTaken.
	Register(ctx context.Context, username, secret, walletAddress string) (Identity, error)

	// Authenticate verifies a username/secret pair and returns the
	// matching identity. Unknown users and wrong secrets both yield
	// ErrInvalidCredentials.
	Authenticate(ctx context.Context, username, secret string) (Identity, error)

	// Lookup fetches an identity by username, case-insensitively.
	Lookup(ctx context.Context, username string) (Identity, error)
}

// service is the concrete implementation of the Service interface.
type service struct {
	storage CredentialStorage
	cost    int
	now     func() time.Time
}

// Compile-time check to ensure *service implements the Service interface.
var _ Service = (*service)(nil)

// config holds construction options for the identity service.
type config struct {
	cost int
	now  func() time.Time
}

// Option configures the identity service.
type Option func(*config)

// WithBcryptCost overrides the bcrypt work factor. Intended for tests,
// where bcrypt.MinCost keeps hashing cheap.
func WithBcryptCost(cost int) Option {
	return func(c *config) {
		c.cost = cost
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// New creates a new identity service using the provided credential storage.
func New(storage CredentialStorage, opts ...Option) *service {
	cfg := config{
		cost: bcrypt.DefaultCost,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &service{
		storage: storage,
		cost:    cfg.cost,
		now:     cfg.now,
	}
}

// canonicalizeUsername lowercases and trims the username so lookups are
// case-insensitive.
func canonicalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// sanitize strips secret material before an identity leaves the service.
func sanitize(identity Identity) Identity {
	identity.SecretHash = ""
	return identity
}

// Register implements the Service interface.
func (s *service) Register(ctx context.Context, username, secret, walletAddress string) (Identity, error) {
	input := registerInput{
		Username:      canonicalizeUsername(username),
		Secret:        secret,
		WalletAddress: address.Canonicalize(walletAddress),
	}
	if err := validator.Validate(input); err != nil {
		return Identity{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Secret), s.cost)
	if err != nil {
		return Identity{}, err
	}

	identity := Identity{
		Username:      input.Username,
		SecretHash:    string(hash),
		WalletAddress: input.WalletAddress,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.storage.SaveIdentity(ctx, identity); err != nil {
		return Identity{}, err
	}

	logger.Info(ctx, "identity registered",
		"username", identity.Username,
		"walletAddress", identity.WalletAddress,
	)
	return sanitize(identity), nil
}

// Authenticate implements the Service interface.
func (s *service) Authenticate(ctx context.Context, username, secret string) (Identity, error) {
	identity, err := s.storage.GetIdentity(ctx, canonicalizeUsername(username))
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.SecretHash), []byte(secret)); err != nil {
		return Identity{}, ErrInvalidCredentials
	}

	return sanitize(identity), nil
}

// Lookup implements the Service interface.
func (s *service) Lookup(ctx context.Context, username string) (Identity, error) {
	identity, err := s.storage.GetIdentity(ctx, canonicalizeUsername(username))
	if err != nil {
		return Identity{}, err
	}

	return sanitize(identity), nil
}
