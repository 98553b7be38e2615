// Package escrow manages tri-party escrow agreements: creation, participant
// queries with read-time expiry derivation, and the monotonic
// created to funded to released status machine with role-based authorization.
package escrow

import (
	"context"
	"fmt"
	"time"

	"github.com/gabapcia/escrowledger/internal/pkg/address"
	"github.com/gabapcia/escrowledger/internal/pkg/logger"
	"github.com/gabapcia/escrowledger/internal/pkg/validator"
)

// defaultGraceWindow is how long a newly created agreement waits for funding
// before it reads as expired.
const defaultGraceWindow = 24 * time.Hour

// transitionFrom maps a requested next status to the status the agreement
// must currently hold. Absence means the target is never reachable through
// Transition.
var transitionFrom = map[Status]Status{
	StatusFunded:   StatusCreated,
	StatusReleased: StatusFunded,
}

// CreateInput carries the client-supplied fields for opening an agreement.
type CreateInput struct {
	ContractAddress string `validate:"required,eth_addr"`
	Depositor       string `validate:"required,eth_addr"`
	Arbiter         string `validate:"required,eth_addr"`
	Beneficiary     string `validate:"required,eth_addr"`
	Amount          string `validate:"required"`
	TokenKind       string `validate:"required"`
	TokenAddress    string `validate:"omitempty,eth_addr"`
}

// Service manages the escrow agreement lifecycle.
type Service interface {
	// Create opens a new agreement. The requester must be the depositor;
	// the deadline is fixed at creation time and never recomputed.
	//
	// Failure modes: validator.ErrValidationFailed, ErrForbidden,
	// ErrDuplicateAgreement.
	Create(ctx context.Context, input CreateInput, requester string) (AgreementRecord, error)

	// Get returns a single agreement with its effective status applied.
	Get(ctx context.Context, contractAddress string) (AgreementRecord, error)

	// ListForParticipant returns every agreement in which the address plays
	// any of the three roles, most recently created first, with the expiry
	// derivation applied per record at call time.
	ListForParticipant(ctx context.Context, participant string) ([]AgreementRecord, error)

	// Transition moves an agreement along created to funded to released. The
	// depositor reports funding; the arbiter or beneficiary reports release.
	// A settlement transaction hash, when given, is attached only on a
	// successful transition. Concurrent transitions are resolved by the
	// storage's conditional update: the loser observes ErrAgreementNotFound.
	Transition(ctx context.Context, contractAddress string, next Status, settlementTxHash, requester string) (AgreementRecord, error)
}

// service is the concrete implementation of the Service interface.
type service struct {
	storage     AgreementStorage
	graceWindow time.Duration
	now         func() time.Time
}

// Compile-time check to ensure *service implements the Service interface.
var _ Service = (*service)(nil)

// config holds construction options for the escrow service.
type config struct {
	graceWindow time.Duration
	now         func() time.Time
}

// Option configures the escrow service.
type Option func(*config)

// WithGraceWindow overrides how long an unfunded agreement stays actionable
// before reading as expired. Default: 24 hours.
func WithGraceWindow(d time.Duration) Option {
	return func(c *config) {
		c.graceWindow = d
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// New creates a new escrow service using the provided agreement storage.
func New(storage AgreementStorage, opts ...Option) *service {
	cfg := config{
		graceWindow: defaultGraceWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &service{
		storage:     storage,
		graceWindow: cfg.graceWindow,
		now:         cfg.now,
	}
}

// canonicalizeInput normalizes every address field of the creation input.
func canonicalizeInput(input CreateInput) CreateInput {
	input.ContractAddress = address.Canonicalize(input.ContractAddress)
	input.Depositor = address.Canonicalize(input.Depositor)
	input.Arbiter = address.Canonicalize(input.Arbiter)
	input.Beneficiary = address.Canonicalize(input.Beneficiary)
	input.TokenAddress = address.Canonicalize(input.TokenAddress)
	return input
}

// Create implements the Service interface.
func (s *service) Create(ctx context.Context, input CreateInput, requester string) (AgreementRecord, error) {
	input = canonicalizeInput(input)
	if err := validator.Validate(input); err != nil {
		return AgreementRecord{}, err
	}

	if err := authorizeCreate(requester, input.Depositor); err != nil {
		return AgreementRecord{}, err
	}

	now := s.now().UTC()
	record := AgreementRecord{
		ContractAddress: input.ContractAddress,
		Depositor:       input.Depositor,
		Arbiter:         input.Arbiter,
		Beneficiary:     input.Beneficiary,
		Amount:          input.Amount,
		TokenKind:       input.TokenKind,
		TokenAddress:    input.TokenAddress,
		Status:          StatusCreated,
		CreatedAt:       now,
		Deadline:        now.Add(s.graceWindow),
	}

	if err := s.storage.SaveAgreement(ctx, record); err != nil {
		return AgreementRecord{}, err
	}

	logger.Info(ctx, "agreement created",
		"contractAddress", record.ContractAddress,
		"deadline", record.Deadline,
	)
	return record, nil
}

// Get implements the Service interface.
func (s *service) Get(ctx context.Context, contractAddress string) (AgreementRecord, error) {
	record, err := s.storage.GetAgreement(ctx, address.Canonicalize(contractAddress))
	if err != nil {
		return AgreementRecord{}, err
	}

	return withEffectiveStatus(record, s.now()), nil
}

// ListForParticipant implements the Service interface.
func (s *service) ListForParticipant(ctx context.Context, participant string) ([]AgreementRecord, error) {
	records, err := s.storage.ListAgreementsByParticipant(ctx, address.Canonicalize(participant))
	if err != nil {
		return nil, err
	}

	now := s.now()
	for i, record := range records {
		records[i] = withEffectiveStatus(record, now)
	}
	return records, nil
}

// Transition implements the Service interface.
//
// The legality check runs against the persisted status, not the derived one:
// funding an agreement whose deadline has lapsed is allowed, because expiry
// is a view and the explicit transition supersedes it.
func (s *service) Transition(ctx context.Context, contractAddress string, next Status, settlementTxHash, requester string) (AgreementRecord, error) {
	from, ok := transitionFrom[next]
	if !ok {
		return AgreementRecord{}, fmt.Errorf("%w: cannot transition to %q", ErrIllegalTransition, next)
	}

	contract := address.Canonicalize(contractAddress)
	record, err := s.storage.GetAgreement(ctx, contract)
	if err != nil {
		return AgreementRecord{}, err
	}

	if record.Status != from {
		return AgreementRecord{}, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, record.Status, next)
	}

	if err := authorizeTransition(record, next, requester); err != nil {
		return AgreementRecord{}, err
	}

	// A concurrent transition that wins first makes the conditional update
	// miss; the loser observes ErrAgreementNotFound instead of applying the
	// change twice.
	updated, err := s.storage.UpdateAgreementStatus(ctx, contract, from, next, address.CanonicalizeHash(settlementTxHash))
	if err != nil {
		return AgreementRecord{}, err
	}

	logger.Info(ctx, "agreement transitioned",
		"contractAddress", updated.ContractAddress,
		"status", updated.Status,
	)
	return withEffectiveStatus(updated, s.now()), nil
}
