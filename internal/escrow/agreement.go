package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status is an agreement lifecycle status. Persisted statuses are created,
// funded and released; expired exists only as a read-time derivation and is
// never written to storage.
type Status string

const (
	StatusCreated  Status = "created"
	StatusFunded   Status = "funded"
	StatusReleased Status = "released"
	StatusExpired  Status = "expired"
)

var (
	// ErrAgreementNotFound indicates no agreement matches the contract
	// address, or that a conditional status update lost its race.
	ErrAgreementNotFound = errors.New("agreement not found")

	// ErrDuplicateAgreement indicates the contract address is already taken.
	ErrDuplicateAgreement = errors.New("agreement already exists")

	// ErrIllegalTransition indicates a status change outside
	// created to funded to released.
	ErrIllegalTransition = errors.New("illegal agreement status transition")
)

// ParseStatus validates a client-supplied persisted status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusCreated, StatusFunded, StatusReleased:
		return Status(s), nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, s)
	}
}

// AgreementRecord is a tri-party escrow agreement keyed by the escrow
// contract's address. All addresses are stored in canonical form. Status
// holds the last explicitly persisted transition; use EffectiveStatus for the
// client-facing view.
type AgreementRecord struct {
	ContractAddress  string    `json:"contractAddress"`
	Depositor        string    `json:"depositor"`
	Arbiter          string    `json:"arbiter"`
	Beneficiary      string    `json:"beneficiary"`
	Amount           string    `json:"amount"`
	TokenKind        string    `json:"token"`
	TokenAddress     string    `json:"tokenAddress,omitempty"`
	Status           Status    `json:"status"`
	SettlementTxHash string    `json:"settlementTxHash,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	Deadline         time.Time `json:"deadline"`
}

// EffectiveStatus is the pure projection shown to clients: an agreement that
// was never funded reads as expired once its deadline passes. It triggers no
// write; a later funding transition simply supersedes the derivation on the
// next read.
func EffectiveStatus(persisted Status, deadline time.Time, now time.Time) Status {
	if persisted == StatusCreated && now.After(deadline) {
		return StatusExpired
	}
	return persisted
}

// withEffectiveStatus returns a copy of the record with the derived status
// applied.
func withEffectiveStatus(record AgreementRecord, now time.Time) AgreementRecord {
	record.Status = EffectiveStatus(record.Status, record.Deadline, now)
	return record
}

// AgreementStorage persists agreements keyed by canonical contract address.
// The uniqueness constraint on the address backs agreement creation; status
// updates are conditional so concurrent transitions cannot both win.
type AgreementStorage interface {
	// SaveAgreement inserts a new agreement. It must be conditional on the
	// contract address not existing yet and return ErrDuplicateAgreement when
	// it does.
	SaveAgreement(ctx context.Context, record AgreementRecord) error

	// GetAgreement fetches the agreement for a canonical contract address, or
	// ErrAgreementNotFound.
	GetAgreement(ctx context.Context, contractAddress string) (AgreementRecord, error)

	// ListAgreementsByParticipant returns every agreement where the canonical
	// address is depositor, arbiter or beneficiary, most recently created
	// first.
	ListAgreementsByParticipant(ctx context.Context, participant string) ([]AgreementRecord, error)

	// UpdateAgreementStatus atomically moves the agreement from the expected
	// current status to the next one, attaching the settlement hash when
	// non-empty. It returns ErrAgreementNotFound when the agreement does not
	// exist or its status no longer matches the expectation (lost race).
	UpdateAgreementStatus(ctx context.Context, contractAddress string, from, to Status, settlementTxHash string) (AgreementRecord, error)
}
