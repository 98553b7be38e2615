package escrow

import (
	"errors"

	"github.com/gabapcia/escrowledger/internal/pkg/address"
)

// ErrForbidden indicates the requester is not allowed to perform the
// operation on this agreement.
var ErrForbidden = errors.New("requester not authorized for this agreement")

// authorizeCreate enforces that only the depositor may open an agreement on
// their own behalf.
func authorizeCreate(requester, depositor string) error {
	if !address.Equal(requester, depositor) {
		return ErrForbidden
	}
	return nil
}

// authorizeTransition enforces the role policy for status changes: the
// depositor reports funding, and only the arbiter or the beneficiary may
// report release. Roles are compared in canonical form.
func authorizeTransition(record AgreementRecord, next Status, requester string) error {
	switch next {
	case StatusFunded:
		if address.Equal(requester, record.Depositor) {
			return nil
		}
	case StatusReleased:
		if address.Equal(requester, record.Arbiter) || address.Equal(requester, record.Beneficiary) {
			return nil
		}
	}
	return ErrForbidden
}
