package service

import (
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/votepay/internal/repository"
)

// ErrValidation marks malformed input. It is always wrapped with detail.
var ErrValidation = errors.New("validation failed")

// ErrAlreadyCommitted is the idempotency signal from a vote commit. It comes
// back together with the existing vote and callers treat it as success.
var ErrAlreadyCommitted = repository.ErrAlreadyCommitted

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Reason is a machine-readable precondition failure code.
type Reason string

const (
	ReasonNotFound            Reason = "NotFound"
	ReasonEventNotActive      Reason = "EventNotActive"
	ReasonVotingNotStarted    Reason = "VotingNotStarted"
	ReasonVotingEnded         Reason = "VotingEnded"
	ReasonAmountMismatch      Reason = "AmountMismatch"
	ReasonProviderDisabled    Reason = "ProviderDisabled"
	ReasonDuplicatePayment    Reason = "DuplicatePayment"
	ReasonInsufficientBalance Reason = "InsufficientBalance"
	ReasonInvalidTransition   Reason = "InvalidTransition"
	ReasonNotOwner            Reason = "NotOwner"
	ReasonPaymentNotCompleted Reason = "PaymentNotCompleted"
	ReasonEventHasVotes       Reason = "EventHasVotes"
	ReasonEventNotReady       Reason = "EventNotReady"

	ReasonContestantHasPayments Reason = "ContestantHasPayments"
)

// PreconditionError reports that the request was well formed but the
// current state does not allow it.
type PreconditionError struct {
	Reason  Reason
	Detail  string
	Details map[string]any
}

func (e *PreconditionError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Detail
}

func precondition(reason Reason, format string, args ...any) *PreconditionError {
	return &PreconditionError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the precondition reason from err, or "".
func ReasonOf(err error) Reason {
	var pe *PreconditionError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ""
}
