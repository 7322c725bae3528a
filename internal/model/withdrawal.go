package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalStatus is the lifecycle state of an organizer payout request.
type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalFailed     WithdrawalStatus = "failed"
)

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalPending:    {WithdrawalProcessing, WithdrawalFailed},
	WithdrawalProcessing: {WithdrawalCompleted, WithdrawalFailed},
}

// CanTransitionTo reports whether s may move to next.
func (s WithdrawalStatus) CanTransitionTo(next WithdrawalStatus) bool {
	return slices.Contains(withdrawalTransitions[s], next)
}

// Withdrawal is an organizer's request to be paid out. Its ID is reused as
// the payout reference sent to the mobile money provider.
type Withdrawal struct {
	ID            string           `json:"id"`
	OrganizerID   string           `json:"organizer_id"`
	Amount        decimal.Decimal  `json:"amount"`
	Currency      string           `json:"currency"`
	RecipientCode string           `json:"recipient_code"`
	Status        WithdrawalStatus `json:"status"`
	FailureReason string           `json:"failure_reason,omitempty"`
	TransferCode  *string          `json:"transfer_code,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Balance is an organizer's withdrawable position.
// Available = Earnings - Reserved, where Reserved covers every withdrawal
// that is pending, processing or completed.
type Balance struct {
	OrganizerID string          `json:"organizer_id"`
	Earnings    decimal.Decimal `json:"earnings"`
	Reserved    decimal.Decimal `json:"reserved"`
	Available   decimal.Decimal `json:"available"`
}

// WithdrawalRequest is the organizer payload for requesting a payout.
type WithdrawalRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	RecipientCode string          `json:"recipient_code"`
}
