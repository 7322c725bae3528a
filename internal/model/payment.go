package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod identifies which provider funds a payment.
type PaymentMethod string

const (
	MethodCard        PaymentMethod = "card"
	MethodMobileMoney PaymentMethod = "mobile_money"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == MethodCard || m == MethodMobileMoney
}

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentDisputed  PaymentStatus = "disputed"
)

// paymentTransitions is the complete set of legal status moves.
// Nothing leads back to pending, and failed is terminal.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted, PaymentFailed},
	PaymentCompleted: {PaymentRefunded, PaymentDisputed},
	PaymentDisputed:  {PaymentRefunded},
}

// CanTransitionTo reports whether s may move to next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return slices.Contains(paymentTransitions[s], next)
}

// PaymentSourcesFor returns every status from which next is reachable.
func PaymentSourcesFor(next PaymentStatus) []PaymentStatus {
	var from []PaymentStatus
	for src, targets := range paymentTransitions {
		if slices.Contains(targets, next) {
			from = append(from, src)
		}
	}
	slices.Sort(from)
	return from
}

// Payment is one paid vote attempt. The commission split is frozen at
// creation: Amount == PlatformFee + OrganizerEarnings for the row's lifetime.
type Payment struct {
	ID                string          `json:"id"`
	VoterID           string          `json:"voter_id"`
	EventID           string          `json:"event_id"`
	ContestantID      string          `json:"contestant_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	CommissionRate    decimal.Decimal `json:"commission_rate"`
	PlatformFee       decimal.Decimal `json:"platform_fee"`
	OrganizerEarnings decimal.Decimal `json:"organizer_earnings"`
	Method            PaymentMethod   `json:"payment_method"`
	ProviderRef       *string         `json:"payment_provider_id,omitempty"`
	Status            PaymentStatus   `json:"status"`
	FailureReason     string          `json:"failure_reason,omitempty"`
	Metadata          map[string]any  `json:"metadata,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

// Vote records one paid vote. PaymentID is unique across all votes.
type Vote struct {
	ID           string          `json:"id"`
	VoterID      string          `json:"voter_id"`
	ContestantID string          `json:"contestant_id"`
	EventID      string          `json:"event_id"`
	PaymentID    string          `json:"payment_id"`
	Amount       decimal.Decimal `json:"amount"`
	CreatedAt    time.Time       `json:"created_at"`
}

// PlatformSettings is the singleton platform configuration row.
type PlatformSettings struct {
	CommissionRate     decimal.Decimal `json:"commission_rate"`
	CardEnabled        bool            `json:"card_enabled"`
	MobileMoneyEnabled bool            `json:"mobile_money_enabled"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// MethodEnabled reports whether payments through m are currently accepted.
func (s PlatformSettings) MethodEnabled(m PaymentMethod) bool {
	switch m {
	case MethodCard:
		return s.CardEnabled
	case MethodMobileMoney:
		return s.MobileMoneyEnabled
	default:
		return false
	}
}

// CreatePaymentRequest starts a paid vote. PaymentID is optional; when the
// client supplies one it doubles as an idempotency key for retries.
type CreatePaymentRequest struct {
	PaymentID    string          `json:"payment_id,omitempty"`
	ContestantID string          `json:"contestant_id"`
	Amount       decimal.Decimal `json:"amount"`
	Email        string          `json:"email,omitempty"`
}

// EligibilityRequest is the pre-flight check payload.
type EligibilityRequest struct {
	ContestantID string          `json:"contestant_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// EligibilityResult is returned when a pre-flight check passes.
type EligibilityResult struct {
	Eligible     bool            `json:"eligible"`
	EventID      string          `json:"event_id"`
	CategoryID   string          `json:"category_id"`
	ContestantID string          `json:"contestant_id"`
	VotePrice    decimal.Decimal `json:"vote_price"`
	Currency     string          `json:"currency"`
}

// CreateVoteRequest asks for the vote funded by a completed payment.
type CreateVoteRequest struct {
	PaymentID string `json:"payment_id"`
}

// UpdateSettingsRequest changes platform settings. Nil fields are left alone.
type UpdateSettingsRequest struct {
	CommissionRate     *decimal.Decimal `json:"commission_rate,omitempty"`
	CardEnabled        *bool            `json:"card_enabled,omitempty"`
	MobileMoneyEnabled *bool            `json:"mobile_money_enabled,omitempty"`
}

// PaymentIntent is returned to the client after a provider intent exists.
// Card payments carry ClientSecret; mobile money carries AuthorizationURL.
type PaymentIntent struct {
	Payment          *Payment `json:"payment"`
	ClientSecret     string   `json:"client_secret,omitempty"`
	AuthorizationURL string   `json:"authorization_url,omitempty"`
	AccessCode       string   `json:"access_code,omitempty"`
}

// Verification is the result of re-checking a payment with its provider.
type Verification struct {
	Payment *Payment `json:"payment"`
	Vote    *Vote    `json:"vote,omitempty"`
}
