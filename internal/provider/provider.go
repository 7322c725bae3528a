// Package provider adapts the two payment processors behind one capability
// interface. Each processor keeps its own webhook event set and correlation
// scheme; only intent creation, status retrieval and cancellation are shared.
package provider

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/shopspring/decimal"
)

// ErrProvider marks a failure talking to an upstream processor. The local
// payment stays pending; callers may retry with backoff.
var ErrProvider = errors.New("payment provider error")

// ErrSignatureInvalid marks a webhook whose signature did not verify.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// Status is a processor-side payment status reduced to what the ledger acts on.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusPending   Status = "pending"
)

// IntentRequest describes the charge to open with a processor.
type IntentRequest struct {
	PaymentID    string
	VoterID      string
	EventID      string
	ContestantID string
	Amount       decimal.Decimal
	Currency     string
	Email        string
}

// Intent is the processor-side handle returned to the client.
type Intent struct {
	ProviderRef      string
	ClientSecret     string
	AuthorizationURL string
	AccessCode       string
	Raw              map[string]any
}

// StatusResult is what a processor reports for an existing charge.
type StatusResult struct {
	Status Status
	Reason string
	// Amount is what the processor charged, in minor units of Currency.
	// Zero when it did not say.
	Amount   int64
	Currency string
	Raw      map[string]any
}

// Adapter is the capability every processor implements.
type Adapter interface {
	Method() model.PaymentMethod
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	RetrieveStatus(ctx context.Context, providerRef string) (StatusResult, error)
	Cancel(ctx context.Context, providerRef string) error
}

// TransferRequest asks the processor to pay an organizer out.
type TransferRequest struct {
	Reference     string
	Amount        decimal.Decimal
	RecipientCode string
	Reason        string
}

// Transfer is the processor's acknowledgement of a payout.
type Transfer struct {
	TransferCode string
	Status       string
}

// Payouts is implemented by processors that can send money to organizers.
type Payouts interface {
	Transfer(ctx context.Context, req TransferRequest) (*Transfer, error)
	SettlementCurrency() string
}
