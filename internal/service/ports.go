// Package service implements the payment-to-vote core and the event,
// settings and withdrawal workflows around it. Storage and providers are
// reached through the narrow interfaces declared here.
package service

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/shopspring/decimal"
)

// EventStore is the event, category and contestant storage the services use.
type EventStore interface {
	Create(ctx context.Context, e *model.Event) error
	List(ctx context.Context) ([]model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
	UpdateSchedule(ctx context.Context, id string, price decimal.Decimal, start, end time.Time) error
	SetStatus(ctx context.Context, id string, from []model.EventStatus, to model.EventStatus) error
	Readiness(ctx context.Context, eventID string) (model.EventReadiness, error)
	CreateCategory(ctx context.Context, c *model.Category) error
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	CreateContestant(ctx context.Context, c *model.Contestant) error
	GetContestant(ctx context.Context, id string) (*model.Contestant, error)
	DeleteContestant(ctx context.Context, id string) error
}

// PaymentStore persists payments. Transition is a compare-and-set: it
// returns the current row with repository.ErrStatusConflict when the
// payment is not in one of the from states.
type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByID(ctx context.Context, id string) (*model.Payment, error)
	GetByProviderRef(ctx context.Context, method model.PaymentMethod, ref string) (*model.Payment, error)
	AttachProviderRef(ctx context.Context, id, ref string, payload map[string]any) error
	Transition(ctx context.Context, id string, from []model.PaymentStatus, to model.PaymentStatus, reason string, payload map[string]any) (*model.Payment, error)
	ListCompletedWithoutVote(ctx context.Context, limit int) ([]model.Payment, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]model.Payment, error)
}

// VoteStore commits votes. Commit returns the existing vote together with
// repository.ErrAlreadyCommitted when the payment already funded one.
type VoteStore interface {
	Commit(ctx context.Context, v *model.Vote) (*model.Vote, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*model.Vote, error)
}

// SettingsStore reads and writes the platform settings singleton.
type SettingsStore interface {
	Get(ctx context.Context) (model.PlatformSettings, error)
	Save(ctx context.Context, s model.PlatformSettings) error
}

// WithdrawalStore persists organizer withdrawals.
type WithdrawalStore interface {
	Balance(ctx context.Context, organizerID string) (model.Balance, error)
	CreateWithinBalance(ctx context.Context, w *model.Withdrawal) (model.Balance, error)
	GetByID(ctx context.Context, id string) (*model.Withdrawal, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]model.Withdrawal, error)
	Transition(ctx context.Context, id string, from []model.WithdrawalStatus, to model.WithdrawalStatus, reason, transferCode string) (*model.Withdrawal, error)
}

// Publisher emits domain events once a state change is durable.
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, data any) error
}
