package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/votepay/internal/events"
	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/Shivanand-hulikatti/votepay/internal/money"
	"github.com/Shivanand-hulikatti/votepay/internal/provider"
	"github.com/Shivanand-hulikatti/votepay/internal/repository"
	"github.com/google/uuid"
)

// Ledger owns the payment lifecycle. It is the only writer of payment status.
type Ledger struct {
	payments  PaymentStore
	settings  SettingsStore
	guard     *Guard
	adapters  map[model.PaymentMethod]provider.Adapter
	publisher Publisher
	timeout   time.Duration
	now       func() time.Time
	log       *slog.Logger
}

// NewLedger wires a Ledger. Every provider call is bounded by timeout.
func NewLedger(payments PaymentStore, settings SettingsStore, guard *Guard, publisher Publisher, timeout time.Duration, adapters ...provider.Adapter) *Ledger {
	byMethod := make(map[model.PaymentMethod]provider.Adapter, len(adapters))
	for _, a := range adapters {
		byMethod[a.Method()] = a
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Ledger{
		payments:  payments,
		settings:  settings,
		guard:     guard,
		adapters:  byMethod,
		publisher: publisher,
		timeout:   timeout,
		now:       time.Now,
		log:       slog.Default().With("component", "ledger"),
	}
}

func (l *Ledger) adapter(m model.PaymentMethod) (provider.Adapter, bool) {
	a, ok := l.adapters[m]
	return a, ok
}

// CreateIntent opens a pending payment and the matching provider intent.
//
// The commission split is computed from a snapshot of the settings and
// frozen into the payment row. A provider timeout leaves the payment pending
// because the provider may still have accepted it; any other provider error
// rolls the payment forward to failed so no intent is orphaned.
func (l *Ledger) CreateIntent(ctx context.Context, voterID string, method model.PaymentMethod, req model.CreatePaymentRequest) (*model.PaymentIntent, error) {
	if voterID == "" {
		return nil, validationf("voter is required")
	}
	if !method.Valid() {
		return nil, validationf("unknown payment method %q", method)
	}
	id := req.PaymentID
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, validationf("payment_id must be a UUID")
	}

	settings, err := l.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	adapter, ok := l.adapter(method)
	if !ok || !settings.MethodEnabled(method) {
		return nil, precondition(ReasonProviderDisabled, "%s payments are disabled", method)
	}

	now := l.now()
	elig, err := l.guard.Check(ctx, req.ContestantID, req.Amount, now)
	if err != nil {
		return nil, err
	}

	split := money.SplitAmount(req.Amount, settings.CommissionRate)
	p := &model.Payment{
		ID:                id,
		VoterID:           voterID,
		EventID:           elig.Event.ID,
		ContestantID:      elig.Contestant.ID,
		Amount:            req.Amount,
		Currency:          elig.Event.Currency,
		CommissionRate:    split.Rate,
		PlatformFee:       split.PlatformFee,
		OrganizerEarnings: split.OrganizerEarnings,
		Method:            method,
		Status:            model.PaymentPending,
		Metadata:          map[string]any{"category_id": elig.Category.ID},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := l.payments.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicatePayment) {
			return nil, precondition(ReasonDuplicatePayment, "payment %s already exists", id)
		}
		return nil, fmt.Errorf("create payment: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, l.timeout)
	intent, err := adapter.CreateIntent(pctx, provider.IntentRequest{
		PaymentID:    p.ID,
		VoterID:      p.VoterID,
		EventID:      p.EventID,
		ContestantID: p.ContestantID,
		Amount:       p.Amount,
		Currency:     p.Currency,
		Email:        req.Email,
	})
	timedOut := pctx.Err() != nil
	cancel()
	if err != nil {
		if timedOut || errors.Is(err, context.DeadlineExceeded) {
			l.log.Warn("provider intent timed out, payment left pending",
				"payment_id", p.ID, "method", method, "error", err)
			return nil, fmt.Errorf("%w: intent creation timed out", provider.ErrProvider)
		}
		if _, _, ferr := l.MarkFailed(ctx, p.ID, "provider error: "+err.Error(), nil); ferr != nil {
			l.log.Error("could not fail payment after provider error", "payment_id", p.ID, "error", ferr)
		}
		return nil, err
	}

	if err := l.payments.AttachProviderRef(ctx, p.ID, intent.ProviderRef, intent.Raw); err != nil {
		return nil, fmt.Errorf("attach provider ref: %w", err)
	}
	ref := intent.ProviderRef
	p.ProviderRef = &ref

	return &model.PaymentIntent{
		Payment:          p,
		ClientSecret:     intent.ClientSecret,
		AuthorizationURL: intent.AuthorizationURL,
		AccessCode:       intent.AccessCode,
	}, nil
}

// MarkCompleted moves a pending payment to completed. It reports whether
// this call made the change; an already-completed payment is a no-op.
func (l *Ledger) MarkCompleted(ctx context.Context, id string, payload map[string]any) (*model.Payment, bool, error) {
	return l.transition(ctx, id, model.PaymentCompleted, "", payload)
}

// MarkFailed moves a pending payment to failed. A completed payment is
// never failed, so a stale failure cannot undo a success.
func (l *Ledger) MarkFailed(ctx context.Context, id, reason string, payload map[string]any) (*model.Payment, bool, error) {
	return l.transition(ctx, id, model.PaymentFailed, reason, payload)
}

// MarkDisputed flags a completed payment as disputed. The vote stays.
func (l *Ledger) MarkDisputed(ctx context.Context, id, reason string, payload map[string]any) (*model.Payment, bool, error) {
	return l.transition(ctx, id, model.PaymentDisputed, reason, payload)
}

// MarkRefunded records a refund of a completed or disputed payment.
func (l *Ledger) MarkRefunded(ctx context.Context, id, reason string, payload map[string]any) (*model.Payment, bool, error) {
	return l.transition(ctx, id, model.PaymentRefunded, reason, payload)
}

var paymentTopics = map[model.PaymentStatus]string{
	model.PaymentCompleted: events.PaymentCompleted,
	model.PaymentFailed:    events.PaymentFailed,
	model.PaymentDisputed:  events.PaymentDisputed,
	model.PaymentRefunded:  events.PaymentRefunded,
}

// transition is the single write path for payment status. The store compares
// and writes in one statement; when the payment has moved on, the current
// row decides between an idempotent no-op and an illegal transition.
func (l *Ledger) transition(ctx context.Context, id string, to model.PaymentStatus, reason string, payload map[string]any) (*model.Payment, bool, error) {
	p, err := l.payments.Transition(ctx, id, model.PaymentSourcesFor(to), to, reason, payload)
	switch {
	case err == nil:
		l.log.Info("payment status changed", "payment_id", id, "status", to)
		l.publish(ctx, paymentTopics[to], p.ID, p)
		return p, true, nil
	case errors.Is(err, repository.ErrStatusConflict):
		if p.Status == to {
			return p, false, nil
		}
		return p, false, precondition(ReasonInvalidTransition, "payment is %s and cannot become %s", p.Status, to)
	case errors.Is(err, repository.ErrNotFound):
		return nil, false, err
	default:
		return nil, false, fmt.Errorf("transition payment %s to %s: %w", id, to, err)
	}
}

// Cancel fails a pending payment on behalf of its voter. The provider is
// asked to cancel first, but its answer never blocks the local change.
func (l *Ledger) Cancel(ctx context.Context, paymentID, voterID string) (*model.Payment, error) {
	p, err := l.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.VoterID != voterID {
		return nil, precondition(ReasonNotOwner, "payment belongs to another voter")
	}
	if p.Status == model.PaymentFailed {
		return p, nil
	}
	if p.Status != model.PaymentPending {
		return nil, precondition(ReasonInvalidTransition, "payment is %s", p.Status)
	}

	if adapter, ok := l.adapter(p.Method); ok && p.ProviderRef != nil {
		pctx, cancel := context.WithTimeout(ctx, l.timeout)
		if err := adapter.Cancel(pctx, *p.ProviderRef); err != nil {
			l.log.Warn("provider cancel failed, cancelling locally", "payment_id", p.ID, "error", err)
		}
		cancel()
	}

	p, _, err = l.MarkFailed(ctx, p.ID, "canceled by voter", map[string]any{"canceled_by": voterID})
	return p, err
}

func (l *Ledger) publish(ctx context.Context, topic, key string, data any) {
	if l.publisher == nil || topic == "" {
		return
	}
	if err := l.publisher.Publish(ctx, topic, key, data); err != nil {
		l.log.Warn("publish failed", "topic", topic, "key", key, "error", err)
	}
}
