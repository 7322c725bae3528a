package service

import (
	"context"
	"errors"
	"log/slog"
	"maps"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/Shivanand-hulikatti/votepay/internal/money"
	"github.com/Shivanand-hulikatti/votepay/internal/provider"
	"github.com/Shivanand-hulikatti/votepay/internal/repository"
)

// Settlement applies definitive provider outcomes. Webhooks, the verify
// endpoint and the reconciler all go through it so the three paths cannot
// drift apart.
type Settlement struct {
	ledger    *Ledger
	committer *Committer
	votes     VoteStore
	log       *slog.Logger
}

func NewSettlement(ledger *Ledger, committer *Committer, votes VoteStore) *Settlement {
	return &Settlement{
		ledger:    ledger,
		committer: committer,
		votes:     votes,
		log:       slog.Default().With("component", "settlement"),
	}
}

// Succeeded completes the payment and commits its vote. A failed commit is
// logged and left for the reconciler: the payment is completed either way.
func (s *Settlement) Succeeded(ctx context.Context, paymentID string, payload map[string]any) (*model.Payment, *model.Vote, error) {
	p, changed, err := s.ledger.MarkCompleted(ctx, paymentID, payload)
	if err != nil {
		if ReasonOf(err) != ReasonInvalidTransition {
			return nil, nil, err
		}
		// Disputed and refunded were reached through completed.
		if p.Status == model.PaymentDisputed || p.Status == model.PaymentRefunded {
			s.log.Info("payment already settled past completed", "payment_id", paymentID, "status", p.Status)
		} else {
			s.log.Error("provider reports success for a payment that can no longer complete; needs review",
				"payment_id", paymentID, "status", p.Status)
		}
		return p, nil, nil
	}
	if !changed {
		s.log.Info("payment already completed", "payment_id", paymentID)
	}

	v, err := s.committer.Commit(ctx, p.ID)
	if err != nil && !errors.Is(err, ErrAlreadyCommitted) {
		s.log.Error("vote commit failed after payment completed", "payment_id", p.ID, "error", err)
		return p, nil, nil
	}
	return p, v, nil
}

// Charged is Succeeded guarded by the amount the processor actually took.
// charged is in minor units of currency, defaulting to the payment's own
// currency; zero means the processor did not report an amount. A mismatch
// leaves the payment pending for review.
func (s *Settlement) Charged(ctx context.Context, p *model.Payment, charged int64, currency string, payload map[string]any) (*model.Payment, *model.Vote, error) {
	if currency == "" {
		currency = p.Currency
	}
	if want := money.ToMinor(p.Amount, currency); charged != 0 && charged != want {
		s.log.Error("charge amount does not match payment; not completing",
			"payment_id", p.ID, "charged", charged, "expected", want, "currency", currency)
		return p, nil, nil
	}
	return s.Succeeded(ctx, p.ID, payload)
}

// Failed fails the payment. A failure that arrives after the payment has
// already completed is stale and ignored.
func (s *Settlement) Failed(ctx context.Context, paymentID, reason string, payload map[string]any) (*model.Payment, error) {
	p, _, err := s.ledger.MarkFailed(ctx, paymentID, reason, payload)
	if err != nil {
		if ReasonOf(err) == ReasonInvalidTransition {
			s.log.Warn("stale failure ignored", "payment_id", paymentID, "status", p.Status)
			return p, nil
		}
		return nil, err
	}
	return p, nil
}

// providerRef is the reference a provider knows the payment by. Mobile money
// reuses the payment id, so it is known even before the ref is attached.
func providerRef(p *model.Payment) string {
	if p.ProviderRef != nil {
		return *p.ProviderRef
	}
	if p.Method == model.MethodMobileMoney {
		return p.ID
	}
	return ""
}

// Refresh asks the provider about a pending payment and applies the answer
// when it is definitive.
func (s *Settlement) Refresh(ctx context.Context, p *model.Payment, source string) (*model.Payment, *model.Vote, error) {
	ref := providerRef(p)
	adapter, ok := s.ledger.adapter(p.Method)
	if ref == "" || !ok {
		return p, nil, nil
	}

	pctx, cancel := context.WithTimeout(ctx, s.ledger.timeout)
	res, err := adapter.RetrieveStatus(pctx, ref)
	cancel()
	if err != nil {
		return p, nil, err
	}

	payload := map[string]any{"source": source}
	maps.Copy(payload, res.Raw)
	switch res.Status {
	case provider.StatusSucceeded:
		return s.Charged(ctx, p, res.Amount, res.Currency, payload)
	case provider.StatusFailed:
		p, err := s.Failed(ctx, p.ID, res.Reason, payload)
		return p, nil, err
	default:
		return p, nil, nil
	}
}

// Verify re-checks a payment for a voter who cannot wait for the webhook.
// Only a pending payment goes back to the provider.
func (s *Settlement) Verify(ctx context.Context, paymentID, voterID string) (*model.Verification, error) {
	p, err := s.ledger.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if voterID != "" && p.VoterID != voterID {
		return nil, precondition(ReasonNotOwner, "payment belongs to another voter")
	}

	var v *model.Vote
	if p.Status == model.PaymentPending {
		if p, v, err = s.Refresh(ctx, p, "verify"); err != nil {
			return nil, err
		}
	}

	switch {
	case v != nil:
	case p.Status == model.PaymentCompleted:
		v, err = s.committer.Commit(ctx, p.ID)
		if err != nil && !errors.Is(err, ErrAlreadyCommitted) {
			s.log.Error("vote commit failed during verify", "payment_id", p.ID, "error", err)
			v = nil
		}
	case p.Status == model.PaymentDisputed || p.Status == model.PaymentRefunded:
		v, err = s.votes.GetByPaymentID(ctx, p.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return &model.Verification{Payment: p, Vote: v}, nil
}
