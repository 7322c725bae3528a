package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
)

// ReconcileReport counts what one reconciliation pass did.
type ReconcileReport struct {
	VotesBackfilled int `json:"votes_backfilled"`
	Completed       int `json:"completed"`
	Failed          int `json:"failed"`
	StillPending    int `json:"still_pending"`
	Errors          int `json:"errors"`
}

// Reconciler repairs what webhooks missed: completed payments without a
// vote, and pending payments the provider has since settled.
type Reconciler struct {
	payments   PaymentStore
	committer  *Committer
	settlement *Settlement
	batchSize  int
	pendingAge time.Duration
	now        func() time.Time
	log        *slog.Logger
}

func NewReconciler(payments PaymentStore, committer *Committer, settlement *Settlement, batchSize int, pendingAge time.Duration) *Reconciler {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Reconciler{
		payments:   payments,
		committer:  committer,
		settlement: settlement,
		batchSize:  batchSize,
		pendingAge: pendingAge,
		now:        time.Now,
		log:        slog.Default().With("component", "reconciler"),
	}
}

// RunOnce performs one pass. Per-payment failures are counted and logged;
// only a failure to list work is returned.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileReport, error) {
	var rep ReconcileReport

	missing, err := r.payments.ListCompletedWithoutVote(ctx, r.batchSize)
	if err != nil {
		return rep, fmt.Errorf("list completed payments without vote: %w", err)
	}
	for _, p := range missing {
		_, err := r.committer.Commit(ctx, p.ID)
		switch {
		case err == nil:
			rep.VotesBackfilled++
		case errors.Is(err, ErrAlreadyCommitted):
		default:
			rep.Errors++
			r.log.Error("vote backfill failed", "payment_id", p.ID, "error", err)
		}
	}

	stale, err := r.payments.ListStalePending(ctx, r.now().Add(-r.pendingAge), r.batchSize)
	if err != nil {
		return rep, fmt.Errorf("list stale pending payments: %w", err)
	}
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		r.refresh(ctx, &stale[i], &rep)
	}

	if rep != (ReconcileReport{}) {
		r.log.Info("reconcile pass finished",
			"backfilled", rep.VotesBackfilled, "completed", rep.Completed,
			"failed", rep.Failed, "pending", rep.StillPending, "errors", rep.Errors)
	}
	return rep, nil
}

func (r *Reconciler) refresh(ctx context.Context, p *model.Payment, rep *ReconcileReport) {
	// Without a provider ref the voter never received a handle to pay with.
	if providerRef(p) == "" {
		if _, err := r.settlement.Failed(ctx, p.ID, "provider intent never created", map[string]any{"source": "reconcile"}); err != nil {
			rep.Errors++
			r.log.Error("fail orphaned payment", "payment_id", p.ID, "error", err)
			return
		}
		rep.Failed++
		return
	}

	updated, _, err := r.settlement.Refresh(ctx, p, "reconcile")
	if err != nil {
		rep.Errors++
		r.log.Warn("provider status check failed", "payment_id", p.ID, "error", err)
		return
	}
	switch updated.Status {
	case model.PaymentCompleted:
		rep.Completed++
	case model.PaymentFailed:
		rep.Failed++
	default:
		rep.StillPending++
	}
}
