package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/votepay/internal/events"
	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/Shivanand-hulikatti/votepay/internal/provider"
	"github.com/Shivanand-hulikatti/votepay/internal/repository"
	"github.com/google/uuid"
)

// WithdrawalService handles organizer payouts.
type WithdrawalService struct {
	store     WithdrawalStore
	payouts   provider.Payouts
	publisher Publisher
	timeout   time.Duration
	now       func() time.Time
	log       *slog.Logger
}

func NewWithdrawalService(store WithdrawalStore, payouts provider.Payouts, publisher Publisher, timeout time.Duration) *WithdrawalService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WithdrawalService{
		store:     store,
		payouts:   payouts,
		publisher: publisher,
		timeout:   timeout,
		now:       time.Now,
		log:       slog.Default().With("component", "withdrawals"),
	}
}

// Balance returns the organizer's withdrawable position.
func (s *WithdrawalService) Balance(ctx context.Context, organizerID string) (model.Balance, error) {
	return s.store.Balance(ctx, organizerID)
}

// List returns the organizer's withdrawals, newest first.
func (s *WithdrawalService) List(ctx context.Context, organizerID string) ([]model.Withdrawal, error) {
	return s.store.ListByOrganizer(ctx, organizerID)
}

// Request reserves amount from the organizer's balance as a pending
// withdrawal. Over-balance requests are rejected with the available amount.
func (s *WithdrawalService) Request(ctx context.Context, organizerID string, req model.WithdrawalRequest) (*model.Withdrawal, error) {
	req.RecipientCode = strings.TrimSpace(req.RecipientCode)
	if !req.Amount.IsPositive() {
		return nil, validationf("amount must be positive")
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, validationf("amount has more than two decimal places")
	}
	if req.RecipientCode == "" {
		return nil, validationf("recipient_code is required")
	}

	now := s.now()
	w := &model.Withdrawal{
		ID:            uuid.NewString(),
		OrganizerID:   organizerID,
		Amount:        req.Amount,
		Currency:      s.payouts.SettlementCurrency(),
		RecipientCode: req.RecipientCode,
		Status:        model.WithdrawalPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b, err := s.store.CreateWithinBalance(ctx, w)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, &PreconditionError{
				Reason:  ReasonInsufficientBalance,
				Detail:  fmt.Sprintf("requested %s, available %s", req.Amount, b.Available),
				Details: map[string]any{"available": b.Available},
			}
		}
		return nil, fmt.Errorf("create withdrawal: %w", err)
	}
	s.log.Info("withdrawal requested", "withdrawal_id", w.ID, "organizer_id", organizerID, "amount", w.Amount)
	s.publish(ctx, w)
	return w, nil
}

// Process claims a pending withdrawal and sends the transfer. The claim
// happens first so two admins cannot pay the same withdrawal twice.
func (s *WithdrawalService) Process(ctx context.Context, id string) (*model.Withdrawal, error) {
	w, err := s.transition(ctx, id, model.WithdrawalProcessing, "", "")
	if err != nil {
		return nil, err
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	tr, err := s.payouts.Transfer(tctx, provider.TransferRequest{
		Reference:     w.ID,
		Amount:        w.Amount,
		RecipientCode: w.RecipientCode,
		Reason:        "votepay organizer payout",
	})
	timedOut := tctx.Err() != nil
	cancel()
	if err != nil {
		if timedOut {
			s.log.Warn("transfer timed out, withdrawal left processing", "withdrawal_id", w.ID, "error", err)
			return w, err
		}
		if _, ferr := s.transition(ctx, w.ID, model.WithdrawalFailed, "transfer error: "+err.Error(), ""); ferr != nil {
			s.log.Error("could not fail withdrawal after transfer error", "withdrawal_id", w.ID, "error", ferr)
		}
		return nil, err
	}

	// A webhook may already have finished the withdrawal; only record the code.
	updated, err := s.store.Transition(ctx, w.ID, []model.WithdrawalStatus{model.WithdrawalProcessing},
		model.WithdrawalProcessing, "", tr.TransferCode)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, repository.ErrStatusConflict):
		return updated, nil
	default:
		return nil, fmt.Errorf("record transfer code: %w", err)
	}
}

// TransferSucceeded completes the withdrawal whose id was the payout reference.
func (s *WithdrawalService) TransferSucceeded(ctx context.Context, reference, transferCode string) (*model.Withdrawal, error) {
	return s.transition(ctx, reference, model.WithdrawalCompleted, "", transferCode)
}

// TransferFailed fails the withdrawal, which releases its reserved amount.
func (s *WithdrawalService) TransferFailed(ctx context.Context, reference, reason string) (*model.Withdrawal, error) {
	return s.transition(ctx, reference, model.WithdrawalFailed, reason, "")
}

var withdrawalSources = map[model.WithdrawalStatus][]model.WithdrawalStatus{
	model.WithdrawalProcessing: {model.WithdrawalPending},
	model.WithdrawalCompleted:  {model.WithdrawalProcessing},
	model.WithdrawalFailed:     {model.WithdrawalPending, model.WithdrawalProcessing},
}

func (s *WithdrawalService) transition(ctx context.Context, id string, to model.WithdrawalStatus, reason, transferCode string) (*model.Withdrawal, error) {
	w, err := s.store.Transition(ctx, id, withdrawalSources[to], to, reason, transferCode)
	switch {
	case err == nil:
		s.log.Info("withdrawal status changed", "withdrawal_id", id, "status", to)
		s.publish(ctx, w)
		return w, nil
	case errors.Is(err, repository.ErrStatusConflict):
		if w.Status == to && to != model.WithdrawalProcessing {
			return w, nil
		}
		return nil, precondition(ReasonInvalidTransition, "withdrawal is %s and cannot become %s", w.Status, to)
	case errors.Is(err, repository.ErrNotFound):
		return nil, err
	default:
		return nil, fmt.Errorf("transition withdrawal %s to %s: %w", id, to, err)
	}
}

func (s *WithdrawalService) publish(ctx context.Context, w *model.Withdrawal) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.WithdrawalUpdated, w.ID, w); err != nil {
		s.log.Warn("publish failed", "topic", events.WithdrawalUpdated, "error", err)
	}
}
