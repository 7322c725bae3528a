package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/votepay/internal/events"
	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/Shivanand-hulikatti/votepay/internal/repository"
	"github.com/google/uuid"
)

// Committer turns completed payments into votes, exactly once per payment.
// It is the only component that creates votes.
type Committer struct {
	payments  PaymentStore
	votes     VoteStore
	publisher Publisher
	now       func() time.Time
	log       *slog.Logger
}

func NewCommitter(payments PaymentStore, votes VoteStore, publisher Publisher) *Committer {
	return &Committer{
		payments:  payments,
		votes:     votes,
		publisher: publisher,
		now:       time.Now,
		log:       slog.Default().With("component", "committer"),
	}
}

// Commit creates the vote funded by paymentID. When the payment already
// funded a vote, that vote is returned with ErrAlreadyCommitted and no
// counter moves. The store's unique constraint decides concurrent races.
func (c *Committer) Commit(ctx context.Context, paymentID string) (*model.Vote, error) {
	p, err := c.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return c.commit(ctx, p)
}

// CommitForVoter is Commit for a voter-initiated request: the payment must
// belong to voterID.
func (c *Committer) CommitForVoter(ctx context.Context, paymentID, voterID string) (*model.Vote, error) {
	if paymentID == "" {
		return nil, validationf("payment_id is required")
	}
	p, err := c.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.VoterID != voterID {
		return nil, precondition(ReasonNotOwner, "payment belongs to another voter")
	}
	return c.commit(ctx, p)
}

func (c *Committer) commit(ctx context.Context, p *model.Payment) (*model.Vote, error) {
	if p.Status != model.PaymentCompleted {
		// A disputed or refunded payment may still have funded a vote earlier.
		if existing, err := c.votes.GetByPaymentID(ctx, p.ID); err == nil {
			return existing, ErrAlreadyCommitted
		}
		return nil, precondition(ReasonPaymentNotCompleted, "payment is %s", p.Status)
	}

	v, err := c.votes.Commit(ctx, &model.Vote{
		ID:           uuid.NewString(),
		VoterID:      p.VoterID,
		ContestantID: p.ContestantID,
		EventID:      p.EventID,
		PaymentID:    p.ID,
		Amount:       p.Amount,
		CreatedAt:    c.now(),
	})
	switch {
	case err == nil:
		c.log.Info("vote committed", "payment_id", p.ID, "vote_id", v.ID, "contestant_id", v.ContestantID)
		if c.publisher != nil {
			if perr := c.publisher.Publish(ctx, events.VoteCommitted, p.ID, v); perr != nil {
				c.log.Warn("publish failed", "topic", events.VoteCommitted, "error", perr)
			}
		}
		return v, nil
	case errors.Is(err, repository.ErrAlreadyCommitted):
		c.log.Info("vote already committed", "payment_id", p.ID, "vote_id", v.ID)
		return v, ErrAlreadyCommitted
	case errors.Is(err, repository.ErrPaymentNotCompleted):
		return nil, precondition(ReasonPaymentNotCompleted, "payment changed status during commit")
	default:
		return nil, fmt.Errorf("commit vote for payment %s: %w", p.ID, err)
	}
}
