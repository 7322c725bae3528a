package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/Shivanand-hulikatti/votepay/internal/repository"
	"github.com/shopspring/decimal"
)

// Eligibility is what a passing check resolved.
type Eligibility struct {
	Event      *model.Event
	Category   *model.Category
	Contestant *model.Contestant
}

// Guard checks that a contestant can receive a paid vote of a given amount
// right now. It never writes.
type Guard struct {
	events EventStore
}

func NewGuard(events EventStore) *Guard {
	return &Guard{events: events}
}

// Check runs the preconditions in a fixed order and stops at the first
// violation: the contestant, its category and event resolve; the event is
// active; now is inside [start, end]; amount equals the vote price exactly.
func (g *Guard) Check(ctx context.Context, contestantID string, amount decimal.Decimal, now time.Time) (*Eligibility, error) {
	if contestantID == "" {
		return nil, validationf("contestant_id is required")
	}
	if !amount.IsPositive() {
		return nil, validationf("amount must be positive")
	}

	contestant, err := g.events.GetContestant(ctx, contestantID)
	if err != nil {
		return nil, resolveErr("contestant", err)
	}
	category, err := g.events.GetCategory(ctx, contestant.CategoryID)
	if err != nil {
		return nil, resolveErr("category", err)
	}
	event, err := g.events.GetByID(ctx, category.EventID)
	if err != nil {
		return nil, resolveErr("event", err)
	}

	switch {
	case event.Status != model.EventActive:
		return nil, precondition(ReasonEventNotActive, "event is %s", event.Status)
	case now.Before(event.StartDate):
		return nil, precondition(ReasonVotingNotStarted, "voting opens at %s", event.StartDate.UTC().Format(time.RFC3339))
	case now.After(event.EndDate):
		return nil, precondition(ReasonVotingEnded, "voting closed at %s", event.EndDate.UTC().Format(time.RFC3339))
	case !amount.Equal(event.VotePrice):
		return nil, precondition(ReasonAmountMismatch, "amount %s does not match vote price %s", amount, event.VotePrice)
	}
	return &Eligibility{Event: event, Category: category, Contestant: contestant}, nil
}

func resolveErr(what string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return precondition(ReasonNotFound, "%s not found", what)
	}
	return fmt.Errorf("resolve %s: %w", what, err)
}
