package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/votepay/internal/auth"
	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/Shivanand-hulikatti/votepay/internal/money"
	"github.com/Shivanand-hulikatti/votepay/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventService orchestrates event setup and lifecycle.
type EventService struct {
	events EventStore
	now    func() time.Time
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventStore) *EventService {
	return &EventService{events: events, now: time.Now}
}

// CreateEvent validates the request and stores a draft event.
func (s *EventService) CreateEvent(ctx context.Context, organizerID string, req model.CreateEventRequest) (*model.Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Name == "" {
		return nil, validationf("event name is required")
	}
	if len(req.Currency) != 3 {
		return nil, validationf("currency must be a 3-letter ISO code")
	}
	if err := validateSchedule(req.VotePrice, req.Currency, req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	now := s.now()
	e := &model.Event{
		ID:          uuid.NewString(),
		OrganizerID: organizerID,
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Currency:    req.Currency,
		VotePrice:   req.VotePrice,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Status:      model.EventDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.events.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// validateSchedule checks price and dates. The price must be chargeable
// exactly in the event currency's minor unit.
func validateSchedule(price decimal.Decimal, currency string, start, end time.Time) error {
	if !price.IsPositive() {
		return validationf("vote_price must be positive, got %s", price)
	}
	if exp := money.Exponent(currency); !price.Equal(price.Round(exp)) {
		return validationf("vote_price %s allows at most %d decimal places in %s", price, exp, currency)
	}
	if start.IsZero() || end.IsZero() {
		return validationf("start_date and end_date are required")
	}
	if !start.Before(end) {
		return validationf("start_date must be before end_date")
	}
	return nil
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx)
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, validationf("event id is required")
	}
	return s.events.GetByID(ctx, id)
}

// managed loads an event the actor may change: its organizer, or an admin.
func (s *EventService) managed(ctx context.Context, actor auth.Identity, eventID string) (*model.Event, error) {
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if actor.Role != auth.RoleAdmin && e.OrganizerID != actor.UserID {
		return nil, precondition(ReasonNotOwner, "event belongs to another organizer")
	}
	return e, nil
}

// UpdateEvent changes price or dates. Rejected once the event has votes.
func (s *EventService) UpdateEvent(ctx context.Context, actor auth.Identity, id string, req model.UpdateEventRequest) (*model.Event, error) {
	e, err := s.managed(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if e.HasVotes() {
		return nil, precondition(ReasonEventHasVotes, "pricing and schedule are frozen")
	}
	if req.VotePrice != nil {
		e.VotePrice = *req.VotePrice
	}
	if req.StartDate != nil {
		e.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		e.EndDate = *req.EndDate
	}
	if err := validateSchedule(e.VotePrice, e.Currency, e.StartDate, e.EndDate); err != nil {
		return nil, err
	}
	if err := s.events.UpdateSchedule(ctx, id, e.VotePrice, e.StartDate, e.EndDate); err != nil {
		return nil, frozen(err)
	}
	return s.events.GetByID(ctx, id)
}

// AddCategory adds a category to an event that has no votes.
func (s *EventService) AddCategory(ctx context.Context, actor auth.Identity, eventID string, req model.CreateCategoryRequest) (*model.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, validationf("category name is required")
	}
	if _, err := s.managed(ctx, actor, eventID); err != nil {
		return nil, err
	}
	c := &model.Category{ID: uuid.NewString(), EventID: eventID, Name: req.Name, CreatedAt: s.now()}
	if err := s.events.CreateCategory(ctx, c); err != nil {
		return nil, frozen(err)
	}
	return c, nil
}

// AddContestant adds a contestant to a category whose event has no votes.
func (s *EventService) AddContestant(ctx context.Context, actor auth.Identity, categoryID string, req model.CreateContestantRequest) (*model.Contestant, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, validationf("contestant name is required")
	}
	cat, err := s.events.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if _, err := s.managed(ctx, actor, cat.EventID); err != nil {
		return nil, err
	}
	c := &model.Contestant{
		ID:         uuid.NewString(),
		CategoryID: cat.ID,
		EventID:    cat.EventID,
		Name:       req.Name,
		Bio:        strings.TrimSpace(req.Bio),
		CreatedAt:  s.now(),
	}
	if err := s.events.CreateContestant(ctx, c); err != nil {
		return nil, frozen(err)
	}
	return c, nil
}

// DeleteContestant removes a contestant that no payment or vote refers to.
func (s *EventService) DeleteContestant(ctx context.Context, actor auth.Identity, id string) error {
	c, err := s.events.GetContestant(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.managed(ctx, actor, c.EventID); err != nil {
		return err
	}
	if c.VoteCount > 0 {
		return precondition(ReasonEventHasVotes, "contestant has votes")
	}
	return frozen(s.events.DeleteContestant(ctx, id))
}

// Activate opens a draft event for voting. It needs at least one category,
// at least one category with a contestant, and an end date in the future.
func (s *EventService) Activate(ctx context.Context, actor auth.Identity, id string) (*model.Event, error) {
	e, err := s.managed(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !e.EndDate.After(s.now()) {
		return nil, precondition(ReasonEventNotReady, "end_date is in the past")
	}
	r, err := s.events.Readiness(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Categories == 0 || r.CategoriesWithEntrants == 0 {
		return nil, precondition(ReasonEventNotReady, "event needs a category with at least one contestant")
	}
	if err := s.events.SetStatus(ctx, id, []model.EventStatus{model.EventDraft}, model.EventActive); err != nil {
		return nil, statusErr(err, model.EventActive)
	}
	return s.events.GetByID(ctx, id)
}

// End closes an event. Draft and active events can both be ended.
func (s *EventService) End(ctx context.Context, actor auth.Identity, id string) (*model.Event, error) {
	if _, err := s.managed(ctx, actor, id); err != nil {
		return nil, err
	}
	err := s.events.SetStatus(ctx, id, []model.EventStatus{model.EventDraft, model.EventActive}, model.EventEnded)
	if err != nil {
		return nil, statusErr(err, model.EventEnded)
	}
	return s.events.GetByID(ctx, id)
}

func frozen(err error) error {
	switch {
	case errors.Is(err, repository.ErrEventHasVotes):
		return precondition(ReasonEventHasVotes, "event already has votes")
	case errors.Is(err, repository.ErrContestantHasPayments):
		return precondition(ReasonContestantHasPayments, "contestant has payments")
	}
	return err
}

func statusErr(err error, to model.EventStatus) error {
	if errors.Is(err, repository.ErrStatusConflict) {
		return precondition(ReasonInvalidTransition, "event cannot become %s", to)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return fmt.Errorf("set event status: %w", err)
}
