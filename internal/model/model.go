// Package model defines the core domain types for the paid voting platform.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventStatus is the lifecycle state of a voting event.
type EventStatus string

const (
	EventDraft  EventStatus = "draft"
	EventActive EventStatus = "active"
	EventEnded  EventStatus = "ended"
)

// Event is a paid voting event created by an organizer.
// TotalVotes and TotalRevenue only ever grow, and only through vote commits.
type Event struct {
	ID           string          `json:"id"`
	OrganizerID  string          `json:"organizer_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Currency     string          `json:"currency"`
	VotePrice    decimal.Decimal `json:"vote_price"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	Status       EventStatus     `json:"status"`
	TotalVotes   int64           `json:"total_votes"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// VotingOpen reports whether now falls inside the event's voting window.
func (e *Event) VotingOpen(now time.Time) bool {
	return !now.Before(e.StartDate) && !now.After(e.EndDate)
}

// HasVotes reports whether any vote has been committed for the event.
func (e *Event) HasVotes() bool {
	return e.TotalVotes > 0
}

// Category groups contestants within an event.
type Category struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Contestant is a vote target. VoteCount grows by exactly one per committed vote.
type Contestant struct {
	ID         string    `json:"id"`
	CategoryID string    `json:"category_id"`
	EventID    string    `json:"event_id"`
	Name       string    `json:"name"`
	Bio        string    `json:"bio"`
	VoteCount  int64     `json:"vote_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventReadiness summarises what an event needs before it may go active.
type EventReadiness struct {
	Categories             int `json:"categories"`
	CategoriesWithEntrants int `json:"categories_with_contestants"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Currency    string          `json:"currency"`
	VotePrice   decimal.Decimal `json:"vote_price"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
}

// UpdateEventRequest changes pricing or schedule. Nil fields are left alone.
type UpdateEventRequest struct {
	VotePrice *decimal.Decimal `json:"vote_price,omitempty"`
	StartDate *time.Time       `json:"start_date,omitempty"`
	EndDate   *time.Time       `json:"end_date,omitempty"`
}

// CreateCategoryRequest is the payload for adding a category to an event.
type CreateCategoryRequest struct {
	Name string `json:"name"`
}

// CreateContestantRequest is the payload for adding a contestant to a category.
type CreateContestantRequest struct {
	Name string `json:"name"`
	Bio  string `json:"bio"`
}

// ErrorResponse is a standard JSON error envelope. Reason carries a
// machine-readable code for precondition failures.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
