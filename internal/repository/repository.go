// Package repository implements all database queries for the voting platform.
// It uses pgx directly (no ORM) so every constraint and lock is visible in SQL.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrEventHasVotes is returned when a change would alter an event that already has votes.
var ErrEventHasVotes = errors.New("event already has votes")

// ErrContestantHasPayments is returned when deleting a contestant that any
// payment, in whatever state, points at.
var ErrContestantHasPayments = errors.New("contestant has payments")

// ErrStatusConflict is returned when a conditional status update matched no row
// because the current status is not one of the expected source states.
var ErrStatusConflict = errors.New("status changed concurrently")

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

// EventRepository handles persistence for events, categories and contestants.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, organizer_id, name, description, currency, vote_price, start_date, end_date,
	status, total_votes, total_revenue, created_at, updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.OrganizerID, &e.Name, &e.Description, &e.Currency, &e.VotePrice,
		&e.StartDate, &e.EndDate, &e.Status, &e.TotalVotes, &e.TotalRevenue, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, e *model.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, organizer_id, name, description, currency, vote_price, start_date, end_date,
		                     status, total_votes, total_revenue, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, 0, $10, $10)`,
		e.ID, e.OrganizerID, e.Name, e.Description, e.Currency, e.VotePrice, e.StartDate, e.EndDate,
		e.Status, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// List returns all events ordered by creation time descending.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// GetByID returns a single event or ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// UpdateSchedule changes price and dates, but only while the event has no votes.
// The guard lives in the WHERE clause so a vote committed concurrently wins.
func (r *EventRepository) UpdateSchedule(ctx context.Context, id string, price decimal.Decimal, start, end time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE events SET vote_price = $2, start_date = $3, end_date = $4, updated_at = NOW()
		 WHERE id = $1 AND total_votes = 0`,
		id, price, start, end,
	)
	if err != nil {
		return fmt.Errorf("update event schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrEventHasVotes
	}
	return nil
}

// SetStatus moves an event to status `to` if it is currently in one of `from`.
func (r *EventRepository) SetStatus(ctx context.Context, id string, from []model.EventStatus, to model.EventStatus) error {
	src := make([]string, len(from))
	for i, s := range from {
		src[i] = string(s)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE events SET status = $2, updated_at = NOW() WHERE id = $1 AND status = ANY($3)`,
		id, to, src,
	)
	if err != nil {
		return fmt.Errorf("set event status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrStatusConflict
	}
	return nil
}

// Readiness counts categories and categories that have at least one contestant.
func (r *EventRepository) Readiness(ctx context.Context, eventID string) (model.EventReadiness, error) {
	var out model.EventReadiness
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE EXISTS (SELECT 1 FROM contestants ct WHERE ct.category_id = c.id))
		 FROM categories c WHERE c.event_id = $1`,
		eventID,
	).Scan(&out.Categories, &out.CategoriesWithEntrants)
	if err != nil {
		return out, fmt.Errorf("event readiness: %w", err)
	}
	return out, nil
}

// CreateCategory inserts a category under an event that has no votes yet.
func (r *EventRepository) CreateCategory(ctx context.Context, c *model.Category) error {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO categories (id, event_id, name, created_at)
		 SELECT $1, e.id, $3, $4 FROM events e WHERE e.id = $2 AND e.total_votes = 0`,
		c.ID, c.EventID, c.Name, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, c.EventID); err != nil {
			return err
		}
		return ErrEventHasVotes
	}
	return nil
}

// GetCategory returns a category or ErrNotFound.
func (r *EventRepository) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	var c model.Category
	err := r.db.QueryRow(ctx,
		`SELECT id, event_id, name, created_at FROM categories WHERE id = $1`, id,
	).Scan(&c.ID, &c.EventID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

// CreateContestant inserts a contestant under a category whose event has no votes.
func (r *EventRepository) CreateContestant(ctx context.Context, c *model.Contestant) error {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO contestants (id, category_id, event_id, name, bio, vote_count, created_at)
		 SELECT $1, cat.id, cat.event_id, $3, $4, 0, $5
		 FROM categories cat JOIN events e ON e.id = cat.event_id
		 WHERE cat.id = $2 AND e.total_votes = 0`,
		c.ID, c.CategoryID, c.Name, c.Bio, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert contestant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetCategory(ctx, c.CategoryID); err != nil {
			return err
		}
		return ErrEventHasVotes
	}
	return nil
}

// GetContestant returns a contestant or ErrNotFound.
func (r *EventRepository) GetContestant(ctx context.Context, id string) (*model.Contestant, error) {
	var c model.Contestant
	err := r.db.QueryRow(ctx,
		`SELECT id, category_id, event_id, name, bio, vote_count, created_at
		 FROM contestants WHERE id = $1`, id,
	).Scan(&c.ID, &c.CategoryID, &c.EventID, &c.Name, &c.Bio, &c.VoteCount, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get contestant: %w", err)
	}
	return &c, nil
}

// DeleteContestant removes a contestant that has never received a vote and
// whose event has no votes at all.
func (r *EventRepository) DeleteContestant(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM contestants ct USING events e
		 WHERE ct.id = $1 AND e.id = ct.event_id AND ct.vote_count = 0 AND e.total_votes = 0
		   AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.contestant_id = ct.id)`,
		id,
	)
	if err != nil {
		// A payment inserted after the NOT EXISTS check still trips the FK.
		if isForeignKeyViolation(err) {
			return ErrContestantHasPayments
		}
		return fmt.Errorf("delete contestant: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	c, err := r.GetContestant(ctx, id)
	if err != nil {
		return err
	}
	var paid bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE contestant_id = $1)`, c.ID,
	).Scan(&paid); err != nil {
		return fmt.Errorf("check contestant payments: %w", err)
	}
	if paid {
		return ErrContestantHasPayments
	}
	return ErrEventHasVotes
}
