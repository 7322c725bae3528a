package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInsufficientBalance is returned when a withdrawal exceeds the available balance.
var ErrInsufficientBalance = errors.New("amount exceeds available balance")

// WithdrawalRepository handles persistence for organizer withdrawals.
type WithdrawalRepository struct {
	db *pgxpool.Pool
}

// NewWithdrawalRepository constructs a WithdrawalRepository.
func NewWithdrawalRepository(db *pgxpool.Pool) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

const withdrawalColumns = `id, organizer_id, amount, currency, recipient_code, status, failure_reason,
	transfer_code, created_at, updated_at`

func scanWithdrawal(row pgx.Row) (*model.Withdrawal, error) {
	var w model.Withdrawal
	err := row.Scan(&w.ID, &w.OrganizerID, &w.Amount, &w.Currency, &w.RecipientCode, &w.Status,
		&w.FailureReason, &w.TransferCode, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

const balanceQuery = `
SELECT
	COALESCE((SELECT SUM(p.organizer_earnings) FROM payments p JOIN events e ON e.id = p.event_id
	          WHERE e.organizer_id = $1 AND p.status = 'completed'), 0),
	COALESCE((SELECT SUM(w.amount) FROM withdrawals w
	          WHERE w.organizer_id = $1 AND w.status IN ('pending', 'processing', 'completed')), 0)`

// Balance computes an organizer's earnings, reserved and available amounts.
func (r *WithdrawalRepository) Balance(ctx context.Context, organizerID string) (model.Balance, error) {
	return balance(ctx, r.db, organizerID)
}

func balance(ctx context.Context, q interface {
	QueryRow(context.Context, string, ...any) pgx.Row
}, organizerID string) (model.Balance, error) {
	b := model.Balance{OrganizerID: organizerID}
	if err := q.QueryRow(ctx, balanceQuery, organizerID).Scan(&b.Earnings, &b.Reserved); err != nil {
		return b, fmt.Errorf("compute balance: %w", err)
	}
	b.Available = b.Earnings.Sub(b.Reserved)
	return b, nil
}

// CreateWithinBalance inserts w only if its amount fits the organizer's
// available balance. Requests for the same organizer are serialised with a
// transaction-scoped advisory lock so two requests cannot both spend the same
// balance. The balance seen at decision time is always returned.
func (r *WithdrawalRepository) CreateWithinBalance(ctx context.Context, w *model.Withdrawal) (model.Balance, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.Balance{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "withdrawal:"+w.OrganizerID); err != nil {
		return model.Balance{}, fmt.Errorf("lock organizer balance: %w", err)
	}

	b, err := balance(ctx, tx, w.OrganizerID)
	if err != nil {
		return b, err
	}
	if w.Amount.GreaterThan(b.Available) {
		return b, ErrInsufficientBalance
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO withdrawals (id, organizer_id, amount, currency, recipient_code, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		w.ID, w.OrganizerID, w.Amount, w.Currency, w.RecipientCode, w.Status, w.CreatedAt,
	)
	if err != nil {
		return b, fmt.Errorf("insert withdrawal: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return b, fmt.Errorf("commit transaction: %w", err)
	}
	b.Reserved = b.Reserved.Add(w.Amount)
	b.Available = b.Available.Sub(w.Amount)
	return b, nil
}

// GetByID returns a withdrawal or ErrNotFound.
func (r *WithdrawalRepository) GetByID(ctx context.Context, id string) (*model.Withdrawal, error) {
	w, err := scanWithdrawal(r.db.QueryRow(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	return w, nil
}

// ListByOrganizer returns an organizer's withdrawals, newest first.
func (r *WithdrawalRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]model.Withdrawal, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE organizer_id = $1 ORDER BY created_at DESC`,
		organizerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()

	var out []model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// Transition moves a withdrawal from one of `from` to `to`, recording the
// failure reason and provider transfer code when given.
func (r *WithdrawalRepository) Transition(ctx context.Context, id string, from []model.WithdrawalStatus, to model.WithdrawalStatus, reason, transferCode string) (*model.Withdrawal, error) {
	src := make([]string, len(from))
	for i, s := range from {
		src[i] = string(s)
	}
	w, err := scanWithdrawal(r.db.QueryRow(ctx,
		`UPDATE withdrawals
		 SET status = $2,
		     failure_reason = CASE WHEN $4 <> '' THEN $4 ELSE failure_reason END,
		     transfer_code = COALESCE(NULLIF($5, ''), transfer_code),
		     updated_at = NOW()
		 WHERE id = $1 AND status = ANY($3)
		 RETURNING `+withdrawalColumns,
		id, to, src, reason, transferCode,
	))
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transition withdrawal: %w", err)
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return current, ErrStatusConflict
}
