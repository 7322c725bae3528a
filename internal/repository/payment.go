package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicatePayment is returned when a payment id is already taken.
var ErrDuplicatePayment = errors.New("payment id already exists")

// ErrProviderRefConflict is returned when a payment already carries a
// different provider reference than the one being attached.
var ErrProviderRefConflict = errors.New("payment already has a different provider reference")

// PaymentRepository handles persistence for payments.
type PaymentRepository struct {
	db *pgxpool.Pool
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, voter_id, event_id, contestant_id, amount, currency, commission_rate,
	platform_fee, organizer_earnings, payment_method, payment_provider_id, status, failure_reason,
	metadata, created_at, updated_at, completed_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(&p.ID, &p.VoterID, &p.EventID, &p.ContestantID, &p.Amount, &p.Currency,
		&p.CommissionRate, &p.PlatformFee, &p.OrganizerEarnings, &p.Method, &p.ProviderRef,
		&p.Status, &p.FailureReason, &p.Metadata, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a pending payment with its frozen commission split.
func (r *PaymentRepository) Create(ctx context.Context, p *model.Payment) error {
	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO payments (id, voter_id, event_id, contestant_id, amount, currency, commission_rate,
		                       platform_fee, organizer_earnings, payment_method, status, metadata,
		                       created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`,
		p.ID, p.VoterID, p.EventID, p.ContestantID, p.Amount, p.Currency, p.CommissionRate,
		p.PlatformFee, p.OrganizerEarnings, p.Method, p.Status, metadata, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "payments_pkey") {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByID returns a payment or ErrNotFound.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// GetByProviderRef resolves a payment from the provider-assigned reference.
func (r *PaymentRepository) GetByProviderRef(ctx context.Context, method model.PaymentMethod, ref string) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE payment_method = $1 AND payment_provider_id = $2`,
		method, ref,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get payment by provider ref: %w", err)
	}
	return p, nil
}

// AttachProviderRef records the provider reference once. Attaching the same
// reference again is a no-op; attaching a different one is ErrProviderRefConflict.
func (r *PaymentRepository) AttachProviderRef(ctx context.Context, id, ref string, payload map[string]any) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE payments
		 SET payment_provider_id = $2,
		     metadata = metadata || jsonb_build_object('intent', $3::jsonb),
		     updated_at = NOW()
		 WHERE id = $1 AND payment_provider_id IS NULL`,
		id, ref, payload,
	)
	if err != nil {
		return fmt.Errorf("attach provider ref: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.ProviderRef != nil && *current.ProviderRef == ref {
		return nil
	}
	return ErrProviderRefConflict
}

// Transition moves a payment to status `to` only if its current status is one
// of `from`; the compare and the write are a single statement. When no row
// matches, the current payment is returned together with ErrStatusConflict.
func (r *PaymentRepository) Transition(ctx context.Context, id string, from []model.PaymentStatus, to model.PaymentStatus, reason string, payload map[string]any) (*model.Payment, error) {
	src := make([]string, len(from))
	for i, s := range from {
		src[i] = string(s)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	p, err := scanPayment(r.db.QueryRow(ctx,
		`UPDATE payments
		 SET status = $2,
		     failure_reason = CASE WHEN $4 <> '' THEN $4 ELSE failure_reason END,
		     metadata = metadata || jsonb_build_object($2::text, $5::jsonb),
		     completed_at = CASE WHEN $2 = 'completed' THEN NOW() ELSE completed_at END,
		     updated_at = NOW()
		 WHERE id = $1 AND status = ANY($3)
		 RETURNING `+paymentColumns,
		id, to, src, reason, payload,
	))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transition payment: %w", err)
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return current, ErrStatusConflict
}

// ListCompletedWithoutVote finds completed payments that never produced a vote.
func (r *PaymentRepository) ListCompletedWithoutVote(ctx context.Context, limit int) ([]model.Payment, error) {
	return r.list(ctx,
		`SELECT `+paymentColumns+` FROM payments p
		 WHERE p.status = 'completed'
		   AND NOT EXISTS (SELECT 1 FROM votes v WHERE v.payment_id = p.id)
		 ORDER BY p.completed_at ASC NULLS FIRST
		 LIMIT $1`,
		limit,
	)
}

// ListStalePending finds payments still pending that were created before cutoff.
func (r *PaymentRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]model.Payment, error) {
	return r.list(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE status = 'pending' AND created_at < $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		cutoff, limit,
	)
}

func (r *PaymentRepository) list(ctx context.Context, query string, args ...any) ([]model.Payment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}
