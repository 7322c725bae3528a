package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAlreadyCommitted is returned when a vote already exists for the payment.
// Callers treat it as success: the existing vote is returned alongside it.
var ErrAlreadyCommitted = errors.New("vote already committed for payment")

// ErrPaymentNotCompleted is returned when committing a vote for a payment
// that is not in the completed state at commit time.
var ErrPaymentNotCompleted = errors.New("payment is not completed")

// VoteRepository handles persistence for votes and the counters they drive.
type VoteRepository struct {
	db *pgxpool.Pool
}

// NewVoteRepository constructs a VoteRepository.
func NewVoteRepository(db *pgxpool.Pool) *VoteRepository {
	return &VoteRepository{db: db}
}

// Commit inserts the vote and bumps the contestant and event counters in one
// transaction.
//
// Exactly-once is enforced by the votes_payment_id_key unique constraint, not
// by a read-before-write check: two concurrent commits for the same payment
// both reach the INSERT, Postgres makes the second wait for the first, and the
// loser gets a unique violation. That violation is translated into
// ErrAlreadyCommitted and the counters are never touched a second time because
// the losing transaction is rolled back.
func (r *VoteRepository) Commit(ctx context.Context, v *model.Vote) (*model.Vote, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op, so this covers every early return.
	defer func() { _ = tx.Rollback(ctx) }()

	// ── Step 1: hold the payment row so it cannot leave `completed` mid-commit.
	var status model.PaymentStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM payments WHERE id = $1 FOR SHARE`, v.PaymentID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock payment row: %w", err)
	}
	if status != model.PaymentCompleted {
		return nil, ErrPaymentNotCompleted
	}

	// ── Step 2: insert; the unique constraint decides who wins.
	_, err = tx.Exec(ctx,
		`INSERT INTO votes (id, voter_id, contestant_id, event_id, payment_id, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.ID, v.VoterID, v.ContestantID, v.EventID, v.PaymentID, v.Amount, v.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			_ = tx.Rollback(ctx)
			existing, getErr := r.GetByPaymentID(ctx, v.PaymentID)
			if getErr != nil {
				return nil, fmt.Errorf("load committed vote: %w", getErr)
			}
			return existing, ErrAlreadyCommitted
		}
		return nil, fmt.Errorf("insert vote: %w", err)
	}

	// ── Step 3: counters move only here, inside the same transaction.
	tag, err := tx.Exec(ctx,
		`UPDATE contestants SET vote_count = vote_count + 1 WHERE id = $1`, v.ContestantID,
	)
	if err != nil {
		return nil, fmt.Errorf("increment contestant vote_count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	tag, err = tx.Exec(ctx,
		`UPDATE events
		 SET total_votes = total_votes + 1, total_revenue = total_revenue + $2, updated_at = NOW()
		 WHERE id = $1`,
		v.EventID, v.Amount,
	)
	if err != nil {
		return nil, fmt.Errorf("increment event totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	if err = tx.Commit(ctx); err != nil {
		if isUniqueViolation(err, "") {
			existing, getErr := r.GetByPaymentID(ctx, v.PaymentID)
			if getErr != nil {
				return nil, fmt.Errorf("load committed vote: %w", getErr)
			}
			return existing, ErrAlreadyCommitted
		}
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return v, nil
}

// GetByPaymentID returns the vote funded by a payment or ErrNotFound.
func (r *VoteRepository) GetByPaymentID(ctx context.Context, paymentID string) (*model.Vote, error) {
	var v model.Vote
	err := r.db.QueryRow(ctx,
		`SELECT id, voter_id, contestant_id, event_id, payment_id, amount, created_at
		 FROM votes WHERE payment_id = $1`, paymentID,
	).Scan(&v.ID, &v.VoterID, &v.ContestantID, &v.EventID, &v.PaymentID, &v.Amount, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get vote: %w", err)
	}
	return &v, nil
}
