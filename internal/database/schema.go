package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is idempotent so Migrate can run on every deploy.
// votes.payment_id UNIQUE is what makes vote commits exactly-once.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	id            TEXT PRIMARY KEY,
	organizer_id  TEXT NOT NULL,
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	currency      TEXT NOT NULL DEFAULT 'USD',
	vote_price    NUMERIC(12,2) NOT NULL CHECK (vote_price > 0),
	start_date    TIMESTAMPTZ NOT NULL,
	end_date      TIMESTAMPTZ NOT NULL,
	status        TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'active', 'ended')),
	total_votes   BIGINT NOT NULL DEFAULT 0 CHECK (total_votes >= 0),
	total_revenue NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (total_revenue >= 0),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (start_date < end_date)
);
CREATE INDEX IF NOT EXISTS idx_events_organizer ON events (organizer_id);

CREATE TABLE IF NOT EXISTS categories (
	id         TEXT PRIMARY KEY,
	event_id   TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_categories_event ON categories (event_id);

CREATE TABLE IF NOT EXISTS contestants (
	id          TEXT PRIMARY KEY,
	category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
	event_id    TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	bio         TEXT NOT NULL DEFAULT '',
	vote_count  BIGINT NOT NULL DEFAULT 0 CHECK (vote_count >= 0),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_contestants_category ON contestants (category_id);

CREATE TABLE IF NOT EXISTS platform_settings (
	id                   SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	commission_rate      NUMERIC(6,4) NOT NULL CHECK (commission_rate >= 0 AND commission_rate <= 1),
	card_enabled         BOOLEAN NOT NULL DEFAULT TRUE,
	mobile_money_enabled BOOLEAN NOT NULL DEFAULT TRUE,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS payments (
	id                  TEXT PRIMARY KEY,
	voter_id            TEXT NOT NULL,
	event_id            TEXT NOT NULL REFERENCES events(id),
	contestant_id       TEXT NOT NULL REFERENCES contestants(id),
	amount              NUMERIC(12,2) NOT NULL CHECK (amount > 0),
	currency            TEXT NOT NULL,
	commission_rate     NUMERIC(6,4) NOT NULL,
	platform_fee        NUMERIC(12,2) NOT NULL,
	organizer_earnings  NUMERIC(12,2) NOT NULL,
	payment_method      TEXT NOT NULL CHECK (payment_method IN ('card', 'mobile_money')),
	payment_provider_id TEXT,
	status              TEXT NOT NULL DEFAULT 'pending'
	                    CHECK (status IN ('pending', 'completed', 'failed', 'refunded', 'disputed')),
	failure_reason      TEXT NOT NULL DEFAULT '',
	metadata            JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at        TIMESTAMPTZ,
	CHECK (amount = platform_fee + organizer_earnings)
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_provider_ref
	ON payments (payment_method, payment_provider_id) WHERE payment_provider_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_payments_status_created ON payments (status, created_at);
CREATE INDEX IF NOT EXISTS idx_payments_event ON payments (event_id);

CREATE TABLE IF NOT EXISTS votes (
	id            TEXT PRIMARY KEY,
	voter_id      TEXT NOT NULL,
	contestant_id TEXT NOT NULL REFERENCES contestants(id),
	event_id      TEXT NOT NULL REFERENCES events(id),
	payment_id    TEXT NOT NULL REFERENCES payments(id),
	amount        NUMERIC(12,2) NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT votes_payment_id_key UNIQUE (payment_id),
	CONSTRAINT votes_voter_contestant_payment_key UNIQUE (voter_id, contestant_id, payment_id)
);
CREATE INDEX IF NOT EXISTS idx_votes_contestant ON votes (contestant_id);

CREATE TABLE IF NOT EXISTS withdrawals (
	id             TEXT PRIMARY KEY,
	organizer_id   TEXT NOT NULL,
	amount         NUMERIC(14,2) NOT NULL CHECK (amount > 0),
	currency       TEXT NOT NULL,
	recipient_code TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending'
	               CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
	failure_reason TEXT NOT NULL DEFAULT '',
	transfer_code  TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_withdrawals_organizer ON withdrawals (organizer_id, status);
`

// Migrate applies the schema and seeds the platform settings row.
func Migrate(ctx context.Context, pool *pgxpool.Pool, defaultRate string) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	_, err := pool.Exec(ctx,
		`INSERT INTO platform_settings (id, commission_rate) VALUES (1, $1)
		 ON CONFLICT (id) DO NOTHING`,
		defaultRate,
	)
	if err != nil {
		return fmt.Errorf("seed platform settings: %w", err)
	}
	return nil
}
