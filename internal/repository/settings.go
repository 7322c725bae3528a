package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingsRepository reads and writes the platform_settings singleton.
type SettingsRepository struct {
	db *pgxpool.Pool
}

// NewSettingsRepository constructs a SettingsRepository.
func NewSettingsRepository(db *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the current settings.
func (r *SettingsRepository) Get(ctx context.Context) (model.PlatformSettings, error) {
	var s model.PlatformSettings
	err := r.db.QueryRow(ctx,
		`SELECT commission_rate, card_enabled, mobile_money_enabled, updated_at
		 FROM platform_settings WHERE id = 1`,
	).Scan(&s.CommissionRate, &s.CardEnabled, &s.MobileMoneyEnabled, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s, ErrNotFound
		}
		return s, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

// Save overwrites the settings row.
func (r *SettingsRepository) Save(ctx context.Context, s model.PlatformSettings) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO platform_settings (id, commission_rate, card_enabled, mobile_money_enabled, updated_at)
		 VALUES (1, $1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET commission_rate = EXCLUDED.commission_rate,
		     card_enabled = EXCLUDED.card_enabled,
		     mobile_money_enabled = EXCLUDED.mobile_money_enabled,
		     updated_at = EXCLUDED.updated_at`,
		s.CommissionRate, s.CardEnabled, s.MobileMoneyEnabled, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
