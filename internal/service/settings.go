package service

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/Shivanand-hulikatti/votepay/internal/money"
)

// SettingsService reads and updates platform settings. Changes only affect
// payments created afterwards; existing payments keep their frozen split.
type SettingsService struct {
	store SettingsStore
	now   func() time.Time
}

func NewSettingsService(store SettingsStore) *SettingsService {
	return &SettingsService{store: store, now: time.Now}
}

func (s *SettingsService) Get(ctx context.Context) (model.PlatformSettings, error) {
	return s.store.Get(ctx)
}

// Update applies the non-nil fields of req.
func (s *SettingsService) Update(ctx context.Context, req model.UpdateSettingsRequest) (model.PlatformSettings, error) {
	cur, err := s.store.Get(ctx)
	if err != nil {
		return cur, err
	}
	if req.CommissionRate != nil {
		if err := money.ValidateRate(*req.CommissionRate); err != nil {
			return cur, validationf("%v", err)
		}
		cur.CommissionRate = *req.CommissionRate
	}
	if req.CardEnabled != nil {
		cur.CardEnabled = *req.CardEnabled
	}
	if req.MobileMoneyEnabled != nil {
		cur.MobileMoneyEnabled = *req.MobileMoneyEnabled
	}
	cur.UpdatedAt = s.now()
	if err := s.store.Save(ctx, cur); err != nil {
		return cur, err
	}
	return cur, nil
}
