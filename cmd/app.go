package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Shivanand-hulikatti/votepay/internal/config"
	"github.com/Shivanand-hulikatti/votepay/internal/database"
	"github.com/Shivanand-hulikatti/votepay/internal/events"
	"github.com/Shivanand-hulikatti/votepay/internal/provider"
	"github.com/Shivanand-hulikatti/votepay/internal/repository"
	"github.com/Shivanand-hulikatti/votepay/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
)

type publisher interface {
	service.Publisher
	Close() error
}

// app is the wired service graph shared by every subcommand.
type app struct {
	cfg       *config.Config
	pool      *pgxpool.Pool
	publisher publisher

	card        *provider.Card
	mobileMoney *provider.MobileMoney
	payments    *repository.PaymentRepository

	events      *service.EventService
	settings    *service.SettingsService
	guard       *service.Guard
	ledger      *service.Ledger
	committer   *service.Committer
	settlement  *service.Settlement
	withdrawals *service.WithdrawalService
	reconciler  *service.Reconciler
}

func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	slog.Info("connected to postgres")

	var pub publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("kafka: %w", err)
		}
		pub = kp
		slog.Info("publishing domain events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	eventRepo := repository.NewEventRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	voteRepo := repository.NewVoteRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)
	withdrawalRepo := repository.NewWithdrawalRepository(pool)

	a := &app{
		cfg:         cfg,
		pool:        pool,
		publisher:   pub,
		payments:    paymentRepo,
		card:        provider.NewCard(cfg.Card.SecretKey, cfg.Card.WebhookSecret, cfg.Card.PaymentMethodTypes),
		mobileMoney: provider.NewMobileMoney(cfg.MobileMoney.SecretKey, cfg.MobileMoney.BaseURL, cfg.MobileMoney.SettlementCurrency, cfg.Frontend.CallbackURL()),
	}

	// Only processors with credentials take payments; the others report
	// ProviderDisabled at intent creation.
	var adapters []provider.Adapter
	if cfg.Card.SecretKey != "" {
		adapters = append(adapters, a.card)
	} else {
		slog.Warn("card processor not configured")
	}
	if cfg.MobileMoney.SecretKey != "" {
		adapters = append(adapters, a.mobileMoney)
	} else {
		slog.Warn("mobile money processor not configured")
	}

	timeout := cfg.Payments.ProviderTimeout
	a.events = service.NewEventService(eventRepo)
	a.settings = service.NewSettingsService(settingsRepo)
	a.guard = service.NewGuard(eventRepo)
	a.ledger = service.NewLedger(paymentRepo, settingsRepo, a.guard, pub, timeout, adapters...)
	a.committer = service.NewCommitter(paymentRepo, voteRepo, pub)
	a.settlement = service.NewSettlement(a.ledger, a.committer, voteRepo)
	a.withdrawals = service.NewWithdrawalService(withdrawalRepo, a.mobileMoney, pub, timeout)
	a.reconciler = service.NewReconciler(paymentRepo, a.committer, a.settlement, cfg.Reconcile.BatchSize, cfg.Reconcile.PendingAge)
	return a, nil
}

func (a *app) Close() error {
	err := a.publisher.Close()
	a.pool.Close()
	return err
}
