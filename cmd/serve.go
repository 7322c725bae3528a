package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/votepay/internal/auth"
	"github.com/Shivanand-hulikatti/votepay/internal/config"
	"github.com/Shivanand-hulikatti/votepay/internal/database"
	"github.com/Shivanand-hulikatti/votepay/internal/handler"
	"github.com/Shivanand-hulikatti/votepay/internal/lock"
	"github.com/Shivanand-hulikatti/votepay/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the background reconciler",
	Long: `Start the HTTP API.

When reconcile.enabled is set the process also runs the reconciler on
reconcile.interval. With redis.addr configured only the instance holding
the redis lock reconciles; without it every instance does.

Examples:
  votepay serve --config votepay.yaml
  VOTEPAY_SERVER_PORT=9000 votepay serve --migrate`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply the schema before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if serveMigrate {
		if err := database.Migrate(ctx, a.pool, a.cfg.Payments.DefaultCommissionRate); err != nil {
			return err
		}
		slog.Info("schema applied")
	}

	tokens, err := auth.NewVerifier(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	h := handler.New(handler.Deps{
		Tokens:              tokens,
		Payments:            a.ledger,
		Verifications:       a.settlement,
		Eligibility:         a.guard,
		Votes:               a.committer,
		Events:              a.events,
		Withdrawals:         a.withdrawals,
		Settings:            a.settings,
		CardIngestor:        service.NewCardWebhookIngestor(a.card, a.payments, a.ledger, a.settlement),
		MobileMoneyIngestor: service.NewMobileMoneyWebhookIngestor(a.mobileMoney, a.payments, a.settlement, a.withdrawals),
		AllowedOrigin:       a.cfg.Frontend.BaseURL,
	})

	if a.cfg.Reconcile.Enabled {
		var locker *lock.Locker
		if a.cfg.Redis.Addr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     a.cfg.Redis.Addr,
				Password: a.cfg.Redis.Password,
				DB:       a.cfg.Redis.DB,
			})
			defer rdb.Close()
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			locker = lock.New(rdb, "votepay:lock:")
		} else {
			slog.Warn("redis not configured, reconciler runs without a lock")
		}
		go reconcileLoop(ctx, a.reconciler, locker, a.cfg.Reconcile)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      h.Routes(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// reconcileLoop runs a pass every interval. With a locker it first takes,
// or keeps extending, the shared lease and skips the tick when another
// instance holds it.
func reconcileLoop(ctx context.Context, r *service.Reconciler, locker *lock.Locker, cfg config.ReconcileConfig) {
	log := slog.Default().With("component", "reconcile-loop")
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var lease *lock.Lease
	defer func() {
		if lease != nil {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := lease.Release(releaseCtx); err != nil && !errors.Is(err, lock.ErrNotHeld) {
				log.Warn("release reconciler lock", "error", err)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if locker != nil {
			if lease != nil {
				if err := lease.Refresh(ctx, cfg.LockTTL); err != nil {
					log.Warn("lost reconciler lock", "error", err)
					lease = nil
				}
			}
			if lease == nil {
				l, err := locker.TryAcquire(ctx, "reconciler", cfg.LockTTL)
				if err != nil {
					log.Error("acquire reconciler lock", "error", err)
					continue
				}
				if l == nil {
					log.Debug("reconciler lock held elsewhere")
					continue
				}
				lease = l
				log.Info("acquired reconciler lock")
			}
		}

		passCtx, cancel := context.WithTimeout(ctx, cfg.Interval)
		if _, err := r.RunOnce(passCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("reconcile pass failed", "error", err)
		}
		cancel()
	}
}
