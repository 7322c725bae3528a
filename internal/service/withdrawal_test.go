package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Shivanand-hulikatti/votepay/internal/events"
	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/Shivanand-hulikatti/votepay/internal/provider"
	"github.com/shopspring/decimal"
)

// earn completes n votes for the fixture organizer, 4.75 each.
func (f *fixture) earn(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		p := f.pay(t, model.MethodMobileMoney, "voter-1")
		if _, _, err := f.settlement.Succeeded(context.Background(), p.ID, nil); err != nil {
			t.Fatal(err)
		}
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestWithdrawalRequestWithinBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.earn(t, 2)

	w, err := f.withdrawals.Request(ctx, "org-1", model.WithdrawalRequest{Amount: dec("9.00"), RecipientCode: " RCP_1 "})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if w.Status != model.WithdrawalPending || w.Currency != "GHS" || w.RecipientCode != "RCP_1" {
		t.Errorf("withdrawal = %+v", w)
	}
	b, _ := f.withdrawals.Balance(ctx, "org-1")
	if !b.Earnings.Equal(dec("9.50")) || !b.Available.Equal(dec("0.50")) {
		t.Errorf("balance = %+v", b)
	}
	if f.pub.count(events.WithdrawalUpdated) != 1 {
		t.Errorf("withdrawal.updated not published")
	}
}

func TestWithdrawalOverBalance(t *testing.T) {
	f := newFixture(t)
	f.earn(t, 1)

	_, err := f.withdrawals.Request(context.Background(), "org-1", model.WithdrawalRequest{Amount: dec("5.00"), RecipientCode: "RCP_1"})
	var pe *PreconditionError
	if !errors.As(err, &pe) || pe.Reason != ReasonInsufficientBalance {
		t.Fatalf("err = %v, want InsufficientBalance", err)
	}
	if avail, ok := pe.Details["available"].(decimal.Decimal); !ok || !avail.Equal(dec("4.75")) {
		t.Errorf("details = %v", pe.Details)
	}
	if len(f.db.withdrawals) != 0 {
		t.Errorf("withdrawal row created")
	}
}

func TestWithdrawalRequestValidation(t *testing.T) {
	f := newFixture(t)
	for name, req := range map[string]model.WithdrawalRequest{
		"zero":      {Amount: decimal.Zero, RecipientCode: "RCP_1"},
		"negative":  {Amount: dec("-1"), RecipientCode: "RCP_1"},
		"precision": {Amount: dec("1.005"), RecipientCode: "RCP_1"},
		"recipient": {Amount: dec("1"), RecipientCode: "  "},
	} {
		if _, err := f.withdrawals.Request(context.Background(), "org-1", req); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", name, err)
		}
	}
}

func TestWithdrawalLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("transfer succeeds", func(t *testing.T) {
		f := newFixture(t)
		f.earn(t, 2)
		w, _ := f.withdrawals.Request(ctx, "org-1", model.WithdrawalRequest{Amount: dec("5.00"), RecipientCode: "RCP_1"})

		got, err := f.withdrawals.Process(ctx, w.ID)
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		if got.Status != model.WithdrawalProcessing || got.TransferCode == nil || *got.TransferCode != "TRF_"+w.ID {
			t.Fatalf("withdrawal = %+v", got)
		}
		if tr := f.payouts.transfers; len(tr) != 1 || tr[0].Reference != w.ID || !tr[0].Amount.Equal(dec("5.00")) {
			t.Errorf("transfers = %+v", tr)
		}
		if _, err := f.withdrawals.Process(ctx, w.ID); ReasonOf(err) != ReasonInvalidTransition {
			t.Errorf("second Process: err = %v, want InvalidTransition", err)
		}

		for i := 0; i < 2; i++ {
			done, err := f.withdrawals.TransferSucceeded(ctx, w.ID, "TRF_"+w.ID)
			if err != nil || done.Status != model.WithdrawalCompleted {
				t.Fatalf("TransferSucceeded #%d: %+v, %v", i+1, done, err)
			}
		}
		b, _ := f.withdrawals.Balance(ctx, "org-1")
		if !b.Available.Equal(dec("4.50")) {
			t.Errorf("available = %s, want 4.50", b.Available)
		}
	})

	t.Run("transfer fails and releases balance", func(t *testing.T) {
		f := newFixture(t)
		f.earn(t, 2)
		w, _ := f.withdrawals.Request(ctx, "org-1", model.WithdrawalRequest{Amount: dec("9.50"), RecipientCode: "RCP_1"})
		if _, err := f.withdrawals.Process(ctx, w.ID); err != nil {
			t.Fatal(err)
		}
		failed, err := f.withdrawals.TransferFailed(ctx, w.ID, "account closed")
		if err != nil || failed.Status != model.WithdrawalFailed || failed.FailureReason != "account closed" {
			t.Fatalf("TransferFailed: %+v, %v", failed, err)
		}
		b, _ := f.withdrawals.Balance(ctx, "org-1")
		if !b.Available.Equal(dec("9.50")) {
			t.Errorf("available = %s, want 9.50", b.Available)
		}
		if _, err := f.withdrawals.TransferSucceeded(ctx, w.ID, ""); ReasonOf(err) != ReasonInvalidTransition {
			t.Errorf("late success: err = %v", err)
		}
	})

	t.Run("transfer rejected upfront", func(t *testing.T) {
		f := newFixture(t)
		f.earn(t, 1)
		f.payouts.err = errors.New("recipient invalid")
		w, _ := f.withdrawals.Request(ctx, "org-1", model.WithdrawalRequest{Amount: dec("1.00"), RecipientCode: "RCP_1"})
		if _, err := f.withdrawals.Process(ctx, w.ID); err == nil {
			t.Fatal("Process succeeded")
		}
		got, _ := memWithdrawals{f.db}.GetByID(ctx, w.ID)
		if got.Status != model.WithdrawalFailed {
			t.Errorf("status = %s, want failed", got.Status)
		}
	})
}

func TestMobileMoneyTransferWebhook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.earn(t, 1)
	w, _ := f.withdrawals.Request(ctx, "org-1", model.WithdrawalRequest{Amount: dec("4.00"), RecipientCode: "RCP_1"})
	_, _ = f.withdrawals.Process(ctx, w.ID)

	err := f.mobileMoneyIngestor(&provider.MobileMoneyEvent{
		Type: "transfer.success", Kind: provider.MobileMoneyTransferSuccess, Reference: w.ID, TransferCode: "TRF_" + w.ID,
	}).Ingest(ctx, nil, goodSignature)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := memWithdrawals{f.db}.GetByID(ctx, w.ID)
	if got.Status != model.WithdrawalCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
}
