package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/Shivanand-hulikatti/votepay/internal/provider"
	"github.com/shopspring/decimal"
)

const goodSignature = "good"

type stubCardVerifier struct{ ev *provider.CardEvent }

func (s stubCardVerifier) VerifyWebhook(_ []byte, sig string) (*provider.CardEvent, error) {
	if sig != goodSignature {
		return nil, provider.ErrSignatureInvalid
	}
	ev := *s.ev
	return &ev, nil
}

type stubMobileMoneyVerifier struct{ ev *provider.MobileMoneyEvent }

func (s stubMobileMoneyVerifier) VerifyWebhook(_ []byte, sig string) (*provider.MobileMoneyEvent, error) {
	if sig != goodSignature {
		return nil, provider.ErrSignatureInvalid
	}
	ev := *s.ev
	return &ev, nil
}

func (stubMobileMoneyVerifier) SettlementCurrency() string { return "GHS" }

func (f *fixture) cardIngestor(ev *provider.CardEvent) *CardWebhookIngestor {
	return NewCardWebhookIngestor(stubCardVerifier{ev}, memPayments{f.db}, f.ledger, f.settlement)
}

func (f *fixture) mobileMoneyIngestor(ev *provider.MobileMoneyEvent) *MobileMoneyWebhookIngestor {
	return NewMobileMoneyWebhookIngestor(stubMobileMoneyVerifier{ev}, memPayments{f.db}, f.settlement, f.withdrawals)
}

func TestCardSucceededDeliveredTwice(t *testing.T) {
	f := newFixture(t)
	p := f.pay(t, model.MethodCard, "voter-1")
	in := f.cardIngestor(&provider.CardEvent{
		ID: "evt_1", Type: "payment_intent.succeeded", Kind: provider.CardPaymentSucceeded,
		PaymentIntentID: *p.ProviderRef,
	})

	for i := 0; i < 2; i++ {
		if err := in.Ingest(context.Background(), []byte("{}"), goodSignature); err != nil {
			t.Fatalf("delivery %d: %v", i+1, err)
		}
	}

	got := f.payment(t, p.ID)
	if got.Status != model.PaymentCompleted {
		t.Fatalf("status = %s", got.Status)
	}
	if !got.PlatformFee.Equal(decimal.RequireFromString("0.25")) || !got.OrganizerEarnings.Equal(decimal.RequireFromString("4.75")) {
		t.Errorf("split = %s/%s", got.PlatformFee, got.OrganizerEarnings)
	}
	votes, cv, ev, rev := f.counts()
	if votes != 1 || cv != 1 || ev != 1 || !rev.Equal(decimal.RequireFromString("5.00")) {
		t.Errorf("votes=%d contestant=%d event=%d revenue=%s", votes, cv, ev, rev)
	}
}

func TestCardInvalidSignatureMutatesNothing(t *testing.T) {
	f := newFixture(t)
	p := f.pay(t, model.MethodCard, "voter-1")
	in := f.cardIngestor(&provider.CardEvent{Kind: provider.CardPaymentSucceeded, PaymentIntentID: *p.ProviderRef})

	err := in.Ingest(context.Background(), []byte("{}"), "forged")
	if !errors.Is(err, provider.ErrSignatureInvalid) {
		t.Fatalf("err = %v, want ErrSignatureInvalid", err)
	}
	if got := f.payment(t, p.ID).Status; got != model.PaymentPending {
		t.Errorf("status = %s, want pending", got)
	}
}

func TestCardEventDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("failure after success is ignored", func(t *testing.T) {
		f := newFixture(t)
		p := f.pay(t, model.MethodCard, "voter-1")
		_ = f.cardIngestor(&provider.CardEvent{Kind: provider.CardPaymentSucceeded, PaymentIntentID: *p.ProviderRef}).
			Ingest(ctx, nil, goodSignature)
		err := f.cardIngestor(&provider.CardEvent{Kind: provider.CardPaymentFailed, PaymentIntentID: *p.ProviderRef, Reason: "late"}).
			Ingest(ctx, nil, goodSignature)
		if err != nil {
			t.Fatalf("ack: %v", err)
		}
		if got := f.payment(t, p.ID).Status; got != model.PaymentCompleted {
			t.Errorf("status = %s, want completed", got)
		}
	})

	t.Run("canceled fails pending payment", func(t *testing.T) {
		f := newFixture(t)
		p := f.pay(t, model.MethodCard, "voter-1")
		_ = f.cardIngestor(&provider.CardEvent{Kind: provider.CardPaymentCanceled, Type: "payment_intent.canceled", PaymentIntentID: *p.ProviderRef}).
			Ingest(ctx, nil, goodSignature)
		got := f.payment(t, p.ID)
		if got.Status != model.PaymentFailed || got.FailureReason != "payment_intent.canceled" {
			t.Errorf("status=%s reason=%q", got.Status, got.FailureReason)
		}
	})

	t.Run("dispute keeps the vote", func(t *testing.T) {
		f := newFixture(t)
		p := f.pay(t, model.MethodCard, "voter-1")
		_ = f.cardIngestor(&provider.CardEvent{Kind: provider.CardPaymentSucceeded, PaymentIntentID: *p.ProviderRef}).
			Ingest(ctx, nil, goodSignature)
		_ = f.cardIngestor(&provider.CardEvent{Kind: provider.CardDisputeCreated, PaymentIntentID: *p.ProviderRef, Reason: "fraudulent"}).
			Ingest(ctx, nil, goodSignature)
		if got := f.payment(t, p.ID).Status; got != model.PaymentDisputed {
			t.Errorf("status = %s, want disputed", got)
		}
		if votes, cv, _, _ := f.counts(); votes != 1 || cv != 1 {
			t.Errorf("votes=%d contestant=%d, want vote untouched", votes, cv)
		}
	})

	t.Run("refund", func(t *testing.T) {
		f := newFixture(t)
		p := f.pay(t, model.MethodCard, "voter-1")
		_ = f.cardIngestor(&provider.CardEvent{Kind: provider.CardPaymentSucceeded, PaymentIntentID: *p.ProviderRef}).
			Ingest(ctx, nil, goodSignature)
		_ = f.cardIngestor(&provider.CardEvent{Kind: provider.CardChargeRefunded, PaymentIntentID: *p.ProviderRef}).
			Ingest(ctx, nil, goodSignature)
		if got := f.payment(t, p.ID).Status; got != model.PaymentRefunded {
			t.Errorf("status = %s, want refunded", got)
		}
	})

	t.Run("resolves by metadata when ref was never attached", func(t *testing.T) {
		f := newFixture(t)
		p := f.pay(t, model.MethodCard, "voter-1")
		f.db.payments[p.ID].ProviderRef = nil
		err := f.cardIngestor(&provider.CardEvent{Kind: provider.CardPaymentSucceeded, PaymentIntentID: "pi_new", PaymentID: p.ID}).
			Ingest(ctx, nil, goodSignature)
		if err != nil {
			t.Fatal(err)
		}
		got := f.payment(t, p.ID)
		if got.Status != model.PaymentCompleted || got.ProviderRef == nil || *got.ProviderRef != "pi_new" {
			t.Errorf("status=%s ref=%v", got.Status, got.ProviderRef)
		}
	})

	t.Run("unknown payment and event are acknowledged", func(t *testing.T) {
		f := newFixture(t)
		for _, ev := range []*provider.CardEvent{
			{Kind: provider.CardPaymentSucceeded, PaymentIntentID: "pi_missing"},
			{Kind: provider.CardEventUnknown, Type: "customer.created"},
		} {
			if err := f.cardIngestor(ev).Ingest(ctx, nil, goodSignature); err != nil {
				t.Errorf("%+v: err = %v, want ack", ev, err)
			}
		}
	})
}

func TestVoteFailureStillAcksAndIsBackfilled(t *testing.T) {
	f := newFixture(t)
	p := f.pay(t, model.MethodCard, "voter-1")
	f.db.commitErr = errors.New("connection reset")

	err := f.cardIngestor(&provider.CardEvent{Kind: provider.CardPaymentSucceeded, PaymentIntentID: *p.ProviderRef}).
		Ingest(context.Background(), nil, goodSignature)
	if err != nil {
		t.Fatalf("ack: %v", err)
	}
	if got := f.payment(t, p.ID).Status; got != model.PaymentCompleted {
		t.Fatalf("status = %s, want completed", got)
	}
	if votes, _, _, _ := f.counts(); votes != 0 {
		t.Fatalf("votes = %d, want 0 before backfill", votes)
	}

	f.db.commitErr = nil
	r := NewReconciler(memPayments{f.db}, f.committer, f.settlement, 10, 0)
	rep, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.VotesBackfilled != 1 {
		t.Errorf("report = %+v, want one backfill", rep)
	}
	if votes, cv, _, _ := f.counts(); votes != 1 || cv != 1 {
		t.Errorf("after backfill votes=%d contestant=%d", votes, cv)
	}
}

func TestMobileMoneyDuplicateChargeSuccess(t *testing.T) {
	f := newFixture(t)
	p := f.pay(t, model.MethodMobileMoney, "voter-1")
	in := f.mobileMoneyIngestor(&provider.MobileMoneyEvent{
		Type: "charge.success", Kind: provider.MobileMoneyChargeSuccess, Reference: p.ID, Amount: 500, Currency: "GHS",
	})
	ctx := context.Background()

	if err := in.Ingest(ctx, nil, goodSignature); err != nil {
		t.Fatal(err)
	}
	votes, cv, ev, rev := f.counts()

	if err := in.Ingest(ctx, nil, goodSignature); err != nil {
		t.Fatalf("duplicate delivery: %v", err)
	}
	votes2, cv2, ev2, rev2 := f.counts()
	if votes2 != votes || cv2 != cv || ev2 != ev || !rev2.Equal(rev) {
		t.Errorf("counters moved on duplicate: %d/%d/%d/%s -> %d/%d/%d/%s", votes, cv, ev, rev, votes2, cv2, ev2, rev2)
	}
	if votes != 1 || cv != 1 {
		t.Errorf("votes=%d contestant=%d, want 1/1", votes, cv)
	}
}

func TestMobileMoneyChargeGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("amount mismatch leaves pending", func(t *testing.T) {
		f := newFixture(t)
		p := f.pay(t, model.MethodMobileMoney, "voter-1")
		_ = f.mobileMoneyIngestor(&provider.MobileMoneyEvent{Kind: provider.MobileMoneyChargeSuccess, Reference: p.ID, Amount: 100}).
			Ingest(ctx, nil, goodSignature)
		if got := f.payment(t, p.ID).Status; got != model.PaymentPending {
			t.Errorf("status = %s, want pending", got)
		}
	})

	t.Run("card payment reference is not resolved", func(t *testing.T) {
		f := newFixture(t)
		p := f.pay(t, model.MethodCard, "voter-1")
		_ = f.mobileMoneyIngestor(&provider.MobileMoneyEvent{Kind: provider.MobileMoneyChargeSuccess, Reference: p.ID}).
			Ingest(ctx, nil, goodSignature)
		if got := f.payment(t, p.ID).Status; got != model.PaymentPending {
			t.Errorf("status = %s, want pending", got)
		}
	})

	t.Run("charge failed", func(t *testing.T) {
		f := newFixture(t)
		p := f.pay(t, model.MethodMobileMoney, "voter-1")
		_ = f.mobileMoneyIngestor(&provider.MobileMoneyEvent{Kind: provider.MobileMoneyChargeFailed, Type: "charge.failed", Reference: p.ID, Reason: "Declined"}).
			Ingest(ctx, nil, goodSignature)
		got := f.payment(t, p.ID)
		if got.Status != model.PaymentFailed || got.FailureReason != "Declined" {
			t.Errorf("status=%s reason=%q", got.Status, got.FailureReason)
		}
	})

	t.Run("bad signature", func(t *testing.T) {
		f := newFixture(t)
		err := f.mobileMoneyIngestor(&provider.MobileMoneyEvent{}).Ingest(ctx, nil, "")
		if !errors.Is(err, provider.ErrSignatureInvalid) {
			t.Errorf("err = %v", err)
		}
	})
}
