package model

import (
	"slices"
	"testing"
	"time"
)

func TestPaymentTransitions(t *testing.T) {
	all := []PaymentStatus{PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded, PaymentDisputed}
	allowed := map[[2]PaymentStatus]bool{
		{PaymentPending, PaymentCompleted}:   true,
		{PaymentPending, PaymentFailed}:      true,
		{PaymentCompleted, PaymentRefunded}:  true,
		{PaymentCompleted, PaymentDisputed}:  true,
		{PaymentDisputed, PaymentRefunded}:   true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]PaymentStatus{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestNothingReturnsToPending(t *testing.T) {
	if src := PaymentSourcesFor(PaymentPending); len(src) != 0 {
		t.Fatalf("pending reachable from %v", src)
	}
	if src := PaymentSourcesFor(PaymentCompleted); !slices.Equal(src, []PaymentStatus{PaymentPending}) {
		t.Fatalf("completed reachable from %v, want only pending", src)
	}
	if src := PaymentSourcesFor(PaymentRefunded); !slices.Equal(src, []PaymentStatus{PaymentCompleted, PaymentDisputed}) {
		t.Fatalf("refunded reachable from %v", src)
	}
}

func TestWithdrawalTransitions(t *testing.T) {
	if !WithdrawalPending.CanTransitionTo(WithdrawalProcessing) {
		t.Error("pending -> processing should be allowed")
	}
	if WithdrawalPending.CanTransitionTo(WithdrawalCompleted) {
		t.Error("pending -> completed should not be allowed")
	}
	if WithdrawalCompleted.CanTransitionTo(WithdrawalFailed) {
		t.Error("completed is terminal")
	}
}

func TestEventVotingOpen(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := Event{StartDate: start, EndDate: start.Add(48 * time.Hour)}
	cases := []struct {
		at   time.Time
		want bool
	}{
		{start.Add(-time.Second), false},
		{start, true},
		{start.Add(24 * time.Hour), true},
		{start.Add(48 * time.Hour), true},
		{start.Add(48*time.Hour + time.Second), false},
	}
	for _, c := range cases {
		if got := e.VotingOpen(c.at); got != c.want {
			t.Errorf("VotingOpen(%s) = %v, want %v", c.at, got, c.want)
		}
	}
}
