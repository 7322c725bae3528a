package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestToMinor(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     int64
	}{
		{"5.00", "USD", 500},
		{"0.01", "usd", 1},
		{"19.995", "USD", 2000},
		{"-19.995", "USD", -2000},
		{"12.344", "GHS", 1234},
		{"1500", "JPY", 1500},
		{"1500.5", "JPY", 1501},
		{"999", "KRW", 999},
	}
	for _, tt := range tests {
		got := ToMinor(decimal.RequireFromString(tt.amount), tt.currency)
		if got != tt.want {
			t.Errorf("ToMinor(%s, %s) = %d, want %d", tt.amount, tt.currency, got, tt.want)
		}
	}
}

func TestMinorRoundTrip(t *testing.T) {
	for _, currency := range []string{"USD", "GHS", "EUR"} {
		for cents := int64(0); cents <= 100_000; cents += 37 {
			amount := decimal.New(cents, -2)
			back := FromMinor(ToMinor(amount, currency), currency)
			if !back.Equal(amount) {
				t.Fatalf("%s: round trip of %s gave %s", currency, amount, back)
			}
		}
	}
	for units := int64(0); units <= 10_000; units += 13 {
		amount := decimal.NewFromInt(units)
		if back := FromMinor(ToMinor(amount, "JPY"), "JPY"); !back.Equal(amount) {
			t.Fatalf("JPY: round trip of %s gave %s", amount, back)
		}
	}
}

func TestSplitAmountExact(t *testing.T) {
	rates := []string{"0", "0.05", "0.1", "0.125", "0.333", "0.9999", "1"}
	for _, r := range rates {
		rate := decimal.RequireFromString(r)
		for cents := int64(1); cents <= 50_000; cents += 7 {
			amount := decimal.New(cents, -2)
			s := SplitAmount(amount, rate)
			if !s.PlatformFee.Add(s.OrganizerEarnings).Equal(amount) {
				t.Fatalf("rate %s amount %s: fee %s + earnings %s != amount",
					r, amount, s.PlatformFee, s.OrganizerEarnings)
			}
			if s.PlatformFee.Exponent() < -2 {
				t.Fatalf("rate %s amount %s: fee %s has sub-cent precision", r, amount, s.PlatformFee)
			}
		}
	}
}

func TestSplitAmountScenario(t *testing.T) {
	s := SplitAmount(decimal.RequireFromString("5.00"), decimal.RequireFromString("0.05"))
	if !s.PlatformFee.Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("platform fee = %s, want 0.25", s.PlatformFee)
	}
	if !s.OrganizerEarnings.Equal(decimal.RequireFromString("4.75")) {
		t.Errorf("organizer earnings = %s, want 4.75", s.OrganizerEarnings)
	}
}

func TestValidateRate(t *testing.T) {
	for _, ok := range []string{"0", "0.5", "1", "0.0513", "0.05130"} {
		if err := ValidateRate(decimal.RequireFromString(ok)); err != nil {
			t.Errorf("ValidateRate(%s) = %v, want nil", ok, err)
		}
	}
	for _, bad := range []string{"-0.01", "1.0001", "2"} {
		if err := ValidateRate(decimal.RequireFromString(bad)); err != ErrInvalidRate {
			t.Errorf("ValidateRate(%s) = %v, want ErrInvalidRate", bad, err)
		}
	}
	for _, fine := range []string{"0.05125", "0.00001", "0.99999"} {
		if err := ValidateRate(decimal.RequireFromString(fine)); err != ErrRatePrecision {
			t.Errorf("ValidateRate(%s) = %v, want ErrRatePrecision", fine, err)
		}
	}
}
