package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCurrencyToMinorRoundsHalfUp(t *testing.T) {
	eur := MustCurrency("EUR")
	cases := map[string]int64{
		"19.99":  1999,
		"0.005":  1,
		"0.004":  0,
		"10":     1000,
		"1e2":    10000,
		"12.345": 1235,
	}
	for raw, want := range cases {
		got, err := eur.ParseMinor(raw)
		if err != nil {
			t.Fatalf("ParseMinor(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseMinor(%q) = %d, want %d", raw, got, want)
		}
	}

	jpy := MustCurrency("JPY")
	if got, err := jpy.ParseMinor("1500.5"); err != nil || got != 1501 {
		t.Fatalf("JPY ParseMinor = %d, %v", got, err)
	}
}

func TestCurrencyToMinorRejectsExtremeExponents(t *testing.T) {
	eur := MustCurrency("EUR")
	for _, raw := range []string{`1e30000000`, `1e-30000000`, `5e19`, `1e-19`} {
		var amount decimal.Decimal
		if err := json.Unmarshal([]byte(raw), &amount); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}

		start := time.Now()
		_, err := eur.ToMinor(amount)
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ToMinor(%s) error = %v, want ErrInvalidAmount", raw, err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Fatalf("ToMinor(%s) took %s", raw, elapsed)
		}
	}
}

func TestCurrencyToMinorOverflow(t *testing.T) {
	eur := MustCurrency("EUR")
	_, err := eur.ParseMinor("92233720368547758.08")
	if !errors.Is(err, ErrAmountOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := eur.ParseMinor("abc"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestCurrencyFormat(t *testing.T) {
	if got := MustCurrency("EUR").Format(2650); got != "26.50" {
		t.Fatalf("Format = %q", got)
	}
	if got := MustCurrency("JPY").Format(1500); got != "1500" {
		t.Fatalf("Format = %q", got)
	}
}
