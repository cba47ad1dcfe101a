package utils

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsEvmAddress(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"0x15272209c6996e7dfa88c7463b899f4754794444", true},
		{"0x15272209C6996E7DFA88C7463B899F4754794444", true},
		{"15272209c6996e7dfa88c7463b899f4754794444", false},
		{"0x1234", false},
		{"", false},
		{"0xzz272209c6996e7dfa88c7463b899f4754794444", false},
	}
	for _, c := range cases {
		if got := IsEvmAddress(c.in); got != c.want {
			t.Errorf("IsEvmAddress(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestDecimalsRoundTrip(t *testing.T) {
	raw, _ := new(big.Int).SetString("1500000000000000000", 10)
	amount := AdjustDecimals(raw, 18)
	if !amount.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("AdjustDecimals = %s, want 1.5", amount)
	}
	if back := ToBaseUnits(amount, 18); back.Cmp(raw) != 0 {
		t.Fatalf("ToBaseUnits = %s, want %s", back, raw)
	}
	if got := ToBaseUnits(decimal.RequireFromString("0.0000000000000000019"), 18); got.Int64() != 1 {
		t.Fatalf("ToBaseUnits truncation = %s, want 1", got)
	}
}

func TestChecksumAddress(t *testing.T) {
	got := ChecksumAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	if got != "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" {
		t.Fatalf("ChecksumAddress = %s", got)
	}
}

func TestIsUnixSeconds(t *testing.T) {
	if !IsUnixSeconds(1_700_000_000) {
		t.Fatal("seconds not detected")
	}
	if IsUnixSeconds(1_700_000_000_000) || IsUnixSeconds(-1) {
		t.Fatal("milliseconds treated as seconds")
	}
}
