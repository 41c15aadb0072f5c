package valuation_test

import (
	"math/big"
	"testing"

	"TokenVault/internal/valuation"
)

func bi(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big int literal: " + s)
	}
	return n
}

func TestConvert_TokenAt18Decimals(t *testing.T) {
	// 50 tokens at 18 decimals, price 2000.00000000 USD at 8 decimals.
	// 50 * 2000 = 100000 canonical units = 10^5 * 10^6.
	amount := bi("50000000000000000000")
	price := bi("200000000000")

	got := valuation.Convert(amount, price, 18, 8)
	want := bi("100000000000")
	if got.Cmp(want) != 0 {
		t.Errorf("Convert = %s, want %s", got, want)
	}
}

func TestConvert_SixDecimalStable(t *testing.T) {
	// 1234.567890 USDC at price 1.00000000.
	amount := bi("1234567890")
	price := bi("100000000")

	got := valuation.Convert(amount, price, 6, 8)
	want := bi("1234567890")
	if got.Cmp(want) != 0 {
		t.Errorf("Convert = %s, want %s", got, want)
	}
}

func TestConvert_TruncatesTowardZero(t *testing.T) {
	// 1 wei at a 2000 USD price: value is far below one canonical unit.
	got := valuation.Convert(bi("1"), bi("200000000000"), 18, 8)
	if got.Sign() != 0 {
		t.Errorf("Convert = %s, want 0", got)
	}
}

func TestConvert_MultiplyBeforeDivide(t *testing.T) {
	// 3 units of a 0-decimal asset at price 1 with 6 price decimals.
	// Dividing first would floor the price to zero; the correct value is 3.
	got := valuation.Convert(bi("3"), bi("1"), 0, 6)
	want := bi("3")
	if got.Cmp(want) != 0 {
		t.Errorf("Convert = %s, want %s", got, want)
	}
}

func TestConvert_ZeroAmount(t *testing.T) {
	got := valuation.Convert(bi("0"), bi("200000000000"), 18, 8)
	if got.Sign() != 0 {
		t.Errorf("Convert = %s, want 0", got)
	}
}

func TestConvert_LargeMagnitudes(t *testing.T) {
	// 10^30 base units at 18 decimals, price 10^12 at 8 decimals.
	// 10^12 tokens * 10^4 each * 10^6 canonical scale = 10^22.
	got := valuation.Convert(bi("1000000000000000000000000000000"), bi("1000000000000"), 18, 8)
	want := bi("10000000000000000000000")
	if got.Cmp(want) != 0 {
		t.Errorf("Convert = %s, want %s", got, want)
	}
}
