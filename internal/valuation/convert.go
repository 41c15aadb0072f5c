package valuation

import (
	"math/big"
)

// CanonicalDecimals is the fractional precision of the accounting unit.
// Capacity limits and all reported values are scaled by 10^CanonicalDecimals.
const CanonicalDecimals = 6

var canonicalScale = big.NewInt(1_000_000)

var ten = big.NewInt(10)

// Convert maps an asset-native amount to canonical units:
//
//	amount * price * 10^CanonicalDecimals / 10^(assetDecimals + priceDecimals)
//
// The full numerator is formed before the single division, which truncates
// toward zero. Intermediate products never overflow; amounts and prices are
// arbitrary-precision.
func Convert(amount, price *big.Int, assetDecimals, priceDecimals uint8) *big.Int {
	num := new(big.Int).Mul(amount, price)
	num.Mul(num, canonicalScale)
	exp := big.NewInt(int64(assetDecimals) + int64(priceDecimals))
	denom := new(big.Int).Exp(ten, exp, nil)
	return num.Quo(num, denom)
}
