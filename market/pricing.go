package market

import (
	"github.com/shopspring/decimal"
)

// resaleCapFactor is the anti-scalping cap: a ticket may be re-offered at no
// more than 110% of what the seller paid for it.
var resaleCapFactor = decimal.New(110, -2)

// MaxResalePrice computes the cap from the original price, rounding down to
// the smallest currency unit. Exactly 1.10x the original is still allowed;
// one unit above it is not. Every cap check in the package goes through this
// one function so listing-time and settlement-time enforcement can never
// disagree on rounding.
func MaxResalePrice(originalPriceMicros uint64) uint64 {
	max := decimal.New(int64(originalPriceMicros), 0).Mul(resaleCapFactor).Floor()
	return uint64(max.IntPart())
}
