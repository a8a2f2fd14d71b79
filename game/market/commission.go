package market

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// SellerCredit is what the seller receives for a sale of total gold:
// floor(total * (1 - rate)). The remainder leaves circulation.
func SellerCredit(total int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(total).Mul(one.Sub(rate)).Floor().IntPart()
}
