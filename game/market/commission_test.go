package market

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSellerCredit(t *testing.T) {
	rate := decimal.RequireFromString("0.05")
	cases := []struct {
		total, want int64
	}{
		{0, 0},
		{1, 0},
		{6, 5},
		{19, 18},
		{20, 19},
		{100, 95},
		{999, 949},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SellerCredit(tc.total, rate), "total %d", tc.total)
	}
}

func TestSellerCreditZeroRate(t *testing.T) {
	assert.Equal(t, int64(37), SellerCredit(37, decimal.Zero))
}

func TestSellerCreditNeverExceedsTotal(t *testing.T) {
	rate := decimal.RequireFromString("0.05")
	for total := int64(0); total < 500; total++ {
		got := SellerCredit(total, rate)
		assert.LessOrEqual(t, got, total)
		assert.GreaterOrEqual(t, got, int64(0))
	}
}
