package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMoneyToDecimal(t *testing.T) {
	m := NewMoney(10000, "NGN")
	require.True(t, m.ToDecimal().Equal(decimal.NewFromInt(100)))
	require.Equal(t, "100.00 NGN", m.String())
}

func TestFromDecimalRoundsDown(t *testing.T) {
	d := decimal.RequireFromString("12.349")
	require.Equal(t, int64(1234), FromDecimal(d))
}

func TestNetOfFees(t *testing.T) {
	cases := []struct {
		name  string
		gross int64
		fees  []int64
		want  int64
	}{
		{name: "no_fees", gross: 5000, want: 5000},
		{name: "fee_breakdown", gross: 11000, fees: []int64{500, 300, 200}, want: 10000},
		{name: "fees_exceed_gross", gross: 100, fees: []int64{200}, want: -100},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NetOfFees(tc.gross, tc.fees...))
		})
	}
}
