package fees

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpiratt/dca-protocol/internal/types"
)

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func testParams() Params {
	return Params{
		MinFeeRate: 100,
		MaxFeeRate: 200,
		LowerBound: e18(100),
		UpperBound: e18(1000),
	}
}

func TestCalculateFee(t *testing.T) {
	calc, err := NewCalculator(testParams(), nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		amount   *big.Int
		expected *big.Int
	}{
		// below the interval the max rate applies
		{"below lower bound", e18(50), e18(1)},
		{"at lower bound", e18(100), e18(2)},
		// 550e18 sits midway, rate interpolates to 150
		{"mid interval", e18(550), new(big.Int).Mul(big.NewInt(825), new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil))},
		{"at upper bound", e18(1000), e18(10)},
		{"above upper bound", e18(2000), e18(20)},
		{"zero amount", big.NewInt(0), big.NewInt(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.CalculateFee(tt.amount)
			assert.Equal(t, tt.expected.String(), got.String())
		})
	}
}

func TestCalculateFeeFlatCurve(t *testing.T) {
	calc, err := NewCalculator(Params{
		MinFeeRate: 150,
		MaxFeeRate: 150,
		LowerBound: e18(100),
		UpperBound: e18(1000),
	}, nil)
	require.NoError(t, err)

	// with equal endpoints every amount pays the same rate
	for _, amount := range []*big.Int{e18(1), e18(100), e18(550), e18(5000)} {
		expected := new(big.Int).Mul(amount, big.NewInt(150))
		expected.Div(expected, big.NewInt(RateDivisor))
		assert.Equal(t, expected.String(), calc.CalculateFee(amount).String())
	}
}

func TestFeeRateMonotonicity(t *testing.T) {
	calc, err := NewCalculator(testParams(), nil)
	require.NoError(t, err)

	// effective rate never increases with purchase size
	prevRate := new(big.Rat)
	first := true
	for _, n := range []int64{10, 100, 200, 400, 550, 700, 999, 1000, 3000} {
		amount := e18(n)
		fee := calc.CalculateFee(amount)
		rate := new(big.Rat).SetFrac(fee, amount)
		if !first {
			assert.True(t, rate.Cmp(prevRate) <= 0, "rate increased at amount %d", n)
		}
		prevRate = rate
		first = false
	}
}

func TestSetFeeRatesRejectsInverted(t *testing.T) {
	calc, err := NewCalculator(testParams(), nil)
	require.NoError(t, err)

	err = calc.SetFeeRates(300, 200)
	var boundsErr *types.FeeBoundsError
	require.ErrorAs(t, err, &boundsErr)

	// rejected update leaves the params untouched
	p := calc.Params()
	assert.Equal(t, uint64(100), p.MinFeeRate)
	assert.Equal(t, uint64(200), p.MaxFeeRate)
}

func TestSetFeeBoundsRejectsInverted(t *testing.T) {
	calc, err := NewCalculator(testParams(), nil)
	require.NoError(t, err)

	require.Error(t, calc.SetFeeBounds(e18(1000), e18(100)))
	require.Error(t, calc.SetFeeBounds(e18(100), e18(100)))

	p := calc.Params()
	assert.Equal(t, e18(100).String(), p.LowerBound.String())
	assert.Equal(t, e18(1000).String(), p.UpperBound.String())
}

func TestSubscribeNotifiedOnChange(t *testing.T) {
	calc, err := NewCalculator(testParams(), nil)
	require.NoError(t, err)

	var seen []Params
	calc.Subscribe(func(p Params) { seen = append(seen, p) })

	require.NoError(t, calc.SetFeeRates(50, 150))
	require.NoError(t, calc.SetFeeBounds(e18(200), e18(2000)))
	require.Error(t, calc.SetFeeRates(500, 100))

	require.Len(t, seen, 2)
	assert.Equal(t, uint64(50), seen[0].MinFeeRate)
	assert.Equal(t, e18(200).String(), seen[1].LowerBound.String())
}

func TestCalculateBatchFee(t *testing.T) {
	calc, err := NewCalculator(testParams(), nil)
	require.NoError(t, err)

	amounts := []*big.Int{e18(50), e18(550), e18(2000)}
	res := calc.CalculateBatchFee(amounts)

	require.Len(t, res.NetAmounts, len(amounts))

	totalFee := new(big.Int)
	totalNet := new(big.Int)
	for i, amount := range amounts {
		fee := calc.CalculateFee(amount)
		net := new(big.Int).Sub(amount, fee)
		assert.Equal(t, net.String(), res.NetAmounts[i].String(), "entry %d", i)
		totalFee.Add(totalFee, fee)
		totalNet.Add(totalNet, net)
	}
	assert.Equal(t, totalFee.String(), res.TotalFee.String())
	assert.Equal(t, totalNet.String(), res.TotalNet.String())
}

func TestNewCalculatorRejectsBadParams(t *testing.T) {
	bad := []Params{
		{MinFeeRate: 200, MaxFeeRate: 100, LowerBound: e18(1), UpperBound: e18(2)},
		{MinFeeRate: 100, MaxFeeRate: 200, LowerBound: nil, UpperBound: e18(2)},
		{MinFeeRate: 100, MaxFeeRate: 200, LowerBound: e18(2), UpperBound: e18(2)},
		{MinFeeRate: 100, MaxFeeRate: 200, LowerBound: e18(3), UpperBound: e18(2)},
	}
	for i, p := range bad {
		_, err := NewCalculator(p, nil)
		assert.Error(t, err, "params %d", i)
	}
}
