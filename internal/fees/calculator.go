package fees

import (
	"math/big"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/webpiratt/dca-protocol/internal/types"
)

// RateDivisor is the denominator of fee rates. A rate of 100 is 1%.
const RateDivisor = 10_000

// Params configures the piecewise-linear fee curve. Purchases at or below
// LowerBound pay MaxFeeRate, purchases at or above UpperBound pay MinFeeRate,
// and the rate is interpolated linearly in between.
type Params struct {
	MinFeeRate uint64   `json:"min_fee_rate"`
	MaxFeeRate uint64   `json:"max_fee_rate"`
	LowerBound *big.Int `json:"lower_bound"`
	UpperBound *big.Int `json:"upper_bound"`
}

func (p Params) validate() error {
	if p.MinFeeRate > p.MaxFeeRate {
		return &types.FeeBoundsError{Reason: "min fee rate greater than max fee rate"}
	}
	if p.LowerBound == nil || p.UpperBound == nil {
		return &types.FeeBoundsError{Reason: "interpolation bounds are required"}
	}
	if p.LowerBound.Cmp(p.UpperBound) >= 0 {
		return &types.FeeBoundsError{Reason: "lower bound not below upper bound"}
	}
	return nil
}

// Calculator maps purchase amounts to fees. It is safe for concurrent use;
// parameter changes are announced to subscribers.
type Calculator struct {
	mu        sync.RWMutex
	params    Params
	listeners []func(Params)
	logger    *logrus.Logger
}

func NewCalculator(params Params, logger *logrus.Logger) (*Calculator, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Calculator{
		params: Params{
			MinFeeRate: params.MinFeeRate,
			MaxFeeRate: params.MaxFeeRate,
			LowerBound: new(big.Int).Set(params.LowerBound),
			UpperBound: new(big.Int).Set(params.UpperBound),
		},
		logger: logger,
	}, nil
}

// Subscribe registers a callback invoked after every accepted parameter
// change.
func (c *Calculator) Subscribe(fn func(Params)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Calculator) Params() Params {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Params{
		MinFeeRate: c.params.MinFeeRate,
		MaxFeeRate: c.params.MaxFeeRate,
		LowerBound: new(big.Int).Set(c.params.LowerBound),
		UpperBound: new(big.Int).Set(c.params.UpperBound),
	}
}

// SetFeeRates updates the rate endpoints of the curve.
func (c *Calculator) SetFeeRates(minRate, maxRate uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.params
	next.MinFeeRate = minRate
	next.MaxFeeRate = maxRate
	if err := next.validate(); err != nil {
		return err
	}
	c.params = next
	c.notify()
	return nil
}

// SetFeeBounds updates the interpolation interval of the curve.
func (c *Calculator) SetFeeBounds(lower, upper *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.params
	next.LowerBound = lower
	next.UpperBound = upper
	if err := next.validate(); err != nil {
		return err
	}
	next.LowerBound = new(big.Int).Set(lower)
	next.UpperBound = new(big.Int).Set(upper)
	c.params = next
	c.notify()
	return nil
}

// notify is called with c.mu held.
func (c *Calculator) notify() {
	c.logger.WithFields(logrus.Fields{
		"min_fee_rate": c.params.MinFeeRate,
		"max_fee_rate": c.params.MaxFeeRate,
		"lower_bound":  c.params.LowerBound.String(),
		"upper_bound":  c.params.UpperBound.String(),
	}).Info("fee parameters updated")
	for _, fn := range c.listeners {
		fn(c.params)
	}
}

// CalculateFee returns the fee charged on a purchase of the given amount.
// The effective rate is non-increasing in the purchase size.
func (c *Calculator) CalculateFee(amount *big.Int) *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return calculateFee(c.params, amount)
}

func calculateFee(p Params, amount *big.Int) *big.Int {
	divisor := big.NewInt(RateDivisor)
	minRate := new(big.Int).SetUint64(p.MinFeeRate)
	maxRate := new(big.Int).SetUint64(p.MaxFeeRate)

	if p.MinFeeRate == p.MaxFeeRate || amount.Cmp(p.UpperBound) >= 0 {
		fee := new(big.Int).Mul(amount, minRate)
		return fee.Div(fee, divisor)
	}
	if amount.Cmp(p.LowerBound) <= 0 {
		fee := new(big.Int).Mul(amount, maxRate)
		return fee.Div(fee, divisor)
	}

	// rate = maxRate - (amount - lower) * (maxRate - minRate) / (upper - lower)
	span := new(big.Int).Sub(p.UpperBound, p.LowerBound)
	above := new(big.Int).Sub(amount, p.LowerBound)
	drop := new(big.Int).Sub(maxRate, minRate)
	drop.Mul(drop, above)
	drop.Div(drop, span)
	rate := new(big.Int).Sub(maxRate, drop)

	fee := new(big.Int).Mul(amount, rate)
	return fee.Div(fee, divisor)
}

// BatchResult aggregates the fee computation over a batch of purchases.
// Each net amount is computed per entry exactly as CalculateFee would, so
// the totals are consistent with the single-purchase path.
type BatchResult struct {
	TotalFee   *big.Int
	NetAmounts []*big.Int
	TotalNet   *big.Int
}

// CalculateBatchFee computes fee and net amounts for a batch of purchases.
func (c *Calculator) CalculateBatchFee(amounts []*big.Int) BatchResult {
	c.mu.RLock()
	params := c.params
	c.mu.RUnlock()

	res := BatchResult{
		TotalFee:   new(big.Int),
		NetAmounts: make([]*big.Int, len(amounts)),
		TotalNet:   new(big.Int),
	}
	for i, amount := range amounts {
		fee := calculateFee(params, amount)
		net := new(big.Int).Sub(amount, fee)
		res.NetAmounts[i] = net
		res.TotalFee.Add(res.TotalFee, fee)
		res.TotalNet.Add(res.TotalNet, net)
	}
	return res
}
