package dca

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Limits holds the admin-tunable engine configuration: the minimum purchase
// period, the per-(owner, token) schedule cap, and the minimum purchase
// amount (global default with per-token overrides). No ambient globals; the
// manager owns the single instance.
type Limits struct {
	mu sync.RWMutex

	minPurchasePeriod    uint64
	maxSchedulesPerToken int
	minPurchaseAmount    *big.Int
	minPurchaseByToken   map[common.Address]*big.Int
}

func NewLimits(minPurchasePeriod uint64, maxSchedulesPerToken int, minPurchaseAmount *big.Int) *Limits {
	return &Limits{
		minPurchasePeriod:    minPurchasePeriod,
		maxSchedulesPerToken: maxSchedulesPerToken,
		minPurchaseAmount:    new(big.Int).Set(minPurchaseAmount),
		minPurchaseByToken:   make(map[common.Address]*big.Int),
	}
}

func (l *Limits) MinPurchasePeriod() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.minPurchasePeriod
}

func (l *Limits) SetMinPurchasePeriod(period uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minPurchasePeriod = period
}

func (l *Limits) MaxSchedulesPerToken() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.maxSchedulesPerToken
}

func (l *Limits) SetMaxSchedulesPerToken(max int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxSchedulesPerToken = max
}

// MinPurchaseAmount returns the per-token override when present, the global
// default otherwise.
func (l *Limits) MinPurchaseAmount(token common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if m, ok := l.minPurchaseByToken[token]; ok {
		return new(big.Int).Set(m)
	}
	return new(big.Int).Set(l.minPurchaseAmount)
}

func (l *Limits) SetMinPurchaseAmount(amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minPurchaseAmount = new(big.Int).Set(amount)
}

func (l *Limits) SetMinPurchaseAmountForToken(token common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minPurchaseByToken[token] = new(big.Int).Set(amount)
}
