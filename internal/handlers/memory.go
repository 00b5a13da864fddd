package handlers

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryHandler is an in-memory token handler, purchase executor and lending
// adapter in one. It backs the development mode and the test suites; real
// deployments register venue-specific handlers instead.
type MemoryHandler struct {
	mu sync.Mutex

	// purchased rBTC per stablecoin unit, as priceNum/priceDen
	priceNum *big.Int
	priceDen *big.Int

	// flat interest accrual on locked principal, in basis points
	interestRateBps uint64

	deposits  map[common.Address]*big.Int
	purchased map[common.Address]*big.Int
	interest  map[common.Address]*big.Int

	buyCalls      int
	batchBuyCalls int
}

func NewMemoryHandler(priceNum, priceDen *big.Int, interestRateBps uint64) *MemoryHandler {
	return &MemoryHandler{
		priceNum:        new(big.Int).Set(priceNum),
		priceDen:        new(big.Int).Set(priceDen),
		interestRateBps: interestRateBps,
		deposits:        make(map[common.Address]*big.Int),
		purchased:       make(map[common.Address]*big.Int),
		interest:        make(map[common.Address]*big.Int),
	}
}

var _ Handler = (*MemoryHandler)(nil)

func (m *MemoryHandler) balanceOf(table map[common.Address]*big.Int, user common.Address) *big.Int {
	if b, ok := table[user]; ok {
		return b
	}
	b := new(big.Int)
	table[user] = b
	return b
}

func (m *MemoryHandler) DepositToken(_ context.Context, user common.Address, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("deposit amount must be positive, got %s", amount.String())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balanceOf(m.deposits, user)
	b.Add(b, amount)
	return nil
}

func (m *MemoryHandler) WithdrawToken(_ context.Context, user common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balanceOf(m.deposits, user)
	if b.Cmp(amount) < 0 {
		return fmt.Errorf("handler holds %s for %s, cannot withdraw %s", b.String(), user.Hex(), amount.String())
	}
	b.Sub(b, amount)
	return nil
}

func (m *MemoryHandler) BuyAsset(_ context.Context, buyer common.Address, _ common.Hash, amount *big.Int) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buyCalls++
	return m.buyLocked(buyer, amount)
}

func (m *MemoryHandler) buyLocked(buyer common.Address, amount *big.Int) (*big.Int, error) {
	b := m.balanceOf(m.deposits, buyer)
	if b.Cmp(amount) < 0 {
		return nil, fmt.Errorf("handler holds %s for %s, cannot swap %s", b.String(), buyer.Hex(), amount.String())
	}
	b.Sub(b, amount)

	out := new(big.Int).Mul(amount, m.priceNum)
	out.Div(out, m.priceDen)
	acc := m.balanceOf(m.purchased, buyer)
	acc.Add(acc, out)
	return out, nil
}

func (m *MemoryHandler) BatchBuyAsset(_ context.Context, buyers []common.Address, scheduleIDs []common.Hash, amounts []*big.Int) error {
	if len(buyers) != len(scheduleIDs) || len(buyers) != len(amounts) {
		return fmt.Errorf("batch arrays disagree: %d buyers, %d ids, %d amounts", len(buyers), len(scheduleIDs), len(amounts))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchBuyCalls++
	for i, buyer := range buyers {
		if _, err := m.buyLocked(buyer, amounts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryHandler) AccumulatedAssetBalance(_ context.Context, user common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balanceOf(m.purchased, user)), nil
}

func (m *MemoryHandler) WithdrawAccumulatedAsset(_ context.Context, user common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceOf(m.purchased, user).SetInt64(0)
	return nil
}

func (m *MemoryHandler) AccruedInterest(_ context.Context, _ common.Address, lockedPrincipal *big.Int) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := new(big.Int).Mul(lockedPrincipal, new(big.Int).SetUint64(m.interestRateBps))
	return acc.Div(acc, big.NewInt(10_000)), nil
}

func (m *MemoryHandler) WithdrawInterest(_ context.Context, user common.Address, lockedPrincipal *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := new(big.Int).Mul(lockedPrincipal, new(big.Int).SetUint64(m.interestRateBps))
	acc.Div(acc, big.NewInt(10_000))
	paid := m.balanceOf(m.interest, user)
	paid.Add(paid, acc)
	return nil
}

// DepositBalance reports the stablecoin the handler holds for a user.
func (m *MemoryHandler) DepositBalance(user common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balanceOf(m.deposits, user))
}

// InterestPaid reports the interest released to a user so far.
func (m *MemoryHandler) InterestPaid(user common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balanceOf(m.interest, user))
}

// BatchBuyCalls reports how many aggregate swaps were executed.
func (m *MemoryHandler) BatchBuyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchBuyCalls
}
