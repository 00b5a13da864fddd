package dca

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/webpiratt/dca-protocol/internal/types"
)

// Store is the authoritative table of DCA schedules, keyed by
// (owner, token, index). Deletion swap-removes, so indices are not stable:
// every mutating access re-validates the caller's (index, scheduleId) pair.
type Store struct {
	mu        sync.RWMutex
	limits    *Limits
	schedules map[common.Address]map[common.Address][]*types.Schedule
}

func NewStore(limits *Limits) *Store {
	return &Store{
		limits:    limits,
		schedules: make(map[common.Address]map[common.Address][]*types.Schedule),
	}
}

func (s *Store) list(owner, token common.Address) []*types.Schedule {
	return s.schedules[owner][token]
}

func (s *Store) setList(owner, token common.Address, list []*types.Schedule) {
	if s.schedules[owner] == nil {
		s.schedules[owner] = make(map[common.Address][]*types.Schedule)
	}
	s.schedules[owner][token] = list
}

// at returns the live schedule at index, failing before any further
// validation when the index is out of bounds.
func (s *Store) at(owner, token common.Address, index int) (*types.Schedule, error) {
	list := s.list(owner, token)
	if index < 0 || index >= len(list) {
		return nil, &types.InexistentScheduleIndexError{Index: index, Length: len(list)}
	}
	return list[index], nil
}

// identified returns the live schedule at index after checking that the
// caller's cached ID still names the same logical schedule.
func (s *Store) identified(owner, token common.Address, index int, id common.Hash) (*types.Schedule, error) {
	sched, err := s.at(owner, token, index)
	if err != nil {
		return nil, err
	}
	if sched.ScheduleID != id {
		return nil, &types.ScheduleIDAndIndexMismatchError{Index: index, Expected: id, Actual: sched.ScheduleID}
	}
	return sched, nil
}

// validatePurchaseAmount enforces the configured minimum and the
// two-purchases rule: the amount may not exceed half the balance it is set
// against.
func (s *Store) validatePurchaseAmount(token common.Address, amount, balance *big.Int) error {
	min := s.limits.MinPurchaseAmount(token)
	max := new(big.Int).Div(balance, big.NewInt(2))
	if amount.Cmp(min) < 0 || amount.Cmp(max) > 0 {
		return &types.PurchaseAmountOutOfBoundsError{
			Amount:  new(big.Int).Set(amount),
			Minimum: min,
			Maximum: max,
		}
	}
	return nil
}

func (s *Store) validatePurchasePeriod(period uint64) error {
	if min := s.limits.MinPurchasePeriod(); period < min {
		return &types.PurchasePeriodTooShortError{Period: period, Minimum: min}
	}
	return nil
}

// Create validates the parameters, derives the schedule ID and appends the
// new schedule to the owner's list for the token. The caller forwards the
// deposit to the token handler.
func (s *Store) Create(owner, token common.Address, depositAmount, purchaseAmount *big.Int, purchasePeriod uint64, lendingProtocolIndex uint64, now uint64) (*types.Schedule, int, error) {
	if depositAmount == nil || depositAmount.Sign() <= 0 {
		return nil, 0, types.ErrDepositAmountMustBePositive
	}
	if err := s.validatePurchasePeriod(purchasePeriod); err != nil {
		return nil, 0, err
	}
	if err := s.validatePurchaseAmount(token, purchaseAmount, depositAmount); err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.list(owner, token)
	if max := s.limits.MaxSchedulesPerToken(); len(list) >= max {
		return nil, 0, &types.MaxSchedulesReachedError{Max: max}
	}

	position := len(list)
	sched := &types.Schedule{
		Owner:                owner,
		Token:                token,
		TokenBalance:         new(big.Int).Set(depositAmount),
		PurchaseAmount:       new(big.Int).Set(purchaseAmount),
		PurchasePeriod:       purchasePeriod,
		ScheduleID:           types.NewScheduleID(owner, token, now, position),
		LendingProtocolIndex: lendingProtocolIndex,
	}
	s.setList(owner, token, append(list, sched))
	return sched.Clone(), position, nil
}

// Update applies any combination of an extra deposit, a new purchase amount
// and a new purchase period. A zero value leaves the field unchanged. The
// purchase amount is re-validated against the post-deposit balance whenever
// either side of that check changed.
func (s *Store) Update(owner, token common.Address, index int, id common.Hash, depositAmount, purchaseAmount *big.Int, purchasePeriod uint64) (*types.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, err := s.identified(owner, token, index, id)
	if err != nil {
		return nil, err
	}

	deposit := depositAmount != nil && depositAmount.Sign() > 0
	amount := purchaseAmount != nil && purchaseAmount.Sign() > 0

	if purchasePeriod != 0 {
		if err := s.validatePurchasePeriod(purchasePeriod); err != nil {
			return nil, err
		}
	}

	newBalance := new(big.Int).Set(sched.TokenBalance)
	if deposit {
		newBalance.Add(newBalance, depositAmount)
	}
	if deposit || amount {
		effective := sched.PurchaseAmount
		if amount {
			effective = purchaseAmount
		}
		if err := s.validatePurchaseAmount(token, effective, newBalance); err != nil {
			return nil, err
		}
	}

	sched.TokenBalance = newBalance
	if amount {
		sched.PurchaseAmount = new(big.Int).Set(purchaseAmount)
	}
	if purchasePeriod != 0 {
		sched.PurchasePeriod = purchasePeriod
	}
	return sched.Clone(), nil
}

// Delete swap-removes the schedule: the last element overwrites the deleted
// slot and the list shrinks. It returns the removed schedule so the caller
// can refund its remaining balance.
func (s *Store) Delete(owner, token common.Address, index int, id common.Hash) (*types.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.identified(owner, token, index, id)
	if err != nil {
		return nil, err
	}
	list := s.list(owner, token)
	last := len(list) - 1
	list[index] = list[last]
	list[last] = nil
	s.setList(owner, token, list[:last])
	return removed, nil
}

// Deposit adds to the schedule balance without touching the purchase
// parameters.
func (s *Store) Deposit(owner, token common.Address, index int, id common.Hash, amount *big.Int) (*types.Schedule, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, types.ErrDepositAmountMustBePositive
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, err := s.identified(owner, token, index, id)
	if err != nil {
		return nil, err
	}
	sched.TokenBalance = new(big.Int).Add(sched.TokenBalance, amount)
	return sched.Clone(), nil
}

// Withdraw removes part of the schedule balance, rejecting overdrafts.
func (s *Store) Withdraw(owner, token common.Address, index int, id common.Hash, amount *big.Int) (*types.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, err := s.identified(owner, token, index, id)
	if err != nil {
		return nil, err
	}
	if sched.TokenBalance.Cmp(amount) < 0 {
		return nil, &types.WithdrawalBalanceNotEnoughError{
			Requested: new(big.Int).Set(amount),
			Balance:   new(big.Int).Set(sched.TokenBalance),
		}
	}
	sched.TokenBalance = new(big.Int).Sub(sched.TokenBalance, amount)
	return sched.Clone(), nil
}

// SetPurchaseAmount re-validates against the current balance before storing.
func (s *Store) SetPurchaseAmount(owner, token common.Address, index int, id common.Hash, amount *big.Int) (*types.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, err := s.identified(owner, token, index, id)
	if err != nil {
		return nil, err
	}
	if err := s.validatePurchaseAmount(token, amount, sched.TokenBalance); err != nil {
		return nil, err
	}
	sched.PurchaseAmount = new(big.Int).Set(amount)
	return sched.Clone(), nil
}

func (s *Store) SetPurchasePeriod(owner, token common.Address, index int, id common.Hash, period uint64) (*types.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched, err := s.identified(owner, token, index, id)
	if err != nil {
		return nil, err
	}
	if err := s.validatePurchasePeriod(period); err != nil {
		return nil, err
	}
	sched.PurchasePeriod = period
	return sched.Clone(), nil
}

// Get returns a copy of the schedule at index.
func (s *Store) Get(owner, token common.Address, index int) (*types.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sched, err := s.at(owner, token, index)
	if err != nil {
		return nil, err
	}
	return sched.Clone(), nil
}

// List returns copies of all schedules an owner has for a token.
func (s *Store) List(owner, token common.Address) []*types.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.list(owner, token)
	out := make([]*types.Schedule, len(list))
	for i, sched := range list {
		out[i] = sched.Clone()
	}
	return out
}

// LockedPrincipal sums the owner's schedule balances held by one lending
// venue for a token. Interest is released proportionally to this amount.
func (s *Store) LockedPrincipal(owner, token common.Address, lendingProtocolIndex uint64) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := new(big.Int)
	for _, sched := range s.list(owner, token) {
		if sched.LendingProtocolIndex == lendingProtocolIndex {
			total.Add(total, sched.TokenBalance)
		}
	}
	return total
}

// Snapshot deep-copies the owner's schedule list for a token so a failed
// batch can be restored wholesale.
func (s *Store) Snapshot(owner, token common.Address) []*types.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.list(owner, token)
	out := make([]*types.Schedule, len(list))
	for i, sched := range list {
		out[i] = sched.Clone()
	}
	return out
}

// Restore replaces the owner's schedule list for a token with a snapshot.
func (s *Store) Restore(owner, token common.Address, snapshot []*types.Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setList(owner, token, snapshot)
}

// Load seeds the table from persisted schedules at boot.
func (s *Store) Load(schedules []*types.Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sched := range schedules {
		s.setList(sched.Owner, sched.Token, append(s.list(sched.Owner, sched.Token), sched.Clone()))
	}
}

// mutate runs fn against the live schedule under the store lock after
// identity validation. Reserved for the purchase authorizer.
func (s *Store) mutate(owner, token common.Address, index int, id common.Hash, fn func(*types.Schedule) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sched, err := s.identified(owner, token, index, id)
	if err != nil {
		return err
	}
	return fn(sched)
}
