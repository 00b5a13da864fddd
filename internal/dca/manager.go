package dca

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/webpiratt/dca-protocol/internal/fees"
	"github.com/webpiratt/dca-protocol/internal/handlers"
	"github.com/webpiratt/dca-protocol/internal/types"
)

// Persistence is the write-behind journal for committed state changes. The
// in-memory store stays authoritative; a nil Persistence (tests, dev mode)
// disables journaling.
type Persistence interface {
	SaveSchedule(ctx context.Context, sched *types.Schedule) error
	DeleteSchedule(ctx context.Context, id common.Hash) error
	AppendEvents(ctx context.Context, events []types.Event) error
	AppendPurchases(ctx context.Context, purchases []types.PurchaseHistory) error
}

// Manager is the public-facing coordinator. Every mutating entry point runs
// as one serialized transaction against the schedule table: a mutex orders
// the calls, and a guard flag raised around external handler invocations
// rejects callbacks that would otherwise observe half-updated state.
type Manager struct {
	mu       sync.Mutex
	external atomic.Bool

	store      *Store
	authorizer *Authorizer
	limits     *Limits
	feeCalc    *fees.Calculator
	registry   *handlers.Registry
	db         Persistence
	logger     *logrus.Logger

	now func() uint64
}

func NewManager(store *Store, limits *Limits, feeCalc *fees.Calculator, registry *handlers.Registry, db Persistence, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{
		store:      store,
		authorizer: NewAuthorizer(store),
		limits:     limits,
		feeCalc:    feeCalc,
		registry:   registry,
		db:         db,
		logger:     logger,
		now:        func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// begin rejects calls arriving while an external handler is executing, then
// serializes against every other entry point. Handlers must not call back
// into the manager.
func (m *Manager) begin() error {
	if m.external.Load() {
		return types.ErrReentrantCall
	}
	m.mu.Lock()
	return nil
}

func (m *Manager) end() {
	m.mu.Unlock()
}

// callExternal raises the guard for the duration of a collaborator call.
func (m *Manager) callExternal(fn func() error) error {
	m.external.Store(true)
	defer m.external.Store(false)
	return fn()
}

func (m *Manager) resolveHandler(token common.Address, lendingProtocolIndex uint64) (handlers.Handler, error) {
	h, ok := m.registry.GetTokenHandler(token, lendingProtocolIndex)
	if !ok {
		return nil, types.ErrTokenNotAccepted
	}
	return h, nil
}

// commit logs and journals the facts of a successful call. Persistence
// failures are logged, not surfaced: the in-memory table already holds the
// committed state.
func (m *Manager) commit(ctx context.Context, events []types.Event, schedules []*types.Schedule) {
	for _, ev := range events {
		m.logger.WithFields(logrus.Fields{
			"type":        ev.Type,
			"owner":       ev.Owner.Hex(),
			"token":       ev.Token.Hex(),
			"schedule_id": ev.ScheduleID.Hex(),
		}).Info("state change committed")
	}
	if m.db == nil {
		return
	}
	for _, sched := range schedules {
		if err := m.db.SaveSchedule(ctx, sched); err != nil {
			m.logger.WithError(err).Error("failed to persist schedule")
		}
	}
	if len(events) > 0 {
		if err := m.db.AppendEvents(ctx, events); err != nil {
			m.logger.WithError(err).Error("failed to journal events")
		}
	}
}

// CreateSchedule validates and stores a new DCA schedule, then forwards the
// deposit to the token handler. A failed deposit removes the schedule again:
// the call has no effect.
func (m *Manager) CreateSchedule(ctx context.Context, owner, token common.Address, depositAmount, purchaseAmount *big.Int, purchasePeriod, lendingProtocolIndex uint64) (*types.Schedule, int, error) {
	if err := m.begin(); err != nil {
		return nil, 0, err
	}
	defer m.end()

	handler, err := m.resolveHandler(token, lendingProtocolIndex)
	if err != nil {
		return nil, 0, err
	}

	sched, index, err := m.store.Create(owner, token, depositAmount, purchaseAmount, purchasePeriod, lendingProtocolIndex, m.now())
	if err != nil {
		return nil, 0, err
	}

	if err := m.callExternal(func() error {
		return handler.DepositToken(ctx, owner, depositAmount)
	}); err != nil {
		if _, delErr := m.store.Delete(owner, token, index, sched.ScheduleID); delErr != nil {
			m.logger.WithError(delErr).Error("failed to roll back schedule after deposit failure")
		}
		return nil, 0, fmt.Errorf("token handler deposit failed: %w", err)
	}

	ev := types.NewEvent(types.EventScheduleCreated, owner, token, sched.ScheduleID)
	ev.Amount = new(big.Int).Set(sched.TokenBalance)
	m.commit(ctx, []types.Event{ev}, []*types.Schedule{sched})
	return sched, index, nil
}

// UpdateSchedule changes any of deposit, purchase amount and purchase period
// in one call; zero values leave the field unchanged.
func (m *Manager) UpdateSchedule(ctx context.Context, owner, token common.Address, index int, id common.Hash, depositAmount, purchaseAmount *big.Int, purchasePeriod uint64) (*types.Schedule, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	snapshot := m.store.Snapshot(owner, token)
	sched, err := m.store.Update(owner, token, index, id, depositAmount, purchaseAmount, purchasePeriod)
	if err != nil {
		return nil, err
	}

	if depositAmount != nil && depositAmount.Sign() > 0 {
		handler, err := m.resolveHandler(token, sched.LendingProtocolIndex)
		if err != nil {
			m.store.Restore(owner, token, snapshot)
			return nil, err
		}
		if err := m.callExternal(func() error {
			return handler.DepositToken(ctx, owner, depositAmount)
		}); err != nil {
			m.store.Restore(owner, token, snapshot)
			return nil, fmt.Errorf("token handler deposit failed: %w", err)
		}
	}

	ev := types.NewEvent(types.EventScheduleUpdated, owner, token, sched.ScheduleID)
	ev.Amount = new(big.Int).Set(sched.TokenBalance)
	m.commit(ctx, []types.Event{ev}, []*types.Schedule{sched})
	return sched, nil
}

// DeleteSchedule swap-removes the schedule and returns its remaining balance
// to the owner. Pre-check failures leave the table untouched.
func (m *Manager) DeleteSchedule(ctx context.Context, owner, token common.Address, index int, id common.Hash) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	snapshot := m.store.Snapshot(owner, token)
	removed, err := m.store.Delete(owner, token, index, id)
	if err != nil {
		return err
	}

	if removed.TokenBalance.Sign() > 0 {
		handler, err := m.resolveHandler(token, removed.LendingProtocolIndex)
		if err != nil {
			m.store.Restore(owner, token, snapshot)
			return err
		}
		if err := m.callExternal(func() error {
			return handler.WithdrawToken(ctx, owner, removed.TokenBalance)
		}); err != nil {
			m.store.Restore(owner, token, snapshot)
			return fmt.Errorf("token handler refund failed: %w", err)
		}
	}

	ev := types.NewEvent(types.EventScheduleDeleted, owner, token, removed.ScheduleID)
	ev.Amount = new(big.Int).Set(removed.TokenBalance)
	m.commit(ctx, []types.Event{ev}, nil)
	if m.db != nil {
		if err := m.db.DeleteSchedule(ctx, removed.ScheduleID); err != nil {
			m.logger.WithError(err).Error("failed to delete persisted schedule")
		}
	}
	return nil
}

// DepositToken adds funds to an existing schedule.
func (m *Manager) DepositToken(ctx context.Context, owner, token common.Address, index int, id common.Hash, amount *big.Int) (*types.Schedule, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	snapshot := m.store.Snapshot(owner, token)
	sched, err := m.store.Deposit(owner, token, index, id, amount)
	if err != nil {
		return nil, err
	}
	handler, err := m.resolveHandler(token, sched.LendingProtocolIndex)
	if err != nil {
		m.store.Restore(owner, token, snapshot)
		return nil, err
	}
	if err := m.callExternal(func() error {
		return handler.DepositToken(ctx, owner, amount)
	}); err != nil {
		m.store.Restore(owner, token, snapshot)
		return nil, fmt.Errorf("token handler deposit failed: %w", err)
	}

	ev := types.NewEvent(types.EventBalanceUpdated, owner, token, sched.ScheduleID)
	ev.Amount = new(big.Int).Set(sched.TokenBalance)
	m.commit(ctx, []types.Event{ev}, []*types.Schedule{sched})
	return sched, nil
}

// WithdrawToken returns part of a schedule's balance to the owner.
func (m *Manager) WithdrawToken(ctx context.Context, owner, token common.Address, index int, id common.Hash, amount *big.Int) (*types.Schedule, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	snapshot := m.store.Snapshot(owner, token)
	sched, err := m.store.Withdraw(owner, token, index, id, amount)
	if err != nil {
		return nil, err
	}
	handler, err := m.resolveHandler(token, sched.LendingProtocolIndex)
	if err != nil {
		m.store.Restore(owner, token, snapshot)
		return nil, err
	}
	if err := m.callExternal(func() error {
		return handler.WithdrawToken(ctx, owner, amount)
	}); err != nil {
		m.store.Restore(owner, token, snapshot)
		return nil, fmt.Errorf("token handler withdrawal failed: %w", err)
	}

	ev := types.NewEvent(types.EventBalanceUpdated, owner, token, sched.ScheduleID)
	ev.Amount = new(big.Int).Set(sched.TokenBalance)
	m.commit(ctx, []types.Event{ev}, []*types.Schedule{sched})
	return sched, nil
}

// SetPurchaseAmount updates the amount spent per purchase event.
func (m *Manager) SetPurchaseAmount(ctx context.Context, owner, token common.Address, index int, id common.Hash, amount *big.Int) (*types.Schedule, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	sched, err := m.store.SetPurchaseAmount(owner, token, index, id, amount)
	if err != nil {
		return nil, err
	}
	ev := types.NewEvent(types.EventScheduleUpdated, owner, token, sched.ScheduleID)
	ev.Amount = new(big.Int).Set(sched.PurchaseAmount)
	m.commit(ctx, []types.Event{ev}, []*types.Schedule{sched})
	return sched, nil
}

// SetPurchasePeriod updates the minimum seconds between purchases.
func (m *Manager) SetPurchasePeriod(ctx context.Context, owner, token common.Address, index int, id common.Hash, period uint64) (*types.Schedule, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	sched, err := m.store.SetPurchasePeriod(owner, token, index, id, period)
	if err != nil {
		return nil, err
	}
	ev := types.NewEvent(types.EventScheduleUpdated, owner, token, sched.ScheduleID)
	ev.Timestamp = sched.PurchasePeriod
	m.commit(ctx, []types.Event{ev}, []*types.Schedule{sched})
	return sched, nil
}

// BuyRbtc executes a single authorized purchase. Swapper-only.
func (m *Manager) BuyRbtc(ctx context.Context, caller, owner, token common.Address, index int, id common.Hash) (*types.PurchaseHistory, error) {
	if !m.registry.HasRole(handlers.RoleSwapper, caller) {
		return nil, types.ErrUnauthorizedSwapper
	}
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	snapshot := m.store.Snapshot(owner, token)
	var events []types.Event
	order, err := m.authorizer.Authorize(owner, token, index, id, m.now(), func(ev types.Event) {
		events = append(events, ev)
	})
	if err != nil {
		return nil, err
	}

	handler, err := m.resolveHandler(token, order.LendingProtocolIndex)
	if err != nil {
		m.store.Restore(owner, token, snapshot)
		return nil, err
	}

	fee := m.feeCalc.CalculateFee(order.Amount)
	net := new(big.Int).Sub(order.Amount, fee)

	var purchased *big.Int
	if err := m.callExternal(func() error {
		var buyErr error
		purchased, buyErr = handler.BuyAsset(ctx, order.Buyer, order.ScheduleID, net)
		return buyErr
	}); err != nil {
		m.store.Restore(owner, token, snapshot)
		return nil, fmt.Errorf("purchase executor failed: %w", err)
	}

	sched, err := m.store.Get(owner, token, index)
	if err != nil {
		// the schedule was just mutated in place; an error here is a bug
		m.logger.WithError(err).Error("failed to re-read schedule after purchase")
	}
	hist := &types.PurchaseHistory{
		ID:         uuid.New(),
		ScheduleID: order.ScheduleID,
		Buyer:      order.Buyer,
		Token:      token,
		Amount:     new(big.Int).Set(order.Amount),
		Purchased:  purchased,
		CreatedAt:  time.Now().UTC(),
	}
	ev := types.NewEvent(types.EventPurchaseExecuted, owner, token, order.ScheduleID)
	ev.Amount = new(big.Int).Set(order.Amount)
	events = append(events, ev)
	var scheds []*types.Schedule
	if sched != nil {
		scheds = append(scheds, sched)
	}
	m.commit(ctx, events, scheds)
	if m.db != nil {
		if err := m.db.AppendPurchases(ctx, []types.PurchaseHistory{*hist}); err != nil {
			m.logger.WithError(err).Error("failed to persist purchase history")
		}
	}
	return hist, nil
}

// BatchBuyRbtc validates and applies every entry of a batch sharing one
// token and one lending venue, then hands the whole batch to the executor in
// a single aggregate call. Any failure restores every touched schedule: the
// batch has no effect and the executor is never reached.
func (m *Manager) BatchBuyRbtc(ctx context.Context, caller common.Address, token common.Address, buyers []common.Address, indexes []int, ids []common.Hash, amounts []*big.Int, lendingProtocolIndex uint64) ([]*types.PurchaseHistory, error) {
	if !m.registry.HasRole(handlers.RoleSwapper, caller) {
		return nil, types.ErrUnauthorizedSwapper
	}
	if len(buyers) == 0 {
		return nil, types.ErrEmptyBatchPurchaseArrays
	}
	if len(indexes) != len(buyers) || len(ids) != len(buyers) || len(amounts) != len(buyers) {
		return nil, &types.BatchArraysLengthMismatchError{
			Buyers:  len(buyers),
			Indexes: len(indexes),
			IDs:     len(ids),
			Amounts: len(amounts),
		}
	}
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	// one snapshot per distinct buyer; restoring them undoes the whole batch
	snapshots := make(map[common.Address][]*types.Schedule)
	for _, buyer := range buyers {
		if _, ok := snapshots[buyer]; !ok {
			snapshots[buyer] = m.store.Snapshot(buyer, token)
		}
	}
	restore := func() {
		for buyer, snap := range snapshots {
			m.store.Restore(buyer, token, snap)
		}
	}

	entries := make([]types.BatchEntry, len(buyers))
	for i := range buyers {
		entries[i] = types.BatchEntry{
			Buyer:          buyers[i],
			ScheduleIndex:  indexes[i],
			ScheduleID:     ids[i],
			DeclaredAmount: amounts[i],
		}
	}

	var events []types.Event
	orders, err := m.authorizer.AuthorizeBatch(token, entries, m.now(), func(ev types.Event) {
		events = append(events, ev)
	})
	if err != nil {
		restore()
		return nil, err
	}

	handler, err := m.resolveHandler(token, lendingProtocolIndex)
	if err != nil {
		restore()
		return nil, err
	}

	grossAmounts := make([]*big.Int, len(orders))
	orderBuyers := make([]common.Address, len(orders))
	orderIDs := make([]common.Hash, len(orders))
	for i, order := range orders {
		grossAmounts[i] = order.Amount
		orderBuyers[i] = order.Buyer
		orderIDs[i] = order.ScheduleID
	}
	batchFees := m.feeCalc.CalculateBatchFee(grossAmounts)

	if err := m.callExternal(func() error {
		return handler.BatchBuyAsset(ctx, orderBuyers, orderIDs, batchFees.NetAmounts)
	}); err != nil {
		restore()
		return nil, fmt.Errorf("purchase executor failed: %w", err)
	}

	now := time.Now().UTC()
	history := make([]*types.PurchaseHistory, len(orders))
	persisted := make([]types.PurchaseHistory, len(orders))
	for i, order := range orders {
		history[i] = &types.PurchaseHistory{
			ID:         uuid.New(),
			ScheduleID: order.ScheduleID,
			Buyer:      order.Buyer,
			Token:      token,
			Amount:     new(big.Int).Set(order.Amount),
			Purchased:  new(big.Int).Set(batchFees.NetAmounts[i]),
			CreatedAt:  now,
		}
		persisted[i] = *history[i]
		ev := types.NewEvent(types.EventPurchaseExecuted, order.Buyer, token, order.ScheduleID)
		ev.Amount = new(big.Int).Set(order.Amount)
		events = append(events, ev)
	}

	var scheds []*types.Schedule
	for buyer := range snapshots {
		scheds = append(scheds, m.store.List(buyer, token)...)
	}
	m.commit(ctx, events, scheds)
	if m.db != nil {
		if err := m.db.AppendPurchases(ctx, persisted); err != nil {
			m.logger.WithError(err).Error("failed to persist batch purchase history")
		}
	}
	return history, nil
}

// AccruedInterest reports the interest claimable by the owner for one
// (token, lending protocol) pair without moving funds.
func (m *Manager) AccruedInterest(ctx context.Context, owner, token common.Address, lendingProtocolIndex uint64) (*big.Int, error) {
	if m.registry.ProtocolName(lendingProtocolIndex) == "" {
		return nil, types.ErrTokenDoesNotYieldInterest
	}
	handler, err := m.resolveHandler(token, lendingProtocolIndex)
	if err != nil {
		return nil, err
	}
	locked := m.store.LockedPrincipal(owner, token, lendingProtocolIndex)
	return handler.AccruedInterest(ctx, owner, locked)
}

// WithdrawInterest releases the interest accrued on the owner's locked
// principal for one (token, lending protocol) pair.
func (m *Manager) WithdrawInterest(ctx context.Context, owner, token common.Address, lendingProtocolIndex uint64) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()
	return m.withdrawInterestLocked(ctx, owner, token, lendingProtocolIndex)
}

func (m *Manager) withdrawInterestLocked(ctx context.Context, owner, token common.Address, lendingProtocolIndex uint64) error {
	if m.registry.ProtocolName(lendingProtocolIndex) == "" {
		return types.ErrTokenDoesNotYieldInterest
	}
	handler, err := m.resolveHandler(token, lendingProtocolIndex)
	if err != nil {
		return err
	}
	locked := m.store.LockedPrincipal(owner, token, lendingProtocolIndex)
	if locked.Sign() == 0 {
		return nil
	}
	return m.callExternal(func() error {
		return handler.WithdrawInterest(ctx, owner, locked)
	})
}

// WithdrawAllAccumulatedInterest walks the token x lending-protocol
// cross-product, skipping pairs with no registered handler, no yield venue
// or nothing locked. Skips are not errors.
func (m *Manager) WithdrawAllAccumulatedInterest(ctx context.Context, owner common.Address, tokens []common.Address, lendingProtocolIndexes []uint64) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	for _, token := range tokens {
		for _, idx := range lendingProtocolIndexes {
			if m.registry.ProtocolName(idx) == "" {
				continue
			}
			handler, ok := m.registry.GetTokenHandler(token, idx)
			if !ok {
				continue
			}
			locked := m.store.LockedPrincipal(owner, token, idx)
			if locked.Sign() == 0 {
				continue
			}
			if err := m.callExternal(func() error {
				return handler.WithdrawInterest(ctx, owner, locked)
			}); err != nil {
				return fmt.Errorf("interest withdrawal failed for token %s protocol %d: %w", token.Hex(), idx, err)
			}
		}
	}
	return nil
}

// AccumulatedRbtc reports the purchased asset an owner can withdraw.
func (m *Manager) AccumulatedRbtc(ctx context.Context, owner, token common.Address, lendingProtocolIndex uint64) (*big.Int, error) {
	handler, err := m.resolveHandler(token, lendingProtocolIndex)
	if err != nil {
		return nil, err
	}
	return handler.AccumulatedAssetBalance(ctx, owner)
}

// WithdrawRbtc releases the purchased asset held for the owner by one
// handler.
func (m *Manager) WithdrawRbtc(ctx context.Context, owner, token common.Address, lendingProtocolIndex uint64) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	handler, err := m.resolveHandler(token, lendingProtocolIndex)
	if err != nil {
		return err
	}
	return m.callExternal(func() error {
		return handler.WithdrawAccumulatedAsset(ctx, owner)
	})
}

// WithdrawAllAccumulatedRbtc walks the token x lending-protocol
// cross-product, skipping unregistered pairs and empty balances.
func (m *Manager) WithdrawAllAccumulatedRbtc(ctx context.Context, owner common.Address, tokens []common.Address, lendingProtocolIndexes []uint64) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	for _, token := range tokens {
		for _, idx := range lendingProtocolIndexes {
			handler, ok := m.registry.GetTokenHandler(token, idx)
			if !ok {
				continue
			}
			balance, err := handler.AccumulatedAssetBalance(ctx, owner)
			if err != nil {
				return fmt.Errorf("asset balance lookup failed for token %s protocol %d: %w", token.Hex(), idx, err)
			}
			if balance.Sign() == 0 {
				continue
			}
			if err := m.callExternal(func() error {
				return handler.WithdrawAccumulatedAsset(ctx, owner)
			}); err != nil {
				return fmt.Errorf("asset withdrawal failed for token %s protocol %d: %w", token.Hex(), idx, err)
			}
		}
	}
	return nil
}

// GetSchedule returns a copy of one schedule.
func (m *Manager) GetSchedule(owner, token common.Address, index int) (*types.Schedule, error) {
	return m.store.Get(owner, token, index)
}

// GetSchedules returns copies of all the owner's schedules for a token.
func (m *Manager) GetSchedules(owner, token common.Address) []*types.Schedule {
	return m.store.List(owner, token)
}

// Admin setters. All are gated on the admin role and journal the change.

func (m *Manager) requireAdmin(caller common.Address) error {
	if !m.registry.HasRole(handlers.RoleAdmin, caller) {
		return types.ErrUnauthorizedAdmin
	}
	return nil
}

func (m *Manager) SetMinPurchasePeriod(ctx context.Context, caller common.Address, period uint64) error {
	if err := m.requireAdmin(caller); err != nil {
		return err
	}
	m.limits.SetMinPurchasePeriod(period)
	ev := types.NewEvent(types.EventLimitsUpdated, caller, common.Address{}, common.Hash{})
	ev.Timestamp = period
	m.commit(ctx, []types.Event{ev}, nil)
	return nil
}

func (m *Manager) SetMaxSchedulesPerToken(ctx context.Context, caller common.Address, max int) error {
	if err := m.requireAdmin(caller); err != nil {
		return err
	}
	m.limits.SetMaxSchedulesPerToken(max)
	ev := types.NewEvent(types.EventLimitsUpdated, caller, common.Address{}, common.Hash{})
	ev.Timestamp = uint64(max)
	m.commit(ctx, []types.Event{ev}, nil)
	return nil
}

func (m *Manager) SetMinPurchaseAmount(ctx context.Context, caller common.Address, amount *big.Int) error {
	if err := m.requireAdmin(caller); err != nil {
		return err
	}
	m.limits.SetMinPurchaseAmount(amount)
	ev := types.NewEvent(types.EventLimitsUpdated, caller, common.Address{}, common.Hash{})
	ev.Amount = new(big.Int).Set(amount)
	m.commit(ctx, []types.Event{ev}, nil)
	return nil
}

func (m *Manager) SetMinPurchaseAmountForToken(ctx context.Context, caller, token common.Address, amount *big.Int) error {
	if err := m.requireAdmin(caller); err != nil {
		return err
	}
	m.limits.SetMinPurchaseAmountForToken(token, amount)
	ev := types.NewEvent(types.EventLimitsUpdated, caller, token, common.Hash{})
	ev.Amount = new(big.Int).Set(amount)
	m.commit(ctx, []types.Event{ev}, nil)
	return nil
}

func (m *Manager) SetFeeRates(ctx context.Context, caller common.Address, minRate, maxRate uint64) error {
	if err := m.requireAdmin(caller); err != nil {
		return err
	}
	if err := m.feeCalc.SetFeeRates(minRate, maxRate); err != nil {
		return err
	}
	m.commit(ctx, []types.Event{types.NewEvent(types.EventFeeParamsUpdated, caller, common.Address{}, common.Hash{})}, nil)
	return nil
}

func (m *Manager) SetFeeBounds(ctx context.Context, caller common.Address, lower, upper *big.Int) error {
	if err := m.requireAdmin(caller); err != nil {
		return err
	}
	if err := m.feeCalc.SetFeeBounds(lower, upper); err != nil {
		return err
	}
	m.commit(ctx, []types.Event{types.NewEvent(types.EventFeeParamsUpdated, caller, common.Address{}, common.Hash{})}, nil)
	return nil
}
