package dca

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/webpiratt/dca-protocol/internal/types"
)

// Authorizer validates purchase requests against a schedule's identity,
// timing and balance invariants and applies the resulting state change to
// the schedule. It never moves funds itself: the orchestrator takes the
// returned order to the registered handler, which lets batch callers run
// every check before any external interaction.
type Authorizer struct {
	store *Store
}

func NewAuthorizer(store *Store) *Authorizer {
	return &Authorizer{store: store}
}

// nextTimestamp snaps the schedule to the nearest period boundary not
// exceeding now. A schedule that ran dry and was later replenished resumes
// on its original phase instead of drifting, and never jumps ahead of now.
func nextTimestamp(last, period, now uint64) uint64 {
	if last == 0 {
		return now
	}
	periodsElapsed := (now - last) / period
	return last + periodsElapsed*period
}

// Authorize runs the single-purchase check-and-apply as one atomic step
// against the store. On success the schedule's balance is debited, its
// timestamp advanced, and the emitted facts describe both changes.
func (a *Authorizer) Authorize(owner, token common.Address, index int, id common.Hash, now uint64, emit func(types.Event)) (*types.PurchaseOrder, error) {
	var order *types.PurchaseOrder
	err := a.store.mutate(owner, token, index, id, func(sched *types.Schedule) error {
		if sched.LastPurchaseTimestamp != 0 {
			elapsed := now - sched.LastPurchaseTimestamp
			if elapsed < sched.PurchasePeriod {
				return &types.PurchasePeriodNotElapsedError{Remaining: sched.PurchasePeriod - elapsed}
			}
		}
		if sched.PurchaseAmount.Cmp(sched.TokenBalance) > 0 {
			return &types.ScheduleBalanceNotEnoughError{
				Index:      index,
				ScheduleID: sched.ScheduleID,
				Token:      token,
				Balance:    new(big.Int).Set(sched.TokenBalance),
			}
		}

		sched.TokenBalance = new(big.Int).Sub(sched.TokenBalance, sched.PurchaseAmount)
		ev := types.NewEvent(types.EventBalanceUpdated, owner, token, sched.ScheduleID)
		ev.Amount = new(big.Int).Set(sched.TokenBalance)
		emit(ev)

		sched.LastPurchaseTimestamp = nextTimestamp(sched.LastPurchaseTimestamp, sched.PurchasePeriod, now)
		ev = types.NewEvent(types.EventTimestampUpdated, owner, token, sched.ScheduleID)
		ev.Timestamp = sched.LastPurchaseTimestamp
		emit(ev)

		order = &types.PurchaseOrder{
			Buyer:                owner,
			Token:                token,
			ScheduleID:           sched.ScheduleID,
			Amount:               new(big.Int).Set(sched.PurchaseAmount),
			LendingProtocolIndex: sched.LendingProtocolIndex,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// AuthorizeBatch applies the single-purchase check to every entry, then
// compares the computed amount against the swapper's declared amount. Any
// failure aborts with the offending entry's error; the caller owns the
// snapshot that makes the batch all-or-nothing.
func (a *Authorizer) AuthorizeBatch(token common.Address, entries []types.BatchEntry, now uint64, emit func(types.Event)) ([]*types.PurchaseOrder, error) {
	if len(entries) == 0 {
		return nil, types.ErrEmptyBatchPurchaseArrays
	}
	orders := make([]*types.PurchaseOrder, 0, len(entries))
	for i, entry := range entries {
		order, err := a.Authorize(entry.Buyer, token, entry.ScheduleIndex, entry.ScheduleID, now, emit)
		if err != nil {
			return nil, err
		}
		if entry.DeclaredAmount == nil || order.Amount.Cmp(entry.DeclaredAmount) != 0 {
			declared := new(big.Int)
			if entry.DeclaredAmount != nil {
				declared.Set(entry.DeclaredAmount)
			}
			return nil, &types.PurchaseAmountMismatchError{
				Entry:    i,
				Declared: declared,
				Actual:   order.Amount,
			}
		}
		orders = append(orders, order)
	}
	return orders, nil
}
