package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnauthorizedSwapper         = errors.New("caller does not hold the swapper role")
	ErrUnauthorizedAdmin           = errors.New("caller does not hold the admin role")
	ErrTokenNotAccepted            = errors.New("no handler registered for token and lending protocol")
	ErrTokenDoesNotYieldInterest   = errors.New("token is not deposited in a lending protocol")
	ErrEmptyBatchPurchaseArrays    = errors.New("batch purchase arrays are empty")
	ErrDepositAmountMustBePositive = errors.New("deposit amount must be greater than zero")
	ErrReentrantCall               = errors.New("re-entrant call into schedule manager")
)

// InexistentScheduleIndexError is returned when an index is out of bounds
// for the (owner, token) schedule list, before any further validation.
type InexistentScheduleIndexError struct {
	Index  int
	Length int
}

func (e *InexistentScheduleIndexError) Error() string {
	return fmt.Sprintf("inexistent schedule index %d, list has %d schedules", e.Index, e.Length)
}

// ScheduleIDAndIndexMismatchError is returned when the caller's cached
// (index, id) pair no longer refers to the same logical schedule.
type ScheduleIDAndIndexMismatchError struct {
	Index    int
	Expected common.Hash
	Actual   common.Hash
}

func (e *ScheduleIDAndIndexMismatchError) Error() string {
	return fmt.Sprintf("schedule id and index mismatch at index %d: expected %s, found %s",
		e.Index, e.Expected.Hex(), e.Actual.Hex())
}

// PurchasePeriodNotElapsedError reports how long the caller has to wait
// before the schedule is due again.
type PurchasePeriodNotElapsedError struct {
	Remaining uint64
}

func (e *PurchasePeriodNotElapsedError) Error() string {
	return fmt.Sprintf("cannot buy before purchase period has elapsed, %d seconds remaining", e.Remaining)
}

// ScheduleBalanceNotEnoughError is returned when a schedule's balance cannot
// cover its purchase amount. It carries enough context for the off-chain
// swapper to drop the entry and resubmit.
type ScheduleBalanceNotEnoughError struct {
	Index      int
	ScheduleID common.Hash
	Token      common.Address
	Balance    *big.Int
}

func (e *ScheduleBalanceNotEnoughError) Error() string {
	return fmt.Sprintf("schedule %s at index %d has insufficient balance %s for token %s",
		e.ScheduleID.Hex(), e.Index, e.Balance.String(), e.Token.Hex())
}

// WithdrawalBalanceNotEnoughError is returned when a withdrawal exceeds the
// schedule's remaining balance.
type WithdrawalBalanceNotEnoughError struct {
	Requested *big.Int
	Balance   *big.Int
}

func (e *WithdrawalBalanceNotEnoughError) Error() string {
	return fmt.Sprintf("withdrawal of %s exceeds schedule balance %s", e.Requested.String(), e.Balance.String())
}

// PurchaseAmountOutOfBoundsError is returned when a purchase amount is below
// the configured minimum or above half the schedule balance.
type PurchaseAmountOutOfBoundsError struct {
	Amount  *big.Int
	Minimum *big.Int
	Maximum *big.Int
}

func (e *PurchaseAmountOutOfBoundsError) Error() string {
	return fmt.Sprintf("purchase amount %s out of bounds [%s, %s]",
		e.Amount.String(), e.Minimum.String(), e.Maximum.String())
}

// PurchasePeriodTooShortError is returned when a period is below the global
// minimum.
type PurchasePeriodTooShortError struct {
	Period  uint64
	Minimum uint64
}

func (e *PurchasePeriodTooShortError) Error() string {
	return fmt.Sprintf("purchase period %d below minimum %d", e.Period, e.Minimum)
}

// MaxSchedulesReachedError is returned when the per-(owner, token) cap is hit.
type MaxSchedulesReachedError struct {
	Max int
}

func (e *MaxSchedulesReachedError) Error() string {
	return fmt.Sprintf("maximum of %d schedules per token reached", e.Max)
}

// BatchArraysLengthMismatchError is returned when the parallel arrays of a
// batch purchase disagree in length.
type BatchArraysLengthMismatchError struct {
	Buyers  int
	Indexes int
	IDs     int
	Amounts int
}

func (e *BatchArraysLengthMismatchError) Error() string {
	return fmt.Sprintf("batch purchase arrays length mismatch: buyers=%d indexes=%d ids=%d amounts=%d",
		e.Buyers, e.Indexes, e.IDs, e.Amounts)
}

// PurchaseAmountMismatchError fails the whole batch when the declared amount
// of one entry disagrees with the schedule's actual purchase amount.
type PurchaseAmountMismatchError struct {
	Entry    int
	Declared *big.Int
	Actual   *big.Int
}

func (e *PurchaseAmountMismatchError) Error() string {
	return fmt.Sprintf("purchase amount mismatch at batch entry %d: declared %s, schedule has %s",
		e.Entry, e.Declared.String(), e.Actual.String())
}

// FeeBoundsError is returned by fee parameter setters when the rates or the
// interpolation bounds are inverted.
type FeeBoundsError struct {
	Reason string
}

func (e *FeeBoundsError) Error() string {
	return fmt.Sprintf("invalid fee parameters: %s", e.Reason)
}
