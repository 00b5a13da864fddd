package dca

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpiratt/dca-protocol/internal/types"
)

var (
	testOwner = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testToken = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func testLimits() *Limits {
	return NewLimits(3600, 5, big.NewInt(100))
}

func mustCreate(t *testing.T, s *Store, deposit, amount int64, period uint64) (*types.Schedule, int) {
	t.Helper()
	sched, index, err := s.Create(testOwner, testToken, big.NewInt(deposit), big.NewInt(amount), period, 0, 1_700_000_000)
	require.NoError(t, err)
	return sched, index
}

func TestCreateValidation(t *testing.T) {
	s := NewStore(testLimits())

	_, _, err := s.Create(testOwner, testToken, big.NewInt(0), big.NewInt(100), 3600, 0, 1)
	assert.ErrorIs(t, err, types.ErrDepositAmountMustBePositive)

	_, _, err = s.Create(testOwner, testToken, big.NewInt(1000), big.NewInt(100), 60, 0, 1)
	var periodErr *types.PurchasePeriodTooShortError
	assert.ErrorAs(t, err, &periodErr)

	// below the configured minimum
	_, _, err = s.Create(testOwner, testToken, big.NewInt(1000), big.NewInt(50), 3600, 0, 1)
	var amountErr *types.PurchaseAmountOutOfBoundsError
	assert.ErrorAs(t, err, &amountErr)

	// above half the deposit, so fewer than two purchases would fit
	_, _, err = s.Create(testOwner, testToken, big.NewInt(1000), big.NewInt(501), 3600, 0, 1)
	assert.ErrorAs(t, err, &amountErr)

	// exactly half is allowed
	_, _, err = s.Create(testOwner, testToken, big.NewInt(1000), big.NewInt(500), 3600, 0, 1)
	assert.NoError(t, err)
}

func TestCreateAssignsDistinctIDs(t *testing.T) {
	s := NewStore(testLimits())

	a, ia := mustCreate(t, s, 1000, 100, 3600)
	b, ib := mustCreate(t, s, 1000, 100, 3600)

	assert.Equal(t, 0, ia)
	assert.Equal(t, 1, ib)
	assert.NotEqual(t, a.ScheduleID, b.ScheduleID)
}

func TestMaxSchedulesPerToken(t *testing.T) {
	s := NewStore(NewLimits(3600, 2, big.NewInt(100)))

	mustCreate(t, s, 1000, 100, 3600)
	mustCreate(t, s, 1000, 100, 3600)

	_, _, err := s.Create(testOwner, testToken, big.NewInt(1000), big.NewInt(100), 3600, 0, 1)
	var maxErr *types.MaxSchedulesReachedError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 2, maxErr.Max)
}

func TestDeleteSwapRemoves(t *testing.T) {
	s := NewStore(testLimits())

	a, _ := mustCreate(t, s, 1000, 100, 3600)
	b, _ := mustCreate(t, s, 2000, 200, 3600)
	c, _ := mustCreate(t, s, 3000, 300, 3600)

	removed, err := s.Delete(testOwner, testToken, 0, a.ScheduleID)
	require.NoError(t, err)
	assert.Equal(t, a.ScheduleID, removed.ScheduleID)

	// the last schedule moved into slot 0, keeping its own identity
	got, err := s.Get(testOwner, testToken, 0)
	require.NoError(t, err)
	assert.Equal(t, c.ScheduleID, got.ScheduleID)

	got, err = s.Get(testOwner, testToken, 1)
	require.NoError(t, err)
	assert.Equal(t, b.ScheduleID, got.ScheduleID)

	assert.Len(t, s.List(testOwner, testToken), 2)
}

func TestIndexIDMismatchAfterDelete(t *testing.T) {
	s := NewStore(testLimits())

	a, _ := mustCreate(t, s, 1000, 100, 3600)
	mustCreate(t, s, 2000, 200, 3600)
	c, _ := mustCreate(t, s, 3000, 300, 3600)

	_, err := s.Delete(testOwner, testToken, 0, a.ScheduleID)
	require.NoError(t, err)

	// a stale (index, id) pair from before the delete is rejected
	_, err = s.Deposit(testOwner, testToken, 2, c.ScheduleID, big.NewInt(1))
	var idxErr *types.InexistentScheduleIndexError
	assert.ErrorAs(t, err, &idxErr)

	_, err = s.Deposit(testOwner, testToken, 0, a.ScheduleID, big.NewInt(1))
	var mismatchErr *types.ScheduleIDAndIndexMismatchError
	assert.ErrorAs(t, err, &mismatchErr)

	// the moved schedule is reachable under its new index
	_, err = s.Deposit(testOwner, testToken, 0, c.ScheduleID, big.NewInt(1))
	assert.NoError(t, err)
}

func TestIndexCheckedBeforeID(t *testing.T) {
	s := NewStore(testLimits())
	a, _ := mustCreate(t, s, 1000, 100, 3600)

	// out-of-bounds wins over any id comparison
	_, err := s.Deposit(testOwner, testToken, 7, a.ScheduleID, big.NewInt(1))
	var idxErr *types.InexistentScheduleIndexError
	require.ErrorAs(t, err, &idxErr)
	assert.Equal(t, 7, idxErr.Index)
	assert.Equal(t, 1, idxErr.Length)
}

func TestWithdrawRejectsOverdraft(t *testing.T) {
	s := NewStore(testLimits())
	a, _ := mustCreate(t, s, 1000, 100, 3600)

	_, err := s.Withdraw(testOwner, testToken, 0, a.ScheduleID, big.NewInt(1001))
	var balErr *types.WithdrawalBalanceNotEnoughError
	require.ErrorAs(t, err, &balErr)
	assert.Equal(t, "1000", balErr.Balance.String())

	got, err := s.Withdraw(testOwner, testToken, 0, a.ScheduleID, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, "0", got.TokenBalance.String())
}

func TestUpdateZeroValuesLeaveFieldsUnchanged(t *testing.T) {
	s := NewStore(testLimits())
	a, _ := mustCreate(t, s, 1000, 100, 3600)

	got, err := s.Update(testOwner, testToken, 0, a.ScheduleID, nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "1000", got.TokenBalance.String())
	assert.Equal(t, "100", got.PurchaseAmount.String())
	assert.Equal(t, uint64(3600), got.PurchasePeriod)

	got, err = s.Update(testOwner, testToken, 0, a.ScheduleID, big.NewInt(500), big.NewInt(200), 7200)
	require.NoError(t, err)
	assert.Equal(t, "1500", got.TokenBalance.String())
	assert.Equal(t, "200", got.PurchaseAmount.String())
	assert.Equal(t, uint64(7200), got.PurchasePeriod)

	// id survives every update
	assert.Equal(t, a.ScheduleID, got.ScheduleID)
}

func TestUpdateRevalidatesAmountAgainstNewBalance(t *testing.T) {
	s := NewStore(testLimits())
	a, _ := mustCreate(t, s, 1000, 500, 3600)

	// raising the amount beyond half the post-deposit balance fails
	_, err := s.Update(testOwner, testToken, 0, a.ScheduleID, big.NewInt(100), big.NewInt(600), 0)
	var amountErr *types.PurchaseAmountOutOfBoundsError
	require.ErrorAs(t, err, &amountErr)

	// failed update leaves the schedule untouched
	got, err := s.Get(testOwner, testToken, 0)
	require.NoError(t, err)
	assert.Equal(t, "1000", got.TokenBalance.String())
	assert.Equal(t, "500", got.PurchaseAmount.String())
}

func TestPerTokenMinimumOverride(t *testing.T) {
	limits := testLimits()
	limits.SetMinPurchaseAmountForToken(testToken, big.NewInt(300))
	s := NewStore(limits)

	_, _, err := s.Create(testOwner, testToken, big.NewInt(1000), big.NewInt(200), 3600, 0, 1)
	var amountErr *types.PurchaseAmountOutOfBoundsError
	assert.ErrorAs(t, err, &amountErr)

	other := common.HexToAddress("0x3333333333333333333333333333333333333333")
	_, _, err = s.Create(testOwner, other, big.NewInt(1000), big.NewInt(200), 3600, 0, 1)
	assert.NoError(t, err)
}

func TestLockedPrincipalSumsPerVenue(t *testing.T) {
	s := NewStore(testLimits())

	_, _, err := s.Create(testOwner, testToken, big.NewInt(1000), big.NewInt(100), 3600, 1, 1)
	require.NoError(t, err)
	_, _, err = s.Create(testOwner, testToken, big.NewInt(500), big.NewInt(100), 3600, 1, 1)
	require.NoError(t, err)
	_, _, err = s.Create(testOwner, testToken, big.NewInt(700), big.NewInt(100), 3600, 2, 1)
	require.NoError(t, err)

	assert.Equal(t, "1500", s.LockedPrincipal(testOwner, testToken, 1).String())
	assert.Equal(t, "700", s.LockedPrincipal(testOwner, testToken, 2).String())
	assert.Equal(t, "0", s.LockedPrincipal(testOwner, testToken, 3).String())
}

func TestSnapshotRestore(t *testing.T) {
	s := NewStore(testLimits())
	a, _ := mustCreate(t, s, 1000, 100, 3600)

	snap := s.Snapshot(testOwner, testToken)

	_, err := s.Withdraw(testOwner, testToken, 0, a.ScheduleID, big.NewInt(900))
	require.NoError(t, err)
	_, _, err = s.Create(testOwner, testToken, big.NewInt(2000), big.NewInt(200), 3600, 0, 2)
	require.NoError(t, err)

	s.Restore(testOwner, testToken, snap)

	list := s.List(testOwner, testToken)
	require.Len(t, list, 1)
	assert.Equal(t, "1000", list[0].TokenBalance.String())
}
