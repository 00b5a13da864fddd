package dca

import (
	"context"
	"io"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpiratt/dca-protocol/internal/fees"
	"github.com/webpiratt/dca-protocol/internal/handlers"
	"github.com/webpiratt/dca-protocol/internal/types"
)

var (
	testAdmin   = common.HexToAddress("0xaaaa0000000000000000000000000000000000aa")
	testSwapper = common.HexToAddress("0xbbbb0000000000000000000000000000000000bb")
	testBuyer2  = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

type managerFixture struct {
	manager  *Manager
	handler  *handlers.MemoryHandler
	registry *handlers.Registry
	store    *Store
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	limits := NewLimits(3600, 5, big.NewInt(100))
	// flat 1% fee keeps the arithmetic readable
	calc, err := fees.NewCalculator(fees.Params{
		MinFeeRate: 100,
		MaxFeeRate: 100,
		LowerBound: big.NewInt(100),
		UpperBound: big.NewInt(1_000_000),
	}, nil)
	require.NoError(t, err)

	registry := handlers.NewRegistry()
	registry.GrantRole(handlers.RoleAdmin, testAdmin)
	registry.GrantRole(handlers.RoleSwapper, testSwapper)
	registry.SetProtocolName(1, "tropykus")

	handler := handlers.NewMemoryHandler(big.NewInt(1), big.NewInt(1), 500)
	registry.RegisterTokenHandler(testToken, 0, handler)
	registry.RegisterTokenHandler(testToken, 1, handler)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := NewStore(limits)
	m := NewManager(store, limits, calc, registry, nil, logger)
	m.now = func() uint64 { return 1_700_000_000 }

	return &managerFixture{manager: m, handler: handler, registry: registry, store: store}
}

func (f *managerFixture) createSchedule(t *testing.T, owner common.Address, deposit, amount int64, lendingIdx uint64) (*types.Schedule, int) {
	t.Helper()
	sched, index, err := f.manager.CreateSchedule(context.Background(), owner, testToken, big.NewInt(deposit), big.NewInt(amount), 3600, lendingIdx)
	require.NoError(t, err)
	return sched, index
}

func TestCreateScheduleForwardsDeposit(t *testing.T) {
	f := newManagerFixture(t)

	sched, index, err := f.manager.CreateSchedule(context.Background(), testOwner, testToken, big.NewInt(1000), big.NewInt(200), 3600, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, index)
	assert.Equal(t, "1000", sched.TokenBalance.String())
	assert.Equal(t, "1000", f.handler.DepositBalance(testOwner).String())
}

func TestCreateScheduleUnknownToken(t *testing.T) {
	f := newManagerFixture(t)

	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	_, _, err := f.manager.CreateSchedule(context.Background(), testOwner, other, big.NewInt(1000), big.NewInt(200), 3600, 0)
	assert.ErrorIs(t, err, types.ErrTokenNotAccepted)
}

func TestCreateScheduleRolledBackOnDepositFailure(t *testing.T) {
	f := newManagerFixture(t)

	failing := &failingHandler{MemoryHandler: handlers.NewMemoryHandler(big.NewInt(1), big.NewInt(1), 0)}
	badToken := common.HexToAddress("0x7777777777777777777777777777777777777777")
	f.registry.RegisterTokenHandler(badToken, 0, failing)

	_, _, err := f.manager.CreateSchedule(context.Background(), testOwner, badToken, big.NewInt(1000), big.NewInt(200), 3600, 0)
	require.Error(t, err)
	assert.Empty(t, f.manager.GetSchedules(testOwner, badToken))
}

type failingHandler struct {
	*handlers.MemoryHandler
}

func (h *failingHandler) DepositToken(context.Context, common.Address, *big.Int) error {
	return assert.AnError
}

func TestDeleteScheduleRefundsBalance(t *testing.T) {
	f := newManagerFixture(t)
	sched, index := f.createSchedule(t, testOwner, 1000, 200, 0)

	require.NoError(t, f.manager.DeleteSchedule(context.Background(), testOwner, testToken, index, sched.ScheduleID))

	assert.Empty(t, f.manager.GetSchedules(testOwner, testToken))
	// refund drains the handler's holding back to the owner
	assert.Equal(t, "0", f.handler.DepositBalance(testOwner).String())
}

func TestBuyRbtcRequiresSwapperRole(t *testing.T) {
	f := newManagerFixture(t)
	sched, index := f.createSchedule(t, testOwner, 1000, 200, 0)

	_, err := f.manager.BuyRbtc(context.Background(), testOwner, testOwner, testToken, index, sched.ScheduleID)
	require.ErrorIs(t, err, types.ErrUnauthorizedSwapper)

	got, err := f.manager.GetSchedule(testOwner, testToken, index)
	require.NoError(t, err)
	assert.Equal(t, "1000", got.TokenBalance.String())
}

func TestBuyRbtcDebitsAndSettles(t *testing.T) {
	f := newManagerFixture(t)
	sched, index := f.createSchedule(t, testOwner, 1000, 200, 0)

	hist, err := f.manager.BuyRbtc(context.Background(), testSwapper, testOwner, testToken, index, sched.ScheduleID)
	require.NoError(t, err)

	// 1% fee on 200 leaves a net of 198
	assert.Equal(t, "200", hist.Amount.String())
	assert.Equal(t, "198", hist.Purchased.String())

	got, err := f.manager.GetSchedule(testOwner, testToken, index)
	require.NoError(t, err)
	assert.Equal(t, "800", got.TokenBalance.String())
	assert.Equal(t, uint64(1_700_000_000), got.LastPurchaseTimestamp)

	assert.Equal(t, "802", f.handler.DepositBalance(testOwner).String())
	balance, err := f.manager.AccumulatedRbtc(context.Background(), testOwner, testToken, 0)
	require.NoError(t, err)
	assert.Equal(t, "198", balance.String())
}

func TestBuyRbtcPeriodEnforced(t *testing.T) {
	f := newManagerFixture(t)
	sched, index := f.createSchedule(t, testOwner, 1000, 200, 0)

	_, err := f.manager.BuyRbtc(context.Background(), testSwapper, testOwner, testToken, index, sched.ScheduleID)
	require.NoError(t, err)

	_, err = f.manager.BuyRbtc(context.Background(), testSwapper, testOwner, testToken, index, sched.ScheduleID)
	var periodErr *types.PurchasePeriodNotElapsedError
	assert.ErrorAs(t, err, &periodErr)
}

func TestBatchBuyRbtcSettlesAllEntries(t *testing.T) {
	f := newManagerFixture(t)
	s1, _ := f.createSchedule(t, testOwner, 1000, 200, 0)
	s2, _ := f.createSchedule(t, testBuyer2, 600, 300, 0)

	history, err := f.manager.BatchBuyRbtc(context.Background(), testSwapper, testToken,
		[]common.Address{testOwner, testBuyer2},
		[]int{0, 0},
		[]common.Hash{s1.ScheduleID, s2.ScheduleID},
		[]*big.Int{big.NewInt(200), big.NewInt(300)},
		0)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, 1, f.handler.BatchBuyCalls())
	assert.Equal(t, "198", history[0].Purchased.String())
	assert.Equal(t, "297", history[1].Purchased.String())

	got, err := f.manager.GetSchedule(testBuyer2, testToken, 0)
	require.NoError(t, err)
	assert.Equal(t, "300", got.TokenBalance.String())
}

func TestBatchBuyRbtcValidatesShape(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.BatchBuyRbtc(context.Background(), testSwapper, testToken, nil, nil, nil, nil, 0)
	assert.ErrorIs(t, err, types.ErrEmptyBatchPurchaseArrays)

	_, err = f.manager.BatchBuyRbtc(context.Background(), testSwapper, testToken,
		[]common.Address{testOwner}, []int{0, 1}, []common.Hash{{}}, []*big.Int{big.NewInt(1)}, 0)
	var lenErr *types.BatchArraysLengthMismatchError
	assert.ErrorAs(t, err, &lenErr)
}

func TestBatchBuyRbtcAllOrNothing(t *testing.T) {
	f := newManagerFixture(t)
	s1, _ := f.createSchedule(t, testOwner, 1000, 200, 0)
	s2, _ := f.createSchedule(t, testBuyer2, 600, 300, 0)

	// second entry declares the wrong amount; the first entry's debit must
	// not survive the failure
	_, err := f.manager.BatchBuyRbtc(context.Background(), testSwapper, testToken,
		[]common.Address{testOwner, testBuyer2},
		[]int{0, 0},
		[]common.Hash{s1.ScheduleID, s2.ScheduleID},
		[]*big.Int{big.NewInt(200), big.NewInt(999)},
		0)
	var mismatch *types.PurchaseAmountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1, mismatch.Entry)

	got, err := f.manager.GetSchedule(testOwner, testToken, 0)
	require.NoError(t, err)
	assert.Equal(t, "1000", got.TokenBalance.String())
	assert.Equal(t, uint64(0), got.LastPurchaseTimestamp)

	got, err = f.manager.GetSchedule(testBuyer2, testToken, 0)
	require.NoError(t, err)
	assert.Equal(t, "600", got.TokenBalance.String())

	// the executor was never reached
	assert.Equal(t, 0, f.handler.BatchBuyCalls())
}

type reentrantHandler struct {
	*handlers.MemoryHandler
	manager *Manager
	callErr error
}

func (h *reentrantHandler) DepositToken(ctx context.Context, user common.Address, amount *big.Int) error {
	_, _, h.callErr = h.manager.CreateSchedule(ctx, user, testToken, big.NewInt(1000), big.NewInt(200), 3600, 0)
	return h.MemoryHandler.DepositToken(ctx, user, amount)
}

func TestHandlerCallbackRejected(t *testing.T) {
	f := newManagerFixture(t)

	reentrant := &reentrantHandler{
		MemoryHandler: handlers.NewMemoryHandler(big.NewInt(1), big.NewInt(1), 0),
		manager:       f.manager,
	}
	loopToken := common.HexToAddress("0x8888888888888888888888888888888888888888")
	f.registry.RegisterTokenHandler(loopToken, 0, reentrant)

	_, _, err := f.manager.CreateSchedule(context.Background(), testOwner, loopToken, big.NewInt(1000), big.NewInt(200), 3600, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, reentrant.callErr, types.ErrReentrantCall)
}

func TestWithdrawInterest(t *testing.T) {
	f := newManagerFixture(t)
	f.createSchedule(t, testOwner, 1000, 200, 1)

	// protocol 0 is the no-lending slot
	err := f.manager.WithdrawInterest(context.Background(), testOwner, testToken, 0)
	assert.ErrorIs(t, err, types.ErrTokenDoesNotYieldInterest)

	interest, err := f.manager.AccruedInterest(context.Background(), testOwner, testToken, 1)
	require.NoError(t, err)
	// 5% of the 1000 locked
	assert.Equal(t, "50", interest.String())

	require.NoError(t, f.manager.WithdrawInterest(context.Background(), testOwner, testToken, 1))
	assert.Equal(t, "50", f.handler.InterestPaid(testOwner).String())
}

func TestWithdrawInterestNothingLockedIsNoOp(t *testing.T) {
	f := newManagerFixture(t)

	require.NoError(t, f.manager.WithdrawInterest(context.Background(), testOwner, testToken, 1))
	assert.Equal(t, "0", f.handler.InterestPaid(testOwner).String())
}

func TestWithdrawAllAccumulatedInterestSkips(t *testing.T) {
	f := newManagerFixture(t)
	f.createSchedule(t, testOwner, 1000, 200, 1)

	unknown := common.HexToAddress("0x5555555555555555555555555555555555555555")
	// unknown tokens, the no-lending slot and unnamed venues are skipped,
	// not failed
	err := f.manager.WithdrawAllAccumulatedInterest(context.Background(), testOwner,
		[]common.Address{testToken, unknown}, []uint64{0, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, "50", f.handler.InterestPaid(testOwner).String())
}

func TestWithdrawAllAccumulatedRbtc(t *testing.T) {
	f := newManagerFixture(t)
	sched, index := f.createSchedule(t, testOwner, 1000, 200, 0)

	_, err := f.manager.BuyRbtc(context.Background(), testSwapper, testOwner, testToken, index, sched.ScheduleID)
	require.NoError(t, err)

	unknown := common.HexToAddress("0x5555555555555555555555555555555555555555")
	err = f.manager.WithdrawAllAccumulatedRbtc(context.Background(), testOwner,
		[]common.Address{testToken, unknown}, []uint64{0, 9})
	require.NoError(t, err)

	balance, err := f.manager.AccumulatedRbtc(context.Background(), testOwner, testToken, 0)
	require.NoError(t, err)
	assert.Equal(t, "0", balance.String())
}

func TestAdminSettersGated(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.manager.SetMinPurchasePeriod(ctx, testOwner, 60), types.ErrUnauthorizedAdmin)
	assert.ErrorIs(t, f.manager.SetMaxSchedulesPerToken(ctx, testOwner, 10), types.ErrUnauthorizedAdmin)
	assert.ErrorIs(t, f.manager.SetMinPurchaseAmount(ctx, testOwner, big.NewInt(1)), types.ErrUnauthorizedAdmin)
	assert.ErrorIs(t, f.manager.SetFeeRates(ctx, testOwner, 1, 2), types.ErrUnauthorizedAdmin)
	assert.ErrorIs(t, f.manager.SetFeeBounds(ctx, testOwner, big.NewInt(1), big.NewInt(2)), types.ErrUnauthorizedAdmin)

	require.NoError(t, f.manager.SetMinPurchasePeriod(ctx, testAdmin, 7200))
	_, _, err := f.manager.CreateSchedule(ctx, testOwner, testToken, big.NewInt(1000), big.NewInt(200), 3600, 0)
	var periodErr *types.PurchasePeriodTooShortError
	assert.ErrorAs(t, err, &periodErr)
}

func TestAdminFeeUpdatesApply(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	// doubling the flat rate doubles the fee taken on the next purchase
	require.NoError(t, f.manager.SetFeeRates(ctx, testAdmin, 200, 200))

	sched, index := f.createSchedule(t, testOwner, 1000, 200, 0)
	hist, err := f.manager.BuyRbtc(ctx, testSwapper, testOwner, testToken, index, sched.ScheduleID)
	require.NoError(t, err)
	assert.Equal(t, "196", hist.Purchased.String())
}
