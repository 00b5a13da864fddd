package dca

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpiratt/dca-protocol/internal/types"
)

func TestNextTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		last     uint64
		period   uint64
		now      uint64
		expected uint64
	}{
		{"first purchase anchors at now", 0, 3600, 5000, 5000},
		{"exactly one period", 1000, 100, 1100, 1100},
		{"late by a remainder snaps back", 1000, 100, 1130, 1100},
		{"several periods late keeps phase", 1000, 100, 1570, 1500},
		{"remainder of zero after many periods", 1000, 100, 2000, 2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, nextTimestamp(tt.last, tt.period, tt.now))
		})
	}
}

func newAuthorizerFixture(t *testing.T) (*Authorizer, *Store, *types.Schedule) {
	t.Helper()
	s := NewStore(testLimits())
	sched, _, err := s.Create(testOwner, testToken, big.NewInt(1000), big.NewInt(200), 3600, 0, 1_700_000_000)
	require.NoError(t, err)
	return NewAuthorizer(s), s, sched
}

func discard(types.Event) {}

func TestAuthorizeFirstPurchase(t *testing.T) {
	a, s, sched := newAuthorizerFixture(t)

	now := uint64(1_700_000_500)
	order, err := a.Authorize(testOwner, testToken, 0, sched.ScheduleID, now, discard)
	require.NoError(t, err)

	assert.Equal(t, testOwner, order.Buyer)
	assert.Equal(t, "200", order.Amount.String())

	got, err := s.Get(testOwner, testToken, 0)
	require.NoError(t, err)
	assert.Equal(t, "800", got.TokenBalance.String())
	// no prior purchase, so the anchor is the current time
	assert.Equal(t, now, got.LastPurchaseTimestamp)
}

func TestAuthorizePeriodNotElapsed(t *testing.T) {
	a, s, sched := newAuthorizerFixture(t)

	now := uint64(1_700_000_000)
	_, err := a.Authorize(testOwner, testToken, 0, sched.ScheduleID, now, discard)
	require.NoError(t, err)

	_, err = a.Authorize(testOwner, testToken, 0, sched.ScheduleID, now+3599, discard)
	var periodErr *types.PurchasePeriodNotElapsedError
	require.ErrorAs(t, err, &periodErr)
	assert.Equal(t, uint64(1), periodErr.Remaining)

	// the rejected attempt changed nothing
	got, err := s.Get(testOwner, testToken, 0)
	require.NoError(t, err)
	assert.Equal(t, "800", got.TokenBalance.String())
	assert.Equal(t, now, got.LastPurchaseTimestamp)
}

func TestAuthorizeSnapsToPeriodBoundary(t *testing.T) {
	a, s, sched := newAuthorizerFixture(t)

	base := uint64(1_700_000_000)
	_, err := a.Authorize(testOwner, testToken, 0, sched.ScheduleID, base, discard)
	require.NoError(t, err)

	// swapper arrives 2 periods and 500 seconds late; the schedule lands on
	// the boundary, not on the arrival time
	_, err = a.Authorize(testOwner, testToken, 0, sched.ScheduleID, base+2*3600+500, discard)
	require.NoError(t, err)

	got, err := s.Get(testOwner, testToken, 0)
	require.NoError(t, err)
	assert.Equal(t, base+2*3600, got.LastPurchaseTimestamp)
}

func TestAuthorizeDepletesBalance(t *testing.T) {
	a, s, sched := newAuthorizerFixture(t)

	now := uint64(1_700_000_000)
	// 1000 / 200 leaves exactly five purchases
	for i := 0; i < 5; i++ {
		_, err := a.Authorize(testOwner, testToken, 0, sched.ScheduleID, now+uint64(i)*3600, discard)
		require.NoError(t, err, "purchase %d", i)
	}

	_, err := a.Authorize(testOwner, testToken, 0, sched.ScheduleID, now+5*3600, discard)
	var balErr *types.ScheduleBalanceNotEnoughError
	require.ErrorAs(t, err, &balErr)
	assert.Equal(t, "0", balErr.Balance.String())

	got, err := s.Get(testOwner, testToken, 0)
	require.NoError(t, err)
	assert.Equal(t, "0", got.TokenBalance.String())
	assert.Equal(t, now+4*3600, got.LastPurchaseTimestamp)
}

func TestAuthorizeEmitsBalanceAndTimestampEvents(t *testing.T) {
	a, _, sched := newAuthorizerFixture(t)

	var events []types.Event
	_, err := a.Authorize(testOwner, testToken, 0, sched.ScheduleID, 1_700_000_000, func(ev types.Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, types.EventBalanceUpdated, events[0].Type)
	assert.Equal(t, "800", events[0].Amount.String())
	assert.Equal(t, types.EventTimestampUpdated, events[1].Type)
	assert.Equal(t, uint64(1_700_000_000), events[1].Timestamp)
}

func TestAuthorizeBatch(t *testing.T) {
	s := NewStore(testLimits())
	a := NewAuthorizer(s)

	s1, _, err := s.Create(testOwner, testToken, big.NewInt(1000), big.NewInt(200), 3600, 0, 1)
	require.NoError(t, err)
	s2, _, err := s.Create(testOwner, testToken, big.NewInt(600), big.NewInt(300), 3600, 0, 1)
	require.NoError(t, err)

	entries := []types.BatchEntry{
		{Buyer: testOwner, ScheduleIndex: 0, ScheduleID: s1.ScheduleID, DeclaredAmount: big.NewInt(200)},
		{Buyer: testOwner, ScheduleIndex: 1, ScheduleID: s2.ScheduleID, DeclaredAmount: big.NewInt(300)},
	}
	orders, err := a.AuthorizeBatch(testToken, entries, 1_700_000_000, discard)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "200", orders[0].Amount.String())
	assert.Equal(t, "300", orders[1].Amount.String())
}

func TestAuthorizeBatchEmpty(t *testing.T) {
	s := NewStore(testLimits())
	a := NewAuthorizer(s)

	_, err := a.AuthorizeBatch(testToken, nil, 1, discard)
	assert.ErrorIs(t, err, types.ErrEmptyBatchPurchaseArrays)
}

func TestAuthorizeBatchDeclaredAmountMismatch(t *testing.T) {
	s := NewStore(testLimits())
	a := NewAuthorizer(s)

	s1, _, err := s.Create(testOwner, testToken, big.NewInt(1000), big.NewInt(200), 3600, 0, 1)
	require.NoError(t, err)

	entries := []types.BatchEntry{
		{Buyer: testOwner, ScheduleIndex: 0, ScheduleID: s1.ScheduleID, DeclaredAmount: big.NewInt(250)},
	}
	_, err = a.AuthorizeBatch(testToken, entries, 1_700_000_000, discard)
	var mismatch *types.PurchaseAmountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 0, mismatch.Entry)
	assert.Equal(t, "250", mismatch.Declared.String())
	assert.Equal(t, "200", mismatch.Actual.String())
}
