package handlers

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenHandler is the custody contract for a stablecoin. Implementations
// must reflect exactly the requested amount, with no hidden fees.
type TokenHandler interface {
	DepositToken(ctx context.Context, user common.Address, amount *big.Int) error
	WithdrawToken(ctx context.Context, user common.Address, amount *big.Int) error
}

// PurchaseExecutor executes the actual asset swap for authorized purchases
// and holds the purchased rBTC until the owner withdraws it.
type PurchaseExecutor interface {
	TokenHandler

	BuyAsset(ctx context.Context, buyer common.Address, scheduleID common.Hash, amount *big.Int) (*big.Int, error)
	BatchBuyAsset(ctx context.Context, buyers []common.Address, scheduleIDs []common.Hash, amounts []*big.Int) error
	AccumulatedAssetBalance(ctx context.Context, user common.Address) (*big.Int, error)
	WithdrawAccumulatedAsset(ctx context.Context, user common.Address) error
}

// LendingAdapter puts idle schedule balances to work in an external yield
// venue. Interest is released proportionally to the caller's locked
// principal.
type LendingAdapter interface {
	TokenHandler

	AccruedInterest(ctx context.Context, user common.Address, lockedPrincipal *big.Int) (*big.Int, error)
	WithdrawInterest(ctx context.Context, user common.Address, lockedPrincipal *big.Int) error
}

// Handler is the full capability surface resolved per (token, lending
// protocol index). Concrete variants exist per lending venue.
type Handler interface {
	PurchaseExecutor
	LendingAdapter
}
