package engine

import (
	"context"
	"fmt"
	"math/big"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/webpiratt/dca-protocol/common"
	"github.com/webpiratt/dca-protocol/config"
	"github.com/webpiratt/dca-protocol/internal/dca"
	"github.com/webpiratt/dca-protocol/internal/fees"
	"github.com/webpiratt/dca-protocol/internal/handlers"
	"github.com/webpiratt/dca-protocol/storage"
)

// Reference-handler parameters: 30000 DOC per rBTC, 5% yearly interest.
var (
	defaultPriceNum        = big.NewInt(1)
	defaultPriceDen        = big.NewInt(30000)
	defaultInterestRateBps = uint64(500)
)

// Build wires the purchase engine from configuration: limits, fee calculator,
// token registry and the schedule table reloaded from the journal. Both the
// API server and the worker settle through an engine built here, against the
// same journal.
func Build(ctx context.Context, cfg *config.Config, db storage.DatabaseStorage, logger *logrus.Logger) (*dca.Manager, *handlers.Registry, error) {
	minAmount, err := common.ParseAmount(cfg.Engine.MinPurchaseAmount)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid min purchase amount: %w", err)
	}
	limits := dca.NewLimits(cfg.Engine.MinPurchasePeriod, cfg.Engine.MaxSchedulesPerToken, minAmount)

	lower, err := common.ParseAmount(cfg.Engine.Fees.LowerBound)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid fee lower bound: %w", err)
	}
	upper, err := common.ParseAmount(cfg.Engine.Fees.UpperBound)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid fee upper bound: %w", err)
	}
	feeCalc, err := fees.NewCalculator(fees.Params{
		MinFeeRate: cfg.Engine.Fees.MinFeeRate,
		MaxFeeRate: cfg.Engine.Fees.MaxFeeRate,
		LowerBound: lower,
		UpperBound: upper,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid fee parameters: %w", err)
	}

	registry := handlers.NewRegistry()
	for _, addr := range cfg.Engine.Admins {
		if !ecommon.IsHexAddress(addr) {
			return nil, nil, fmt.Errorf("invalid admin address %q", addr)
		}
		registry.GrantRole(handlers.RoleAdmin, ecommon.HexToAddress(addr))
	}
	for _, addr := range cfg.Engine.Swappers {
		if !ecommon.IsHexAddress(addr) {
			return nil, nil, fmt.Errorf("invalid swapper address %q", addr)
		}
		registry.GrantRole(handlers.RoleSwapper, ecommon.HexToAddress(addr))
	}
	for _, tc := range cfg.Engine.Tokens {
		if !ecommon.IsHexAddress(tc.Address) {
			return nil, nil, fmt.Errorf("invalid token address %q", tc.Address)
		}
		token := ecommon.HexToAddress(tc.Address)
		if tc.ProtocolName != "" {
			registry.SetProtocolName(tc.LendingProtocolIndex, tc.ProtocolName)
		}
		// Reference handler; production deployments swap in real executors
		// through RegisterTokenHandler before serving traffic.
		registry.RegisterTokenHandler(token, tc.LendingProtocolIndex, handlers.NewMemoryHandler(
			defaultPriceNum, defaultPriceDen, defaultInterestRateBps))
	}

	store := dca.NewStore(limits)
	if db != nil {
		schedules, err := db.ListSchedules(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("fail to reload schedules: %w", err)
		}
		store.Load(schedules)
		logger.WithField("count", len(schedules)).Info("reloaded schedule table")
	}

	var persistence dca.Persistence
	if db != nil {
		persistence = db
	}
	return dca.NewManager(store, limits, feeCalc, registry, persistence, logger), registry, nil
}
