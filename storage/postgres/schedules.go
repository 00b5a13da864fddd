package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/webpiratt/dca-protocol/internal/types"
)

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", s)
	}
	return v, nil
}

func (p *PostgresBackend) SaveSchedule(ctx context.Context, sched *types.Schedule) error {
	if p.pool == nil {
		return fmt.Errorf("database pool is nil")
	}

	query := `
        INSERT INTO dca_schedules (
            schedule_id, owner, token, token_balance, purchase_amount,
            purchase_period, last_purchase_timestamp, lending_protocol_index, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
        ON CONFLICT (schedule_id) DO UPDATE SET
            token_balance = EXCLUDED.token_balance,
            purchase_amount = EXCLUDED.purchase_amount,
            purchase_period = EXCLUDED.purchase_period,
            last_purchase_timestamp = EXCLUDED.last_purchase_timestamp,
            updated_at = now()`

	_, err := p.pool.Exec(ctx, query,
		sched.ScheduleID.Hex(),
		sched.Owner.Hex(),
		sched.Token.Hex(),
		sched.TokenBalance.String(),
		sched.PurchaseAmount.String(),
		int64(sched.PurchasePeriod),
		int64(sched.LastPurchaseTimestamp),
		int64(sched.LendingProtocolIndex),
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

func (p *PostgresBackend) DeleteSchedule(ctx context.Context, id common.Hash) error {
	if p.pool == nil {
		return fmt.Errorf("database pool is nil")
	}
	_, err := p.pool.Exec(ctx, `DELETE FROM dca_schedules WHERE schedule_id = $1`, id.Hex())
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return nil
}

func (p *PostgresBackend) ListSchedules(ctx context.Context) ([]*types.Schedule, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("database pool is nil")
	}

	query := `
        SELECT schedule_id, owner, token, token_balance::text, purchase_amount::text,
               purchase_period, last_purchase_timestamp, lending_protocol_index
        FROM dca_schedules
        ORDER BY updated_at`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []*types.Schedule
	for rows.Next() {
		var (
			id, owner, token, balance, amount string
			period, last, lendingIdx          int64
		)
		if err := rows.Scan(&id, &owner, &token, &balance, &amount, &period, &last, &lendingIdx); err != nil {
			return nil, err
		}
		tokenBalance, err := parseAmount(balance)
		if err != nil {
			return nil, err
		}
		purchaseAmount, err := parseAmount(amount)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, &types.Schedule{
			Owner:                 common.HexToAddress(owner),
			Token:                 common.HexToAddress(token),
			TokenBalance:          tokenBalance,
			PurchaseAmount:        purchaseAmount,
			PurchasePeriod:        uint64(period),
			LastPurchaseTimestamp: uint64(last),
			ScheduleID:            common.HexToHash(id),
			LendingProtocolIndex:  uint64(lendingIdx),
		})
	}
	return schedules, rows.Err()
}
