package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/webpiratt/dca-protocol/internal/types"
)

// AppendEvents journals the facts of one committed call in a single
// transaction.
func (p *PostgresBackend) AppendEvents(ctx context.Context, events []types.Event) error {
	if p.pool == nil {
		return fmt.Errorf("database pool is nil")
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer p.handleRollback(ctx, tx)

	for _, ev := range events {
		var amount *string
		if ev.Amount != nil {
			s := ev.Amount.String()
			amount = &s
		}
		_, err := tx.Exec(ctx, `
            INSERT INTO schedule_events (id, event_type, owner, token, schedule_id, amount, ts, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			ev.ID,
			string(ev.Type),
			ev.Owner.Hex(),
			ev.Token.Hex(),
			ev.ScheduleID.Hex(),
			amount,
			int64(ev.Timestamp),
			ev.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (p *PostgresBackend) handleRollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		p.logger.WithError(err).Error("failed to rollback transaction")
	}
}

func (p *PostgresBackend) GetEvents(ctx context.Context, scheduleID common.Hash, take, skip int) ([]types.Event, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("database pool is nil")
	}
	rows, err := p.pool.Query(ctx, `
        SELECT id, event_type, owner, token, schedule_id, amount::text, ts, created_at
        FROM schedule_events
        WHERE schedule_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`,
		scheduleID.Hex(), take, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		var (
			ev           types.Event
			eventType    string
			owner, token string
			id           string
			amount       *string
			ts           int64
		)
		if err := rows.Scan(&ev.ID, &eventType, &owner, &token, &id, &amount, &ts, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Type = types.EventType(eventType)
		ev.Owner = common.HexToAddress(owner)
		ev.Token = common.HexToAddress(token)
		ev.ScheduleID = common.HexToHash(id)
		ev.Timestamp = uint64(ts)
		if amount != nil {
			v, err := parseAmount(*amount)
			if err != nil {
				return nil, err
			}
			ev.Amount = v
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// AppendPurchases records executed purchases; a batch lands in one
// transaction.
func (p *PostgresBackend) AppendPurchases(ctx context.Context, purchases []types.PurchaseHistory) error {
	if p.pool == nil {
		return fmt.Errorf("database pool is nil")
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer p.handleRollback(ctx, tx)

	for _, ph := range purchases {
		_, err := tx.Exec(ctx, `
            INSERT INTO purchase_history (id, schedule_id, buyer, token, amount, purchased, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			ph.ID,
			ph.ScheduleID.Hex(),
			ph.Buyer.Hex(),
			ph.Token.Hex(),
			ph.Amount.String(),
			ph.Purchased.String(),
			ph.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert purchase history: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (p *PostgresBackend) GetPurchaseHistory(ctx context.Context, scheduleID common.Hash, take, skip int) ([]types.PurchaseHistory, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("database pool is nil")
	}
	rows, err := p.pool.Query(ctx, `
        SELECT id, schedule_id, buyer, token, amount::text, purchased::text, created_at
        FROM purchase_history
        WHERE schedule_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`,
		scheduleID.Hex(), take, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []types.PurchaseHistory
	for rows.Next() {
		var (
			ph                       types.PurchaseHistory
			id, buyer, token, amount string
			purchased                string
			phID                     uuid.UUID
		)
		if err := rows.Scan(&phID, &id, &buyer, &token, &amount, &purchased, &ph.CreatedAt); err != nil {
			return nil, err
		}
		ph.ID = phID
		ph.ScheduleID = common.HexToHash(id)
		ph.Buyer = common.HexToAddress(buyer)
		ph.Token = common.HexToAddress(token)
		amt, err := parseAmount(amount)
		if err != nil {
			return nil, err
		}
		ph.Amount = amt
		pur, err := parseAmount(purchased)
		if err != nil {
			return nil, err
		}
		ph.Purchased = pur
		history = append(history, ph)
	}
	return history, rows.Err()
}
