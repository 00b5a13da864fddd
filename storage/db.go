package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/webpiratt/dca-protocol/internal/types"
)

// DatabaseStorage persists the schedule table, the event journal and the
// purchase history. The in-memory store owns the live state; the database is
// the durable record it is reloaded from at boot.
type DatabaseStorage interface {
	Close() error

	SaveSchedule(ctx context.Context, sched *types.Schedule) error
	DeleteSchedule(ctx context.Context, id common.Hash) error
	ListSchedules(ctx context.Context) ([]*types.Schedule, error)

	AppendEvents(ctx context.Context, events []types.Event) error
	GetEvents(ctx context.Context, scheduleID common.Hash, take, skip int) ([]types.Event, error)

	AppendPurchases(ctx context.Context, purchases []types.PurchaseHistory) error
	GetPurchaseHistory(ctx context.Context, scheduleID common.Hash, take, skip int) ([]types.PurchaseHistory, error)

	Pool() *pgxpool.Pool
}
