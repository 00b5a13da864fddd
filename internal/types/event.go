package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

type EventType string

const (
	EventScheduleCreated  EventType = "SCHEDULE_CREATED"
	EventScheduleUpdated  EventType = "SCHEDULE_UPDATED"
	EventScheduleDeleted  EventType = "SCHEDULE_DELETED"
	EventBalanceUpdated   EventType = "BALANCE_UPDATED"
	EventTimestampUpdated EventType = "TIMESTAMP_UPDATED"
	EventPurchaseExecuted EventType = "PURCHASE_EXECUTED"
	EventFeeParamsUpdated EventType = "FEE_PARAMS_UPDATED"
	EventLimitsUpdated    EventType = "LIMITS_UPDATED"
)

// Event is the fact emitted for every committed state change. Failed calls
// emit nothing; the journal is append-only.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       EventType      `json:"type"`
	Owner      common.Address `json:"owner"`
	Token      common.Address `json:"token"`
	ScheduleID common.Hash    `json:"schedule_id"`
	Amount     *big.Int       `json:"amount,omitempty"`
	Timestamp  uint64         `json:"timestamp,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func NewEvent(t EventType, owner, token common.Address, id common.Hash) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		Owner:      owner,
		Token:      token,
		ScheduleID: id,
		CreatedAt:  time.Now().UTC(),
	}
}

// PurchaseHistory records an executed purchase for one schedule, the
// queryable trail behind the PURCHASE_EXECUTED events.
type PurchaseHistory struct {
	ID         uuid.UUID      `json:"id"`
	ScheduleID common.Hash    `json:"schedule_id"`
	Buyer      common.Address `json:"buyer"`
	Token      common.Address `json:"token"`
	Amount     *big.Int       `json:"amount"`
	Purchased  *big.Int       `json:"purchased"`
	CreatedAt  time.Time      `json:"created_at"`
}
