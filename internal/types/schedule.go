package types

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Schedule is a user's recurring-purchase configuration and remaining
// balance for one token. Schedules for a given (owner, token) pair live in
// an unordered list; deletion swap-removes, so an index is only meaningful
// together with the schedule ID.
type Schedule struct {
	Owner                 common.Address `json:"owner"`
	Token                 common.Address `json:"token"`
	TokenBalance          *big.Int       `json:"token_balance"`
	PurchaseAmount        *big.Int       `json:"purchase_amount"`
	PurchasePeriod        uint64         `json:"purchase_period"`
	LastPurchaseTimestamp uint64         `json:"last_purchase_timestamp"`
	ScheduleID            common.Hash    `json:"schedule_id"`
	LendingProtocolIndex  uint64         `json:"lending_protocol_index"`
}

// Clone returns a deep copy. The manager snapshots schedules before a batch
// so a failed batch can be restored without partial effects.
func (s *Schedule) Clone() *Schedule {
	c := *s
	c.TokenBalance = new(big.Int).Set(s.TokenBalance)
	c.PurchaseAmount = new(big.Int).Set(s.PurchaseAmount)
	return &c
}

// NewScheduleID derives the immutable schedule identifier from the owner,
// token, creation timestamp and the position the schedule is created at.
// The ID is what makes cached indices safe to re-validate after swap-removes.
func NewScheduleID(owner, token common.Address, createdAt uint64, position int) common.Hash {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], createdAt)
	binary.BigEndian.PutUint64(buf[8:], uint64(position))
	return crypto.Keccak256Hash(owner.Bytes(), token.Bytes(), buf[:])
}

// PurchaseOrder is what the authorizer hands back to the orchestrator once a
// purchase has been checked and applied to the schedule. The orchestrator is
// responsible for moving funds through the registered handler.
type PurchaseOrder struct {
	Buyer                common.Address
	Token                common.Address
	ScheduleID           common.Hash
	Amount               *big.Int
	LendingProtocolIndex uint64
}

// BatchEntry is one element of a batch purchase submitted by the swapper.
// DeclaredAmount must match the schedule's current purchase amount exactly,
// otherwise the whole batch is rejected.
type BatchEntry struct {
	Buyer          common.Address `json:"buyer"`
	ScheduleIndex  int            `json:"schedule_index"`
	ScheduleID     common.Hash    `json:"schedule_id"`
	DeclaredAmount *big.Int       `json:"declared_amount"`
}
