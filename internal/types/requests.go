package types

// BatchPurchaseRequest is the swapper's submission of one settlement batch.
// All entries share one token and one lending venue; mixing venues in a
// batch is a documented caller-contract violation, not something the engine
// checks per entry.
type BatchPurchaseRequest struct {
	RequestID            string               `json:"request_id" validate:"required"`
	Swapper              string               `json:"swapper" validate:"required"`
	Token                string               `json:"token" validate:"required"`
	LendingProtocolIndex uint64               `json:"lending_protocol_index"`
	Entries              []BatchPurchaseEntry `json:"entries" validate:"required,dive"`
}

type BatchPurchaseEntry struct {
	Buyer          string `json:"buyer" validate:"required"`
	ScheduleIndex  int    `json:"schedule_index"`
	ScheduleID     string `json:"schedule_id" validate:"required"`
	DeclaredAmount string `json:"declared_amount" validate:"required"`
}
