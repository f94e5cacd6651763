package models

import "time"

type EventType string

const (
	EventTransferOut EventType = "transfer_out"
	EventTransferIn  EventType = "transfer_in"
	EventCheckIn     EventType = "check_in"
	EventSpin        EventType = "spin"
)

// LedgerEvent is a journal row describing one balance movement. Rows are
// written by the Kafka consumer, after the fact; balances themselves are
// mutated transactionally in Postgres.
type LedgerEvent struct {
	ID        int32     `json:"id"`
	UserID    int32     `json:"user_id"`
	RelatedID int32     `json:"related_id,omitempty"`
	ContentID int32     `json:"content_id,omitempty"`
	Amount    int32     `json:"amount"`
	Type      EventType `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}
