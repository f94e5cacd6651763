package models

import "time"

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// PurchaseRequest is an offer by a non-owner to buy a content item for
// DimeAmount coins. OwnerID is snapshotted from the content item at
// creation time; status only ever moves pending -> accepted|rejected.
type PurchaseRequest struct {
	ID          int32         `json:"id"`
	ContentID   int32         `json:"content_id"`
	RequesterID int32         `json:"requester_id"`
	OwnerID     int32         `json:"owner_id"`
	DimeAmount  int32         `json:"dime_amount"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TransferResult reports the state after an accepted request committed.
type TransferResult struct {
	RequestID        int32 `json:"request_id"`
	ContentID        int32 `json:"content_id"`
	RequesterID      int32 `json:"requester_id"`
	OwnerID          int32 `json:"owner_id"`
	DimeAmount       int32 `json:"dime_amount"`
	RequesterBalance int32 `json:"requester_balance"`
	OwnerBalance     int32 `json:"owner_balance"`
	RejectedRivals   int32 `json:"rejected_rivals"`
}
