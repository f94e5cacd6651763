package repository

import (
	"context"

	"github.com/contentvault/ledger/internal/models"
)

// RequestRepository persists purchase requests. Every mutation is guarded
// on status = 'pending' (and on the acting user), so concurrent mutations
// of one request resolve to a single winner; the boolean result reports
// whether the guard matched.
type RequestRepository interface {
	// Create inserts a pending request. The single-pending-per
	// (content_id, requester_id) invariant is enforced by the store and
	// surfaced as ErrDuplicateRequest.
	Create(ctx context.Context, req *models.PurchaseRequest) error
	GetByID(ctx context.Context, id int32) (*models.PurchaseRequest, error)
	UpdateAmount(ctx context.Context, id, requesterID, amount int32) (bool, error)
	Delete(ctx context.Context, id, requesterID int32) (bool, error)
	MarkRejected(ctx context.Context, id, ownerID int32) (bool, error)
	ListByContent(ctx context.Context, contentID int32) ([]models.PurchaseRequest, error)
	ListByRequester(ctx context.Context, requesterID int32) ([]models.PurchaseRequest, error)
}
