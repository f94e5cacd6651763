package repository

import (
	"context"

	"github.com/contentvault/ledger/internal/models"
)

// TransferRepository applies an accepted purchase request as one atomic
// unit: debit requester, credit owner, reassign content ownership, close
// the request. Either every effect commits or none does.
type TransferRepository interface {
	Accept(ctx context.Context, requestID, ownerID int32) (*models.TransferResult, error)
}
