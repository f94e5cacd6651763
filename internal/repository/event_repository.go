package repository

import (
	"context"

	"github.com/contentvault/ledger/internal/models"
)

type EventRepository interface {
	Create(ctx context.Context, event *models.LedgerEvent) (int32, error)
	ListByUser(ctx context.Context, userID int32) ([]models.LedgerEvent, error)
}
