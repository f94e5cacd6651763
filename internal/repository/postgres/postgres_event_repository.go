package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/contentvault/ledger/internal/models"
	pkgerrors "github.com/contentvault/ledger/pkg/errors"
)

type PostgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

func (r *PostgresEventRepository) Create(ctx context.Context, event *models.LedgerEvent) (int32, error) {
	if event == nil {
		return 0, fmt.Errorf("%w: event is nil", pkgerrors.ErrInvalidInput)
	}
	switch event.Type {
	case models.EventTransferOut, models.EventTransferIn, models.EventCheckIn, models.EventSpin:
	default:
		return 0, fmt.Errorf("%w: unknown event type %q", pkgerrors.ErrInvalidInput, event.Type)
	}

	query := `
	INSERT INTO ledger_events (user_id, related_id, content_id, amount, type, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id
	`
	var id int32
	err := r.db.QueryRowContext(
		ctx,
		query,
		event.UserID,
		event.RelatedID,
		event.ContentID,
		event.Amount,
		event.Type,
		event.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, storeErr(fmt.Errorf("failed to create ledger event: %w", err))
	}
	event.ID = id
	return id, nil
}

func (r *PostgresEventRepository) ListByUser(ctx context.Context, userID int32) ([]models.LedgerEvent, error) {
	query := `
	SELECT id, user_id, related_id, content_id, amount, type, created_at
	FROM ledger_events WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, storeErr(fmt.Errorf("failed to list ledger events: %w", err))
	}
	defer rows.Close()

	var events []models.LedgerEvent
	for rows.Next() {
		var ev models.LedgerEvent
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.RelatedID, &ev.ContentID, &ev.Amount, &ev.Type, &ev.CreatedAt); err != nil {
			return nil, storeErr(fmt.Errorf("failed to scan ledger event: %w", err))
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return events, nil
}
