package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/contentvault/ledger/internal/infrastructure/observability"
	"github.com/contentvault/ledger/internal/models"
	pkgerrors "github.com/contentvault/ledger/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type PostgresRequestRepository struct {
	db *sql.DB
}

func NewPostgresRequestRepository(db *sql.DB) *PostgresRequestRepository {
	return &PostgresRequestRepository{db: db}
}

func (r *PostgresRequestRepository) Create(ctx context.Context, req *models.PurchaseRequest) error {
	var err error
	tracer := otel.Tracer("request-repository")
	ctx, span := tracer.Start(ctx, "CreateRequest")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("CreateRequest", status).Inc()
		observability.RepositoryDuration.WithLabelValues("CreateRequest").Observe(time.Since(start).Seconds())
	}()

	if req == nil {
		err = fmt.Errorf("%w: request is nil", pkgerrors.ErrInvalidInput)
		return err
	}
	if req.DimeAmount < 1 {
		err = fmt.Errorf("%w: dime_amount must be at least 1", pkgerrors.ErrInvalidInput)
		slog.Error("invalid request amount", "method", "Create", "amount", req.DimeAmount)
		return err
	}

	span.SetAttributes(
		attribute.Int("content_id", int(req.ContentID)),
		attribute.Int("requester_id", int(req.RequesterID)),
		attribute.Int("amount", int(req.DimeAmount)),
	)

	query := `
	INSERT INTO purchase_requests (content_id, requester_id, owner_id, dime_amount, status)
	VALUES ($1, $2, $3, $4, 'pending')
	RETURNING id, created_at, updated_at
	`
	err = r.db.QueryRowContext(
		ctx,
		query,
		req.ContentID,
		req.RequesterID,
		req.OwnerID,
		req.DimeAmount,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			err = pkgerrors.ErrDuplicateRequest
			slog.Warn("duplicate pending request", "content_id", req.ContentID, "requester_id", req.RequesterID)
			return err
		}
		err = storeErr(fmt.Errorf("failed to create request: %w", err))
		slog.Error("failed to create request", "method", "Create", "content_id", req.ContentID, "error", err)
		return err
	}

	req.Status = models.RequestPending
	slog.Info("purchase request created", "request_id", req.ID, "content_id", req.ContentID, "requester_id", req.RequesterID, "amount", req.DimeAmount)
	return nil
}

func (r *PostgresRequestRepository) GetByID(ctx context.Context, id int32) (*models.PurchaseRequest, error) {
	query := `
	SELECT id, content_id, requester_id, owner_id, dime_amount, status, created_at, updated_at
	FROM purchase_requests WHERE id = $1`

	var req models.PurchaseRequest
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&req.ID,
		&req.ContentID,
		&req.RequesterID,
		&req.OwnerID,
		&req.DimeAmount,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrRequestNotFound
	case err != nil:
		return nil, storeErr(fmt.Errorf("failed to get request: %w", err))
	}
	return &req, nil
}

func (r *PostgresRequestRepository) UpdateAmount(ctx context.Context, id, requesterID, amount int32) (bool, error) {
	if amount < 1 {
		return false, fmt.Errorf("%w: dime_amount must be at least 1", pkgerrors.ErrInvalidInput)
	}

	query := `
	UPDATE purchase_requests
	SET dime_amount = $3, updated_at = NOW()
	WHERE id = $1 AND requester_id = $2 AND status = 'pending'
	`
	res, err := r.db.ExecContext(ctx, query, id, requesterID, amount)
	if err != nil {
		return false, storeErr(fmt.Errorf("failed to update request amount: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr(err)
	}
	return affected == 1, nil
}

func (r *PostgresRequestRepository) Delete(ctx context.Context, id, requesterID int32) (bool, error) {
	query := `DELETE FROM purchase_requests WHERE id = $1 AND requester_id = $2 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, requesterID)
	if err != nil {
		return false, storeErr(fmt.Errorf("failed to delete request: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr(err)
	}
	return affected == 1, nil
}

func (r *PostgresRequestRepository) MarkRejected(ctx context.Context, id, ownerID int32) (bool, error) {
	query := `
	UPDATE purchase_requests
	SET status = 'rejected', updated_at = NOW()
	WHERE id = $1 AND owner_id = $2 AND status = 'pending'
	`
	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return false, storeErr(fmt.Errorf("failed to reject request: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr(err)
	}
	if affected == 1 {
		slog.Info("purchase request rejected", "request_id", id, "owner_id", ownerID)
	}
	return affected == 1, nil
}

func (r *PostgresRequestRepository) ListByContent(ctx context.Context, contentID int32) ([]models.PurchaseRequest, error) {
	query := `
	SELECT id, content_id, requester_id, owner_id, dime_amount, status, created_at, updated_at
	FROM purchase_requests WHERE content_id = $1 ORDER BY created_at`
	return r.queryRequests(ctx, query, contentID)
}

func (r *PostgresRequestRepository) ListByRequester(ctx context.Context, requesterID int32) ([]models.PurchaseRequest, error) {
	query := `
	SELECT id, content_id, requester_id, owner_id, dime_amount, status, created_at, updated_at
	FROM purchase_requests WHERE requester_id = $1 ORDER BY created_at`
	return r.queryRequests(ctx, query, requesterID)
}

func (r *PostgresRequestRepository) queryRequests(ctx context.Context, query string, args ...interface{}) ([]models.PurchaseRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(fmt.Errorf("failed to list requests: %w", err))
	}
	defer rows.Close()

	var requests []models.PurchaseRequest
	for rows.Next() {
		var req models.PurchaseRequest
		if err := rows.Scan(
			&req.ID,
			&req.ContentID,
			&req.RequesterID,
			&req.OwnerID,
			&req.DimeAmount,
			&req.Status,
			&req.CreatedAt,
			&req.UpdatedAt,
		); err != nil {
			return nil, storeErr(fmt.Errorf("failed to scan request: %w", err))
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return requests, nil
}
