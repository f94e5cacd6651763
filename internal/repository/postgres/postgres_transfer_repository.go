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

type PostgresTransferRepository struct {
	db *sql.DB
}

func NewPostgresTransferRepository(db *sql.DB) *PostgresTransferRepository {
	return &PostgresTransferRepository{db: db}
}

// Accept applies an accepted purchase request inside a single
// transaction: the request row and both account rows are locked, the
// requester's balance is re-checked under the lock, then the debit,
// credit, ownership reassignment and status change commit together.
// Rival pending requests for the same content item are rejected in the
// same transaction.
func (r *PostgresTransferRepository) Accept(ctx context.Context, requestID, ownerID int32) (*models.TransferResult, error) {
	var err error
	tracer := otel.Tracer("transfer-repository")
	ctx, span := tracer.Start(ctx, "AcceptTransfer")
	span.SetAttributes(
		attribute.Int("request_id", int(requestID)),
		attribute.Int("owner_id", int(ownerID)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("AcceptTransfer", status).Inc()
		observability.RepositoryDuration.WithLabelValues("AcceptTransfer").Observe(time.Since(start).Seconds())
	}()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		err = storeErr(fmt.Errorf("failed to begin transaction: %w", err))
		slog.Error("failed to begin transfer transaction", "request_id", requestID, "error", err)
		return nil, err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !stderrors.Is(rbErr, sql.ErrTxDone) {
				slog.Error("rollback failed", "request_id", requestID, "error", rbErr)
			}
		}
	}()

	// Lock the request row first; the status check under the lock is
	// what makes two concurrent accepts resolve to one winner.
	var req models.PurchaseRequest
	err = tx.QueryRowContext(ctx, `
		SELECT id, content_id, requester_id, owner_id, dime_amount, status
		FROM purchase_requests
		WHERE id = $1
		FOR UPDATE
	`, requestID).Scan(&req.ID, &req.ContentID, &req.RequesterID, &req.OwnerID, &req.DimeAmount, &req.Status)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrRequestNotFound
		return nil, err
	}
	if err != nil {
		err = storeErr(fmt.Errorf("failed to lock request: %w", err))
		return nil, err
	}
	if req.Status != models.RequestPending || req.OwnerID != ownerID {
		slog.Warn("accept refused", "request_id", requestID, "status", req.Status, "owner_id", req.OwnerID, "caller_id", ownerID)
		err = pkgerrors.ErrForbidden
		return nil, err
	}

	// Lock both accounts in ascending id order to avoid deadlocks
	// between transfers running in opposite directions.
	firstID, secondID := req.RequesterID, req.OwnerID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}
	balances := make(map[int32]int32, 2)
	for _, id := range []int32{firstID, secondID} {
		var balance int32
		err = tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&balance)
		if stderrors.Is(err, sql.ErrNoRows) {
			err = pkgerrors.ErrAccountNotFound
			return nil, err
		}
		if err != nil {
			err = storeErr(fmt.Errorf("failed to lock account %d: %w", id, err))
			return nil, err
		}
		balances[id] = balance
	}

	// Balance is validated here, not at request-creation time: the
	// requester may have spent coins since the offer was made.
	if balances[req.RequesterID] < req.DimeAmount {
		slog.Warn("insufficient funds at accept time",
			"request_id", requestID,
			"requester_id", req.RequesterID,
			"balance", balances[req.RequesterID],
			"amount", req.DimeAmount)
		err = pkgerrors.ErrInsufficientFunds
		return nil, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - $1 WHERE id = $2`,
		req.DimeAmount, req.RequesterID); err != nil {
		err = fmt.Errorf("%w: debit failed: %v", pkgerrors.ErrTransferFailed, err)
		return nil, err
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + $1 WHERE id = $2`,
		req.DimeAmount, req.OwnerID); err != nil {
		err = fmt.Errorf("%w: credit failed: %v", pkgerrors.ErrTransferFailed, err)
		return nil, err
	}

	res, execErr := tx.ExecContext(ctx,
		`UPDATE content_items SET owner_id = $1 WHERE id = $2 AND owner_id = $3`,
		req.RequesterID, req.ContentID, req.OwnerID)
	if execErr != nil {
		err = fmt.Errorf("%w: ownership reassignment failed: %v", pkgerrors.ErrTransferFailed, execErr)
		return nil, err
	}
	affected, execErr := res.RowsAffected()
	if execErr != nil {
		err = fmt.Errorf("%w: %v", pkgerrors.ErrTransferFailed, execErr)
		return nil, err
	}
	if affected != 1 {
		// The request snapshot no longer matches the content row; the
		// pending request should have been rejected when ownership moved.
		slog.Error("owner snapshot stale at accept", "request_id", requestID, "content_id", req.ContentID)
		err = pkgerrors.ErrTransferFailed
		return nil, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE purchase_requests SET status = 'accepted', updated_at = NOW() WHERE id = $1`,
		req.ID); err != nil {
		err = fmt.Errorf("%w: status change failed: %v", pkgerrors.ErrTransferFailed, err)
		return nil, err
	}

	// Offers addressed to the previous owner are dead once the item
	// changes hands; close them in the same transaction.
	rivalRes, execErr := tx.ExecContext(ctx, `
		UPDATE purchase_requests
		SET status = 'rejected', updated_at = NOW()
		WHERE content_id = $1 AND status = 'pending' AND id <> $2
	`, req.ContentID, req.ID)
	if execErr != nil {
		err = fmt.Errorf("%w: rival rejection failed: %v", pkgerrors.ErrTransferFailed, execErr)
		return nil, err
	}
	rivals, execErr := rivalRes.RowsAffected()
	if execErr != nil {
		err = fmt.Errorf("%w: %v", pkgerrors.ErrTransferFailed, execErr)
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("%w: commit failed: %v", pkgerrors.ErrTransferFailed, err)
		slog.Error("failed to commit transfer", "request_id", requestID, "error", err)
		return nil, err
	}

	observability.TransfersAccepted.Inc()
	slog.Info("transfer accepted",
		"request_id", req.ID,
		"content_id", req.ContentID,
		"requester_id", req.RequesterID,
		"owner_id", req.OwnerID,
		"amount", req.DimeAmount,
		"rejected_rivals", rivals)

	return &models.TransferResult{
		RequestID:        req.ID,
		ContentID:        req.ContentID,
		RequesterID:      req.RequesterID,
		OwnerID:          req.OwnerID,
		DimeAmount:       req.DimeAmount,
		RequesterBalance: balances[req.RequesterID] - req.DimeAmount,
		OwnerBalance:     balances[req.OwnerID] + req.DimeAmount,
		RejectedRivals:   int32(rivals),
	}, nil
}
