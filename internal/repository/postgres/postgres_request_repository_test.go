package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/contentvault/ledger/internal/models"
	pkgerrors "github.com/contentvault/ledger/pkg/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestPostgresRequestRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRequestRepository(db)
	ctx := context.Background()

	t.Run("successful creation", func(t *testing.T) {
		now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
		req := &models.PurchaseRequest{ContentID: 7, RequesterID: 1, OwnerID: 2, DimeAmount: 30}

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO purchase_requests")).
			WithArgs(int32(7), int32(1), int32(2), int32(30)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(5, now, now))

		err := repo.Create(ctx, req)
		assert.NoError(t, err)
		assert.Equal(t, int32(5), req.ID)
		assert.Equal(t, models.RequestPending, req.Status)
	})

	t.Run("second pending request trips the partial unique index", func(t *testing.T) {
		req := &models.PurchaseRequest{ContentID: 7, RequesterID: 1, OwnerID: 2, DimeAmount: 40}

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO purchase_requests")).
			WithArgs(int32(7), int32(1), int32(2), int32(40)).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "purchase_requests_pending_uniq"})

		err := repo.Create(ctx, req)
		assert.ErrorIs(t, err, pkgerrors.ErrDuplicateRequest)
	})

	t.Run("amount below one never reaches the store", func(t *testing.T) {
		req := &models.PurchaseRequest{ContentID: 7, RequesterID: 1, OwnerID: 2, DimeAmount: 0}

		err := repo.Create(ctx, req)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRequestRepository_Guards(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRequestRepository(db)
	ctx := context.Background()

	t.Run("update amount holds while pending", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("SET dime_amount = $3")).
			WithArgs(int32(5), int32(1), int32(45)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.UpdateAmount(ctx, 5, 1, 45)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("update loses the guard once closed", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("SET dime_amount = $3")).
			WithArgs(int32(5), int32(1), int32(45)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.UpdateAmount(ctx, 5, 1, 45)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("cancel is a guarded delete", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM purchase_requests WHERE id = $1 AND requester_id = $2 AND status = 'pending'")).
			WithArgs(int32(5), int32(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.Delete(ctx, 5, 1)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("reject is guarded by owner and status", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("SET status = 'rejected'")).
			WithArgs(int32(5), int32(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.MarkRejected(ctx, 5, 2)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRequestRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewPostgresRequestRepository(db)
	ctx := context.Background()

	t.Run("missing request", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM purchase_requests WHERE id = $1")).
			WithArgs(int32(99)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "content_id", "requester_id", "owner_id", "dime_amount", "status", "created_at", "updated_at"}))

		req, err := repo.GetByID(ctx, 99)
		assert.ErrorIs(t, err, pkgerrors.ErrRequestNotFound)
		assert.Nil(t, req)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
