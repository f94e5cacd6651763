package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	pkgerrors "github.com/contentvault/ledger/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestPostgresContentRepository_AddLike(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewPostgresContentRepository(db)
	ctx := context.Background()

	t.Run("first like inserts", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO likes")).
			WithArgs(int32(1), int32(7)).
			WillReturnResult(sqlmock.NewResult(1, 1))

		added, err := repo.AddLike(ctx, 1, 7)
		assert.NoError(t, err)
		assert.True(t, added)
	})

	t.Run("duplicate like is swallowed by the conflict clause", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO likes")).
			WithArgs(int32(1), int32(7)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		added, err := repo.AddLike(ctx, 1, 7)
		assert.NoError(t, err)
		assert.False(t, added)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresContentRepository_CommentGuards(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewPostgresContentRepository(db)
	ctx := context.Background()

	t.Run("author edits own comment", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE comments SET body = $3 WHERE id = $1 AND user_id = $2")).
			WithArgs(int32(3), int32(1), "edited").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateComment(ctx, 3, 1, "edited")
		assert.NoError(t, err)
	})

	t.Run("someone else's comment", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE comments SET body = $3 WHERE id = $1 AND user_id = $2")).
			WithArgs(int32(3), int32(2), "edited").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1)")).
			WithArgs(int32(3)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err := repo.UpdateComment(ctx, 3, 2, "edited")
		assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
	})

	t.Run("missing comment", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM comments WHERE id = $1 AND user_id = $2")).
			WithArgs(int32(99), int32(1)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1)")).
			WithArgs(int32(99)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := repo.DeleteComment(ctx, 99, 1)
		assert.ErrorIs(t, err, pkgerrors.ErrCommentNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresContentRepository_SetOwner(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewPostgresContentRepository(db)
	ctx := context.Background()

	t.Run("ownership moves when the snapshot holds", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE content_items SET owner_id = $2 WHERE id = $1 AND owner_id = $3")).
			WithArgs(int32(7), int32(1), int32(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.SetOwner(ctx, 7, 1, 2)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("stale owner snapshot", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE content_items SET owner_id = $2 WHERE id = $1 AND owner_id = $3")).
			WithArgs(int32(7), int32(1), int32(3)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.SetOwner(ctx, 7, 1, 3)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
