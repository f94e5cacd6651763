package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/contentvault/ledger/internal/models"
	pkgerrors "github.com/contentvault/ledger/pkg/errors"
)

type PostgresContentRepository struct {
	db *sql.DB
}

func NewPostgresContentRepository(db *sql.DB) *PostgresContentRepository {
	return &PostgresContentRepository{db: db}
}

func (r *PostgresContentRepository) Create(ctx context.Context, item *models.ContentItem) error {
	if item == nil {
		return fmt.Errorf("%w: content item is nil", pkgerrors.ErrInvalidInput)
	}
	if item.Title == "" {
		return fmt.Errorf("%w: title is required", pkgerrors.ErrInvalidInput)
	}
	if item.DimeValue < 1 {
		return fmt.Errorf("%w: dime_value must be at least 1", pkgerrors.ErrInvalidInput)
	}

	query := `
	INSERT INTO content_items (creator_id, owner_id, title, description, dime_value)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, created_at
	`
	err := r.db.QueryRowContext(
		ctx,
		query,
		item.CreatorID,
		item.OwnerID,
		item.Title,
		item.Description,
		item.DimeValue,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return storeErr(fmt.Errorf("failed to create content item: %w", err))
	}
	return nil
}

func (r *PostgresContentRepository) GetByID(ctx context.Context, id int32) (*models.ContentItem, error) {
	query := `
	SELECT id, creator_id, owner_id, title, description, dime_value, created_at
	FROM content_items WHERE id = $1`

	var item models.ContentItem
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.CreatorID,
		&item.OwnerID,
		&item.Title,
		&item.Description,
		&item.DimeValue,
		&item.CreatedAt,
	)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrContentNotFound
	case err != nil:
		return nil, storeErr(fmt.Errorf("failed to get content item: %w", err))
	}
	return &item, nil
}

func (r *PostgresContentRepository) List(ctx context.Context) ([]models.ContentItem, error) {
	query := `
	SELECT id, creator_id, owner_id, title, description, dime_value, created_at
	FROM content_items ORDER BY created_at DESC`
	return r.queryItems(ctx, query)
}

func (r *PostgresContentRepository) ListByOwner(ctx context.Context, ownerID int32) ([]models.ContentItem, error) {
	query := `
	SELECT id, creator_id, owner_id, title, description, dime_value, created_at
	FROM content_items WHERE owner_id = $1 ORDER BY created_at DESC`
	return r.queryItems(ctx, query, ownerID)
}

func (r *PostgresContentRepository) queryItems(ctx context.Context, query string, args ...interface{}) ([]models.ContentItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(fmt.Errorf("failed to list content items: %w", err))
	}
	defer rows.Close()

	var items []models.ContentItem
	for rows.Next() {
		var item models.ContentItem
		if err := rows.Scan(
			&item.ID,
			&item.CreatorID,
			&item.OwnerID,
			&item.Title,
			&item.Description,
			&item.DimeValue,
			&item.CreatedAt,
		); err != nil {
			return nil, storeErr(fmt.Errorf("failed to scan content item: %w", err))
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return items, nil
}

func (r *PostgresContentRepository) SetOwner(ctx context.Context, contentID, newOwnerID, expectedOwnerID int32) (bool, error) {
	query := `UPDATE content_items SET owner_id = $2 WHERE id = $1 AND owner_id = $3`
	res, err := r.db.ExecContext(ctx, query, contentID, newOwnerID, expectedOwnerID)
	if err != nil {
		return false, storeErr(fmt.Errorf("failed to set owner: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr(err)
	}
	return affected == 1, nil
}

func (r *PostgresContentRepository) AddLike(ctx context.Context, userID, contentID int32) (bool, error) {
	query := `
	INSERT INTO likes (user_id, content_id)
	VALUES ($1, $2)
	ON CONFLICT (user_id, content_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, userID, contentID)
	if err != nil {
		return false, storeErr(fmt.Errorf("failed to add like: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr(err)
	}
	return affected == 1, nil
}

func (r *PostgresContentRepository) RemoveLike(ctx context.Context, userID, contentID int32) (bool, error) {
	query := `DELETE FROM likes WHERE user_id = $1 AND content_id = $2`
	res, err := r.db.ExecContext(ctx, query, userID, contentID)
	if err != nil {
		return false, storeErr(fmt.Errorf("failed to remove like: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr(err)
	}
	return affected == 1, nil
}

func (r *PostgresContentRepository) CountLikes(ctx context.Context, contentID int32) (int32, error) {
	var count int32
	query := `SELECT COUNT(*) FROM likes WHERE content_id = $1`
	if err := r.db.QueryRowContext(ctx, query, contentID).Scan(&count); err != nil {
		return 0, storeErr(fmt.Errorf("failed to count likes: %w", err))
	}
	return count, nil
}

func (r *PostgresContentRepository) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment == nil {
		return fmt.Errorf("%w: comment is nil", pkgerrors.ErrInvalidInput)
	}
	if comment.Body == "" {
		return fmt.Errorf("%w: comment body is required", pkgerrors.ErrInvalidInput)
	}

	query := `
	INSERT INTO comments (user_id, content_id, body)
	VALUES ($1, $2, $3)
	RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, comment.UserID, comment.ContentID, comment.Body).
		Scan(&comment.ID, &comment.CreatedAt)
	if err != nil {
		return storeErr(fmt.Errorf("failed to create comment: %w", err))
	}
	return nil
}

func (r *PostgresContentRepository) ListComments(ctx context.Context, contentID int32) ([]models.Comment, error) {
	query := `
	SELECT id, user_id, content_id, body, created_at
	FROM comments WHERE content_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, contentID)
	if err != nil {
		return nil, storeErr(fmt.Errorf("failed to list comments: %w", err))
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.UserID, &c.ContentID, &c.Body, &c.CreatedAt); err != nil {
			return nil, storeErr(fmt.Errorf("failed to scan comment: %w", err))
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return comments, nil
}

func (r *PostgresContentRepository) UpdateComment(ctx context.Context, commentID, userID int32, body string) error {
	if body == "" {
		return fmt.Errorf("%w: comment body is required", pkgerrors.ErrInvalidInput)
	}

	query := `UPDATE comments SET body = $3 WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, commentID, userID, body)
	if err != nil {
		return storeErr(fmt.Errorf("failed to update comment: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if affected == 0 {
		return r.commentGuardErr(ctx, commentID)
	}
	return nil
}

func (r *PostgresContentRepository) DeleteComment(ctx context.Context, commentID, userID int32) error {
	query := `DELETE FROM comments WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, commentID, userID)
	if err != nil {
		return storeErr(fmt.Errorf("failed to delete comment: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if affected == 0 {
		return r.commentGuardErr(ctx, commentID)
	}
	return nil
}

// commentGuardErr tells a missing comment apart from someone else's.
func (r *PostgresContentRepository) commentGuardErr(ctx context.Context, commentID int32) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1)`, commentID).Scan(&exists)
	if err != nil {
		return storeErr(err)
	}
	if !exists {
		return pkgerrors.ErrCommentNotFound
	}
	return pkgerrors.ErrForbidden
}
