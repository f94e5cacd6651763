package repository

import (
	"context"

	"github.com/contentvault/ledger/internal/models"
)

type ContentRepository interface {
	Create(ctx context.Context, item *models.ContentItem) error
	GetByID(ctx context.Context, id int32) (*models.ContentItem, error)
	List(ctx context.Context) ([]models.ContentItem, error)
	ListByOwner(ctx context.Context, ownerID int32) ([]models.ContentItem, error)

	// SetOwner reassigns ownership only while expectedOwnerID still owns
	// the item. Returns false when the owner changed underneath.
	SetOwner(ctx context.Context, contentID, newOwnerID, expectedOwnerID int32) (bool, error)

	// AddLike returns false when the user already liked the item.
	AddLike(ctx context.Context, userID, contentID int32) (bool, error)
	RemoveLike(ctx context.Context, userID, contentID int32) (bool, error)
	CountLikes(ctx context.Context, contentID int32) (int32, error)

	CreateComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, contentID int32) ([]models.Comment, error)
	UpdateComment(ctx context.Context, commentID, userID int32, body string) error
	DeleteComment(ctx context.Context, commentID, userID int32) error
}
