package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/contentvault/ledger/internal/config"
	"github.com/contentvault/ledger/internal/infrastructure/redis"
	"github.com/contentvault/ledger/internal/models"
	"github.com/contentvault/ledger/internal/repository"
	pkgerrors "github.com/contentvault/ledger/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

type ContentService interface {
	Publish(ctx context.Context, creatorID int32, title, description string, dimeValue int32) (*models.ContentItem, error)
	Get(ctx context.Context, contentID int32) (*models.ContentItem, int32, error)
	Browse(ctx context.Context) ([]models.ContentItem, error)
	Library(ctx context.Context, ownerID int32) ([]models.ContentItem, error)
	ToggleLike(ctx context.Context, userID, contentID int32) (bool, error)
	AddComment(ctx context.Context, userID, contentID int32, body string) (*models.Comment, error)
	ListComments(ctx context.Context, contentID int32) ([]models.Comment, error)
	UpdateComment(ctx context.Context, commentID, userID int32, body string) error
	DeleteComment(ctx context.Context, commentID, userID int32) error
}

type contentService struct {
	contentRepo repository.ContentRepository
	redisClient redis.RedisClient
	cfg         *config.Config
}

func NewContentService(contentRepo repository.ContentRepository, redisClient redis.RedisClient, cfg *config.Config) *contentService {
	return &contentService{
		contentRepo: contentRepo,
		redisClient: redisClient,
		cfg:         cfg,
	}
}

func (s *contentService) Publish(ctx context.Context, creatorID int32, title, description string, dimeValue int32) (*models.ContentItem, error) {
	tracer := otel.Tracer("content-service")
	ctx, span := tracer.Start(ctx, "PublishContent")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	// The creator is the first owner; creator_id never changes after this.
	item := &models.ContentItem{
		CreatorID:   creatorID,
		OwnerID:     creatorID,
		Title:       title,
		Description: description,
		DimeValue:   dimeValue,
	}
	if err := s.contentRepo.Create(ctx, item); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "content creation failed")
		slog.Error("failed to publish content", "creator_id", creatorID, "error", err)
		return nil, err
	}

	slog.Info("content published", "content_id", item.ID, "creator_id", creatorID, "dime_value", dimeValue)
	return item, nil
}

func (s *contentService) Get(ctx context.Context, contentID int32) (*models.ContentItem, int32, error) {
	tracer := otel.Tracer("content-service")
	ctx, span := tracer.Start(ctx, "GetContent")
	defer span.End()

	contentKey := fmt.Sprintf("content:%d", contentID)
	var item *models.ContentItem

	cached, err := s.redisClient.Get(ctx, contentKey)
	if err != nil && !stderrors.Is(err, redis.ErrKeyNotFound) {
		slog.Error("failed to get content from Redis", "content_id", contentID, "error", err)
	}
	if err == nil {
		if err := json.Unmarshal([]byte(cached), &item); err != nil {
			slog.Error("failed to unmarshal cached content", "content_id", contentID, "error", err)
			item = nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	if item == nil {
		item, err = s.contentRepo.GetByID(ctx, contentID)
		if err != nil {
			span.RecordError(err)
			return nil, 0, err
		}
		if itemBytes, err := json.Marshal(item); err == nil {
			if err := s.redisClient.Set(ctx, contentKey, string(itemBytes), 24*time.Hour); err != nil {
				slog.Error("failed to cache content", "content_id", contentID, "error", err)
			}
		}
	}

	likes, err := s.contentRepo.CountLikes(ctx, contentID)
	if err != nil {
		span.RecordError(err)
		return nil, 0, err
	}
	return item, likes, nil
}

func (s *contentService) Browse(ctx context.Context) ([]models.ContentItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.contentRepo.List(ctx)
}

func (s *contentService) Library(ctx context.Context, ownerID int32) ([]models.ContentItem, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.contentRepo.ListByOwner(ctx, ownerID)
}

// ToggleLike adds a like, or removes it when one already exists.
// Returns whether the item is liked after the call.
func (s *contentService) ToggleLike(ctx context.Context, userID, contentID int32) (bool, error) {
	tracer := otel.Tracer("content-service")
	ctx, span := tracer.Start(ctx, "ToggleLike")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	if _, err := s.contentRepo.GetByID(ctx, contentID); err != nil {
		span.RecordError(err)
		return false, err
	}

	added, err := s.contentRepo.AddLike(ctx, userID, contentID)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to add like", "user_id", userID, "content_id", contentID, "error", err)
		return false, err
	}
	if added {
		return true, nil
	}

	if _, err := s.contentRepo.RemoveLike(ctx, userID, contentID); err != nil {
		span.RecordError(err)
		slog.Error("failed to remove like", "user_id", userID, "content_id", contentID, "error", err)
		return false, err
	}
	return false, nil
}

func (s *contentService) AddComment(ctx context.Context, userID, contentID int32, body string) (*models.Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	if _, err := s.contentRepo.GetByID(ctx, contentID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		UserID:    userID,
		ContentID: contentID,
		Body:      body,
	}
	if err := s.contentRepo.CreateComment(ctx, comment); err != nil {
		slog.Error("failed to create comment", "user_id", userID, "content_id", contentID, "error", err)
		return nil, err
	}
	return comment, nil
}

func (s *contentService) ListComments(ctx context.Context, contentID int32) ([]models.Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.contentRepo.ListComments(ctx, contentID)
}

func (s *contentService) UpdateComment(ctx context.Context, commentID, userID int32, body string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	err := s.contentRepo.UpdateComment(ctx, commentID, userID, body)
	if err != nil && !stderrors.Is(err, pkgerrors.ErrForbidden) && !stderrors.Is(err, pkgerrors.ErrCommentNotFound) {
		slog.Error("failed to update comment", "comment_id", commentID, "user_id", userID, "error", err)
	}
	return err
}

func (s *contentService) DeleteComment(ctx context.Context, commentID, userID int32) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	err := s.contentRepo.DeleteComment(ctx, commentID, userID)
	if err != nil && !stderrors.Is(err, pkgerrors.ErrForbidden) && !stderrors.Is(err, pkgerrors.ErrCommentNotFound) {
		slog.Error("failed to delete comment", "comment_id", commentID, "user_id", userID, "error", err)
	}
	return err
}
