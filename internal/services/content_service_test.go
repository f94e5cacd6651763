package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/contentvault/ledger/internal/infrastructure/redis"
	redismocks "github.com/contentvault/ledger/internal/infrastructure/redis/mocks"
	"github.com/contentvault/ledger/internal/models"
	repositorymocks "github.com/contentvault/ledger/internal/repository/mocks"
	pkgerrors "github.com/contentvault/ledger/pkg/errors"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
)

func TestContentService_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	contentRepo := repositorymocks.NewMockContentRepository(ctrl)
	redisClient := redismocks.NewMockRedisClient(ctrl)

	ctx := context.Background()
	service := NewContentService(contentRepo, redisClient, testConfig())

	item := &models.ContentItem{ID: 7, CreatorID: 2, OwnerID: 2, Title: "sketch", DimeValue: 30}

	t.Run("cache miss loads and caches", func(t *testing.T) {
		itemJSON, _ := json.Marshal(item)

		redisClient.EXPECT().Get(gomock.Any(), "content:7").Return("", redis.ErrKeyNotFound)
		contentRepo.EXPECT().GetByID(gomock.Any(), int32(7)).Return(item, nil)
		redisClient.EXPECT().Set(gomock.Any(), "content:7", string(itemJSON), 24*time.Hour).Return(nil)
		contentRepo.EXPECT().CountLikes(gomock.Any(), int32(7)).Return(int32(3), nil)

		got, likes, err := service.Get(ctx, 7)
		assert.NoError(t, err)
		assert.Equal(t, int32(7), got.ID)
		assert.Equal(t, int32(3), likes)
	})

	t.Run("cache hit skips the store", func(t *testing.T) {
		itemJSON, _ := json.Marshal(item)

		redisClient.EXPECT().Get(gomock.Any(), "content:7").Return(string(itemJSON), nil)
		contentRepo.EXPECT().CountLikes(gomock.Any(), int32(7)).Return(int32(3), nil)

		got, likes, err := service.Get(ctx, 7)
		assert.NoError(t, err)
		assert.Equal(t, item.Title, got.Title)
		assert.Equal(t, int32(3), likes)
	})

	t.Run("missing content", func(t *testing.T) {
		redisClient.EXPECT().Get(gomock.Any(), "content:99").Return("", redis.ErrKeyNotFound)
		contentRepo.EXPECT().GetByID(gomock.Any(), int32(99)).Return(nil, pkgerrors.ErrContentNotFound)

		got, _, err := service.Get(ctx, 99)
		assert.ErrorIs(t, err, pkgerrors.ErrContentNotFound)
		assert.Nil(t, got)
	})
}

func TestContentService_ToggleLike(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	contentRepo := repositorymocks.NewMockContentRepository(ctrl)
	redisClient := redismocks.NewMockRedisClient(ctrl)

	ctx := context.Background()
	service := NewContentService(contentRepo, redisClient, testConfig())

	item := &models.ContentItem{ID: 7, OwnerID: 2}

	t.Run("first toggle likes", func(t *testing.T) {
		contentRepo.EXPECT().GetByID(gomock.Any(), int32(7)).Return(item, nil)
		contentRepo.EXPECT().AddLike(gomock.Any(), int32(1), int32(7)).Return(true, nil)

		liked, err := service.ToggleLike(ctx, 1, 7)
		assert.NoError(t, err)
		assert.True(t, liked)
	})

	t.Run("second toggle unlikes", func(t *testing.T) {
		contentRepo.EXPECT().GetByID(gomock.Any(), int32(7)).Return(item, nil)
		contentRepo.EXPECT().AddLike(gomock.Any(), int32(1), int32(7)).Return(false, nil)
		contentRepo.EXPECT().RemoveLike(gomock.Any(), int32(1), int32(7)).Return(true, nil)

		liked, err := service.ToggleLike(ctx, 1, 7)
		assert.NoError(t, err)
		assert.False(t, liked)
	})
}

func TestContentService_Comments(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	contentRepo := repositorymocks.NewMockContentRepository(ctrl)
	redisClient := redismocks.NewMockRedisClient(ctrl)

	ctx := context.Background()
	service := NewContentService(contentRepo, redisClient, testConfig())

	t.Run("add comment", func(t *testing.T) {
		item := &models.ContentItem{ID: 7, OwnerID: 2}

		contentRepo.EXPECT().GetByID(gomock.Any(), int32(7)).Return(item, nil)
		contentRepo.EXPECT().CreateComment(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, comment *models.Comment) error {
				comment.ID = 3
				return nil
			})

		comment, err := service.AddComment(ctx, 1, 7, "nice sketch")
		assert.NoError(t, err)
		assert.Equal(t, int32(3), comment.ID)
	})

	t.Run("only the author may edit", func(t *testing.T) {
		contentRepo.EXPECT().UpdateComment(gomock.Any(), int32(3), int32(2), "edited").Return(pkgerrors.ErrForbidden)

		err := service.UpdateComment(ctx, 3, 2, "edited")
		assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
	})

	t.Run("delete missing comment", func(t *testing.T) {
		contentRepo.EXPECT().DeleteComment(gomock.Any(), int32(99), int32(1)).Return(pkgerrors.ErrCommentNotFound)

		err := service.DeleteComment(ctx, 99, 1)
		assert.ErrorIs(t, err, pkgerrors.ErrCommentNotFound)
	})
}
