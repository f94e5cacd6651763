package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contentvault/ledger/internal/config"
	kafkamocks "github.com/contentvault/ledger/internal/infrastructure/kafka/mocks"
	redismocks "github.com/contentvault/ledger/internal/infrastructure/redis/mocks"
	"github.com/contentvault/ledger/internal/models"
	repositorymocks "github.com/contentvault/ledger/internal/repository/mocks"
	pkgerrors "github.com/contentvault/ledger/pkg/errors"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
)

func testConfig() *config.Config {
	return &config.Config{
		StartingBalance: 10,
		CheckInMin:      1,
		CheckInMax:      5,
		SpinMin:         1,
		SpinMax:         10,
		MaxSpins:        3,
		SpinResetEvery:  8 * time.Hour,
		StoreTimeout:    3 * time.Second,
	}
}

func TestLedgerService_CreateRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	requestRepo := repositorymocks.NewMockRequestRepository(ctrl)
	contentRepo := repositorymocks.NewMockContentRepository(ctrl)
	transferRepo := repositorymocks.NewMockTransferRepository(ctrl)
	redisClient := redismocks.NewMockRedisClient(ctrl)
	kafkaProducer := kafkamocks.NewMockKafkaProducer(ctrl)

	ctx := context.Background()
	clock := &testClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	service := NewLedgerService(requestRepo, contentRepo, transferRepo, redisClient, kafkaProducer, testConfig(), clock)

	t.Run("successful request", func(t *testing.T) {
		content := &models.ContentItem{ID: 7, CreatorID: 2, OwnerID: 2, Title: "sketch", DimeValue: 30}

		contentRepo.EXPECT().GetByID(gomock.Any(), int32(7)).Return(content, nil)
		requestRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req *models.PurchaseRequest) error {
				req.ID = 5
				req.Status = models.RequestPending
				return nil
			})

		req, err := service.CreateRequest(ctx, 7, 1, 30)
		assert.NoError(t, err)
		assert.Equal(t, int32(5), req.ID)
		assert.Equal(t, int32(2), req.OwnerID)
		assert.Equal(t, int32(30), req.DimeAmount)
		assert.Equal(t, models.RequestPending, req.Status)
	})

	t.Run("owner cannot request own content", func(t *testing.T) {
		content := &models.ContentItem{ID: 7, CreatorID: 2, OwnerID: 2, DimeValue: 30}

		contentRepo.EXPECT().GetByID(gomock.Any(), int32(7)).Return(content, nil)

		req, err := service.CreateRequest(ctx, 7, 2, 30)
		assert.ErrorIs(t, err, pkgerrors.ErrNotOwnerEligible)
		assert.Nil(t, req)
	})

	t.Run("amount below one is rejected", func(t *testing.T) {
		req, err := service.CreateRequest(ctx, 7, 1, 0)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
		assert.Nil(t, req)
	})

	t.Run("second pending request for same content", func(t *testing.T) {
		content := &models.ContentItem{ID: 7, CreatorID: 2, OwnerID: 2, DimeValue: 30}

		contentRepo.EXPECT().GetByID(gomock.Any(), int32(7)).Return(content, nil)
		requestRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(pkgerrors.ErrDuplicateRequest)

		req, err := service.CreateRequest(ctx, 7, 1, 40)
		assert.ErrorIs(t, err, pkgerrors.ErrDuplicateRequest)
		assert.Nil(t, req)
	})

	t.Run("content not found", func(t *testing.T) {
		contentRepo.EXPECT().GetByID(gomock.Any(), int32(99)).Return(nil, pkgerrors.ErrContentNotFound)

		req, err := service.CreateRequest(ctx, 99, 1, 30)
		assert.ErrorIs(t, err, pkgerrors.ErrContentNotFound)
		assert.Nil(t, req)
	})
}

func TestLedgerService_AcceptRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	requestRepo := repositorymocks.NewMockRequestRepository(ctrl)
	contentRepo := repositorymocks.NewMockContentRepository(ctrl)
	transferRepo := repositorymocks.NewMockTransferRepository(ctrl)
	redisClient := redismocks.NewMockRedisClient(ctrl)
	kafkaProducer := kafkamocks.NewMockKafkaProducer(ctrl)

	ctx := context.Background()
	clock := &testClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	service := NewLedgerService(requestRepo, contentRepo, transferRepo, redisClient, kafkaProducer, testConfig(), clock)

	t.Run("successful accept moves dimes and ownership", func(t *testing.T) {
		result := &models.TransferResult{
			RequestID:        5,
			ContentID:        7,
			RequesterID:      1,
			OwnerID:          2,
			DimeAmount:       30,
			RequesterBalance: 70,
			OwnerBalance:     130,
			RejectedRivals:   2,
		}

		redisClient.EXPECT().SetNX(gomock.Any(), "request:5:accept", "locked", 10*time.Second).Return(true, nil)
		transferRepo.EXPECT().Accept(gomock.Any(), int32(5), int32(2)).Return(result, nil)
		redisClient.EXPECT().Del(gomock.Any(), "user:1:balance").Return(nil)
		redisClient.EXPECT().Del(gomock.Any(), "user:2:balance").Return(nil)
		redisClient.EXPECT().Del(gomock.Any(), "content:7").Return(nil)
		redisClient.EXPECT().Del(gomock.Any(), "request:5:accept").Return(nil)
		kafkaProducer.EXPECT().Send(gomock.Any(), "transfers", int64(5), gomock.Any()).Return(nil)

		got, err := service.AcceptRequest(ctx, 5, 2)
		assert.NoError(t, err)
		assert.Equal(t, int32(70), got.RequesterBalance)
		assert.Equal(t, int32(130), got.OwnerBalance)
		assert.Equal(t, int32(2), got.RejectedRivals)
	})

	t.Run("concurrent accept is locked out", func(t *testing.T) {
		redisClient.EXPECT().SetNX(gomock.Any(), "request:5:accept", "locked", 10*time.Second).Return(false, nil)

		got, err := service.AcceptRequest(ctx, 5, 2)
		assert.ErrorIs(t, err, pkgerrors.ErrRequestLocked)
		assert.Nil(t, got)
	})

	t.Run("requester cannot cover the amount", func(t *testing.T) {
		redisClient.EXPECT().SetNX(gomock.Any(), "request:5:accept", "locked", 10*time.Second).Return(true, nil)
		transferRepo.EXPECT().Accept(gomock.Any(), int32(5), int32(2)).Return(nil, pkgerrors.ErrInsufficientFunds)
		redisClient.EXPECT().Del(gomock.Any(), "request:5:accept").Return(nil)

		got, err := service.AcceptRequest(ctx, 5, 2)
		assert.ErrorIs(t, err, pkgerrors.ErrInsufficientFunds)
		assert.Nil(t, got)
	})

	t.Run("request already closed", func(t *testing.T) {
		redisClient.EXPECT().SetNX(gomock.Any(), "request:5:accept", "locked", 10*time.Second).Return(true, nil)
		transferRepo.EXPECT().Accept(gomock.Any(), int32(5), int32(2)).Return(nil, pkgerrors.ErrForbidden)
		redisClient.EXPECT().Del(gomock.Any(), "request:5:accept").Return(nil)

		got, err := service.AcceptRequest(ctx, 5, 2)
		assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
		assert.Nil(t, got)
	})

	t.Run("lost kafka event does not fail the transfer", func(t *testing.T) {
		result := &models.TransferResult{
			RequestID:        6,
			ContentID:        8,
			RequesterID:      3,
			OwnerID:          4,
			DimeAmount:       10,
			RequesterBalance: 0,
			OwnerBalance:     20,
		}

		redisClient.EXPECT().SetNX(gomock.Any(), "request:6:accept", "locked", 10*time.Second).Return(true, nil)
		transferRepo.EXPECT().Accept(gomock.Any(), int32(6), int32(4)).Return(result, nil)
		redisClient.EXPECT().Del(gomock.Any(), "user:3:balance").Return(nil)
		redisClient.EXPECT().Del(gomock.Any(), "user:4:balance").Return(nil)
		redisClient.EXPECT().Del(gomock.Any(), "content:8").Return(nil)
		redisClient.EXPECT().Del(gomock.Any(), "request:6:accept").Return(nil)
		kafkaProducer.EXPECT().Send(gomock.Any(), "transfers", int64(6), gomock.Any()).Return(errors.New("broker down"))

		got, err := service.AcceptRequest(ctx, 6, 4)
		assert.NoError(t, err)
		assert.Equal(t, int32(0), got.RequesterBalance)
	})
}

func TestLedgerService_RequestGuards(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	requestRepo := repositorymocks.NewMockRequestRepository(ctrl)
	contentRepo := repositorymocks.NewMockContentRepository(ctrl)
	transferRepo := repositorymocks.NewMockTransferRepository(ctrl)
	redisClient := redismocks.NewMockRedisClient(ctrl)
	kafkaProducer := kafkamocks.NewMockKafkaProducer(ctrl)

	ctx := context.Background()
	clock := &testClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	service := NewLedgerService(requestRepo, contentRepo, transferRepo, redisClient, kafkaProducer, testConfig(), clock)

	t.Run("update amount on pending request", func(t *testing.T) {
		requestRepo.EXPECT().UpdateAmount(gomock.Any(), int32(5), int32(1), int32(45)).Return(true, nil)

		err := service.UpdateRequest(ctx, 5, 1, 45)
		assert.NoError(t, err)
	})

	t.Run("update on missing request", func(t *testing.T) {
		requestRepo.EXPECT().UpdateAmount(gomock.Any(), int32(99), int32(1), int32(45)).Return(false, nil)
		requestRepo.EXPECT().GetByID(gomock.Any(), int32(99)).Return(nil, pkgerrors.ErrRequestNotFound)

		err := service.UpdateRequest(ctx, 99, 1, 45)
		assert.ErrorIs(t, err, pkgerrors.ErrRequestNotFound)
	})

	t.Run("cancel on closed request", func(t *testing.T) {
		closed := &models.PurchaseRequest{ID: 5, Status: models.RequestAccepted}

		requestRepo.EXPECT().Delete(gomock.Any(), int32(5), int32(1)).Return(false, nil)
		requestRepo.EXPECT().GetByID(gomock.Any(), int32(5)).Return(closed, nil)

		err := service.CancelRequest(ctx, 5, 1)
		assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
	})

	t.Run("reject by non-owner", func(t *testing.T) {
		pending := &models.PurchaseRequest{ID: 5, Status: models.RequestPending, OwnerID: 2}

		requestRepo.EXPECT().MarkRejected(gomock.Any(), int32(5), int32(3)).Return(false, nil)
		requestRepo.EXPECT().GetByID(gomock.Any(), int32(5)).Return(pending, nil)

		err := service.RejectRequest(ctx, 5, 3)
		assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
	})
}

func TestLedgerService_ListRequestsForContent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	requestRepo := repositorymocks.NewMockRequestRepository(ctrl)
	contentRepo := repositorymocks.NewMockContentRepository(ctrl)
	transferRepo := repositorymocks.NewMockTransferRepository(ctrl)
	redisClient := redismocks.NewMockRedisClient(ctrl)
	kafkaProducer := kafkamocks.NewMockKafkaProducer(ctrl)

	ctx := context.Background()
	clock := &testClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	service := NewLedgerService(requestRepo, contentRepo, transferRepo, redisClient, kafkaProducer, testConfig(), clock)

	content := &models.ContentItem{ID: 7, OwnerID: 2}

	t.Run("owner sees incoming requests", func(t *testing.T) {
		requests := []models.PurchaseRequest{
			{ID: 5, ContentID: 7, RequesterID: 1, DimeAmount: 30, Status: models.RequestPending},
		}

		contentRepo.EXPECT().GetByID(gomock.Any(), int32(7)).Return(content, nil)
		requestRepo.EXPECT().ListByContent(gomock.Any(), int32(7)).Return(requests, nil)

		got, err := service.ListRequestsForContent(ctx, 7, 2)
		assert.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("non-owner is refused", func(t *testing.T) {
		contentRepo.EXPECT().GetByID(gomock.Any(), int32(7)).Return(content, nil)

		got, err := service.ListRequestsForContent(ctx, 7, 3)
		assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
		assert.Nil(t, got)
	})
}
