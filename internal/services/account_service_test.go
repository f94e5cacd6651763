package service

import (
	"context"
	"testing"
	"time"

	kafkamocks "github.com/contentvault/ledger/internal/infrastructure/kafka/mocks"
	"github.com/contentvault/ledger/internal/infrastructure/redis"
	redismocks "github.com/contentvault/ledger/internal/infrastructure/redis/mocks"
	"github.com/contentvault/ledger/internal/models"
	repositorymocks "github.com/contentvault/ledger/internal/repository/mocks"
	pkgerrors "github.com/contentvault/ledger/pkg/errors"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestAccountService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountRepo := repositorymocks.NewMockAccountRepository(ctrl)
	eventRepo := repositorymocks.NewMockEventRepository(ctrl)
	redisClient := redismocks.NewMockRedisClient(ctrl)
	kafkaProducer := kafkamocks.NewMockKafkaProducer(ctrl)

	ctx := context.Background()
	cfg := testConfig()
	clock := &testClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	service := NewAccountService(accountRepo, eventRepo, redisClient, kafkaProducer, "secret", cfg, clock)

	t.Run("successful registration seeds balance and spins", func(t *testing.T) {
		accountRepo.EXPECT().GetByUsername(gomock.Any(), "alice").Return(nil, pkgerrors.ErrAccountNotFound)
		accountRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, account *models.Account) error {
				assert.Equal(t, cfg.StartingBalance, account.Balance)
				assert.Equal(t, cfg.MaxSpins, account.SpinsRemaining)
				if assert.NotNil(t, account.NextSpinReset) {
					assert.Equal(t, clock.now.Add(cfg.SpinResetEvery), *account.NextSpinReset)
				}
				account.ID = 1
				return nil
			})
		// Registration event is published from a goroutine with retries.
		kafkaProducer.EXPECT().Send(gomock.Any(), "accounts", int64(1), gomock.Any()).Return(nil).AnyTimes()

		id, err := service.Register(ctx, "alice", "password")
		assert.NoError(t, err)
		assert.Equal(t, int32(1), id)
	})

	t.Run("username taken", func(t *testing.T) {
		existing := &models.Account{ID: 1, Username: "alice"}

		accountRepo.EXPECT().GetByUsername(gomock.Any(), "alice").Return(existing, nil)

		id, err := service.Register(ctx, "alice", "password")
		assert.ErrorIs(t, err, pkgerrors.ErrUsernameExists)
		assert.Zero(t, id)
	})

	t.Run("empty credentials", func(t *testing.T) {
		id, err := service.Register(ctx, "", "")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
		assert.Zero(t, id)
	})
}

func TestAccountService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountRepo := repositorymocks.NewMockAccountRepository(ctrl)
	eventRepo := repositorymocks.NewMockEventRepository(ctrl)
	redisClient := redismocks.NewMockRedisClient(ctrl)
	kafkaProducer := kafkamocks.NewMockKafkaProducer(ctrl)

	ctx := context.Background()
	clock := &testClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	service := NewAccountService(accountRepo, eventRepo, redisClient, kafkaProducer, "secret", testConfig(), clock)

	t.Run("successful login", func(t *testing.T) {
		hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
		account := &models.Account{ID: 1, Username: "alice", PasswordHash: string(hash)}

		accountRepo.EXPECT().GetByUsername(gomock.Any(), "alice").Return(account, nil)
		redisClient.EXPECT().Set(gomock.Any(), "user:1:token", gomock.Any(), time.Hour).Return(nil)

		token, err := service.Login(ctx, "alice", "password")
		assert.NoError(t, err)
		assert.NotEmpty(t, token)
	})

	t.Run("wrong password", func(t *testing.T) {
		hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
		account := &models.Account{ID: 1, Username: "alice", PasswordHash: string(hash)}

		accountRepo.EXPECT().GetByUsername(gomock.Any(), "alice").Return(account, nil)

		token, err := service.Login(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
		assert.Empty(t, token)
	})

	t.Run("unknown user", func(t *testing.T) {
		accountRepo.EXPECT().GetByUsername(gomock.Any(), "ghost").Return(nil, pkgerrors.ErrAccountNotFound)

		token, err := service.Login(ctx, "ghost", "password")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
		assert.Empty(t, token)
	})
}

func TestAccountService_GetBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountRepo := repositorymocks.NewMockAccountRepository(ctrl)
	eventRepo := repositorymocks.NewMockEventRepository(ctrl)
	redisClient := redismocks.NewMockRedisClient(ctrl)
	kafkaProducer := kafkamocks.NewMockKafkaProducer(ctrl)

	ctx := context.Background()
	clock := &testClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	service := NewAccountService(accountRepo, eventRepo, redisClient, kafkaProducer, "secret", testConfig(), clock)

	t.Run("cache hit", func(t *testing.T) {
		redisClient.EXPECT().Get(gomock.Any(), "user:1:balance").Return("42", nil)

		balance, err := service.GetBalance(ctx, 1)
		assert.NoError(t, err)
		assert.Equal(t, int32(42), balance)
	})

	t.Run("cache miss falls through to the store", func(t *testing.T) {
		redisClient.EXPECT().Get(gomock.Any(), "user:1:balance").Return("", redis.ErrKeyNotFound)
		accountRepo.EXPECT().GetBalance(gomock.Any(), int32(1)).Return(int32(15), nil)
		redisClient.EXPECT().Set(gomock.Any(), "user:1:balance", int32(15), time.Minute).Return(nil)

		balance, err := service.GetBalance(ctx, 1)
		assert.NoError(t, err)
		assert.Equal(t, int32(15), balance)
	})

	t.Run("store unavailable", func(t *testing.T) {
		redisClient.EXPECT().Get(gomock.Any(), "user:1:balance").Return("", redis.ErrKeyNotFound)
		accountRepo.EXPECT().GetBalance(gomock.Any(), int32(1)).Return(int32(0), pkgerrors.ErrStoreUnavailable)

		balance, err := service.GetBalance(ctx, 1)
		assert.ErrorIs(t, err, pkgerrors.ErrStoreUnavailable)
		assert.Zero(t, balance)
	})
}

func TestAccountService_GetHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accountRepo := repositorymocks.NewMockAccountRepository(ctrl)
	eventRepo := repositorymocks.NewMockEventRepository(ctrl)
	redisClient := redismocks.NewMockRedisClient(ctrl)
	kafkaProducer := kafkamocks.NewMockKafkaProducer(ctrl)

	ctx := context.Background()
	clock := &testClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	service := NewAccountService(accountRepo, eventRepo, redisClient, kafkaProducer, "secret", testConfig(), clock)

	events := []models.LedgerEvent{
		{ID: 1, UserID: 1, Amount: -30, Type: models.EventTransferOut},
		{ID: 2, UserID: 1, Amount: 4, Type: models.EventCheckIn},
	}

	eventRepo.EXPECT().ListByUser(gomock.Any(), int32(1)).Return(events, nil)

	got, err := service.GetHistory(ctx, 1)
	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, models.EventTransferOut, got[0].Type)
}
