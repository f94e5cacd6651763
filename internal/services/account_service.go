package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/contentvault/ledger/internal/config"
	"github.com/contentvault/ledger/internal/infrastructure/kafka"
	"github.com/contentvault/ledger/internal/infrastructure/redis"
	"github.com/contentvault/ledger/internal/models"
	"github.com/contentvault/ledger/internal/repository"
	pkgerrors "github.com/contentvault/ledger/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

type AccountService interface {
	Register(ctx context.Context, username, password string) (int32, error)
	Login(ctx context.Context, username, password string) (string, error)
	GetBalance(ctx context.Context, userID int32) (int32, error)
	GetHistory(ctx context.Context, userID int32) ([]models.LedgerEvent, error)
}

type accountService struct {
	accountRepo repository.AccountRepository
	eventRepo   repository.EventRepository
	redisClient redis.RedisClient
	producer    kafka.KafkaProducer
	jwtSecret   string
	cfg         *config.Config
	clock       Clock
}

func NewAccountService(
	accountRepo repository.AccountRepository,
	eventRepo repository.EventRepository,
	redisClient redis.RedisClient,
	producer kafka.KafkaProducer,
	jwtSecret string,
	cfg *config.Config,
	clock Clock,
) *accountService {
	return &accountService{
		accountRepo: accountRepo,
		eventRepo:   eventRepo,
		redisClient: redisClient,
		producer:    producer,
		jwtSecret:   jwtSecret,
		cfg:         cfg,
		clock:       clock,
	}
}

func (s *accountService) Register(ctx context.Context, username, password string) (int32, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	if username == "" || password == "" {
		span.SetStatus(codes.Error, "empty username or password")
		return 0, pkgerrors.ErrInvalidInput
	}

	existing, err := s.accountRepo.GetByUsername(ctx, username)
	if existing != nil {
		span.SetStatus(codes.Error, "username already exists")
		slog.Warn("username already exists", "username", username, "existing_id", existing.ID)
		return 0, pkgerrors.ErrUsernameExists
	}
	if err != nil && !stderrors.Is(err, pkgerrors.ErrAccountNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "account check failed")
		slog.Error("failed to check account existence", "username", username, "error", err)
		return 0, fmt.Errorf("%w: failed to check account existence", pkgerrors.ErrInternal)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "password hashing failed")
		slog.Error("failed to hash password", "username", username, "error", err)
		return 0, fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}

	// Spins are seeded at creation; the first reset deadline starts now.
	nextReset := s.clock.Now().Add(s.cfg.SpinResetEvery)
	account := &models.Account{
		Username:       username,
		PasswordHash:   string(hash),
		Balance:        s.cfg.StartingBalance,
		SpinsRemaining: s.cfg.MaxSpins,
		NextSpinReset:  &nextReset,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		if stderrors.Is(err, pkgerrors.ErrUsernameExists) {
			return 0, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "account creation failed")
		slog.Error("failed to create account", "username", username, "error", err)
		return 0, fmt.Errorf("%w: failed to create account", pkgerrors.ErrInternal)
	}

	event := map[string]interface{}{
		"event_type": "account_registered",
		"user_id":    account.ID,
		"username":   username,
		"created_at": s.clock.Now().UTC().Format(time.RFC3339),
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to marshal kafka event", "user_id", account.ID, "error", err)
	} else {
		go func() {
			retries := 3
			for i := 0; i < retries; i++ {
				if err := s.producer.Send(context.Background(), "accounts", int64(account.ID), eventBytes); err == nil {
					return
				}
				time.Sleep(time.Second * time.Duration(i+1))
			}
			slog.Error("failed to send registration event after retries", "user_id", account.ID, "username", username)
		}()
	}

	slog.Info("account registered", "user_id", account.ID, "username", username)
	return account.ID, nil
}

func (s *accountService) Login(ctx context.Context, username, password string) (string, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	account, err := s.accountRepo.GetByUsername(ctx, username)
	if err != nil {
		slog.Error("failed to login", "username", username, "error", err)
		return "", pkgerrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		slog.Error("invalid password", "username", username)
		return "", pkgerrors.ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": account.ID,
		"exp":     s.clock.Now().Add(time.Hour).Unix(),
	})
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		slog.Error("failed to generate JWT", "error", err)
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.redisClient.Set(ctx, fmt.Sprintf("user:%d:token", account.ID), tokenString, time.Hour); err != nil {
		slog.Error("failed to cache JWT", "user_id", account.ID, "error", err)
	}

	slog.Info("user logged in", "username", username, "user_id", account.ID)
	return tokenString, nil
}

func (s *accountService) GetBalance(ctx context.Context, userID int32) (int32, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "GetBalance")
	defer span.End()

	balanceKey := fmt.Sprintf("user:%d:balance", userID)
	balanceStr, err := s.redisClient.Get(ctx, balanceKey)
	if err == nil {
		var balance int32
		if err := json.Unmarshal([]byte(balanceStr), &balance); err == nil {
			return balance, nil
		}
		slog.Error("failed to unmarshal cached balance", "user_id", userID, "error", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	balance, err := s.accountRepo.GetBalance(ctx, userID)
	if err != nil {
		slog.Error("failed to get balance", "user_id", userID, "error", err)
		return 0, err
	}

	if err := s.redisClient.Set(ctx, balanceKey, balance, time.Minute); err != nil {
		slog.Error("failed to cache balance", "user_id", userID, "error", err)
	}
	return balance, nil
}

func (s *accountService) GetHistory(ctx context.Context, userID int32) ([]models.LedgerEvent, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "GetHistory")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	events, err := s.eventRepo.ListByUser(ctx, userID)
	if err != nil {
		slog.Error("failed to get ledger history", "user_id", userID, "error", err)
		return nil, err
	}
	return events, nil
}
