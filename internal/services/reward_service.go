package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/contentvault/ledger/internal/config"
	"github.com/contentvault/ledger/internal/infrastructure/kafka"
	"github.com/contentvault/ledger/internal/infrastructure/observability"
	"github.com/contentvault/ledger/internal/models"
	"github.com/contentvault/ledger/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// RewardService grants check-in and spin rewards. All deadlines are
// evaluated lazily against the injected clock; nothing runs on a
// background timer.
type RewardService interface {
	CheckIn(ctx context.Context, userID int32) (reward, balance int32, err error)
	Spin(ctx context.Context, userID int32) (reward, balance int32, status *models.SpinStatus, err error)
	SpinStatus(ctx context.Context, userID int32) (*models.SpinStatus, error)
}

type rewardService struct {
	accountRepo repository.AccountRepository
	producer    kafka.KafkaProducer
	cfg         *config.Config
	clock       Clock
	rewards     RewardSource
}

func NewRewardService(
	accountRepo repository.AccountRepository,
	producer kafka.KafkaProducer,
	cfg *config.Config,
	clock Clock,
	rewards RewardSource,
) *rewardService {
	return &rewardService{
		accountRepo: accountRepo,
		producer:    producer,
		cfg:         cfg,
		clock:       clock,
		rewards:     rewards,
	}
}

func (s *rewardService) CheckIn(ctx context.Context, userID int32) (int32, int32, error) {
	tracer := otel.Tracer("reward-service")
	ctx, span := tracer.Start(ctx, "CheckIn")
	span.SetAttributes(attribute.Int("user_id", int(userID)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	// Once per local calendar date, not per 24h window: a check-in at
	// 23:59 permits another at 00:00.
	now := s.clock.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	reward := s.rewards.IntN(s.cfg.CheckInMin, s.cfg.CheckInMax)

	balance, err := s.accountRepo.ApplyCheckIn(ctx, userID, reward, now, dayStart)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "check-in refused")
		return 0, 0, err
	}

	observability.RewardsGranted.WithLabelValues("check_in").Inc()
	s.publishReward(ctx, userID, reward, models.EventCheckIn)
	slog.Info("daily check-in granted", "user_id", userID, "reward", reward, "balance", balance)
	return reward, balance, nil
}

func (s *rewardService) Spin(ctx context.Context, userID int32) (int32, int32, *models.SpinStatus, error) {
	tracer := otel.Tracer("reward-service")
	ctx, span := tracer.Start(ctx, "Spin")
	span.SetAttributes(attribute.Int("user_id", int(userID)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	now := s.clock.Now()
	if err := s.lazyReset(ctx, userID, now); err != nil {
		span.RecordError(err)
		return 0, 0, nil, err
	}

	reward := s.rewards.IntN(s.cfg.SpinMin, s.cfg.SpinMax)
	balance, remaining, err := s.accountRepo.ApplySpin(ctx, userID, reward)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "spin refused")
		return 0, 0, nil, err
	}

	account, err := s.accountRepo.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return 0, 0, nil, err
	}
	status := &models.SpinStatus{SpinsRemaining: remaining}
	if account.NextSpinReset != nil {
		// A spin burns an attempt but never moves the reset deadline.
		status.NextSpinReset = *account.NextSpinReset
	}

	observability.RewardsGranted.WithLabelValues("spin").Inc()
	s.publishReward(ctx, userID, reward, models.EventSpin)
	slog.Info("spin reward granted", "user_id", userID, "reward", reward, "spins_remaining", remaining)
	return reward, balance, status, nil
}

func (s *rewardService) SpinStatus(ctx context.Context, userID int32) (*models.SpinStatus, error) {
	tracer := otel.Tracer("reward-service")
	ctx, span := tracer.Start(ctx, "SpinStatus")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	now := s.clock.Now()
	if err := s.lazyReset(ctx, userID, now); err != nil {
		span.RecordError(err)
		return nil, err
	}

	account, err := s.accountRepo.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	status := &models.SpinStatus{SpinsRemaining: account.SpinsRemaining}
	if account.NextSpinReset != nil {
		status.NextSpinReset = *account.NextSpinReset
	}
	return status, nil
}

// lazyReset refills spins once the deadline has passed. The refill is a
// guarded update, so concurrent callers collapse to a single winner and
// losing the race is not an error.
func (s *rewardService) lazyReset(ctx context.Context, userID int32, now time.Time) error {
	account, err := s.accountRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if account.NextSpinReset == nil || now.Before(*account.NextSpinReset) {
		return nil
	}

	reset, err := s.accountRepo.ResetSpins(ctx, userID, s.cfg.MaxSpins, now, now.Add(s.cfg.SpinResetEvery))
	if err != nil {
		return err
	}
	if reset {
		slog.Info("spins reset", "user_id", userID, "max_spins", s.cfg.MaxSpins)
	}
	return nil
}

func (s *rewardService) publishReward(ctx context.Context, userID, reward int32, kind models.EventType) {
	event := map[string]interface{}{
		"user_id":    userID,
		"amount":     reward,
		"kind":       string(kind),
		"created_at": s.clock.Now().UTC().Format(time.RFC3339),
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal reward event", "user_id", userID, "error", err)
		return
	}
	key := int64(userID)
	if err := s.producer.Send(ctx, "rewards", key, eventBytes); err != nil {
		slog.Error("failed to publish reward event", "user_id", userID, "kind", kind, "error", err)
	}
}
