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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// LedgerService owns the purchase-request lifecycle. A request is
// created by a non-owner, amended or cancelled by its requester while
// pending, and closed exactly once by the content owner.
type LedgerService interface {
	CreateRequest(ctx context.Context, contentID, requesterID, amount int32) (*models.PurchaseRequest, error)
	UpdateRequest(ctx context.Context, requestID, requesterID, amount int32) error
	CancelRequest(ctx context.Context, requestID, requesterID int32) error
	RejectRequest(ctx context.Context, requestID, ownerID int32) error
	AcceptRequest(ctx context.Context, requestID, ownerID int32) (*models.TransferResult, error)
	ListRequestsForContent(ctx context.Context, contentID, callerID int32) ([]models.PurchaseRequest, error)
	ListMyRequests(ctx context.Context, requesterID int32) ([]models.PurchaseRequest, error)
}

type ledgerService struct {
	requestRepo  repository.RequestRepository
	contentRepo  repository.ContentRepository
	transferRepo repository.TransferRepository
	redisClient  redis.RedisClient
	producer     kafka.KafkaProducer
	cfg          *config.Config
	clock        Clock
}

func NewLedgerService(
	requestRepo repository.RequestRepository,
	contentRepo repository.ContentRepository,
	transferRepo repository.TransferRepository,
	redisClient redis.RedisClient,
	producer kafka.KafkaProducer,
	cfg *config.Config,
	clock Clock,
) *ledgerService {
	return &ledgerService{
		requestRepo:  requestRepo,
		contentRepo:  contentRepo,
		transferRepo: transferRepo,
		redisClient:  redisClient,
		producer:     producer,
		cfg:          cfg,
		clock:        clock,
	}
}

func (s *ledgerService) CreateRequest(ctx context.Context, contentID, requesterID, amount int32) (*models.PurchaseRequest, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "CreateRequest")
	span.SetAttributes(
		attribute.Int("content_id", int(contentID)),
		attribute.Int("requester_id", int(requesterID)),
	)
	defer span.End()

	if amount < 1 {
		span.SetStatus(codes.Error, "invalid amount")
		return nil, fmt.Errorf("%w: dime_amount must be at least 1", pkgerrors.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	content, err := s.contentRepo.GetByID(ctx, contentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "content lookup failed")
		slog.Error("failed to load content for request", "content_id", contentID, "error", err)
		return nil, err
	}
	if content.OwnerID == requesterID {
		span.SetStatus(codes.Error, "requester owns content")
		slog.Warn("owner tried to request own content", "content_id", contentID, "user_id", requesterID)
		return nil, pkgerrors.ErrNotOwnerEligible
	}

	// The owner is snapshotted here; the requester's balance is NOT
	// checked until accept time, where it is re-validated under lock.
	req := &models.PurchaseRequest{
		ContentID:   contentID,
		RequesterID: requesterID,
		OwnerID:     content.OwnerID,
		DimeAmount:  amount,
	}
	if err := s.requestRepo.Create(ctx, req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request creation failed")
		return nil, err
	}
	return req, nil
}

func (s *ledgerService) UpdateRequest(ctx context.Context, requestID, requesterID, amount int32) error {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "UpdateRequest")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	ok, err := s.requestRepo.UpdateAmount(ctx, requestID, requesterID, amount)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to update request", "request_id", requestID, "error", err)
		return err
	}
	if !ok {
		return s.guardFailure(ctx, requestID)
	}
	slog.Info("purchase request updated", "request_id", requestID, "requester_id", requesterID, "amount", amount)
	return nil
}

func (s *ledgerService) CancelRequest(ctx context.Context, requestID, requesterID int32) error {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "CancelRequest")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	ok, err := s.requestRepo.Delete(ctx, requestID, requesterID)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to cancel request", "request_id", requestID, "error", err)
		return err
	}
	if !ok {
		return s.guardFailure(ctx, requestID)
	}
	slog.Info("purchase request cancelled", "request_id", requestID, "requester_id", requesterID)
	return nil
}

func (s *ledgerService) RejectRequest(ctx context.Context, requestID, ownerID int32) error {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "RejectRequest")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	ok, err := s.requestRepo.MarkRejected(ctx, requestID, ownerID)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to reject request", "request_id", requestID, "error", err)
		return err
	}
	if !ok {
		return s.guardFailure(ctx, requestID)
	}
	return nil
}

func (s *ledgerService) AcceptRequest(ctx context.Context, requestID, ownerID int32) (*models.TransferResult, error) {
	tracer := otel.Tracer("ledger-service")
	ctx, span := tracer.Start(ctx, "AcceptRequest")
	span.SetAttributes(
		attribute.Int("request_id", int(requestID)),
		attribute.Int("owner_id", int(ownerID)),
	)
	defer span.End()

	// Short-lived lock so a double-submitted accept fails fast instead
	// of queueing on the row lock.
	lockKey := fmt.Sprintf("request:%d:accept", requestID)
	locked, err := s.redisClient.SetNX(ctx, lockKey, "locked", 10*time.Second)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to acquire accept lock", "request_id", requestID, "error", err)
		return nil, pkgerrors.ErrRequestLocked
	}
	if !locked {
		span.SetStatus(codes.Error, "request locked")
		slog.Warn("accept already in progress", "request_id", requestID)
		return nil, pkgerrors.ErrRequestLocked
	}
	defer s.redisClient.Del(ctx, lockKey)

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	result, err := s.transferRepo.Accept(txCtx, requestID, ownerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "accept failed")
		return nil, err
	}

	// Both balances and the cached content item are stale now.
	s.redisClient.Del(ctx, fmt.Sprintf("user:%d:balance", result.RequesterID))
	s.redisClient.Del(ctx, fmt.Sprintf("user:%d:balance", result.OwnerID))
	s.redisClient.Del(ctx, fmt.Sprintf("content:%d", result.ContentID))

	event := map[string]interface{}{
		"request_id":   result.RequestID,
		"content_id":   result.ContentID,
		"requester_id": result.RequesterID,
		"owner_id":     result.OwnerID,
		"amount":       result.DimeAmount,
		"created_at":   s.clock.Now().UTC().Format(time.RFC3339),
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to marshal transfer event", "request_id", requestID, "error", err)
	} else if err := s.producer.Send(ctx, "transfers", int64(result.RequestID), eventBytes); err != nil {
		// The transfer is committed; a lost event only thins the journal.
		slog.Error("failed to publish transfer event", "request_id", requestID, "error", err)
	}

	return result, nil
}

func (s *ledgerService) ListRequestsForContent(ctx context.Context, contentID, callerID int32) ([]models.PurchaseRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	content, err := s.contentRepo.GetByID(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if content.OwnerID != callerID {
		return nil, pkgerrors.ErrForbidden
	}
	return s.requestRepo.ListByContent(ctx, contentID)
}

func (s *ledgerService) ListMyRequests(ctx context.Context, requesterID int32) ([]models.PurchaseRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.requestRepo.ListByRequester(ctx, requesterID)
}

// guardFailure maps a lost status/actor guard to the right error: the
// request either never existed or the caller has no claim on it in its
// current state.
func (s *ledgerService) guardFailure(ctx context.Context, requestID int32) error {
	_, err := s.requestRepo.GetByID(ctx, requestID)
	if stderrors.Is(err, pkgerrors.ErrRequestNotFound) {
		return pkgerrors.ErrRequestNotFound
	}
	if err != nil {
		return err
	}
	return pkgerrors.ErrForbidden
}
