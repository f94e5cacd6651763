package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/contentvault/ledger/internal/models"
	"github.com/contentvault/ledger/internal/repository"
	"github.com/segmentio/kafka-go"
)

// Consumer journals ledger events into Postgres. Balances and ownership
// are mutated transactionally by the repositories before the event is
// published, so the journal is strictly after-the-fact.
type Consumer struct {
	reader    *kafka.Reader
	eventRepo repository.EventRepository
}

func NewConsumer(brokers []string, topic, groupID string, eventRepo repository.EventRepository) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		eventRepo: eventRepo,
	}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("failed to read Kafka message", "topic", c.reader.Config().Topic, "error", err)
			continue
		}

		slog.Info("Kafka message received", "topic", msg.Topic, "key", string(msg.Key))

		switch msg.Topic {
		case "transfers":
			var event struct {
				RequestID   int32  `json:"request_id"`
				ContentID   int32  `json:"content_id"`
				RequesterID int32  `json:"requester_id"`
				OwnerID     int32  `json:"owner_id"`
				Amount      int32  `json:"amount"`
				CreatedAt   string `json:"created_at"`
			}
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				slog.Error("failed to unmarshal transfer event", "error", err)
				continue
			}
			createdAt, err := time.Parse(time.RFC3339, event.CreatedAt)
			if err != nil {
				slog.Error("invalid created_at format", "value", event.CreatedAt, "error", err)
				continue
			}

			// One journal row per side of the transfer.
			debit := &models.LedgerEvent{
				UserID:    event.RequesterID,
				RelatedID: event.OwnerID,
				ContentID: event.ContentID,
				Amount:    -event.Amount,
				Type:      models.EventTransferOut,
				CreatedAt: createdAt,
			}
			if _, err := c.eventRepo.Create(ctx, debit); err != nil {
				slog.Error("failed to journal transfer debit", "request_id", event.RequestID, "error", err)
				continue
			}
			credit := &models.LedgerEvent{
				UserID:    event.OwnerID,
				RelatedID: event.RequesterID,
				ContentID: event.ContentID,
				Amount:    event.Amount,
				Type:      models.EventTransferIn,
				CreatedAt: createdAt,
			}
			if _, err := c.eventRepo.Create(ctx, credit); err != nil {
				slog.Error("failed to journal transfer credit", "request_id", event.RequestID, "error", err)
				continue
			}
			slog.Info("transfer journaled", "request_id", event.RequestID, "content_id", event.ContentID)

		case "rewards":
			var event struct {
				UserID    int32  `json:"user_id"`
				Amount    int32  `json:"amount"`
				Kind      string `json:"kind"`
				CreatedAt string `json:"created_at"`
			}
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				slog.Error("failed to unmarshal reward event", "error", err)
				continue
			}
			createdAt, err := time.Parse(time.RFC3339, event.CreatedAt)
			if err != nil {
				slog.Error("invalid created_at format", "value", event.CreatedAt, "error", err)
				continue
			}

			var eventType models.EventType
			switch event.Kind {
			case string(models.EventCheckIn), string(models.EventSpin):
				eventType = models.EventType(event.Kind)
			default:
				slog.Error("unknown reward kind", "kind", event.Kind)
				continue
			}

			reward := &models.LedgerEvent{
				UserID:    event.UserID,
				Amount:    event.Amount,
				Type:      eventType,
				CreatedAt: createdAt,
			}
			if _, err := c.eventRepo.Create(ctx, reward); err != nil {
				slog.Error("failed to journal reward", "user_id", event.UserID, "kind", event.Kind, "error", err)
				continue
			}
			slog.Info("reward journaled", "user_id", event.UserID, "kind", event.Kind, "amount", event.Amount)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
