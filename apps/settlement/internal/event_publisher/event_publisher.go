package event_publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"
	"settlement/apps/settlement/internal/events"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/repository"
)

// Producer is the subset of *kafka.Producer used by the relay.
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Close()
}

// EventPublisher relays settlement events from the outbox table to Kafka.
type EventPublisher struct {
	logger        *zap.Logger
	kafkaProducer Producer
	kafkaTopic    string
	store         repository.Store
	interval      time.Duration
	batchSize     int
	mu            sync.Mutex // Protects concurrent access to publishing operations
}

func NewEventPublisher(kafkaBroker, kafkaTopic string, interval time.Duration, batchSize int, logger *zap.Logger, store repository.Store) (*EventPublisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": kafkaBroker,
		"acks":              "all",
		"retries":           3,
		"retry.backoff.ms":  100,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewEventPublisherWithProducer(producer, kafkaTopic, interval, batchSize, logger, store), nil
}

func NewEventPublisherWithProducer(producer Producer, kafkaTopic string, interval time.Duration, batchSize int, logger *zap.Logger, store repository.Store) *EventPublisher {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &EventPublisher{
		logger:        logger,
		kafkaProducer: producer,
		kafkaTopic:    kafkaTopic,
		store:         store,
		interval:      interval,
		batchSize:     batchSize,
	}
}

// StartPublishing polls the outbox until ctx is cancelled.
func (ep *EventPublisher) StartPublishing(ctx context.Context) {
	ticker := time.NewTicker(ep.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := ep.PublishUnsentEvents(ctx); err != nil {
				ep.logger.Error("Error publishing events to Kafka", zap.Error(err))
			}
		}
	}
}

// PublishUnsentEvents claims one batch and publishes it, returning how many
// events were marked sent.
func (ep *EventPublisher) PublishUnsentEvents(ctx context.Context) (int, error) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	var outboxEvents []model.OutboxEvent
	err := ep.store.WithTx(ctx, func(q repository.Queries) error {
		var err error
		outboxEvents, err = q.GetUnsentEventsForProcessing(ctx, ep.batchSize)
		return err
	})
	if err != nil {
		return 0, err
	}

	successCount := 0
	for _, event := range outboxEvents {
		if err := ep.publishEventToKafka(event); err != nil {
			ep.logger.Error("Failed to publish event to Kafka",
				zap.String("event_id", event.ID),
				zap.String("event_type", event.EventType),
				zap.Error(err))
			// Returns the event to 'unsent' for the next tick
			if markErr := ep.mark(ctx, event.ID, false); markErr != nil {
				ep.logger.Error("Failed to mark event as failed", zap.String("event_id", event.ID), zap.Error(markErr))
			}
			continue
		}

		if err := ep.mark(ctx, event.ID, true); err != nil {
			// Published but still 'processing'; a consumer may see it again after manual requeue
			ep.logger.Error("Failed to mark event as sent", zap.String("event_id", event.ID), zap.Error(err))
		} else {
			successCount++
		}
	}

	if successCount > 0 {
		ep.logger.Info("Published events to Kafka", zap.Int("success_count", successCount), zap.Int("attempted", len(outboxEvents)))
	}
	return successCount, nil
}

func (ep *EventPublisher) mark(ctx context.Context, eventID string, sent bool) error {
	return ep.store.WithTx(ctx, func(q repository.Queries) error {
		if sent {
			return q.MarkEventAsSent(ctx, eventID)
		}
		return q.MarkEventAsFailed(ctx, eventID)
	})
}

func (ep *EventPublisher) publishEventToKafka(event model.OutboxEvent) error {
	kafkaMsg := events.SettlementEvent{
		EventID:     event.ID,
		Aggregate:   event.Aggregate,
		AggregateID: event.AggregateID,
		EventType:   event.EventType,
		OwnerUserID: event.OwnerUserID,
		EventData:   event.EventBlob,
		OccurredAt:  event.CreatedAt,
		Timestamp:   time.Now().UTC(),
	}

	msgBytes, err := json.Marshal(kafkaMsg)
	if err != nil {
		return err
	}

	deliveryChan := make(chan kafka.Event, 1)
	defer close(deliveryChan)

	err = ep.kafkaProducer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &ep.kafkaTopic, Partition: kafka.PartitionAny},
		Key:            []byte(event.OwnerUserID), // Keeps an owner's events ordered within one partition
		Value:          msgBytes,
	}, deliveryChan)
	if err != nil {
		return err
	}

	e := <-deliveryChan
	switch ev := e.(type) {
	case *kafka.Message:
		if ev.TopicPartition.Error != nil {
			return ev.TopicPartition.Error
		}
		return nil
	default:
		return fmt.Errorf("unexpected kafka event type: %T", e)
	}
}

func (ep *EventPublisher) Close() error {
	if ep.kafkaProducer != nil {
		ep.kafkaProducer.Close()
	}
	return nil
}
