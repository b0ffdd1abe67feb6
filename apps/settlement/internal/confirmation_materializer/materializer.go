package confirmation_materializer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"
	"settlement/apps/settlement/internal/events"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/payment"
)

const pollTimeout = time.Second

// Consumer is the subset of *kafka.Consumer the materializer needs.
type Consumer interface {
	Subscribe(topic string, rebalanceCb kafka.RebalanceCb) error
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	Close() error
}

// PayoutSettler applies chain outcomes to payouts.
type PayoutSettler interface {
	ExecuteByAgent(ctx context.Context, in payment.ExecuteInput) (*model.CryptoPayout, error)
	Fail(ctx context.Context, ownerUserID, payoutID, reason, actorID string) (*model.CryptoPayout, error)
}

// ConfirmationMaterializer moves submitted payouts to confirmed or failed as
// chain confirmations arrive.
type ConfirmationMaterializer struct {
	logger        *zap.Logger
	kafkaConsumer Consumer
	settler       PayoutSettler
	kafkaTopic    string
}

func NewConfirmationMaterializer(kafkaBroker, kafkaTopic, groupID string, logger *zap.Logger, settler PayoutSettler) (*ConfirmationMaterializer, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": kafkaBroker,
		"group.id":          groupID,
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	return NewConfirmationMaterializerWithConsumer(consumer, kafkaTopic, logger, settler), nil
}

func NewConfirmationMaterializerWithConsumer(consumer Consumer, kafkaTopic string, logger *zap.Logger, settler PayoutSettler) *ConfirmationMaterializer {
	return &ConfirmationMaterializer{
		logger:        logger,
		kafkaConsumer: consumer,
		settler:       settler,
		kafkaTopic:    kafkaTopic,
	}
}

// Start consumes confirmations until ctx is cancelled.
func (cm *ConfirmationMaterializer) Start(ctx context.Context) error {
	cm.logger.Info("Starting confirmation materializer", zap.String("topic", cm.kafkaTopic))

	if err := cm.kafkaConsumer.Subscribe(cm.kafkaTopic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", cm.kafkaTopic, err)
	}

	for {
		select {
		case <-ctx.Done():
			cm.logger.Info("Confirmation materializer stopped")
			return nil
		default:
		}

		msg, err := cm.kafkaConsumer.ReadMessage(pollTimeout)
		if err != nil {
			var kafkaErr kafka.Error
			if errors.As(err, &kafkaErr) && kafkaErr.Code() == kafka.ErrTimedOut {
				continue
			}
			cm.logger.Error("Error reading message from Kafka", zap.Error(err))
			continue
		}

		if err := cm.processMessage(ctx, msg); err != nil {
			cm.logger.Error("Error processing message",
				zap.String("topic", topicOf(msg)),
				zap.Int32("partition", msg.TopicPartition.Partition),
				zap.String("key", string(msg.Key)),
				zap.Error(err))
		}
	}
}

func topicOf(msg *kafka.Message) string {
	if msg.TopicPartition.Topic == nil {
		return ""
	}
	return *msg.TopicPartition.Topic
}

// processMessage applies one confirmation. Domain rejections are logged and
// skipped so a redelivered or stale confirmation never blocks the partition.
func (cm *ConfirmationMaterializer) processMessage(ctx context.Context, msg *kafka.Message) error {
	var confirmation events.PayoutConfirmationEvent
	if err := json.Unmarshal(msg.Value, &confirmation); err != nil {
		return fmt.Errorf("failed to unmarshal confirmation event: %w", err)
	}
	if confirmation.PayoutID == "" || confirmation.OwnerUserID == "" {
		return fmt.Errorf("confirmation event is missing payout_id or owner_user_id")
	}

	cm.logger.Info("Processing payout confirmation",
		zap.String("payout_id", confirmation.PayoutID),
		zap.String("status", confirmation.Status),
		zap.String("tx_hash", confirmation.TxHash))

	var err error
	switch strings.ToLower(confirmation.Status) {
	case events.ConfirmationConfirmed:
		err = cm.confirm(ctx, confirmation)
	case events.ConfirmationFailed:
		reason := confirmation.Reason
		if reason == "" {
			reason = "transaction failed on chain"
		}
		_, err = cm.settler.Fail(ctx, confirmation.OwnerUserID, confirmation.PayoutID, reason, confirmation.AgentID)
	default:
		cm.logger.Warn("Unknown confirmation status",
			zap.String("payout_id", confirmation.PayoutID),
			zap.String("status", confirmation.Status))
		return nil
	}

	if kind := payment.KindOf(err); kind != "" {
		cm.logger.Warn("Confirmation rejected",
			zap.String("payout_id", confirmation.PayoutID),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil
	}
	return err
}

func (cm *ConfirmationMaterializer) confirm(ctx context.Context, confirmation events.PayoutConfirmationEvent) error {
	if confirmation.AgentID == "" {
		return fmt.Errorf("confirmation for payout %s is missing agent_id", confirmation.PayoutID)
	}
	in := payment.ExecuteInput{
		OwnerUserID: confirmation.OwnerUserID,
		PayoutID:    confirmation.PayoutID,
		AgentID:     confirmation.AgentID,
	}
	if confirmation.TxHash != "" {
		in.TxHash = &confirmation.TxHash
	}

	payout, err := cm.settler.ExecuteByAgent(ctx, in)
	if err != nil {
		return err
	}
	if payout.TxHash != nil && confirmation.TxHash != "" && !strings.EqualFold(*payout.TxHash, confirmation.TxHash) {
		cm.logger.Warn("Confirmed transaction hash differs from submitted hash",
			zap.String("payout_id", payout.ID),
			zap.String("submitted_tx_hash", *payout.TxHash),
			zap.String("confirmed_tx_hash", confirmation.TxHash))
	}

	cm.logger.Info("Payout confirmed on chain",
		zap.String("payout_id", payout.ID),
		zap.String("status", string(payout.Status)))
	return nil
}

func (cm *ConfirmationMaterializer) Close() error {
	if cm.kafkaConsumer != nil {
		return cm.kafkaConsumer.Close()
	}
	return nil
}
