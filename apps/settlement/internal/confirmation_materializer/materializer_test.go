package confirmation_materializer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"settlement/apps/settlement/internal/events"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/payment"
	"settlement/apps/settlement/internal/repository"
)

const (
	ownerID     = repository.DemoClientID
	payeeID     = repository.DemoHumanID
	agentID     = "agent-7"
	polygonAddr = "0x52908400098527886e0f7030069857d2e4169ee7"
	topic       = "payout-confirmations"
)

type fakeConsumer struct {
	mu         sync.Mutex
	subscribed string
	messages   []*kafka.Message
	closed     bool
}

func (c *fakeConsumer) Subscribe(topic string, _ kafka.RebalanceCb) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = topic
	return nil
}

func (c *fakeConsumer) ReadMessage(timeout time.Duration) (*kafka.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false)
	}
	msg := c.messages[0]
	c.messages = c.messages[1:]
	return msg, nil
}

func (c *fakeConsumer) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConsumer) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// submittedPayout creates an agent_auto payout executed without confirmation.
func submittedPayout(t *testing.T, svc *payment.Service) *model.CryptoPayout {
	t.Helper()
	ctx := context.Background()

	wallet, err := svc.UpsertWallet(ctx, payment.UpsertWalletInput{
		PayeeID: payeeID, Chain: "polygon", Network: "mainnet", Token: "USDC", Address: polygonAddr, IsDefault: true,
	})
	require.NoError(t, err)
	challenge, err := svc.CreateChallenge(ctx, wallet.ID, payeeID, 0)
	require.NoError(t, err)
	_, err = svc.VerifyChallenge(ctx, challenge.Challenge.ID, payment.ExpectedSignature(polygonAddr, challenge.Challenge.Nonce), payeeID)
	require.NoError(t, err)

	enabled, requireApproval := true, false
	_, err = svc.UpdatePolicy(ctx, ownerID, model.PolicyUpdate{AutopayEnabled: &enabled, RequireApproval: &requireApproval})
	require.NoError(t, err)

	amount, payee, agent := int64(2500), payeeID, agentID
	payout, err := svc.CreateIntent(ctx, payment.CreateIntentInput{
		OwnerUserID: ownerID, SourceType: model.SourceTypeManual, AmountCents: &amount, PayeeID: &payee,
		Chain: "polygon", Network: "mainnet", Token: "USDC", ExecutionMode: model.ExecutionModeAgentAuto, AgentID: &agent,
	})
	require.NoError(t, err)

	confirm := false
	payout, err = svc.ExecuteByAgent(ctx, payment.ExecuteInput{
		OwnerUserID: ownerID, PayoutID: payout.ID, AgentID: agentID, ConfirmImmediately: &confirm,
	})
	require.NoError(t, err)
	require.Equal(t, model.PayoutStatusSubmitted, payout.Status)
	return payout
}

func newService(t *testing.T) *payment.Service {
	t.Helper()
	store := repository.NewMemoryStore()
	require.NoError(t, repository.SeedMarketplace(context.Background(), store, time.Now().UTC()))
	return payment.NewService(store, zap.NewNop())
}

func confirmationMessage(t *testing.T, event events.PayoutConfirmationEvent) *kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	tp := topic
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &tp},
		Key:            []byte(event.PayoutID),
		Value:          value,
	}
}

func TestProcessMessageConfirmsSubmittedPayout(t *testing.T) {
	svc := newService(t)
	payout := submittedPayout(t, svc)
	cm := NewConfirmationMaterializerWithConsumer(&fakeConsumer{}, topic, zap.NewNop(), svc)
	ctx := context.Background()

	msg := confirmationMessage(t, events.PayoutConfirmationEvent{
		PayoutID: payout.ID, OwnerUserID: ownerID, AgentID: agentID, TxHash: *payout.TxHash, Status: "confirmed",
	})
	require.NoError(t, cm.processMessage(ctx, msg))

	got, err := svc.GetPayout(ctx, ownerID, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutStatusConfirmed, got.Status)
	assert.NotNil(t, got.ConfirmedAt)

	// Redelivery of the same confirmation is rejected by the state machine and skipped.
	require.NoError(t, cm.processMessage(ctx, msg))
}

func TestProcessMessageFailsPayout(t *testing.T) {
	svc := newService(t)
	payout := submittedPayout(t, svc)
	cm := NewConfirmationMaterializerWithConsumer(&fakeConsumer{}, topic, zap.NewNop(), svc)
	ctx := context.Background()

	require.NoError(t, cm.processMessage(ctx, confirmationMessage(t, events.PayoutConfirmationEvent{
		PayoutID: payout.ID, OwnerUserID: ownerID, AgentID: agentID, Status: "failed", Reason: "reverted",
	})))

	got, err := svc.GetPayout(ctx, ownerID, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutStatusFailed, got.Status)
	require.NotNil(t, got.FailureReason)
	assert.Equal(t, "reverted", *got.FailureReason)
}

func TestProcessMessageRejectsMalformedEvents(t *testing.T) {
	svc := newService(t)
	cm := NewConfirmationMaterializerWithConsumer(&fakeConsumer{}, topic, zap.NewNop(), svc)
	ctx := context.Background()

	assert.Error(t, cm.processMessage(ctx, &kafka.Message{Value: []byte("{not json")}))
	assert.Error(t, cm.processMessage(ctx, confirmationMessage(t, events.PayoutConfirmationEvent{Status: "confirmed"})))
	assert.Error(t, cm.processMessage(ctx, confirmationMessage(t, events.PayoutConfirmationEvent{
		PayoutID: "payout-1", OwnerUserID: ownerID, Status: "confirmed",
	})))

	// Unknown statuses and unknown payouts are logged, not retried.
	assert.NoError(t, cm.processMessage(ctx, confirmationMessage(t, events.PayoutConfirmationEvent{
		PayoutID: "payout-1", OwnerUserID: ownerID, Status: "orphaned",
	})))
	assert.NoError(t, cm.processMessage(ctx, confirmationMessage(t, events.PayoutConfirmationEvent{
		PayoutID: "payout-1", OwnerUserID: ownerID, AgentID: agentID, Status: "confirmed",
	})))
}

func TestStartConsumesUntilCancelled(t *testing.T) {
	svc := newService(t)
	payout := submittedPayout(t, svc)
	consumer := &fakeConsumer{messages: []*kafka.Message{confirmationMessage(t, events.PayoutConfirmationEvent{
		PayoutID: payout.ID, OwnerUserID: ownerID, AgentID: agentID, Status: "confirmed",
	})}}
	cm := NewConfirmationMaterializerWithConsumer(consumer, topic, zap.NewNop(), svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cm.Start(ctx) }()

	require.Eventually(t, func() bool {
		got, err := svc.GetPayout(context.Background(), ownerID, payout.ID)
		return err == nil && got.Status == model.PayoutStatusConfirmed
	}, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, consumer.pending())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("materializer did not stop")
	}
	assert.Equal(t, topic, consumer.subscribed)

	require.NoError(t, cm.Close())
	assert.True(t, consumer.closed)
}
