package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/repository"
)

const (
	ownerID    = repository.DemoClientID
	humanID    = repository.DemoHumanID
	applicant  = repository.DemoApplicant
	reviewerID = "reviewer-1"
	agentID    = "agent-7"

	polygonAddr = "0x52908400098527886e0f7030069857d2e4169ee7"
	otherAddr   = "0x8617e340b3d01fa5f11f306f4090fd50e238070d"
	solanaAddr  = "7EcDhSYGxXyscszYEp35KHN8vvw3svAuLKTzXwCFLtV"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	svc   *Service
	store *repository.MemoryStore
	clock *testClock
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	store := repository.NewMemoryStore()
	require.NoError(t, repository.SeedMarketplace(context.Background(), store, clock.now))

	svc := NewService(store, zap.NewNop(), WithClock(clock.Now), WithReviewers([]string{reviewerID}))
	return &fixture{svc: svc, store: store, clock: clock, ctx: context.Background()}
}

func (f *fixture) wallet(t *testing.T, payee, address string, isDefault bool) *model.Wallet {
	t.Helper()
	w, err := f.svc.UpsertWallet(f.ctx, UpsertWalletInput{
		PayeeID: payee, Chain: "polygon", Network: "mainnet", Token: "USDC", Address: address, IsDefault: isDefault,
	})
	require.NoError(t, err)
	return w
}

func (f *fixture) verifiedWallet(t *testing.T, payee, address string) *model.Wallet {
	t.Helper()
	w := f.wallet(t, payee, address, true)
	challenge, err := f.svc.CreateChallenge(f.ctx, w.ID, payee, 0)
	require.NoError(t, err)
	res, err := f.svc.VerifyChallenge(f.ctx, challenge.Challenge.ID, ExpectedSignature(address, challenge.Challenge.Nonce), payee)
	require.NoError(t, err)
	return &res.Wallet
}

func (f *fixture) enableAutopay(t *testing.T, requireApproval bool, maxSingle int64) {
	t.Helper()
	enabled := true
	_, err := f.svc.UpdatePolicy(f.ctx, ownerID, model.PolicyUpdate{
		AutopayEnabled:       &enabled,
		RequireApproval:      &requireApproval,
		MaxSinglePayoutCents: &maxSingle,
	})
	require.NoError(t, err)
}

func (f *fixture) manualPayout(t *testing.T, amount int64, mode model.ExecutionMode) *model.CryptoPayout {
	t.Helper()
	payee := humanID
	p, err := f.svc.CreateIntent(f.ctx, CreateIntentInput{
		OwnerUserID:   ownerID,
		SourceType:    model.SourceTypeManual,
		AmountCents:   &amount,
		PayeeID:       &payee,
		Chain:         "polygon",
		Network:       "mainnet",
		Token:         "USDC",
		ExecutionMode: mode,
		AgentID:       strPtr(agentID),
	})
	require.NoError(t, err)
	return p
}

// claimOutbox claims every unsent relay event, as the publisher would.
func (f *fixture) claimOutbox(t *testing.T) []model.OutboxEvent {
	t.Helper()
	var events []model.OutboxEvent
	require.NoError(t, f.store.WithTx(f.ctx, func(q repository.Queries) error {
		var err error
		events, err = q.GetUnsentEventsForProcessing(f.ctx, 1000)
		return err
	}))
	return events
}

func int64Ptr(v int64) *int64 { return &v }

func boolPtr(v bool) *bool { return &v }
