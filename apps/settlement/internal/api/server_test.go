package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/payment"
	"settlement/apps/settlement/internal/repository"
)

const (
	clientID    = repository.DemoClientID
	humanID     = repository.DemoHumanID
	reviewerID  = "reviewer-1"
	polygonAddr = "0x52908400098527886e0f7030069857d2e4169ee7"
)

type testAPI struct {
	t       *testing.T
	service *payment.Service
	handler http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := repository.NewMemoryStore()
	require.NoError(t, repository.SeedMarketplace(context.Background(), store, now))

	service := payment.NewService(store, zap.NewNop(),
		payment.WithClock(func() time.Time { return now }),
		payment.WithReviewers([]string{reviewerID}))
	server := NewServer(0, service, zap.NewNop())
	return &testAPI{t: t, service: service, handler: server.Handler()}
}

func (a *testAPI) do(method, path, userID, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(userHeader, userID)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) payeeWallet() *model.Wallet {
	a.t.Helper()
	wallet, err := a.service.UpsertWallet(context.Background(), payment.UpsertWalletInput{
		PayeeID: humanID, Chain: "polygon", Network: "mainnet", Token: "USDC", Address: polygonAddr, IsDefault: true,
	})
	require.NoError(a.t, err)
	return wallet
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, code, decodeBody[ErrorResponse](t, rec).Error)
}

func TestHealthCheck(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/api/health", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody[HealthResponse](t, rec).Status)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	a := newTestAPI(t)

	for _, path := range []string{"/api/policy", "/api/payouts", "/api/wallets", "/api/disputes"} {
		assertError(t, a.do(http.MethodGet, path, "", ""), http.StatusUnauthorized, "unauthorized")
	}
}

func TestPolicyEndpoints(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/api/policy", clientID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	policy := decodeBody[model.PaymentPolicy](t, rec)
	assert.False(t, policy.AutopayEnabled)

	rec = a.do(http.MethodPut, "/api/policy", clientID, `{"autopay_enabled":true,"max_single_payout_cents":25000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	policy = decodeBody[model.PaymentPolicy](t, rec)
	assert.True(t, policy.AutopayEnabled)
	assert.Equal(t, int64(25000), policy.MaxSinglePayoutCents)

	assertError(t, a.do(http.MethodPut, "/api/policy", clientID, `{"allowed_chains":["dogechain"]}`),
		http.StatusBadRequest, "validation_error")
	assertError(t, a.do(http.MethodPut, "/api/policy", clientID, `{"autopay_enabled":`),
		http.StatusBadRequest, "invalid_request_body")
}

func TestFeesAndNetworks(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/api/fees/estimate?chain=polygon&network=mainnet&token=USDC&amount_cents=10000", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	estimate := decodeBody[model.FeeEstimate](t, rec)
	assert.Equal(t, int64(10000), estimate.AmountCents)
	assert.Equal(t, estimate.AmountCents+estimate.PlatformFeeCents, estimate.TotalDebitCents)

	assertError(t, a.do(http.MethodGet, "/api/fees/estimate?chain=polygon&network=mainnet&token=USDC&amount_cents=ten", "", ""),
		http.StatusBadRequest, "validation_error")

	rec = a.do(http.MethodGet, "/api/networks", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody[payment.SupportedNetworks](t, rec).Chains)
}

func TestWalletVerificationFlow(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodPut, "/api/wallets", humanID,
		`{"chain":"polygon","network":"mainnet","token":"USDC","address":"`+polygonAddr+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	wallet := decodeBody[model.Wallet](t, rec)
	assert.Equal(t, humanID, wallet.PayeeID)
	assert.True(t, wallet.IsDefault)

	rec = a.do(http.MethodGet, "/api/wallets", humanID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[ListResponse[model.Wallet]](t, rec).Count)

	// Another user cannot issue challenges for the wallet.
	assertError(t, a.do(http.MethodPost, "/api/wallets/"+wallet.ID+"/challenges", clientID, ""),
		http.StatusNotFound, "not_found")

	rec = a.do(http.MethodPost, "/api/wallets/"+wallet.ID+"/challenges", humanID, `{"expires_in_minutes":5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	challenge := decodeBody[payment.ChallengeResult](t, rec)

	assertError(t, a.do(http.MethodPost, "/api/challenges/"+challenge.Challenge.ID+"/verify", humanID, `{"signature":"sig:nope"}`),
		http.StatusUnprocessableEntity, "invalid_signature")

	rec = a.do(http.MethodPost, "/api/wallets/"+wallet.ID+"/challenges", humanID, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	challenge = decodeBody[payment.ChallengeResult](t, rec)

	signature := payment.ExpectedSignature(polygonAddr, challenge.Challenge.Nonce)
	rec = a.do(http.MethodPost, "/api/challenges/"+challenge.Challenge.ID+"/verify", humanID, `{"signature":"`+signature+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.VerificationVerified, decodeBody[payment.VerificationResult](t, rec).Wallet.VerificationStatus)

	rec = a.do(http.MethodGet, "/api/wallets/"+wallet.ID+"/challenges", humanID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeBody[ListResponse[model.WalletVerificationChallenge]](t, rec).Count)
}

func TestPayoutLifecycle(t *testing.T) {
	a := newTestAPI(t)
	a.payeeWallet()

	body := `{"source_type":"manual","amount_cents":1500,"payee_id":"` + humanID + `","chain":"polygon","network":"mainnet","token":"USDC","idempotency_key":"job-1"}`
	rec := a.do(http.MethodPost, "/api/payouts", clientID, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	payout := decodeBody[model.CryptoPayout](t, rec)
	assert.Equal(t, model.PayoutStatusPending, payout.Status)

	rec = a.do(http.MethodPost, "/api/payouts", clientID, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, payout.ID, decodeBody[model.CryptoPayout](t, rec).ID)

	assertError(t, a.do(http.MethodGet, "/api/payouts/"+payout.ID, humanID, ""), http.StatusNotFound, "not_found")

	rec = a.do(http.MethodPost, "/api/payouts/"+payout.ID+"/approve", clientID, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.PayoutStatusApproved, decodeBody[model.CryptoPayout](t, rec).Status)

	// Manual payouts are never executed by agents.
	assertError(t, a.do(http.MethodPost, "/api/payouts/"+payout.ID+"/execute", clientID, `{"agent_id":"agent-7"}`),
		http.StatusConflict, "invalid_transition")

	rec = a.do(http.MethodPost, "/api/payouts/"+payout.ID+"/fail", clientID, `{"reason":"bank holiday"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	failed := decodeBody[model.CryptoPayout](t, rec)
	assert.Equal(t, model.PayoutStatusFailed, failed.Status)

	rec = a.do(http.MethodPost, "/api/payouts/"+payout.ID+"/fail", clientID, `{"reason":"again"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "again", *decodeBody[model.CryptoPayout](t, rec).FailureReason)

	rec = a.do(http.MethodGet, "/api/payouts/"+payout.ID+"/events", clientID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	events := decodeBody[ListResponse[model.PayoutEvent]](t, rec)
	require.Equal(t, 4, events.Count)
	assert.Equal(t, model.EventPayoutCreated, events.Items[0].EventType)

	rec = a.do(http.MethodGet, "/api/payouts?status=failed", clientID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[ListResponse[model.CryptoPayout]](t, rec).Count)

	assertError(t, a.do(http.MethodGet, "/api/payouts?limit=many", clientID, ""), http.StatusBadRequest, "validation_error")
}

func TestCreatePayoutErrors(t *testing.T) {
	a := newTestAPI(t)

	assertError(t, a.do(http.MethodPost, "/api/payouts", clientID,
		`{"source_type":"manual","amount_cents":1500,"payee_id":"`+humanID+`","chain":"polygon","network":"mainnet","token":"USDC"}`),
		http.StatusUnprocessableEntity, "no_wallet_configured")

	assertError(t, a.do(http.MethodPost, "/api/payouts", clientID,
		`{"source_type":"gift","amount_cents":1500,"chain":"polygon","network":"mainnet","token":"USDC"}`),
		http.StatusBadRequest, "validation_error")

	assertError(t, a.do(http.MethodPost, "/api/payouts", clientID,
		`{"source_type":"booking","source_id":"`+repository.DemoCancelledB+`","chain":"polygon","network":"mainnet","token":"USDC"}`),
		http.StatusUnprocessableEntity, "source_unavailable")
}

func TestEscrowAndMilestones(t *testing.T) {
	a := newTestAPI(t)
	a.payeeWallet()

	rec := a.do(http.MethodPost, "/api/escrows", clientID,
		`{"source_type":"booking","source_id":"`+repository.DemoBookingID+`","chain":"polygon","network":"mainnet","token":"USDC"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	hold := decodeBody[model.EscrowHold](t, rec)
	assert.Equal(t, int64(36000), hold.AmountCents)

	rec = a.do(http.MethodPost, "/api/escrows/"+hold.ID+"/release", clientID, `{}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	released := decodeBody[payment.ReleaseResult](t, rec)
	assert.Equal(t, model.EscrowStatusReleased, released.Escrow.Status)
	assert.Equal(t, int64(36000), released.Payout.AmountCents)

	assertError(t, a.do(http.MethodPost, "/api/escrows/"+hold.ID+"/release", clientID, `{}`),
		http.StatusConflict, "invalid_transition")

	rec = a.do(http.MethodGet, "/api/escrows/"+hold.ID+"/events", clientID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeBody[ListResponse[model.EscrowEvent]](t, rec).Count)

	rec = a.do(http.MethodPost, "/api/milestones", clientID,
		`{"source_type":"booking","source_id":"`+repository.DemoBookingID+`","title":"Day one","amount_cents":12000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	milestone := decodeBody[model.BookingMilestone](t, rec)

	assertError(t, a.do(http.MethodPost, "/api/milestones", clientID,
		`{"source_type":"booking","source_id":"`+repository.DemoBookingID+`","title":"Too much","amount_cents":30000}`),
		http.StatusBadRequest, "validation_error")

	rec = a.do(http.MethodPost, "/api/milestones/"+milestone.ID+"/complete", clientID,
		`{"auto_create_payout":true,"payout":{"chain":"polygon","network":"mainnet","token":"USDC"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	completed := decodeBody[payment.CompleteMilestoneResult](t, rec)
	assert.Equal(t, model.MilestoneCompleted, completed.Milestone.Status)
	require.NotNil(t, completed.Payout)
	assert.Equal(t, int64(12000), completed.Payout.AmountCents)

	rec = a.do(http.MethodGet, "/api/milestones?source_id="+repository.DemoBookingID, clientID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[ListResponse[model.BookingMilestone]](t, rec).Count)
}

func TestDisputes(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodPost, "/api/disputes", humanID,
		`{"target_type":"booking","target_id":"`+repository.DemoBookingID+`","reason":"No show"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dispute := decodeBody[model.Dispute](t, rec)
	assert.Equal(t, model.DisputeStatusOpen, dispute.Status)

	assertError(t, a.do(http.MethodPost, "/api/disputes", "stranger",
		`{"target_type":"booking","target_id":"`+repository.DemoBookingID+`","reason":"Nosy"}`),
		http.StatusNotFound, "not_found")

	assertError(t, a.do(http.MethodGet, "/api/disputes/"+dispute.ID, clientID, ""), http.StatusNotFound, "not_found")

	assertError(t, a.do(http.MethodPost, "/api/disputes/"+dispute.ID+"/resolve", clientID, `{"decision":"refund"}`),
		http.StatusForbidden, "forbidden")

	rec = a.do(http.MethodPost, "/api/disputes/"+dispute.ID+"/resolve", reviewerID, `{"decision":"split","note":"half each"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.DisputeStatusResolved, decodeBody[model.Dispute](t, rec).Status)

	rec = a.do(http.MethodGet, "/api/disputes", humanID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[ListResponse[model.Dispute]](t, rec).Count)

	rec = a.do(http.MethodGet, "/api/disputes/"+dispute.ID+"/events", reviewerID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeBody[ListResponse[model.DisputeEvent]](t, rec).Count)
}

func TestWebhookEndpoints(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodPost, "/api/webhooks", clientID, `{"target_url":"https://hooks.example.com/payouts"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sub := decodeBody[model.PayoutWebhookSubscription](t, rec)
	assert.True(t, strings.HasPrefix(sub.Secret, "whsec_"))

	rec = a.do(http.MethodGet, "/api/webhooks", clientID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	subs := decodeBody[ListResponse[model.PayoutWebhookSubscription]](t, rec)
	require.Equal(t, 1, subs.Count)
	assert.Empty(t, subs.Items[0].Secret)

	assertError(t, a.do(http.MethodPost, "/api/webhooks", clientID, `{"target_url":"not a url"}`),
		http.StatusBadRequest, "validation_error")

	rec = a.do(http.MethodGet, "/api/webhooks/deliveries", clientID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeBody[ListResponse[model.PayoutWebhookDelivery]](t, rec).Count)
}

func TestStatusForKind(t *testing.T) {
	tests := map[payment.Kind]int{
		payment.KindNotFound:           http.StatusNotFound,
		payment.KindInvalidTransition:  http.StatusConflict,
		payment.KindApprovalRequired:   http.StatusConflict,
		payment.KindPolicyViolation:    http.StatusUnprocessableEntity,
		payment.KindWalletNotVerified:  http.StatusUnprocessableEntity,
		payment.KindWalletMismatch:     http.StatusUnprocessableEntity,
		payment.KindNoWalletConfigured: http.StatusUnprocessableEntity,
		payment.KindInvalidSignature:   http.StatusUnprocessableEntity,
		payment.KindChallengeExpired:   http.StatusUnprocessableEntity,
		payment.KindSourceUnavailable:  http.StatusUnprocessableEntity,
		payment.KindForbidden:          http.StatusForbidden,
		payment.KindValidation:         http.StatusBadRequest,
	}
	for kind, status := range tests {
		assert.Equal(t, status, statusForKind(kind), kind)
	}
}

func TestInfrastructureErrorsAreHidden(t *testing.T) {
	h := responder{logger: zap.NewNop()}
	rec := httptest.NewRecorder()

	h.writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/api/payouts", nil), errors.New("pq: connection refused"))

	assertError(t, rec, http.StatusInternalServerError, "internal_error")
	assert.NotContains(t, rec.Body.String(), "pq:")
}
