package payment

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"settlement/apps/settlement/internal/model"
)

func TestExpectedSignature_Deterministic(t *testing.T) {
	sum := sha256.Sum256([]byte(strings.ToLower(polygonAddr) + "|abc123"))
	want := "demo_sig_" + hex.EncodeToString(sum[:])

	assert.Equal(t, want, ExpectedSignature(polygonAddr, "abc123"))
	assert.Equal(t, want, ExpectedSignature("0x"+strings.ToUpper(polygonAddr[2:]), "abc123"))
	assert.NotEqual(t, want, ExpectedSignature(polygonAddr, "abc124"))
}

func TestCreateChallenge(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, humanID, polygonAddr, true)

	res, err := f.svc.CreateChallenge(f.ctx, w.ID, humanID, 0)
	require.NoError(t, err)

	c := res.Challenge
	assert.Equal(t, model.ChallengePending, c.Status)
	assert.Len(t, c.Nonce, 32)
	assert.Equal(t, f.clock.now.Add(15*time.Minute), c.ExpiresAt)
	assert.Equal(t, signatureHash(ExpectedSignature(polygonAddr, c.Nonce)), c.ExpectedSignatureHash)
	assert.Equal(t, "rent-a-human wallet verification\nwallet:"+w.ID+"\naddress:"+polygonAddr+"\nnonce:"+c.Nonce, res.MessageToSign)
	assert.Equal(t, expectedSignatureFormat, res.ExpectedSignatureFormat)

	_, err = f.svc.CreateChallenge(f.ctx, w.ID, humanID, 1441)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.CreateChallenge(f.ctx, w.ID, humanID, -1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.CreateChallenge(f.ctx, w.ID, "intruder", 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyChallenge_SucceedsOnce(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, humanID, polygonAddr, true)
	res, err := f.svc.CreateChallenge(f.ctx, w.ID, humanID, 30)
	require.NoError(t, err)
	sig := ExpectedSignature(polygonAddr, res.Challenge.Nonce)

	verified, err := f.svc.VerifyChallenge(f.ctx, res.Challenge.ID, sig, humanID)
	require.NoError(t, err)
	assert.Equal(t, model.ChallengeVerified, verified.Challenge.Status)
	assert.Equal(t, model.VerificationVerified, verified.Wallet.VerificationStatus)
	require.NotNil(t, verified.Wallet.VerifiedAt)

	_, err = f.svc.VerifyChallenge(f.ctx, res.Challenge.ID, sig, humanID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestVerifyChallenge_MismatchIsPersisted(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, humanID, polygonAddr, true)
	res, err := f.svc.CreateChallenge(f.ctx, w.ID, humanID, 30)
	require.NoError(t, err)

	_, err = f.svc.VerifyChallenge(f.ctx, res.Challenge.ID, "demo_sig_wrong", "")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	challenges, err := f.svc.ListChallenges(f.ctx, w.ID, humanID)
	require.NoError(t, err)
	require.Len(t, challenges, 1)
	assert.Equal(t, model.ChallengeRejected, challenges[0].Status)

	wallets, err := f.svc.ListWallets(f.ctx, model.WalletFilter{PayeeID: humanID})
	require.NoError(t, err)
	assert.Equal(t, model.VerificationUnverified, wallets[0].VerificationStatus)

	_, err = f.svc.VerifyChallenge(f.ctx, res.Challenge.ID, ExpectedSignature(polygonAddr, res.Challenge.Nonce), "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestVerifyChallenge_ExpiryIsPersisted(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, humanID, polygonAddr, true)
	res, err := f.svc.CreateChallenge(f.ctx, w.ID, humanID, 1)
	require.NoError(t, err)

	f.clock.advance(2 * time.Minute)
	_, err = f.svc.VerifyChallenge(f.ctx, res.Challenge.ID, ExpectedSignature(polygonAddr, res.Challenge.Nonce), humanID)
	assert.ErrorIs(t, err, ErrChallengeExpired)

	challenges, err := f.svc.ListChallenges(f.ctx, w.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.ChallengeExpired, challenges[0].Status)
}

func TestVerifyChallenge_ScopedToPayee(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, humanID, polygonAddr, true)
	res, err := f.svc.CreateChallenge(f.ctx, w.ID, "", 30)
	require.NoError(t, err)

	_, err = f.svc.VerifyChallenge(f.ctx, res.Challenge.ID, ExpectedSignature(polygonAddr, res.Challenge.Nonce), "intruder")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.VerifyChallenge(f.ctx, "missing", "sig", "")
	assert.ErrorIs(t, err, ErrNotFound)
}
