package payment

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/repository"
)

const (
	DefaultChallengeTTLMinutes = 15
	MaxChallengeTTLMinutes     = 1440

	signaturePrefix         = "demo_sig_"
	expectedSignatureFormat = `demo_sig_<sha256(lowercase(address)+"|"+nonce)>`
)

type ChallengeResult struct {
	Challenge               model.WalletVerificationChallenge `json:"challenge"`
	MessageToSign           string                            `json:"message_to_sign"`
	ExpectedSignatureFormat string                            `json:"expected_signature_format"`
}

type VerificationResult struct {
	Challenge model.WalletVerificationChallenge `json:"challenge"`
	Wallet    model.Wallet                      `json:"wallet"`
}

// ExpectedSignature is the simulated signature a wallet owner must present for nonce.
func ExpectedSignature(address, nonce string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(address) + "|" + nonce))
	return signaturePrefix + hex.EncodeToString(sum[:])
}

func signatureHash(signature string) string {
	sum := sha256.Sum256([]byte(signature))
	return hex.EncodeToString(sum[:])
}

func challengeMessage(wallet *model.Wallet, nonce string) string {
	return fmt.Sprintf("rent-a-human wallet verification\nwallet:%s\naddress:%s\nnonce:%s", wallet.ID, wallet.Address, nonce)
}

func (s *Service) randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// CreateChallenge issues an ownership challenge for the wallet. A non-empty
// payeeID must own the wallet. expiresInMinutes of 0 selects the default TTL.
func (s *Service) CreateChallenge(ctx context.Context, walletID, payeeID string, expiresInMinutes int) (*ChallengeResult, error) {
	if expiresInMinutes == 0 {
		expiresInMinutes = DefaultChallengeTTLMinutes
	}
	if expiresInMinutes < 1 || expiresInMinutes > MaxChallengeTTLMinutes {
		return nil, invalidf("expires_in_minutes must be between 1 and %d", MaxChallengeTTLMinutes)
	}
	nonce, err := s.randomHex(16)
	if err != nil {
		return nil, err
	}

	var result *ChallengeResult
	err = s.withTx(ctx, func(q repository.Queries) error {
		wallet, err := q.GetWallet(ctx, walletID)
		if err != nil {
			return err
		}
		if wallet == nil || (payeeID != "" && wallet.PayeeID != payeeID) {
			return notFound("wallet", walletID)
		}

		now := s.now()
		challenge := model.WalletVerificationChallenge{
			ID:                    newID(),
			WalletID:              wallet.ID,
			PayeeID:               wallet.PayeeID,
			Nonce:                 nonce,
			Message:               challengeMessage(wallet, nonce),
			ExpectedSignatureHash: signatureHash(ExpectedSignature(wallet.Address, nonce)),
			Status:                model.ChallengePending,
			ExpiresAt:             now.Add(time.Duration(expiresInMinutes) * time.Minute),
			CreatedAt:             now,
		}
		if err := q.InsertChallenge(ctx, challenge); err != nil {
			return err
		}

		result = &ChallengeResult{
			Challenge:               challenge,
			MessageToSign:           challenge.Message,
			ExpectedSignatureFormat: expectedSignatureFormat,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Wallet challenge created",
		zap.String("challenge_id", result.Challenge.ID),
		zap.String("wallet_id", walletID),
		zap.Time("expires_at", result.Challenge.ExpiresAt))
	return result, nil
}

// VerifyChallenge checks signature against a pending challenge. Expiry and
// mismatch are persisted (expired / rejected) before the call fails.
func (s *Service) VerifyChallenge(ctx context.Context, challengeID, signature, expectedPayeeID string) (*VerificationResult, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, invalidf("signature is required")
	}

	var result *VerificationResult
	var outcome error
	err := s.withTx(ctx, func(q repository.Queries) error {
		challenge, err := q.GetChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		if challenge == nil || (expectedPayeeID != "" && challenge.PayeeID != expectedPayeeID) {
			return notFound("challenge", challengeID)
		}
		if challenge.Status != model.ChallengePending {
			return newError(KindInvalidTransition, "challenge %s is already %s", challengeID, challenge.Status)
		}

		now := s.now()
		if now.After(challenge.ExpiresAt) {
			outcome = newError(KindChallengeExpired, "challenge %s expired at %s", challengeID, challenge.ExpiresAt.Format(time.RFC3339))
			return q.UpdateChallengeStatus(ctx, challengeID, model.ChallengeExpired, nil)
		}

		if subtle.ConstantTimeCompare([]byte(signatureHash(signature)), []byte(challenge.ExpectedSignatureHash)) != 1 {
			outcome = newError(KindInvalidSignature, "signature does not match challenge %s", challengeID)
			return q.UpdateChallengeStatus(ctx, challengeID, model.ChallengeRejected, nil)
		}

		if err := q.UpdateChallengeStatus(ctx, challengeID, model.ChallengeVerified, timePtr(now)); err != nil {
			return err
		}
		if err := q.UpdateWalletVerification(ctx, challenge.WalletID, model.VerificationVerified, timePtr(now)); err != nil {
			return err
		}

		updated, err := q.GetChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		wallet, err := q.GetWallet(ctx, challenge.WalletID)
		if err != nil {
			return err
		}
		result = &VerificationResult{Challenge: *updated, Wallet: *wallet}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		s.logger.Info("Wallet challenge failed", zap.String("challenge_id", challengeID), zap.Error(outcome))
		return nil, outcome
	}

	s.logger.Info("Wallet verified",
		zap.String("challenge_id", challengeID),
		zap.String("wallet_id", result.Wallet.ID))
	return result, nil
}

// ListChallenges returns the wallet's challenges, newest first. A non-empty
// payeeID must own the wallet.
func (s *Service) ListChallenges(ctx context.Context, walletID, payeeID string) ([]model.WalletVerificationChallenge, error) {
	var challenges []model.WalletVerificationChallenge
	err := s.withTx(ctx, func(q repository.Queries) error {
		wallet, err := q.GetWallet(ctx, walletID)
		if err != nil {
			return err
		}
		if wallet == nil || (payeeID != "" && wallet.PayeeID != payeeID) {
			return notFound("wallet", walletID)
		}
		challenges, err = q.ListChallenges(ctx, walletID)
		return err
	})
	return challenges, err
}
