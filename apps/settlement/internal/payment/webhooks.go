package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/repository"
)

const (
	simulatedResponseStatus = 202
	simulatedResponseBody   = `{"ok":true,"simulated":true}`
	secretPrefix            = "whsec_"
)

type CreateSubscriptionInput struct {
	OwnerUserID string   `json:"-" validate:"required"`
	TargetURL   string   `json:"target_url" validate:"required,url"`
	Events      []string `json:"events"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=500"`
}

// CreateSubscription registers a webhook endpoint. The returned record carries
// the signing secret; later listings omit it.
func (s *Service) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*model.PayoutWebhookSubscription, error) {
	in.TargetURL = strings.TrimSpace(in.TargetURL)
	if err := s.check(in); err != nil {
		return nil, err
	}
	if u, err := url.Parse(in.TargetURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalidf("target_url must be an http(s) URL")
	}

	eventTypes := []string{model.WildcardEvent}
	if len(in.Events) > 0 {
		eventTypes = eventTypes[:0]
		for _, e := range in.Events {
			e = strings.TrimSpace(e)
			if e != model.WildcardEvent && !slices.Contains(model.PayoutEventTypes, e) {
				return nil, invalidf("unsupported event type %q", e)
			}
			if !slices.Contains(eventTypes, e) {
				eventTypes = append(eventTypes, e)
			}
		}
	}

	secret, err := s.randomHex(24)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sub := model.PayoutWebhookSubscription{
		ID:          newID(),
		OwnerUserID: in.OwnerUserID,
		TargetURL:   in.TargetURL,
		Events:      eventTypes,
		Description: in.Description,
		Secret:      secretPrefix + secret,
		Status:      model.SubscriptionActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.withTx(ctx, func(q repository.Queries) error {
		return q.InsertSubscription(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Webhook subscription created",
		zap.String("subscription_id", sub.ID),
		zap.String("owner_user_id", sub.OwnerUserID),
		zap.Strings("events", sub.Events))
	return &sub, nil
}

func (s *Service) ListSubscriptions(ctx context.Context, ownerUserID string) ([]model.PayoutWebhookSubscription, error) {
	var subs []model.PayoutWebhookSubscription
	err := s.withTx(ctx, func(q repository.Queries) error {
		var err error
		subs, err = q.ListSubscriptions(ctx, ownerUserID, false)
		return err
	})
	for i := range subs {
		subs[i].Secret = ""
	}
	return subs, err
}

func (s *Service) ListDeliveries(ctx context.Context, filter model.DeliveryFilter) ([]model.PayoutWebhookDelivery, error) {
	filter.Limit = clampLimit(filter.Limit)
	var deliveries []model.PayoutWebhookDelivery
	err := s.withTx(ctx, func(q repository.Queries) error {
		var err error
		deliveries, err = q.ListDeliveries(ctx, filter)
		return err
	})
	return deliveries, err
}

// SignPayload returns the hex HMAC-SHA256 of body under secret.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// fanOut records one delivered row per active subscription of the payout's
// owner that matches the event. No outbound call is made.
func (s *Service) fanOut(ctx context.Context, q repository.Queries, t *tally, payout *model.CryptoPayout, event model.PayoutEvent) error {
	subs, err := q.ListSubscriptions(ctx, payout.OwnerUserID, true)
	if err != nil {
		return err
	}

	for _, sub := range subs {
		if !sub.Matches(event.EventType) {
			continue
		}

		payload := map[string]any{
			"event_id":      event.ID,
			"event_type":    event.EventType,
			"occurred_at":   event.CreatedAt,
			"payout_id":     payout.ID,
			"owner_user_id": payout.OwnerUserID,
			"payee_id":      payout.PayeeID,
			"status":        string(payout.Status),
			"amount_cents":  payout.AmountCents,
			"chain":         payout.Chain,
			"network":       payout.Network,
			"token":         payout.Token,
			"data":          event.Payload,
		}
		if payout.TxHash != nil {
			payload["tx_hash"] = *payout.TxHash
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode webhook payload: %w", err)
		}
		// Store the decoded form of the signed bytes so the recorded payload matches the signature.
		var recorded map[string]any
		if err := json.Unmarshal(body, &recorded); err != nil {
			return fmt.Errorf("failed to decode webhook payload: %w", err)
		}

		now := s.now()
		delivery := model.PayoutWebhookDelivery{
			ID:               newID(),
			SubscriptionID:   sub.ID,
			OwnerUserID:      payout.OwnerUserID,
			PayoutID:         payout.ID,
			PayoutEventID:    event.ID,
			EventType:        event.EventType,
			RequestPayload:   recorded,
			RequestSignature: SignPayload(sub.Secret, body),
			DeliveryStatus:   model.DeliveryStatusDelivered,
			ResponseStatus:   simulatedResponseStatus,
			ResponseBody:     simulatedResponseBody,
			DeliveredAt:      now,
			CreatedAt:        now,
		}
		if err := q.InsertDelivery(ctx, delivery); err != nil {
			return err
		}
		t.deliveries = append(t.deliveries, event.EventType)
	}
	return nil
}
