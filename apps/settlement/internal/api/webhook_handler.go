package api

import (
	"net/http"

	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/payment"
)

// WebhookHandler handles webhook subscription and delivery endpoints
type WebhookHandler struct {
	responder
	service *payment.Service
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(service *payment.Service, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{responder: responder{logger: logger}, service: service}
}

// CreateSubscription handles POST /api/webhooks. The signing secret is only
// returned in this response.
func (h *WebhookHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}

	var in payment.CreateSubscriptionInput
	if !h.decode(w, r, &in) {
		return
	}
	in.OwnerUserID = owner

	sub, err := h.service.CreateSubscription(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, sub)
}

// ListSubscriptions handles GET /api/webhooks
func (h *WebhookHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}

	subs, err := h.service.ListSubscriptions(r.Context(), owner)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, newListResponse(subs))
}

// ListDeliveries handles GET /api/webhooks/deliveries
func (h *WebhookHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}
	limit, ok := h.queryInt(w, r, "limit")
	if !ok {
		return
	}

	q := r.URL.Query()
	deliveries, err := h.service.ListDeliveries(r.Context(), model.DeliveryFilter{
		OwnerUserID:    owner,
		SubscriptionID: q.Get("subscription_id"),
		PayoutID:       q.Get("payout_id"),
		Limit:          int(limit),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, newListResponse(deliveries))
}
