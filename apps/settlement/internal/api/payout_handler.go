package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/payment"
)

// PayoutHandler handles payout intent lifecycle endpoints
type PayoutHandler struct {
	responder
	service *payment.Service
}

// NewPayoutHandler creates a new PayoutHandler
func NewPayoutHandler(service *payment.Service, logger *zap.Logger) *PayoutHandler {
	return &PayoutHandler{responder: responder{logger: logger}, service: service}
}

// CreatePayout handles POST /api/payouts
func (h *PayoutHandler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}

	var in payment.CreateIntentInput
	if !h.decode(w, r, &in) {
		return
	}
	in.OwnerUserID = owner
	if in.AgentID == nil {
		in.AgentID = agentID(r)
	}

	payout, err := h.service.CreateIntent(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, payout)
}

// ListPayouts handles GET /api/payouts
func (h *PayoutHandler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}
	limit, ok := h.queryInt(w, r, "limit")
	if !ok {
		return
	}

	q := r.URL.Query()
	payouts, err := h.service.ListPayouts(r.Context(), model.PayoutFilter{
		OwnerUserID: owner,
		Status:      model.PayoutStatus(q.Get("status")),
		PayeeID:     q.Get("payee_id"),
		SourceType:  model.SourceType(q.Get("source_type")),
		Limit:       int(limit),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, newListResponse(payouts))
}

// GetPayout handles GET /api/payouts/{payout_id}
func (h *PayoutHandler) GetPayout(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}

	payout, err := h.service.GetPayout(r.Context(), owner, mux.Vars(r)["payout_id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, payout)
}

// ApprovePayout handles POST /api/payouts/{payout_id}/approve
func (h *PayoutHandler) ApprovePayout(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req ActorRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := req.ActorID
	if actor == "" {
		actor = owner
	}

	payout, err := h.service.Approve(r.Context(), owner, mux.Vars(r)["payout_id"], actor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, payout)
}

// ExecutePayout handles POST /api/payouts/{payout_id}/execute
func (h *PayoutHandler) ExecutePayout(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req ExecuteRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.AgentID == "" {
		if id := agentID(r); id != nil {
			req.AgentID = *id
		}
	}

	payout, err := h.service.ExecuteByAgent(r.Context(), payment.ExecuteInput{
		OwnerUserID:        owner,
		PayoutID:           mux.Vars(r)["payout_id"],
		AgentID:            req.AgentID,
		TxHash:             req.TxHash,
		ConfirmImmediately: req.ConfirmImmediately,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, payout)
}

// FailPayout handles POST /api/payouts/{payout_id}/fail
func (h *PayoutHandler) FailPayout(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req FailRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := req.ActorID
	if actor == "" {
		actor = owner
	}

	payout, err := h.service.Fail(r.Context(), owner, mux.Vars(r)["payout_id"], req.Reason, actor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, payout)
}

// ListPayoutEvents handles GET /api/payouts/{payout_id}/events
func (h *PayoutHandler) ListPayoutEvents(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}

	events, err := h.service.ListPayoutEvents(r.Context(), owner, mux.Vars(r)["payout_id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, newListResponse(events))
}
