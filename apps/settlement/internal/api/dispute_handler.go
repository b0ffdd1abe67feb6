package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/payment"
)

// DisputeHandler handles dispute endpoints. Visibility is decided by the
// service: parties see their own disputes, reviewers see all of them.
type DisputeHandler struct {
	responder
	service *payment.Service
}

// NewDisputeHandler creates a new DisputeHandler
func NewDisputeHandler(service *payment.Service, logger *zap.Logger) *DisputeHandler {
	return &DisputeHandler{responder: responder{logger: logger}, service: service}
}

// OpenDispute handles POST /api/disputes
func (h *DisputeHandler) OpenDispute(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userID(w, r)
	if !ok {
		return
	}

	var in payment.OpenDisputeInput
	if !h.decode(w, r, &in) {
		return
	}
	in.UserID = user

	dispute, err := h.service.OpenDispute(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, dispute)
}

// ListDisputes handles GET /api/disputes
func (h *DisputeHandler) ListDisputes(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userID(w, r)
	if !ok {
		return
	}
	limit, ok := h.queryInt(w, r, "limit")
	if !ok {
		return
	}

	q := r.URL.Query()
	disputes, err := h.service.ListDisputes(r.Context(), user, model.DisputeFilter{
		Status:     model.DisputeStatus(q.Get("status")),
		TargetType: model.DisputeTargetType(q.Get("target_type")),
		TargetID:   q.Get("target_id"),
		Limit:      int(limit),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, newListResponse(disputes))
}

// GetDispute handles GET /api/disputes/{dispute_id}
func (h *DisputeHandler) GetDispute(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userID(w, r)
	if !ok {
		return
	}

	dispute, err := h.service.GetDispute(r.Context(), user, mux.Vars(r)["dispute_id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, dispute)
}

// ResolveDispute handles POST /api/disputes/{dispute_id}/resolve
func (h *DisputeHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	reviewer, ok := h.userID(w, r)
	if !ok {
		return
	}

	var in payment.ResolveDisputeInput
	if !h.decode(w, r, &in) {
		return
	}
	in.ReviewerID = reviewer
	in.DisputeID = mux.Vars(r)["dispute_id"]

	dispute, err := h.service.ResolveDispute(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, dispute)
}

// ListDisputeEvents handles GET /api/disputes/{dispute_id}/events
func (h *DisputeHandler) ListDisputeEvents(w http.ResponseWriter, r *http.Request) {
	user, ok := h.userID(w, r)
	if !ok {
		return
	}

	events, err := h.service.ListDisputeEvents(r.Context(), user, mux.Vars(r)["dispute_id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, newListResponse(events))
}
