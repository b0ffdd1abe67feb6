package api

import (
	"net/http"

	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/payment"
)

// PolicyHandler handles payment policy, fee and network endpoints
type PolicyHandler struct {
	responder
	service *payment.Service
}

// NewPolicyHandler creates a new PolicyHandler
func NewPolicyHandler(service *payment.Service, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{responder: responder{logger: logger}, service: service}
}

// GetPolicy handles GET /api/policy
func (h *PolicyHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}

	policy, err := h.service.GetPolicy(r.Context(), owner)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, policy)
}

// UpdatePolicy handles PUT /api/policy
func (h *PolicyHandler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}

	var update model.PolicyUpdate
	if !h.decode(w, r, &update) {
		return
	}

	policy, err := h.service.UpdatePolicy(r.Context(), owner, update)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, policy)
}

// EstimateFees handles GET /api/fees/estimate
func (h *PolicyHandler) EstimateFees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, ok := h.queryInt(w, r, "amount_cents")
	if !ok {
		return
	}

	mode := model.ExecutionMode(q.Get("execution_mode"))
	estimate, err := h.service.EstimateFees(q.Get("chain"), q.Get("network"), q.Get("token"), amount, mode)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, estimate)
}

// ListNetworks handles GET /api/networks
func (h *PolicyHandler) ListNetworks(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, h.service.ListSupportedNetworks())
}
