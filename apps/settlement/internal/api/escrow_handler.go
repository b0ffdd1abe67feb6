package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/payment"
)

// EscrowHandler handles escrow hold and milestone endpoints
type EscrowHandler struct {
	responder
	service *payment.Service
}

// NewEscrowHandler creates a new EscrowHandler
func NewEscrowHandler(service *payment.Service, logger *zap.Logger) *EscrowHandler {
	return &EscrowHandler{responder: responder{logger: logger}, service: service}
}

// CreateHold handles POST /api/escrows
func (h *EscrowHandler) CreateHold(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}

	var in payment.CreateHoldInput
	if !h.decode(w, r, &in) {
		return
	}
	in.OwnerUserID = owner

	hold, err := h.service.CreateHold(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, hold)
}

// ListEscrows handles GET /api/escrows
func (h *EscrowHandler) ListEscrows(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}
	limit, ok := h.queryInt(w, r, "limit")
	if !ok {
		return
	}

	q := r.URL.Query()
	holds, err := h.service.ListEscrows(r.Context(), model.EscrowFilter{
		OwnerUserID: owner,
		Status:      model.EscrowStatus(q.Get("status")),
		SourceType:  model.SourceType(q.Get("source_type")),
		SourceID:    q.Get("source_id"),
		Limit:       int(limit),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, newListResponse(holds))
}

// GetEscrow handles GET /api/escrows/{escrow_id}
func (h *EscrowHandler) GetEscrow(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}

	hold, err := h.service.GetEscrow(r.Context(), owner, mux.Vars(r)["escrow_id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, hold)
}

// ReleaseEscrow handles POST /api/escrows/{escrow_id}/release
func (h *EscrowHandler) ReleaseEscrow(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}

	var in payment.ReleaseInput
	if !h.decode(w, r, &in) {
		return
	}
	in.OwnerUserID = owner
	in.EscrowID = mux.Vars(r)["escrow_id"]
	if in.AgentID == nil {
		in.AgentID = agentID(r)
	}

	result, err := h.service.Release(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, result)
}

// ListEscrowEvents handles GET /api/escrows/{escrow_id}/events
func (h *EscrowHandler) ListEscrowEvents(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}

	events, err := h.service.ListEscrowEvents(r.Context(), owner, mux.Vars(r)["escrow_id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, newListResponse(events))
}

// CreateMilestone handles POST /api/milestones
func (h *EscrowHandler) CreateMilestone(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}

	var in payment.CreateMilestoneInput
	if !h.decode(w, r, &in) {
		return
	}
	in.OwnerUserID = owner

	milestone, err := h.service.CreateMilestone(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, milestone)
}

// ListMilestones handles GET /api/milestones
func (h *EscrowHandler) ListMilestones(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	milestones, err := h.service.ListMilestones(r.Context(), model.MilestoneFilter{
		OwnerUserID: owner,
		SourceType:  model.SourceType(q.Get("source_type")),
		SourceID:    q.Get("source_id"),
		Status:      model.MilestoneStatus(q.Get("status")),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, newListResponse(milestones))
}

// CompleteMilestone handles POST /api/milestones/{milestone_id}/complete
func (h *EscrowHandler) CompleteMilestone(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req CompleteMilestoneRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := payment.CompleteMilestoneInput{
		OwnerUserID:      owner,
		MilestoneID:      mux.Vars(r)["milestone_id"],
		AutoCreatePayout: req.AutoCreatePayout,
	}
	if cfg := req.Payout; cfg != nil {
		in.Payout = &payment.MilestonePayoutConfig{
			Chain:              cfg.Chain,
			Network:            cfg.Network,
			Token:              cfg.Token,
			WalletID:           cfg.WalletID,
			ExecutionMode:      cfg.ExecutionMode,
			AgentID:            cfg.AgentID,
			IdempotencyKey:     cfg.IdempotencyKey,
			AutoExecute:        cfg.AutoExecute,
			TxHash:             cfg.TxHash,
			ConfirmImmediately: cfg.ConfirmImmediately,
		}
		if in.Payout.AgentID == nil {
			in.Payout.AgentID = agentID(r)
		}
	}

	result, err := h.service.CompleteMilestone(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, result)
}
