package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/payment"
)

// WalletHandler handles payee wallet and ownership verification endpoints.
// The caller identity is always the payee.
type WalletHandler struct {
	responder
	service *payment.Service
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(service *payment.Service, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{responder: responder{logger: logger}, service: service}
}

// UpsertWallet handles PUT /api/wallets
func (h *WalletHandler) UpsertWallet(w http.ResponseWriter, r *http.Request) {
	payee, ok := h.userID(w, r)
	if !ok {
		return
	}

	var in payment.UpsertWalletInput
	if !h.decode(w, r, &in) {
		return
	}
	in.PayeeID = payee

	wallet, err := h.service.UpsertWallet(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, wallet)
}

// ListWallets handles GET /api/wallets
func (h *WalletHandler) ListWallets(w http.ResponseWriter, r *http.Request) {
	payee, ok := h.userID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	wallets, err := h.service.ListWallets(r.Context(), model.WalletFilter{
		PayeeID: payee,
		Chain:   q.Get("chain"),
		Network: q.Get("network"),
		Token:   q.Get("token"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, newListResponse(wallets))
}

// CreateChallenge handles POST /api/wallets/{wallet_id}/challenges
func (h *WalletHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	payee, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req ChallengeRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.CreateChallenge(r.Context(), mux.Vars(r)["wallet_id"], payee, req.ExpiresInMinutes)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, result)
}

// ListChallenges handles GET /api/wallets/{wallet_id}/challenges
func (h *WalletHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	payee, ok := h.userID(w, r)
	if !ok {
		return
	}

	challenges, err := h.service.ListChallenges(r.Context(), mux.Vars(r)["wallet_id"], payee)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, newListResponse(challenges))
}

// VerifyChallenge handles POST /api/challenges/{challenge_id}/verify
func (h *WalletHandler) VerifyChallenge(w http.ResponseWriter, r *http.Request) {
	payee, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req VerifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.VerifyChallenge(r.Context(), mux.Vars(r)["challenge_id"], req.Signature, payee)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, result)
}
