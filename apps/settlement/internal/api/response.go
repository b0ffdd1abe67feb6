package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"settlement/apps/settlement/internal/payment"
)

const (
	userHeader  = "X-User-ID"
	agentHeader = "X-Agent-ID"
)

var errMissingIdentity = errors.New("missing identity")

// responder holds the JSON helpers shared by every handler.
type responder struct {
	logger *zap.Logger
}

// writeJSONResponse writes a JSON response with the specified status code
func (h responder) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// writeErrorResponse writes an error response
func (h responder) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// writeServiceError maps a settlement failure to its HTTP status. Errors without
// a domain kind are logged and reported as internal errors.
func (h responder) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := payment.KindOf(err)
	if kind == "" {
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		h.writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}

	var domainErr *payment.Error
	message := string(kind)
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		message = domainErr.Message
	}
	h.writeErrorResponse(w, statusForKind(kind), string(kind), message)
}

func statusForKind(kind payment.Kind) int {
	switch kind {
	case payment.KindNotFound:
		return http.StatusNotFound
	case payment.KindInvalidTransition, payment.KindApprovalRequired:
		return http.StatusConflict
	case payment.KindPolicyViolation, payment.KindWalletNotVerified, payment.KindWalletMismatch,
		payment.KindNoWalletConfigured, payment.KindInvalidSignature, payment.KindChallengeExpired,
		payment.KindSourceUnavailable:
		return http.StatusUnprocessableEntity
	case payment.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

// decode reads a JSON body. An empty body leaves dst untouched.
func (h responder) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, "invalid_request_body", "Invalid JSON in request body")
		return false
	}
	return true
}

// userID returns the caller id forwarded by the gateway, writing a 401 when absent.
func (h responder) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(userHeader))
	if id == "" {
		h.writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", errMissingIdentity.Error()+": "+userHeader+" header is required")
		return "", false
	}
	return id, true
}

func agentID(r *http.Request) *string {
	if id := strings.TrimSpace(r.Header.Get(agentHeader)); id != "" {
		return &id
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func (h responder) queryInt(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, string(payment.KindValidation), name+" must be an integer")
		return 0, false
	}
	return v, true
}
