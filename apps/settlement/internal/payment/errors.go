package payment

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Kind classifies a settlement failure independently of the operation that produced it.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindInvalidTransition  Kind = "invalid_transition"
	KindPolicyViolation    Kind = "policy_violation"
	KindApprovalRequired   Kind = "approval_required"
	KindWalletNotVerified  Kind = "wallet_not_verified"
	KindWalletMismatch     Kind = "wallet_mismatch"
	KindNoWalletConfigured Kind = "no_wallet_configured"
	KindInvalidSignature   Kind = "invalid_signature"
	KindChallengeExpired   Kind = "challenge_expired"
	KindValidation         Kind = "validation_error"
	KindSourceUnavailable  Kind = "source_unavailable"
	KindForbidden          Kind = "forbidden"
)

// Error is a domain failure surfaced to REST and MCP callers.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// for every not-found failure regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidTransition  = &Error{Kind: KindInvalidTransition}
	ErrPolicyViolation    = &Error{Kind: KindPolicyViolation}
	ErrApprovalRequired   = &Error{Kind: KindApprovalRequired}
	ErrWalletNotVerified  = &Error{Kind: KindWalletNotVerified}
	ErrWalletMismatch     = &Error{Kind: KindWalletMismatch}
	ErrNoWalletConfigured = &Error{Kind: KindNoWalletConfigured}
	ErrInvalidSignature   = &Error{Kind: KindInvalidSignature}
	ErrChallengeExpired   = &Error{Kind: KindChallengeExpired}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrSourceUnavailable  = &Error{Kind: KindSourceUnavailable}
	ErrForbidden          = &Error{Kind: KindForbidden}
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func notFound(what, id string) *Error {
	return newError(KindNotFound, "%s %s not found", what, id)
}

func invalidf(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

// KindOf returns the domain kind of err, or "" for infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// validationError flattens validator.ValidationErrors into a single domain error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalidf("%v", err)
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return invalidf("field %s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return invalidf("field %s failed %s", fe.Field(), fe.Tag())
}
