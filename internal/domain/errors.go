package domain

import (
	"errors"
	"fmt"
)

// Kind classifies errors for propagation: every kind except Gateway and
// Internal is client-facing and never retried.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindUnauthorized
	KindNotFound
	KindIllegalTransition
	KindPricingNotConfigured
	KindGateway
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindIllegalTransition:
		return "illegal_transition"
	case KindPricingNotConfigured:
		return "pricing_not_configured"
	case KindGateway:
		return "gateway"
	default:
		return "internal"
	}
}

// Error is a classified domain error. Sentinel values are compared with errors.Is.
type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

var (
	ErrInvalidDoctor        = newError(KindValidation, "invalid_doctor", "doctor does not exist or is inactive")
	ErrInvalidPatient       = newError(KindValidation, "invalid_patient", "patient does not exist or is the doctor")
	ErrPastTime             = newError(KindValidation, "past_time", "start time is not in the future")
	ErrBadDuration          = newError(KindValidation, "bad_duration", "appointment must last exactly 30 minutes")
	ErrInvalidWindow        = newError(KindValidation, "invalid_window", "invalid availability window")
	ErrInvalidDate          = newError(KindValidation, "invalid_date", "invalid date")
	ErrPastDate             = newError(KindValidation, "past_date", "date is in the past")
	ErrInvalidInput         = newError(KindValidation, "invalid_input", "invalid input")
	ErrSlotUnavailable      = newError(KindConflict, "slot_unavailable", "slot is unavailable")
	ErrWindowOverlap        = newError(KindConflict, "window_overlap", "availability window overlaps an existing window")
	ErrNotPayable           = newError(KindConflict, "not_payable", "appointment is not awaiting payment")
	ErrNotPaid              = newError(KindConflict, "not_paid", "appointment has not been paid")
	ErrPaymentIncomplete    = newError(KindConflict, "payment_incomplete", "gateway reports the session as unpaid")
	ErrDuplicateSession     = newError(KindConflict, "duplicate_session", "payment session is already recorded")
	ErrForbidden            = newError(KindUnauthorized, "forbidden", "caller is not allowed to perform this action")
	ErrBadSignature         = newError(KindUnauthorized, "bad_signature", "gateway signature verification failed")
	ErrNotFound             = newError(KindNotFound, "not_found", "not found")
	ErrPricingNotConfigured = newError(KindPricingNotConfigured, "pricing_not_configured", "doctor has no consultation price configured")
)

// Errorf wraps a sentinel with context while keeping it matchable.
func Errorf(sentinel *Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// IllegalTransitionError names the state an appointment was in and the action refused.
type IllegalTransitionError struct {
	From   AppointmentStatus
	Action string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot %s appointment in state %s", e.Action, e.From)
}

// GatewayError is a transient payment-gateway failure. State is left untouched.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var derr *Error
	var terr *IllegalTransitionError
	var gerr *GatewayError
	switch {
	case err == nil:
		return KindInternal
	case errors.As(err, &terr):
		return KindIllegalTransition
	case errors.As(err, &gerr):
		return KindGateway
	case errors.As(err, &derr):
		return derr.Kind
	default:
		return KindInternal
	}
}

// CodeOf returns a stable machine-readable code for err.
func CodeOf(err error) string {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Code
	}
	return KindOf(err).String()
}
