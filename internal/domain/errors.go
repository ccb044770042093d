package domain

import (
	"errors"
	"fmt"
)

// Code is the stable, machine-readable name of a failure returned to callers.
type Code string

const (
	CodeValidation          Code = "ValidationFailed"
	CodeSeatOutOfRange      Code = "SeatOutOfRange"
	CodeTripNotFound        Code = "TripNotFound"
	CodeBookingNotFound     Code = "BookingNotFound"
	CodeCancellationMissing Code = "CancellationNotFound"
	CodeForbidden           Code = "Forbidden"

	CodeSeatTaken           Code = "SeatTaken"
	CodeNoSeatsAvailable    Code = "NoSeatsAvailable"
	CodeAlreadyPaid         Code = "AlreadyPaid"
	CodeAlreadyDecided      Code = "AlreadyDecided"
	CodeCancellationPending Code = "CancellationPending"
	CodeStaleState          Code = "StaleState"
	CodeIdempotencyReused   Code = "IdempotencyKeyReused"
	CodeTransactionReused   Code = "TransactionReused"

	CodeTripNotBookable     Code = "TripNotBookable"
	CodeTooCloseToDeparture Code = "TooCloseToDeparture"
	CodeNotPaid             Code = "NotPaid"
	CodeTicketUsed          Code = "TicketUsed"
	CodeInvalidTransition   Code = "InvalidTransition"
	CodeSignatureMismatch   Code = "SignatureMismatch"
	CodeMerchantMismatch    Code = "MerchantMismatch"
	CodeAmountMismatch      Code = "AmountMismatch"
	CodeRetryable           Code = "TryAgain"
	CodeInternal            Code = "Internal"
)

type NotFoundError struct {
	Resource string
	Code     Code
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Code  Code
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

// ConflictError reports an expected race or a state that already moved on.
// Current, when set, names the state the caller lost to.
type ConflictError struct {
	Resource string
	Code     Code
	Msg      string
	Current  string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

// PolicyError is a business-rule rejection. HoursToDeparture carries the value
// the rule was evaluated against, when the rule is time based.
type PolicyError struct {
	Code             Code
	Msg              string
	HoursToDeparture *float64
}

func (e PolicyError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.HoursToDeparture != nil {
		return fmt.Sprintf("%s (hours to departure: %.2f)", msg, *e.HoursToDeparture)
	}
	return msg
}

// IntegrityError marks input that failed an authenticity check. Nothing is
// mutated when one is returned.
type IntegrityError struct {
	Code Code
	Msg  string
}

func (e IntegrityError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "integrity check failed"
}

type ForbiddenError struct {
	Msg string
}

func (e ForbiddenError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "forbidden"
}

// RetryableError wraps storage timeouts and lock contention.
type RetryableError struct {
	Op  string
	Err error
}

func (e RetryableError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("temporarily unavailable: %v", e.Err)
	}
	return fmt.Sprintf("%s temporarily unavailable: %v", e.Op, e.Err)
}

func (e RetryableError) Unwrap() error { return e.Err }

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsPolicy(err error) bool {
	var target PolicyError
	return errors.As(err, &target)
}

func IsIntegrity(err error) bool {
	var target IntegrityError
	return errors.As(err, &target)
}

func IsForbidden(err error) bool {
	var target ForbiddenError
	return errors.As(err, &target)
}

func IsRetryable(err error) bool {
	var target RetryableError
	return errors.As(err, &target)
}

func IsInternal(err error) bool {
	var target InternalError
	return errors.As(err, &target)
}

// CodeOf returns the Code carried by the first typed error in err's chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var (
		nf NotFoundError
		ve ValidationError
		ce ConflictError
		pe PolicyError
		ie IntegrityError
		fe ForbiddenError
		re RetryableError
	)
	switch {
	case errors.As(err, &ve):
		if ve.Code != "" {
			return ve.Code
		}
		return CodeValidation
	case errors.As(err, &nf):
		return nf.Code
	case errors.As(err, &ce):
		return ce.Code
	case errors.As(err, &pe):
		return pe.Code
	case errors.As(err, &ie):
		return ie.Code
	case errors.As(err, &fe):
		return CodeForbidden
	case errors.As(err, &re):
		return CodeRetryable
	default:
		return CodeInternal
	}
}

func Hours(h float64) *float64 { return &h }
