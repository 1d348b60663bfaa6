package content

import (
	"errors"
)

// Kind classifies a failure by how a caller should react to it.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthorization
	KindTemporal
	KindEconomic
	KindStructural
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindTemporal:
		return "temporal"
	case KindEconomic:
		return "economic"
	case KindStructural:
		return "structural"
	default:
		return "unknown"
	}
}

// Retryable reports whether resubmitting with fresh parameters can succeed.
func (k Kind) Retryable() bool {
	return k == KindTemporal || k == KindEconomic
}

// Error is a named failure of a content operation.
type Error struct {
	Kind Kind
	Code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, msg: msg}
}

var (
	ErrZeroTo              = newError(KindValidation, "zero_to", "recipient is the zero address")
	ErrZeroAddress         = newError(KindValidation, "zero_address", "address is the zero address")
	ErrZeroLengthURI       = newError(KindValidation, "zero_length_uri", "uri is empty")
	ErrZeroMinPrice        = newError(KindValidation, "zero_min_price", "minimum init price is zero")
	ErrInitPriceExceedsMax = newError(KindValidation, "init_price_exceeds_max", "minimum init price exceeds the absolute maximum")
	ErrInvalidConfig       = newError(KindValidation, "invalid_config", "invalid content configuration")
	ErrTokenNotFound       = newError(KindValidation, "token_not_found", "token does not exist")
	ErrAlreadyApproved     = newError(KindValidation, "already_approved", "token is already approved")

	ErrNotOwner     = newError(KindAuthorization, "not_owner", "caller is not the owner")
	ErrNotModerator = newError(KindAuthorization, "not_moderator", "caller is not a moderator")
	ErrNotApproved  = newError(KindAuthorization, "not_approved", "token is not approved")

	ErrDeadlinePassed  = newError(KindTemporal, "deadline_passed", "deadline passed")
	ErrEpochIDMismatch = newError(KindTemporal, "epoch_id_mismatch", "epoch id mismatch")

	ErrMaxPriceExceeded = newError(KindEconomic, "max_price_exceeded", "price exceeds max price")

	ErrTransferDisabled = newError(KindStructural, "transfer_disabled", "transfers are disabled")
	ErrReentrantCall    = newError(KindStructural, "reentrant_call", "reentrant call")
)

// KindOf returns the kind of the named failure wrapped in err.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// CodeOf returns the code of the named failure wrapped in err, or "" if err
// does not wrap one (for example a failing collaborator).
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
