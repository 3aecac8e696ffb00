package domain

import "errors"

// Error kinds surfaced by every operation. Callers match them with errors.Is;
// each call site wraps one of these with the operation name and the detail.
var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrDuplicateEntry         = errors.New("duplicate entry")
	ErrNotFound               = errors.New("not found")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrUnranked               = errors.New("unranked")
	ErrConfigMismatch         = errors.New("config mismatch")
	ErrIncompleteSet          = errors.New("incomplete fragment set")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidParameter       = errors.New("invalid parameter")
	ErrNotEligible            = errors.New("not eligible")
)

var errorKinds = []struct {
	err  error
	name string
}{
	{ErrInvalidStateTransition, "InvalidStateTransition"},
	{ErrDuplicateEntry, "DuplicateEntry"},
	{ErrNotFound, "NotFound"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrUnranked, "Unranked"},
	{ErrConfigMismatch, "ConfigMismatch"},
	{ErrIncompleteSet, "IncompleteSet"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrInvalidParameter, "InvalidParameter"},
	{ErrNotEligible, "NotEligible"},
}

// ErrorKind returns the stable name of the error kind wrapped by err,
// or "Internal" when err does not wrap any of them.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}
