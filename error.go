package ledgerxgo

import (
	"errors"
	"fmt"
)

var (
	ErrInternalServer = errors.New("internal server error")
)

// messages kept verbatim so callers and tests can match on them
const (
	msgPositiveAmount      = " amount must be positive."
	msgPrecisionExceeded   = "Amount must not have more than two decimal places."
	msgInsufficientBalance = "Insufficient balance."
	msgInvalidAccount      = "Account does not exist."
	msgNoStatement         = "Account has no statement."
)

type ErrBadRequest struct {
	Fields map[string]string `json:"fields"`
}

func (e ErrBadRequest) Error() string {
	return fmt.Sprintf("missing/invalid params: %v", e.Fields)
}

type ErrNotFound struct {
	ID string `json:"id"`
}

func (e ErrNotFound) Error() string {
	return msgInvalidAccount
}

// ErrInvalidAmount rejects a non-positive or over-precise amount before any
// state is touched.
type ErrInvalidAmount struct {
	Reason string `json:"reason"`
}

func (e ErrInvalidAmount) Error() string {
	return e.Reason
}

func errAmountNotPositive(op OperationType) ErrInvalidAmount {
	return ErrInvalidAmount{Reason: op.Description() + msgPositiveAmount}
}

type ErrInsufficientBalance struct{}

func (e ErrInsufficientBalance) Error() string {
	return msgInsufficientBalance
}

// ErrConflict is returned by an AccountStore whose optimistic save detected
// a concurrent mutation; the service retries the whole operation from load.
type ErrConflict struct {
	ID string `json:"id"`
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("account `%s` was modified concurrently", e.ID)
}

// ErrTooManyRequests is surfaced when the service sheds load instead of
// queueing past its deadline. Safe to retry.
type ErrTooManyRequests struct{}

func (e ErrTooManyRequests) Error() string {
	return "too many requests"
}
