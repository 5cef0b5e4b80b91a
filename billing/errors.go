package billing

import (
	"errors"
	"fmt"

	"github.com/ledgerline/billing-engine/history"
)

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrCurrencyMismatch  = errors.New("currency does not match ledger currency")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidTransition = errors.New("invalid document status transition")
)

// InsufficientFundsError carries the shortfall details for display.
type InsufficientFundsError struct {
	UserID    history.UserID
	Available history.Amount
	Requested history.Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %v, requested %v",
		e.Available.Value, e.Requested.Value)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// TransitionError reports an invalid document lifecycle move.
type TransitionError struct {
	DocumentID string
	From       DocumentStatus
	To         DocumentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("document %s: cannot move from %s to %s", e.DocumentID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// IsClientError reports whether the error is the caller's fault (HTTP 4xx
// territory) rather than a backend failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrCurrencyMismatch) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound) || errors.Is(err, ErrUserNotFound)
}
