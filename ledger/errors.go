/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers surface these to users naming the specific violated rule,
  never a generic "operation failed".

ERROR CATEGORIES:
  1. Validation errors - bad input, caught before any store call
  2. Invariant violations - insufficient funds, limit caps, double claims
  3. Not-found errors - missing account, recipient, or goal
  4. Transient store errors - optimistic-conflict retry exhaustion

USAGE:
  Services match with errors.Is():

    if errors.Is(err, ledger.ErrInsufficientFunds) {
        // surface the shortfall to the user
    }

SEE ALSO:
  - engine.go: Produces these errors
  - store.go: RunAtomic conflict semantics
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned for non-positive amounts. Caught
	// before any store call.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrAccountNotFound is returned when the acting account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrRecipientNotFound is returned when a transfer payee cannot be
	// resolved by username.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrGoalNotFound is returned when funding a goal that does not exist.
	ErrGoalNotFound = errors.New("goal not found")

	// ErrInsufficientFunds is returned when a debit would drive the
	// balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDailyLimitExceeded is returned when an operation would push the
	// daily withdraw/transfer counter over the tier cap.
	ErrDailyLimitExceeded = errors.New("daily limit exceeded")

	// ErrMonthlyLimitExceeded is the monthly-counter analogue.
	ErrMonthlyLimitExceeded = errors.New("monthly limit exceeded")

	// ErrSelfTransfer is returned when payer and payee resolve to the
	// same account.
	ErrSelfTransfer = errors.New("cannot transfer to yourself")

	// ErrAlreadyClaimed is returned on a second birthday-gift claim for
	// the same year key.
	ErrAlreadyClaimed = errors.New("gift already claimed for this year")

	// ErrInvalidYearKey is returned for a malformed gift year key.
	ErrInvalidYearKey = errors.New("invalid gift year key")

	// ErrConflictRetryExhausted is returned when the store's optimistic
	// retry loop gives up. The operation committed nothing; callers may
	// simply try again.
	ErrConflictRetryExhausted = errors.New("transaction conflict: retries exhausted")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError reports how short the balance is.
type InsufficientFundsError struct {
	AccountID AccountID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, requested %s",
		e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// LimitScope identifies which window a cap violation hit.
type LimitScope string

const (
	LimitDailyWithdraw   LimitScope = "daily_withdraw"
	LimitDailyTransfer   LimitScope = "daily_transfer"
	LimitMonthlyTransfer LimitScope = "monthly_transfer"
)

// LimitExceededError reports which cap an operation would have broken.
type LimitExceededError struct {
	AccountID AccountID
	Scope     LimitScope
	Used      decimal.Decimal
	Cap       decimal.Decimal
	Requested decimal.Decimal
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit exceeded: used %s of %s, requested %s",
		e.Scope, e.Used.StringFixed(2), e.Cap.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *LimitExceededError) Unwrap() error {
	if e.Scope == LimitMonthlyTransfer {
		return ErrMonthlyLimitExceeded
	}
	return ErrDailyLimitExceeded
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflictRetryExhausted)
}

// IsClientError returns true if the error is the caller's doing and should
// be surfaced as a user-facing message.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrDailyLimitExceeded) ||
		errors.Is(err, ErrMonthlyLimitExceeded) ||
		errors.Is(err, ErrSelfTransfer) ||
		errors.Is(err, ErrAlreadyClaimed)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrRecipientNotFound) ||
		errors.Is(err, ErrGoalNotFound)
}
