/*
op.go - Closed set of balance-affecting operations

PURPOSE:
  Every mutation the engine can perform is one of these payload types.
  The engine dispatches over the closed set with an exhaustive type
  switch, so an unhandled operation kind is a loud error instead of a
  silent no-op.

VALIDATION:
  Each payload validates its own input (positive amount, required ids)
  before the engine touches the store. Invariants that depend on
  account state (balance, caps, claimed years) are checked inside the
  atomic cycle against freshly-read state.

SEE ALSO:
  - engine.go: Apply and the per-operation handlers
*/
package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// OPERATION - Tagged variant
// =============================================================================

type OpKind string

const (
	OpWithdraw    OpKind = "withdraw"
	OpDeposit     OpKind = "deposit"
	OpTransfer    OpKind = "transfer"
	OpBillPayment OpKind = "bill_payment"
	OpFundGoal    OpKind = "fund_goal"
	OpInterest    OpKind = "apply_interest"
	OpClaimGift   OpKind = "claim_gift"
)

// Operation is the closed interface over the payload types below. The
// unexported method keeps the set closed to this package.
type Operation interface {
	Kind() OpKind
	validate() error
}

// Origin marks who initiated a transfer. User-initiated transfers are
// counted against the payer's daily/monthly caps; scheduled runs and
// request settlements check balance only, matching how the system has
// always settled them.
type Origin string

const (
	OriginUser       Origin = "" // zero value: full limit enforcement
	OriginScheduled  Origin = "scheduled"
	OriginSettlement Origin = "settlement"
)

// =============================================================================
// PAYLOADS
// =============================================================================

// Withdraw debits amount plus the configured fee.
type Withdraw struct {
	Account  AccountID
	Amount   decimal.Decimal
	Note     string
	Category string
}

// Deposit credits amount. No limit check.
type Deposit struct {
	Account  AccountID
	Amount   decimal.Decimal
	Note     string
	Category string
}

// Transfer moves amount from payer to the payee resolved by username.
type Transfer struct {
	From       AccountID
	ToUsername string
	Amount     decimal.Decimal
	Note       string
	Category   string
	Origin     Origin
}

// BillPayment debits amount toward a biller. The biller account-number
// format is validated by the caller against the biller registry before
// the engine is invoked.
type BillPayment struct {
	Account       AccountID
	BillerID      string
	BillerName    string
	AccountNumber string
	Amount        decimal.Decimal
	Note          string
}

// FundGoal moves amount from the balance into a savings goal.
type FundGoal struct {
	Account AccountID
	GoalID  string
	Amount  decimal.Decimal
}

// ApplyInterest credits balance * tier.InterestRate.
type ApplyInterest struct {
	Account AccountID
}

// ClaimGift credits the fixed birthday bonus once per year key.
type ClaimGift struct {
	Account AccountID
	YearKey string
}

// =============================================================================
// KIND + VALIDATION
// =============================================================================

func (Withdraw) Kind() OpKind      { return OpWithdraw }
func (Deposit) Kind() OpKind       { return OpDeposit }
func (Transfer) Kind() OpKind      { return OpTransfer }
func (BillPayment) Kind() OpKind   { return OpBillPayment }
func (FundGoal) Kind() OpKind      { return OpFundGoal }
func (ApplyInterest) Kind() OpKind { return OpInterest }
func (ClaimGift) Kind() OpKind     { return OpClaimGift }

// requireAmount accepts positive amounts of at most cent precision.
// Sub-cent quantities are rejected rather than silently rounded.
func requireAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

func (op Withdraw) validate() error {
	if op.Account == "" {
		return ErrAccountNotFound
	}
	return requireAmount(op.Amount)
}

func (op Deposit) validate() error {
	if op.Account == "" {
		return ErrAccountNotFound
	}
	return requireAmount(op.Amount)
}

func (op Transfer) validate() error {
	if op.From == "" {
		return ErrAccountNotFound
	}
	if op.ToUsername == "" {
		return ErrRecipientNotFound
	}
	return requireAmount(op.Amount)
}

func (op BillPayment) validate() error {
	if op.Account == "" {
		return ErrAccountNotFound
	}
	return requireAmount(op.Amount)
}

func (op FundGoal) validate() error {
	if op.Account == "" {
		return ErrAccountNotFound
	}
	if op.GoalID == "" {
		return ErrGoalNotFound
	}
	return requireAmount(op.Amount)
}

func (op ApplyInterest) validate() error {
	if op.Account == "" {
		return ErrAccountNotFound
	}
	return nil
}

func (op ClaimGift) validate() error {
	if op.Account == "" {
		return ErrAccountNotFound
	}
	if op.YearKey == "" {
		return ErrInvalidYearKey
	}
	return nil
}
