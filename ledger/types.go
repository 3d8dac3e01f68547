/*
Package ledger provides the core banking ledger engine.

PURPOSE:
  This package contains the types and algorithms that guard every balance
  mutation in the system: withdrawals, deposits, transfers, bill payments,
  goal funding, interest application, and birthday-gift credits. Each
  operation is an atomic read-check-write cycle against an injected store,
  producing exactly one immutable ledger entry.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: balance, tier, and rolling limit windows
  - Entry: An immutable ledger record of one completed operation
  - Receipt: Denormalized snapshot of an account's last transaction
  - Tier/TierParams: Account classification and its caps/rates

DESIGN PRINCIPLES:
  1. Immutability: Entries are never modified once written
  2. Precision: Uses decimal.Decimal to avoid floating-point drift
  3. Statelessness: The engine caches nothing between operations
  4. Freshness: Invariants are validated against freshly-read state only

SEE ALSO:
  - engine.go: Operation dispatch and invariant checks
  - limits.go: Daily/monthly limit windows
  - store.go: Persistence interfaces
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type EntryID string

// =============================================================================
// TIER - Account classification (determines interest rate and caps)
// =============================================================================

type Tier string

const (
	TierSavings  Tier = "savings"
	TierChecking Tier = "checking"
	TierPremium  Tier = "premium"
)

// TierParams are the per-tier knobs the engine consults.
type TierParams struct {
	InterestRate         decimal.Decimal
	WithdrawLimit        decimal.Decimal
	TransferLimit        decimal.Decimal
	MonthlyTransferLimit decimal.Decimal
}

// Config carries the constants the engine consumes. It is assembled by the
// config package; DefaultConfig gives the stock values.
type Config struct {
	WithdrawalTaxRate decimal.Decimal
	GiftAmount        decimal.Decimal
	Tiers             map[Tier]TierParams
}

// DefaultConfig returns the stock rates and caps.
func DefaultConfig() Config {
	return Config{
		WithdrawalTaxRate: decimal.NewFromFloat(0.02),
		GiftAmount:        decimal.NewFromInt(500),
		Tiers: map[Tier]TierParams{
			TierSavings: {
				InterestRate:         decimal.NewFromFloat(0.015),
				WithdrawLimit:        decimal.NewFromInt(10000),
				TransferLimit:        decimal.NewFromInt(10000),
				MonthlyTransferLimit: decimal.NewFromInt(50000),
			},
			TierChecking: {
				InterestRate:         decimal.NewFromFloat(0.005),
				WithdrawLimit:        decimal.NewFromInt(50000),
				TransferLimit:        decimal.NewFromInt(50000),
				MonthlyTransferLimit: decimal.NewFromInt(200000),
			},
			TierPremium: {
				InterestRate:         decimal.NewFromFloat(0.025),
				WithdrawLimit:        decimal.NewFromInt(100000),
				TransferLimit:        decimal.NewFromInt(100000),
				MonthlyTransferLimit: decimal.NewFromInt(300000),
			},
		},
	}
}

// TierParams resolves a tier, falling back to savings for unknown values.
func (c Config) TierParams(t Tier) TierParams {
	if p, ok := c.Tiers[t]; ok {
		return p
	}
	return c.Tiers[TierSavings]
}

// =============================================================================
// ACCOUNT - One record per customer
// =============================================================================

type Account struct {
	ID        AccountID
	Username  string // unique, case-sensitive
	FirstName string
	LastName  string
	Tier      Tier

	// Balance never goes negative as a result of an engine operation.
	Balance decimal.Decimal

	// Rolling usage windows; reset lazily when the stored key goes stale.
	LimitsDaily   DailyWindow
	LimitsMonthly MonthlyWindow

	// Denormalized copy of the most recent entry touching this account,
	// kept for fast receipt display without re-querying the ledger.
	LastTransaction *Receipt

	// Birthday is "YYYY-MM-DD"; GiftYearsClaimed is the idempotency set
	// for birthday-gift credits (one claim per calendar year).
	Birthday         string
	GiftYearsClaimed []string

	PINHash    string
	CardNumber string
	CreatedAt  time.Time

	// Version is managed by the store for optimistic concurrency.
	// Engine code never touches it.
	Version int64
}

// HasClaimedGift reports whether yearKey is already in the claimed set.
func (a *Account) HasClaimedGift(yearKey string) bool {
	for _, y := range a.GiftYearsClaimed {
		if y == yearKey {
			return true
		}
	}
	return false
}

// =============================================================================
// ENTRY - Immutable record of one completed operation
// =============================================================================

type EntryType string

const (
	EntryDeposit     EntryType = "DEPOSIT"
	EntryWithdrawal  EntryType = "WITHDRAWAL"
	EntryTransfer    EntryType = "TRANSFER"
	EntryBillPayment EntryType = "BILL_PAYMENT"
	EntryGoalFund    EntryType = "GOAL_FUND"
	EntryGift        EntryType = "BDAY_GIFT"
	EntryInterest    EntryType = "INTEREST"

	// ReceiptTransferIn is the payee-side receipt type for transfers.
	// It never appears on a ledger entry; a transfer is one entry
	// recording both sides' post-balances.
	ReceiptTransferIn = "TRANSFER-IN"
)

type Entry struct {
	ID   EntryID
	Type EntryType

	// Payer side. For credits (deposit, interest, gift) this is the
	// credited account.
	AccountID AccountID
	Username  string

	// Payee side, transfers only.
	RecipientID AccountID
	Recipient   string

	Amount decimal.Decimal
	Fee    decimal.Decimal // zero unless withdrawal

	Date string // YYYY-MM-DD
	Time string // HH:MM:SS

	Note     string
	Category string

	// Post-operation balance snapshots.
	BalanceAfter          decimal.Decimal
	RecipientBalanceAfter decimal.Decimal // transfers only

	// Bill payments only.
	BillerID            string
	BillerAccountNumber string

	// Goal funding only.
	GoalID string

	// Assigned by the store on append; history views sort by this
	// descending.
	CreatedAt time.Time
}

// =============================================================================
// RECEIPT - Denormalized last-transaction snapshot
// =============================================================================

type Receipt struct {
	Type         string
	Amount       decimal.Decimal
	Fee          decimal.Decimal
	Date         string
	Time         string
	Recipient    string
	Note         string
	Category     string
	BalanceAfter decimal.Decimal
}

// =============================================================================
// GOAL - Per-account savings goal
// =============================================================================

type Goal struct {
	ID         string
	AccountID  AccountID
	Name       string
	Target     decimal.Decimal
	Saved      decimal.Decimal
	TargetDate string
	Created    string
}

// Remaining returns how much is left to reach the target, floored at zero.
func (g *Goal) Remaining() decimal.Decimal {
	r := g.Target.Sub(g.Saved)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// =============================================================================
// CLOCK - Injected time source (tests freeze it)
// =============================================================================

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

// DateKey formats a calendar-day window key.
func DateKey(t time.Time) string { return t.Format("2006-01-02") }

// MonthKey formats a calendar-month window key. The month is not
// zero-padded; stored keys from earlier periods compare against the same
// format so the representation has to stay stable.
func MonthKey(t time.Time) string { return fmt.Sprintf("%d-%d", t.Year(), int(t.Month())) }

// ClockTime formats the wall-clock part of an entry.
func ClockTime(t time.Time) string { return t.Format("15:04:05") }
