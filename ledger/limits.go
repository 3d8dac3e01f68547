/*
limits.go - Daily/monthly usage windows

PURPOSE:
  Pure functions over an account's limit state and a proposed amount.
  A window is "used so far this period" keyed by the current calendar
  day or month; the tier defines the cap.

LAZY ROLLOVER:
  Windows are never reset by a background job. Every read path compares
  the stored period key against "now" and, on mismatch, treats the
  window as a fresh zeroed one. A dormant account's window can stay
  stale indefinitely without side effects: staleness is re-derived from
  the key comparison on every check, never from elapsed-time arithmetic.

SEE ALSO:
  - engine.go: Calls RollDaily/RollMonthly inside every atomic cycle
  - types.go: DateKey/MonthKey formats
*/
package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// WINDOWS
// =============================================================================

// DailyWindow tracks consumption against the daily caps.
type DailyWindow struct {
	Date         string // DateKey of the window, "" when never used
	WithdrawUsed decimal.Decimal
	TransferUsed decimal.Decimal
}

// MonthlyWindow tracks consumption against the monthly transfer cap.
type MonthlyWindow struct {
	Month        string // MonthKey of the window
	TransferUsed decimal.Decimal
}

// =============================================================================
// ROLLOVER
// =============================================================================

// RollDaily returns w unchanged when it is keyed to today, otherwise a
// fresh zeroed window keyed to today. A window dated yesterday counts as
// zero-used regardless of its stored values.
func RollDaily(w DailyWindow, today string) DailyWindow {
	if w.Date == today {
		return w
	}
	return DailyWindow{
		Date:         today,
		WithdrawUsed: decimal.Zero,
		TransferUsed: decimal.Zero,
	}
}

// RollMonthly is the calendar-month analogue of RollDaily.
func RollMonthly(w MonthlyWindow, monthKey string) MonthlyWindow {
	if w.Month == monthKey {
		return w
	}
	return MonthlyWindow{Month: monthKey, TransferUsed: decimal.Zero}
}

// =============================================================================
// CHECK AND CONSUME
// =============================================================================

// CheckAndConsume returns the updated consumption if used+amount fits
// under cap, or ok=false leaving the window untouched.
func CheckAndConsume(used, cap, amount decimal.Decimal) (decimal.Decimal, bool) {
	next := used.Add(amount)
	if next.GreaterThan(cap) {
		return used, false
	}
	return next, true
}
