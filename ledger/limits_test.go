/*
limits_test.go - Unit tests for window rollover and cap consumption

CORE DESIGN:
- Windows are NEVER reset by a background job; staleness is re-derived
  from the stored period key on every check
- CheckAndConsume is pure: a rejected consumption leaves "used" untouched
*/
package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

// =============================================================================
// ROLLOVER TESTS
// =============================================================================

func TestRollDaily_SameDay_KeepsUsage(t *testing.T) {
	// GIVEN: A window keyed to today with usage recorded
	// WHEN: Rolling for the same day
	// THEN: Usage is preserved unchanged

	w := DailyWindow{
		Date:         "2025-06-10",
		WithdrawUsed: decimal.NewFromInt(300),
		TransferUsed: decimal.NewFromInt(150),
	}

	got := RollDaily(w, "2025-06-10")

	assert.Equal(t, "2025-06-10", got.Date)
	assert.True(t, got.WithdrawUsed.Equal(decimal.NewFromInt(300)))
	assert.True(t, got.TransferUsed.Equal(decimal.NewFromInt(150)))
}

func TestRollDaily_NewDay_ResetsToZero(t *testing.T) {
	// GIVEN: A window dated yesterday with heavy usage
	// WHEN: Rolling for today
	// THEN: A fresh zeroed window keyed to today

	w := DailyWindow{
		Date:         "2025-06-09",
		WithdrawUsed: decimal.NewFromInt(9999),
		TransferUsed: decimal.NewFromInt(9999),
	}

	got := RollDaily(w, "2025-06-10")

	assert.Equal(t, "2025-06-10", got.Date)
	assert.True(t, got.WithdrawUsed.IsZero())
	assert.True(t, got.TransferUsed.IsZero())
}

func TestRollDaily_NeverUsed_EmptyKeyResets(t *testing.T) {
	// GIVEN: A zero-value window (empty date key, dormant account)
	// WHEN: Rolling for today
	// THEN: Fresh window; no elapsed-time arithmetic involved

	got := RollDaily(DailyWindow{}, "2025-06-10")

	assert.Equal(t, "2025-06-10", got.Date)
	assert.True(t, got.WithdrawUsed.IsZero())
}

func TestRollMonthly_NewMonth_ResetsTransferUsage(t *testing.T) {
	// GIVEN: A monthly window from the previous month
	// WHEN: Rolling into the new month key
	// THEN: Transfer usage resets to zero

	w := MonthlyWindow{Month: "2025-5", TransferUsed: decimal.NewFromInt(40000)}

	got := RollMonthly(w, "2025-6")

	assert.Equal(t, "2025-6", got.Month)
	assert.True(t, got.TransferUsed.IsZero())
}

func TestRollMonthly_SameMonth_KeepsUsage(t *testing.T) {
	w := MonthlyWindow{Month: "2025-6", TransferUsed: decimal.NewFromInt(500)}

	got := RollMonthly(w, "2025-6")

	assert.True(t, got.TransferUsed.Equal(decimal.NewFromInt(500)))
}

// =============================================================================
// CHECK AND CONSUME TESTS
// =============================================================================

func TestCheckAndConsume_UnderCap_Consumes(t *testing.T) {
	// GIVEN: 300 used of a 10000 cap
	// WHEN: Consuming 700 more
	// THEN: ok, usage becomes 1000

	used, ok := CheckAndConsume(
		decimal.NewFromInt(300),
		decimal.NewFromInt(10000),
		decimal.NewFromInt(700),
	)

	assert.True(t, ok)
	assert.True(t, used.Equal(decimal.NewFromInt(1000)))
}

func TestCheckAndConsume_ExactlyAtCap_Allowed(t *testing.T) {
	// GIVEN: 9000 used of a 10000 cap
	// WHEN: Consuming exactly the remaining 1000
	// THEN: Allowed; the cap is inclusive

	used, ok := CheckAndConsume(
		decimal.NewFromInt(9000),
		decimal.NewFromInt(10000),
		decimal.NewFromInt(1000),
	)

	assert.True(t, ok)
	assert.True(t, used.Equal(decimal.NewFromInt(10000)))
}

func TestCheckAndConsume_OverCap_LeavesUsageUntouched(t *testing.T) {
	// GIVEN: 9500 used of a 10000 cap
	// WHEN: Requesting 501 more
	// THEN: Rejected and the returned usage is the original 9500

	used, ok := CheckAndConsume(
		decimal.NewFromInt(9500),
		decimal.NewFromInt(10000),
		decimal.NewFromInt(501),
	)

	assert.False(t, ok)
	assert.True(t, used.Equal(decimal.NewFromInt(9500)))
}

// =============================================================================
// PERIOD KEY TESTS
// =============================================================================

func TestMonthKey_NotZeroPadded(t *testing.T) {
	// GIVEN: A date in March
	// WHEN: Deriving the month key
	// THEN: "2025-3", not "2025-03"

	d := parseDay(t, "2025-03-15")
	assert.Equal(t, "2025-3", MonthKey(d))
}

func TestDateKey_ISOFormat(t *testing.T) {
	d := parseDay(t, "2025-03-05")
	assert.Equal(t, "2025-03-05", DateKey(d))
}
