/*
engine_test.go - Unit tests for atomic operation dispatch

CORE DESIGN:
- Every operation is one RunAtomic cycle: read, validate, write, one entry
- A failed operation leaves balance and counters exactly as they were
- Conflict retries re-read and re-validate from fresh state

Tests run against the in-memory store, which honors the full RunAtomic
contract including simulated optimistic conflicts.
*/
package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian/bank-ledger/ledger"
	memstore "github.com/meridian/bank-ledger/ledger/store"
)

// =============================================================================
// FIXTURES
// =============================================================================

var testDay = time.Date(2025, time.June, 10, 14, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*ledger.Engine, *memstore.Memory) {
	t.Helper()
	m := memstore.NewMemory()
	m.Clock = ledger.FixedClock{T: testDay}
	eng := ledger.NewEngine(m, ledger.DefaultConfig())
	eng.Clock = ledger.FixedClock{T: testDay}
	return eng, m
}

func seedAccount(t *testing.T, m *memstore.Memory, id, username string, tier ledger.Tier, balance int64) *ledger.Account {
	t.Helper()
	a := &ledger.Account{
		ID:       ledger.AccountID(id),
		Username: username,
		Tier:     tier,
		Balance:  decimal.NewFromInt(balance),
	}
	require.NoError(t, m.CreateAccount(context.Background(), a))
	return a
}

func mustBalance(t *testing.T, m *memstore.Memory, id string) decimal.Decimal {
	t.Helper()
	a, err := m.GetAccount(context.Background(), ledger.AccountID(id))
	require.NoError(t, err)
	return a.Balance
}

// =============================================================================
// WITHDRAW TESTS
// =============================================================================

func TestWithdraw_DebitsAmountPlusFee(t *testing.T) {
	// GIVEN: Balance 5000, withdrawal fee rate 2%
	// WHEN: Withdrawing 1000
	// THEN: Fee 20.00, total debit 1020.00, balance 3980.00

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierChecking, 5000)

	r, err := eng.Apply(context.Background(), ledger.Withdraw{
		Account: "a1",
		Amount:  decimal.NewFromInt(1000),
		Note:    "rent",
	})
	require.NoError(t, err)

	assert.Equal(t, "20.00", r.Fee.StringFixed(2))
	assert.Equal(t, "1000.00", r.Amount.StringFixed(2))
	assert.Equal(t, "3980.00", mustBalance(t, m, "a1").StringFixed(2))
}

func TestWithdraw_FeeRoundsToCents(t *testing.T) {
	// GIVEN: An amount whose 2% fee needs rounding
	// WHEN: Withdrawing 33.33 (fee 0.6666 rounds to 0.67)
	// THEN: Debit is 34.00

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierChecking, 100)

	_, err := eng.Apply(context.Background(), ledger.Withdraw{
		Account: "a1",
		Amount:  decimal.NewFromFloat(33.33),
	})
	require.NoError(t, err)

	assert.Equal(t, "66.00", mustBalance(t, m, "a1").StringFixed(2))
}

func TestWithdraw_InsufficientFunds_StateUntouched(t *testing.T) {
	// GIVEN: Balance 1000
	// WHEN: Withdrawing 1000 (debit 1020 with fee exceeds balance)
	// THEN: Rejected; balance and daily counter unchanged, no entry

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierChecking, 1000)

	_, err := eng.Apply(context.Background(), ledger.Withdraw{
		Account: "a1",
		Amount:  decimal.NewFromInt(1000),
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	a, err := m.GetAccount(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "1000.00", a.Balance.StringFixed(2))
	assert.True(t, a.LimitsDaily.WithdrawUsed.IsZero())

	entries, err := m.EntriesByAccount(context.Background(), "a1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWithdraw_DailyCap_CountsAmountNotDebit(t *testing.T) {
	// GIVEN: Savings tier with a 10000 daily withdraw cap and ample balance
	// WHEN: Withdrawing exactly 10000
	// THEN: Allowed; the cap counts the requested amount, not amount+fee

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierSavings, 50000)

	_, err := eng.Apply(context.Background(), ledger.Withdraw{
		Account: "a1",
		Amount:  decimal.NewFromInt(10000),
	})
	require.NoError(t, err)

	// A second withdrawal of any size now breaks the cap.
	_, err = eng.Apply(context.Background(), ledger.Withdraw{
		Account: "a1",
		Amount:  decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, ledger.ErrDailyLimitExceeded)
}

func TestWithdraw_DailyCap_ResetsNextDay(t *testing.T) {
	// GIVEN: The daily withdraw cap fully consumed today
	// WHEN: The clock moves to the next day
	// THEN: A fresh window; the withdrawal succeeds

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierSavings, 50000)

	_, err := eng.Apply(context.Background(), ledger.Withdraw{
		Account: "a1",
		Amount:  decimal.NewFromInt(10000),
	})
	require.NoError(t, err)

	eng.Clock = ledger.FixedClock{T: testDay.AddDate(0, 0, 1)}

	_, err = eng.Apply(context.Background(), ledger.Withdraw{
		Account: "a1",
		Amount:  decimal.NewFromInt(100),
	})
	assert.NoError(t, err)
}

func TestWithdraw_NonPositiveAmount_Rejected(t *testing.T) {
	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierChecking, 1000)

	_, err := eng.Apply(context.Background(), ledger.Withdraw{
		Account: "a1",
		Amount:  decimal.NewFromInt(-5),
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = eng.Apply(context.Background(), ledger.Withdraw{
		Account: "a1",
		Amount:  decimal.Zero,
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestApply_SubCentAmount_Rejected(t *testing.T) {
	// GIVEN: Amounts carrying more than two decimal places
	// WHEN: Withdrawing, depositing, or transferring them
	// THEN: ErrInvalidAmount; trailing zeros beyond cents are still fine

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierChecking, 1000)
	seedAccount(t, m, "a2", "bob", ledger.TierChecking, 0)

	subCent := decimal.RequireFromString("10.999")

	_, err := eng.Apply(context.Background(), ledger.Withdraw{Account: "a1", Amount: subCent})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = eng.Apply(context.Background(), ledger.Deposit{Account: "a1", Amount: decimal.RequireFromString("0.005")})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = eng.Apply(context.Background(), ledger.Transfer{From: "a1", ToUsername: "bob", Amount: subCent})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	assert.Equal(t, "1000.00", mustBalance(t, m, "a1").StringFixed(2))

	// "10.990" equals 10.99 and passes.
	_, err = eng.Apply(context.Background(), ledger.Deposit{Account: "a1", Amount: decimal.RequireFromString("10.990")})
	require.NoError(t, err)
	assert.Equal(t, "1010.99", mustBalance(t, m, "a1").StringFixed(2))
}

// =============================================================================
// DEPOSIT TESTS
// =============================================================================

func TestDeposit_CreditsBalance_NoLimit(t *testing.T) {
	// GIVEN: Balance 100
	// WHEN: Depositing 1000000 (far above any cap)
	// THEN: Credited in full; deposits are never capped

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierSavings, 100)

	r, err := eng.Apply(context.Background(), ledger.Deposit{
		Account: "a1",
		Amount:  decimal.NewFromInt(1000000),
	})
	require.NoError(t, err)

	assert.Equal(t, string(ledger.EntryDeposit), r.Type)
	assert.Equal(t, "1000100.00", mustBalance(t, m, "a1").StringFixed(2))
}

func TestDeposit_StampsLastTransaction(t *testing.T) {
	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierSavings, 0)

	_, err := eng.Apply(context.Background(), ledger.Deposit{
		Account:  "a1",
		Amount:   decimal.NewFromInt(250),
		Category: "Salary",
	})
	require.NoError(t, err)

	a, err := m.GetAccount(context.Background(), "a1")
	require.NoError(t, err)
	require.NotNil(t, a.LastTransaction)
	assert.Equal(t, "Salary", a.LastTransaction.Category)
	assert.Equal(t, "2025-06-10", a.LastTransaction.Date)
}

// =============================================================================
// TRANSFER TESTS
// =============================================================================

func TestTransfer_ConservesMoney_SingleEntry(t *testing.T) {
	// GIVEN: Alice 5000, Bob 1000
	// WHEN: Alice transfers 800 to bob
	// THEN: 4200/1800, one entry carrying both post-balances

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierChecking, 5000)
	seedAccount(t, m, "b1", "bob", ledger.TierSavings, 1000)

	r, err := eng.Apply(context.Background(), ledger.Transfer{
		From:       "a1",
		ToUsername: "bob",
		Amount:     decimal.NewFromInt(800),
	})
	require.NoError(t, err)

	assert.Equal(t, "4200.00", mustBalance(t, m, "a1").StringFixed(2))
	assert.Equal(t, "1800.00", mustBalance(t, m, "b1").StringFixed(2))
	assert.Equal(t, "bob", r.Recipient)

	entries, err := m.EntriesByAccount(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, ledger.EntryTransfer, e.Type)
	assert.Equal(t, "4200.00", e.BalanceAfter.StringFixed(2))
	assert.Equal(t, "1800.00", e.RecipientBalanceAfter.StringFixed(2))

	// The payee sees the same single entry.
	bobEntries, err := m.EntriesByAccount(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, bobEntries, 1)
	assert.Equal(t, e.ID, bobEntries[0].ID)
}

func TestTransfer_PayeeReceiptIsTransferIn(t *testing.T) {
	// GIVEN: A completed transfer
	// WHEN: Reading both parties' last-transaction snapshots
	// THEN: Payer sees TRANSFER, payee sees TRANSFER-IN naming the payer

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierChecking, 5000)
	seedAccount(t, m, "b1", "bob", ledger.TierSavings, 1000)

	_, err := eng.Apply(context.Background(), ledger.Transfer{
		From:       "a1",
		ToUsername: "bob",
		Amount:     decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	alice, _ := m.GetAccount(context.Background(), "a1")
	bob, _ := m.GetAccount(context.Background(), "b1")

	require.NotNil(t, alice.LastTransaction)
	require.NotNil(t, bob.LastTransaction)
	assert.Equal(t, string(ledger.EntryTransfer), alice.LastTransaction.Type)
	assert.Equal(t, ledger.ReceiptTransferIn, bob.LastTransaction.Type)
	assert.Equal(t, "alice", bob.LastTransaction.Recipient)
}

func TestTransfer_ToSelf_Rejected(t *testing.T) {
	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierChecking, 5000)

	_, err := eng.Apply(context.Background(), ledger.Transfer{
		From:       "a1",
		ToUsername: "alice",
		Amount:     decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, ledger.ErrSelfTransfer)
	assert.Equal(t, "5000.00", mustBalance(t, m, "a1").StringFixed(2))
}

func TestTransfer_UnknownRecipient_Rejected(t *testing.T) {
	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierChecking, 5000)

	_, err := eng.Apply(context.Background(), ledger.Transfer{
		From:       "a1",
		ToUsername: "nobody",
		Amount:     decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, ledger.ErrRecipientNotFound)
}

func TestTransfer_PayerCounterOnly(t *testing.T) {
	// GIVEN: Alice transfers 2000 to bob
	// WHEN: Reading both daily windows
	// THEN: Only the payer's transfer counter moved

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierChecking, 5000)
	seedAccount(t, m, "b1", "bob", ledger.TierSavings, 1000)

	_, err := eng.Apply(context.Background(), ledger.Transfer{
		From:       "a1",
		ToUsername: "bob",
		Amount:     decimal.NewFromInt(2000),
	})
	require.NoError(t, err)

	alice, _ := m.GetAccount(context.Background(), "a1")
	bob, _ := m.GetAccount(context.Background(), "b1")
	assert.Equal(t, "2000.00", alice.LimitsDaily.TransferUsed.StringFixed(2))
	assert.True(t, bob.LimitsDaily.TransferUsed.IsZero())
	assert.Equal(t, "2000.00", alice.LimitsMonthly.TransferUsed.StringFixed(2))
}

func TestTransfer_DailyCap_Enforced(t *testing.T) {
	// GIVEN: Savings tier, 10000 daily transfer cap, 9000 already used
	// WHEN: Transferring 1001 more
	// THEN: Daily limit error; nothing moved

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierSavings, 50000)
	seedAccount(t, m, "b1", "bob", ledger.TierSavings, 0)

	_, err := eng.Apply(context.Background(), ledger.Transfer{
		From:       "a1",
		ToUsername: "bob",
		Amount:     decimal.NewFromInt(9000),
	})
	require.NoError(t, err)

	_, err = eng.Apply(context.Background(), ledger.Transfer{
		From:       "a1",
		ToUsername: "bob",
		Amount:     decimal.NewFromInt(1001),
	})
	require.ErrorIs(t, err, ledger.ErrDailyLimitExceeded)
	assert.Equal(t, "41000.00", mustBalance(t, m, "a1").StringFixed(2))
	assert.Equal(t, "9000.00", mustBalance(t, m, "b1").StringFixed(2))
}

func TestTransfer_MonthlyCap_SurvivesDailyRollover(t *testing.T) {
	// GIVEN: Savings tier, daily cap 10000, monthly cap 50000
	// WHEN: Transferring 10000 a day for five days, then once more
	// THEN: The sixth day hits the monthly cap even with a fresh daily window

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierSavings, 100000)
	seedAccount(t, m, "b1", "bob", ledger.TierSavings, 0)

	for day := 0; day < 5; day++ {
		eng.Clock = ledger.FixedClock{T: testDay.AddDate(0, 0, day)}
		_, err := eng.Apply(context.Background(), ledger.Transfer{
			From:       "a1",
			ToUsername: "bob",
			Amount:     decimal.NewFromInt(10000),
		})
		require.NoError(t, err, "day %d", day)
	}

	eng.Clock = ledger.FixedClock{T: testDay.AddDate(0, 0, 5)}
	_, err := eng.Apply(context.Background(), ledger.Transfer{
		From:       "a1",
		ToUsername: "bob",
		Amount:     decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, ledger.ErrMonthlyLimitExceeded)
}

func TestTransfer_ScheduledOrigin_SkipsLimits(t *testing.T) {
	// GIVEN: An amount over the savings daily transfer cap
	// WHEN: Applied with the scheduled origin
	// THEN: Only the balance is checked; the transfer succeeds and no
	//       counter is consumed

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierSavings, 50000)
	seedAccount(t, m, "b1", "bob", ledger.TierSavings, 0)

	_, err := eng.Apply(context.Background(), ledger.Transfer{
		From:       "a1",
		ToUsername: "bob",
		Amount:     decimal.NewFromInt(15000),
		Origin:     ledger.OriginScheduled,
	})
	require.NoError(t, err)

	alice, _ := m.GetAccount(context.Background(), "a1")
	assert.True(t, alice.LimitsDaily.TransferUsed.IsZero())
	assert.Equal(t, "35000.00", alice.Balance.StringFixed(2))
}

func TestTransfer_SettlementOrigin_StillChecksBalance(t *testing.T) {
	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierSavings, 100)
	seedAccount(t, m, "b1", "bob", ledger.TierSavings, 0)

	_, err := eng.Apply(context.Background(), ledger.Transfer{
		From:       "a1",
		ToUsername: "bob",
		Amount:     decimal.NewFromInt(500),
		Origin:     ledger.OriginSettlement,
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}

// =============================================================================
// BILL PAYMENT TESTS
// =============================================================================

func TestBillPayment_DebitsAndRecordsBiller(t *testing.T) {
	// GIVEN: Balance 2000
	// WHEN: Paying 150 to the electric company
	// THEN: Balance 1850 and the entry carries the biller details

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierChecking, 2000)

	r, err := eng.Apply(context.Background(), ledger.BillPayment{
		Account:       "a1",
		BillerID:      "electric",
		BillerName:    "City Electric",
		AccountNumber: "1234567890",
		Amount:        decimal.NewFromInt(150),
	})
	require.NoError(t, err)

	assert.Equal(t, "1850.00", mustBalance(t, m, "a1").StringFixed(2))
	assert.Equal(t, "City Electric", r.Recipient)

	entries, _ := m.EntriesByAccount(context.Background(), "a1")
	require.Len(t, entries, 1)
	assert.Equal(t, "electric", entries[0].BillerID)
	assert.Equal(t, "1234567890", entries[0].BillerAccountNumber)
}

func TestBillPayment_InsufficientFunds(t *testing.T) {
	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierChecking, 100)

	_, err := eng.Apply(context.Background(), ledger.BillPayment{
		Account:    "a1",
		BillerID:   "water",
		BillerName: "Water Co",
		Amount:     decimal.NewFromInt(150),
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, "100.00", mustBalance(t, m, "a1").StringFixed(2))
}

// =============================================================================
// GOAL FUNDING TESTS
// =============================================================================

func TestFundGoal_MovesBalanceIntoGoal(t *testing.T) {
	// GIVEN: Balance 1000 and a goal saved 50
	// WHEN: Funding the goal with 200
	// THEN: Balance 800, goal saved 250, entry typed GOAL_FUND

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierSavings, 1000)
	require.NoError(t, m.CreateGoal(context.Background(), &ledger.Goal{
		ID:        "g1",
		AccountID: "a1",
		Name:      "Vacation",
		Target:    decimal.NewFromInt(3000),
		Saved:     decimal.NewFromInt(50),
	}))

	_, err := eng.Apply(context.Background(), ledger.FundGoal{
		Account: "a1",
		GoalID:  "g1",
		Amount:  decimal.NewFromInt(200),
	})
	require.NoError(t, err)

	assert.Equal(t, "800.00", mustBalance(t, m, "a1").StringFixed(2))

	goals, err := m.ListGoals(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "250.00", goals[0].Saved.StringFixed(2))
}

func TestFundGoal_MissingGoal(t *testing.T) {
	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierSavings, 1000)

	_, err := eng.Apply(context.Background(), ledger.FundGoal{
		Account: "a1",
		GoalID:  "nope",
		Amount:  decimal.NewFromInt(200),
	})
	assert.ErrorIs(t, err, ledger.ErrGoalNotFound)
}

// =============================================================================
// INTEREST TESTS
// =============================================================================

func TestApplyInterest_UsesTierRate(t *testing.T) {
	// GIVEN: Premium tier (2.5%) with balance 10000
	// WHEN: Applying interest
	// THEN: Credit 250.00, balance 10250.00

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierPremium, 10000)

	r, err := eng.Apply(context.Background(), ledger.ApplyInterest{Account: "a1"})
	require.NoError(t, err)

	assert.Equal(t, "250.00", r.Amount.StringFixed(2))
	assert.Equal(t, "10250.00", mustBalance(t, m, "a1").StringFixed(2))
}

func TestApplyInterest_RoundsToCents(t *testing.T) {
	// GIVEN: Savings tier (1.5%) with balance 333.33
	// WHEN: Applying interest (4.99995 rounds to 5.00)
	// THEN: Credit 5.00

	eng, m := newTestEngine(t)
	a := &ledger.Account{
		ID:       "a1",
		Username: "alice",
		Tier:     ledger.TierSavings,
		Balance:  decimal.NewFromFloat(333.33),
	}
	require.NoError(t, m.CreateAccount(context.Background(), a))

	r, err := eng.Apply(context.Background(), ledger.ApplyInterest{Account: "a1"})
	require.NoError(t, err)
	assert.Equal(t, "5.00", r.Amount.StringFixed(2))
}

func TestApplyInterest_ZeroBalance_ZeroCredit(t *testing.T) {
	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierSavings, 0)

	r, err := eng.Apply(context.Background(), ledger.ApplyInterest{Account: "a1"})
	require.NoError(t, err)
	assert.True(t, r.Amount.IsZero())
}

// =============================================================================
// BIRTHDAY GIFT TESTS
// =============================================================================

func TestClaimGift_CreditsOncePerYear(t *testing.T) {
	// GIVEN: An account that has never claimed for 2025
	// WHEN: Claiming twice with the same year key
	// THEN: First credits 500, second fails, balance moved exactly once

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierSavings, 100)

	r, err := eng.Apply(context.Background(), ledger.ClaimGift{Account: "a1", YearKey: "2025"})
	require.NoError(t, err)
	assert.Equal(t, "500.00", r.Amount.StringFixed(2))
	assert.Equal(t, "600.00", mustBalance(t, m, "a1").StringFixed(2))

	_, err = eng.Apply(context.Background(), ledger.ClaimGift{Account: "a1", YearKey: "2025"})
	assert.ErrorIs(t, err, ledger.ErrAlreadyClaimed)
	assert.Equal(t, "600.00", mustBalance(t, m, "a1").StringFixed(2))
}

func TestClaimGift_NewYearKey_Allowed(t *testing.T) {
	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierSavings, 0)

	_, err := eng.Apply(context.Background(), ledger.ClaimGift{Account: "a1", YearKey: "2024"})
	require.NoError(t, err)
	_, err = eng.Apply(context.Background(), ledger.ClaimGift{Account: "a1", YearKey: "2025"})
	require.NoError(t, err)

	assert.Equal(t, "1000.00", mustBalance(t, m, "a1").StringFixed(2))
}

func TestClaimGift_EmptyYearKey_Rejected(t *testing.T) {
	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierSavings, 0)

	_, err := eng.Apply(context.Background(), ledger.ClaimGift{Account: "a1"})
	assert.ErrorIs(t, err, ledger.ErrInvalidYearKey)
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

func TestApply_ConflictRetry_Succeeds(t *testing.T) {
	// GIVEN: The first two commit attempts lose to a simulated concurrent
	//        writer
	// WHEN: Withdrawing
	// THEN: The third attempt commits; exactly one entry exists

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierChecking, 5000)
	m.ConflictHook = func(attempt int) bool { return attempt < 2 }

	_, err := eng.Apply(context.Background(), ledger.Withdraw{
		Account: "a1",
		Amount:  decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	assert.Equal(t, "4898.00", mustBalance(t, m, "a1").StringFixed(2))
	entries, _ := m.EntriesByAccount(context.Background(), "a1")
	assert.Len(t, entries, 1)
}

func TestApply_ConflictRetriesExhausted(t *testing.T) {
	// GIVEN: Every commit attempt conflicts
	// WHEN: Withdrawing
	// THEN: ErrConflictRetryExhausted and no state change at all

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierChecking, 5000)
	m.ConflictHook = func(int) bool { return true }

	_, err := eng.Apply(context.Background(), ledger.Withdraw{
		Account: "a1",
		Amount:  decimal.NewFromInt(100),
	})
	require.ErrorIs(t, err, ledger.ErrConflictRetryExhausted)
	assert.True(t, ledger.IsRetryable(err))

	assert.Equal(t, "5000.00", mustBalance(t, m, "a1").StringFixed(2))
	entries, _ := m.EntriesByAccount(context.Background(), "a1")
	assert.Empty(t, entries)
}

func TestApply_RetryRevalidatesFreshState(t *testing.T) {
	// GIVEN: A conflict hook that drains the balance between attempts
	// WHEN: Withdrawing an amount the drained balance cannot cover
	// THEN: The retry re-reads and fails on funds, not on a stale read

	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierChecking, 5000)

	drained := false
	m.ConflictHook = func(attempt int) bool {
		if attempt == 0 && !drained {
			drained = true
			a, err := m.GetAccount(context.Background(), "a1")
			require.NoError(t, err)
			a.Balance = decimal.NewFromInt(10)
			require.NoError(t, m.DeleteAccount(context.Background(), "a1"))
			require.NoError(t, m.CreateAccount(context.Background(), a))
			return true
		}
		return false
	}

	_, err := eng.Apply(context.Background(), ledger.Withdraw{
		Account: "a1",
		Amount:  decimal.NewFromInt(1000),
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, "10.00", mustBalance(t, m, "a1").StringFixed(2))
}

func TestApply_ConcurrentDeposits_NoLostUpdates(t *testing.T) {
	// GIVEN: Many goroutines depositing 1 into the same account
	// WHEN: All run through Apply at once
	// THEN: Every deposit lands in the balance and the entry count agrees

	eng, m := newTestEngine(t)
	m.MaxRetries = 1000
	seedAccount(t, m, "a1", "alice", ledger.TierChecking, 0)

	const workers = 100
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Apply(context.Background(), ledger.Deposit{
				Account: "a1",
				Amount:  decimal.NewFromInt(1),
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, "100.00", mustBalance(t, m, "a1").StringFixed(2))
	entries, err := m.EntriesByAccount(context.Background(), "a1")
	require.NoError(t, err)
	assert.Len(t, entries, workers)
}

func TestApply_CancelledContext_Aborts(t *testing.T) {
	eng, m := newTestEngine(t)
	seedAccount(t, m, "a1", "alice", ledger.TierChecking, 5000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Apply(ctx, ledger.Withdraw{
		Account: "a1",
		Amount:  decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, context.Canceled)
}
