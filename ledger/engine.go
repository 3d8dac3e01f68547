/*
engine.go - Atomic operation dispatch and invariant checks

PURPOSE:
  The Engine executes balance-affecting operations with all-or-nothing
  semantics. Every operation is one RunAtomic cycle: read fresh account
  state, validate invariants against it, write the updated account(s)
  and append exactly one ledger entry.

CRITICAL INVARIANTS:
  1. Balance never goes negative as a result of an operation
  2. Limit counters never exceed the tier cap after a commit
  3. Exactly one entry per operation (one entry covers both transfer
     sides, recording both post-balances)
  4. A failed operation leaves balance and counters exactly as they were

STATELESSNESS:
  The Engine holds no mutable state. A balance is never cached across
  two operations; it is re-read inside the atomic boundary every time,
  and re-validated on every optimistic retry.

EXAMPLE:
  eng := ledger.NewEngine(store, ledger.DefaultConfig())
  receipt, err := eng.Apply(ctx, ledger.Withdraw{
      Account: "acct-1",
      Amount:  decimal.NewFromInt(1000),
      Note:    "rent",
  })

SEE ALSO:
  - op.go: The closed operation set
  - limits.go: Window rollover and cap checks
  - store.go: RunAtomic contract
*/
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Store  Store
	Clock  Clock
	Config Config
}

// NewEngine creates an engine over the given store with a system clock.
func NewEngine(store Store, cfg Config) *Engine {
	return &Engine{Store: store, Clock: SystemClock{}, Config: cfg}
}

// Apply validates and executes one operation, returning the payer-side
// receipt on success.
func (e *Engine) Apply(ctx context.Context, op Operation) (*Receipt, error) {
	if err := op.validate(); err != nil {
		return nil, err
	}

	switch op := op.(type) {
	case Withdraw:
		return e.withdraw(ctx, op)
	case Deposit:
		return e.deposit(ctx, op)
	case Transfer:
		return e.transfer(ctx, op)
	case BillPayment:
		return e.billPayment(ctx, op)
	case FundGoal:
		return e.fundGoal(ctx, op)
	case ApplyInterest:
		return e.applyInterest(ctx, op)
	case ClaimGift:
		return e.claimGift(ctx, op)
	default:
		return nil, fmt.Errorf("unhandled operation kind %q", op.Kind())
	}
}

// =============================================================================
// WITHDRAW
// =============================================================================

func (e *Engine) withdraw(ctx context.Context, op Withdraw) (*Receipt, error) {
	var receipt *Receipt
	err := e.Store.RunAtomic(ctx, func(tx Tx) error {
		acct, err := tx.Account(op.Account)
		if err != nil {
			return err
		}

		now := e.Clock.Now()
		fee := op.Amount.Mul(e.Config.WithdrawalTaxRate).Round(2)
		debit := op.Amount.Add(fee)

		if acct.Balance.LessThan(debit) {
			return &InsufficientFundsError{
				AccountID: acct.ID,
				Available: acct.Balance,
				Requested: debit,
			}
		}

		tier := e.Config.TierParams(acct.Tier)
		daily := RollDaily(acct.LimitsDaily, DateKey(now))
		// The cap counts the requested amount, not the fee-inclusive debit.
		used, ok := CheckAndConsume(daily.WithdrawUsed, tier.WithdrawLimit, op.Amount)
		if !ok {
			return &LimitExceededError{
				AccountID: acct.ID,
				Scope:     LimitDailyWithdraw,
				Used:      daily.WithdrawUsed,
				Cap:       tier.WithdrawLimit,
				Requested: op.Amount,
			}
		}
		daily.WithdrawUsed = used

		acct.Balance = acct.Balance.Sub(debit)
		acct.LimitsDaily = daily

		entry := Entry{
			ID:           EntryID(uuid.NewString()),
			Type:         EntryWithdrawal,
			AccountID:    acct.ID,
			Username:     acct.Username,
			Amount:       op.Amount,
			Fee:          fee,
			Date:         DateKey(now),
			Time:         ClockTime(now),
			Note:         op.Note,
			Category:     op.Category,
			BalanceAfter: acct.Balance,
		}
		r := receiptFor(entry, string(EntryWithdrawal), acct.Balance, "")
		acct.LastTransaction = &r

		if err := tx.SaveAccount(acct); err != nil {
			return err
		}
		if err := tx.AppendEntry(entry); err != nil {
			return err
		}
		receipt = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// =============================================================================
// DEPOSIT
// =============================================================================

func (e *Engine) deposit(ctx context.Context, op Deposit) (*Receipt, error) {
	return e.credit(ctx, op.Account, op.Amount, EntryDeposit, op.Note, op.Category)
}

// credit is the shared credit path for deposits; interest and gifts have
// their own handlers because they carry extra state changes.
func (e *Engine) credit(ctx context.Context, id AccountID, amount decimal.Decimal, typ EntryType, note, category string) (*Receipt, error) {
	var receipt *Receipt
	err := e.Store.RunAtomic(ctx, func(tx Tx) error {
		acct, err := tx.Account(id)
		if err != nil {
			return err
		}

		now := e.Clock.Now()
		acct.Balance = acct.Balance.Add(amount)

		entry := Entry{
			ID:           EntryID(uuid.NewString()),
			Type:         typ,
			AccountID:    acct.ID,
			Username:     acct.Username,
			Amount:       amount,
			Fee:          decimal.Zero,
			Date:         DateKey(now),
			Time:         ClockTime(now),
			Note:         note,
			Category:     category,
			BalanceAfter: acct.Balance,
		}
		r := receiptFor(entry, string(typ), acct.Balance, "")
		acct.LastTransaction = &r

		if err := tx.SaveAccount(acct); err != nil {
			return err
		}
		if err := tx.AppendEntry(entry); err != nil {
			return err
		}
		receipt = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// =============================================================================
// TRANSFER
// =============================================================================

func (e *Engine) transfer(ctx context.Context, op Transfer) (*Receipt, error) {
	var receipt *Receipt
	err := e.Store.RunAtomic(ctx, func(tx Tx) error {
		payer, err := tx.Account(op.From)
		if err != nil {
			return err
		}
		payee, err := tx.AccountByUsername(op.ToUsername)
		if err != nil {
			return err
		}
		if payer.ID == payee.ID {
			return ErrSelfTransfer
		}

		now := e.Clock.Now()
		tier := e.Config.TierParams(payer.Tier)
		daily := RollDaily(payer.LimitsDaily, DateKey(now))
		monthly := RollMonthly(payer.LimitsMonthly, MonthKey(now))

		// Caps apply to the payer only; incoming volume is never
		// capped. User-initiated transfers consume the windows;
		// scheduled runs and request settlements check balance only.
		if op.Origin == OriginUser {
			used, ok := CheckAndConsume(daily.TransferUsed, tier.TransferLimit, op.Amount)
			if !ok {
				return &LimitExceededError{
					AccountID: payer.ID,
					Scope:     LimitDailyTransfer,
					Used:      daily.TransferUsed,
					Cap:       tier.TransferLimit,
					Requested: op.Amount,
				}
			}
			musedNext, ok := CheckAndConsume(monthly.TransferUsed, tier.MonthlyTransferLimit, op.Amount)
			if !ok {
				return &LimitExceededError{
					AccountID: payer.ID,
					Scope:     LimitMonthlyTransfer,
					Used:      monthly.TransferUsed,
					Cap:       tier.MonthlyTransferLimit,
					Requested: op.Amount,
				}
			}
			daily.TransferUsed = used
			monthly.TransferUsed = musedNext
		}

		if payer.Balance.LessThan(op.Amount) {
			return &InsufficientFundsError{
				AccountID: payer.ID,
				Available: payer.Balance,
				Requested: op.Amount,
			}
		}

		payer.Balance = payer.Balance.Sub(op.Amount)
		payer.LimitsDaily = daily
		payer.LimitsMonthly = monthly
		payee.Balance = payee.Balance.Add(op.Amount)

		entry := Entry{
			ID:                    EntryID(uuid.NewString()),
			Type:                  EntryTransfer,
			AccountID:             payer.ID,
			Username:              payer.Username,
			RecipientID:           payee.ID,
			Recipient:             payee.Username,
			Amount:                op.Amount,
			Fee:                   decimal.Zero,
			Date:                  DateKey(now),
			Time:                  ClockTime(now),
			Note:                  op.Note,
			Category:              op.Category,
			BalanceAfter:          payer.Balance,
			RecipientBalanceAfter: payee.Balance,
		}

		payerReceipt := receiptFor(entry, string(EntryTransfer), payer.Balance, payee.Username)
		payeeReceipt := receiptFor(entry, ReceiptTransferIn, payee.Balance, payer.Username)
		payer.LastTransaction = &payerReceipt
		payee.LastTransaction = &payeeReceipt

		if err := tx.SaveAccount(payer); err != nil {
			return err
		}
		if err := tx.SaveAccount(payee); err != nil {
			return err
		}
		if err := tx.AppendEntry(entry); err != nil {
			return err
		}
		receipt = &payerReceipt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// =============================================================================
// BILL PAYMENT
// =============================================================================

func (e *Engine) billPayment(ctx context.Context, op BillPayment) (*Receipt, error) {
	var receipt *Receipt
	err := e.Store.RunAtomic(ctx, func(tx Tx) error {
		acct, err := tx.Account(op.Account)
		if err != nil {
			return err
		}
		if acct.Balance.LessThan(op.Amount) {
			return &InsufficientFundsError{
				AccountID: acct.ID,
				Available: acct.Balance,
				Requested: op.Amount,
			}
		}

		now := e.Clock.Now()
		acct.Balance = acct.Balance.Sub(op.Amount)

		entry := Entry{
			ID:                  EntryID(uuid.NewString()),
			Type:                EntryBillPayment,
			AccountID:           acct.ID,
			Username:            acct.Username,
			Recipient:           op.BillerName,
			Amount:              op.Amount,
			Fee:                 decimal.Zero,
			Date:                DateKey(now),
			Time:                ClockTime(now),
			Note:                op.Note,
			Category:            op.BillerName,
			BalanceAfter:        acct.Balance,
			BillerID:            op.BillerID,
			BillerAccountNumber: op.AccountNumber,
		}
		r := receiptFor(entry, string(EntryBillPayment), acct.Balance, op.BillerName)
		acct.LastTransaction = &r

		if err := tx.SaveAccount(acct); err != nil {
			return err
		}
		if err := tx.AppendEntry(entry); err != nil {
			return err
		}
		receipt = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// =============================================================================
// GOAL FUNDING
// =============================================================================

func (e *Engine) fundGoal(ctx context.Context, op FundGoal) (*Receipt, error) {
	var receipt *Receipt
	err := e.Store.RunAtomic(ctx, func(tx Tx) error {
		acct, err := tx.Account(op.Account)
		if err != nil {
			return err
		}
		goal, err := tx.Goal(op.Account, op.GoalID)
		if err != nil {
			return err
		}
		if acct.Balance.LessThan(op.Amount) {
			return &InsufficientFundsError{
				AccountID: acct.ID,
				Available: acct.Balance,
				Requested: op.Amount,
			}
		}

		now := e.Clock.Now()
		acct.Balance = acct.Balance.Sub(op.Amount)
		goal.Saved = goal.Saved.Add(op.Amount)

		entry := Entry{
			ID:           EntryID(uuid.NewString()),
			Type:         EntryGoalFund,
			AccountID:    acct.ID,
			Username:     acct.Username,
			Amount:       op.Amount,
			Fee:          decimal.Zero,
			Date:         DateKey(now),
			Time:         ClockTime(now),
			Note:         goal.Name,
			Category:     "Goal",
			BalanceAfter: acct.Balance,
			GoalID:       goal.ID,
		}
		r := receiptFor(entry, string(EntryGoalFund), acct.Balance, "")
		acct.LastTransaction = &r

		if err := tx.SaveAccount(acct); err != nil {
			return err
		}
		if err := tx.SaveGoal(goal); err != nil {
			return err
		}
		if err := tx.AppendEntry(entry); err != nil {
			return err
		}
		receipt = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// =============================================================================
// INTEREST
// =============================================================================

func (e *Engine) applyInterest(ctx context.Context, op ApplyInterest) (*Receipt, error) {
	var receipt *Receipt
	err := e.Store.RunAtomic(ctx, func(tx Tx) error {
		acct, err := tx.Account(op.Account)
		if err != nil {
			return err
		}

		now := e.Clock.Now()
		tier := e.Config.TierParams(acct.Tier)
		interest := acct.Balance.Mul(tier.InterestRate).Round(2)
		acct.Balance = acct.Balance.Add(interest)

		entry := Entry{
			ID:           EntryID(uuid.NewString()),
			Type:         EntryInterest,
			AccountID:    acct.ID,
			Username:     acct.Username,
			Amount:       interest,
			Fee:          decimal.Zero,
			Date:         DateKey(now),
			Time:         ClockTime(now),
			Category:     "Interest",
			BalanceAfter: acct.Balance,
		}
		r := receiptFor(entry, string(EntryInterest), acct.Balance, "")
		acct.LastTransaction = &r

		if err := tx.SaveAccount(acct); err != nil {
			return err
		}
		if err := tx.AppendEntry(entry); err != nil {
			return err
		}
		receipt = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// =============================================================================
// BIRTHDAY GIFT
// =============================================================================

func (e *Engine) claimGift(ctx context.Context, op ClaimGift) (*Receipt, error) {
	var receipt *Receipt
	err := e.Store.RunAtomic(ctx, func(tx Tx) error {
		acct, err := tx.Account(op.Account)
		if err != nil {
			return err
		}
		// The claimed-years set is the idempotency key; re-checked on
		// every retry so two racing claims cannot both commit.
		if acct.HasClaimedGift(op.YearKey) {
			return ErrAlreadyClaimed
		}

		now := e.Clock.Now()
		acct.Balance = acct.Balance.Add(e.Config.GiftAmount)
		acct.GiftYearsClaimed = append(acct.GiftYearsClaimed, op.YearKey)

		entry := Entry{
			ID:           EntryID(uuid.NewString()),
			Type:         EntryGift,
			AccountID:    acct.ID,
			Username:     acct.Username,
			Amount:       e.Config.GiftAmount,
			Fee:          decimal.Zero,
			Date:         DateKey(now),
			Time:         ClockTime(now),
			Note:         "Birthday gift for " + op.YearKey,
			Category:     "Birthday",
			BalanceAfter: acct.Balance,
		}
		r := receiptFor(entry, string(EntryGift), acct.Balance, "")
		acct.LastTransaction = &r

		if err := tx.SaveAccount(acct); err != nil {
			return err
		}
		if err := tx.AppendEntry(entry); err != nil {
			return err
		}
		receipt = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func receiptFor(e Entry, typ string, balanceAfter decimal.Decimal, counterparty string) Receipt {
	return Receipt{
		Type:         typ,
		Amount:       e.Amount,
		Fee:          e.Fee,
		Date:         e.Date,
		Time:         e.Time,
		Recipient:    counterparty,
		Note:         e.Note,
		Category:     e.Category,
		BalanceAfter: balanceAfter,
	}
}
