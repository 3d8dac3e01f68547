/*
scheduled.go - Recurring transfers and the due-item pass

PURPOSE:
  A scheduled transfer fires when its NextRun date is due. The pass runs
  each due item through the engine's transfer, then advances NextRun one
  frequency step from its previous value. Missed periods therefore catch
  up one step per pass rather than jumping to today, and a failed run
  (say, insufficient funds) leaves NextRun untouched so the item retries
  on the next pass.

  The pass is triggered per account; an optional background sweeper
  (api/sweeper.go) runs it across all accounts.
*/
package bank

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian/bank-ledger/ledger"
)

// =============================================================================
// SCHEDULE SERVICE
// =============================================================================

type ScheduleService struct {
	Engine    *ledger.Engine
	Store     ledger.Store
	Schedules ledger.ScheduleStore
	Clock     ledger.Clock
}

func NewScheduleService(engine *ledger.Engine, store ledger.Store, schedules ledger.ScheduleStore) *ScheduleService {
	return &ScheduleService{Engine: engine, Store: store, Schedules: schedules, Clock: ledger.SystemClock{}}
}

type ScheduleParams struct {
	From       ledger.AccountID
	ToUsername string
	Amount     decimal.Decimal
	Frequency  ledger.Frequency
	StartDate  string // YYYY-MM-DD, first run
	Note       string
}

// Create validates and stores a new scheduled transfer. The recipient
// must exist at creation time; it is re-resolved on every run.
func (ss *ScheduleService) Create(ctx context.Context, p ScheduleParams) (*ledger.ScheduledTransfer, error) {
	if !p.Amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}
	switch p.Frequency {
	case ledger.FreqDaily, ledger.FreqWeekly, ledger.FreqMonthly:
	default:
		return nil, ErrInvalidFrequency
	}
	if _, err := time.Parse("2006-01-02", p.StartDate); err != nil {
		return nil, ErrInvalidStartDate
	}
	from, err := ss.Store.GetAccount(ctx, p.From)
	if err != nil {
		return nil, err
	}
	if _, err := ss.Store.FindByUsername(ctx, p.ToUsername); err != nil {
		if ledger.IsNotFound(err) {
			return nil, ledger.ErrRecipientNotFound
		}
		return nil, err
	}
	if p.ToUsername == from.Username {
		return nil, ledger.ErrSelfTransfer
	}

	st := &ledger.ScheduledTransfer{
		ID:           uuid.NewString(),
		FromID:       from.ID,
		FromUsername: from.Username,
		ToUsername:   p.ToUsername,
		Amount:       p.Amount.Round(2),
		Frequency:    p.Frequency,
		NextRun:      p.StartDate,
		Note:         p.Note,
		CreatedAt:    ss.Clock.Now(),
	}
	if err := ss.Schedules.CreateScheduled(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Delete removes a scheduled transfer after an ownership check.
func (ss *ScheduleService) Delete(ctx context.Context, owner ledger.AccountID, id string) error {
	st, err := ss.Schedules.GetScheduled(ctx, id)
	if err != nil {
		return err
	}
	if st.FromID != owner {
		return ErrNotOwner
	}
	return ss.Schedules.DeleteScheduled(ctx, id)
}

func (ss *ScheduleService) List(ctx context.Context, owner ledger.AccountID) ([]*ledger.ScheduledTransfer, error) {
	return ss.Schedules.ListScheduledBy(ctx, owner)
}

// RunResult reports one item of a due pass.
type RunResult struct {
	ScheduleID string
	Receipt    *ledger.Receipt
	NextRun    string
	Err        error
}

// RunDueForAccount executes every due item (NextRun <= today) for one
// account. Failures are collected, never fatal to the batch, and leave
// the item's NextRun where it was.
func (ss *ScheduleService) RunDueForAccount(ctx context.Context, account ledger.AccountID, today string) ([]RunResult, error) {
	items, err := ss.Schedules.ListScheduledBy(ctx, account)
	if err != nil {
		return nil, err
	}

	var results []RunResult
	for _, st := range items {
		if st.NextRun > today {
			continue
		}

		note := st.Note
		if note == "" {
			note = "Scheduled"
		}
		receipt, err := ss.Engine.Apply(ctx, ledger.Transfer{
			From:       st.FromID,
			ToUsername: st.ToUsername,
			Amount:     st.Amount,
			Note:       note,
			Category:   "Scheduled",
			Origin:     ledger.OriginScheduled,
		})
		if err != nil {
			results = append(results, RunResult{ScheduleID: st.ID, Err: err})
			continue
		}

		next, err := st.NextAfter()
		if err == nil {
			err = ss.Schedules.AdvanceNextRun(ctx, st.ID, next)
		}
		results = append(results, RunResult{ScheduleID: st.ID, Receipt: receipt, NextRun: next, Err: err})
	}
	return results, nil
}
