package bank

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian/bank-ledger/ledger"
)

// =============================================================================
// GOAL SERVICE - Savings goal CRUD (funding goes through the engine)
// =============================================================================

type GoalService struct {
	Store ledger.Store
	Goals ledger.GoalStore
	Clock ledger.Clock
}

func NewGoalService(store ledger.Store, goals ledger.GoalStore) *GoalService {
	return &GoalService{Store: store, Goals: goals, Clock: ledger.SystemClock{}}
}

func (gs *GoalService) Create(ctx context.Context, account ledger.AccountID, name string, target decimal.Decimal, targetDate string) (*ledger.Goal, error) {
	if name == "" || !target.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}
	if targetDate != "" {
		if _, err := time.Parse("2006-01-02", targetDate); err != nil {
			return nil, ErrInvalidStartDate
		}
	}
	if _, err := gs.Store.GetAccount(ctx, account); err != nil {
		return nil, err
	}

	g := &ledger.Goal{
		ID:         uuid.NewString(),
		AccountID:  account,
		Name:       name,
		Target:     target.Round(2),
		Saved:      decimal.Zero,
		TargetDate: targetDate,
		Created:    ledger.DateKey(gs.Clock.Now()),
	}
	if err := gs.Goals.CreateGoal(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (gs *GoalService) List(ctx context.Context, account ledger.AccountID) ([]*ledger.Goal, error) {
	return gs.Goals.ListGoals(ctx, account)
}
