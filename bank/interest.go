package bank

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/meridian/bank-ledger/ledger"
)

// =============================================================================
// INTEREST RUNNER - Admin-triggered interest batch
// =============================================================================

type InterestRunner struct {
	Engine *ledger.Engine
	Store  ledger.Store

	// SkipUsername is excluded from the batch (the admin account).
	SkipUsername string
}

// InterestSummary reports one batch run.
type InterestSummary struct {
	Credited int
	Total    decimal.Decimal
	Failures map[ledger.AccountID]error
}

// ApplyAll credits interest on every account per its tier rate. Failures
// are collected per account; one bad account never aborts the batch.
func (r *InterestRunner) ApplyAll(ctx context.Context) (InterestSummary, error) {
	accounts, err := r.Store.ListAccounts(ctx)
	if err != nil {
		return InterestSummary{}, err
	}

	summary := InterestSummary{Failures: make(map[ledger.AccountID]error)}
	for _, a := range accounts {
		if r.SkipUsername != "" && a.Username == r.SkipUsername {
			continue
		}
		receipt, err := r.Engine.Apply(ctx, ledger.ApplyInterest{Account: a.ID})
		if err != nil {
			summary.Failures[a.ID] = err
			continue
		}
		summary.Credited++
		summary.Total = summary.Total.Add(receipt.Amount)
	}
	return summary, nil
}
