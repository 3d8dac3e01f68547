/*
seed.go - Demo data loader

PURPOSE:
  Populates the store with a small realistic dataset for demos and
  manual testing: a few customers across tiers, opening balances, a
  savings goal, a scheduled transfer, and a pending money request.

USAGE VIA API:

	POST /api/admin/seed

NOTE:
  Seeding only adds data; it never clears existing accounts. Only use
  in development/demo environments.
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/meridian/bank-ledger/bank"
	"github.com/meridian/bank-ledger/ledger"
)

type seedUser struct {
	username  string
	first     string
	last      string
	tier      ledger.Tier
	birthday  string
	opening   int64
}

var demoUsers = []seedUser{
	{"olivia", "Olivia", "Hart", ledger.TierPremium, "1990-04-12", 25000},
	{"marcus", "Marcus", "Reed", ledger.TierChecking, "1985-09-30", 8200},
	{"priya", "Priya", "Nair", ledger.TierSavings, "1998-01-22", 1500},
}

// SeedDemo loads the demo dataset.
// POST /api/admin/seed
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	created, err := h.SeedDataset(ctx)
	if err != nil {
		h.fail(w, "seed failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"accounts": created})
}

// SeedDataset creates the demo accounts, balances, goals, schedules, and
// pending requests. Safe to call once on a fresh database.
func (h *Handler) SeedDataset(ctx context.Context) ([]string, error) {
	var created []string
	byName := make(map[string]*ledger.Account)

	for _, u := range demoUsers {
		a, err := h.Accounts.Signup(ctx, bank.SignupParams{
			Username:  u.username,
			FirstName: u.first,
			LastName:  u.last,
			PIN:       "1234",
			Tier:      u.tier,
			Birthday:  u.birthday,
		})
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.username, err)
		}
		if _, err := h.Money.Deposit(ctx, a.ID, decimal.NewFromInt(u.opening), "Opening balance", "Seed"); err != nil {
			return nil, fmt.Errorf("seed deposit for %s: %w", u.username, err)
		}
		byName[u.username] = a
		created = append(created, u.username)
	}

	// A goal, a scheduled transfer, and a pending request to click around.
	if _, err := h.Goals.Create(ctx, byName["priya"].ID, "Emergency fund", decimal.NewFromInt(5000), ""); err != nil {
		return nil, err
	}
	if _, err := h.Schedules.Create(ctx, bank.ScheduleParams{
		From:       byName["olivia"].ID,
		ToUsername: "priya",
		Amount:     decimal.NewFromInt(200),
		Frequency:  ledger.FreqMonthly,
		StartDate:  ledger.DateKey(h.Clock.Now()),
		Note:       "Allowance",
	}); err != nil {
		return nil, err
	}
	if _, err := h.Requests.Send(ctx, byName["marcus"].ID, "olivia", decimal.NewFromInt(75), "Dinner split"); err != nil {
		return nil, err
	}

	return created, nil
}
