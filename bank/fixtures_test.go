package bank

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian/bank-ledger/ledger"
	memstore "github.com/meridian/bank-ledger/ledger/store"
)

// Shared harness for the service tests: an in-memory store, a frozen
// clock, and an engine with the stock configuration.

var fixtureDay = time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memstore.Memory
	engine *ledger.Engine
	clock  ledger.FixedClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := memstore.NewMemory()
	clock := ledger.FixedClock{T: fixtureDay}
	m.Clock = clock
	eng := ledger.NewEngine(m, ledger.DefaultConfig())
	eng.Clock = clock
	return &fixture{store: m, engine: eng, clock: clock}
}

func (f *fixture) addAccount(t *testing.T, id, username string, tier ledger.Tier, balance int64) *ledger.Account {
	t.Helper()
	a := &ledger.Account{
		ID:       ledger.AccountID(id),
		Username: username,
		Tier:     tier,
		Balance:  decimal.NewFromInt(balance),
		Birthday: "1990-06-10",
	}
	require.NoError(t, f.store.CreateAccount(context.Background(), a))
	return a
}

func (f *fixture) balance(t *testing.T, id string) string {
	t.Helper()
	a, err := f.store.GetAccount(context.Background(), ledger.AccountID(id))
	require.NoError(t, err)
	return a.Balance.StringFixed(2)
}
