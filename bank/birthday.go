package bank

import (
	"context"
	"strconv"

	"github.com/meridian/bank-ledger/ledger"
)

// =============================================================================
// GIFT SERVICE - Birthday gift eligibility + claim
// =============================================================================

type GiftService struct {
	Engine *ledger.Engine
	Store  ledger.Store
	Clock  ledger.Clock
}

func NewGiftService(engine *ledger.Engine, store ledger.Store) *GiftService {
	return &GiftService{Engine: engine, Store: store, Clock: ledger.SystemClock{}}
}

// Eligible reports whether the account can claim the gift right now:
// today matches the stored birthday's month and day, and the current
// year is not in the claimed set.
func (g *GiftService) Eligible(a *ledger.Account) bool {
	if a.Birthday == "" || len(a.Birthday) < 10 {
		return false
	}
	now := g.Clock.Now()
	if a.Birthday[5:10] != now.Format("01-02") {
		return false
	}
	return !a.HasClaimedGift(strconv.Itoa(now.Year()))
}

// Claim credits the gift if eligible. The per-year idempotency check is
// re-run inside the engine's atomic cycle; the eligibility check here
// only covers the calendar-day condition.
func (g *GiftService) Claim(ctx context.Context, id ledger.AccountID) (*ledger.Receipt, error) {
	a, err := g.Store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	now := g.Clock.Now()
	if a.Birthday == "" || len(a.Birthday) < 10 || a.Birthday[5:10] != now.Format("01-02") {
		return nil, ErrNotBirthday
	}
	return g.Engine.Apply(ctx, ledger.ClaimGift{
		Account: id,
		YearKey: strconv.Itoa(now.Year()),
	})
}
