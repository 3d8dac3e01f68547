/*
otp.go - One-time confirmation for high-value operations

PURPOSE:
  Amounts above the configured threshold are not executed immediately.
  The gate parks the operation as a pending challenge, hands back a
  6-digit code, and runs the operation only when the code comes back.
  Codes are single-use and expire.

  In this demo system the code is returned to the caller directly (the
  original shows it on screen); a real deployment would deliver it out
  of band. The gate's contract is the same either way.
*/
package bank

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian/bank-ledger/ledger"
)

// =============================================================================
// OTP GATE
// =============================================================================

// Action is a deferred operation awaiting confirmation.
type Action func(ctx context.Context) (*ledger.Receipt, error)

type challenge struct {
	code    string
	action  Action
	issued  time.Time
	account ledger.AccountID
}

type OTPGate struct {
	// Threshold above which confirmation is required (exclusive).
	Threshold decimal.Decimal

	// TTL bounds how long a code stays valid. Zero means the default.
	TTL time.Duration

	Clock ledger.Clock

	mu      sync.Mutex
	pending map[string]*challenge
}

const defaultOTPTTL = 5 * time.Minute

func NewOTPGate(threshold decimal.Decimal) *OTPGate {
	return &OTPGate{
		Threshold: threshold,
		Clock:     ledger.SystemClock{},
		pending:   make(map[string]*challenge),
	}
}

// Required reports whether the amount needs confirmation.
func (g *OTPGate) Required(amount decimal.Decimal) bool {
	return amount.GreaterThan(g.Threshold)
}

// Issue parks the action behind a fresh challenge and returns the
// challenge id plus the code the caller must echo back.
func (g *OTPGate) Issue(account ledger.AccountID, action Action) (id, code string, err error) {
	code, err = generateCode()
	if err != nil {
		return "", "", err
	}
	id = uuid.NewString()

	g.mu.Lock()
	g.pending[id] = &challenge{code: code, action: action, issued: g.Clock.Now(), account: account}
	g.mu.Unlock()
	return id, code, nil
}

// Confirm validates the code and, on match, runs the parked action. The
// challenge is consumed on success and on expiry; a wrong code leaves it
// pending so the user can retry.
func (g *OTPGate) Confirm(ctx context.Context, id, code string) (*ledger.Receipt, error) {
	ttl := g.TTL
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}

	g.mu.Lock()
	ch, ok := g.pending[id]
	if !ok {
		g.mu.Unlock()
		return nil, ErrChallengeNotFound
	}
	if g.Clock.Now().Sub(ch.issued) > ttl {
		delete(g.pending, id)
		g.mu.Unlock()
		return nil, ErrCodeExpired
	}
	if ch.code != code {
		g.mu.Unlock()
		return nil, ErrCodeMismatch
	}
	delete(g.pending, id)
	g.mu.Unlock()

	return ch.action(ctx)
}

// Cancel discards a pending challenge.
func (g *OTPGate) Cancel(id string) {
	g.mu.Lock()
	delete(g.pending, id)
	g.mu.Unlock()
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
