/*
Package bank is the domain-service layer on top of the ledger engine.

PURPOSE:
  Everything a customer or administrator does that is not itself a
  balance mutation lives here: signup and PIN verification, biller
  validation, money requests, scheduled transfers, the birthday gift,
  the interest batch, and the high-value OTP gate. Services validate
  and orchestrate; every balance change still goes through
  ledger.Engine.Apply.

KEY COMPONENTS:
  AccountService:  Signup, PIN check, admin adjustments, audit trail
  MoneyService:    Operation submission (biller validation on bill pay)
  RequestService:  Money-request lifecycle with settlement transfer
  ScheduleService: Recurring transfers and the due-item pass
  InterestRunner:  Per-account interest batch
  GiftService:     Birthday-gift eligibility and claim
  OTPGate:         One-time confirmation for high-value operations

SEE ALSO:
  - ledger/engine.go: The operations these services submit
  - api/: HTTP handlers calling into these services
*/
package bank

import (
	"context"
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian/bank-ledger/ledger"
)

// =============================================================================
// ACCOUNT SERVICE - Signup, verification, admin operations
// =============================================================================

type AccountService struct {
	Store     ledger.Store
	Directory ledger.DirectoryStore
	Audit     ledger.AuditLog
	Clock     ledger.Clock
}

func NewAccountService(store ledger.Store, dir ledger.DirectoryStore, audit ledger.AuditLog) *AccountService {
	return &AccountService{Store: store, Directory: dir, Audit: audit, Clock: ledger.SystemClock{}}
}

type SignupParams struct {
	Username  string
	FirstName string
	LastName  string
	PIN       string
	Tier      ledger.Tier
	Birthday  string // YYYY-MM-DD, optional
}

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)
	pinRe      = regexp.MustCompile(`^\d{4,6}$`)
)

// Signup creates a new account with a zero balance and fresh limit
// windows. The username is unique and case-sensitive; the PIN is stored
// as a bcrypt hash.
func (s *AccountService) Signup(ctx context.Context, p SignupParams) (*ledger.Account, error) {
	if !usernameRe.MatchString(p.Username) {
		return nil, ErrInvalidUsername
	}
	if !pinRe.MatchString(p.PIN) {
		return nil, ErrInvalidPIN
	}
	if p.Birthday != "" {
		if _, err := time.Parse("2006-01-02", p.Birthday); err != nil {
			return nil, fmt.Errorf("birthday must be YYYY-MM-DD: %w", err)
		}
	}
	tier := p.Tier
	if tier == "" {
		tier = ledger.TierSavings
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.PIN), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash PIN: %w", err)
	}

	now := s.Clock.Now()
	a := &ledger.Account{
		ID:            ledger.AccountID(uuid.NewString()),
		Username:      p.Username,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Tier:          tier,
		Balance:       decimal.Zero,
		LimitsDaily:   ledger.DailyWindow{Date: ledger.DateKey(now)},
		LimitsMonthly: ledger.MonthlyWindow{Month: ledger.MonthKey(now)},
		Birthday:      p.Birthday,
		PINHash:       string(hash),
		CardNumber:    CardNumberFor(p.Username),
		CreatedAt:     now,
	}

	if err := s.Directory.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	s.audit(ctx, p.Username, "signup", map[string]string{"account": string(a.ID), "tier": string(tier)})
	return a, nil
}

// VerifyPIN checks a candidate PIN against the stored hash.
func (s *AccountService) VerifyPIN(ctx context.Context, username, pin string) (*ledger.Account, error) {
	a, err := s.Store.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PINHash), []byte(pin)); err != nil {
		return nil, ErrWrongPIN
	}
	return a, nil
}

// SetBalance is the admin balance override. The change is written through
// the atomic cycle and leaves an audit event; it does not produce a
// ledger entry because it is a correction, not a customer operation.
func (s *AccountService) SetBalance(ctx context.Context, actor string, id ledger.AccountID, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return ledger.ErrInvalidAmount
	}
	var before decimal.Decimal
	err := s.Store.RunAtomic(ctx, func(tx ledger.Tx) error {
		a, err := tx.Account(id)
		if err != nil {
			return err
		}
		before = a.Balance
		a.Balance = balance.Round(2)
		return tx.SaveAccount(a)
	})
	if err != nil {
		return err
	}
	s.audit(ctx, actor, "adjustment", map[string]string{
		"account": string(id),
		"before":  before.StringFixed(2),
		"after":   balance.StringFixed(2),
	})
	return nil
}

// Delete removes an account and its goals. Ledger entries are retained.
func (s *AccountService) Delete(ctx context.Context, actor string, id ledger.AccountID) error {
	if err := s.Directory.DeleteAccount(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actor, "delete_account", map[string]string{"account": string(id)})
	return nil
}

func (s *AccountService) List(ctx context.Context) ([]*ledger.Account, error) {
	return s.Store.ListAccounts(ctx)
}

func (s *AccountService) audit(ctx context.Context, actor, action string, details map[string]string) {
	if s.Audit == nil {
		return
	}
	// Audit failures never fail the underlying operation.
	_ = s.Audit.AppendAudit(ctx, ledger.AuditEvent{
		ID:        uuid.NewString(),
		Actor:     actor,
		Action:    action,
		Details:   details,
		CreatedAt: s.Clock.Now(),
	})
}

// CardNumberFor derives a stable 16-digit card number from the username.
// Purely cosmetic; it only has to be deterministic and well-formed.
func CardNumberFor(username string) string {
	sum := sha256.Sum256([]byte(username))
	var b strings.Builder
	b.WriteByte('4')
	for i := 0; b.Len() < 19; i++ {
		if b.Len() == 4 || b.Len() == 9 || b.Len() == 14 {
			b.WriteByte(' ')
			continue
		}
		b.WriteByte('0' + sum[i]%10)
	}
	return b.String()
}
