/*
store.go - Persistence interfaces for accounts and the entry ledger

PURPOSE:
  Defines the boundary between the engine/services and the database.
  The engine sees one capability: RunAtomic, an optimistic
  read-check-write transaction. Everything it reads inside RunAtomic is
  fresh; everything it writes commits all-or-nothing.

OPTIMISTIC CONCURRENCY CONTRACT:
  RunAtomic executes fn against a transactional view. If any account
  document written by fn changed between fn's read and the commit, the
  store discards fn's writes and re-runs it from scratch, up to a retry
  cap. fn must therefore re-validate every invariant on every attempt -
  a single validation is never sufficient. Exhaustion surfaces
  ErrConflictRetryExhausted with nothing committed.

APPEND-ONLY LEDGER:
  Entries have no update or delete path. Corrections would be new
  entries.

IMPLEMENTATIONS:
  - store/sqlite:       Production store (version-column CAS + retry)
  - ledger/store:       In-memory store for tests, with an injectable
                        conflict hook to simulate racing writers

SEE ALSO:
  - engine.go: The only caller of RunAtomic
  - bank package: Uses the wider stores for requests/scheduled/audit
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Atomic capability plus read-only queries
// =============================================================================

// Tx is the transactional view RunAtomic hands to fn. Reads are fresh;
// writes are buffered until commit.
type Tx interface {
	// Account reads the current account state. ErrAccountNotFound when
	// missing.
	Account(id AccountID) (*Account, error)

	// AccountByUsername resolves a payee. ErrRecipientNotFound when
	// missing. Lookup is case-sensitive.
	AccountByUsername(username string) (*Account, error)

	// SaveAccount stages the updated account state.
	SaveAccount(a *Account) error

	// AppendEntry stages one immutable ledger entry. The store assigns
	// CreatedAt at commit.
	AppendEntry(e Entry) error

	// Goal reads a savings goal owned by the account. ErrGoalNotFound
	// when missing.
	Goal(accountID AccountID, goalID string) (*Goal, error)

	// SaveGoal stages the updated goal.
	SaveGoal(g *Goal) error
}

// Store is the engine's persistence dependency.
type Store interface {
	// RunAtomic executes fn with optimistic-conflict retry. See the
	// package comment for the contract.
	RunAtomic(ctx context.Context, fn func(Tx) error) error

	// Read-only queries. Snapshots for display; never the source of
	// truth for a mutation's precondition check.
	GetAccount(ctx context.Context, id AccountID) (*Account, error)
	FindByUsername(ctx context.Context, username string) (*Account, error)
	ListAccounts(ctx context.Context) ([]*Account, error)

	// EntriesByAccount returns every entry where the account is payer or
	// payee, newest first (by store-assigned CreatedAt).
	EntriesByAccount(ctx context.Context, id AccountID) ([]Entry, error)
}

// =============================================================================
// MONEY REQUEST - P2P "please pay me"
// =============================================================================

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDeclined RequestStatus = "declined"
)

type MoneyRequest struct {
	ID           string
	FromID       AccountID // requester (will be credited on approval)
	FromUsername string
	ToID         AccountID // target (pays on approval)
	ToUsername   string
	Amount       decimal.Decimal
	Reason       string
	Status       RequestStatus
	Date         string // DateKey at creation
	CreatedAt    time.Time
}

// RequestStore persists money requests. UpdateRequestStatus is a
// compare-and-set: it only succeeds when the stored status equals from,
// guaranteeing the pending->approved/declined transition happens exactly
// once.
type RequestStore interface {
	CreateRequest(ctx context.Context, r *MoneyRequest) error
	GetRequest(ctx context.Context, id string) (*MoneyRequest, error)
	UpdateRequestStatus(ctx context.Context, id string, from, to RequestStatus) error
	ListRequestsFor(ctx context.Context, target AccountID) ([]*MoneyRequest, error)
	ListRequestsBy(ctx context.Context, requester AccountID) ([]*MoneyRequest, error)
}

// =============================================================================
// SCHEDULED TRANSFER - Recurring transfer definition
// =============================================================================

type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
)

type ScheduledTransfer struct {
	ID           string
	FromID       AccountID
	FromUsername string
	ToUsername   string
	Amount       decimal.Decimal
	Frequency    Frequency
	NextRun      string // YYYY-MM-DD; advances only after a successful run
	Note         string
	CreatedAt    time.Time
}

// NextAfter returns the run date one frequency step after the item's
// current NextRun. Missed runs do not compound: the schedule catches up
// one step per pass, stepping from the previous NextRun, not from today.
func (s *ScheduledTransfer) NextAfter() (string, error) {
	d, err := time.Parse("2006-01-02", s.NextRun)
	if err != nil {
		return "", err
	}
	switch s.Frequency {
	case FreqDaily:
		d = d.AddDate(0, 0, 1)
	case FreqWeekly:
		d = d.AddDate(0, 0, 7)
	case FreqMonthly:
		d = d.AddDate(0, 1, 0)
	}
	return d.Format("2006-01-02"), nil
}

// ScheduleStore persists scheduled-transfer definitions.
type ScheduleStore interface {
	CreateScheduled(ctx context.Context, s *ScheduledTransfer) error
	GetScheduled(ctx context.Context, id string) (*ScheduledTransfer, error)
	DeleteScheduled(ctx context.Context, id string) error
	ListScheduledBy(ctx context.Context, from AccountID) ([]*ScheduledTransfer, error)
	// AdvanceNextRun moves the due date forward after a successful
	// execution. A failed run never advances it.
	AdvanceNextRun(ctx context.Context, id string, next string) error
}

// =============================================================================
// GOALS, DIRECTORY, AUDIT, NOTIFICATIONS - Collaborator stores
// =============================================================================

// GoalStore persists savings goals outside the atomic cycle (creation
// and listing; funding goes through the engine).
type GoalStore interface {
	CreateGoal(ctx context.Context, g *Goal) error
	ListGoals(ctx context.Context, account AccountID) ([]*Goal, error)
}

// DirectoryStore manages account lifecycle outside the engine: signup
// and admin deletion. Balance mutation still only happens via RunAtomic.
type DirectoryStore interface {
	CreateAccount(ctx context.Context, a *Account) error
	DeleteAccount(ctx context.Context, id AccountID) error
}

// AuditEvent records who did what when. Separate from the entry ledger.
type AuditEvent struct {
	ID        string
	Actor     string
	Action    string
	Details   map[string]string
	CreatedAt time.Time
}

// AuditLog stores audit events. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, ev AuditEvent) error
	ListAudit(ctx context.Context, limit int) ([]AuditEvent, error)
}

// Notification is a persisted message for a user. Written by services,
// never read by the engine. Delivery UI is out of scope.
type Notification struct {
	ID        string
	Username  string
	Title     string
	Body      string
	Kind      string
	RefID     string // dedupe key, e.g. the request id
	CreatedAt time.Time
}

type NotificationStore interface {
	AppendNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, username string) ([]Notification, error)
}
