/*
Package store provides Store implementations.

The Memory store backs the engine tests: it honors the full RunAtomic
contract, including optimistic-conflict retries. A ConflictHook lets
tests simulate a concurrent writer racing the transaction, so the
engine's revalidate-on-retry behavior can be exercised without a real
database.
*/
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/meridian/bank-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.Mutex

	accounts   map[ledger.AccountID]*ledger.Account
	byUsername map[string]ledger.AccountID
	entries    []ledger.Entry
	goals      map[ledger.AccountID]map[string]*ledger.Goal
	requests   map[string]*ledger.MoneyRequest
	scheduled  map[string]*ledger.ScheduledTransfer
	audit      []ledger.AuditEvent
	notifs     []ledger.Notification

	// Clock stamps entry CreatedAt. Tests may freeze it.
	Clock ledger.Clock

	// MaxRetries bounds the optimistic loop. Zero means the default.
	MaxRetries int

	// ConflictHook, when set, runs after fn and before commit, with the
	// store lock released so it may use the store's own API; returning
	// true discards the attempt's writes as if a concurrent writer had
	// changed an account document, forcing a retry.
	ConflictHook func(attempt int) bool

	seq int64
}

const defaultMaxRetries = 5

func NewMemory() *Memory {
	return &Memory{
		accounts:   make(map[ledger.AccountID]*ledger.Account),
		byUsername: make(map[string]ledger.AccountID),
		goals:      make(map[ledger.AccountID]map[string]*ledger.Goal),
		requests:   make(map[string]*ledger.MoneyRequest),
		scheduled:  make(map[string]*ledger.ScheduledTransfer),
		Clock:      ledger.SystemClock{},
	}
}

// =============================================================================
// RUN ATOMIC - Optimistic read-check-write with retry
// =============================================================================

func (m *Memory) RunAtomic(ctx context.Context, fn func(ledger.Tx) error) error {
	max := m.MaxRetries
	if max <= 0 {
		max = defaultMaxRetries
	}

	for attempt := 0; attempt < max; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.mu.Lock()
		tx := newMemTx(m)
		if err := fn(tx); err != nil {
			m.mu.Unlock()
			return err
		}
		m.mu.Unlock()

		if m.ConflictHook != nil && m.ConflictHook(attempt) {
			// Writes are discarded; fn re-reads and re-validates on
			// the next attempt.
			continue
		}

		m.mu.Lock()
		ok := tx.commit()
		m.mu.Unlock()
		if !ok {
			// A concurrent writer committed an account this transaction
			// read; fn re-reads and re-validates on the next attempt.
			continue
		}
		return nil
	}
	return ledger.ErrConflictRetryExhausted
}

// memTx buffers writes until commit; reads see current store state plus
// the transaction's own staged writes. The Version of every account read
// is recorded so commit can detect a concurrent writer.
type memTx struct {
	store          *Memory
	readVersions   map[ledger.AccountID]int64
	stagedAccounts map[ledger.AccountID]*ledger.Account
	stagedGoals    map[ledger.AccountID]map[string]*ledger.Goal
	stagedEntries  []ledger.Entry
}

func newMemTx(m *Memory) *memTx {
	return &memTx{
		store:          m,
		readVersions:   make(map[ledger.AccountID]int64),
		stagedAccounts: make(map[ledger.AccountID]*ledger.Account),
		stagedGoals:    make(map[ledger.AccountID]map[string]*ledger.Goal),
	}
}

func (t *memTx) Account(id ledger.AccountID) (*ledger.Account, error) {
	if a, ok := t.stagedAccounts[id]; ok {
		return a, nil
	}
	a, ok := t.store.accounts[id]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	t.readVersions[id] = a.Version
	return copyAccount(a), nil
}

func (t *memTx) AccountByUsername(username string) (*ledger.Account, error) {
	for _, a := range t.stagedAccounts {
		if a.Username == username {
			return a, nil
		}
	}
	id, ok := t.store.byUsername[username]
	if !ok {
		return nil, ledger.ErrRecipientNotFound
	}
	a := t.store.accounts[id]
	t.readVersions[id] = a.Version
	return copyAccount(a), nil
}

func (t *memTx) SaveAccount(a *ledger.Account) error {
	t.stagedAccounts[a.ID] = a
	return nil
}

func (t *memTx) AppendEntry(e ledger.Entry) error {
	t.stagedEntries = append(t.stagedEntries, e)
	return nil
}

func (t *memTx) Goal(accountID ledger.AccountID, goalID string) (*ledger.Goal, error) {
	if byID, ok := t.stagedGoals[accountID]; ok {
		if g, ok := byID[goalID]; ok {
			return g, nil
		}
	}
	g, ok := t.store.goals[accountID][goalID]
	if !ok {
		return nil, ledger.ErrGoalNotFound
	}
	cp := *g
	return &cp, nil
}

func (t *memTx) SaveGoal(g *ledger.Goal) error {
	if t.stagedGoals[g.AccountID] == nil {
		t.stagedGoals[g.AccountID] = make(map[string]*ledger.Goal)
	}
	t.stagedGoals[g.AccountID][g.ID] = g
	return nil
}

// commit applies staged writes, but only if every account this
// transaction read still carries the version it was read at; a stale
// version means a concurrent writer committed first and the whole
// attempt must be retried. Caller holds the store lock.
func (t *memTx) commit() bool {
	for id := range t.stagedAccounts {
		want, read := t.readVersions[id]
		if !read {
			continue
		}
		cur, exists := t.store.accounts[id]
		if !exists || cur.Version != want {
			return false
		}
	}
	for id, a := range t.stagedAccounts {
		a.Version++
		t.store.accounts[id] = a
		t.store.byUsername[a.Username] = id
	}
	for accountID, byID := range t.stagedGoals {
		if t.store.goals[accountID] == nil {
			t.store.goals[accountID] = make(map[string]*ledger.Goal)
		}
		for id, g := range byID {
			t.store.goals[accountID][id] = g
		}
	}
	now := t.store.Clock.Now()
	for _, e := range t.stagedEntries {
		t.store.seq++
		// Sub-second offset keeps same-instant entries strictly ordered.
		e.CreatedAt = now.Add(time.Duration(t.store.seq) * time.Microsecond)
		t.store.entries = append(t.store.entries, e)
	}
	return true
}

// =============================================================================
// READ-ONLY QUERIES
// =============================================================================

func (m *Memory) GetAccount(_ context.Context, id ledger.AccountID) (*ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return copyAccount(a), nil
}

func (m *Memory) FindByUsername(_ context.Context, username string) (*ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byUsername[username]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return copyAccount(m.accounts[id]), nil
}

func (m *Memory) ListAccounts(_ context.Context) ([]*ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ledger.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, copyAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *Memory) EntriesByAccount(_ context.Context, id ledger.AccountID) ([]ledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Entry
	for _, e := range m.entries {
		if e.AccountID == id || e.RecipientID == id {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) CreateAccount(_ context.Context, a *ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byUsername[a.Username]; exists {
		return fmt.Errorf("username %q already taken", a.Username)
	}
	cp := copyAccount(a)
	m.accounts[cp.ID] = cp
	m.byUsername[cp.Username] = cp.ID
	return nil
}

func (m *Memory) DeleteAccount(_ context.Context, id ledger.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	delete(m.byUsername, a.Username)
	delete(m.accounts, id)
	delete(m.goals, id)
	return nil
}

// =============================================================================
// GOALS
// =============================================================================

func (m *Memory) CreateGoal(_ context.Context, g *ledger.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.goals[g.AccountID] == nil {
		m.goals[g.AccountID] = make(map[string]*ledger.Goal)
	}
	cp := *g
	m.goals[g.AccountID][g.ID] = &cp
	return nil
}

func (m *Memory) ListGoals(_ context.Context, account ledger.AccountID) ([]*ledger.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ledger.Goal
	for _, g := range m.goals[account] {
		cp := *g
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created < out[j].Created })
	return out, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (m *Memory) CreateRequest(_ context.Context, r *ledger.MoneyRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id string) (*ledger.MoneyRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s not found", id)
	}
	cp := *r
	return &cp, nil
}

func (m *Memory) UpdateRequestStatus(_ context.Context, id string, from, to ledger.RequestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return fmt.Errorf("request %s not found", id)
	}
	if r.Status != from {
		return fmt.Errorf("request %s: status is %s, expected %s", id, r.Status, from)
	}
	r.Status = to
	return nil
}

func (m *Memory) ListRequestsFor(_ context.Context, target ledger.AccountID) ([]*ledger.MoneyRequest, error) {
	return m.listRequests(func(r *ledger.MoneyRequest) bool { return r.ToID == target })
}

func (m *Memory) ListRequestsBy(_ context.Context, requester ledger.AccountID) ([]*ledger.MoneyRequest, error) {
	return m.listRequests(func(r *ledger.MoneyRequest) bool { return r.FromID == requester })
}

func (m *Memory) listRequests(match func(*ledger.MoneyRequest) bool) ([]*ledger.MoneyRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ledger.MoneyRequest
	for _, r := range m.requests {
		if match(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// SCHEDULED TRANSFERS
// =============================================================================

func (m *Memory) CreateScheduled(_ context.Context, s *ledger.ScheduledTransfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.scheduled[s.ID] = &cp
	return nil
}

func (m *Memory) GetScheduled(_ context.Context, id string) (*ledger.ScheduledTransfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scheduled[id]
	if !ok {
		return nil, fmt.Errorf("scheduled transfer %s not found", id)
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) DeleteScheduled(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scheduled, id)
	return nil
}

func (m *Memory) ListScheduledBy(_ context.Context, from ledger.AccountID) ([]*ledger.ScheduledTransfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ledger.ScheduledTransfer
	for _, s := range m.scheduled {
		if s.FromID == from {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) AdvanceNextRun(_ context.Context, id string, next string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scheduled[id]
	if !ok {
		return fmt.Errorf("scheduled transfer %s not found", id)
	}
	s.NextRun = next
	return nil
}

// =============================================================================
// AUDIT + NOTIFICATIONS
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, ev ledger.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, ev)
	return nil
}

func (m *Memory) ListAudit(_ context.Context, limit int) ([]ledger.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]ledger.AuditEvent{}, m.audit...)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) AppendNotification(_ context.Context, n ledger.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifs = append(m.notifs, n)
	return nil
}

func (m *Memory) ListNotifications(_ context.Context, username string) ([]ledger.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledger.Notification
	for _, n := range m.notifs {
		if n.Username == username {
			out = append(out, n)
		}
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func copyAccount(a *ledger.Account) *ledger.Account {
	cp := *a
	cp.GiftYearsClaimed = append([]string(nil), a.GiftYearsClaimed...)
	if a.LastTransaction != nil {
		lt := *a.LastTransaction
		cp.LastTransaction = &lt
	}
	return &cp
}
