/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (ledger.Store, RequestStore,
  ScheduleStore, GoalStore, DirectoryStore, AuditLog, NotificationStore)
  using SQLite. In production, the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

OPTIMISTIC CONCURRENCY:
  Accounts carry a version column. RunAtomic stages writes inside a SQL
  transaction and flushes each account with

      UPDATE accounts SET ..., version = version + 1
      WHERE id = ? AND version = ?

  A zero-row update means another writer won the race: the transaction
  rolls back and the whole callback is re-run against fresh state, up to
  a bounded number of attempts.

APPEND-ONLY ENFORCEMENT:
  The entries table is the immutable ledger:
  - No UPDATE statements on entries
  - No DELETE statements on entries

KEY TABLES:
  accounts:            One row per customer, version column for CAS
  entries:             Immutable ledger of all balance changes
  goals:               Per-account savings goals
  requests:            Money-request lifecycle (pending/approved/declined)
  scheduled_transfers: Recurring transfer plans
  audit_events:        Administrative action trail
  notifications:       Per-user event feed

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/bank.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store, ledger.DefaultConfig())

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/engine.go: Higher-level engine using Store
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/meridian/bank-ledger/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	// Clock stamps entry CreatedAt.
	Clock ledger.Clock

	// MaxRetries bounds the optimistic loop in RunAtomic. Zero means the
	// default.
	MaxRetries int

	seq int64
}

const defaultMaxRetries = 5

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, Clock: ledger.SystemClock{}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Accounts (version column drives optimistic concurrency)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		tier TEXT NOT NULL,
		balance TEXT NOT NULL,
		daily_json TEXT NOT NULL,
		monthly_json TEXT NOT NULL,
		last_tx_json TEXT,
		birthday TEXT,
		gift_years_json TEXT NOT NULL DEFAULT '[]',
		pin_hash TEXT NOT NULL,
		card_number TEXT NOT NULL,
		created_at TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_username ON accounts(username);

	-- Entries (append-only ledger)
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		entry_type TEXT NOT NULL,
		account_id TEXT NOT NULL,
		username TEXT NOT NULL,
		recipient_id TEXT,
		recipient TEXT,
		amount TEXT NOT NULL,
		fee TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		note TEXT,
		category TEXT,
		balance_after TEXT NOT NULL,
		recipient_balance_after TEXT,
		biller_id TEXT,
		biller_account_number TEXT,
		goal_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_account
		ON entries(account_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_entries_recipient
		ON entries(recipient_id) WHERE recipient_id IS NOT NULL;

	-- Goals
	CREATE TABLE IF NOT EXISTS goals (
		id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		name TEXT NOT NULL,
		target TEXT NOT NULL,
		saved TEXT NOT NULL,
		target_date TEXT,
		created TEXT NOT NULL,
		PRIMARY KEY (account_id, id)
	);

	-- Money requests
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		from_id TEXT NOT NULL,
		from_username TEXT NOT NULL,
		to_id TEXT NOT NULL,
		to_username TEXT NOT NULL,
		amount TEXT NOT NULL,
		reason TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_to ON requests(to_id);
	CREATE INDEX IF NOT EXISTS idx_requests_from ON requests(from_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status);

	-- Scheduled transfers
	CREATE TABLE IF NOT EXISTS scheduled_transfers (
		id TEXT PRIMARY KEY,
		from_id TEXT NOT NULL,
		from_username TEXT NOT NULL,
		to_username TEXT NOT NULL,
		amount TEXT NOT NULL,
		frequency TEXT NOT NULL,
		next_run TEXT NOT NULL,
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scheduled_from ON scheduled_transfers(from_id);
	CREATE INDEX IF NOT EXISTS idx_scheduled_next_run ON scheduled_transfers(next_run);

	-- Audit trail
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		details_json TEXT,
		created_at TEXT NOT NULL
	);

	-- Notifications
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		kind TEXT NOT NULL,
		ref_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_username
		ON notifications(username);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RUN ATOMIC - Optimistic read-check-write with retry
// =============================================================================

// RunAtomic executes fn against a transactional view and commits its staged
// writes with a compare-and-swap on each touched account's version. On a
// version conflict the callback is re-run against fresh state.
func (s *Store) RunAtomic(ctx context.Context, fn func(ledger.Tx) error) error {
	max := s.MaxRetries
	if max <= 0 {
		max = defaultMaxRetries
	}

	for attempt := 0; attempt < max; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		committed, err := s.runOnce(ctx, fn)
		if err != nil {
			return err
		}
		if committed {
			return nil
		}
	}
	return ledger.ErrConflictRetryExhausted
}

// runOnce performs a single attempt. A false return with nil error means a
// version conflict was detected and the caller should retry.
func (s *Store) runOnce(ctx context.Context, fn func(ledger.Tx) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	view := &txView{
		ctx:            ctx,
		tx:             sqlTx,
		stagedAccounts: make(map[ledger.AccountID]*ledger.Account),
		stagedGoals:    make(map[string]*ledger.Goal),
	}
	if err := fn(view); err != nil {
		return false, err
	}

	for _, a := range view.stagedAccounts {
		ok, err := view.flushAccount(a)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil // version conflict
		}
	}
	for _, g := range view.stagedGoals {
		if err := view.flushGoal(g); err != nil {
			return false, err
		}
	}
	for _, e := range view.stagedEntries {
		s.seq++
		e.CreatedAt = s.Clock.Now().Add(time.Duration(s.seq) * time.Microsecond)
		if err := view.flushEntry(e); err != nil {
			return false, err
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// txView implements ledger.Tx over a SQL transaction. Reads see committed
// state plus the view's own staged writes.
type txView struct {
	ctx            context.Context
	tx             *sql.Tx
	stagedAccounts map[ledger.AccountID]*ledger.Account
	stagedGoals    map[string]*ledger.Goal
	stagedEntries  []ledger.Entry
}

func (v *txView) Account(id ledger.AccountID) (*ledger.Account, error) {
	if a, ok := v.stagedAccounts[id]; ok {
		return a, nil
	}
	row := v.tx.QueryRowContext(v.ctx, selectAccount+" WHERE id = ?", id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrAccountNotFound
	}
	return a, err
}

func (v *txView) AccountByUsername(username string) (*ledger.Account, error) {
	for _, a := range v.stagedAccounts {
		if a.Username == username {
			return a, nil
		}
	}
	row := v.tx.QueryRowContext(v.ctx, selectAccount+" WHERE username = ?", username)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrRecipientNotFound
	}
	return a, err
}

func (v *txView) SaveAccount(a *ledger.Account) error {
	v.stagedAccounts[a.ID] = a
	return nil
}

func (v *txView) AppendEntry(e ledger.Entry) error {
	v.stagedEntries = append(v.stagedEntries, e)
	return nil
}

func (v *txView) Goal(accountID ledger.AccountID, goalID string) (*ledger.Goal, error) {
	if g, ok := v.stagedGoals[string(accountID)+"/"+goalID]; ok {
		return g, nil
	}
	row := v.tx.QueryRowContext(v.ctx,
		"SELECT id, account_id, name, target, saved, target_date, created FROM goals WHERE account_id = ? AND id = ?",
		accountID, goalID)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrGoalNotFound
	}
	return g, err
}

func (v *txView) SaveGoal(g *ledger.Goal) error {
	v.stagedGoals[string(g.AccountID)+"/"+g.ID] = g
	return nil
}

func (v *txView) flushAccount(a *ledger.Account) (bool, error) {
	daily, monthly, lastTx, giftYears, err := marshalAccountJSON(a)
	if err != nil {
		return false, err
	}

	res, err := v.tx.ExecContext(v.ctx, `
		UPDATE accounts SET
			username = ?, first_name = ?, last_name = ?, tier = ?,
			balance = ?, daily_json = ?, monthly_json = ?, last_tx_json = ?,
			birthday = ?, gift_years_json = ?, pin_hash = ?, card_number = ?,
			version = version + 1
		WHERE id = ? AND version = ?`,
		a.Username, a.FirstName, a.LastName, a.Tier,
		a.Balance.String(), daily, monthly, lastTx,
		a.Birthday, giftYears, a.PINHash, a.CardNumber,
		a.ID, a.Version,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update account %s: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (v *txView) flushGoal(g *ledger.Goal) error {
	_, err := v.tx.ExecContext(v.ctx, `
		INSERT INTO goals (id, account_id, name, target, saved, target_date, created)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, id) DO UPDATE SET
			name = excluded.name,
			target = excluded.target,
			saved = excluded.saved,
			target_date = excluded.target_date`,
		g.ID, g.AccountID, g.Name, g.Target.String(), g.Saved.String(),
		g.TargetDate, g.Created,
	)
	return err
}

func (v *txView) flushEntry(e ledger.Entry) error {
	_, err := v.tx.ExecContext(v.ctx, `
		INSERT INTO entries
		(id, entry_type, account_id, username, recipient_id, recipient,
		 amount, fee, date, time, note, category,
		 balance_after, recipient_balance_after,
		 biller_id, biller_account_number, goal_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.AccountID, e.Username,
		nullString(string(e.RecipientID)), nullString(e.Recipient),
		e.Amount.String(), e.Fee.String(), e.Date, e.Time, e.Note, e.Category,
		e.BalanceAfter.String(), nullString(decimalOrEmpty(e.RecipientBalanceAfter, e.RecipientID != "")),
		nullString(e.BillerID), nullString(e.BillerAccountNumber), nullString(e.GoalID),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

// =============================================================================
// READ-ONLY QUERIES (ledger.Store interface)
// =============================================================================

const selectAccount = `
	SELECT id, username, first_name, last_name, tier, balance,
	       daily_json, monthly_json, last_tx_json, birthday, gift_years_json,
	       pin_hash, card_number, created_at, version
	FROM accounts`

func (s *Store) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectAccount+" WHERE id = ?", id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrAccountNotFound
	}
	return a, err
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectAccount+" WHERE username = ?", username)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrAccountNotFound
	}
	return a, err
}

func (s *Store) ListAccounts(ctx context.Context) ([]*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectAccount+" ORDER BY username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Store) EntriesByAccount(ctx context.Context, id ledger.AccountID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, entry_type, account_id, username, recipient_id, recipient,
		       amount, fee, date, time, note, category,
		       balance_after, recipient_balance_after,
		       biller_id, biller_account_number, goal_id, created_at
		FROM entries
		WHERE account_id = ? OR recipient_id = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, id, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// DIRECTORY STORE
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, a *ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	daily, monthly, lastTx, giftYears, err := marshalAccountJSON(a)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts
		(id, username, first_name, last_name, tier, balance,
		 daily_json, monthly_json, last_tx_json, birthday, gift_years_json,
		 pin_hash, card_number, created_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.FirstName, a.LastName, a.Tier, a.Balance.String(),
		daily, monthly, lastTx, a.Birthday, giftYears,
		a.PINHash, a.CardNumber, a.CreatedAt.UTC().Format(time.RFC3339), a.Version,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("username %q already taken", a.Username)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrAccountNotFound
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM goals WHERE account_id = ?", id)
	return err
}

// =============================================================================
// GOAL STORE
// =============================================================================

func (s *Store) CreateGoal(ctx context.Context, g *ledger.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (id, account_id, name, target, saved, target_date, created)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.AccountID, g.Name, g.Target.String(), g.Saved.String(),
		g.TargetDate, g.Created,
	)
	return err
}

func (s *Store) ListGoals(ctx context.Context, account ledger.AccountID) ([]*ledger.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, account_id, name, target, saved, target_date, created FROM goals WHERE account_id = ? ORDER BY created",
		account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []*ledger.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (s *Store) CreateRequest(ctx context.Context, r *ledger.MoneyRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (id, from_id, from_username, to_id, to_username, amount, reason, status, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FromID, r.FromUsername, r.ToID, r.ToUsername,
		r.Amount.String(), r.Reason, r.Status, r.Date,
		r.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetRequest(ctx context.Context, id string) (*ledger.MoneyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, from_id, from_username, to_id, to_username, amount, reason, status, date, created_at FROM requests WHERE id = ?",
		id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("request %s not found", id)
	}
	return r, err
}

// UpdateRequestStatus is a compare-and-swap on the status column: the update
// applies only if the current status matches from.
func (s *Store) UpdateRequestStatus(ctx context.Context, id string, from, to ledger.RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE requests SET status = ? WHERE id = ? AND status = ?",
		to, id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var current string
		if err := s.db.QueryRowContext(ctx, "SELECT status FROM requests WHERE id = ?", id).Scan(&current); err == sql.ErrNoRows {
			return fmt.Errorf("request %s not found", id)
		}
		return fmt.Errorf("request %s: status is %s, expected %s", id, current, from)
	}
	return nil
}

func (s *Store) ListRequestsFor(ctx context.Context, target ledger.AccountID) ([]*ledger.MoneyRequest, error) {
	return s.queryRequests(ctx, "to_id", target)
}

func (s *Store) ListRequestsBy(ctx context.Context, requester ledger.AccountID) ([]*ledger.MoneyRequest, error) {
	return s.queryRequests(ctx, "from_id", requester)
}

func (s *Store) queryRequests(ctx context.Context, column string, id ledger.AccountID) ([]*ledger.MoneyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, from_id, from_username, to_id, to_username, amount, reason, status, date, created_at FROM requests WHERE " +
		column + " = ? ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*ledger.MoneyRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// =============================================================================
// SCHEDULE STORE
// =============================================================================

func (s *Store) CreateScheduled(ctx context.Context, st *ledger.ScheduledTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_transfers (id, from_id, from_username, to_username, amount, frequency, next_run, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.FromID, st.FromUsername, st.ToUsername,
		st.Amount.String(), st.Frequency, st.NextRun, st.Note,
		st.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetScheduled(ctx context.Context, id string) (*ledger.ScheduledTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, from_id, from_username, to_username, amount, frequency, next_run, note, created_at FROM scheduled_transfers WHERE id = ?",
		id)
	st, err := scanScheduled(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scheduled transfer %s not found", id)
	}
	return st, err
}

func (s *Store) DeleteScheduled(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM scheduled_transfers WHERE id = ?", id)
	return err
}

func (s *Store) ListScheduledBy(ctx context.Context, from ledger.AccountID) ([]*ledger.ScheduledTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, from_id, from_username, to_username, amount, frequency, next_run, note, created_at FROM scheduled_transfers WHERE from_id = ? ORDER BY created_at ASC",
		from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ledger.ScheduledTransfer
	for rows.Next() {
		st, err := scanScheduled(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) AdvanceNextRun(ctx context.Context, id string, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE scheduled_transfers SET next_run = ? WHERE id = ?", next, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("scheduled transfer %s not found", id)
	}
	return nil
}

// =============================================================================
// AUDIT + NOTIFICATIONS
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, ev ledger.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	detailsJSON, _ := json.Marshal(ev.Details)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, actor, action, details_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.Actor, ev.Action, string(detailsJSON),
		ev.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]ledger.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, actor, action, details_json, created_at FROM audit_events ORDER BY created_at DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []ledger.AuditEvent
	for rows.Next() {
		var ev ledger.AuditEvent
		var detailsJSON sql.NullString
		var createdAt string
		if err := rows.Scan(&ev.ID, &ev.Actor, &ev.Action, &detailsJSON, &createdAt); err != nil {
			return nil, err
		}
		if detailsJSON.Valid && detailsJSON.String != "" {
			json.Unmarshal([]byte(detailsJSON.String), &ev.Details)
		}
		ev.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *Store) AppendNotification(ctx context.Context, n ledger.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, username, title, body, kind, ref_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Username, n.Title, n.Body, n.Kind, nullString(n.RefID),
		n.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListNotifications(ctx context.Context, username string) ([]ledger.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, username, title, body, kind, ref_id, created_at FROM notifications WHERE username = ? ORDER BY created_at ASC",
		username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Notification
	for rows.Next() {
		var n ledger.Notification
		var refID sql.NullString
		var createdAt string
		if err := rows.Scan(&n.ID, &n.Username, &n.Title, &n.Body, &n.Kind, &refID, &createdAt); err != nil {
			return nil, err
		}
		n.RefID = refID.String
		n.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"entries", "goals", "requests", "scheduled_transfers", "audit_events", "notifications", "accounts"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SCANNING / MARSHALING HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*ledger.Account, error) {
	var (
		a         ledger.Account
		balance   string
		daily     string
		monthly   string
		lastTx    sql.NullString
		birthday  sql.NullString
		giftYears string
		createdAt string
	)

	err := row.Scan(
		&a.ID, &a.Username, &a.FirstName, &a.LastName, &a.Tier, &balance,
		&daily, &monthly, &lastTx, &birthday, &giftYears,
		&a.PINHash, &a.CardNumber, &createdAt, &a.Version,
	)
	if err != nil {
		return nil, err
	}

	a.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance for account %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(daily), &a.LimitsDaily); err != nil {
		return nil, fmt.Errorf("failed to parse daily window for account %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(monthly), &a.LimitsMonthly); err != nil {
		return nil, fmt.Errorf("failed to parse monthly window for account %s: %w", a.ID, err)
	}
	if lastTx.Valid && lastTx.String != "" {
		var r ledger.Receipt
		if err := json.Unmarshal([]byte(lastTx.String), &r); err != nil {
			return nil, fmt.Errorf("failed to parse last transaction for account %s: %w", a.ID, err)
		}
		a.LastTransaction = &r
	}
	a.Birthday = birthday.String
	if err := json.Unmarshal([]byte(giftYears), &a.GiftYearsClaimed); err != nil {
		return nil, fmt.Errorf("failed to parse gift years for account %s: %w", a.ID, err)
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return &a, nil
}

func marshalAccountJSON(a *ledger.Account) (daily, monthly, lastTx, giftYears string, err error) {
	d, err := json.Marshal(a.LimitsDaily)
	if err != nil {
		return "", "", "", "", err
	}
	m, err := json.Marshal(a.LimitsMonthly)
	if err != nil {
		return "", "", "", "", err
	}
	if a.LastTransaction != nil {
		lt, err := json.Marshal(a.LastTransaction)
		if err != nil {
			return "", "", "", "", err
		}
		lastTx = string(lt)
	}
	years := a.GiftYearsClaimed
	if years == nil {
		years = []string{}
	}
	g, err := json.Marshal(years)
	if err != nil {
		return "", "", "", "", err
	}
	return string(d), string(m), lastTx, string(g), nil
}

func scanEntry(row rowScanner) (ledger.Entry, error) {
	var (
		e                   ledger.Entry
		recipientID         sql.NullString
		recipient           sql.NullString
		amount              string
		fee                 string
		note                sql.NullString
		category            sql.NullString
		balanceAfter        string
		recipBalanceAfter   sql.NullString
		billerID            sql.NullString
		billerAccountNumber sql.NullString
		goalID              sql.NullString
		createdAt           string
	)

	err := row.Scan(
		&e.ID, &e.Type, &e.AccountID, &e.Username, &recipientID, &recipient,
		&amount, &fee, &e.Date, &e.Time, &note, &category,
		&balanceAfter, &recipBalanceAfter,
		&billerID, &billerAccountNumber, &goalID, &createdAt,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan entry: %w", err)
	}

	e.RecipientID = ledger.AccountID(recipientID.String)
	e.Recipient = recipient.String
	e.Amount, _ = decimal.NewFromString(amount)
	e.Fee, _ = decimal.NewFromString(fee)
	e.Note = note.String
	e.Category = category.String
	e.BalanceAfter, _ = decimal.NewFromString(balanceAfter)
	if recipBalanceAfter.Valid && recipBalanceAfter.String != "" {
		e.RecipientBalanceAfter, _ = decimal.NewFromString(recipBalanceAfter.String)
	}
	e.BillerID = billerID.String
	e.BillerAccountNumber = billerAccountNumber.String
	e.GoalID = goalID.String
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	return e, nil
}

func scanGoal(row rowScanner) (*ledger.Goal, error) {
	var (
		g          ledger.Goal
		target     string
		saved      string
		targetDate sql.NullString
	)
	err := row.Scan(&g.ID, &g.AccountID, &g.Name, &target, &saved, &targetDate, &g.Created)
	if err != nil {
		return nil, err
	}
	g.Target, _ = decimal.NewFromString(target)
	g.Saved, _ = decimal.NewFromString(saved)
	g.TargetDate = targetDate.String
	return &g, nil
}

func scanRequest(row rowScanner) (*ledger.MoneyRequest, error) {
	var (
		r         ledger.MoneyRequest
		amount    string
		reason    sql.NullString
		createdAt string
	)
	err := row.Scan(&r.ID, &r.FromID, &r.FromUsername, &r.ToID, &r.ToUsername,
		&amount, &reason, &r.Status, &r.Date, &createdAt)
	if err != nil {
		return nil, err
	}
	r.Amount, _ = decimal.NewFromString(amount)
	r.Reason = reason.String
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &r, nil
}

func scanScheduled(row rowScanner) (*ledger.ScheduledTransfer, error) {
	var (
		st        ledger.ScheduledTransfer
		amount    string
		note      sql.NullString
		createdAt string
	)
	err := row.Scan(&st.ID, &st.FromID, &st.FromUsername, &st.ToUsername,
		&amount, &st.Frequency, &st.NextRun, &note, &createdAt)
	if err != nil {
		return nil, err
	}
	st.Amount, _ = decimal.NewFromString(amount)
	st.Note = note.String
	st.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &st, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func decimalOrEmpty(d decimal.Decimal, present bool) string {
	if !present {
		return ""
	}
	return d.String()
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
