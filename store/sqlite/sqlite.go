/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Persists accounts, organizations, class sessions, tuition transactions,
  and audit records using SQLite. In production with PostgreSQL the same
  patterns apply (see store/postgres) - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  No UPDATE statements exist for tuition_transactions or audit_records,
  and the only DELETE statements live in the explicit cascade cleanup of
  DeleteAccount, DeleteSession, and DeleteTransaction. Cleanup is a
  visible step in code rather than a database-level cascade, so the
  audit trail's lifecycle stays readable.

ATOMIC UNIT:
  WithTx wraps all reads and writes of one ledger operation in a single
  SQL transaction. Reads inside the unit go through the same *sql.Tx so
  they see its own writes, and a failed audit append rolls back the
  balance update with it.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's single-writer
  model. Per-account serialization is the engine's job (ledger package).

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/tutors.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  processor := ledger.NewProcessor(store, ledger.Config{})

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
  - store/postgres/postgres.go: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/phil-in-taipei/tutors-assistant/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
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

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS organizations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- billing_category decides which of balance/organization_id is set.
	-- Exactly one, enforced in code and by this check.
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		tutor_id TEXT NOT NULL,
		hourly_rate INTEGER NOT NULL,
		billing_category TEXT NOT NULL,
		balance TEXT,
		organization_id TEXT,
		created_at TEXT NOT NULL,
		CHECK (
			(billing_category = 'independent' AND balance IS NOT NULL AND organization_id IS NULL)
			OR
			(billing_category = 'organization' AND balance IS NULL AND organization_id IS NOT NULL)
		)
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_tutor ON accounts(tutor_id);
	CREATE INDEX IF NOT EXISTS idx_accounts_organization
		ON accounts(organization_id) WHERE organization_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS class_sessions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		tutor_id TEXT NOT NULL,
		date TEXT NOT NULL,
		start_at TEXT NOT NULL,
		finish_at TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	-- Hot path: window selection for earnings reports
	CREATE INDEX IF NOT EXISTS idx_sessions_tutor_date
		ON class_sessions(tutor_id, date);
	CREATE INDEX IF NOT EXISTS idx_sessions_account
		ON class_sessions(account_id);

	-- Immutable ledger of purchased/refunded hours
	CREATE TABLE IF NOT EXISTS tuition_transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		hours INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_account
		ON tuition_transactions(account_id, created_at);

	-- Audit records: exactly one of transaction_id/session_id is set
	CREATE TABLE IF NOT EXISTS audit_records (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		transaction_id TEXT,
		session_id TEXT,
		change_kind TEXT NOT NULL,
		before_balance TEXT NOT NULL,
		after_balance TEXT NOT NULL,
		created_at TEXT NOT NULL,
		CHECK (
			(transaction_id IS NOT NULL AND session_id IS NULL)
			OR
			(transaction_id IS NULL AND session_id IS NOT NULL)
		)
	);

	CREATE INDEX IF NOT EXISTS idx_audit_account
		ON audit_records(account_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_audit_transaction
		ON audit_records(transaction_id) WHERE transaction_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_audit_session
		ON audit_records(session_id) WHERE session_id IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is the shared surface of *sql.DB and *sql.Tx the query helpers
// run on.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// TRANSACTION BOUNDARY (ledger.TxStore)
// =============================================================================

// WithTx executes fn within a single database transaction. If fn returns
// an error, every write made through the passed Store is rolled back.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every Store call through the open *sql.Tx so reads
// inside the unit see its own writes.
type txStore struct {
	tx *sql.Tx
}

func (t *txStore) SaveAccount(ctx context.Context, a ledger.Account) error {
	return saveAccount(ctx, t.tx, a)
}
func (t *txStore) GetAccount(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	return getAccount(ctx, t.tx, id)
}
func (t *txStore) ListAccountsByTutor(ctx context.Context, tutorID ledger.TutorID) ([]ledger.Account, error) {
	return listAccountsByTutor(ctx, t.tx, tutorID)
}
func (t *txStore) UpdateBalance(ctx context.Context, id ledger.AccountID, balance decimal.Decimal) error {
	return updateBalance(ctx, t.tx, id, balance)
}
func (t *txStore) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	return deleteAccount(ctx, t.tx, id)
}
func (t *txStore) SaveOrganization(ctx context.Context, o ledger.Organization) error {
	return saveOrganization(ctx, t.tx, o)
}
func (t *txStore) GetOrganization(ctx context.Context, id ledger.OrganizationID) (ledger.Organization, error) {
	return getOrganization(ctx, t.tx, id)
}
func (t *txStore) ListOrganizations(ctx context.Context) ([]ledger.Organization, error) {
	return listOrganizations(ctx, t.tx)
}
func (t *txStore) SaveSession(ctx context.Context, cs ledger.ClassSession) error {
	return saveSession(ctx, t.tx, cs)
}
func (t *txStore) GetSession(ctx context.Context, id ledger.SessionID) (ledger.ClassSession, error) {
	return getSession(ctx, t.tx, id)
}
func (t *txStore) SessionsInWindow(ctx context.Context, tutorID ledger.TutorID, w ledger.Window) ([]ledger.ClassSession, error) {
	return sessionsInWindow(ctx, t.tx, tutorID, w)
}
func (t *txStore) DeleteSession(ctx context.Context, id ledger.SessionID) error {
	return deleteSession(ctx, t.tx, id)
}
func (t *txStore) AppendTransaction(ctx context.Context, tr ledger.TuitionTransaction) error {
	return appendTransaction(ctx, t.tx, tr)
}
func (t *txStore) GetTransaction(ctx context.Context, id ledger.TransactionID) (ledger.TuitionTransaction, error) {
	return getTransaction(ctx, t.tx, id)
}
func (t *txStore) TransactionsByAccount(ctx context.Context, id ledger.AccountID) ([]ledger.TuitionTransaction, error) {
	return transactionsByAccount(ctx, t.tx, id)
}
func (t *txStore) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	return deleteTransaction(ctx, t.tx, id)
}
func (t *txStore) AppendAudit(ctx context.Context, r ledger.AuditRecord) error {
	return appendAudit(ctx, t.tx, r)
}
func (t *txStore) AuditByAccount(ctx context.Context, id ledger.AccountID) ([]ledger.AuditRecord, error) {
	return auditByAccount(ctx, t.tx, id)
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (s *Store) SaveAccount(ctx context.Context, a ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAccount(ctx, s.db, a)
}

func saveAccount(ctx context.Context, db dbtx, a ledger.Account) error {
	var balance, orgID sql.NullString
	switch b := a.Billing.(type) {
	case ledger.IndependentBilling:
		balance = sql.NullString{String: b.Balance.StringFixed(2), Valid: true}
	case ledger.OrganizationBilling:
		orgID = sql.NullString{String: string(b.OrganizationID), Valid: true}
	default:
		return fmt.Errorf("account %s has no billing arm", a.ID)
	}

	// Balance changes go through UpdateBalance; saving an existing
	// account only refreshes its name and rate.
	query := `
		INSERT INTO accounts (id, name, tutor_id, hourly_rate, billing_category, balance, organization_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			hourly_rate = excluded.hourly_rate
	`
	_, err := db.ExecContext(ctx, query,
		a.ID, a.Name, a.TutorID, a.HourlyRate,
		string(a.Billing.Category()), balance, orgID,
		a.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAccount(ctx, s.db, id)
}

func getAccount(ctx context.Context, db dbtx, id ledger.AccountID) (ledger.Account, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, tutor_id, hourly_rate, billing_category, balance, organization_id, created_at
		FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return ledger.Account{}, &ledger.NotFoundError{Entity: "account", ID: string(id)}
	}
	return a, err
}

func scanAccount(row rowScanner) (ledger.Account, error) {
	var (
		a         ledger.Account
		category  string
		balance   sql.NullString
		orgID     sql.NullString
		createdAt string
	)
	err := row.Scan(&a.ID, &a.Name, &a.TutorID, &a.HourlyRate, &category, &balance, &orgID, &createdAt)
	if err != nil {
		return ledger.Account{}, err
	}

	switch ledger.BillingCategory(category) {
	case ledger.CategoryIndependent:
		b, err := decimal.NewFromString(balance.String)
		if err != nil {
			return ledger.Account{}, fmt.Errorf("corrupt balance for account %s: %w", a.ID, err)
		}
		a.Billing = ledger.IndependentBilling{Balance: b}
	case ledger.CategoryOrganization:
		a.Billing = ledger.OrganizationBilling{OrganizationID: ledger.OrganizationID(orgID.String)}
	default:
		return ledger.Account{}, fmt.Errorf("unknown billing category %q for account %s", category, a.ID)
	}

	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return a, nil
}

func (s *Store) ListAccountsByTutor(ctx context.Context, tutorID ledger.TutorID) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAccountsByTutor(ctx, s.db, tutorID)
}

func listAccountsByTutor(ctx context.Context, db dbtx, tutorID ledger.TutorID) ([]ledger.Account, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, tutor_id, hourly_rate, billing_category, balance, organization_id, created_at
		FROM accounts WHERE tutor_id = ? ORDER BY name ASC, id ASC`, tutorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Store) UpdateBalance(ctx context.Context, id ledger.AccountID, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateBalance(ctx, s.db, id, balance)
}

func updateBalance(ctx context.Context, db dbtx, id ledger.AccountID, balance decimal.Decimal) error {
	res, err := db.ExecContext(ctx, `
		UPDATE accounts SET balance = ?
		WHERE id = ? AND billing_category = 'independent'`,
		balance.StringFixed(2), id)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &ledger.NotFoundError{Entity: "account", ID: string(id)}
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Cleanup of dependent rows is atomic with the account delete.
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	if err := deleteAccount(ctx, sqlTx, id); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func deleteAccount(ctx context.Context, db dbtx, id ledger.AccountID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &ledger.NotFoundError{Entity: "account", ID: string(id)}
	}

	// Explicit cascade: sessions, transactions, and audit rows go with
	// the account.
	for _, stmt := range []string{
		"DELETE FROM audit_records WHERE account_id = ?",
		"DELETE FROM tuition_transactions WHERE account_id = ?",
		"DELETE FROM class_sessions WHERE account_id = ?",
	} {
		if _, err := db.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// ORGANIZATION STORE
// =============================================================================

func (s *Store) SaveOrganization(ctx context.Context, o ledger.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveOrganization(ctx, s.db, o)
}

func saveOrganization(ctx context.Context, db dbtx, o ledger.Organization) error {
	query := `
		INSERT INTO organizations (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`
	_, err := db.ExecContext(ctx, query, o.ID, o.Name, o.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save organization: %w", err)
	}
	return nil
}

func (s *Store) GetOrganization(ctx context.Context, id ledger.OrganizationID) (ledger.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOrganization(ctx, s.db, id)
}

func getOrganization(ctx context.Context, db dbtx, id ledger.OrganizationID) (ledger.Organization, error) {
	var (
		o         ledger.Organization
		createdAt string
	)
	err := db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM organizations WHERE id = ?", id,
	).Scan(&o.ID, &o.Name, &createdAt)
	if err == sql.ErrNoRows {
		return ledger.Organization{}, &ledger.NotFoundError{Entity: "organization", ID: string(id)}
	}
	if err != nil {
		return ledger.Organization{}, err
	}
	o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return o, nil
}

func (s *Store) ListOrganizations(ctx context.Context) ([]ledger.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOrganizations(ctx, s.db)
}

func listOrganizations(ctx context.Context, db dbtx) ([]ledger.Organization, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, name, created_at FROM organizations ORDER BY name ASC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []ledger.Organization
	for rows.Next() {
		var (
			o         ledger.Organization
			createdAt string
		)
		if err := rows.Scan(&o.ID, &o.Name, &createdAt); err != nil {
			return nil, err
		}
		o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// =============================================================================
// SESSION STORE
// =============================================================================

func (s *Store) SaveSession(ctx context.Context, cs ledger.ClassSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveSession(ctx, s.db, cs)
}

func saveSession(ctx context.Context, db dbtx, cs ledger.ClassSession) error {
	query := `
		INSERT INTO class_sessions (id, account_id, tutor_id, date, start_at, finish_at, status, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			start_at = excluded.start_at,
			finish_at = excluded.finish_at,
			status = excluded.status,
			notes = excluded.notes
	`
	_, err := db.ExecContext(ctx, query,
		cs.ID, cs.AccountID, cs.TutorID,
		cs.Date.Format("2006-01-02"),
		cs.Start.UTC().Format(time.RFC3339),
		cs.Finish.UTC().Format(time.RFC3339),
		string(cs.Status), nullString(cs.Notes),
		cs.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id ledger.SessionID) (ledger.ClassSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSession(ctx, s.db, id)
}

func getSession(ctx context.Context, db dbtx, id ledger.SessionID) (ledger.ClassSession, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, account_id, tutor_id, date, start_at, finish_at, status, notes, created_at
		FROM class_sessions WHERE id = ?`, id)
	cs, err := scanSession(row)
	if err == sql.ErrNoRows {
		return ledger.ClassSession{}, &ledger.NotFoundError{Entity: "session", ID: string(id)}
	}
	return cs, err
}

func scanSession(row rowScanner) (ledger.ClassSession, error) {
	var (
		cs                           ledger.ClassSession
		date, start, finish, created string
		notes                        sql.NullString
	)
	err := row.Scan(&cs.ID, &cs.AccountID, &cs.TutorID, &date, &start, &finish, &cs.Status, &notes, &created)
	if err != nil {
		return ledger.ClassSession{}, err
	}
	cs.Date, _ = time.Parse("2006-01-02", date)
	cs.Start, _ = time.Parse(time.RFC3339, start)
	cs.Finish, _ = time.Parse(time.RFC3339, finish)
	cs.Notes = notes.String
	cs.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return cs, nil
}

func (s *Store) SessionsInWindow(ctx context.Context, tutorID ledger.TutorID, w ledger.Window) ([]ledger.ClassSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sessionsInWindow(ctx, s.db, tutorID, w)
}

func sessionsInWindow(ctx context.Context, db dbtx, tutorID ledger.TutorID, w ledger.Window) ([]ledger.ClassSession, error) {
	// Window is half-open: Start inclusive, End exclusive.
	rows, err := db.QueryContext(ctx, `
		SELECT id, account_id, tutor_id, date, start_at, finish_at, status, notes, created_at
		FROM class_sessions
		WHERE tutor_id = ? AND date >= ? AND date < ?
		ORDER BY date ASC, id ASC`,
		tutorID, w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []ledger.ClassSession
	for rows.Next() {
		cs, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, cs)
	}
	return sessions, rows.Err()
}

func (s *Store) DeleteSession(ctx context.Context, id ledger.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	if err := deleteSession(ctx, sqlTx, id); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func deleteSession(ctx context.Context, db dbtx, id ledger.SessionID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM class_sessions WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &ledger.NotFoundError{Entity: "session", ID: string(id)}
	}

	// Explicit cascade: audit rows caused by this session go with it.
	_, err = db.ExecContext(ctx, "DELETE FROM audit_records WHERE session_id = ?", id)
	return err
}

// =============================================================================
// TRANSACTION STORE (append-only)
// =============================================================================

func (s *Store) AppendTransaction(ctx context.Context, t ledger.TuitionTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendTransaction(ctx, s.db, t)
}

func appendTransaction(ctx context.Context, db dbtx, t ledger.TuitionTransaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO tuition_transactions (id, account_id, kind, hours, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, string(t.Kind), t.Hours, t.Amount,
		t.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id ledger.TransactionID) (ledger.TuitionTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTransaction(ctx, s.db, id)
}

func getTransaction(ctx context.Context, db dbtx, id ledger.TransactionID) (ledger.TuitionTransaction, error) {
	var (
		t         ledger.TuitionTransaction
		createdAt string
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, account_id, kind, hours, amount, created_at
		FROM tuition_transactions WHERE id = ?`, id,
	).Scan(&t.ID, &t.AccountID, &t.Kind, &t.Hours, &t.Amount, &createdAt)
	if err == sql.ErrNoRows {
		return ledger.TuitionTransaction{}, &ledger.NotFoundError{Entity: "transaction", ID: string(id)}
	}
	if err != nil {
		return ledger.TuitionTransaction{}, err
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return t, nil
}

func (s *Store) TransactionsByAccount(ctx context.Context, id ledger.AccountID) ([]ledger.TuitionTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionsByAccount(ctx, s.db, id)
}

func transactionsByAccount(ctx context.Context, db dbtx, id ledger.AccountID) ([]ledger.TuitionTransaction, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, account_id, kind, hours, amount, created_at
		FROM tuition_transactions
		WHERE account_id = ?
		ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []ledger.TuitionTransaction
	for rows.Next() {
		var (
			t         ledger.TuitionTransaction
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Kind, &t.Hours, &t.Amount, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (s *Store) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	if err := deleteTransaction(ctx, sqlTx, id); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func deleteTransaction(ctx context.Context, db dbtx, id ledger.TransactionID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM tuition_transactions WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return &ledger.NotFoundError{Entity: "transaction", ID: string(id)}
	}

	// Explicit cascade: audit rows caused by this transaction go with it.
	_, err = db.ExecContext(ctx, "DELETE FROM audit_records WHERE transaction_id = ?", id)
	return err
}

// =============================================================================
// AUDIT STORE (append-only)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, r ledger.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendAudit(ctx, s.db, r)
}

func appendAudit(ctx context.Context, db dbtx, r ledger.AuditRecord) error {
	var txID, sessionID sql.NullString
	switch cause := r.Cause.(type) {
	case ledger.TransactionCause:
		txID = sql.NullString{String: string(cause.TransactionID), Valid: true}
	case ledger.SessionCause:
		sessionID = sql.NullString{String: string(cause.SessionID), Valid: true}
	default:
		return fmt.Errorf("audit record %s has no cause", r.ID)
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO audit_records (id, account_id, transaction_id, session_id, change_kind, before_balance, after_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AccountID, txID, sessionID, string(r.Kind),
		r.Before.StringFixed(2), r.After.StringFixed(2),
		r.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

func (s *Store) AuditByAccount(ctx context.Context, id ledger.AccountID) ([]ledger.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return auditByAccount(ctx, s.db, id)
}

func auditByAccount(ctx context.Context, db dbtx, id ledger.AccountID) ([]ledger.AuditRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, account_id, transaction_id, session_id, change_kind, before_balance, after_balance, created_at
		FROM audit_records
		WHERE account_id = ?
		ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ledger.AuditRecord
	for rows.Next() {
		var (
			r               ledger.AuditRecord
			txID, sessionID sql.NullString
			before, after   string
			createdAt       string
		)
		if err := rows.Scan(&r.ID, &r.AccountID, &txID, &sessionID, &r.Kind, &before, &after, &createdAt); err != nil {
			return nil, err
		}
		switch {
		case txID.Valid:
			r.Cause = ledger.TransactionCause{TransactionID: ledger.TransactionID(txID.String)}
		case sessionID.Valid:
			r.Cause = ledger.SessionCause{SessionID: ledger.SessionID(sessionID.String)}
		}
		r.Before, _ = decimal.NewFromString(before)
		r.After, _ = decimal.NewFromString(after)
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"audit_records", "tuition_transactions", "class_sessions", "accounts", "organizations"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
