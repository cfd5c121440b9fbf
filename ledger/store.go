/*
store.go - Persistence interfaces for the ledger engine

PURPOSE:
  Defines the interface between the domain logic and the database. The
  transaction and audit stores are append-only; the account store's balance
  is mutated only through the two ledger-affecting components (tuition.go,
  transition.go), never directly by callers.

KEY INTERFACES:
  Store:   All entity persistence, composed from the per-entity interfaces
  TxStore: Store plus WithTx, the single atomic-unit boundary

ATOMIC UNIT:
  Every ledger-affecting operation (balance read, balance write, transaction
  or session write, audit append) runs inside one WithTx call. If any step
  fails, nothing is observable.

APPEND-ONLY CONTRACT:
  TransactionStore and AuditStore expose no update methods. Audit records
  are deleted only via the explicit cascade cleanup on DeleteAccount,
  DeleteSession, and DeleteTransaction - a deliberate, visible step rather
  than a database-level cascade.

IMPLEMENTATIONS:
  - ledger/store: In-memory (tests/dev)
  - store/sqlite: SQLite with WAL
  - store/postgres: PostgreSQL with row-level account locks

SEE ALSO:
  - tuition.go, transition.go: Write paths using WithTx
  - report.go: Read-only consumer
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PER-ENTITY STORES
// =============================================================================

// AccountStore persists accounts. UpdateBalance is the ONLY balance write
// path and must be called inside WithTx by the ledger components.
type AccountStore interface {
	SaveAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, id AccountID) (Account, error)
	ListAccountsByTutor(ctx context.Context, tutorID TutorID) ([]Account, error)
	UpdateBalance(ctx context.Context, id AccountID, balance decimal.Decimal) error

	// DeleteAccount removes the account and, in the same unit, its
	// transactions, sessions, and audit records (explicit cascade cleanup).
	DeleteAccount(ctx context.Context, id AccountID) error
}

// OrganizationStore persists organizations.
type OrganizationStore interface {
	SaveOrganization(ctx context.Context, o Organization) error
	GetOrganization(ctx context.Context, id OrganizationID) (Organization, error)
	ListOrganizations(ctx context.Context) ([]Organization, error)
}

// SessionStore persists class sessions.
type SessionStore interface {
	SaveSession(ctx context.Context, s ClassSession) error
	GetSession(ctx context.Context, id SessionID) (ClassSession, error)

	// SessionsInWindow returns all sessions for the tutor whose calendar
	// date falls in [w.Start, w.End), regardless of status.
	SessionsInWindow(ctx context.Context, tutorID TutorID, w Window) ([]ClassSession, error)

	// DeleteSession removes the session and its dependent audit records.
	DeleteSession(ctx context.Context, id SessionID) error
}

// TransactionStore persists tuition transactions. Append-only.
type TransactionStore interface {
	AppendTransaction(ctx context.Context, t TuitionTransaction) error
	GetTransaction(ctx context.Context, id TransactionID) (TuitionTransaction, error)
	TransactionsByAccount(ctx context.Context, id AccountID) ([]TuitionTransaction, error)

	// DeleteTransaction removes the transaction and its dependent audit
	// records. Referential cleanup, not a ledger operation: the balance is
	// NOT readjusted.
	DeleteTransaction(ctx context.Context, id TransactionID) error
}

// AuditStore persists audit records. Append-only; no update, no direct
// delete. Cleanup happens only through the owning entity's Delete*.
type AuditStore interface {
	AppendAudit(ctx context.Context, r AuditRecord) error
	AuditByAccount(ctx context.Context, id AccountID) ([]AuditRecord, error)
}

// =============================================================================
// COMPOSED STORE + TRANSACTION BOUNDARY
// =============================================================================

// Store is everything the engine needs from persistence.
type Store interface {
	AccountStore
	OrganizationStore
	SessionStore
	TransactionStore
	AuditStore
}

// TxStore wraps Store with the atomic-unit boundary.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back and none of its writes are observable;
	// otherwise it is committed. Reads inside fn see the transaction's own
	// uncommitted writes and, on stores that support it, hold row locks on
	// accounts read for update.
	WithTx(ctx context.Context, fn func(Store) error) error
}
