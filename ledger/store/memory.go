// Package store provides an in-memory ledger.TxStore implementation.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/phil-in-taipei/tutors-assistant/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.TxStore entirely in process. WithTx takes a
// snapshot of the whole state and restores it if the unit fails, giving the
// same all-or-nothing behavior as the SQL stores.
//
// Every exported method locks and delegates to a *Locked twin; the tx view
// handed to WithTx callbacks calls the twins directly because the callback
// already holds the write lock.
type Memory struct {
	mu    sync.RWMutex
	state state
}

type state struct {
	accounts      map[ledger.AccountID]ledger.Account
	organizations map[ledger.OrganizationID]ledger.Organization
	sessions      map[ledger.SessionID]ledger.ClassSession
	transactions  map[ledger.TransactionID]ledger.TuitionTransaction
	audits        []ledger.AuditRecord
}

func NewMemory() *Memory {
	return &Memory{state: newState()}
}

func newState() state {
	return state{
		accounts:      make(map[ledger.AccountID]ledger.Account),
		organizations: make(map[ledger.OrganizationID]ledger.Organization),
		sessions:      make(map[ledger.SessionID]ledger.ClassSession),
		transactions:  make(map[ledger.TransactionID]ledger.TuitionTransaction),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.organizations {
		c.organizations[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	c.audits = append([]ledger.AuditRecord(nil), s.audits...)
	return c
}

// =============================================================================
// TRANSACTION BOUNDARY
// =============================================================================

// WithTx runs fn against the live state under the write lock. On error the
// pre-transaction snapshot is restored, so partial writes never survive.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&txMemory{m: m}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// txMemory is the unlocked view used inside WithTx callbacks.
type txMemory struct {
	m *Memory
}

func (t *txMemory) SaveAccount(ctx context.Context, a ledger.Account) error {
	return t.m.saveAccountLocked(a)
}
func (t *txMemory) GetAccount(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	return t.m.getAccountLocked(id)
}
func (t *txMemory) ListAccountsByTutor(ctx context.Context, tutorID ledger.TutorID) ([]ledger.Account, error) {
	return t.m.listAccountsByTutorLocked(tutorID)
}
func (t *txMemory) UpdateBalance(ctx context.Context, id ledger.AccountID, balance decimal.Decimal) error {
	return t.m.updateBalanceLocked(id, balance)
}
func (t *txMemory) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	return t.m.deleteAccountLocked(id)
}
func (t *txMemory) SaveOrganization(ctx context.Context, o ledger.Organization) error {
	return t.m.saveOrganizationLocked(o)
}
func (t *txMemory) GetOrganization(ctx context.Context, id ledger.OrganizationID) (ledger.Organization, error) {
	return t.m.getOrganizationLocked(id)
}
func (t *txMemory) ListOrganizations(ctx context.Context) ([]ledger.Organization, error) {
	return t.m.listOrganizationsLocked()
}
func (t *txMemory) SaveSession(ctx context.Context, s ledger.ClassSession) error {
	return t.m.saveSessionLocked(s)
}
func (t *txMemory) GetSession(ctx context.Context, id ledger.SessionID) (ledger.ClassSession, error) {
	return t.m.getSessionLocked(id)
}
func (t *txMemory) SessionsInWindow(ctx context.Context, tutorID ledger.TutorID, w ledger.Window) ([]ledger.ClassSession, error) {
	return t.m.sessionsInWindowLocked(tutorID, w)
}
func (t *txMemory) DeleteSession(ctx context.Context, id ledger.SessionID) error {
	return t.m.deleteSessionLocked(id)
}
func (t *txMemory) AppendTransaction(ctx context.Context, tx ledger.TuitionTransaction) error {
	return t.m.appendTransactionLocked(tx)
}
func (t *txMemory) GetTransaction(ctx context.Context, id ledger.TransactionID) (ledger.TuitionTransaction, error) {
	return t.m.getTransactionLocked(id)
}
func (t *txMemory) TransactionsByAccount(ctx context.Context, id ledger.AccountID) ([]ledger.TuitionTransaction, error) {
	return t.m.transactionsByAccountLocked(id)
}
func (t *txMemory) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	return t.m.deleteTransactionLocked(id)
}
func (t *txMemory) AppendAudit(ctx context.Context, r ledger.AuditRecord) error {
	return t.m.appendAuditLocked(r)
}
func (t *txMemory) AuditByAccount(ctx context.Context, id ledger.AccountID) ([]ledger.AuditRecord, error) {
	return t.m.auditByAccountLocked(id)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Memory) SaveAccount(ctx context.Context, a ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveAccountLocked(a)
}

func (m *Memory) saveAccountLocked(a ledger.Account) error {
	m.state.accounts[a.ID] = a
	return nil
}

func (m *Memory) GetAccount(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAccountLocked(id)
}

func (m *Memory) getAccountLocked(id ledger.AccountID) (ledger.Account, error) {
	a, ok := m.state.accounts[id]
	if !ok {
		return ledger.Account{}, &ledger.NotFoundError{Entity: "account", ID: string(id)}
	}
	return a, nil
}

func (m *Memory) ListAccountsByTutor(ctx context.Context, tutorID ledger.TutorID) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAccountsByTutorLocked(tutorID)
}

func (m *Memory) listAccountsByTutorLocked(tutorID ledger.TutorID) ([]ledger.Account, error) {
	var out []ledger.Account
	for _, a := range m.state.accounts {
		if a.TutorID == tutorID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) UpdateBalance(ctx context.Context, id ledger.AccountID, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateBalanceLocked(id, balance)
}

func (m *Memory) updateBalanceLocked(id ledger.AccountID, balance decimal.Decimal) error {
	a, ok := m.state.accounts[id]
	if !ok {
		return &ledger.NotFoundError{Entity: "account", ID: string(id)}
	}
	if !a.IsIndependent() {
		return &ledger.DomainError{AccountID: id, Reason: "organization accounts carry no balance"}
	}
	a.Billing = ledger.IndependentBilling{Balance: balance}
	m.state.accounts[id] = a
	return nil
}

func (m *Memory) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteAccountLocked(id)
}

func (m *Memory) deleteAccountLocked(id ledger.AccountID) error {
	if _, ok := m.state.accounts[id]; !ok {
		return &ledger.NotFoundError{Entity: "account", ID: string(id)}
	}
	delete(m.state.accounts, id)
	for txID, tx := range m.state.transactions {
		if tx.AccountID == id {
			delete(m.state.transactions, txID)
		}
	}
	for sessionID, s := range m.state.sessions {
		if s.AccountID == id {
			delete(m.state.sessions, sessionID)
		}
	}
	m.state.audits = dropAudits(m.state.audits, func(r ledger.AuditRecord) bool {
		return r.AccountID == id
	})
	return nil
}

// =============================================================================
// ORGANIZATIONS
// =============================================================================

func (m *Memory) SaveOrganization(ctx context.Context, o ledger.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveOrganizationLocked(o)
}

func (m *Memory) saveOrganizationLocked(o ledger.Organization) error {
	m.state.organizations[o.ID] = o
	return nil
}

func (m *Memory) GetOrganization(ctx context.Context, id ledger.OrganizationID) (ledger.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getOrganizationLocked(id)
}

func (m *Memory) getOrganizationLocked(id ledger.OrganizationID) (ledger.Organization, error) {
	o, ok := m.state.organizations[id]
	if !ok {
		return ledger.Organization{}, &ledger.NotFoundError{Entity: "organization", ID: string(id)}
	}
	return o, nil
}

func (m *Memory) ListOrganizations(ctx context.Context) ([]ledger.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listOrganizationsLocked()
}

func (m *Memory) listOrganizationsLocked() ([]ledger.Organization, error) {
	var out []ledger.Organization
	for _, o := range m.state.organizations {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// =============================================================================
// SESSIONS
// =============================================================================

func (m *Memory) SaveSession(ctx context.Context, s ledger.ClassSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveSessionLocked(s)
}

func (m *Memory) saveSessionLocked(s ledger.ClassSession) error {
	m.state.sessions[s.ID] = s
	return nil
}

func (m *Memory) GetSession(ctx context.Context, id ledger.SessionID) (ledger.ClassSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getSessionLocked(id)
}

func (m *Memory) getSessionLocked(id ledger.SessionID) (ledger.ClassSession, error) {
	s, ok := m.state.sessions[id]
	if !ok {
		return ledger.ClassSession{}, &ledger.NotFoundError{Entity: "session", ID: string(id)}
	}
	return s, nil
}

func (m *Memory) SessionsInWindow(ctx context.Context, tutorID ledger.TutorID, w ledger.Window) ([]ledger.ClassSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionsInWindowLocked(tutorID, w)
}

func (m *Memory) sessionsInWindowLocked(tutorID ledger.TutorID, w ledger.Window) ([]ledger.ClassSession, error) {
	var out []ledger.ClassSession
	for _, s := range m.state.sessions {
		if s.TutorID == tutorID && w.Contains(s.Date) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) DeleteSession(ctx context.Context, id ledger.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteSessionLocked(id)
}

func (m *Memory) deleteSessionLocked(id ledger.SessionID) error {
	if _, ok := m.state.sessions[id]; !ok {
		return &ledger.NotFoundError{Entity: "session", ID: string(id)}
	}
	delete(m.state.sessions, id)
	m.state.audits = dropAudits(m.state.audits, func(r ledger.AuditRecord) bool {
		cause, ok := r.Cause.(ledger.SessionCause)
		return ok && cause.SessionID == id
	})
	return nil
}

// =============================================================================
// TRANSACTIONS (append-only)
// =============================================================================

func (m *Memory) AppendTransaction(ctx context.Context, t ledger.TuitionTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendTransactionLocked(t)
}

func (m *Memory) appendTransactionLocked(t ledger.TuitionTransaction) error {
	m.state.transactions[t.ID] = t
	return nil
}

func (m *Memory) GetTransaction(ctx context.Context, id ledger.TransactionID) (ledger.TuitionTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getTransactionLocked(id)
}

func (m *Memory) getTransactionLocked(id ledger.TransactionID) (ledger.TuitionTransaction, error) {
	t, ok := m.state.transactions[id]
	if !ok {
		return ledger.TuitionTransaction{}, &ledger.NotFoundError{Entity: "transaction", ID: string(id)}
	}
	return t, nil
}

func (m *Memory) TransactionsByAccount(ctx context.Context, id ledger.AccountID) ([]ledger.TuitionTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transactionsByAccountLocked(id)
}

func (m *Memory) transactionsByAccountLocked(id ledger.AccountID) ([]ledger.TuitionTransaction, error) {
	var out []ledger.TuitionTransaction
	for _, t := range m.state.transactions {
		if t.AccountID == id {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteTransactionLocked(id)
}

func (m *Memory) deleteTransactionLocked(id ledger.TransactionID) error {
	if _, ok := m.state.transactions[id]; !ok {
		return &ledger.NotFoundError{Entity: "transaction", ID: string(id)}
	}
	delete(m.state.transactions, id)
	m.state.audits = dropAudits(m.state.audits, func(r ledger.AuditRecord) bool {
		cause, ok := r.Cause.(ledger.TransactionCause)
		return ok && cause.TransactionID == id
	})
	return nil
}

// =============================================================================
// AUDIT TRAIL (append-only)
// =============================================================================

func (m *Memory) AppendAudit(ctx context.Context, r ledger.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendAuditLocked(r)
}

func (m *Memory) appendAuditLocked(r ledger.AuditRecord) error {
	m.state.audits = append(m.state.audits, r)
	return nil
}

func (m *Memory) AuditByAccount(ctx context.Context, id ledger.AccountID) ([]ledger.AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.auditByAccountLocked(id)
}

func (m *Memory) auditByAccountLocked(id ledger.AccountID) ([]ledger.AuditRecord, error) {
	var out []ledger.AuditRecord
	for _, r := range m.state.audits {
		if r.AccountID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func dropAudits(records []ledger.AuditRecord, match func(ledger.AuditRecord) bool) []ledger.AuditRecord {
	kept := make([]ledger.AuditRecord, 0, len(records))
	for _, r := range records {
		if !match(r) {
			kept = append(kept, r)
		}
	}
	return kept
}
