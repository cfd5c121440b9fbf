/*
memory_test.go - Tests for the in-memory store

Covers the snapshot-rollback transaction boundary and the explicit
cascade cleanup on deletes.
*/
package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-in-taipei/tutors-assistant/ledger"
)

func seedAccount(t *testing.T, m *Memory, id string, balance string) {
	t.Helper()
	err := m.SaveAccount(context.Background(), ledger.Account{
		ID:         ledger.AccountID(id),
		Name:       "Amy Anderson",
		TutorID:    "tutor-1",
		HourlyRate: 900,
		Billing:    ledger.IndependentBilling{Balance: decimal.RequireFromString(balance)},
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
}

func seedLedgerHistory(t *testing.T, m *Memory, accountID string) (ledger.TransactionID, ledger.SessionID) {
	t.Helper()
	ctx := context.Background()
	day := time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)

	txID := ledger.TransactionID("tx-1")
	require.NoError(t, m.AppendTransaction(ctx, ledger.TuitionTransaction{
		ID: txID, AccountID: ledger.AccountID(accountID),
		Kind: ledger.KindPayment, Hours: 5, Amount: 4500, CreatedAt: day,
	}))

	sessID := ledger.SessionID("sess-1")
	require.NoError(t, m.SaveSession(ctx, ledger.ClassSession{
		ID: sessID, AccountID: ledger.AccountID(accountID), TutorID: "tutor-1",
		Date: day, Start: day.Add(9 * time.Hour), Finish: day.Add(10 * time.Hour),
		Status: ledger.StatusCompleted,
	}))

	require.NoError(t, m.AppendAudit(ctx, ledger.AuditRecord{
		ID: "audit-tx", AccountID: ledger.AccountID(accountID),
		Cause: ledger.TransactionCause{TransactionID: txID},
		Kind:  ledger.ChangePaymentAdd,
		Before: decimal.Zero, After: decimal.NewFromInt(5), CreatedAt: day,
	}))
	require.NoError(t, m.AppendAudit(ctx, ledger.AuditRecord{
		ID: "audit-sess", AccountID: ledger.AccountID(accountID),
		Cause: ledger.SessionCause{SessionID: sessID},
		Kind:  ledger.ChangeClassStatusDeduct,
		Before: decimal.NewFromInt(5), After: decimal.NewFromInt(4), CreatedAt: day,
	}))
	return txID, sessID
}

func TestWithTx_RollsBackAllWritesOnError(t *testing.T) {
	// GIVEN an account with a known balance
	m := NewMemory()
	ctx := context.Background()
	seedAccount(t, m, "acc-1", "5.00")
	boom := errors.New("boom")

	// WHEN the unit writes then fails
	err := m.WithTx(ctx, func(s ledger.Store) error {
		if err := s.UpdateBalance(ctx, "acc-1", decimal.NewFromInt(99)); err != nil {
			return err
		}
		if err := s.AppendTransaction(ctx, ledger.TuitionTransaction{
			ID: "tx-lost", AccountID: "acc-1", Kind: ledger.KindPayment, Hours: 1,
		}); err != nil {
			return err
		}
		return boom
	})

	// THEN every write inside the unit is undone
	require.ErrorIs(t, err, boom)

	account, err := m.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	balance, _ := account.Balance()
	assert.True(t, balance.Equal(decimal.RequireFromString("5.00")))

	_, err = m.GetTransaction(ctx, "tx-lost")
	assert.True(t, ledger.IsNotFound(err))
}

func TestWithTx_ReadsSeeOwnWrites(t *testing.T) {
	// GIVEN an empty store
	m := NewMemory()
	ctx := context.Background()
	seedAccount(t, m, "acc-1", "1.00")

	// WHEN reading back inside the same unit
	err := m.WithTx(ctx, func(s ledger.Store) error {
		if err := s.UpdateBalance(ctx, "acc-1", decimal.NewFromInt(7)); err != nil {
			return err
		}
		account, err := s.GetAccount(ctx, "acc-1")
		if err != nil {
			return err
		}
		balance, _ := account.Balance()
		assert.True(t, balance.Equal(decimal.NewFromInt(7)))
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateBalance_OrganizationAccountRejected(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SaveOrganization(ctx, ledger.Organization{ID: "org-1", Name: "Acme School"}))
	require.NoError(t, m.SaveAccount(ctx, ledger.Account{
		ID: "acc-org", Name: "Bob Brown", TutorID: "tutor-1", HourlyRate: 800,
		Billing: ledger.OrganizationBilling{OrganizationID: "org-1"},
	}))

	err := m.UpdateBalance(ctx, "acc-org", decimal.NewFromInt(5))
	assert.True(t, ledger.IsDomain(err))
}

func TestDeleteAccount_CascadesToAllDependents(t *testing.T) {
	// GIVEN an account with sessions, transactions, and audit rows
	m := NewMemory()
	ctx := context.Background()
	seedAccount(t, m, "acc-1", "4.00")
	txID, sessID := seedLedgerHistory(t, m, "acc-1")

	// WHEN deleting the account
	require.NoError(t, m.DeleteAccount(ctx, "acc-1"))

	// THEN every dependent record is gone
	_, err := m.GetAccount(ctx, "acc-1")
	assert.True(t, ledger.IsNotFound(err))
	_, err = m.GetTransaction(ctx, txID)
	assert.True(t, ledger.IsNotFound(err))
	_, err = m.GetSession(ctx, sessID)
	assert.True(t, ledger.IsNotFound(err))

	records, err := m.AuditByAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDeleteSession_RemovesOnlyItsAuditRows(t *testing.T) {
	// GIVEN ledger history caused by both a transaction and a session
	m := NewMemory()
	ctx := context.Background()
	seedAccount(t, m, "acc-1", "4.00")
	_, sessID := seedLedgerHistory(t, m, "acc-1")

	// WHEN deleting the session
	require.NoError(t, m.DeleteSession(ctx, sessID))

	// THEN the session-caused audit row is gone, the other survives
	records, err := m.AuditByAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	_, isTx := records[0].Cause.(ledger.TransactionCause)
	assert.True(t, isTx)
}

func TestDeleteTransaction_RemovesOnlyItsAuditRows(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedAccount(t, m, "acc-1", "4.00")
	txID, _ := seedLedgerHistory(t, m, "acc-1")

	require.NoError(t, m.DeleteTransaction(ctx, txID))

	records, err := m.AuditByAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	_, isSess := records[0].Cause.(ledger.SessionCause)
	assert.True(t, isSess)
}

func TestSessionsInWindow_FiltersTutorAndDates(t *testing.T) {
	// GIVEN sessions for two tutors across window edges
	m := NewMemory()
	ctx := context.Background()
	seedAccount(t, m, "acc-1", "0.00")

	add := func(id string, tutor string, day time.Time) {
		require.NoError(t, m.SaveSession(ctx, ledger.ClassSession{
			ID: ledger.SessionID(id), AccountID: "acc-1", TutorID: ledger.TutorID(tutor),
			Date: day, Start: day.Add(9 * time.Hour), Finish: day.Add(10 * time.Hour),
			Status: ledger.StatusScheduled,
		}))
	}
	add("in-1", "tutor-1", time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC))
	add("in-2", "tutor-1", time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC))
	add("out-date", "tutor-1", time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC))
	add("out-tutor", "tutor-2", time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC))

	w, err := ledger.MonthWindow(2024, 11)
	require.NoError(t, err)

	// WHEN selecting tutor-1's November sessions
	sessions, err := m.SessionsInWindow(ctx, "tutor-1", w)
	require.NoError(t, err)

	// THEN only the in-window, same-tutor sessions come back
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = string(s.ID)
	}
	assert.ElementsMatch(t, []string{"in-1", "in-2"}, ids)
}
