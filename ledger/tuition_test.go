/*
tuition_test.go - Tests for the ledger transaction processor

Covers the atomic payment/refund unit: balance math, amount derivation,
audit completeness, input validation, negative balances, and the
concurrency guarantee under parallel writers.
*/
package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-in-taipei/tutors-assistant/ledger"
	"github.com/phil-in-taipei/tutors-assistant/ledger/store"
)

func newIndependentAccount(t *testing.T, mem *store.Memory, id, balance string, rate int64) {
	t.Helper()
	err := mem.SaveAccount(context.Background(), ledger.Account{
		ID:         ledger.AccountID(id),
		Name:       "Amy Anderson",
		TutorID:    "tutor-1",
		HourlyRate: rate,
		Billing:    ledger.IndependentBilling{Balance: decimal.RequireFromString(balance)},
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
}

func accountBalance(t *testing.T, mem *store.Memory, id string) decimal.Decimal {
	t.Helper()
	account, err := mem.GetAccount(context.Background(), ledger.AccountID(id))
	require.NoError(t, err)
	balance, ok := account.Balance()
	require.True(t, ok)
	return balance
}

func TestApplyTuitionTransaction_PaymentAddsHours(t *testing.T) {
	// GIVEN an independent account with 2.50 hours at rate 900
	mem := store.NewMemory()
	newIndependentAccount(t, mem, "acc-1", "2.50", 900)
	p := ledger.NewProcessor(mem, ledger.Config{})

	// WHEN applying a 10 hour payment
	tx, after, err := p.ApplyTuitionTransaction(context.Background(), "acc-1", ledger.KindPayment, 10)

	// THEN the balance grows by exactly the hour quantity
	require.NoError(t, err)
	assert.True(t, after.Equal(decimal.RequireFromString("12.50")))
	assert.True(t, accountBalance(t, mem, "acc-1").Equal(after))

	// AND the amount is hours times the account's hourly rate
	assert.Equal(t, int64(9000), tx.Amount)
	assert.Equal(t, ledger.KindPayment, tx.Kind)
	assert.Equal(t, int64(10), tx.Hours)
}

func TestApplyTuitionTransaction_RefundDeductsHours(t *testing.T) {
	// GIVEN an account with 8.00 hours
	mem := store.NewMemory()
	newIndependentAccount(t, mem, "acc-1", "8.00", 750)
	p := ledger.NewProcessor(mem, ledger.Config{})

	// WHEN refunding 3 hours
	tx, after, err := p.ApplyTuitionTransaction(context.Background(), "acc-1", ledger.KindRefund, 3)

	// THEN the balance shrinks and the signed view reflects the direction
	require.NoError(t, err)
	assert.True(t, after.Equal(decimal.RequireFromString("5.00")))
	assert.True(t, tx.SignedHours().Equal(decimal.NewFromInt(-3)))
	assert.Equal(t, int64(2250), tx.Amount)
}

func TestApplyTuitionTransaction_WritesOneAuditRecord(t *testing.T) {
	// GIVEN a fresh account
	mem := store.NewMemory()
	newIndependentAccount(t, mem, "acc-1", "1.00", 900)
	p := ledger.NewProcessor(mem, ledger.Config{})
	ctx := context.Background()

	// WHEN one payment is applied
	tx, _, err := p.ApplyTuitionTransaction(ctx, "acc-1", ledger.KindPayment, 4)
	require.NoError(t, err)

	// THEN exactly one audit record exists, referencing the transaction,
	// with after - before equal to the applied delta
	records, err := mem.AuditByAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, ledger.ChangePaymentAdd, rec.Kind)
	assert.True(t, rec.Before.Equal(decimal.RequireFromString("1.00")))
	assert.True(t, rec.After.Equal(decimal.RequireFromString("5.00")))
	assert.True(t, rec.Delta().Equal(decimal.NewFromInt(4)))

	cause, ok := rec.Cause.(ledger.TransactionCause)
	require.True(t, ok)
	assert.Equal(t, tx.ID, cause.TransactionID)
}

func TestApplyTuitionTransaction_ValidationFailures(t *testing.T) {
	mem := store.NewMemory()
	newIndependentAccount(t, mem, "acc-1", "0.00", 900)
	p := ledger.NewProcessor(mem, ledger.Config{MaxHoursPerTransaction: 50})
	ctx := context.Background()

	tests := []struct {
		name  string
		kind  ledger.TransactionKind
		hours int64
	}{
		{"unknown kind", "gift", 1},
		{"zero hours", ledger.KindPayment, 0},
		{"negative hours", ledger.KindPayment, -5},
		{"over the cap", ledger.KindPayment, 51},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := p.ApplyTuitionTransaction(ctx, "acc-1", tt.kind, tt.hours)
			assert.True(t, ledger.IsValidation(err))
		})
	}

	// Nothing was written.
	txs, err := mem.TransactionsByAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestApplyTuitionTransaction_OrganizationAccountRejected(t *testing.T) {
	// GIVEN an organization-billed account
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.SaveOrganization(ctx, ledger.Organization{ID: "org-1", Name: "Acme School"}))
	require.NoError(t, mem.SaveAccount(ctx, ledger.Account{
		ID:         "acc-org",
		Name:       "Bob Brown",
		TutorID:    "tutor-1",
		HourlyRate: 800,
		Billing:    ledger.OrganizationBilling{OrganizationID: "org-1"},
	}))
	p := ledger.NewProcessor(mem, ledger.Config{})

	// WHEN applying a payment
	_, _, err := p.ApplyTuitionTransaction(ctx, "acc-org", ledger.KindPayment, 5)

	// THEN the domain rule rejects it and no ledger rows appear
	assert.True(t, ledger.IsDomain(err))
	records, aerr := mem.AuditByAccount(ctx, "acc-org")
	require.NoError(t, aerr)
	assert.Empty(t, records)
}

func TestApplyTuitionTransaction_UnknownAccount(t *testing.T) {
	p := ledger.NewProcessor(store.NewMemory(), ledger.Config{})
	_, _, err := p.ApplyTuitionTransaction(context.Background(), "missing", ledger.KindPayment, 1)
	assert.True(t, ledger.IsNotFound(err))
}

func TestApplyTuitionTransaction_NegativeBalanceAllowedByDefault(t *testing.T) {
	// GIVEN a balance smaller than the refund
	mem := store.NewMemory()
	newIndependentAccount(t, mem, "acc-1", "2.00", 900)
	p := ledger.NewProcessor(mem, ledger.Config{})

	// WHEN refunding more than is available
	_, after, err := p.ApplyTuitionTransaction(context.Background(), "acc-1", ledger.KindRefund, 5)

	// THEN the balance goes negative rather than failing
	require.NoError(t, err)
	assert.True(t, after.Equal(decimal.RequireFromString("-3.00")))
}

func TestApplyTuitionTransaction_BalanceFloorRejectsOverdraft(t *testing.T) {
	// GIVEN the floor flag on
	mem := store.NewMemory()
	newIndependentAccount(t, mem, "acc-1", "2.00", 900)
	p := ledger.NewProcessor(mem, ledger.Config{EnforceBalanceFloor: true})

	// WHEN refunding past zero
	_, _, err := p.ApplyTuitionTransaction(context.Background(), "acc-1", ledger.KindRefund, 5)

	// THEN the refund is rejected and the balance is untouched
	assert.True(t, ledger.IsDomain(err))
	assert.True(t, accountBalance(t, mem, "acc-1").Equal(decimal.RequireFromString("2.00")))
}

func TestApplyTuitionTransaction_ConcurrentWritersSerialize(t *testing.T) {
	// GIVEN many goroutines paying the same account
	mem := store.NewMemory()
	newIndependentAccount(t, mem, "acc-1", "0.00", 900)
	p := ledger.NewProcessor(mem, ledger.Config{})
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := p.ApplyTuitionTransaction(ctx, "acc-1", ledger.KindPayment, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// THEN no update is lost and the audit trail is complete
	assert.True(t, accountBalance(t, mem, "acc-1").Equal(decimal.NewFromInt(writers)))

	records, err := mem.AuditByAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, records, writers)
	for _, rec := range records {
		assert.True(t, rec.Delta().Equal(decimal.NewFromInt(1)))
	}
}
