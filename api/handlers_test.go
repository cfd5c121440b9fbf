/*
handlers_test.go - HTTP-level tests for the API

Tests run against the full chi router with an in-memory store, covering:
- Error mapping (400 validation, 404 not found, 422 domain)
- The transaction and status-transition flows end to end
- Earnings report JSON shape
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-in-taipei/tutors-assistant/ledger"
	"github.com/phil-in-taipei/tutors-assistant/ledger/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	h := NewHandler(mem, ledger.Config{})
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, mem
}

func seedIndependentAccount(t *testing.T, mem *store.Memory, id string, balance string) {
	t.Helper()
	err := mem.SaveAccount(context.Background(), ledger.Account{
		ID:         ledger.AccountID(id),
		Name:       "Amy Anderson",
		TutorID:    "tutor-1",
		HourlyRate: 900,
		Billing:    ledger.IndependentBilling{Balance: decimal.RequireFromString(balance)},
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestApplyTransaction_PaymentAddsHours(t *testing.T) {
	// GIVEN an independent account with a 2.00 hour balance
	srv, mem := newTestServer(t)
	seedIndependentAccount(t, mem, "acc-1", "2.00")

	// WHEN posting a 10 hour payment
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/accounts/acc-1/transactions",
		TuitionTransactionRequest{Kind: "payment", Hours: 10})

	// THEN the balance grows and the amount reflects hours times rate
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody[TransactionResponseDTO](t, resp)
	assert.Equal(t, int64(9000), body.Transaction.Amount)
	assert.InDelta(t, 12.0, body.NewBalance, 0.001)
}

func TestApplyTransaction_UnknownAccountIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/accounts/nope/transactions",
		TuitionTransactionRequest{Kind: "payment", Hours: 1})

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApplyTransaction_OrganizationAccountIs422(t *testing.T) {
	// GIVEN an organization-billed account
	srv, mem := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, mem.SaveOrganization(ctx, ledger.Organization{ID: "org-1", Name: "Acme School"}))
	require.NoError(t, mem.SaveAccount(ctx, ledger.Account{
		ID:         "acc-org",
		Name:       "Bob Brown",
		TutorID:    "tutor-1",
		HourlyRate: 800,
		Billing:    ledger.OrganizationBilling{OrganizationID: "org-1"},
	}))

	// WHEN posting a payment against it
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/accounts/acc-org/transactions",
		TuitionTransactionRequest{Kind: "payment", Hours: 1})

	// THEN the domain rule maps to 422
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestApplyTransaction_BadKindIs400(t *testing.T) {
	srv, mem := newTestServer(t)
	seedIndependentAccount(t, mem, "acc-1", "0.00")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/accounts/acc-1/transactions",
		map[string]any{"kind": "gift", "hours": 1})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateStatus_CompletedDeductsBalance(t *testing.T) {
	// GIVEN a scheduled 90 minute session for an independent account
	srv, mem := newTestServer(t)
	ctx := context.Background()
	seedIndependentAccount(t, mem, "acc-1", "10.00")
	day := time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, mem.SaveSession(ctx, ledger.ClassSession{
		ID:        "sess-1",
		AccountID: "acc-1",
		TutorID:   "tutor-1",
		Date:      day,
		Start:     day.Add(14 * time.Hour),
		Finish:    day.Add(15*time.Hour + 30*time.Minute),
		Status:    ledger.StatusScheduled,
	}))

	// WHEN marking it completed
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/sessions/sess-1/status",
		UpdateStatusRequest{Status: "completed"})

	// THEN 1.5 hours are deducted and the response reports the effect
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[StatusChangeResponseDTO](t, resp)
	assert.Equal(t, "deduct", body.LedgerEffect)
	require.NotNil(t, body.BalanceAfter)
	assert.InDelta(t, 8.5, *body.BalanceAfter, 0.001)

	account, err := mem.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	balance, ok := account.Balance()
	require.True(t, ok)
	assert.True(t, balance.Equal(decimal.RequireFromString("8.5")))
}

func TestUpdateStatus_UnknownSessionIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/sessions/nope/status",
		UpdateStatusRequest{Status: "completed"})

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateStatus_InvalidStatusIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/sessions/sess-1/status",
		map[string]any{"status": "postponed"})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateAccount_OrganizationBilling(t *testing.T) {
	// GIVEN a registered organization
	srv, mem := newTestServer(t)
	require.NoError(t, mem.SaveOrganization(context.Background(),
		ledger.Organization{ID: "org-1", Name: "Acme School"}))

	// WHEN provisioning an account under it
	orgID := "org-1"
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/accounts", CreateAccountRequest{
		Name:           "Charlie Davis",
		TutorID:        "tutor-1",
		HourlyRate:     850,
		OrganizationID: &orgID,
	})

	// THEN the account carries the organization arm and no balance
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody[AccountDTO](t, resp)
	assert.Equal(t, "organization", body.BillingCategory)
	assert.Nil(t, body.Balance)
	require.NotNil(t, body.OrganizationID)
	assert.Equal(t, "org-1", *body.OrganizationID)
}

func TestCreateAccount_UnknownOrganizationIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	orgID := "missing"
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/accounts", CreateAccountRequest{
		Name:           "Charlie Davis",
		TutorID:        "tutor-1",
		HourlyRate:     850,
		OrganizationID: &orgID,
	})

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteAccount_RemovesAuditTrail(t *testing.T) {
	// GIVEN an account with ledger history
	srv, mem := newTestServer(t)
	ctx := context.Background()
	seedIndependentAccount(t, mem, "acc-1", "0.00")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/accounts/acc-1/transactions",
		TuitionTransactionRequest{Kind: "payment", Hours: 5})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// WHEN deleting the account
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/accounts/acc-1", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// THEN the account and its audit records are gone
	_, err := mem.GetAccount(ctx, "acc-1")
	assert.True(t, ledger.IsNotFound(err))
	records, err := mem.AuditByAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEarningsReport_ShapeAndTotals(t *testing.T) {
	// GIVEN one completed freelance session in November 2024
	srv, mem := newTestServer(t)
	ctx := context.Background()
	seedIndependentAccount(t, mem, "acc-1", "10.00")
	day := time.Date(2024, 11, 12, 0, 0, 0, 0, time.UTC)
	require.NoError(t, mem.SaveSession(ctx, ledger.ClassSession{
		ID:        "sess-1",
		AccountID: "acc-1",
		TutorID:   "tutor-1",
		Date:      day,
		Start:     day.Add(9 * time.Hour),
		Finish:    day.Add(11 * time.Hour),
		Status:    ledger.StatusCompleted,
	}))

	// WHEN requesting the monthly report
	resp := doJSON(t, http.MethodGet,
		srv.URL+"/api/reports/earnings?tutor_id=tutor-1&year=2024&month=11", nil)

	// THEN the JSON carries the grouped shape with the overall total
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[ReportDTO](t, resp)
	assert.Empty(t, body.Organizations)
	require.Len(t, body.FreelanceAccounts, 1)
	assert.Equal(t, "Amy Anderson", body.FreelanceAccounts[0].Name)
	assert.InDelta(t, 2.0, body.FreelanceAccounts[0].Hours, 0.001)
	assert.InDelta(t, 1800.0, body.FreelanceAccounts[0].Total, 0.001)
	assert.InDelta(t, 1800.0, body.OverallTotal, 0.001)
}

func TestEarningsReport_BadMonthIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet,
		srv.URL+"/api/reports/earnings?tutor_id=tutor-1&year=2024&month=13", nil)

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOrganizationEarningsReport_UnknownOrgIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet,
		srv.URL+"/api/reports/earnings/organizations/missing?tutor_id=tutor-1&year=2024&month=11", nil)

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
