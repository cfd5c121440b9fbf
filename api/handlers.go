/*
handlers.go - HTTP API handlers for the tutoring ledger service

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Organizations:
    GET    /api/organizations           List organizations
    POST   /api/organizations           Register organization
    GET    /api/organizations/{id}      Get organization

  Accounts:
    GET    /api/accounts?tutor_id=...   List a tutor's accounts
    POST   /api/accounts                Provision account
    GET    /api/accounts/{id}           Get account
    DELETE /api/accounts/{id}           Delete account (cascades)
    POST   /api/accounts/{id}/transactions  Record payment/refund
    GET    /api/accounts/{id}/transactions  Transaction history
    GET    /api/accounts/{id}/audit     Audit trail

  Sessions:
    POST   /api/sessions                Schedule class session
    GET    /api/sessions/{id}           Get session
    PUT    /api/sessions/{id}/status    Transition status (drives ledger)
    DELETE /api/sessions/{id}           Delete session (cascades)

  Transactions:
    DELETE /api/transactions/{id}       Delete transaction (cascades)

  Reports:
    GET    /api/reports/earnings?tutor_id=&year=&month=
    GET    /api/reports/earnings/organizations/{id}?tutor_id=&year=&month=

ERROR HANDLING:
  Domain errors map to HTTP status by classification:
  - 400: validation errors (malformed input)
  - 404: not found
  - 422: domain rule violations (e.g. transaction on organization billing)
  - 500: everything else

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - ledger: Domain logic these handlers delegate to
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/phil-in-taipei/tutors-assistant/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     ledger.TxStore
	Processor *ledger.Processor
	Engine    *ledger.Engine
	Reporter  *ledger.Reporter

	validate *validator.Validate
}

// NewHandler creates a handler wired to the given store and ledger config.
func NewHandler(store ledger.TxStore, cfg ledger.Config) *Handler {
	return &Handler{
		Store:     store,
		Processor: ledger.NewProcessor(store, cfg),
		Engine:    ledger.NewEngine(store),
		Reporter:  ledger.NewReporter(store),
		validate:  validator.New(),
	}
}

func (h *Handler) decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &ledger.ValidationError{Field: "body", Reason: "invalid JSON"}
	}
	if err := h.validate.Struct(dst); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return &ledger.ValidationError{Field: errs[0].Field(), Reason: "failed " + errs[0].Tag() + " validation"}
		}
		return &ledger.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

// =============================================================================
// ORGANIZATION HANDLERS
// =============================================================================

// ListOrganizations returns all registered organizations.
func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.Store.ListOrganizations(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]OrganizationDTO, len(orgs))
	for i, o := range orgs {
		dtos[i] = toOrganizationDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateOrganization registers a new organization.
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	org := ledger.Organization{
		ID:        ledger.OrganizationID(uuid.NewString()),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.SaveOrganization(r.Context(), org); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrganizationDTO(org))
}

// GetOrganization returns a single organization.
func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	id := ledger.OrganizationID(chi.URLParam(r, "id"))

	org, err := h.Store.GetOrganization(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrganizationDTO(org))
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns a tutor's accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	tutorID := r.URL.Query().Get("tutor_id")
	if tutorID == "" {
		writeDomainError(w, &ledger.ValidationError{Field: "tutor_id", Reason: "required query parameter"})
		return
	}

	accounts, err := h.Store.ListAccountsByTutor(r.Context(), ledger.TutorID(tutorID))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount provisions a student account. An organization_id in the
// request selects organization billing; otherwise the account starts
// independent with a zero hour balance.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Processor.Config().ValidateRate(req.HourlyRate); err != nil {
		writeDomainError(w, err)
		return
	}

	account := ledger.Account{
		ID:         ledger.AccountID(uuid.NewString()),
		Name:       req.Name,
		TutorID:    ledger.TutorID(req.TutorID),
		HourlyRate: req.HourlyRate,
		CreatedAt:  time.Now().UTC(),
	}
	if req.OrganizationID != nil {
		orgID := ledger.OrganizationID(*req.OrganizationID)
		if _, err := h.Store.GetOrganization(r.Context(), orgID); err != nil {
			writeDomainError(w, err)
			return
		}
		account.Billing = ledger.OrganizationBilling{OrganizationID: orgID}
	} else {
		account.Billing = ledger.IndependentBilling{}
	}

	if err := h.Store.SaveAccount(r.Context(), account); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(account))
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	account, err := h.Store.GetAccount(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// DeleteAccount removes an account along with its sessions, transactions,
// and audit records.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteAccount(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ApplyTransaction records a payment or refund against an account's
// purchased-hours balance.
func (h *Handler) ApplyTransaction(w http.ResponseWriter, r *http.Request) {
	accountID := ledger.AccountID(chi.URLParam(r, "id"))

	var req TuitionTransactionRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	tx, newBalance, err := h.Processor.ApplyTuitionTransaction(
		r.Context(), accountID, ledger.TransactionKind(req.Kind), req.Hours)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, TransactionResponseDTO{
		Transaction: toTransactionDTO(tx),
		NewBalance:  newBalance.InexactFloat64(),
	})
}

// ListTransactions returns an account's transaction history.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := ledger.AccountID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetAccount(r.Context(), accountID); err != nil {
		writeDomainError(w, err)
		return
	}
	txs, err := h.Store.TransactionsByAccount(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeleteTransaction removes a transaction and its audit records.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := ledger.TransactionID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteTransaction(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAudit returns an account's audit trail in chronological order.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	accountID := ledger.AccountID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetAccount(r.Context(), accountID); err != nil {
		writeDomainError(w, err)
		return
	}
	records, err := h.Store.AuditByAccount(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]AuditRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toAuditRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// CreateSession schedules a class session. New sessions always start in
// the scheduled status; ledger effects happen on later transitions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeDomainError(w, &ledger.ValidationError{Field: "date", Reason: "want YYYY-MM-DD"})
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeDomainError(w, &ledger.ValidationError{Field: "start", Reason: "want RFC3339 timestamp"})
		return
	}
	finish, err := time.Parse(time.RFC3339, req.Finish)
	if err != nil {
		writeDomainError(w, &ledger.ValidationError{Field: "finish", Reason: "want RFC3339 timestamp"})
		return
	}
	if !finish.After(start) {
		writeDomainError(w, &ledger.ValidationError{Field: "finish", Reason: "must be after start"})
		return
	}

	if _, err := h.Store.GetAccount(r.Context(), ledger.AccountID(req.AccountID)); err != nil {
		writeDomainError(w, err)
		return
	}

	session := ledger.ClassSession{
		ID:        ledger.SessionID(uuid.NewString()),
		AccountID: ledger.AccountID(req.AccountID),
		TutorID:   ledger.TutorID(req.TutorID),
		Date:      date,
		Start:     start,
		Finish:    finish,
		Status:    ledger.StatusScheduled,
		Notes:     req.Notes,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.SaveSession(r.Context(), session); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(session))
}

// GetSession returns a single session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := ledger.SessionID(chi.URLParam(r, "id"))

	session, err := h.Store.GetSession(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(session))
}

// UpdateStatus transitions a session to a new status and applies the
// resulting ledger effect, if any.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := ledger.SessionID(chi.URLParam(r, "id"))

	var req UpdateStatusRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	session, effect, err := h.Engine.TransitionClassStatus(
		r.Context(), id, ledger.SessionStatus(req.Status), req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := StatusChangeResponseDTO{
		Session:      toSessionDTO(session),
		LedgerEffect: ledger.EffectNone.String(),
	}
	if effect != nil {
		resp.LedgerEffect = effect.Effect.String()
		hours := effect.Hours.InexactFloat64()
		before := effect.Before.InexactFloat64()
		after := effect.After.InexactFloat64()
		resp.Hours = &hours
		resp.BalanceBefore = &before
		resp.BalanceAfter = &after
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteSession removes a session and its audit records.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := ledger.SessionID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteSession(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

func reportParams(r *http.Request) (ledger.TutorID, ledger.Window, error) {
	q := r.URL.Query()
	tutorID := q.Get("tutor_id")
	if tutorID == "" {
		return "", ledger.Window{}, &ledger.ValidationError{Field: "tutor_id", Reason: "required query parameter"}
	}
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		return "", ledger.Window{}, &ledger.ValidationError{Field: "year", Reason: "want integer"}
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil {
		return "", ledger.Window{}, &ledger.ValidationError{Field: "month", Reason: "want integer"}
	}
	w, err := ledger.MonthWindow(year, month)
	if err != nil {
		return "", ledger.Window{}, err
	}
	return ledger.TutorID(tutorID), w, nil
}

// EarningsReport returns a tutor's monthly earnings grouped by
// organization, with freelance accounts listed after organizations.
func (h *Handler) EarningsReport(w http.ResponseWriter, r *http.Request) {
	tutorID, window, err := reportParams(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	report, err := h.Reporter.GenerateEarningsReport(r.Context(), tutorID, window)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// OrganizationEarningsReport returns the earnings slice for a single
// organization.
func (h *Handler) OrganizationEarningsReport(w http.ResponseWriter, r *http.Request) {
	orgID := ledger.OrganizationID(chi.URLParam(r, "id"))
	tutorID, window, err := reportParams(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	report, err := h.Reporter.GenerateEarningsReportForOrganization(r.Context(), tutorID, orgID, window)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrganizationReportDTO(report))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeDomainError maps ledger error classes to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsValidation(err):
		writeError(w, http.StatusBadRequest, "validation failed", err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err)
	case ledger.IsDomain(err):
		writeError(w, http.StatusUnprocessableEntity, "domain rule violation", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
