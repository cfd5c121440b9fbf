/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  them through Handler.validate before touching domain logic. Domain
  rules (hour caps, billing category) stay in the ledger package.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/report.go: Report structures these DTOs mirror
*/
package api

import (
	"time"

	"github.com/phil-in-taipei/tutors-assistant/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// OrganizationDTO represents an organization in API responses.
type OrganizationDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateOrganizationRequest is the request to register an organization.
type CreateOrganizationRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// AccountDTO represents a student account in API responses. Exactly one
// of balance/organization_id is present, per the billing category.
type AccountDTO struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	TutorID         string   `json:"tutor_id"`
	HourlyRate      int64    `json:"hourly_rate"`
	BillingCategory string   `json:"billing_category"`
	Balance         *float64 `json:"balance,omitempty"`
	OrganizationID  *string  `json:"organization_id,omitempty"`
	CreatedAt       string   `json:"created_at,omitempty"`
}

// CreateAccountRequest is the request to provision an account.
// OrganizationID selects organization billing; omitting it creates an
// independent account starting at a zero balance.
type CreateAccountRequest struct {
	Name           string  `json:"name" validate:"required,min=1,max=200"`
	TutorID        string  `json:"tutor_id" validate:"required"`
	HourlyRate     int64   `json:"hourly_rate" validate:"required,gt=0"`
	OrganizationID *string `json:"organization_id,omitempty"`
}

// TuitionTransactionRequest is the request to record a payment or refund.
type TuitionTransactionRequest struct {
	Kind  string `json:"kind" validate:"required,oneof=payment refund"`
	Hours int64  `json:"hours" validate:"required,gt=0"`
}

// TransactionDTO represents a recorded tuition transaction.
type TransactionDTO struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Kind      string `json:"kind"`
	Hours     int64  `json:"hours"`
	Amount    int64  `json:"amount"`
	CreatedAt string `json:"created_at,omitempty"`
}

// TransactionResponseDTO is returned after applying a transaction.
type TransactionResponseDTO struct {
	Transaction TransactionDTO `json:"transaction"`
	NewBalance  float64        `json:"new_balance"`
}

// CreateSessionRequest is the request to schedule a class session.
type CreateSessionRequest struct {
	AccountID string `json:"account_id" validate:"required"`
	TutorID   string `json:"tutor_id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Start     string `json:"start" validate:"required"`
	Finish    string `json:"finish" validate:"required"`
	Notes     string `json:"notes,omitempty" validate:"max=1000"`
}

// UpdateStatusRequest is the request to move a session to a new status.
type UpdateStatusRequest struct {
	Status string  `json:"status" validate:"required,oneof=scheduled completed same_day_cancellation cancelled"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// SessionDTO represents a class session.
type SessionDTO struct {
	ID        string  `json:"id"`
	AccountID string  `json:"account_id"`
	TutorID   string  `json:"tutor_id"`
	Date      string  `json:"date"`
	Start     string  `json:"start"`
	Finish    string  `json:"finish"`
	Status    string  `json:"status"`
	Notes     string  `json:"notes,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
	Hours     float64 `json:"hours"`
}

// StatusChangeResponseDTO is returned after a status transition. The
// ledger fields are present only when the transition touched a balance.
type StatusChangeResponseDTO struct {
	Session       SessionDTO `json:"session"`
	LedgerEffect  string     `json:"ledger_effect"`
	Hours         *float64   `json:"hours,omitempty"`
	BalanceBefore *float64   `json:"balance_before,omitempty"`
	BalanceAfter  *float64   `json:"balance_after,omitempty"`
}

// AuditRecordDTO represents one entry of an account's audit trail.
// Exactly one of transaction_id/session_id is present.
type AuditRecordDTO struct {
	ID            string  `json:"id"`
	AccountID     string  `json:"account_id"`
	TransactionID *string `json:"transaction_id,omitempty"`
	SessionID     *string `json:"session_id,omitempty"`
	ChangeKind    string  `json:"change_kind"`
	Before        float64 `json:"before"`
	After         float64 `json:"after"`
	CreatedAt     string  `json:"created_at,omitempty"`
}

// AccountEarningsDTO is one account's line in an earnings report.
type AccountEarningsDTO struct {
	Name  string  `json:"name"`
	Hours float64 `json:"hours"`
	Total float64 `json:"total"`
}

// OrganizationReportDTO groups account earnings under one organization.
type OrganizationReportDTO struct {
	OrganizationName  string               `json:"organizationName"`
	Accounts          []AccountEarningsDTO `json:"accounts"`
	OrganizationTotal float64              `json:"organizationTotal"`
}

// ReportDTO is the multi-organization earnings report. Organizations are
// listed before freelance accounts.
type ReportDTO struct {
	Organizations     []OrganizationReportDTO `json:"organizations"`
	FreelanceAccounts []AccountEarningsDTO    `json:"freelanceAccounts"`
	OverallTotal      float64                 `json:"overallTotal"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toOrganizationDTO(o ledger.Organization) OrganizationDTO {
	return OrganizationDTO{
		ID:        string(o.ID),
		Name:      o.Name,
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
	}
}

func toAccountDTO(a ledger.Account) AccountDTO {
	dto := AccountDTO{
		ID:              string(a.ID),
		Name:            a.Name,
		TutorID:         string(a.TutorID),
		HourlyRate:      a.HourlyRate,
		BillingCategory: string(a.Billing.Category()),
		CreatedAt:       a.CreatedAt.Format(time.RFC3339),
	}
	if balance, ok := a.Balance(); ok {
		v := balance.InexactFloat64()
		dto.Balance = &v
	}
	if orgID, ok := a.Organization(); ok {
		s := string(orgID)
		dto.OrganizationID = &s
	}
	return dto
}

func toTransactionDTO(t ledger.TuitionTransaction) TransactionDTO {
	return TransactionDTO{
		ID:        string(t.ID),
		AccountID: string(t.AccountID),
		Kind:      string(t.Kind),
		Hours:     t.Hours,
		Amount:    t.Amount,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
}

func toSessionDTO(s ledger.ClassSession) SessionDTO {
	return SessionDTO{
		ID:        string(s.ID),
		AccountID: string(s.AccountID),
		TutorID:   string(s.TutorID),
		Date:      s.Date.Format("2006-01-02"),
		Start:     s.Start.Format(time.RFC3339),
		Finish:    s.Finish.Format(time.RFC3339),
		Status:    string(s.Status),
		Notes:     s.Notes,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		Hours:     s.Hours().InexactFloat64(),
	}
}

func toAuditRecordDTO(r ledger.AuditRecord) AuditRecordDTO {
	dto := AuditRecordDTO{
		ID:         string(r.ID),
		AccountID:  string(r.AccountID),
		ChangeKind: string(r.Kind),
		Before:     r.Before.InexactFloat64(),
		After:      r.After.InexactFloat64(),
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
	}
	switch cause := r.Cause.(type) {
	case ledger.TransactionCause:
		s := string(cause.TransactionID)
		dto.TransactionID = &s
	case ledger.SessionCause:
		s := string(cause.SessionID)
		dto.SessionID = &s
	}
	return dto
}

func toAccountEarningsDTOs(earnings []ledger.AccountEarnings) []AccountEarningsDTO {
	dtos := make([]AccountEarningsDTO, len(earnings))
	for i, e := range earnings {
		dtos[i] = AccountEarningsDTO{
			Name:  e.Name,
			Hours: e.Hours.InexactFloat64(),
			Total: e.Total.InexactFloat64(),
		}
	}
	return dtos
}

func toOrganizationReportDTO(r ledger.OrganizationReport) OrganizationReportDTO {
	return OrganizationReportDTO{
		OrganizationName:  r.OrganizationName,
		Accounts:          toAccountEarningsDTOs(r.Accounts),
		OrganizationTotal: r.OrganizationTotal.InexactFloat64(),
	}
}

func toReportDTO(r ledger.Report) ReportDTO {
	orgs := make([]OrganizationReportDTO, len(r.Organizations))
	for i, o := range r.Organizations {
		orgs[i] = toOrganizationReportDTO(o)
	}
	return ReportDTO{
		Organizations:     orgs,
		FreelanceAccounts: toAccountEarningsDTOs(r.FreelanceAccounts),
		OverallTotal:      r.OverallTotal.InexactFloat64(),
	}
}
