/*
Package ledger provides the purchased-hours ledger and earnings engine.

PURPOSE:
  This package contains the core domain types and algorithms for a tutoring
  business: prepaid class-hour balances, the transactions that change them,
  the audit trail proving every change, and the aggregation pipeline that
  turns class activity into earnings reports.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: A billable party, either independent (prepaid balance) or
    organization-affiliated (billed per session by the school)
  - TuitionTransaction: An immutable payment/refund event
  - ClassSession: One scheduled or completed teaching session
  - AuditRecord: Immutable proof of a single balance change

DESIGN PRINCIPLES:
  1. Immutability: Transactions and audit records are never modified
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Either/or fields (balance vs. organization, transaction
     cause vs. session cause) are sum types, not nullable pairs
  4. Auditability: Every balance change carries before/after values

SEE ALSO:
  - tuition.go: Payment/refund processing
  - transition.go: Class-status state machine
  - report.go: Earnings aggregation
  - store.go: Persistence interfaces
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type OrganizationID string
type SessionID string
type TransactionID string
type AuditRecordID string
type TutorID string

// =============================================================================
// BILLING - Sum type: independent (balance) XOR organization-affiliated
// =============================================================================

type BillingCategory string

const (
	CategoryOrganization BillingCategory = "organization"
	CategoryIndependent  BillingCategory = "independent"
)

// Billing is the either/or arm of an Account. Exactly one concrete type
// exists per account: IndependentBilling carries a prepaid balance,
// OrganizationBilling carries the owning organization.
//
// The marker method is unexported so no third arm can be defined outside
// this package.
type Billing interface {
	Category() BillingCategory
	billing()
}

// IndependentBilling tracks a prepaid hour balance. Two fractional digits;
// never clamped, so refunds can drive it negative (see tuition.go).
type IndependentBilling struct {
	Balance decimal.Decimal
}

func (IndependentBilling) Category() BillingCategory { return CategoryIndependent }
func (IndependentBilling) billing()                  {}

// OrganizationBilling marks an account billed per session by its school.
// No balance exists for these accounts.
type OrganizationBilling struct {
	OrganizationID OrganizationID
}

func (OrganizationBilling) Category() BillingCategory { return CategoryOrganization }
func (OrganizationBilling) billing()                  {}

// =============================================================================
// ACCOUNT - A billable party
// =============================================================================

type Account struct {
	ID         AccountID
	Name       string // display name, used for report sorting
	TutorID    TutorID
	HourlyRate int64 // currency units per hour, positive, bounded by config
	Billing    Billing
	CreatedAt  time.Time
}

// IsIndependent reports whether the account tracks a prepaid balance.
func (a Account) IsIndependent() bool {
	_, ok := a.Billing.(IndependentBilling)
	return ok
}

// Balance returns the prepaid balance. ok is false for organization accounts.
func (a Account) Balance() (decimal.Decimal, bool) {
	b, ok := a.Billing.(IndependentBilling)
	return b.Balance, ok
}

// Organization returns the owning organization. ok is false for independent
// accounts.
func (a Account) Organization() (OrganizationID, bool) {
	b, ok := a.Billing.(OrganizationBilling)
	return b.OrganizationID, ok
}

// Organization is a school whose classes are billed per session.
type Organization struct {
	ID        OrganizationID
	Name      string
	CreatedAt time.Time
}

// =============================================================================
// TUITION TRANSACTION - One payment or refund event
// =============================================================================

type TransactionKind string

const (
	KindPayment TransactionKind = "payment" // adds purchased hours
	KindRefund  TransactionKind = "refund"  // removes purchased hours
)

// TuitionTransaction records one payment or refund against an independent
// account. Amount is computed at creation (hours x hourly rate) and is
// immutable thereafter.
type TuitionTransaction struct {
	ID        TransactionID
	AccountID AccountID
	Kind      TransactionKind
	Hours     int64 // positive integer hour quantity
	Amount    int64 // Hours x Account.HourlyRate, fixed at creation
	CreatedAt time.Time
}

// SignedHours returns the hour delta this transaction applies to a balance:
// positive for payments, negative for refunds.
func (t TuitionTransaction) SignedHours() decimal.Decimal {
	h := decimal.NewFromInt(t.Hours)
	if t.Kind == KindRefund {
		return h.Neg()
	}
	return h
}

// =============================================================================
// CLASS SESSION - One teaching session
// =============================================================================

type SessionStatus string

const (
	StatusScheduled           SessionStatus = "scheduled"
	StatusCompleted           SessionStatus = "completed"
	StatusSameDayCancellation SessionStatus = "same_day_cancellation"
	StatusCancelled           SessionStatus = "cancelled"
)

// ValidStatus reports whether s is one of the four session statuses.
func ValidStatus(s SessionStatus) bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusSameDayCancellation, StatusCancelled:
		return true
	}
	return false
}

// ClassSession is one scheduled or completed teaching session.
// Duration = Finish - Start; zero durations are legal, and negative
// durations are not prevented at this layer.
type ClassSession struct {
	ID        SessionID
	AccountID AccountID
	TutorID   TutorID
	Date      time.Time // calendar date (time-of-day ignored for windowing)
	Start     time.Time
	Finish    time.Time
	Status    SessionStatus
	Notes     string
	CreatedAt time.Time
}

// Hours returns the session duration in hours, rounded to the nearest 0.01.
func (s ClassSession) Hours() decimal.Decimal {
	return HoursBetween(s.Start, s.Finish)
}

// =============================================================================
// AUDIT RECORD - Immutable proof of one balance change
// =============================================================================

type ChangeKind string

const (
	ChangePaymentAdd        ChangeKind = "payment_add"
	ChangeRefundDeduct      ChangeKind = "refund_deduct"
	ChangeClassStatusAdd    ChangeKind = "class_status_add"
	ChangeClassStatusDeduct ChangeKind = "class_status_deduct"
)

// AuditCause identifies the event that caused a balance change: exactly one
// of a tuition transaction or a class session. Sum type, same construction
// as Billing.
type AuditCause interface {
	auditCause()
}

type TransactionCause struct {
	TransactionID TransactionID
}

func (TransactionCause) auditCause() {}

type SessionCause struct {
	SessionID SessionID
}

func (SessionCause) auditCause() {}

// AuditRecord proves a single balance change. Append-only: never updated,
// removed only as explicit cleanup when its cause or account is deleted.
//
// Invariant: After = Before + signed delta, where the delta is the
// transaction's hour quantity or the session's duration, sign per Kind.
type AuditRecord struct {
	ID        AuditRecordID
	AccountID AccountID
	Cause     AuditCause
	Kind      ChangeKind
	Before    decimal.Decimal
	After     decimal.Decimal
	CreatedAt time.Time
}

// Delta returns After - Before.
func (r AuditRecord) Delta() decimal.Decimal {
	return r.After.Sub(r.Before)
}
