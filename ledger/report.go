/*
report.go - Earnings aggregation pipeline

PURPOSE:
  Turns a window of class sessions into a grouped, sorted, totaled earnings
  report. Read-only: touches class records and accounts, never the balance
  or the audit trail.

ALGORITHM:
  1. Select sessions for the tutor with date in [start, end), ALL statuses
     (scheduled time counts toward estimated earnings - deliberate)
  2. Partition: independent accounts -> freelance bucket, organization
     accounts -> per-organization buckets
  3. Group by account; hours = sum of session durations,
     total = hours x hourly rate
  4. Sort accounts by display name (case-sensitive ordinal, account-ID
     tiebreak), organizations by name
  5. Totals roll up: organization totals, then the overall total

ORDERING NOTE:
  The combined report lists organizations before freelance accounts. That
  order is preserved source behavior; see DESIGN.md.

SEE ALSO:
  - window.go: Window selection and duration rounding
  - store.go: SessionsInWindow
*/
package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORT TYPES
// =============================================================================

// AccountEarnings is one account's line in a report bucket.
type AccountEarnings struct {
	AccountID AccountID
	Name      string
	Hours     decimal.Decimal
	Total     decimal.Decimal
}

// OrganizationReport groups one organization's accounts with a subtotal.
type OrganizationReport struct {
	OrganizationID    OrganizationID
	OrganizationName  string
	Accounts          []AccountEarnings
	OrganizationTotal decimal.Decimal
}

// Report is the full multi-organization earnings view: organization buckets
// first, then freelance (independent) accounts, then the grand total.
type Report struct {
	Organizations     []OrganizationReport
	FreelanceAccounts []AccountEarnings
	OverallTotal      decimal.Decimal
}

// =============================================================================
// REPORTER
// =============================================================================

// Reporter builds earnings reports. Read-only over the store.
type Reporter struct {
	store Store
}

func NewReporter(store Store) *Reporter {
	return &Reporter{store: store}
}

// GenerateEarningsReport aggregates the tutor's sessions in the window into
// the multi-organization report. An empty window yields a well-formed empty
// report with zero totals.
func (r *Reporter) GenerateEarningsReport(ctx context.Context, tutorID TutorID, w Window) (Report, error) {
	sessions, err := r.store.SessionsInWindow(ctx, tutorID, w)
	if err != nil {
		return Report{}, err
	}

	hoursByAccount, accounts, err := r.sumHours(ctx, sessions)
	if err != nil {
		return Report{}, err
	}

	// Partition into freelance and per-organization buckets.
	freelance := []AccountEarnings{}
	byOrg := make(map[OrganizationID][]AccountEarnings)
	for id, hours := range hoursByAccount {
		account := accounts[id]
		line := AccountEarnings{
			AccountID: id,
			Name:      account.Name,
			Hours:     hours,
			Total:     hours.Mul(decimal.NewFromInt(account.HourlyRate)),
		}
		if orgID, ok := account.Organization(); ok {
			byOrg[orgID] = append(byOrg[orgID], line)
		} else {
			freelance = append(freelance, line)
		}
	}
	sortEarnings(freelance)

	organizations := []OrganizationReport{}
	for orgID, lines := range byOrg {
		org, err := r.store.GetOrganization(ctx, orgID)
		if err != nil {
			return Report{}, err
		}
		sortEarnings(lines)
		organizations = append(organizations, OrganizationReport{
			OrganizationID:    orgID,
			OrganizationName:  org.Name,
			Accounts:          lines,
			OrganizationTotal: sumTotals(lines),
		})
	}
	sort.Slice(organizations, func(i, j int) bool {
		a, b := organizations[i], organizations[j]
		if a.OrganizationName != b.OrganizationName {
			return a.OrganizationName < b.OrganizationName
		}
		return a.OrganizationID < b.OrganizationID
	})

	overall := sumTotals(freelance)
	for _, org := range organizations {
		overall = overall.Add(org.OrganizationTotal)
	}

	return Report{
		Organizations:     organizations,
		FreelanceAccounts: freelance,
		OverallTotal:      overall,
	}, nil
}

// GenerateEarningsReportForOrganization aggregates the same way restricted
// to one organization, returning its sub-report directly. Fails with
// NotFoundError when the organization does not exist.
func (r *Reporter) GenerateEarningsReportForOrganization(ctx context.Context, tutorID TutorID, orgID OrganizationID, w Window) (OrganizationReport, error) {
	org, err := r.store.GetOrganization(ctx, orgID)
	if err != nil {
		return OrganizationReport{}, err
	}

	sessions, err := r.store.SessionsInWindow(ctx, tutorID, w)
	if err != nil {
		return OrganizationReport{}, err
	}

	hoursByAccount, accounts, err := r.sumHours(ctx, sessions)
	if err != nil {
		return OrganizationReport{}, err
	}

	lines := []AccountEarnings{}
	for id, hours := range hoursByAccount {
		account := accounts[id]
		owner, ok := account.Organization()
		if !ok || owner != orgID {
			continue
		}
		lines = append(lines, AccountEarnings{
			AccountID: id,
			Name:      account.Name,
			Hours:     hours,
			Total:     hours.Mul(decimal.NewFromInt(account.HourlyRate)),
		})
	}
	sortEarnings(lines)

	return OrganizationReport{
		OrganizationID:    orgID,
		OrganizationName:  org.Name,
		Accounts:          lines,
		OrganizationTotal: sumTotals(lines),
	}, nil
}

// sumHours totals session durations per account and resolves each account
// once.
func (r *Reporter) sumHours(ctx context.Context, sessions []ClassSession) (map[AccountID]decimal.Decimal, map[AccountID]Account, error) {
	hours := make(map[AccountID]decimal.Decimal)
	accounts := make(map[AccountID]Account)
	for _, s := range sessions {
		if _, seen := accounts[s.AccountID]; !seen {
			account, err := r.store.GetAccount(ctx, s.AccountID)
			if err != nil {
				return nil, nil, err
			}
			accounts[s.AccountID] = account
			hours[s.AccountID] = decimal.Zero
		}
		hours[s.AccountID] = hours[s.AccountID].Add(s.Hours())
	}
	return hours, accounts, nil
}

// sortEarnings orders lines by display name, case-sensitive, with the
// account ID breaking ties for determinism.
func sortEarnings(lines []AccountEarnings) {
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Name != lines[j].Name {
			return lines[i].Name < lines[j].Name
		}
		return lines[i].AccountID < lines[j].AccountID
	})
}

func sumTotals(lines []AccountEarnings) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total)
	}
	return total
}
