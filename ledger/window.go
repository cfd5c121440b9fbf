/*
window.go - Time windows and duration arithmetic

PURPOSE:
  Defines the half-open reporting window [Start, End) used by the earnings
  pipeline, the month/year convenience constructor, and the single rounding
  rule for converting wall-clock session time into fixed-point hours.

ROUNDING RULE:
  Hours are a fixed-point decimal with two fractional digits, rounded to the
  nearest 0.01 (half away from zero). 1h30m -> 1.5, 50m -> 0.83. The rule
  lives here and only here so every balance adjustment and report total
  agrees.

SEE ALSO:
  - report.go: Selects sessions by window
  - transition.go: Uses HoursBetween for balance deltas
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WINDOW - Half-open [Start, End)
// =============================================================================

// Window is a half-open date range: Start is inclusive, End exclusive.
// A session dated on End is NOT in the window.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the calendar date t falls inside the window.
// Only the date portion is compared; time-of-day is ignored.
func (w Window) Contains(t time.Time) bool {
	d := dateOnly(t)
	return !d.Before(dateOnly(w.Start)) && d.Before(dateOnly(w.End))
}

func (w Window) String() string {
	return "[" + w.Start.Format("2006-01-02") + ", " + w.End.Format("2006-01-02") + ")"
}

// NewWindow builds an explicit window. End must not precede Start.
func NewWindow(start, end time.Time) (Window, error) {
	if end.Before(start) {
		return Window{}, &ValidationError{Field: "window", Reason: "end precedes start"}
	}
	return Window{Start: dateOnly(start), End: dateOnly(end)}, nil
}

// MonthWindow translates a month+year into [yyyy-mm-01, next month 01).
// Invalid months and non-positive years fail fast rather than letting
// time.Date wrap them silently.
func MonthWindow(year int, month int) (Window, error) {
	if month < 1 || month > 12 {
		return Window{}, &ValidationError{Field: "month", Reason: "must be between 1 and 12"}
	}
	if year < 1 {
		return Window{}, &ValidationError{Field: "year", Reason: "must be positive"}
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// DURATION -> HOURS
// =============================================================================

var minutesPerHour = decimal.NewFromInt(60)

// HoursBetween converts a start/finish pair to fixed-point hours, rounded
// to the nearest 0.01. Finish before start yields a negative value; the
// caller decides whether that is acceptable.
func HoursBetween(start, finish time.Time) decimal.Decimal {
	minutes := decimal.NewFromFloat(finish.Sub(start).Minutes())
	return minutes.Div(minutesPerHour).Round(2)
}
