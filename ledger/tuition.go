/*
tuition.go - Ledger transaction processor (payments and refunds)

PURPOSE:
  Applies a payment or refund to an independent account's prepaid balance.
  One call produces exactly one balance write, one transaction row, and one
  audit row, committed as a single atomic unit.

FLOW:
  1. Validate hour quantity (positive, <= configured cap)
  2. Serialize on the account (per-account lock)
  3. Inside WithTx:
     a. Load account, reject organization-affiliated (DomainError)
     b. before = balance; amount = hours x hourly rate
     c. after = before + hours (payment) or before - hours (refund)
     d. Persist balance, append transaction, append audit record
  4. If the committed balance is negative, log a warning

NEGATIVE BALANCES:
  A refund larger than the current balance drives the balance negative.
  This is preserved source behavior, not clamped. Callers who want a hard
  floor set Config.EnforceBalanceFloor; everyone else gets a log warning
  so the condition stays observable.

SEE ALSO:
  - transition.go: The other balance-mutating component
  - store.go: WithTx contract
*/
package ledger

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// CONFIG
// =============================================================================

// Config bounds the ledger's inputs.
type Config struct {
	// MaxHoursPerTransaction caps a single payment/refund. Zero means
	// DefaultMaxHours.
	MaxHoursPerTransaction int64

	// MinHourlyRate/MaxHourlyRate bound account rates at provisioning.
	// Zero values mean the defaults.
	MinHourlyRate int64
	MaxHourlyRate int64

	// EnforceBalanceFloor rejects refunds that would drive the balance
	// below zero instead of allowing the (observable) negative balance.
	EnforceBalanceFloor bool
}

const (
	DefaultMaxHours      = 100
	DefaultMinHourlyRate = 1
	DefaultMaxHourlyRate = 100000
)

func (c Config) maxHours() int64 {
	if c.MaxHoursPerTransaction > 0 {
		return c.MaxHoursPerTransaction
	}
	return DefaultMaxHours
}

func (c Config) rateBounds() (int64, int64) {
	lo, hi := c.MinHourlyRate, c.MaxHourlyRate
	if lo <= 0 {
		lo = DefaultMinHourlyRate
	}
	if hi <= 0 {
		hi = DefaultMaxHourlyRate
	}
	return lo, hi
}

// ValidateRate checks an hourly rate against the configured range.
func (c Config) ValidateRate(rate int64) error {
	lo, hi := c.rateBounds()
	if rate < lo || rate > hi {
		return &ValidationError{Field: "hourly_rate", Reason: "outside configured range"}
	}
	return nil
}

// =============================================================================
// PROCESSOR
// =============================================================================

// Processor applies tuition transactions to independent accounts.
type Processor struct {
	store  TxStore
	config Config
	locks  *accountLocks
}

func NewProcessor(store TxStore, config Config) *Processor {
	return &Processor{store: store, config: config, locks: newAccountLocks()}
}

// Config returns the policy knobs the processor runs with.
func (p *Processor) Config() Config {
	return p.config
}

// ApplyTuitionTransaction applies a payment or refund of the given hour
// quantity and returns the created transaction and the updated balance.
//
// Fails with ValidationError when hours is out of range, DomainError when
// the account is organization-affiliated, NotFoundError when the account
// does not exist.
func (p *Processor) ApplyTuitionTransaction(ctx context.Context, accountID AccountID, kind TransactionKind, hours int64) (TuitionTransaction, decimal.Decimal, error) {
	if kind != KindPayment && kind != KindRefund {
		return TuitionTransaction{}, decimal.Zero, &ValidationError{Field: "kind", Reason: "must be payment or refund"}
	}
	if hours <= 0 {
		return TuitionTransaction{}, decimal.Zero, &ValidationError{Field: "hours", Reason: "must be positive"}
	}
	if max := p.config.maxHours(); hours > max {
		return TuitionTransaction{}, decimal.Zero, &ValidationError{Field: "hours", Reason: "exceeds maximum per transaction"}
	}

	unlock := p.locks.Lock(accountID)
	defer unlock()

	var (
		tx    TuitionTransaction
		after decimal.Decimal
	)
	err := p.store.WithTx(ctx, func(s Store) error {
		account, err := s.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		before, ok := account.Balance()
		if !ok {
			return &DomainError{AccountID: accountID, Reason: "tuition transactions apply only to independent accounts"}
		}

		delta := decimal.NewFromInt(hours)
		changeKind := ChangePaymentAdd
		if kind == KindRefund {
			delta = delta.Neg()
			changeKind = ChangeRefundDeduct
		}
		after = before.Add(delta)

		if p.config.EnforceBalanceFloor && after.IsNegative() {
			return &DomainError{AccountID: accountID, Reason: "refund would drive balance below zero"}
		}

		now := time.Now().UTC()
		tx = TuitionTransaction{
			ID:        TransactionID(uuid.NewString()),
			AccountID: accountID,
			Kind:      kind,
			Hours:     hours,
			Amount:    hours * account.HourlyRate,
			CreatedAt: now,
		}

		if err := s.UpdateBalance(ctx, accountID, after); err != nil {
			return err
		}
		if err := s.AppendTransaction(ctx, tx); err != nil {
			return err
		}
		return s.AppendAudit(ctx, AuditRecord{
			ID:        AuditRecordID(uuid.NewString()),
			AccountID: accountID,
			Cause:     TransactionCause{TransactionID: tx.ID},
			Kind:      changeKind,
			Before:    before,
			After:     after,
			CreatedAt: now,
		})
	})
	if err != nil {
		return TuitionTransaction{}, decimal.Zero, err
	}

	if after.IsNegative() {
		log.Printf("warning: account %s balance went negative (%s) after %s", accountID, after, kind)
	}
	return tx, after, nil
}
