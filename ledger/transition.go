/*
transition.go - Class-status state machine with balance effects

PURPOSE:
  A class session moving between statuses can consume or restore purchased
  hours. Moving INTO a billable state (completed, same-day cancellation)
  deducts the session's duration from the owning independent account;
  moving back OUT of one refunds it. All other pairs leave the balance
  untouched.

EFFECT TABLE (previous -> new => effect):
  scheduled             -> completed               deduct
  scheduled             -> same_day_cancellation   deduct
  completed             -> scheduled               refund
  completed             -> cancelled               refund
  same_day_cancellation -> scheduled               refund
  same_day_cancellation -> cancelled               refund
  any other pair                                   unchanged

ORGANIZATION ACCOUNTS:
  Status and notes always persist, but no balance mutation and no audit
  record occur - organizations are billed per session, not from a prepaid
  balance.

ZERO-DURATION SESSIONS:
  Produce a zero-magnitude adjustment and still write an audit record with
  before == after. Accepted, not rejected.

SEE ALSO:
  - tuition.go: The other balance-mutating component
  - types.go: SessionStatus, ChangeKind
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// EFFECT TABLE
// =============================================================================

// Effect is the balance consequence of a status transition.
type Effect int

const (
	EffectNone Effect = iota
	EffectDeduct
	EffectRefund
)

func (e Effect) String() string {
	switch e {
	case EffectDeduct:
		return "deduct"
	case EffectRefund:
		return "refund"
	default:
		return "unchanged"
	}
}

type statusPair struct {
	previous SessionStatus
	next     SessionStatus
}

var transitionEffects = map[statusPair]Effect{
	{StatusScheduled, StatusCompleted}:           EffectDeduct,
	{StatusScheduled, StatusSameDayCancellation}: EffectDeduct,
	{StatusCompleted, StatusScheduled}:           EffectRefund,
	{StatusCompleted, StatusCancelled}:           EffectRefund,
	{StatusSameDayCancellation, StatusScheduled}: EffectRefund,
	{StatusSameDayCancellation, StatusCancelled}: EffectRefund,
}

// TransitionEffect returns the balance effect of moving a session from
// previous to next. Pairs not in the table are unchanged.
func TransitionEffect(previous, next SessionStatus) Effect {
	return transitionEffects[statusPair{previous, next}]
}

// =============================================================================
// ENGINE
// =============================================================================

// LedgerEffect reports the balance adjustment a transition produced.
type LedgerEffect struct {
	Effect Effect
	Hours  decimal.Decimal
	Before decimal.Decimal
	After  decimal.Decimal
}

// Engine applies status transitions to class sessions.
type Engine struct {
	store TxStore
	locks *accountLocks
}

func NewEngine(store TxStore) *Engine {
	return &Engine{store: store, locks: newAccountLocks()}
}

// TransitionClassStatus sets the session's status and notes, applies the
// balance effect to the owning independent account, and writes one audit
// record per balance change. Notes persist unconditionally; pass nil to
// leave them as they are.
//
// Returns the updated session and, when a balance change occurred, the
// ledger effect (nil otherwise). Fails with NotFoundError when the session
// does not exist and ValidationError when newStatus is not a known status.
func (e *Engine) TransitionClassStatus(ctx context.Context, sessionID SessionID, newStatus SessionStatus, notes *string) (ClassSession, *LedgerEffect, error) {
	if !ValidStatus(newStatus) {
		return ClassSession{}, nil, &ValidationError{Field: "status", Reason: "unknown session status"}
	}

	// The account ID is needed for the per-account lock before entering
	// the atomic unit; the session is re-read inside it.
	peek, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return ClassSession{}, nil, err
	}

	unlock := e.locks.Lock(peek.AccountID)
	defer unlock()

	var (
		updated ClassSession
		effect  *LedgerEffect
	)
	err = e.store.WithTx(ctx, func(s Store) error {
		session, err := s.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		account, err := s.GetAccount(ctx, session.AccountID)
		if err != nil {
			return err
		}

		previous := session.Status
		session.Status = newStatus
		if notes != nil {
			session.Notes = *notes
		}
		if err := s.SaveSession(ctx, session); err != nil {
			return err
		}
		updated = session

		fx := TransitionEffect(previous, newStatus)
		before, independent := account.Balance()
		if fx == EffectNone || !independent {
			return nil
		}

		hours := session.Hours()
		delta := hours
		changeKind := ChangeClassStatusDeduct
		if fx == EffectDeduct {
			delta = delta.Neg()
		} else {
			changeKind = ChangeClassStatusAdd
		}
		after := before.Add(delta)

		if err := s.UpdateBalance(ctx, session.AccountID, after); err != nil {
			return err
		}
		if err := s.AppendAudit(ctx, AuditRecord{
			ID:        AuditRecordID(uuid.NewString()),
			AccountID: session.AccountID,
			Cause:     SessionCause{SessionID: session.ID},
			Kind:      changeKind,
			Before:    before,
			After:     after,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}

		effect = &LedgerEffect{Effect: fx, Hours: hours, Before: before, After: after}
		return nil
	})
	if err != nil {
		return ClassSession{}, nil, err
	}
	return updated, effect, nil
}
