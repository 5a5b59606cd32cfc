package point

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	dompoint "github.com/flashcart/flashcart/internal/domain/point"
	"github.com/flashcart/flashcart/internal/observability"
	"github.com/flashcart/flashcart/internal/observability/logctx"
)

const componentPointLedger = "point_ledger"

type IDGenerator interface {
	NewID() string
}

// DebitToken identifies one successful debit. Refund consumes it at most
// once, keeping the rollback path idempotent.
type DebitToken struct {
	UserID   string
	Amount   int64
	refunded atomic.Bool
}

// Ledger serializes balance mutations per user with optimistic retries over
// the versioned account repository. Every mutation appends a history record.
type Ledger struct {
	repo      dompoint.Repository
	histories dompoint.HistoryRepository
	idGen     IDGenerator
	log       observability.Logger
}

func NewLedger(repo dompoint.Repository, histories dompoint.HistoryRepository, idGen IDGenerator, logger observability.Logger) *Ledger {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Ledger{
		repo:      repo,
		histories: histories,
		idGen:     idGen,
		log:       logger.With(observability.F("component", componentPointLedger)),
	}
}

// Charge tops up a user's balance and returns the new balance. Accounts are
// created on first charge.
func (l *Ledger) Charge(ctx context.Context, userID string, amount int64) (int64, error) {
	if userID == "" {
		return 0, dompoint.ErrNotFound
	}

	balance, err := l.mutate(ctx, userID, func(a *dompoint.Account) error {
		return a.Charge(amount)
	})
	if err != nil {
		return 0, err
	}

	l.appendHistory(ctx, userID, dompoint.HistoryCharge, amount, balance)
	return balance, nil
}

// Debit withdraws points and returns a token for the rollback path. The
// balance check and decrement serialize per user, so the persisted balance
// never goes negative.
func (l *Ledger) Debit(ctx context.Context, userID string, amount int64) (*DebitToken, error) {
	if userID == "" {
		return nil, dompoint.ErrNotFound
	}

	balance, err := l.mutate(ctx, userID, func(a *dompoint.Account) error {
		return a.Debit(amount)
	})
	if err != nil {
		return nil, err
	}

	l.appendHistory(ctx, userID, dompoint.HistoryUse, amount, balance)
	return &DebitToken{UserID: userID, Amount: amount}, nil
}

// Refund reverses a prior debit. Calling it again on the same token is a
// no-op.
func (l *Ledger) Refund(ctx context.Context, token *DebitToken) error {
	if token == nil {
		return nil
	}
	if !token.refunded.CompareAndSwap(false, true) {
		return nil
	}

	balance, err := l.mutate(ctx, token.UserID, func(a *dompoint.Account) error {
		return a.Credit(token.Amount)
	})
	if err != nil {
		return err
	}

	l.appendHistory(ctx, token.UserID, dompoint.HistoryRefund, token.Amount, balance)
	return nil
}

// Balance reports the user's current balance. Unknown users hold zero.
func (l *Ledger) Balance(ctx context.Context, userID string) (int64, error) {
	account, err := l.repo.Get(ctx, userID)
	if errors.Is(err, dompoint.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// History lists the user's balance mutations in append order.
func (l *Ledger) History(ctx context.Context, userID string) ([]*dompoint.History, error) {
	return l.histories.ListByUser(ctx, userID)
}

// mutate runs the read-mutate-write loop, creating the account on first use
// and retrying on version conflicts. Returns the balance after the mutation.
func (l *Ledger) mutate(ctx context.Context, userID string, fn func(*dompoint.Account) error) (int64, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		account, err := l.repo.Get(ctx, userID)
		if errors.Is(err, dompoint.ErrNotFound) {
			if err := l.repo.Create(ctx, dompoint.NewAccount(userID)); err != nil {
				return 0, fmt.Errorf("point: create account: %w", err)
			}
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("point: get account: %w", err)
		}

		if err := fn(account); err != nil {
			return 0, err
		}

		err = l.repo.Update(ctx, account)
		if errors.Is(err, dompoint.ErrVersionConflict) {
			logctx.FromOr(ctx, l.log).Debug("balance_retry",
				observability.F("user_id", userID),
			)
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("point: update account: %w", err)
		}

		return account.Balance, nil
	}
}

func (l *Ledger) appendHistory(ctx context.Context, userID string, kind dompoint.HistoryKind, amount, balance int64) {
	if l.histories == nil {
		return
	}
	h := dompoint.NewHistory(l.idGen.NewID(), userID, kind, amount, balance)
	if err := l.histories.Append(ctx, h); err != nil {
		logctx.FromOr(ctx, l.log).Warn("history_append_failed",
			observability.F("user_id", userID),
			observability.F("kind", string(kind)),
			observability.F("error", err.Error()),
		)
	}
}
