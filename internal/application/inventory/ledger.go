package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	dominv "github.com/flashcart/flashcart/internal/domain/inventory"
	"github.com/flashcart/flashcart/internal/observability"
	"github.com/flashcart/flashcart/internal/observability/logctx"
)

const componentInventoryLedger = "inventory_ledger"

// ReservationToken identifies one successful stock reservation. Release
// consumes the token at most once, so a rollback path may release it twice
// without restoring stock twice.
type ReservationToken struct {
	OptionID string
	Quantity int
	released atomic.Bool
}

// Ledger serializes stock mutations per product option with optimistic
// retries over the versioned repository: read, mutate, version-checked write,
// and re-read on conflict.
type Ledger struct {
	repo dominv.Repository
	log  observability.Logger
}

func NewLedger(repo dominv.Repository, logger observability.Logger) *Ledger {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Ledger{
		repo: repo,
		log:  logger.With(observability.F("component", componentInventoryLedger)),
	}
}

// Reserve atomically checks and decrements available stock. Concurrent
// reservations against one option can never together exceed its stock.
func (l *Ledger) Reserve(ctx context.Context, optionID string, quantity int) (*ReservationToken, error) {
	if quantity <= 0 {
		return nil, dominv.ErrInvalidQuantity
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		option, err := l.repo.Get(ctx, optionID)
		if err != nil {
			return nil, fmt.Errorf("inventory: get option: %w", err)
		}

		if err := option.Reserve(quantity); err != nil {
			return nil, err
		}

		err = l.repo.Update(ctx, option)
		if errors.Is(err, dominv.ErrVersionConflict) {
			logctx.FromOr(ctx, l.log).Debug("reserve_retry",
				observability.F("option_id", optionID),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("inventory: update option: %w", err)
		}

		return &ReservationToken{OptionID: optionID, Quantity: quantity}, nil
	}
}

// Release restores the reserved quantity. Calling it again on the same token
// is a no-op.
func (l *Ledger) Release(ctx context.Context, token *ReservationToken) error {
	if token == nil {
		return nil
	}
	if !token.released.CompareAndSwap(false, true) {
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		option, err := l.repo.Get(ctx, token.OptionID)
		if err != nil {
			return fmt.Errorf("inventory: get option: %w", err)
		}

		if err := option.Release(token.Quantity); err != nil {
			return err
		}

		err = l.repo.Update(ctx, option)
		if errors.Is(err, dominv.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("inventory: update option: %w", err)
		}

		logctx.FromOr(ctx, l.log).Debug("reservation_released",
			observability.F("option_id", token.OptionID),
			observability.F("quantity", token.Quantity),
		)
		return nil
	}
}

// Available reports the current stock of an option.
func (l *Ledger) Available(ctx context.Context, optionID string) (int, error) {
	option, err := l.repo.Get(ctx, optionID)
	if err != nil {
		return 0, err
	}
	return option.Available, nil
}
