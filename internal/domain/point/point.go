package point

import (
	"errors"
	"time"
)

var (
	ErrNotFound            = errors.New("point: account not found")
	ErrInvalidAmount       = errors.New("point: amount must be greater than zero")
	ErrBalanceLimit        = errors.New("point: balance limit exceeded")
	ErrInsufficientBalance = errors.New("point: insufficient balance")
	ErrVersionConflict     = errors.New("point: concurrent modification")
)

// MaxBalance caps an account at one billion points (smallest currency unit).
const MaxBalance int64 = 1_000_000_000

// Account holds a user's point balance. Balance never goes negative and is
// mutated only through Charge/Debit/Credit; Version backs optimistic locking.
type Account struct {
	UserID    string
	Balance   int64
	Version   int64
	UpdatedAt time.Time
}

func NewAccount(userID string) *Account {
	return &Account{
		UserID:    userID,
		UpdatedAt: time.Now().UTC(),
	}
}

// Charge tops up the balance. Amount must be positive and the resulting
// balance must stay within MaxBalance.
func (a *Account) Charge(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.Balance+amount > MaxBalance {
		return ErrBalanceLimit
	}
	a.Balance += amount
	a.touch()
	return nil
}

// Debit withdraws points. The balance check and decrement stay together so a
// persisted account is never negative.
func (a *Account) Debit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > a.Balance {
		return ErrInsufficientBalance
	}
	a.Balance -= amount
	a.touch()
	return nil
}

// Credit restores points, typically reversing a debit. Zero is a no-op.
func (a *Account) Credit(amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	a.Balance += amount
	a.touch()
	return nil
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

func (a *Account) touch() {
	a.UpdatedAt = time.Now().UTC()
}
