package memory

import (
	"context"
	"sync"

	domain "github.com/flashcart/flashcart/internal/domain/point"
)

// PointRepository stores point accounts with the same version-checked update
// discipline as the inventory repository.
type PointRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

func NewPointRepository() *PointRepository {
	return &PointRepository{
		accounts: make(map[string]*domain.Account),
	}
}

func (r *PointRepository) Get(ctx context.Context, userID string) (*domain.Account, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return account.Clone(), nil
}

func (r *PointRepository) Create(ctx context.Context, account *domain.Account) error {
	_ = ctx
	if account == nil || account.UserID == "" {
		return domain.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[account.UserID]; exists {
		return nil
	}
	r.accounts[account.UserID] = account.Clone()
	return nil
}

func (r *PointRepository) Update(ctx context.Context, account *domain.Account) error {
	_ = ctx
	if account == nil {
		return domain.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[account.UserID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != account.Version {
		return domain.ErrVersionConflict
	}

	next := account.Clone()
	next.Version++
	r.accounts[account.UserID] = next
	return nil
}

// PointHistoryRepository appends balance mutation records per user.
type PointHistoryRepository struct {
	mu      sync.RWMutex
	entries map[string][]*domain.History
}

func NewPointHistoryRepository() *PointHistoryRepository {
	return &PointHistoryRepository{
		entries: make(map[string][]*domain.History),
	}
}

func (r *PointHistoryRepository) Append(ctx context.Context, history *domain.History) error {
	_ = ctx
	if history == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *history
	r.entries[history.UserID] = append(r.entries[history.UserID], &clone)
	return nil
}

func (r *PointHistoryRepository) ListByUser(ctx context.Context, userID string) ([]*domain.History, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.entries[userID]
	out := make([]*domain.History, 0, len(stored))
	for _, h := range stored {
		clone := *h
		out = append(out, &clone)
	}
	return out, nil
}
