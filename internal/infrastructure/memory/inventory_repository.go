package memory

import (
	"context"
	"sync"

	domain "github.com/flashcart/flashcart/internal/domain/inventory"
)

// InventoryRepository stores product options with optimistic locking: Update
// succeeds only when the caller's snapshot version matches the stored one,
// mirroring a versioned row in a relational store.
type InventoryRepository struct {
	mu      sync.RWMutex
	options map[string]*domain.ProductOption
}

func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{
		options: make(map[string]*domain.ProductOption),
	}
}

func (r *InventoryRepository) Get(ctx context.Context, optionID string) (*domain.ProductOption, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	option, ok := r.options[optionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return option.Clone(), nil
}

func (r *InventoryRepository) Create(ctx context.Context, option *domain.ProductOption) error {
	_ = ctx
	if option == nil || option.ID == "" {
		return domain.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.options[option.ID] = option.Clone()
	return nil
}

func (r *InventoryRepository) Update(ctx context.Context, option *domain.ProductOption) error {
	_ = ctx
	if option == nil {
		return domain.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.options[option.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != option.Version {
		return domain.ErrVersionConflict
	}

	next := option.Clone()
	next.Version++
	r.options[option.ID] = next
	return nil
}
