package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/flashcart/flashcart/internal/domain/coupon"
)

// CouponRepository owns coupon definitions and the UserCoupon set. Issue runs
// the duplicate check, stock decrement, and grant insert under one lock, so
// concurrent consumers can never double-issue or oversell a coupon.
type CouponRepository struct {
	mu     sync.RWMutex
	defs   map[string]*domain.Definition
	grants map[string]map[string]*domain.UserCoupon // couponID -> userID -> grant
}

func NewCouponRepository() *CouponRepository {
	return &CouponRepository{
		defs:   make(map[string]*domain.Definition),
		grants: make(map[string]map[string]*domain.UserCoupon),
	}
}

func (r *CouponRepository) CreateDefinition(ctx context.Context, def *domain.Definition) error {
	_ = ctx
	if def == nil || def.ID == "" {
		return domain.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.defs[def.ID] = def.Clone()
	if _, ok := r.grants[def.ID]; !ok {
		r.grants[def.ID] = make(map[string]*domain.UserCoupon)
	}
	return nil
}

func (r *CouponRepository) GetDefinition(ctx context.Context, couponID string) (*domain.Definition, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[couponID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return def.Clone(), nil
}

func (r *CouponRepository) Replenish(ctx context.Context, couponID string, n int) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.defs[couponID]
	if !ok {
		return domain.ErrNotFound
	}
	return def.Replenish(n)
}

func (r *CouponRepository) Issue(ctx context.Context, req domain.IssueRequest) (*domain.UserCoupon, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	def, ok := r.defs[req.CouponID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	grants := r.grants[req.CouponID]
	if existing, issued := grants[req.UserID]; issued {
		return existing.Clone(), domain.ErrAlreadyIssued
	}

	if err := def.TakeOne(); err != nil {
		return nil, err
	}

	grant := domain.NewUserCoupon(req.UserID, req.CouponID, req.ID)
	grants[req.UserID] = grant
	return grant.Clone(), nil
}

func (r *CouponRepository) FindUserCoupon(ctx context.Context, userID, couponID string) (*domain.UserCoupon, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	grant, ok := r.grants[couponID][userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return grant.Clone(), nil
}

func (r *CouponRepository) ListByUser(ctx context.Context, userID string) ([]*domain.UserCoupon, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.UserCoupon
	for _, grants := range r.grants {
		if grant, ok := grants[userID]; ok {
			out = append(out, grant.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out, nil
}

func (r *CouponRepository) Use(ctx context.Context, userID, couponID string) (*domain.UserCoupon, error) {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	grant, ok := r.grants[couponID][userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := grant.Use(); err != nil {
		return nil, err
	}
	return grant.Clone(), nil
}
