package inventory

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("inventory: product option not found")
	ErrInvalidQuantity = errors.New("inventory: quantity must be greater than zero")
	ErrOutOfStock      = errors.New("inventory: out of stock")
	ErrVersionConflict = errors.New("inventory: concurrent modification")
)

// ProductOption is the unit of stock. Available is mutated only through
// Reserve/Release; Version backs optimistic concurrency in the repository.
type ProductOption struct {
	ID        string
	ProductID string
	Price     int64
	Available int
	Version   int64
	UpdatedAt time.Time
}

func NewProductOption(id, productID string, price int64, available int) (*ProductOption, error) {
	if available < 0 {
		return nil, ErrInvalidQuantity
	}
	return &ProductOption{
		ID:        id,
		ProductID: productID,
		Price:     price,
		Available: available,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Reserve decrements available stock. The caller persists the mutation with a
// version check; stock can never go below zero.
func (o *ProductOption) Reserve(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > o.Available {
		return ErrOutOfStock
	}
	o.Available -= quantity
	o.touch()
	return nil
}

// Release restores previously reserved stock.
func (o *ProductOption) Release(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	o.Available += quantity
	o.touch()
	return nil
}

func (o *ProductOption) Clone() *ProductOption {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}

func (o *ProductOption) touch() {
	o.UpdatedAt = time.Now().UTC()
}
