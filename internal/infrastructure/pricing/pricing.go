package pricing

import (
	"context"
	"fmt"
	"sync"

	dominv "github.com/flashcart/flashcart/internal/domain/inventory"
	domorder "github.com/flashcart/flashcart/internal/domain/order"
)

// TableQuoter prices order lines from the unit prices recorded on product
// options. It satisfies the settlement engine's Quoter port.
type TableQuoter struct {
	mu     sync.RWMutex
	prices map[string]int64
}

func NewTableQuoter() *TableQuoter {
	return &TableQuoter{prices: make(map[string]int64)}
}

// SetPrice registers the unit price for a product option.
func (q *TableQuoter) SetPrice(optionID string, price int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prices[optionID] = price
}

// LoadOption registers a product option's price from the catalog entity.
func (q *TableQuoter) LoadOption(option *dominv.ProductOption) {
	if option == nil {
		return
	}
	q.SetPrice(option.ID, option.Price)
}

func (q *TableQuoter) Total(ctx context.Context, lines []domorder.Line) (int64, error) {
	_ = ctx

	q.mu.RLock()
	defer q.mu.RUnlock()

	var total int64
	for _, l := range lines {
		price, ok := q.prices[l.OptionID]
		if !ok {
			return 0, fmt.Errorf("pricing: no price for option %s", l.OptionID)
		}
		total += price * int64(l.Quantity)
	}
	return total, nil
}
