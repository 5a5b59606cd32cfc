package order

import (
	"context"

	domorder "github.com/flashcart/flashcart/internal/domain/order"
)

type IDGenerator interface {
	NewID() string
}

// Quoter is the external pricing collaborator: given order lines, it returns
// the total price before point deduction.
type Quoter interface {
	Total(ctx context.Context, lines []domorder.Line) (int64, error)
}
