package order

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound       = errors.New("order: not found")
	ErrConflict       = errors.New("order: already exists")
	ErrInvalidRequest = errors.New("order: invalid request")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCommitted Status = "committed"
	StatusFailed    Status = "failed"
)

// Line is one requested (product option, quantity) pair.
type Line struct {
	OptionID string
	Quantity int
}

// Order reaches a terminal state synchronously: it is created pending and
// either committed or failed before the settlement call returns.
type Order struct {
	ID            string
	UserID        string
	Lines         []Line
	PointsUsed    int64
	TotalPrice    int64
	TotalCharged  int64
	Status        Status
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func New(id, userID string, lines []Line, pointsToUse int64) (*Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", ErrInvalidRequest)
	}
	for _, l := range lines {
		if l.OptionID == "" {
			return nil, fmt.Errorf("%w: option id is required", ErrInvalidRequest)
		}
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidRequest)
		}
	}
	if pointsToUse < 0 {
		return nil, fmt.Errorf("%w: points to use must be zero or greater", ErrInvalidRequest)
	}

	now := time.Now().UTC()
	return &Order{
		ID:         id,
		UserID:     userID,
		Lines:      append([]Line(nil), lines...),
		PointsUsed: pointsToUse,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Commit is the point of no return; once committed the order never rolls back.
func (o *Order) Commit(totalPrice, totalCharged int64) {
	o.TotalPrice = totalPrice
	o.TotalCharged = totalCharged
	o.Status = StatusCommitted
	o.FailureReason = ""
	o.touch()
}

func (o *Order) Fail(reason string) {
	o.Status = StatusFailed
	o.FailureReason = reason
	o.touch()
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Lines = append([]Line(nil), o.Lines...)
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
