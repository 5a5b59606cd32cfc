package coupon

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("coupon: not found")
	ErrInvalidRequest = errors.New("coupon: invalid request")
	ErrInvalidStock   = errors.New("coupon: stock must be greater than zero")
	ErrSoldOut        = errors.New("coupon: no remaining stock")
	ErrAlreadyIssued  = errors.New("coupon: already issued to user")
	ErrAlreadyUsed    = errors.New("coupon: already used")
)

// Definition is an issuable coupon with a limited stock. Remaining only
// decreases through TakeOne, except for administrative replenishment.
type Definition struct {
	ID        string
	Name      string
	Total     int
	Remaining int
	CreatedAt time.Time
}

func NewDefinition(id, name string, stock int) (*Definition, error) {
	if stock <= 0 {
		return nil, ErrInvalidStock
	}
	return &Definition{
		ID:        id,
		Name:      name,
		Total:     stock,
		Remaining: stock,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// TakeOne consumes one unit of stock.
func (d *Definition) TakeOne() error {
	if d.Remaining <= 0 {
		return ErrSoldOut
	}
	d.Remaining--
	return nil
}

// Replenish adds stock back, an administrative operation.
func (d *Definition) Replenish(n int) error {
	if n <= 0 {
		return ErrInvalidStock
	}
	d.Total += n
	d.Remaining += n
	return nil
}

func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	clone := *d
	return &clone
}

type Status string

const (
	StatusIssued Status = "issued"
	StatusUsed   Status = "used"
)

// UserCoupon is the grant record for one (user, coupon) pair. At most one
// exists per pair. RequestID names the issuance request that created it, so a
// redelivered request can be told apart from a genuine duplicate.
type UserCoupon struct {
	UserID    string
	CouponID  string
	RequestID string
	Status    Status
	IssuedAt  time.Time
	UsedAt    time.Time
}

func NewUserCoupon(userID, couponID, requestID string) *UserCoupon {
	return &UserCoupon{
		UserID:    userID,
		CouponID:  couponID,
		RequestID: requestID,
		Status:    StatusIssued,
		IssuedAt:  time.Now().UTC(),
	}
}

// Use transitions the coupon from issued to used.
func (uc *UserCoupon) Use() error {
	if uc.Status == StatusUsed {
		return ErrAlreadyUsed
	}
	uc.Status = StatusUsed
	uc.UsedAt = time.Now().UTC()
	return nil
}

func (uc *UserCoupon) Clone() *UserCoupon {
	if uc == nil {
		return nil
	}
	clone := *uc
	return &clone
}

// IssueRequest is the message carried by the issuance queue. It lives only
// until the consumer resolves it to an outcome.
type IssueRequest struct {
	ID          string
	CouponID    string
	UserID      string
	SubmittedAt time.Time
}

// Outcome is the terminal state of one issuance request.
type Outcome string

const (
	OutcomeGranted   Outcome = "granted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSoldOut   Outcome = "sold_out"
)
