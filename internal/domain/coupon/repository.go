package coupon

import "context"

type Repository interface {
	CreateDefinition(ctx context.Context, def *Definition) error
	GetDefinition(ctx context.Context, couponID string) (*Definition, error)
	Replenish(ctx context.Context, couponID string, n int) error

	// Issue performs the duplicate check, the stock decrement, and the
	// UserCoupon insert as one atomic step relative to concurrent callers.
	// It fails with ErrAlreadyIssued when a UserCoupon exists for the pair,
	// with ErrSoldOut when no stock remains, and consumes no stock in either
	// case.
	Issue(ctx context.Context, req IssueRequest) (*UserCoupon, error)

	FindUserCoupon(ctx context.Context, userID, couponID string) (*UserCoupon, error)
	ListByUser(ctx context.Context, userID string) ([]*UserCoupon, error)
	// Use marks the user's coupon used, atomically with its status check.
	Use(ctx context.Context, userID, couponID string) (*UserCoupon, error)
}
