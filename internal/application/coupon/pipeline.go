package coupon

import (
	"context"
	"fmt"
	"time"

	domcoupon "github.com/flashcart/flashcart/internal/domain/coupon"
	"github.com/flashcart/flashcart/internal/infrastructure/queue"
	"github.com/flashcart/flashcart/internal/observability"
	"github.com/flashcart/flashcart/internal/observability/logctx"
)

const componentCouponPipeline = "coupon_pipeline"

type IDGenerator interface {
	NewID() string
}

// Enqueuer is the queueing collaborator consumed by the producer side.
type Enqueuer interface {
	Enqueue(ctx context.Context, m queue.Message) error
}

// Pipeline is the producer side of coupon issuance plus the read model. A
// request is acknowledged as soon as it is queued; the grant itself happens
// later in the consumer stage and is observed by polling UserCoupons.
type Pipeline struct {
	repo  domcoupon.Repository
	queue Enqueuer
	idGen IDGenerator
	log   observability.Logger
}

func NewPipeline(repo domcoupon.Repository, q Enqueuer, idGen IDGenerator, logger observability.Logger) *Pipeline {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Pipeline{
		repo:  repo,
		queue: q,
		idGen: idGen,
		log:   logger.With(observability.F("component", componentCouponPipeline)),
	}
}

// RequestIssue validates and enqueues an issuance request, returning its ID
// without waiting for consumption. Requests for one coupon are processed in
// the order they were submitted.
func (p *Pipeline) RequestIssue(ctx context.Context, userID, couponID string) (string, error) {
	if userID == "" || couponID == "" {
		return "", fmt.Errorf("%w: user and coupon are required", domcoupon.ErrInvalidRequest)
	}

	if _, err := p.repo.GetDefinition(ctx, couponID); err != nil {
		return "", err
	}

	req := domcoupon.IssueRequest{
		ID:          p.idGen.NewID(),
		CouponID:    couponID,
		UserID:      userID,
		SubmittedAt: time.Now().UTC(),
	}

	err := p.queue.Enqueue(ctx, queue.Message{
		ID:      req.ID,
		Key:     req.CouponID,
		Payload: req,
	})
	if err != nil {
		return "", fmt.Errorf("coupon: enqueue issue request: %w", err)
	}

	logctx.FromOr(ctx, p.log).Info("issue_request_queued",
		observability.F("request_id", req.ID),
		observability.F("coupon_id", couponID),
		observability.F("user_id", userID),
	)
	return req.ID, nil
}

// UserCoupons returns the user's granted coupons; callers poll it to observe
// an eventual grant.
func (p *Pipeline) UserCoupons(ctx context.Context, userID string) ([]*domcoupon.UserCoupon, error) {
	return p.repo.ListByUser(ctx, userID)
}

// UseCoupon transitions a granted coupon to used.
func (p *Pipeline) UseCoupon(ctx context.Context, userID, couponID string) (*domcoupon.UserCoupon, error) {
	return p.repo.Use(ctx, userID, couponID)
}

// CreateCoupon registers a new limited-stock coupon definition.
func (p *Pipeline) CreateCoupon(ctx context.Context, name string, stock int) (*domcoupon.Definition, error) {
	def, err := domcoupon.NewDefinition(p.idGen.NewID(), name, stock)
	if err != nil {
		return nil, err
	}
	if err := p.repo.CreateDefinition(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

// Replenish adds stock to an existing coupon, an administrative operation.
func (p *Pipeline) Replenish(ctx context.Context, couponID string, n int) error {
	return p.repo.Replenish(ctx, couponID, n)
}

// Coupon returns a coupon definition with its remaining stock.
func (p *Pipeline) Coupon(ctx context.Context, couponID string) (*domcoupon.Definition, error) {
	return p.repo.GetDefinition(ctx, couponID)
}
