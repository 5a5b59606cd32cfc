package audit

import (
	"context"

	domcoupon "github.com/flashcart/flashcart/internal/domain/coupon"
	domorder "github.com/flashcart/flashcart/internal/domain/order"
	domoutbox "github.com/flashcart/flashcart/internal/domain/outbox"
	"github.com/flashcart/flashcart/internal/observability"
	"github.com/flashcart/flashcart/internal/observability/logctx"
)

const auditService = "audit-worker"

// Worker tails the event bus and writes an audit line for every settlement
// commit and coupon grant decision. Handler failures here never affect the
// originating transaction.
type Worker struct {
	subscriber domoutbox.Subscriber
	log        observability.Logger
}

func New(subscriber domoutbox.Subscriber, logger observability.Logger) *Worker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Worker{
		subscriber: subscriber,
		log:        logger.With(observability.F("service", auditService)),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil {
		return
	}
	w.subscriber.Subscribe(domorder.CommittedEvent{}.EventName(), w.handleOrderCommitted)
	w.subscriber.Subscribe(domcoupon.GrantedEvent{}.EventName(), w.handleCouponGranted)
	w.subscriber.Subscribe(domcoupon.RejectedEvent{}.EventName(), w.handleCouponRejected)
}

func (w *Worker) handleOrderCommitted(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.CommittedEvent)
	if !ok {
		return nil
	}
	logctx.FromOr(ctx, w.log).Info("order_committed",
		observability.F("order_id", evt.OrderID),
		observability.F("user_id", evt.UserID),
		observability.F("total_charged", evt.TotalCharged),
		observability.F("points_used", evt.PointsUsed),
	)
	return nil
}

func (w *Worker) handleCouponGranted(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domcoupon.GrantedEvent)
	if !ok {
		return nil
	}
	logctx.FromOr(ctx, w.log).Info("coupon_granted",
		observability.F("request_id", evt.RequestID),
		observability.F("coupon_id", evt.CouponID),
		observability.F("user_id", evt.UserID),
	)
	return nil
}

func (w *Worker) handleCouponRejected(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domcoupon.RejectedEvent)
	if !ok {
		return nil
	}
	logctx.FromOr(ctx, w.log).Info("coupon_rejected",
		observability.F("request_id", evt.RequestID),
		observability.F("coupon_id", evt.CouponID),
		observability.F("user_id", evt.UserID),
		observability.F("outcome", string(evt.Outcome)),
	)
	return nil
}
