package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	domcoupon "github.com/flashcart/flashcart/internal/domain/coupon"
	domoutbox "github.com/flashcart/flashcart/internal/domain/outbox"
	"github.com/flashcart/flashcart/internal/infrastructure/queue"
	"github.com/flashcart/flashcart/internal/observability"
	"github.com/flashcart/flashcart/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	consumerService = "coupon-consumer"
	useCaseIssue    = "coupon.issue"
	spanPrefix      = "UC."
	publishTimeout  = 300 * time.Millisecond
)

// Consumer is the stage that drains the issuance queue. For each request it
// resolves one terminal outcome: granted, duplicate, or sold out. The grant
// itself is a single atomic repository step, and redelivered requests that
// already produced a grant are recognized by request ID and skipped.
type Consumer struct {
	repo      domcoupon.Repository
	publisher domoutbox.Publisher
	tel       observability.Telemetry

	log          observability.Logger
	outcomes     observability.Counter
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewConsumer(repo domcoupon.Repository, publisher domoutbox.Publisher, tel observability.Telemetry) *Consumer {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Consumer{
		repo:         repo,
		publisher:    publisher,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", consumerService)),
		outcomes:     tel.Counter(observability.MCouponIssueOutcomes),
		reqCounter:   tel.Counter(observability.MUsecaseRequests),
		durHistogram: tel.Histogram(observability.MUsecaseDuration),
	}
}

// Handle consumes one queued message. A returned error signals a transient
// fault and asks the queue for redelivery; business rejections return nil.
func (c *Consumer) Handle(ctx context.Context, m queue.Message) (err error) {
	req, ok := m.Payload.(domcoupon.IssueRequest)
	if !ok {
		logctx.FromOr(ctx, c.log).Warn("unexpected_payload",
			observability.F("message_id", m.ID),
		)
		return nil
	}

	ctx, span := c.tel.Tracer().Start(ctx, spanPrefix+"IssueCoupon",
		attribute.String("use_case", useCaseIssue),
		attribute.String("coupon.id", req.CouponID),
		attribute.String("coupon.user_id", req.UserID),
	)
	start := time.Now()
	outcome, status := "success", "OK"

	logger := logctx.FromOr(ctx, c.log).With(
		observability.F("use_case", useCaseIssue),
		observability.F("request_id", req.ID),
		observability.F("coupon_id", req.CouponID),
		observability.F("user_id", req.UserID),
	)
	ctx = logctx.With(ctx, logger)

	defer func() {
		lat := time.Since(start).Seconds()
		c.reqCounter.Add(1,
			observability.L("use_case", useCaseIssue),
			observability.L("outcome", outcome),
		)
		c.durHistogram.Observe(lat, observability.L("use_case", useCaseIssue))

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		} else {
			span.SetStatus(codes.Ok, status)
		}
		span.End()

		logger.Info("use_case_done",
			observability.F("outcome", outcome),
			observability.F("status", status),
			observability.F("attempt", m.Attempt),
			observability.F("latency_seconds", lat),
		)
	}()

	grant, issueErr := c.repo.Issue(ctx, req)
	switch {
	case issueErr == nil:
		status = "GRANTED"
		c.outcomes.Add(1, observability.L("outcome", string(domcoupon.OutcomeGranted)))
		c.publish(ctx, domcoupon.NewGrantedEvent(req), logger)
		return nil

	case errors.Is(issueErr, domcoupon.ErrAlreadyIssued):
		if grant != nil && grant.RequestID == req.ID {
			// Redelivery of a request whose grant already applied.
			status = "IDEMPOTENT_REPLAY"
			c.outcomes.Add(1, observability.L("outcome", "replayed"))
			return nil
		}
		status = "DUPLICATE"
		c.outcomes.Add(1, observability.L("outcome", string(domcoupon.OutcomeDuplicate)))
		c.publish(ctx, domcoupon.NewRejectedEvent(req, domcoupon.OutcomeDuplicate), logger)
		return nil

	case errors.Is(issueErr, domcoupon.ErrSoldOut):
		status = "SOLD_OUT"
		c.outcomes.Add(1, observability.L("outcome", string(domcoupon.OutcomeSoldOut)))
		c.publish(ctx, domcoupon.NewRejectedEvent(req, domcoupon.OutcomeSoldOut), logger)
		return nil

	case errors.Is(issueErr, domcoupon.ErrNotFound):
		// Definition disappeared after enqueue; nothing to retry against.
		outcome, status = "error", "COUPON_NOT_FOUND"
		logger.Error("issue_failed_no_definition")
		return nil

	default:
		outcome, status = "error", "ISSUE_FAILED"
		return fmt.Errorf("coupon: issue: %w", issueErr)
	}
}

func (c *Consumer) publish(ctx context.Context, e domoutbox.Event, logger observability.Logger) {
	if c.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := c.publisher.Publish(pubCtx, e); err != nil {
		logger.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}
