package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	appinventory "github.com/flashcart/flashcart/internal/application/inventory"
	apppoint "github.com/flashcart/flashcart/internal/application/point"
	dominv "github.com/flashcart/flashcart/internal/domain/inventory"
	domorder "github.com/flashcart/flashcart/internal/domain/order"
	domoutbox "github.com/flashcart/flashcart/internal/domain/outbox"
	dompoint "github.com/flashcart/flashcart/internal/domain/point"
	"github.com/flashcart/flashcart/internal/observability"
	"github.com/flashcart/flashcart/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	settlementService = "order-settlement"
	useCaseSubmit     = "order.submit"
	spanPrefix        = "UC."
	publishTimeout    = 300 * time.Millisecond
)

// Engine settles one order as an all-or-nothing unit: it reserves stock for
// every line, debits the point balance, and commits — or unwinds every step
// already taken and fails. Past commit nothing is ever rolled back.
type Engine struct {
	orders    domorder.Repository
	inventory *appinventory.Ledger
	points    *apppoint.Ledger
	quoter    Quoter
	idGen     IDGenerator
	publisher domoutbox.Publisher
	tel       observability.Telemetry

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewEngine(
	orders domorder.Repository,
	inventory *appinventory.Ledger,
	points *apppoint.Ledger,
	quoter Quoter,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Telemetry,
) *Engine {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Engine{
		orders:       orders,
		inventory:    inventory,
		points:       points,
		quoter:       quoter,
		idGen:        idGen,
		publisher:    publisher,
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", settlementService)),
		reqCounter:   tel.Counter(observability.MUsecaseRequests),
		durHistogram: tel.Histogram(observability.MUsecaseDuration),
	}
}

type LineInput struct {
	OptionID string
	Quantity int
}

type SubmitInput struct {
	UserID      string
	Lines       []LineInput
	PointsToUse int64
}

type SubmitResult struct {
	OrderID      string
	Status       domorder.Status
	TotalPrice   int64
	TotalCharged int64
}

// compensation is one undo action recorded after a successful sub-operation.
// On failure the stack unwinds in reverse acquisition order.
type compensation struct {
	name string
	undo func(ctx context.Context) error
}

// Submit executes the settlement flow. The caller's context may time out at
// any point; rollback runs on an uncancelable context so a timed-out caller
// never leaves partial reservations behind.
func (e *Engine) Submit(ctx context.Context, in SubmitInput) (_ *SubmitResult, err error) {
	ctx, span := e.tel.Tracer().Start(ctx, spanPrefix+"SubmitOrder",
		attribute.String("use_case", useCaseSubmit),
		attribute.String("order.user_id", in.UserID),
		attribute.Int("order.lines", len(in.Lines)),
	)
	start := time.Now()
	outcome, status := "success", "OK"

	logger := logctx.FromOr(ctx, e.log).With(observability.F("use_case", useCaseSubmit))
	ctx = logctx.With(ctx, logger)

	var orderID string
	defer func() {
		lat := time.Since(start).Seconds()
		e.reqCounter.Add(1,
			observability.L("use_case", useCaseSubmit),
			observability.L("outcome", outcome),
		)
		e.durHistogram.Observe(lat, observability.L("use_case", useCaseSubmit))

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		} else {
			span.SetStatus(codes.Ok, status)
		}
		span.End()

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", status),
			observability.F("latency_seconds", lat),
		}
		if orderID != "" {
			fields = append(fields, observability.F("order_id", orderID))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	lines := make([]domorder.Line, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, domorder.Line{OptionID: l.OptionID, Quantity: l.Quantity})
	}

	entity, err := domorder.New(e.idGen.NewID(), in.UserID, lines, in.PointsToUse)
	if err != nil {
		outcome, status = "error", "INVALID_REQUEST"
		return nil, err
	}
	orderID = entity.ID

	if err := e.orders.Insert(ctx, entity); err != nil {
		outcome, status = "error", "ORDER_INSERT_FAILED"
		return nil, fmt.Errorf("order: insert: %w", err)
	}

	var undoStack []compensation
	fail := func(reason string) {
		// Unwind on an uncancelable context; the order must never stay pending.
		rctx := context.WithoutCancel(ctx)
		for i := len(undoStack) - 1; i >= 0; i-- {
			if undoErr := undoStack[i].undo(rctx); undoErr != nil {
				logger.Error("compensation_failed",
					observability.F("step", undoStack[i].name),
					observability.F("order_id", entity.ID),
					observability.F("error", undoErr.Error()),
				)
			}
		}
		entity.Fail(reason)
		if updateErr := e.orders.Update(rctx, entity); updateErr != nil {
			logger.Error("order_fail_update_failed",
				observability.F("order_id", entity.ID),
				observability.F("error", updateErr.Error()),
			)
		}
	}

	for i, line := range entity.Lines {
		token, reserveErr := e.inventory.Reserve(ctx, line.OptionID, line.Quantity)
		if reserveErr != nil {
			fail(reserveErr.Error())
			if errors.Is(reserveErr, dominv.ErrOutOfStock) {
				outcome, status = "error", "OUT_OF_STOCK"
				return nil, fmt.Errorf("order: line %d option %s: %w", i, line.OptionID, reserveErr)
			}
			outcome, status = "error", "RESERVATION_FAILED"
			return nil, fmt.Errorf("order: line %d option %s: reserve: %w", i, line.OptionID, reserveErr)
		}
		undoStack = append(undoStack, compensation{
			name: "release_" + line.OptionID,
			undo: func(ctx context.Context) error { return e.inventory.Release(ctx, token) },
		})
	}

	total, quoteErr := e.quoter.Total(ctx, entity.Lines)
	if quoteErr != nil {
		fail(quoteErr.Error())
		outcome, status = "error", "PRICING_FAILED"
		return nil, fmt.Errorf("order: quote: %w", quoteErr)
	}
	if entity.PointsUsed > total {
		fail("points exceed order total")
		outcome, status = "error", "INVALID_REQUEST"
		return nil, fmt.Errorf("%w: points to use exceed order total", domorder.ErrInvalidRequest)
	}

	if entity.PointsUsed > 0 {
		debit, debitErr := e.points.Debit(ctx, entity.UserID, entity.PointsUsed)
		if debitErr != nil {
			fail(debitErr.Error())
			if errors.Is(debitErr, dompoint.ErrInsufficientBalance) {
				outcome, status = "error", "INSUFFICIENT_BALANCE"
				return nil, debitErr
			}
			outcome, status = "error", "DEBIT_FAILED"
			return nil, fmt.Errorf("order: debit points: %w", debitErr)
		}
		undoStack = append(undoStack, compensation{
			name: "refund_points",
			undo: func(ctx context.Context) error { return e.points.Refund(ctx, debit) },
		})
	}

	entity.Commit(total, total-entity.PointsUsed)
	if updateErr := e.orders.Update(ctx, entity); updateErr != nil {
		fail(updateErr.Error())
		outcome, status = "error", "ORDER_UPDATE_FAILED"
		return nil, fmt.Errorf("order: commit update: %w", updateErr)
	}

	// Point of no return: failures past here are reported, never rolled back.
	e.publishCommitted(ctx, entity, logger)

	return &SubmitResult{
		OrderID:      entity.ID,
		Status:       entity.Status,
		TotalPrice:   entity.TotalPrice,
		TotalCharged: entity.TotalCharged,
	}, nil
}

// Get loads one order.
func (e *Engine) Get(ctx context.Context, id string) (*domorder.Order, error) {
	if id == "" {
		return nil, domorder.ErrNotFound
	}
	return e.orders.Get(ctx, id)
}

func (e *Engine) publishCommitted(ctx context.Context, entity *domorder.Order, logger observability.Logger) {
	if e.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := e.publisher.Publish(pubCtx, domorder.NewCommittedEvent(entity)); err != nil {
		logger.Warn("event_publish_failed",
			observability.F("event", "order.committed"),
			observability.F("order_id", entity.ID),
			observability.F("error", err.Error()),
		)
	}
}
