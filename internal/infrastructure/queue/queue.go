package queue

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"github.com/flashcart/flashcart/internal/observability"
	"github.com/flashcart/flashcart/internal/observability/logctx"
)

var (
	ErrFull    = errors.New("queue: full")
	ErrStopped = errors.New("queue: stopped")
)

// Message is one queued unit of work. Key selects the FIFO lane; messages
// sharing a key are delivered in submission order, one at a time.
type Message struct {
	ID         string
	Key        string
	Payload    any
	Attempt    int
	EnqueuedAt time.Time
}

// Handler consumes a delivered message. A returned error marks the delivery
// as failed and triggers redelivery of the same message.
type Handler func(ctx context.Context, m Message) error

const componentQueue = "queue"

// Queue is an in-memory at-least-once delivery channel. Each key gets its own
// buffered lane drained by a dedicated dispatcher goroutine, so ordering holds
// per key while different keys are consumed concurrently.
type Queue struct {
	mu        sync.Mutex
	lanes     map[string]chan Message
	handler   Handler
	capacity  int
	maxDeliv  int
	retryWait time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	log          observability.Logger
	redeliveries observability.Counter
}

type Option func(*Queue)

// WithCapacity sets the per-lane buffer size.
func WithCapacity(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithMaxDeliveries bounds redelivery attempts per message.
func WithMaxDeliveries(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxDeliv = n
		}
	}
}

// WithRetryWait sets the pause before a redelivery.
func WithRetryWait(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.retryWait = d
		}
	}
}

func New(handler Handler, logger observability.Logger, tel observability.Telemetry, opts ...Option) *Queue {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	q := &Queue{
		lanes:        make(map[string]chan Message),
		handler:      handler,
		capacity:     1024,
		maxDeliv:     3,
		retryWait:    50 * time.Millisecond,
		log:          logger.With(observability.F("component", componentQueue)),
		redeliveries: tel.Counter(observability.MQueueRedeliveries),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		bg, cancel := context.WithCancel(ctx)
		q.ctx = bg
		q.cancel = cancel
		logctx.FromOr(ctx, q.log).Info("queue_started")
	})
}

// Stop cancels dispatchers and waits for in-flight deliveries to finish.
func (q *Queue) Stop(ctx context.Context) {
	q.stopOnce.Do(func() {
		if q.cancel != nil {
			q.cancel()
		}
		q.wg.Wait()
		logctx.FromOr(ctx, q.log).Info("queue_stopped")
	})
}

// Enqueue appends the message to its key's lane and returns without waiting
// for consumption.
func (q *Queue) Enqueue(ctx context.Context, m Message) error {
	if q.ctx == nil {
		return ErrStopped
	}
	if err := q.ctx.Err(); err != nil {
		return ErrStopped
	}
	if m.EnqueuedAt.IsZero() {
		m.EnqueuedAt = time.Now().UTC()
	}

	lane := q.laneFor(m.Key)
	select {
	case lane <- m:
		logctx.FromOr(ctx, q.log).Debug("message_enqueued",
			observability.F("key", m.Key),
			observability.F("message_id", m.ID),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrFull
	}
}

func (q *Queue) laneFor(key string) chan Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	lane, ok := q.lanes[key]
	if !ok {
		lane = make(chan Message, q.capacity)
		q.lanes[key] = lane
		q.wg.Add(1)
		go q.dispatch(key, lane)
	}
	return lane
}

func (q *Queue) dispatch(key string, lane chan Message) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case m := <-lane:
			q.deliver(m)
		}
	}
}

// deliver invokes the handler, redelivering the same message after transient
// failures until maxDeliv attempts are spent.
func (q *Queue) deliver(m Message) {
	logger := q.log.With(
		observability.F("key", m.Key),
		observability.F("message_id", m.ID),
	)

	for attempt := 1; attempt <= q.maxDeliv; attempt++ {
		m.Attempt = attempt

		err := q.invoke(m)
		if err == nil {
			return
		}

		logger.Warn("delivery_failed",
			observability.F("attempt", attempt),
			observability.F("error", err.Error()),
		)

		if attempt == q.maxDeliv {
			logger.Error("message_dead_lettered",
				observability.F("attempts", attempt),
			)
			return
		}

		q.redeliveries.Add(1, observability.L("key", m.Key))
		select {
		case <-q.ctx.Done():
			return
		case <-time.After(q.retryWait):
		}
	}
}

func (q *Queue) invoke(m Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("handler_panic",
				observability.F("key", m.Key),
				observability.F("message_id", m.ID),
				observability.F("panic", r),
				observability.F("stack", string(debug.Stack())),
			)
			err = errors.New("queue: handler panic")
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(q.ctx), 30*time.Second)
	defer cancel()
	ctx = logctx.With(ctx, q.log)
	return q.handler(ctx, m)
}
