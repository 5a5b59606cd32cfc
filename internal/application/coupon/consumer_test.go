package coupon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domcoupon "github.com/flashcart/flashcart/internal/domain/coupon"
	domoutbox "github.com/flashcart/flashcart/internal/domain/outbox"
	"github.com/flashcart/flashcart/internal/infrastructure/memory"
	"github.com/flashcart/flashcart/internal/infrastructure/queue"
	"github.com/flashcart/flashcart/internal/observability"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *capturePublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

func seedRepo(t *testing.T, stock int) *memory.CouponRepository {
	t.Helper()
	repo := memory.NewCouponRepository()
	def, err := domcoupon.NewDefinition("c1", "launch", stock)
	require.NoError(t, err)
	require.NoError(t, repo.CreateDefinition(context.Background(), def))
	return repo
}

func message(requestID, userID string) queue.Message {
	return queue.Message{
		ID:  requestID,
		Key: "c1",
		Payload: domcoupon.IssueRequest{
			ID:          requestID,
			CouponID:    "c1",
			UserID:      userID,
			SubmittedAt: time.Now().UTC(),
		},
	}
}

func TestHandleGrantsAndPublishes(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(t, 1)
	pub := &capturePublisher{}
	consumer := NewConsumer(repo, pub, observability.NopTelemetry())

	require.NoError(t, consumer.Handle(ctx, message("r1", "u1")))

	grant, err := repo.FindUserCoupon(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "r1", grant.RequestID)
	assert.Equal(t, []string{"coupon.granted"}, pub.names())
}

func TestHandleStockOneGrantsExactlyOne(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(t, 1)
	consumer := NewConsumer(repo, nil, observability.NopTelemetry())

	require.NoError(t, consumer.Handle(ctx, message("r1", "u1")))
	require.NoError(t, consumer.Handle(ctx, message("r2", "u2")))

	_, err := repo.FindUserCoupon(ctx, "u1", "c1")
	assert.NoError(t, err)
	_, err = repo.FindUserCoupon(ctx, "u2", "c1")
	assert.ErrorIs(t, err, domcoupon.ErrNotFound)

	def, err := repo.GetDefinition(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, def.Remaining)
}

func TestHandleDuplicateUserRejectedWithoutConsumingStock(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(t, 5)
	pub := &capturePublisher{}
	consumer := NewConsumer(repo, pub, observability.NopTelemetry())

	require.NoError(t, consumer.Handle(ctx, message("r1", "u1")))
	require.NoError(t, consumer.Handle(ctx, message("r2", "u1")))

	def, err := repo.GetDefinition(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 4, def.Remaining)
	assert.Equal(t, []string{"coupon.granted", "coupon.rejected"}, pub.names())
}

func TestHandleRedeliveryOfGrantedRequestIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(t, 5)
	pub := &capturePublisher{}
	consumer := NewConsumer(repo, pub, observability.NopTelemetry())

	m := message("r1", "u1")
	require.NoError(t, consumer.Handle(ctx, m))
	// Same message delivered again, as after a consumer crash mid-ack.
	m.Attempt = 2
	require.NoError(t, consumer.Handle(ctx, m))

	def, err := repo.GetDefinition(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 4, def.Remaining)
	// The replay publishes nothing; only the original grant did.
	assert.Equal(t, []string{"coupon.granted"}, pub.names())
}

func TestHandleSoldOutPublishesRejection(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(t, 1)
	pub := &capturePublisher{}
	consumer := NewConsumer(repo, pub, observability.NopTelemetry())

	require.NoError(t, consumer.Handle(ctx, message("r1", "u1")))
	require.NoError(t, consumer.Handle(ctx, message("r2", "u2")))

	names := pub.names()
	require.Len(t, names, 2)
	assert.Equal(t, "coupon.rejected", names[1])

	rejected, ok := pub.events[1].(domcoupon.RejectedEvent)
	require.True(t, ok)
	assert.Equal(t, domcoupon.OutcomeSoldOut, rejected.Outcome)
}

func TestHandleUnknownCouponIsDropped(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCouponRepository()
	consumer := NewConsumer(repo, nil, observability.NopTelemetry())

	assert.NoError(t, consumer.Handle(ctx, message("r1", "u1")))
}

func TestHandleUnexpectedPayloadIsDropped(t *testing.T) {
	repo := seedRepo(t, 1)
	consumer := NewConsumer(repo, nil, observability.NopTelemetry())

	err := consumer.Handle(context.Background(), queue.Message{ID: "m1", Key: "c1", Payload: "garbage"})
	assert.NoError(t, err)
}

// flakyRepo fails Issue a fixed number of times before delegating, standing in
// for a transient infrastructure fault.
type flakyRepo struct {
	domcoupon.Repository
	mu       sync.Mutex
	failures int
	attempts int
}

func (r *flakyRepo) Issue(ctx context.Context, req domcoupon.IssueRequest) (*domcoupon.UserCoupon, error) {
	r.mu.Lock()
	r.attempts++
	fail := r.failures > 0
	if fail {
		r.failures--
	}
	r.mu.Unlock()

	if fail {
		return nil, errors.New("storage unavailable")
	}
	return r.Repository.Issue(ctx, req)
}

func TestHandleTransientFaultAsksForRedelivery(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepo{Repository: seedRepo(t, 1), failures: 1}
	consumer := NewConsumer(repo, nil, observability.NopTelemetry())

	m := message("r1", "u1")
	err := consumer.Handle(ctx, m)
	require.Error(t, err)

	// Redelivery of the same message succeeds once the fault clears.
	m.Attempt = 2
	require.NoError(t, consumer.Handle(ctx, m))

	grant, err := repo.FindUserCoupon(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "r1", grant.RequestID)
	assert.Equal(t, 2, repo.attempts)
}
