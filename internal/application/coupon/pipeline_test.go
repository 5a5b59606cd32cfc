package coupon

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domcoupon "github.com/flashcart/flashcart/internal/domain/coupon"
	"github.com/flashcart/flashcart/internal/infrastructure/memory"
	"github.com/flashcart/flashcart/internal/infrastructure/queue"
	"github.com/flashcart/flashcart/internal/observability"
)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() string { return "id-" + strconv.FormatInt(s.n.Add(1), 10) }

type captureEnqueuer struct {
	mu       sync.Mutex
	messages []queue.Message
}

func (e *captureEnqueuer) Enqueue(_ context.Context, m queue.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, m)
	return nil
}

func TestRequestIssueQueuesPerCoupon(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(t, 3)
	enq := &captureEnqueuer{}
	pipeline := NewPipeline(repo, enq, &seqIDs{}, observability.NopLogger())

	requestID, err := pipeline.RequestIssue(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.NotEmpty(t, requestID)

	require.Len(t, enq.messages, 1)
	m := enq.messages[0]
	assert.Equal(t, requestID, m.ID)
	assert.Equal(t, "c1", m.Key)

	req, ok := m.Payload.(domcoupon.IssueRequest)
	require.True(t, ok)
	assert.Equal(t, "u1", req.UserID)
	assert.Equal(t, "c1", req.CouponID)
}

func TestRequestIssueValidatesInput(t *testing.T) {
	ctx := context.Background()
	repo := seedRepo(t, 3)
	pipeline := NewPipeline(repo, &captureEnqueuer{}, &seqIDs{}, observability.NopLogger())

	_, err := pipeline.RequestIssue(ctx, "", "c1")
	assert.ErrorIs(t, err, domcoupon.ErrInvalidRequest)

	_, err = pipeline.RequestIssue(ctx, "u1", "")
	assert.ErrorIs(t, err, domcoupon.ErrInvalidRequest)
}

func TestRequestIssueUnknownCoupon(t *testing.T) {
	repo := memory.NewCouponRepository()
	pipeline := NewPipeline(repo, &captureEnqueuer{}, &seqIDs{}, observability.NopLogger())

	_, err := pipeline.RequestIssue(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, domcoupon.ErrNotFound)
}

func TestCreateCouponAndReplenish(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCouponRepository()
	pipeline := NewPipeline(repo, &captureEnqueuer{}, &seqIDs{}, observability.NopLogger())

	def, err := pipeline.CreateCoupon(ctx, "launch", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, def.Remaining)

	_, err = pipeline.CreateCoupon(ctx, "bad", 0)
	assert.ErrorIs(t, err, domcoupon.ErrInvalidStock)

	require.NoError(t, pipeline.Replenish(ctx, def.ID, 5))
	stored, err := pipeline.Coupon(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, stored.Remaining)
}

// pollGrants waits until the user's coupon list reaches want entries.
func pollGrants(t *testing.T, pipeline *Pipeline, userID string, want int) []*domcoupon.UserCoupon {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		grants, err := pipeline.UserCoupons(context.Background(), userID)
		require.NoError(t, err)
		if len(grants) >= want {
			return grants
		}
		select {
		case <-deadline:
			t.Fatalf("user %s: wanted %d grants, have %d", userID, want, len(grants))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestIssuanceEndToEndGrantsInSubmissionOrder(t *testing.T) {
	ctx := context.Background()
	const stock = 3
	repo := seedRepo(t, stock)
	consumer := NewConsumer(repo, nil, observability.NopTelemetry())

	q := queue.New(consumer.Handle, observability.NopLogger(), observability.NopTelemetry())
	q.Start(ctx)
	defer q.Stop(ctx)

	pipeline := NewPipeline(repo, q, &seqIDs{}, observability.NopLogger())

	// Five users race for three units; submission order decides the winners.
	for i := 1; i <= 5; i++ {
		_, err := pipeline.RequestIssue(ctx, fmt.Sprintf("u%d", i), "c1")
		require.NoError(t, err)
	}

	for i := 1; i <= stock; i++ {
		grants := pollGrants(t, pipeline, fmt.Sprintf("u%d", i), 1)
		assert.Equal(t, "c1", grants[0].CouponID)
	}

	// Once the first three are visible, FIFO guarantees the rest were already
	// resolved as sold out.
	for i := stock + 1; i <= 5; i++ {
		grants, err := pipeline.UserCoupons(ctx, fmt.Sprintf("u%d", i))
		require.NoError(t, err)
		assert.Empty(t, grants)
	}

	def, err := pipeline.Coupon(ctx, "c1")
	require.NoError(t, err)
	assert.Zero(t, def.Remaining)
}

func TestIssuanceEndToEndConcurrentProducers(t *testing.T) {
	ctx := context.Background()
	const stock = 5
	const users = 30
	repo := seedRepo(t, stock)
	consumer := NewConsumer(repo, nil, observability.NopTelemetry())

	q := queue.New(consumer.Handle, observability.NopLogger(), observability.NopTelemetry())
	q.Start(ctx)
	defer q.Stop(ctx)

	pipeline := NewPipeline(repo, q, &seqIDs{}, observability.NopLogger())

	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := pipeline.RequestIssue(ctx, fmt.Sprintf("u%d", n), "c1")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	deadline := time.After(5 * time.Second)
	for {
		def, err := pipeline.Coupon(ctx, "c1")
		require.NoError(t, err)
		if def.Remaining == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("stock never drained, remaining %d", def.Remaining)
		case <-time.After(10 * time.Millisecond):
		}
	}

	// Exactly stock grants across all users, never more.
	time.Sleep(50 * time.Millisecond)
	var granted int
	for i := 0; i < users; i++ {
		grants, err := pipeline.UserCoupons(ctx, fmt.Sprintf("u%d", i))
		require.NoError(t, err)
		granted += len(grants)
	}
	assert.Equal(t, stock, granted)
}
