package point

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dompoint "github.com/flashcart/flashcart/internal/domain/point"
	"github.com/flashcart/flashcart/internal/infrastructure/memory"
	"github.com/flashcart/flashcart/internal/observability"
)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() string { return "h-" + strconv.FormatInt(s.n.Add(1), 10) }

func newTestLedger() (*Ledger, *memory.PointHistoryRepository) {
	histories := memory.NewPointHistoryRepository()
	ledger := NewLedger(memory.NewPointRepository(), histories, &seqIDs{}, observability.NopLogger())
	return ledger, histories
}

func TestChargeCreatesAccount(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	balance, err := ledger.Charge(ctx, "u1", 500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	balance, err = ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)
}

func TestChargeRejectsInvalidAmounts(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	_, err := ledger.Charge(ctx, "u1", 0)
	assert.ErrorIs(t, err, dompoint.ErrInvalidAmount)

	_, err = ledger.Charge(ctx, "u1", -100)
	assert.ErrorIs(t, err, dompoint.ErrInvalidAmount)
}

func TestChargeEnforcesBalanceCap(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	_, err := ledger.Charge(ctx, "u1", dompoint.MaxBalance)
	require.NoError(t, err)

	_, err = ledger.Charge(ctx, "u1", 1)
	assert.ErrorIs(t, err, dompoint.ErrBalanceLimit)

	balance, err := ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, dompoint.MaxBalance, balance)
}

func TestDebitInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	_, err := ledger.Charge(ctx, "u1", 100)
	require.NoError(t, err)

	_, err = ledger.Debit(ctx, "u1", 101)
	assert.ErrorIs(t, err, dompoint.ErrInsufficientBalance)

	balance, err := ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestConcurrentDebitsNeverGoNegative(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	_, err := ledger.Charge(ctx, "u1", 100)
	require.NoError(t, err)

	const callers = 50
	var wg sync.WaitGroup
	var granted atomic.Int64
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Debit(ctx, "u1", 10); err == nil {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), granted.Load())

	balance, err := ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestConcurrentChargesLoseNoUpdates(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	const callers = 50
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Charge(ctx, "u1", 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(callers*10), balance)
}

func TestRefundIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	_, err := ledger.Charge(ctx, "u1", 100)
	require.NoError(t, err)

	token, err := ledger.Debit(ctx, "u1", 40)
	require.NoError(t, err)

	require.NoError(t, ledger.Refund(ctx, token))
	require.NoError(t, ledger.Refund(ctx, token))
	require.NoError(t, ledger.Refund(ctx, nil))

	balance, err := ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestBalanceUnknownUserIsZero(t *testing.T) {
	ledger, _ := newTestLedger()
	balance, err := ledger.Balance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestHistoryRecordsEveryMutation(t *testing.T) {
	ctx := context.Background()
	ledger, _ := newTestLedger()

	_, err := ledger.Charge(ctx, "u1", 300)
	require.NoError(t, err)
	token, err := ledger.Debit(ctx, "u1", 100)
	require.NoError(t, err)
	require.NoError(t, ledger.Refund(ctx, token))

	entries, err := ledger.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, dompoint.HistoryCharge, entries[0].Kind)
	assert.Equal(t, int64(300), entries[0].Amount)
	assert.Equal(t, int64(300), entries[0].Balance)

	assert.Equal(t, dompoint.HistoryUse, entries[1].Kind)
	assert.Equal(t, int64(100), entries[1].Amount)
	assert.Equal(t, int64(200), entries[1].Balance)

	assert.Equal(t, dompoint.HistoryRefund, entries[2].Kind)
	assert.Equal(t, int64(100), entries[2].Amount)
	assert.Equal(t, int64(300), entries[2].Balance)
}
