package point

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountCharge(t *testing.T) {
	a := NewAccount("u1")

	require.NoError(t, a.Charge(1_000))
	assert.Equal(t, int64(1_000), a.Balance)

	assert.ErrorIs(t, a.Charge(0), ErrInvalidAmount)
	assert.ErrorIs(t, a.Charge(-5), ErrInvalidAmount)
	assert.Equal(t, int64(1_000), a.Balance)
}

func TestAccountChargeRespectsLimit(t *testing.T) {
	a := NewAccount("u1")

	require.NoError(t, a.Charge(MaxBalance))
	assert.ErrorIs(t, a.Charge(1), ErrBalanceLimit)
	assert.Equal(t, MaxBalance, a.Balance)
}

func TestAccountDebit(t *testing.T) {
	a := NewAccount("u1")
	require.NoError(t, a.Charge(500))

	require.NoError(t, a.Debit(200))
	assert.Equal(t, int64(300), a.Balance)

	assert.ErrorIs(t, a.Debit(301), ErrInsufficientBalance)
	assert.Equal(t, int64(300), a.Balance)

	assert.ErrorIs(t, a.Debit(0), ErrInvalidAmount)
}

func TestAccountCredit(t *testing.T) {
	a := NewAccount("u1")

	require.NoError(t, a.Credit(0))
	require.NoError(t, a.Credit(250))
	assert.Equal(t, int64(250), a.Balance)

	assert.ErrorIs(t, a.Credit(-1), ErrInvalidAmount)
}
