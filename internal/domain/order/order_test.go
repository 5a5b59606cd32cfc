package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesRequest(t *testing.T) {
	valid := []Line{{OptionID: "opt-1", Quantity: 1}}

	cases := []struct {
		name   string
		userID string
		lines  []Line
		points int64
	}{
		{"missing user", "", valid, 0},
		{"no lines", "u1", nil, 0},
		{"zero quantity", "u1", []Line{{OptionID: "opt-1", Quantity: 0}}, 0},
		{"missing option", "u1", []Line{{Quantity: 1}}, 0},
		{"negative points", "u1", valid, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New("o1", tc.userID, tc.lines, tc.points)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestOrderLifecycle(t *testing.T) {
	o, err := New("o1", "u1", []Line{{OptionID: "opt-1", Quantity: 2}}, 100)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)

	o.Commit(1_000, 900)
	assert.Equal(t, StatusCommitted, o.Status)
	assert.Equal(t, int64(1_000), o.TotalPrice)
	assert.Equal(t, int64(900), o.TotalCharged)
	assert.Empty(t, o.FailureReason)
}

func TestOrderFailRecordsReason(t *testing.T) {
	o, err := New("o1", "u1", []Line{{OptionID: "opt-1", Quantity: 1}}, 0)
	require.NoError(t, err)

	o.Fail("out of stock")
	assert.Equal(t, StatusFailed, o.Status)
	assert.Equal(t, "out of stock", o.FailureReason)
}
