package point

import "time"

type HistoryKind string

const (
	HistoryCharge HistoryKind = "charge"
	HistoryUse    HistoryKind = "use"
	HistoryRefund HistoryKind = "refund"
)

// History records one balance mutation together with the balance it produced.
type History struct {
	ID        string
	UserID    string
	Kind      HistoryKind
	Amount    int64
	Balance   int64
	CreatedAt time.Time
}

func NewHistory(id, userID string, kind HistoryKind, amount, balance int64) *History {
	return &History{
		ID:        id,
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
	}
}
