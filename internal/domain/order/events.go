package order

import "time"

// CommittedEvent is emitted after settlement commits. Downstream failures to
// handle it never reverse the commit.
type CommittedEvent struct {
	OrderID      string
	UserID       string
	TotalCharged int64
	PointsUsed   int64
	OccurredAt   time.Time
}

func (CommittedEvent) EventName() string { return "order.committed" }

func NewCommittedEvent(o *Order) CommittedEvent {
	return CommittedEvent{
		OrderID:      o.ID,
		UserID:       o.UserID,
		TotalCharged: o.TotalCharged,
		PointsUsed:   o.PointsUsed,
		OccurredAt:   time.Now().UTC(),
	}
}
