package coupon

import "time"

// GrantedEvent is emitted after the consumer stage creates a UserCoupon.
type GrantedEvent struct {
	RequestID  string
	CouponID   string
	UserID     string
	OccurredAt time.Time
}

func (GrantedEvent) EventName() string { return "coupon.granted" }

func NewGrantedEvent(req IssueRequest) GrantedEvent {
	return GrantedEvent{
		RequestID:  req.ID,
		CouponID:   req.CouponID,
		UserID:     req.UserID,
		OccurredAt: time.Now().UTC(),
	}
}

// RejectedEvent is emitted when an issuance request resolves without a grant.
type RejectedEvent struct {
	RequestID  string
	CouponID   string
	UserID     string
	Outcome    Outcome
	OccurredAt time.Time
}

func (RejectedEvent) EventName() string { return "coupon.rejected" }

func NewRejectedEvent(req IssueRequest, outcome Outcome) RejectedEvent {
	return RejectedEvent{
		RequestID:  req.ID,
		CouponID:   req.CouponID,
		UserID:     req.UserID,
		Outcome:    outcome,
		OccurredAt: time.Now().UTC(),
	}
}
