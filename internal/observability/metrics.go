package observability

// Metric names shared between registration in main and lookup in use cases.
const (
	MUsecaseRequests     = "usecase_requests_total"
	MUsecaseDuration     = "usecase_duration_seconds"
	MHTTPRequests        = "http_requests_total"
	MHTTPRequestDuration = "http_request_duration_seconds"
	MCouponIssueOutcomes = "coupon_issue_outcomes_total"
	MQueueRedeliveries   = "queue_redeliveries_total"
)
