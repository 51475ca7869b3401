package enums

// OutboxDLQErrorReason records why the relay gave up on an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var dlqReasons = newSet("dead letter reason", OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable)

func (r OutboxDLQErrorReason) String() string { return string(r) }
func (r OutboxDLQErrorReason) IsValid() bool  { return dlqReasons.has(r) }
