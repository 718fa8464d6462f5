package resilience

import "time"

// Operations guarded by the executor. Each gets its own circuit breaker and,
// when configured, its own retry policy.
const (
	OpLedgerInsert     = "postgres.ledger_insert"
	OpStatementPublish = "nats.statement_publish"
)

// RetryPolicy bounds how often and how long one operation is retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// Backoff is the wait after the given failed attempt, counted from 1.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	wait := p.InitialBackoff
	for i := 1; i < attempt && wait < p.MaxBackoff; i++ {
		wait = time.Duration(float64(wait) * p.Multiplier)
	}
	if wait > p.MaxBackoff {
		wait = p.MaxBackoff
	}
	return wait
}

// WorstCase is the total sleep when every attempt fails.
func (p RetryPolicy) WorstCase() time.Duration {
	var total time.Duration
	for attempt := 1; attempt < p.MaxAttempts; attempt++ {
		total += p.Backoff(attempt)
	}
	return total
}

// Within drops attempts until the worst-case sleep fits budget. At least one
// attempt always remains.
func (p RetryPolicy) Within(budget time.Duration) RetryPolicy {
	out := p
	for out.MaxAttempts > 1 && out.WorstCase() > budget {
		out.MaxAttempts--
	}
	return out
}

func (p RetryPolicy) sanitize() RetryPolicy {
	out := p
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = 1
	}
	if out.InitialBackoff < 0 {
		out.InitialBackoff = 0
	}
	if out.MaxBackoff < out.InitialBackoff {
		out.MaxBackoff = out.InitialBackoff
	}
	if out.Multiplier < 1 {
		out.Multiplier = 1
	}
	return out
}

type BreakerPolicy struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

func (b BreakerPolicy) sanitize() BreakerPolicy {
	out := b
	if out.MinRequests == 0 {
		out.MinRequests = 1
	}
	if out.FailureRatio <= 0 || out.FailureRatio > 1 {
		out.FailureRatio = 1
	}
	if out.OpenTimeout <= 0 {
		out.OpenTimeout = time.Second
	}
	if out.HalfOpenMaxCalls == 0 {
		out.HalfOpenMaxCalls = 1
	}
	return out
}

// Config holds a fallback retry policy, per-operation overrides and the
// breaker settings shared by every operation's breaker.
type Config struct {
	Retry      RetryPolicy
	Operations map[string]RetryPolicy
	Breaker    BreakerPolicy
}

func (c Config) policyFor(operation string) RetryPolicy {
	if p, ok := c.Operations[operation]; ok {
		return p.sanitize()
	}
	return c.Retry.sanitize()
}

// StatementConfig derives the pipeline's policies from base and the run
// timeout. A run writes many ledger rows inside one JOB_TIMEOUT, so a single
// insert may sleep at most a tenth of it. Publishing happens inside the upload
// request and is limited to two attempts.
func StatementConfig(base RetryPolicy, breaker BreakerPolicy, runTimeout time.Duration) Config {
	base = base.sanitize()

	insert := base
	if runTimeout > 0 {
		insert = insert.Within(runTimeout / 10)
	}

	publish := base
	if publish.MaxAttempts > 2 {
		publish.MaxAttempts = 2
	}

	return Config{
		Retry: base,
		Operations: map[string]RetryPolicy{
			OpLedgerInsert:     insert,
			OpStatementPublish: publish,
		},
		Breaker: breaker.sanitize(),
	}
}
