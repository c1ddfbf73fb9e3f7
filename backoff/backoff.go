// Package backoff defines the retry pacing contract used by the failure
// recovery handlers. A Policy is a stateless descriptor; Start produces
// an Execution, a stateful cursor that yields the next wait interval or
// Stop once its attempts are exhausted.
package backoff

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Stop is returned by an Execution once its attempts are exhausted.
const Stop time.Duration = backoff.Stop

// Policy describes a backoff schedule. Policies hold no mutable state;
// every Start call returns an independent Execution.
type Policy interface {
	Start() Execution
}

// Execution is a single episode's cursor over a Policy. Not safe for
// concurrent use.
type Execution interface {
	NextInterval() time.Duration
}

type execution struct {
	b backoff.BackOff
}

func (e *execution) NextInterval() time.Duration {
	return e.b.NextBackOff()
}

// FixedPolicy waits a fixed interval between attempts and signals Stop
// after maxAttempts intervals have been handed out.
type FixedPolicy struct {
	interval    time.Duration
	maxAttempts uint64
}

func NewFixed(interval time.Duration, maxAttempts uint64) *FixedPolicy {
	return &FixedPolicy{interval: interval, maxAttempts: maxAttempts}
}

func (p *FixedPolicy) Start() Execution {
	return &execution{
		b: backoff.WithMaxRetries(backoff.NewConstantBackOff(p.interval), p.maxAttempts),
	}
}

// ExponentialPolicy grows the interval by multiplier up to max, and
// signals Stop after maxAttempts intervals.
type ExponentialPolicy struct {
	initial     time.Duration
	max         time.Duration
	multiplier  float64
	maxAttempts uint64
}

func NewExponential(initial, max time.Duration, multiplier float64, maxAttempts uint64) *ExponentialPolicy {
	if multiplier < 1 {
		multiplier = 1
	}
	return &ExponentialPolicy{
		initial:     initial,
		max:         max,
		multiplier:  multiplier,
		maxAttempts: maxAttempts,
	}
}

func (p *ExponentialPolicy) Start() Execution {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.initial
	eb.MaxInterval = p.max
	eb.Multiplier = p.multiplier
	// the schedule must be deterministic so redelivery timing is
	// assertable; attempts are bounded by count, not wall time
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()

	return &execution{
		b: backoff.WithMaxRetries(eb, p.maxAttempts),
	}
}
