package listener

import (
	"time"

	"github.com/hugolhafner/go-listener/backoff"
)

// RetryState is the backoff cursor for one failure episode. It is owned
// by the goroutine running the poll loop and passed into handler calls
// explicitly; it must never be shared across goroutines.
//
// Forgetting to Clear between unrelated episodes is a correctness bug:
// the attempt count would accumulate across failures that have nothing
// to do with each other.
type RetryState struct {
	exec backoff.Execution
	last time.Duration
}

func NewRetryState() *RetryState {
	return &RetryState{}
}

// NextDelay returns the interval to sleep before the next redelivery and
// whether the policy has signalled stop. The Execution is created lazily
// on the first failure of an episode and reused until Clear.
//
// Once exhausted, the last handed-out interval keeps being returned so a
// caller that continues redelivering stays paced instead of spinning hot.
func (s *RetryState) NextDelay(p backoff.Policy) (time.Duration, bool) {
	if p == nil {
		return 0, false
	}

	if s.exec == nil {
		s.exec = p.Start()
		s.last = 0
	}

	d := s.exec.NextInterval()
	if d == backoff.Stop {
		return s.last, true
	}

	s.last = d
	return d, false
}

// Clear drops the current Execution, forcing a fresh one on the next
// failure. Called when a delivery finally succeeds and when the episode
// is externally ended, e.g. by a rebalance.
func (s *RetryState) Clear() {
	s.exec = nil
	s.last = 0
}
