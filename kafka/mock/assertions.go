package mockkafka

import (
	"testing"

	"github.com/hugolhafner/go-listener/kafka"
	"github.com/stretchr/testify/require"
)

// AssertSeek verifies that a seek to exactly this partition and offset
// was issued.
func (c *Client) AssertSeek(tb testing.TB, tp kafka.TopicPartition, offset int64) {
	tb.Helper()

	for _, call := range c.CallsOf(OpSeek) {
		if call.TP == tp && call.Offset == offset {
			return
		}
	}

	tb.Errorf("expected seek to %s offset %d, but none was issued", tp, offset)
}

// AssertNoSeek verifies that no seek was issued for the partition.
func (c *Client) AssertNoSeek(tb testing.TB, tp kafka.TopicPartition) {
	tb.Helper()

	for _, call := range c.CallsOf(OpSeek) {
		if call.TP == tp {
			tb.Errorf("expected no seek for %s, but one was issued to offset %d", tp, call.Offset)
			return
		}
	}
}

// AssertSeeks verifies the exact seeks issued, in order.
func (c *Client) AssertSeeks(tb testing.TB, expected ...Call) {
	tb.Helper()

	actual := c.CallsOf(OpSeek)
	require.Len(tb, actual, len(expected), "expected %d seeks, got %d", len(expected), len(actual))
	for i, call := range expected {
		require.Equal(tb, OpSeek, actual[i].Op)
		require.Equal(tb, call.TP, actual[i].TP, "seek %d partition", i)
		require.Equal(tb, call.Offset, actual[i].Offset, "seek %d offset", i)
	}
}

// AssertCallOrder verifies that the given ops appear in the call log in
// the given relative order, skipping unrelated entries.
func (c *Client) AssertCallOrder(tb testing.TB, ops ...Op) {
	tb.Helper()

	calls := c.Calls()
	i := 0
	for _, call := range calls {
		if i < len(ops) && call.Op == ops[i] {
			i++
		}
	}

	require.Equal(tb, len(ops), i, "call log %v does not contain ops %v in order", calls, ops)
}

// AssertCommitted verifies that an offset was committed for the
// topic-partition.
func (c *Client) AssertCommitted(tb testing.TB, tp kafka.TopicPartition) {
	tb.Helper()

	_, ok := c.CommittedOffset(tp)
	require.True(tb, ok, "committed offset not found for %s", tp)
}

// AssertCommittedOffset verifies that a specific offset was committed.
func (c *Client) AssertCommittedOffset(tb testing.TB, tp kafka.TopicPartition, expected int64) {
	tb.Helper()

	actual, ok := c.CommittedOffset(tp)
	require.True(tb, ok, "expected offset %d to be committed for %s, but none found", expected, tp)
	require.Equal(tb, expected, actual.Offset, "expected offset %d committed for %s, got %d", expected, tp, actual.Offset)
}

// AssertNothingCommitted verifies that no offsets were committed.
func (c *Client) AssertNothingCommitted(tb testing.TB) {
	tb.Helper()

	require.Empty(tb, c.CommittedOffsets(), "expected no committed offsets")
}

// AssertSubscribed verifies that the client is subscribed to the given
// topics.
func (c *Client) AssertSubscribed(tb testing.TB, topics ...string) {
	tb.Helper()

	subs := make(map[string]bool)
	for _, s := range c.Subscriptions() {
		subs[s] = true
	}

	for _, topic := range topics {
		if !subs[topic] {
			tb.Errorf("expected client to be subscribed to topic %q, but it is not", topic)
		}
	}
}

// AssertClosed verifies that Close was called.
func (c *Client) AssertClosed(tb testing.TB) {
	tb.Helper()

	require.True(tb, c.IsClosed(), "expected client to be closed")
}

// AssertTxnCounts verifies how many transactions were committed and
// aborted.
func (c *Client) AssertTxnCounts(tb testing.TB, commits, aborts int) {
	tb.Helper()

	actualCommits := len(c.CallsOf(OpCommitTxn))
	actualAborts := len(c.CallsOf(OpAbortTxn))
	require.Equal(tb, commits, actualCommits, "expected %d transaction commits, got %d", commits, actualCommits)
	require.Equal(tb, aborts, actualAborts, "expected %d transaction aborts, got %d", aborts, actualAborts)
}
