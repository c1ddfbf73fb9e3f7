package mockkafka

import "github.com/hugolhafner/go-listener/kafka"

// Option is a functional option for configuring a mock Client.
type Option func(*Client)

// WithMaxPollRecords sets the maximum number of records returned per
// Poll call. Default is 100.
func WithMaxPollRecords(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPollRecords = n
		}
	}
}

// WithGroupMetadata sets the metadata returned by GroupMetadata.
func WithGroupMetadata(meta kafka.GroupMetadata) Option {
	return func(c *Client) {
		c.meta = meta
	}
}

// WithPollError configures an error to be returned by all Poll calls.
func WithPollError(err error) Option {
	return func(c *Client) {
		c.pollErr = func() error { return err }
	}
}

// WithPollErrorFunc configures a function to determine Poll errors.
func WithPollErrorFunc(fn func() error) Option {
	return func(c *Client) {
		c.pollErr = fn
	}
}

// WithCommitError configures an error returned by all CommitOffsets
// calls.
func WithCommitError(err error) Option {
	return func(c *Client) {
		c.commitErr = func() error { return err }
	}
}

// WithBeginError configures an error returned by Begin.
func WithBeginError(err error) Option {
	return func(c *Client) {
		c.beginErr = func() error { return err }
	}
}

// WithSendOffsetsError configures an error returned by SendOffsets.
func WithSendOffsetsError(err error) Option {
	return func(c *Client) {
		c.sendOffsetsErr = func() error { return err }
	}
}

// WithCommitTxnError configures an error returned by the transactional
// Commit.
func WithCommitTxnError(err error) Option {
	return func(c *Client) {
		c.commitTxnErr = func() error { return err }
	}
}

// WithCommitTxnErrorFunc configures a function to determine Commit
// errors.
func WithCommitTxnErrorFunc(fn func() error) Option {
	return func(c *Client) {
		c.commitTxnErr = fn
	}
}

// WithAbortError configures an error returned by Abort.
func WithAbortError(err error) Option {
	return func(c *Client) {
		c.abortErr = func() error { return err }
	}
}
