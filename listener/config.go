package listener

import (
	"time"

	"github.com/hugolhafner/go-listener/kafka"
	"github.com/hugolhafner/go-listener/logger"
	"github.com/hugolhafner/go-listener/otel"
)

type containerConfig struct {
	topics        []string
	listener      Listener
	batchListener BatchListener
	handler       any
	producer      kafka.TxnProducer
	level         logger.LogLevel
	logger        logger.Logger
	tel           *otel.Telemetry
	pollBackoff   time.Duration
}

func defaultContainerConfig() containerConfig {
	return containerConfig{
		level:       logger.ErrorLevel,
		logger:      logger.NewNoopLogger(),
		tel:         otel.Noop(),
		pollBackoff: time.Second,
	}
}

type ContainerOption func(*containerConfig)

func WithTopics(topics ...string) ContainerOption {
	return func(c *containerConfig) {
		c.topics = topics
	}
}

// WithListener delivers records one at a time.
func WithListener(l Listener) ContainerOption {
	return func(c *containerConfig) {
		c.listener = l
	}
}

// WithBatchListener delivers whole polled batches. Required when a
// transactional producer is configured.
func WithBatchListener(l BatchListener) ContainerOption {
	return func(c *containerConfig) {
		c.batchListener = l
	}
}

// WithErrorHandler installs the failure handler. The handler declares its
// capabilities by implementing one or more of RecordHandler,
// BatchHandler, ContainerAwareRecordHandler, ContainerAwareBatchHandler.
func WithErrorHandler(h any) ContainerOption {
	return func(c *containerConfig) {
		c.handler = h
	}
}

// WithTxnProducer runs every batch inside a broker transaction: begin
// before delivery, send-offsets plus commit on success, abort before any
// rewind on failure.
func WithTxnProducer(p kafka.TxnProducer) ContainerOption {
	return func(c *containerConfig) {
		c.producer = p
	}
}

// WithContainerLogLevel sets the level fatal failures are reported at,
// and the severity hint placed on every Failure envelope.
func WithContainerLogLevel(level logger.LogLevel) ContainerOption {
	return func(c *containerConfig) {
		c.level = level
	}
}

func WithContainerLogger(l logger.Logger) ContainerOption {
	return func(c *containerConfig) {
		c.logger = l
	}
}

func WithContainerTelemetry(t *otel.Telemetry) ContainerOption {
	return func(c *containerConfig) {
		c.tel = t
	}
}

// WithPollBackoff sets how long the loop waits after a failed poll
// before polling again.
func WithPollBackoff(d time.Duration) ContainerOption {
	return func(c *containerConfig) {
		c.pollBackoff = d
	}
}
