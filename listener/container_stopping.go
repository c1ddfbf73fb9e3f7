package listener

import (
	"context"
	"time"

	"github.com/hugolhafner/go-listener/kafka"
	"github.com/hugolhafner/go-listener/logger"
	"github.com/hugolhafner/go-listener/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultStopInterval = 100 * time.Millisecond
	defaultStopAttempts = 100
)

var (
	_ ContainerAwareRecordHandler = (*ContainerStoppingHandler)(nil)
	_ ContainerAwareBatchHandler  = (*ContainerStoppingHandler)(nil)
)

// ContainerStoppingHandler escalates any failure to stopping the owning
// container. The stop request runs on its own goroutine so a handler
// invoked from the container's poll goroutine cannot deadlock on it; the
// calling goroutine blocks polling the running flag for a bounded window.
// The handler always returns a fatal error wrapping the original cause,
// whether or not the container was observed to stop in time.
type ContainerStoppingHandler struct {
	level    logger.LogLevel
	logger   logger.Logger
	tel      *otel.Telemetry
	interval time.Duration
	attempts int
}

type StopOption func(*ContainerStoppingHandler)

func StopWithLogLevel(level logger.LogLevel) StopOption {
	return func(h *ContainerStoppingHandler) {
		h.level = level
	}
}

func StopWithLogger(l logger.Logger) StopOption {
	return func(h *ContainerStoppingHandler) {
		h.logger = l
	}
}

func StopWithTelemetry(t *otel.Telemetry) StopOption {
	return func(h *ContainerStoppingHandler) {
		h.tel = t
	}
}

// StopWithWait bounds the running-flag poll loop: interval between polls
// and the maximum number of polls before giving up on observing the stop.
func StopWithWait(interval time.Duration, attempts int) StopOption {
	return func(h *ContainerStoppingHandler) {
		h.interval = interval
		h.attempts = attempts
	}
}

func NewContainerStoppingHandler(opts ...StopOption) *ContainerStoppingHandler {
	h := &ContainerStoppingHandler{
		level:    logger.ErrorLevel,
		logger:   logger.NewNoopLogger(),
		tel:      otel.Noop(),
		interval: defaultStopInterval,
		attempts: defaultStopAttempts,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ContainerStoppingHandler) HandleRecordWithContainer(
	ctx context.Context, f Failure, consumer kafka.Consumer, container Container,
) error {
	return h.stop(ctx, f.Cause, container)
}

func (h *ContainerStoppingHandler) HandleBatchWithContainer(
	ctx context.Context, f Failure, consumer kafka.Consumer, container Container,
) error {
	return h.stop(ctx, f.Cause, container)
}

func (h *ContainerStoppingHandler) stop(ctx context.Context, cause error, container Container) error {
	h.logger.Error("Stopping container after listener failure", "error", cause)

	// the worker only signals intent to stop; it must never touch the
	// consumer or producer handles, those stay on the polling goroutine
	go container.Stop()

	outcome := otel.StopOutcomeTimedOut
	// the running flag flips before Stop waits for the poll goroutine
	// to unwind, so this loop normally observes it quickly
	for n := 0; container.IsRunning() && n < h.attempts; n++ {
		if err := sleep(ctx, h.interval); err != nil {
			outcome = otel.StopOutcomeAborted
			break
		}
	}
	if !container.IsRunning() {
		outcome = otel.StopOutcomeStopped
	}

	h.tel.ContainerStops.Add(ctx, 1, metric.WithAttributes(otel.AttrStopOutcome.String(outcome)))

	// the wait is best effort; timing out only bounds how long this
	// blocks, never suppresses the fatal outcome
	return NewFatalError("stopped container", h.level, cause)
}
