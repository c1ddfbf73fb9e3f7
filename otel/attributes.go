package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

const (
	AttrTopic        = attribute.Key("listener.topic")
	AttrPartition    = attribute.Key("listener.partition")
	AttrFailureKind  = attribute.Key("listener.failure.kind")
	AttrHandlerKind  = attribute.Key("listener.handler.kind")
	AttrStopOutcome  = attribute.Key("listener.stop.outcome")
	AttrTxnOutcome   = attribute.Key("listener.transaction.outcome")
	AttrDeliveryMode = attribute.Key("listener.delivery.mode")
)

// Failure kind values
const (
	FailureKindRecord = "record"
	FailureKindBatch  = "batch"
)

// Delivery mode values
const (
	DeliveryModeRecord = "record"
	DeliveryModeBatch  = "batch"
)

// Stop outcome values
const (
	StopOutcomeStopped  = "stopped"
	StopOutcomeTimedOut = "timed_out"
	StopOutcomeAborted  = "aborted"
)
