package listener

import (
	"errors"

	"github.com/hugolhafner/go-listener/logger"
)

// FatalError marks a failure the poll loop must not recover from. It is
// returned through the dispatch chain rather than panicked, and carries
// the log level the container should report it at. The original cause is
// always reachable through Unwrap.
type FatalError struct {
	Msg   string
	Level logger.LogLevel
	Cause error
}

func (e *FatalError) Error() string {
	if e.Cause == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Cause.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Cause
}

func NewFatalError(msg string, level logger.LogLevel, cause error) error {
	return &FatalError{
		Msg:   msg,
		Level: level,
		Cause: cause,
	}
}

func AsFatalError(err error) (*FatalError, bool) {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe, true
	}

	return nil, false
}

// IsFatal reports whether err carries the fatal tag anywhere in its chain.
func IsFatal(err error) bool {
	_, ok := AsFatalError(err)
	return ok
}
