package mocklogger

import (
	"testing"

	"github.com/hugolhafner/go-listener/logger"
)

func (m *MockLogger) AssertCalledWithMessage(tb testing.TB, message string) {
	tb.Helper()

	for _, entry := range m.Entries {
		if entry.Message == message {
			return
		}
	}

	tb.Errorf("expected log message '%s' to be called", message)
}

func (m *MockLogger) AssertCalledWithLevel(tb testing.TB, level logger.LogLevel) {
	tb.Helper()

	for _, entry := range m.Entries {
		if entry.Level == level {
			return
		}
	}

	tb.Errorf("expected log level '%s' to be called", level.String())
}

func (m *MockLogger) AssertCalledWithLevelAndMessage(tb testing.TB, level logger.LogLevel, message string) {
	tb.Helper()

	for _, entry := range m.Entries {
		if entry.Level == level && entry.Message == message {
			return
		}
	}

	tb.Errorf("expected log with level '%s' and message '%s' to be called", level.String(), message)
}

func (m *MockLogger) AssertNotCalledWithMessage(tb testing.TB, message string) {
	tb.Helper()

	for _, entry := range m.Entries {
		if entry.Message == message {
			tb.Errorf("expected log message '%s' to NOT be called", message)
			return
		}
	}
}
