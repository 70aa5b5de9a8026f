package logging

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry so tests can check what a pipeline run
// reported.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger returns a TestLogger that records all levels down to Trace.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{Logger: &Logger{zap: zap.New(core)}, observed: observed}
}

// FilterMessage returns the entries whose message contains snippet.
func (t *TestLogger) FilterMessage(snippet string) *observer.ObservedLogs {
	return t.observed.FilterMessageSnippet(snippet)
}

func (t *TestLogger) find(level zapcore.Level, snippet string) bool {
	for _, e := range t.observed.All() {
		if e.Level == level && strings.Contains(e.Message, snippet) {
			return true
		}
	}
	return false
}

// AssertLogged fails tb unless an entry at level mentions snippet.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	if !t.find(level, snippet) {
		tb.Errorf("no %v entry containing %q in %d entries", level, snippet, t.observed.Len())
	}
}

// AssertNotLogged fails tb if an entry at level mentions snippet.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	if t.find(level, snippet) {
		tb.Errorf("unexpected %v entry containing %q", level, snippet)
	}
}

// AssertField fails tb unless an entry mentioning snippet carries key=want.
func (t *TestLogger) AssertField(tb testing.TB, snippet, key string, want any) {
	tb.Helper()
	for _, e := range t.observed.FilterMessageSnippet(snippet).All() {
		if got, ok := e.ContextMap()[key]; ok && reflect.DeepEqual(got, want) {
			return
		}
	}
	tb.Errorf("no entry containing %q with %s=%v", snippet, key, want)
}
