package testhelpers

import (
	"io"
	"strings"
	"testing"
)

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// NewWriter returns a log sink that writes to the test log so that output shows up only for failing tests.
func NewWriter(t testing.TB) io.Writer {
	return testWriter{t: t}
}
