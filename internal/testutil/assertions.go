// Package testutil provides shared test helpers.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reglet-dev/plughost/domain/errors"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// AssertCode asserts that err carries the result code want.
func AssertCode(t *testing.T, want errors.Code, err error, msgAndArgs ...interface{}) bool {
	t.Helper()
	got := errors.CodeOf(err)
	if want.IsError() && !assert.Error(t, err, msgAndArgs...) {
		return false
	}
	return assert.Equal(t, want, got, msgAndArgs...)
}
