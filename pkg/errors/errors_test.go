package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTypeClassification(t *testing.T) {
	tests := []struct {
		err     error
		matches func(error) bool
	}{
		{err: NewValidationError("bad input", nil), matches: IsValidationError},
		{err: NewNotFoundError("missing", nil), matches: IsNotFoundError},
		{err: NewConflictError("taken", nil), matches: IsConflictError},
		{err: NewProcessError("died", nil), matches: IsProcessError},
		{err: NewSpawnError("fork failed", nil), matches: IsSpawnError},
		{err: NewProvisioningError("step failed", nil), matches: IsProvisioningError},
		{err: NewTimeoutError("too slow", nil), matches: IsTimeoutError},
		{err: NewCancelledError("gave up", nil), matches: IsCancelledError},
	}

	for _, tt := range tests {
		assert.True(t, tt.matches(tt.err), "%v", tt.err)
		assert.False(t, IsInternalError(tt.err), "%v must not match internal", tt.err)
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewNetworkError("dial failed", cause)

	assert.Contains(t, err.Error(), "dial failed")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestClassificationSeesThroughWrapping(t *testing.T) {
	inner := NewNotFoundError("program not found", nil)
	wrapped := fmt.Errorf("handling request: %w", inner)

	assert.True(t, IsNotFoundError(wrapped))
	assert.False(t, IsValidationError(wrapped))
}

func TestWithContext(t *testing.T) {
	err := NewValidationError("bad spec", nil).
		WithContext("program", "web").
		WithContext("field", "stopsignal")

	assert.Equal(t, "web", err.Context["program"])
	assert.Equal(t, "stopsignal", err.Context["field"])
}

func TestErrorCollection(t *testing.T) {
	collection := NewErrorCollection()
	assert.NoError(t, collection.ToError())
	assert.False(t, collection.HasErrors())

	collection.Add(nil)
	assert.False(t, collection.HasErrors(), "nil errors are ignored")

	collection.Add(NewIOError("one", nil))
	collection.Add(NewIOError("two", nil))
	require.True(t, collection.HasErrors())

	err := collection.ToError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one")
	assert.Contains(t, err.Error(), "two")
}
