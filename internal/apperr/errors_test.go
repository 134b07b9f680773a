package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := &Error{Code: CodeStale, Op: "update", Message: "record removed upstream", RecordID: "p1"}
	assert.Equal(t, "update: STALE_RESOURCE: record removed upstream (id=p1)", err.Error())

	wrapped := Wrap(CodeTransport, "remove", "delete failed", errors.New("connection refused"))
	assert.Equal(t, "remove: TRANSPORT: delete failed: connection refused", wrapped.Error())

	bare := New(CodeValidation, "", "name is required")
	assert.Equal(t, "VALIDATION: name is required", bare.Error())
}

func TestIsHelpersUnwrap(t *testing.T) {
	base := Validation("create", "field %q is required", "name")
	wrapped := fmt.Errorf("submit form: %w", base)

	assert.True(t, IsValidation(wrapped))
	assert.False(t, IsConflict(wrapped))
	assert.Equal(t, CodeValidation, CodeOf(wrapped))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, `create: VALIDATION: field "name" is required`, base.Error())
}

func TestEachCodeHelper(t *testing.T) {
	assert.True(t, IsConflict(New(CodeConflict, "create", "dup")))
	assert.True(t, IsStale(New(CodeStale, "update", "gone")))
	assert.True(t, IsAuthFailed(New(CodeAuthFailed, "login", "bad")))
	assert.True(t, IsTransport(New(CodeTransport, "list", "down")))
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(CodeTransport, "list", "fetch failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestDetailOf(t *testing.T) {
	err := &Error{Code: CodeConflict, Detail: "existing"}
	d, ok := DetailOf(fmt.Errorf("wrap: %w", err))
	assert.True(t, ok)
	assert.Equal(t, "existing", d)

	_, ok = DetailOf(New(CodeTransport, "", "x"))
	assert.False(t, ok)
}
