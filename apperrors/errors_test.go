package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, KindValidation, KindOf(Validation("bad %s", "category")))
	require.Equal(t, KindConflict, KindOf(fmt.Errorf("wrapped: %w", Conflict("already verified"))))
	require.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestInternalUnwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := Internal("failed to save issue", cause)
	require.ErrorIs(t, err, cause)
	require.True(t, Is(err, KindInternal))
	require.Contains(t, err.Error(), "socket closed")
}

func TestMessageFormatting(t *testing.T) {
	err := NotFound("issue %s not found", "abc")
	require.Equal(t, "issue abc not found", err.Message)
	require.Equal(t, "not_found: issue abc not found", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	require.Equal(t, 400, HTTPStatus(Validation("x")))
	require.Equal(t, 401, HTTPStatus(Unauthorized("x")))
	require.Equal(t, 403, HTTPStatus(Forbidden("x")))
	require.Equal(t, 404, HTTPStatus(NotFound("x")))
	require.Equal(t, 409, HTTPStatus(Conflict("x")))
	require.Equal(t, 500, HTTPStatus(errors.New("boom")))
}

func TestMessageHidesForeignErrors(t *testing.T) {
	require.Equal(t, "already verified", Message(Conflict("already verified")))
	require.Equal(t, "failed to save issue", Message(Internal("failed to save issue", errors.New("dial tcp"))))
	require.Equal(t, "internal server error", Message(errors.New("dial tcp 10.0.0.1")))
}
