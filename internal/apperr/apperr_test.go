package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(Conflict, "User already exists"))
	require.Equal(t, Conflict, KindOf(err))
	require.Equal(t, "User already exists", Message(err))
}

func TestKindOf_Unknown(t *testing.T) {
	require.Equal(t, Internal, KindOf(errors.New("driver: broken pipe")))
	// les causes internes ne fuitent jamais vers le client
	require.Equal(t, "Internal server error", Message(errors.New("driver: broken pipe")))
}

func TestStatusAndCode(t *testing.T) {
	cases := []struct {
		kind   Kind
		status int
		code   string
	}{
		{Validation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{Conflict, http.StatusConflict, "CONFLICT"},
		{Authentication, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{MissingToken, http.StatusUnauthorized, "AUTH_REQUIRED"},
		{ExpiredToken, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{InvalidToken, http.StatusBadRequest, "INVALID_TOKEN"},
		{NotFound, http.StatusUnauthorized, "USER_NOT_FOUND"},
		{Upstream, http.StatusInternalServerError, "UPSTREAM_ERROR"},
		{Internal, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, c := range cases {
		require.Equal(t, c.status, c.kind.Status(), c.code)
		require.Equal(t, c.code, c.kind.Code())
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("no rows")
	err := Wrap(NotFound, "User account not found", cause)
	require.ErrorIs(t, err, cause)
}
