package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusOf(DuplicateEmail()))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(InvalidCredentials()))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(NotVerified()))
	assert.Equal(t, http.StatusForbidden, StatusOf(Forbidden()))
	assert.Equal(t, http.StatusBadRequest, StatusOf(InvalidOrExpiredToken(http.StatusBadRequest, "x")))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(InvalidOrExpiredToken(http.StatusUnauthorized, "x")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
}

func TestAs_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("login: %w", NotVerified())

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindNotVerified, e.Kind)
	assert.True(t, IsKind(err, KindNotVerified))
	assert.False(t, IsKind(err, KindInvalidCredentials))
	assert.True(t, errors.Is(err, NotVerified()))
}

func TestInternal_HidesCause(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := Internal(cause)

	assert.Equal(t, "Something went wrong.", err.Message)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWrap_DoesNotMutateOriginal(t *testing.T) {
	base := Unauthorized("Authentication required. Please log in.")
	wrapped := base.Wrap(errors.New("expired"))

	assert.Nil(t, base.Err)
	assert.NotNil(t, wrapped.Err)
	assert.Equal(t, base.Message, wrapped.Message)
}
