package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("handler: %w", NotFound("votes.CastVote", "Answer not found"))

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindConflict))
}

func TestKindOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "Internal server error", MessageOf(errors.New("boom")))
}

func TestMessageOf_HidesInternalCause(t *testing.T) {
	err := Internal("reputation.ApplyDelta", errors.New("connection reset"))

	assert.Equal(t, "Internal server error", MessageOf(err))
	assert.Contains(t, err.Error(), "connection reset")
	assert.ErrorIs(t, err, err.Err)
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Unauthorized("op"), http.StatusUnauthorized},
		{Forbidden("op", "no"), http.StatusForbidden},
		{NotFound("op", "missing"), http.StatusNotFound},
		{InvalidArgument("op", "bad"), http.StatusBadRequest},
		{Conflict("op", "state"), http.StatusConflict},
		{errors.New("raw"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestEnsure(t *testing.T) {
	assert.NoError(t, Ensure("op", nil))

	nf := NotFound("inner", "missing")
	assert.Same(t, nf, Ensure("outer", nf))

	wrapped := Ensure("outer", errors.New("disk full"))
	assert.True(t, Is(wrapped, KindInternal))
	assert.Equal(t, "Internal server error", MessageOf(wrapped))
}
