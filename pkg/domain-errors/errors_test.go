package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIs(t *testing.T) {
	err := New(CodeAuthInvalid, "invalid token")
	require.ErrorIs(t, err, New(CodeAuthInvalid, "invalid token"))
	assert.NotErrorIs(t, err, New(CodeAuthInvalid, "token has expired"))
	assert.NotErrorIs(t, err, New(CodeAuthMissing, "invalid token"))
}

func TestHasCode(t *testing.T) {
	t.Run("wrapped by fmt", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeConflict, "already exists"))
		assert.True(t, HasCode(err, CodeConflict))
		assert.Equal(t, CodeConflict, CodeOf(err))
	})

	t.Run("nested domain errors keep inner code visible", func(t *testing.T) {
		inner := New(CodeValidation, "bad field")
		err := Wrap(inner, CodeInternal, "request failed")
		assert.True(t, HasCode(err, CodeValidation))
		assert.True(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("plain error", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, Code(""), CodeOf(errors.New("boom")))
	})
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeInternal, "nothing"))

	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "failed to load roles")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load roles: connection refused", err.Error())
	assert.Equal(t, "failed to load roles", MessageOf(err))
}
