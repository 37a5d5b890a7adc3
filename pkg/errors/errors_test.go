package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	granterr "github.com/grantline/grantline/pkg/errors"
)

func TestGrantError_Error(t *testing.T) {
	t.Parallel()

	err := &granterr.GrantError{
		Code:    "INVALID_AMOUNT",
		Message: "amount exceeds remaining quota",
		Details: map[string]string{
			"amount": "60",
			"quota":  "40",
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "amount exceeds remaining quota")
	assert.Contains(t, msg, "amount: 60")
	assert.Contains(t, msg, "quota: 40")
}

func TestGrantError_ErrorWithCause(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("underlying failure")
	err := &granterr.GrantError{
		Code:    "GENERAL_ERROR",
		Message: "something failed",
		Cause:   cause,
	}

	assert.Contains(t, err.Error(), "underlying failure")
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestGrantError_Is(t *testing.T) {
	t.Parallel()

	wrapped := granterr.Wrap(granterr.ErrInvalidTime, "evaluating session %d", 3)
	assert.True(t, granterr.Is(wrapped, granterr.ErrInvalidTime))
	assert.False(t, granterr.Is(wrapped, granterr.ErrInvalidAmount))
}

func TestWrap(t *testing.T) {
	t.Parallel()

	t.Run("nil error", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, granterr.Wrap(nil, "context"))
	})

	t.Run("grant error keeps code and exit code", func(t *testing.T) {
		t.Parallel()
		err := granterr.Wrap(granterr.ErrUnknownSession, "approving")
		var ge *granterr.GrantError
		require.True(t, granterr.As(err, &ge))
		assert.Equal(t, "UNKNOWN_SESSION", ge.Code)
		assert.Equal(t, granterr.ExitNotFound, ge.ExitCode)
		assert.Contains(t, ge.Message, "approving")
	})

	t.Run("plain error becomes general", func(t *testing.T) {
		t.Parallel()
		err := granterr.Wrap(fmt.Errorf("disk full"), "persisting")
		assert.Equal(t, "GENERAL_ERROR", granterr.Code(err))
	})
}

func TestWithDetails(t *testing.T) {
	t.Parallel()

	err := granterr.WithDetails(granterr.ErrInvalidAddress, map[string]string{
		"recipient": "0xabc",
	})

	var ge *granterr.GrantError
	require.True(t, granterr.As(err, &ge))
	assert.Equal(t, "0xabc", ge.Details["recipient"])
	assert.True(t, granterr.Is(err, granterr.ErrInvalidAddress))
}

func TestWithSuggestion(t *testing.T) {
	t.Parallel()

	err := granterr.WithSuggestion(granterr.ErrKeyNotFound, "run 'grantline keys create' first")
	var ge *granterr.GrantError
	require.True(t, granterr.As(err, &ge))
	assert.Equal(t, "run 'grantline keys create' first", ge.Suggestion)
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, granterr.ExitSuccess},
		{"plain error", stderrors.New("x"), granterr.ExitGeneral},
		{"unknown session", granterr.ErrUnknownSession, granterr.ExitNotFound},
		{"malformed intent", granterr.ErrMalformedIntent, granterr.ExitInput},
		{"invalid attestation", granterr.ErrInvalidAttestation, granterr.ExitAuth},
		{"invalid amount", granterr.ErrInvalidAmount, granterr.ExitPermission},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, granterr.ExitCode(tt.err))
		})
	}
}

func TestCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "INVALID_TIME", granterr.Code(granterr.ErrInvalidTime))
	assert.Equal(t, "GENERAL_ERROR", granterr.Code(stderrors.New("x")))
}
