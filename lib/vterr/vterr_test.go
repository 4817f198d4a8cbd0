package vterr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesKind(t *testing.T) {
	err := New(SessionTimeout, "hokiespa: retrieve schedule", errors.New("login form returned"))
	wrapped := fmt.Errorf("schedule command: %w", err)

	require.ErrorIs(t, wrapped, ErrSessionTimeout)
	require.NotErrorIs(t, wrapped, ErrInvalidCredentials)
	require.Equal(t, SessionTimeout, KindOf(wrapped))
	require.True(t, Retryable(wrapped))
}

func TestTransportKeepsExistingKind(t *testing.T) {
	inner := New(InvalidCredentials, "cas: login", nil)
	require.Equal(t, InvalidCredentials, KindOf(Transport("fetch", inner)))

	timeout := Transport("fetch", context.DeadlineExceeded)
	require.ErrorIs(t, timeout, ErrTransport)
	require.ErrorIs(t, timeout, context.DeadlineExceeded)
	require.False(t, errors.Is(timeout, ErrInvalidCredentials))
}

func TestKindOfPlainError(t *testing.T) {
	require.Equal(t, Unknown, KindOf(errors.New("boom")))
	require.False(t, Retryable(errors.New("boom")))
	require.Equal(t, "cas: login: invalid credentials", New(InvalidCredentials, "cas: login", nil).Error())
}
