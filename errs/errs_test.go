package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorStringIncludesContext(t *testing.T) {
	err := New("opend", CodeVenue,
		WithProtoID(2202),
		WithRetType(-1),
		WithMessage("place order refused"),
		WithRawMessage("insufficient buying power"))

	msg := err.Error()
	require.Contains(t, msg, "component=opend")
	require.Contains(t, msg, "code=venue_error")
	require.Contains(t, msg, "proto=2202")
	require.Contains(t, msg, "ret_type=-1")
	require.Contains(t, msg, `"insufficient buying power"`)
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := New("opend", CodeNetwork, WithCause(cause))
	require.ErrorIs(t, err, cause)
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		code Code
		want bool
	}{
		{CodeNetwork, true},
		{CodeUnavailable, true},
		{CodeVenue, false},
		{CodeInvalid, false},
		{CodeDecode, false},
		{CodeNotFound, false},
	}
	for _, tc := range cases {
		err := New("opend", tc.code)
		require.Equal(t, tc.want, IsTransient(err), "code %s", tc.code)
	}

	wrapped := fmt.Errorf("poll: %w", New("opend", CodeNetwork))
	require.True(t, IsTransient(wrapped))
	require.False(t, IsTransient(errors.New("plain")))
	require.False(t, IsTransient(nil))
}

func TestNilErrorString(t *testing.T) {
	var e *E
	require.Equal(t, "<nil>", e.Error())
}
