package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrConnectivity,
		ErrTimeout,
		ErrInput,
		ErrAttach,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestError_Format(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
		excludes []string
	}{
		{
			name:     "message only",
			err:      New(ErrInput, "unrecognized command 'foo'", ""),
			contains: []string{"✗ unrecognized command 'foo'"},
		},
		{
			name: "with cause and suggestion",
			err: WrapWithCode(fmt.Errorf("dial unix /var/run/docker.sock: connect: no such file"),
				ErrConnectivity, "Can't reach the container engine", "Is the engine running?"),
			contains: []string{
				"✗ Can't reach the container engine",
				"  dial unix /var/run/docker.sock",
				"  Is the engine running?",
			},
		},
		{
			name:     "no suggestion block when empty",
			err:      Wrap(fmt.Errorf("EOF"), "stats stream ended"),
			contains: []string{"✗ stats stream ended", "  EOF"},
			excludes: []string{"\n\n  \n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.err.Error()
			for _, c := range tt.contains {
				assert.Contains(t, out, c)
			}
			for _, e := range tt.excludes {
				assert.NotContains(t, out, e)
			}
			assert.True(t, strings.HasPrefix(out, "✗ "))
		})
	}
}

func TestWrap_DefaultsToConnectivity(t *testing.T) {
	err := Wrap(fmt.Errorf("connection reset"), "events stream ended")
	assert.Equal(t, ErrConnectivity, err.Code)
	assert.True(t, IsCode(err, ErrConnectivity))
}

func TestInputf(t *testing.T) {
	err := Inputf("ambiguous command %q", "c")
	assert.Equal(t, ErrInput, err.Code)
	assert.Equal(t, `ambiguous command "c"`, err.Message)
	assert.Nil(t, err.Cause)
}

func TestShort(t *testing.T) {
	assert.Equal(t, "bad input", New(ErrInput, "bad input", "try again").Short())
	assert.Equal(t, "stream ended: EOF", Wrap(fmt.Errorf("EOF"), "stream ended").Short())
}

func TestUnwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := WrapWithCode(sentinel, ErrTimeout, "render timed out", "")

	require.True(t, errors.Is(err, sentinel))

	var dhErr *Error
	require.True(t, errors.As(fmt.Errorf("outer: %w", err), &dhErr))
	assert.Equal(t, ErrTimeout, dhErr.Code)
}

func TestIsCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"nil error", nil, ErrInput, false},
		{"plain error", errors.New("x"), ErrInput, false},
		{"matching", New(ErrInput, "x", ""), ErrInput, true},
		{"different code", New(ErrConfig, "x", ""), ErrInput, false},
		{"wrapped by fmt", fmt.Errorf("ctx: %w", New(ErrAttach, "x", "")), ErrAttach, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCode(tt.err, tt.code))
		})
	}
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, ErrConfig, CodeOf(fmt.Errorf("load: %w", New(ErrConfig, "bad", ""))))
}
