//go:build !windows

package process

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignalName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected syscall.Signal
		wantErr  bool
	}{
		{name: "empty defaults to TERM", input: "", expected: syscall.SIGTERM},
		{name: "plain name", input: "QUIT", expected: syscall.SIGQUIT},
		{name: "sig prefix accepted", input: "SIGHUP", expected: syscall.SIGHUP},
		{name: "lower case accepted", input: "usr1", expected: syscall.SIGUSR1},
		{name: "kill", input: "KILL", expected: syscall.SIGKILL},
		{name: "unknown name", input: "FROB", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := ParseSignalName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, sig)
		})
	}
}
