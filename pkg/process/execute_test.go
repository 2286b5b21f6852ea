//go:build !windows

package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sockvisor/sockvisor/pkg/errors"
)

func TestStdSpawnCmdWritesStdoutLog(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")

	spawn := NewStdSpawnCmd(ExecutionConfig{
		Command:          "/bin/sh",
		Args:             []string{"-c", "echo spawned"},
		WorkingDirectory: dir,
		StdoutLogFile:    logPath,
	}, "test", testLogger(t))

	proc, closer, err := spawn(context.Background())
	require.NoError(t, err)
	require.NotNil(t, proc)

	_, err = proc.Wait()
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "spawned\n", string(data))
}

func TestStdSpawnCmdMergesStderrWhenUnset(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")

	spawn := NewStdSpawnCmd(ExecutionConfig{
		Command:          "/bin/sh",
		Args:             []string{"-c", "echo oops >&2"},
		WorkingDirectory: dir,
		StdoutLogFile:    logPath,
	}, "test", testLogger(t))

	proc, closer, err := spawn(context.Background())
	require.NoError(t, err)
	proc.Wait()
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "oops\n", string(data))
}

func TestStdSpawnCmdAppendsAcrossSpawns(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")

	execution := ExecutionConfig{
		Command:          "/bin/sh",
		Args:             []string{"-c", "echo line"},
		WorkingDirectory: dir,
		StdoutLogFile:    logPath,
	}

	for i := 0; i < 2; i++ {
		proc, closer, err := NewStdSpawnCmd(execution, "test", testLogger(t))(context.Background())
		require.NoError(t, err)
		proc.Wait()
		require.NoError(t, closer.Close())
	}

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "line\nline\n", string(data))
}

func TestStdSpawnCmdNilContext(t *testing.T) {
	spawn := NewStdSpawnCmd(ExecutionConfig{Command: "/bin/sh"}, "test", testLogger(t))

	_, _, err := spawn(nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestStdSpawnCmdStartFailure(t *testing.T) {
	spawn := NewStdSpawnCmd(ExecutionConfig{
		Command:          "no-such-binary-anywhere",
		WorkingDirectory: t.TempDir(),
	}, "test", testLogger(t))

	_, _, err := spawn(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsSpawnError(err))
}

func TestStdSpawnCmdPassesEnvironment(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")

	spawn := NewStdSpawnCmd(ExecutionConfig{
		Command:          "/bin/sh",
		Args:             []string{"-c", "echo $WORKER_NAME"},
		Environment:      []string{"WORKER_NAME=pool-1"},
		WorkingDirectory: dir,
		StdoutLogFile:    logPath,
	}, "test", testLogger(t))

	proc, closer, err := spawn(context.Background())
	require.NoError(t, err)
	proc.Wait()
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "pool-1\n", string(data))
}
