//go:build !windows

package supervisor

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sockvisor/sockvisor/pkg/errors"
	"github.com/sockvisor/sockvisor/pkg/process"
	"github.com/sockvisor/sockvisor/pkg/supervisor/programstate"
)

func newTestSupervisor(t *testing.T) *Supervisor {
	return NewSupervisor(Options{
		ForceShutdownTimeout:   10 * time.Second,
		DefaultStopWaitTimeout: 2 * time.Second,
	}, testLogger(t))
}

func startedSupervisor(t *testing.T, specs ...ProgramSpec) *Supervisor {
	sup := newTestSupervisor(t)
	for _, spec := range specs {
		require.NoError(t, sup.AddProgram(spec))
	}
	require.NoError(t, sup.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sup.Stop(ctx)
	})
	return sup
}

func sleepSpec(name string, policy RestartPolicy) ProgramSpec {
	return ProgramSpec{
		Name: name,
		Execution: process.ExecutionConfig{
			Command: "/bin/sleep",
			Args:    []string{"30"},
		},
		Autorestart: policy,
	}
}

func shSpec(name, script string, policy RestartPolicy) ProgramSpec {
	return ProgramSpec{
		Name: name,
		Execution: process.ExecutionConfig{
			Command: "/bin/sh",
			Args:    []string{"-c", script},
		},
		Autorestart: policy,
		Backoff: BackoffConfig{
			InitialInterval: 20 * time.Millisecond,
			MaxInterval:     50 * time.Millisecond,
			Jitter:          -1,
		},
	}
}

func programState(sup *Supervisor, name string) programstate.ProgramState {
	status, err := sup.ProgramStatus(name)
	if err != nil {
		return ""
	}
	return status.State
}

func TestStartAndStopProgram(t *testing.T) {
	ctx := context.Background()
	sup := startedSupervisor(t, sleepSpec("web", RestartNever))

	require.NoError(t, sup.StartProgram(ctx, "web"))

	status, err := sup.ProgramStatus("web")
	require.NoError(t, err)
	assert.Equal(t, programstate.ProgramStateRunning, status.State)
	assert.Greater(t, status.PID, 0)
	require.NotNil(t, status.StartedAt)

	require.NoError(t, sup.StopProgram(ctx, "web"))

	status, err = sup.ProgramStatus("web")
	require.NoError(t, err)
	assert.Equal(t, programstate.ProgramStateStopped, status.State)
	assert.Equal(t, 0, status.PID)
}

func TestAutostart(t *testing.T) {
	spec := sleepSpec("web", RestartNever)
	spec.Autostart = true
	sup := startedSupervisor(t, spec)

	status, err := sup.ProgramStatus("web")
	require.NoError(t, err)
	assert.Equal(t, programstate.ProgramStateRunning, status.State)
}

func TestStartUnknownProgram(t *testing.T) {
	sup := startedSupervisor(t, sleepSpec("web", RestartNever))

	err := sup.StartProgram(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestDoubleStartRejected(t *testing.T) {
	ctx := context.Background()
	sup := startedSupervisor(t, sleepSpec("web", RestartNever))

	require.NoError(t, sup.StartProgram(ctx, "web"))
	err := sup.StartProgram(ctx, "web")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestAddDuplicateProgram(t *testing.T) {
	sup := newTestSupervisor(t)
	require.NoError(t, sup.AddProgram(sleepSpec("web", RestartNever)))

	err := sup.AddProgram(sleepSpec("web", RestartNever))
	require.Error(t, err)
	assert.True(t, errors.IsConflictError(err))
}

func TestRemoveProgram(t *testing.T) {
	ctx := context.Background()
	sup := startedSupervisor(t, sleepSpec("web", RestartNever))

	require.NoError(t, sup.StartProgram(ctx, "web"))
	err := sup.RemoveProgram("web")
	require.Error(t, err, "running program must not be removable")

	require.NoError(t, sup.StopProgram(ctx, "web"))
	require.NoError(t, sup.RemoveProgram("web"))

	_, err = sup.ProgramStatus("web")
	assert.True(t, errors.IsNotFoundError(err))
}

// A crashing program under a restart policy is respawned, and the restart
// counter grows once per respawn.
func TestAutorestartAfterFailure(t *testing.T) {
	sup := startedSupervisor(t, shSpec("crasher", "exit 1", RestartOnFailure))

	err := sup.StartProgram(context.Background(), "crasher")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := sup.ProgramStatus("crasher")
		return err == nil && status.RestartCount >= 2
	}, 10*time.Second, 20*time.Millisecond, "restart count should grow as the program keeps crashing")
}

func TestCleanExitNotRestartedOnFailurePolicy(t *testing.T) {
	sup := startedSupervisor(t, shSpec("oneshot", "exit 0", RestartOnFailure))

	require.NoError(t, sup.StartProgram(context.Background(), "oneshot"))

	require.Eventually(t, func() bool {
		return programState(sup, "oneshot") == programstate.ProgramStateExited
	}, 5*time.Second, 20*time.Millisecond)

	// No respawn may happen after a clean exit under on-failure
	time.Sleep(300 * time.Millisecond)
	status, err := sup.ProgramStatus("oneshot")
	require.NoError(t, err)
	assert.Equal(t, programstate.ProgramStateExited, status.State)
	assert.Equal(t, 0, status.RestartCount)
}

func TestNeverPolicyStaysExited(t *testing.T) {
	sup := startedSupervisor(t, shSpec("fragile", "exit 1", RestartNever))

	require.NoError(t, sup.StartProgram(context.Background(), "fragile"))

	require.Eventually(t, func() bool {
		return programState(sup, "fragile") == programstate.ProgramStateExited
	}, 5*time.Second, 20*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	status, err := sup.ProgramStatus("fragile")
	require.NoError(t, err)
	assert.Equal(t, programstate.ProgramStateExited, status.State)
	assert.Equal(t, 0, status.RestartCount)
}

func TestExplicitStopSuppressesRestart(t *testing.T) {
	ctx := context.Background()
	spec := sleepSpec("web", RestartAlways)
	spec.Backoff = BackoffConfig{InitialInterval: 20 * time.Millisecond, Jitter: -1}
	sup := startedSupervisor(t, spec)

	require.NoError(t, sup.StartProgram(ctx, "web"))
	require.NoError(t, sup.StopProgram(ctx, "web"))

	// Even under the always policy nothing respawns after an explicit stop
	time.Sleep(500 * time.Millisecond)
	status, err := sup.ProgramStatus("web")
	require.NoError(t, err)
	assert.Equal(t, programstate.ProgramStateStopped, status.State)
	assert.Equal(t, 0, status.RestartCount)
}

func TestRetryBudgetExhaustionGoesFatal(t *testing.T) {
	spec := shSpec("doomed", "exit 1", RestartAlways)
	spec.Backoff.MaxRetries = 2
	spec.Backoff.ResetAfter = time.Hour
	sup := startedSupervisor(t, spec)

	require.NoError(t, sup.StartProgram(context.Background(), "doomed"))

	require.Eventually(t, func() bool {
		return programState(sup, "doomed") == programstate.ProgramStateFatal
	}, 10*time.Second, 20*time.Millisecond)

	status, err := sup.ProgramStatus("doomed")
	require.NoError(t, err)
	assert.Equal(t, 2, status.RestartCount)
}

func TestStopEscalatesToKill(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	spec := ProgramSpec{
		Name: "stubborn",
		Execution: process.ExecutionConfig{
			Command: "/bin/sh",
			Args:    []string{"-c", "trap '' TERM; while true; do sleep 1; done"},
		},
		Autorestart:     RestartNever,
		StopWaitTimeout: 300 * time.Millisecond,
	}
	sup := startedSupervisor(t, spec)

	require.NoError(t, sup.StartProgram(ctx, "stubborn"))

	started := time.Now()
	require.NoError(t, sup.StopProgram(ctx, "stubborn"))

	assert.Less(t, time.Since(started), 5*time.Second, "kill escalation should bound the stop")
	assert.Equal(t, programstate.ProgramStateStopped, programState(sup, "stubborn"))
}

func TestRestartProgram(t *testing.T) {
	ctx := context.Background()
	sup := startedSupervisor(t, sleepSpec("web", RestartNever))

	require.NoError(t, sup.StartProgram(ctx, "web"))
	first, err := sup.ProgramStatus("web")
	require.NoError(t, err)

	require.NoError(t, sup.RestartProgram(ctx, "web"))
	second, err := sup.ProgramStatus("web")
	require.NoError(t, err)

	assert.Equal(t, programstate.ProgramStateRunning, second.State)
	assert.NotEqual(t, first.PID, second.PID)
}

func TestStaleSocketRemovedBeforeSpawn(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "app.sock")

	// Leave a socket file behind that no server accepts on
	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	listener.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, listener.Close())
	_, err = os.Stat(socketPath)
	require.NoError(t, err, "stale socket file should exist before the start")

	spec := sleepSpec("pool", RestartNever)
	spec.Socket = &SocketConfig{Path: socketPath}
	sup := startedSupervisor(t, spec)

	require.NoError(t, sup.StartProgram(context.Background(), "pool"))

	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err), "stale socket file must be removed on a fresh start")
}

func TestLogFilesAppendAcrossRuns(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "echo.log")

	spec := ProgramSpec{
		Name: "echo",
		Execution: process.ExecutionConfig{
			Command:       "/bin/sh",
			Args:          []string{"-c", "echo run"},
			StdoutLogFile: logPath,
		},
		Autorestart: RestartNever,
	}
	sup := startedSupervisor(t, spec)

	require.NoError(t, sup.StartProgram(ctx, "echo"))
	require.Eventually(t, func() bool {
		return programState(sup, "echo") == programstate.ProgramStateExited
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, sup.StartProgram(ctx, "echo"))
	require.Eventually(t, func() bool {
		return programState(sup, "echo") == programstate.ProgramStateExited
	}, 5*time.Second, 20*time.Millisecond)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "run\nrun\n", string(data), "second run must append, not truncate")
}

func TestShutdownDrainsAllPrograms(t *testing.T) {
	ctx := context.Background()
	first := sleepSpec("one", RestartAlways)
	first.Autostart = true
	second := sleepSpec("two", RestartAlways)
	second.Autostart = true

	sup := newTestSupervisor(t)
	require.NoError(t, sup.AddProgram(first))
	require.NoError(t, sup.AddProgram(second))
	require.NoError(t, sup.Start(ctx))

	require.NoError(t, sup.Stop(ctx))

	assert.Equal(t, SupervisorStateStopped, sup.GetState())
	for _, name := range []string{"one", "two"} {
		assert.Equal(t, programstate.ProgramStateStopped, programState(sup, name))
	}
}

// End-to-end restart scenario: a running program is killed from outside,
// comes back on its own with the restart counter bumped, and an explicit
// stop afterwards is final.
func TestKillRespawnStopScenario(t *testing.T) {
	ctx := context.Background()
	spec := sleepSpec("worker", RestartAlways)
	spec.Backoff = BackoffConfig{InitialInterval: 20 * time.Millisecond, Jitter: -1}
	sup := startedSupervisor(t, spec)

	require.NoError(t, sup.StartProgram(ctx, "worker"))
	status, err := sup.ProgramStatus("worker")
	require.NoError(t, err)
	firstPID := status.PID

	// Simulate a crash
	proc, err := os.FindProcess(firstPID)
	require.NoError(t, err)
	require.NoError(t, proc.Kill())

	require.Eventually(t, func() bool {
		status, err := sup.ProgramStatus("worker")
		return err == nil &&
			status.State == programstate.ProgramStateRunning &&
			status.RestartCount == 1 &&
			status.PID != firstPID
	}, 10*time.Second, 20*time.Millisecond, "killed program should come back with a new PID")

	require.NoError(t, sup.StopProgram(ctx, "worker"))
	time.Sleep(300 * time.Millisecond)

	status, err = sup.ProgramStatus("worker")
	require.NoError(t, err)
	assert.Equal(t, programstate.ProgramStateStopped, status.State)
	assert.Equal(t, 1, status.RestartCount)
}
