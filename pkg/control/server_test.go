//go:build !windows

package control

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sockvisor/sockvisor/pkg/logging"
	"github.com/sockvisor/sockvisor/pkg/process"
	"github.com/sockvisor/sockvisor/pkg/supervisor"
	"github.com/sockvisor/sockvisor/pkg/supervisor/programstate"
)

func testLogger(t *testing.T) logging.Logger {
	return logging.NewLogger("", logging.LogFuncs{
		Debugf: t.Logf,
		Infof:  t.Logf,
		Warnf:  t.Logf,
		Errorf: t.Logf,
	})
}

func startTestDaemon(t *testing.T) (*supervisor.Supervisor, *Client) {
	sup := supervisor.NewSupervisor(supervisor.Options{
		ForceShutdownTimeout:   10 * time.Second,
		DefaultStopWaitTimeout: 2 * time.Second,
	}, testLogger(t))

	require.NoError(t, sup.AddProgram(supervisor.ProgramSpec{
		Name: "web",
		Execution: process.ExecutionConfig{
			Command: "/bin/sleep",
			Args:    []string{"30"},
		},
		Autorestart: supervisor.RestartNever,
	}))

	ctx := context.Background()
	require.NoError(t, sup.Start(ctx))

	socketPath := filepath.Join(t.TempDir(), "ctl.sock")
	server := NewServer(sup, socketPath, testLogger(t))
	require.NoError(t, server.Start())

	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Stop(stopCtx)
		sup.Stop(stopCtx)
	})

	client := NewClient(socketPath, testLogger(t))
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, client.WaitReachable(waitCtx))

	return sup, client
}

func TestSupervisorInfoEndpoint(t *testing.T) {
	_, client := startTestDaemon(t)

	info, err := client.SupervisorInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, supervisor.SupervisorStateRunning, info.State)
	assert.Equal(t, 1, info.ProgramCount)
	assert.False(t, info.StartedAt.IsZero())
}

func TestProgramLifecycleOverAPI(t *testing.T) {
	ctx := context.Background()
	_, client := startTestDaemon(t)

	require.NoError(t, client.StartProgram(ctx, "web"))

	status, err := client.ProgramStatus(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, programstate.ProgramStateRunning, status.State)
	assert.Greater(t, status.PID, 0)

	programs, err := client.ListPrograms(ctx)
	require.NoError(t, err)
	require.Contains(t, programs, "web")
	assert.Equal(t, programstate.ProgramStateRunning, programs["web"].State)

	require.NoError(t, client.RestartProgram(ctx, "web"))
	restarted, err := client.ProgramStatus(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, programstate.ProgramStateRunning, restarted.State)
	assert.NotEqual(t, status.PID, restarted.PID)

	require.NoError(t, client.StopProgram(ctx, "web"))
	stopped, err := client.ProgramStatus(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, programstate.ProgramStateStopped, stopped.State)
}

func TestUnknownProgramOverAPI(t *testing.T) {
	ctx := context.Background()
	_, client := startTestDaemon(t)

	_, err := client.ProgramStatus(ctx, "ghost")
	require.Error(t, err)
	assert.ErrorContains(t, err, "program not found")

	err = client.StartProgram(ctx, "ghost")
	require.Error(t, err)
}

func TestControlSocketPermissions(t *testing.T) {
	sup := supervisor.NewSupervisor(supervisor.Options{}, testLogger(t))
	require.NoError(t, sup.AddProgram(supervisor.ProgramSpec{
		Name:      "idle",
		Execution: process.ExecutionConfig{Command: "/bin/sleep", Args: []string{"30"}},
	}))
	require.NoError(t, sup.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sup.Stop(ctx)
	}()

	socketPath := filepath.Join(t.TempDir(), "ctl.sock")
	server := NewServer(sup, socketPath, testLogger(t))
	require.NoError(t, server.Start())

	info, err := os.Stat(socketPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err), "socket file is removed on stop")
}

func TestServerRefusesTCPAddress(t *testing.T) {
	sup := supervisor.NewSupervisor(supervisor.Options{}, testLogger(t))
	server := NewServer(sup, "127.0.0.1:9001", testLogger(t))
	assert.Error(t, server.Start())
}
