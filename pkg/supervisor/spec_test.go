package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sockvisor/sockvisor/pkg/monitoring"
	"github.com/sockvisor/sockvisor/pkg/process"
)

func validSpec() ProgramSpec {
	return ProgramSpec{
		Name: "web",
		Execution: process.ExecutionConfig{
			Command: "sleep",
			Args:    []string{"30"},
		},
		Autorestart: RestartOnFailure,
	}
}

func TestValidateProgramSpec(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(spec *ProgramSpec)
		wantErr string
	}{
		{
			name:   "minimal valid spec",
			mutate: func(spec *ProgramSpec) {},
		},
		{
			name: "all policies accepted",
			mutate: func(spec *ProgramSpec) {
				spec.Autorestart = RestartUnlessStopped
				spec.StopSignal = "QUIT"
				spec.StopWaitTimeout = 5 * time.Second
			},
		},
		{
			name:    "empty name",
			mutate:  func(spec *ProgramSpec) { spec.Name = "" },
			wantErr: "name cannot be empty",
		},
		{
			name:    "name with invalid character",
			mutate:  func(spec *ProgramSpec) { spec.Name = "bad name" },
			wantErr: "invalid character",
		},
		{
			name:    "empty command",
			mutate:  func(spec *ProgramSpec) { spec.Execution.Command = "" },
			wantErr: "invalid execution configuration",
		},
		{
			name:    "unknown restart policy",
			mutate:  func(spec *ProgramSpec) { spec.Autorestart = "sometimes" },
			wantErr: "unsupported restart policy",
		},
		{
			name:    "unknown stop signal",
			mutate:  func(spec *ProgramSpec) { spec.StopSignal = "FROB" },
			wantErr: "invalid stop signal",
		},
		{
			name:    "negative stop wait",
			mutate:  func(spec *ProgramSpec) { spec.StopWaitTimeout = -time.Second },
			wantErr: "stop wait timeout",
		},
		{
			name: "tcp-looking socket path",
			mutate: func(spec *ProgramSpec) {
				spec.Socket = &SocketConfig{Path: "127.0.0.1:8000"}
			},
			wantErr: "invalid socket configuration",
		},
		{
			name: "relative socket path",
			mutate: func(spec *ProgramSpec) {
				spec.Socket = &SocketConfig{Path: "run/app.sock"}
			},
			wantErr: "invalid socket configuration",
		},
		{
			name: "valid socket path",
			mutate: func(spec *ProgramSpec) {
				spec.Socket = &SocketConfig{Path: "/run/app.sock", ReadyTimeout: time.Second}
			},
		},
		{
			name: "invalid health check",
			mutate: func(spec *ProgramSpec) {
				spec.HealthCheck = &monitoring.HealthCheckConfig{Type: "magic"}
			},
			wantErr: "invalid health check configuration",
		},
		{
			name: "valid process health check",
			mutate: func(spec *ProgramSpec) {
				spec.HealthCheck = &monitoring.HealthCheckConfig{Type: monitoring.HealthCheckTypeProcess}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(&spec)

			err := ValidateProgramSpec(spec)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateProgramName(t *testing.T) {
	assert.NoError(t, ValidateProgramName("web-pool_1.worker"))
	assert.Error(t, ValidateProgramName(""))
	assert.Error(t, ValidateProgramName("web pool"))
	assert.Error(t, ValidateProgramName("web/pool"))
}
