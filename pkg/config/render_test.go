package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	renderer := NewRenderer(map[string]string{
		"log_dir":  "/var/log/sockvisor",
		"app_root": "/srv/app",
	})

	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "no placeholders", input: "/plain/path", expected: "/plain/path"},
		{name: "single placeholder", input: "%(log_dir)s/web.log", expected: "/var/log/sockvisor/web.log"},
		{name: "multiple placeholders", input: "%(app_root)s:%(log_dir)s", expected: "/srv/app:/var/log/sockvisor"},
		{name: "repeated placeholder", input: "%(app_root)s/%(app_root)s", expected: "/srv/app//srv/app"},
		{name: "empty input", input: "", expected: ""},
		{name: "unknown placeholder", input: "%(nope)s/x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := renderer.Render(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRenderWithBinding(t *testing.T) {
	base := NewRenderer(map[string]string{"run_dir": "/run"})
	derived := base.With("program_name", "web")

	result, err := derived.Render("%(run_dir)s/%(program_name)s.sock")
	require.NoError(t, err)
	assert.Equal(t, "/run/web.sock", result)

	// The base renderer is not mutated by With
	_, err = base.Render("%(program_name)s")
	assert.Error(t, err)
}

func TestRenderAll(t *testing.T) {
	renderer := NewRenderer(map[string]string{"app_root": "/srv/app"})

	result, err := renderer.RenderAll([]string{"-m", "%(app_root)s/main.py"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-m", "/srv/app/main.py"}, result)

	nilResult, err := renderer.RenderAll(nil)
	require.NoError(t, err)
	assert.Nil(t, nilResult)
}
