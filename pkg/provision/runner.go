package provision

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sockvisor/sockvisor/pkg/errors"
	"github.com/sockvisor/sockvisor/pkg/logging"
	"github.com/sockvisor/sockvisor/pkg/process"
)

// BuildManifest records what one provisioning run actually did, so two runs
// from the same plan can be compared. Upstream package index and default
// branch drift are the only expected sources of difference.
type BuildManifest struct {
	RunID     string    `yaml:"run_id"`
	CreatedAt time.Time `yaml:"created_at"`

	BaseImage      string   `yaml:"base_image,omitempty"`
	SystemPackages []string `yaml:"system_packages,omitempty"`

	QueueEngineVersion string `yaml:"queue_engine_version,omitempty"`
	QueueEngineArchive string `yaml:"queue_engine_archive,omitempty"`

	AppCloneURL string `yaml:"app_clone_url,omitempty"`

	// Resolved commit hash, not the requested ref
	AppRevision string `yaml:"app_revision,omitempty"`

	Dependencies []Dependency `yaml:"dependencies,omitempty"`

	Steps []string `yaml:"steps"`
}

// WriteFile persists the manifest as YAML
func (m *BuildManifest) WriteFile(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return errors.NewInternalError("failed to marshal build manifest", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewIOError("failed to write build manifest", err).WithContext("path", path)
	}
	return nil
}

// Runner executes a provisioning plan step by step
type Runner struct {
	plan   *Plan
	logger logging.Logger
	stdout io.Writer
	stderr io.Writer
}

func NewRunner(plan *Plan, logger logging.Logger) *Runner {
	return &Runner{
		plan:   plan,
		logger: logger,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// Run executes the whole plan. The first failing step aborts the run; there
// are no retries and no partial-success mode.
func (r *Runner) Run(ctx context.Context) (*BuildManifest, error) {
	manifest := &BuildManifest{
		RunID:          uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		BaseImage:      r.plan.BaseImage,
		SystemPackages: r.plan.SystemPackages,
	}

	r.logger.Infof("Starting provisioning run, id: %s", manifest.RunID)

	if err := os.MkdirAll(r.plan.WorkDir, 0755); err != nil {
		return nil, errors.NewIOError("failed to create work directory", err).WithContext("work_dir", r.plan.WorkDir)
	}

	if err := r.installSystemPackages(ctx, manifest); err != nil {
		return nil, err
	}
	if err := r.buildQueueEngine(ctx, manifest); err != nil {
		return nil, err
	}
	if err := r.installApplication(ctx, manifest); err != nil {
		return nil, err
	}
	if err := r.installDependencies(ctx, manifest); err != nil {
		return nil, err
	}

	r.logger.Infof("Provisioning run complete, id: %s, steps: %d", manifest.RunID, len(manifest.Steps))
	return manifest, nil
}

func (r *Runner) installSystemPackages(ctx context.Context, manifest *BuildManifest) error {
	if len(r.plan.SystemPackages) == 0 {
		return nil
	}

	if err := r.runStep(ctx, manifest, "apt-update", process.ExecutionConfig{
		Command: "apt-get",
		Args:    []string{"update"},
	}); err != nil {
		return err
	}

	args := append([]string{"install", "-y"}, r.plan.SystemPackages...)
	return r.runStep(ctx, manifest, "apt-install", process.ExecutionConfig{
		Command: "apt-get",
		Args:    args,
	})
}

func (r *Runner) buildQueueEngine(ctx context.Context, manifest *BuildManifest) error {
	engine := r.plan.QueueEngine
	if engine == nil {
		return nil
	}

	archiveName := filepath.Base(engine.ArchiveURL)
	archivePath := filepath.Join(r.plan.WorkDir, archiveName)

	manifest.QueueEngineArchive = archiveName
	manifest.QueueEngineVersion = engine.Version

	if err := r.runStep(ctx, manifest, "engine-fetch", process.ExecutionConfig{
		Command: "curl",
		Args:    []string{"-fsSL", "-o", archivePath, engine.ArchiveURL},
	}); err != nil {
		return err
	}

	if err := r.runStep(ctx, manifest, "engine-extract", process.ExecutionConfig{
		Command: "tar",
		Args:    []string{"-xzf", archivePath, "-C", r.plan.WorkDir},
	}); err != nil {
		return err
	}

	sourceDir := engine.SourceDir
	if sourceDir == "" {
		sourceDir = strings.TrimSuffix(archiveName, ".tar.gz")
	}
	sourcePath := filepath.Join(r.plan.WorkDir, sourceDir)

	if err := r.runStep(ctx, manifest, "engine-build", process.ExecutionConfig{
		Command:          "make",
		WorkingDirectory: sourcePath,
	}); err != nil {
		return err
	}

	return r.runStep(ctx, manifest, "engine-install", process.ExecutionConfig{
		Command:          "make",
		Args:             []string{"install"},
		WorkingDirectory: sourcePath,
	})
}

func (r *Runner) installApplication(ctx context.Context, manifest *BuildManifest) error {
	app := r.plan.Application
	if app == nil {
		return nil
	}

	manifest.AppCloneURL = app.CloneURL

	if err := r.runStep(ctx, manifest, "app-clone", process.ExecutionConfig{
		Command: "git",
		Args:    []string{"clone", app.CloneURL, r.plan.AppRoot},
	}); err != nil {
		return err
	}

	if app.Revision != "" {
		if err := r.runStep(ctx, manifest, "app-checkout", process.ExecutionConfig{
			Command: "git",
			Args:    []string{"-C", r.plan.AppRoot, "checkout", app.Revision},
		}); err != nil {
			return err
		}
	}

	revision, err := process.CaptureCommand(ctx, process.ExecutionConfig{
		Command: "git",
		Args:    []string{"-C", r.plan.AppRoot, "rev-parse", "HEAD"},
	}, r.logger)
	if err != nil {
		return errors.NewProvisioningError("failed to resolve application revision", err).
			WithContext("app_root", r.plan.AppRoot)
	}
	manifest.AppRevision = revision
	r.logger.Infof("Application installed, revision: %s", revision)

	return nil
}

func (r *Runner) installDependencies(ctx context.Context, manifest *BuildManifest) error {
	app := r.plan.Application
	if app == nil || app.DependencyManifest == "" {
		return nil
	}

	manifestPath := filepath.Join(r.plan.AppRoot, app.DependencyManifest)

	dependencies, err := LoadManifest(manifestPath)
	if err != nil {
		return errors.NewProvisioningError("failed to load dependency manifest", err).
			WithContext("manifest", manifestPath)
	}
	manifest.Dependencies = dependencies
	r.logger.Infof("Installing dependencies, count: %d", len(dependencies))

	return r.runStep(ctx, manifest, "deps-install", process.ExecutionConfig{
		Command: app.InstallerCommand,
		Args:    []string{"install", "-r", manifestPath},
	})
}

func (r *Runner) runStep(ctx context.Context, manifest *BuildManifest, name string, execution process.ExecutionConfig) error {
	r.logger.Infof("Running step: %s", name)

	if err := process.RunCommand(ctx, execution, r.stdout, r.stderr, r.logger); err != nil {
		r.logger.Errorf("Step failed: %s, error: %v", name, err)
		return errors.NewProvisioningError("provisioning step failed", err).
			WithContext("step", name).
			WithContext("run_id", manifest.RunID)
	}

	manifest.Steps = append(manifest.Steps, name)
	return nil
}
