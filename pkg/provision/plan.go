// Package provision builds the runtime environment a supervised deployment
// needs: system packages, the queueing engine compiled from source, the
// application tree cloned at a pinned revision and its declared dependencies.
// A run is all-or-nothing: any failing step aborts the whole run.
package provision

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sockvisor/sockvisor/pkg/errors"
)

// SourceBuild describes fetching and compiling one component from a source
// archive, e.g. the queueing engine.
type SourceBuild struct {
	// Archive download location, a .tar.gz
	ArchiveURL string `yaml:"archive_url"`

	// Version label recorded in the build manifest
	Version string `yaml:"version,omitempty"`

	// Directory inside the extracted archive where make runs. Empty means
	// the archive's single top-level directory.
	SourceDir string `yaml:"source_dir,omitempty"`
}

// Application describes the application tree to install
type Application struct {
	CloneURL string `yaml:"clone_url"`

	// Branch, tag or commit to check out; empty keeps the default branch head
	Revision string `yaml:"revision,omitempty"`

	// Dependency manifest path relative to the application root, one
	// name[==version] specifier per line
	DependencyManifest string `yaml:"dependency_manifest,omitempty"`

	// Command that installs the manifest, e.g. pip. Receives
	// ["install", "-r", <manifest path>].
	InstallerCommand string `yaml:"installer_command,omitempty"`
}

// Plan is the declarative description of one environment build
type Plan struct {
	// Base image identifier, recorded in the build manifest for traceability
	BaseImage string `yaml:"base_image,omitempty"`

	// Scratch directory for downloads and source builds
	WorkDir string `yaml:"work_dir"`

	// Where the application tree is cloned to
	AppRoot string `yaml:"app_root"`

	SystemPackages []string `yaml:"system_packages,omitempty"`

	QueueEngine *SourceBuild `yaml:"queue_engine,omitempty"`

	Application *Application `yaml:"application,omitempty"`
}

// LoadPlan reads and validates a YAML provisioning plan
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("failed to read plan file", err).WithContext("path", path)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, errors.NewValidationError("failed to parse plan file", err).WithContext("path", path)
	}

	plan.setDefaults()

	if err := plan.Validate(); err != nil {
		return nil, errors.NewValidationError("plan validation failed", err).WithContext("path", path)
	}

	return &plan, nil
}

func (p *Plan) setDefaults() {
	if p.WorkDir == "" {
		p.WorkDir = "/tmp/sockvisor-provision"
	}
	if p.Application != nil && p.Application.InstallerCommand == "" {
		p.Application.InstallerCommand = "pip"
	}
}

func (p *Plan) Validate() error {
	if !filepath.IsAbs(p.WorkDir) {
		return errors.NewValidationError("work_dir must be an absolute path", nil).WithContext("work_dir", p.WorkDir)
	}

	if p.QueueEngine != nil && p.QueueEngine.ArchiveURL == "" {
		return errors.NewValidationError("queue engine archive_url cannot be empty", nil)
	}

	if p.Application != nil {
		if p.Application.CloneURL == "" {
			return errors.NewValidationError("application clone_url cannot be empty", nil)
		}
		if p.AppRoot == "" {
			return errors.NewValidationError("app_root is required when an application is configured", nil)
		}
	}
	if p.AppRoot != "" && !filepath.IsAbs(p.AppRoot) {
		return errors.NewValidationError("app_root must be an absolute path", nil).WithContext("app_root", p.AppRoot)
	}

	return nil
}
