package provision

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sockvisor/sockvisor/pkg/errors"
)

// Dependency is one parsed manifest entry. Version is empty when the
// specifier is unpinned.
type Dependency struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`
}

func (d Dependency) String() string {
	if d.Version == "" {
		return d.Name
	}
	return d.Name + "==" + d.Version
}

// ParseManifest reads name[==version] specifiers, one per line. Blank lines
// and lines starting with # are ignored.
func ParseManifest(reader io.Reader) ([]Dependency, error) {
	var dependencies []Dependency

	scanner := bufio.NewScanner(reader)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		dependency, err := parseSpecifier(line)
		if err != nil {
			return nil, errors.NewValidationError(
				fmt.Sprintf("invalid dependency specifier on line %d", lineNumber), err).
				WithContext("line", line)
		}
		dependencies = append(dependencies, dependency)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewIOError("failed to read manifest", err)
	}

	return dependencies, nil
}

// LoadManifest parses the manifest file at path
func LoadManifest(path string) ([]Dependency, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("failed to open manifest file", err).WithContext("path", path)
	}
	defer file.Close()

	dependencies, err := ParseManifest(file)
	if err != nil {
		return nil, errors.NewValidationError("failed to parse manifest file", err).WithContext("path", path)
	}
	return dependencies, nil
}

func parseSpecifier(line string) (Dependency, error) {
	name, version, pinned := strings.Cut(line, "==")
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)

	if name == "" {
		return Dependency{}, errors.NewValidationError("dependency name cannot be empty", nil)
	}
	if err := validateToken(name); err != nil {
		return Dependency{}, err
	}
	if pinned {
		if version == "" {
			return Dependency{}, errors.NewValidationError("pinned dependency has empty version", nil)
		}
		if err := validateToken(version); err != nil {
			return Dependency{}, err
		}
	}

	return Dependency{Name: name, Version: version}, nil
}

func validateToken(token string) error {
	for _, r := range token {
		valid := r == '-' || r == '_' || r == '.' || r == '[' || r == ']' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !valid {
			return errors.NewValidationError("specifier contains invalid character: "+string(r), nil)
		}
	}
	return nil
}
