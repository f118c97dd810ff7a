package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/nuitester/internal/domain/workspace"
)

// ProjectFileNames are looked up in order in the working directory.
var ProjectFileNames = []string{".nuictl.yaml", ".nuictl.yml", ".nuictl.toml"}

// Project holds per-folder defaults for nuictl.
type Project struct {
	Server    string   `yaml:"server,omitempty" toml:"server,omitempty"`
	Workspace string   `yaml:"workspace,omitempty" toml:"workspace,omitempty"`
	Name      string   `yaml:"name,omitempty" toml:"name,omitempty"`
	Dir       string   `yaml:"dir,omitempty" toml:"dir,omitempty"`
	Ignore    []string `yaml:"ignore,omitempty" toml:"ignore,omitempty"`
	Format    string   `yaml:"format,omitempty" toml:"format,omitempty"`

	path string
}

// Path is the file the project was loaded from, empty when none was found.
func (p *Project) Path() string {
	return p.path
}

// IgnorePatterns returns the configured patterns or the server defaults.
func (p *Project) IgnorePatterns() []string {
	if len(p.Ignore) > 0 {
		return p.Ignore
	}
	return workspace.DefaultIgnore
}

// FindProject loads the first project file present in dir. A missing file
// yields an empty project.
func FindProject(dir string) (*Project, error) {
	for _, name := range ProjectFileNames {
		p, err := LoadProject(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return p, err
	}
	return &Project{}, nil
}

// LoadProject parses a YAML or TOML project file, chosen by extension.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p := &Project{path: path}
	if isTOML(path) {
		err = toml.Unmarshal(data, p)
	} else {
		err = yaml.Unmarshal(data, p)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := (workspace.Limits{Ignore: p.Ignore}).Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Save writes the project back to the file it came from, or to path when
// it was not loaded from one.
func (p *Project) Save(path string) error {
	if p.path != "" {
		path = p.path
	}
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(p)
	} else {
		data, err = yaml.Marshal(p)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	p.path = path
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
