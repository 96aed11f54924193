// Package rundescriptor persists each component's final argv+env as a
// restartable descriptor after a successful start (spec.md §3, §6): a
// small YAML document such that executing it reproduces the process.
package rundescriptor

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kubernix/kubernix/internal/kubernixerr"
)

// Descriptor is the stable, documented run.yml shape.
type Descriptor struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// Write renders argv (argv[0] as Command, the rest as Args) and env as a
// run.yml at path.
func Write(path string, argv []string, env map[string]string) error {
	if len(argv) == 0 {
		return kubernixerr.New(kubernixerr.ConfigError, path, os.ErrInvalid)
	}
	d := Descriptor{
		Command: argv[0],
		Args:    argv[1:],
		Env:     env,
	}
	out, err := yaml.Marshal(d)
	if err != nil {
		return kubernixerr.New(kubernixerr.ConfigError, path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return kubernixerr.New(kubernixerr.ConfigError, path, err)
	}
	return os.WriteFile(path, out, 0o644)
}

// Read loads a previously written run.yml.
func Read(path string) (Descriptor, error) {
	var d Descriptor
	data, err := os.ReadFile(path)
	if err != nil {
		return d, kubernixerr.New(kubernixerr.ConfigError, path, err)
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return d, kubernixerr.New(kubernixerr.ConfigError, path, err)
	}
	return d, nil
}
