// Package config resolves KuberNix's run-time parameters from CLI flags,
// KUBERNIX_-prefixed environment variables, an on-disk kubernix.toml, and
// defaults, in that precedence order (spec.md §4.1). It then persists the
// effective configuration back to kubernix.toml and renders kubernix.env.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml"

	"github.com/kubernix/kubernix/internal/kubernixerr"
	"github.com/kubernix/kubernix/internal/logging"
	"github.com/kubernix/kubernix/internal/paths"
)

// Config is immutable after Resolve returns (spec.md §3).
type Config struct {
	RootDir        string
	CIDR           *net.IPNet
	Nodes          int
	Runtime        string
	Shell          string
	LogLevel       string
	OverlayPath    string
	ExtraPackages  []string
	ContainerMode  bool
}

// Paths is a convenience accessor so callers don't separately construct
// paths.New(cfg.RootDir) everywhere.
func (c Config) Paths() paths.Paths { return paths.New(c.RootDir) }

// field holds a value plus whether it was explicitly supplied by the
// caller (CLI flag or env var), as opposed to a default. Nothing in this
// package uses it; Save tracks explicitly-set fields through Explicit.
type field[T any] struct {
	Value T
	IsSet bool
}

// Raw is the caller-supplied layer (CLI or env), each field optional.
// cmd/kubernix builds one Raw from cobra flags and one from os.Environ.
type Raw struct {
	RootDir       *string
	CIDR          *string
	Nodes         *int
	Runtime       *string
	Shell         *string
	LogLevel      *string
	OverlayPath   *string
	ExtraPackages *[]string
	ContainerMode *bool
}

const envPrefix = "KUBERNIX_"

// EnvRaw reads KUBERNIX_-prefixed environment variables into a Raw layer.
func EnvRaw(environ []string) Raw {
	lookup := map[string]string{}
	for _, kv := range environ {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], envPrefix) {
			continue
		}
		lookup[strings.TrimPrefix(parts[0], envPrefix)] = parts[1]
	}
	var r Raw
	if v, ok := lookup["ROOT"]; ok {
		r.RootDir = &v
	}
	if v, ok := lookup["CIDR"]; ok {
		r.CIDR = &v
	}
	if v, ok := lookup["NODES"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			r.Nodes = &n
		}
	}
	if v, ok := lookup["RUNTIME"]; ok {
		r.Runtime = &v
	}
	if v, ok := lookup["SHELL"]; ok {
		r.Shell = &v
	}
	if v, ok := lookup["LOG_LEVEL"]; ok {
		r.LogLevel = &v
	}
	if v, ok := lookup["OVERLAY"]; ok {
		r.OverlayPath = &v
	}
	if v, ok := lookup["PACKAGES"]; ok {
		pkgs := splitCSV(v)
		r.ExtraPackages = &pkgs
	}
	if v, ok := lookup["CONTAINER"]; ok {
		b := v == "1" || strings.EqualFold(v, "true")
		r.ContainerMode = &b
	}
	return r
}

func splitCSV(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// diskModel is the TOML-serializable shape. Pointer fields distinguish
// "absent from file" from "zero value", so partial persisted files merge
// correctly on the next run.
type diskModel struct {
	RootDir       *string  `toml:"root_dir,omitempty"`
	CIDR          *string  `toml:"cidr,omitempty"`
	Nodes         *int     `toml:"nodes,omitempty"`
	Runtime       *string  `toml:"runtime,omitempty"`
	Shell         *string  `toml:"shell,omitempty"`
	LogLevel      *string  `toml:"log_level,omitempty"`
	OverlayPath   *string  `toml:"overlay,omitempty"`
	ExtraPackages []string `toml:"packages,omitempty"`
	ContainerMode *bool    `toml:"container,omitempty"`
}

func defaultShell() string {
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return "sh"
}

// Defaults returns spec.md §6's documented default values.
func Defaults() Config {
	return Config{
		RootDir:  "./kubernix-run",
		Nodes:    1,
		Runtime:  "podman",
		Shell:    defaultShell(),
		LogLevel: "info",
	}
}

// Explicit records which Config fields were set by CLI, env, or a
// pre-existing kubernix.toml, as opposed to falling back to a default.
// Save uses it to persist only explicitly-set fields, per spec.md's
// resolution of the TOML round-trip Open Question.
type Explicit struct {
	CIDR, Nodes, Runtime, Shell, LogLevel, OverlayPath, ExtraPackages, ContainerMode bool
}

// Resolve applies CLI > env > file > defaults precedence (spec.md §4.1),
// canonicalizes RootDir, and returns the effective Config, which fields
// were explicitly set, and whether a pre-existing kubernix.toml was found.
// When one is found and log is non-nil, Resolve itself logs the warning
// that persisted values only take effect where CLI/env left a field unset.
func Resolve(cli, env Raw, log logging.Logger) (Config, Explicit, bool, error) {
	def := Defaults()
	var set Explicit

	fileFound := false
	var fromFile diskModel
	// RootDir must be known before we can look for kubernix.toml; resolve it
	// from CLI/env/default first since the file layer can't set RootDir.
	root := def.RootDir
	if env.RootDir != nil {
		root = *env.RootDir
	}
	if cli.RootDir != nil {
		root = *cli.RootDir
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Config{}, Explicit{}, false, kubernixerr.New(kubernixerr.ConfigError, "", fmt.Errorf("resolving root dir %q: %w", root, err))
	}

	tomlPath := filepath.Join(absRoot, "kubernix.toml")
	if data, err := os.ReadFile(tomlPath); err == nil {
		fileFound = true
		if err := toml.Unmarshal(data, &fromFile); err != nil {
			return Config{}, Explicit{}, false, kubernixerr.New(kubernixerr.ConfigError, "", fmt.Errorf("parsing %s: %w", tomlPath, err))
		}
		if log != nil {
			log.Warn("existing kubernix.toml found at %s; persisted values take effect only where CLI/env leave a field unset", tomlPath)
		}
	}

	cfg := def
	cfg.RootDir = absRoot

	applyStr := func(dst *string, f *string, s *bool) {
		if f != nil {
			*dst = *f
			*s = true
		}
	}
	applyStr(&cfg.Runtime, fromFile.Runtime, &set.Runtime)
	applyStr(&cfg.Shell, fromFile.Shell, &set.Shell)
	applyStr(&cfg.LogLevel, fromFile.LogLevel, &set.LogLevel)
	applyStr(&cfg.OverlayPath, fromFile.OverlayPath, &set.OverlayPath)
	cidrStr := ""
	applyStr(&cidrStr, fromFile.CIDR, &set.CIDR)
	if fromFile.Nodes != nil {
		cfg.Nodes = *fromFile.Nodes
		set.Nodes = true
	}
	if fromFile.ContainerMode != nil {
		cfg.ContainerMode = *fromFile.ContainerMode
		set.ContainerMode = true
	}
	if len(fromFile.ExtraPackages) > 0 {
		cfg.ExtraPackages = fromFile.ExtraPackages
		set.ExtraPackages = true
	}

	for _, layer := range []Raw{env, cli} {
		if layer.CIDR != nil {
			cidrStr = *layer.CIDR
			set.CIDR = true
		}
		if layer.Nodes != nil {
			cfg.Nodes = *layer.Nodes
			set.Nodes = true
		}
		if layer.Runtime != nil {
			cfg.Runtime = *layer.Runtime
			set.Runtime = true
		}
		if layer.Shell != nil {
			cfg.Shell = *layer.Shell
			set.Shell = true
		}
		if layer.LogLevel != nil {
			cfg.LogLevel = *layer.LogLevel
			set.LogLevel = true
		}
		if layer.OverlayPath != nil {
			cfg.OverlayPath = *layer.OverlayPath
			set.OverlayPath = true
		}
		if layer.ExtraPackages != nil {
			cfg.ExtraPackages = *layer.ExtraPackages
			set.ExtraPackages = true
		}
		if layer.ContainerMode != nil {
			cfg.ContainerMode = *layer.ContainerMode
			set.ContainerMode = true
		}
	}

	if cidrStr == "" {
		cidrStr = "10.10.0.0/16"
	}
	_, ipnet, err := net.ParseCIDR(cidrStr)
	if err != nil {
		return Config{}, Explicit{}, false, kubernixerr.New(kubernixerr.ConfigError, "", fmt.Errorf("invalid --cidr %q: %w", cidrStr, err))
	}
	cfg.CIDR = ipnet

	if cfg.Nodes < 1 {
		return Config{}, Explicit{}, false, kubernixerr.New(kubernixerr.ConfigError, "", fmt.Errorf("--nodes must be >= 1, got %d", cfg.Nodes))
	}

	return cfg, set, fileFound, nil
}

// Save writes the effective configuration to kubernix.toml, merging onto
// whatever is already on disk so manually-edited fields aren't clobbered
// and so that fields neither explicitly set nor already on disk stay
// absent (spec.md's documented TOML round-trip semantics). root_dir is the
// exception: it is always written, and Resolve never reads it back.
func (c Config) Save(set Explicit) error {
	var existing diskModel
	if data, err := os.ReadFile(c.Paths().Toml()); err == nil {
		_ = toml.Unmarshal(data, &existing)
	}

	model := existing
	model.RootDir = strp(c.RootDir)
	if set.CIDR {
		model.CIDR = strp(c.CIDR.String())
	}
	if set.Nodes {
		model.Nodes = intp(c.Nodes)
	}
	if set.Runtime {
		model.Runtime = strp(c.Runtime)
	}
	if set.Shell {
		model.Shell = strp(c.Shell)
	}
	if set.LogLevel {
		model.LogLevel = strp(c.LogLevel)
	}
	if set.OverlayPath {
		model.OverlayPath = strp(c.OverlayPath)
	}
	if set.ExtraPackages {
		model.ExtraPackages = c.ExtraPackages
	}
	if set.ContainerMode {
		model.ContainerMode = boolp(c.ContainerMode)
	}

	data, err := toml.Marshal(model)
	if err != nil {
		return kubernixerr.New(kubernixerr.ConfigError, "", fmt.Errorf("marshaling kubernix.toml: %w", err))
	}
	if err := os.MkdirAll(c.RootDir, 0o755); err != nil {
		return kubernixerr.New(kubernixerr.ConfigError, "", fmt.Errorf("creating root dir: %w", err))
	}
	if err := os.WriteFile(c.Paths().Toml(), data, 0o644); err != nil {
		return kubernixerr.New(kubernixerr.ConfigError, "", fmt.Errorf("writing kubernix.toml: %w", err))
	}
	return nil
}

// WriteEnvFile renders kubernix.env: every effective value exported, plus a
// PATH prepended with pathDirs (the hermetic package bin directories the
// caller resolved externally — PATH construction itself is out of scope
// per spec.md §1, KuberNix only receives the directories to prepend).
func (c Config) WriteEnvFile(pathDirs []string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "export KUBERNIX_ROOT=%q\n", c.RootDir)
	fmt.Fprintf(&b, "export KUBERNIX_CIDR=%q\n", c.CIDR.String())
	fmt.Fprintf(&b, "export KUBERNIX_NODES=%q\n", strconv.Itoa(c.Nodes))
	fmt.Fprintf(&b, "export KUBERNIX_RUNTIME=%q\n", c.Runtime)
	fmt.Fprintf(&b, "export KUBERNIX_SHELL=%q\n", c.Shell)
	fmt.Fprintf(&b, "export KUBERNIX_LOG_LEVEL=%q\n", c.LogLevel)
	fmt.Fprintf(&b, "export KUBERNIX_OVERLAY=%q\n", c.OverlayPath)
	fmt.Fprintf(&b, "export KUBERNIX_PACKAGES=%q\n", strings.Join(c.ExtraPackages, ","))
	fmt.Fprintf(&b, "export KUBERNIX_CONTAINER=%q\n", strconv.FormatBool(c.ContainerMode))
	fmt.Fprintf(&b, "export KUBECONFIG=%q\n", c.Paths().Kubeconfig("admin"))
	path := strings.Join(append(append([]string{}, pathDirs...), os.Getenv("PATH")), ":")
	fmt.Fprintf(&b, "export PATH=%q\n", path)
	if err := os.MkdirAll(c.RootDir, 0o755); err != nil {
		return kubernixerr.New(kubernixerr.ConfigError, "", fmt.Errorf("creating root dir: %w", err))
	}
	return os.WriteFile(c.Paths().EnvFile(), []byte(b.String()), 0o644)
}

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }
func boolp(b bool) *bool    { return &b }
