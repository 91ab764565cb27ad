// Package config handles per-environment deployment configuration.
//
// Config is stored at $XDG_CONFIG_HOME/slipway/config.yaml (defaults to
// ~/.config/slipway/config.yaml): named environments with a current-environment
// selector. The deploy pipeline only ever sees resolved values — region,
// project and name overrides — never the file itself.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/go-connections/nat"
	"gopkg.in/yaml.v3"
)

const defaultPortSpec = "8080/tcp"

// Environment describes one deployment target (e.g. staging, prod).
type Environment struct {
	Region  string `yaml:"region"`
	Project string `yaml:"project"`
	Cluster string `yaml:"cluster,omitempty"` // override; defaults to <project>-<env>
	Service string `yaml:"service,omitempty"` // override; defaults to <project>-<env>
	Image   string `yaml:"image,omitempty"`   // local image name; defaults to project
	Port    string `yaml:"port,omitempty"`    // container port spec, e.g. "8080" or "8080/tcp"
}

// ContainerPort parses the environment's port spec into a port number and
// protocol. An empty spec falls back to 8080/tcp.
func (e Environment) ContainerPort() (int32, string, error) {
	spec := strings.TrimSpace(e.Port)
	if spec == "" {
		spec = defaultPortSpec
	}
	proto, portStr := nat.SplitProtoPort(spec)
	p, err := nat.NewPort(proto, portStr)
	if err != nil {
		return 0, "", fmt.Errorf("invalid port spec %q: %w", spec, err)
	}
	return int32(p.Int()), p.Proto(), nil
}

// Config holds named environments and the current selection.
type Config struct {
	CurrentEnvironment string                 `yaml:"current-environment,omitempty"`
	Environments       map[string]Environment `yaml:"environments"`
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/slipway/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "slipway", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "slipway", "config.yaml")
}

// Load reads the config file. If the file does not exist, an empty Config
// is returned (not an error).
func Load() (*Config, error) {
	return loadFrom(Path())
}

func loadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{Environments: make(map[string]Environment)}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Environments == nil {
		cfg.Environments = make(map[string]Environment)
	}
	return &cfg, nil
}

// Save writes the config to disk, creating directories as needed.
func (c *Config) Save() error {
	return c.saveTo(Path())
}

func (c *Config) saveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Resolve returns the named environment, falling back to the current
// selection when name is empty.
func (c *Config) Resolve(name string) (string, Environment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = c.CurrentEnvironment
	}
	if name == "" {
		return "", Environment{}, fmt.Errorf("no environment given and no current-environment set")
	}
	env, ok := c.Environments[name]
	if !ok {
		return "", Environment{}, fmt.Errorf("environment %q not found in %s", name, Path())
	}
	if strings.TrimSpace(env.Region) == "" {
		return "", Environment{}, fmt.Errorf("environment %q has no region", name)
	}
	if strings.TrimSpace(env.Project) == "" {
		return "", Environment{}, fmt.Errorf("environment %q has no project", name)
	}
	return name, env, nil
}

// Use selects the current environment. Returns an error if the name is
// unknown.
func (c *Config) Use(name string) error {
	if _, ok := c.Environments[name]; !ok {
		return fmt.Errorf("environment %q not found", name)
	}
	c.CurrentEnvironment = name
	return nil
}

// Set adds or updates a named environment.
func (c *Config) Set(name string, env Environment) {
	c.Environments[name] = env
}

// Remove deletes an environment. If it was the current selection,
// current-environment is cleared. Returns an error if the name is unknown.
func (c *Config) Remove(name string) error {
	if _, ok := c.Environments[name]; !ok {
		return fmt.Errorf("environment %q not found", name)
	}
	delete(c.Environments, name)
	if c.CurrentEnvironment == name {
		c.CurrentEnvironment = ""
	}
	return nil
}

// ClusterName returns the effective cluster name for env.
func (e Environment) ClusterName(envName string) string {
	if e.Cluster != "" {
		return e.Cluster
	}
	return e.Project + "-" + envName
}

// ServiceName returns the effective service name for env.
func (e Environment) ServiceName(envName string) string {
	if e.Service != "" {
		return e.Service
	}
	return e.Project + "-" + envName
}

// LocalImage returns the local image name to push for env.
func (e Environment) LocalImage() string {
	if e.Image != "" {
		return e.Image
	}
	return e.Project
}
