package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the repository-local config file looked up at the worktree root
const FileName = ".lfsmend.yaml"

// Backend selects how read-only repository queries are answered
type Backend string

const (
	BackendCLI   Backend = "cli"
	BackendGoGit Backend = "go-git"
)

// Config represents the complete lfsmend configuration
type Config struct {
	Git    GitConfig    `yaml:"git"`
	Repair RepairConfig `yaml:"repair"`
}

// GitConfig configures the git collaborator
type GitConfig struct {
	Backend Backend `yaml:"backend"`
}

// RepairConfig configures the repair sequence
type RepairConfig struct {
	// ScratchDir is the backup directory name inside the git metadata dir
	ScratchDir string `yaml:"scratch_dir"`
	// AutoCRLF is forced as core.autocrlf while restaging restored files
	AutoCRLF   string `yaml:"autocrlf"`
	AllowDirty bool   `yaml:"allow_dirty"`
}

// Default returns the configuration used when no config file exists
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadOptional behaves like Load but returns the defaults when path does not exist
func LoadOptional(path string) (*Config, error) {
	if _, err := os.Stat(os.ExpandEnv(path)); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Git.Backend = Backend(os.ExpandEnv(string(c.Git.Backend)))
	c.Repair.ScratchDir = os.ExpandEnv(c.Repair.ScratchDir)
	c.Repair.AutoCRLF = os.ExpandEnv(c.Repair.AutoCRLF)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Git.Backend == "" {
		c.Git.Backend = BackendCLI
	}
	if c.Repair.ScratchDir == "" {
		c.Repair.ScratchDir = "lfsmend-scratch"
	}
	if c.Repair.AutoCRLF == "" {
		c.Repair.AutoCRLF = "false"
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	switch c.Git.Backend {
	case BackendCLI, BackendGoGit:
		// valid
	default:
		return fmt.Errorf("invalid git.backend: %s (must be cli or go-git)", c.Git.Backend)
	}

	// The scratch dir is wiped with RemoveAll, so it must stay a direct
	// child of the git dir.
	dir := c.Repair.ScratchDir
	if dir == "" {
		return fmt.Errorf("repair.scratch_dir is required")
	}
	if filepath.IsAbs(dir) || dir == "." || dir == ".." || strings.ContainsAny(dir, `/\`) {
		return fmt.Errorf("repair.scratch_dir must be a single relative path element: %s", dir)
	}

	switch c.Repair.AutoCRLF {
	case "true", "false", "input":
		// valid
	default:
		return fmt.Errorf("invalid repair.autocrlf: %s (must be true, false, or input)", c.Repair.AutoCRLF)
	}

	return nil
}

// ScratchPath returns the scratch directory location inside gitDir
func (c *Config) ScratchPath(gitDir string) string {
	return filepath.Join(gitDir, c.Repair.ScratchDir)
}
