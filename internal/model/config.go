package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

// NodeConfig holds the configuration for a single node in a workflow.
type NodeConfig struct {
	// Name is the unique, user-defined name of the node in the workflow.
	Name string `mapstructure:"name" yaml:"name"`

	// Type identifies the node kind (e.g., "emailReadImap", "rvsJwt", "rvsMySql").
	Type string `mapstructure:"type" yaml:"type"`

	// Parameters holds the node parameter values keyed by parameter name.
	Parameters map[string]any `mapstructure:"parameters" yaml:"parameters"`

	// Credentials maps a credential type (e.g., "imap") to the name of a
	// stored credential set.
	Credentials map[string]string `mapstructure:"credentials" yaml:"credentials"`

	// ContinueOnFail converts item failures into error items instead of
	// aborting the run.
	ContinueOnFail bool `mapstructure:"continue_on_fail" yaml:"continue_on_fail"`

	// PollIntervalSec is how often (in seconds) the watch command re-runs
	// the node.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// WorkflowConfig is the top-level configuration of a workflow file.
type WorkflowConfig struct {
	// Name identifies the workflow in execution history and static data.
	Name string `mapstructure:"name" yaml:"name"`

	// StorePath is the SQLite database holding static data and history.
	StorePath string `mapstructure:"store_path" yaml:"store_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	Nodes []NodeConfig `mapstructure:"nodes" yaml:"nodes"`

	// Credentials holds inline credential sets keyed by name. They are
	// used when a name is not found in the system keyring.
	Credentials map[string]map[string]any `mapstructure:"credentials" yaml:"credentials"`
}

const defaultPollIntervalSec = 60

// DefaultStorePath returns the default path for the state database,
// located at ~/.config/rvsnodes/state.db.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "state.db")
	}
	return filepath.Join(home, ".config", "rvsnodes", "state.db")
}

// Node returns the node configuration with the given name.
func (c *WorkflowConfig) Node(name string) (*NodeConfig, error) {
	for i := range c.Nodes {
		if c.Nodes[i].Name == name {
			return &c.Nodes[i], nil
		}
	}
	return nil, fmt.Errorf("node %q not found in workflow %q", name, c.Name)
}

// LoadWorkflow reads a workflow from the given YAML file path using Viper.
func LoadWorkflow(path string) (*WorkflowConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("name", "default")
	v.SetDefault("store_path", DefaultStorePath())
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading workflow %s: %w", path, err)
	}

	cfg := &WorkflowConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing workflow %s: %w", path, err)
	}
	if err := restoreKeyCase(path, cfg); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(cfg.Nodes))
	for i := range cfg.Nodes {
		n := &cfg.Nodes[i]
		if n.Name == "" {
			return nil, fmt.Errorf("workflow %s: node %d has no name", path, i)
		}
		if seen[n.Name] {
			return nil, fmt.Errorf("workflow %s: duplicate node name %q", path, n.Name)
		}
		seen[n.Name] = true

		if n.PollIntervalSec == 0 {
			n.PollIntervalSec = defaultPollIntervalSec
		}
		if n.Parameters == nil {
			n.Parameters = map[string]any{}
		}
	}

	return cfg, nil
}

// userData holds the parts of a workflow file whose nested keys are user
// data. Viper lower-cases every key, so they are decoded a second time.
type userData struct {
	Nodes []struct {
		Parameters map[string]any `yaml:"parameters"`
	} `yaml:"nodes"`
	Credentials map[string]map[string]any `yaml:"credentials"`
}

func restoreKeyCase(path string, cfg *WorkflowConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading workflow %s: %w", path, err)
	}

	var data userData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parsing workflow %s: %w", path, err)
	}

	for i := range cfg.Nodes {
		if i < len(data.Nodes) && data.Nodes[i].Parameters != nil {
			cfg.Nodes[i].Parameters = data.Nodes[i].Parameters
		}
	}
	if data.Credentials != nil {
		cfg.Credentials = data.Credentials
	}
	return nil
}
