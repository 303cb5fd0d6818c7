package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDebounce is the delay between a file change and the regeneration it triggers
const DefaultDebounce = 250 * time.Millisecond

// FileNames lists the config file names searched for, in order of preference
var FileNames = []string{"querykit.json", "querykit.yaml", ".querykit.yaml"}

// ErrNotFound is returned when no config file exists in a directory or its parents
var ErrNotFound = errors.New("no config file found")

// Config represents the querykit configuration file
type Config struct {
	Template  string         `json:"template" yaml:"template"`
	Extension string         `json:"extension" yaml:"extension"`
	Compiler  CompilerConfig `json:"compiler" yaml:"compiler"`
	Watch     WatchConfig    `json:"watch" yaml:"watch"`
}

// CompilerConfig selects the model compiler. An empty command selects the
// built-in compiler.
type CompilerConfig struct {
	Command []string `json:"command" yaml:"command"`
}

// WatchConfig contains watch mode configuration
type WatchConfig struct {
	Debounce Duration `json:"debounce" yaml:"debounce"`
	Exclude  []string `json:"exclude" yaml:"exclude"`
}

// Duration is a time.Duration written as a string such as "250ms"
type Duration time.Duration

func (d *Duration) set(s string) error {
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.set(s)
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.set(s)
}

// Default returns the configuration used when no config file exists
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = Duration(DefaultDebounce)
	}
	if len(c.Watch.Exclude) == 0 {
		c.Watch.Exclude = []string{".git/", "*.swp", "*~"}
	}
	c.Extension = strings.TrimPrefix(c.Extension, ".")
}

// LoadConfig loads the configuration from startDir or a parent directory. It
// returns the directory containing the config file.
func LoadConfig(startDir string) (*Config, string, error) {
	return loadConfigFromDir(startDir)
}

// LoadConfigFromPath loads a configuration file. Files ending in .yaml or .yml
// are read as YAML, everything else as JSON. A relative template path is
// resolved against the directory of the file.
func LoadConfigFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}

	if config.Template != "" && !filepath.IsAbs(config.Template) {
		config.Template = filepath.Join(filepath.Dir(path), config.Template)
	}
	config.applyDefaults()

	return &config, nil
}

// loadConfigFromDir searches for a config file in the given directory and its parents
func loadConfigFromDir(startDir string) (*Config, string, error) {
	dir := startDir
	for {
		for _, name := range FileNames {
			configPath := filepath.Join(dir, name)
			if _, err := os.Stat(configPath); err == nil {
				config, err := LoadConfigFromPath(configPath)
				if err != nil {
					return nil, "", err
				}
				return config, dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root directory
			break
		}
		dir = parent
	}

	return nil, "", fmt.Errorf("%w in %s or any parent directory", ErrNotFound, startDir)
}
