// Package config loads the xmindctl configuration file.
//
// The file is read from exactly one place: the --config flag, or the
// XMINDCTL_CONFIG environment variable when the flag is absent. There is no
// search path. Without either, the defaults apply.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/agentic-research/xmindctl/internal/logging"
)

// EnvVar names the environment variable holding the config path.
const EnvVar = "XMINDCTL_CONFIG"

// DefaultBackground is the fill color used when none is given.
const DefaultBackground = "#000000FF"

// Config is the full configuration.
type Config struct {
	// Template is an archive used by create instead of the built-in blank.
	// ${HOME} and other ${VAR} references are expanded.
	Template string `yaml:"template"`

	Background BackgroundConfig `yaml:"background"`
	Addressing AddressingConfig `yaml:"addressing"`
	Log        LogConfig        `yaml:"log"`
	Output     OutputConfig     `yaml:"output"`
}

// BackgroundConfig holds defaults for the background command.
type BackgroundConfig struct {
	// Color is the default for background --color.
	Color string `yaml:"color"`
}

// AddressingConfig controls how path expressions resolve.
type AddressingConfig struct {
	// Strict makes a path matching several nodes an error instead of a
	// warning.
	Strict bool `yaml:"strict"`
}

// LogConfig configures the stderr logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
}

// OutputConfig controls how documents are printed.
type OutputConfig struct {
	// Indent is used when printing documents. Empty prints compact JSON.
	Indent string `yaml:"indent"`
}

// Default returns the configuration used without a file.
func Default() *Config {
	return &Config{
		Background: BackgroundConfig{Color: DefaultBackground},
		Log:        LogConfig{Level: "info"},
		Output:     OutputConfig{Indent: "  "},
	}
}

// Load reads path, or the file named by XMINDCTL_CONFIG when path is empty.
// With neither it returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the YAML file at path over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults, expands variables and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Background.Color == "" {
		cfg.Background.Color = DefaultBackground
	}
	cfg.Template = expandVars(cfg.Template)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that have a fixed vocabulary.
func (c *Config) Validate() error {
	var problems []error
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Errorf("log.level: %w", err))
	}
	for _, r := range c.Output.Indent {
		if r != ' ' && r != '\t' {
			problems = append(problems, fmt.Errorf("output.indent: only spaces and tabs are allowed, got %q", c.Output.Indent))
			break
		}
	}
	return errors.Join(problems...)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}
