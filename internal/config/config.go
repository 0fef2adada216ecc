package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// Actions, taken in the order remove, copy, save, display
	Remove       bool `yaml:"-"`
	Copy         bool `yaml:"-"`
	SaveMetadata bool `yaml:"-"`

	// Display settings
	Verbose bool `yaml:"verbose"`
	AIOnly  bool `yaml:"ai_only"`
	NoColor bool `yaml:"no_color"`

	// Output settings
	LogFile string `yaml:"log_file"`
	Report  string `yaml:"report"`
}

// Load reads YAML defaults from path. Unknown keys are an error. An empty
// file yields the zero Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Ignored returns the action flags that are set but lose to a higher
// precedence action, paired with the flag that wins.
func (c *Config) Ignored() (ignored []string, winner string) {
	actions := []struct {
		flag string
		set  bool
	}{
		{"--remove", c.Remove},
		{"--copy", c.Copy},
		{"--save-metadata", c.SaveMetadata},
	}
	for _, a := range actions {
		if !a.set {
			continue
		}
		if winner == "" {
			winner = a.flag
			continue
		}
		ignored = append(ignored, a.flag)
	}
	return ignored, winner
}
