// Package config loads the settings file with the controller address and
// credentials. Command-line flags override anything set here.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default CLI port when the settings file leaves it unset.
const defaultPort = 22

// Config is the full settings file.
type Config struct {
	Panorama Panorama `yaml:"panorama"`
}

// Panorama identifies the management controller and how to log in to it.
type Panorama struct {
	Hostname string `yaml:"hostname"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Port     int    `yaml:"port"`
}

// Load reads and parses the settings file. A missing file is not an
// error: flags may supply everything, so an empty config with defaults
// is returned instead.
func Load(path string) (*Config, error) {
	cfg := &Config{Panorama: Panorama{Port: defaultPort}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	if cfg.Panorama.Port == 0 {
		cfg.Panorama.Port = defaultPort
	}
	return cfg, nil
}
