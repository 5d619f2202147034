package config

import (
	"github.com/jinzhu/configor"
)

// Config - Application configuration
type Config struct {
	Fetch struct {
		Timeout      int    `yaml:"timeout" default:"30" env:"FETCH_TIMEOUT"` // Timeout in seconds
		UserAgent    string `yaml:"user_agent" default:"agent-fetch/1.0" env:"FETCH_USER_AGENT"`
		MaxBodyBytes int64  `yaml:"max_body_bytes" default:"10485760" env:"FETCH_MAX_BODY_BYTES"` // Response body cap (10 MB)
		MaxRawHTML   int    `yaml:"max_raw_html" default:"5000" env:"FETCH_MAX_RAW_HTML"`         // Stored raw HTML cap in characters
	} `yaml:"fetch"`

	Server struct {
		Port int `yaml:"port" default:"8080" env:"PORT"`
	} `yaml:"server"`

	Storage struct {
		DataDir string `yaml:"data_dir" default:"./data" env:"DATA_DIR"`
	} `yaml:"storage"`
}

// LoadConfig - Load configuration file. An empty path loads defaults and
// environment variables only.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	loader := configor.New(&configor.Config{
		Debug:      false,
		Verbose:    false,
		Silent:     true,
		AutoReload: false,
	})
	if path == "" {
		return cfg, loader.Load(cfg)
	}
	return cfg, loader.Load(cfg, path)
}
