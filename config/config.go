// Package config loads and validates node configuration: a YAML file,
// overlaid with environment variables, overlaid with CLI flags bound by
// cobra, with the flag layer taking final precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Exposure controls whether the web UI is reachable beyond loopback.
type Exposure string

const (
	ExposureDisabled Exposure = "disabled"
	ExposurePrivate  Exposure = "private"
	ExposurePublic   Exposure = "public"
)

// Config is the top-level node configuration.
type Config struct {
	Node   NodeConfig   `yaml:"node"`
	Mother MotherConfig `yaml:"mother"`
	Cache  CacheConfig  `yaml:"cache"`
	Web    WebConfig    `yaml:"web"`
}

// NodeConfig controls the node's own listening endpoint.
type NodeConfig struct {
	Port  int  `yaml:"port"`
	Debug bool `yaml:"debug"`
}

// MotherConfig names the well-known bootstrap peer.
type MotherConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the mother's host:port for dialing.
func (m MotherConfig) Addr() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// CacheConfig locates the persistent bbolt cache file.
type CacheConfig struct {
	File string `yaml:"file"`
}

// WebConfig controls static-file serving and its exposure.
type WebConfig struct {
	Root     string   `yaml:"root"`
	Exposure Exposure `yaml:"exposure"`
}

// Load reads config from the YAML file at path, applies environment
// overrides, defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.ApplyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a Config entirely from environment variables and
// defaults, applies defaults, and validates. Used when no YAML file is
// configured.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	cfg.ApplyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overlays environment variables onto the config. Non-empty
// env vars override existing values.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SNIPDEX_NODE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Node.Port = n
		}
	}
	if v := os.Getenv("SNIPDEX_DEBUG"); v != "" {
		c.Node.Debug = v == "1" || v == "true"
	}
	if v := os.Getenv("SNIPDEX_MOTHER_HOST"); v != "" {
		c.Mother.Host = v
	}
	if v := os.Getenv("SNIPDEX_MOTHER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Mother.Port = n
		}
	}
	if v := os.Getenv("SNIPDEX_CACHE_FILE"); v != "" {
		c.Cache.File = v
	}
	if v := os.Getenv("SNIPDEX_WEB_ROOT"); v != "" {
		c.Web.Root = v
	}
	if v := os.Getenv("SNIPDEX_WEB_EXPOSURE"); v != "" {
		c.Web.Exposure = Exposure(v)
	}
}

func (c *Config) applyDefaults() {
	if c.Node.Port == 0 {
		c.Node.Port = 8472
	}
	if c.Mother.Port == 0 {
		c.Mother.Port = 8472
	}
	if c.Cache.File == "" {
		c.Cache.File = "snipdex.db"
	}
	if c.Web.Root == "" {
		c.Web.Root = "./web"
	}
	if c.Web.Exposure == "" {
		c.Web.Exposure = ExposurePrivate
	}
}

func (c *Config) validate() error {
	switch c.Web.Exposure {
	case ExposureDisabled, ExposurePrivate, ExposurePublic:
	default:
		return fmt.Errorf("config: web.exposure must be disabled, private, or public, got %q", c.Web.Exposure)
	}
	if c.Node.Port <= 0 || c.Node.Port > 65535 {
		return fmt.Errorf("config: node.port out of range: %d", c.Node.Port)
	}
	return nil
}

// BindFlags registers the node's CLI flags on cmd, seeded from cfg's
// current values (typically already loaded from file/env/defaults).
// cobra writes directly back into cfg's fields once cmd parses argv.
func BindFlags(cmd *cobra.Command, cfg *Config) {
	cmd.Flags().IntVar(&cfg.Node.Port, "port", cfg.Node.Port, "node listen port")
	cmd.Flags().BoolVar(&cfg.Node.Debug, "debug", cfg.Node.Debug, "enable debug logging")
	cmd.Flags().StringVar(&cfg.Mother.Host, "mother-host", cfg.Mother.Host, "mother node hostname")
	cmd.Flags().IntVar(&cfg.Mother.Port, "mother-port", cfg.Mother.Port, "mother node port")
	cmd.Flags().StringVar(&cfg.Cache.File, "cache-file", cfg.Cache.File, "path to the bbolt cache file")
	cmd.Flags().StringVar(&cfg.Web.Root, "web-root", cfg.Web.Root, "static web root directory")
	cmd.Flags().StringVar((*string)(&cfg.Web.Exposure), "exposure", string(cfg.Web.Exposure), "web exposure: disabled|private|public")
}

// DefaultConfigPaths returns the paths to check for a config file, in
// order of priority.
func DefaultConfigPaths() []string {
	paths := []string{"snipdex.yaml", "snipdex.yml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "snipdex", "snipdex.yaml"),
			filepath.Join(home, ".config", "snipdex", "snipdex.yml"),
		)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths,
			filepath.Join(xdg, "snipdex", "snipdex.yaml"),
			filepath.Join(xdg, "snipdex", "snipdex.yml"),
		)
	}
	return paths
}

// FindConfig returns the first existing config file from the default
// paths, or an empty string if none is found.
func FindConfig() string {
	for _, p := range DefaultConfigPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
