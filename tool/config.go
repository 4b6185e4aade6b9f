package tool

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moyoez/snapshare/types"
)

var ConfigPath = "config.yaml" // be aware that it can be changed, default to ./config.yaml

func DefaultConfig() types.ServerConfig {
	return types.ServerConfig{
		Port:               8080,
		SharedDir:          "shared_files",
		PresenceTTL:        60 * time.Second,
		ReaperInterval:     15 * time.Second,
		KeepaliveInterval:  20 * time.Second,
		QueueCapacity:      200,
		MaxUploadBytes:     500 << 20,
		RateLimitPerMinute: 300,
		MDNS:               true,
		WatchSharedDir:     true,
		Metrics:            true,
	}
}

// LoadConfig reads path, creating it with defaults when it does not exist.
// Zero or missing values fall back to their defaults.
func LoadConfig(path string) (types.ServerConfig, error) {
	if path == "" {
		path = ConfigPath
	}
	ConfigPath = path

	cfg := DefaultConfig()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := writeConfig(path, cfg); writeErr != nil {
				return cfg, fmt.Errorf("config file not found, and failed to generate default config: %w", writeErr)
			}
			DefaultLogger.Infof("Created new config file at %s", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if info.IsDir() {
		return cfg, fmt.Errorf("config file path is a directory: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// ApplyFlags overrides file values with the ones given on the command line.
func ApplyFlags(cfg *types.ServerConfig, flags types.Flags) {
	if flags.Port > 0 {
		cfg.Port = flags.Port
	}
	if flags.SharedDir != "" {
		cfg.SharedDir = flags.SharedDir
	}
	if flags.NoMDNS {
		cfg.MDNS = false
	}
}

func applyDefaults(cfg *types.ServerConfig) {
	def := DefaultConfig()
	if cfg.Port <= 0 {
		cfg.Port = def.Port
	}
	if cfg.SharedDir == "" {
		cfg.SharedDir = def.SharedDir
	}
	if cfg.PresenceTTL <= 0 {
		cfg.PresenceTTL = def.PresenceTTL
	}
	if cfg.ReaperInterval <= 0 {
		cfg.ReaperInterval = def.ReaperInterval
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = def.KeepaliveInterval
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = def.QueueCapacity
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	// rateLimitPerMinute: 0 keeps the default, negative disables the limiter
	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = def.RateLimitPerMinute
	}
}

func writeConfig(path string, cfg types.ServerConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
