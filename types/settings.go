package types

import "time"

// ServerConfig is the configuration loaded from config.yaml.
type ServerConfig struct {
	Port               int           `yaml:"port"`
	SharedDir          string        `yaml:"sharedDir"`
	PresenceTTL        time.Duration `yaml:"presenceTTL"`
	ReaperInterval     time.Duration `yaml:"reaperInterval"`
	KeepaliveInterval  time.Duration `yaml:"keepaliveInterval"`
	QueueCapacity      int           `yaml:"queueCapacity"`
	MaxUploadBytes     int64         `yaml:"maxUploadBytes"`
	RateLimitPerMinute int           `yaml:"rateLimitPerMinute"`
	MDNS               bool          `yaml:"mdns"`
	WatchSharedDir     bool          `yaml:"watchSharedDir"`
	Metrics            bool          `yaml:"metrics"`
	WebDir             string        `yaml:"webDir,omitempty"`
}

// Flags holds runtime overrides from CLI flags.
type Flags struct {
	Log        string
	ConfigPath string
	Port       int
	SharedDir  string
	NoMDNS     bool
}
