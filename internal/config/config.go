package config

import (
	"fmt"
	"math"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Supported storage backends.
const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// StorageConfig selects where documents live.
type StorageConfig struct {
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`      // bolt
	DSN       string `yaml:"dsn"`       // postgres
	RedisAddr string `yaml:"redisAddr"` // redis
}

// Config holds the entire node configuration, loaded from a YAML file.
type Config struct {
	// RepoID is this node's identity on the wire. Generated at startup when
	// empty.
	RepoID string `yaml:"repoId"`

	PeerListenAddress      string `yaml:"peerListenAddress"`      // raw TCP
	WebsocketListenAddress string `yaml:"websocketListenAddress"` // HTTP upgrade endpoint
	AdminListenAddress     string `yaml:"adminListenAddress"`     // status endpoint

	// Peers lists the remote endpoints this node dials at startup, as
	// tcp://host:port or ws://host:port/peer URLs.
	Peers []string `yaml:"peers"`

	// PeerJWTSecret gates the websocket listener and signs outbound
	// admission tokens. Empty disables admission checks.
	PeerJWTSecret string `yaml:"peerJWTSecret"`

	// MaxFrameBytes caps a single wire frame. Zero selects the default.
	MaxFrameBytes int `yaml:"maxFrameBytes"`

	// StrictProtocol drops a peer on the first out-of-place handshake
	// message instead of logging and continuing.
	StrictProtocol bool `yaml:"strictProtocol"`

	Storage StorageConfig `yaml:"storage"`
}

// validate performs comprehensive validation of the loaded configuration.
func (c *Config) validate() error {
	if c.PeerListenAddress == "" && c.WebsocketListenAddress == "" && len(c.Peers) == 0 {
		return fmt.Errorf("at least one of peerListenAddress, websocketListenAddress or peers must be set")
	}
	if c.MaxFrameBytes < 0 {
		return fmt.Errorf("maxFrameBytes cannot be negative")
	}
	if int64(c.MaxFrameBytes) > math.MaxUint32 {
		return fmt.Errorf("maxFrameBytes cannot exceed %d", int64(math.MaxUint32))
	}

	for _, peer := range c.Peers {
		u, err := url.Parse(peer)
		if err != nil {
			return fmt.Errorf("invalid peer URL %q: %w", peer, err)
		}
		switch u.Scheme {
		case "tcp", "ws", "wss":
		default:
			return fmt.Errorf("peer URL %q: scheme must be tcp, ws or wss", peer)
		}
	}

	switch c.Storage.Backend {
	case "", BackendMemory:
	case BackendBolt:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path must be set for the bolt backend")
		}
	case BackendPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn must be set for the postgres backend")
		}
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redisAddr must be set for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	return nil
}

// LoadConfig reads the configuration from the given file path, unmarshals
// it, and performs validation.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file at %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml from %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
