// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full relay configuration. Defaults suit local development;
// production deployments override via environment (see docker-compose.yml
// and k8s/configmap.yaml).
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `envconfig:"LISTEN_ADDR" default:":3001"`

	// AdminSecret gates the /admin command. Empty disables admin grants.
	AdminSecret string `envconfig:"ADMIN_SECRET"`

	// AllowedOrigins are the host patterns accepted for the WebSocket
	// handshake and reflected in CORS headers.
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"localhost:3000,localhost:5173,win99.lol,*.win99.lol"`

	// WordListFile optionally points at a YAML profanity word list that
	// replaces the built-in one.
	WordListFile string `envconfig:"WORD_LIST_FILE"`

	// MaxConns caps concurrent connections; 0 means unlimited.
	MaxConns int `envconfig:"MAX_CONNS"`

	// IdleTimeout reaps connections idle for longer than this; 0 disables.
	IdleTimeout time.Duration `envconfig:"IDLE_TIMEOUT"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
