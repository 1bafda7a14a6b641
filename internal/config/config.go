package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all agent configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Sync     SyncConfig     `mapstructure:"sync"`
	State    StateConfig    `mapstructure:"state"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
}

type ServerConfig struct {
	// Port for the local consumer API; the agent binds loopback only.
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	WSURL   string `mapstructure:"ws_url"`
	// Token is the bearer credential handed over by the embedding
	// application's login flow.
	Token string `mapstructure:"token"`
}

type SyncConfig struct {
	PollIntervalMS int `mapstructure:"poll_interval_ms"` // Default: 5000
	BackoffBaseMS  int `mapstructure:"backoff_base_ms"`  // Default: 1000
	BackoffCapMS   int `mapstructure:"backoff_cap_ms"`   // Default: 30000
}

type StateConfig struct {
	// Dir holds the read ledger files and the unified list snapshot.
	Dir string `mapstructure:"dir"`
}

type RealtimeConfig struct {
	// Resources lists the admin stream resources to subscribe to.
	Resources []string `mapstructure:"resources"`
}

// Load reads configuration from environment variables and config files.
// Environment variables override file values. Prefix: MKT_SYNC_
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", "8091")
	v.SetDefault("server.env", "development")
	v.SetDefault("backend.base_url", "http://localhost:8080")
	v.SetDefault("backend.ws_url", "ws://localhost:8080")
	v.SetDefault("sync.poll_interval_ms", 5000)
	v.SetDefault("sync.backoff_base_ms", 1000)
	v.SetDefault("sync.backoff_cap_ms", 30000)
	v.SetDefault("state.dir", "./state")
	v.SetDefault("realtime.resources", []string{"orders", "reviews", "vouchers"})

	v.SetEnvPrefix("MKT_SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Plain env vars for convenience in launch scripts
	v.BindEnv("backend.base_url", "BACKEND_URL")
	v.BindEnv("backend.ws_url", "BACKEND_WS_URL")
	v.BindEnv("backend.token", "BACKEND_TOKEN")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("state.dir", "STATE_DIR")

	// Optional config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s SyncConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

func (s SyncConfig) BackoffBase() time.Duration {
	return time.Duration(s.BackoffBaseMS) * time.Millisecond
}

func (s SyncConfig) BackoffCap() time.Duration {
	return time.Duration(s.BackoffCapMS) * time.Millisecond
}
