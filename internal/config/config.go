package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Growatt   GrowattConfig   `mapstructure:"growatt"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MigrationsPath string `mapstructure:"migrations_path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	TokenExpiry int           `mapstructure:"token_expiry"` // seconds
	Bootstrap   BootstrapUser `mapstructure:"bootstrap"`
}

// BootstrapUser is created on first run when the users table is empty
type BootstrapUser struct {
	Enabled  bool   `mapstructure:"enabled"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// GrowattConfig carries vendor client tuning shared by every integration
// instance; per-account credentials live in integration settings
type GrowattConfig struct {
	ServerURL       string   `mapstructure:"server_url"`
	LoginTimeout    string   `mapstructure:"login_timeout"`     // session reuse window
	CacheTTL        string   `mapstructure:"cache_ttl"`         // interactive reads
	RefreshInterval string   `mapstructure:"refresh_interval"`  // background refresh
	APIOnlySerials  []string `mapstructure:"api_only_serials"`  // never use the panel path
	PanelFamilies   []string `mapstructure:"panel_families"`    // device type families with incomplete API data
	RequestTimeout  string   `mapstructure:"request_timeout"`
}

type WebSocketConfig struct {
	PingInterval int `mapstructure:"ping_interval"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("ESPCTRL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Missing file is fine: defaults + env cover every key
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required (set ESPCTRL_AUTH_JWT_SECRET)")
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 3020)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.mode", "production")

	viper.SetDefault("database.path", "./data/espcontrol.db")
	viper.SetDefault("database.migrations_path", "./migrations")
	viper.SetDefault("database.max_connections", 10)

	viper.SetDefault("auth.token_expiry", 3600)
	viper.SetDefault("auth.bootstrap.enabled", true)
	viper.SetDefault("auth.bootstrap.username", "admin")
	viper.SetDefault("auth.bootstrap.password", "")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("scheduler.enabled", true)

	viper.SetDefault("growatt.server_url", "https://server.growatt.com")
	viper.SetDefault("growatt.login_timeout", "24h")
	viper.SetDefault("growatt.cache_ttl", "25s")
	viper.SetDefault("growatt.refresh_interval", "5m")
	viper.SetDefault("growatt.request_timeout", "30s")
	viper.SetDefault("growatt.panel_families", []string{"SPH"})

	viper.SetDefault("websocket.ping_interval", 30)
	viper.SetDefault("websocket.write_timeout", 10)
}
