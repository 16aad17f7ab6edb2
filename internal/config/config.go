package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
)

// DatabaseConfig selects and addresses the datastore.
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`

	// Path is the SQLite file used when Driver is "sqlite".
	Path string `mapstructure:"path"`

	// MaxRetries bounds re-runs of a transaction after a serialization
	// failure or deadlock.
	MaxRetries int `mapstructure:"max_retries"`

	// Listen enables the cross-instance entity deletion listener.
	Listen bool `mapstructure:"listen"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

// TwilioConfig enables SMS push of notifications when AccountSID is set.
type TwilioConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
}

// Enabled reports whether SMS push is configured.
func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.From != ""
}

// Config is the top-level service configuration.
type Config struct {
	Port      string         `mapstructure:"port"`
	JWTSecret string         `mapstructure:"jwt_secret"`
	Database  DatabaseConfig `mapstructure:"db"`
	Twilio    TwilioConfig   `mapstructure:"twilio"`

	// PublicURL prefixes notification links in SMS bodies.
	PublicURL string `mapstructure:"public_url"`

	// DedupInterval is the period of the notification sweep. Zero disables it.
	DedupInterval time.Duration `mapstructure:"dedup_interval"`
}

// envBindings maps config keys to the environment variables the deployment
// has always used.
var envBindings = map[string]string{
	"port":               "PORT",
	"jwt_secret":         "JWT_SECRET",
	"public_url":         "PUBLIC_URL",
	"db.driver":          "DB_DRIVER",
	"db.host":            "DB_HOST",
	"db.port":            "DB_PORT",
	"db.user":            "DB_USER",
	"db.password":        "DB_PASSWORD",
	"db.name":            "DB_NAME",
	"db.sslmode":         "DB_SSLMODE",
	"db.path":            "DB_PATH",
	"db.max_retries":     "TX_MAX_RETRIES",
	"db.listen":          "PG_LISTEN",
	"dedup_interval":     "DEDUP_INTERVAL",
	"twilio.account_sid": "TWILIO_ACCOUNT_SID",
	"twilio.auth_token":  "TWILIO_AUTH_TOKEN",
	"twilio.from":        "TWILIO_FROM",
}

// Load reads configuration from the environment (a .env file is loaded on
// import) and, when path is non-empty, from a YAML file. Environment values
// win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.path", "forum.db")
	v.SetDefault("db.max_retries", 3)
	v.SetDefault("db.listen", false)
	v.SetDefault("dedup_interval", "15m")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	if cfg.Database.MaxRetries < 0 {
		cfg.Database.MaxRetries = 0
	}

	return cfg, nil
}
