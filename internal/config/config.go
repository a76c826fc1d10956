package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for all environment variables read by Load.
const EnvPrefix = "REWEAR"

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// Config is the full runtime configuration of the service.
type Config struct {
	Env  string `envconfig:"REWEAR_ENV" default:"dev"`
	Addr string `envconfig:"REWEAR_ADDR" default:":8080"`

	Log   LogConfig
	DB    DBConfig
	JWT   JWTConfig
	Items ItemsConfig

	InitialPoints int    `envconfig:"REWEAR_INITIAL_POINTS" default:"100"`
	AdminEmail    string `envconfig:"REWEAR_ADMIN_EMAIL" default:"admin@rewear.local"`
}

type LogConfig struct {
	Level  string `envconfig:"REWEAR_LOG_LEVEL" default:"info"`
	Format string `envconfig:"REWEAR_LOG_FORMAT" default:"json"`
	File   string `envconfig:"REWEAR_LOG_FILE"`
}

type DBConfig struct {
	Driver      string        `envconfig:"REWEAR_DB_DRIVER" default:"sqlite"`
	DSN         string        `envconfig:"REWEAR_DB_DSN" default:"rewear.sqlite3"`
	AutoMigrate bool          `envconfig:"REWEAR_AUTO_MIGRATE" default:"true"`
	MaxOpen     int           `envconfig:"REWEAR_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdle     int           `envconfig:"REWEAR_DB_MAX_IDLE_CONNS" default:"5"`
	MaxLifetime time.Duration `envconfig:"REWEAR_DB_CONN_MAX_LIFETIME" default:"1h"`
}

type JWTConfig struct {
	// Secret is optional. When empty, a secret is generated once and kept in
	// the settings table.
	Secret string        `envconfig:"REWEAR_JWT_SECRET"`
	TTL    time.Duration `envconfig:"REWEAR_JWT_TTL" default:"168h"`
}

type ItemsConfig struct {
	AutoApprove bool `envconfig:"REWEAR_AUTO_APPROVE_ITEMS" default:"false"`
	MaxUploadMB int  `envconfig:"REWEAR_MAX_UPLOAD_MB" default:"5"`
	MaxImages   int  `envconfig:"REWEAR_MAX_IMAGES" default:"5"`
}

// IsDev reports whether the service runs in development mode.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Env, EnvDev)
}

// MaxUploadBytes returns the upload limit for a single image.
func (c ItemsConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// LoadDotEnv loads variables from the given files (default .env) into the
// process environment. Existing variables are not overridden.
func LoadDotEnv(files ...string) error {
	return godotenv.Load(files...)
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that envconfig cannot express as tags.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", c.DB.Driver)
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("jwt ttl must be positive")
	}
	if c.InitialPoints < 0 {
		return fmt.Errorf("initial points must not be negative")
	}
	if c.Items.MaxUploadMB <= 0 || c.Items.MaxImages <= 0 {
		return fmt.Errorf("item upload limits must be positive")
	}
	return nil
}
