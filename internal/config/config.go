package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix namespaces environment overrides, e.g. SCHOOLFEES_SERVER_PORT
const EnvPrefix = "SCHOOLFEES"

// Database drivers
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Fees     FeesConfig     `mapstructure:"fees"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// AppConfig identifies the deployment
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// IsProduction reports whether the app runs in the production environment
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig selects and configures the store
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	Mongo           MongoConfig   `mapstructure:"mongo"`
}

// MongoConfig holds MongoDB settings used when database.driver is mongo
type MongoConfig struct {
	URI          string        `mapstructure:"uri"`
	Database     string        `mapstructure:"database"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Transactions bool          `mapstructure:"transactions"`
}

// RedisConfig holds the session store connection
type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	SessionPrefix string `mapstructure:"session_prefix"`
}

// AuthConfig lists the credential strategies tried, in order
type AuthConfig struct {
	Strategies    []string      `mapstructure:"strategies"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	JWTIssuer     string        `mapstructure:"jwt_issuer"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	SessionCookie string        `mapstructure:"session_cookie"`
	DevMode       bool          `mapstructure:"dev_mode"`
	DevAdminID    string        `mapstructure:"dev_admin_id"`
}

// Has reports whether strategy is enabled
func (a AuthConfig) Has(strategy string) bool {
	for _, s := range a.Strategies {
		if strings.EqualFold(s, strategy) {
			return true
		}
	}
	return false
}

// StorageConfig holds payment proof storage settings
type StorageConfig struct {
	BaseDir       string `mapstructure:"base_dir"`
	MaxProofBytes int64  `mapstructure:"max_proof_bytes"`
	PreviewWidth  int    `mapstructure:"preview_width"`
}

// FeesConfig holds the fee structure created for a grade that has none
type FeesConfig struct {
	DefaultTuitionFee float64 `mapstructure:"default_tuition_fee"`
	DefaultOtherFee   float64 `mapstructure:"default_other_fee"`
	DefaultDueDate    string  `mapstructure:"default_due_date"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configPath when it exists, then applies .env and environment
// overrides. A missing config file is not an error; defaults cover everything.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "school-fees")
	v.SetDefault("app.env", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_upload_bytes", 8<<20)

	// Database defaults
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "data/school-fees.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 0)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("database.mongo.database", "school_fees")
	v.SetDefault("database.mongo.timeout", 10*time.Second)
	v.SetDefault("database.mongo.transactions", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.session_prefix", "session:")

	v.SetDefault("auth.strategies", []string{"bearer"})
	v.SetDefault("auth.jwt_issuer", "school-fees")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("auth.session_cookie", "session_token")
	v.SetDefault("auth.dev_mode", false)
	v.SetDefault("auth.dev_admin_id", "dev-admin")

	v.SetDefault("storage.base_dir", "data/uploads")
	v.SetDefault("storage.max_proof_bytes", 5<<20)
	v.SetDefault("storage.preview_width", 800)

	v.SetDefault("fees.default_tuition_fee", 5000)
	v.SetDefault("fees.default_other_fee", 1000)
	v.SetDefault("fees.default_due_date", "15th of each month")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the unprefixed variables secrets are usually deployed under
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("auth.jwt_secret", EnvPrefix+"_AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("redis.addr", EnvPrefix+"_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", EnvPrefix+"_REDIS_PASSWORD", "REDIS_PASSWORD")
	_ = v.BindEnv("database.mongo.uri", EnvPrefix+"_DATABASE_MONGO_URI", "MONGO_URI")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case DriverMongo:
		if c.Database.Mongo.URI == "" || c.Database.Mongo.Database == "" {
			return fmt.Errorf("database.mongo.uri and database.mongo.database are required for the mongo driver")
		}
	case DriverMemory:
		if c.App.IsProduction() {
			return fmt.Errorf("database.driver memory is not allowed in production")
		}
	default:
		return fmt.Errorf("database.driver %q is not one of sqlite, mongo, memory", c.Database.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}

	for _, s := range c.Auth.Strategies {
		switch strings.ToLower(s) {
		case "bearer", "session":
		default:
			return fmt.Errorf("auth.strategies: unknown strategy %q", s)
		}
	}
	if c.Auth.Has("bearer") && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required for the bearer strategy")
	}
	if c.Auth.Has("session") && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required for the session strategy")
	}
	if c.Auth.DevMode && c.App.IsProduction() {
		return fmt.Errorf("auth.dev_mode must not be enabled in production")
	}
	if len(c.Auth.Strategies) == 0 && !c.Auth.DevMode {
		return fmt.Errorf("auth.strategies is empty and dev mode is off; no request could authenticate")
	}

	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Fees.DefaultTuitionFee < 0 || c.Fees.DefaultOtherFee < 0 {
		return fmt.Errorf("fees defaults must not be negative")
	}

	return nil
}
