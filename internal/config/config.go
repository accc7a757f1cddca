package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Composer ComposerConfig `mapstructure:"composer"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	Port      int             `mapstructure:"port"`
	Mode      string          `mapstructure:"mode"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// RateLimitConfig is a token bucket: RPS tokens per second, Burst capacity.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// APIConfig describes the upstream meme service.
type APIConfig struct {
	BaseURL        string          `mapstructure:"base_url"`
	Timeout        time.Duration   `mapstructure:"timeout"`
	RetryCount     int             `mapstructure:"retry_count"`
	RetryWait      time.Duration   `mapstructure:"retry_wait"`
	MaxConcurrency int             `mapstructure:"max_concurrency"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
	Breaker        BreakerConfig   `mapstructure:"breaker"`
}

type BreakerConfig struct {
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`
	URL             string        `mapstructure:"url"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		return d.URL
	}
	return d.Path
}

// StorageConfig selects where draft pictures are kept.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // local, s3, r2, s3compatible
	Dir       string `mapstructure:"dir"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

// ComposerConfig holds the caption canvas bounds and upload limits.
type ComposerConfig struct {
	CanvasWidth     float64 `mapstructure:"canvas_width"`
	CanvasHeight    float64 `mapstructure:"canvas_height"`
	MaxPictureBytes int64   `mapstructure:"max_picture_bytes"`
}

// AuthConfig holds the secret the meme service signs access tokens with.
// Draft routes reject every token while it is empty.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Explicit bindings for deployment-provided values
	v.BindEnv("api.base_url", "MEME_API_URL")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.bucket", "STORAGE_BUCKET")
	v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("server.rate_limit.rps", 20.0)
	v.SetDefault("server.rate_limit.burst", 40)

	v.SetDefault("api.base_url", "http://localhost:3000")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.retry_count", 2)
	v.SetDefault("api.retry_wait", 200*time.Millisecond)
	v.SetDefault("api.max_concurrency", 16)
	v.SetDefault("api.rate_limit.rps", 50.0)
	v.SetDefault("api.rate_limit.burst", 50)
	v.SetDefault("api.breaker.interval", 60*time.Second)
	v.SetDefault("api.breaker.timeout", 30*time.Second)
	v.SetDefault("api.breaker.consecutive_failures", 5)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/drafts.db")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.dir", "./data/pictures")
	v.SetDefault("storage.bucket", "meme-drafts")

	v.SetDefault("composer.canvas_width", 400.0)
	v.SetDefault("composer.canvas_height", 225.0)
	v.SetDefault("composer.max_picture_bytes", 10<<20)
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Composer.CanvasWidth <= 0 || c.Composer.CanvasHeight <= 0 {
		return fmt.Errorf("composer canvas must be positive, got %vx%v", c.Composer.CanvasWidth, c.Composer.CanvasHeight)
	}
	if c.API.MaxConcurrency <= 0 {
		return fmt.Errorf("api.max_concurrency must be positive")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}
