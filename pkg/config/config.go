package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Cache     CacheConfig
	Registry  RegistryConfig
	Schedule  ScheduleConfig
	Server    ServerConfig
	Redis     RedisConfig
	SQLite    SQLiteConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type CacheConfig struct {
	Dir string
}

type RegistryConfig struct {
	URL          string
	ChangelogURL string
	DocsURL      string
	TimeoutSec   int
	MaxAttempts  int
}

func (r RegistryConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSec) * time.Second
}

type ScheduleConfig struct {
	Daily  string
	Weekly string
}

type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    int
	WriteTimeout   int
	BodyLimit      int
	AllowedOrigins []string
	Development    bool
	AccessLog      bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLSec   int
}

type SQLiteConfig struct {
	Enabled bool
	Path    string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// Load reads config.yaml (if present) and PYDVERIFY_* environment overrides.
// An explicit path skips the search directories.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/pydverify")
	}

	v.SetEnvPrefix("PYDVERIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Cache.Dir == "" {
		return nil, fmt.Errorf("cache.dir must not be empty")
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.dir", "./data/pydantic_cache")

	v.SetDefault("registry.url", "https://pypi.org/pypi/pydantic/json")
	v.SetDefault("registry.changelogUrl", "https://api.github.com/repos/pydantic/pydantic/releases/tags")
	v.SetDefault("registry.docsUrl", "https://docs.pydantic.dev/latest/")
	v.SetDefault("registry.timeoutSec", 10)
	v.SetDefault("registry.maxAttempts", 2)

	v.SetDefault("schedule.daily", "0 0 2 * * *")
	v.SetDefault("schedule.weekly", "0 0 3 * * 0")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.bodyLimit", 4194304)
	v.SetDefault("server.allowedOrigins", []string{})
	v.SetDefault("server.development", false)
	v.SetDefault("server.accessLog", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlSec", 3600)

	v.SetDefault("sqlite.enabled", false)
	v.SetDefault("sqlite.path", "./data/pydverify.db")

	v.SetDefault("ratelimit.requestsPerMinute", 120)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
