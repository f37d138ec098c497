package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"domore/internal/dates"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g.
// DOMORE_AUTH_SECRET or DOMORE_SERVER_PORT.
const EnvPrefix = "DOMORE"

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
	Repository RepositoryConfig `yaml:"repository"`
	Auth       AuthConfig       `yaml:"auth"`
	Cache      CacheConfig      `yaml:"cache"`
	Calendar   CalendarConfig   `yaml:"calendar"`
	CORS       CORSConfig       `yaml:"cors"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Worker     WorkerConfig     `yaml:"worker"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Host            string        `yaml:"host"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL            string        `yaml:"url"`
	MaxConnections int           `yaml:"max_connections"`
	MinConnections int           `yaml:"min_connections"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	Migrate        bool          `yaml:"migrate"`
}

type LoggingConfig struct {
	Development bool `yaml:"development"`
}

type RepositoryConfig struct {
	Type       string `yaml:"type"` // postgres, sqlite or memory
	SQLitePath string `yaml:"sqlite_path"`
}

type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	Audience string        `yaml:"audience"`
	Leeway   time.Duration `yaml:"leeway"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

type CalendarConfig struct {
	Timezone  string `yaml:"timezone"`
	WeekStart string `yaml:"week_start"`
	Language  string `yaml:"language"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

type WorkerConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

const (
	RepositoryPostgres = "postgres"
	RepositorySQLite   = "sqlite"
	RepositoryMemory   = "memory"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.idle_timeout", 5*time.Minute)
	v.SetDefault("database.migrate", true)

	v.SetDefault("logging.development", false)

	v.SetDefault("repository.type", RepositoryMemory)
	v.SetDefault("repository.sqlite_path", "data/domore.db")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.leeway", 30*time.Second)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.ttl", time.Minute)

	v.SetDefault("calendar.timezone", "Local")
	v.SetDefault("calendar.week_start", "sunday")
	v.SetDefault("calendar.language", "en")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("rate_limit.requests_per_minute", 100)
	v.SetDefault("worker.sweep_interval", 5*time.Minute)
}

// Load reads defaults, then the YAML file at path (skipped when path is
// empty), then DOMORE_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot open %s: %w", path, err)
		}
		if err := checkKeys(raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	var cfg Config
	err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" })
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// checkKeys rejects unknown keys so typos in the file do not silently fall
// back to defaults.
func checkKeys(raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var probe Config
	if err := dec.Decode(&probe); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Repository.Type {
	case RepositoryPostgres:
		if c.Database.URL == "" {
			return errors.New("database.url is required for the postgres repository")
		}
	case RepositorySQLite:
		if c.Repository.SQLitePath == "" {
			return errors.New("repository.sqlite_path is required for the sqlite repository")
		}
	case RepositoryMemory:
	default:
		return fmt.Errorf("unknown repository.type %q", c.Repository.Type)
	}
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required")
	}
	if _, err := c.Calendar.Calendar(); err != nil {
		return err
	}
	if _, err := c.Calendar.Tag(); err != nil {
		return err
	}
	return nil
}

// Tag is the language used to collate task titles.
func (c CalendarConfig) Tag() (language.Tag, error) {
	tag, err := language.Parse(c.Language)
	if err != nil {
		return language.Und, fmt.Errorf("calendar.language: %w", err)
	}
	return tag, nil
}

// Calendar resolves the configured timezone and week start.
func (c CalendarConfig) Calendar() (dates.Calendar, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return dates.Calendar{}, fmt.Errorf("calendar.timezone: %w", err)
	}
	start, err := dates.ParseWeekday(c.WeekStart)
	if err != nil {
		return dates.Calendar{}, fmt.Errorf("calendar.week_start: %w", err)
	}
	return dates.New(loc, start), nil
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
