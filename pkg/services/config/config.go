package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "PIVOT"

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	PublicURL       string        `mapstructure:"public_url"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type ReportsConfig struct {
	APIURL         string        `mapstructure:"api_url"`
	TokenSecret    string        `mapstructure:"token_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	PollBudget     time.Duration `mapstructure:"poll_budget"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryMax       int           `mapstructure:"retry_max"`
	// DownloadHosts are trusted for archive downloads besides the API host.
	DownloadHosts []string `mapstructure:"download_hosts"`
}

type S3Config struct {
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
	Profile string `mapstructure:"profile"`
	Region  string `mapstructure:"region"`
}

type StorageConfig struct {
	Root            string   `mapstructure:"root"`
	MaxArchiveBytes int64    `mapstructure:"max_archive_bytes"`
	MaxEntryBytes   int64    `mapstructure:"max_entry_bytes"`
	S3              S3Config `mapstructure:"s3"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	DuckDB  struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"duckdb"`
	Redis struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"redis"`
}

type CleanupConfig struct {
	Schedule string        `mapstructure:"schedule"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

type ProfilesConfig struct {
	Path    string `mapstructure:"path"`
	Default string `mapstructure:"default"`
	// APIKey and APISecret form the fallback profile when the file lacks one.
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Reports  ReportsConfig  `mapstructure:"reports"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Store    StoreConfig    `mapstructure:"store"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
	Profiles ProfilesConfig `mapstructure:"profiles"`
	Log      LogConfig      `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("reports.api_url", "https://api.nexmo.com")
	v.SetDefault("reports.token_secret", "")
	v.SetDefault("reports.token_ttl", 5*24*time.Hour)
	v.SetDefault("reports.poll_interval", 4*time.Second)
	v.SetDefault("reports.poll_budget", 5*time.Minute)
	v.SetDefault("reports.request_timeout", 30*time.Second)
	v.SetDefault("reports.retry_max", 2)
	v.SetDefault("reports.download_hosts", []string{})

	v.SetDefault("storage.root", "./data/reports")
	v.SetDefault("storage.max_archive_bytes", int64(512<<20))
	v.SetDefault("storage.max_entry_bytes", int64(2<<30))
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.s3.profile", "")
	v.SetDefault("storage.s3.region", "")

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.duckdb.path", "pivot-reports.db")
	v.SetDefault("store.redis.url", "redis://localhost:6379/0")

	v.SetDefault("cleanup.schedule", "@hourly")
	v.SetDefault("cleanup.max_age", 24*time.Hour)

	v.SetDefault("profiles.path", "")
	v.SetDefault("profiles.default", "default")
	v.SetDefault("profiles.api_key", "")
	v.SetDefault("profiles.api_secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads defaults, then the optional config file at path, then PIVOT_*
// environment variables (PIVOT_SERVER_PORT overrides server.port).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// names used by earlier deployments
	_ = v.BindEnv("server.host", EnvPrefix+"_SERVER_HOST", "SERVER_HOST")
	_ = v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "SERVER_PORT")
	_ = v.BindEnv("server.public_url", EnvPrefix+"_SERVER_PUBLIC_URL", "SERVER_URL")
	_ = v.BindEnv("reports.token_secret", EnvPrefix+"_REPORTS_TOKEN_SECRET", "JWT_SECRET")
	_ = v.BindEnv("profiles.api_key", EnvPrefix+"_PROFILES_API_KEY", "API_KEY")
	_ = v.BindEnv("profiles.api_secret", EnvPrefix+"_PROFILES_API_SECRET", "API_SECRET")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// ValidateServer checks the settings the callback flow cannot run without.
func (c *Config) ValidateServer() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Server.PublicURL == "" {
		problems = append(problems, "server.public_url is required for report callbacks")
	} else if u, err := url.Parse(c.Server.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, fmt.Sprintf("server.public_url %q is not an absolute URL", c.Server.PublicURL))
	}
	if c.Reports.TokenSecret == "" {
		problems = append(problems, "reports.token_secret is required")
	}
	if c.Reports.RequestTimeout >= c.Reports.PollBudget {
		problems = append(problems, "reports.request_timeout must be shorter than reports.poll_budget")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TrustedDownloadHosts lists the hosts report archives may be fetched from.
func (c ReportsConfig) TrustedDownloadHosts() []string {
	hosts := append([]string{}, c.DownloadHosts...)
	if u, err := url.Parse(c.APIURL); err == nil && u.Host != "" {
		hosts = append(hosts, u.Host)
	}
	return hosts
}
