// Package config provides configuration management for the full-text acquisition service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/helixir/fulltext-acquisition-service/internal/domain"
)

// envPrefix is the prefix of every environment variable read by Load.
const envPrefix = "FULLTEXT"

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Storage backends.
const (
	StorageFilesystem = "filesystem"
	StorageGCS        = "gcs"
)

// Config holds all configuration for the service.
type Config struct {
	// Server contains the ops HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Temporal contains Temporal workflow orchestration settings.
	Temporal TemporalConfig `mapstructure:"temporal"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Kafka contains event publishing and request listening settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Redis contains the skip-set store settings.
	Redis RedisConfig `mapstructure:"redis"`
	// Storage selects where acquired full text is written.
	Storage StorageConfig `mapstructure:"storage"`
	// Acquisition contains waterfall settings.
	Acquisition AcquisitionConfig `mapstructure:"acquisition"`
	// Fetch contains download settings.
	Fetch FetchConfig `mapstructure:"fetch"`
	// Sources contains per-source settings.
	Sources SourcesConfig `mapstructure:"sources"`
}

// ServerConfig holds the ops HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	User string `mapstructure:"user"`
	// Password is read from FULLTEXT_DATABASE_PASSWORD only.
	Password string `mapstructure:"-"`
	Name     string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	MigrationPath     string        `mapstructure:"migration_path"`
	MigrationAutoRun  bool          `mapstructure:"migration_auto_run"`
}

// TemporalConfig holds Temporal workflow configuration.
type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// KafkaConfig holds Kafka settings.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	// EventsTopic receives fulltext.acquired and fulltext.exhausted events.
	EventsTopic string `mapstructure:"events_topic"`
	// RequestsTopic carries acquisition requests consumed by the server.
	RequestsTopic string        `mapstructure:"requests_topic"`
	GroupID       string        `mapstructure:"group_id"`
	BatchSize     int           `mapstructure:"batch_size"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout"`
}

// RedisConfig holds the skip-set store settings.
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	// Password is read from FULLTEXT_REDIS_PASSWORD only.
	Password  string `mapstructure:"-"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// StorageConfig selects the content sink.
type StorageConfig struct {
	// Backend is "filesystem" or "gcs".
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// AcquisitionConfig holds the waterfall settings.
type AcquisitionConfig struct {
	// Priority is the ordered list of source tokens.
	Priority       []string      `mapstructure:"priority"`
	AuthorLimit    int           `mapstructure:"author_limit"`
	AdapterTimeout time.Duration `mapstructure:"adapter_timeout"`
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
	PDFMinBytes    int           `mapstructure:"pdf_min_bytes"`
	PDFMaxBytes    int           `mapstructure:"pdf_max_bytes"`
	DeepInspect    bool          `mapstructure:"deep_inspect"`
	LandingHops    int           `mapstructure:"landing_hops"`
	Concurrency    int           `mapstructure:"concurrency"`
	// SkipTTL is how long a persisted skip set is kept.
	SkipTTL time.Duration `mapstructure:"skip_ttl"`
}

// FetchConfig holds download settings.
type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// SourceConfig holds settings common to all sources.
type SourceConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	// Email is the polite-pool contact sent to APIs that ask for one.
	Email string `mapstructure:"email"`
	// APIKey is read from the environment only.
	APIKey string `mapstructure:"-"`
}

// InstitutionalConfig configures the EZproxy source.
type InstitutionalConfig struct {
	SourceConfig `mapstructure:",squash"`
	ProxyPrefix  string `mapstructure:"proxy_prefix"`
}

// PMCConfig configures the PubMed Central source.
type PMCConfig struct {
	SourceConfig `mapstructure:",squash"`
	PreferXML    bool `mapstructure:"prefer_xml"`
}

// MirrorConfig configures mirror-style sources. Mirrors have no defaults.
type MirrorConfig struct {
	SourceConfig `mapstructure:",squash"`
	Mirrors      []string `mapstructure:"mirrors"`
}

// SourcesConfig holds per-source settings.
type SourcesConfig struct {
	Institutional InstitutionalConfig `mapstructure:"institutional"`
	PMC           PMCConfig           `mapstructure:"pmc"`
	Unpaywall     SourceConfig        `mapstructure:"unpaywall"`
	CORE          SourceConfig        `mapstructure:"core"`
	OpenAlex      SourceConfig        `mapstructure:"openalex"`
	Crossref      SourceConfig        `mapstructure:"crossref"`
	BioRxiv       SourceConfig        `mapstructure:"biorxiv"`
	ArXiv         SourceConfig        `mapstructure:"arxiv"`
	SciHub        MirrorConfig        `mapstructure:"scihub"`
	LibGen        SourceConfig        `mapstructure:"libgen"`
	DOIRedirect   SourceConfig        `mapstructure:"doi_redirect"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the ops HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// PriorityNames parses the priority list into source names.
func (c *AcquisitionConfig) PriorityNames() ([]domain.SourceName, error) {
	names := make([]domain.SourceName, 0, len(c.Priority))
	for _, token := range c.Priority {
		name, err := domain.ParseSourceName(token)
		if err != nil {
			return nil, fmt.Errorf("acquisition.priority: %w", err)
		}
		names = append(names, name)
	}
	return names, nil
}

// Load reads configuration from defaults, an optional config.yaml and FULLTEXT_*
// environment variables, in increasing precedence.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/fulltext-acquisition")
	return load(v, os.Getenv)
}

// LoadFile is Load with an explicit config file, which must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v, os.Getenv)
}

func load(v *viper.Viper, getenv func(string) string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadSecrets(&cfg, getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from the environment. The fields are
// tagged mapstructure:"-" so config files cannot carry them.
func loadSecrets(cfg *Config, getenv func(string) string) {
	cfg.Database.Password = getenv(envPrefix + "_DATABASE_PASSWORD")
	cfg.Redis.Password = getenv(envPrefix + "_REDIS_PASSWORD")
	cfg.Sources.CORE.APIKey = getenv(envPrefix + "_CORE_API_KEY")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "fulltext")
	v.SetDefault("database.name", "fulltext_acquisition")
	// Use FULLTEXT_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "fulltext-acquisition")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "fulltext")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.events_topic", "fulltext.events")
	v.SetDefault("kafka.requests_topic", "fulltext.requests")
	v.SetDefault("kafka.group_id", "fulltext-acquisition")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "fulltext:skip:")

	v.SetDefault("storage.backend", StorageFilesystem)
	v.SetDefault("storage.path", "./data/fulltext")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "fulltext/")

	priority := make([]string, 0, 12)
	for _, n := range domain.DefaultPriority() {
		priority = append(priority, string(n))
	}
	v.SetDefault("acquisition.priority", priority)
	v.SetDefault("acquisition.author_limit", 3)
	v.SetDefault("acquisition.adapter_timeout", "30s")
	v.SetDefault("acquisition.session_timeout", "5m")
	v.SetDefault("acquisition.pdf_min_bytes", 1024)
	v.SetDefault("acquisition.pdf_max_bytes", 100*1024*1024)
	v.SetDefault("acquisition.deep_inspect", false)
	v.SetDefault("acquisition.landing_hops", 1)
	v.SetDefault("acquisition.concurrency", 4)
	v.SetDefault("acquisition.skip_ttl", "720h")

	v.SetDefault("fetch.timeout", "60s")
	v.SetDefault("fetch.user_agent", "")

	setSourceDefaults(v, "institutional", false, "", 2)
	v.SetDefault("sources.institutional.proxy_prefix", "")
	setSourceDefaults(v, "pmc", true, "https://www.ebi.ac.uk/europepmc/webservices/rest", 3)
	v.SetDefault("sources.pmc.prefer_xml", false)
	setSourceDefaults(v, "unpaywall", true, "https://api.unpaywall.org", 10)
	setSourceDefaults(v, "core", true, "https://api.core.ac.uk", 2)
	setSourceDefaults(v, "openalex", true, "https://api.openalex.org", 10)
	setSourceDefaults(v, "crossref", true, "https://api.crossref.org", 5)
	setSourceDefaults(v, "biorxiv", true, "https://api.biorxiv.org", 2)
	setSourceDefaults(v, "arxiv", true, "http://export.arxiv.org/api/query", 0.34)
	// Mirror sources have no public defaults; operators opt in with their own URLs.
	setSourceDefaults(v, "scihub", false, "", 0.5)
	v.SetDefault("sources.scihub.mirrors", []string{})
	setSourceDefaults(v, "libgen", false, "", 0.5)
	setSourceDefaults(v, "doi_redirect", true, "https://doi.org", 5)
}

func setSourceDefaults(v *viper.Viper, name string, enabled bool, baseURL string, rate float64) {
	prefix := "sources." + name + "."
	v.SetDefault(prefix+"enabled", enabled)
	v.SetDefault(prefix+"base_url", baseURL)
	v.SetDefault(prefix+"timeout", "30s")
	v.SetDefault(prefix+"rate_limit", rate)
	v.SetDefault(prefix+"email", "")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if err := c.Acquisition.validate(); err != nil {
		return err
	}

	switch c.Storage.Backend {
	case StorageFilesystem:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the filesystem backend")
		}
	case StorageGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Sources.Institutional.Enabled && c.Sources.Institutional.ProxyPrefix == "" {
		return fmt.Errorf("sources.institutional.proxy_prefix is required when the source is enabled")
	}
	return nil
}

func (c *AcquisitionConfig) validate() error {
	if len(c.Priority) == 0 {
		return fmt.Errorf("acquisition.priority must not be empty")
	}
	if _, err := c.PriorityNames(); err != nil {
		return err
	}
	if c.AuthorLimit < 1 {
		return fmt.Errorf("acquisition.author_limit must be at least 1, got %d", c.AuthorLimit)
	}
	if c.AdapterTimeout <= 0 {
		return fmt.Errorf("acquisition.adapter_timeout must be positive")
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("acquisition.session_timeout must be positive")
	}
	if c.PDFMinBytes <= 0 || c.PDFMaxBytes <= 0 {
		return fmt.Errorf("acquisition PDF bounds must be positive")
	}
	if c.PDFMinBytes > c.PDFMaxBytes {
		return fmt.Errorf("acquisition.pdf_min_bytes (%d) must be <= pdf_max_bytes (%d)", c.PDFMinBytes, c.PDFMaxBytes)
	}
	if c.LandingHops < 0 {
		return fmt.Errorf("acquisition.landing_hops must not be negative")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("acquisition.concurrency must be at least 1")
	}
	return nil
}
