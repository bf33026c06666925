package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Catalog CatalogConfig `yaml:"catalog" mapstructure:"catalog"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int             `yaml:"port" mapstructure:"port"`
	Host         string          `yaml:"host" mapstructure:"host"`
	TLS          TLSConfig       `yaml:"tls" mapstructure:"tls"`
	ReadTimeout  time.Duration   `yaml:"readTimeout" mapstructure:"readTimeout"`
	WriteTimeout time.Duration   `yaml:"writeTimeout" mapstructure:"writeTimeout"`
	MaxDelay     time.Duration   `yaml:"maxDelay" mapstructure:"maxDelay"` // Clamp for configured response delays, 0 = none
	RateLimit    RateLimitConfig `yaml:"rateLimit" mapstructure:"rateLimit"`
	// Proxies whose X-Forwarded-For is believed when identifying clients.
	// Empty means the connection address is always used.
	TrustedProxies []string `yaml:"trustedProxies" mapstructure:"trustedProxies"`
}

// TLSConfig holds TLS configuration
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	CertFile string `yaml:"certFile" mapstructure:"certFile"`
	KeyFile  string `yaml:"keyFile" mapstructure:"keyFile"`
}

// RateLimitConfig limits mock traffic per client IP. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond" mapstructure:"requestsPerSecond"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type string `yaml:"type" mapstructure:"type"` // "memory" or "file"
	Path string `yaml:"path" mapstructure:"path"` // Path for file storage
}

// CatalogConfig lists catalog documents imported at start-up
type CatalogConfig struct {
	Files []string `yaml:"files" mapstructure:"files"`
	Watch bool     `yaml:"watch" mapstructure:"watch"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	MaxTraces int           `yaml:"maxTraces" mapstructure:"maxTraces"`
	Retention time.Duration `yaml:"retention" mapstructure:"retention"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Storage: StorageConfig{
			Type: "memory",
			Path: "./data",
		},
		Tracing: TracingConfig{
			MaxTraces: 1000,
			Retention: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/_api/metrics",
		},
	}
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var err error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		err = multierr.Append(err, fmt.Errorf("server.tls requires certFile and keyFile"))
	}
	if c.Server.MaxDelay < 0 {
		err = multierr.Append(err, fmt.Errorf("server.maxDelay must not be negative"))
	}
	for _, proxy := range c.Server.TrustedProxies {
		if !validProxy(proxy) {
			err = multierr.Append(err, fmt.Errorf("server.trustedProxies: %q is not an IP or CIDR", proxy))
		}
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 || c.Server.RateLimit.Burst < 0 {
		err = multierr.Append(err, fmt.Errorf("server.rateLimit values must not be negative"))
	}

	switch c.Storage.Type {
	case "memory":
	case "file":
		if c.Storage.Path == "" {
			err = multierr.Append(err, fmt.Errorf("storage.path is required for file storage"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown storage.type %q", c.Storage.Type))
	}

	if c.Catalog.Watch && len(c.Catalog.Files) == 0 {
		err = multierr.Append(err, fmt.Errorf("catalog.watch requires catalog.files"))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		err = multierr.Append(err, fmt.Errorf("unknown logging.format %q", c.Logging.Format))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		err = multierr.Append(err, fmt.Errorf("metrics.path must start with '/'"))
	}

	return err
}

func validProxy(s string) bool {
	if strings.Contains(s, "/") {
		_, _, err := net.ParseCIDR(s)
		return err == nil
	}
	return net.ParseIP(s) != nil
}

// Address returns the listen address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
