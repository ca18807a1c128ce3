package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rescale/filequery/internal/constants"
)

// Backends understood by the store factory.
const (
	BackendMemory = "memory"
	BackendRemote = "remote"
	BackendS3     = "s3"
	BackendAzure  = "azure"
	BackendMinio  = "minio"
)

// Config represents the filequery configuration
type Config struct {
	// Store selection
	Backend     string // "memory", "remote", "s3", "azure", "minio"
	Scope       string // folder the catalog queries are restricted to
	CatalogFile string // optional YAML catalog, built-in catalog when empty
	RecordsFile string // YAML records for the memory backend

	// Remote file-metadata API
	APIBaseURL string
	APIKey     string
	RateLimit  float64 // requests per second

	// Object storage (s3, minio)
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// Azure blob storage
	AzureServiceURL string
	Container       string

	FetchTimeout time.Duration
	LogLevel     string

	// Proxy settings
	ProxyMode     string // "no-proxy", "ntlm", "basic", "system"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string
	NoProxy       string // Comma-separated list of hosts to bypass proxy
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Backend:      BackendMemory,
		Scope:        constants.DefaultScope,
		RateLimit:    constants.RemoteAPIRatePerSec,
		Region:       "us-east-1",
		UseSSL:       true,
		FetchTimeout: constants.DefaultFetchTimeout,
		LogLevel:     "info",
		ProxyMode:    "no-proxy",
	}
}

// keys lists every recognised key in file order.
var keys = []string{
	"backend", "scope", "catalog_file", "records_file",
	"api_base_url", "api_key", "rate_limit",
	"bucket", "prefix", "region", "endpoint", "access_key", "secret_key", "use_ssl",
	"azure_service_url", "container",
	"fetch_timeout", "log_level",
	"proxy_mode", "proxy_host", "proxy_port", "proxy_user", "proxy_password", "no_proxy",
}

// secretKeys are never written by SaveConfigCSV.
var secretKeys = map[string]bool{
	"api_key":        true,
	"secret_key":     true,
	"proxy_password": true,
}

// LoadConfigCSV loads configuration from a CSV file
// CSV format: key,value pairs
func LoadConfigCSV(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // Return defaults if config doesn't exist
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read config CSV: %w", err)
	}

	// Parse key-value pairs
	for i, record := range records {
		if i == 0 {
			// Skip header row if it looks like a header
			if len(record) >= 2 && strings.ToLower(record[0]) == "key" {
				continue
			}
		}

		if len(record) < 2 {
			continue
		}

		key := strings.TrimSpace(strings.ToLower(record[0]))
		value := strings.TrimSpace(record[1])
		if err := cfg.Set(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", i+1, err)
		}
	}

	return cfg, nil
}

// Set assigns one key. Unknown keys are ignored.
func (c *Config) Set(key, value string) error {
	switch key {
	case "backend":
		c.Backend = strings.ToLower(value)
	case "scope":
		c.Scope = value
	case "catalog_file":
		c.CatalogFile = value
	case "records_file":
		c.RecordsFile = value
	case "api_base_url":
		c.APIBaseURL = strings.TrimSuffix(value, "/")
	case "api_key":
		c.APIKey = value
	case "rate_limit":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid rate_limit %q: %w", value, err)
		}
		c.RateLimit = v
	case "bucket":
		c.Bucket = value
	case "prefix":
		c.Prefix = value
	case "region":
		c.Region = value
	case "endpoint":
		c.Endpoint = value
	case "access_key":
		c.AccessKey = value
	case "secret_key":
		c.SecretKey = value
	case "use_ssl":
		c.UseSSL = parseBool(value)
	case "azure_service_url":
		c.AzureServiceURL = value
	case "container":
		c.Container = value
	case "fetch_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid fetch_timeout %q: %w", value, err)
		}
		c.FetchTimeout = d
	case "log_level":
		c.LogLevel = strings.ToLower(value)
	case "proxy_mode":
		c.ProxyMode = strings.ToLower(value)
	case "proxy_host":
		c.ProxyHost = value
	case "proxy_port":
		if v, err := strconv.Atoi(value); err == nil {
			c.ProxyPort = v
		}
	case "proxy_user":
		c.ProxyUser = value
	case "proxy_password":
		c.ProxyPassword = value
	case "no_proxy":
		c.NoProxy = value
	}
	return nil
}

// Get returns the string form of one key.
func (c *Config) Get(key string) string {
	switch key {
	case "backend":
		return c.Backend
	case "scope":
		return c.Scope
	case "catalog_file":
		return c.CatalogFile
	case "records_file":
		return c.RecordsFile
	case "api_base_url":
		return c.APIBaseURL
	case "api_key":
		return c.APIKey
	case "rate_limit":
		return strconv.FormatFloat(c.RateLimit, 'f', -1, 64)
	case "bucket":
		return c.Bucket
	case "prefix":
		return c.Prefix
	case "region":
		return c.Region
	case "endpoint":
		return c.Endpoint
	case "access_key":
		return c.AccessKey
	case "secret_key":
		return c.SecretKey
	case "use_ssl":
		return strconv.FormatBool(c.UseSSL)
	case "azure_service_url":
		return c.AzureServiceURL
	case "container":
		return c.Container
	case "fetch_timeout":
		return c.FetchTimeout.String()
	case "log_level":
		return c.LogLevel
	case "proxy_mode":
		return c.ProxyMode
	case "proxy_host":
		return c.ProxyHost
	case "proxy_port":
		if c.ProxyPort == 0 {
			return ""
		}
		return strconv.Itoa(c.ProxyPort)
	case "proxy_user":
		return c.ProxyUser
	case "proxy_password":
		return c.ProxyPassword
	case "no_proxy":
		return c.NoProxy
	}
	return ""
}

// Keys returns every recognised configuration key.
func Keys() []string {
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// IsSecret reports whether key holds a credential.
func IsSecret(key string) bool {
	return secretKeys[key]
}

func parseBool(value string) bool {
	return strings.ToLower(value) == "true" || value == "1"
}

// SaveConfigCSV saves configuration to a CSV file
// CSV format: key,value pairs
func SaveConfigCSV(cfg *Config, path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write([]string{"key", "value"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// SECURITY: credentials are intentionally NOT saved to config files.
	// Use FILEQUERY_* environment variables or the token file instead.
	for _, key := range keys {
		if secretKeys[key] {
			continue
		}
		value := cfg.Get(key)
		// Only write non-empty values to keep file clean
		if value == "" {
			continue
		}
		if err := writer.Write([]string{key, value}); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides keys from FILEQUERY_<KEY> environment variables,
// e.g. FILEQUERY_API_KEY or FILEQUERY_BACKEND.
func (c *Config) ApplyEnv() error {
	for _, key := range keys {
		value, ok := os.LookupEnv(constants.EnvPrefix + strings.ToUpper(key))
		if !ok {
			continue
		}
		if err := c.Set(key, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("environment override: %w", err)
		}
	}
	return nil
}

// LoadEffective loads path, applies FILEQUERY_* overrides and resolves the
// API key from the environment or the token file at tokenPath.
func LoadEffective(path, tokenPath string) (*Config, error) {
	cfg, err := LoadConfigCSV(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.APIKey = ResolveAPIKey("", cfg.APIKey, tokenPath)
	return cfg, nil
}

// Validate checks if the configuration is valid for the selected backend
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendMemory:
	case BackendRemote:
		if c.APIBaseURL == "" {
			errs = append(errs, errors.New("api_base_url is required for the remote backend"))
		}
		if c.APIKey == "" {
			errs = append(errs, fmt.Errorf("API key is required (set %sAPI_KEY or run 'config init')", constants.EnvPrefix))
		}
		if c.RateLimit <= 0 {
			errs = append(errs, errors.New("rate_limit must be positive"))
		}
	case BackendS3:
		if c.Bucket == "" {
			errs = append(errs, errors.New("bucket is required for the s3 backend"))
		}
	case BackendAzure:
		if c.AzureServiceURL == "" {
			errs = append(errs, errors.New("azure_service_url is required for the azure backend"))
		}
		if c.Container == "" {
			errs = append(errs, errors.New("container is required for the azure backend"))
		}
	case BackendMinio:
		if c.Endpoint == "" {
			errs = append(errs, errors.New("endpoint is required for the minio backend"))
		}
		if c.Bucket == "" {
			errs = append(errs, errors.New("bucket is required for the minio backend"))
		}
		if c.AccessKey == "" || c.SecretKey == "" {
			errs = append(errs, errors.New("access_key and secret_key are required for the minio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported backend: %q", c.Backend))
	}

	if c.Scope == "" {
		errs = append(errs, errors.New("scope must not be empty"))
	}
	if c.FetchTimeout < 0 {
		errs = append(errs, errors.New("fetch_timeout must not be negative"))
	}

	switch c.ProxyMode {
	case "", "no-proxy", "system":
	case "ntlm", "basic":
		if c.ProxyHost == "" {
			errs = append(errs, fmt.Errorf("proxy_host is required for proxy mode %s", c.ProxyMode))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported proxy mode: %s", c.ProxyMode))
	}

	return errors.Join(errs...)
}
