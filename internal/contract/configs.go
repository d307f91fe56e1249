package contract

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/covhub/covhub/schema"
)

// Default values for configuration.
const (
	DefaultListen        = ":8080"
	DefaultProviderRate  = 10.0
	DefaultProviderBurst = 5
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// Default provider API base URLs.
var DefaultProviderURLs = map[schema.Service]string{
	schema.GitHub:    "https://api.github.com",
	schema.GitLab:    "https://gitlab.com/api/v4",
	schema.Bitbucket: "https://api.bitbucket.org",
}

// Component groups files under path prefixes for component coverage.
type Component struct {
	Name  string   `mapstructure:"name"`
	Paths []string `mapstructure:"paths"`
}

// Matches reports whether a file path falls under the component.
func (c Component) Matches(path string) bool {
	for _, p := range c.Paths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// ProviderRawInput holds provider API base URLs from the YAML config file.
type ProviderRawInput struct {
	GitHub    string `mapstructure:"github"`
	GitLab    string `mapstructure:"gitlab"`
	Bitbucket string `mapstructure:"bitbucket"`
}

// Config holds the runtime configuration.
// This struct remains the "final, validated" config.
type Config struct {
	DBBackend        schema.DatabaseBackend
	DBConnect        string // Please use env var as this is plaintext
	ArchiveBackend   schema.DatabaseBackend
	ArchiveDBConnect string // Please use env var as this is plaintext

	// Optional database for the coverage timeseries; empty keeps it in the primary store.
	TimeseriesBackend   schema.DatabaseBackend
	TimeseriesDBConnect string // Please use env var as this is plaintext

	Listen        string
	ProviderURLs  map[schema.Service]string
	ProviderRate  float64 // requests per second per adapter
	ProviderBurst int
	Workers       int

	LogLevel  string
	LogFormat string

	Output     schema.OutputMode
	OutputFile string
	UseColors  bool

	Components []Component
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Fields from rootCmd.PersistentFlags() ---
	DBBackend        string `mapstructure:"db-backend"`
	DBConnect        string `mapstructure:"db-connect"`
	ArchiveBackend   string `mapstructure:"archive-backend"`
	ArchiveDBConnect string `mapstructure:"archive-db-connect"`
	TimeseriesBackend   string `mapstructure:"timeseries-backend"`
	TimeseriesDBConnect string `mapstructure:"timeseries-db-connect"`
	Workers          int    `mapstructure:"workers"`
	LogLevel         string `mapstructure:"log-level"`
	LogFormat        string `mapstructure:"log-format"`
	Output           string `mapstructure:"output"`
	OutputFile       string `mapstructure:"output-file"`
	Color            string `mapstructure:"color"`

	// --- Fields from serveCmd.Flags() ---
	Listen        string  `mapstructure:"listen"`
	ProviderRate  float64 `mapstructure:"provider-rate"`
	ProviderBurst int     `mapstructure:"provider-burst"`

	// --- Provider URLs from config file ---
	Providers ProviderRawInput `mapstructure:"providers"`

	// --- Components from config file ---
	Components []Component `mapstructure:"components"`
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	if err := processProviders(cfg, input); err != nil {
		return err
	}
	return processComponents(cfg, input)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates the relational, archive and timeseries backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	cfg.DBBackend = schema.DatabaseBackend(strings.ToLower(input.DBBackend))
	if _, ok := schema.ValidDatabaseBackends[cfg.DBBackend]; !ok || cfg.DBBackend == schema.NoneBackend {
		return fmt.Errorf("invalid db backend '%s'. must be sqlite, mysql, postgresql", input.DBBackend)
	}
	cfg.DBConnect = input.DBConnect
	if err := ValidateDatabaseConnectionString(cfg.DBBackend, cfg.DBConnect); err != nil {
		return err
	}

	cfg.ArchiveBackend = schema.DatabaseBackend(strings.ToLower(input.ArchiveBackend))
	if cfg.ArchiveBackend == "" {
		cfg.ArchiveBackend = cfg.DBBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.ArchiveBackend]; !ok {
		return fmt.Errorf("invalid archive backend '%s'. must be sqlite, mysql, postgresql, none", input.ArchiveBackend)
	}
	cfg.ArchiveDBConnect = input.ArchiveDBConnect
	if cfg.ArchiveDBConnect == "" && cfg.ArchiveBackend == cfg.DBBackend {
		cfg.ArchiveDBConnect = cfg.DBConnect
	}
	if err := ValidateDatabaseConnectionString(cfg.ArchiveBackend, cfg.ArchiveDBConnect); err != nil {
		return err
	}
	return validateTimeseriesConfig(cfg, input)
}

// validateTimeseriesConfig validates the optional timeseries database.
// It needs its own connection string, even for sqlite.
func validateTimeseriesConfig(cfg *Config, input *ConfigRawInput) error {
	cfg.TimeseriesBackend = schema.DatabaseBackend(strings.ToLower(input.TimeseriesBackend))
	cfg.TimeseriesDBConnect = input.TimeseriesDBConnect
	if cfg.TimeseriesBackend == "" {
		if cfg.TimeseriesDBConnect != "" {
			return fmt.Errorf("timeseries-db-connect requires timeseries-backend")
		}
		return nil
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.TimeseriesBackend]; !ok || cfg.TimeseriesBackend == schema.NoneBackend {
		return fmt.Errorf("invalid timeseries backend '%s'. must be sqlite, mysql, postgresql", input.TimeseriesBackend)
	}
	if cfg.TimeseriesDBConnect == "" {
		return fmt.Errorf("a timeseries-db-connect is required when using a timeseries backend")
	}
	return ValidateDatabaseConnectionString(cfg.TimeseriesBackend, cfg.TimeseriesDBConnect)
}

// validateSimpleInputs processes and validates all scalar fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Listen = input.Listen
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, json", input.Output)
	}

	cfg.LogLevel = strings.ToLower(input.LogLevel)
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	cfg.LogFormat = strings.ToLower(input.LogFormat)
	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = DefaultLogFormat
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format '%s'. must be text, json", input.LogFormat)
	}

	cfg.ProviderRate = input.ProviderRate
	if cfg.ProviderRate <= 0 {
		cfg.ProviderRate = DefaultProviderRate
	}
	cfg.ProviderBurst = input.ProviderBurst
	if cfg.ProviderBurst <= 0 {
		cfg.ProviderBurst = DefaultProviderBurst
	}
	return nil
}

// processProviders merges configured provider URLs over the defaults.
func processProviders(cfg *Config, input *ConfigRawInput) error {
	cfg.ProviderURLs = make(map[schema.Service]string, len(DefaultProviderURLs))
	for svc, url := range DefaultProviderURLs {
		cfg.ProviderURLs[svc] = url
	}
	overrides := map[schema.Service]string{
		schema.GitHub:    input.Providers.GitHub,
		schema.GitLab:    input.Providers.GitLab,
		schema.Bitbucket: input.Providers.Bitbucket,
	}
	for svc, url := range overrides {
		if url == "" {
			continue
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return fmt.Errorf("invalid %s provider url '%s'", svc, url)
		}
		cfg.ProviderURLs[svc] = strings.TrimSuffix(url, "/")
	}
	return nil
}

// processComponents validates component definitions.
func processComponents(cfg *Config, input *ConfigRawInput) error {
	seen := make(map[string]struct{}, len(input.Components))
	cfg.Components = make([]Component, 0, len(input.Components))
	for _, c := range input.Components {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("component name cannot be empty")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate component '%s'", name)
		}
		if len(c.Paths) == 0 {
			return fmt.Errorf("component '%s' must have at least one path", name)
		}
		seen[name] = struct{}{}
		cfg.Components = append(cfg.Components, Component{Name: name, Paths: c.Paths})
	}
	return nil
}
