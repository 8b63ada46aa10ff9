package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpattn/tradeflow/internal/db"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config is the complete process configuration.
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Storage    StorageConfig
	Import     ImportConfig
	Analysis   AnalysisConfig
	Enrichment EnrichmentConfig
}

type DatabaseConfig struct {
	Driver     string
	Postgres   db.Config
	SQLitePath string
}

type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	// MaxUploadBytes caps multipart upload bodies.
	MaxUploadBytes int64
}

type StorageConfig struct {
	Type         string
	LocalBaseDir string
	S3Endpoint   string
	S3Bucket     string
	S3Region     string
	S3AccessKey  string
	S3SecretKey  string
}

type ImportConfig struct {
	BatchSize           int
	BatchPause          time.Duration
	MaxSpreadsheetBytes int64
	MaxConcurrentJobs   int
	JobTimeout          time.Duration
	ReportInterval      int
}

// AnalysisConfig configures the remote file analysis service. An empty URL disables analysis.
type AnalysisConfig struct {
	URL      string
	APIKey   string
	Timeout  time.Duration
	Required bool
}

// EnrichmentConfig configures the company enrichment queue. An empty URL disables enrichment.
type EnrichmentConfig struct {
	URL         string
	APIKey      string
	Departments []string
	Concurrency int
	Timeout     time.Duration
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:     DriverPostgres,
			Postgres:   db.DefaultConfig(),
			SQLitePath: "tradeflow.db",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			MaxUploadBytes: 64 << 20,
		},
		Storage: StorageConfig{
			Type:         StorageLocal,
			LocalBaseDir: "uploads",
			S3Region:     "us-east-1",
		},
		Import: ImportConfig{
			BatchSize:           500,
			BatchPause:          100 * time.Millisecond,
			MaxSpreadsheetBytes: 5 << 20,
			MaxConcurrentJobs:   4,
			JobTimeout:          30 * time.Minute,
			ReportInterval:      100,
		},
		Analysis: AnalysisConfig{
			Timeout:  20 * time.Second,
			Required: true,
		},
		Enrichment: EnrichmentConfig{
			Departments: []string{"procurement", "logistics", "sales"},
			Concurrency: 4,
			Timeout:     5 * time.Minute,
		},
	}
}

// Load reads config.yaml from configPath when present and applies TRADEFLOW_ environment overrides.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix("TRADEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		slog.Info("no config.yaml found, using defaults and env vars", "path", configPath)
	} else {
		slog.Info("loaded config file", "file", v.ConfigFileUsed())
	}

	setString(v, "database.driver", &cfg.Database.Driver)
	setString(v, "database.host", &cfg.Database.Postgres.Host)
	setInt(v, "database.port", &cfg.Database.Postgres.Port)
	setString(v, "database.user", &cfg.Database.Postgres.User)
	setString(v, "database.password", &cfg.Database.Postgres.Password)
	setString(v, "database.dbname", &cfg.Database.Postgres.DBName)
	setString(v, "database.sslmode", &cfg.Database.Postgres.SSLMode)
	if v.IsSet("database.max_conns") {
		cfg.Database.Postgres.MaxConns = v.GetInt32("database.max_conns")
	}
	setString(v, "database.sqlite_path", &cfg.Database.SQLitePath)

	setString(v, "server.addr", &cfg.Server.Addr)
	setStrings(v, "server.allowed_origins", &cfg.Server.AllowedOrigins)
	if v.IsSet("server.max_upload_bytes") {
		cfg.Server.MaxUploadBytes = v.GetInt64("server.max_upload_bytes")
	}

	setString(v, "storage.type", &cfg.Storage.Type)
	setString(v, "storage.local_base_dir", &cfg.Storage.LocalBaseDir)
	setString(v, "storage.s3_endpoint", &cfg.Storage.S3Endpoint)
	setString(v, "storage.s3_bucket", &cfg.Storage.S3Bucket)
	setString(v, "storage.s3_region", &cfg.Storage.S3Region)
	setString(v, "storage.s3_access_key", &cfg.Storage.S3AccessKey)
	setString(v, "storage.s3_secret_key", &cfg.Storage.S3SecretKey)

	setInt(v, "import.batch_size", &cfg.Import.BatchSize)
	setDuration(v, "import.batch_pause", &cfg.Import.BatchPause)
	if v.IsSet("import.max_spreadsheet_bytes") {
		cfg.Import.MaxSpreadsheetBytes = v.GetInt64("import.max_spreadsheet_bytes")
	}
	setInt(v, "import.max_concurrent_jobs", &cfg.Import.MaxConcurrentJobs)
	setDuration(v, "import.job_timeout", &cfg.Import.JobTimeout)
	setInt(v, "import.report_interval", &cfg.Import.ReportInterval)

	setString(v, "analysis.url", &cfg.Analysis.URL)
	setString(v, "analysis.api_key", &cfg.Analysis.APIKey)
	setDuration(v, "analysis.timeout", &cfg.Analysis.Timeout)
	if v.IsSet("analysis.required") {
		cfg.Analysis.Required = v.GetBool("analysis.required")
	}

	setString(v, "enrichment.url", &cfg.Enrichment.URL)
	setString(v, "enrichment.api_key", &cfg.Enrichment.APIKey)
	setStrings(v, "enrichment.departments", &cfg.Enrichment.Departments)
	setInt(v, "enrichment.concurrency", &cfg.Enrichment.Concurrency)
	setDuration(v, "enrichment.timeout", &cfg.Enrichment.Timeout)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Storage.Type {
	case StorageLocal:
	case StorageS3:
		if c.Storage.S3Bucket == "" {
			return errors.New("storage.s3_bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}
	if c.Import.BatchSize <= 0 {
		return errors.New("import.batch_size must be positive")
	}
	if c.Import.MaxConcurrentJobs <= 0 {
		return errors.New("import.max_concurrent_jobs must be positive")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be positive")
	}
	return nil
}

var configKeys = []string{
	"database.driver",
	"database.host",
	"database.port",
	"database.user",
	"database.password",
	"database.dbname",
	"database.sslmode",
	"database.max_conns",
	"database.sqlite_path",
	"server.addr",
	"server.allowed_origins",
	"server.max_upload_bytes",
	"storage.type",
	"storage.local_base_dir",
	"storage.s3_endpoint",
	"storage.s3_bucket",
	"storage.s3_region",
	"storage.s3_access_key",
	"storage.s3_secret_key",
	"import.batch_size",
	"import.batch_pause",
	"import.max_spreadsheet_bytes",
	"import.max_concurrent_jobs",
	"import.job_timeout",
	"import.report_interval",
	"analysis.url",
	"analysis.api_key",
	"analysis.timeout",
	"analysis.required",
	"enrichment.url",
	"enrichment.api_key",
	"enrichment.departments",
	"enrichment.concurrency",
	"enrichment.timeout",
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func setDuration(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = v.GetDuration(key)
	}
}

// setStrings accepts YAML lists and comma separated env values.
func setStrings(v *viper.Viper, key string, dst *[]string) {
	if !v.IsSet(key) {
		return
	}
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	*dst = out
}
