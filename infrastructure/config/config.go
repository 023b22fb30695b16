package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	domainconfig "github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/config"
	"gopkg.in/yaml.v3"
)

// Storage backends for the change log
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

// Event publishers
const (
	PublisherLogging     = "logging"
	PublisherEventBridge = "eventbridge"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress   string        `yaml:"server_address"`
	Environment     string        `yaml:"environment"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Storage
	Backend       string `yaml:"backend"`
	SQLitePath    string `yaml:"sqlite_path"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region"`

	// Snapshot cache. Turn it off when several instances share one log.
	SnapshotCache bool `yaml:"snapshot_cache"`

	// Events
	Publisher    string `yaml:"publisher"`
	EventBusName string `yaml:"event_bus_name"`

	// Lambda configuration
	IsLambda bool `yaml:"is_lambda"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Authentication
	EnableAuth bool   `yaml:"enable_auth"`
	JWTSecret  string `yaml:"jwt_secret"`
	JWTIssuer  string `yaml:"jwt_issuer"`

	// Observability
	EnableMetrics           bool          `yaml:"enable_metrics"`
	MetricsNamespace        string        `yaml:"metrics_namespace"`
	EnableCloudWatch        bool          `yaml:"enable_cloudwatch"`
	CloudWatchFlushInterval time.Duration `yaml:"cloudwatch_flush_interval"`
	EnableTracing           bool          `yaml:"enable_tracing"`
	OTLPEndpoint            string        `yaml:"otlp_endpoint"`
	TraceSampleRate         float64       `yaml:"trace_sample_rate"`

	// HTTP
	EnableCORS     bool     `yaml:"enable_cors"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// ConfigFile is the optional YAML overlay, also watched for domain changes
	ConfigFile string `yaml:"-"`

	Domain *domainconfig.DomainConfig `yaml:"domain"`
}

// LoadConfig loads configuration from environment variables, overlays the
// CONFIG_FILE YAML when set, and validates the result.
func LoadConfig() (*Config, error) {
	env := getEnv("ENVIRONMENT", "development")
	cfg := &Config{
		ServerAddress:   getEnv("SERVER_ADDRESS", ":8080"),
		Environment:     env,
		ReadTimeout:     getEnvDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		Backend:       getEnv("CHANGELOG_BACKEND", BackendMemory),
		SQLitePath:    getEnv("SQLITE_PATH", "./data/changelog.db"),
		DynamoDBTable: getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", "mindscape-changelog")),
		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),

		Publisher:    getEnv("EVENT_PUBLISHER", PublisherLogging),
		EventBusName: getEnv("EVENT_BUS_NAME", "mindscape-events"),

		IsLambda: getEnvBool("IS_LAMBDA", os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		EnableAuth: getEnvBool("ENABLE_AUTH", false),
		JWTSecret:  getEnv("JWT_SECRET", ""),
		JWTIssuer:  getEnv("JWT_ISSUER", "mindscape-changelog"),

		EnableMetrics:           getEnvBool("ENABLE_METRICS", true),
		MetricsNamespace:        getEnv("METRICS_NAMESPACE", "mindscape"),
		EnableCloudWatch:        getEnvBool("ENABLE_CLOUDWATCH", false),
		CloudWatchFlushInterval: getEnvDuration("CLOUDWATCH_FLUSH_INTERVAL", time.Minute),
		EnableTracing:           getEnvBool("ENABLE_TRACING", false),
		OTLPEndpoint:            getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TraceSampleRate:         getEnvFloat("TRACE_SAMPLE_RATE", 0),

		EnableCORS:     getEnvBool("ENABLE_CORS", true),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),

		ConfigFile: getEnv("CONFIG_FILE", ""),
		Domain:     domainconfig.LoadDomainConfig(env),
	}
	// A Lambda instance never sees writes made by its siblings.
	cfg.SnapshotCache = getEnvBool("SNAPSHOT_CACHE", !cfg.IsLambda && cfg.Backend != BackendDynamoDB)

	if cfg.ConfigFile != "" {
		if err := cfg.overlayFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayFile applies the keys present in a YAML file over cfg
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb backend")
		}
	default:
		return fmt.Errorf("unknown change log backend %q", c.Backend)
	}

	switch c.Publisher {
	case PublisherLogging:
	case PublisherEventBridge:
		if c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required for the eventbridge publisher")
		}
	default:
		return fmt.Errorf("unknown event publisher %q", c.Publisher)
	}

	if c.EnableAuth && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when auth is enabled")
	}
	if c.Environment == "production" {
		if c.Backend == BackendMemory {
			return fmt.Errorf("the memory backend is not allowed in production")
		}
		if !c.EnableAuth {
			return fmt.Errorf("auth must be enabled in production")
		}
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATE must be between 0 and 1")
	}
	if c.Domain == nil {
		return fmt.Errorf("domain configuration is missing")
	}
	if err := c.Domain.Validate(); err != nil {
		return fmt.Errorf("domain configuration: %w", err)
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getEnvInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
