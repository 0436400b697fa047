// internal/common/config/loader.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Function keys used under the "functions" section.
const (
	FunctionGetTags        = "get-tags"
	FunctionSubmitChat     = "submit-chat"
	FunctionListContainers = "list-containers"
)

const (
	StorageProviderAzure = "azure"
	StorageProviderGCS   = "gcs"
	StorageProviderS3    = "s3"

	PrimeModeSequential = "sequential"
	PrimeModeCombined   = "combined"

	TracingExporterOTLP   = "otlp"
	TracingExporterStdout = "stdout"
)

// writeTimeoutMargin leaves room to encode and flush the response.
const writeTimeoutMargin = 10000

const defaultSystemPrompt = "You are a law proceedings assistant that pores over court proceeding documents to answer law-related queries and search for potential appeals."

// ErrInvalidConfig is wrapped by every validation failure returned from Load.
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads .env, configs/config.yaml and configs/config.<APP_ENVIRONMENT>.yaml,
// then applies environment overrides, defaults and validation.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // environment overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadEnvFile loads the first .env found in the working directory, its parents,
// or the module root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			// Unset variables expand to "" so validation sees the gap.
			v.Set(key, os.ExpandEnv(strVal))
		}
	}
}

// overrideEmptyConfig fills values still empty after expansion from the
// environment variable names the deployed functions have always used.
func overrideEmptyConfig(cfg *Config) {
	overrides := []struct {
		target *string
		env    string
	}{
		{&cfg.Identity.ManagedIdentityClientID, "MANAGED_IDENTITY_CLIENT_ID"},
		{&cfg.Chat.Endpoint, "AZURE_OPENAI_ENDPOINT"},
		{&cfg.Chat.APIKey, "AZURE_OPENAI_KEY"},
		{&cfg.Search.Endpoint, "AZURE_SEARCH_ENDPOINT"},
		{&cfg.Search.Index, "AZURE_SEARCH_INDEX"},
		{&cfg.Search.APIKey, "AZURE_SEARCH_KEY"},
		{&cfg.Storage.AccountName, "AZURE_STORAGE_ACCOUNT"},
		{&cfg.Storage.ProjectID, "GCP_PROJECT_ID"},
		{&cfg.Storage.AWSRegion, "AWS_REGION"},
		{&cfg.Server.Address, "HTTP_ADDR"},
		{&cfg.Tracing.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT"},
	}

	for _, o := range overrides {
		if *o.target != "" {
			continue
		}
		if val := os.Getenv(o.env); val != "" {
			*o.target = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "legal-rag-functions"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}

	if cfg.Storage.Provider == "" {
		cfg.Storage.Provider = StorageProviderAzure
	}
	if cfg.Storage.Timeout == 0 {
		cfg.Storage.Timeout = 30000
	}

	if cfg.Search.Top == 0 {
		cfg.Search.Top = 5
	}
	if cfg.Search.SelectField == "" {
		cfg.Search.SelectField = "chunk"
	}
	if cfg.Search.Timeout == 0 {
		cfg.Search.Timeout = 10000
	}

	if cfg.Chat.Deployment == "" {
		cfg.Chat.Deployment = "gpt-4o"
	}
	if cfg.Chat.APIVersion == "" {
		cfg.Chat.APIVersion = "2024-06-01"
	}
	if cfg.Chat.SystemPrompt == "" {
		cfg.Chat.SystemPrompt = defaultSystemPrompt
	}
	if cfg.Chat.FallbackAnswer == "" {
		cfg.Chat.FallbackAnswer = "I'm sorry, I couldn't find an answer to your question."
	}
	if cfg.Chat.PrimeMode == "" {
		cfg.Chat.PrimeMode = PrimeModeSequential
	}
	if cfg.Chat.PrimeDelay == 0 {
		cfg.Chat.PrimeDelay = 5000
	}
	if cfg.Chat.MaxRetries == 0 {
		cfg.Chat.MaxRetries = 2
	}
	if cfg.Chat.Timeout == 0 {
		cfg.Chat.Timeout = 60000
	}

	if cfg.Skills.SourceField == "" {
		cfg.Skills.SourceField = "metadata_storage_path"
	}
	if cfg.Skills.MaxConcurrency == 0 {
		cfg.Skills.MaxConcurrency = 4
	}
	if cfg.Skills.Timeout == 0 {
		cfg.Skills.Timeout = 30000
	}

	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = cfg.ChatWorstCase() + writeTimeoutMargin
	}

	if cfg.Tracing.Exporter == "" {
		cfg.Tracing.Exporter = TracingExporterOTLP
	}
	if cfg.Tracing.SamplingRate == 0 {
		cfg.Tracing.SamplingRate = 1.0
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Functions == nil {
		cfg.Functions = make(map[string]FunctionConfig)
	}
	for _, name := range []string{FunctionGetTags, FunctionSubmitChat, FunctionListContainers} {
		if _, exists := cfg.Functions[name]; !exists {
			cfg.Functions[name] = FunctionConfig{Enabled: true}
		}
	}
}

// validateConfig checks that every enabled function has the backends it needs.
func validateConfig(cfg *Config) error {
	switch cfg.Storage.Provider {
	case StorageProviderAzure, StorageProviderGCS, StorageProviderS3:
	default:
		return invalid("storage.provider must be %q, %q or %q, got %q", StorageProviderAzure, StorageProviderGCS, StorageProviderS3, cfg.Storage.Provider)
	}

	if IsFunctionEnabled(cfg, FunctionSubmitChat) {
		if cfg.Search.Endpoint == "" {
			return invalid("search.endpoint is required (AZURE_SEARCH_ENDPOINT)")
		}
		if cfg.Search.Index == "" {
			return invalid("search.index is required (AZURE_SEARCH_INDEX)")
		}
		if cfg.Chat.Endpoint == "" {
			return invalid("chat.endpoint is required (AZURE_OPENAI_ENDPOINT)")
		}
		switch cfg.Chat.PrimeMode {
		case PrimeModeSequential, PrimeModeCombined:
		default:
			return invalid("chat.prime_mode must be %q or %q, got %q", PrimeModeSequential, PrimeModeCombined, cfg.Chat.PrimeMode)
		}
		if cfg.Chat.PrimeDelay < 0 {
			return invalid("chat.prime_delay must not be negative")
		}
		if worst := cfg.ChatWorstCase(); cfg.Server.WriteTimeout < worst {
			return invalid("server.write_timeout %dms is shorter than the %dms a chat request may take", cfg.Server.WriteTimeout, worst)
		}
	}

	if IsFunctionEnabled(cfg, FunctionListContainers) {
		if cfg.Storage.Provider == StorageProviderAzure && cfg.Storage.AccountName == "" {
			return invalid("storage.account_name is required (AZURE_STORAGE_ACCOUNT)")
		}
		if cfg.Storage.Provider == StorageProviderGCS && cfg.Storage.ProjectID == "" {
			return invalid("storage.project_id is required (GCP_PROJECT_ID)")
		}
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Exporter {
		case TracingExporterOTLP:
			if cfg.Tracing.Endpoint == "" {
				return invalid("tracing.endpoint is required for the otlp exporter (OTEL_EXPORTER_OTLP_ENDPOINT)")
			}
		case TracingExporterStdout:
		default:
			return invalid("tracing.exporter must be %q or %q, got %q", TracingExporterOTLP, TracingExporterStdout, cfg.Tracing.Exporter)
		}
		if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
			return invalid("tracing.sampling_rate must be between 0 and 1")
		}
	}

	if cfg.Skills.MaxConcurrency < 1 {
		return invalid("skills.max_concurrency must be at least 1")
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// IsFunctionEnabled checks if a specific function is enabled
func IsFunctionEnabled(cfg *Config, name string) bool {
	if fn, exists := cfg.Functions[name]; exists {
		return fn.Enabled
	}
	return true
}
