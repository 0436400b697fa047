// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig                 `mapstructure:"app"`
	Server    ServerConfig              `mapstructure:"server"`
	Identity  IdentityConfig            `mapstructure:"identity"`
	Storage   StorageConfig             `mapstructure:"storage"`
	Search    SearchConfig              `mapstructure:"search"`
	Chat      ChatConfig                `mapstructure:"chat"`
	Skills    SkillsConfig              `mapstructure:"skills"`
	Functions map[string]FunctionConfig `mapstructure:"functions"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Tracing   TracingConfig             `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	ManifestPath    string `mapstructure:"manifest_path"`
}

// IdentityConfig selects the credential used for the storage and chat backends.
// An empty ManagedIdentityClientID means the developer credential chain is used.
type IdentityConfig struct {
	ManagedIdentityClientID string `mapstructure:"managed_identity_client_id"`
}

type StorageConfig struct {
	Provider    string `mapstructure:"provider"` // "azure", "gcs" or "s3"
	AccountName string `mapstructure:"account_name"`
	ProjectID   string `mapstructure:"project_id"`
	AWSRegion   string `mapstructure:"aws_region"`
	Timeout     int    `mapstructure:"timeout"` // milliseconds
}

// ServiceURL returns the blob service endpoint of the configured storage account.
func (s StorageConfig) ServiceURL() string {
	if s.AccountName == "" {
		return ""
	}
	return "https://" + s.AccountName + ".blob.core.windows.net"
}

type SearchConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	Index       string `mapstructure:"index"`
	APIKey      string `mapstructure:"api_key"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	Top         int    `mapstructure:"top"`
	SelectField string `mapstructure:"select_field"`
	Timeout     int    `mapstructure:"timeout"` // milliseconds
}

type ChatConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	APIVersion     string `mapstructure:"api_version"`
	Deployment     string `mapstructure:"deployment"`
	SystemPrompt   string `mapstructure:"system_prompt"`
	FallbackAnswer string `mapstructure:"fallback_answer"`
	PrimeMode      string `mapstructure:"prime_mode"`  // "sequential" or "combined"
	PrimeDelay     int    `mapstructure:"prime_delay"` // milliseconds
	MaxRetries     int    `mapstructure:"max_retries"`
	Timeout        int    `mapstructure:"timeout"` // milliseconds
}

type SkillsConfig struct {
	SourceField    string `mapstructure:"source_field"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
	Timeout        int    `mapstructure:"timeout"` // milliseconds
}

type FunctionConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig controls span export. Spans are dropped when Enabled is false.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"` // "otlp" or "stdout"
	Endpoint     string  `mapstructure:"endpoint"` // OTLP gRPC host:port
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// chatRetryBackoff bounds the pause the chat client takes before each retry.
const chatRetryBackoff = 8000

// ChatWorstCase returns, in milliseconds, the longest a SubmitChat request can
// run: the search, every chat call with all its retries, and the priming pauses.
func (c *Config) ChatWorstCase() int {
	calls, pauses := 1, 0
	if c.Chat.PrimeMode != PrimeModeCombined {
		// seed plus one call per context, then the question
		calls = c.Search.Top + 2
		pauses = c.Search.Top + 1
	}
	perCall := c.Chat.Timeout*(c.Chat.MaxRetries+1) + c.Chat.MaxRetries*chatRetryBackoff
	return c.Search.Timeout + calls*perCall + pauses*c.Chat.PrimeDelay
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
