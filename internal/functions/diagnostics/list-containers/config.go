// internal/functions/diagnostics/list-containers/config.go
package listcontainers

import (
	"time"

	"legal-rag-functions/internal/common/config"
)

const defaultGreeting = "Hello from Azure Function!"

type Config struct {
	Greeting string
	Timeout  time.Duration
}

func LoadConfig(storage config.StorageConfig) *Config {
	return &Config{
		Greeting: defaultGreeting,
		Timeout:  config.GetDuration(storage.Timeout),
	}
}
