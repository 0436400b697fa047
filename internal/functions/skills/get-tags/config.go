// internal/functions/skills/get-tags/config.go
package gettags

import (
	"time"

	"legal-rag-functions/internal/common/config"
)

type Config struct {
	SourceField    string
	MaxConcurrency int
	RecordTimeout  time.Duration
	MaxBodyBytes   int64
}

func LoadConfig(cfg config.SkillsConfig) *Config {
	return &Config{
		SourceField:    cfg.SourceField,
		MaxConcurrency: cfg.MaxConcurrency,
		RecordTimeout:  config.GetDuration(cfg.Timeout),
		MaxBodyBytes:   defaultMaxBodyBytes,
	}
}
