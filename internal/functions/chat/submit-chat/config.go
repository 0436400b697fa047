// internal/functions/chat/submit-chat/config.go
package submitchat

import (
	"time"

	"legal-rag-functions/internal/common/config"
)

type Config struct {
	Index          string
	Top            int
	SelectField    string
	SearchTimeout  time.Duration
	SystemPrompt   string
	FallbackAnswer string
	PrimeMode      string
	PrimeDelay     time.Duration
	MaxBodyBytes   int64
}

func LoadConfig(search config.SearchConfig, chat config.ChatConfig) *Config {
	return &Config{
		Index:          search.Index,
		Top:            search.Top,
		SelectField:    search.SelectField,
		SearchTimeout:  config.GetDuration(search.Timeout),
		SystemPrompt:   chat.SystemPrompt,
		FallbackAnswer: chat.FallbackAnswer,
		PrimeMode:      chat.PrimeMode,
		PrimeDelay:     config.GetDuration(chat.PrimeDelay),
		MaxBodyBytes:   1 << 20,
	}
}
