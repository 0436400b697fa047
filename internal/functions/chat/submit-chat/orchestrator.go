// internal/functions/chat/submit-chat/orchestrator.go
package submitchat

import (
	"context"
	"time"

	"legal-rag-functions/internal/common/config"
	"legal-rag-functions/internal/common/errors"
	"legal-rag-functions/internal/common/llm"
	"legal-rag-functions/internal/common/metrics"
	"legal-rag-functions/internal/common/observability"
)

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Orchestrator drives the chat backend for one question at a time.
type Orchestrator struct {
	backend ChatBackend
	config  *Config
	sleep   SleepFunc
	obs     *observability.Observability
}

func NewOrchestrator(backend ChatBackend, cfg *Config, obs *observability.Observability) *Orchestrator {
	return &Orchestrator{
		backend: backend,
		config:  cfg,
		sleep:   sleepContext,
		obs:     obs,
	}
}

// WithSleep replaces the pause between priming calls.
func (o *Orchestrator) WithSleep(sleep SleepFunc) *Orchestrator {
	o.sleep = sleep
	return o
}

// Answer runs the conversation and returns the answer text, or the fallback
// answer when the model returned no text. Any backend failure aborts the run.
func (o *Orchestrator) Answer(ctx context.Context, conv Conversation) (string, error) {
	var (
		answer string
		err    error
	)
	if o.config.PrimeMode == config.PrimeModeCombined {
		answer, err = o.call(ctx, PhaseAnswer, conv.Combined())
	} else {
		answer, err = o.answerSequential(ctx, conv)
	}
	if err != nil {
		return "", err
	}

	if answer == "" {
		return o.config.FallbackAnswer, nil
	}
	return answer, nil
}

// answerSequential primes the model with each message in its own call, pausing
// after every one, then asks the question alone. Priming replies are discarded.
func (o *Orchestrator) answerSequential(ctx context.Context, conv Conversation) (string, error) {
	for i, msg := range conv.Priming() {
		phase := PhaseContext
		if i == 0 {
			phase = PhaseSeed
		}
		if _, err := o.call(ctx, phase, []llm.Message{msg}); err != nil {
			return "", err
		}
		if err := o.sleep(ctx, o.config.PrimeDelay); err != nil {
			return "", err
		}
	}
	return o.call(ctx, PhaseAnswer, []llm.Message{conv.Question})
}

func (o *Orchestrator) call(ctx context.Context, phase string, messages []llm.Message) (string, error) {
	metrics.ChatCompletionCalls.WithLabelValues(phase).Inc()
	o.obs.RecordChatCall(ctx, phase)

	text, err := o.backend.Complete(ctx, messages)
	if err != nil {
		return "", errors.NewChatCompletionFailedError(phase, llm.IsRetryable(err), err)
	}
	return text, nil
}
