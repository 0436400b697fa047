// internal/functions/chat/submit-chat/models.go
package submitchat

import (
	"context"

	"legal-rag-functions/internal/common/llm"
)

const (
	ContextPrefix  = "Context: "
	QuestionPrefix = "Question: "
)

// Orchestration phases, used for metrics and error details.
const (
	PhaseSeed    = "seed"
	PhaseContext = "context"
	PhaseAnswer  = "answer"
)

// ChunkIterator yields search result chunks once, in ranking order.
type ChunkIterator interface {
	Next() (string, bool)
}

// Searcher runs a free-text query against the document index.
type Searcher interface {
	Search(ctx context.Context, query string) (ChunkIterator, error)
}

// ChatBackend completes one conversation and returns its answer text.
type ChatBackend interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// Conversation is the assembled input for one question.
type Conversation struct {
	System   llm.Message
	Contexts []llm.Message
	Question llm.Message
}
