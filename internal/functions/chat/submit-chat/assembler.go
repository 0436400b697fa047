// internal/functions/chat/submit-chat/assembler.go
package submitchat

import (
	"legal-rag-functions/internal/common/llm"
)

// Assemble builds the conversation for question: the system instruction, one
// context message per chunk in search order, then the prefixed question.
// Repeated chunks are kept.
func Assemble(systemPrompt string, chunks ChunkIterator, question string) Conversation {
	conv := Conversation{
		System:   llm.Message{Role: llm.RoleSystem, Content: systemPrompt},
		Question: llm.Message{Role: llm.RoleUser, Content: QuestionPrefix + question},
	}
	for {
		chunk, ok := chunks.Next()
		if !ok {
			break
		}
		conv.Contexts = append(conv.Contexts, llm.Message{
			Role:    llm.RoleSystem,
			Content: ContextPrefix + chunk,
		})
	}
	return conv
}

// Priming returns the messages sent one per call before the question.
func (c Conversation) Priming() []llm.Message {
	out := make([]llm.Message, 0, len(c.Contexts)+1)
	out = append(out, c.System)
	return append(out, c.Contexts...)
}

// Combined returns the full conversation as a single message list.
func (c Conversation) Combined() []llm.Message {
	return append(c.Priming(), c.Question)
}
