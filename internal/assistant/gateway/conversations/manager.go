package conversations

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/motorchat-core/server/internal/assistant/model"
)

type Manager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *Manager {
	return &Manager{
		conversationRepo: conversationRepo,
		maxTurns:         config.MaxTurns,
	}
}

// RecordUserMessage appends the inbound message to the session history so it
// is included when the prompt context is built.
func (m *Manager) RecordUserMessage(ctx context.Context, sessionID string, text string) error {
	return m.conversationRepo.AddMessage(ctx, sessionID, schema.UserMessage(text))
}

// BuildPromptContext returns system prompt + recent history, ending with the
// current user message. History older than maxTurns is dropped here; the
// token budget trim happens later against the full rendered prompt.
func (m *Manager) BuildPromptContext(ctx context.Context, sessionID string, systemPrompt string) ([]*schema.Message, error) {
	history, err := m.conversationRepo.LoadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	recent := trimTail(history.Messages, m.maxTurns)

	messages := make([]*schema.Message, 0, len(recent)+1)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, recent...)
	return messages, nil
}

func (m *Manager) SaveResponse(ctx context.Context, sessionID string, content string) error {
	return m.conversationRepo.AddMessage(ctx, sessionID, schema.AssistantMessage(content, nil))
}

func (m *Manager) Clear(ctx context.Context, sessionID string) error {
	return m.conversationRepo.ClearHistory(ctx, sessionID)
}

// trimTail keeps the most recent maxTurns messages.
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}
