package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

type ConversationRepository interface {
	// AddMessage appends a message to the session history.
	AddMessage(ctx context.Context, sessionID string, message *schema.Message) error

	// LoadHistory retrieves the session history in timestamp order.
	LoadHistory(ctx context.Context, sessionID string) (*ConversationHistory, error)

	// ClearHistory removes all history for a session.
	ClearHistory(ctx context.Context, sessionID string) error

	// GetMessageCount returns the number of messages in the session.
	GetMessageCount(ctx context.Context, sessionID string) (int, error)
}

// ConversationHistory represents loaded session data with metadata.
type ConversationHistory struct {
	SessionID string
	Messages  []*schema.Message
}
