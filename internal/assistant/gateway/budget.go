package gateway

import (
	"github.com/cloudwego/eino/schema"

	logx "github.com/motorchat-core/server/pkg/logger"
)

// per-message framing overhead, in tokens
const messageOverheadTokens = 4

// estimateTokens approximates the token cost of one message from its rune
// count. The chars-per-token ratio is configuration; 4 is a reasonable
// default for latin-script text.
func estimateTokens(msg *schema.Message, charsPerToken float64) int {
	if msg == nil {
		return 0
	}
	if charsPerToken <= 0 {
		charsPerToken = 4
	}
	runes := len([]rune(msg.Content))
	return runes/int(charsPerToken) + messageOverheadTokens
}

func estimatePromptTokens(msgs []*schema.Message, charsPerToken float64) int {
	total := 0
	for _, m := range msgs {
		total += estimateTokens(m, charsPerToken)
	}
	return total
}

// trimToBudget drops the oldest history messages until the estimated prompt
// plus the reserved completion budget fits the context window. The system
// prompt (msgs[0]) and the current user message (last element) are never
// dropped, so the result is at least those two messages.
func trimToBudget(msgs []*schema.Message, contextWindow, maxCompletionTokens int, charsPerToken float64) []*schema.Message {
	if len(msgs) <= 2 {
		return msgs
	}

	budget := contextWindow - maxCompletionTokens
	dropped := 0
	for len(msgs) > 2 && estimatePromptTokens(msgs, charsPerToken)+messageOverheadTokens > budget {
		// msgs[0] is the system prompt; index 1 is the oldest history turn.
		msgs = append(msgs[:1:1], msgs[2:]...)
		dropped++
	}

	if dropped > 0 {
		logx.Debug().
			Int("dropped_messages", dropped).
			Int("kept_messages", len(msgs)).
			Int("budget_tokens", budget).
			Msg("Trimmed conversation history to fit token budget")
	}
	return msgs
}
