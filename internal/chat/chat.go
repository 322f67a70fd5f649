// Package chat holds the plant-care conversation model: turns, the prompt
// sent to the provider and the normalization of replies.
package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/sprout/internal/provider"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// FallbackReply replaces an empty model reply.
const FallbackReply = "I'm sorry, I'm having trouble responding right now. Please try again later."

const systemPrompt = `You are a helpful plant care assistant. You help people with:
- Identifying plants
- Plant care and maintenance (watering, light, soil, fertilizing)
- Diagnosing plant problems
- Growing tips for indoor and outdoor plants
- Plant diseases and pests

Be friendly, practical and concise. If you are not sure about something, say so and suggest consulting a local plant expert or nursery.`

// Turn is one message of a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ErrInvalidTurn is returned for a turn with an unknown role.
var ErrInvalidTurn = errors.New("invalid conversation turn")

// ValidateHistory checks every prior turn has a user or assistant role.
func ValidateHistory(history []Turn) error {
	for i, t := range history {
		if t.Role != RoleUser && t.Role != RoleAssistant {
			return fmt.Errorf("%w: turn %d has role %q, want user or assistant", ErrInvalidTurn, i, t.Role)
		}
	}
	return nil
}

// BuildMessages assembles the provider messages: the system prompt, the most
// recent maxHistory prior turns, then the new user message. maxHistory <= 0
// sends no prior turns.
func BuildMessages(message string, history []Turn, maxHistory int) []provider.Message {
	recent := history
	if maxHistory <= 0 {
		recent = nil
	} else if len(recent) > maxHistory {
		recent = recent[len(recent)-maxHistory:]
	}

	msgs := make([]provider.Message, 0, len(recent)+2)
	msgs = append(msgs, provider.Message{Role: provider.RoleSystem, Content: systemPrompt})
	for _, t := range recent {
		msgs = append(msgs, provider.Message{Role: t.Role, Content: t.Content})
	}
	msgs = append(msgs, provider.Message{Role: provider.RoleUser, Content: message})
	return msgs
}

// Reply normalizes raw model output into the reply text.
func Reply(raw string) string {
	if s := strings.TrimSpace(raw); s != "" {
		return s
	}
	return FallbackReply
}

// AppendTurns returns a new history holding every prior turn followed by the
// user message and the assistant reply. The input slice is not modified.
func AppendTurns(history []Turn, message, reply string) []Turn {
	out := make([]Turn, 0, len(history)+2)
	out = append(out, history...)
	out = append(out,
		Turn{Role: RoleUser, Content: message},
		Turn{Role: RoleAssistant, Content: reply},
	)
	return out
}
