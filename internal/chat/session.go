// Package chat keeps the bounded conversation state for the interactive
// REPL and renders it into a prompt transcript.
package chat

import (
	"fmt"
	"strings"
)

// Role tags a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged turn.
type Message struct {
	Role    Role
	Content string
}

// Session holds an ordered transcript pruned to an estimated token budget.
// The system turn (when present) and the newest user turn always survive
// pruning.
type Session struct {
	budget   int
	messages []Message
}

// DefaultBudget is used when the caller passes a non-positive budget.
const DefaultBudget = 3840

// NewSession creates a session with the given token budget. A system
// prompt, if non-empty, is pinned as the first turn.
func NewSession(system string, budget int) *Session {
	if budget <= 0 {
		budget = DefaultBudget
	}
	s := &Session{budget: budget}
	if system != "" {
		s.messages = append(s.messages, Message{Role: RoleSystem, Content: system})
	}
	return s
}

// Append adds a turn and prunes the transcript back under budget.
func (s *Session) Append(role Role, content string) {
	s.messages = append(s.messages, Message{Role: role, Content: content})
	s.prune()
}

// Messages returns the current transcript.
func (s *Session) Messages() []Message {
	return s.messages
}

// Len returns the number of turns currently held.
func (s *Session) Len() int { return len(s.messages) }

// EstimateTokens approximates the token count of a string. One token per
// four bytes matches the heuristic llama.cpp frontends use for English
// text; the budget only needs to be roughly right.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func (s *Session) tokenCount() int {
	total := 0
	for _, m := range s.messages {
		total += EstimateTokens(m.Content) + 4 // role tag overhead
	}
	return total
}

// prune drops the oldest non-system turns until the estimate fits the
// budget. The final turn and the newest user turn are never dropped.
func (s *Session) prune() {
	for s.tokenCount() > s.budget {
		lastUser := -1
		for i, m := range s.messages {
			if m.Role == RoleUser {
				lastUser = i
			}
		}
		idx := -1
		for i, m := range s.messages {
			if m.Role == RoleSystem || i == lastUser {
				continue
			}
			if i == len(s.messages)-1 {
				break
			}
			idx = i
			break
		}
		if idx < 0 {
			return
		}
		s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
	}
}

// Transcript renders the session into the plain-text prompt format the
// local engine consumes, ending with an open assistant turn.
func Transcript(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			fmt.Fprintf(&b, "System: %s\n", m.Content)
		case RoleUser:
			fmt.Fprintf(&b, "User: %s\n", m.Content)
		case RoleAssistant:
			fmt.Fprintf(&b, "Assistant: %s\n", m.Content)
		}
	}
	b.WriteString("Assistant:")
	return b.String()
}
