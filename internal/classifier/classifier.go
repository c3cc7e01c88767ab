// Package classifier turns the latest user message into a typed
// classification via the LLM.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/recall/internal/anthropic"
	"github.com/MikeSquared-Agency/recall/internal/memory"
)

// contextWindow is how many messages before the current one are sent to the
// classifier for context.
const contextWindow = 5

// Error marks any classification failure. The orchestrator catches it and
// substitutes the configured fallback reply; it never propagates further.
type Error struct {
	err error
}

func (e *Error) Error() string { return "classifier: " + e.err.Error() }
func (e *Error) Unwrap() error { return e.err }

type Classifier struct {
	llm    *anthropic.Client
	model  string
	logger *slog.Logger
}

func New(llm *anthropic.Client, model string, logger *slog.Logger) *Classifier {
	return &Classifier{llm: llm, model: model, logger: logger}
}

// Classify analyses the conversation's latest user message. Recent turns are
// included for context; the session's system seed rides along in the system
// prompt.
func (c *Classifier) Classify(ctx context.Context, conv *memory.Conversation) (memory.Classification, error) {
	messages, seed := chatMessages(conv)
	if len(messages) == 0 {
		return memory.Classification{}, &Error{err: fmt.Errorf("conversation has no user message")}
	}

	system := systemPrompt
	if seed != "" {
		system += "\n\nBackground on this user:\n" + seed
	}

	raw, usage, err := c.llm.Complete(ctx, c.model, system, messages, 512)
	if err != nil {
		return memory.Classification{}, &Error{err: err}
	}

	result, err := parseClassification(raw)
	if err != nil {
		c.logger.Error("failed to parse classification", "error", err, "raw", raw)
		return memory.Classification{}, &Error{err: err}
	}

	c.logger.Info("message classified",
		"user_id", conv.UserID,
		"event_type", string(result.EventType),
		"importance", result.Importance,
		"intent", result.Intent,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
	)
	return result, nil
}

// chatMessages maps the tail of the conversation onto API messages and pulls
// the system seed out for the system prompt. The seed is scanned from the
// whole conversation, not the window, so long sessions keep their history.
func chatMessages(conv *memory.Conversation) ([]anthropic.Message, string) {
	var seed string
	var messages []anthropic.Message
	for _, m := range conv.Messages {
		if m.Role == memory.RoleSystem {
			seed = m.Text
			continue
		}
		messages = append(messages, anthropic.Message{Role: string(m.Role), Content: m.Text})
	}

	if len(messages) > contextWindow+1 {
		messages = messages[len(messages)-(contextWindow+1):]
	}
	// The Messages API rejects payloads that open with an assistant turn.
	for len(messages) > 0 && messages[0].Role != string(memory.RoleUser) {
		messages = messages[1:]
	}

	// The last message must be the user turn under classification.
	if len(messages) == 0 || messages[len(messages)-1].Role != string(memory.RoleUser) {
		return nil, seed
	}
	return messages, seed
}

func parseClassification(raw string) (memory.Classification, error) {
	var wire struct {
		EventType  string  `json:"event_type"`
		Importance float64 `json:"importance"`
		Intent     string  `json:"intent"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &wire); err != nil {
		return memory.Classification{}, fmt.Errorf("parse classification: %w", err)
	}

	eventType := memory.EventType(strings.ToUpper(strings.TrimSpace(wire.EventType)))
	if eventType == "" {
		return memory.Classification{}, fmt.Errorf("empty event_type")
	}
	if !knownEventType(eventType) {
		return memory.Classification{}, fmt.Errorf("unknown event_type %q", wire.EventType)
	}
	if wire.Importance < 0 || wire.Importance > 1 {
		return memory.Classification{}, fmt.Errorf("importance %g out of range [0,1]", wire.Importance)
	}

	return memory.Classification{
		EventType:  eventType,
		Importance: wire.Importance,
		Intent:     strings.TrimSpace(wire.Intent),
		Reasoning:  wire.Reasoning,
	}, nil
}

func knownEventType(t memory.EventType) bool {
	for _, k := range memory.KnownEventTypes {
		if t == k {
			return true
		}
	}
	return false
}

// stripFences removes a surrounding markdown code fence if the model added
// one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
