// Package responder generates the assistant reply from the conversation and
// the context blocks the router selected.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/recall/internal/anthropic"
	"github.com/MikeSquared-Agency/recall/internal/config"
	"github.com/MikeSquared-Agency/recall/internal/memory"
)

// historyWindow caps how many conversation turns are replayed to the model.
const historyWindow = 20

// Error marks a response-generation failure. Caught at the orchestrator
// boundary and replaced with the configured fallback reply.
type Error struct {
	err error
}

func (e *Error) Error() string { return "responder: " + e.err.Error() }
func (e *Error) Unwrap() error { return e.err }

type Responder struct {
	llm     *anthropic.Client
	model   string
	content map[string]string // block name -> configured content
	order   []string          // block order from config
	logger  *slog.Logger
}

func New(llm *anthropic.Client, model string, blocks []config.ContextBlock, logger *slog.Logger) *Responder {
	content := make(map[string]string, len(blocks))
	order := make([]string, 0, len(blocks))
	for _, b := range blocks {
		content[b.Name] = b.Content
		order = append(order, b.Name)
	}
	return &Responder{llm: llm, model: model, content: content, order: order, logger: logger}
}

// Generate produces the reply using only the selected context blocks, so the
// prompt cost tracks the router's token estimate.
func (r *Responder) Generate(ctx context.Context, conv *memory.Conversation, blocks []string) (string, error) {
	messages, seed := chatMessages(conv)
	if len(messages) == 0 {
		return "", &Error{err: fmt.Errorf("conversation has no messages to respond to")}
	}

	reply, usage, err := r.llm.Complete(ctx, r.model, r.systemPrompt(blocks, seed), messages, 1024)
	if err != nil {
		return "", &Error{err: err}
	}

	r.logger.Info("response generated",
		"user_id", conv.UserID,
		"blocks", len(blocks),
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
	)
	return reply, nil
}

// systemPrompt stitches the selected blocks together in config order.
// Unknown block names are skipped rather than failing the turn.
func (r *Responder) systemPrompt(blocks []string, seed string) string {
	selected := make(map[string]bool, len(blocks))
	for _, name := range blocks {
		selected[name] = true
	}

	var parts []string
	for _, name := range r.order {
		if !selected[name] {
			continue
		}
		if text := strings.TrimSpace(r.content[name]); text != "" {
			parts = append(parts, text)
		}
	}
	if seed != "" {
		parts = append(parts, seed)
	}
	return strings.Join(parts, "\n\n")
}

// chatMessages windows the conversation for the model. The seed comes from a
// full scan so reconstructed history survives past the window, and leading
// assistant turns are trimmed because the Messages API requires the payload
// to open with a user turn.
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

	if len(messages) > historyWindow {
		messages = messages[len(messages)-historyWindow:]
	}
	for len(messages) > 0 && messages[0].Role != string(memory.RoleUser) {
		messages = messages[1:]
	}
	return messages, seed
}
