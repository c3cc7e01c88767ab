package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/MikeSquared-Agency/recall/internal/orchestrator"
)

// Chat is the turn pipeline the consumer drives for each inbound message.
type Chat interface {
	Handle(ctx context.Context, userID, text string) *orchestrator.Turn
}

// ChatReply is the outbound payload on SubjectChatReply.
type ChatReply struct {
	UserID          string  `json:"user_id"`
	Reply           string  `json:"reply"`
	Rule            string  `json:"rule"`
	EstimatedTokens int     `json:"estimated_tokens"`
	Saved           float64 `json:"saved"`
	Persisted       bool    `json:"persisted"`
	Fallback        bool    `json:"fallback"`
}

// Consumer turns inbound bus messages into orchestrated turns and publishes
// the reply. Malformed payloads are logged and dropped, never retried.
type Consumer struct {
	chat    Chat
	publish func(subject string, data any) error
	logger  *slog.Logger
}

func NewConsumer(chat Chat, publish func(subject string, data any) error, logger *slog.Logger) *Consumer {
	return &Consumer{chat: chat, publish: publish, logger: logger}
}

// HandleChatMessage is the subscription callback for SubjectChatMessage.
func (c *Consumer) HandleChatMessage(subject string, data []byte) {
	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Error("dropping malformed chat message", "subject", subject, "error", err)
		return
	}
	if err := msg.Validate(); err != nil {
		c.logger.Error("dropping invalid chat message", "subject", subject, "error", err)
		return
	}

	turn := c.chat.Handle(context.Background(), msg.UserID, msg.Text)

	reply := ChatReply{
		UserID:          msg.UserID,
		Reply:           turn.Reply,
		Rule:            turn.Decision.Rule,
		EstimatedTokens: turn.Decision.Tokens,
		Saved:           turn.Decision.Saved,
		Persisted:       turn.Persisted,
		Fallback:        turn.Fallback,
	}
	if err := c.publish(SubjectChatReply, reply); err != nil {
		c.logger.Error("failed to publish chat reply", "user_id", msg.UserID, "error", err)
	}
}
