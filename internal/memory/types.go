// Package memory defines the data model shared by the short-term session
// layer and the long-term record store.
package memory

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversation turn. Messages are immutable once created
// and strictly time-ordered within a conversation.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage builds a message stamped with the current UTC time.
func NewMessage(role Role, text string) Message {
	return Message{Role: role, Text: text, Timestamp: time.Now().UTC()}
}

// Conversation is the active session state for one user. It lives in the
// ephemeral store while warm and is rebuilt from long-term records when it
// expires. Never shared across users.
type Conversation struct {
	UserID        string    `json:"user_id"`
	Messages      []Message `json:"messages"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// NewConversation creates an empty conversation for a user.
func NewConversation(userID string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		UserID:        userID,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
}

// Append adds a message to the ordered sequence and refreshes the
// last-updated timestamp.
func (c *Conversation) Append(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.LastUpdatedAt = time.Now().UTC()
}

// Recent returns the last n messages, or all of them if fewer exist.
func (c *Conversation) Recent(n int) []Message {
	if n <= 0 || len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

// EventType is the classifier's coarse label for a user message.
type EventType string

const (
	EventInquiry     EventType = "INQUIRY"
	EventFeedback    EventType = "FEEDBACK"
	EventRequest     EventType = "REQUEST"
	EventComplaint   EventType = "COMPLAINT"
	EventTransaction EventType = "TRANSACTION"
	EventSupport     EventType = "SUPPORT"
	EventInformation EventType = "INFORMATION"
	EventGeneric     EventType = "GENERIC_EVENT"
)

// KnownEventTypes lists every event type the classifier may emit.
var KnownEventTypes = []EventType{
	EventInquiry, EventFeedback, EventRequest, EventComplaint,
	EventTransaction, EventSupport, EventInformation, EventGeneric,
}

// Classification is the classifier's verdict on a single user message.
// Produced once per message, never mutated.
type Classification struct {
	EventType  EventType `json:"event_type"`
	Importance float64   `json:"importance"`
	Intent     string    `json:"intent"`
	Reasoning  string    `json:"reasoning"`
}

// LongTermRecord is one durable memory entry. Records are append-only:
// nothing in this service updates or deletes them.
type LongTermRecord struct {
	ID            uuid.UUID `json:"id"`
	UserID        string    `json:"user_id"`
	EventType     EventType `json:"event_type"`
	IntentSummary string    `json:"intent_summary"`
	Importance    float64   `json:"importance"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewLongTermRecord builds a record from a classification verdict.
func NewLongTermRecord(userID string, c Classification) LongTermRecord {
	return LongTermRecord{
		ID:            uuid.New(),
		UserID:        userID,
		EventType:     c.EventType,
		IntentSummary: c.Intent,
		Importance:    c.Importance,
		CreatedAt:     time.Now().UTC(),
	}
}
