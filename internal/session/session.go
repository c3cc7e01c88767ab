// Package session decides whether a live session exists for a user, rebuilds
// one from long-term records when it does not, and keeps the ephemeral copy
// fresh as turns are appended.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/recall/internal/memory"
)

// EphemeralStore holds the active conversation per user with a TTL. Absence
// after expiry is indistinguishable from never having existed.
type EphemeralStore interface {
	Get(userID string) (*memory.Conversation, bool)
	Set(userID string, conv *memory.Conversation, ttl time.Duration) error
}

// DurableStore is the long-term record collection, one per user.
type DurableStore interface {
	ReadRecords(ctx context.Context, userID string) ([]memory.LongTermRecord, error)
	AppendRecord(ctx context.Context, userID string, rec memory.LongTermRecord) error
}

// Manager is the session state machine. Per turn it moves a user from
// cold or warm to session-ready, and appends turns while refreshing the TTL.
type Manager struct {
	ephemeral  EphemeralStore
	durable    DurableStore
	ttl        time.Duration
	seedWindow int // how many recent records seed a rebuilt session; 0 = all
	logger     *slog.Logger
}

func NewManager(ephemeral EphemeralStore, durable DurableStore, ttl time.Duration, seedWindow int, logger *slog.Logger) *Manager {
	return &Manager{
		ephemeral:  ephemeral,
		durable:    durable,
		ttl:        ttl,
		seedWindow: seedWindow,
		logger:     logger,
	}
}

// Obtain returns the user's live conversation. Warm sessions come straight
// from the ephemeral store; cold ones are reconstructed from long-term
// records (or created empty) and eagerly cached before returning. A durable
// read failure degrades to an empty conversation rather than failing the turn.
func (m *Manager) Obtain(ctx context.Context, userID string) *memory.Conversation {
	if conv, ok := m.ephemeral.Get(userID); ok {
		m.logger.Debug("session warm", "user_id", userID, "messages", len(conv.Messages))
		return conv
	}

	conv := memory.NewConversation(userID)

	records, err := m.durable.ReadRecords(ctx, userID)
	switch {
	case err != nil:
		// Degraded mode: continue with a fresh session for this turn.
		m.logger.Error("long-term read failed, starting fresh session", "user_id", userID, "error", err)
	case len(records) > 0:
		conv.Append(memory.Message{
			Role:      memory.RoleSystem,
			Text:      seedSummary(records, m.seedWindow),
			Timestamp: time.Now().UTC(),
		})
		m.logger.Info("session reconstructed from long-term records", "user_id", userID, "records", len(records))
	default:
		m.logger.Info("new session", "user_id", userID)
	}

	if err := m.ephemeral.Set(userID, conv, m.ttl); err != nil {
		// Next turn re-runs the cold-start path; nothing else to do here.
		m.logger.Warn("session cache write failed", "user_id", userID, "error", err)
	}
	return conv
}

// Append adds a message to the conversation and rewrites the ephemeral copy
// with a fresh TTL. A cache write failure is non-fatal to the turn.
func (m *Manager) Append(ctx context.Context, conv *memory.Conversation, msg memory.Message) *memory.Conversation {
	conv.Append(msg)
	if err := m.ephemeral.Set(conv.UserID, conv, m.ttl); err != nil {
		m.logger.Warn("session cache write failed", "user_id", conv.UserID, "error", err)
	}
	m.logger.Debug("message appended", "user_id", conv.UserID, "role", string(msg.Role), "messages", len(conv.Messages))
	return conv
}

// seedSummary renders the most recent records (newest first) into a single
// system message used to warm up a rebuilt session.
func seedSummary(records []memory.LongTermRecord, window int) string {
	if window > 0 && len(records) > window {
		records = records[:window]
	}

	var b strings.Builder
	b.WriteString("Known history for this returning customer, most recent first:\n")
	for _, r := range records {
		fmt.Fprintf(&b, "- %s (importance %.2f): %s\n", r.EventType, r.Importance, r.IntentSummary)
	}
	return strings.TrimRight(b.String(), "\n")
}
