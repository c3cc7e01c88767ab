// Package gate decides which classified events earn a long-term record.
package gate

import (
	"context"
	"log/slog"

	"github.com/MikeSquared-Agency/recall/internal/memory"
	"github.com/MikeSquared-Agency/recall/internal/session"
)

// ShouldPersist reports whether a classification clears the importance
// threshold. The boundary is inclusive: importance == threshold persists.
func ShouldPersist(c memory.Classification, threshold float64) bool {
	return c.Importance >= threshold
}

// Publisher notifies downstream agents that a record was persisted.
// Optional; a nil publisher disables notifications.
type Publisher interface {
	Publish(subject string, data any) error
}

// SubjectPersisted is the NATS subject announcing new long-term records.
const SubjectPersisted = "swarm.recall.memory.persisted"

// Gate pairs the pure predicate with a single best-effort durable write.
// A write failure never blocks the turn.
type Gate struct {
	durable   session.DurableStore
	publisher Publisher
	threshold float64
	logger    *slog.Logger
}

func New(durable session.DurableStore, publisher Publisher, threshold float64, logger *slog.Logger) *Gate {
	return &Gate{
		durable:   durable,
		publisher: publisher,
		threshold: threshold,
		logger:    logger,
	}
}

// Record persists the classification as a long-term record when it clears
// the threshold. Returns true only when the record was actually written.
func (g *Gate) Record(ctx context.Context, userID string, c memory.Classification) bool {
	if !ShouldPersist(c, g.threshold) {
		g.logger.Debug("event below importance threshold",
			"user_id", userID,
			"importance", c.Importance,
			"threshold", g.threshold,
		)
		return false
	}

	rec := memory.NewLongTermRecord(userID, c)
	if err := g.durable.AppendRecord(ctx, userID, rec); err != nil {
		// Single attempt only; the gate never blocks response generation.
		g.logger.Error("long-term write failed",
			"user_id", userID,
			"event_type", string(c.EventType),
			"error", err,
		)
		return false
	}

	g.logger.Info("important event persisted",
		"user_id", userID,
		"event_type", string(c.EventType),
		"importance", c.Importance,
	)

	if g.publisher != nil {
		if err := g.publisher.Publish(SubjectPersisted, map[string]any{
			"user_id":    userID,
			"record_id":  rec.ID.String(),
			"event_type": string(rec.EventType),
			"importance": rec.Importance,
			"created_at": rec.CreatedAt,
		}); err != nil {
			g.logger.Warn("failed to publish persisted event", "error", err)
		}
	}
	return true
}
