package store

import (
	"context"
	"fmt"

	"github.com/MikeSquared-Agency/recall/internal/memory"
)

// ReadRecords returns every long-term record for a user, most recent first.
func (s *Store) ReadRecords(ctx context.Context, userID string) ([]memory.LongTermRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, event_type, intent_summary, importance, created_at
		FROM long_term_records
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []memory.LongTermRecord
	for rows.Next() {
		var r memory.LongTermRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.EventType, &r.IntentSummary, &r.Importance, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// AppendRecord inserts one record into the user's collection.
func (s *Store) AppendRecord(ctx context.Context, userID string, rec memory.LongTermRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO long_term_records (id, user_id, event_type, intent_summary, importance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, userID, rec.EventType, rec.IntentSummary, rec.Importance, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}
