package pgaudit

import (
	"context"
	"encoding/json"

	"github.com/BearBump/LiveCalls/internal/models"
	"github.com/pkg/errors"
)

// SaveNotification is idempotent by record id: a redelivered notification keeps its first outcome.
func (s *Storage) SaveNotification(ctx context.Context, rec models.NotificationRecord) error {
	meta := rec.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return errors.Wrap(err, "marshal metadata")
	}

	_, err = s.db.Exec(ctx, `
INSERT INTO notifications (id, type, title, body, target_customer, metadata, dedup_key, outcome, message_id, error, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Type, rec.Title, rec.Body, rec.TargetCustomer, metaJSON, rec.DedupKey,
		rec.Outcome, rec.MessageID, rec.Error, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "insert notification")
	}
	return nil
}

func (s *Storage) ListNotifications(ctx context.Context, targetCustomer string, limit, offset int) ([]models.NotificationRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT id, type, title, body, target_customer, metadata, dedup_key, outcome, message_id, error, created_at
FROM notifications
WHERE target_customer = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3`, targetCustomer, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "query notifications")
	}
	defer rows.Close()

	out := make([]models.NotificationRecord, 0)
	for rows.Next() {
		var rec models.NotificationRecord
		var metaJSON []byte
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Title, &rec.Body, &rec.TargetCustomer, &metaJSON,
			&rec.DedupKey, &rec.Outcome, &rec.MessageID, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan notification")
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &rec.Metadata); err != nil {
				return nil, errors.Wrap(err, "unmarshal metadata")
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows")
	}
	return out, nil
}
