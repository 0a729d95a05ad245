package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aimaster/apiserver/internal/db"
	"github.com/aimaster/apiserver/types"
)

// PublishRepository handles persistence for publish records, one per user.
type PublishRepository struct {
	q db.DBTX
}

func NewPublishRepository(q db.DBTX) *PublishRepository {
	return &PublishRepository{q: q}
}

// Upsert replaces the user's published text, creating the record on first use.
func (r *PublishRepository) Upsert(ctx context.Context, userID int, text string) (types.PublishRecord, error) {
	const query = `
		INSERT INTO actuar (user_id, text, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET text = EXCLUDED.text,
			updated_at = EXCLUDED.updated_at
		RETURNING user_id, text, updated_at`
	return scanPublish(r.q.QueryRowContext(ctx, query, userID, text, time.Now().UTC()))
}

func (r *PublishRepository) GetByUserID(ctx context.Context, userID int) (types.PublishRecord, error) {
	const query = `
		SELECT user_id, text, updated_at
		FROM actuar
		WHERE user_id = $1`
	return scanPublish(r.q.QueryRowContext(ctx, query, userID))
}

func scanPublish(row rowScanner) (types.PublishRecord, error) {
	var record types.PublishRecord
	var text string
	var updatedAt time.Time
	if err := row.Scan(&record.UserID, &text, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.PublishRecord{}, ErrNotFound
		}
		return types.PublishRecord{}, err
	}
	record.Text = &text
	record.UpdatedAt = &updatedAt
	return record, nil
}
