package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	outboxdomain "github.com/smallbiznis/colegio/internal/outbox/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() outboxdomain.Repository {
	return &repo{}
}

const messageColumns = `id, kind, dedup_key, payload, status, attempts, next_attempt_at,
	locked_until, last_error, delivered_at, created_at, updated_at`

func (r *repo) Enqueue(ctx context.Context, db *gorm.DB, msg *outboxdomain.Message) (bool, error) {
	result := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedup_key"}},
		DoNothing: true,
	}).Create(msg)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ClaimDue selects candidates and leases each with a conditional update, so
// two dispatchers never hold the same message at once.
func (r *repo) ClaimDue(ctx context.Context, db *gorm.DB, now time.Time, lease time.Duration, limit int) ([]outboxdomain.Message, error) {
	var candidates []outboxdomain.Message
	err := db.WithContext(ctx).Raw(
		`SELECT `+messageColumns+`
		 FROM outbox_messages
		 WHERE status = ?
		   AND next_attempt_at <= ?
		   AND (locked_until IS NULL OR locked_until <= ?)
		 ORDER BY next_attempt_at ASC, id ASC
		 LIMIT ?`,
		outboxdomain.StatusPending,
		now,
		now,
		limit,
	).Scan(&candidates).Error
	if err != nil {
		return nil, err
	}

	lockedUntil := now.Add(lease)
	claimed := make([]outboxdomain.Message, 0, len(candidates))
	for _, msg := range candidates {
		result := db.WithContext(ctx).Exec(
			`UPDATE outbox_messages
			 SET locked_until = ?, updated_at = ?
			 WHERE id = ? AND status = ? AND (locked_until IS NULL OR locked_until <= ?)`,
			lockedUntil,
			now,
			msg.ID,
			outboxdomain.StatusPending,
			now,
		)
		if result.Error != nil {
			return claimed, result.Error
		}
		if result.RowsAffected == 1 {
			msg.LockedUntil = &lockedUntil
			claimed = append(claimed, msg)
		}
	}
	return claimed, nil
}

func (r *repo) MarkDelivered(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE outbox_messages
		 SET status = ?, attempts = attempts + 1, delivered_at = ?, locked_until = NULL, last_error = '', updated_at = ?
		 WHERE id = ?`,
		outboxdomain.StatusDelivered,
		at,
		at,
		id,
	).Error
}

func (r *repo) MarkRetry(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, next time.Time, lastErr string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE outbox_messages
		 SET attempts = ?, next_attempt_at = ?, locked_until = NULL, last_error = ?, updated_at = ?
		 WHERE id = ?`,
		attempts,
		next,
		lastErr,
		at,
		id,
	).Error
}

func (r *repo) MarkDead(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, lastErr string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE outbox_messages
		 SET status = ?, attempts = ?, locked_until = NULL, last_error = ?, updated_at = ?
		 WHERE id = ?`,
		outboxdomain.StatusDead,
		attempts,
		lastErr,
		at,
		id,
	).Error
}

func (r *repo) FindByDedupKey(ctx context.Context, db *gorm.DB, key string) (*outboxdomain.Message, error) {
	var msg outboxdomain.Message
	err := db.WithContext(ctx).Raw(
		`SELECT `+messageColumns+` FROM outbox_messages WHERE dedup_key = ?`,
		key,
	).Scan(&msg).Error
	if err != nil {
		return nil, err
	}
	if msg.ID == 0 {
		return nil, nil
	}
	return &msg, nil
}
