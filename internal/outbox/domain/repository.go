package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Enqueue inserts msg unless a message with the same dedup key exists.
	Enqueue(ctx context.Context, db *gorm.DB, msg *Message) (bool, error)
	// ClaimDue leases up to limit pending messages due at now.
	ClaimDue(ctx context.Context, db *gorm.DB, now time.Time, lease time.Duration, limit int) ([]Message, error)
	MarkDelivered(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	MarkRetry(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, next time.Time, lastErr string, at time.Time) error
	MarkDead(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, lastErr string, at time.Time) error
	FindByDedupKey(ctx context.Context, db *gorm.DB, key string) (*Message, error)
}
