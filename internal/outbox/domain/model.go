package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusDead      Status = "dead"
)

// Message is a side effect recorded in the same transaction as the state
// change that caused it and delivered at least once afterwards.
type Message struct {
	ID            snowflake.ID   `gorm:"primaryKey"`
	Kind          string         `gorm:"column:kind;type:varchar(64);not null"`
	DedupKey      string         `gorm:"column:dedup_key;type:varchar(128);not null;uniqueIndex:ux_outbox_dedup_key"`
	Payload       datatypes.JSON `gorm:"column:payload;not null"`
	Status        Status         `gorm:"column:status;type:varchar(16);not null;index:ix_outbox_due,priority:1"`
	Attempts      int            `gorm:"column:attempts;not null;default:0"`
	NextAttemptAt time.Time      `gorm:"column:next_attempt_at;not null;index:ix_outbox_due,priority:2"`
	LockedUntil   *time.Time     `gorm:"column:locked_until"`
	LastError     string         `gorm:"column:last_error;type:text"`
	DeliveredAt   *time.Time     `gorm:"column:delivered_at"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
}

func (Message) TableName() string { return "outbox_messages" }

var (
	ErrUnknownKind = errors.New("outbox_unknown_kind")
	// ErrPermanent marks a delivery failure that retrying cannot fix.
	ErrPermanent = errors.New("outbox_permanent_failure")
)

// Handler delivers messages of one kind.
type Handler interface {
	Kind() string
	Handle(ctx context.Context, msg Message) error
}

// Waker nudges the dispatcher after a commit so delivery does not wait for
// the next poll.
type Waker interface {
	Wake()
}
