package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	RateType       RateType
	IncludeDeleted bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rate *Rate) error
	Update(ctx context.Context, db *gorm.DB, rate *Rate) error
	SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Rate, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Rate, error)
	// ListIntersecting returns active records of rateType whose validity meets
	// [start, end], ordered by valid_from then id.
	ListIntersecting(ctx context.Context, db *gorm.DB, rateType RateType, start, end time.Time) ([]Rate, error)
}
