package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	ratedomain "github.com/smallbiznis/colegio/internal/rate/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ratedomain.Repository {
	return &repo{}
}

const rateColumns = `id, rate_type, rate, valid_from, valid_to, created_at, updated_at, deleted_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rate *ratedomain.Rate) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO rates (id, rate_type, rate, valid_from, valid_to, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rate.ID,
		rate.RateType,
		rate.Rate,
		rate.ValidFrom,
		rate.ValidTo,
		rate.CreatedAt,
		rate.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, rate *ratedomain.Rate) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE rates
		 SET rate = ?, valid_from = ?, valid_to = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		rate.Rate,
		rate.ValidFrom,
		rate.ValidTo,
		rate.UpdatedAt,
		rate.ID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ratedomain.ErrNotFound
	}
	return nil
}

func (r *repo) SoftDelete(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE rates SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		at,
		at,
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ratedomain.ErrNotFound
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ratedomain.Rate, error) {
	var rate ratedomain.Rate
	err := db.WithContext(ctx).Raw(
		`SELECT `+rateColumns+` FROM rates WHERE id = ?`,
		id,
	).Scan(&rate).Error
	if err != nil {
		return nil, err
	}
	if rate.ID == 0 {
		return nil, nil
	}
	return &rate, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter ratedomain.ListFilter) ([]ratedomain.Rate, error) {
	query := `SELECT ` + rateColumns + ` FROM rates WHERE 1 = 1`
	args := []any{}
	if filter.RateType != "" {
		query += ` AND rate_type = ?`
		args = append(args, filter.RateType)
	}
	if !filter.IncludeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY rate_type ASC, valid_from DESC, id DESC`

	var rates []ratedomain.Rate
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rates).Error; err != nil {
		return nil, err
	}
	return rates, nil
}

func (r *repo) ListIntersecting(ctx context.Context, db *gorm.DB, rateType ratedomain.RateType, start, end time.Time) ([]ratedomain.Rate, error) {
	var rates []ratedomain.Rate
	err := db.WithContext(ctx).Raw(
		`SELECT `+rateColumns+`
		 FROM rates
		 WHERE rate_type = ?
		   AND deleted_at IS NULL
		   AND valid_from < ?
		   AND (valid_to IS NULL OR valid_to > ?)
		 ORDER BY valid_from ASC, id ASC`,
		rateType,
		end,
		start,
	).Scan(&rates).Error
	if err != nil {
		return nil, err
	}
	return rates, nil
}
