package service

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/colegio/internal/clock"
	ratedomain "github.com/smallbiznis/colegio/internal/rate/domain"
	"github.com/smallbiznis/colegio/pkg/civildate"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  ratedomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  ratedomain.Repository
}

func New(p Params) ratedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("rate.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req ratedomain.CreateRequest) (*ratedomain.Response, error) {
	rateType, err := ratedomain.ParseRateType(req.RateType)
	if err != nil {
		return nil, err
	}
	value, err := parseRate(req.Rate)
	if err != nil {
		return nil, err
	}
	from, err := civildate.Parse(req.ValidFrom)
	if err != nil {
		return nil, ratedomain.ErrInvalidValidity
	}
	var validTo *time.Time
	if strings.TrimSpace(req.ValidTo) != "" {
		to, err := civildate.Parse(req.ValidTo)
		if err != nil {
			return nil, ratedomain.ErrInvalidValidity
		}
		t := civildate.ToTime(to)
		validTo = &t
	}

	now := s.clock.Now()
	rate := &ratedomain.Rate{
		ID:        s.genID.Generate(),
		RateType:  rateType,
		Rate:      value,
		ValidFrom: civildate.ToTime(from),
		ValidTo:   validTo,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := rate.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, s.db, rate); err != nil {
		return nil, err
	}
	s.warnOnOverlap(ctx, rate)

	return toResponse(rate), nil
}

func (s *Service) Update(ctx context.Context, req ratedomain.UpdateRequest) (*ratedomain.Response, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	rate, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if rate == nil || rate.DeletedAt != nil {
		return nil, ratedomain.ErrNotFound
	}

	if req.Rate != nil {
		value, err := parseRate(*req.Rate)
		if err != nil {
			return nil, err
		}
		rate.Rate = value
	}
	if req.ValidFrom != nil {
		from, err := civildate.Parse(*req.ValidFrom)
		if err != nil {
			return nil, ratedomain.ErrInvalidValidity
		}
		rate.ValidFrom = civildate.ToTime(from)
	}
	switch {
	case req.OpenEnded:
		rate.ValidTo = nil
	case req.ValidTo != nil:
		to, err := civildate.Parse(*req.ValidTo)
		if err != nil {
			return nil, ratedomain.ErrInvalidValidity
		}
		t := civildate.ToTime(to)
		rate.ValidTo = &t
	}
	if err := rate.Validate(); err != nil {
		return nil, err
	}

	rate.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, rate); err != nil {
		return nil, err
	}
	s.warnOnOverlap(ctx, rate)

	return toResponse(rate), nil
}

// Delete soft-deletes a record. The open-ended record of a series is the one
// currently in force and cannot be removed.
func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	rate, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if rate == nil || rate.DeletedAt != nil {
		return ratedomain.ErrNotFound
	}
	if rate.OpenEnded() {
		return ratedomain.ErrOpenEndedRate
	}
	return s.repo.SoftDelete(ctx, s.db, id, s.clock.Now())
}

func (s *Service) Get(ctx context.Context, rawID string) (*ratedomain.Response, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	rate, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if rate == nil {
		return nil, ratedomain.ErrNotFound
	}
	return toResponse(rate), nil
}

func (s *Service) List(ctx context.Context, req ratedomain.ListRequest) ([]ratedomain.Response, error) {
	filter := ratedomain.ListFilter{IncludeDeleted: req.IncludeDeleted}
	if strings.TrimSpace(req.RateType) != "" {
		rateType, err := ratedomain.ParseRateType(req.RateType)
		if err != nil {
			return nil, err
		}
		filter.RateType = rateType
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	resp := make([]ratedomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Resolve(ctx context.Context, rateType ratedomain.RateType, start, end civil.Date) (*ratedomain.Accrual, error) {
	if !start.Before(end) {
		return nil, ratedomain.ErrInvalidRange
	}
	records, err := s.repo.ListIntersecting(ctx, s.db, rateType, civildate.ToTime(start), civildate.ToTime(end))
	if err != nil {
		return nil, err
	}
	accrual, err := Accrue(rateType, records, start, end)
	if err != nil {
		s.log.Warn("rate resolution failed",
			zap.String("rate_type", string(rateType)),
			zap.String("start", start.String()),
			zap.String("end", end.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return accrual, nil
}

func (s *Service) ResolveFixed(_ context.Context, annualRate decimal.Decimal, start, end civil.Date) (*ratedomain.Accrual, error) {
	return AccrueFixed(annualRate, start, end)
}

// warnOnOverlap logs records of the same series sharing instants with rate.
// Overlaps are allowed; resolution gives the earlier start precedence.
func (s *Service) warnOnOverlap(ctx context.Context, rate *ratedomain.Rate) {
	end := civildate.ToTime(civil.Date{Year: 9999, Month: time.December, Day: 31})
	if rate.ValidTo != nil {
		end = *rate.ValidTo
	}
	others, err := s.repo.ListIntersecting(ctx, s.db, rate.RateType, rate.ValidFrom, end)
	if err != nil {
		return
	}
	for _, other := range others {
		if other.ID == rate.ID {
			continue
		}
		s.log.Warn("rate validity overlaps another record",
			zap.String("rate_id", rate.ID.String()),
			zap.String("overlapping_rate_id", other.ID.String()),
			zap.String("rate_type", string(rate.RateType)),
		)
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, ratedomain.ErrInvalidID
	}
	return id, nil
}

func parseRate(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(strings.ReplaceAll(raw, ",", ".")))
	if err != nil || !value.IsPositive() {
		return decimal.Zero, ratedomain.ErrInvalidRate
	}
	return value, nil
}

func toResponse(rate *ratedomain.Rate) *ratedomain.Response {
	resp := &ratedomain.Response{
		ID:        rate.ID.String(),
		RateType:  rate.RateType,
		Rate:      rate.Rate.String(),
		ValidFrom: rate.From(),
		Deleted:   rate.DeletedAt != nil,
	}
	if to, ok := rate.To(); ok {
		resp.ValidTo = &to
	}
	return resp
}
