package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	liquidationdomain "github.com/smallbiznis/colegio/internal/liquidation/domain"
	"github.com/smallbiznis/colegio/internal/providers/pdf"
	ratedomain "github.com/smallbiznis/colegio/internal/rate/domain"
	"github.com/smallbiznis/colegio/pkg/civildate"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	RateSvc ratedomain.Service
	PDF     pdf.Provider
}

type Service struct {
	log     *zap.Logger
	rateSvc ratedomain.Service
	pdf     pdf.Provider
}

func New(p Params) liquidationdomain.Service {
	return &Service{
		log:     p.Log.Named("liquidation.service"),
		rateSvc: p.RateSvc,
		pdf:     p.PDF,
	}
}

func (s *Service) Calculate(ctx context.Context, req liquidationdomain.Request) (*liquidationdomain.Liquidation, error) {
	capital, err := parseDecimal(firstNonEmpty(req.Capital, req.InitialAmount))
	if err != nil || !capital.IsPositive() {
		return nil, liquidationdomain.ErrInvalidCapital
	}
	start, err := civildate.Parse(req.StartDate)
	if err != nil {
		return nil, liquidationdomain.ErrInvalidDate
	}
	end, err := civildate.Parse(firstNonEmpty(req.EndDate, req.FinalDate))
	if err != nil {
		return nil, liquidationdomain.ErrInvalidDate
	}

	liq := &liquidationdomain.Liquidation{
		Type:      liquidationdomain.CalculationType(strings.ToLower(strings.TrimSpace(req.Type))),
		Capital:   capital.Round(2),
		Start:     start,
		End:       end,
		Frequency: decimal.NewFromInt(1),
	}

	var accrual *ratedomain.Accrual
	switch liq.Type {
	case liquidationdomain.CalculationBankRate:
		rateType := ratedomain.RateTypeBankActive
		if strings.TrimSpace(req.RateType) != "" {
			if rateType, err = ratedomain.ParseRateType(req.RateType); err != nil {
				return nil, err
			}
		}
		if strings.TrimSpace(req.Frequency) != "" {
			freq, err := parseDecimal(req.Frequency)
			if err != nil || !freq.IsPositive() {
				return nil, liquidationdomain.ErrInvalidFrequency
			}
			liq.Frequency = freq
		}

		accrual, err = s.rateSvc.Resolve(ctx, rateType, start, end)
		if err != nil {
			return nil, err
		}
		accrual.Scale(liq.Frequency)
		liq.RateType = rateType
		liq.RateLabel = liquidationdomain.RateLabel(rateType)

	case liquidationdomain.CalculationAnnualRate:
		annual, err := parseDecimal(firstNonEmpty(req.AnnualRate, req.LegacyInterest))
		if err != nil || !annual.IsPositive() {
			return nil, liquidationdomain.ErrInvalidAnnualRate
		}
		accrual, err = s.rateSvc.ResolveFixed(ctx, annual, start, end)
		if err != nil {
			return nil, err
		}
		liq.RateLabel = fmt.Sprintf("Interés anual %s%%", annual.String())

	default:
		return nil, liquidationdomain.ErrInvalidCalculation
	}

	liq.Periods = accrual.Periods
	liq.Breakdown = accrual.Breakdown()
	liq.Days = accrual.Days()
	liq.TotalPercentage = accrual.TotalPercentage
	liq.FinalAmount = accrual.Apply(liq.Capital)
	liq.Interest = liq.FinalAmount.Sub(liq.Capital)

	s.log.Info("liquidation calculated",
		zap.String("tipo_calculo", string(liq.Type)),
		zap.String("start", start.String()),
		zap.String("end", end.String()),
		zap.Int("periods", len(liq.Periods)),
		zap.String("total_percentage", liq.TotalPercentage.StringFixed(4)),
	)
	return liq, nil
}

func (s *Service) RenderPDF(ctx context.Context, liq *liquidationdomain.Liquidation) ([]byte, error) {
	if liq == nil {
		return nil, liquidationdomain.ErrInvalidCalculation
	}
	return s.pdf.GenerateLiquidation(ctx, pdf.LiquidationData{
		Capital:         liq.Capital.StringFixed(2),
		RateLabel:       liq.RateLabel,
		StartDate:       civildate.Display(liq.Start),
		EndDate:         civildate.Display(liq.End),
		Breakdown:       liq.Breakdown,
		TotalPercentage: liq.TotalPercentage.StringFixed(2),
		Interest:        liq.Interest.StringFixed(2),
		FinalAmount:     liq.FinalAmount.StringFixed(2),
	})
}

// parseDecimal accepts "1500.50" and the local "1.500,50".
func parseDecimal(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, ",") {
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	return decimal.NewFromString(raw)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
