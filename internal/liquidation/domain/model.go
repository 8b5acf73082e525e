package domain

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	ratedomain "github.com/smallbiznis/colegio/internal/rate/domain"
)

type CalculationType string

const (
	// CalculationBankRate accrues a published rate series.
	CalculationBankRate CalculationType = "tasa_bancaria"
	// CalculationAnnualRate accrues a caller-supplied annual rate.
	CalculationAnnualRate CalculationType = "interes_anual"
)

var rateLabels = map[ratedomain.RateType]string{
	ratedomain.RateTypeBankActive:     "Tasa Banco Nación Activa",
	ratedomain.RateTypeBankPassive:    "Tasa Banco Nación Pasiva",
	ratedomain.RateTypeInflationIndex: "Índice UVA",
}

// RateLabel is the printed name of a rate series.
func RateLabel(rt ratedomain.RateType) string {
	if label, ok := rateLabels[rt]; ok {
		return label
	}
	return string(rt)
}

// Liquidation is a capital updated with simple interest over [Start, End).
type Liquidation struct {
	Type            CalculationType     `json:"tipo_calculo"`
	RateType        ratedomain.RateType `json:"tipo_tasa,omitempty"`
	RateLabel       string              `json:"tasa_utilizada"`
	Capital         decimal.Decimal     `json:"capital"`
	Start           civil.Date          `json:"fecha_inicio"`
	End             civil.Date          `json:"fecha_fin"`
	Days            int                 `json:"dias"`
	Frequency       decimal.Decimal     `json:"frecuencia_aplicacion"`
	Periods         []ratedomain.Period `json:"periodos"`
	Breakdown       []string            `json:"detalle"`
	TotalPercentage decimal.Decimal     `json:"tasa_total"`
	Interest        decimal.Decimal     `json:"interes"`
	FinalAmount     decimal.Decimal     `json:"monto_final"`
}

// Filename is the download name of the rendered document.
func (l *Liquidation) Filename() string {
	return fmt.Sprintf("Liquidacion-%s-%s.pdf", fileDate(l.Start), fileDate(l.End))
}

func fileDate(d civil.Date) string {
	return fmt.Sprintf("%02d-%02d-%04d", d.Day, int(d.Month), d.Year)
}
