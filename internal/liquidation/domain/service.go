package domain

import "context"

type Service interface {
	Calculate(ctx context.Context, req Request) (*Liquidation, error)
	RenderPDF(ctx context.Context, liq *Liquidation) ([]byte, error)
}

// Request accepts both the current field names and the ones older forms
// still send (importe_inicial, fecha_final, interes_anual).
type Request struct {
	Capital        string `json:"capital"`
	InitialAmount  string `json:"importe_inicial"`
	StartDate      string `json:"fecha_inicio"`
	EndDate        string `json:"fecha_fin"`
	FinalDate      string `json:"fecha_final"`
	Type           string `json:"tipo_calculo"`
	RateType       string `json:"tipo_tasa"`
	AnnualRate     string `json:"tasa_anual"`
	LegacyInterest string `json:"interes_anual"`
	Frequency      string `json:"frecuencia_aplicacion"`
}
