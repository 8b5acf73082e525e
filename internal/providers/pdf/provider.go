package pdf

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("pdf",
	fx.Provide(New),
)

type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) ([]byte, error)
	GenerateLiquidation(ctx context.Context, data LiquidationData) ([]byte, error)
}

const (
	issuerName     = "COLEGIO PÚBLICO DE ABOGADOS Y PROCURADORES"
	issuerDistrict = "Segunda Circunscripción Judicial - Mendoza"
	issuerFooter   = "(San Rafael - Gral. Alvear - Malargüe)"
)

// PDFProvider renders documents with maroto.
type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}
