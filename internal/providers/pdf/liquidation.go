package pdf

import (
	"context"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type LiquidationData struct {
	Capital         string
	RateLabel       string
	StartDate       string
	EndDate         string
	Breakdown       []string
	TotalPercentage string
	Interest        string
	FinalAmount     string
}

func (p *PDFProvider) GenerateLiquidation(ctx context.Context, liq LiquidationData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Página {current} de {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(14,
		text.NewCol(12, "Colegio de Abogados de Mendoza - Formularios", props.Text{Size: 14, Style: fontstyle.Bold}),
	)
	m.AddRow(14,
		text.NewCol(12, "Cálculo de liquidación", props.Text{Size: 14, Style: fontstyle.Bold}),
	)

	body := props.Text{Size: 11}
	m.AddRow(7, text.NewCol(12, "Capital (pesos): $ "+liq.Capital, body))
	m.AddRow(7, text.NewCol(12, "Tasa utilizada: "+liq.RateLabel, body))
	m.AddRow(7, text.NewCol(12, "Fecha de origen: "+liq.StartDate, body))
	m.AddRow(10, text.NewCol(12, "Fecha de liquidación: "+liq.EndDate, body))

	for _, line := range liq.Breakdown {
		m.AddRow(6, text.NewCol(12, line, props.Text{Size: 9}))
	}

	m.AddRow(12, text.NewCol(12, "Tasa de interés: "+liq.TotalPercentage+"%", props.Text{Size: 11, Top: 4}))
	m.AddRow(7, text.NewCol(12, "Interés: $ "+liq.Interest, body))
	m.AddRow(7, text.NewCol(12, "=========", body))
	m.AddRow(14, text.NewCol(12, "Monto Final: $ "+liq.FinalAmount, props.Text{Size: 12, Style: fontstyle.Bold}))

	footer := props.Text{Size: 10, Align: align.Center}
	m.AddRow(6, text.NewCol(12, issuerDistrict, footer))
	m.AddRow(6, text.NewCol(12, issuerFooter, footer))

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
