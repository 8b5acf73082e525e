package pdf

import (
	"context"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// ReceiptData is the printable view of a fee record and its receipt.
// Values are preformatted by the caller.
type ReceiptData struct {
	ReceiptNumber string
	Status        string
	CaseNumber    string
	Caption       string
	Court         string
	FilingDate    string
	DueDate       string
	DueAmount     string
	JusticeFee    string
	PaymentMethod string
	PaymentID     string
	PaidAt        string
}

func (p *PDFProvider) GenerateReceipt(ctx context.Context, receipt ReceiptData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Página {current} de {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		col.New(8).Add(
			text.New(issuerName, props.Text{Size: 13, Style: fontstyle.Bold}),
			text.New(issuerDistrict, props.Text{Top: 8, Size: 10}),
		),
		text.NewCol(4, "DERECHO FIJO", props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(12,
		text.NewCol(6, "Recibo "+receipt.ReceiptNumber, props.Text{Size: 11, Style: fontstyle.Bold, Top: 4}),
		text.NewCol(6, receipt.Status, props.Text{Size: 11, Style: fontstyle.Bold, Align: align.Right, Top: 4}),
	)

	fields := [][2]string{
		{"Fecha Inicio:", orNA(receipt.FilingDate)},
		{"Fecha Vencimiento:", orNA(receipt.DueDate)},
		{"Carátula:", orNA(receipt.Caption)},
		{"TOTAL DEPOSITADO:", "$ " + receipt.DueAmount},
		{"Juzgado:", orNA(receipt.Court)},
		{"Tasa de justicia:", "$ " + receipt.JusticeFee},
		{"N° de Expediente:", orNA(receipt.CaseNumber)},
		{"Medio de pago:", orNA(receipt.PaymentMethod)},
		{"ID de Pago:", orNA(receipt.PaymentID)},
		{"Fecha de Pago:", orNA(receipt.PaidAt)},
	}
	for _, f := range fields {
		m.AddRow(8,
			text.NewCol(4, f[0], props.Text{Size: 10, Style: fontstyle.Bold}),
			text.NewCol(8, f[1], props.Text{Size: 10}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func orNA(v string) string {
	if v == "" {
		return "No disponible"
	}
	return v
}
