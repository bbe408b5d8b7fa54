package render

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tryon/internal/receipt/domain"
)

type PDFRenderer struct{}

func NewPDFRenderer() domain.Renderer {
	return &PDFRenderer{}
}

func (r *PDFRenderer) Render(_ context.Context, data domain.Data) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)
	total := formatMoney(data.Amount, data.Currency)
	paid := formatDate(data.PaidAt)

	m.AddRow(30,
		text.NewCol(6, "Receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		col.New(6).Add(
			text.New(data.IssuerName, props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(data.IssuerURL, props.Text{Top: 5, Size: 9, Align: align.Right}),
		),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Receipt number: "+data.ReceiptNumber, props.Text{Top: 0}),
			text.New("Date paid: "+paid, props.Text{Top: 4}),
			text.New("Payment method: "+data.Provider, props.Text{Top: 8}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(data.BillToName, props.Text{Top: 5}),
			text.New(data.BillToEmail, props.Text{Top: 9}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, total+" paid on "+paid, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Credits", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	m.AddRow(12,
		text.NewCol(6, data.Description, props.Text{Size: 9}),
		text.NewCol(2, fmt.Sprintf("%d", data.Credits), props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, formatMoney(unitPrice(data), data.Currency), props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, total, props.Text{Size: 9, Align: align.Right}),
	)

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(2, total, props.Text{Size: 9, Align: align.Right, Style: fontstyle.Bold}),
	)

	if data.PaymentRef != "" {
		m.AddRow(10,
			text.NewCol(12, "Payment reference: "+data.PaymentRef, props.Text{Size: 8, Top: 4}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}
	return doc.GetBytes(), nil
}

func unitPrice(data domain.Data) decimal.Decimal {
	if data.Credits <= 0 {
		return data.Amount
	}
	return data.Amount.DivRound(decimal.NewFromInt(data.Credits), 4)
}
