// Package printing renders order receipts to PDF in the background worker and
// hands the result back to the browser session that asked for it.
package printing

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/buysell-kh/backoffice/internal/backend"
	"github.com/buysell-kh/backoffice/internal/view"
)

// ReceiptTemplate is the template rendered into the PDF.
const ReceiptTemplate = "reports/order_receipt.html"

// ErrOrderNotFound is returned when the client has no order with the id.
var ErrOrderNotFound = errors.New("printing: order not found")

// Line is one product row of a receipt.
type Line struct {
	No        int
	Name      string
	Weight    string
	Amount    decimal.Decimal
	SellPrice decimal.Decimal
	LaborCost decimal.Decimal
	Total     decimal.Decimal
}

// Receipt is the view model of the receipt template.
type Receipt struct {
	Client    backend.Client
	OrderID   backend.ID
	Date      string
	Lines     []Line
	Total     decimal.Decimal
	Deposit   decimal.Decimal
	Balance   decimal.Decimal
	PrintedAt string
}

// NewReceipt builds the receipt of order orderID from a client detail.
func NewReceipt(detail *backend.ClientDetail, orderID backend.ID, now time.Time) (Receipt, error) {
	order, ok := detail.Order(orderID)
	if !ok {
		return Receipt{}, ErrOrderNotFound
	}
	r := Receipt{
		Client:    detail.Info,
		OrderID:   order.ID,
		Date:      view.FormatOrderDate(order.Date),
		Total:     order.Total(),
		Deposit:   order.Deposit,
		Balance:   order.Balance(),
		PrintedAt: now.Format("02/01/2006 15:04"),
	}
	for i, p := range order.Products {
		r.Lines = append(r.Lines, Line{
			No:        i + 1,
			Name:      p.Name,
			Weight:    strings.TrimSpace(string(p.Weight)),
			Amount:    p.Amount,
			SellPrice: p.SellPrice,
			LaborCost: p.LaborCost,
			Total:     p.LineTotal(),
		})
	}
	return r, nil
}
