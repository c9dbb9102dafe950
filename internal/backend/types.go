package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/buysell-kh/backoffice/internal/shared"
)

// ID is a numeric identifier that the API may send as a number, a numeric
// string or a placeholder such as "N/A". Placeholders decode to zero.
type ID int64

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		*id = 0
		return nil
	}
	*id = ID(n)
	return nil
}

// Valid reports whether the identifier refers to a real record.
func (id ID) Valid() bool { return id > 0 }

// String renders the identifier, or "-" when missing.
func (id ID) String() string {
	if !id.Valid() {
		return "-"
	}
	return strconv.FormatInt(int64(id), 10)
}

// Text is a string field the API sometimes sends as a number.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*t = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(data)
	}
	return nil
}

// Client is a customer record.
type Client struct {
	ID      ID     `json:"cus_id"`
	Name    string `json:"cus_name"`
	Phone   string `json:"phone_number"`
	Address string `json:"address"`
}

// NewClient is the payload for registering a customer.
type NewClient struct {
	Name    string `json:"cus_name"`
	Address string `json:"address"`
	Phone   string `json:"phone_number"`
}

// Product is one line of an order.
type Product struct {
	ID        ID              `json:"prod_id"`
	Name      string          `json:"prod_name"`
	Weight    Text            `json:"order_weight"`
	Amount    decimal.Decimal `json:"order_amount"`
	SellPrice decimal.Decimal `json:"product_sell_price"`
	LaborCost decimal.Decimal `json:"product_labor_cost"`
	BuyPrice  decimal.Decimal `json:"product_buy_price"`
}

// LineTotal is sell price times amount.
func (p Product) LineTotal() decimal.Decimal {
	return p.SellPrice.Mul(p.Amount)
}

// Order is a customer order with its products.
type Order struct {
	ID       ID              `json:"order_id"`
	Deposit  decimal.Decimal `json:"order_deposit"`
	Date     string          `json:"order_date"`
	Products []Product       `json:"products"`
}

// Total sums the line totals.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, p := range o.Products {
		total = total.Add(p.LineTotal())
	}
	return total
}

// Balance is the total minus the deposit.
func (o Order) Balance() decimal.Decimal {
	return o.Total().Sub(o.Deposit)
}

// ClientDetail is a customer with their order history.
type ClientDetail struct {
	Info   Client  `json:"client_info"`
	Orders []Order `json:"orders"`
}

// Order returns the order with id.
func (d *ClientDetail) Order(id ID) (Order, bool) {
	if d == nil {
		return Order{}, false
	}
	for _, o := range d.Orders {
		if o.ID == id {
			return o, true
		}
	}
	return Order{}, false
}

// OrderUpdate carries the editable order fields. Nil fields are not sent.
type OrderUpdate struct {
	Deposit *decimal.Decimal `json:"order_deposit,omitempty"`
	Date    *string          `json:"order_date,omitempty"`
}

// Filters are the listing search criteria as sent upstream.
type Filters struct {
	ID      int64
	Name    string
	Phone   string
	Address string
}

// ListParams selects a page of the client listing.
type ListParams struct {
	Page    int
	Limit   int
	Filters Filters
}

// Pagination is the listing metadata as sent by the API.
type Pagination struct {
	CurrentPage   int            `json:"current_page"`
	PageSize      int            `json:"page_size"`
	TotalItems    int            `json:"total_items"`
	TotalPages    int            `json:"total_pages"`
	HasNext       bool           `json:"has_next"`
	HasPrevious   bool           `json:"has_previous"`
	SearchFilters map[string]any `json:"search_filters,omitempty"`
}

// PageInfo converts the wire metadata.
func (p Pagination) PageInfo() shared.PageInfo {
	return shared.PageInfo{
		CurrentPage: p.CurrentPage,
		TotalPages:  p.TotalPages,
		TotalItems:  p.TotalItems,
		PageSize:    p.PageSize,
		HasNext:     p.HasNext,
		HasPrevious: p.HasPrevious,
	}
}

// ClientPage is one page of the client listing. Pagination is nil when the
// API omitted it.
type ClientPage struct {
	Clients    []Client
	Pagination *Pagination
}

// PageInfo returns the server metadata or the degraded fallback.
func (p *ClientPage) PageInfo(page, pageSize int) shared.PageInfo {
	if p == nil {
		return shared.FallbackPagination(page, pageSize, 0)
	}
	if p.Pagination == nil {
		return shared.FallbackPagination(page, pageSize, len(p.Clients))
	}
	info := p.Pagination.PageInfo()
	if info.PageSize <= 0 {
		info.PageSize = pageSize
	}
	if info.CurrentPage <= 0 {
		info.CurrentPage = page
	}
	return info
}

type envelope struct {
	Code       int             `json:"code"`
	Message    string          `json:"message"`
	Result     json.RawMessage `json:"result"`
	Pagination *Pagination     `json:"pagination"`
}
