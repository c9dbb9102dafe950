package orderpage

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/buysell-kh/backoffice/internal/backend"
	"github.com/buysell-kh/backoffice/internal/phone"
)

// FilterField names one search criterion.
type FilterField string

// Search criteria as named in forms and query strings.
const (
	FilterID      FilterField = "search_id"
	FilterName    FilterField = "search_name"
	FilterPhone   FilterField = "search_phone"
	FilterAddress FilterField = "search_address"
)

// Filters holds the listing criteria as typed.
type Filters struct {
	ID      string `json:"search_id"`
	Name    string `json:"search_name"`
	Phone   string `json:"search_phone"`
	Address string `json:"search_address"`
}

// FiltersFromValues reads the criteria from a form or query string.
func FiltersFromValues(v url.Values) Filters {
	return Filters{
		ID:      v.Get(string(FilterID)),
		Name:    v.Get(string(FilterName)),
		Phone:   v.Get(string(FilterPhone)),
		Address: v.Get(string(FilterAddress)),
	}
}

// Trimmed returns f with surrounding whitespace removed.
func (f Filters) Trimmed() Filters {
	return Filters{
		ID:      strings.TrimSpace(f.ID),
		Name:    strings.TrimSpace(f.Name),
		Phone:   strings.TrimSpace(f.Phone),
		Address: strings.TrimSpace(f.Address),
	}
}

// Active counts the populated criteria.
func (f Filters) Active() int {
	t := f.Trimmed()
	n := 0
	for _, v := range []string{t.ID, t.Name, t.Phone, t.Address} {
		if v != "" {
			n++
		}
	}
	return n
}

// Empty reports whether no criterion is set.
func (f Filters) Empty() bool { return f.Active() == 0 }

// PhoneOnly reports whether the phone is the only criterion.
func (f Filters) PhoneOnly() bool {
	t := f.Trimmed()
	return t.Phone != "" && t.ID == "" && t.Name == "" && t.Address == ""
}

// Clear returns f with field emptied. Unknown fields leave f unchanged.
func (f Filters) Clear(field FilterField) (Filters, bool) {
	switch field {
	case FilterID:
		f.ID = ""
	case FilterName:
		f.Name = ""
	case FilterPhone:
		f.Phone = ""
	case FilterAddress:
		f.Address = ""
	default:
		return f, false
	}
	return f, true
}

// Params builds the listing request. A non numeric id is dropped and the
// phone is sent in the 3-3-3 display format the API stores.
func (f Filters) Params(page, limit int) backend.ListParams {
	t := f.Trimmed()
	out := backend.ListParams{
		Page:  page,
		Limit: limit,
		Filters: backend.Filters{
			Name:    t.Name,
			Address: t.Address,
		},
	}
	if id, err := strconv.ParseInt(t.ID, 10, 64); err == nil {
		out.Filters.ID = id
	}
	if t.Phone != "" {
		out.Filters.Phone = phone.FormatForDisplay(t.Phone)
	}
	return out
}
