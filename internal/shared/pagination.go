package shared

// Ellipsis marks a gap in the rendered page list.
const Ellipsis = -1

// PageInfo is the normalized listing metadata every screen renders from.
type PageInfo struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	TotalItems  int  `json:"total_items"`
	PageSize    int  `json:"page_size"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
	// Degraded is set when the upstream omitted pagination and the values
	// were inferred from the page itself.
	Degraded bool `json:"degraded,omitempty"`
}

// FallbackPagination infers metadata from the number of rows returned for a
// page. TotalItems only counts the current page. The page count reaches one
// past the current page while a full page arrived, so the pager can move on
// until a short page ends the listing. The result is flagged as degraded.
func FallbackPagination(page, pageSize, count int) PageInfo {
	if pageSize <= 0 {
		pageSize = 10
	}
	if page <= 0 {
		page = 1
	}
	hasNext := count >= pageSize
	totalPages := page
	switch {
	case hasNext:
		totalPages = page + 1
	case count == 0:
		totalPages = page - 1
	}
	return PageInfo{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalItems:  count,
		PageSize:    pageSize,
		HasNext:     hasNext,
		HasPrevious: page > 1,
		Degraded:    true,
	}
}

// SinglePage describes a result that fits on one page, e.g. a phone lookup hit.
func SinglePage(count, pageSize int) PageInfo {
	if pageSize <= 0 {
		pageSize = 10
	}
	return PageInfo{CurrentPage: 1, TotalPages: 1, TotalItems: count, PageSize: pageSize}
}

// Valid reports whether page may be requested.
func (p PageInfo) Valid(page int) bool {
	return page >= 1 && page <= p.TotalPages
}

// ShowControls reports whether pagination controls should render.
func (p PageInfo) ShowControls(rows int) bool {
	return rows > 0 && p.TotalPages > 1
}

// PageNumbers lists the page buttons: every page when there are five or
// fewer, otherwise the first three, an Ellipsis and the last page.
func PageNumbers(totalPages int) []int {
	if totalPages <= 0 {
		return nil
	}
	if totalPages <= 5 {
		out := make([]int, totalPages)
		for i := range out {
			out[i] = i + 1
		}
		return out
	}
	return []int{1, 2, 3, Ellipsis, totalPages}
}

// DisplayRange returns the 1-based first and last item shown on the current
// page together with the total used in the "showing a-b of n" caption.
func DisplayRange(p PageInfo) (from, to, total int) {
	if p.TotalItems <= 0 || p.PageSize <= 0 {
		return 0, 0, 0
	}
	page := p.CurrentPage
	if page <= 0 {
		page = 1
	}
	from = (page-1)*p.PageSize + 1
	if p.Degraded {
		// TotalItems only counts the rows of this page.
		to = from + p.TotalItems - 1
		return from, to, to
	}
	to = page * p.PageSize
	if to > p.TotalItems {
		to = p.TotalItems
	}
	if from > to {
		from = to
	}
	return from, to, p.TotalItems
}
