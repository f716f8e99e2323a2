package core

// DefaultPageSize is the page size of the main items table.
const DefaultPageSize = 50

// ProcessedPageSize is the page size of the processed-items view.
const ProcessedPageSize = 10

// Page is one page of a result set.
type Page struct {
	Items      []Item `json:"items"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalPages int    `json:"total_pages"`
	TotalItems int    `json:"total_items"`
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool {
	return p.Page > 1 && p.Page <= p.TotalPages+1
}

// HasNext reports whether a next page exists.
func (p Page) HasNext() bool {
	return p.Page >= 1 && p.Page < p.TotalPages
}

// Paginate returns the 1-indexed page of items covering
// [(page-1)*size, page*size). Out-of-range pages yield an empty slice,
// never an error. A non-positive size uses DefaultPageSize.
func Paginate(items []Item, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(items)
	p := Page{
		Items:      []Item{},
		Page:       page,
		PageSize:   size,
		TotalPages: (total + size - 1) / size,
		TotalItems: total,
	}
	if page < 1 || page > p.TotalPages {
		return p
	}

	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	p.Items = items[start:end]
	return p
}
