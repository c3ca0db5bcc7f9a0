package util

// DefaultPageSize is the backend's page size when it does not say otherwise.
const DefaultPageSize = 10

// Page is the pagination state of one list screen.
type Page struct {
	Number  int
	Total   int
	Pages   int
	HasPrev bool
	HasNext bool
}

func (p Page) Prev() int { return p.Number - 1 }

func (p Page) Next() int { return p.Number + 1 }

// Calculate builds the page meta from a list response. next and previous are
// the backend's links; their presence wins over arithmetic on count.
func Calculate(page, count, size int, next, previous *string) Page {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = DefaultPageSize
	}
	pages := (count + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	return Page{
		Number:  page,
		Total:   count,
		Pages:   pages,
		HasPrev: previous != nil || (next == nil && page > 1),
		HasNext: next != nil,
	}
}
