package core

import "math"

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Page is a requested window over a list.
type Page struct {
	Page  int `query:"page"`
	Limit int `query:"limit"`
}

// Clean applies the defaults and bounds.
func (p *Page) Clean() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	// Page*Limit must fit in an int
	if maxPage := math.MaxInt / p.Limit; p.Page > maxPage {
		p.Page = maxPage
	}
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// Pagination describes where a Page sits in the full result set.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

func NewPagination(p Page, total int) Pagination {
	p.Clean()
	totalPages := (total + p.Limit - 1) / p.Limit
	return Pagination{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
	}
}

// Paginate slices items according to p. It is used by stores that filter in memory.
func Paginate[T any](items []T, p Page) []T {
	p.Clean()
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
