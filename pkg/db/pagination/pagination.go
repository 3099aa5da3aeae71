package pagination

// Page is a limit/offset window over a report result set.
type Page struct {
	Number int `form:"page,default=0" validate:"gte=0"`
	Size   int `form:"page_size,default=50" validate:"gte=1,lte=500"` // Min 1, Max 500
}

// PageInfo describes the window actually returned.
type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
	HasMore    bool  `json:"has_more"`
}

const defaultSize = 50

// Normalize clamps the page window to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = defaultSize
	}
	if p.Size > 500 {
		p.Size = 500
	}
	return p
}

// Offset returns the row offset for the window.
func (p Page) Offset() int {
	p = p.Normalize()
	return p.Number * p.Size
}

// Info builds PageInfo for a total row count.
func (p Page) Info(total int64) PageInfo {
	p = p.Normalize()
	return PageInfo{
		Page:       p.Number,
		PageSize:   p.Size,
		TotalCount: total,
		HasMore:    int64(p.Offset()+p.Size) < total,
	}
}

// Slice applies the window to an in-memory result set.
func Slice[T any](rows []T, p Page) []T {
	p = p.Normalize()
	start := p.Offset()
	if start >= len(rows) {
		return nil
	}
	end := start + p.Size
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}
