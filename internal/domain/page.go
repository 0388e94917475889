package domain

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// PaginationParams selects one page of a user's plans, newest first.
type PaginationParams struct {
	Page  int // 1-based
	Limit int
}

// NewPaginationParams applies defaults to the optional page and limit query
// values. Values below 1 are ignored and the limit is clamped to maxPageLimit.
func NewPaginationParams(page, limit *int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: defaultPageLimit}
	if page != nil && *page > 0 {
		p.Page = *page
	}
	if limit != nil && *limit > 0 {
		p.Limit = min(*limit, maxPageLimit)
	}
	return p
}

// Offset is the number of plans before the page, for SQL OFFSET and Mongo skip.
func (p PaginationParams) Offset() int {
	return (p.Page - 1) * p.Limit
}
