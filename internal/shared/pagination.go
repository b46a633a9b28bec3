package shared

const (
	// DefaultPage is the first page served when none is requested.
	DefaultPage = 1
	// DefaultLimit bounds list pages when no limit is requested.
	DefaultLimit = 20
	// MaxLimit caps a single page regardless of the request.
	MaxLimit = 100
)

// ListFilters represents standard list page filters.
type ListFilters struct {
	Page    int
	Limit   int
	Search  string
	SortBy  string
	SortDir string
}

// Clamp normalises page and limit into their allowed ranges.
func (f *ListFilters) Clamp() {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
}

// Offset returns the row offset for the current page.
func (f ListFilters) Offset() int {
	offset := (f.Page - 1) * f.Limit
	if offset < 0 {
		return 0
	}
	return offset
}
