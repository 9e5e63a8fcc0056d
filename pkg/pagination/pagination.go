package pagination

const (
	// DefaultPage is the page served when none is requested.
	DefaultPage = 1
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 10
	// MaxLimit caps how many rows any page query can request.
	MaxLimit = 100
)

// Params holds page/limit inputs from controllers or services.
type Params struct {
	Page  int
	Limit int
}

// Normalize applies the default page and the supplied default/maximum limits.
func Normalize(p Params, defaultLimit int) Params {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	switch {
	case p.Limit <= 0:
		p.Limit = defaultLimit
	case p.Limit > MaxLimit:
		p.Limit = MaxLimit
	}
	return p
}

// Offset returns the number of rows to skip for the page.
func (p Params) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// TotalPages returns how many pages of size limit hold total rows.
func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// Page is the paginated list envelope returned to clients.
type Page[T any] struct {
	Items       []T   `json:"items"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
}

// NewPage assembles a Page for already-normalized params.
func NewPage[T any](items []T, total int64, p Params) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:       items,
		TotalItems:  total,
		TotalPages:  TotalPages(total, p.Limit),
		CurrentPage: p.Page,
		PageSize:    p.Limit,
	}
}
