// Package pagination slices an in-memory collection into pages.
//
// The Paginator never sorts or filters: callers filter/order the collection first
// and hand the result in. Every navigation operation clamps instead of failing.
package pagination

const (
	DefaultPageSize = 10
	DefaultPage     = 1
)

// Window is the page of a collection visible for a given page number and page size.
type Window[T any] struct {
	Items       []T `json:"items"`
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	TotalItems  int `json:"total_items"`
	TotalPages  int `json:"total_pages"`
}

func (w Window[T]) HasNext() bool     { return w.CurrentPage < w.TotalPages }
func (w Window[T]) HasPrevious() bool { return w.CurrentPage > 1 }

type options struct {
	pageSize int
	page     int
}

type Option func(*options)

// WithPageSize sets the initial page size (default: 10).
func WithPageSize(n int) Option {
	return func(o *options) { o.pageSize = n }
}

// WithPage sets the initial page (default: 1).
func WithPage(n int) Option {
	return func(o *options) { o.page = n }
}

// Paginator holds the navigation state over a collection.
// It is not safe for concurrent use; it belongs to a single owner.
type Paginator[T any] struct {
	data     []T
	page     int
	pageSize int
}

func New[T any](data []T, opts ...Option) *Paginator[T] {
	o := options{pageSize: DefaultPageSize, page: DefaultPage}
	for _, opt := range opts {
		opt(&o)
	}
	p := &Paginator[T]{data: data, pageSize: clampPageSize(o.pageSize)}
	p.SetPage(o.page)
	return p
}

// Paginate returns the window of `data` at `page` for `pageSize`, clamping both.
func Paginate[T any](data []T, page, pageSize int) Window[T] {
	return New(data, WithPageSize(pageSize), WithPage(page)).Window()
}

// TotalPages returns max(1, ceil(totalItems / pageSize)).
func TotalPages(totalItems, pageSize int) int {
	pageSize = clampPageSize(pageSize)
	if totalItems <= 0 {
		return 1
	}
	pages := totalItems / pageSize
	if totalItems%pageSize != 0 {
		pages++
	}
	return pages
}

func (p *Paginator[T]) TotalItems() int  { return len(p.data) }
func (p *Paginator[T]) TotalPages() int  { return TotalPages(len(p.data), p.pageSize) }
func (p *Paginator[T]) CurrentPage() int { return p.page }
func (p *Paginator[T]) PageSize() int    { return p.pageSize }

// Items returns the slice of the source visible on the current page.
// It shares the source storage but is capped, so appending to it never overwrites the source.
func (p *Paginator[T]) Items() []T {
	start := (p.page - 1) * p.pageSize
	if start >= len(p.data) {
		return []T{}
	}
	end := len(p.data)
	if p.pageSize < end-start {
		end = start + p.pageSize
	}
	return p.data[start:end:end]
}

func (p *Paginator[T]) Window() Window[T] {
	return Window[T]{
		Items:       p.Items(),
		CurrentPage: p.page,
		PageSize:    p.pageSize,
		TotalItems:  len(p.data),
		TotalPages:  p.TotalPages(),
	}
}

func (p *Paginator[T]) NextPage()     { p.SetPage(p.page + 1) }
func (p *Paginator[T]) PreviousPage() { p.SetPage(p.page - 1) }
func (p *Paginator[T]) FirstPage()    { p.page = 1 }
func (p *Paginator[T]) LastPage()     { p.page = p.TotalPages() }

// SetPage moves to page n, clamped into [1, TotalPages].
func (p *Paginator[T]) SetPage(n int) {
	if total := p.TotalPages(); n > total {
		n = total
	}
	if n < 1 {
		n = 1
	}
	p.page = n
}

// SetPageSize replaces the page size (min 1) and always goes back to the first page.
func (p *Paginator[T]) SetPageSize(n int) {
	p.pageSize = clampPageSize(n)
	p.page = 1
}

// SetData replaces the source collection, keeping the current page within range.
func (p *Paginator[T]) SetData(data []T) {
	p.data = data
	p.SetPage(p.page)
}

func clampPageSize(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
