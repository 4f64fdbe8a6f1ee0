package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/clubhub/core"
	"github.com/trezcool/clubhub/core/pagination"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// pager reads `page` & `page_size` query params and windows result lists with them.
type pager struct {
	defaultSize int
	maxSize     int
}

func newPager(conf core.PaginationConfig) pager {
	p := pager{defaultSize: conf.DefaultPageSize, maxSize: conf.MaxPageSize}
	if p.defaultSize < 1 {
		p.defaultSize = 10
	}
	if p.maxSize < p.defaultSize {
		p.maxSize = p.defaultSize
	}
	return p
}

type Page struct {
	Page     int
	PageSize int
}

func (p pager) Bind(ctx echo.Context) (Page, error) {
	page := Page{Page: 1, PageSize: p.defaultSize}
	err := echo.QueryParamsBinder(ctx).
		Int("page", &page.Page).
		Int("page_size", &page.PageSize).
		BindError()
	if err != nil {
		return Page{}, err
	}
	if page.PageSize > p.maxSize {
		page.PageSize = p.maxSize
	}
	return page, nil
}

// paginate windows `data`; out of range pages are clamped.
func paginate[T any](data []T, page Page) pagination.Window[T] {
	return pagination.Paginate(data, page.Page, page.PageSize)
}
