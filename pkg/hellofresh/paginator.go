package hellofresh

import (
	"context"
	"errors"
	"math"

	errs "recipecards/pkg/errors"
)

// PaginatorOptions tunes page counting.
type PaginatorOptions struct {
	// CeilPageCount fetches exactly the pages needed to cover the remaining
	// results. By default the number of additional pages is
	// round((total-skip)/limit), which can request a page past the end.
	CeilPageCount bool
}

// Paginator walks the search results one page at a time. It fetches a page
// only when Next is called and cannot be restarted.
//
//	p := NewPaginator(client, query, cred, PaginatorOptions{})
//	for p.Next(ctx) {
//		handle(p.Page())
//	}
//	if err := p.Err(); err != nil {
//		...
//	}
type Paginator struct {
	searcher Searcher
	cred     Credential
	opts     PaginatorOptions

	query   SearchQuery
	page    *SearchPage
	index   int
	pages   int
	fetched bool
	done    bool
	err     error
}

// NewPaginator returns a paginator starting at initial.
func NewPaginator(searcher Searcher, initial SearchQuery, cred Credential, opts PaginatorOptions) *Paginator {
	return &Paginator{
		searcher: searcher,
		cred:     cred,
		opts:     opts,
		query:    initial.WithOffset(initial.Offset),
	}
}

// Next fetches the next page. It returns false when the catalog is exhausted
// or an error occurred; check Err afterwards.
func (p *Paginator) Next(ctx context.Context) bool {
	if p.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		return p.fail(err)
	}

	if p.fetched {
		if p.index >= p.pages {
			p.done = true
			return false
		}
		p.query = p.query.Next()
	}

	page, err := p.searcher.Search(ctx, p.query, p.cred)
	if err != nil {
		if p.fetched && errors.Is(err, errs.ErrEmptyCatalog) {
			p.done = true
			p.page = nil
			return false
		}
		return p.fail(err)
	}

	if !p.fetched {
		p.pages = PageCount(page.Total, page.Skip, p.query.Limit, p.opts.CeilPageCount)
		p.fetched = true
	} else {
		p.index++
	}
	p.page = page
	return true
}

func (p *Paginator) fail(err error) bool {
	p.err = err
	p.done = true
	p.page = nil
	return false
}

// Page returns the page fetched by the last successful Next.
func (p *Paginator) Page() *SearchPage {
	return p.page
}

// Query returns the query that produced the current page.
func (p *Paginator) Query() SearchQuery {
	return p.query
}

// PageNumber is the 1-based number of the current page.
func (p *Paginator) PageNumber() int {
	return p.index + 1
}

// Pages is the number of additional pages after the first, known once the
// first page has been fetched.
func (p *Paginator) Pages() int {
	return p.pages
}

// Err returns the error that stopped iteration, if any.
func (p *Paginator) Err() error {
	return p.err
}

// PageCount returns how many pages follow the first one.
func PageCount(total, skip, limit int, ceil bool) int {
	if limit <= 0 {
		return 0
	}
	remaining := float64(total - skip)
	var pages float64
	if ceil {
		pages = math.Ceil(remaining/float64(limit)) - 1
	} else {
		pages = math.Round(remaining / float64(limit))
	}
	if pages < 0 {
		return 0
	}
	return int(pages)
}
