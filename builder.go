package searchbridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/searchbridge/internal/domain/search/filter"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/query"
)

// QueryBuilder is a fluent builder for reconciled searches.
// Invalid arguments are collected and reported by Get or Paginate.
type QueryBuilder struct {
	client  *Client
	docType string
	term    string

	filters []filter.Clause
	sorts   []query.Sort
	offset  *int
	size    *int
	errs    []error
}

// Search starts a query for the given document type. An empty term matches everything.
func (c *Client) Search(docType, term string) *QueryBuilder {
	return &QueryBuilder{client: c, docType: docType, term: term}
}

// Where adds a filter. A scalar matches exactly, a slice of any element type matches
// any of its values, and a string-keyed map with ">", ">=", "<" or "<=" keys becomes a
// numeric range. Exact-match values containing < or > fail when the query runs.
func (b *QueryBuilder) Where(key string, value any) *QueryBuilder {
	c, err := filter.New(key, value)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.filters = append(b.filters, c)
	return b
}

// Between adds an inclusive numeric range filter.
func (b *QueryBuilder) Between(key string, lo, hi float64) *QueryBuilder {
	return b.Where(key, map[string]any{">=": lo, "<=": hi})
}

// OrderBy adds a sort directive. Direction is "asc" or "desc"; empty means ascending.
func (b *QueryBuilder) OrderBy(field, direction string) *QueryBuilder {
	s, err := query.NewSort(field, direction)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.sorts = append(b.sorts, s)
	return b
}

// Skip sets the number of hits to skip.
func (b *QueryBuilder) Skip(n int) *QueryBuilder {
	b.offset = &n
	return b
}

// Take caps the number of hits returned.
func (b *QueryBuilder) Take(n int) *QueryBuilder {
	b.size = &n
	return b
}

func (b *QueryBuilder) descriptor() (query.Descriptor, error) {
	if len(b.errs) > 0 {
		return query.Descriptor{}, errors.Join(b.errs...)
	}
	return query.NewDescriptor(b.docType, b.term, b.filters, b.sorts)
}

// Get runs the query and returns reconciled records.
func (b *QueryBuilder) Get(ctx context.Context) (*Results, error) {
	d, err := b.descriptor()
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", b.docType, err)
	}
	res, err := b.client.svc.Search(ctx, d, query.Pagination{Offset: b.offset, Size: b.size})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", b.docType, err)
	}
	out := fromResult(res)
	return &out, nil
}

// Paginate runs the query for one 1-based page. Skip and Take are ignored.
func (b *QueryBuilder) Paginate(ctx context.Context, perPage, page int) (*Page, error) {
	d, err := b.descriptor()
	if err != nil {
		return nil, fmt.Errorf("paginate %s: %w", b.docType, err)
	}
	p, err := b.client.svc.Paginate(ctx, d, perPage, page)
	if err != nil {
		return nil, fmt.Errorf("paginate %s: %w", b.docType, err)
	}
	return &Page{
		Results:   fromResult(&p.Result),
		PerPage:   p.PerPage(),
		Number:    p.Number(),
		PageCount: p.PageCount(),
		Pages:     p.Pages(),
	}, nil
}
