// Package compiler turns engine-agnostic search descriptors into Elasticsearch wire queries.
//
// Compilation is pure: the same descriptor, profiles and clock always produce the same
// WireQuery. The only time-dependent input is the recency window of a type profile, which
// reads the injected clock.
package compiler

import (
	"time"

	"github.com/kailas-cloud/searchbridge/internal/db"
	"github.com/kailas-cloud/searchbridge/internal/domain"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/filter"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/profile"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/query"
)

// Clock returns the current time.
type Clock func() time.Time

// Option configures a Compiler.
type Option func(*Compiler)

// WithClock overrides the wall clock used by recency windows.
func WithClock(c Clock) Option {
	return func(cmp *Compiler) {
		if c != nil {
			cmp.now = c
		}
	}
}

// Compiler compiles descriptors against one index and a fixed profile set.
type Compiler struct {
	index    string
	profiles profile.Set
	now      Clock
}

// New creates a compiler for the given index.
func New(index string, profiles profile.Set, opts ...Option) *Compiler {
	c := &Compiler{index: index, profiles: profiles, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Index returns the target index name.
func (c *Compiler) Index() string { return c.index }

// Profiles returns the type profiles the compiler was built with.
func (c *Compiler) Profiles() profile.Set { return c.profiles }

// Compile builds a wire query from a descriptor and pagination options.
func (c *Compiler) Compile(d query.Descriptor, p query.Pagination) (*db.WireQuery, error) {
	if d.DocType() == "" {
		return nil, domain.Compilef("document type is required")
	}

	equality, ranges := filter.Partition(d.Filters())

	rangeFilter, err := renderRanges(ranges)
	if err != nil {
		return nil, err
	}

	qs, err := renderQueryString(d.Term(), equality)
	if err != nil {
		return nil, err
	}

	q := &db.WireQuery{
		Index:       c.index,
		DocType:     d.DocType(),
		QueryString: qs,
		Range:       rangeFilter,
		Sort:        renderSort(d.Sorts()),
		TrackScores: true,
	}

	if prof, ok := c.profiles.Lookup(d.DocType()); ok {
		applyBoost(q, prof)
		// An explicit range on the recency field replaces the window, unless all of
		// its bounds were dropped.
		if prof.Recency != nil && q.Range[prof.Recency.Field] == nil {
			applyRecency(q, *prof.Recency, c.now())
		}
	}

	if err := applyPagination(q, p); err != nil {
		return nil, err
	}
	return q, nil
}

func applyBoost(q *db.WireQuery, prof profile.Profile) {
	if len(prof.Boost) == 0 {
		return
	}
	q.Fields = make([]string, len(prof.Boost))
	for i, f := range prof.Boost {
		q.Fields[i] = f.String()
	}
	q.Combine = db.BestFields
}

func applyPagination(q *db.WireQuery, p query.Pagination) error {
	if p.Offset != nil {
		if *p.Offset < 0 {
			return domain.Compilef("offset must not be negative, got %d", *p.Offset)
		}
		from := *p.Offset
		q.From = &from
	}
	if p.Size != nil {
		if *p.Size < 0 {
			return domain.Compilef("size must not be negative, got %d", *p.Size)
		}
		size := *p.Size
		q.Size = &size
	}
	return nil
}

func renderSort(sorts []query.Sort) []db.SortField {
	if len(sorts) == 0 {
		return nil
	}
	out := make([]db.SortField, len(sorts))
	for i, s := range sorts {
		out[i] = db.SortField{Field: s.Field, Order: string(s.Direction)}
	}
	return out
}
