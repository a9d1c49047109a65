package chi

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kailas-cloud/searchbridge/internal/domain/record"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/filter"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/query"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/result"
)

// FilterItem is one filter clause. Value is a scalar, a list, or an operator map.
type FilterItem struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// SortItem is one ordering directive.
type SortItem struct {
	Field     string `json:"field"`
	Direction string `json:"direction,omitempty"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Type    string       `json:"type"`
	Term    string       `json:"term"`
	Filters []FilterItem `json:"filters,omitempty"`
	Sort    []SortItem   `json:"sort,omitempty"`
	Offset  *int         `json:"offset,omitempty"`
	Size    *int         `json:"size,omitempty"`
}

// PageRequest is the body of POST /v1/search/page.
type PageRequest struct {
	SearchRequest
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

// RecordItem is an authoritative record on the wire.
type RecordItem struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Fields map[string]any `json:"fields"`
}

// CleanupItem reports orphans that could not be removed from the index.
type CleanupItem struct {
	IDs   []string `json:"ids"`
	Error string   `json:"error"`
}

// SearchResponse is a reconciled search result.
type SearchResponse struct {
	Total   int          `json:"total"`
	Records []RecordItem `json:"records"`
	Orphans []string     `json:"orphans,omitempty"`
	Cleanup *CleanupItem `json:"cleanup,omitempty"`
}

// PageResponse is one reconciled page.
type PageResponse struct {
	SearchResponse
	PerPage   int     `json:"per_page"`
	Page      int     `json:"page"`
	PageCount float64 `json:"page_count"`
	Pages     int     `json:"pages"`
}

// ChangesRequest is the body of POST /v1/changes.
type ChangesRequest struct {
	Upserts []RecordItem `json:"upserts"`
	Deletes []record.Key `json:"deletes"`
}

// ChangesResponse acknowledges applied changes.
type ChangesResponse struct {
	Upserts int `json:"upserts"`
	Deletes int `json:"deletes"`
}

// decodeJSON decodes one JSON document, keeping numbers as json.Number.
func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("invalid request body: trailing data")
	}
	return nil
}

func (r SearchRequest) toDomain() (query.Descriptor, query.Pagination, error) {
	clauses := make([]filter.Clause, 0, len(r.Filters))
	for _, f := range r.Filters {
		c, err := filter.New(f.Key, f.Value)
		if err != nil {
			return query.Descriptor{}, query.Pagination{}, err
		}
		clauses = append(clauses, c)
	}

	sorts := make([]query.Sort, 0, len(r.Sort))
	for _, s := range r.Sort {
		srt, err := query.NewSort(s.Field, s.Direction)
		if err != nil {
			return query.Descriptor{}, query.Pagination{}, err
		}
		sorts = append(sorts, srt)
	}

	d, err := query.NewDescriptor(r.Type, r.Term, clauses, sorts)
	if err != nil {
		return query.Descriptor{}, query.Pagination{}, err
	}
	return d, query.Pagination{Offset: r.Offset, Size: r.Size}, nil
}

func (r ChangesRequest) toDomain() ([]record.Record, []record.Key, error) {
	upserts := make([]record.Record, 0, len(r.Upserts))
	for i, item := range r.Upserts {
		rec, err := record.New(item.ID, item.Type, item.Fields)
		if err != nil {
			return nil, nil, fmt.Errorf("upserts[%d]: %w", i, err)
		}
		upserts = append(upserts, rec)
	}
	for i, k := range r.Deletes {
		if k.ID == "" || k.Type == "" {
			return nil, nil, fmt.Errorf("deletes[%d]: type and id are required", i)
		}
	}
	return upserts, r.Deletes, nil
}

func resultToResponse(res *result.Result) SearchResponse {
	out := SearchResponse{
		Total:   res.Total(),
		Records: make([]RecordItem, len(res.Records())),
		Orphans: res.Orphans(),
	}
	for i, rec := range res.Records() {
		out.Records[i] = RecordItem{ID: rec.ID(), Type: rec.Type(), Fields: rec.Fields()}
	}
	if c := res.Cleanup(); c != nil {
		out.Cleanup = &CleanupItem{IDs: c.IDs, Error: c.Error()}
	}
	return out
}

func pageToResponse(p *result.Page) PageResponse {
	return PageResponse{
		SearchResponse: resultToResponse(&p.Result),
		PerPage:        p.PerPage(),
		Page:           p.Number(),
		PageCount:      p.PageCount(),
		Pages:          p.Pages(),
	}
}
