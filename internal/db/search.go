package db

import (
	"maps"
	"slices"
)

// CombineMode selects how per-field scores of a multi-field query are merged.
type CombineMode string

// BestFields takes the best-scoring field (disjunction max) instead of summing.
const BestFields CombineMode = "best_fields"

// Bound is a range boundary keyword.
type Bound string

// Range boundary keywords.
const (
	GT  Bound = "gt"
	GTE Bound = "gte"
	LT  Bound = "lt"
	LTE Bound = "lte"
)

// Bounds maps boundary keywords to values for one field.
type Bounds map[Bound]float64

// SortField is one entry of the sort order.
type SortField struct {
	Field string
	Order string // asc, desc
}

// WireQuery is a compiled search request. Treat it as immutable once compiled.
type WireQuery struct {
	Index       string
	DocType     string
	QueryString string
	Fields      []string
	Combine     CombineMode
	Range       map[string]Bounds
	Exclude     map[string]Bounds
	Sort        []SortField
	From        *int
	Size        *int
	TrackScores bool
}

// WithPage returns a copy of q with from/size replaced.
func (q *WireQuery) WithPage(from, size int) *WireQuery {
	cp := q.clone()
	cp.From = &from
	cp.Size = &size
	return cp
}

func (q *WireQuery) clone() *WireQuery {
	cp := *q
	cp.Fields = slices.Clone(q.Fields)
	cp.Sort = slices.Clone(q.Sort)
	cp.Range = cloneRanges(q.Range)
	cp.Exclude = cloneRanges(q.Exclude)
	if q.From != nil {
		v := *q.From
		cp.From = &v
	}
	if q.Size != nil {
		v := *q.Size
		cp.Size = &v
	}
	return &cp
}

func cloneRanges(in map[string]Bounds) map[string]Bounds {
	if in == nil {
		return nil
	}
	out := make(map[string]Bounds, len(in))
	for k, v := range in {
		out[k] = maps.Clone(v)
	}
	return out
}

// Body renders the Elasticsearch request body.
func (q *WireQuery) Body() map[string]any {
	qs := map[string]any{"query": q.QueryString}
	if len(q.Fields) > 0 {
		qs["fields"] = slices.Clone(q.Fields)
	}
	if q.Combine != "" {
		qs["type"] = string(q.Combine)
	}

	boolQuery := map[string]any{
		"must": map[string]any{"query_string": qs},
	}
	if f := rangeClauses(q.Range); len(f) > 0 {
		boolQuery["filter"] = f
	}
	if f := rangeClauses(q.Exclude); len(f) > 0 {
		boolQuery["must_not"] = f
	}

	body := map[string]any{
		"query": map[string]any{"bool": boolQuery},
	}
	if q.TrackScores {
		body["track_scores"] = true
	}
	if len(q.Sort) > 0 {
		sort := make([]map[string]string, len(q.Sort))
		for i, s := range q.Sort {
			sort[i] = map[string]string{s.Field: s.Order}
		}
		body["sort"] = sort
	}
	if q.From != nil {
		body["from"] = *q.From
	}
	if q.Size != nil {
		body["size"] = *q.Size
	}
	return body
}

// rangeClauses renders one range query per field, ordered by field name.
func rangeClauses(ranges map[string]Bounds) []map[string]any {
	if len(ranges) == 0 {
		return nil
	}
	fields := slices.Sorted(maps.Keys(ranges))
	out := make([]map[string]any, 0, len(fields))
	for _, f := range fields {
		bounds := make(map[string]float64, len(ranges[f]))
		for b, v := range ranges[f] {
			bounds[string(b)] = v
		}
		out = append(out, map[string]any{"range": map[string]any{f: bounds}})
	}
	return out
}

// SearchResult is the raw engine response.
type SearchResult struct {
	Total int
	Hits  []Hit
}

// Hit is a single ranked document reference.
type Hit struct {
	ID    string
	Score float64
}

// IDs returns hit identifiers in rank order.
func (r *SearchResult) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		ids[i] = h.ID
	}
	return ids
}
