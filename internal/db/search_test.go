package db

import (
	"encoding/json"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestWireQuery_Body(t *testing.T) {
	q := &WireQuery{
		Index:       "app",
		DocType:     "posts",
		QueryString: "+*phone* +(category_id:(17) OR category_id:(56))",
		Fields:      []string{"title^100", "message"},
		Combine:     BestFields,
		Range:       map[string]Bounds{"price": {GT: 10, LTE: 500}, "area": {GTE: 1}},
		Exclude:     map[string]Bounds{"up_time": {LTE: 1000}},
		Sort:        []SortField{{Field: "price", Order: "desc"}},
		From:        intPtr(10),
		Size:        intPtr(10),
		TrackScores: true,
	}

	got, err := json.Marshal(q.Body())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"from":10,"query":{"bool":{"filter":[{"range":{"area":{"gte":1}}},` +
		`{"range":{"price":{"gt":10,"lte":500}}}],` +
		`"must":{"query_string":{"fields":["title^100","message"],` +
		`"query":"+*phone* +(category_id:(17) OR category_id:(56))","type":"best_fields"}},` +
		`"must_not":[{"range":{"up_time":{"lte":1000}}}]}},` +
		`"size":10,"sort":[{"price":"desc"}],"track_scores":true}`
	if string(got) != want {
		t.Errorf("body mismatch:\ngot:  %s\nwant: %s", got, want)
	}
}

func TestWireQuery_BodyMinimal(t *testing.T) {
	q := &WireQuery{Index: "app", DocType: "posts", QueryString: "+**"}
	body := q.Body()

	for _, key := range []string{"sort", "from", "size", "track_scores"} {
		if _, ok := body[key]; ok {
			t.Errorf("unexpected key %q in minimal body", key)
		}
	}
	boolQuery := body["query"].(map[string]any)["bool"].(map[string]any)
	if _, ok := boolQuery["filter"]; ok {
		t.Error("unexpected filter section")
	}
	if _, ok := boolQuery["must_not"]; ok {
		t.Error("unexpected must_not section")
	}
}

func TestWireQuery_WithPageDoesNotMutate(t *testing.T) {
	q := &WireQuery{
		Index: "app", DocType: "posts", QueryString: "+**",
		Range: map[string]Bounds{"price": {GT: 1}},
		Size:  intPtr(5),
	}
	p := q.WithPage(20, 10)

	if *p.From != 20 || *p.Size != 10 {
		t.Errorf("page: from=%d size=%d", *p.From, *p.Size)
	}
	if q.From != nil || *q.Size != 5 {
		t.Error("WithPage mutated the original query")
	}
	p.Range["price"][GT] = 99
	if q.Range["price"][GT] != 1 {
		t.Error("WithPage shares range maps with the original")
	}
}

func TestSearchResult_IDs(t *testing.T) {
	r := &SearchResult{Total: 2, Hits: []Hit{{ID: "b", Score: 2}, {ID: "a", Score: 1}}}
	ids := r.IDs()
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "a" {
		t.Errorf("IDs() = %v", ids)
	}
	var nilRes *SearchResult
	if nilRes.IDs() != nil {
		t.Error("nil result must yield nil ids")
	}
}
