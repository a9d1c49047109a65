package search

import (
	"context"

	"github.com/kailas-cloud/searchbridge/internal/db"
	"github.com/kailas-cloud/searchbridge/internal/domain/record"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/query"
)

// --- Mocks ---

type mockBackend struct {
	searchResult *db.SearchResult
	searchErr    error
	bulkResult   *db.BulkResult
	bulkErr      error

	queries []*db.WireQuery
	bulks   []*db.BulkRequest
}

func (m *mockBackend) Search(_ context.Context, q *db.WireQuery) (*db.SearchResult, error) {
	m.queries = append(m.queries, q)
	return m.searchResult, m.searchErr
}

func (m *mockBackend) Bulk(_ context.Context, req *db.BulkRequest) (*db.BulkResult, error) {
	m.bulks = append(m.bulks, req)
	if m.bulkResult == nil && m.bulkErr == nil {
		return &db.BulkResult{}, nil
	}
	return m.bulkResult, m.bulkErr
}

type fetchCall struct {
	docType  string
	keyField string
	ids      []string
}

type mockStore struct {
	records map[string]record.Record
	err     error
	calls   []fetchCall
}

func (m *mockStore) FetchBatch(
	_ context.Context, docType, keyField string, ids []string,
) (map[string]record.Record, error) {
	m.calls = append(m.calls, fetchCall{docType: docType, keyField: keyField, ids: ids})
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]record.Record)
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

type mockProjector struct {
	searchableFn func(r record.Record) (map[string]any, error)
	docType      string
}

func (m *mockProjector) Searchable(r record.Record) (map[string]any, error) {
	if m.searchableFn != nil {
		return m.searchableFn(r)
	}
	return r.Fields(), nil
}

func (m *mockProjector) DocType(r record.Record) string {
	if m.docType != "" {
		return m.docType
	}
	return r.Type()
}

type mockCompiler struct {
	compileFn func(d query.Descriptor, p query.Pagination) (*db.WireQuery, error)
	calls     []query.Pagination
}

func (m *mockCompiler) Compile(d query.Descriptor, p query.Pagination) (*db.WireQuery, error) {
	m.calls = append(m.calls, p)
	if m.compileFn != nil {
		return m.compileFn(d, p)
	}
	return &db.WireQuery{Index: "app", DocType: d.DocType(), QueryString: "+*" + d.Term() + "*"}, nil
}
