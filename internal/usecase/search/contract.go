package search

import (
	"context"

	"github.com/kailas-cloud/searchbridge/internal/db"
	"github.com/kailas-cloud/searchbridge/internal/domain/record"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/query"
)

// Backend executes compiled queries and bulk mutations against the search index.
type Backend interface {
	Search(ctx context.Context, q *db.WireQuery) (*db.SearchResult, error)
	Bulk(ctx context.Context, req *db.BulkRequest) (*db.BulkResult, error)
}

// RecordStore resolves index hits to authoritative records.
// Identifiers without a record are absent from the returned map.
type RecordStore interface {
	FetchBatch(ctx context.Context, docType, keyField string, ids []string) (map[string]record.Record, error)
}

// Projector turns an authoritative record into the document stored in the index.
type Projector interface {
	Searchable(r record.Record) (map[string]any, error)
	DocType(r record.Record) string
}

// Compiler turns descriptors into wire queries.
type Compiler interface {
	Compile(d query.Descriptor, p query.Pagination) (*db.WireQuery, error)
}
