package db

import (
	"context"
	"time"

	"github.com/kailas-cloud/searchbridge/internal/domain/record"
)

// Engine is the search backend facade: query execution plus bulk mutation.
type Engine interface {
	Pinger
	Searcher
	Bulker
}

// RecordStore is the authoritative store facade.
type RecordStore interface {
	Pinger
	BatchFetcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Searcher executes compiled queries.
type Searcher interface {
	Search(ctx context.Context, q *WireQuery) (*SearchResult, error)
}

// Bulker applies a batch of index operations in one round-trip.
type Bulker interface {
	Bulk(ctx context.Context, req *BulkRequest) (*BulkResult, error)
}

// BatchFetcher loads authoritative records by identifier.
// Identifiers without a record are absent from the returned map.
type BatchFetcher interface {
	FetchBatch(ctx context.Context, docType, keyField string, ids []string) (map[string]record.Record, error)
}
