package searchbridge

import (
	"github.com/kailas-cloud/searchbridge/internal/domain/record"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/result"
)

// Record is an authoritative record.
type Record struct {
	ID     string
	Type   string
	Fields map[string]any
}

// Key identifies an indexed document.
type Key = record.Key

// Projector turns a record into the document written to the index.
// An empty DocType keeps the record's own type.
type Projector interface {
	Searchable(r Record) (map[string]any, error)
	DocType(r Record) string
}

// Results is a reconciled search response.
type Results struct {
	// Total is the hit count reported by the engine, orphans included.
	Total   int
	Records []Record
	// Orphans are hits with no authoritative record. They are deleted from the index.
	Orphans []string
	// Cleanup is set when some orphans could not be deleted. The records are still valid.
	Cleanup error
}

// Page is one page of reconciled results.
type Page struct {
	Results
	PerPage   int
	Number    int
	PageCount float64
	Pages     int
}

func fromRecord(r record.Record) Record {
	return Record{ID: r.ID(), Type: r.Type(), Fields: r.Fields()}
}

func fromResult(res *result.Result) Results {
	out := Results{
		Total:   res.Total(),
		Records: make([]Record, len(res.Records())),
		Orphans: res.Orphans(),
	}
	for i, r := range res.Records() {
		out.Records[i] = fromRecord(r)
	}
	if c := res.Cleanup(); c != nil {
		out.Cleanup = c
	}
	return out
}
