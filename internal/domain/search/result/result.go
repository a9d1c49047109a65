package result

import (
	"math"

	"github.com/kailas-cloud/searchbridge/internal/domain"
	"github.com/kailas-cloud/searchbridge/internal/domain/record"
)

// Result is a reconciled search response.
type Result struct {
	records []record.Record
	total   int
	orphans []string
	cleanup *domain.PartialFailureError
}

// New creates a reconciled result.
func New(records []record.Record, total int, orphans []string, cleanup *domain.PartialFailureError) Result {
	return Result{records: records, total: total, orphans: orphans, cleanup: cleanup}
}

// Records returns authoritative records in engine relevance order.
func (r *Result) Records() []record.Record { return r.records }

// Total returns the total hit count reported by the engine.
func (r *Result) Total() int { return r.total }

// Orphans returns identifiers found in the index but missing from the record store.
func (r *Result) Orphans() []string { return r.orphans }

// Cleanup returns the orphan deletion failure, or nil.
func (r *Result) Cleanup() *domain.PartialFailureError { return r.cleanup }

// Page is a reconciled result for one page.
type Page struct {
	Result
	perPage   int
	page      int
	pageCount float64
}

// NewPage creates a page. pageCount is the raw total/perPage ratio.
func NewPage(res Result, perPage, page int) Page {
	var count float64
	if perPage > 0 {
		count = float64(res.total) / float64(perPage)
	}
	return Page{Result: res, perPage: perPage, page: page, pageCount: count}
}

// PerPage returns the page size.
func (p *Page) PerPage() int { return p.perPage }

// Number returns the 1-based page number.
func (p *Page) Number() int { return p.page }

// PageCount returns total/perPage as reported, possibly fractional.
func (p *Page) PageCount() float64 { return p.pageCount }

// Pages returns the page count rounded up.
func (p *Page) Pages() int { return int(math.Ceil(p.pageCount)) }
