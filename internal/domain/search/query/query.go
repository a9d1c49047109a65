package query

import (
	"slices"
	"strings"

	"github.com/kailas-cloud/searchbridge/internal/domain"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/filter"
)

// Descriptor limits.
const (
	MaxTermLength = 1024
	MaxFilters    = 32
	MaxSorts      = 8
)

// Direction is a sort order.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts asc/desc and their long forms, case-insensitively.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending":
		return Asc, true
	case "desc", "descending":
		return Desc, true
	}
	return "", false
}

// Sort is one ordering directive.
type Sort struct {
	Field     string
	Direction Direction
}

// NewSort validates a sort directive. An empty direction defaults to ascending.
func NewSort(field, direction string) (Sort, error) {
	if field == "" {
		return Sort{}, domain.Compilef("sort field is required")
	}
	if direction == "" {
		return Sort{Field: field, Direction: Asc}, nil
	}
	d, ok := ParseDirection(direction)
	if !ok {
		return Sort{}, domain.Compilef("invalid sort direction %q for field %q", direction, field)
	}
	return Sort{Field: field, Direction: d}, nil
}

// Descriptor is an engine-agnostic search request.
type Descriptor struct {
	term    string
	docType string
	filters []filter.Clause
	sorts   []Sort
}

// NewDescriptor validates and creates a descriptor. Slices are copied.
func NewDescriptor(docType, term string, filters []filter.Clause, sorts []Sort) (Descriptor, error) {
	if docType == "" {
		return Descriptor{}, domain.Compilef("document type is required")
	}
	if len(term) > MaxTermLength {
		return Descriptor{}, domain.Compilef("term too long (max %d chars)", MaxTermLength)
	}
	if len(filters) > MaxFilters {
		return Descriptor{}, domain.Compilef("too many filters (max %d)", MaxFilters)
	}
	if len(sorts) > MaxSorts {
		return Descriptor{}, domain.Compilef("too many sort directives (max %d)", MaxSorts)
	}
	return Descriptor{
		term:    term,
		docType: docType,
		filters: slices.Clone(filters),
		sorts:   slices.Clone(sorts),
	}, nil
}

// Term returns the free-text term.
func (d Descriptor) Term() string { return d.term }

// DocType returns the target document type.
func (d Descriptor) DocType() string { return d.docType }

// Filters returns the filter clauses in order.
func (d Descriptor) Filters() []filter.Clause { return d.filters }

// Sorts returns the sort directives in order.
func (d Descriptor) Sorts() []Sort { return d.sorts }

// Pagination holds optional offset and size. Nil means the backend default.
type Pagination struct {
	Offset *int
	Size   *int
}

// Page builds a pagination for a 1-based page number.
func Page(perPage, page int) (Pagination, error) {
	if perPage <= 0 {
		return Pagination{}, domain.Compilef("page size must be positive, got %d", perPage)
	}
	if page < 1 {
		return Pagination{}, domain.Compilef("page number must be >= 1, got %d", page)
	}
	from := page*perPage - perPage
	return Pagination{Offset: &from, Size: &perPage}, nil
}

// Limit builds a pagination that only caps the result size.
func Limit(size int) Pagination {
	return Pagination{Size: &size}
}
