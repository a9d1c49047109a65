package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchbridge/internal/domain/record"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/query"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/result"
	"github.com/kailas-cloud/searchbridge/internal/logger"
)

// Service compiles descriptors and runs them through the reconciler.
type Service struct {
	compiler Compiler
	rec      *Reconciler
}

// New creates a search service.
func New(compiler Compiler, rec *Reconciler) *Service {
	return &Service{compiler: compiler, rec: rec}
}

// Search compiles d with pagination p and returns reconciled records.
func (s *Service) Search(ctx context.Context, d query.Descriptor, p query.Pagination) (*result.Result, error) {
	q, err := s.compiler.Compile(d, p)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}
	logger.FromContext(ctx).Debug("query compiled",
		zap.String("doc_type", q.DocType),
		zap.String("query_string", q.QueryString),
	)
	return s.rec.Search(ctx, q)
}

// Paginate compiles d and returns one reconciled page.
func (s *Service) Paginate(ctx context.Context, d query.Descriptor, perPage, page int) (*result.Page, error) {
	q, err := s.compiler.Compile(d, query.Pagination{})
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}
	logger.FromContext(ctx).Debug("query compiled",
		zap.String("doc_type", q.DocType),
		zap.String("query_string", q.QueryString),
		zap.Int("per_page", perPage),
		zap.Int("page", page),
	)
	return s.rec.Paginate(ctx, q, perPage, page)
}

// ApplyChanges forwards record changes to the index.
func (s *Service) ApplyChanges(ctx context.Context, upserts []record.Record, deletes []record.Key) error {
	return s.rec.ApplyChanges(ctx, upserts, deletes)
}
