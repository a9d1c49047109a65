package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchbridge/internal/db"
	"github.com/kailas-cloud/searchbridge/internal/domain"
	"github.com/kailas-cloud/searchbridge/internal/domain/record"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/profile"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/query"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/result"
	"github.com/kailas-cloud/searchbridge/internal/logger"
	"github.com/kailas-cloud/searchbridge/internal/metrics"
)

// Reconciler runs compiled queries and keeps the index consistent with the record store.
//
// Every hit is resolved against the authoritative store in one batch. Hits without a
// record are orphans: they are dropped from the result and deleted from the index in a
// single bulk call. A failed cleanup never fails the search; it is reported through
// Result.Cleanup instead.
type Reconciler struct {
	index     string
	backend   Backend
	store     RecordStore
	projector Projector
	profiles  profile.Set
}

// NewReconciler creates a reconciler writing to index. A nil projector indexes record fields as-is.
func NewReconciler(
	index string, backend Backend, store RecordStore, projector Projector, profiles profile.Set,
) *Reconciler {
	if projector == nil {
		projector = record.FieldProjector{}
	}
	return &Reconciler{index: index, backend: backend, store: store, projector: projector, profiles: profiles}
}

// Search executes q and returns authoritative records in engine relevance order.
func (r *Reconciler) Search(ctx context.Context, q *db.WireQuery) (*result.Result, error) {
	started := time.Now()
	res, err := r.search(ctx, q)
	metrics.ObserveSearch(q.DocType, started, err)
	return res, err
}

func (r *Reconciler) search(ctx context.Context, q *db.WireQuery) (*result.Result, error) {
	raw, err := r.backend.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	ids := MapIDs(raw)
	if len(ids) == 0 {
		res := result.New(nil, TotalCount(raw), nil, nil)
		return &res, nil
	}

	ids = unique(ids)
	found, err := r.store.FetchBatch(ctx, q.DocType, r.profiles.KeyField(q.DocType), ids)
	if err != nil {
		return nil, domain.Unavailable("fetch records", err)
	}

	records := make([]record.Record, 0, len(ids))
	var orphans []string
	for _, id := range ids {
		if rec, ok := found[id]; ok {
			records = append(records, rec)
		} else {
			orphans = append(orphans, id)
		}
	}

	var cleanup *domain.PartialFailureError
	if len(orphans) > 0 {
		cleanup = r.deleteOrphans(ctx, q.DocType, orphans)
	}

	res := result.New(records, TotalCount(raw), orphans, cleanup)
	return &res, nil
}

// deleteOrphans removes all orphans in one bulk call. The returned error lists what stayed in the index.
func (r *Reconciler) deleteOrphans(ctx context.Context, docType string, orphans []string) *domain.PartialFailureError {
	log := logger.FromContext(ctx).With(
		zap.String("doc_type", docType),
		zap.Int("orphans", len(orphans)),
	)

	b := db.NewBulk(r.index)
	for _, id := range orphans {
		b.Delete(docType, id)
	}
	req, err := b.Build()
	if err != nil {
		return r.cleanupFailed(log, orphans, fmt.Errorf("build orphan delete: %w", err))
	}

	out, err := r.backend.Bulk(ctx, req)
	if err != nil {
		return r.cleanupFailed(log, orphans, fmt.Errorf("delete orphans: %w", err))
	}
	failed := out.Failed()
	countBulk(req, failed)

	if len(failed) > 0 {
		bulkErr := bulkError(failed)
		metrics.OrphansTotal.WithLabelValues(metrics.OrphanDeleted).Add(float64(len(orphans) - len(failed)))
		return r.cleanupFailed(log, bulkErr.IDs, bulkErr)
	}

	metrics.OrphansTotal.WithLabelValues(metrics.OrphanDeleted).Add(float64(len(orphans)))
	log.Info("orphans removed from index", zap.Strings("ids", orphans))
	return nil
}

func (r *Reconciler) cleanupFailed(log *zap.Logger, ids []string, err error) *domain.PartialFailureError {
	metrics.OrphansTotal.WithLabelValues(metrics.OrphanFailed).Add(float64(len(ids)))
	log.Warn("orphan cleanup failed", zap.Strings("ids", ids), zap.Error(err))
	return &domain.PartialFailureError{IDs: ids, Err: err}
}

// Paginate runs q for a 1-based page of perPage results.
func (r *Reconciler) Paginate(ctx context.Context, q *db.WireQuery, perPage, page int) (*result.Page, error) {
	p, err := query.Page(perPage, page)
	if err != nil {
		return nil, err
	}
	res, err := r.Search(ctx, q.WithPage(*p.Offset, *p.Size))
	if err != nil {
		return nil, err
	}
	out := result.NewPage(*res, perPage, page)
	return &out, nil
}

// ApplyChanges pushes upserts and deletes to the index in one bulk call.
// Nothing is sent when there is nothing to apply.
func (r *Reconciler) ApplyChanges(ctx context.Context, upserts []record.Record, deletes []record.Key) error {
	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}

	b := db.NewBulk(r.index)
	for _, rec := range upserts {
		doc, err := r.projector.Searchable(rec)
		if err != nil {
			return fmt.Errorf("project record %s: %w", rec.ID(), err)
		}
		b.Upsert(r.projector.DocType(rec), rec.ID(), doc)
	}
	for _, k := range deletes {
		b.Delete(k.Type, k.ID)
	}

	req, err := b.Build()
	if err != nil {
		return fmt.Errorf("build bulk request: %w", err)
	}

	out, err := r.backend.Bulk(ctx, req)
	if err != nil {
		return fmt.Errorf("apply changes: %w", err)
	}
	failed := out.Failed()
	countBulk(req, failed)

	if len(failed) > 0 {
		return bulkError(failed)
	}

	logger.FromContext(ctx).Debug("changes applied",
		zap.Int("upserts", len(upserts)),
		zap.Int("deletes", len(deletes)),
	)
	return nil
}

// countBulk records applied and failed operations per action.
func countBulk(req *db.BulkRequest, failed []db.BulkItem) {
	sent := make(map[db.BulkAction]int, 2)
	for _, op := range req.Ops() {
		sent[op.Action]++
	}
	rejected := make(map[db.BulkAction]int, 2)
	for _, it := range failed {
		rejected[it.Action]++
	}
	for action, n := range sent {
		op := string(action)
		metrics.BulkOperationsTotal.WithLabelValues(op, metrics.BulkApplied).Add(float64(n - rejected[action]))
		metrics.BulkOperationsTotal.WithLabelValues(op, metrics.BulkFailed).Add(float64(rejected[action]))
	}
}

// MapIDs returns hit identifiers in relevance order.
func MapIDs(raw *db.SearchResult) []string {
	return raw.IDs()
}

// TotalCount returns the total number of matches reported by the engine.
func TotalCount(raw *db.SearchResult) int {
	if raw == nil {
		return 0
	}
	return raw.Total
}

func bulkError(failed []db.BulkItem) *domain.BulkError {
	e := &domain.BulkError{
		IDs:     make([]string, len(failed)),
		Reasons: make(map[string]string, len(failed)),
	}
	for i, it := range failed {
		e.IDs[i] = it.ID
		reason := it.Error
		if reason == "" {
			reason = fmt.Sprintf("status %d", it.Status)
		}
		e.Reasons[it.ID] = reason
	}
	return e
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
