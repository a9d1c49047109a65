package search

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/searchbridge/internal/db"
	"github.com/kailas-cloud/searchbridge/internal/domain"
	"github.com/kailas-cloud/searchbridge/internal/domain/record"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/profile"
	"github.com/kailas-cloud/searchbridge/internal/metrics"
)

func hits(total int, ids ...string) *db.SearchResult {
	res := &db.SearchResult{Total: total}
	for i, id := range ids {
		res.Hits = append(res.Hits, db.Hit{ID: id, Score: float64(len(ids) - i)})
	}
	return res
}

func rec(t *testing.T, id string) record.Record {
	t.Helper()
	r, err := record.New(id, "posts", map[string]any{"id": id, "title": "post " + id})
	if err != nil {
		t.Fatalf("record.New: %v", err)
	}
	return r
}

func storeWith(t *testing.T, ids ...string) *mockStore {
	t.Helper()
	s := &mockStore{records: make(map[string]record.Record)}
	for _, id := range ids {
		s.records[id] = rec(t, id)
	}
	return s
}

func newTestReconciler(t *testing.T, backend *mockBackend, store *mockStore) *Reconciler {
	t.Helper()
	profiles, err := profile.NewSet(profile.Profile{DocType: "posts", KeyField: "post_id"})
	if err != nil {
		t.Fatalf("profiles: %v", err)
	}
	return NewReconciler("app", backend, store, nil, profiles)
}

func postsQuery() *db.WireQuery {
	return &db.WireQuery{Index: "app", DocType: "posts", QueryString: "+*x*", TrackScores: true}
}

func recordIDs(rs []record.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID()
	}
	return out
}

func TestSearch_DropsAndDeletesOrphans(t *testing.T) {
	backend := &mockBackend{searchResult: hits(3, "1", "2", "3")}
	store := storeWith(t, "1", "3")
	r := newTestReconciler(t, backend, store)

	res, err := r.Search(context.Background(), postsQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := recordIDs(res.Records()); !slices.Equal(got, []string{"1", "3"}) {
		t.Errorf("records = %v, want [1 3]", got)
	}
	if !slices.Equal(res.Orphans(), []string{"2"}) {
		t.Errorf("orphans = %v, want [2]", res.Orphans())
	}
	if res.Cleanup() != nil {
		t.Errorf("unexpected cleanup failure: %v", res.Cleanup())
	}
	if res.Total() != 3 {
		t.Errorf("total = %d, want 3", res.Total())
	}

	if len(store.calls) != 1 {
		t.Fatalf("expected one FetchBatch call, got %d", len(store.calls))
	}
	call := store.calls[0]
	if call.docType != "posts" || call.keyField != "post_id" {
		t.Errorf("fetch target = %s/%s", call.docType, call.keyField)
	}
	if !slices.Equal(call.ids, []string{"1", "2", "3"}) {
		t.Errorf("fetched ids = %v", call.ids)
	}

	if len(backend.bulks) != 1 {
		t.Fatalf("expected exactly one bulk call, got %d", len(backend.bulks))
	}
	ops := backend.bulks[0].Ops()
	if len(ops) != 1 {
		t.Fatalf("expected one delete, got %d ops", len(ops))
	}
	if ops[0].Action != db.ActionDelete || ops[0].ID != "2" || ops[0].DocType != "posts" || ops[0].Index != "app" {
		t.Errorf("unexpected op: %+v", ops[0])
	}
}

func TestSearch_AllOrphansInOneBulk(t *testing.T) {
	backend := &mockBackend{searchResult: hits(4, "a", "b", "c", "d")}
	r := newTestReconciler(t, backend, storeWith(t))

	res, err := r.Search(context.Background(), postsQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Records()) != 0 {
		t.Errorf("expected no records, got %v", recordIDs(res.Records()))
	}
	if len(backend.bulks) != 1 || backend.bulks[0].Len() != 4 {
		t.Fatalf("expected one bulk with 4 deletes, got %d calls", len(backend.bulks))
	}
}

func TestSearch_DuplicateHitsCollapse(t *testing.T) {
	backend := &mockBackend{searchResult: hits(3, "2", "1", "2")}
	store := storeWith(t, "1")
	r := newTestReconciler(t, backend, store)

	res, err := r.Search(context.Background(), postsQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(store.calls[0].ids, []string{"2", "1"}) {
		t.Errorf("fetched ids = %v", store.calls[0].ids)
	}
	if !slices.Equal(res.Orphans(), []string{"2"}) {
		t.Errorf("orphans = %v, want [2]", res.Orphans())
	}
	if backend.bulks[0].Len() != 1 {
		t.Errorf("orphan deleted %d times", backend.bulks[0].Len())
	}
}

func TestSearch_ZeroHits(t *testing.T) {
	backend := &mockBackend{searchResult: hits(0)}
	store := storeWith(t, "1")
	r := newTestReconciler(t, backend, store)

	res, err := r.Search(context.Background(), postsQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Records()) != 0 || len(res.Orphans()) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
	if len(store.calls) != 0 {
		t.Error("store must not be called without hits")
	}
	if len(backend.bulks) != 0 {
		t.Error("no deletion expected without hits")
	}
}

func TestSearch_NoOrphansNoBulk(t *testing.T) {
	backend := &mockBackend{searchResult: hits(2, "3", "1")}
	r := newTestReconciler(t, backend, storeWith(t, "1", "3"))

	res, err := r.Search(context.Background(), postsQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := recordIDs(res.Records()); !slices.Equal(got, []string{"3", "1"}) {
		t.Errorf("records = %v, want hit order [3 1]", got)
	}
	if len(backend.bulks) != 0 {
		t.Error("no bulk call expected without orphans")
	}
}

func TestSearch_BackendError(t *testing.T) {
	backendErr := domain.Unavailable("search", errors.New("connection refused"))
	backend := &mockBackend{searchErr: backendErr}
	store := storeWith(t)
	r := newTestReconciler(t, backend, store)

	_, err := r.Search(context.Background(), postsQuery())
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if len(store.calls) != 0 {
		t.Error("store must not be called after a backend failure")
	}
}

func TestSearch_StoreErrorIsUnavailable(t *testing.T) {
	backend := &mockBackend{searchResult: hits(1, "1")}
	store := &mockStore{err: errors.New("dial tcp: refused")}
	r := newTestReconciler(t, backend, store)

	res, err := r.Search(context.Background(), postsQuery())
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if res != nil {
		t.Error("no partial result expected")
	}
	if len(backend.bulks) != 0 {
		t.Error("nothing may be deleted when the store is unreachable")
	}
}

func TestSearch_CleanupTransportFailureIsNonFatal(t *testing.T) {
	backend := &mockBackend{
		searchResult: hits(2, "1", "2"),
		bulkErr:      errors.New("bulk timeout"),
	}
	r := newTestReconciler(t, backend, storeWith(t, "1"))

	res, err := r.Search(context.Background(), postsQuery())
	if err != nil {
		t.Fatalf("cleanup failure must not fail the search: %v", err)
	}
	if got := recordIDs(res.Records()); !slices.Equal(got, []string{"1"}) {
		t.Errorf("records = %v", got)
	}
	cleanup := res.Cleanup()
	if cleanup == nil {
		t.Fatal("expected cleanup failure")
	}
	if !errors.Is(cleanup, domain.ErrPartialFailure) {
		t.Error("cleanup must unwrap to ErrPartialFailure")
	}
	if !slices.Equal(cleanup.IDs, []string{"2"}) {
		t.Errorf("cleanup ids = %v", cleanup.IDs)
	}
}

func TestSearch_CleanupItemFailure(t *testing.T) {
	backend := &mockBackend{
		searchResult: hits(3, "1", "2", "3"),
		bulkResult: &db.BulkResult{Items: []db.BulkItem{
			{Action: db.ActionDelete, ID: "2", Status: 200},
			{Action: db.ActionDelete, ID: "3", Status: 429, Error: "es_rejected_execution_exception"},
		}},
	}
	r := newTestReconciler(t, backend, storeWith(t, "1"))

	res, err := r.Search(context.Background(), postsQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cleanup := res.Cleanup()
	if cleanup == nil {
		t.Fatal("expected cleanup failure")
	}
	if !slices.Equal(cleanup.IDs, []string{"3"}) {
		t.Errorf("cleanup ids = %v, want [3]", cleanup.IDs)
	}
	var bulkErr *domain.BulkError
	if !errors.As(cleanup, &bulkErr) {
		t.Fatalf("expected BulkError cause, got %v", cleanup.Err)
	}
	if bulkErr.Reasons["3"] != "es_rejected_execution_exception" {
		t.Errorf("reason = %q", bulkErr.Reasons["3"])
	}
}

func TestSearch_DefaultKeyFieldForUnknownType(t *testing.T) {
	backend := &mockBackend{searchResult: hits(1, "1")}
	store := storeWith(t, "1")
	r := newTestReconciler(t, backend, store)

	q := postsQuery()
	q.DocType = "comments"
	if _, err := r.Search(context.Background(), q); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.calls[0].keyField != profile.DefaultKeyField {
		t.Errorf("key field = %q, want %q", store.calls[0].keyField, profile.DefaultKeyField)
	}
}

func TestPaginate(t *testing.T) {
	backend := &mockBackend{searchResult: hits(25, "11", "12")}
	r := newTestReconciler(t, backend, storeWith(t, "11", "12"))

	q := postsQuery()
	page, err := r.Paginate(context.Background(), q, 10, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := backend.queries[0]
	if sent.From == nil || sent.Size == nil || *sent.From != 10 || *sent.Size != 10 {
		t.Fatalf("expected from=10 size=10, got %v/%v", sent.From, sent.Size)
	}
	if q.From != nil || q.Size != nil {
		t.Error("caller query must not be mutated")
	}
	if page.PageCount() != 2.5 {
		t.Errorf("page count = %v, want 2.5", page.PageCount())
	}
	if page.Pages() != 3 {
		t.Errorf("pages = %d, want 3", page.Pages())
	}
	if page.Number() != 2 || page.PerPage() != 10 {
		t.Errorf("page = %d per_page = %d", page.Number(), page.PerPage())
	}
	if len(page.Records()) != 2 {
		t.Errorf("records = %d", len(page.Records()))
	}
}

func TestPaginate_InvalidArguments(t *testing.T) {
	backend := &mockBackend{searchResult: hits(0)}
	r := newTestReconciler(t, backend, storeWith(t))

	for _, tc := range []struct{ perPage, page int }{{0, 1}, {-5, 1}, {10, 0}} {
		if _, err := r.Paginate(context.Background(), postsQuery(), tc.perPage, tc.page); !errors.Is(err, domain.ErrCompile) {
			t.Errorf("Paginate(%d, %d): expected ErrCompile, got %v", tc.perPage, tc.page, err)
		}
	}
	if len(backend.queries) != 0 {
		t.Error("backend must not be called on invalid pagination")
	}
}

func TestApplyChanges_OneBulk(t *testing.T) {
	backend := &mockBackend{}
	r := newTestReconciler(t, backend, storeWith(t))

	upserts := []record.Record{rec(t, "1"), rec(t, "2")}
	deletes := []record.Key{{Type: "posts", ID: "9"}, {Type: "storage_items", ID: "4"}, {Type: "posts", ID: "7"}}

	if err := r.ApplyChanges(context.Background(), upserts, deletes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.bulks) != 1 {
		t.Fatalf("expected one bulk call, got %d", len(backend.bulks))
	}
	ops := backend.bulks[0].Ops()
	if len(ops) != 5 {
		t.Fatalf("expected 5 ops, got %d", len(ops))
	}
	for i, op := range ops[:2] {
		if op.Action != db.ActionUpsert || op.ID != upserts[i].ID() || op.Doc["title"] == nil {
			t.Errorf("op %d: unexpected upsert %+v", i, op)
		}
	}
	if ops[3].Action != db.ActionDelete || ops[3].DocType != "storage_items" || ops[3].ID != "4" {
		t.Errorf("delete must keep its document type: %+v", ops[3])
	}
}

func TestApplyChanges_NothingToDo(t *testing.T) {
	backend := &mockBackend{}
	r := newTestReconciler(t, backend, storeWith(t))

	if err := r.ApplyChanges(context.Background(), nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.bulks) != 0 {
		t.Error("no bulk call expected for an empty change set")
	}
}

func TestApplyChanges_UsesProjector(t *testing.T) {
	backend := &mockBackend{}
	profiles, _ := profile.NewSet()
	proj := &mockProjector{
		docType: "posts_v2",
		searchableFn: func(r record.Record) (map[string]any, error) {
			return map[string]any{"title": r.Fields()["title"]}, nil
		},
	}
	r := NewReconciler("app", backend, storeWith(t), proj, profiles)

	if err := r.ApplyChanges(context.Background(), []record.Record{rec(t, "1")}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	op := backend.bulks[0].Ops()[0]
	if op.DocType != "posts_v2" {
		t.Errorf("doc type = %q", op.DocType)
	}
	if _, ok := op.Doc["id"]; ok || len(op.Doc) != 1 {
		t.Errorf("doc must be the projection, got %v", op.Doc)
	}
}

func TestApplyChanges_ProjectorError(t *testing.T) {
	backend := &mockBackend{}
	profiles, _ := profile.NewSet()
	proj := &mockProjector{searchableFn: func(record.Record) (map[string]any, error) {
		return nil, errors.New("unsupported field")
	}}
	r := NewReconciler("app", backend, storeWith(t), proj, profiles)

	if err := r.ApplyChanges(context.Background(), []record.Record{rec(t, "1")}, nil); err == nil {
		t.Fatal("expected error")
	}
	if len(backend.bulks) != 0 {
		t.Error("nothing may be sent when projection fails")
	}
}

func TestApplyChanges_RejectedItems(t *testing.T) {
	backend := &mockBackend{bulkResult: &db.BulkResult{Items: []db.BulkItem{
		{Action: db.ActionUpsert, ID: "1", Status: 200},
		{Action: db.ActionUpsert, ID: "2", Status: 400, Error: "mapper_parsing_exception"},
		{Action: db.ActionDelete, ID: "9", Status: 404},
	}}}
	r := newTestReconciler(t, backend, storeWith(t))

	upsertApplied := metrics.BulkOperationsTotal.WithLabelValues(string(db.ActionUpsert), metrics.BulkApplied)
	upsertFailed := metrics.BulkOperationsTotal.WithLabelValues(string(db.ActionUpsert), metrics.BulkFailed)
	deleteApplied := metrics.BulkOperationsTotal.WithLabelValues(string(db.ActionDelete), metrics.BulkApplied)
	applied, rejected, deleted := testutil.ToFloat64(upsertApplied), testutil.ToFloat64(upsertFailed), testutil.ToFloat64(deleteApplied)

	err := r.ApplyChanges(context.Background(),
		[]record.Record{rec(t, "1"), rec(t, "2")},
		[]record.Key{{Type: "posts", ID: "9"}},
	)
	if !errors.Is(err, domain.ErrBulkRejected) {
		t.Fatalf("expected ErrBulkRejected, got %v", err)
	}
	var bulkErr *domain.BulkError
	if !errors.As(err, &bulkErr) || !slices.Equal(bulkErr.IDs, []string{"2"}) {
		t.Errorf("rejected ids = %v", bulkErr)
	}

	if got := testutil.ToFloat64(upsertApplied) - applied; got != 1 {
		t.Errorf("applied upserts counted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(upsertFailed) - rejected; got != 1 {
		t.Errorf("failed upserts counted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(deleteApplied) - deleted; got != 1 {
		t.Errorf("applied deletes counted = %v, want 1", got)
	}
}

func TestApplyChanges_TransportError(t *testing.T) {
	backend := &mockBackend{bulkErr: domain.Unavailable("bulk", errors.New("circuit open"))}
	r := newTestReconciler(t, backend, storeWith(t))

	err := r.ApplyChanges(context.Background(), nil, []record.Key{{Type: "posts", ID: "1"}})
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestMapIDsAndTotalCount(t *testing.T) {
	raw := hits(42, "b", "a")
	if !slices.Equal(MapIDs(raw), []string{"b", "a"}) {
		t.Errorf("MapIDs = %v", MapIDs(raw))
	}
	if TotalCount(raw) != 42 {
		t.Errorf("TotalCount = %d", TotalCount(raw))
	}
	if MapIDs(nil) != nil || TotalCount(nil) != 0 {
		t.Error("nil result must map to nothing")
	}
}
