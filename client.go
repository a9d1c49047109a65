// Package searchbridge runs full-text searches against Elasticsearch and reconciles
// every hit with an authoritative record store, dropping and deleting stale documents.
package searchbridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchbridge/internal/compiler"
	"github.com/kailas-cloud/searchbridge/internal/db"
	"github.com/kailas-cloud/searchbridge/internal/db/elastic"
	"github.com/kailas-cloud/searchbridge/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/searchbridge/internal/db/redis"
	"github.com/kailas-cloud/searchbridge/internal/domain"
	"github.com/kailas-cloud/searchbridge/internal/domain/record"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/profile"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/query"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/searchbridge/internal/usecase/health"
	searchuc "github.com/kailas-cloud/searchbridge/internal/usecase/search"
)

const defaultReadinessTimeout = 10 * time.Second

// Errors returned by the client. Match them with errors.Is.
var (
	ErrCompile            = domain.ErrCompile
	ErrBackendUnavailable = domain.ErrBackendUnavailable
	ErrPartialFailure     = domain.ErrPartialFailure
	ErrBulkRejected       = domain.ErrBulkRejected
)

// BulkError lists the documents the index refused, with a reason per id.
type BulkError = domain.BulkError

// PartialFailureError lists orphans whose deletion did not go through.
type PartialFailureError = domain.PartialFailureError

type service interface {
	Search(ctx context.Context, d query.Descriptor, p query.Pagination) (*result.Result, error)
	Paginate(ctx context.Context, d query.Descriptor, perPage, page int) (*result.Page, error)
	ApplyChanges(ctx context.Context, upserts []record.Record, deletes []record.Key) error
}

type healthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the searchbridge SDK entry point.
type Client struct {
	svc    service
	health healthChecker
	close  func()
}

// New creates a Client, connects to both backends and waits until they answer.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		index:            "search",
		readinessTimeout: defaultReadinessTimeout,
	}
	for _, o := range opts {
		o(cfg)
	}

	if len(cfg.esAddrs) == 0 {
		return nil, errors.New("searchbridge: elasticsearch address required (use WithElastic)")
	}
	if cfg.driver == "" {
		return nil, errors.New("searchbridge: record store required (use WithPostgres or WithRedis)")
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	profiles, err := profile.NewSet(cfg.profiles...)
	if err != nil {
		return nil, fmt.Errorf("searchbridge: %w", err)
	}

	engine, err := elastic.NewStore(elastic.Config{
		Addrs:    cfg.esAddrs,
		Username: cfg.esUsername,
		Password: cfg.esPassword,
		Breaker:  cfg.breaker,
		Logger:   cfg.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("searchbridge: create elasticsearch store: %w", err)
	}

	records, err := createRecordStore(cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := engine.WaitForReady(ctx, cfg.readinessTimeout); err != nil {
		records.Close()
		return nil, fmt.Errorf("searchbridge: elasticsearch not ready: %w", err)
	}
	if err := records.WaitForReady(ctx, cfg.readinessTimeout); err != nil {
		records.Close()
		return nil, fmt.Errorf("searchbridge: record store not ready: %w", err)
	}

	var projector searchuc.Projector
	if cfg.projector != nil {
		projector = &projectorAdapter{inner: cfg.projector}
	}

	rec := searchuc.NewReconciler(cfg.index, engine, records, projector, profiles)
	svc := searchuc.New(compiler.New(cfg.index, profiles), rec)

	return &Client{
		svc:    svc,
		health: healthuc.New(engine, records),
		close:  records.Close,
	}, nil
}

func createRecordStore(cfg *clientConfig) (db.RecordStore, error) {
	switch cfg.driver {
	case "postgres":
		conn, err := postgres.Open(cfg.dsn)
		if err != nil {
			return nil, fmt.Errorf("searchbridge: open postgres: %w", err)
		}
		return postgres.NewStore(conn, cfg.tables), nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.redisAddrs,
			Password:  cfg.redisPassword,
			KeyPrefix: cfg.keyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("searchbridge: create redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("searchbridge: unknown record store driver %q", cfg.driver)
	}
}

// Close releases the record store connection.
func (c *Client) Close() {
	if c.close != nil {
		c.close()
	}
}

// Ping checks both the search backend and the record store.
func (c *Client) Ping(ctx context.Context) error {
	report := c.health.Check(ctx)
	if report.Status == healthuc.Healthy {
		return nil
	}
	var failed []string
	for name, res := range report.Checks {
		if res != healthuc.CheckOK {
			failed = append(failed, name)
		}
	}
	return fmt.Errorf("ping: %w: %v", ErrBackendUnavailable, failed)
}

// Index writes records to the search index in one bulk call.
func (c *Client) Index(ctx context.Context, records ...Record) error {
	return c.Apply(ctx, records, nil)
}

// Remove deletes documents from the search index in one bulk call.
func (c *Client) Remove(ctx context.Context, keys ...Key) error {
	return c.Apply(ctx, nil, keys)
}

// Apply writes upserts and deletes to the search index in one bulk call.
func (c *Client) Apply(ctx context.Context, upserts []Record, deletes []Key) error {
	recs := make([]record.Record, len(upserts))
	for i, r := range upserts {
		rec, err := record.New(r.ID, r.Type, r.Fields)
		if err != nil {
			return fmt.Errorf("upsert %d: %w", i, err)
		}
		recs[i] = rec
	}
	if err := c.svc.ApplyChanges(ctx, recs, deletes); err != nil {
		return fmt.Errorf("apply changes: %w", err)
	}
	return nil
}

// projectorAdapter wraps the public Projector to satisfy the internal one.
type projectorAdapter struct {
	inner Projector
}

func (a *projectorAdapter) Searchable(r record.Record) (map[string]any, error) {
	doc, err := a.inner.Searchable(fromRecord(r))
	if err != nil {
		return nil, fmt.Errorf("project %s/%s: %w", r.Type(), r.ID(), err)
	}
	return doc, nil
}

func (a *projectorAdapter) DocType(r record.Record) string {
	if t := a.inner.DocType(fromRecord(r)); t != "" {
		return t
	}
	return r.Type()
}
