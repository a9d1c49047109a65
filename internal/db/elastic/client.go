// Package elastic executes compiled queries and bulk mutations on Elasticsearch 8.
//
// Elasticsearch 8 has no mapping types, so each (index, document type) pair lives in its
// own physical index named "<index>_<doctype>". Calls go through a circuit breaker; an
// open breaker, a transport failure or a 5xx/429 response surfaces as
// domain.ErrBackendUnavailable.
package elastic

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchbridge/internal/db"
)

// Compile-time check: Store implements db.Engine.
var _ db.Engine = (*Store)(nil)

// Config holds connection parameters for an Elasticsearch cluster.
type Config struct {
	Addrs    []string
	Username string
	Password string
	Breaker  BreakerConfig

	// Transport overrides the HTTP transport. Used by tests.
	Transport http.RoundTripper
	Logger    *zap.Logger
}

// Store talks to Elasticsearch through the official v8 client.
type Store struct {
	es      *elasticsearch.Client
	breaker *gobreaker.CircuitBreaker[*esapi.Response]
}

// NewStore creates an Elasticsearch store. No request is sent until first use.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addrs,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
		// The breaker decides when to stop calling; transport retries would skew its counts.
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{es: es, breaker: newBreaker(cfg.Breaker, log)}, nil
}

// Ping checks cluster connectivity.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.do(db.OpPing, func() (*esapi.Response, error) {
		return s.es.Info(s.es.Info.WithContext(ctx))
	})
	if err != nil {
		return err
	}
	closeBody(res)
	return nil
}

// WaitForReady polls Ping until the cluster responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for elasticsearch: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// PhysicalIndex returns the concrete index holding documents of docType.
func PhysicalIndex(index, docType string) string {
	return index + "_" + docType
}
