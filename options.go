package searchbridge

import (
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchbridge/internal/db/elastic"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/profile"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	index      string
	esAddrs    []string
	esUsername string
	esPassword string
	breaker    elastic.BreakerConfig

	driver        string
	dsn           string
	tables        map[string]string
	redisAddrs    []string
	redisPassword string
	keyPrefix     string

	profiles         []Profile
	projector        Projector
	logger           *zap.Logger
	readinessTimeout time.Duration
}

// WithIndex sets the logical index name. Documents live in "<index>_<type>".
func WithIndex(name string) Option {
	return func(c *clientConfig) { c.index = name }
}

// WithElastic sets the Elasticsearch node addresses.
func WithElastic(addrs ...string) Option {
	return func(c *clientConfig) { c.esAddrs = addrs }
}

// WithElasticAuth sets basic auth credentials for Elasticsearch.
func WithElasticAuth(username, password string) Option {
	return func(c *clientConfig) {
		c.esUsername = username
		c.esPassword = password
	}
}

// WithCircuitBreaker guards Elasticsearch calls with a circuit breaker.
// It trips when the failure ratio over at least minRequests calls reaches ratio
// and stays open for openTimeout.
func WithCircuitBreaker(minRequests uint32, ratio float64, openTimeout time.Duration) Option {
	return func(c *clientConfig) {
		c.breaker = elastic.BreakerConfig{
			Enabled:      true,
			MinRequests:  minRequests,
			FailureRatio: ratio,
			OpenTimeout:  openTimeout,
		}
	}
}

// WithPostgres uses PostgreSQL as the record store.
// tables maps document types to table names; unmapped types use the type as table name.
func WithPostgres(dsn string, tables map[string]string) Option {
	return func(c *clientConfig) {
		c.driver = "postgres"
		c.dsn = dsn
		c.tables = tables
	}
}

// WithRedis uses Redis hashes as the record store.
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.driver = "redis"
		c.redisAddrs = []string{addr}
		c.redisPassword = password
	}
}

// WithRedisCluster uses a Redis cluster as the record store.
func WithRedisCluster(addrs []string, password string) Option {
	return func(c *clientConfig) {
		c.driver = "redis"
		c.redisAddrs = addrs
		c.redisPassword = password
	}
}

// WithKeyPrefix overrides the Redis record key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *clientConfig) { c.keyPrefix = prefix }
}

// WithProfile registers a per-type search profile.
func WithProfile(p Profile) Option {
	return func(c *clientConfig) { c.profiles = append(c.profiles, p) }
}

// WithProjector sets how records are turned into index documents.
func WithProjector(p Projector) Option {
	return func(c *clientConfig) { c.projector = p }
}

// WithLogger sets the logger used by the backends.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

// WithReadinessTimeout bounds how long New waits for the backends.
func WithReadinessTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.readinessTimeout = d }
}

// Profile is the static per-type search configuration.
type Profile = profile.Profile

// BoostField is a query field with its weight.
type BoostField = profile.Field

// Recency is an implicit time window on a unix-seconds field.
type Recency = profile.Recency

// Recency modes.
const (
	RecencyInclude = profile.Include
	RecencyExclude = profile.Exclude
)
