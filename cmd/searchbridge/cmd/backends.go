package cmd

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchbridge/internal/config"
	"github.com/kailas-cloud/searchbridge/internal/db"
	"github.com/kailas-cloud/searchbridge/internal/db/elastic"
	"github.com/kailas-cloud/searchbridge/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/searchbridge/internal/db/redis"
)

func breakerConfig(c config.BreakerConfig) elastic.BreakerConfig {
	return elastic.BreakerConfig{
		Enabled:          c.Enabled,
		MinRequests:      c.MinRequests,
		FailureRatio:     c.FailureRatio,
		OpenTimeout:      time.Duration(c.OpenTimeoutSec) * time.Second,
		HalfOpenMaxCalls: c.HalfOpenMaxCalls,
	}
}

func openEngine(cfg config.ElasticConfig, logger *zap.Logger) (*elastic.Store, error) {
	s, err := elastic.NewStore(elastic.Config{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
		Breaker:  breakerConfig(cfg.Breaker),
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch store: %w", err)
	}
	return s, nil
}

func openRecords(cfg config.RecordsConfig) (db.RecordStore, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		conn, err := postgres.Open(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return postgres.NewStore(conn, cfg.Tables), nil
	case config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.Addrs,
			Password:  cfg.Password,
			KeyPrefix: cfg.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown record store driver %q", cfg.Driver)
	}
}
