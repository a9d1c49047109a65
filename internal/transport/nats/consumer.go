// Package nats consumes record change events and applies them to the search index.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchbridge/internal/domain/record"
)

// Applier writes upserts and deletes to the search index.
type Applier interface {
	ApplyChanges(ctx context.Context, upserts []record.Record, deletes []record.Key) error
}

// Config holds connection and subscription settings.
type Config struct {
	URL            string
	Subject        string
	Queue          string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

// Event is one change set published by the system of record.
type Event struct {
	Upserts []EventRecord `json:"upserts"`
	Deletes []record.Key  `json:"deletes"`
}

// EventRecord is an upserted record.
type EventRecord struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Fields map[string]any `json:"fields"`
}

// Ack is the reply sent when the publisher asked for one.
type Ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Consumer subscribes to a subject in a queue group.
type Consumer struct {
	conn    *nats.Conn
	cfg     Config
	applier Applier
	logger  *zap.Logger
}

// NewConsumer connects to NATS.
func NewConsumer(cfg Config, applier Applier, logger *zap.Logger) (*Consumer, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 2 * time.Second
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = 60
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := nats.Connect(
		cfg.URL,
		nats.Name("searchbridge"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newConsumer(conn, cfg, applier, logger), nil
}

func newConsumer(conn *nats.Conn, cfg Config, applier Applier, logger *zap.Logger) *Consumer {
	return &Consumer{conn: conn, cfg: cfg, applier: applier, logger: logger}
}

// Close closes the connection.
func (c *Consumer) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// Run subscribes and blocks until ctx is done, then drains the subscription.
func (c *Consumer) Run(ctx context.Context) error {
	sub, err := c.conn.QueueSubscribe(c.cfg.Subject, c.cfg.Queue, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		err := c.handle(ctx, msg.Data)
		if err != nil {
			c.logger.Error("apply change event failed",
				zap.String("subject", msg.Subject), zap.Error(err))
		}
		c.reply(msg, err)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := c.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	c.logger.Info("change feed subscribed",
		zap.String("subject", c.cfg.Subject), zap.String("queue", c.cfg.Queue))

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := c.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context, data []byte) error {
	upserts, deletes, err := decodeEvent(data)
	if err != nil {
		return err
	}
	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}
	if err := c.applier.ApplyChanges(ctx, upserts, deletes); err != nil {
		return fmt.Errorf("apply changes: %w", err)
	}
	c.logger.Debug("change event applied",
		zap.Int("upserts", len(upserts)), zap.Int("deletes", len(deletes)))
	return nil
}

func (c *Consumer) reply(msg *nats.Msg, err error) {
	if msg.Reply == "" {
		return
	}
	ack := Ack{OK: err == nil}
	if err != nil {
		ack.Error = err.Error()
	}
	data, _ := json.Marshal(ack)
	if rerr := msg.Respond(data); rerr != nil {
		c.logger.Warn("reply to change event failed", zap.Error(rerr))
	}
}

func decodeEvent(data []byte) ([]record.Record, []record.Key, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, nil, fmt.Errorf("decode change event: %w", err)
	}
	upserts := make([]record.Record, 0, len(ev.Upserts))
	for i, u := range ev.Upserts {
		rec, err := record.New(u.ID, u.Type, u.Fields)
		if err != nil {
			return nil, nil, fmt.Errorf("upserts[%d]: %w", i, err)
		}
		upserts = append(upserts, rec)
	}
	for i, k := range ev.Deletes {
		if k.ID == "" || k.Type == "" {
			return nil, nil, fmt.Errorf("deletes[%d]: type and id are required", i)
		}
	}
	return upserts, ev.Deletes, nil
}
