package elastic

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchbridge/internal/db"
	"github.com/kailas-cloud/searchbridge/internal/domain"
	"github.com/kailas-cloud/searchbridge/internal/metrics"
)

// BreakerConfig tunes the circuit breaker in front of the cluster.
type BreakerConfig struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

func (c BreakerConfig) normalize() BreakerConfig {
	if c.MinRequests == 0 {
		c.MinRequests = 5
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = 0.5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxCalls == 0 {
		c.HalfOpenMaxCalls = 1
	}
	return c
}

func newBreaker(cfg BreakerConfig, log *zap.Logger) *gobreaker.CircuitBreaker[*esapi.Response] {
	if !cfg.Enabled {
		return nil
	}
	cfg = cfg.normalize()
	return gobreaker.NewCircuitBreaker[*esapi.Response](gobreaker.Settings{
		Name:        "elasticsearch",
		MaxRequests: cfg.HalfOpenMaxCalls,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !unavailable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerOpen.WithLabelValues(name).Set(breakerGauge(to))
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 0.5
	default:
		return 0
	}
}

// StatusError is a non-2xx response from the cluster.
type StatusError struct {
	Status int
	Type   string
	Reason string
}

func (e *StatusError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s: %s", e.Status, e.Type, e.Reason)
}

// do runs call through the breaker. Error responses are consumed and returned as *StatusError.
func (s *Store) do(op string, call func() (*esapi.Response, error)) (*esapi.Response, error) {
	exec := func() (*esapi.Response, error) {
		res, err := call()
		if err != nil {
			return nil, err
		}
		if res.IsError() {
			defer closeBody(res)
			return nil, decodeStatusError(res)
		}
		return res, nil
	}

	var (
		res *esapi.Response
		err error
	)
	if s.breaker != nil {
		res, err = s.breaker.Execute(exec)
	} else {
		res, err = exec()
	}
	if err != nil {
		return nil, classify(op, err)
	}
	return res, nil
}

func classify(op string, err error) error {
	wrapped := &db.Error{Op: op, Err: err}
	if unavailable(err) {
		return domain.Unavailable(op, wrapped)
	}
	return wrapped
}

// unavailable reports whether err means the cluster could not serve the request at all.
func unavailable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= http.StatusInternalServerError || se.Status == http.StatusTooManyRequests
	}
	// Anything that is not an HTTP answer is a transport failure.
	return true
}

func decodeStatusError(res *esapi.Response) *StatusError {
	se := &StatusError{Status: res.StatusCode}
	var body struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := decode(res.Body, &body); err == nil {
		se.Type = body.Error.Type
		se.Reason = body.Error.Reason
	}
	return se
}

func closeBody(res *esapi.Response) {
	if res == nil || res.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}
