package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/kailas-cloud/searchbridge/internal/db"
	"github.com/kailas-cloud/searchbridge/internal/domain"
)

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID    string   `json:"_id"`
			Score *float64 `json:"_score"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search executes a compiled query. A missing physical index yields an empty result.
func (s *Store) Search(ctx context.Context, q *db.WireQuery) (*db.SearchResult, error) {
	body, err := json.Marshal(q.Body())
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("encode body: %w", err)}
	}

	res, err := s.do(db.OpSearch, func() (*esapi.Response, error) {
		return s.es.Search(
			s.es.Search.WithContext(ctx),
			s.es.Search.WithIndex(PhysicalIndex(q.Index, q.DocType)),
			s.es.Search.WithBody(bytes.NewReader(body)),
			s.es.Search.WithTrackTotalHits(true),
			s.es.Search.WithIgnoreUnavailable(true),
		)
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: engine rejected query: %w", domain.ErrCompile, err)
		}
		return nil, err
	}
	defer closeBody(res)

	var raw searchResponse
	if err := decode(res.Body, &raw); err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("decode response: %w", err)}
	}

	out := &db.SearchResult{Total: raw.Hits.Total.Value, Hits: make([]db.Hit, len(raw.Hits.Hits))}
	for i, h := range raw.Hits.Hits {
		out.Hits[i].ID = h.ID
		if h.Score != nil {
			out.Hits[i].Score = *h.Score
		}
	}
	return out, nil
}

func decode(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}
