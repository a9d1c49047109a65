package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/kailas-cloud/searchbridge/internal/db"
)

type bulkMeta struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

type upsertBody struct {
	Doc         map[string]any `json:"doc"`
	DocAsUpsert bool           `json:"doc_as_upsert"`
}

type bulkResponse struct {
	Errors bool                        `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// encodeBulk renders the NDJSON body: one action line per op, followed by a
// partial-document line for updates.
func encodeBulk(req *db.BulkRequest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, op := range req.Ops() {
		meta := map[string]bulkMeta{
			string(op.Action): {Index: PhysicalIndex(op.Index, op.DocType), ID: op.ID},
		}
		if err := enc.Encode(meta); err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", op.Action, op.ID, err)
		}
		if op.Action == db.ActionUpsert {
			if err := enc.Encode(upsertBody{Doc: op.Doc, DocAsUpsert: true}); err != nil {
				return nil, fmt.Errorf("encode document %s: %w", op.ID, err)
			}
		}
	}
	return buf.Bytes(), nil
}

// Bulk sends all operations in one request and reports per-item outcomes.
func (s *Store) Bulk(ctx context.Context, req *db.BulkRequest) (*db.BulkResult, error) {
	if req.Len() == 0 {
		return &db.BulkResult{}, nil
	}

	body, err := encodeBulk(req)
	if err != nil {
		return nil, &db.Error{Op: db.OpBulk, Err: err}
	}

	res, err := s.do(db.OpBulk, func() (*esapi.Response, error) {
		return s.es.Bulk(bytes.NewReader(body), s.es.Bulk.WithContext(ctx))
	})
	if err != nil {
		return nil, err
	}
	defer closeBody(res)

	var raw bulkResponse
	if err := decode(res.Body, &raw); err != nil {
		return nil, &db.Error{Op: db.OpBulk, Err: fmt.Errorf("decode response: %w", err)}
	}

	out := &db.BulkResult{Items: make([]db.BulkItem, 0, len(raw.Items))}
	for _, entry := range raw.Items {
		for action, it := range entry {
			item := db.BulkItem{Action: db.BulkAction(action), ID: it.ID, Status: it.Status}
			if it.Error != nil {
				item.Error = it.Error.Type + ": " + it.Error.Reason
			}
			out.Items = append(out.Items, item)
		}
	}
	return out, nil
}
