package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/searchbridge/internal/db"
	"github.com/kailas-cloud/searchbridge/internal/domain/record"
)

// FetchBatch loads records in a single DoMulti round-trip of HGETALL commands.
// A missing hash comes back empty and is left out of the result.
func (s *Store) FetchBatch(
	ctx context.Context, docType, keyField string, ids []string,
) (map[string]record.Record, error) {
	out := make(map[string]record.Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cmds := make(rueidis.Commands, len(ids))
	for i, id := range ids {
		cmds[i] = s.client.B().Hgetall().Key(s.Key(docType, id)).Build()
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Err: fmt.Errorf("key %s: %w", s.Key(docType, ids[i]), err)}
		}
		if len(m) == 0 {
			continue
		}
		out[ids[i]] = record.Reconstruct(ids[i], docType, toFields(m, keyField, ids[i]))
	}
	return out, nil
}

func toFields(m map[string]string, keyField, id string) map[string]any {
	fields := make(map[string]any, len(m)+1)
	for k, v := range m {
		fields[k] = v
	}
	if _, ok := fields[keyField]; !ok && keyField != "" {
		fields[keyField] = id
	}
	return fields
}
