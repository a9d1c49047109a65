package compiler

import (
	"time"

	"github.com/kailas-cloud/searchbridge/internal/db"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/filter"
	"github.com/kailas-cloud/searchbridge/internal/domain/search/profile"
)

var opBounds = map[filter.Op]db.Bound{
	filter.OpGT:  db.GT,
	filter.OpGTE: db.GTE,
	filter.OpLT:  db.LT,
	filter.OpLTE: db.LTE,
}

// renderRanges builds the structured range filter. Values <= 0 are dropped;
// a field left without bounds gets no entry. Returns nil when nothing remains.
func renderRanges(clauses []filter.Clause) (map[string]db.Bounds, error) {
	var out map[string]db.Bounds
	for _, c := range clauses {
		for _, b := range c.Bounds() {
			v, err := filter.Numeric(b.Value)
			if err != nil {
				return nil, err
			}
			if v <= 0 {
				continue
			}
			if out == nil {
				out = make(map[string]db.Bounds)
			}
			if out[c.Key()] == nil {
				out[c.Key()] = make(db.Bounds)
			}
			out[c.Key()][opBounds[b.Op]] = v
		}
	}
	return out, nil
}

// applyRecency adds the profile's time window relative to now, in unix seconds.
func applyRecency(q *db.WireQuery, r profile.Recency, now time.Time) {
	cutoff := float64(now.Add(-r.Window).Unix())

	switch r.Mode {
	case profile.Include:
		if q.Range == nil {
			q.Range = make(map[string]db.Bounds)
		}
		q.Range[r.Field] = db.Bounds{db.GT: cutoff}
	case profile.Exclude:
		q.Exclude = map[string]db.Bounds{r.Field: {db.LTE: cutoff}}
	}
}
