package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchbridge"
	"github.com/kailas-cloud/searchbridge/internal/config"
	logpkg "github.com/kailas-cloud/searchbridge/internal/logger"
)

// queryOptions holds CLI flags for query.
type queryOptions struct {
	filters []string // key=value, key=v1,v2 or key<=n
	sorts   []string // field[:asc|desc]
	size    int
	offset  int
	perPage int
	page    int
	format  string // text, json
}

func newQueryCmd(g *globalOptions) *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <type> [term...]",
		Short: "Run a reconciled search and print the records",
		Long: `Run a reconciled search against the configured backends.

Examples:
  searchbridge query posts "hello world"
  searchbridge query posts --filter category_id=17,56 --filter "price<=500"
  searchbridge query storage_items lamp --sort created_at:desc --per-page 20 --page 2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			logger, err := logpkg.NewLogger(g.environment(), "warn")
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			client, err := searchbridge.New(clientOptions(cfg, logger)...)
			if err != nil {
				return err
			}
			defer client.Close()

			q, err := buildQuery(client, args[0], strings.Join(args[1:], " "), opts)
			if err != nil {
				return err
			}

			if opts.perPage > 0 {
				page, err := q.Paginate(cmd.Context(), opts.perPage, opts.page)
				if err != nil {
					return err
				}
				return printPage(cmd.OutOrStdout(), page, opts.format)
			}
			res, err := q.Get(cmd.Context())
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), res, opts.format)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.filters, "filter", "f", nil, "Filter: key=value, key=v1,v2 or key<=n (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.sorts, "sort", "s", nil, "Sort: field or field:desc (repeatable)")
	cmd.Flags().IntVarP(&opts.size, "size", "n", 0, "Maximum number of hits")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Number of hits to skip")
	cmd.Flags().IntVar(&opts.perPage, "per-page", 0, "Page size; enables page mode")
	cmd.Flags().IntVar(&opts.page, "page", 1, "1-based page number in page mode")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text, json")

	return cmd
}

func clientOptions(cfg config.Config, logger *zap.Logger) []searchbridge.Option {
	opts := []searchbridge.Option{
		searchbridge.WithIndex(cfg.Elastic.Index),
		searchbridge.WithElastic(cfg.Elastic.Addrs...),
		searchbridge.WithElasticAuth(cfg.Elastic.Username, cfg.Elastic.Password),
		searchbridge.WithLogger(logger),
		searchbridge.WithReadinessTimeout(time.Duration(cfg.Records.ReadinessTimeout) * time.Second),
	}
	if b := cfg.Elastic.Breaker; b.Enabled {
		opts = append(opts, searchbridge.WithCircuitBreaker(
			b.MinRequests, b.FailureRatio, time.Duration(b.OpenTimeoutSec)*time.Second))
	}
	switch cfg.Records.Driver {
	case config.DriverRedis:
		opts = append(opts,
			searchbridge.WithRedisCluster(cfg.Records.Addrs, cfg.Records.Password),
			searchbridge.WithKeyPrefix(cfg.Records.KeyPrefix))
	default:
		opts = append(opts, searchbridge.WithPostgres(cfg.Records.DSN, cfg.Records.Tables))
	}
	for _, p := range cfg.DomainProfiles() {
		opts = append(opts, searchbridge.WithProfile(p))
	}
	return opts
}

func buildQuery(c *searchbridge.Client, docType, term string, opts queryOptions) (*searchbridge.QueryBuilder, error) {
	q := c.Search(docType, term)
	for _, f := range opts.filters {
		key, value, err := parseFilter(f)
		if err != nil {
			return nil, err
		}
		q = q.Where(key, value)
	}
	for _, s := range opts.sorts {
		field, dir, _ := strings.Cut(s, ":")
		q = q.OrderBy(field, dir)
	}
	if opts.size > 0 {
		q = q.Take(opts.size)
	}
	if opts.offset > 0 {
		q = q.Skip(opts.offset)
	}
	return q, nil
}

// rangeOps is ordered so two-character operators match first.
var rangeOps = []string{"<=", ">=", "<", ">"}

// parseFilter turns "key=v1,v2" into an equality value and "key<=n" into a range map.
func parseFilter(s string) (string, any, error) {
	for _, op := range rangeOps {
		if key, raw, ok := strings.Cut(s, op); ok && key != "" && !strings.Contains(key, "=") {
			n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return "", nil, fmt.Errorf("filter %q: range value must be numeric", s)
			}
			return strings.TrimSpace(key), map[string]any{op: n}, nil
		}
	}
	key, raw, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return "", nil, fmt.Errorf("filter %q: expected key=value or key<op>number", s)
	}
	parts := strings.Split(raw, ",")
	if len(parts) == 1 {
		return key, parts[0], nil
	}
	values := make([]any, len(parts))
	for i, p := range parts {
		values[i] = p
	}
	return key, values, nil
}

func printResults(w io.Writer, res *searchbridge.Results, format string) error {
	if format == "json" {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "total: %d, returned: %d\n", res.Total, len(res.Records))
	for _, r := range res.Records {
		fmt.Fprintf(w, "- %s/%s %s\n", r.Type, r.ID, formatFields(r.Fields))
	}
	if len(res.Orphans) > 0 {
		fmt.Fprintf(w, "orphans removed: %s\n", strings.Join(res.Orphans, ", "))
	}
	if res.Cleanup != nil {
		fmt.Fprintf(w, "cleanup failed: %v\n", res.Cleanup)
	}
	return nil
}

func printPage(w io.Writer, p *searchbridge.Page, format string) error {
	if format == "json" {
		return writeJSON(w, p)
	}
	fmt.Fprintf(w, "page %d of %d (%d per page)\n", p.Number, p.Pages, p.PerPage)
	return printResults(w, &p.Results, format)
}

func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, fields[k])
	}
	return strings.Join(parts, " ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
