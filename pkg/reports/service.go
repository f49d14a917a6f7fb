package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jordanlanch/campuspark/pkg/cache"
	"github.com/jordanlanch/campuspark/pkg/metrics"
)

// Service is the reporting read path. Aggregations are served through the
// shared result cache so repeated dashboard requests do not re-run the
// underlying queries.
type Service struct {
	fetcher RowFetcher
	cache   *cache.Memory
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewService creates a reporting service. m may be nil.
func NewService(fetcher RowFetcher, c *cache.Memory, ttl time.Duration, m *metrics.Metrics) *Service {
	return &Service{
		fetcher: fetcher,
		cache:   c,
		ttl:     ttl,
		metrics: m,
	}
}

// Summary returns the aggregation map for a report type and filter set.
func (s *Service) Summary(ctx context.Context, rt ReportType, f Filters) (map[string]any, error) {
	key := cache.ReportKey(string(rt)+":summary", f, 0, 0)

	// The producer only runs on a cache miss, so the flag reflects what
	// actually happened rather than a racy pre-check.
	produced := false
	v, err := s.cache.GetOrSet(key, s.ttl, func() (any, error) {
		produced = true
		query, args, err := BuildQuery(rt, f, "", "")
		if err != nil {
			return nil, err
		}
		rows, err := s.fetcher.FetchRows(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s summary: %w", rt, err)
		}
		return Summarize(rt, rows), nil
	})
	if s.metrics != nil {
		if produced {
			s.metrics.CacheMisses.Inc()
		} else {
			s.metrics.CacheHits.Inc()
		}
	}
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// Invalidate drops cached report aggregations, optionally for one report
// type, and returns how many entries were removed.
func (s *Service) Invalidate(reportType string) int {
	return s.cache.Invalidate(reportType)
}

// Summarize computes the summary/aggregation map (metric name → value)
// fed to view-mode renders: a row total plus a breakdown over the report
// type's grouping field.
func Summarize(rt ReportType, rows []Row) map[string]any {
	summary := map[string]any{
		"total_records": len(rows),
	}

	groupField := ""
	switch rt {
	case ReportUsers, ReportVehicles, ReportViolations:
		groupField = "status"
	case ReportAccess:
		groupField = "entry_type"
	}
	if groupField != "" {
		counts := make(map[string]int)
		for _, row := range rows {
			if v, ok := row[groupField].(string); ok && v != "" {
				counts[v]++
			}
		}
		for k, n := range counts {
			summary[groupField+"_"+k] = n
		}
	}

	if rt == ReportViolations {
		var total float64
		for _, row := range rows {
			switch v := row["fine_amount"].(type) {
			case float64:
				total += v
			case int64:
				total += float64(v)
			}
		}
		summary["total_fines"] = total
	}

	return summary
}
