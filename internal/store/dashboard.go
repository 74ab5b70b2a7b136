package store

import (
	"context"
	"fmt"

	"github.com/maruel/recdb/internal/record"
	"github.com/maruel/recdb/internal/schema"
)

// Metric computes a dashboard aggregate. Non-numeric values are ignored by sum and
// average; the average of nothing is 0.
func (s *Store) Metric(ctx context.Context, m schema.Metric) (float64, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	if _, err := s.source(m.Source); err != nil {
		return 0, err
	}
	var count, sum float64
	n := 0
	s.cache.view(m.Source, func(recs []record.Record) {
		n = len(recs)
		for _, r := range recs {
			if f, ok := record.Number(r[m.Field]); ok {
				sum += f
				count++
			}
		}
	})
	switch m.Type {
	case schema.MetricCount:
		return float64(n), nil
	case schema.MetricSum:
		return sum, nil
	case schema.MetricAverage:
		if count == 0 {
			return 0, nil
		}
		return sum / count, nil
	default:
		return 0, fmt.Errorf("metric %s: unknown type %q", m.ID, m.Type)
	}
}

// MetricValue is a computed dashboard metric.
type MetricValue struct {
	schema.Metric
	Value     float64 `json:"value"`
	Formatted string  `json:"formatted"`
}

// Dashboard computes every declared metric.
func (s *Store) Dashboard(ctx context.Context) ([]MetricValue, error) {
	var out []MetricValue
	for _, m := range s.reg.Metrics() {
		v, err := s.Metric(ctx, m)
		if err != nil {
			return nil, err
		}
		out = append(out, MetricValue{Metric: m, Value: v, Formatted: record.FormatValue(v, m.Format)})
	}
	return out, nil
}
