package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pscheid92/crowdroom/internal/adapter/metrics"
)

// MetricsTracer records query latency and errors, labelled by statement verb
// to keep cardinality low.
type MetricsTracer struct {
	metrics *metrics.DatabaseMetrics
}

var _ pgx.QueryTracer = (*MetricsTracer)(nil)

func NewMetricsTracer(m *metrics.DatabaseMetrics) *MetricsTracer {
	return &MetricsTracer{metrics: m}
}

type queryTraceKey struct{}

type queryTrace struct {
	start time.Time
	verb  string
}

func (t *MetricsTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryTraceKey{}, queryTrace{start: time.Now(), verb: statementVerb(data.SQL)})
}

func (t *MetricsTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	trace, ok := ctx.Value(queryTraceKey{}).(queryTrace)
	if !ok {
		return
	}

	t.metrics.QueryDuration.WithLabelValues(trace.verb).Observe(time.Since(trace.start).Seconds())
	if data.Err != nil {
		t.metrics.QueryErrors.WithLabelValues(trace.verb).Inc()
	}
}

var knownVerbs = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "WITH", "BEGIN", "COMMIT", "ROLLBACK"}

// statementVerb returns the leading SQL keyword, or "other".
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "other"
	}
	verb := strings.ToUpper(fields[0])
	for _, known := range knownVerbs {
		if verb == known {
			return verb
		}
	}
	return "other"
}
