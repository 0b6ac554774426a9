package postgres

import (
	"context"
	"time"

	"wallet-ledger/pkg/querylog"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// QueryTracer implements pgx.QueryTracer.
type QueryTracer struct {
	log zerolog.Logger
}

type traceKey struct{}

type traceStart struct {
	sql   string
	args  []any
	start time.Time
}

// NewQueryTracer creates a tracer that feeds querylog and the debug log.
func NewQueryTracer(log zerolog.Logger) *QueryTracer {
	return &QueryTracer{log: log.With().Str("component", "pgx").Logger()}
}

func (t *QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceKey{}, &traceStart{sql: data.SQL, args: data.Args, start: time.Now()})
}

func (t *QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	st, ok := ctx.Value(traceKey{}).(*traceStart)
	if !ok {
		return
	}
	elapsed := time.Since(st.start)
	querylog.Record(ctx, st.sql, st.args, elapsed, data.Err)

	ev := t.log.Debug()
	if data.Err != nil {
		ev = t.log.Warn().Err(data.Err)
	}
	ev.Str("sql", querylog.Clean(st.sql)).
		Dur("elapsed", elapsed).
		Int64("rows", data.CommandTag.RowsAffected()).
		Msg("query")
}
