// Package telemetry records per-query retrieval observations. The log
// is append-only and read back only as rank-volatility history.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultDeltaWindow is how many prior observations feed the stability
// computation.
const DefaultDeltaWindow = 10

// Entry is one retrieval observation.
type Entry struct {
	ID           int64
	Query        string
	SemanticRank int
	KeywordRank  int
	FinalRank    int
	SemanticMs   int64
	KeywordMs    int64
	TotalMs      int64
	TopScore     float64
	MMRPenalty   float64
	Exploration  bool
	RankDelta    float64
	Stability    float64
	CreatedAt    time.Time
}

// Log writes retrieval observations to the workspace database. It
// shares the store's connection; recording is best-effort and a write
// failure is logged, never surfaced to the query path.
type Log struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLog creates the telemetry log, preparing its table if needed.
func NewLog(db *sql.DB, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}
	const schema = `
	CREATE TABLE IF NOT EXISTS retrieval_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		semantic_rank INTEGER NOT NULL DEFAULT 0,
		keyword_rank INTEGER NOT NULL DEFAULT 0,
		final_rank INTEGER NOT NULL DEFAULT 0,
		semantic_latency_ms INTEGER NOT NULL DEFAULT 0,
		keyword_latency_ms INTEGER NOT NULL DEFAULT 0,
		total_latency_ms INTEGER NOT NULL DEFAULT 0,
		top_score REAL NOT NULL DEFAULT 0,
		mmr_penalty REAL NOT NULL DEFAULT 0,
		exploration INTEGER NOT NULL DEFAULT 0,
		rank_delta REAL NOT NULL DEFAULT 0,
		stability REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_retrieval_logs_query ON retrieval_logs(query, id);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to prepare telemetry schema: %w", err)
	}
	return &Log{db: db, logger: logger}, nil
}

// Record appends one observation. Failures are logged and swallowed so
// telemetry can never fail a query.
func (l *Log) Record(ctx context.Context, e Entry) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO retrieval_logs (
			query, semantic_rank, keyword_rank, final_rank,
			semantic_latency_ms, keyword_latency_ms, total_latency_ms,
			top_score, mmr_penalty, exploration, rank_delta, stability
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Query, e.SemanticRank, e.KeywordRank, e.FinalRank,
		e.SemanticMs, e.KeywordMs, e.TotalMs,
		e.TopScore, e.MMRPenalty, boolToInt(e.Exploration), e.RankDelta, e.Stability)
	if err != nil {
		l.logger.Warn("telemetry_record_failed",
			slog.String("query", e.Query),
			slog.String("error", err.Error()))
	}
}

// RecentDeltas returns the rank deltas of the newest limit
// non-exploration observations for the query, newest first.
func (l *Log) RecentDeltas(ctx context.Context, query string, limit int) ([]float64, error) {
	if limit <= 0 {
		limit = DefaultDeltaWindow
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT rank_delta FROM retrieval_logs
		WHERE query = ? AND exploration = 0
		ORDER BY id DESC LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read rank history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var deltas []float64
	for rows.Next() {
		var d float64
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		deltas = append(deltas, d)
	}
	return deltas, rows.Err()
}

// LastFinalRank returns the final rank of the newest non-exploration
// observation for the query. ok is false when no history exists.
func (l *Log) LastFinalRank(ctx context.Context, query string) (rank int, ok bool, err error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT final_rank FROM retrieval_logs
		WHERE query = ? AND exploration = 0
		ORDER BY id DESC LIMIT 1`, query)
	switch err := row.Scan(&rank); err {
	case nil:
		return rank, true, nil
	case sql.ErrNoRows:
		return 0, false, nil
	default:
		return 0, false, err
	}
}

// Recent returns the newest limit observations across all queries.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, query, semantic_rank, keyword_rank, final_rank,
			semantic_latency_ms, keyword_latency_ms, total_latency_ms,
			top_score, mmr_penalty, exploration, rank_delta, stability, created_at
		FROM retrieval_logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read telemetry: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var exploration int
		if err := rows.Scan(&e.ID, &e.Query, &e.SemanticRank, &e.KeywordRank,
			&e.FinalRank, &e.SemanticMs, &e.KeywordMs, &e.TotalMs,
			&e.TopScore, &e.MMRPenalty, &exploration, &e.RankDelta,
			&e.Stability, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Exploration = exploration != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the total number of observations.
func (l *Log) Count(ctx context.Context) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM retrieval_logs`).Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
