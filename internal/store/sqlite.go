package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// schemaVersion is the current PRAGMA user_version this build migrates to.
const schemaVersion = 2

// SQLiteStore is the embedding store for one workspace.
// WAL mode allows a reader (log viewer, stats) alongside the single writer.
type SQLiteStore struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	dimension int
	closed    bool
	lock      *FileLock
}

// validateIntegrity checks a workspace database before opening.
// Returns nil if valid, error describing corruption if not.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Database doesn't exist, will be created
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	return nil
}

// Open opens (or creates) the workspace database at path.
// An empty path opens an in-memory store for testing.
func Open(path string) (*SQLiteStore, error) {
	var dsn string
	var lock *FileLock

	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		l := NewFileLock(path + ".lock")
		locked, err := l.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire workspace lock: %w", err)
		}
		if !locked {
			return nil, ErrWorkspaceLocked
		}
		lock = l

		if validErr := validateIntegrity(path); validErr != nil {
			slog.Warn("workspace_db_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				_ = lock.Unlock()
				return nil, fmt.Errorf("workspace db corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("workspace_db_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reingest"))
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			if lock != nil {
				_ = lock.Unlock()
			}
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteStore{db: db, path: path, lock: lock}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	if err := s.loadDimension(); err != nil {
		_ = db.Close()
		if lock != nil {
			_ = lock.Unlock()
		}
		return nil, err
	}

	return s, nil
}

// migrate brings the schema up to schemaVersion using PRAGMA user_version.
func (s *SQLiteStore) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read user_version: %w", err)
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS chunks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			source_file TEXT NOT NULL DEFAULT '',
			doc_id TEXT NOT NULL DEFAULT '',
			page_num INTEGER NOT NULL DEFAULT 0,
			chunk_idx INTEGER NOT NULL DEFAULT 0,
			model_sig TEXT NOT NULL DEFAULT '',
			heading_path TEXT NOT NULL DEFAULT '',
			heading_level INTEGER NOT NULL DEFAULT 0,
			chunk_type TEXT NOT NULL DEFAULT 'text',
			sentence_count INTEGER NOT NULL DEFAULT 0,
			list_type TEXT NOT NULL DEFAULT '',
			list_length INTEGER NOT NULL DEFAULT 0,
			embedding BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			content,
			chunk_id UNINDEXED,
			tokenize='unicode61'
		);

		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id, chunk_idx);
		`
		if _, err := s.db.Exec(schema); err != nil {
			return fmt.Errorf("v1 schema: %w", err)
		}
		version = 1
	}

	if version < 2 {
		if _, err := s.db.Exec(
			`ALTER TABLE chunks ADD COLUMN feedback_boost REAL NOT NULL DEFAULT 1.0`); err != nil {
			return fmt.Errorf("v2 schema: %w", err)
		}
		version = 2
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

// loadDimension restores the registered workspace dimension from metadata.
func (s *SQLiteStore) loadDimension() error {
	val, err := s.GetState(context.Background(), StateKeyDimension)
	if err != nil {
		return err
	}
	if val == "" {
		return nil
	}
	dim, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("corrupt %s metadata %q: %w", StateKeyDimension, val, err)
	}
	s.dimension = dim
	return nil
}

// Dimension returns the registered embedding dimension, or 0 if no
// chunk has been ingested yet.
func (s *SQLiteStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// checkDimension enforces the workspace guardrail. Caller holds s.mu.
func (s *SQLiteStore) checkDimension(vec []float32) error {
	if s.dimension != 0 && len(vec) != s.dimension {
		return &DimensionMismatchError{Expected: s.dimension, Actual: len(vec)}
	}
	return nil
}

// Insert persists one chunk record and indexes its text for keyword
// search. The first insert registers the workspace embedding dimension;
// every later embedding must match it exactly. Chunks whose trimmed text
// is shorter than four characters are rejected with ErrShortChunk.
func (s *SQLiteStore) Insert(ctx context.Context, in ChunkInput) (int64, error) {
	if len(strings.TrimSpace(in.Text)) < minChunkLength {
		return 0, ErrShortChunk
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}
	if err := s.checkDimension(in.Embedding); err != nil {
		return 0, err
	}
	if len(in.Embedding) == 0 {
		return 0, fmt.Errorf("empty embedding")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	chunkType := in.ChunkType
	if chunkType == "" {
		chunkType = ChunkTypeText
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO chunks (
			text, source_file, doc_id, page_num, chunk_idx, model_sig,
			heading_path, heading_level, chunk_type, sentence_count,
			list_type, list_length, embedding, created_at, feedback_boost
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1.0)`,
		in.Text, in.SourceFile, in.DocID, in.PageNum, in.ChunkIdx, in.ModelSignature,
		in.HeadingPath, in.HeadingLevel, string(chunkType), in.SentenceCount,
		in.ListType, in.ListLength, encodeVector(in.Embedding), time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to insert chunk: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read insert id: %w", err)
	}

	// Index heading context alongside the text so keyword search can hit
	// section titles as well as body terms.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chunks_fts(content, chunk_id) VALUES (?, ?)`,
		ftsContent(in.HeadingPath, in.Text), id); err != nil {
		return 0, fmt.Errorf("failed to index chunk text: %w", err)
	}

	register := s.dimension == 0
	if register {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO metadata(key, value) VALUES (?, ?)`,
			StateKeyDimension, strconv.Itoa(len(in.Embedding))); err != nil {
			return 0, fmt.Errorf("failed to register dimension: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit insert: %w", err)
	}

	if register {
		s.dimension = len(in.Embedding)
	}
	return id, nil
}

// ftsContent builds the keyword-indexed form of a chunk: the heading
// path, stripped of punctuation, prefixed as context before the body.
func ftsContent(headingPath, text string) string {
	heading := strings.Map(func(r rune) rune {
		switch r {
		case '>', '/', '|', '#', '.', ',', ':', ';':
			return ' '
		}
		return r
	}, headingPath)
	heading = strings.Join(strings.Fields(heading), " ")

	if heading == "" {
		return text
	}
	return "[CONTEXT: " + heading + "] " + text
}

// SemanticSearch scans every stored embedding, scores it by cosine
// similarity against the query, and returns the best matches sorted
// descending. Exactness over index sophistication is the contract here.
func (s *SQLiteStore) SemanticSearch(ctx context.Context, query []float32, limit int) ([]SemanticResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if err := s.checkDimension(query); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []SemanticResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+chunkColumns+`, embedding FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}
	defer rows.Close()

	var results []SemanticResult
	for rows.Next() {
		var rec ChunkRecord
		var blob []byte
		if err := scanChunk(rows, &rec, &blob); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", rec.ID, err)
		}
		results = append(results, SemanticResult{
			Chunk:      rec,
			Similarity: CosineSimilarity(query, vec),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// LexicalSearch runs an FTS5 keyword query and returns matches best
// first. FTS5 bm25() scores are negative where lower is better, so they
// are negated on the way out. Malformed queries yield no results.
func (s *SQLiteStore) LexicalSearch(ctx context.Context, query string, limit int) ([]LexicalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	match := ftsQuery(query)
	if match == "" || limit <= 0 {
		return []LexicalResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedChunkColumns("c")+`, bm25(chunks_fts) AS score
		FROM chunks_fts f
		JOIN chunks c ON c.id = f.chunk_id
		WHERE chunks_fts MATCH ?
		ORDER BY score
		LIMIT ?`, match, limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return []LexicalResult{}, nil
		}
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	defer rows.Close()

	var results []LexicalResult
	for rows.Next() {
		var rec ChunkRecord
		var score float64
		if err := scanChunkWithScore(rows, &rec, &score); err != nil {
			return nil, err
		}
		results = append(results, LexicalResult{Chunk: rec, Score: -score})
	}
	return results, rows.Err()
}

// ftsQuery quotes each query term so user punctuation cannot become
// FTS5 operators.
func ftsQuery(query string) string {
	fields := strings.Fields(strings.TrimSpace(query))
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " ")
}

// Get fetches a single chunk record by id.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ChunkRecord{}, ErrStoreClosed
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id)

	var rec ChunkRecord
	var chunkType string
	var createdAt int64
	err := row.Scan(&rec.ID, &rec.Text, &rec.SourceFile, &rec.DocID, &rec.PageNum,
		&rec.ChunkIdx, &rec.ModelSignature, &rec.HeadingPath, &rec.HeadingLevel,
		&chunkType, &rec.SentenceCount, &rec.ListType, &rec.ListLength,
		&rec.FeedbackBoost, &createdAt)
	if err == sql.ErrNoRows {
		return ChunkRecord{}, fmt.Errorf("chunk %d not found", id)
	}
	if err != nil {
		return ChunkRecord{}, fmt.Errorf("failed to fetch chunk %d: %w", id, err)
	}
	rec.ChunkType = ChunkType(chunkType)
	rec.CreatedAt = time.Unix(createdAt, 0)
	return rec, nil
}

// Boost applies one positive feedback event to a chunk, multiplying its
// feedback boost by FeedbackBoostStep up to FeedbackBoostCap.
func (s *SQLiteStore) Boost(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE chunks
		SET feedback_boost = MIN(feedback_boost * ?, ?)
		WHERE id = ?`, FeedbackBoostStep, FeedbackBoostCap, id)
	if err != nil {
		return fmt.Errorf("failed to boost chunk %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("chunk %d not found", id)
	}
	return nil
}

// AdjacentContext returns the text of the chunks surrounding (docID,
// chunkIdx) within radius positions, in document order. Used to widen a
// hit into a readable passage.
func (s *SQLiteStore) AdjacentContext(ctx context.Context, docID string, chunkIdx, radius int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT text FROM chunks
		WHERE doc_id = ? AND chunk_idx BETWEEN ? AND ?
		ORDER BY chunk_idx`, docID, chunkIdx-radius, chunkIdx+radius)
	if err != nil {
		return "", fmt.Errorf("failed to fetch context: %w", err)
	}
	defer rows.Close()

	var parts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n"), rows.Err()
}

// Count returns the number of stored chunks.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Clear removes every chunk and its keyword index rows, and forgets the
// registered dimension. Callers are responsible for invalidating any
// result caches built over the old corpus.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM chunks`,
		`DELETE FROM chunks_fts`,
		`DELETE FROM metadata WHERE key = '` + StateKeyDimension + `'`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear store: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}

	s.dimension = 0
	return nil
}

// ExportCSV writes every chunk record as CSV, embeddings excluded.
func (s *SQLiteStore) ExportCSV(ctx context.Context, w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks ORDER BY id`)
	if err != nil {
		return fmt.Errorf("export query failed: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	header := []string{
		"id", "source_file", "doc_id", "page_num", "chunk_idx",
		"heading_path", "heading_level", "chunk_type", "sentence_count",
		"list_type", "list_length", "feedback_boost", "created_at", "text",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for rows.Next() {
		var rec ChunkRecord
		var chunkType string
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.Text, &rec.SourceFile, &rec.DocID, &rec.PageNum,
			&rec.ChunkIdx, &rec.ModelSignature, &rec.HeadingPath, &rec.HeadingLevel,
			&chunkType, &rec.SentenceCount, &rec.ListType, &rec.ListLength,
			&rec.FeedbackBoost, &createdAt); err != nil {
			return err
		}
		record := []string{
			strconv.FormatInt(rec.ID, 10),
			rec.SourceFile,
			rec.DocID,
			strconv.Itoa(rec.PageNum),
			strconv.Itoa(rec.ChunkIdx),
			rec.HeadingPath,
			strconv.Itoa(rec.HeadingLevel),
			chunkType,
			strconv.Itoa(rec.SentenceCount),
			rec.ListType,
			strconv.Itoa(rec.ListLength),
			strconv.FormatFloat(rec.FeedbackBoost, 'g', -1, 64),
			time.Unix(createdAt, 0).UTC().Format(time.RFC3339),
			rec.Text,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// GetState reads a metadata value, returning "" when absent.
func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read state %s: %w", key, err)
	}
	return value, nil
}

// SetState writes a metadata value.
func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metadata(key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write state %s: %w", key, err)
	}
	return nil
}

// DB exposes the underlying connection so the telemetry log can share
// the workspace database file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close checkpoints the WAL, closes the database, and releases the
// workspace lock. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []string
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		if err := s.db.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close: %s", strings.Join(errs, "; "))
	}
	return nil
}

const chunkColumns = `id, text, source_file, doc_id, page_num, chunk_idx, model_sig,
	heading_path, heading_level, chunk_type, sentence_count, list_type, list_length,
	feedback_boost, created_at`

// prefixedChunkColumns qualifies chunkColumns with a table alias.
func prefixedChunkColumns(alias string) string {
	cols := strings.Split(chunkColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// scanChunk scans chunkColumns plus the embedding blob.
func scanChunk(rows *sql.Rows, rec *ChunkRecord, blob *[]byte) error {
	var chunkType string
	var createdAt int64
	if err := rows.Scan(&rec.ID, &rec.Text, &rec.SourceFile, &rec.DocID, &rec.PageNum,
		&rec.ChunkIdx, &rec.ModelSignature, &rec.HeadingPath, &rec.HeadingLevel,
		&chunkType, &rec.SentenceCount, &rec.ListType, &rec.ListLength,
		&rec.FeedbackBoost, &createdAt, blob); err != nil {
		return fmt.Errorf("failed to scan chunk: %w", err)
	}
	rec.ChunkType = ChunkType(chunkType)
	rec.CreatedAt = time.Unix(createdAt, 0)
	return nil
}

// scanChunkWithScore scans chunkColumns plus a trailing score column.
func scanChunkWithScore(rows *sql.Rows, rec *ChunkRecord, score *float64) error {
	var chunkType string
	var createdAt int64
	if err := rows.Scan(&rec.ID, &rec.Text, &rec.SourceFile, &rec.DocID, &rec.PageNum,
		&rec.ChunkIdx, &rec.ModelSignature, &rec.HeadingPath, &rec.HeadingLevel,
		&chunkType, &rec.SentenceCount, &rec.ListType, &rec.ListLength,
		&rec.FeedbackBoost, &createdAt, score); err != nil {
		return fmt.Errorf("failed to scan chunk: %w", err)
	}
	rec.ChunkType = ChunkType(chunkType)
	rec.CreatedAt = time.Unix(createdAt, 0)
	return nil
}
