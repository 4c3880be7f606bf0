// Package sqlitevec is a local reference index backed by SQLite and the
// sqlite-vec extension.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/retrieval"
)

func init() {
	sqlite_vec.Auto()
}

// overfetch widens the KNN window so collection and tag filtering applied
// after the vector match still fill the requested limit.
const overfetch = 4

// Store keeps references from every collection in one table, with their
// embeddings in a vec0 virtual table keyed by reference id.
type Store struct {
	db         *sql.DB
	dimensions int
	logger     *zap.Logger
}

// Open opens (or creates) the store at path for vectors of the given size.
func Open(path string, dimensions int, logger *zap.Logger) (*Store, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("sqlitevec")

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=30000"
	if err := runMigrations(dsn, logger); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging store: %w", err)
	}

	// vec0 column sizes are fixed at creation, so this table is created here
	// rather than in a migration.
	if _, err := db.Exec(fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS vec_references USING vec0(
			reference_id INTEGER PRIMARY KEY,
			embedding float[%d]
		)`, dimensions)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vector table: %w", err)
	}

	return &Store{db: db, dimensions: dimensions, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert upserts records by (collection, question).
func (s *Store) Insert(ctx context.Context, collection string, records []retrieval.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range records {
		if len(r.Vector) != s.dimensions {
			return fmt.Errorf("reference %q has %d dimensions, store expects %d", r.Question, len(r.Vector), s.dimensions)
		}
		tags := r.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("encode tags: %w", err)
		}

		var id int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO sql_references (collection, question, sql, tags)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (collection, question) DO UPDATE SET sql = excluded.sql, tags = excluded.tags
			RETURNING id`,
			collection, r.Question, r.SQL, string(tagsJSON)).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert reference: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM vec_references WHERE reference_id = ?", id); err != nil {
			return fmt.Errorf("replace embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO vec_references (reference_id, embedding) VALUES (?, ?)",
			id, serializeFloat32(r.Vector)); err != nil {
			return fmt.Errorf("insert embedding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Search returns the nearest references in req.Collection, best first.
func (s *Store) Search(ctx context.Context, req retrieval.SearchRequest) ([]retrieval.ReferencePair, error) {
	if req.Limit <= 0 {
		return nil, nil
	}
	if len(req.Vector) != s.dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, store expects %d", len(req.Vector), s.dimensions)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.question, r.sql, r.tags
		FROM (
			SELECT reference_id, distance
			FROM vec_references
			WHERE embedding MATCH ? AND k = ?
		) v
		JOIN sql_references r ON r.id = v.reference_id
		WHERE r.collection = ?
		ORDER BY v.distance`,
		serializeFloat32(req.Vector), req.Limit*overfetch, req.Collection)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var pairs []retrieval.ReferencePair
	for rows.Next() {
		var (
			p        retrieval.ReferencePair
			tagsJSON string
			tags     []string
		)
		if err := rows.Scan(&p.Question, &p.SQL, &tagsJSON); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
			s.logger.Warn("ignoring malformed reference tags", zap.String("question", p.Question))
			tags = nil
		}
		if !req.Filter.Matches(tags) {
			continue
		}
		pairs = append(pairs, p)
		if len(pairs) == req.Limit {
			break
		}
	}
	return pairs, rows.Err()
}

// Count returns the number of references in collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sql_references WHERE collection = ?", collection).Scan(&n)
	return n, err
}

// Inspect reports how many references collection holds. The local store is
// always ready once open.
func (s *Store) Inspect(ctx context.Context, collection string) (retrieval.IndexStatus, error) {
	n, err := s.Count(ctx, collection)
	if err != nil {
		return retrieval.IndexStatus{}, fmt.Errorf("count references: %w", err)
	}
	return retrieval.IndexStatus{Backend: "sqlite", Collection: collection, Ready: true, References: n}, nil
}

func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

var (
	_ retrieval.VectorIndex     = (*Store)(nil)
	_ retrieval.ReferenceWriter = (*Store)(nil)
)
