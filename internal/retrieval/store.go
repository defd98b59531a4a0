package retrieval

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Compile-time check that SQLiteStore implements VectorStore.
var _ VectorStore = (*SQLiteStore)(nil)

// IndexFile is the database file name inside the index directory.
const IndexFile = "chunks.db"

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name       TEXT PRIMARY KEY,
	dimensions INTEGER NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS chunks (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL,
	collection TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
	text       TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	UNIQUE (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_chunks_collection ON chunks(collection, seq);
`

// SQLiteStore provides chunk storage and brute-force cosine similarity search
// backed by SQLite. Embeddings are stored as little-endian float32 blobs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an existing *sql.DB and ensures the schema exists.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating index schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLiteStore opens the index in dir for building, creating the
// directory and schema when missing.
func OpenSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	db, err := openDB(filepath.Join(dir, IndexFile) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	s, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenReadOnly opens the index in dir for querying. The file is opened with
// mode=ro so the query pipeline cannot mutate it. A missing index yields an
// empty in-memory store so queries return no chunks instead of failing.
func OpenReadOnly(dir string) (*SQLiteStore, error) {
	path := filepath.Join(dir, IndexFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		db, err := openDB(":memory:")
		if err != nil {
			return nil, err
		}
		s, err := NewSQLiteStore(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return s, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving index path: %w", err)
	}
	db, err := openDB("file:" + filepath.ToSlash(abs) + "?mode=ro")
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func openDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging index database: %w", err)
	}
	// Single connection: required for :memory: and avoids "database is locked".
	db.SetMaxOpenConns(1)
	return db, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateCollection(ctx context.Context, name string, dims int, metadata map[string]string) error {
	if dims <= 0 {
		return fmt.Errorf("collection %s: dimensions must be positive, got %d", name, dims)
	}
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}

	existing, err := s.Dimensions(ctx, name)
	if err != nil {
		return err
	}
	if existing != 0 {
		if existing != dims {
			return fmt.Errorf("%w: collection %s has %d dimensions, got %d", ErrDimensionMismatch, name, existing, dims)
		}
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO collections (name, dimensions, metadata) VALUES (?, ?, ?)`, name, dims, meta)
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, name); err != nil {
		tx.Rollback()
		return fmt.Errorf("deleting chunks of %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		tx.Rollback()
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	return tx.Commit()
}

// Insert adds chunks to the collection. Every embedding must match the
// collection's dimensionality.
func (s *SQLiteStore) Insert(ctx context.Context, collection string, chunks []Chunk) error {
	dims, err := s.Dimensions(ctx, collection)
	if err != nil {
		return err
	}
	if dims == 0 {
		return fmt.Errorf("collection %s does not exist", collection)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}
	if err := insertChunks(ctx, tx, collection, dims, chunks); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ReplaceCollection drops the collection, recreates it with dims and
// inserts chunks in a single transaction. On any error the previous
// collection is left untouched.
func (s *SQLiteStore) ReplaceCollection(ctx context.Context, name string, dims int, metadata map[string]string, chunks []Chunk) error {
	if dims <= 0 {
		return fmt.Errorf("collection %s: dimensions must be positive, got %d", name, dims)
	}
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning replace transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE collection = ?`, name); err != nil {
		tx.Rollback()
		return fmt.Errorf("deleting chunks of %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		tx.Rollback()
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO collections (name, dimensions, metadata) VALUES (?, ?, ?)`, name, dims, meta); err != nil {
		tx.Rollback()
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	if err := insertChunks(ctx, tx, name, dims, chunks); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertChunks(ctx context.Context, tx *sql.Tx, collection string, dims int, chunks []Chunk) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, collection, text, embedding, metadata)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if len(c.Embedding) != dims {
			return fmt.Errorf("%w: chunk %s has %d dimensions, collection %s has %d",
				ErrDimensionMismatch, c.ID, len(c.Embedding), collection, dims)
		}
		meta, err := encodeMetadata(c.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.ID, collection, c.Text, encodeFloat32s(c.Embedding), meta); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// seqScore holds only the row sequence and score during the scan phase of Search.
// Full chunk details are fetched only for top-K winners.
type seqScore struct {
	Seq   int64
	Score float32
}

// Search performs brute-force cosine similarity search over the collection.
func (s *SQLiteStore) Search(ctx context.Context, collection string, vector []float32, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}

	dims, err := s.Dimensions(ctx, collection)
	if err != nil {
		return nil, err
	}
	if dims == 0 {
		return nil, nil
	}
	if len(vector) != dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %s has %d",
			ErrDimensionMismatch, len(vector), collection, dims)
	}

	// Phase 1: scan only seq + embedding to find top-K candidates.
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, embedding FROM chunks WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	queryNorm := norm(vector)

	h := &seqScoreHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var seq int64
		var blob []byte
		if err := rows.Scan(&seq, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for seq %d: %w", seq, err)
		}

		item := seqScore{Seq: seq, Score: cosine(vector, buf, queryNorm)}
		if h.Len() < k {
			heap.Push(h, item)
		} else if worse((*h)[0], item) {
			(*h)[0] = item
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	rows.Close()

	if h.Len() == 0 {
		return nil, nil
	}

	// Phase 2: fetch full chunks for the winners, best first.
	winners := make([]seqScore, h.Len())
	for i := len(winners) - 1; i >= 0; i-- {
		winners[i] = heap.Pop(h).(seqScore)
	}

	results := make([]ScoredChunk, 0, len(winners))
	for _, w := range winners {
		var c Chunk
		var blob []byte
		var meta string
		err := s.db.QueryRowContext(ctx,
			`SELECT id, text, embedding, metadata FROM chunks WHERE seq = ?`, w.Seq).
			Scan(&c.ID, &c.Text, &blob, &meta)
		if err != nil {
			return nil, fmt.Errorf("fetching chunk seq %d: %w", w.Seq, err)
		}
		if c.Embedding, err = decodeFloat32s(blob); err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", c.ID, err)
		}
		if c.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", c.ID, err)
		}
		results = append(results, ScoredChunk{Chunk: c, Score: w.Score})
	}
	return results, nil
}

// Count returns the number of chunks in the collection.
func (s *SQLiteStore) Count(ctx context.Context, collection string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE collection = ?`, collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Dimensions(ctx context.Context, collection string) (int, error) {
	var dims int
	err := s.db.QueryRowContext(ctx, `SELECT dimensions FROM collections WHERE name = ?`, collection).Scan(&dims)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading collection %s: %w", collection, err)
	}
	return dims, nil
}

// CheckDimensions verifies that an embedder producing dims-length vectors
// can query the collection. A missing collection always passes.
func CheckDimensions(ctx context.Context, store VectorStore, collection string, dims int) error {
	want, err := store.Dimensions(ctx, collection)
	if err != nil {
		return err
	}
	if want != 0 && want != dims {
		return fmt.Errorf("%w: index %s was built with %d-dimensional embeddings, embedder produces %d; rebuild the index",
			ErrDimensionMismatch, collection, want, dims)
	}
	return nil
}

func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(s string) (map[string]string, error) {
	m := map[string]string{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
// Returns an error if the byte slice length is not a multiple of 4 (indicates data corruption).
func decodeFloat32s(b []byte) ([]float32, error) {
	return decodeFloat32sInto(nil, b)
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes dot(a,b) / (aNorm * bNorm). Zero-norm vectors score 0.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) || aNorm == 0 {
		return 0
	}
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// worse reports whether a ranks below b: lower score, or equal score and
// later insertion.
func worse(a, b seqScore) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Seq > b.Seq
}

// seqScoreHeap is a min-heap with the worst-ranked candidate at the root.
type seqScoreHeap []seqScore

func (h seqScoreHeap) Len() int            { return len(h) }
func (h seqScoreHeap) Less(i, j int) bool  { return worse(h[i], h[j]) }
func (h seqScoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *seqScoreHeap) Push(x interface{}) { *h = append(*h, x.(seqScore)) }
func (h *seqScoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
