// Package sqlite is the SQLite persistence backend. Memories and the
// usage ledger share one database file; embeddings are stored as JSON
// float arrays in a TEXT column.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/memkeep/memkeep/pkg/memory"
	"github.com/memkeep/memkeep/pkg/usage"
)

// Store implements storage.Store on SQLite.
type Store struct {
	db *sql.DB
}

// New opens or creates the database at path and runs migrations.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id                 TEXT PRIMARY KEY,
		user_id            TEXT NOT NULL,
		title              TEXT NOT NULL DEFAULT '',
		content            TEXT NOT NULL,
		kind               TEXT NOT NULL DEFAULT 'semantic',
		importance         REAL NOT NULL DEFAULT 0,
		tags               TEXT,
		metadata           TEXT,
		embedding          TEXT,
		embedding_state    TEXT NOT NULL DEFAULT 'none',
		embedding_attempts INTEGER NOT NULL DEFAULT 0,
		archived           INTEGER NOT NULL DEFAULT 0,
		access_count       INTEGER NOT NULL DEFAULT 0,
		created_at         TEXT NOT NULL,
		updated_at         TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id, archived);
	CREATE INDEX IF NOT EXISTS idx_memories_user_kind ON memories(user_id, kind);
	CREATE INDEX IF NOT EXISTS idx_memories_state ON memories(embedding_state);
	CREATE INDEX IF NOT EXISTS idx_memories_updated ON memories(updated_at DESC);

	CREATE TABLE IF NOT EXISTS usage_records (
		user_id  TEXT NOT NULL,
		provider TEXT NOT NULL,
		day      TEXT NOT NULL,
		requests INTEGER NOT NULL DEFAULT 0,
		tokens   INTEGER NOT NULL DEFAULT 0,
		cost     REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, provider, day)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

const memoryColumns = `id, user_id, title, content, kind, importance, tags, metadata,
	embedding, embedding_state, embedding_attempts, archived, access_count, created_at, updated_at`

func (s *Store) GetMemory(ctx context.Context, id, userID string) (*memory.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = ? AND user_id = ?`, id, userID)

	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, memory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return m, nil
}

func (s *Store) ListMemories(ctx context.Context, userID string, filter memory.ListFilter) ([]*memory.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE user_id = ?`
	args := []any{userID}

	if !filter.IncludeArchived {
		query += ` AND archived = 0`
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	for _, tag := range filter.Tags {
		query += ` AND tags LIKE ?`
		args = append(args, `%"`+tag+`"%`)
	}

	query += ` ORDER BY updated_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	} else if filter.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, filter.Offset)
	}

	return s.queryMemories(ctx, query, args...)
}

func (s *Store) UpsertMemory(ctx context.Context, m *memory.Memory) error {
	tags, err := encodeJSON(m.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	metadata, err := encodeJSON(m.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	embeddingCol, err := encodeJSON(m.Embedding)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (`+memoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			title = excluded.title,
			content = excluded.content,
			kind = excluded.kind,
			importance = excluded.importance,
			tags = excluded.tags,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			embedding_state = excluded.embedding_state,
			embedding_attempts = excluded.embedding_attempts,
			archived = excluded.archived,
			access_count = excluded.access_count,
			updated_at = excluded.updated_at`,
		m.ID, m.UserID, m.Title, m.Content, string(m.Kind), m.Importance,
		tags, metadata, embeddingCol, string(m.EmbeddingState), m.EmbeddingAttempts,
		boolToInt(m.Archived), m.AccessCount,
		m.CreatedAt.UTC().Format(time.RFC3339Nano),
		m.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert memory: %w", err)
	}
	return nil
}

func (s *Store) DeleteMemory(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return memory.ErrNotFound
	}
	return nil
}

func (s *Store) IncrementAccess(ctx context.Context, id, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1 WHERE id = ? AND user_id = ?`,
		id, userID)
	if err != nil {
		return fmt.Errorf("increment access: %w", err)
	}
	return nil
}

func (s *Store) UpdateEmbedding(ctx context.Context, id, userID string, vec []float32, state memory.EmbeddingState, attempts int) error {
	embeddingCol, err := encodeJSON(vec)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET embedding = ?, embedding_state = ?, embedding_attempts = ?
		WHERE id = ? AND user_id = ?`,
		embeddingCol, string(state), attempts, id, userID)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return memory.ErrNotFound
	}
	return nil
}

func (s *Store) ListForRepair(ctx context.Context, userID string) ([]*memory.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE archived = 0`
	args := []any{}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY updated_at, id`
	return s.queryMemories(ctx, query, args...)
}

func (s *Store) AddUsage(ctx context.Context, userID, provider, day string, requests, tokens int, cost float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_records (user_id, provider, day, requests, tokens, cost)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, provider, day) DO UPDATE SET
			requests = requests + excluded.requests,
			tokens = tokens + excluded.tokens,
			cost = cost + excluded.cost`,
		userID, provider, day, requests, tokens, cost)
	if err != nil {
		return fmt.Errorf("add usage: %w", err)
	}
	return nil
}

func (s *Store) UsageForDay(ctx context.Context, userID, day string) ([]usage.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, provider, day, requests, tokens, cost
		FROM usage_records WHERE user_id = ? AND day = ?
		ORDER BY provider`, userID, day)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var records []usage.Record
	for rows.Next() {
		var r usage.Record
		if err := rows.Scan(&r.UserID, &r.Provider, &r.Day, &r.Requests, &r.Tokens, &r.Cost); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) queryMemories(ctx context.Context, query string, args ...any) ([]*memory.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var memories []*memory.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*memory.Memory, error) {
	var (
		m                            memory.Memory
		kind, state                  string
		tags, metadata, embeddingCol sql.NullString
		archived                     int
		createdAt, updatedAt         string
	)
	err := row.Scan(&m.ID, &m.UserID, &m.Title, &m.Content, &kind, &m.Importance,
		&tags, &metadata, &embeddingCol, &state, &m.EmbeddingAttempts,
		&archived, &m.AccessCount, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	m.Kind = memory.Kind(kind)
	m.EmbeddingState = memory.EmbeddingState(state)
	m.Archived = archived != 0

	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &m.Tags); err != nil {
			m.Tags = nil
		}
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &m.Metadata); err != nil {
			m.Metadata = nil
		}
	}
	// An unparseable embedding column reads as no embedding at all;
	// the repair pass re-embeds it.
	if embeddingCol.Valid && embeddingCol.String != "" {
		if err := json.Unmarshal([]byte(embeddingCol.String), &m.Embedding); err != nil {
			m.Embedding = nil
		}
	}

	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		m.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		m.UpdatedAt = t
	}
	return &m, nil
}

// encodeJSON marshals a value, mapping empty slices and maps to NULL.
func encodeJSON(v any) (sql.NullString, error) {
	switch val := v.(type) {
	case []string:
		if len(val) == 0 {
			return sql.NullString{}, nil
		}
	case []float32:
		if len(val) == 0 {
			return sql.NullString{}, nil
		}
	case map[string]memory.Value:
		if len(val) == 0 {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ interface {
	memory.Store
	usage.Store
} = (*Store)(nil)
