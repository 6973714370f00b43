package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PGVectorStore implements Store with one PostgreSQL table per collection.
type PGVectorStore struct {
	pool *pgxpool.Pool

	mu      sync.Mutex
	ensured map[string]bool
}

var tableName = regexp.MustCompile(`^[a-z_][a-zA-Z0-9_]{0,62}$`)

// isValidTableName guards the collection names interpolated into SQL.
func isValidTableName(name string) bool {
	return tableName.MatchString(name)
}

// Connect opens a small pool and makes sure the vector extension exists.
func Connect(ctx context.Context, databaseURL string) (*PGVectorStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	// the scout is sequential; a couple of connections is plenty
	config.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to enable pgvector: %w", err)
	}
	return &PGVectorStore{pool: pool, ensured: make(map[string]bool)}, nil
}

// Close closes the connection pool.
func (s *PGVectorStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PGVectorStore) table(ctx context.Context, collection string) (string, error) {
	if !isValidTableName(collection) {
		return "", fmt.Errorf("invalid collection name %q", collection)
	}
	ident := pgx.Identifier{collection}.Sanitize()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[collection] {
		return ident, nil
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			payload JSONB NOT NULL,
			embedding vector NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`, ident))
	if err != nil {
		return "", fmt.Errorf("failed to create collection %s: %w", collection, err)
	}
	s.ensured[collection] = true
	return ident, nil
}

// Upsert inserts points, replacing payload and vector of existing ids.
func (s *PGVectorStore) Upsert(ctx context.Context, collection string, points []Point) error {
	ident, err := s.table(ctx, collection)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, payload, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET payload = EXCLUDED.payload, embedding = EXCLUDED.embedding, updated_at = NOW()
	`, ident)

	batch := &pgx.Batch{}
	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		batch.Queue(query, p.ID, payload, pgvector.NewVector(p.Vector))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()
	for range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to upsert point: %w", err)
		}
	}
	return nil
}

// Query returns the payloads nearest to vector by cosine distance.
func (s *PGVectorStore) Query(ctx context.Context, collection string, vector []float32, limit int) ([]Payload, error) {
	ident, err := s.table(ctx, collection)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT payload
		FROM %s
		WHERE vector_dims(embedding) = vector_dims($1::vector)
		ORDER BY embedding <=> $1
		LIMIT $2
	`, ident), pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var out []Payload
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var p Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// IDs lists every point id in collection.
func (s *PGVectorStore) IDs(ctx context.Context, collection string) (map[uuid.UUID]struct{}, error) {
	ident, err := s.table(ctx, collection)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT id FROM %s", ident))
	if err != nil {
		return nil, fmt.Errorf("failed to list ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}
