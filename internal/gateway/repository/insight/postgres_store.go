package insight

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgtype"
)

// similarScanLimit bounds how many vectors one similarity query ranks.
const similarScanLimit = 5000

type PostgresStore struct {
	db         *sql.DB
	types      *pgtype.Map
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, types: pgtype.NewMap()}
}

func (s *PostgresStore) ensureSchema() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS analysis_logs (
    id TEXT PRIMARY KEY,
    goal TEXT NOT NULL DEFAULT '',
    observation TEXT NOT NULL DEFAULT '',
    micro_assist TEXT NOT NULL DEFAULT '',
    state TEXT NOT NULL DEFAULT '',
    confidence TEXT NOT NULL DEFAULT '',
    vector REAL[],
    snapshot_key TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_analysis_logs_created_at ON analysis_logs(created_at DESC);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if strings.TrimSpace(rec.ID) == "" {
		return ErrInvalidRecord
	}
	if err := s.ensureSchema(); err != nil {
		return err
	}
	var vector any
	if len(rec.Vector) > 0 {
		vector = rec.Vector
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO analysis_logs (id, goal, observation, micro_assist, state, confidence, vector, snapshot_key, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING
`, rec.ID, rec.Goal, rec.Observation, rec.MicroAssist, rec.State, rec.Confidence, vector, rec.SnapshotKey, rec.CreatedAt)
	return err
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, goal, observation, micro_assist, state, confidence, snapshot_key, created_at
FROM analysis_logs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Goal, &r.Observation, &r.MicroAssist, &r.State, &r.Confidence, &r.SnapshotKey, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Similar ranks the most recent vectors in Go; the table holds at most a
// few thousand rows per user.
func (s *PostgresStore) Similar(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, goal, observation, micro_assist, state, vector, created_at
FROM analysis_logs WHERE vector IS NOT NULL AND cardinality(vector) = $1
ORDER BY created_at DESC LIMIT $2`, len(vector), similarScanLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Goal, &r.Observation, &r.MicroAssist, &r.State, s.types.SQLScanner(&r.Vector), &r.CreatedAt); err != nil {
			return nil, err
		}
		candidates = append(candidates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topK(vector, candidates, k), nil
}
