package chatlog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ensureSchema() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS chat_messages (
    id BIGSERIAL PRIMARY KEY,
    role TEXT NOT NULL,
    text TEXT NOT NULL,
    goal_context TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_created_at ON chat_messages(created_at);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Append(ctx context.Context, msg Message) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	if err := validate(msg); err != nil {
		return err
	}
	if err := s.ensureSchema(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO chat_messages (role, text, goal_context, created_at) VALUES ($1, $2, $3, $4)
`, msg.Role, msg.Text, msg.GoalContext, msg.CreatedAt)
	return err
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Message, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT role, text, goal_context, created_at FROM chat_messages ORDER BY created_at ASC, id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Text, &m.GoalContext, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
