package insight

import (
	"context"
	"errors"
	"time"
)

// Record is one logged analysis outcome.
type Record struct {
	ID          string
	Goal        string
	Observation string
	MicroAssist string
	State       string
	Confidence  string
	// Vector is nil when no embedding was computed; such records never
	// show up in similarity search.
	Vector      []float32
	SnapshotKey string
	CreatedAt   time.Time
}

// Match is a similarity hit.
type Match struct {
	Record
	Score float64
}

// Store persists analysis logs and answers nearest-neighbour queries over
// their vectors.
type Store interface {
	Append(ctx context.Context, rec Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
	// Similar returns the k records closest to vector by cosine similarity.
	Similar(ctx context.Context, vector []float32, k int) ([]Match, error)
}

var ErrInvalidRecord = errors.New("insight: record id is required")
