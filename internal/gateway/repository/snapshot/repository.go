package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store keeps screenshots attached to logged outcomes.
type Store interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// URL returns a time-limited download link, or "" when the backend has
	// no URL form.
	URL(ctx context.Context, key string) (string, error)
}

var ErrNotFound = errors.New("snapshot not found")

// Key builds the object key for a logged outcome: snapshots/YYYY/MM/DD/<id>.jpg.
func Key(id string, at time.Time) string {
	return fmt.Sprintf("snapshots/%s/%s.jpg", at.UTC().Format("2006/01/02"), strings.TrimSpace(id))
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("snapshot key is required")
	}
	return key, nil
}
