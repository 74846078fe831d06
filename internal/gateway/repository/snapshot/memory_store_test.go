package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	at := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "snapshots/2026/03/09/01ABC.jpg", Key(" 01ABC ", at))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "/snapshots/a.jpg", []byte{1, 2}, "image/jpeg"))

	got, err := s.Get(ctx, "snapshots/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got)

	_, err = s.Get(ctx, "snapshots/missing.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Error(t, s.Put(ctx, "  ", nil, ""))
}

func TestNewS3Store_Validation(t *testing.T) {
	_, err := NewS3Store(S3Config{})
	assert.Error(t, err)
	_, err = NewS3Store(S3Config{Endpoint: "minio:9000", AccessKey: "a"})
	assert.Error(t, err)

	s, err := NewS3Store(S3Config{Endpoint: "minio:9000", AccessKey: "a", SecretKey: "b", Bucket: "snaps"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", s.region)
}
