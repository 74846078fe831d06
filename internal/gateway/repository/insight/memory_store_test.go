package insight

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RecentNewestFirst(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Append(ctx, Record{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.ErrorIs(t, s.Append(ctx, Record{}), ErrInvalidRecord)
}

func TestMemoryStore_Similar(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, Record{ID: "x", Observation: "east", Vector: []float32{1, 0}}))
	require.NoError(t, s.Append(ctx, Record{ID: "y", Observation: "north", Vector: []float32{0, 1}}))
	require.NoError(t, s.Append(ctx, Record{ID: "z", Observation: "north-east", Vector: []float32{1, 1}}))
	require.NoError(t, s.Append(ctx, Record{ID: "n", Observation: "no vector"}))
	require.NoError(t, s.Append(ctx, Record{ID: "w", Observation: "wrong dims", Vector: []float32{1, 0, 0}}))

	got, err := s.Similar(ctx, []float32{1, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].ID)
	assert.Equal(t, "z", got[1].ID)
	assert.Greater(t, got[0].Score, got[1].Score)

	none, err := s.Similar(ctx, nil, 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{2, 0}, []float32{5, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 1}, []float32{-1, -1}), 1e-9)
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 1}))
}
