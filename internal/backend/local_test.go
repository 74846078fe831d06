package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/coach"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/repository/lastaction"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/repository/snapshot"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

var _ coach.Backend = (*Local)(nil)

func TestLocal_LogAndQuery(t *testing.T) {
	snaps := snapshot.NewMemoryStore()
	last := lastaction.New(8, time.Hour)
	l := NewLocal(LocalConfig{Snapshots: snaps, LastAction: last})
	ctx := context.Background()
	at := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

	id, err := l.Log(ctx, coach.AnalysisLog{
		ID:          "01HX",
		Goal:        "Ship the report",
		Observation: "Save dialog open",
		MicroAssist: "Click Save",
		State:       types.StateFrictionDetected,
		Confidence:  types.ConfidenceHigh,
		Vector:      []float32{1, 0},
		Timestamp:   at.UnixMilli(),
		Screenshot:  []byte{0xff, 0xd8},
	})
	require.NoError(t, err)
	assert.Equal(t, "01HX", id)
	require.NoError(t, l.LogAnalysis(ctx, coach.AnalysisLog{Goal: "Ship the report", Observation: "no vector", MicroAssist: "Wait"}))

	hist, err := l.History(ctx)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "Wait", hist[0].MicroAssist)
	assert.NotEmpty(t, hist[0].ID)
	assert.Equal(t, types.StateFrictionDetected, hist[1].State)
	assert.Equal(t, at.UnixMilli(), hist[1].Timestamp)

	stored, err := snaps.Get(ctx, snapshot.Key("01HX", at))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, stored)

	insights, err := l.SimilarContext(ctx, []float32{0.9, 0.1})
	require.NoError(t, err)
	require.Len(t, insights, 1)
	assert.Equal(t, "Click Save", insights[0].MicroAssist)
	assert.Greater(t, insights[0].Score, 0.9)

	entry, ok := l.LastAction("ship the report")
	require.True(t, ok)
	assert.Equal(t, "Wait", entry.MicroAssist)
}

func TestLocal_Chat(t *testing.T) {
	l := NewLocal(LocalConfig{})
	ctx := context.Background()
	require.NoError(t, l.LogChat(ctx, coach.ChatLog{Role: types.RoleUser, Text: "hi", Timestamp: 1000}))
	require.NoError(t, l.LogChat(ctx, coach.ChatLog{Role: types.RoleModel, Text: "hello", Timestamp: 2000}))
	assert.Error(t, l.LogChat(ctx, coach.ChatLog{Role: "system", Text: "x"}))

	turns, err := l.ChatHistory(ctx)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, types.ChatTurn{Role: types.RoleUser, Text: "hi", Timestamp: 1000}, turns[0])
}

func TestLocal_EmptyVector(t *testing.T) {
	l := NewLocal(LocalConfig{})
	got, err := l.SimilarContext(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
