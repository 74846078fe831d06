package backend

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/coach"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/repository/chatlog"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/repository/insight"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/repository/lastaction"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/repository/snapshot"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

const (
	HistoryLimit     = 50
	ChatHistoryLimit = 100
	ContextTopK      = 3
)

type LocalConfig struct {
	Insights   insight.Store
	Chats      chatlog.Store
	Snapshots  snapshot.Store    // optional
	LastAction *lastaction.Cache // optional
	Clock      func() time.Time
}

// Local serves the backend contract from in-process repositories.
type Local struct {
	insights  insight.Store
	chats     chatlog.Store
	snapshots snapshot.Store
	last      *lastaction.Cache
	now       func() time.Time
}

func NewLocal(cfg LocalConfig) *Local {
	if cfg.Insights == nil {
		cfg.Insights = insight.NewMemoryStore(0)
	}
	if cfg.Chats == nil {
		cfg.Chats = chatlog.NewMemoryStore()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Local{
		insights:  cfg.Insights,
		chats:     cfg.Chats,
		snapshots: cfg.Snapshots,
		last:      cfg.LastAction,
		now:       cfg.Clock,
	}
}

func (l *Local) History(ctx context.Context) ([]types.AnalysisOutcome, error) {
	recs, err := l.insights.Recent(ctx, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("backend: history: %w", err)
	}
	out := make([]types.AnalysisOutcome, 0, len(recs))
	for _, r := range recs {
		out = append(out, types.AnalysisOutcome{
			ID:          r.ID,
			State:       types.State(r.State),
			Observation: r.Observation,
			MicroAssist: r.MicroAssist,
			Confidence:  types.Confidence(r.Confidence),
			Timestamp:   r.CreatedAt.UnixMilli(),
			Goal:        r.Goal,
		})
	}
	return out, nil
}

// SnapshotURL resolves the stored screenshot link for a logged outcome, or "".
func (l *Local) SnapshotURL(ctx context.Context, o types.AnalysisOutcome) string {
	if l.snapshots == nil || o.ID == "" {
		return ""
	}
	u, err := l.snapshots.URL(ctx, snapshot.Key(o.ID, time.UnixMilli(o.Timestamp)))
	if err != nil {
		return ""
	}
	return u
}

func (l *Local) ChatHistory(ctx context.Context) ([]types.ChatTurn, error) {
	msgs, err := l.chats.Recent(ctx, ChatHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("backend: chat history: %w", err)
	}
	out := make([]types.ChatTurn, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, types.ChatTurn{Role: types.Role(m.Role), Text: m.Text, Timestamp: m.CreatedAt.UnixMilli()})
	}
	return out, nil
}

func (l *Local) LogChat(ctx context.Context, e coach.ChatLog) error {
	at := l.now()
	if e.Timestamp > 0 {
		at = time.UnixMilli(e.Timestamp)
	}
	return l.chats.Append(ctx, chatlog.Message{
		Role:        string(e.Role),
		Text:        e.Text,
		GoalContext: e.GoalContext,
		CreatedAt:   at,
	})
}

// LogAnalysis stores the outcome, its screenshot when a snapshot store is
// configured, and refreshes the per-goal last action.
func (l *Local) LogAnalysis(ctx context.Context, e coach.AnalysisLog) error {
	_, err := l.Log(ctx, e)
	return err
}

// Log is LogAnalysis returning the stored record id.
func (l *Local) Log(ctx context.Context, e coach.AnalysisLog) (string, error) {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		id = ulid.Make().String()
	}
	at := l.now()
	if e.Timestamp > 0 {
		at = time.UnixMilli(e.Timestamp)
	}

	rec := insight.Record{
		ID:          id,
		Goal:        e.Goal,
		Observation: e.Observation,
		MicroAssist: e.MicroAssist,
		State:       string(e.State),
		Confidence:  string(e.Confidence),
		Vector:      e.Vector,
		CreatedAt:   at,
	}
	if l.snapshots != nil && len(e.Screenshot) > 0 {
		key := snapshot.Key(id, at)
		if err := l.snapshots.Put(ctx, key, e.Screenshot, "image/jpeg"); err != nil {
			log.Printf("backend: snapshot %s: %v", key, err)
		} else {
			rec.SnapshotKey = key
		}
	}
	if err := l.insights.Append(ctx, rec); err != nil {
		return "", fmt.Errorf("backend: log analysis: %w", err)
	}
	if l.last != nil {
		l.last.Set(e.Goal, lastaction.Entry{Observation: e.Observation, MicroAssist: e.MicroAssist, Timestamp: at})
	}
	return id, nil
}

func (l *Local) SimilarContext(ctx context.Context, vector []float32) ([]types.Insight, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	matches, err := l.insights.Similar(ctx, vector, ContextTopK)
	if err != nil {
		return nil, fmt.Errorf("backend: similar context: %w", err)
	}
	out := make([]types.Insight, 0, len(matches))
	for _, m := range matches {
		out = append(out, types.Insight{Score: m.Score, Observation: m.Observation, MicroAssist: m.MicroAssist})
	}
	return out, nil
}

// LastAction returns the cached latest directive for goal.
func (l *Local) LastAction(goal string) (lastaction.Entry, bool) {
	if l.last == nil {
		return lastaction.Entry{}, false
	}
	return l.last.Get(goal)
}
