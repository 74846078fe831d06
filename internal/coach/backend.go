package coach

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

// AnalysisLog is one outcome forwarded to the history backend. Vector is
// set only when an embedding could be computed.
type AnalysisLog struct {
	ID          string           `json:"id,omitempty"`
	Goal        string           `json:"goal"`
	Observation string           `json:"observation"`
	MicroAssist string           `json:"microAssist"`
	State       types.State      `json:"state"`
	Confidence  types.Confidence `json:"confidence"`
	Vector      []float32        `json:"vector,omitempty"`
	Timestamp   int64            `json:"timestamp,omitempty"`
	Screenshot  []byte           `json:"-"`
}

// ChatLog is one chat turn forwarded to the chat log backend.
type ChatLog struct {
	Role        types.Role `json:"role"`
	Text        string     `json:"text"`
	GoalContext string     `json:"goalContext,omitempty"`
	Timestamp   int64      `json:"timestamp,omitempty"`
}

// Backend is the history, chat log and similarity store. The core treats
// every call as best-effort.
type Backend interface {
	// History returns logged outcomes, most recent first.
	History(ctx context.Context) ([]types.AnalysisOutcome, error)
	// ChatHistory returns logged chat turns in chronological order.
	ChatHistory(ctx context.Context) ([]types.ChatTurn, error)
	LogChat(ctx context.Context, entry ChatLog) error
	LogAnalysis(ctx context.Context, entry AnalysisLog) error
	// SimilarContext returns the nearest past scenarios for vector.
	SimilarContext(ctx context.Context, vector []float32) ([]types.Insight, error)
}

// NopBackend discards writes and returns empty reads.
type NopBackend struct{}

func (NopBackend) History(context.Context) ([]types.AnalysisOutcome, error) { return nil, nil }
func (NopBackend) ChatHistory(context.Context) ([]types.ChatTurn, error)    { return nil, nil }
func (NopBackend) LogChat(context.Context, ChatLog) error                   { return nil }
func (NopBackend) LogAnalysis(context.Context, AnalysisLog) error           { return nil }
func (NopBackend) SimilarContext(context.Context, []float32) ([]types.Insight, error) {
	return nil, nil
}

// DetachTimeout bounds every detached side effect.
var DetachTimeout = 15 * time.Second

var detached sync.WaitGroup

// Detach runs fn in its own goroutine with a fresh bounded context. Errors
// and panics are logged and dropped.
func Detach(name string, fn func(ctx context.Context) error) {
	detached.Add(1)
	go func() {
		defer detached.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("coach: detached %s panicked: %v\n%s", name, r, debug.Stack())
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), DetachTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Printf("coach: detached %s failed: %v", name, err)
		}
	}()
}

// WaitDetached blocks until every detached task has finished or ctx ends.
// Used on shutdown and in tests.
func WaitDetached(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		detached.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("coach: waiting for detached tasks: %w", ctx.Err())
	}
}
