package llm

import (
	"context"
	"sync"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

// FakeProvider returns deterministic results for offline runs and tests.
// AnalyzeFn/ChatFn override the canned answers when set.
type FakeProvider struct {
	Label     string
	AnalyzeFn func(ctx context.Context, req AnalyzeRequest) (types.AnalysisOutcome, error)
	ChatFn    func(ctx context.Context, req ChatRequest) (string, error)
	EmbedFn   func(ctx context.Context, text string) ([]float32, error)

	mu       sync.Mutex
	analyzes int
	chats    int
}

func NewFakeProvider(label string) *FakeProvider { return &FakeProvider{Label: label} }

func (f *FakeProvider) Name() string { return "Fake:" + f.Label }
func (f *FakeProvider) Close() error { return nil }

func (f *FakeProvider) AnalyzeFrame(ctx context.Context, req AnalyzeRequest) (types.AnalysisOutcome, error) {
	f.mu.Lock()
	f.analyzes++
	f.mu.Unlock()
	if f.AnalyzeFn != nil {
		return f.AnalyzeFn(ctx, req)
	}
	return ParseOutcome("State: Smooth\nObservation: fake observation\nMicro-Assist: keep going\nConfidence: High"), nil
}

func (f *FakeProvider) SendChat(ctx context.Context, req ChatRequest) (string, error) {
	f.mu.Lock()
	f.chats++
	f.mu.Unlock()
	if f.ChatFn != nil {
		return f.ChatFn(ctx, req)
	}
	return "fake reply: " + req.Message, nil
}

func (f *FakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.EmbedFn != nil {
		return f.EmbedFn(ctx, text)
	}
	return []float32{float32(len(text)), 1}, nil
}

// Calls returns how many analyze and chat calls reached the fake.
func (f *FakeProvider) Calls() (analyze, chat int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analyzes, f.chats
}

// RegisterFakes points every provider kind at a FakeProvider, for offline
// runs without real credentials.
func RegisterFakes(r *Registry) *Registry {
	for _, kind := range []ProviderKind{ProviderGemini, ProviderOpenAI} {
		kind := kind
		r.Register(kind, func(_ context.Context, _ string) (Provider, error) {
			return NewFakeProvider(string(kind)), nil
		})
	}
	return r
}
