package coach

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/llm"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

var (
	errQuota    = &llm.HTTPStatusError{Provider: "openai", StatusCode: 429, Status: "429 Too Many Requests"}
	errRejected = &llm.HTTPStatusError{Provider: "openai", StatusCode: 401, Status: "401 Unauthorized", Body: `{"error":{"message":"Incorrect API key provided"}}`}
)

// fakeFrames hands out the same frame on every snapshot while active.
type fakeFrames struct {
	mu       sync.Mutex
	active   bool
	frame    []byte
	startErr error
	stops    int
}

func (f *fakeFrames) StartCapture(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.active = true
	return nil
}

func (f *fakeFrames) StopCapture() {
	f.mu.Lock()
	f.active = false
	f.stops++
	f.mu.Unlock()
}

func (f *fakeFrames) TakeSnapshot() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active || f.frame == nil {
		return nil
	}
	return append([]byte(nil), f.frame...)
}

func (f *fakeFrames) set(frame []byte) {
	f.mu.Lock()
	f.frame = frame
	f.mu.Unlock()
}

// fakeSource maps each credential to its own fake provider.
type fakeSource struct {
	mu    sync.Mutex
	fakes map[string]*llm.FakeProvider
	order []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{fakes: map[string]*llm.FakeProvider{}}
}

func (s *fakeSource) get(cred string) *llm.FakeProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fakes[cred]
	if !ok {
		f = llm.NewFakeProvider(cred)
		s.fakes[cred] = f
	}
	return f
}

func (s *fakeSource) Provider(_ context.Context, cred string) (llm.Provider, error) {
	f := s.get(cred)
	s.mu.Lock()
	s.order = append(s.order, cred)
	s.mu.Unlock()
	return f, nil
}

func (s *fakeSource) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

func (s *fakeSource) reset() {
	s.mu.Lock()
	s.order = nil
	s.mu.Unlock()
}

func (s *fakeSource) failAnalyze(cred string, err error) {
	s.get(cred).AnalyzeFn = func(context.Context, llm.AnalyzeRequest) (types.AnalysisOutcome, error) {
		return types.AnalysisOutcome{}, err
	}
}

func (s *fakeSource) answer(cred string, o types.AnalysisOutcome) {
	s.get(cred).AnalyzeFn = func(context.Context, llm.AnalyzeRequest) (types.AnalysisOutcome, error) {
		return o, nil
	}
}

type recordingObserver struct {
	NopObserver
	mu        sync.Mutex
	attempts  int
	rotations [][2]int
	exhausted map[Op]int
	cycles    []CycleStatus
	outcomes  []types.AnalysisOutcome
	turns     []types.ChatTurn
}

func (r *recordingObserver) Attempt(Op, llm.ProviderKind, *llm.ClassifiedError) {
	r.mu.Lock()
	r.attempts++
	r.mu.Unlock()
}

func (r *recordingObserver) Rotated(_ Op, from, to int) {
	r.mu.Lock()
	r.rotations = append(r.rotations, [2]int{from, to})
	r.mu.Unlock()
}

func (r *recordingObserver) Exhausted(op Op) {
	r.mu.Lock()
	if r.exhausted == nil {
		r.exhausted = map[Op]int{}
	}
	r.exhausted[op]++
	r.mu.Unlock()
}

func (r *recordingObserver) Cycle(s CycleStatus) {
	r.mu.Lock()
	r.cycles = append(r.cycles, s)
	r.mu.Unlock()
}

func (r *recordingObserver) Outcome(o types.AnalysisOutcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
}

func (r *recordingObserver) ChatTurn(t types.ChatTurn) {
	r.mu.Lock()
	r.turns = append(r.turns, t)
	r.mu.Unlock()
}

func (r *recordingObserver) exhaustedCount(op Op) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exhausted[op]
}

type harness struct {
	deps     Deps
	frames   *fakeFrames
	source   *fakeSource
	obs      *recordingObserver
	settings *MemorySettings
	analyzer *Analyzer
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Backoff = 0
	cfg.CallTimeout = time.Second
	return cfg
}

// newHarness builds a manually driven analyzer over keys. The clock is
// pinned so quota days never roll over mid-test.
func newHarness(t *testing.T, keys ...string) *harness {
	t.Helper()
	settings := NewMemorySettings()
	pool := NewPool(settings)
	creds := make([]Credential, 0, len(keys))
	for _, k := range keys {
		creds = append(creds, NewCredential(k))
	}
	if err := pool.Replace(context.Background(), creds); err != nil {
		t.Fatalf("replace: %v", err)
	}
	now := func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.Local) }
	h := &harness{
		frames:   &fakeFrames{frame: []byte{0xff, 0xd8, 0x01}},
		source:   newFakeSource(),
		obs:      &recordingObserver{},
		settings: settings,
	}
	h.deps = Deps{
		Frames:    h.frames,
		Pool:      pool,
		Quota:     NewQuotaGuard(settings, WithClock(now)),
		Providers: h.source,
		Observer:  h.obs,
		Signal:    &Signal{},
		Clock:     now,
	}
	h.analyzer = NewAnalyzer(h.deps, testConfig())
	h.analyzer.manual = true
	t.Cleanup(func() {
		h.analyzer.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = WaitDetached(ctx)
	})
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.analyzer.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
}

var errBoom = errors.New("boom")

// memBackend records writes and serves canned reads.
type memBackend struct {
	mu       sync.Mutex
	history  []types.AnalysisOutcome
	chat     []types.ChatTurn
	insights []types.Insight
	logged   []AnalysisLog
	chats    []ChatLog
}

func (m *memBackend) History(context.Context) ([]types.AnalysisOutcome, error) {
	return m.history, nil
}

func (m *memBackend) ChatHistory(context.Context) ([]types.ChatTurn, error) {
	return m.chat, nil
}

func (m *memBackend) LogChat(_ context.Context, e ChatLog) error {
	m.mu.Lock()
	m.chats = append(m.chats, e)
	m.mu.Unlock()
	return nil
}

func (m *memBackend) LogAnalysis(_ context.Context, e AnalysisLog) error {
	m.mu.Lock()
	m.logged = append(m.logged, e)
	m.mu.Unlock()
	return nil
}

func (m *memBackend) SimilarContext(context.Context, []float32) ([]types.Insight, error) {
	return m.insights, nil
}

func (m *memBackend) analyses() []AnalysisLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AnalysisLog(nil), m.logged...)
}

func (m *memBackend) chatLogs() []ChatLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatLog(nil), m.chats...)
}
