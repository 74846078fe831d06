package coach

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/llm"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

// Config holds the loop's tunable policy values.
type Config struct {
	// Interval is the cooldown between the end of one cycle and the next tick.
	Interval time.Duration
	// FrameRetryDelay is used instead of Interval when no new frame was available.
	FrameRetryDelay time.Duration
	// Backoff separates attempts within one failover loop.
	Backoff time.Duration
	// CallTimeout bounds a single provider call. Zero disables it.
	CallTimeout time.Duration
	// EnrichTimeout bounds similar-context retrieval before a call.
	EnrichTimeout    time.Duration
	HistoryLimit     int
	ChatHistoryLimit int
}

func DefaultConfig() Config {
	return Config{
		Interval:         4 * time.Second,
		FrameRetryDelay:  time.Second,
		Backoff:          200 * time.Millisecond,
		CallTimeout:      60 * time.Second,
		EnrichTimeout:    5 * time.Second,
		HistoryLimit:     50,
		ChatHistoryLimit: 100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.FrameRetryDelay <= 0 {
		c.FrameRetryDelay = d.FrameRetryDelay
	}
	if c.Backoff < 0 {
		c.Backoff = 0
	}
	if c.CallTimeout < 0 {
		c.CallTimeout = 0
	}
	if c.EnrichTimeout <= 0 {
		c.EnrichTimeout = d.EnrichTimeout
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.ChatHistoryLimit <= 0 {
		c.ChatHistoryLimit = d.ChatHistoryLimit
	}
	return c
}

// Deps are the collaborators shared by the analysis loop and chat.
type Deps struct {
	Frames    FrameSource
	Pool      *Pool
	Quota     *QuotaGuard
	Providers ProviderSource
	Backend   Backend
	Observer  Observer
	Signal    *Signal
	Clock     func() time.Time
	NewID     func() string
}

func (d Deps) withDefaults() Deps {
	if d.Pool == nil {
		d.Pool = NewPool(nil)
	}
	if d.Quota == nil {
		d.Quota = NewQuotaGuard(nil)
	}
	if d.Backend == nil {
		d.Backend = NopBackend{}
	}
	if d.Observer == nil {
		d.Observer = NopObserver{}
	}
	if d.Signal == nil {
		d.Signal = &Signal{}
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.NewID == nil {
		d.NewID = func() string { return ulid.Make().String() }
	}
	return d
}

func (d Deps) failover(cfg Config) *failover {
	return &failover{
		pool:        d.Pool,
		quota:       d.Quota,
		providers:   d.Providers,
		obs:         d.Observer,
		backoff:     cfg.Backoff,
		callTimeout: cfg.CallTimeout,
	}
}

type CycleStatus string

const (
	CycleSkipped      CycleStatus = "skipped"
	CyclePaused       CycleStatus = "paused"
	CycleBusy         CycleStatus = "busy"
	CycleHalted       CycleStatus = "halted"
	CycleSafetyLocked CycleStatus = "safety_locked"
	CycleNoFrame      CycleStatus = "no_frame"
	CycleSuccess      CycleStatus = "success"
	CycleRejected     CycleStatus = "rejected"
	CycleExhausted    CycleStatus = "exhausted"
	CycleStale        CycleStatus = "stale"
)

// CycleResult describes one tick. Next is the delay before the following tick.
type CycleResult struct {
	Status   CycleStatus
	Attempts int
	Outcome  *types.AnalysisOutcome
	Err      *llm.ClassifiedError
	Next     time.Duration
}

// Analyzer owns the polling loop: one cycle at a time, rescheduled relative
// to the end of the previous one.
type Analyzer struct {
	cfg  Config
	deps Deps
	fo   *failover

	baseCtx context.Context
	cancel  context.CancelFunc

	mu            sync.Mutex
	phase         Phase
	goal          string
	capturing     bool
	analyzing     bool
	paused        bool
	halted        bool
	quotaExceeded bool
	gen           uint64
	message       string
	captureErr    string
	current       *types.AnalysisOutcome
	prevCtx       *types.AnalysisContext
	history       []types.AnalysisOutcome // newest first
	lastSpoken    string
	timer         *time.Timer
	manual        bool
}

func NewAnalyzer(deps Deps, cfg Config) *Analyzer {
	cfg = cfg.withDefaults()
	deps = deps.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Analyzer{
		cfg:     cfg,
		deps:    deps,
		fo:      deps.failover(cfg),
		baseCtx: ctx,
		cancel:  cancel,
		phase:   PhaseIdle,
	}
}

// LoadHistory seeds the visible history from the backend.
func (a *Analyzer) LoadHistory(ctx context.Context) {
	items, err := a.deps.Backend.History(ctx)
	if err != nil {
		log.Printf("coach: preload history: %v", err)
		return
	}
	if len(items) > a.cfg.HistoryLimit {
		items = items[:a.cfg.HistoryLimit]
	}
	a.mu.Lock()
	a.history = append([]types.AnalysisOutcome(nil), items...)
	a.mu.Unlock()
}

// Start activates the frame source and schedules the first tick.
func (a *Analyzer) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.capturing {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	if err := a.deps.Frames.StartCapture(ctx); err != nil {
		a.mu.Lock()
		a.captureErr = err.Error()
		a.phase = PhaseIdle
		a.mu.Unlock()
		return err
	}

	a.mu.Lock()
	a.capturing = true
	a.gen++
	gen := a.gen
	a.phase = PhaseCapturing
	a.captureErr = ""
	a.message = ""
	manual := a.manual
	a.mu.Unlock()

	if !manual {
		a.schedule(gen, 0)
	}
	return nil
}

// Stop cancels the pending tick. An in-flight call finishes but its result
// is discarded.
func (a *Analyzer) Stop() {
	a.mu.Lock()
	if !a.capturing {
		a.mu.Unlock()
		return
	}
	a.capturing = false
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.phase = PhaseIdle
	a.message = ""
	a.mu.Unlock()
	a.deps.Frames.StopCapture()
}

// ReportCaptureError stops capturing and surfaces err verbatim.
func (a *Analyzer) ReportCaptureError(err *CaptureError) {
	a.Stop()
	a.mu.Lock()
	a.captureErr = err.Message
	a.mu.Unlock()
}

// Close stops the loop and aborts any in-flight call.
func (a *Analyzer) Close() {
	a.Stop()
	a.cancel()
}

func (a *Analyzer) schedule(gen uint64, d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.capturing || a.gen != gen {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(d, func() { a.tick(gen) })
}

func (a *Analyzer) tick(gen uint64) {
	res := a.RunCycle(a.baseCtx)
	if res.Status == CycleSkipped {
		return
	}
	a.schedule(gen, res.Next)
}

// RunCycle performs one tick of the loop.
func (a *Analyzer) RunCycle(ctx context.Context) CycleResult {
	res := a.runCycle(ctx)
	a.deps.Observer.Cycle(res.Status)
	return res
}

func (a *Analyzer) runCycle(ctx context.Context) CycleResult {
	a.mu.Lock()
	idle := CycleResult{Next: a.cfg.Interval}
	switch {
	case !a.capturing:
		a.mu.Unlock()
		return CycleResult{Status: CycleSkipped}
	case a.paused:
		a.mu.Unlock()
		idle.Status = CyclePaused
		return idle
	case a.analyzing:
		a.mu.Unlock()
		idle.Status = CycleBusy
		return idle
	case a.halted:
		a.mu.Unlock()
		idle.Status = CycleHalted
		return idle
	}
	if a.deps.Pool.Len() == 0 {
		a.phase = PhaseHalted
		a.message = MsgNoCredentials
		a.mu.Unlock()
		a.deps.Signal.Raise(OpAnalysis)
		idle.Status = CycleHalted
		return idle
	}
	if a.deps.Quota.IsSafetyLocked() {
		a.phase = PhaseHalted
		a.message = MsgSafetyLocked
		a.quotaExceeded = true
		a.mu.Unlock()
		idle.Status = CycleSafetyLocked
		return idle
	}
	frame := a.deps.Frames.TakeSnapshot()
	if frame == nil {
		a.phase = PhaseCooldown
		a.mu.Unlock()
		return CycleResult{Status: CycleNoFrame, Next: a.cfg.FrameRetryDelay}
	}
	a.analyzing = true
	a.phase = PhaseAnalyzing
	a.message = MsgAnalysing
	gen, goal, prev := a.gen, a.goal, a.prevCtx
	a.mu.Unlock()

	req := llm.AnalyzeRequest{
		Image:    frame,
		Goal:     goal,
		Context:  prev,
		Insights: a.similarContext(ctx, goal, prev),
	}
	var out types.AnalysisOutcome
	fo := a.fo.run(ctx, OpAnalysis, func(ctx context.Context, p llm.Provider) error {
		o, err := p.AnalyzeFrame(ctx, req)
		if err == nil {
			out = o
		}
		return err
	})

	res, after := a.finish(ctx, gen, goal, frame, out, fo)
	if after != nil {
		after()
	}
	return res
}

func (a *Analyzer) finish(ctx context.Context, gen uint64, goal string, frame []byte, out types.AnalysisOutcome, fo failoverResult) (CycleResult, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.analyzing = false
	res := CycleResult{Attempts: fo.Attempts, Err: fo.Err, Next: a.cfg.Interval}

	superseded := fo.Superseded || (!fo.ok() && fo.PoolGen != a.deps.Pool.Generation())
	if !a.capturing || a.gen != gen || a.goal != goal || ctx.Err() != nil || superseded {
		res.Status = CycleStale
		if a.capturing && a.phase == PhaseAnalyzing {
			a.phase = PhaseCooldown
		}
		return res, nil
	}

	switch {
	case fo.ok():
		out.ID = a.deps.NewID()
		out.Timestamp = a.deps.Clock().UnixMilli()
		out.Screenshot = frame
		out.Goal = goal
		a.current = &out
		a.prevCtx = types.ContextFrom(out)
		a.appendHistoryLocked(out)
		a.message = ""
		a.quotaExceeded = false
		a.phase = PhaseCooldown
		res.Status = CycleSuccess
		snapshot := out.Clone()
		res.Outcome = &snapshot
		cred := fo.Cred
		return res, func() {
			a.deps.Signal.Clear()
			a.deps.Observer.Outcome(snapshot)
			a.logOutcome(snapshot, cred)
		}

	case fo.Exhausted:
		a.halted = true
		a.quotaExceeded = true
		a.phase = PhaseHalted
		a.message = MsgExhausted
		res.Status = CycleExhausted
		return res, func() {
			a.deps.Signal.Raise(OpAnalysis)
			a.deps.Observer.Exhausted(OpAnalysis)
		}

	default:
		a.message = rejectedMessage(fo.Err)
		a.phase = PhaseCooldown
		res.Status = CycleRejected
		return res, nil
	}
}

func rejectedMessage(err *llm.ClassifiedError) string {
	if err == nil {
		return "Analysis failed"
	}
	detail := strings.TrimSpace(err.Detail)
	if detail == "" {
		detail = err.Error()
	}
	return "Analysis failed: " + detail
}

// appendHistoryLocked applies the dedup policy: steady states and repeats of
// the newest (state, micro-assist) pair are not logged.
func (a *Analyzer) appendHistoryLocked(o types.AnalysisOutcome) {
	if o.State.Uninteresting() {
		return
	}
	if len(a.history) > 0 && a.history[0].SameDirective(o) {
		return
	}
	a.history = append([]types.AnalysisOutcome{o}, a.history...)
	if len(a.history) > a.cfg.HistoryLimit {
		a.history = a.history[:a.cfg.HistoryLimit]
	}
}

// similarContext retrieves past scenarios for Gemini credentials. Any
// failure yields no insights.
func (a *Analyzer) similarContext(ctx context.Context, goal string, prev *types.AnalysisContext) []types.Insight {
	emb := a.embedderFor(ctx)
	if emb == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.EnrichTimeout)
	defer cancel()

	query := goal
	if prev != nil && strings.TrimSpace(prev.LastObservation) != "" {
		query = prev.LastObservation
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}
	vec, err := emb.Embed(ctx, query)
	if err != nil {
		log.Printf("coach: embedding generation failed: %v", err)
		return nil
	}
	insights, err := a.deps.Backend.SimilarContext(ctx, vec)
	if err != nil {
		log.Printf("coach: similar context fetch failed: %v", err)
		return nil
	}
	return insights
}

func (a *Analyzer) embedderFor(ctx context.Context) llm.Embedder {
	cred, ok := a.deps.Pool.Current()
	if !ok || cred.Kind != llm.ProviderGemini {
		return nil
	}
	return embedderFor(ctx, a.deps.Providers, cred)
}

func embedderFor(ctx context.Context, src ProviderSource, cred Credential) llm.Embedder {
	if cred.Kind != llm.ProviderGemini {
		return nil
	}
	p, err := src.Provider(ctx, cred.Value)
	if err != nil {
		return nil
	}
	e, _ := llm.AsEmbedder(p)
	return e
}

func (a *Analyzer) logOutcome(o types.AnalysisOutcome, cred Credential) {
	providers, backend := a.deps.Providers, a.deps.Backend
	Detach("log analysis", func(ctx context.Context) error {
		entry := AnalysisLog{
			ID:          o.ID,
			Goal:        o.Goal,
			Observation: o.Observation,
			MicroAssist: o.MicroAssist,
			State:       o.State,
			Confidence:  o.Confidence,
			Timestamp:   o.Timestamp,
			Screenshot:  o.Screenshot,
		}
		if emb := embedderFor(ctx, providers, cred); emb != nil {
			vec, err := emb.Embed(ctx, o.Observation)
			if err != nil {
				log.Printf("coach: embedding generation failed: %v", err)
			} else {
				entry.Vector = vec
			}
		}
		return backend.LogAnalysis(ctx, entry)
	})
}

// Reconfigure replaces the credential pool and clears halted and
// exhaustion flags; the loop resumes on its next tick.
func (a *Analyzer) Reconfigure(ctx context.Context, creds []Credential) error {
	if err := a.deps.Pool.Replace(ctx, creds); err != nil {
		return err
	}
	a.mu.Lock()
	a.halted = false
	a.quotaExceeded = false
	a.message = ""
	if a.phase == PhaseHalted && a.capturing {
		a.phase = PhaseCapturing
	}
	a.mu.Unlock()
	a.deps.Signal.Clear()
	return nil
}

// SetGoal switches the session goal. On a real change the continuity
// context is dropped and a cycle still running for the old goal is
// discarded when it returns.
func (a *Analyzer) SetGoal(goal string) {
	goal = strings.TrimSpace(goal)
	a.mu.Lock()
	if goal != a.goal {
		a.goal = goal
		a.prevCtx = nil
	}
	a.mu.Unlock()
}

func (a *Analyzer) Goal() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.goal
}

// SetPaused suspends passive analysis, e.g. while a live session runs.
func (a *Analyzer) SetPaused(paused bool) {
	a.mu.Lock()
	a.paused = paused
	a.mu.Unlock()
}

// Current returns a copy of the live display outcome, or nil.
func (a *Analyzer) Current() *types.AnalysisOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return nil
	}
	c := a.current.Clone()
	return &c
}

// History returns the visible history, newest first.
func (a *Analyzer) History() []types.AnalysisOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]types.AnalysisOutcome, len(a.history))
	for i, h := range a.history {
		out[i] = h.Clone()
	}
	return out
}

func (a *Analyzer) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Status snapshots the session. SpeakText is handed out once per distinct
// micro-assist and never while paused.
func (a *Analyzer) Status() Status {
	pool := a.deps.Pool.Snapshot()
	keyIndex, keyCount := pool.Current, len(pool.Creds)
	raised, _ := a.deps.Signal.Raised()
	q := a.deps.Quota

	a.mu.Lock()
	defer a.mu.Unlock()
	st := Status{
		Phase:            a.phase,
		Capturing:        a.capturing,
		Analyzing:        a.analyzing,
		Paused:           a.paused,
		Goal:             a.goal,
		Message:          a.message,
		CaptureError:     a.captureErr,
		NeedsReconfigure: raised || keyCount == 0,
		QuotaExceeded:    a.quotaExceeded,
		Usage:            q.Usage(),
		Remaining:        q.Remaining(),
		DailyLimit:       q.DailyLimit(),
		SafetyLimit:      q.SafetyLimit(),
		KeyCount:         keyCount,
		KeyIndex:         keyIndex,
	}
	if a.current != nil {
		c := a.current.Clone()
		c.Screenshot = nil
		st.Current = &c
		if !a.paused && c.MicroAssist != "" && c.MicroAssist != a.lastSpoken {
			st.SpeakText = c.MicroAssist
			a.lastSpoken = c.MicroAssist
		}
	}
	return st
}
