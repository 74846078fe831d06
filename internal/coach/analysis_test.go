package coach

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/llm"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

func friction(assist string) types.AnalysisOutcome {
	return types.AnalysisOutcome{
		State:       types.StateFrictionDetected,
		Observation: "dialog open",
		MicroAssist: assist,
		Confidence:  types.ConfidenceHigh,
	}
}

func TestRunCycle_RotatesPastQuotaFailures(t *testing.T) {
	h := newHarness(t, "sk-a", "sk-b", "sk-c")
	h.source.failAnalyze("sk-a", errQuota)
	h.source.failAnalyze("sk-b", errQuota)
	h.source.answer("sk-c", friction("Click Save"))
	h.start(t)

	res := h.analyzer.RunCycle(context.Background())
	require.Equal(t, CycleSuccess, res.Status)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []string{"sk-a", "sk-b", "sk-c"}, h.source.calls())

	assert.Equal(t, 2, h.deps.Pool.Snapshot().Current)
	v, ok, _ := h.settings.Get(context.Background(), KeyCurrentIndex)
	require.True(t, ok)
	assert.Equal(t, "2", v)
	assert.Equal(t, 1, h.deps.Quota.Usage())
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, h.obs.rotations)

	require.NotNil(t, res.Outcome)
	assert.Equal(t, "Click Save", res.Outcome.MicroAssist)
	assert.Equal(t, []byte{0xff, 0xd8, 0x01}, res.Outcome.Screenshot)
	assert.NotEmpty(t, res.Outcome.ID)
	assert.Len(t, h.analyzer.History(), 1)

	// The next cycle starts at the known-good key.
	h.source.reset()
	res = h.analyzer.RunCycle(context.Background())
	require.Equal(t, CycleSuccess, res.Status)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []string{"sk-c"}, h.source.calls())
}

func TestRunCycle_ExhaustionHaltsAndSignalsOnce(t *testing.T) {
	h := newHarness(t, "sk-a", "sk-b", "sk-c")
	for _, k := range []string{"sk-a", "sk-b", "sk-c"} {
		h.source.failAnalyze(k, errQuota)
	}
	h.start(t)

	res := h.analyzer.RunCycle(context.Background())
	require.Equal(t, CycleExhausted, res.Status)
	assert.Equal(t, 3, res.Attempts)
	require.NotNil(t, res.Err)
	assert.Equal(t, llm.KindQuota, res.Err.Kind)
	assert.Empty(t, h.analyzer.History())
	assert.Nil(t, h.analyzer.Current())
	assert.Equal(t, 0, h.deps.Quota.Usage())

	raised, src := h.deps.Signal.Raised()
	assert.True(t, raised)
	assert.Equal(t, OpAnalysis, src)
	assert.Equal(t, 1, h.obs.exhaustedCount(OpAnalysis))

	st := h.analyzer.Status()
	assert.Equal(t, PhaseHalted, st.Phase)
	assert.Equal(t, MsgExhausted, st.Message)
	assert.True(t, st.QuotaExceeded)
	assert.True(t, st.NeedsReconfigure)

	// Halted until reconfigured: no further provider calls.
	h.source.reset()
	res = h.analyzer.RunCycle(context.Background())
	assert.Equal(t, CycleHalted, res.Status)
	assert.Empty(t, h.source.calls())
	assert.Equal(t, 1, h.obs.exhaustedCount(OpAnalysis))

	require.NoError(t, h.analyzer.Reconfigure(context.Background(), ParseCredentials("sk-fresh")))
	raised, _ = h.deps.Signal.Raised()
	assert.False(t, raised)
	res = h.analyzer.RunCycle(context.Background())
	assert.Equal(t, CycleSuccess, res.Status)
	assert.Equal(t, []string{"sk-fresh"}, h.source.calls())
	assert.False(t, h.analyzer.Status().QuotaExceeded)
}

func TestRunCycle_RejectedStopsAfterOneAttempt(t *testing.T) {
	h := newHarness(t, "sk-a", "sk-b")
	h.source.failAnalyze("sk-a", errRejected)
	h.start(t)

	res := h.analyzer.RunCycle(context.Background())
	assert.Equal(t, CycleRejected, res.Status)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []string{"sk-a"}, h.source.calls())

	assert.Equal(t, 0, h.deps.Pool.Snapshot().Current)
	raised, _ := h.deps.Signal.Raised()
	assert.False(t, raised)
	st := h.analyzer.Status()
	assert.Contains(t, st.Message, "Incorrect API key provided")
	assert.Equal(t, PhaseCooldown, st.Phase)
	assert.Equal(t, testConfig().Interval, res.Next)
}

func TestRunCycle_HistoryDedup(t *testing.T) {
	h := newHarness(t, "sk-a")
	h.start(t)
	steps := []types.AnalysisOutcome{
		friction("Click Save"),
		friction("Click Save"),
		{State: types.StateSmooth, MicroAssist: "keep going"},
		friction("Click Export"),
		friction("Click Save"),
	}
	for _, o := range steps {
		h.source.answer("sk-a", o)
		res := h.analyzer.RunCycle(context.Background())
		require.Equal(t, CycleSuccess, res.Status)
	}

	hist := h.analyzer.History()
	require.Len(t, hist, 3)
	assert.Equal(t, "Click Save", hist[0].MicroAssist)
	assert.Equal(t, "Click Export", hist[1].MicroAssist)
	assert.Equal(t, "Click Save", hist[2].MicroAssist)
	assert.Equal(t, 5, h.deps.Quota.Usage())
	// The smooth cycle is still the live display before being replaced.
	assert.Equal(t, "Click Save", h.analyzer.Current().MicroAssist)
}

func TestRunCycle_NoCredentials(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	res := h.analyzer.RunCycle(context.Background())
	assert.Equal(t, CycleHalted, res.Status)
	assert.Zero(t, res.Attempts)
	assert.Empty(t, h.source.calls())
	raised, _ := h.deps.Signal.Raised()
	assert.True(t, raised)
	st := h.analyzer.Status()
	assert.Equal(t, MsgNoCredentials, st.Message)
	assert.True(t, st.NeedsReconfigure)
}

func TestRunCycle_SafetyLock(t *testing.T) {
	h := newHarness(t, "sk-a")
	for i := 0; i < DefaultSafetyLimit; i++ {
		h.deps.Quota.Increment()
	}
	h.start(t)

	res := h.analyzer.RunCycle(context.Background())
	assert.Equal(t, CycleSafetyLocked, res.Status)
	assert.Zero(t, res.Attempts)
	assert.Empty(t, h.source.calls())
	st := h.analyzer.Status()
	assert.Equal(t, MsgSafetyLocked, st.Message)
	assert.True(t, st.QuotaExceeded)
	assert.Equal(t, DefaultSafetyLimit, st.Usage)
	assert.Equal(t, DefaultDailyLimit-DefaultSafetyLimit, st.Remaining)
}

func TestRunCycle_NoFrameRetriesSooner(t *testing.T) {
	h := newHarness(t, "sk-a")
	h.frames.set(nil)
	h.start(t)

	res := h.analyzer.RunCycle(context.Background())
	assert.Equal(t, CycleNoFrame, res.Status)
	assert.Equal(t, testConfig().FrameRetryDelay, res.Next)
	assert.Empty(t, h.source.calls())
}

func TestRunCycle_SkippedWhenIdleOrPaused(t *testing.T) {
	h := newHarness(t, "sk-a")
	assert.Equal(t, CycleSkipped, h.analyzer.RunCycle(context.Background()).Status)

	h.start(t)
	h.analyzer.SetPaused(true)
	assert.Equal(t, CyclePaused, h.analyzer.RunCycle(context.Background()).Status)
	assert.Empty(t, h.source.calls())
}

func TestRunCycle_StopDiscardsInFlightResult(t *testing.T) {
	h := newHarness(t, "sk-a")
	started := make(chan struct{})
	release := make(chan struct{})
	h.source.get("sk-a").AnalyzeFn = func(context.Context, llm.AnalyzeRequest) (types.AnalysisOutcome, error) {
		close(started)
		<-release
		return friction("late"), nil
	}
	h.start(t)

	done := make(chan CycleResult, 1)
	go func() { done <- h.analyzer.RunCycle(context.Background()) }()
	<-started
	assert.Equal(t, CycleBusy, h.analyzer.RunCycle(context.Background()).Status)
	h.analyzer.Stop()
	close(release)

	res := <-done
	assert.Equal(t, CycleStale, res.Status)
	assert.Nil(t, h.analyzer.Current())
	assert.Empty(t, h.analyzer.History())
	assert.Equal(t, PhaseIdle, h.analyzer.Phase())
}

// Keys replaced while the old pool's last call is in flight: the late
// quota failure belongs to the old list and must not halt the new one.
func TestRunCycle_ReconfigureDuringFlight(t *testing.T) {
	h := newHarness(t, "sk-old")
	started := make(chan struct{})
	release := make(chan struct{})
	h.source.get("sk-old").AnalyzeFn = func(context.Context, llm.AnalyzeRequest) (types.AnalysisOutcome, error) {
		close(started)
		<-release
		return types.AnalysisOutcome{}, errQuota
	}
	h.source.answer("sk-new", friction("Click Save"))
	h.start(t)

	done := make(chan CycleResult, 1)
	go func() { done <- h.analyzer.RunCycle(context.Background()) }()
	<-started
	require.NoError(t, h.analyzer.Reconfigure(context.Background(), ParseCredentials("sk-new")))
	close(release)

	res := <-done
	assert.Equal(t, CycleStale, res.Status)
	raised, _ := h.deps.Signal.Raised()
	assert.False(t, raised)
	assert.Zero(t, h.obs.exhaustedCount(OpAnalysis))
	st := h.analyzer.Status()
	assert.NotEqual(t, MsgExhausted, st.Message)
	assert.False(t, st.QuotaExceeded)
	assert.NotEqual(t, PhaseHalted, st.Phase)

	h.source.reset()
	res = h.analyzer.RunCycle(context.Background())
	require.Equal(t, CycleSuccess, res.Status)
	assert.Equal(t, []string{"sk-new"}, h.source.calls())
}

// A failed attempt on a replaced list stops rotating through old keys.
func TestRunCycle_ReconfigureStopsOldRotation(t *testing.T) {
	h := newHarness(t, "sk-a", "sk-b")
	started := make(chan struct{})
	release := make(chan struct{})
	h.source.get("sk-a").AnalyzeFn = func(context.Context, llm.AnalyzeRequest) (types.AnalysisOutcome, error) {
		close(started)
		<-release
		return types.AnalysisOutcome{}, errQuota
	}
	h.start(t)

	done := make(chan CycleResult, 1)
	go func() { done <- h.analyzer.RunCycle(context.Background()) }()
	<-started
	require.NoError(t, h.analyzer.Reconfigure(context.Background(), ParseCredentials("sk-x sk-y")))
	close(release)

	res := <-done
	assert.Equal(t, CycleStale, res.Status)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, []string{"sk-a"}, h.source.calls())
	assert.Equal(t, 0, h.deps.Pool.Snapshot().Current)
}

func TestSetGoal_DiscardsOldGoalResult(t *testing.T) {
	h := newHarness(t, "sk-a")
	h.analyzer.SetGoal("write tests")
	started := make(chan struct{})
	release := make(chan struct{})
	var reqs []llm.AnalyzeRequest
	var mu sync.Mutex
	first := true
	h.source.get("sk-a").AnalyzeFn = func(_ context.Context, req llm.AnalyzeRequest) (types.AnalysisOutcome, error) {
		mu.Lock()
		reqs = append(reqs, req)
		block := first
		first = false
		mu.Unlock()
		if block {
			close(started)
			<-release
		}
		return friction("Click Save"), nil
	}
	h.start(t)
	require.Equal(t, CycleSuccess, h.analyzer.RunCycle(context.Background()).Status)
	mu.Lock()
	first = true
	mu.Unlock()

	done := make(chan CycleResult, 1)
	go func() { done <- h.analyzer.RunCycle(context.Background()) }()
	<-started
	h.analyzer.SetGoal("ship the report")
	close(release)

	res := <-done
	assert.Equal(t, CycleStale, res.Status)
	assert.Len(t, h.analyzer.History(), 1)

	require.Equal(t, CycleSuccess, h.analyzer.RunCycle(context.Background()).Status)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reqs, 3)
	assert.NotNil(t, reqs[1].Context)
	assert.Equal(t, "ship the report", reqs[2].Goal)
	assert.Nil(t, reqs[2].Context, "continuity does not cross goals")

	// Re-setting the same goal keeps continuity.
	h.analyzer.SetGoal(" ship the report ")
	require.Equal(t, CycleSuccess, h.analyzer.RunCycle(context.Background()).Status)
	require.Len(t, reqs, 4)
	assert.NotNil(t, reqs[3].Context)
}

func TestStart_CaptureError(t *testing.T) {
	h := newHarness(t, "sk-a")
	h.frames.startErr = NewCaptureError(CapturePermissionDenied, "")

	err := h.analyzer.Start(context.Background())
	require.Error(t, err)
	st := h.analyzer.Status()
	assert.False(t, st.Capturing)
	assert.Equal(t, "Permission denied. You must grant screen recording permissions.", st.CaptureError)
}

func TestStatus_SpeakTextOncePerDirective(t *testing.T) {
	h := newHarness(t, "sk-a")
	h.source.answer("sk-a", friction("Click Save"))
	h.start(t)
	require.Equal(t, CycleSuccess, h.analyzer.RunCycle(context.Background()).Status)

	st := h.analyzer.Status()
	assert.Equal(t, "Click Save", st.SpeakText)
	assert.Nil(t, st.Current.Screenshot)
	assert.Empty(t, h.analyzer.Status().SpeakText)

	h.source.answer("sk-a", friction("Click Export"))
	require.Equal(t, CycleSuccess, h.analyzer.RunCycle(context.Background()).Status)
	h.analyzer.SetPaused(true)
	assert.Empty(t, h.analyzer.Status().SpeakText)
	h.analyzer.SetPaused(false)
	assert.Equal(t, "Click Export", h.analyzer.Status().SpeakText)
}

func TestRunCycle_ContinuityAndEnrichment(t *testing.T) {
	h := newHarness(t, "AIza-gemini")
	backend := &memBackend{insights: []types.Insight{{Score: 0.9, Observation: "saw dialog", MicroAssist: "press esc"}}}
	h.deps.Backend = backend
	h.analyzer = NewAnalyzer(h.deps, testConfig())
	h.analyzer.manual = true
	h.analyzer.SetGoal("  ship the report ")

	var reqs []llm.AnalyzeRequest
	h.source.get("AIza-gemini").AnalyzeFn = func(_ context.Context, req llm.AnalyzeRequest) (types.AnalysisOutcome, error) {
		reqs = append(reqs, req)
		return friction("Click Save"), nil
	}
	h.start(t)

	require.Equal(t, CycleSuccess, h.analyzer.RunCycle(context.Background()).Status)
	require.Equal(t, CycleSuccess, h.analyzer.RunCycle(context.Background()).Status)
	require.Len(t, reqs, 2)

	assert.Equal(t, "ship the report", reqs[0].Goal)
	assert.Nil(t, reqs[0].Context)
	assert.Equal(t, backend.insights, reqs[0].Insights)
	require.NotNil(t, reqs[1].Context)
	assert.Equal(t, "dialog open", reqs[1].Context.LastObservation)
	assert.Equal(t, "Click Save", reqs[1].Context.LastInstruction)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, WaitDetached(ctx))
	logs := backend.analyses()
	require.Len(t, logs, 2)
	assert.Equal(t, "ship the report", logs[0].Goal)
	assert.NotEmpty(t, logs[0].Vector)
}

func TestLoadHistory(t *testing.T) {
	h := newHarness(t, "sk-a")
	backend := &memBackend{history: []types.AnalysisOutcome{friction("a"), friction("b")}}
	h.deps.Backend = backend
	a := NewAnalyzer(h.deps, testConfig())
	a.LoadHistory(context.Background())
	assert.Len(t, a.History(), 2)
}

func TestLoop_RunsOnItsOwn(t *testing.T) {
	h := newHarness(t, "sk-a")
	cfg := testConfig()
	cfg.Interval = 10 * time.Millisecond
	a := NewAnalyzer(h.deps, cfg)
	defer a.Close()
	h.source.answer("sk-a", friction("Click Save"))

	require.NoError(t, a.Start(context.Background()))
	assert.Eventually(t, func() bool {
		an, _ := h.source.get("sk-a").Calls()
		return an >= 3
	}, 2*time.Second, 5*time.Millisecond)
	a.Stop()
	assert.Equal(t, PhaseIdle, a.Phase())
}
