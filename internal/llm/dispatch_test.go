package llm

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

func TestDetectKind(t *testing.T) {
	assert.Equal(t, ProviderOpenAI, DetectKind("sk-proj-abc"))
	assert.Equal(t, ProviderOpenAI, DetectKind("  sk-abc \n"))
	assert.Equal(t, ProviderGemini, DetectKind("AIzaSyExample"))
	assert.Equal(t, ProviderGemini, DetectKind("ask-me"))
	assert.Equal(t, ProviderGemini, DetectKind(""))
}

func TestRegistry_DispatchAndCache(t *testing.T) {
	built := map[ProviderKind]int{}
	reg := NewRegistry(8)
	for _, kind := range []ProviderKind{ProviderGemini, ProviderOpenAI} {
		kind := kind
		reg.Register(kind, func(_ context.Context, cred string) (Provider, error) {
			built[kind]++
			return NewFakeProvider(cred), nil
		})
	}

	ctx := context.Background()
	a, err := reg.Provider(ctx, "sk-1")
	require.NoError(t, err)
	b, err := reg.Provider(ctx, " sk-1 ")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, "Fake:sk-1", a.Name())

	_, err = reg.Provider(ctx, "AIza-2")
	require.NoError(t, err)
	assert.Equal(t, 1, built[ProviderOpenAI])
	assert.Equal(t, 1, built[ProviderGemini])

	reg.Forget()
	_, err = reg.Provider(ctx, "sk-1")
	require.NoError(t, err)
	assert.Equal(t, 2, built[ProviderOpenAI])
}

func TestRegistry_MissingFactory(t *testing.T) {
	reg := NewRegistry(0)
	_, err := reg.Provider(context.Background(), "sk-1")
	assert.Error(t, err)
}

func TestRegistry_AppliesMiddleware(t *testing.T) {
	var buf bytes.Buffer
	reg := RegisterFakes(NewRegistry(4, WithLogging(log.New(&buf, "", 0)), WithClassification()))

	p, err := reg.Provider(context.Background(), "AIza")
	require.NoError(t, err)
	_, err = p.AnalyzeFrame(context.Background(), AnalyzeRequest{Image: []byte{1, 2, 3}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "LLM request (Fake:gemini analyze): 3 image bytes")
}

func TestWrap_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next Provider) Provider {
			f := NewFakeProvider(name)
			f.ChatFn = func(ctx context.Context, req ChatRequest) (string, error) {
				order = append(order, name)
				return next.SendChat(ctx, req)
			}
			return f
		}
	}
	p := Wrap(NewFakeProvider("inner"), mark("A"), mark("B"))
	_, err := p.SendChat(context.Background(), ChatRequest{Message: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, order)
}

func TestWithClassification_NormalizesErrors(t *testing.T) {
	inner := NewFakeProvider("x")
	inner.AnalyzeFn = func(context.Context, AnalyzeRequest) (types.AnalysisOutcome, error) {
		return types.AnalysisOutcome{}, errors.New("429 Too Many Requests")
	}
	p := Wrap(inner, WithClassification())
	_, err := p.AnalyzeFrame(context.Background(), AnalyzeRequest{})
	var ce *ClassifiedError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindQuota, ce.Kind)
}

func TestRateLimit_Spacing(t *testing.T) {
	p := Wrap(NewFakeProvider("fast"), RateLimit(20, 1))
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := p.SendChat(ctx, ChatRequest{Message: "x"})
		require.NoError(t, err)
	}
	// burst 1 at 20 rps: the 2nd and 3rd calls each wait ~50ms.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRateLimit_Disabled(t *testing.T) {
	inner := NewFakeProvider("x")
	assert.Same(t, Provider(inner), RateLimit(0, 0)(inner))
}

func TestRateLimit_ContextCanceled(t *testing.T) {
	p := Wrap(NewFakeProvider("x"), RateLimit(0.001, 1))
	ctx, cancel := context.WithCancel(context.Background())
	_, err := p.SendChat(ctx, ChatRequest{})
	require.NoError(t, err)
	cancel()
	_, err = p.SendChat(ctx, ChatRequest{})
	assert.Error(t, err)
}

func TestWithTracing_PassesThrough(t *testing.T) {
	p := Wrap(NewFakeProvider("x"), WithTracing(nil))
	reply, err := p.SendChat(context.Background(), ChatRequest{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "fake reply: hello", reply)
	_, ok := AsEmbedder(p)
	assert.True(t, ok)
}
