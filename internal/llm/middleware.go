package llm

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

// Middleware decorates a Provider to inject cross-cutting concerns
// (rate limiting, logging, tracing, error normalization).
type Middleware func(Provider) Provider

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Provider, mws ...Middleware) Provider {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// unwrapper is implemented by every middleware wrapper.
type unwrapper interface{ Unwrap() Provider }

// AsEmbedder finds an Embedder anywhere in a middleware chain.
func AsEmbedder(p Provider) (Embedder, bool) {
	for p != nil {
		if e, ok := p.(Embedder); ok {
			return e, true
		}
		u, ok := p.(unwrapper)
		if !ok {
			return nil, false
		}
		p = u.Unwrap()
	}
	return nil, false
}

// -------- Rate Limiting --------

// RateLimit limits request rate per provider with a token bucket.
// If rps <= 0, the limiter is disabled.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Provider) Provider {
		if rps <= 0 {
			return next
		}
		if burst <= 0 {
			burst = 1
		}
		return &rateLimited{next: next, rl: rate.NewLimiter(rate.Limit(rps), burst)}
	}
}

type rateLimited struct {
	next Provider
	rl   *rate.Limiter
}

func (c *rateLimited) Name() string     { return c.next.Name() }
func (c *rateLimited) Close() error     { return c.next.Close() }
func (c *rateLimited) Unwrap() Provider { return c.next }
func (c *rateLimited) AnalyzeFrame(ctx context.Context, req AnalyzeRequest) (types.AnalysisOutcome, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return types.AnalysisOutcome{}, err
	}
	return c.next.AnalyzeFrame(ctx, req)
}
func (c *rateLimited) SendChat(ctx context.Context, req ChatRequest) (string, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}
	return c.next.SendChat(ctx, req)
}

// -------- Logging --------

// WithLogging logs request size and errors. Provide a custom logger or nil
// to use log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next Provider) Provider {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next Provider
	log  *log.Logger
}

func (l *logging) Name() string     { return l.next.Name() }
func (l *logging) Close() error     { return l.next.Close() }
func (l *logging) Unwrap() Provider { return l.next }
func (l *logging) AnalyzeFrame(ctx context.Context, req AnalyzeRequest) (types.AnalysisOutcome, error) {
	l.log.Printf("LLM request (%s analyze): %d image bytes, %d insights", l.next.Name(), len(req.Image), len(req.Insights))
	out, err := l.next.AnalyzeFrame(ctx, req)
	if err != nil {
		l.log.Printf("LLM error (%s analyze): %v", l.next.Name(), RedactMedia(err.Error()))
	}
	return out, err
}
func (l *logging) SendChat(ctx context.Context, req ChatRequest) (string, error) {
	l.log.Printf("LLM request (%s chat): %d history turns, %d message bytes", l.next.Name(), len(req.History), len(req.Message))
	out, err := l.next.SendChat(ctx, req)
	if err != nil {
		l.log.Printf("LLM error (%s chat): %v", l.next.Name(), RedactMedia(err.Error()))
	}
	return out, err
}

// -------- Tracing --------

// WithTracing opens one span per provider call. A nil tracer uses the
// global provider.
func WithTracing(tracer trace.Tracer) Middleware {
	if tracer == nil {
		tracer = otel.Tracer("screenbuddy/llm")
	}
	return func(next Provider) Provider {
		return &traced{next: next, tracer: tracer}
	}
}

type traced struct {
	next   Provider
	tracer trace.Tracer
}

func (t *traced) Name() string     { return t.next.Name() }
func (t *traced) Close() error     { return t.next.Close() }
func (t *traced) Unwrap() Provider { return t.next }
func (t *traced) AnalyzeFrame(ctx context.Context, req AnalyzeRequest) (types.AnalysisOutcome, error) {
	ctx, span := t.tracer.Start(ctx, "llm.AnalyzeFrame", trace.WithAttributes(
		attribute.String("llm.provider", t.next.Name()),
		attribute.Int("llm.image_bytes", len(req.Image)),
	))
	defer span.End()
	out, err := t.next.AnalyzeFrame(ctx, req)
	endSpan(span, err)
	if err == nil {
		span.SetAttributes(attribute.String("llm.state", string(out.State)))
	}
	return out, err
}
func (t *traced) SendChat(ctx context.Context, req ChatRequest) (string, error) {
	ctx, span := t.tracer.Start(ctx, "llm.SendChat", trace.WithAttributes(
		attribute.String("llm.provider", t.next.Name()),
		attribute.Int("llm.history_turns", len(req.History)),
	))
	defer span.End()
	out, err := t.next.SendChat(ctx, req)
	endSpan(span, err)
	return out, err
}

func endSpan(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	if c := Classify(err); c != nil {
		span.SetAttributes(attribute.String("llm.error_kind", c.Kind.String()))
	}
	span.SetStatus(codes.Error, err.Error())
}

// -------- Classification --------

// WithClassification guarantees every error leaving the chain is a
// *ClassifiedError, whatever shape the inner provider produced.
func WithClassification() Middleware {
	return func(next Provider) Provider {
		return &classifying{next: next}
	}
}

type classifying struct{ next Provider }

func (c *classifying) Name() string     { return c.next.Name() }
func (c *classifying) Close() error     { return c.next.Close() }
func (c *classifying) Unwrap() Provider { return c.next }
func (c *classifying) AnalyzeFrame(ctx context.Context, req AnalyzeRequest) (types.AnalysisOutcome, error) {
	out, err := c.next.AnalyzeFrame(ctx, req)
	if err != nil {
		return types.AnalysisOutcome{}, Classify(err)
	}
	return out, nil
}
func (c *classifying) SendChat(ctx context.Context, req ChatRequest) (string, error) {
	out, err := c.next.SendChat(ctx, req)
	if err != nil {
		return "", Classify(err)
	}
	return out, nil
}
