package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/backend"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/coach"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/events"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/frame"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/config"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/handler"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/handler/rpc"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/server"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/live"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/llm"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/metrics"
)

type App struct {
	server   *server.Server
	analyzer *coach.Analyzer
	live     *live.Manager
	stores   *gatewayStores
	shutdown []func(context.Context) error
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return Build(cfg)
}

// Build wires every component from cfg.
func Build(cfg *config.Config) (*App, error) {
	a := &App{}
	ctx := context.Background()

	stores, err := initStores(cfg)
	if err != nil {
		return nil, err
	}
	a.stores = stores

	if cfg.OTelStdout {
		stop, err := initTracing(cfg.Env)
		if err != nil {
			stores.Close()
			return nil, err
		}
		a.shutdown = append(a.shutdown, stop)
	}

	// Metrics & events
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	observers := []coach.Observer{metrics.New(reg)}
	if cfg.NATS.URL != "" {
		pub, err := events.Connect(events.Config{URL: cfg.NATS.URL, Subject: cfg.NATS.Subject})
		if err != nil {
			log.Printf("events: disabled: %v", err)
		} else {
			observers = append(observers, pub)
			a.shutdown = append(a.shutdown, func(context.Context) error { return pub.Close() })
		}
	}

	// Credentials & quota
	pool := coach.NewPool(stores.settings)
	if err := pool.Load(ctx); err != nil {
		log.Printf("credentials: load: %v", err)
	}
	if pool.Len() == 0 && cfg.SeedKeys != "" {
		if err := pool.Replace(ctx, coach.ParseCredentials(cfg.SeedKeys)); err != nil {
			log.Printf("credentials: seed: %v", err)
		}
	}
	quota := coach.NewQuotaGuard(stores.settings, coach.WithLimits(cfg.Policy.DailyLimit, cfg.Policy.SafetyLimit))
	if err := quota.Load(ctx); err != nil {
		log.Printf("quota: load: %v", err)
	}
	metrics.RegisterQuota(reg, quota)

	registry := newRegistry(cfg)

	// Backend
	local := backend.NewLocal(backend.LocalConfig{
		Insights:   stores.insights,
		Chats:      stores.chats,
		Snapshots:  stores.snapshots,
		LastAction: stores.lastAction,
	})
	var coachBackend coach.Backend = local
	if cfg.BackendURL != "" {
		coachBackend = backend.NewHTTPClient(cfg.BackendURL, nil)
		log.Printf("backend: remote %s", cfg.BackendURL)
	}

	// Orchestrators
	var frameOpts []frame.Option
	if cfg.Policy.FrameMaxAge > 0 {
		frameOpts = append(frameOpts, frame.WithMaxAge(cfg.Policy.FrameMaxAge))
	}
	mailbox := frame.NewMailbox(frameOpts...)
	threshold := cfg.Policy.DiffThreshold
	if threshold == 0 {
		threshold = frame.DefaultDiffThreshold
	}
	signal := &coach.Signal{}
	deps := coach.Deps{
		Frames:    mailbox.Reader(threshold),
		Pool:      pool,
		Quota:     quota,
		Providers: registry,
		Backend:   coachBackend,
		Observer:  coach.Observers(observers...),
		Signal:    signal,
	}
	coachCfg := coachConfig(cfg.Policy)
	analyzer := coach.NewAnalyzer(deps, coachCfg)
	chatDeps := deps
	chatDeps.Frames = mailbox.Reader(0)
	chat := coach.NewChat(chatDeps, coachCfg, analyzer.Goal)
	analyzer.LoadHistory(ctx)
	chat.LoadHistory(ctx)
	a.analyzer = analyzer

	a.live = live.NewManager(live.Config{
		Model: cfg.Gemini.LiveModel,
		Dial:  live.GenAIDialer(cfg.Gemini.BaseURL),
	})

	// Routing & Server
	mux := server.NewMux(server.Handlers{
		Backend:        handler.NewBackendHandler(local),
		Frames:         handler.NewFrameHandler(mailbox),
		Live:           handler.NewLiveHandler(a.live, pool, analyzer, cfg.AllowedOrigins),
		Coach:          rpc.NewCoachHandler(analyzer, chat, registry.Forget),
		Gatherer:       reg,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	a.server = server.New(cfg.Port, mux)
	return a, nil
}

func newRegistry(cfg *config.Config) *llm.Registry {
	registry := llm.NewRegistry(0,
		llm.WithClassification(),
		llm.WithTracing(nil),
		llm.WithLogging(nil),
		llm.RateLimit(cfg.Policy.RateLimit, cfg.Policy.RateBurst),
	)
	if cfg.FakeLLM {
		log.Printf("llm: using fake providers")
		return llm.RegisterFakes(registry)
	}
	return registry.Defaults(
		llm.GeminiConfig{Model: cfg.Gemini.Model, EmbedModel: cfg.Gemini.EmbedModel, BaseURL: cfg.Gemini.BaseURL},
		llm.OpenAIConfig{Model: cfg.OpenAI.Model, BaseURL: strings.TrimRight(cfg.OpenAI.BaseURL, "/")},
	)
}

func coachConfig(p config.Policy) coach.Config {
	c := coach.DefaultConfig()
	if p.Interval > 0 {
		c.Interval = p.Interval
	}
	if p.FrameRetryDelay > 0 {
		c.FrameRetryDelay = p.FrameRetryDelay
	}
	if p.Backoff > 0 {
		c.Backoff = p.Backoff
	}
	if p.CallTimeout > 0 {
		c.CallTimeout = p.CallTimeout
	}
	if p.HistoryLimit > 0 {
		c.HistoryLimit = p.HistoryLimit
	}
	if p.ChatHistoryLimit > 0 {
		c.ChatHistoryLimit = p.ChatHistoryLimit
	}
	return c
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	a.live.Stop()
	a.analyzer.Close()
	err = errors.Join(err, coach.WaitDetached(ctx))
	for _, fn := range a.shutdown {
		err = errors.Join(err, fn(ctx))
	}
	a.stores.Close()
	return err
}
