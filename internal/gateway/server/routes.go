package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/backend"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/handler"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/handler/rpc"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/middleware"
)

type Handlers struct {
	Backend *handler.BackendHandler
	Frames  *handler.FrameHandler
	Live    *handler.LiveHandler
	Coach   *rpc.CoachHandler
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// AllowedOrigins limits CORS; empty allows every origin.
	AllowedOrigins []string
}

func NewMux(h Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(h.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	gatherer := h.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// REST backend
	if h.Backend != nil {
		r.Get(backend.PathHistory, h.Backend.HandleHistory)
		r.Get(backend.PathChatHistory, h.Backend.HandleChatHistory)
		r.Post(backend.PathChatLog, h.Backend.HandleChatLog)
		r.Post(backend.PathLog, h.Backend.HandleLog)
		r.Post(backend.PathContext, h.Backend.HandleContext)
		r.Get(backend.PathLastAction, h.Backend.HandleLastAction)
	}

	if h.Frames != nil {
		r.Post("/api/frames", h.Frames.HandleFrame)
	}
	if h.Live != nil {
		r.Get("/api/live", h.Live.HandleLive)
	}

	// RPC handlers
	if h.Coach != nil {
		h.Coach.Mount(r)
	}
	return r
}
