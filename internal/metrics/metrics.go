// Package metrics exports orchestration counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/YashviHirani/ScreenBuddyDemo/internal/coach"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/llm"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/types"
)

const namespace = "screenbuddy"

// Observer implements coach.Observer on a set of Prometheus collectors.
type Observer struct {
	cycles    *prometheus.CounterVec
	attempts  *prometheus.CounterVec
	rotations *prometheus.CounterVec
	exhausted *prometheus.CounterVec
	outcomes  *prometheus.CounterVec
	chatTurns *prometheus.CounterVec
}

var _ coach.Observer = (*Observer)(nil)

// New registers the collectors on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Observer{
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_cycles_total",
			Help:      "Analysis cycles by result status.",
		}, []string{"status"}),
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Provider calls by operation, provider and result.",
		}, []string{"op", "provider", "result"}),
		rotations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_rotations_total",
			Help:      "Credential rotations after quota or network failures.",
		}, []string{"op"}),
		exhausted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_pool_exhausted_total",
			Help:      "Requests that failed on every configured credential.",
		}, []string{"op"}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_outcomes_total",
			Help:      "Successful analysis outcomes by state.",
		}, []string{"state"}),
		chatTurns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Chat turns by role.",
		}, []string{"role"}),
	}
}

// RegisterQuota exposes the guard's daily usage and remaining budget as gauges.
func RegisterQuota(reg prometheus.Registerer, q *coach.QuotaGuard) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "quota_usage",
		Help:      "Successful provider calls counted today.",
	}, func() float64 { return float64(q.Usage()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "quota_remaining",
		Help:      "Calls left before the daily limit.",
	}, func() float64 { return float64(q.Remaining()) })
}

func (o *Observer) Attempt(op coach.Op, kind llm.ProviderKind, err *llm.ClassifiedError) {
	result := "ok"
	if err != nil {
		result = err.Kind.String()
	}
	o.attempts.WithLabelValues(string(op), string(kind), result).Inc()
}

func (o *Observer) Rotated(op coach.Op, _, _ int) {
	o.rotations.WithLabelValues(string(op)).Inc()
}

func (o *Observer) Exhausted(op coach.Op) {
	o.exhausted.WithLabelValues(string(op)).Inc()
}

func (o *Observer) Cycle(status coach.CycleStatus) {
	o.cycles.WithLabelValues(string(status)).Inc()
}

func (o *Observer) Outcome(out types.AnalysisOutcome) {
	o.outcomes.WithLabelValues(string(out.State)).Inc()
}

func (o *Observer) ChatTurn(t types.ChatTurn) {
	o.chatTurns.WithLabelValues(string(t.Role)).Inc()
}
