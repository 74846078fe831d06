package coach

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"
)

const (
	DefaultDailyLimit  = 1500
	DefaultSafetyLimit = 1490
)

const dateLayout = "2006-01-02"

// QuotaState is the persisted daily usage counter.
type QuotaState struct {
	UsageCount int    `json:"usageCount"`
	DateStamp  string `json:"dateStamp"`
}

// QuotaGuard counts successful provider calls per local calendar day and
// locks new analysis cycles once SafetyLimit is reached.
type QuotaGuard struct {
	mu          sync.Mutex
	store       SettingsStore
	now         func() time.Time
	dailyLimit  int
	safetyLimit int
	state       QuotaState
}

type QuotaOption func(*QuotaGuard)

// WithClock injects the calendar source.
func WithClock(now func() time.Time) QuotaOption {
	return func(q *QuotaGuard) { q.now = now }
}

// WithLimits overrides the daily and safety limits. A safety limit that is
// not strictly below the daily limit is clamped to dailyLimit-1.
func WithLimits(daily, safety int) QuotaOption {
	return func(q *QuotaGuard) {
		if daily > 0 {
			q.dailyLimit = daily
		}
		if safety > 0 {
			q.safetyLimit = safety
		}
	}
}

func NewQuotaGuard(store SettingsStore, opts ...QuotaOption) *QuotaGuard {
	q := &QuotaGuard{
		store:       store,
		now:         time.Now,
		dailyLimit:  DefaultDailyLimit,
		safetyLimit: DefaultSafetyLimit,
	}
	for _, o := range opts {
		o(q)
	}
	if q.safetyLimit >= q.dailyLimit {
		q.safetyLimit = q.dailyLimit - 1
	}
	return q
}

// Load reads the persisted counter. Missing keys start a fresh day.
func (q *QuotaGuard) Load(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	date, _, err := q.store.Get(ctx, KeyQuotaDate)
	if err != nil {
		return err
	}
	raw, _, err := q.store.Get(ctx, KeyQuotaCount)
	if err != nil {
		return err
	}
	n, _ := strconv.Atoi(raw)
	q.mu.Lock()
	q.state = QuotaState{UsageCount: n, DateStamp: date}
	q.mu.Unlock()
	return nil
}

func (q *QuotaGuard) DailyLimit() int  { return q.dailyLimit }
func (q *QuotaGuard) SafetyLimit() int { return q.safetyLimit }

// Usage returns today's count, resetting it first when the day changed.
func (q *QuotaGuard) Usage() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.resetIfNewDayLocked()
	return q.state.UsageCount
}

// Increment records one successful provider call and returns the new count.
func (q *QuotaGuard) Increment() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.resetIfNewDayLocked()
	q.state.UsageCount++
	q.persist(q.state)
	return q.state.UsageCount
}

func (q *QuotaGuard) IsSafetyLocked() bool { return q.Usage() >= q.safetyLimit }

func (q *QuotaGuard) Remaining() int {
	if r := q.dailyLimit - q.Usage(); r > 0 {
		return r
	}
	return 0
}

// State returns the counter as currently persisted (after any lazy reset).
func (q *QuotaGuard) State() QuotaState {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.resetIfNewDayLocked()
	return q.state
}

func (q *QuotaGuard) resetIfNewDayLocked() {
	today := q.now().Format(dateLayout)
	if q.state.DateStamp == today {
		return
	}
	q.state = QuotaState{UsageCount: 0, DateStamp: today}
	q.persist(q.state)
}

// persist runs under q.mu so concurrent increments are written in order.
func (q *QuotaGuard) persist(st QuotaState) {
	if q.store == nil {
		return
	}
	ctx := context.Background()
	if err := q.store.Set(ctx, KeyQuotaDate, st.DateStamp); err != nil {
		log.Printf("coach: persist quota date: %v", err)
		return
	}
	if err := q.store.Set(ctx, KeyQuotaCount, strconv.Itoa(st.UsageCount)); err != nil {
		log.Printf("coach: persist quota count: %v", err)
	}
}
