package insight

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	insightrepo "github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/repository/insight"
)

type Store = insightrepo.Store

type CacheConfig struct {
	RecentTTL        time.Duration
	RecentMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		RecentTTL:        30 * time.Second,
		RecentMaxEntries: 16,
	}
}

// CachedStore serves Recent from memory until the next Append or TTL.
// Similar always goes to the origin.
type CachedStore struct {
	origin Store
	recent *expirable.LRU[int, []insightrepo.Record]
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.RecentTTL <= 0 {
		cfg.RecentTTL = def.RecentTTL
	}
	if cfg.RecentMaxEntries <= 0 {
		cfg.RecentMaxEntries = def.RecentMaxEntries
	}
	return &CachedStore{
		origin: origin,
		recent: expirable.NewLRU[int, []insightrepo.Record](cfg.RecentMaxEntries, nil, cfg.RecentTTL),
	}
}

func (s *CachedStore) Append(ctx context.Context, rec insightrepo.Record) error {
	if err := s.origin.Append(ctx, rec); err != nil {
		return err
	}
	s.recent.Purge()
	return nil
}

func (s *CachedStore) Recent(ctx context.Context, limit int) ([]insightrepo.Record, error) {
	if recs, ok := s.recent.Get(limit); ok {
		return cloneRecords(recs), nil
	}
	recs, err := s.origin.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.recent.Add(limit, cloneRecords(recs))
	return recs, nil
}

func (s *CachedStore) Similar(ctx context.Context, vector []float32, k int) ([]insightrepo.Match, error) {
	return s.origin.Similar(ctx, vector, k)
}

func cloneRecords(in []insightrepo.Record) []insightrepo.Record {
	if in == nil {
		return nil
	}
	out := make([]insightrepo.Record, len(in))
	for i, r := range in {
		r.Vector = append([]float32(nil), r.Vector...)
		out[i] = r
	}
	return out
}
