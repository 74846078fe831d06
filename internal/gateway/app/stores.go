package app

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	insightcache "github.com/YashviHirani/ScreenBuddyDemo/internal/cache/insight"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/coach"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/config"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/repository/chatlog"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/repository/insight"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/repository/lastaction"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/repository/settings"
	"github.com/YashviHirani/ScreenBuddyDemo/internal/gateway/repository/snapshot"
)

const memoryInsightLimit = 10000

type gatewayStores struct {
	insights   insight.Store
	chats      chatlog.Store
	snapshots  snapshot.Store
	lastAction *lastaction.Cache
	settings   coach.SettingsStore
	closers    []func() error
}

func (s *gatewayStores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Printf("stores: close: %v", err)
		}
	}
}

func initStores(cfg *config.Config) (*gatewayStores, error) {
	stores := &gatewayStores{lastAction: lastaction.New(lastaction.DefaultSize, lastaction.DefaultTTL)}

	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		if err := initPostgresStores(stores, dsn); err != nil {
			return nil, err
		}
	} else {
		initInMemoryStores(stores)
	}

	snaps, err := chooseSnapshotStore(cfg)
	if err != nil {
		stores.Close()
		return nil, err
	}
	stores.snapshots = snaps

	st, err := openSettings(cfg)
	if err != nil {
		stores.Close()
		return nil, err
	}
	stores.settings = st
	if c, ok := st.(interface{ Close() error }); ok {
		stores.closers = append(stores.closers, c.Close)
	}
	return stores, nil
}

func initPostgresStores(stores *gatewayStores, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	stores.closers = append(stores.closers, db.Close)
	stores.insights = insightcache.NewCachedStore(insight.NewPostgresStore(db), insightcache.DefaultCacheConfig())
	stores.chats = chatlog.NewPostgresStore(db)
	log.Printf("history store: postgres")
	return nil
}

func initInMemoryStores(stores *gatewayStores) {
	stores.insights = insightcache.NewCachedStore(insight.NewMemoryStore(memoryInsightLimit), insightcache.DefaultCacheConfig())
	stores.chats = chatlog.NewMemoryStore()
	log.Printf("history store: in-memory")
}

func chooseSnapshotStore(cfg *config.Config) (snapshot.Store, error) {
	if !cfg.Snapshot.CanUseS3() {
		if cfg.Snapshot.Enabled {
			log.Printf("snapshot store: using in-memory fallback (s3 config incomplete)")
		}
		return snapshot.NewMemoryStore(), nil
	}
	s3Cfg := snapshot.S3Config{
		Endpoint:  cfg.Snapshot.Endpoint,
		Region:    cfg.Snapshot.Region,
		AccessKey: cfg.Snapshot.AccessKey,
		SecretKey: cfg.Snapshot.SecretKey,
		Bucket:    cfg.Snapshot.Bucket,
		UseSSL:    cfg.Snapshot.UseSSL,
	}
	s3Store, err := snapshot.NewS3Store(s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot s3 store: %w", err)
	}
	log.Printf("snapshot store: s3 bucket=%s endpoint=%s", s3Cfg.Bucket, s3Cfg.Endpoint)
	return s3Store, nil
}

func openSettings(cfg *config.Config) (coach.SettingsStore, error) {
	path := strings.TrimSpace(cfg.SettingsPath)
	if path == "" {
		return coach.NewMemorySettings(), nil
	}
	st, err := settings.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings %s: %w", path, err)
	}
	log.Printf("settings store: sqlite %s", path)
	return st, nil
}
