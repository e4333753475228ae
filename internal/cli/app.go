package cli

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pydverify/backend/internal/assessment"
	"github.com/pydverify/backend/internal/cache/redis"
	"github.com/pydverify/backend/internal/catalog"
	"github.com/pydverify/backend/internal/docs"
	"github.com/pydverify/backend/internal/enhancer"
	"github.com/pydverify/backend/internal/knowledge"
	"github.com/pydverify/backend/internal/pipeline"
	"github.com/pydverify/backend/internal/storage/sqlite"
	"github.com/pydverify/backend/internal/updater"
	"github.com/pydverify/backend/internal/verifier"
	"github.com/pydverify/backend/pkg/config"
	"github.com/pydverify/backend/pkg/logger"
)

// ErrConfig marks failures that stem from configuration or an unusable
// storage path. They map to exit code 2.
var ErrConfig = errors.New("configuration error")

// app holds the components shared by every command.
type app struct {
	cfg        *config.Config
	store      *knowledge.Store
	catalog    catalog.Catalog
	engine     *pipeline.Engine
	updater    *updater.Updater
	aggregator *assessment.Aggregator

	cache *redis.Client
	runs  *sqlite.Client
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	store, err := knowledge.NewStore(cfg.Cache.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	a := &app{
		cfg:     cfg,
		store:   store,
		catalog: catalog.Default(),
	}

	var engineOpts []pipeline.Option
	if cfg.Redis.Enabled {
		cache, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn("Verdict cache unavailable, continuing without it", zap.Error(err))
		} else {
			a.cache = cache
			engineOpts = append(engineOpts, pipeline.WithCache(cache, time.Duration(cfg.Redis.TTLSec)*time.Second))
		}
	}

	if cfg.SQLite.Enabled {
		runs, err := sqlite.NewClient(cfg.SQLite.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		if err := runs.InitSchema(); err != nil {
			runs.Close()
			a.Close()
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		a.runs = runs
	}

	a.engine = pipeline.NewEngine(verifier.New(a.catalog, store), enhancer.New(a.catalog), engineOpts...)

	updaterCfg := updater.Config{
		RegistryURL:  cfg.Registry.URL,
		ChangelogURL: cfg.Registry.ChangelogURL,
		Timeout:      cfg.Registry.Timeout(),
		MaxAttempts:  cfg.Registry.MaxAttempts,
	}
	if cfg.Registry.DocsURL != "" {
		updaterCfg.Docs = docs.NewFetcher(cfg.Registry.DocsURL, cfg.Registry.Timeout())
	}
	if a.cache != nil {
		updaterCfg.Invalidator = a.cache
	}
	a.updater = updater.New(store, updaterCfg)

	aggCfg := assessment.Config{
		Library:    a.catalog.Library,
		AutoUpdate: cfg.Schedule.Daily != "" || cfg.Schedule.Weekly != "",
	}
	if a.runs != nil {
		aggCfg.Recorder = a.runs
	}
	a.aggregator = assessment.NewAggregator(a.engine, store, aggCfg)

	logger.Debug("Application wired",
		zap.String("cache_dir", cfg.Cache.Dir),
		zap.Bool("verdict_cache", a.cache != nil),
		zap.Bool("run_mirror", a.runs != nil),
	)

	return a, nil
}

func (a *app) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.runs != nil {
		a.runs.Close()
	}
	logger.Sync()
}
