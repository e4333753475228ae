// Package updater refreshes the knowledge store from the package registry
// and the project change log. Fetch failures never reach callers: any
// failure while building VersionInfo resolves to FallbackVersionInfo.
package updater

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pydverify/backend/internal/knowledge"
	"github.com/pydverify/backend/internal/metrics"
	"github.com/pydverify/backend/pkg/logger"
)

// UpdateLogLimit caps the update-history journal.
const UpdateLogLimit = 50

type DocsFetcher interface {
	Fetch(ctx context.Context) (knowledge.DocsBlob, error)
}

// Invalidator drops cached verdicts computed against an older knowledge
// version.
type Invalidator interface {
	InvalidateVerdicts(ctx context.Context) error
}

type Config struct {
	RegistryURL  string
	ChangelogURL string
	Timeout      time.Duration
	MaxAttempts  int
	Docs         DocsFetcher
	Invalidator  Invalidator
	Now          func() time.Time
}

type Updater struct {
	store       *knowledge.Store
	registry    *RegistryClient
	changelog   *ChangelogClient
	docs        DocsFetcher
	invalidator Invalidator
	now         func() time.Time
}

type UpdateResult struct {
	VersionInfo  knowledge.VersionInfo `json:"version_info"`
	EntriesCount int                   `json:"entries_count"`
	UsedFallback bool                  `json:"used_fallback"`
}

type ComprehensiveResult struct {
	UpdateResult
	PreviousVersion string `json:"previous_version"`
	VersionChanged  bool   `json:"version_changed"`
	DocsRefreshed   bool   `json:"docs_refreshed"`
}

func New(store *knowledge.Store, cfg Config) *Updater {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Updater{
		store:       store,
		registry:    NewRegistryClient(cfg.RegistryURL, cfg.Timeout, cfg.MaxAttempts),
		changelog:   NewChangelogClient(cfg.ChangelogURL, cfg.Timeout, cfg.MaxAttempts),
		docs:        cfg.Docs,
		invalidator: cfg.Invalidator,
		now:         cfg.Now,
	}
}

// FetchVersionInfo never fails. The second return value reports whether
// the baseline was substituted.
func (u *Updater) FetchVersionInfo(ctx context.Context) (knowledge.VersionInfo, bool) {
	logger.Info("Fetching latest version info")

	info, err := u.fetchVersionInfo(ctx)
	if err != nil {
		logger.Error("Error fetching version info, using fallback", zap.Error(err))
		return FallbackVersionInfo(u.now()), true
	}

	logger.Info("Version info fetched",
		zap.String("version", info.Version),
		zap.Int("new_features", len(info.NewFeatures)),
		zap.Int("breaking_changes", len(info.BreakingChanges)),
	)
	return info, false
}

func (u *Updater) fetchVersionInfo(ctx context.Context) (info knowledge.VersionInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic while fetching: %v", ErrFetch, r)
		}
	}()

	release, err := u.registry.Latest(ctx)
	if err != nil {
		metrics.FetchFailures.WithLabelValues("registry").Inc()
		return knowledge.VersionInfo{}, err
	}

	body, err := u.changelog.Notes(ctx, release.Version)
	if err != nil {
		metrics.FetchFailures.WithLabelValues("changelog").Inc()
		return knowledge.VersionInfo{}, err
	}
	notes := parseReleaseNotes(body)

	releaseDate := release.ReleaseDate
	if releaseDate == "" {
		releaseDate = u.now().UTC().Format(time.RFC3339)
	}
	docsURL := release.HomePage
	if docsURL == "" {
		docsURL = DefaultDocsURL
	}

	return knowledge.VersionInfo{
		Version:                 release.Version,
		ReleaseDate:             releaseDate,
		MajorChanges:            notes.MajorChanges,
		BreakingChanges:         notes.BreakingChanges,
		NewFeatures:             notes.NewFeatures,
		PerformanceImprovements: notes.PerformanceImprovements,
		DocumentationURL:        docsURL,
	}, nil
}

// UpdateKnowledgeBase fetches version info, persists it, rebuilds and
// persists the entry set, then appends to the update log. Only storage
// failures are returned.
func (u *Updater) UpdateKnowledgeBase(ctx context.Context) (UpdateResult, error) {
	logger.Info("Starting knowledge base update")

	info, fallback := u.FetchVersionInfo(ctx)

	if err := u.store.SaveVersionInfo(info); err != nil {
		metrics.KnowledgeUpdates.WithLabelValues("error").Inc()
		return UpdateResult{}, err
	}

	now := u.now()
	entries := BuildKnowledgeBase(info, now)
	if err := u.store.Save(entries); err != nil {
		metrics.KnowledgeUpdates.WithLabelValues("error").Inc()
		return UpdateResult{}, err
	}

	record := knowledge.UpdateRecord{
		Timestamp:            now.UTC(),
		Version:              info.Version,
		EntriesCount:         len(entries),
		NewFeaturesCount:     len(info.NewFeatures),
		BreakingChangesCount: len(info.BreakingChanges),
	}
	if err := knowledge.AppendCapped(u.store, knowledge.UpdateLogFile, record, UpdateLogLimit); err != nil {
		metrics.KnowledgeUpdates.WithLabelValues("error").Inc()
		return UpdateResult{}, fmt.Errorf("failed to append update log: %w", err)
	}

	status := "success"
	if fallback {
		status = "fallback"
	}
	metrics.KnowledgeUpdates.WithLabelValues(status).Inc()
	metrics.KnowledgeEntries.Set(float64(len(entries)))

	logger.Info("Knowledge base update completed",
		zap.String("version", info.Version),
		zap.Int("entries", len(entries)),
		zap.Bool("fallback", fallback),
	)

	return UpdateResult{
		VersionInfo:  info,
		EntriesCount: len(entries),
		UsedFallback: fallback,
	}, nil
}

// ComprehensiveUpdate runs a regular update, forces a docs refresh and
// compares the tracked version with the previously stored one.
func (u *Updater) ComprehensiveUpdate(ctx context.Context) (ComprehensiveResult, error) {
	logger.Info("Performing comprehensive update")

	previous := ""
	if info := u.store.LoadVersionInfo(); info != nil {
		previous = info.Version
	}

	res, err := u.UpdateKnowledgeBase(ctx)
	if err != nil {
		return ComprehensiveResult{}, err
	}

	out := ComprehensiveResult{
		UpdateResult:    res,
		PreviousVersion: previous,
		VersionChanged:  previous != "" && previous != res.VersionInfo.Version,
	}

	if out.VersionChanged {
		logger.Info("Tracked version changed",
			zap.String("from", previous),
			zap.String("to", res.VersionInfo.Version),
		)
		if u.invalidator != nil {
			if err := u.invalidator.InvalidateVerdicts(ctx); err != nil {
				logger.Warn("Failed to invalidate cached verdicts", zap.Error(err))
			}
		}
	}

	refreshed, err := u.RefreshDocs(ctx, true)
	if err != nil {
		return out, err
	}
	out.DocsRefreshed = refreshed

	return out, nil
}

// RefreshDocs refetches the documentation blob when it is missing, older
// than knowledge.DocsMaxAge, or force is set. A fetch failure is logged and
// reported as not refreshed.
func (u *Updater) RefreshDocs(ctx context.Context, force bool) (bool, error) {
	if u.docs == nil {
		return false, nil
	}

	if !force {
		if _, fresh := u.store.LoadDocs(knowledge.DocsMaxAge); fresh {
			logger.Debug("Docs cache is fresh, skipping fetch")
			return false, nil
		}
	}

	blob, err := u.docs.Fetch(ctx)
	if err != nil {
		metrics.FetchFailures.WithLabelValues("docs").Inc()
		logger.Warn("Failed to fetch documentation", zap.Error(err))
		return false, nil
	}

	if err := u.store.SaveDocs(blob); err != nil {
		return false, err
	}
	return true, nil
}

// History returns the update log, oldest first.
func (u *Updater) History() ([]knowledge.UpdateRecord, error) {
	return knowledge.ReadJournal[knowledge.UpdateRecord](u.store, knowledge.UpdateLogFile)
}
