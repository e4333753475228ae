package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pydverify/backend/pkg/logger"
)

const (
	KnowledgeFile     = "pydantic_knowledge.json"
	VersionFile       = "version_info.json"
	DocsFile          = "official_docs.json"
	UpdateLogFile     = "update_log.json"
	AssessmentLogFile = "assessment_log.json"
	ReportsDir        = "reports"

	lockFile = ".store.lock"

	// DocsMaxAge is how long a cached documentation blob stays fresh.
	DocsMaxAge = 24 * time.Hour
)

var (
	// ErrCorrupt marks a persisted file that exists but cannot be decoded.
	ErrCorrupt = errors.New("knowledge: corrupt cache file")
	// ErrInvalidEntry is returned by Save for entries missing required fields.
	ErrInvalidEntry = errors.New("knowledge: invalid entry")
)

// Store is the file-backed knowledge cache. Every write replaces a whole
// file through write-to-temp-then-rename while holding an advisory lock on
// the cache directory, so readers see either the old or the new file.
type Store struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

type Option func(*Store)

// WithClock overrides the clock used for "now" defaults and freshness.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	s := &Store{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Load returns the last saved entries and version info. A missing or
// unreadable file yields empty defaults.
func (s *Store) Load() Contents {
	return Contents{
		Entries:     s.loadEntries(),
		VersionInfo: s.LoadVersionInfo(),
	}
}

func (s *Store) loadEntries() map[string]Entry {
	entries := make(map[string]Entry)
	if err := s.readJSON(KnowledgeFile, &entries); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Knowledge base unreadable, treating as empty", zap.Error(err))
		}
		return make(map[string]Entry)
	}
	return entries
}

// LoadVersionInfo returns the stored VersionInfo or nil.
func (s *Store) LoadVersionInfo() *VersionInfo {
	var info VersionInfo
	if err := s.readJSON(VersionFile, &info); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Version info unreadable, treating as absent", zap.Error(err))
		}
		return nil
	}
	return &info
}

// Save replaces the entire entry set.
func (s *Store) Save(entries map[string]Entry) error {
	for id, e := range entries {
		if e.VersionIntroduced == "" {
			return fmt.Errorf("%w: %s has no version_introduced", ErrInvalidEntry, id)
		}
	}
	if entries == nil {
		entries = map[string]Entry{}
	}

	if err := s.writeJSON(KnowledgeFile, entries); err != nil {
		return fmt.Errorf("failed to save knowledge base: %w", err)
	}

	logger.Info("Knowledge base saved", zap.Int("entries", len(entries)))
	return nil
}

func (s *Store) SaveVersionInfo(info VersionInfo) error {
	if err := s.writeJSON(VersionFile, info); err != nil {
		return fmt.Errorf("failed to save version info: %w", err)
	}
	return nil
}

// Latest returns the snapshot used by verification. LastUpdated is the
// newest entry timestamp, or now when the store is empty.
func (s *Store) Latest() Snapshot {
	contents := s.Load()

	last := time.Time{}
	for _, e := range contents.Entries {
		if e.LastUpdated.After(last) {
			last = e.LastUpdated
		}
	}
	if len(contents.Entries) == 0 {
		last = s.now()
	}

	return Snapshot{
		KnowledgeBase: contents.Entries,
		VersionInfo:   contents.VersionInfo,
		LastUpdated:   last,
	}
}

// LoadDocs returns the cached documentation blob and whether it is younger
// than maxAge, measured from the file's modification time.
func (s *Store) LoadDocs(maxAge time.Duration) (*DocsBlob, bool) {
	stat, err := os.Stat(s.Path(DocsFile))
	if err != nil {
		return nil, false
	}

	var blob DocsBlob
	if err := s.readJSON(DocsFile, &blob); err != nil {
		logger.Warn("Docs cache unreadable, treating as absent", zap.Error(err))
		return nil, false
	}

	fresh := s.now().Sub(stat.ModTime()) < maxAge
	return &blob, fresh
}

func (s *Store) SaveDocs(blob DocsBlob) error {
	if err := s.writeJSON(DocsFile, blob); err != nil {
		return fmt.Errorf("failed to save docs: %w", err)
	}
	return nil
}

// SaveReport writes v as reports/<name> and returns the file path.
func (s *Store) SaveReport(name string, v any) (string, error) {
	rel := filepath.Join(ReportsDir, name)
	if err := s.writeJSON(rel, v); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return s.Path(rel), nil
}

func (s *Store) Status() Status {
	snap := s.Latest()
	_, fresh := s.LoadDocs(DocsMaxAge)

	files := make(map[string]bool)
	for _, name := range []string{KnowledgeFile, VersionFile, DocsFile, UpdateLogFile, AssessmentLogFile} {
		_, err := os.Stat(s.Path(name))
		files[name] = err == nil
	}

	return Status{
		EntriesCount:   len(snap.KnowledgeBase),
		LastUpdated:    snap.LastUpdated,
		CurrentVersion: snap.CurrentVersion(),
		DocsFresh:      fresh,
		Files:          files,
	}
}

func (s *Store) readJSON(name string, v any) error {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, name, err)
	}
	return nil
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	return s.withLock(func() error {
		return atomicWrite(s.Path(name), data)
	})
}

// withLock serialises writers in this process and, through flock, across
// processes sharing the cache directory.
func (s *Store) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := lockPath(s.Path(lockFile))
	if err != nil {
		return fmt.Errorf("failed to lock cache dir: %w", err)
	}
	defer unlock()

	return fn()
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
