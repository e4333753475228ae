package knowledge

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), opts...)
	require.NoError(t, err)
	return s
}

func sampleEntry(topic string, at time.Time) Entry {
	return Entry{
		Topic:             topic,
		Content:           "content for " + topic,
		VersionIntroduced: "2.0.0",
		Examples:          []string{"x = 1"},
		References:        []string{"https://docs.pydantic.dev"},
		LastUpdated:       at,
		AccuracyVerified:  true,
	}
}

func TestLoadEmptyStore(t *testing.T) {
	s := newTestStore(t)

	contents := s.Load()
	assert.Empty(t, contents.Entries)
	assert.Nil(t, contents.VersionInfo)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	at := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	entries := map[string]Entry{
		"basic_usage":  sampleEntry("Basic Pydantic Usage", at),
		"v2_migration": sampleEntry("Pydantic v1 to v2 Migration", at.Add(time.Hour)),
	}
	require.NoError(t, s.Save(entries))
	require.NoError(t, s.SaveVersionInfo(VersionInfo{Version: "2.11.0"}))

	contents := s.Load()
	assert.Equal(t, entries, contents.Entries)
	require.NotNil(t, contents.VersionInfo)
	assert.Equal(t, "2.11.0", contents.VersionInfo.Version)
	assert.Equal(t, "2", contents.VersionInfo.Major())
}

func TestSaveReplacesWholeSet(t *testing.T) {
	s := newTestStore(t)
	at := time.Now().UTC()

	require.NoError(t, s.Save(map[string]Entry{"a": sampleEntry("A", at), "b": sampleEntry("B", at)}))
	require.NoError(t, s.Save(map[string]Entry{"c": sampleEntry("C", at)}))

	entries := s.Load().Entries
	assert.Len(t, entries, 1)
	assert.Contains(t, entries, "c")
}

func TestSaveRejectsEntryWithoutVersion(t *testing.T) {
	s := newTestStore(t)

	err := s.Save(map[string]Entry{"bad": {Topic: "Bad"}})
	assert.ErrorIs(t, err, ErrInvalidEntry)

	_, statErr := os.Stat(s.Path(KnowledgeFile))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCorruptFileIsTreatedAsEmpty(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(KnowledgeFile), []byte("{not json"), 0644))
	require.NoError(t, os.WriteFile(s.Path(VersionFile), []byte("[]"), 0644))

	contents := s.Load()
	assert.Empty(t, contents.Entries)
	assert.Nil(t, contents.VersionInfo)
}

func TestLatestUsesNewestEntryTimestamp(t *testing.T) {
	s := newTestStore(t)
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(map[string]Entry{
		"old": sampleEntry("Old", older),
		"new": sampleEntry("New", newer),
	}))

	snap := s.Latest()
	assert.Len(t, snap.KnowledgeBase, 2)
	assert.True(t, snap.LastUpdated.Equal(newer))
	assert.Equal(t, "", snap.CurrentVersion())
}

func TestLatestEmptyUsesClock(t *testing.T) {
	now := time.Date(2025, 5, 5, 5, 5, 5, 0, time.UTC)
	s := newTestStore(t, WithClock(func() time.Time { return now }))

	snap := s.Latest()
	assert.Empty(t, snap.KnowledgeBase)
	assert.Equal(t, now, snap.LastUpdated)
}

func TestDocsFreshness(t *testing.T) {
	s := newTestStore(t)

	blob, fresh := s.LoadDocs(DocsMaxAge)
	assert.Nil(t, blob)
	assert.False(t, fresh)

	require.NoError(t, s.SaveDocs(DocsBlob{URL: "https://docs.pydantic.dev", Title: "Welcome"}))

	blob, fresh = s.LoadDocs(DocsMaxAge)
	require.NotNil(t, blob)
	assert.Equal(t, "Welcome", blob.Title)
	assert.True(t, fresh)

	stale := time.Now().Add(-25 * time.Hour)
	require.NoError(t, os.Chtimes(s.Path(DocsFile), stale, stale))

	blob, fresh = s.LoadDocs(DocsMaxAge)
	require.NotNil(t, blob)
	assert.False(t, fresh)
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(map[string]Entry{"a": sampleEntry("A", time.Now())}))

	matches, err := filepath.Glob(filepath.Join(s.Dir(), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestAppendCappedKeepsNewest(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 7; i++ {
		require.NoError(t, AppendCapped(s, UpdateLogFile, UpdateRecord{EntriesCount: i}, 5))
	}

	records, err := ReadJournal[UpdateRecord](s, UpdateLogFile)
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, 2, records[0].EntriesCount)
	assert.Equal(t, 6, records[4].EntriesCount)
}

func TestAppendCappedConcurrentWriters(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, AppendCapped(s, UpdateLogFile, UpdateRecord{EntriesCount: i}, 50))
		}(i)
	}
	wg.Wait()

	records, err := ReadJournal[UpdateRecord](s, UpdateLogFile)
	require.NoError(t, err)
	assert.Len(t, records, 20)
}

func TestAppendCappedRecoversFromCorruptJournal(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(UpdateLogFile), []byte("garbage"), 0644))

	_, err := ReadJournal[UpdateRecord](s, UpdateLogFile)
	assert.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, AppendCapped(s, UpdateLogFile, UpdateRecord{Version: "2.11.0"}, 50))

	records, err := ReadJournal[UpdateRecord](s, UpdateLogFile)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2.11.0", records[0].Version)
}

func TestStatusReportsFiles(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(map[string]Entry{"a": sampleEntry("A", time.Now())}))
	require.NoError(t, s.SaveVersionInfo(VersionInfo{Version: "2.11.0"}))

	st := s.Status()
	assert.Equal(t, 1, st.EntriesCount)
	assert.Equal(t, "2.11.0", st.CurrentVersion)
	assert.False(t, st.DocsFresh)
	assert.True(t, st.Files[KnowledgeFile])
	assert.False(t, st.Files[AssessmentLogFile])
}
