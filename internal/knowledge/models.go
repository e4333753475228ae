package knowledge

import "time"

// Entry is one documented topic used as ground truth during verification.
type Entry struct {
	Topic             string    `json:"topic"`
	Content           string    `json:"content"`
	VersionIntroduced string    `json:"version_introduced"`
	VersionDeprecated *string   `json:"version_deprecated"`
	Examples          []string  `json:"examples"`
	References        []string  `json:"references"`
	LastUpdated       time.Time `json:"last_updated"`
	AccuracyVerified  bool      `json:"accuracy_verified"`
}

// VersionInfo describes the latest known library release.
type VersionInfo struct {
	Version                 string   `json:"version"`
	ReleaseDate             string   `json:"release_date"`
	MajorChanges            []string `json:"major_changes"`
	BreakingChanges         []string `json:"breaking_changes"`
	NewFeatures             []string `json:"new_features"`
	PerformanceImprovements []string `json:"performance_improvements"`
	DocumentationURL        string   `json:"documentation_url"`
}

// Major returns the leading component of Version ("2" for "2.11.0").
func (v VersionInfo) Major() string {
	for i := 0; i < len(v.Version); i++ {
		if v.Version[i] == '.' {
			return v.Version[:i]
		}
	}
	return v.Version
}

// DocsSection is one heading of the scraped documentation page.
type DocsSection struct {
	Heading string `json:"heading"`
	Summary string `json:"summary"`
}

// DocsBlob is the cached raw documentation snapshot.
type DocsBlob struct {
	URL         string        `json:"url"`
	Title       string        `json:"title"`
	Sections    []DocsSection `json:"sections"`
	CodeSamples []string      `json:"code_samples"`
	FetchedAt   time.Time     `json:"fetched_at"`
}

// UpdateRecord is one line of the update-history log.
type UpdateRecord struct {
	Timestamp            time.Time `json:"timestamp"`
	Version              string    `json:"version"`
	EntriesCount         int       `json:"entries_count"`
	NewFeaturesCount     int       `json:"new_features_count"`
	BreakingChangesCount int       `json:"breaking_changes_count"`
}

// Contents is what Load returns: the persisted entries and version record.
type Contents struct {
	Entries     map[string]Entry
	VersionInfo *VersionInfo
}

// Snapshot is the read model consumed by the verifier and reports.
type Snapshot struct {
	KnowledgeBase map[string]Entry `json:"knowledge_base"`
	VersionInfo   *VersionInfo     `json:"version_info"`
	LastUpdated   time.Time        `json:"last_updated"`
}

// CurrentVersion returns the tracked version or "" when none is stored.
func (s Snapshot) CurrentVersion() string {
	if s.VersionInfo == nil {
		return ""
	}
	return s.VersionInfo.Version
}

// Status summarises the store for status output.
type Status struct {
	EntriesCount   int             `json:"entries_count"`
	LastUpdated    time.Time       `json:"last_updated"`
	CurrentVersion string          `json:"current_version"`
	DocsFresh      bool            `json:"docs_fresh"`
	Files          map[string]bool `json:"files"`
}
