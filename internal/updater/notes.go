package updater

import "strings"

type releaseNotes struct {
	MajorChanges            []string
	BreakingChanges         []string
	NewFeatures             []string
	PerformanceImprovements []string
}

type bucket int

const (
	bucketMajor bucket = iota
	bucketBreaking
	bucketFeatures
	bucketPerformance
)

// parseReleaseNotes partitions a change-log body. Heading lines switch the
// active bucket by keyword; bullet lines ("- " or "* ") go to the active
// bucket, or to major changes before any heading has been seen.
func parseReleaseNotes(body string) releaseNotes {
	notes := releaseNotes{
		MajorChanges:            []string{},
		BreakingChanges:         []string{},
		NewFeatures:             []string{},
		PerformanceImprovements: []string{},
	}

	current := bucketMajor
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
			item := strings.TrimSpace(line[2:])
			if item == "" {
				continue
			}
			switch current {
			case bucketBreaking:
				notes.BreakingChanges = append(notes.BreakingChanges, item)
			case bucketFeatures:
				notes.NewFeatures = append(notes.NewFeatures, item)
			case bucketPerformance:
				notes.PerformanceImprovements = append(notes.PerformanceImprovements, item)
			default:
				notes.MajorChanges = append(notes.MajorChanges, item)
			}
			continue
		}

		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "breaking change"):
			current = bucketBreaking
		case strings.Contains(lower, "feature"):
			current = bucketFeatures
		case strings.Contains(lower, "performance"):
			current = bucketPerformance
		}
	}

	return notes
}
