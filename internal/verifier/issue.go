package verifier

// Kind tags where an issue came from.
type Kind string

const (
	// KindLegacySyntax is a catalog correction pattern match; it is the
	// legacy-syntax marker used by classification.
	KindLegacySyntax Kind = "legacy_syntax"
	// KindOutdatedSyntax is a hit in the narrower syntax rule table.
	KindOutdatedSyntax Kind = "outdated_syntax"
	KindMisconception  Kind = "misconception"
	// KindDocGap is a deprecated call mentioned under a current-version
	// claim without a deprecation note.
	KindDocGap Kind = "doc_gap"
	// KindInternal marks a verdict synthesised after a verification failure.
	KindInternal Kind = "internal"
)

// Bucket is a common-issue category used by run-level reporting.
type Bucket string

const (
	BucketNone           Bucket = ""
	BucketSyntaxUsage    Bucket = "v1_syntax_usage"
	BucketDeprecated     Bucket = "deprecated_methods"
	BucketMisconceptions Bucket = "common_misconceptions"
)

type Issue struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	// Category is the catalog category id for catalog-sourced issues.
	Category string `json:"category,omitempty"`
	// Deprecation is set when the issue concerns a deprecated method.
	Deprecation bool `json:"deprecation"`
}

func (i Issue) String() string {
	return i.Message
}

// Bucket returns the reporting bucket. Legacy syntax wins over
// deprecation, which wins over misconception.
func (i Issue) Bucket() Bucket {
	switch {
	case i.Kind == KindLegacySyntax:
		return BucketSyntaxUsage
	case i.Deprecation:
		return BucketDeprecated
	case i.Kind == KindMisconception:
		return BucketMisconceptions
	default:
		return BucketNone
	}
}
