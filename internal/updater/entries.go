package updater

import (
	"fmt"
	"strings"
	"time"

	"github.com/pydverify/backend/internal/knowledge"
)

const (
	FallbackVersion   = "2.11.0"
	DefaultDocsURL    = "https://docs.pydantic.dev"
	LatestFeaturesKey = "latest_features"
)

// FallbackVersionInfo is the fixed baseline used whenever the registry or
// change log cannot be read.
func FallbackVersionInfo(now time.Time) knowledge.VersionInfo {
	return knowledge.VersionInfo{
		Version:                 FallbackVersion,
		ReleaseDate:             now.UTC().Format(time.RFC3339),
		MajorChanges:            []string{"Performance improvements", "Bug fixes"},
		BreakingChanges:         []string{},
		NewFeatures:             []string{"Enhanced validation", "Better error messages"},
		PerformanceImprovements: []string{"Faster model creation", "Optimized serialization"},
		DocumentationURL:        DefaultDocsURL,
	}
}

// BuildKnowledgeBase returns the fixed topic set, plus a latest-features
// entry when info lists new features. Output depends only on info and now.
func BuildKnowledgeBase(info knowledge.VersionInfo, now time.Time) map[string]knowledge.Entry {
	now = now.UTC()

	entries := map[string]knowledge.Entry{
		"basic_usage": {
			Topic: "Basic Model Usage",
			Content: `Pydantic v2 provides powerful data validation through BaseModel classes.

Basic syntax:
` + "```python" + `
from pydantic import BaseModel, Field
from typing import Annotated

class User(BaseModel):
    name: Annotated[str, Field(min_length=1)]
    age: Annotated[int, Field(ge=0, le=150)]
    email: str = Field(..., pattern=r'^[^@]+@[^@]+\.[^@]+$')
` + "```" + `

Key methods:
- model_validate(): Create instance from dict (replaces parse_obj in v1)
- model_dump(): Convert to dict (replaces dict() in v1)
- model_validate_json(): Parse from JSON string
`,
			VersionIntroduced: "2.0",
			Examples: []string{
				"user = User.model_validate({'name': 'John', 'age': 30, 'email': 'john@example.com'})",
				"user_dict = user.model_dump()",
				"user_json = user.model_dump_json()",
			},
			References:       []string{"https://docs.pydantic.dev/latest/concepts/models/"},
			LastUpdated:      now,
			AccuracyVerified: true,
		},
		"v2_migration": {
			Topic: "Migration from v1 to v2",
			Content: `Major changes in Pydantic v2:

1. Configuration: 'Config' class → 'model_config = ConfigDict()'
2. Methods: '.dict()' → '.model_dump()', '.parse_obj()' → '.model_validate()'
3. Validators: '@validator' → '@field_validator'/'@model_validator'
4. Performance: 5-50x faster due to Rust core (pydantic-core)
5. Type annotations: Enhanced support for Annotated types

Breaking changes:
- Config class no longer used
- Method names changed
- Some validator signatures changed
- JSON schema generation improved
`,
			VersionIntroduced: "2.0",
			Examples: []string{
				"# v1: user.dict()\n# v2: user.model_dump()",
				"# v1: User.parse_obj(data)\n# v2: User.model_validate(data)",
				"# v1: class Config: validate_assignment = True\n# v2: model_config = ConfigDict(validate_assignment=True)",
			},
			References:       []string{"https://docs.pydantic.dev/latest/migration/"},
			LastUpdated:      now,
			AccuracyVerified: true,
		},
		"field_validation": {
			Topic: "Field Validation and Configuration",
			Content: `Pydantic v2 field validation using Field() and Annotated:

` + "```python" + `
from pydantic import BaseModel, Field, field_validator
from typing import Annotated

class Product(BaseModel):
    name: Annotated[str, Field(min_length=1, max_length=100)]
    price: Annotated[float, Field(gt=0, description="Price in USD")]
    category: str = Field(default="general", alias="product_category")

    @field_validator('name')
    @classmethod
    def validate_name(cls, v):
        if not v.strip():
            raise ValueError('Name cannot be empty')
        return v.title()
` + "```" + `

Field parameters:
- Validation: min_length, max_length, gt, ge, lt, le, pattern
- Metadata: description, examples, title
- Serialization: alias, serialization_alias
- JSON Schema: json_schema_extra
`,
			VersionIntroduced: "2.0",
			Examples: []string{
				"Field(gt=0, description='Must be positive')",
				"Field(pattern=r'^[A-Z][a-z]+$')",
				"Field(alias='firstName', serialization_alias='first_name')",
			},
			References:       []string{"https://docs.pydantic.dev/latest/concepts/fields/"},
			LastUpdated:      now,
			AccuracyVerified: true,
		},
		"performance": {
			Topic: "Performance in Pydantic v2",
			Content: `Pydantic v2 achieves significant performance improvements:

1. Rust Core: Uses pydantic-core (written in Rust) for validation
2. Speed: 5-50x faster than v1 in most scenarios
3. Memory: Reduced memory footprint
4. Lazy Evaluation: Improved schema compilation

Performance features:
- Compiled validation functions
- Optimized serialization/deserialization
- Better handling of large datasets
- Efficient JSON parsing

Benchmarks show v2 often outperforms other validation libraries
including dataclasses, attrs, and marshmallow.
`,
			VersionIntroduced: "2.0",
			Examples: []string{
				"# Large dataset validation is significantly faster",
				"# JSON parsing optimized with rust-json",
				"# Schema compilation cached for reuse",
			},
			References: []string{
				"https://docs.pydantic.dev/latest/blog/pydantic-v2-final/",
				"https://github.com/pydantic/pydantic-core",
			},
			LastUpdated:      now,
			AccuracyVerified: true,
		},
	}

	if len(info.NewFeatures) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "Latest features in Pydantic v%s:\n", info.Version)
		for i, feature := range info.NewFeatures {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("- " + feature)
		}

		docsURL := info.DocumentationURL
		if docsURL == "" {
			docsURL = DefaultDocsURL
		}

		entries[LatestFeaturesKey] = knowledge.Entry{
			Topic:             fmt.Sprintf("New Features in v%s", info.Version),
			Content:           b.String(),
			VersionIntroduced: info.Version,
			Examples:          []string{},
			References:        []string{docsURL},
			LastUpdated:       now,
			AccuracyVerified:  true,
		}
	}

	return entries
}
