package catalog

// Default returns the built-in Pydantic catalog. Category and correction
// order is significant: it is the order issues are reported and
// corrections applied.
func Default() Catalog {
	c, err := New(defaultCatalog())
	if err != nil {
		panic("catalog: built-in catalog is invalid: " + err.Error())
	}
	return c
}

func defaultCatalog() Catalog {
	return Catalog{
		Library:      "Pydantic",
		CurrentMajor: "2",
		Categories: []Category{
			{
				ID:          "v1_v2_confusion",
				Description: "Mixing Pydantic v1 and v2 syntax/concepts",
				Corrections: []Correction{
					{Legacy: `\.dict\(\)`, Replacement: ".model_dump()"},
					{Legacy: `\.parse_obj\(`, Replacement: ".model_validate("},
					{Legacy: `class Config:`, Replacement: "model_config = ConfigDict("},
					{Legacy: `@validator`, Replacement: "@field_validator"},
				},
				Exemplars: []string{
					"Using 'Config' class instead of 'model_config' in v2",
					"Referencing 'validator' decorator instead of 'field_validator' in v2",
					"Using '.dict()' method instead of '.model_dump()' in v2",
					"Mentioning 'parse_obj()' instead of 'model_validate()' in v2",
				},
			},
			{
				ID:          "field_configuration",
				Description: "Incorrect Field configuration syntax",
				Exemplars: []string{
					"Using deprecated 'Field(default_factory=...)' syntax incorrectly",
					"Confusion about Field vs Annotated syntax in v2",
					"Incorrect JSON schema configuration",
				},
				Facts: []string{
					"Use 'Annotated[type, Field(...)]' for complex field definitions",
					"Field aliases use 'alias' parameter, not 'field_alias'",
					"JSON schema extras use 'json_schema_extra' parameter",
				},
			},
			{
				ID:          "performance_claims",
				Description: "Outdated or incorrect performance comparisons",
				Exemplars: []string{
					"Claiming Pydantic v2 is only marginally faster than v1",
					"Incorrect benchmarks between Pydantic and other validation libraries",
					"Outdated memory usage statistics",
				},
				Facts: []string{
					"Pydantic v2 is 5-50x faster than v1 in most use cases",
					"Uses Rust core (pydantic-core) for validation performance",
					"Significantly reduced memory footprint in v2",
				},
			},
			{
				ID:          "typing_support",
				Description: "Incorrect information about type support",
				Exemplars: []string{
					"Claiming lack of support for newer Python typing features",
					"Incorrect union type handling explanations",
					"Wrong information about generic model support",
				},
				Facts: []string{
					"Full support for Python 3.12+ typing features",
					"Improved Union and Optional handling",
					"Better generic model support with TypeVar",
				},
			},
		},
		SyntaxRules: []SyntaxRule{
			{Pattern: `\.dict\(\)`, Suggestion: "Use .model_dump() in Pydantic v2"},
			{Pattern: `\.parse_obj\(`, Suggestion: "Use .model_validate() in Pydantic v2"},
			{Pattern: `class Config:`, Suggestion: "Use model_config = ConfigDict() in Pydantic v2"},
			{Pattern: `@validator\(`, Suggestion: "Use @field_validator or @model_validator in Pydantic v2"},
		},
		DeprecatedCalls: []DeprecatedCall{
			{Token: ".dict()", Replacement: ".model_dump()"},
		},
	}
}
