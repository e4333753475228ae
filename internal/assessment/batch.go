package assessment

import (
	"encoding/json"
	"fmt"
	"io"
)

// Item is one drafted answer to assess, with the issue labels a reviewer
// expected. Labels are carried through to the report and never scored.
type Item struct {
	ID             string   `json:"id"`
	Query          string   `json:"query"`
	Response       string   `json:"response"`
	ExpectedIssues []string `json:"expected_issues"`
}

type Batch struct {
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

// LoadBatch reads either a JSON array of items or a {"name", "items"}
// object.
func LoadBatch(r io.Reader, name string) (Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Batch{}, fmt.Errorf("failed to read batch: %w", err)
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err == nil {
		return normalise(Batch{Name: name, Items: items}), nil
	}

	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return Batch{}, fmt.Errorf("failed to parse batch: %w", err)
	}
	if batch.Name == "" {
		batch.Name = name
	}
	return normalise(batch), nil
}

func normalise(b Batch) Batch {
	for i := range b.Items {
		if b.Items[i].ID == "" {
			b.Items[i].ID = fmt.Sprintf("response_%d", i+1)
		}
		if b.Items[i].ExpectedIssues == nil {
			b.Items[i].ExpectedIssues = []string{}
		}
	}
	return b
}

// SampleBatch is the canonical four-response batch: one legacy-syntax
// model definition and three answers that pass verification.
func SampleBatch() Batch {
	return Batch{
		Name: "sample_responses",
		Items: []Item{
			{
				ID:    "response_1",
				Query: "How to create a Pydantic model?",
				Response: `
You can create a Pydantic model like this:

` + "```python" + `
from pydantic import BaseModel

class User(BaseModel):
    name: str
    age: int

    class Config:
        validate_assignment = True

# Usage
user = User.parse_obj({'name': 'John', 'age': 30})
print(user.dict())
` + "```" + `
`,
				ExpectedIssues: []string{"v1_syntax", "config_class", "parse_obj", "dict_method"},
			},
			{
				ID:    "response_2",
				Query: "What's new in Pydantic v2?",
				Response: `
Pydantic v2 introduces several improvements:
- Better performance (about 2x faster)
- Improved validation
- New features for JSON schema

The API remains mostly the same as v1.
`,
				ExpectedIssues: []string{"understated_performance", "api_compatibility_claim"},
			},
			{
				ID:    "response_3",
				Query: "How to validate fields in Pydantic?",
				Response: `
Use field validators in Pydantic v2:

` + "```python" + `
from pydantic import BaseModel, field_validator

class Product(BaseModel):
    name: str
    price: float

    @field_validator('price')
    @classmethod
    def validate_price(cls, v):
        if v <= 0:
            raise ValueError('Price must be positive')
        return v
` + "```" + `
`,
				ExpectedIssues: []string{},
			},
			{
				ID:    "response_4",
				Query: "Pydantic performance comparison",
				Response: `
Pydantic is generally faster than other validation libraries:
- Faster than marshmallow
- Comparable to dataclasses
- Uses Python for validation

Performance is decent but not exceptional.
`,
				ExpectedIssues: []string{"rust_core_missing", "performance_understatement"},
			},
		},
	}
}
