package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrMalformedOutput means the model answered with something that is not the declared shape.
var ErrMalformedOutput = errors.New("malformed model output")

// Schema is a named, compiled JSON schema describing one structured answer.
type Schema struct {
	name     string
	raw      string
	compiled *gojsonschema.Schema
}

func NewSchema(name, raw string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, raw: raw, compiled: compiled}, nil
}

// MustSchema is NewSchema for package-level schema literals.
func MustSchema(name, raw string) *Schema {
	s, err := NewSchema(name, raw)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string {
	return s.name
}

// Raw returns the schema text, embedded into prompts so the model sees the shape.
func (s *Schema) Raw() string {
	return s.raw
}

var undefinedLiteral = regexp.MustCompile(`:\s*undefined\b`)

// ParseStructured cleans a model answer, validates it against schema and decodes it into out.
func ParseStructured(content string, schema *Schema, out any) error {
	content = extractJSON(strings.TrimSpace(content))
	content = undefinedLiteral.ReplaceAllString(content, ": null")

	result, err := schema.compiled.Validate(gojsonschema.NewStringLoader(content))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedOutput, schema.name, err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s: %s", ErrMalformedOutput, schema.name, strings.Join(errs, "; "))
	}

	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedOutput, schema.name, err)
	}
	return nil
}

// extractJSON strips a surrounding markdown code fence, if any.
func extractJSON(content string) string {
	if len(content) > 7 && content[:3] == "```" {
		start := 0
		end := len(content)

		// Find first newline after opening ```
		for i := 3; i < len(content); i++ {
			if content[i] == '\n' {
				start = i + 1
				break
			}
		}

		// Find closing ```
		for i := len(content) - 1; i >= 0; i-- {
			if i >= 2 && content[i-2:i+1] == "```" {
				end = i - 2
				break
			}
		}

		if start < end {
			content = content[start:end]
		}
	}

	return strings.TrimSpace(content)
}
