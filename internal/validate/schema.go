package validate

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/kaptinlin/jsonschema"

	"github.com/ppiankov/ipdd/internal/doc"
)

//go:embed schemas/report.schema.json
var reportSchema []byte

// ShapeChecker validates the final report against the embedded report
// schema. Violations are reported, never repaired.
type ShapeChecker struct {
	schema *jsonschema.Schema
}

// NewShapeChecker compiles the embedded schema
func NewShapeChecker() (*ShapeChecker, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(reportSchema)
	if err != nil {
		return nil, fmt.Errorf("compile report schema: %w", err)
	}
	return &ShapeChecker{schema: schema}, nil
}

// Check returns one message per schema violation, sorted, or nil when the
// document conforms.
func (s *ShapeChecker) Check(root *doc.Node) ([]string, error) {
	data, err := doc.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}

	result := s.schema.ValidateJSON(data)
	if result.IsValid() {
		return nil, nil
	}

	problems := make([]string, 0, len(result.Errors))
	for keyword, e := range result.Errors {
		problems = append(problems, fmt.Sprintf("%s: %v", keyword, e))
	}
	if len(problems) == 0 {
		problems = append(problems, "schema validation failed")
	}
	sort.Strings(problems)
	return problems, nil
}
