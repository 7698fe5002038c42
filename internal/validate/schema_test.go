package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeChecker_RepairedReportConforms(t *testing.T) {
	checker, err := NewShapeChecker()
	require.NoError(t, err)

	root := parseDoc(t, `{
		"meta": {"analysis_type": "global_life_sciences"},
		"scores": {
			"pillars": {"ip_strength": {"score": 4, "rationale": "x", "citation": "PMID: 1"}},
			"composite": {"score_0_100": 80.0, "band": "Green"}
		}
	}`)
	NewRepairer(nil, 0, nil).Repair(root)

	problems, err := checker.Check(root)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestShapeChecker_ReportsViolations(t *testing.T) {
	checker, err := NewShapeChecker()
	require.NoError(t, err)

	tests := []struct {
		name string
		json string
	}{
		{"not an object", `["x"]`},
		{"missing sections", `{"meta": {}}`},
		{"bad band", `{"meta": {}, "scores": {"pillars": {}, "composite": {"score_0_100": 50, "band": "Blue"}},
			"citations_summary": {"total_citations": 0, "valid_citations": 0, "citation_quality_score": "0.0%",
			"tier_counts": {}, "valid_by_tier": {}}, "data_gaps": []}`},
		{"gap not a string", `{"meta": {}, "scores": {"pillars": {}},
			"citations_summary": {"total_citations": 0, "valid_citations": 0, "citation_quality_score": "0.0%",
			"tier_counts": {}, "valid_by_tier": {}}, "data_gaps": [1]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems, err := checker.Check(parseDoc(t, tt.json))
			require.NoError(t, err)
			assert.NotEmpty(t, problems)
		})
	}
}
