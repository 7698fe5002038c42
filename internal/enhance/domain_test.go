package enhance

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/ipdd/internal/doc"
	"github.com/ppiankov/ipdd/internal/model"
)

func parse(t *testing.T, s string) *doc.Node {
	t.Helper()
	n, err := doc.Parse([]byte(s))
	require.NoError(t, err)
	return n
}

const completeReport = `{
	"unmet_need_and_market_overview": {"market_size": {"global": {"current_usd": "USD 4.2B", "citation": "IQVIA 2024"}}},
	"technological_differentiation": {"mechanism_of_action": {"description": "CD19-directed", "citation": "PMID: 1"}},
	"intellectual_property": {"patent_portfolio_and_strength": {"composition_of_matter": {"patents": ["US1234567"]}}},
	"competitive_landscape": {"drugs_in_clinical_trials": [{"product": "X", "citation": "NCT01234567"}]},
	"citations_summary": {"citation_quality_score": "100.0%"},
	"data_gaps": []
}`

func TestNew(t *testing.T) {
	_, isNop := New(model.EnhancerConfig{Enabled: false}).(Nop)
	assert.True(t, isNop)

	d, ok := New(model.EnhancerConfig{Enabled: true, PassThreshold: 80}).(*DomainEnhancer)
	require.True(t, ok)
	assert.Equal(t, 80.0, d.passThreshold)
}

func TestNop(t *testing.T) {
	addendum, err := Nop{}.PromptAddendum(model.CategoryBiologic)
	assert.NoError(t, err)
	assert.Empty(t, addendum)

	qa, err := Nop{}.Review(context.Background(), doc.NewMapping(), model.CategoryBiologic)
	assert.NoError(t, err)
	assert.Nil(t, qa)
}

func TestDomainEnhancer_PromptAddendum(t *testing.T) {
	d := NewDomainEnhancer(0)

	addendum, err := d.PromptAddendum(model.CategoryBiologic)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(addendum, "DOMAIN REQUIREMENTS FOR BIOLOGIC:\n"))
	assert.Contains(t, addendum, "3-8% preclinical")
	assert.Contains(t, addendum, "competitive_landscape.drugs_in_clinical_trials")

	addendum, err = d.PromptAddendum(model.CategoryGeneral)
	require.NoError(t, err)
	assert.Empty(t, addendum)
}

func TestDomainEnhancer_Review_Complete(t *testing.T) {
	qa, err := NewDomainEnhancer(70).Review(context.Background(), parse(t, completeReport), model.CategoryBiologic)
	require.NoError(t, err)

	assert.Equal(t, 100.0, qa.Score)
	assert.Equal(t, 0, qa.IssuesFound)
	assert.True(t, qa.PassedValidation)
	assert.Equal(t, model.CategoryBiologic, qa.Category)
}

func TestDomainEnhancer_Review_Penalties(t *testing.T) {
	report := parse(t, `{
		"unmet_need_and_market_overview": {"market_size": {"global": {"current_usd": "$450 billion"}}},
		"technological_differentiation": {"mechanism_of_action": {"description": null}},
		"intellectual_property": {"patent_portfolio_and_strength": {"composition_of_matter": {"patents": [""]}}},
		"citations_summary": {"citation_quality_score": "40.0%"},
		"data_gaps": ["Not enough valid cited information: a"]
	}`)

	d := NewDomainEnhancer(70)
	issues := d.Issues(report, model.CategoryBiologic)

	fields := make([]string, len(issues))
	for i, issue := range issues {
		fields[i] = issue.Field
	}
	assert.Equal(t, []string{
		"technological_differentiation.mechanism_of_action.description",
		"intellectual_property.patent_portfolio_and_strength.composition_of_matter.patents",
		"competitive_landscape.drugs_in_clinical_trials",
		"unmet_need_and_market_overview.market_size.global.current_usd",
		"citations_summary.citation_quality_score",
		"data_gaps",
	}, fields)

	qa, err := d.Review(context.Background(), report, model.CategoryBiologic)
	require.NoError(t, err)
	// 5 HIGH (75) + 1 LOW (3)
	assert.Equal(t, 22.0, qa.Score)
	assert.Equal(t, 6, qa.IssuesFound)
	assert.False(t, qa.PassedValidation)
	assert.Len(t, qa.Recommendations, 6)
}

func TestDomainEnhancer_Review_EmptyReport(t *testing.T) {
	report := parse(t, `{"citations_summary": {"citation_quality_score": "0.0%"}, "data_gaps": ["a","b","c","d","e","f","g","h","i","j","k"]}`)
	qa, err := NewDomainEnhancer(70).Review(context.Background(), report, model.CategorySmallMolecule)
	require.NoError(t, err)
	// 4 missing fields and citation quality are HIGH (75), the gap count is MEDIUM (8)
	assert.Equal(t, 17.0, qa.Score)
	assert.Equal(t, 6, qa.IssuesFound)
}

func TestDomainEnhancer_Review_Errors(t *testing.T) {
	d := NewDomainEnhancer(70)

	_, err := d.Review(context.Background(), parse(t, `[1]`), model.CategoryBiologic)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Review(ctx, parse(t, completeReport), model.CategoryBiologic)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseUSD(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{`"USD 4.2B"`, 4.2e9, true},
		{`"$350 million"`, 350e6, true},
		{`"1,200 mn"`, 1.2e9, true},
		{`"$1.1 trillion"`, 1.1e12, true},
		{`2500000`, 2.5e6, true},
		{`"unknown"`, 0, false},
		{`null`, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseUSD(parse(t, tt.in))
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.InDelta(t, tt.want, got, 1, tt.in)
	}
}
