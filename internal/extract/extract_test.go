package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/ipdd/internal/doc"
	"github.com/ppiankov/ipdd/internal/model"
)

func parseRecord(t *testing.T, s string) *doc.Node {
	t.Helper()
	n, err := doc.Parse([]byte(s))
	require.NoError(t, err)
	return n
}

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		name string
		json string
		want model.Category
	}{
		{"biologic", `{"title": "Bispecific antibody", "abstract": "A fusion protein"}`, model.CategoryBiologic},
		{"gene therapy", `{"abstract": "CRISPR gene editing delivered by AAV"}`, model.CategoryGeneTherapy},
		{"vaccine", `{"title": "Adjuvanted vaccine"}`, model.CategoryVaccine},
		{"digital diagnostic", `{"abstract": "A biomarker assay read by a telehealth app"}`, model.CategoryDigitalDiagnostic},
		{"connected device", `{"abstract": "Implant device with mhealth monitoring"}`, model.CategoryConnectedDevice},
		{"veterinary", `{"abstract": "Sea louse control for salmon aquaculture"}`, model.CategoryVeterinary},
		{"general", `{"title": "Quantum widget"}`, model.CategoryGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := DetectCategory(parseRecord(t, tt.json))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectCategory_Scores(t *testing.T) {
	// antibody(2) + protein(2) + biologic(2); "mab" does not occur
	category, scores := DetectCategory(parseRecord(t, `{"abstract": "A biologic antibody protein"}`))
	assert.Equal(t, model.CategoryBiologic, category)
	assert.Equal(t, 6, scores[model.CategoryBiologic])
}

func TestDetectCategory_TieGoesToEarlierCategory(t *testing.T) {
	// compound(2) vs antibody(2)
	category, scores := DetectCategory(parseRecord(t, `{"abstract": "compound antibody"}`))
	assert.Equal(t, model.CategorySmallMolecule, category)
	assert.Len(t, scores, 2)
}

func TestDetectCategory_Nil(t *testing.T) {
	category, scores := DetectCategory(nil)
	assert.Equal(t, model.CategoryGeneral, category)
	assert.Empty(t, scores)
}

func TestGuessOrigin(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"field wins", `{"abstract": "made in China", "assignee_country": "  Japan "}`, "Japan"},
		{"field order", `{"origin_country": "DE", "inventor_country": "FR"}`, "FR"},
		{"blank field ignored", `{"jurisdiction": "  ", "abstract": "University of Toronto, Canada"}`, "canada"},
		{"whole word only", `{"abstract": "focused on cancer treatment"}`, ""},
		{"candidate order", `{"abstract": "trials in Germany and the United States"}`, "united states"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GuessOrigin(parseRecord(t, tt.json)))
		})
	}
}

func TestDetailExtractor_Extract(t *testing.T) {
	page := `<html><head><title>Page title</title></head>
	<body>
		<h1>Novel <b>CAR-T</b> construct</h1>
		<div class="tech-Abstract">A new construct. It improves persistence! More text.</div>
		<img src="https://cdn.example.com/a.png">
		<img src="/img/b.png">
		<img src="relative.png">
		<a href="https://pubmed.ncbi.nlm.nih.gov/123/">paper</a>
		<a href="/contact">contact</a>
		<a name="anchor">no href</a>
		<script>var x = "ignored";</script>
	</body></html>`

	details, err := NewDetailExtractor().Extract(page, "https://tto.example.edu/tech/42")
	require.NoError(t, err)

	require.NotNil(t, details.Title)
	assert.Equal(t, "Novel CAR-T construct", *details.Title)
	require.NotNil(t, details.Abstract)
	assert.Equal(t, "A new construct. It improves persistence! More text.", *details.Abstract)
	require.NotNil(t, details.Summary)
	assert.Equal(t, "A new construct.", *details.Summary)
	assert.Equal(t, []string{"https://cdn.example.com/a.png", "https://tto.example.edu/img/b.png"}, details.ImageURLs)
	assert.Equal(t, []string{"https://pubmed.ncbi.nlm.nih.gov/123/"}, details.ExtractedURLs)
	assert.Empty(t, details.Researchers)
	assert.InDelta(t, 0.5, details.Completeness(), 1e-9)
}

func TestDetailExtractor_TitleFallsBackToTitleTag(t *testing.T) {
	details, err := NewDetailExtractor().Extract(`<html><head><title>Only title</title></head><body><p>x</p></body></html>`, "https://a.example")
	require.NoError(t, err)
	require.NotNil(t, details.Title)
	assert.Equal(t, "Only title", *details.Title)
	assert.Nil(t, details.Abstract)
	assert.Nil(t, details.Summary)
}

func TestDetailExtractor_LinkLimit(t *testing.T) {
	page := "<html><body>"
	for i := 0; i < 25; i++ {
		page += `<a href="https://example.com/x">x</a>`
	}
	page += "</body></html>"

	details, err := NewDetailExtractor().Extract(page, "https://example.com")
	require.NoError(t, err)
	assert.Len(t, details.ExtractedURLs, maxLinks)
}

func TestDetailExtractor_BadSourceURL(t *testing.T) {
	_, err := NewDetailExtractor().Extract("<html></html>", "://bad")
	assert.Error(t, err)
}
