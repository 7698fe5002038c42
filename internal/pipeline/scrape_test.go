package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/ipdd/internal/model"
)

const techPage = `<html><head><title>Tech 42</title></head><body>
<h1>Self-amplifying RNA vaccine platform</h1>
<div class="abstract">A replicon platform that lowers dose. Works at 4C.</div>
<img src="/img/figure.png"><a href="https://pubmed.ncbi.nlm.nih.gov/1/">paper</a>
</body></html>`

const searchAnswer = `{"details": {
  "title": "Sparse page technology",
  "abstract": "Recovered by search.",
  "researchers": ["A. Inventor"],
  "licensing_contacts": [{"name": "Licensing Office", "email": "otl@example.edu"}]
}, "citations": ["https://pubmed.ncbi.nlm.nih.gov/2/", {"url": "https://www.fda.gov/x"}, {"source": "not a link"}]}`

type techSite struct {
	server     *httptest.Server
	techHits   atomic.Int32
	robotsBody string
}

func newTechSite(t *testing.T, robots string) *techSite {
	t.Helper()
	site := &techSite{robotsBody: robots}
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, site.robotsBody)
	})
	mux.HandleFunc("/tech/42", func(w http.ResponseWriter, r *http.Request) {
		site.techHits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, techPage)
	})
	mux.HandleFunc("/tech/sparse", func(w http.ResponseWriter, r *http.Request) {
		site.techHits.Add(1)
		_, _ = fmt.Fprint(w, "<html><body><p>nothing here</p></body></html>")
	})
	mux.HandleFunc("/tech/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	site.server = httptest.NewServer(mux)
	t.Cleanup(site.server.Close)
	return site
}

func scrapeConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.HTTP.Timeout = 5 * time.Second
	cfg.RateLimiting = model.RateLimitingConfig{}
	cfg.Search.MinCompleteness = 0.5
	return cfg
}

func TestScrapeOne_Traditional(t *testing.T) {
	site := newTechSite(t, "User-agent: *\nAllow: /\n")
	s := NewScraper(scrapeConfig(), WithScrapeClock(func() time.Time { return fixedNow }))

	rec := s.ScrapeOne(context.Background(), model.URLEntry{URL: site.server.URL + "/tech/42"}, "ucsf")

	assert.Equal(t, "42", rec.ID.OID)
	assert.Equal(t, "ucsf", rec.SourceID)
	assert.Equal(t, model.ScrapeTraditional, rec.ScrapingMethod)
	assert.Equal(t, traditionalModel, rec.Model)
	assert.Equal(t, 0.5, rec.CompletenessScore)
	require.NotNil(t, rec.Details.Title)
	assert.Equal(t, "Self-amplifying RNA vaccine platform", *rec.Details.Title)
	assert.Equal(t, []string{site.server.URL + "/img/figure.png"}, rec.Details.ImageURLs)
	assert.Empty(t, rec.WebCitations)
	assert.Equal(t, fixedNow, rec.Timestamp)
}

func TestScrapeOne_SearchFallback(t *testing.T) {
	site := newTechSite(t, "")
	gen := &fakeGenerator{text: searchAnswer}
	s := NewScraper(scrapeConfig(), WithSearchModel(gen))

	rec := s.ScrapeOne(context.Background(), model.URLEntry{URL: site.server.URL + "/tech/sparse", ID: "abc"}, "ucsf")

	assert.Equal(t, "abc", rec.ID.OID)
	assert.Equal(t, model.ScrapeSearchModel, rec.ScrapingMethod)
	assert.Equal(t, "gpt-4o-search-preview", rec.Model)
	assert.Equal(t, 1.0, rec.CompletenessScore)
	assert.Equal(t, []string{"https://pubmed.ncbi.nlm.nih.gov/2/", "https://www.fda.gov/x"}, rec.WebCitations)
	assert.Equal(t, []string{}, rec.Details.ImageURLs)

	require.Len(t, gen.requests, 1)
	assert.Equal(t, "gpt-4o-search-preview", gen.requests[0].Model)
	assert.Contains(t, gen.requests[0].Prompt, site.server.URL+"/tech/sparse")
	assert.InDelta(t, 0.03, s.totalCost, 1e-9)
}

func TestScrapeOne_SearchUnparseableKeepsPage(t *testing.T) {
	site := newTechSite(t, "")
	s := NewScraper(scrapeConfig(), WithSearchModel(&fakeGenerator{text: "no idea"}))

	rec := s.ScrapeOne(context.Background(), model.URLEntry{URL: site.server.URL + "/tech/sparse"}, "ucsf")

	assert.Equal(t, model.ScrapeTraditional, rec.ScrapingMethod)
	assert.InDelta(t, 0.03, s.totalCost, 1e-9, "an answered query is charged")
}

func TestScrapeOne_Failed(t *testing.T) {
	site := newTechSite(t, "")
	s := NewScraper(scrapeConfig())

	rec := s.ScrapeOne(context.Background(), model.URLEntry{URL: site.server.URL + "/tech/gone"}, "ucsf")

	assert.Equal(t, model.ScrapeFailed, rec.ScrapingMethod)
	assert.Equal(t, "none", rec.Model)
	assert.Equal(t, model.NewTechnologyDetails(), rec.Details)
	assert.Zero(t, rec.CompletenessScore)
}

func TestScrapeOne_RobotsDisallow(t *testing.T) {
	site := newTechSite(t, "User-agent: *\nDisallow: /tech/\n")
	s := NewScraper(scrapeConfig())

	rec := s.ScrapeOne(context.Background(), model.URLEntry{URL: site.server.URL + "/tech/42"}, "ucsf")

	assert.Equal(t, model.ScrapeFailed, rec.ScrapingMethod)
	assert.Zero(t, site.techHits.Load())
}

func TestScrapeAll_CountsAndCost(t *testing.T) {
	site := newTechSite(t, "")
	s := NewScraper(scrapeConfig(),
		WithSearchModel(&fakeGenerator{text: searchAnswer}),
		WithScrapeClock(func() time.Time { return fixedNow }))

	out, err := s.ScrapeAll(context.Background(), &model.URLList{
		SourceID: "ucsf",
		URLs: []model.URLEntry{
			{URL: site.server.URL + "/tech/42"},
			{URL: site.server.URL + "/tech/sparse"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, out.TotalCount)
	assert.Equal(t, 1, out.TraditionalCount)
	assert.Equal(t, 1, out.SearchModelCount)
	assert.Equal(t, 0.03, out.TotalCost)
	assert.Equal(t, fixedNow, out.ScrapedDate)
}

func TestScrapeAll_Cancelled(t *testing.T) {
	site := newTechSite(t, "")
	s := NewScraper(scrapeConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := s.ScrapeAll(ctx, &model.URLList{URLs: []model.URLEntry{{URL: site.server.URL + "/tech/42"}}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, out.TotalCount)
}

func TestLoadURLList_DefaultsSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filtered_urls_ucsf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"urls": [{"url": "https://otl.example.edu/tech/1"}]}`), 0o644))

	list, err := LoadURLList(path)
	require.NoError(t, err)
	assert.Equal(t, "unknown", list.SourceID)
	require.Len(t, list.URLs, 1)

	_, err = LoadURLList(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestWriteScrapeOutput(t *testing.T) {
	dir := t.TempDir()
	out := &model.ScrapeOutput{
		ScrapedDate: fixedNow,
		TotalCount:  1,
		Model:       "gpt-4o-search-preview",
		IPs: []model.ScrapedRecord{{
			ID:           model.ObjectID{OID: "42"},
			URL:          "https://otl.example.edu/tech/42?a=1&b=2",
			Details:      model.NewTechnologyDetails(),
			WebCitations: []string{},
		}},
	}

	mainPath, backup, err := WriteScrapeOutput(out, "/in/filtered_urls_ucsf.json", dir, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "detailed_ucsf.json"), mainPath)
	assert.Equal(t, filepath.Join(dir, "detailed_ucsf_20260314_092653.json"), backup)

	data, err := os.ReadFile(mainPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"url": "https://otl.example.edu/tech/42?a=1&b=2"`)
	assert.Contains(t, string(data), `"$oid": "42"`)

	var decoded model.ScrapeOutput
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 1, decoded.TotalCount)
}
