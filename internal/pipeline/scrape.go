package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/ipdd/internal/doc"
	"github.com/ppiankov/ipdd/internal/extract"
	"github.com/ppiankov/ipdd/internal/llm"
	"github.com/ppiankov/ipdd/internal/model"
	"github.com/ppiankov/ipdd/internal/util"
	"github.com/ppiankov/ipdd/internal/validate"
	"github.com/ppiankov/ipdd/internal/worker"
)

const traditionalModel = "html"

// Scraper turns a list of technology-transfer URLs into detailed records.
// Pages are parsed directly first; a search-capable model fills in pages
// that could not be fetched or were too sparse.
type Scraper struct {
	config    *model.Config
	fetcher   *Fetcher
	extractor *extract.DetailExtractor
	search    llm.Generator
	robots    *util.RobotsChecker
	limiter   *worker.Limiter
	links     *validate.LinkChecker
	logger    *zap.Logger
	now       func() time.Time

	traditionalCount int
	searchCount      int
	totalCost        float64
}

// ScraperOption configures a Scraper
type ScraperOption func(*Scraper)

// WithSearchModel sets the fallback generator
func WithSearchModel(g llm.Generator) ScraperOption { return func(s *Scraper) { s.search = g } }

// WithLinkChecker checks every web citation of a record
func WithLinkChecker(c *validate.LinkChecker) ScraperOption { return func(s *Scraper) { s.links = c } }

// WithScrapeLogger sets the logger
func WithScrapeLogger(l *zap.Logger) ScraperOption { return func(s *Scraper) { s.logger = l } }

// WithScrapeClock overrides time.Now
func WithScrapeClock(now func() time.Time) ScraperOption { return func(s *Scraper) { s.now = now } }

// NewScraper creates a scraper from configuration
func NewScraper(cfg *model.Config, opts ...ScraperOption) *Scraper {
	h := cfg.HTTP
	fetcher := NewFetcher(h.Timeout, h.UserAgent, h.MaxBodyBytes, h.InsecureTLS, h.HTTPProxy, h.HTTPSProxy, h.NoProxy)

	s := &Scraper{
		config:    cfg,
		fetcher:   fetcher,
		extractor: extract.NewDetailExtractor(),
		limiter:   worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	if h.RespectRobots {
		s.robots = util.NewRobotsChecker(h.UserAgent, h.Timeout, fetcher.Client())
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadURLList reads a scrape input file
func LoadURLList(path string) (*model.URLList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	var list model.URLList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse url list %s: %w", path, err)
	}
	if list.SourceID == "" {
		list.SourceID = "unknown"
	}
	return &list, nil
}

// ScrapeAll scrapes every entry in order. Cancellation stops the run and
// returns the records scraped so far.
func (s *Scraper) ScrapeAll(ctx context.Context, list *model.URLList) (*model.ScrapeOutput, error) {
	s.logger.Info("scraping started",
		zap.Int("pages", len(list.URLs)),
		zap.String("source", list.SourceID),
		zap.String("model", s.config.Search.Model))

	records := make([]model.ScrapedRecord, 0, len(list.URLs))
	var runErr error
	for _, entry := range list.URLs {
		if err := s.limiter.WaitWithDelay(ctx, entry.URL, s.config.RateLimiting.PageDelay); err != nil {
			if ctx.Err() != nil {
				runErr = ctx.Err()
				break
			}
			s.logger.Warn("rate limiter", zap.String("url", entry.URL), zap.Error(err))
		}
		records = append(records, s.ScrapeOne(ctx, entry, list.SourceID))
	}

	out := &model.ScrapeOutput{
		ScrapedDate:      s.now(),
		TotalCount:       len(records),
		TraditionalCount: s.traditionalCount,
		SearchModelCount: s.searchCount,
		TotalCost:        math.Round(s.totalCost*1e4) / 1e4,
		Model:            s.config.Search.Model,
		IPs:              records,
	}
	s.logger.Info("scraping complete",
		zap.Int("total", out.TotalCount),
		zap.Int("traditional", out.TraditionalCount),
		zap.Int("search_model", out.SearchModelCount),
		zap.Float64("cost_usd", out.TotalCost))
	return out, runErr
}

// ScrapeOne scrapes a single page. It never fails; a record that could not
// be obtained any way is marked failed.
func (s *Scraper) ScrapeOne(ctx context.Context, entry model.URLEntry, sourceID string) model.ScrapedRecord {
	id := entry.ID
	if id == "" {
		id = entry.URL[strings.LastIndex(entry.URL, "/")+1:]
	}
	log := s.logger.With(zap.String("ip_id", id))

	record := model.ScrapedRecord{
		ID:           model.ObjectID{OID: id},
		SourceID:     sourceID,
		URL:          entry.URL,
		Timestamp:    s.now(),
		WebCitations: []string{},
	}

	details, fetched := s.traditional(ctx, entry.URL, log)
	completeness := details.Completeness()
	if fetched && completeness >= s.config.Search.MinCompleteness {
		s.traditionalCount++
		record.Details, record.CompletenessScore = details, completeness
		record.ScrapingMethod, record.Model = model.ScrapeTraditional, traditionalModel
		return record
	}

	found, citations, ok := s.searchExtract(ctx, entry.URL, log)
	switch {
	case ok:
		s.searchCount++
		record.Details, record.CompletenessScore = found, found.Completeness()
		record.ScrapingMethod, record.Model = model.ScrapeSearchModel, s.config.Search.Model
		record.WebCitations = citations
		if s.links != nil && len(citations) > 0 {
			record.LinkChecks = s.links.Check(ctx, citations)
		}
	case fetched:
		log.Warn("no search model result, keeping page extraction")
		s.traditionalCount++
		record.Details, record.CompletenessScore = details, completeness
		record.ScrapingMethod, record.Model = model.ScrapeTraditional, traditionalModel
	default:
		record.Details = model.NewTechnologyDetails()
		record.ScrapingMethod, record.Model = model.ScrapeFailed, "none"
	}
	return record
}

func (s *Scraper) traditional(ctx context.Context, pageURL string, log *zap.Logger) (model.TechnologyDetails, bool) {
	if s.robots != nil {
		allowed, delay, err := s.robots.CanFetch(ctx, pageURL)
		if err != nil || !allowed {
			log.Info("robots.txt disallows page fetch", zap.Error(err))
			return model.NewTechnologyDetails(), false
		}
		s.limiter.RespectCrawlDelay(pageURL, delay)
	}

	page, err := s.fetcher.FetchWithRetry(ctx, pageURL)
	if err != nil {
		log.Info("page fetch failed", zap.Error(err))
		return model.NewTechnologyDetails(), false
	}
	details, err := s.extractor.Extract(page.HTML, page.FinalURL)
	if err != nil {
		log.Info("page extraction failed", zap.Error(err))
		return model.NewTechnologyDetails(), false
	}
	log.Info("page extracted", zap.Float64("completeness", details.Completeness()))
	return details, true
}

// searchExtract asks the search model for the record. Every answered query
// is charged, whether or not it parsed.
func (s *Scraper) searchExtract(ctx context.Context, pageURL string, log *zap.Logger) (model.TechnologyDetails, []string, bool) {
	var none model.TechnologyDetails
	if s.search == nil {
		return none, nil, false
	}

	prompt, err := llm.SearchExtractPrompt(pageURL)
	if err != nil {
		log.Error("search prompt", zap.Error(err))
		return none, nil, false
	}
	log.Info("using search model", zap.String("model", s.config.Search.Model))

	resp, err := s.search.Generate(ctx, llm.GenerateRequest{
		Prompt:    prompt,
		Model:     s.config.Search.Model,
		MaxTokens: s.config.Search.MaxTokens,
	})
	if err != nil {
		log.Error("search model failed", zap.Error(err))
		return none, nil, false
	}
	s.totalCost += s.config.Search.CostPerQuery

	root, err := llm.ParseDocument(resp.Text)
	if err != nil {
		log.Error("search model returned no JSON", zap.Error(err))
		return none, nil, false
	}
	detailsNode := root.Get("details")
	if !detailsNode.IsMapping() {
		log.Error("search model response has no details")
		return none, nil, false
	}

	details, err := decodeDetails(detailsNode)
	if err != nil {
		log.Error("search model details do not match the record shape", zap.Error(err))
		return none, nil, false
	}

	citations := webCitations(root.Get("citations"))
	log.Info("search model extracted", zap.Int("citations", len(citations)))
	return details, citations, true
}

func decodeDetails(n *doc.Node) (model.TechnologyDetails, error) {
	details := model.NewTechnologyDetails()
	data, err := doc.Marshal(n)
	if err != nil {
		return details, err
	}
	if err := json.Unmarshal(data, &details); err != nil {
		return details, err
	}
	return details, nil
}

// webCitations keeps http(s) strings and the url or source field of objects
func webCitations(list *doc.Node) []string {
	out := []string{}
	if !list.IsSequence() {
		return out
	}
	for _, item := range list.Items {
		if s, ok := item.Text(); ok && strings.HasPrefix(s, "http") {
			out = append(out, s)
			continue
		}
		if !item.IsMapping() {
			continue
		}
		u, ok := item.Get("url").Text()
		if !ok || u == "" {
			u, _ = item.Get("source").Text()
		}
		if strings.HasPrefix(u, "http") {
			out = append(out, u)
		}
	}
	return out
}

// WriteScrapeOutput writes detailed_<source>.json and a timestamped backup.
// The source name is the input stem without its filtered_urls_/raw_urls_ prefix.
func WriteScrapeOutput(out *model.ScrapeOutput, urlsFile, outDir string, now time.Time) (string, string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create output directory: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(urlsFile), filepath.Ext(urlsFile))
	name = strings.ReplaceAll(name, "filtered_urls_", "")
	name = strings.ReplaceAll(name, "raw_urls_", "")

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return "", "", fmt.Errorf("encode scrape output: %w", err)
	}

	mainPath := filepath.Join(outDir, "detailed_"+name+".json")
	backupPath := filepath.Join(outDir, fmt.Sprintf("detailed_%s_%s.json", name, now.Format(timestampLayout)))
	for _, path := range []string{mainPath, backupPath} {
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return "", "", fmt.Errorf("write %s: %w", path, err)
		}
	}
	return mainPath, backupPath, nil
}
