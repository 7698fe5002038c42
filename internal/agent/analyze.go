package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/ipdd/internal/doc"
	"github.com/ppiankov/ipdd/internal/llm"
)

const (
	analyzedBy          = "agi_api"
	defaultCommercial   = 5
	analysisMaxTokens   = 1500
	analysisPromptShape = `{
    "commercial_score": 0-10,
    "market_readiness": "early/mid/late",
    "therapeutic_area": "specific area",
    "ideal_licensee": "startup/pharma/device",
    "deal_size_estimate": "$XM",
    "key_risks": ["risk1", "risk2"],
    "differentiation": "what makes this unique",
    "commercialization_timeline": "X years",
    "competitive_advantages": ["adv1", "adv2"]
}`
)

// Analyzer scores the commercial potential of scraped technologies
type Analyzer struct {
	client    Completer
	maxTokens int
	workers   int
	logger    *zap.Logger
}

// NewAnalyzer creates an analyzer. workers <= 0 analyses one record at a time.
func NewAnalyzer(client Completer, maxTokens, workers int, logger *zap.Logger) *Analyzer {
	if maxTokens <= 0 {
		maxTokens = analysisMaxTokens
	}
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{client: client, maxTokens: maxTokens, workers: workers, logger: logger}
}

// AnalyzeIP returns the analysis of one record. It never fails: API and
// parse errors produce a default analysis carrying the error.
func (a *Analyzer) AnalyzeIP(ctx context.Context, ip *doc.Node) *doc.Node {
	id := RecordID(ip)
	log := a.logger.With(zap.String("ip_id", id))

	prompt := fmt.Sprintf(`Analyze this university technology for commercialization:

Title: %s
Summary: %s
Applications: %s
Stage: %s

Provide analysis in JSON format:
%s

Respond with ONLY valid JSON, no markdown or explanations.
`,
		field(ip, "title", "Unknown"),
		field(ip, "summary", "N/A"),
		field(ip, "applications", "N/A"),
		field(ip, "stage_of_development", "Unknown"),
		analysisPromptShape)

	content, err := a.client.Complete(ctx, CompleteRequest{
		Prompt:      prompt,
		MaxTokens:   a.maxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			log.Error("agent API error", zap.Int("status", statusErr.StatusCode), zap.String("body", statusErr.Body))
			out := fallbackAnalysis(id, fmt.Sprintf("agent API returned %d", statusErr.StatusCode))
			out.Set("market_readiness", doc.NewString("unknown"))
			return out
		}
		log.Error("agent API call failed", zap.Error(err))
		return fallbackAnalysis(id, err.Error())
	}

	analysis, err := llm.ParseDocument(content)
	if err != nil {
		log.Error("agent response is not JSON", zap.Error(err))
		return fallbackAnalysis(id, "failed to parse agent response")
	}
	analysis.Set("ip_id", doc.NewString(id))
	analysis.Set("analyzed_by", doc.NewString(analyzedBy))

	score, _ := analysis.Get("commercial_score").Float()
	log.Info("analysis complete", zap.Float64("commercial_score", score))
	return analysis
}

func fallbackAnalysis(id, msg string) *doc.Node {
	out := doc.NewMapping()
	out.Set("error", doc.NewString(msg))
	out.Set("ip_id", doc.NewString(id))
	out.Set("commercial_score", doc.NewInt(defaultCommercial))
	return out
}

// AnalyzeAll attaches an agi_analysis mapping to every record of ips, in place
func (a *Analyzer) AnalyzeAll(ctx context.Context, ips []*doc.Node) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, ip := range ips {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a.logger.Debug("analyzing record", zap.Int("n", i+1), zap.Int("of", len(ips)))
			ip.Set("agi_analysis", a.AnalyzeIP(gctx, ip))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// AnalyzeFile reads a scrape output, analyses every record and writes
// <name>_analyzed.json beside it. It returns the output path.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (string, error) {
	root, err := loadDocument(path)
	if err != nil {
		return "", err
	}
	ips := root.Get("ips").Items
	a.logger.Info("analysis started", zap.String("input", path), zap.Int("records", len(ips)))

	if err := a.AnalyzeAll(ctx, ips); err != nil {
		return "", err
	}

	out := doc.NewMapping()
	analyzedDate := root.Get("scraped_date")
	if analyzedDate == nil {
		analyzedDate = doc.NewNull()
	}
	out.Set("analyzed_date", analyzedDate)
	out.Set("total_count", doc.NewInt(len(ips)))
	out.Set("analysis_method", doc.NewString(analyzedBy))
	out.Set("ips", doc.NewSequence(ips...))

	outPath := siblingPath(path, ".json", "_analyzed.json")
	if err := writeDocument(outPath, out); err != nil {
		return "", err
	}

	for _, ip := range ips[:min(3, len(ips))] {
		analysis := ip.Get("agi_analysis")
		score, _ := analysis.Get("commercial_score").Float()
		a.logger.Info("sample result",
			zap.String("title", truncate(field(ip, "title", "Unknown"), 50)),
			zap.Float64("commercial_score", score),
			zap.String("therapeutic_area", textOr(analysis.Get("therapeutic_area"), "Unknown")))
	}
	a.logger.Info("analysis complete", zap.String("output", outPath), zap.Int("records", len(ips)))
	return outPath, nil
}

// RecordID is ip_id, or the scraped record's _id.$oid
func RecordID(ip *doc.Node) string {
	if s, ok := ip.Get("ip_id").Text(); ok && s != "" {
		return s
	}
	if s, ok := ip.Lookup("_id", "$oid").Text(); ok && s != "" {
		return s
	}
	return "unknown"
}

// field reads key from the record, then from its details mapping
func field(ip *doc.Node, key, def string) string {
	if s, ok := ip.Get(key).Text(); ok && s != "" {
		return s
	}
	if s, ok := ip.Lookup("details", key).Text(); ok && s != "" {
		return s
	}
	return def
}

func textOr(n *doc.Node, def string) string {
	if s, ok := n.Text(); ok && s != "" {
		return s
	}
	return def
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func siblingPath(path, suffix, replacement string) string {
	if strings.HasSuffix(path, suffix) {
		return strings.TrimSuffix(path, suffix) + replacement
	}
	return path + replacement
}

func loadDocument(path string) (*doc.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	root, err := doc.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return root, nil
}

func writeDocument(path string, n *doc.Node) error {
	data, err := doc.MarshalIndent(n)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
