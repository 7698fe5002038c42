package agent

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/ipdd/internal/doc"
	"github.com/ppiankov/ipdd/internal/llm"
)

const (
	matchMaxTokens = 1000
	matchTimeout   = 30 * time.Second
	fallbackCount  = 3
	maxMatches     = 5
)

// Company is a candidate licensee or partner
type Company struct {
	Name     string `yaml:"name" json:"name"`
	Focus    string `yaml:"focus" json:"focus"`
	Stage    string `yaml:"stage" json:"stage"`
	Location string `yaml:"location" json:"location"`
}

// DefaultCompanies is the built-in partner list
func DefaultCompanies() []Company {
	return []Company{
		{Name: "GeneTech Therapeutics", Focus: "gene_therapy", Stage: "Series A", Location: "Boston"},
		{Name: "RareDisease Bio", Focus: "rare_disease", Stage: "Seed", Location: "SF"},
		{Name: "DiagnosticAI", Focus: "diagnostics", Stage: "Series B", Location: "London"},
		{Name: "Delivery Systems Inc", Focus: "drug_delivery", Stage: "Pre-seed", Location: "Singapore"},
		{Name: "NeuroBiotech", Focus: "neuroscience", Stage: "Series A", Location: "Boston"},
		{Name: "Cancer Therapeutics", Focus: "oncology", Stage: "Series B", Location: "SF"},
	}
}

// LoadCompanies reads a YAML list of companies
func LoadCompanies(path string) ([]Company, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read companies: %w", err)
	}
	var companies []Company
	if err := yaml.Unmarshal(data, &companies); err != nil {
		return nil, fmt.Errorf("parse companies %s: %w", path, err)
	}
	if len(companies) == 0 {
		return nil, fmt.Errorf("no companies in %s", path)
	}
	return companies, nil
}

// Relevant keeps companies whose focus shares a term with area. When none
// do, the first three companies are returned.
func Relevant(companies []Company, area string) ([]Company, bool) {
	area = strings.ToLower(area)
	var out []Company
	for _, c := range companies {
		for _, term := range strings.Split(strings.ToLower(c.Focus), "_") {
			if term != "" && strings.Contains(area, term) {
				out = append(out, c)
				break
			}
		}
	}
	if len(out) == 0 {
		return companies[:min(fallbackCount, len(companies))], false
	}
	return out, true
}

// Matcher pairs analysed technologies with companies
type Matcher struct {
	client    Completer
	companies []Company
	workers   int
	logger    *zap.Logger
}

// NewMatcher creates a matcher. An empty company list uses DefaultCompanies.
func NewMatcher(client Completer, companies []Company, workers int, logger *zap.Logger) *Matcher {
	if len(companies) == 0 {
		companies = DefaultCompanies()
	}
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{client: client, companies: companies, workers: workers, logger: logger}
}

// FindMatches evaluates the relevant companies for one analysed record and
// returns at most five good matches, best first
func (m *Matcher) FindMatches(ctx context.Context, ip *doc.Node) []*doc.Node {
	id := RecordID(ip)
	log := m.logger.With(zap.String("ip_id", id))

	area := textOr(ip.Lookup("agi_analysis", "therapeutic_area"), "biotech")
	relevant, specific := Relevant(m.companies, area)
	if specific {
		log.Info("relevant companies found", zap.Int("count", len(relevant)))
	} else {
		log.Info("no specific matches, using fallback companies", zap.Int("count", len(relevant)))
	}

	found := make([]*doc.Node, len(relevant))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, company := range relevant {
		g.Go(func() error {
			found[i] = m.evaluate(gctx, ip, company, log)
			return nil
		})
	}
	_ = g.Wait()

	var matches []*doc.Node
	for _, match := range found {
		if match != nil {
			matches = append(matches, match)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matchScore(matches[i]) > matchScore(matches[j])
	})
	return matches[:min(maxMatches, len(matches))]
}

func (m *Matcher) evaluate(ctx context.Context, ip *doc.Node, company Company, log *zap.Logger) *doc.Node {
	log = log.With(zap.String("company", company.Name))
	analysis := ip.Get("agi_analysis")

	commercial := "N/A"
	if n := analysis.Get("commercial_score"); n != nil && n.Kind == doc.Number {
		commercial = n.Num
	}

	prompt := fmt.Sprintf(`Evaluate this IP-Company match for licensing/partnership:

UNIVERSITY IP:
- Title: %s
- Commercial Score: %s/10
- Therapeutic Area: %s
- Stage: %s
- Differentiation: %s

COMPANY:
- Name: %s
- Focus: %s
- Stage: %s
- Location: %s

Evaluate the match and return JSON:
{
    "is_good_match": true/false,
    "score": 0-10,
    "reasoning": "why this is/isn't a good match",
    "deal_structure": "license/co-development/acquisition",
    "estimated_deal_value": "$XM",
    "outreach_strategy": "how to approach them",
    "synergies": ["synergy1", "synergy2"],
    "potential_challenges": ["challenge1", "challenge2"]
}

Respond with ONLY valid JSON.
`,
		field(ip, "title", "Unknown"),
		commercial,
		textOr(analysis.Get("therapeutic_area"), "Unknown"),
		textOr(analysis.Get("market_readiness"), "Unknown"),
		textOr(analysis.Get("differentiation"), "N/A"),
		company.Name, company.Focus, company.Stage, company.Location)

	ctx, cancel := context.WithTimeout(ctx, matchTimeout)
	defer cancel()

	content, err := m.client.Complete(ctx, CompleteRequest{
		Prompt:      prompt,
		MaxTokens:   matchMaxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		log.Warn("match evaluation failed", zap.Error(err))
		return nil
	}
	match, err := llm.ParseDocument(content)
	if err != nil {
		log.Warn("match response is not JSON", zap.Error(err))
		return nil
	}
	if good := match.Get("is_good_match"); good == nil || good.Kind != doc.Bool || !good.Bool {
		log.Info("not a good match")
		return nil
	}

	id := RecordID(ip)
	details := doc.NewMapping()
	details.Set("name", doc.NewString(company.Name))
	details.Set("focus", doc.NewString(company.Focus))
	details.Set("stage", doc.NewString(company.Stage))
	details.Set("location", doc.NewString(company.Location))

	match.Set("company_name", doc.NewString(company.Name))
	match.Set("company_details", details)
	match.Set("ip_title", doc.NewString(field(ip, "title", "")))
	match.Set("ip_id", doc.NewString(id))
	match.Set("university", doc.NewString(university(id)))

	log.Info("match", zap.Float64("score", matchScore(match)))
	return match
}

// university is the ip_id prefix before the first underscore
func university(id string) string {
	if id == "" || id == "unknown" {
		return "Unknown"
	}
	prefix, _, _ := strings.Cut(id, "_")
	return prefix
}

func matchScore(n *doc.Node) float64 {
	f, _ := n.Get("score").Float()
	return f
}

// MatchFile reads an analysed file, matches every record and writes
// <name>_matches.json beside it. It returns the output path.
func (m *Matcher) MatchFile(ctx context.Context, path string) (string, error) {
	root, err := loadDocument(path)
	if err != nil {
		return "", err
	}
	ips := root.Get("ips").Items
	m.logger.Info("matching started", zap.String("input", path), zap.Int("records", len(ips)), zap.Int("companies", len(m.companies)))

	var all []*doc.Node
	for i, ip := range ips {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		m.logger.Debug("matching record", zap.Int("n", i+1), zap.Int("of", len(ips)))
		all = append(all, m.FindMatches(ctx, ip)...)
	}

	out := doc.NewMapping()
	matchDate := root.Get("analyzed_date")
	if matchDate == nil {
		matchDate = doc.NewNull()
	}
	out.Set("match_date", matchDate)
	out.Set("total_ips", doc.NewInt(len(ips)))
	out.Set("total_matches", doc.NewInt(len(all)))
	out.Set("matches", doc.NewSequence(all...))

	outPath := strings.TrimSuffix(path, "_analyzed.json")
	if outPath == path {
		outPath = strings.TrimSuffix(path, ".json")
	}
	outPath += "_matches.json"
	if err := writeDocument(outPath, out); err != nil {
		return "", err
	}

	top := append([]*doc.Node(nil), all...)
	sort.SliceStable(top, func(i, j int) bool { return matchScore(top[i]) > matchScore(top[j]) })
	for _, match := range top[:min(3, len(top))] {
		m.logger.Info("top match",
			zap.String("company", textOr(match.Get("company_name"), "")),
			zap.String("university", textOr(match.Get("university"), "Unknown")),
			zap.String("ip", truncate(textOr(match.Get("ip_title"), "Unknown"), 50)),
			zap.Float64("score", matchScore(match)),
			zap.String("deal", textOr(match.Get("deal_structure"), "Unknown")))
	}
	m.logger.Info("matching complete", zap.String("output", outPath), zap.Int("matches", len(all)))
	return outPath, nil
}
