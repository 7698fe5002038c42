package pipeline

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ppiankov/ipdd/internal/model"
	"github.com/ppiankov/ipdd/internal/score"
)

// Renderer turns an analysed report into a human-readable summary
type Renderer struct {
	scorer *score.Scorer
	md     goldmark.Markdown
}

// NewRenderer creates a renderer that explains composites with scorer
func NewRenderer(scorer *score.Scorer) *Renderer {
	return &Renderer{
		scorer: scorer,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Markdown renders the summary of one result
func (r *Renderer) Markdown(result *Result) string {
	var sb strings.Builder
	report := result.Report

	title := "Technology"
	if s, ok := report.Lookup("technology_overview", "title").Text(); ok && s != "" {
		title = s
	}
	fmt.Fprintf(&sb, "# %s due diligence: %s\n\n", strings.ToUpper(string(result.Type)), title)
	fmt.Fprintf(&sb, "- **Run:** `%s`\n", result.RunID)
	fmt.Fprintf(&sb, "- **Category:** %s\n", result.Category)
	if result.Model != "" {
		fmt.Fprintf(&sb, "- **Model:** %s\n", result.Model)
	}
	if result.Composite != nil {
		fmt.Fprintf(&sb, "- **Composite:** %.1f / 100 (%s)\n", result.Composite.Score0100, result.Composite.Band)
	}
	if result.Quality != nil {
		verdict := "passed"
		if !result.Quality.PassedValidation {
			verdict = "failed"
		}
		fmt.Fprintf(&sb, "- **Domain review:** %.0f / 100, %d issues, %s\n", result.Quality.Score, result.Quality.IssuesFound, verdict)
	}
	sb.WriteString("\n")

	sb.WriteString("## Citations\n\n")
	stats := result.Repair
	fmt.Fprintf(&sb, "%d of %d citations accepted (%s).\n\n", stats.Valid, stats.Total, stats.QualityLabel())
	sb.WriteString("| Tier | Count |\n|---|---|\n")
	for _, tier := range []model.Tier{model.Tier1, model.Tier2, model.Tier3} {
		fmt.Fprintf(&sb, "| %s | %d |\n", tier, stats.TierCounts.Get(tier))
	}
	sb.WriteString("\n")
	for _, sig := range score.CitationSignals(report) {
		fmt.Fprintf(&sb, "- %s %s\n", severityMark(sig.Severity), sig.Description)
	}
	sb.WriteString("\n")

	if pillars := report.Lookup("scores", "pillars"); pillars.IsMapping() {
		sb.WriteString("## Composite breakdown\n\n")
		sb.WriteString("| Pillar | Weight | Score | Contribution |\n|---|---|---|---|\n")
		for _, row := range r.scorer.Breakdown(pillars) {
			scoreText := fmt.Sprintf("%.1f", row.Clamped)
			if row.Missing {
				scoreText = "missing"
			}
			fmt.Fprintf(&sb, "| %s | %.2f | %s | %.3f |\n", row.Pillar, row.Weight, scoreText, row.Weighted)
		}
		sb.WriteString("\n")
	}

	if gaps := report.Get("data_gaps"); gaps.Len() > 0 {
		sb.WriteString("## Data gaps\n\n")
		for _, gap := range gaps.Items {
			if s, ok := gap.Text(); ok {
				fmt.Fprintf(&sb, "- %s\n", s)
			}
		}
		sb.WriteString("\n")
	}

	if len(result.ShapeProblems) > 0 {
		sb.WriteString("## Schema warnings\n\n")
		for _, problem := range result.ShapeProblems {
			fmt.Fprintf(&sb, "- %s\n", problem)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// HTML renders the markdown summary as a standalone HTML page
func (r *Renderer) HTML(result *Result) ([]byte, error) {
	var body bytes.Buffer
	if err := r.md.Convert([]byte(r.Markdown(result)), &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!doctype html>\n<html><head><meta charset=\"utf-8\">")
	fmt.Fprintf(&page, "<title>%s</title>", html.EscapeString(result.RunID))
	page.WriteString("<style>body{font-family:sans-serif;max-width:960px;margin:2em auto}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}</style>")
	page.WriteString("</head><body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body></html>\n")
	return page.Bytes(), nil
}

func severityMark(s model.SignalSeverity) string {
	switch s {
	case model.SeverityCritical:
		return "🔴"
	case model.SeverityWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}
