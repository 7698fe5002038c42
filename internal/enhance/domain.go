package enhance

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/ipdd/internal/doc"
	"github.com/ppiankov/ipdd/internal/model"
)

// sectorPrior is what a licensing analyst expects to see for a category
type sectorPrior struct {
	royaltyRange string
	timeline     string
	dealTypes    []string
	searchFocus  []string
	required     [][]string // report paths that must hold a value
	maxMarketUSD float64    // larger figures are likely total-sector proxies
}

var (
	commonRequired = [][]string{
		{"unmet_need_and_market_overview", "market_size", "global", "current_usd"},
		{"technological_differentiation", "mechanism_of_action", "description"},
		{"intellectual_property", "patent_portfolio_and_strength", "composition_of_matter", "patents"},
	}
	trialsRequired = []string{"competitive_landscape", "drugs_in_clinical_trials"}
	marketRequired = []string{"competitive_landscape", "on_market_drugs"}
)

var sectorPriors = map[model.Category]sectorPrior{
	model.CategorySmallMolecule: {
		royaltyRange: "2-5% preclinical, 5-10% Phase II+",
		timeline:     "10-15 years to approval",
		dealTypes:    []string{"exclusive license with milestones", "option-to-license", "co-development"},
		searchFocus:  []string{"FDA Orange Book exclusivity", "NCT registrations for the indication"},
		required:     append(commonRequired, trialsRequired),
		maxMarketUSD: 100e9,
	},
	model.CategoryBiologic: {
		royaltyRange: "3-8% preclinical, 8-15% clinical",
		timeline:     "8-12 years to approval",
		dealTypes:    []string{"exclusive license with milestones", "platform deal", "acquisition"},
		searchFocus:  []string{"FDA Purple Book", "biosimilar entry dates"},
		required:     append(commonRequired, trialsRequired),
		maxMarketUSD: 100e9,
	},
	model.CategoryGeneTherapy: {
		royaltyRange: "4-10%",
		timeline:     "6-10 years to approval",
		dealTypes:    []string{"platform license", "spin-out with equity", "acquisition"},
		searchFocus:  []string{"RMAT/PRIME designations", "CMC and vector manufacturing capacity"},
		required:     append(commonRequired, trialsRequired),
		maxMarketUSD: 50e9,
	},
	model.CategoryVaccine: {
		royaltyRange: "2-6%",
		timeline:     "8-12 years to licensure",
		dealTypes:    []string{"exclusive license", "government or CEPI funded partnership"},
		searchFocus:  []string{"WHO pipeline trackers", "ACIP recommendations"},
		required:     append(commonRequired, trialsRequired),
		maxMarketUSD: 80e9,
	},
	model.CategoryDiagnostic: {
		royaltyRange: "3-7%",
		timeline:     "2-5 years (510(k)) or 4-7 years (PMA)",
		dealTypes:    []string{"non-exclusive license", "exclusive field-of-use license"},
		searchFocus:  []string{"510(k) predicates", "CMS coverage (NCD/LCD)"},
		required:     commonRequired,
		maxMarketUSD: 50e9,
	},
	model.CategoryDigitalDiagnostic: {
		royaltyRange: "3-8%",
		timeline:     "2-5 years",
		dealTypes:    []string{"software license", "exclusive field-of-use license"},
		searchFocus:  []string{"SaMD guidance", "De Novo precedents"},
		required:     commonRequired,
		maxMarketUSD: 30e9,
	},
	model.CategoryMedicalDevice: {
		royaltyRange: "3-6%",
		timeline:     "3-7 years depending on class",
		dealTypes:    []string{"exclusive license", "acquisition by strategic"},
		searchFocus:  []string{"510(k)/PMA predicates", "MAUDE adverse events"},
		required:     append(commonRequired, marketRequired),
		maxMarketUSD: 60e9,
	},
	model.CategoryConnectedDevice: {
		royaltyRange: "3-7%",
		timeline:     "3-6 years",
		dealTypes:    []string{"exclusive license", "co-development with device OEM"},
		searchFocus:  []string{"cybersecurity premarket guidance", "remote monitoring reimbursement codes"},
		required:     append(commonRequired, marketRequired),
		maxMarketUSD: 40e9,
	},
	model.CategoryDigitalHealth: {
		royaltyRange: "2-6%",
		timeline:     "1-4 years",
		dealTypes:    []string{"software license", "SaaS revenue share"},
		searchFocus:  []string{"DTx reimbursement precedents", "peer-reviewed outcome studies"},
		required:     commonRequired,
		maxMarketUSD: 30e9,
	},
	model.CategoryAgriculturalBiotech: {
		royaltyRange: "1-5%",
		timeline:     "5-12 years including registration",
		dealTypes:    []string{"trait license", "seed company partnership"},
		searchFocus:  []string{"USDA/EPA registrations", "trait adoption data"},
		required:     commonRequired,
		maxMarketUSD: 60e9,
	},
	model.CategoryVeterinary: {
		royaltyRange: "2-6%",
		timeline:     "3-7 years (USDA-CVB or FDA-CVM)",
		dealTypes:    []string{"exclusive license", "animal health company partnership"},
		searchFocus:  []string{"USDA-APHIS CVB licensing", "species-specific market reports"},
		required:     commonRequired,
		maxMarketUSD: 20e9,
	},
}

// Severity of a review issue
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

var severityPenalty = map[Severity]float64{
	SeverityHigh:   15,
	SeverityMedium: 8,
	SeverityLow:    3,
}

// Issue is one finding of the domain review
type Issue struct {
	Severity       Severity `json:"severity"`
	Field          string   `json:"field"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

// DomainEnhancer applies per-sector priors to prompts and reviews
type DomainEnhancer struct {
	passThreshold float64
}

// NewDomainEnhancer creates a domain enhancer. A threshold <= 0 means 70.
func NewDomainEnhancer(passThreshold float64) *DomainEnhancer {
	if passThreshold <= 0 {
		passThreshold = 70
	}
	return &DomainEnhancer{passThreshold: passThreshold}
}

// PromptAddendum renders the sector requirements block for the prompt
func (d *DomainEnhancer) PromptAddendum(category model.Category) (string, error) {
	prior, ok := sectorPriors[category]
	if !ok {
		return "", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "DOMAIN REQUIREMENTS FOR %s:\n", category)
	fmt.Fprintf(&sb, "- Typical royalty range to benchmark against: %s\n", prior.royaltyRange)
	fmt.Fprintf(&sb, "- Typical development timeline: %s\n", prior.timeline)
	fmt.Fprintf(&sb, "- Typical deal structures: %s\n", strings.Join(prior.dealTypes, "; "))
	fmt.Fprintf(&sb, "- Targeted searches: %s\n", strings.Join(prior.searchFocus, "; "))
	sb.WriteString("- Use category-specific market data; do NOT use total-sector figures as a proxy.\n")
	sb.WriteString("- Required cited fields:")
	for _, path := range prior.required {
		sb.WriteString(" ")
		sb.WriteString(strings.Join(path, "."))
	}
	return sb.String(), nil
}

// Issues lists the findings for a repaired report
func (d *DomainEnhancer) Issues(report *doc.Node, category model.Category) []Issue {
	prior, ok := sectorPriors[category]
	required := commonRequired
	if ok {
		required = prior.required
	}

	var issues []Issue
	for _, path := range required {
		if !hasValue(report.Lookup(path...)) {
			field := strings.Join(path, ".")
			issues = append(issues, Issue{
				Severity:       SeverityHigh,
				Field:          field,
				Message:        fmt.Sprintf("required field %s is missing or null", field),
				Recommendation: fmt.Sprintf("Search for %s-specific data for %s", category, field),
			})
		}
	}

	if ok && prior.maxMarketUSD > 0 {
		market := report.Lookup("unmet_need_and_market_overview", "market_size", "global", "current_usd")
		if usd, parsed := parseUSD(market); parsed && usd > prior.maxMarketUSD {
			issues = append(issues, Issue{
				Severity:       SeverityHigh,
				Field:          "unmet_need_and_market_overview.market_size.global.current_usd",
				Message:        fmt.Sprintf("global market of $%.0fB looks like a total-sector figure", usd/1e9),
				Recommendation: "Replace with indication- or modality-specific market size",
			})
		}
	}

	if quality, parsed := qualityPercent(report); parsed {
		switch {
		case quality < 50:
			issues = append(issues, Issue{
				Severity:       SeverityHigh,
				Field:          "citations_summary.citation_quality_score",
				Message:        fmt.Sprintf("only %.1f%% of citations are admissible", quality),
				Recommendation: "Re-run with tier 1 sources (regulators, PubMed, DOI)",
			})
		case quality < 80:
			issues = append(issues, Issue{
				Severity:       SeverityMedium,
				Field:          "citations_summary.citation_quality_score",
				Message:        fmt.Sprintf("%.1f%% of citations are admissible", quality),
				Recommendation: "Replace rejected citations with registry or regulator sources",
			})
		}
	}

	if gaps := report.Get("data_gaps").Len(); gaps > 10 {
		issues = append(issues, Issue{
			Severity:       SeverityMedium,
			Field:          "data_gaps",
			Message:        fmt.Sprintf("%d data gaps recorded", gaps),
			Recommendation: "Target searches at the sections with the most gaps",
		})
	} else if gaps > 0 {
		issues = append(issues, Issue{
			Severity:       SeverityLow,
			Field:          "data_gaps",
			Message:        fmt.Sprintf("%d data gaps recorded", gaps),
			Recommendation: "Review data gaps before sharing the report",
		})
	}

	return issues
}

// Review scores the report 0-100 from its issues
func (d *DomainEnhancer) Review(ctx context.Context, report *doc.Node, category model.Category) (*model.QualityAssessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !report.IsMapping() {
		return nil, fmt.Errorf("report is %s, not a mapping", kindOf(report))
	}

	issues := d.Issues(report, category)
	score := 100.0
	recommendations := make([]string, 0, len(issues))
	for _, issue := range issues {
		score -= severityPenalty[issue.Severity]
		recommendations = append(recommendations, issue.Recommendation)
	}
	score = max(0, score)

	return &model.QualityAssessment{
		Score:            score,
		Category:         category,
		IssuesFound:      len(issues),
		PassedValidation: score >= d.passThreshold,
		Recommendations:  recommendations,
	}, nil
}

func hasValue(n *doc.Node) bool {
	switch {
	case n == nil || n.IsNull():
		return false
	case n.IsString():
		return strings.TrimSpace(n.Str) != ""
	case n.IsSequence():
		for _, item := range n.Items {
			if hasValue(item) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

var usdPattern = regexp.MustCompile(`(?i)([0-9][0-9,]*(?:\.[0-9]+)?)\s*(trillion|billion|million|tn|bn|mn|t|b|m)?\b`)

// parseUSD reads figures such as "USD 4.2B", "$350 million" or 1.5e9
func parseUSD(n *doc.Node) (float64, bool) {
	if n == nil {
		return 0, false
	}
	if n.Kind == doc.Number {
		return n.Float()
	}
	s, ok := n.Text()
	if !ok {
		return 0, false
	}
	m := usdPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "trillion", "tn", "t":
		v *= 1e12
	case "billion", "bn", "b":
		v *= 1e9
	case "million", "mn", "m":
		v *= 1e6
	}
	return v, true
}

func qualityPercent(report *doc.Node) (float64, bool) {
	s, ok := report.Lookup("citations_summary", "citation_quality_score").Text()
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func kindOf(n *doc.Node) string {
	if n == nil {
		return "missing"
	}
	return n.Kind.String()
}
