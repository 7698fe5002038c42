package model

import "strings"

// Tier is the source-quality tier assigned to an admissible citation
type Tier int

const (
	TierNone Tier = 0 // Not admissible, or not yet assessed
	Tier1    Tier = 1 // Regulators, PubMed/DOI/PMID, top journals
	Tier2    Tier = 2 // Clinical registries, public health statistics
	Tier3    Tier = 3 // Company filings, market research, unmatched text
)

func (t Tier) String() string {
	switch t {
	case Tier1:
		return "tier1"
	case Tier2:
		return "tier2"
	case Tier3:
		return "tier3"
	default:
		return "none"
	}
}

// AssessReason explains how an assessment was reached
type AssessReason string

const (
	ReasonEmpty     AssessReason = "empty"
	ReasonForbidden AssessReason = "forbidden"
	ReasonMatched   AssessReason = "matched"
	ReasonFallback  AssessReason = "fallback"
)

// Assessment is the outcome of classifying one citation string
type Assessment struct {
	Admissible bool         `json:"admissible"`
	Tier       Tier         `json:"tier"`
	Reason     AssessReason `json:"reason"`
}

// Band is the traffic-light rating derived from the composite score
type Band string

const (
	BandGreen Band = "Green"
	BandAmber Band = "Amber"
	BandRed   Band = "Red"
)

// Composite is the weighted 0-100 score written to scores.composite
type Composite struct {
	Score0100 float64 `json:"score_0_100"`
	Band      Band    `json:"band"`
}

// AnalysisType selects the prompt variant
type AnalysisType string

const (
	AnalysisGlobal AnalysisType = "global"
	AnalysisUS     AnalysisType = "us"
)

// ParseAnalysisType parses a user supplied analysis type
func ParseAnalysisType(s string) (AnalysisType, bool) {
	switch AnalysisType(strings.ToLower(strings.TrimSpace(s))) {
	case AnalysisGlobal:
		return AnalysisGlobal, true
	case AnalysisUS:
		return AnalysisUS, true
	default:
		return "", false
	}
}

// Category is the detected life-sciences technology category
type Category string

const (
	CategorySmallMolecule       Category = "SMALL_MOLECULE_DRUG"
	CategoryBiologic            Category = "BIOLOGIC"
	CategoryGeneTherapy         Category = "GENE_THERAPY"
	CategoryVaccine             Category = "VACCINE"
	CategoryDiagnostic          Category = "DIAGNOSTIC"
	CategoryMedicalDevice       Category = "MEDICAL_DEVICE"
	CategoryDigitalHealth       Category = "DIGITAL_HEALTH"
	CategoryAgriculturalBiotech Category = "AGRICULTURAL_BIOTECH"
	CategoryVeterinary          Category = "VETERINARY"
	CategoryDigitalDiagnostic   Category = "DIGITAL_DIAGNOSTIC"
	CategoryConnectedDevice     Category = "CONNECTED_MEDICAL_DEVICE"
	CategoryGeneral             Category = "GENERAL_LIFE_SCIENCES"
)

// QualityAssessment is written by the domain reviewer when enabled
type QualityAssessment struct {
	Score            float64  `json:"score"`
	Category         Category `json:"category"`
	IssuesFound      int      `json:"issues_found"`
	PassedValidation bool     `json:"passed_validation"`
	Recommendations  []string `json:"-"`
}

// TokenUsage is the generator's reported consumption
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Signal is a diagnostic finding with the data it was computed from
type Signal struct {
	Type        SignalType     `json:"type"`
	Severity    SignalSeverity `json:"severity"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// SignalType classifies a signal
type SignalType string

const (
	SignalPillarContribution SignalType = "pillar_contribution" // Weighted share of one pillar
	SignalMissingPillar      SignalType = "missing_pillar"      // Pillar absent or non-numeric
	SignalCitationQuality    SignalType = "citation_quality"    // Valid/total citations
	SignalTierDistribution   SignalType = "tier_distribution"   // Tier 1/2/3 balance
	SignalDataGaps           SignalType = "data_gaps"           // Repaired claims
)

// SignalSeverity indicates the importance of a signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
