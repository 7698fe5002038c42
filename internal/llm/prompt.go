package llm

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"strings"
	"text/template"

	"github.com/ppiankov/ipdd/internal/model"
)

//go:embed prompts/*
var promptFS embed.FS

// JSONOnlyNudge is appended to every packet prompt
const JSONOnlyNudge = "Return ONLY a valid JSON object matching the requested schema. No markdown, no prose, no preamble."

// LifeSciencesSources are reference cues for the generator. They are not enforced.
var LifeSciencesSources = map[string][]string{
	"medical_journals": {
		"New England Journal of Medicine (NEJM)",
		"The Lancet",
		"Journal of the American Medical Association (JAMA)",
		"Nature Medicine",
		"Nature Biotechnology",
		"Science Translational Medicine",
		"Cell",
		"Nature Reviews Drug Discovery",
		"British Medical Journal (BMJ)",
		"Annals of Internal Medicine",
		"Clinical Cancer Research",
		"Journal of Clinical Oncology",
		"Circulation",
		"Gastroenterology",
		"Hepatology",
	},
	"pharma_databases": {
		"ClinicalTrials.gov",
		"FDA Orange Book",
		"FDA Purple Book",
		"EMA Clinical Data",
		"WHO International Clinical Trials Registry",
		"PubMed/MEDLINE",
		"Cochrane Database",
		"DrugBank",
		"PharmGKB",
	},
	"regulatory_sources": {
		"FDA Guidance Documents",
		"EMA Guidelines",
		"ICH Guidelines",
		"PMDA (Japan)",
		"NMPA (China)",
		"Health Canada",
		"TGA (Australia)",
		"MHRA (UK)",
		"SwissMedic",
	},
	"market_research": {
		"GlobalData Healthcare",
		"Evaluate Pharma",
		"IQVIA",
		"Frost & Sullivan Healthcare",
		"Grand View Research - Healthcare",
		"BioMedTracker",
		"Cortellis",
		"Citeline",
		"BioCentury",
	},
	"agricultural_veterinary": {
		"Journal of Animal Science",
		"Veterinary Microbiology",
		"Aquaculture",
		"Fish & Shellfish Immunology",
		"Vaccine",
		"Preventive Veterinary Medicine",
		"Journal of Agricultural and Food Chemistry",
		"Crop Protection",
		"Plant Biotechnology Journal",
	},
	"medical_device_sources": {
		"Journal of Medical Devices",
		"Medical Device and Diagnostic Industry (MD+DI)",
		"Biomedical Engineering Online",
		"IEEE Transactions on Biomedical Engineering",
		"Journal of Biomedical Materials Research",
		"FDA MAUDE Database",
		"FDA 510(k) Database",
	},
}

var (
	systemPrompt    string
	packetTemplates = map[model.AnalysisType]*template.Template{}
	searchTemplate  *template.Template
)

func init() {
	b, err := promptFS.ReadFile("prompts/system.txt")
	if err != nil {
		panic(err)
	}
	systemPrompt = strings.TrimSpace(string(b))

	for t, file := range map[model.AnalysisType]string{
		model.AnalysisGlobal: "prompts/global.tmpl",
		model.AnalysisUS:     "prompts/us.tmpl",
	} {
		// The packet schemas are full of braces, so template actions use << >>
		packetTemplates[t] = template.Must(template.New(path.Base(file)).Delims("<<", ">>").ParseFS(promptFS, file))
	}
	searchTemplate = template.Must(template.New("search.tmpl").Delims("<<", ">>").ParseFS(promptFS, "prompts/search.tmpl"))
}

// SearchExtractPrompt asks a search-capable model to research a technology
// page and return {"details": {...}, "citations": [...]}
func SearchExtractPrompt(pageURL string) (string, error) {
	var sb strings.Builder
	if err := searchTemplate.Execute(&sb, struct{ URL string }{pageURL}); err != nil {
		return "", fmt.Errorf("render search prompt: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// SystemPrompt returns the base system prompt shared by both analysis types
func SystemPrompt() string {
	return systemPrompt
}

// PacketPrompt holds everything that goes into one user prompt
type PacketPrompt struct {
	Type               model.AnalysisType
	TechnologyJSON     string // indented JSON of the technology record
	Category           model.Category
	OriginHint         string // empty renders as NA
	DomainRequirements string // optional enhancer addendum
}

// BuildPacketPrompt renders the user prompt for one analysis
func BuildPacketPrompt(p PacketPrompt) (string, error) {
	tmpl, ok := packetTemplates[p.Type]
	if !ok {
		return "", fmt.Errorf("unknown analysis type: %q", p.Type)
	}

	var packet bytes.Buffer
	if err := tmpl.Execute(&packet, struct{ TechnologyData string }{strings.TrimRight(p.TechnologyJSON, "\n")}); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", p.Type, err)
	}

	origin := p.OriginHint
	if origin == "" {
		origin = "NA"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "ORIGIN COUNTRY HINT (best-effort): %s\n", origin)
	fmt.Fprintf(&sb, "DETECTED TECHNOLOGY CATEGORY: %s\n\n", p.Category)
	if p.DomainRequirements != "" {
		sb.WriteString(strings.TrimSpace(p.DomainRequirements))
		sb.WriteString("\n\n")
	}
	sb.WriteString("RECOMMENDED CITATION SOURCES FOR THIS CATEGORY:\n")
	sb.WriteString(SourceGuidance(p.Category))
	sb.WriteString("\n\nSPECIFIC CREDIBLE SOURCES TO PRIORITIZE:\n")
	fmt.Fprintf(&sb, "- Medical Journals: %s\n", firstSources("medical_journals"))
	fmt.Fprintf(&sb, "- Databases: %s\n", firstSources("pharma_databases"))
	fmt.Fprintf(&sb, "- Regulatory: %s\n", firstSources("regulatory_sources"))
	fmt.Fprintf(&sb, "- Market Research: %s\n\n", firstSources("market_research"))
	sb.WriteString(strings.TrimSpace(packet.String()))
	sb.WriteString("\n\n")
	sb.WriteString(JSONOnlyNudge)
	return sb.String(), nil
}

func firstSources(group string) string {
	sources := LifeSciencesSources[group]
	return strings.Join(sources[:min(5, len(sources))], ", ")
}

// SourceGuidance returns the category-specific search hints, one per line
func SourceGuidance(category model.Category) string {
	c := string(category)
	var hints []string
	switch {
	case strings.Contains(c, "DRUG") || strings.Contains(c, "BIOLOGIC"):
		hints = []string{
			"Search PubMed for mechanism of action studies",
			"Check ClinicalTrials.gov (NCT) for ongoing trials / endpoints",
			"Review FDA Orange/Purple Book for patent & exclusivity",
			"Use IQVIA/Evaluate/GlobalData for market size and share",
		}
	case strings.Contains(c, "VACCINE"):
		hints = []string{
			"NEJM/Lancet vaccine trials",
			"WHO vaccine pipeline / SAGE/ACIP",
			"EMA EPAR, FDA BLA precedents",
		}
	case strings.Contains(c, "DIAGNOSTIC"):
		hints = []string{
			"Diagnostic accuracy studies (sensitivity/specificity)",
			"FDA 510(k)/PMA predicates",
			"CMS coverage decisions (NCD/LCD)",
		}
	case strings.Contains(c, "DEVICE"):
		hints = []string{
			"FDA MAUDE adverse events",
			"510(k)/PMA database for predicates",
			"Peer-reviewed device outcomes",
		}
	case strings.Contains(c, "AGRICULTURAL") || strings.Contains(c, "VETERINARY"):
		hints = []string{
			"USDA/EPA registrations",
			"Veterinary/agri peer-reviewed journals",
			"FAO market/epidemiology reports",
		}
	}
	return strings.Join(hints, "\n")
}
