// Package extract derives prompt hints from technology records and pulls
// technology details out of technology-transfer pages.
package extract

import (
	"strings"

	"github.com/ppiankov/ipdd/internal/doc"
	"github.com/ppiankov/ipdd/internal/model"
)

type categoryKeywords struct {
	category model.Category
	keywords []string
}

// Order matters: ties go to the earlier category
var categoryTable = []categoryKeywords{
	{model.CategorySmallMolecule, []string{"small molecule", "compound", "nce", "new chemical entity", "oral drug"}},
	{model.CategoryBiologic, []string{"antibody", "protein", "peptide", "biologic", "mab", "biosimilar", "fusion protein"}},
	{model.CategoryGeneTherapy, []string{"gene therapy", "gene editing", "crispr", "aav", "lentivirus", "car-t"}},
	{model.CategoryVaccine, []string{"vaccine", "immunization", "prophylactic", "adjuvant", "antigen"}},
	{model.CategoryDiagnostic, []string{"diagnostic", "biomarker", "assay", "pcr", "elisa", "sequencing", "liquid biopsy"}},
	{model.CategoryMedicalDevice, []string{"device", "implant", "surgical", "catheter", "stent", "510k", "510(k)", "pma"}},
	{model.CategoryDigitalHealth, []string{"digital therapeutic", "dtx", "samd", "ai diagnostic", "telehealth", "mhealth"}},
	{model.CategoryAgriculturalBiotech, []string{"crop", "seed", "pesticide", "herbicide", "gmo", "plant", "soil", "yield", "trait"}},
	{model.CategoryVeterinary, []string{"veterinary", "animal health", "livestock", "aquaculture", "fish", "cattle", "poultry", "companion animal", "salmon", "louse", "parasite"}},
}

// CategoryScores maps each matched category to its keyword score
type CategoryScores map[model.Category]int

// DetectCategory scores the lowercased JSON text of tech against the keyword
// table. A keyword longer than five characters scores 2, a shorter one 1.
// Diagnostic or device together with digital health becomes the combined
// category. No match yields GENERAL_LIFE_SCIENCES.
func DetectCategory(tech *doc.Node) (model.Category, CategoryScores) {
	text := strings.ToLower(recordText(tech))

	scores := CategoryScores{}
	best, bestScore := model.CategoryGeneral, 0
	for _, row := range categoryTable {
		score := 0
		for _, kw := range row.keywords {
			if !strings.Contains(text, kw) {
				continue
			}
			if len(kw) > 5 {
				score += 2
			} else {
				score++
			}
		}
		if score == 0 {
			continue
		}
		scores[row.category] = score
		if score > bestScore {
			best, bestScore = row.category, score
		}
	}

	if bestScore == 0 {
		return model.CategoryGeneral, CategoryScores{}
	}

	_, digital := scores[model.CategoryDigitalHealth]
	if _, ok := scores[model.CategoryDiagnostic]; ok && digital {
		return model.CategoryDigitalDiagnostic, scores
	}
	if _, ok := scores[model.CategoryMedicalDevice]; ok && digital {
		return model.CategoryConnectedDevice, scores
	}
	return best, scores
}

func recordText(tech *doc.Node) string {
	if tech == nil {
		return ""
	}
	b, err := doc.Marshal(tech)
	if err != nil {
		return ""
	}
	return string(b)
}
