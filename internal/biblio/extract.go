// Package biblio collects the citations of a repaired report and renders
// them as a sectioned plain-text bibliography.
package biblio

import (
	"strings"

	"github.com/ppiankov/ipdd/internal/doc"
)

// gapMarker starts diagnostic gap text, which is never a source
const gapMarker = "Not enough"

// Section is one bibliography bucket
type Section int

const (
	PeerReviewed Section = iota
	Regulatory
	ClinicalTrial
	MarketResearch
	Other
)

// sectionCues are checked in Section order; the first bucket with a cue wins
var sectionCues = [...][]string{
	PeerReviewed:   {"journal", "nejm", "lancet", "jama", "nature", "science", "cell"},
	Regulatory:     {"fda", "ema", "guidance", "regulation", "epar", "sec.gov", "orange book", "purple book"},
	ClinicalTrial:  {"nct", "clinicaltrials"},
	MarketResearch: {"market", "iqvia", "evaluate", "globaldata", "citeline"},
}

// Buckets holds the partitioned citations, each list in first-seen order
type Buckets map[Section][]string

// Len is the number of citations across all sections
func (b Buckets) Len() int {
	n := 0
	for _, list := range b {
		n += len(list)
	}
	return n
}

// Extract returns every distinct non-empty citation string in document
// order. Gap messages are skipped.
func Extract(root *doc.Node) []string {
	var out []string
	seen := make(map[string]bool)
	collect(root, func(c string) {
		if c == "" || strings.HasPrefix(c, gapMarker) || seen[c] {
			return
		}
		seen[c] = true
		out = append(out, c)
	})
	return out
}

func collect(n *doc.Node, fn func(string)) {
	switch {
	case n.IsMapping():
		for _, f := range n.Fields {
			if f.Key == "citation" && f.Value.IsString() {
				fn(f.Value.Str)
				continue
			}
			collect(f.Value, fn)
		}
	case n.IsSequence():
		for _, item := range n.Items {
			collect(item, fn)
		}
	}
}

// Classify returns the section a citation belongs to
func Classify(citation string) Section {
	lower := strings.ToLower(citation)
	for section, cues := range sectionCues {
		for _, cue := range cues {
			if strings.Contains(lower, cue) {
				return Section(section)
			}
		}
	}
	return Other
}

// Partition assigns each citation to exactly one section
func Partition(citations []string) Buckets {
	b := make(Buckets)
	for _, c := range citations {
		s := Classify(c)
		b[s] = append(b[s], c)
	}
	return b
}
